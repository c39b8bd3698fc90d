// Package sample holds the organization dataset used by the demo command and
// by end-to-end tests.
package sample

import (
	"github.com/ajitpratap0/parcel/pkg/errors"
	"github.com/ajitpratap0/parcel/pkg/models"
	"github.com/ajitpratap0/parcel/pkg/schema"
)

// OrgType is the organization type enum
type OrgType string

const (
	TypeFoo OrgType = "FOO"
	TypeBar OrgType = "BAR"
)

// Attr is one attribute of an organization
type Attr struct {
	ID       string  `json:"id"`
	Quantity int8    `json:"quantity"`
	Amount   int8    `json:"amount"`
	Active   bool    `json:"active"`
	Percent  float64 `json:"percent"`
	Size     int16   `json:"size"`
}

// Org is an organization with its attributes
type Org struct {
	Name       string  `json:"name"`
	Category   string  `json:"category"`
	Country    string  `json:"country"`
	Type       OrgType `json:"organizationType"`
	Attributes []Attr  `json:"attributes"`
}

// ProjectedColumns are the top-level fields of the projected demo read
var ProjectedColumns = []string{"name", "category", "country", "organizationType"}

// Schema returns the Organization schema
func Schema() *schema.Schema {
	return schema.New("Organization",
		schema.RequiredOf("name", schema.TypeString),
		schema.RequiredOf("category", schema.TypeString),
		schema.RequiredOf("country", schema.TypeString),
		schema.Enum("organizationType", schema.Required, string(TypeFoo), string(TypeBar)),
		schema.RecordList("attributes",
			schema.RequiredOf("id", schema.TypeString),
			schema.RequiredOf("quantity", schema.TypeInt8),
			schema.RequiredOf("amount", schema.TypeInt8),
			schema.RequiredOf("active", schema.TypeBoolean),
			schema.RequiredOf("percent", schema.TypeFloat64),
			schema.RequiredOf("size", schema.TypeInt16),
		),
	)
}

// Organizations returns the six demo organizations, each with one attribute
func Organizations() []Org {
	attr := Attr{ID: "123", Quantity: 5, Amount: 10, Active: true, Percent: 12.34, Size: 25}
	names := []struct{ name, category, country string }{
		{"A", "A1", "USA"},
		{"B", "B1", "BSA"},
		{"C", "C1", "CSA"},
		{"D", "D1", "DSA"},
		{"E", "E1", "ESA"},
		{"F", "F1", "FSA"},
	}
	orgs := make([]Org, len(names))
	for i, n := range names {
		orgs[i] = Org{
			Name:       n.name,
			Category:   n.category,
			Country:    n.country,
			Type:       TypeFoo,
			Attributes: []Attr{attr},
		}
	}
	return orgs
}

// ToRecord converts an organization to a record of Schema
func (o Org) ToRecord() models.Record {
	attrs := make([]models.Record, len(o.Attributes))
	for i, a := range o.Attributes {
		attrs[i] = models.NewRecord(
			models.F("id", models.String(a.ID)),
			models.F("quantity", models.Int8(int64(a.Quantity))),
			models.F("amount", models.Int8(int64(a.Amount))),
			models.F("active", models.Bool(a.Active)),
			models.F("percent", models.Float64(a.Percent)),
			models.F("size", models.Int16(int64(a.Size))),
		)
	}
	return models.NewRecord(
		models.F("name", models.String(o.Name)),
		models.F("category", models.String(o.Category)),
		models.F("country", models.String(o.Country)),
		models.F("organizationType", models.Enum(string(o.Type))),
		models.F("attributes", models.RecordList(attrs...)),
	)
}

// Records converts organizations to records
func Records(orgs []Org) []models.Record {
	out := make([]models.Record, len(orgs))
	for i, o := range orgs {
		out[i] = o.ToRecord()
	}
	return out
}

// FromRecord converts a record back to an organization. Fields missing from
// the record, as after a projected read, keep their zero value.
func FromRecord(r models.Record) (Org, error) {
	var o Org
	for _, e := range r.Entries() {
		switch e.Name {
		case "name":
			o.Name = e.Value.Str()
		case "category":
			o.Category = e.Value.Str()
		case "country":
			o.Country = e.Value.Str()
		case "organizationType":
			o.Type = OrgType(e.Value.Str())
		case "attributes":
			for i := 0; i < e.Value.Len(); i++ {
				a, err := attrFromRecord(e.Value.Index(i).Record())
				if err != nil {
					return Org{}, err
				}
				o.Attributes = append(o.Attributes, a)
			}
		default:
			return Org{}, errors.Newf(errors.ErrorTypeValue, "organization has no field %q", e.Name).
				WithDetail("path", e.Name)
		}
	}
	return o, nil
}

func attrFromRecord(r models.Record) (Attr, error) {
	var a Attr
	for _, e := range r.Entries() {
		switch e.Name {
		case "id":
			a.ID = e.Value.Str()
		case "quantity":
			a.Quantity = int8(e.Value.Int())
		case "amount":
			a.Amount = int8(e.Value.Int())
		case "active":
			a.Active = e.Value.Bool()
		case "percent":
			a.Percent = e.Value.Float()
		case "size":
			a.Size = int16(e.Value.Int())
		default:
			return Attr{}, errors.Newf(errors.ErrorTypeValue, "attribute has no field %q", e.Name).
				WithDetail("path", "attributes."+e.Name)
		}
	}
	return a, nil
}

// FromRecords converts records back to organizations
func FromRecords(records []models.Record) ([]Org, error) {
	out := make([]Org, len(records))
	for i, r := range records {
		o, err := FromRecord(r)
		if err != nil {
			return nil, err
		}
		out[i] = o
	}
	return out, nil
}
