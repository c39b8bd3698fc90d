package columnar

import (
	"fmt"

	"github.com/ajitpratap0/parcel/pkg/models"
	"github.com/ajitpratap0/parcel/pkg/schema"
)

// Shred splits records into one column per leaf of s, in schema leaf order.
//
// Records must already have passed models.Validate against s. Shred panics on
// a record that does not fit the schema.
func Shred(s *schema.Schema, records []models.Record) []*Column {
	t := buildTree(s)
	sh := &shredder{cols: make([]*Column, len(t.leaves))}
	for i, l := range t.leaves {
		sh.cols[i] = &Column{
			Leaf:   l,
			Rep:    make([]uint16, 0, len(records)),
			Def:    make([]uint16, 0, len(records)),
			Values: make([]models.Value, 0, len(records)),
		}
	}
	for _, r := range records {
		for _, n := range t.roots {
			v, ok := r.Get(n.field.Name)
			sh.writeField(n, v, ok, 0, 0)
		}
	}
	return sh.cols
}

type shredder struct {
	cols []*Column
}

// writeField emits the triples of one field occurrence. rep is the level at
// which this occurrence repeats, def the level of its present parent.
func (sh *shredder) writeField(n *node, v models.Value, ok bool, rep, def int) {
	switch n.field.Repetition {
	case schema.Repeated:
		if !ok || v.Len() == 0 {
			sh.writeNull(n, rep, def)
			return
		}
		for i := 0; i < v.Len(); i++ {
			r := rep
			if i > 0 {
				r = n.rep
			}
			sh.writeValue(n, v.Index(i), r)
		}
	case schema.Optional:
		if !ok {
			sh.writeNull(n, rep, def)
			return
		}
		sh.writeValue(n, v, rep)
	default:
		if !ok {
			panic(fmt.Sprintf("columnar: required field %q missing from validated record", n.field.Name))
		}
		sh.writeValue(n, v, rep)
	}
}

func (sh *shredder) writeValue(n *node, v models.Value, rep int) {
	if n.leaf >= 0 {
		sh.cols[n.leaf].appendEntry(rep, n.def, v, true)
		return
	}
	if v.Kind() != models.KindRecord {
		panic(fmt.Sprintf("columnar: field %q holds %s, want record", n.field.Name, v.Kind()))
	}
	rec := v.Record()
	for _, c := range n.children {
		cv, ok := rec.Get(c.field.Name)
		sh.writeField(c, cv, ok, rep, n.def)
	}
}

// writeNull emits exactly one absent triple for every leaf beneath n
func (sh *shredder) writeNull(n *node, rep, def int) {
	for _, i := range n.leaves {
		sh.cols[i].appendEntry(rep, def, models.Value{}, false)
	}
}
