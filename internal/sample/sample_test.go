package sample

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/parcel/pkg/models"
)

func TestOrganizationsAreValid(t *testing.T) {
	orgs := Organizations()
	require.Len(t, orgs, 6)
	require.NoError(t, models.ValidateAll(Records(orgs), Schema(), 0))
}

func TestRecordRoundTrip(t *testing.T) {
	orgs := Organizations()
	back, err := FromRecords(Records(orgs))
	require.NoError(t, err)
	assert.Equal(t, orgs, back)
}

func TestFromRecordProjected(t *testing.T) {
	r := models.NewRecord(
		models.F("name", models.String("A")),
		models.F("organizationType", models.Enum("BAR")),
	)
	o, err := FromRecord(r)
	require.NoError(t, err)
	assert.Equal(t, Org{Name: "A", Type: TypeBar}, o)
}

func TestFromRecordUnknownField(t *testing.T) {
	_, err := FromRecord(models.NewRecord(models.F("bogus", models.Int8(1))))
	assert.Error(t, err)
}
