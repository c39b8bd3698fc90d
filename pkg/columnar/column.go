package columnar

import (
	"github.com/ajitpratap0/parcel/pkg/models"
	"github.com/ajitpratap0/parcel/pkg/schema"
)

// Column is the shredded stream of one leaf. Rep and Def always have the
// same length; Values holds only the entries whose Def equals Leaf.MaxDef.
type Column struct {
	Leaf   schema.Leaf
	Rep    []uint16
	Def    []uint16
	Values []models.Value
}

// Len returns the number of triples in the column
func (c *Column) Len() int { return len(c.Def) }

func (c *Column) appendEntry(rep, def int, v models.Value, present bool) {
	c.Rep = append(c.Rep, uint16(rep))
	c.Def = append(c.Def, uint16(def))
	if present {
		c.Values = append(c.Values, v)
	}
}

// node mirrors a schema field with the levels it contributes
type node struct {
	field    *schema.Field
	def      int // definition level once this field is present
	rep      int // repetition level of this field's own elements
	children []*node
	leaf     int // column index, -1 for records
	first    int // column index of the first leaf beneath
	leaves   []int
}

// tree is the level-annotated form of a schema
type tree struct {
	roots  []*node
	leaves []schema.Leaf
}

func buildTree(s *schema.Schema) *tree {
	t := &tree{leaves: s.Leaves()}
	next := 0
	var build func(f *schema.Field, def, rep int) *node
	build = func(f *schema.Field, def, rep int) *node {
		switch f.Repetition {
		case schema.Optional:
			def++
		case schema.Repeated:
			def++
			rep++
		}
		n := &node{field: f, def: def, rep: rep, leaf: -1, first: next}
		if !f.IsRecord() {
			n.leaf = next
			n.leaves = []int{next}
			next++
			return n
		}
		for _, c := range f.Children {
			cn := build(c, def, rep)
			n.children = append(n.children, cn)
			n.leaves = append(n.leaves, cn.leaves...)
		}
		return n
	}
	for _, f := range s.Fields {
		t.roots = append(t.roots, build(f, 0, 0))
	}
	return t
}
