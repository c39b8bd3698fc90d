package columnar

import (
	"github.com/ajitpratap0/parcel/pkg/errors"
	"github.com/ajitpratap0/parcel/pkg/models"
	"github.com/ajitpratap0/parcel/pkg/schema"
)

// Assemble rebuilds numRows records from the columns of s. cols must follow
// the leaf order of s, which may be a projection of the schema the columns
// were shredded with. Fields whose data is absent are left out of the record.
func Assemble(s *schema.Schema, cols []*Column, numRows int64) ([]models.Record, error) {
	t := buildTree(s)
	if len(cols) != len(t.leaves) {
		return nil, errors.Newf(errors.ErrorTypeCorruptColumnData,
			"expected %d columns, got %d", len(t.leaves), len(cols))
	}

	a := &assembler{cursors: make([]cursor, len(cols))}
	for i, c := range cols {
		if err := checkColumn(t.leaves[i], c); err != nil {
			return nil, err
		}
		if int64(c.Len()) < numRows {
			return nil, corrupt(c.Leaf.Path, "fewer entries than rows").WithDetail("rows", numRows)
		}
		a.cursors[i] = cursor{col: c}
	}

	out := make([]models.Record, 0, numRows)
	for row := int64(0); row < numRows; row++ {
		entries := make([]models.Entry, 0, len(t.roots))
		for _, n := range t.roots {
			v, present, err := a.readField(n, 0, 0)
			if err != nil {
				return nil, err.WithDetail("row", row)
			}
			if present {
				entries = append(entries, models.F(n.field.Name, v))
			}
		}
		out = append(out, models.NewRecord(entries...))
	}

	for i := range a.cursors {
		c := &a.cursors[i]
		if c.pos != c.col.Len() || c.vpos != len(c.col.Values) {
			return nil, corrupt(c.col.Leaf.Path, "leftover entries after the last row").
				WithDetail("remaining", c.col.Len()-c.pos)
		}
	}
	return out, nil
}

// checkColumn verifies the level bounds and the value count of one column
func checkColumn(l schema.Leaf, c *Column) *errors.Error {
	if c.Leaf.Path != l.Path {
		return corrupt(l.Path, "column order does not match the schema").WithDetail("got", c.Leaf.Path)
	}
	if len(c.Rep) != len(c.Def) {
		return corrupt(l.Path, "level streams differ in length")
	}
	present := 0
	for i := range c.Def {
		if int(c.Rep[i]) > l.MaxRep {
			return corrupt(l.Path, "repetition level deeper than the leaf allows").WithDetail("index", i)
		}
		if int(c.Def[i]) > l.MaxDef {
			return corrupt(l.Path, "definition level above the leaf maximum").WithDetail("index", i)
		}
		if int(c.Def[i]) == l.MaxDef {
			present++
		}
	}
	if present != len(c.Values) {
		return corrupt(l.Path, "value count does not match the present entries").
			WithDetail("present", present).WithDetail("values", len(c.Values))
	}
	return nil
}

type cursor struct {
	col  *Column
	pos  int
	vpos int
}

type assembler struct {
	cursors []cursor
}

func (a *assembler) peek(leaf int) (rep, def int, ok bool) {
	c := &a.cursors[leaf]
	if c.pos >= c.col.Len() {
		return 0, 0, false
	}
	return int(c.col.Rep[c.pos]), int(c.col.Def[c.pos]), true
}

// readField reads one occurrence of n whose parent is present at level def
// and which repeats at level rep. It reports whether the field is present.
func (a *assembler) readField(n *node, rep, def int) (models.Value, bool, *errors.Error) {
	_, d, ok := a.peek(n.first)
	if !ok {
		return models.Value{}, false, corrupt(a.cursors[n.first].col.Leaf.Path, "column ended before the last row")
	}

	switch n.field.Repetition {
	case schema.Optional:
		if d < n.def {
			if err := a.consumeNull(n, rep, def); err != nil {
				return models.Value{}, false, err
			}
			return models.Value{}, false, nil
		}
		v, err := a.readValue(n, rep)
		return v, err == nil, err

	case schema.Repeated:
		if d < n.def {
			if err := a.consumeNull(n, rep, def); err != nil {
				return models.Value{}, false, err
			}
			return models.List(), true, nil
		}
		var items []models.Value
		r := rep
		for {
			v, err := a.readValue(n, r)
			if err != nil {
				return models.Value{}, false, err
			}
			items = append(items, v)
			next, _, more := a.peek(n.first)
			if !more || next < n.rep {
				break
			}
			if next > n.rep {
				return models.Value{}, false, corrupt(a.cursors[n.first].col.Leaf.Path, "repetition level out of sequence")
			}
			r = n.rep
		}
		return models.List(items...), true, nil

	default:
		v, err := a.readValue(n, rep)
		return v, err == nil, err
	}
}

// readValue reads one present occurrence of n
func (a *assembler) readValue(n *node, rep int) (models.Value, *errors.Error) {
	if n.leaf >= 0 {
		c := &a.cursors[n.leaf]
		if c.pos >= c.col.Len() {
			return models.Value{}, corrupt(c.col.Leaf.Path, "column ended before the last row")
		}
		r, d := int(c.col.Rep[c.pos]), int(c.col.Def[c.pos])
		if r != rep {
			return models.Value{}, corrupt(c.col.Leaf.Path, "repetition level disagrees with sibling columns").
				WithDetail("want", rep).WithDetail("got", r)
		}
		if d != n.def {
			return models.Value{}, corrupt(c.col.Leaf.Path, "definition level disagrees with sibling columns").
				WithDetail("want", n.def).WithDetail("got", d)
		}
		if c.vpos >= len(c.col.Values) {
			return models.Value{}, corrupt(c.col.Leaf.Path, "present entry has no value")
		}
		v := c.col.Values[c.vpos]
		c.pos++
		c.vpos++
		return v, nil
	}

	entries := make([]models.Entry, 0, len(n.children))
	for _, child := range n.children {
		v, present, err := a.readField(child, rep, n.def)
		if err != nil {
			return models.Value{}, err
		}
		if present {
			entries = append(entries, models.F(child.field.Name, v))
		}
	}
	return models.Nested(models.NewRecord(entries...)), nil
}

// consumeNull skips the single absent triple every leaf beneath n carries
func (a *assembler) consumeNull(n *node, rep, def int) *errors.Error {
	for _, i := range n.leaves {
		c := &a.cursors[i]
		if c.pos >= c.col.Len() {
			return corrupt(c.col.Leaf.Path, "column ended before the last row")
		}
		r, d := int(c.col.Rep[c.pos]), int(c.col.Def[c.pos])
		if r != rep || d != def {
			return corrupt(c.col.Leaf.Path, "absent entry disagrees with sibling columns").
				WithDetail("rep", r).WithDetail("def", d)
		}
		c.pos++
	}
	return nil
}

func corrupt(path, msg string) *errors.Error {
	return errors.New(errors.ErrorTypeCorruptColumnData, msg).WithDetail("path", path)
}
