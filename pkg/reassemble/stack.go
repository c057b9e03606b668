package reassemble

import (
	"github.com/Sternrassler/eikon-data-client/pkg/dataerr"
	"github.com/Sternrassler/eikon-data-client/pkg/table"
)

// Stack concatenates b below a, reconciling their column sets first.
//
// When one table's columns are a superset of the other's, the narrower one is
// padded with null columns and reordered to the wider one's column order.
// When neither contains the other, both are padded to the union: the wider
// table (a on a tie) fixes the order and the other's extra columns follow.
// Columns of incompatible types cannot be stacked.
func Stack(a, b *table.Table) (*table.Table, error) {
	const op = "reassemble.Stack"

	base, other := a, b
	if b.NumCols() > a.NumCols() {
		base, other = b, a
	}

	order := base.Names()
	for _, name := range other.Names() {
		if !base.Has(name) {
			order = append(order, name)
		}
	}

	pa, err := conform(a, b, order)
	if err != nil {
		return nil, dataerr.Wrap(dataerr.KindNoDataFrame, op, err, "pad upper table")
	}
	pb, err := conform(b, a, order)
	if err != nil {
		return nil, dataerr.Wrap(dataerr.KindNoDataFrame, op, err, "pad lower table")
	}

	out, err := table.VStack(pa, pb)
	if err != nil {
		return nil, dataerr.Wrap(dataerr.KindNoDataFrame, op, err, "stack %d rows onto %d", b.NumRows(), a.NumRows())
	}
	return out, nil
}

// conform pads t with null columns for every name in order it lacks, typed
// after the column in peer, and returns it in that order.
func conform(t, peer *table.Table, order []string) (*table.Table, error) {
	var missing []table.Column
	for _, name := range order {
		if t.Has(name) {
			continue
		}
		typ := table.Null
		if c, ok := peer.Column(name); ok {
			typ = c.Type
		}
		missing = append(missing, table.NullColumn(name, typ, t.NumRows()))
	}

	padded := t
	if len(missing) > 0 {
		var err error
		if padded, err = t.WithColumns(missing...); err != nil {
			return nil, err
		}
	}
	return padded.Select(order...)
}
