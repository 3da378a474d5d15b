package cart

import (
	"github.com/shopspring/decimal"

	models "shopping-cart/model"
)

// Totals are the aggregates derived from the current lines.
type Totals struct {
	Unique int             `json:"total_unique"`
	Qty    int             `json:"total_qty"`
	Price  decimal.Decimal `json:"total_price"`
}

// Totals returns the aggregates, recomputing them only after a mutation.
func (s *Store) Totals() Totals {
	if s.totals == nil {
		t := computeTotals(s.lines)
		s.totals = &t
	}
	return *s.totals
}

func computeTotals(lines []models.LineItem) Totals {
	t := Totals{Unique: len(lines), Price: decimal.Zero}
	for _, l := range lines {
		t.Qty += l.Qty
		t.Price = t.Price.Add(l.Subtotal())
	}
	return t
}
