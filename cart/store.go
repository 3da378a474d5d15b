package cart

import (
	models "shopping-cart/model"
)

// Store holds the cart lines and enforces 1 <= qty <= stock on every
// mutation. It is not safe for concurrent use; share a Facade instead.
type Store struct {
	lines []models.LineItem
	index map[int64]int // id -> position in lines

	totals *Totals // memo, nil when stale
}

// NewStore returns an empty cart.
func NewStore() *Store {
	return &Store{index: make(map[int64]int)}
}

// AddOne inserts item with qty 1, or increments it when already present.
//
// An item with zero stock is still inserted with qty 1. This breaks
// qty <= stock for that line but matches what shoppers have always seen;
// Inc on such a line reports OutOfStock and Dec removes it.
func (s *Store) AddOne(item models.CatalogItem) Result {
	if _, ok := s.index[item.ID]; ok {
		return s.Inc(item.ID)
	}
	s.index[item.ID] = len(s.lines)
	s.lines = append(s.lines, models.NewLineItem(item, 1))
	s.totals = nil
	return OK
}

// Inc adds one unit unless the line already holds its stock.
func (s *Store) Inc(id int64) Result {
	i, ok := s.index[id]
	if !ok {
		return NotFound
	}
	if s.lines[i].Qty >= s.lines[i].Stock {
		return OutOfStock
	}
	s.lines[i].Qty++
	s.totals = nil
	return OK
}

// Dec removes one unit; the line is dropped when its qty reaches zero.
func (s *Store) Dec(id int64) Result {
	i, ok := s.index[id]
	if !ok {
		return NotFound
	}
	if s.lines[i].Qty <= 1 {
		s.removeAt(i)
		return OK
	}
	s.lines[i].Qty--
	s.totals = nil
	return OK
}

// Remove drops the line for id. Removing an absent id is a no-op.
func (s *Store) Remove(id int64) Result {
	i, ok := s.index[id]
	if !ok {
		return NotFound
	}
	s.removeAt(i)
	return OK
}

// Clear empties the cart.
func (s *Store) Clear() {
	s.lines = nil
	s.index = make(map[int64]int)
	s.totals = nil
}

// Deduct takes the given quantities out of the cart, dropping lines that
// reach zero. Ids no longer in the cart are skipped.
func (s *Store) Deduct(lines []models.LineItem) Result {
	res := NotFound
	for _, l := range lines {
		i, ok := s.index[l.ID]
		if !ok {
			continue
		}
		res = OK
		if s.lines[i].Qty <= l.Qty {
			s.removeAt(i)
			continue
		}
		s.lines[i].Qty -= l.Qty
		s.totals = nil
	}
	return res
}

// QtyOf returns the quantity held for id, or 0.
func (s *Store) QtyOf(id int64) int {
	if i, ok := s.index[id]; ok {
		return s.lines[i].Qty
	}
	return 0
}

// Line returns the line for id.
func (s *Store) Line(id int64) (models.LineItem, bool) {
	i, ok := s.index[id]
	if !ok {
		return models.LineItem{}, false
	}
	return s.lines[i], true
}

// Items returns a copy of the lines in insertion order.
func (s *Store) Items() []models.LineItem {
	out := make([]models.LineItem, len(s.lines))
	copy(out, s.lines)
	return out
}

func (s *Store) Len() int { return len(s.lines) }

// removeAt deletes lines[i] keeping insertion order and reindexes the tail.
func (s *Store) removeAt(i int) {
	delete(s.index, s.lines[i].ID)
	s.lines = append(s.lines[:i], s.lines[i+1:]...)
	for j := i; j < len(s.lines); j++ {
		s.index[s.lines[j].ID] = j
	}
	s.totals = nil
}
