package session

import "waiter-station/internal/domain"

// Read-side accessors. Slices and the order are copied out so callers cannot
// mutate session state behind the lock.

func (s *Session) Screen() Screen {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.screen
}

func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

func (s *Session) Waiter() *domain.Waiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.waiter == nil {
		return nil
	}
	w := *s.waiter
	return &w
}

func (s *Session) SelectedTable() *domain.Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selectedTable == nil {
		return nil
	}
	t := *s.selectedTable
	return &t
}

func (s *Session) CurrentOrder() *domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.order == nil {
		return nil
	}
	o := *s.order
	o.Lines = make([]domain.OrderLine, len(s.order.Lines))
	copy(o.Lines, s.order.Lines)
	if s.order.AmountTotal != nil {
		v := *s.order.AmountTotal
		o.AmountTotal = &v
	}
	return &o
}

// SetOrderNotes attaches free-form notes to the unsent order.
func (s *Session) SetOrderNotes(notes string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.order != nil {
		s.order.Notes = notes
	}
}

func (s *Session) Tables() []domain.Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Table(nil), s.ref.Tables...)
}

func (s *Session) Floors() []domain.Floor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Floor(nil), s.ref.Floors...)
}

func (s *Session) Products() []domain.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Product(nil), s.ref.Products...)
}

func (s *Session) Categories() []domain.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Category(nil), s.ref.Categories...)
}

func (s *Session) PaymentMethods() []domain.PaymentMethod {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.PaymentMethod(nil), s.ref.PaymentMethods...)
}

// TablesOnFloor filters the table cache for one floor.
func (s *Session) TablesOnFloor(floorID int64) []domain.Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Table
	for _, t := range s.ref.Tables {
		if t.FloorID == floorID {
			out = append(out, t)
		}
	}
	return out
}
