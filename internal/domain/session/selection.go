package session

import "github.com/bryanwahyu/stockaudit/internal/domain/audit"

// Selection is the set of details included in the next export. The zero value
// is an empty selection.
type Selection map[audit.DetailID]struct{}

// SelectAll builds a selection containing every id.
func SelectAll(ids []audit.DetailID) Selection {
	s := make(Selection, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports membership.
func (s Selection) Has(id audit.DetailID) bool {
	_, ok := s[id]
	return ok
}

// Clone copies the set.
func (s Selection) Clone() Selection {
	c := make(Selection, len(s))
	for id := range s {
		c[id] = struct{}{}
	}
	return c
}

// Toggle returns a copy with id flipped.
func (s Selection) Toggle(id audit.DetailID) Selection {
	c := s.Clone()
	if c.Has(id) {
		delete(c, id)
	} else {
		c[id] = struct{}{}
	}
	return c
}

// ToggleAll clears a fully selected set and otherwise selects everything.
func (s Selection) ToggleAll(ids []audit.DetailID) Selection {
	if len(s) == len(ids) {
		return Selection{}
	}
	return SelectAll(ids)
}

// Ordered returns the selected ids in result order, never toggle order.
func (s Selection) Ordered(ids []audit.DetailID) []audit.DetailID {
	out := make([]audit.DetailID, 0, len(s))
	for _, id := range ids {
		if s.Has(id) {
			out = append(out, id)
		}
	}
	return out
}
