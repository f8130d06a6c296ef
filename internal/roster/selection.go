package roster

import "sort"

// Selection is the set of user IDs chosen for a broadcast. It lives only in
// memory and never touches the backend. A nil *Selection is an empty set.
type Selection struct {
	ids map[string]struct{}
}

// NewSelection returns an empty selection.
func NewSelection() *Selection {
	return &Selection{ids: make(map[string]struct{})}
}

// Has reports whether id is selected.
func (s *Selection) Has(id string) bool {
	if s == nil {
		return false
	}
	_, ok := s.ids[id]
	return ok
}

// Set selects or deselects id.
func (s *Selection) Set(id string, selected bool) {
	if selected {
		s.ids[id] = struct{}{}
	} else {
		delete(s.ids, id)
	}
}

// Toggle flips id and returns the new state.
func (s *Selection) Toggle(id string) bool {
	on := !s.Has(id)
	s.Set(id, on)
	return on
}

// SelectAll adds every id.
func (s *Selection) SelectAll(ids []string) {
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
}

// Clear deselects everything.
func (s *Selection) Clear() {
	clear(s.ids)
}

// Len returns the number of selected ids.
func (s *Selection) Len() int {
	if s == nil {
		return 0
	}
	return len(s.ids)
}

// IDs returns the selected ids in sorted order.
func (s *Selection) IDs() []string {
	if s == nil {
		return nil
	}
	ids := make([]string, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
