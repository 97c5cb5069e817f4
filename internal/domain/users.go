package domain

import (
	"encoding/json"
	"strings"
)

// UserSet de-duplicated contributor ids, kept in first-seen order
type UserSet struct {
	ids   []string
	index map[string]struct{}
}

func NewUserSet(ids ...string) UserSet {
	var s UserSet
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// ParseLegacyUsers reads the comma-joined column format
func ParseLegacyUsers(joined string) UserSet {
	var s UserSet
	for _, tok := range strings.Split(joined, ",") {
		s.Add(tok)
	}
	return s
}

// Add inserts id and reports whether it was new. Blank ids are ignored.
func (s *UserSet) Add(id string) bool {
	id = strings.TrimSpace(id)
	if id == "" {
		return false
	}
	if s.index == nil {
		s.index = make(map[string]struct{})
	}
	if _, ok := s.index[id]; ok {
		return false
	}
	s.index[id] = struct{}{}
	s.ids = append(s.ids, id)
	return true
}

func (s UserSet) Contains(id string) bool {
	_, ok := s.index[strings.TrimSpace(id)]
	return ok
}

func (s UserSet) Len() int { return len(s.ids) }

// IDs returns a copy in insertion order
func (s UserSet) IDs() []string {
	out := make([]string, len(s.ids))
	copy(out, s.ids)
	return out
}

// Legacy projects the set to the comma-joined column format
func (s UserSet) Legacy() string {
	return strings.Join(s.ids, ",")
}

func (s UserSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.IDs())
}

func (s *UserSet) UnmarshalJSON(b []byte) error {
	var ids []string
	if err := json.Unmarshal(b, &ids); err != nil {
		return err
	}
	*s = NewUserSet(ids...)
	return nil
}
