// Package history holds the conversation log: an append-only, role-validated
// comprehensive view plus a curated projection safe to re-send to the
// model, with optional sqlite-backed durability.
package history

import (
	"fmt"

	"github.com/haasonsaas/agentcore/pkg/protocol"
)

// Store is the comprehensive, append-only conversation log plus a curated
// projection. Only ChatSession is expected to mutate it; Store itself does
// not enforce single-writer discipline.
type Store struct {
	comprehensive []protocol.Content
}

func New() *Store {
	return &Store{}
}

// Append validates role alternation (two consecutive user entries are
// permitted only when the second carries only FunctionResponse parts) and
// appends.
func (s *Store) Append(c protocol.Content) error {
	if n := len(s.comprehensive); n > 0 {
		prev := s.comprehensive[n-1]
		if prev.Role == protocol.RoleUser && c.Role == protocol.RoleUser && !c.HasOnlyFunctionResponses() {
			return fmt.Errorf("history: consecutive user entries require the second to carry only function responses")
		}
	}
	s.comprehensive = append(s.comprehensive, c)
	return nil
}

// AppendMany appends each entry in order, stopping at the first validation
// failure and leaving prior appends in place.
func (s *Store) AppendMany(entries []protocol.Content) error {
	for _, c := range entries {
		if err := s.Append(c); err != nil {
			return err
		}
	}
	return nil
}

// GetComprehensive returns a copy of the full log.
func (s *Store) GetComprehensive() []protocol.Content {
	out := make([]protocol.Content, len(s.comprehensive))
	copy(out, s.comprehensive)
	return out
}

// Replace performs the bulk replace permitted between turns (used by
// compression).
func (s *Store) Replace(newLog []protocol.Content) {
	s.comprehensive = make([]protocol.Content, len(newLog))
	copy(s.comprehensive, newLog)
}

// GetCurated applies the curation rule: every user entry is kept; every
// model entry is kept iff it has visible content; when a model entry is
// dropped, the run of consecutive user entries immediately preceding it is
// also dropped. Pure: does not mutate the comprehensive log.
func (s *Store) GetCurated() []protocol.Content {
	return Curate(s.comprehensive)
}

// Curate is the free function version of GetCurated, usable against any
// slice (e.g. a prefix held during compression).
func Curate(log []protocol.Content) []protocol.Content {
	out := make([]protocol.Content, 0, len(log))
	i := 0
	for i < len(log) {
		entry := log[i]
		if entry.Role == protocol.RoleUser {
			out = append(out, entry)
			i++
			continue
		}
		// model entry
		if entry.HasVisibleContent() {
			out = append(out, entry)
			i++
			continue
		}
		// Drop this model entry and the run of user entries that led into
		// it: walk backwards over what we already appended.
		for len(out) > 0 && out[len(out)-1].Role == protocol.RoleUser {
			out = out[:len(out)-1]
		}
		i++
	}
	return out
}
