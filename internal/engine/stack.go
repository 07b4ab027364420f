package engine

import (
	"slices"

	"github.com/GuLp-St/Attendance-Studio/internal/ir"
)

// record is one opened level, pinned to the history index it was recorded at.
type record struct {
	index int
	level ir.LevelSpec
	flags []ir.FlagID
}

// Stack is a navigation stack: the levels opened in one token namespace.
//
// Records stay ordered by history index. Records above the current index are
// kept until the log discards them, so forward traversal restores the flags
// they carried. A record is visible while its index is at or below the
// current index.
type Stack struct {
	spec    ir.StackSpec
	records []record
}

func newStack(spec ir.StackSpec) *Stack {
	return &Stack{spec: spec}
}

// Name returns the stack name.
func (s *Stack) Name() string {
	return s.spec.Name
}

// visible returns the records at or below cursor.
func (s *Stack) visible(cursor int) []record {
	n := 0
	for n < len(s.records) && s.records[n].index <= cursor {
		n++
	}
	return s.records[:n]
}

// top returns the deepest visible record.
func (s *Stack) top(cursor int) (record, bool) {
	vis := s.visible(cursor)
	if len(vis) == 0 {
		return record{}, false
	}
	return vis[len(vis)-1], true
}

// depth returns the depth of the deepest visible level, or -1.
func (s *Stack) depth(cursor int) int {
	if r, ok := s.top(cursor); ok {
		return r.level.Depth
	}
	return -1
}

// at returns the record pinned to index.
func (s *Stack) at(index int) (record, bool) {
	for _, r := range s.records {
		if r.index == index {
			return r, true
		}
	}
	return record{}, false
}

// truncate drops records at or above index; the log just discarded them.
func (s *Stack) truncate(index int) {
	n := 0
	for n < len(s.records) && s.records[n].index < index {
		n++
	}
	clear(s.records[n:])
	s.records = s.records[:n]
}

// push appends r, discarding anything at or above its index.
func (s *Stack) push(r record) {
	s.truncate(r.index)
	s.records = append(s.records, r)
}

// replace swaps the record pinned to r.index for r.
func (s *Stack) replace(r record) {
	for i := range s.records {
		if s.records[i].index == r.index {
			s.records[i] = r
			return
		}
	}
	s.push(r)
}

// reset drops every record.
func (s *Stack) reset() bool {
	had := len(s.records) > 0
	s.records = nil
	return had
}

// flags appends the flags of every visible record to dst.
func (s *Stack) flags(dst []ir.FlagID, cursor int) []ir.FlagID {
	for _, r := range s.visible(cursor) {
		dst = append(dst, r.flags...)
	}
	return dst
}

// tokens appends the token of every visible record to dst.
func (s *Stack) tokens(dst []ir.Token, cursor int) []ir.Token {
	for _, r := range s.visible(cursor) {
		dst = append(dst, r.level.Token)
	}
	return dst
}

func sameFlags(a, b []ir.FlagID) bool {
	return slices.Equal(ir.SortFlags(a), ir.SortFlags(b))
}
