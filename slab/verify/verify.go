// Package verify provides the error type reported by slab allocator integrity checks.
// The same type is used as the panic payload when an invariant is violated at run time.
package verify

import (
	"fmt"
	"strings"
)

// Mismatch describes a field whose stored value diverged from the value recomputed
// from the underlying bitmaps (or a caller request that contradicts them).
type Mismatch struct {
	Scope    string // "Zone", "ChunkLevel", "Allocator", ...
	Zone     int    // -1 if N/A
	Group    int    // -1 if N/A
	Level    int    // -1 if N/A
	Field    string
	Expected any
	Actual   any
	Message  string
}

// New returns a Mismatch with all locations unset.
func New(scope, field string) *Mismatch {
	return &Mismatch{Scope: scope, Zone: -1, Group: -1, Level: -1, Field: field}
}

// InZone sets the zone location.
func (m *Mismatch) InZone(zone int) *Mismatch {
	m.Zone = zone
	return m
}

// InGroup sets the group location.
func (m *Mismatch) InGroup(group int) *Mismatch {
	m.Group = group
	return m
}

// InLevel sets the size class location.
func (m *Mismatch) InLevel(level int) *Mismatch {
	m.Level = level
	return m
}

// Values records the expected and observed values.
func (m *Mismatch) Values(expected, actual any) *Mismatch {
	m.Expected = expected
	m.Actual = actual
	return m
}

// Msg attaches a free-form description.
func (m *Mismatch) Msg(format string, args ...any) *Mismatch {
	m.Message = fmt.Sprintf(format, args...)
	return m
}

func (m *Mismatch) Error() string {
	var sb strings.Builder
	sb.WriteString(m.Scope)

	var loc []string
	if m.Level >= 0 {
		loc = append(loc, fmt.Sprintf("level_id:%d", m.Level))
	}
	if m.Zone >= 0 {
		loc = append(loc, fmt.Sprintf("zone_id:%d", m.Zone))
	}
	if m.Group >= 0 {
		loc = append(loc, fmt.Sprintf("group_id:%d", m.Group))
	}
	if len(loc) > 0 {
		sb.WriteString(" (")
		sb.WriteString(strings.Join(loc, " "))
		sb.WriteString(")")
	}

	sb.WriteString(": ")
	sb.WriteString(m.Field)
	if m.Expected != nil || m.Actual != nil {
		fmt.Fprintf(&sb, " is %v (should be: %v)", m.Actual, m.Expected)
	}
	if m.Message != "" {
		sb.WriteString(": ")
		sb.WriteString(m.Message)
	}
	return sb.String()
}

// Fail panics with m. It is used for invariant violations, which are never recovered
// from inside the allocator.
func Fail(m *Mismatch) {
	panic(m)
}
