package verify

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestMismatch_ErrorFull tests formatting with every location set.
func TestMismatch_ErrorFull(t *testing.T) {
	m := New("ChunkLevel", "num_free_chunks").InLevel(3).InZone(1).InGroup(7).Values(5, 4)

	require.Equal(t,
		"ChunkLevel (level_id:3 zone_id:1 group_id:7): num_free_chunks is 4 (should be: 5)",
		m.Error())
}

// TestMismatch_ErrorMessageOnly tests formatting without values or locations.
func TestMismatch_ErrorMessageOnly(t *testing.T) {
	m := New("Allocator", "identifier").Msg("invalid identifier %d", 0)

	require.Equal(t, "Allocator: identifier: invalid identifier 0", m.Error())
}

// TestMismatch_ErrorsAs tests that a wrapped Mismatch can be recovered.
func TestMismatch_ErrorsAs(t *testing.T) {
	err := fmt.Errorf("step 12: %w", New("Zone", "full_groups").InZone(0).InGroup(2).Values(true, false))

	var m *Mismatch
	require.True(t, errors.As(err, &m))
	require.Equal(t, 0, m.Zone)
	require.Equal(t, 2, m.Group)
	require.Equal(t, -1, m.Level)
	require.Contains(t, err.Error(), "full_groups is false (should be: true)")
}

// TestFail_Panics tests that Fail panics with the mismatch itself.
func TestFail_Panics(t *testing.T) {
	m := New("Zone", "slab").InZone(4)

	defer func() {
		r := recover()
		require.NotNil(t, r, "Fail should panic")
		got, ok := r.(*Mismatch)
		require.True(t, ok, "panic value should be *Mismatch, got %T", r)
		require.Same(t, m, got)
	}()
	Fail(m)
}
