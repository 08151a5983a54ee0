package jferrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorIsMatchesKind(t *testing.T) {
	err := Wrap(KindLookup, "find_data_offset_by_payload", errors.New("boom"))
	require.True(t, errors.Is(err, ErrLookup))
	require.False(t, errors.Is(err, ErrFormat))
}

func TestKindOf(t *testing.T) {
	err := New(KindFormat, "open", "bad magic")
	k, ok := KindOf(err)
	require.True(t, ok)
	require.Equal(t, KindFormat, k)

	_, ok = KindOf(errors.New("plain"))
	require.False(t, ok)
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := Wrap(KindIO, "write", cause)
	require.Same(t, cause, errors.Unwrap(err))
}
