package valueguard

import (
	"errors"
	"testing"

	"github.com/netdata/journal-engine/jferrors"
	"github.com/stretchr/testify/require"
)

func TestAcquireRejectsWhileInUse(t *testing.T) {
	var owner Owner

	g1, err := Acquire(&owner, 42)
	require.NoError(t, err)
	require.Equal(t, 42, g1.Value())
	require.True(t, owner.InUse())

	_, err = Acquire(&owner, 7)
	require.Error(t, err)
	require.True(t, errors.Is(err, jferrors.ErrConcurrency))

	g1.Release()
	require.False(t, owner.InUse())

	g2, err := Acquire(&owner, 7)
	require.NoError(t, err)
	require.Equal(t, 7, g2.Value())
	g2.Release()
}

func TestReleaseIdempotent(t *testing.T) {
	var owner Owner
	g, err := Acquire(&owner, "x")
	require.NoError(t, err)
	g.Release()
	g.Release()
	require.False(t, owner.InUse())
}
