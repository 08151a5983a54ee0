package sigbus

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/netdata/journal-engine/jferrors"
)

func TestInstallIsIdempotent(t *testing.T) {
	Install()
	Install()
	require.True(t, Installed())
}

func TestProtectPassesThroughSuccess(t *testing.T) {
	err := Protect(func() error { return nil })
	require.NoError(t, err)
}

func TestProtectPassesThroughOrdinaryError(t *testing.T) {
	sentinel := jferrors.New(jferrors.KindIO, "test", "boom")
	err := Protect(func() error { return sentinel })
	require.ErrorIs(t, err, sentinel)
}
