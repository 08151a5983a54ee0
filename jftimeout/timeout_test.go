package jftimeout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestUnlimitedBudgetNeverExpires(t *testing.T) {
	to := New(0)
	require.False(t, to.Expired())
	require.Greater(t, to.Remaining(), time.Hour)
}

func TestExpiresAfterBudget(t *testing.T) {
	to := New(10 * time.Millisecond)
	require.False(t, to.Expired())
	time.Sleep(20 * time.Millisecond)
	require.True(t, to.Expired())
	require.Zero(t, to.Remaining())
}

func TestResetExtendsDeadline(t *testing.T) {
	to := New(20 * time.Millisecond)
	time.Sleep(15 * time.Millisecond)
	to.Reset()
	require.False(t, to.Expired())
	require.Greater(t, to.Remaining(), 10*time.Millisecond)
}
