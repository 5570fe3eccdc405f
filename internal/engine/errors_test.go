package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorKindAndReason(t *testing.T) {
	cause := errors.New("zero rows affected")
	err := E("assignment.assign", KindConflict, ReasonNotAvailable, cause)

	require.True(t, IsKind(err, KindConflict))
	require.False(t, IsKind(err, KindNotFound))
	require.Equal(t, KindConflict, KindOf(err))
	require.Equal(t, ReasonNotAvailable, ReasonOf(err))
	require.ErrorIs(t, err, cause)
}

func TestWrappedErrorStillMatches(t *testing.T) {
	inner := E("redemption.redeem", KindInvalidState, ReasonExpired, nil)
	wrapped := fmt.Errorf("handling request: %w", inner)

	require.True(t, IsKind(wrapped, KindInvalidState))
	require.Equal(t, ReasonExpired, ReasonOf(wrapped))
}

func TestUnknownErrorTreatedAsInconsistent(t *testing.T) {
	err := errors.New("connection reset")
	require.Equal(t, KindInconsistent, KindOf(err))
	require.Equal(t, Reason(""), ReasonOf(err))
	require.False(t, IsKind(err, KindInconsistent))
}
