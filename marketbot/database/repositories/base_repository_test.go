package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandleErrorWithID(t *testing.T) {
	require.NoError(t, HandleErrorWithID("get", "listing", 1, nil))

	err := HandleErrorWithID("get", "listing", int64(7), fmt.Errorf("scan: %w", sql.ErrNoRows))
	require.True(t, IsNotFound(err))
	require.EqualError(t, err, "listing 7 not found")

	conflict := &ConflictError{Entity: "payment", Field: "status", Value: "approved"}
	require.Same(t, conflict, HandleErrorWithID("review", "payment", 3, conflict))

	boom := errors.New("connection reset")
	err = HandleErrorWithID("update", "listing", 7, boom)
	var repoErr *RepositoryError
	require.ErrorAs(t, err, &repoErr)
	require.Equal(t, "update", repoErr.Operation)
	require.ErrorIs(t, err, boom)
	require.EqualError(t, err, "failed to update listing: connection reset")
	require.False(t, IsNotFound(err))
	require.False(t, IsConflict(err))
}
