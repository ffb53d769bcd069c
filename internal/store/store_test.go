package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/run-bigpig/watchdog/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "watchdog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.CreateUser(ctx, "alice", "s3cret"))
	assert.ErrorIs(t, s.CreateUser(ctx, "alice", "other"), ErrUserExists)
	assert.ErrorIs(t, s.CreateUser(ctx, "", "x"), ErrInvalidInput)

	ok, err := s.VerifyCredentials(ctx, "alice", "s3cret")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.VerifyCredentials(ctx, "alice", "wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.VerifyCredentials(ctx, "bob", "s3cret")
	require.NoError(t, err)
	assert.False(t, ok)

	exists, err := s.UserExists(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = s.UserExists(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestPositions(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.RecordTransaction(ctx, "alice", "msft", 5))
	require.NoError(t, s.RecordTransaction(ctx, "alice", "AAPL", 10))
	require.NoError(t, s.RecordTransaction(ctx, "alice", "aapl", -4))
	require.NoError(t, s.RecordTransaction(ctx, "alice", "TSLA", 3))
	require.NoError(t, s.RecordTransaction(ctx, "alice", "TSLA", -3))
	require.NoError(t, s.RecordTransaction(ctx, "alice", "NVDA", -2))
	require.NoError(t, s.RecordTransaction(ctx, "bob", "AAPL", 100))
	assert.ErrorIs(t, s.RecordTransaction(ctx, "alice", "AAPL", 0), ErrInvalidInput)

	positions, err := s.GetPositions(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []models.Position{
		{Symbol: "AAPL", Quantity: 6},
		{Symbol: "MSFT", Quantity: 5},
	}, positions)

	empty, err := s.GetPositions(ctx, "carol")
	require.NoError(t, err)
	assert.Empty(t, empty)

	history, err := s.History(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, history, 6)
	assert.Equal(t, "MSFT", history[0].Symbol)
	assert.Equal(t, -4.0, history[2].Quantity)
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "watchdog.db")

	s, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.RecordTransaction(ctx, "alice", "AAPL", 1))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()
	positions, err := s.GetPositions(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, positions, 1)
}
