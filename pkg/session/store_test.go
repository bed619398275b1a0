package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func newStoreAt(now *time.Time) *MemoryStore {
	s := NewMemoryStore()
	s.now = func() time.Time { return *now }
	return s
}

func TestLookupValidSession(t *testing.T) {
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	s := newStoreAt(&now)

	sess, err := s.Create(time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)
	assert.Equal(t, now.Add(time.Hour), sess.ExpiresAt)

	got, err := s.Lookup(sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess, got)
}

// TestLookupEvictsExpired проверяет, что истёкшая сессия удаляется при обращении.
func TestLookupEvictsExpired(t *testing.T) {
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	s := newStoreAt(&now)
	sess, err := s.Create(time.Minute)
	require.NoError(t, err)

	now = now.Add(time.Minute)
	_, err = s.Lookup(sess.Token)
	require.ErrorIs(t, err, ErrSessionNotFound)
	assert.Equal(t, 0, s.Len())
}

func TestRevokeAndUnknownToken(t *testing.T) {
	now := time.Now()
	s := newStoreAt(&now)
	sess, err := s.Create(time.Hour)
	require.NoError(t, err)

	s.Revoke(sess.Token)
	_, err = s.Lookup(sess.Token)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = s.Lookup("nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = s.Create(0)
	assert.Error(t, err)
}

func TestSweepRemovesOnlyExpired(t *testing.T) {
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	s := newStoreAt(&now)
	_, err := s.Create(time.Minute)
	require.NoError(t, err)
	long, err := s.Create(time.Hour)
	require.NoError(t, err)

	assert.Equal(t, 1, s.Sweep(now.Add(2*time.Minute)))
	assert.Equal(t, 1, s.Len())
	_, err = s.Lookup(long.Token)
	assert.NoError(t, err)
}

func TestJanitorStops(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := NewMemoryStore()
	s.StartJanitor(time.Millisecond)
	s.Close()
	s.Close()
}
