package prefs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pauljones0/wanderdeals/internal/models"
)

func TestMemoryStore_TTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemoryStore()
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	now = now.Add(time.Minute)
	_, err = m.Get(ctx, "k")
	assert.ErrorIs(t, err, models.ErrNotFound)

	require.NoError(t, m.Set(ctx, "forever", []byte("x"), 0))
	now = now.Add(365 * 24 * time.Hour)
	_, err = m.Get(ctx, "forever")
	assert.NoError(t, err)

	require.NoError(t, m.Delete(ctx, "forever"))
	_, err = m.Get(ctx, "forever")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestMemoryStore_CopiesValues(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	buf := []byte("abc")
	require.NoError(t, m.Set(ctx, "k", buf, 0))
	buf[0] = 'z'

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestService_Drafts(t *testing.T) {
	ctx := context.Background()
	s := NewService(NewMemoryStore())

	_, err := s.Draft(ctx, "merchant-1")
	assert.ErrorIs(t, err, models.ErrNotFound)

	draft := &models.Deal{Title: "Half-finished", Discount: "20%", BusinessName: "Inn"}
	require.NoError(t, s.SaveDraft(ctx, "merchant-1", draft))

	got, err := s.Draft(ctx, "merchant-1")
	require.NoError(t, err)
	assert.Equal(t, "Half-finished", got.Title)
	assert.Equal(t, "20%", got.Discount)

	_, err = s.Draft(ctx, "merchant-2")
	assert.ErrorIs(t, err, models.ErrNotFound, "drafts are per owner")

	require.NoError(t, s.DeleteDraft(ctx, "merchant-1"))
	_, err = s.Draft(ctx, "merchant-1")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestService_Language(t *testing.T) {
	ctx := context.Background()
	s := NewService(NewMemoryStore())

	lang, err := s.Language(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "en", lang)

	require.NoError(t, s.SetLanguage(ctx, "u1", "fr"))
	lang, err = s.Language(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "fr", lang)

	assert.ErrorIs(t, s.SetLanguage(ctx, "u1", "klingon"), ErrUnsupportedLanguage)
}

func TestService_Settings(t *testing.T) {
	ctx := context.Background()
	s := NewService(NewMemoryStore())

	st, err := s.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultSettings(), st)

	st.MaintenanceMode = true
	st.DefaultLanguage = "es"
	require.NoError(t, s.SaveSettings(ctx, st))

	got, err := s.Settings(ctx)
	require.NoError(t, err)
	assert.True(t, got.MaintenanceMode)
	assert.Equal(t, "es", got.DefaultLanguage)
}
