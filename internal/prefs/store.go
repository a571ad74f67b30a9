// Package prefs persists small per-owner values (submission drafts, language
// preference) and the admin system settings behind a key-value port.
package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/pauljones0/wanderdeals/internal/models"
)

// ErrUnsupportedLanguage is returned when storing a language outside models.Languages.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// Store is the key-value port. Get returns models.ErrNotFound for missing keys.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

const draftTTL = 30 * 24 * time.Hour

func draftKey(owner string) string    { return fmt.Sprintf("draft:%s", owner) }
func languageKey(owner string) string { return fmt.Sprintf("lang:%s", owner) }

const settingsKey = "settings:system"

// Service provides typed access to a Store.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

func (s *Service) getJSON(ctx context.Context, key string, v any) error {
	data, err := s.store.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

func (s *Service) setJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return s.store.Set(ctx, key, data, ttl)
}

// Draft returns the owner's saved submission draft, or models.ErrNotFound.
func (s *Service) Draft(ctx context.Context, owner string) (*models.Deal, error) {
	var d models.Deal
	if err := s.getJSON(ctx, draftKey(owner), &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// SaveDraft stores a partial submission. Drafts expire after 30 days.
func (s *Service) SaveDraft(ctx context.Context, owner string, d *models.Deal) error {
	return s.setJSON(ctx, draftKey(owner), d, draftTTL)
}

func (s *Service) DeleteDraft(ctx context.Context, owner string) error {
	return s.store.Delete(ctx, draftKey(owner))
}

// Language returns the owner's language, falling back to the default language.
func (s *Service) Language(ctx context.Context, owner string) (string, error) {
	data, err := s.store.Get(ctx, languageKey(owner))
	if errors.Is(err, models.ErrNotFound) {
		return models.Languages[0], nil
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *Service) SetLanguage(ctx context.Context, owner, lang string) error {
	if !slices.Contains(models.Languages, lang) {
		return fmt.Errorf("%w: %q", ErrUnsupportedLanguage, lang)
	}
	return s.store.Set(ctx, languageKey(owner), []byte(lang), 0)
}

// Settings returns the saved system settings or models.DefaultSettings.
func (s *Service) Settings(ctx context.Context) (models.SystemSettings, error) {
	st := models.DefaultSettings()
	err := s.getJSON(ctx, settingsKey, &st)
	if errors.Is(err, models.ErrNotFound) {
		return models.DefaultSettings(), nil
	}
	return st, err
}

func (s *Service) SaveSettings(ctx context.Context, st models.SystemSettings) error {
	return s.setJSON(ctx, settingsKey, st, 0)
}
