package service

import (
	"context"
	"errors"

	"github.com/vidstash/api/internal/store"
)

const settingsStoreKey = "settings"

// SettingsService persists the UI settings blob (popup collapse flags
// and the like). The payload is opaque JSON owned by the UI surfaces;
// the core only stores it.
type SettingsService struct {
	store store.Store
}

func NewSettingsService(st store.Store) *SettingsService {
	return &SettingsService{store: st}
}

// Get returns the stored blob, or an empty object when nothing has
// been saved yet.
func (s *SettingsService) Get(ctx context.Context) ([]byte, error) {
	data, err := s.store.Get(ctx, settingsStoreKey)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return []byte("{}"), nil
		}
		return nil, err
	}
	return data, nil
}

// Set replaces the stored blob verbatim
func (s *SettingsService) Set(ctx context.Context, blob []byte) error {
	return s.store.Set(ctx, settingsStoreKey, blob)
}
