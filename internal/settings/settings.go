// Package settings defines persistence of user preferences.
package settings

import (
	"context"

	"github.com/mr1hm/go-shelter-finder/internal/models"
)

// Store loads and saves user preferences. Load returns
// models.DefaultSettings when nothing has been saved yet.
type Store interface {
	Load(ctx context.Context) (models.Settings, error)
	Save(ctx context.Context, s models.Settings) error
}

// Key is the storage key the settings document lives under.
const Key = "settings"
