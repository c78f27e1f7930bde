package repository

import (
	"context"

	"github.com/mr1hm/go-shelter-finder/internal/models"
)

type Filter struct {
	Limit  int
	Offset int // applied only with a positive Limit
	Source string
	Type   *models.HazardType
}

type ShelterRepository interface {
	// ReplaceShelters swaps the stored snapshot of source for shelters.
	ReplaceShelters(ctx context.Context, source string, shelters []models.Shelter) error
	GetShelter(ctx context.Context, source, id string) (*models.Shelter, error)
	ListShelters(ctx context.Context, opts Filter) ([]models.Shelter, error)
}

type SyncRepository interface {
	SaveSyncStatus(ctx context.Context, status models.SyncStatus) error
	ListSyncStatus(ctx context.Context) ([]models.SyncStatus, error)
}

// Store is the full persistence surface used by ingestion and the API.
type Store interface {
	ShelterRepository
	SyncRepository
}
