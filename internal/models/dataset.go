package models

import "time"

// SyncStatus records the outcome of the latest sync of one dataset source.
type SyncStatus struct {
	Source   string    `json:"source"`
	Shelters int       `json:"shelters"`
	Skipped  int       `json:"skipped"`
	SyncedAt time.Time `json:"synced_at"`
}

// DatasetEvent is published after a source has been parsed and stored.
type DatasetEvent struct {
	Source   string    `json:"source"`
	Shelters int       `json:"shelters"`
	Skipped  int       `json:"skipped"`
	SyncedAt time.Time `json:"synced_at"`
}
