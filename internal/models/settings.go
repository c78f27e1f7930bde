package models

// Settings are the user preferences persisted between sessions.
type Settings struct {
	Notifications    bool `json:"notifications"`
	LocationServices bool `json:"locationServices"`
	OfflineMode      bool `json:"offlineMode"`
}

func DefaultSettings() Settings {
	return Settings{
		Notifications:    true,
		LocationServices: true,
		OfflineMode:      false,
	}
}
