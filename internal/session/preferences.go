package session

import (
	"context"
	"time"

	"fyne.io/fyne/v2"
)

// PreferencesStorage keeps values in the Fyne application preferences file.
type PreferencesStorage struct {
	prefs fyne.Preferences
}

// NewPreferencesStorage wraps the preferences of a Fyne app.
func NewPreferencesStorage(prefs fyne.Preferences) *PreferencesStorage {
	return &PreferencesStorage{prefs: prefs}
}

func (p *PreferencesStorage) Get(_ context.Context, key string) (string, error) {
	v := p.prefs.String(key)
	if v == "" {
		return "", ErrNotFound
	}
	return v, nil
}

func (p *PreferencesStorage) Set(_ context.Context, key, value string, _ time.Duration) error {
	p.prefs.SetString(key, value)
	return nil
}

func (p *PreferencesStorage) Delete(_ context.Context, key string) error {
	p.prefs.RemoveValue(key)
	return nil
}
