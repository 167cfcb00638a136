package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tartampluch/go-contacts/internal/config"
)

// Theme returns the stored UI theme, falling back to the default for absent
// or unreadable values.
func Theme(ctx context.Context, st Storage) string {
	raw, err := st.Get(ctx, config.StorageKeyTheme)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			slog.Warn(config.ErrSessionRead, config.LogKeyComponent, config.CompSession, config.LogKeyError, err)
		}
		return config.DefaultTheme
	}
	var theme string
	if err := json.Unmarshal([]byte(raw), &theme); err != nil || !validTheme(theme) {
		slog.Debug(config.MsgThemeInvalid, config.LogKeyComponent, config.CompSession, config.LogKeyValue, raw)
		return config.DefaultTheme
	}
	return theme
}

// SetTheme stores theme, which must be dark or light.
func SetTheme(ctx context.Context, st Storage, theme string) error {
	if !validTheme(theme) {
		return fmt.Errorf("%w: %s %q", ErrValidation, config.ErrThemeUnknown, theme)
	}
	data, err := json.Marshal(theme)
	if err != nil {
		return err
	}
	if err := st.Set(ctx, config.StorageKeyTheme, string(data), 0); err != nil {
		return fmt.Errorf("%s: %w", config.ErrSessionWrite, err)
	}
	return nil
}

// ToggleTheme flips between dark and light and returns the new theme.
func ToggleTheme(ctx context.Context, st Storage) (string, error) {
	next := config.ThemeDark
	if Theme(ctx, st) == config.ThemeDark {
		next = config.ThemeLight
	}
	return next, SetTheme(ctx, st, next)
}

func validTheme(t string) bool {
	return t == config.ThemeDark || t == config.ThemeLight
}
