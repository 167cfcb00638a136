package session

import (
	"context"
	"errors"
	"time"

	"github.com/tartampluch/go-contacts/internal/config"
	"github.com/zalando/go-keyring"
)

// KeyringStorage keeps values in the operating system keychain, one secret
// per key under a single service name.
type KeyringStorage struct {
	service string
}

// NewKeyringStorage uses service as the keychain service name.
func NewKeyringStorage(service string) *KeyringStorage {
	if service == "" {
		service = config.KeyringService
	}
	return &KeyringStorage{service: service}
}

func (k *KeyringStorage) Get(_ context.Context, key string) (string, error) {
	v, err := keyring.Get(k.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	return v, err
}

func (k *KeyringStorage) Set(_ context.Context, key, value string, _ time.Duration) error {
	return keyring.Set(k.service, key, value)
}

func (k *KeyringStorage) Delete(_ context.Context, key string) error {
	if err := keyring.Delete(k.service, key); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return err
	}
	return nil
}
