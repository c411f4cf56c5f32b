package keys

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/manash/nogologo/pkg/models"
)

const FileName = "keys.json"

var ErrKeyNotFound = errors.New("no API key stored")

// Store keeps at most one API key per provider in keys.json
type Store struct {
	configDir string
	mu        sync.Mutex
}

// KeyEntry represents a stored API key
type KeyEntry struct {
	Key string `json:"key"`
}

// Keys represents the keys.json structure
type Keys map[models.ProviderID]KeyEntry

// NewStore creates a key store rooted at configDir
func NewStore(configDir string) *Store {
	return &Store{configDir: configDir}
}

// Path returns the path to the keys.json file
func (s *Store) Path() string {
	return filepath.Join(s.configDir, FileName)
}

// load reads the keys from disk
func (s *Store) load() (Keys, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return make(Keys), nil
		}
		return nil, err
	}

	var keys Keys
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", FileName, err)
	}
	if keys == nil {
		keys = make(Keys)
	}
	return keys, nil
}

// save writes the keys to disk
func (s *Store) save(keys Keys) error {
	if err := os.MkdirAll(s.configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(keys, "", "  ")
	if err != nil {
		return err
	}

	// Owner read/write only
	if err := os.WriteFile(s.Path(), data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", FileName, err)
	}
	return nil
}

// Set stores a key for the given provider, replacing any previous one
func (s *Store) Set(provider models.ProviderID, key string) error {
	return s.SetAll(map[models.ProviderID]string{provider: key})
}

// SetAll stores several keys in one write
func (s *Store) SetAll(entries map[models.ProviderID]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys, err := s.load()
	if err != nil {
		return err
	}

	for provider, key := range entries {
		if !provider.IsValid() {
			return fmt.Errorf("%w: %q", models.ErrUnknownProvider, provider)
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return fmt.Errorf("empty API key for %s", provider)
		}
		keys[provider] = KeyEntry{Key: key}
	}
	return s.save(keys)
}

// Get retrieves the key for the given provider
func (s *Store) Get(provider models.ProviderID) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys, err := s.load()
	if err != nil {
		return "", err
	}

	entry, ok := keys[provider]
	if !ok || entry.Key == "" {
		return "", fmt.Errorf("%w for %s", ErrKeyNotFound, provider)
	}
	return entry.Key, nil
}

// Delete removes the key for the given provider
func (s *Store) Delete(provider models.ProviderID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys, err := s.load()
	if err != nil {
		return err
	}

	if _, ok := keys[provider]; !ok {
		return fmt.Errorf("%w for %s", ErrKeyNotFound, provider)
	}

	delete(keys, provider)
	return s.save(keys)
}

// DeleteAll removes every stored key
func (s *Store) DeleteAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.Path())
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", FileName, err)
	}
	return nil
}

// List returns the providers that have a stored key, sorted
func (s *Store) List() ([]models.ProviderID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys, err := s.load()
	if err != nil {
		return nil, err
	}

	providers := make([]models.ProviderID, 0, len(keys))
	for provider := range keys {
		providers = append(providers, provider)
	}
	sort.Slice(providers, func(i, j int) bool { return providers[i] < providers[j] })
	return providers, nil
}

// MaskKey returns a masked version of the key for display
func MaskKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}

// EnvVar is the environment variable consulted when no key is stored.
func EnvVar(provider models.ProviderID) string {
	return strings.ToUpper(string(provider)) + "_API_KEY"
}

// Resolver looks a key up in the store first and the environment second.
type Resolver struct {
	Store  *Store
	Getenv func(string) string
}

func NewResolver(store *Store) *Resolver {
	return &Resolver{Store: store, Getenv: os.Getenv}
}

func (r *Resolver) Get(provider models.ProviderID) (string, error) {
	key, _, err := r.Lookup(provider)
	return key, err
}

// Lookup also reports where the key came from.
func (r *Resolver) Lookup(provider models.ProviderID) (key, source string, err error) {
	if r.Store != nil {
		key, err := r.Store.Get(provider)
		if err == nil {
			return key, "stored key (" + r.Store.Path() + ")", nil
		}
		if !errors.Is(err, ErrKeyNotFound) {
			return "", "", err
		}
	}

	envVar := EnvVar(provider)
	if r.Getenv != nil {
		if key := strings.TrimSpace(r.Getenv(envVar)); key != "" {
			return key, fmt.Sprintf("environment variable (%s)", envVar), nil
		}
	}

	return "", "", fmt.Errorf("%w for %s: run 'nogologo keys set %s' or set %s", ErrKeyNotFound, provider, provider, envVar)
}
