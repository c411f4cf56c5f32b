package keys

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/manash/nogologo/pkg/models"
)

func TestStore_SetGetDelete(t *testing.T) {
	tmpDir := t.TempDir()
	store := NewStore(tmpDir)

	if err := store.Set(models.ProviderOpenAI, "sk-test-key-12345"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	// Verify file was created with correct permissions
	info, err := os.Stat(filepath.Join(tmpDir, "keys.json"))
	if err != nil {
		t.Fatalf("keys.json not created: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("keys.json permissions = %v, want 0600", info.Mode().Perm())
	}

	key, err := store.Get(models.ProviderOpenAI)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if key != "sk-test-key-12345" {
		t.Errorf("Get() = %v, want sk-test-key-12345", key)
	}

	if _, err := store.Get(models.ProviderGemini); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Get(gemini) error = %v, want ErrKeyNotFound", err)
	}

	providers, err := store.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(providers) != 1 || providers[0] != models.ProviderOpenAI {
		t.Errorf("List() = %v, want [openai]", providers)
	}

	if err := store.Delete(models.ProviderOpenAI); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(models.ProviderOpenAI); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Get() after Delete() error = %v", err)
	}
	if err := store.Delete(models.ProviderGemini); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Delete(non-existent) error = %v, want ErrKeyNotFound", err)
	}
}

func TestStore_SetReplacesAndValidates(t *testing.T) {
	store := NewStore(t.TempDir())

	store.Set(models.ProviderXAI, "first")
	store.Set(models.ProviderXAI, "  second  ")
	if key, _ := store.Get(models.ProviderXAI); key != "second" {
		t.Errorf("Get() = %q, want second", key)
	}

	tests := []struct {
		name     string
		provider models.ProviderID
		key      string
	}{
		{"unknown provider", models.ProviderID("anthropic"), "k"},
		{"empty key", models.ProviderGemini, "   "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := store.Set(tt.provider, tt.key); err == nil {
				t.Error("Set() error = nil, want error")
			}
		})
	}
}

func TestStore_EmptyDir(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "missing"))

	if _, err := store.Get(models.ProviderOpenAI); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("Get() error = %v", err)
	}

	providers, err := store.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(providers) != 0 {
		t.Errorf("List() from non-existent file = %v, want empty slice", providers)
	}

	if err := store.DeleteAll(); err != nil {
		t.Errorf("DeleteAll() on missing file error = %v", err)
	}
}

func TestStore_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "keys.json"), []byte("{not json"), 0600)

	store := NewStore(dir)
	_, err := store.Get(models.ProviderXAI)
	if err == nil || errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Get() error = %v, want parse failure", err)
	}
}

func TestStore_MultipleProviders(t *testing.T) {
	store := NewStore(t.TempDir())

	err := store.SetAll(map[models.ProviderID]string{
		models.ProviderXAI:    "xai-key",
		models.ProviderOpenAI: "openai-key",
		models.ProviderGemini: "gemini-key",
	})
	if err != nil {
		t.Fatalf("SetAll() error = %v", err)
	}

	providers, _ := store.List()
	want := []models.ProviderID{models.ProviderGemini, models.ProviderOpenAI, models.ProviderXAI}
	if len(providers) != len(want) {
		t.Fatalf("List() = %v, want %v", providers, want)
	}
	for i := range want {
		if providers[i] != want[i] {
			t.Errorf("List()[%d] = %v, want %v", i, providers[i], want[i])
		}
	}

	store.Delete(models.ProviderOpenAI)
	if key, _ := store.Get(models.ProviderXAI); key != "xai-key" {
		t.Errorf("Get(xai) after deleting openai = %v", key)
	}

	if err := store.DeleteAll(); err != nil {
		t.Fatalf("DeleteAll() error = %v", err)
	}
	if providers, _ := store.List(); len(providers) != 0 {
		t.Errorf("List() after DeleteAll() = %v", providers)
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	store := NewStore(t.TempDir())
	store.Set(models.ProviderXAI, "xai-key")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				store.Set(models.ProviderOpenAI, "openai-key")
				return
			}
			if key, err := store.Get(models.ProviderXAI); err != nil || key != "xai-key" {
				t.Errorf("Get() = %q, %v", key, err)
			}
		}(i)
	}
	wg.Wait()
}

func TestMaskKey(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"sk-1234567890abcdef", "sk-1***********cdef"},
		{"short", "*****"},
		{"12345678", "********"},
		{"123456789", "1234*6789"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := MaskKey(tt.key); got != tt.want {
			t.Errorf("MaskKey(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestEnvVar(t *testing.T) {
	if got := EnvVar(models.ProviderGemini); got != "GEMINI_API_KEY" {
		t.Errorf("EnvVar(gemini) = %q", got)
	}
}

func TestResolver_Priority(t *testing.T) {
	store := NewStore(t.TempDir())
	env := map[string]string{
		"OPENAI_API_KEY": "env-openai",
		"XAI_API_KEY":    "env-xai",
	}
	r := &Resolver{Store: store, Getenv: func(k string) string { return env[k] }}

	store.Set(models.ProviderOpenAI, "stored-openai")

	tests := []struct {
		provider   models.ProviderID
		wantKey    string
		wantSource string
		wantErr    bool
	}{
		{models.ProviderOpenAI, "stored-openai", "stored key", false},
		{models.ProviderXAI, "env-xai", "XAI_API_KEY", false},
		{models.ProviderGemini, "", "", true},
	}

	for _, tt := range tests {
		t.Run(string(tt.provider), func(t *testing.T) {
			key, source, err := r.Lookup(tt.provider)
			if tt.wantErr {
				if !errors.Is(err, ErrKeyNotFound) {
					t.Errorf("Lookup() error = %v, want ErrKeyNotFound", err)
				}
				if !strings.Contains(err.Error(), "GEMINI_API_KEY") {
					t.Errorf("error %q should mention env var", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Lookup() error = %v", err)
			}
			if key != tt.wantKey {
				t.Errorf("key = %q, want %q", key, tt.wantKey)
			}
			if !strings.Contains(source, tt.wantSource) {
				t.Errorf("source = %q, want to contain %q", source, tt.wantSource)
			}
		})
	}
}
