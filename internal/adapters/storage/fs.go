package storage

// fs.go — CacheStore sobre el filesystem local: un archivo JSON por key.
// Es el backend por defecto; la escritura es atómica vía rename para que un
// proceso interrumpido nunca deje una entrada a medias.

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alejandrodnm/polyperf/internal/ports"
)

// FSStore implementa ports.CacheStore con un archivo por key bajo dir.
type FSStore struct {
	dir string
}

// NewFSStore crea (si hace falta) el directorio y devuelve el store.
func NewFSStore(dir string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage.NewFSStore: mkdir %q: %w", dir, err)
	}
	return &FSStore{dir: dir}, nil
}

// Get lee el payload de la key. Devuelve ports.ErrNotFound si no existe.
func (s *FSStore) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		return nil, ports.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage.FSStore.Get %q: %w", key, err)
	}
	return data, nil
}

// Put escribe el payload con write-to-temp + rename.
func (s *FSStore) Put(_ context.Context, key string, data []byte) error {
	dst := s.path(key)
	tmp := dst + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("storage.FSStore.Put %q: write temp: %w", key, err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		return fmt.Errorf("storage.FSStore.Put %q: rename: %w", key, err)
	}
	return nil
}

// Exists comprueba si la key tiene archivo.
func (s *FSStore) Exists(_ context.Context, key string) (bool, error) {
	_, err := os.Stat(s.path(key))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("storage.FSStore.Exists %q: %w", key, err)
	}
	return true, nil
}

// Close no tiene recursos que liberar.
func (s *FSStore) Close() error { return nil }

// path sanitiza la key a un nombre de archivo dentro de dir.
func (s *FSStore) path(key string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, key)
	return filepath.Join(s.dir, safe+".json")
}
