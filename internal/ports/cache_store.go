package ports

import (
	"context"
	"errors"
)

// ErrNotFound indica que la key no existe en el store.
var ErrNotFound = errors.New("cache store: key not found")

// CacheStore es el backend key-value donde se persisten las entradas de la
// caché de series, una entrada por token. Se inyecta en el cache client para
// poder testear con un store en memoria.
type CacheStore interface {
	// Get devuelve el payload de la key, o ErrNotFound si no existe.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put escribe (o sobreescribe) el payload de la key.
	Put(ctx context.Context, key string, data []byte) error

	// Exists comprueba si la key existe sin leer el payload.
	Exists(ctx context.Context, key string) (bool, error)

	// Close libera los recursos del backend.
	Close() error
}
