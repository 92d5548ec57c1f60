package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// CacheEntry es el registro persistido de la serie de precios de un token.
// Se serializa como {data: [{datetime, value}], last_updated, is_closed}.
type CacheEntry struct {
	Data        []CachePoint `json:"data"`
	LastUpdated time.Time    `json:"last_updated"`
	IsClosed    bool         `json:"is_closed"`
}

// CachePoint es un punto (datetime ISO-8601, valor) dentro de la entrada.
type CachePoint struct {
	Datetime time.Time `json:"datetime"`
	Value    float64   `json:"value"`
}

// NewCacheEntry construye una entrada a partir de una serie ya ordenada.
func NewCacheEntry(s Series, updatedAt time.Time, closed bool) CacheEntry {
	data := make([]CachePoint, len(s))
	for i, p := range s {
		data[i] = CachePoint{Datetime: p.T, Value: p.V}
	}
	return CacheEntry{Data: data, LastUpdated: updatedAt, IsClosed: closed}
}

// Series reconstruye la serie ordenada de la entrada.
func (e CacheEntry) Series() Series {
	s := make(Series, len(e.Data))
	for i, p := range e.Data {
		s[i] = Point{T: p.Datetime, V: p.Value}
	}
	return s.Sorted()
}

// Marshal serializa la entrada al formato persistido.
func (e CacheEntry) Marshal() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("domain.CacheEntry.Marshal: %w", err)
	}
	return b, nil
}

// UnmarshalCacheEntry parsea una entrada persistida. Un payload corrupto
// devuelve error — el caller lo trata como cache miss, no como fallo fatal.
func UnmarshalCacheEntry(b []byte) (CacheEntry, error) {
	var e CacheEntry
	if err := json.Unmarshal(b, &e); err != nil {
		return CacheEntry{}, fmt.Errorf("domain.UnmarshalCacheEntry: %w", err)
	}
	return e, nil
}
