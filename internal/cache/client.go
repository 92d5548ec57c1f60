package cache

// client.go — caché persistente de series de precios por token.
//
// Semántica:
//   - Miss (o entrada corrupta): fetch completo a dos resoluciones (diaria y
//     6h), merge fino-sobre-grueso, persistir, devolver.
//   - Hit fresco (último punto fechado hoy en UTC, o que cubre el end
//     pedido): devolver lo cacheado sin red.
//   - Hit stale: Update incremental desde el último punto cacheado.
//   - Mercado cerrado: Update(force=false) devuelve lo cacheado sin red.
//     Esta es la optimización que evita re-fetchear mercados ya resueltos.
//
// Un merge nunca trunca el histórico: solo añade puntos o reemplaza valores
// en timestamps existentes con el fetch más reciente.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/polyperf/internal/domain"
	"github.com/alejandrodnm/polyperf/internal/ports"
)

// Fidelities pedidas a la API, en minutos.
const (
	fidelityCoarse = 1440 // diaria
	fidelityFine   = 360  // 6 horas
)

// Config controla el comportamiento de la caché.
type Config struct {
	// ClosureThreshold: si el punto más reciente es más viejo que esto en
	// el momento del fetch, el mercado se considera resuelto.
	ClosureThreshold time.Duration

	// HistoryDays es cuánto histórico pedir en el primer fetch de un token.
	HistoryDays int
}

// DefaultConfig devuelve una configuración sensata para producción.
func DefaultConfig() Config {
	return Config{
		ClosureThreshold: 18 * time.Hour,
		HistoryDays:      365,
	}
}

// Client es el cache client de series temporales.
type Client struct {
	provider ports.PriceHistoryProvider
	store    ports.CacheStore
	clock    ports.Clock
	cfg      Config
}

// New crea un Client con todas las dependencias inyectadas.
func New(provider ports.PriceHistoryProvider, store ports.CacheStore, clock ports.Clock, cfg Config) *Client {
	if cfg.ClosureThreshold <= 0 {
		cfg.ClosureThreshold = DefaultConfig().ClosureThreshold
	}
	if cfg.HistoryDays <= 0 {
		cfg.HistoryDays = DefaultConfig().HistoryDays
	}
	return &Client{provider: provider, store: store, clock: clock, cfg: cfg}
}

// Get devuelve la serie del token: cacheada si está fresca, refetcheada si
// falta, y actualizada incrementalmente si está stale. Un `end` en cero
// significa "hasta hoy".
func (c *Client) Get(ctx context.Context, token string, end time.Time) (domain.Series, error) {
	entry, ok, err := c.load(ctx, token)
	if err != nil {
		return nil, err
	}
	if !ok {
		return c.refresh(ctx, token, domain.CacheEntry{})
	}

	series := entry.Series()
	if c.isFresh(series, end) {
		return series, nil
	}
	return c.Update(ctx, token, false)
}

// Update trae los puntos nuevos desde el último cacheado y persiste el merge.
// Si el mercado está marcado como cerrado y force es false, devuelve la serie
// cacheada sin tocar la red.
func (c *Client) Update(ctx context.Context, token string, force bool) (domain.Series, error) {
	entry, ok, err := c.load(ctx, token)
	if err != nil {
		return nil, err
	}

	if ok && entry.IsClosed && !force {
		slog.Debug("market closed, skipping fetch", "token", token)
		return entry.Series(), nil
	}

	if !ok {
		entry = domain.CacheEntry{}
	}
	return c.refresh(ctx, token, entry)
}

// refresh hace el fetch a ambas resoluciones, mergea sobre lo cacheado,
// detecta cierre y persiste.
func (c *Client) refresh(ctx context.Context, token string, entry domain.CacheEntry) (domain.Series, error) {
	now := c.clock.Now()
	cached := entry.Series()

	start := now.AddDate(0, 0, -c.cfg.HistoryDays)
	if last, ok := cached.Last(); ok && last.T.After(start) {
		start = last.T
	}

	coarse, err := c.provider.FetchPriceHistory(ctx, token, start, now, fidelityCoarse)
	if err != nil {
		return nil, fmt.Errorf("cache.refresh %s: coarse fetch: %w", token, err)
	}
	fine, err := c.provider.FetchPriceHistory(ctx, token, start, now, fidelityFine)
	if err != nil {
		return nil, fmt.Errorf("cache.refresh %s: fine fetch: %w", token, err)
	}

	// La serie fina se fetchea después: en timestamps compartidos gana ella.
	merged := cached.Merge(coarse).Merge(fine)

	closed := entry.IsClosed
	if last, ok := merged.Last(); ok && now.Sub(last.T) > c.cfg.ClosureThreshold {
		// Sin movimiento desde hace más del umbral: el mercado resolvió.
		closed = true
	}

	updated := domain.NewCacheEntry(merged, now, closed)
	raw, err := updated.Marshal()
	if err != nil {
		return nil, fmt.Errorf("cache.refresh %s: %w", token, err)
	}
	if err := c.store.Put(ctx, token, raw); err != nil {
		return nil, fmt.Errorf("cache.refresh %s: persist: %w", token, err)
	}

	slog.Debug("cache entry refreshed",
		"token", token,
		"points", len(merged),
		"closed", closed,
	)
	return merged, nil
}

// load lee y parsea la entrada del token. Una entrada corrupta se trata como
// miss (se loguea y se refetchea), nunca como error fatal.
func (c *Client) load(ctx context.Context, token string) (domain.CacheEntry, bool, error) {
	raw, err := c.store.Get(ctx, token)
	if errors.Is(err, ports.ErrNotFound) {
		return domain.CacheEntry{}, false, nil
	}
	if err != nil {
		return domain.CacheEntry{}, false, fmt.Errorf("cache.load %s: %w", token, err)
	}

	entry, err := domain.UnmarshalCacheEntry(raw)
	if err != nil {
		slog.Warn("corrupt cache entry, treating as miss", "token", token, "err", err)
		return domain.CacheEntry{}, false, nil
	}
	return entry, true, nil
}

// isFresh decide si la serie cacheada cubre lo pedido: el último punto está
// fechado hoy (UTC) o alcanza el end solicitado.
func (c *Client) isFresh(s domain.Series, end time.Time) bool {
	last, ok := s.Last()
	if !ok {
		return false
	}
	if !end.IsZero() && !last.T.Before(end) {
		return true
	}
	ly, lm, ld := last.T.UTC().Date()
	ny, nm, nd := c.clock.Now().UTC().Date()
	return ly == ny && lm == nm && ld == nd
}
