package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/polyperf/internal/domain"
)

// PriceHistoryProvider obtiene la serie de precios histórica de un token
// desde la API externa. El adapter es responsable de partir rangos que
// excedan el límite por request y de la degradación sin fidelity.
type PriceHistoryProvider interface {
	// FetchPriceHistory devuelve los puntos en [start, end] muestreados
	// cada fidelityMinutes minutos. Puede devolver una serie vacía.
	FetchPriceHistory(ctx context.Context, tokenID string, start, end time.Time, fidelityMinutes int) (domain.Series, error)
}

// MarketMetadataProvider resuelve metadata legible (pregunta, slug) para
// token ids. Es opcional: los fallos no interrumpen el run.
type MarketMetadataProvider interface {
	FetchMarketQuestions(ctx context.Context, tokenIDs []string) (map[string]string, error)
}
