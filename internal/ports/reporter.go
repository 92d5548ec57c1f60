package ports

import (
	"context"

	"github.com/alejandrodnm/polyperf/internal/domain"
)

// Reporter publica el resultado de un run: registros de rendimiento por
// modelo más los desgloses por evento/mercado.
type Reporter interface {
	Report(ctx context.Context, result domain.RunResult) error
}
