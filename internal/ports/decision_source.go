package ports

import (
	"context"

	"github.com/alejandrodnm/polyperf/internal/domain"
)

// DecisionSource carga el log de decisiones producido por el subsistema de
// orquestación de agentes. Se consume en modo solo-lectura: las decisiones
// inválidas se rechazan en la ingesta, no aquí abajo.
type DecisionSource interface {
	// LoadDecisions devuelve los batches agrupados por modelo, ordenados
	// por fecha ascendente dentro de cada modelo.
	LoadDecisions(ctx context.Context) (map[string][]domain.DecisionBatch, error)
}
