package decisions

// file.go — fuente de decisiones desde el JSON que persiste el subsistema de
// orquestación de agentes. Se consume solo-lectura; las decisiones con
// valores fuera de dominio se rechazan aquí, en la ingesta, con log.

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/alejandrodnm/polyperf/internal/domain"
)

// DTOs raw del log de decisiones.

type rawBatch struct {
	ModelID string     `json:"model_id"`
	Date    string     `json:"date"`
	Events  []rawEvent `json:"events"`
}

type rawEvent struct {
	EventID            string      `json:"event_id"`
	UnallocatedCapital float64     `json:"unallocated_capital"`
	Markets            []rawMarket `json:"markets"`
}

type rawMarket struct {
	MarketID      string  `json:"market_id"`
	Bet           float64 `json:"bet"`
	EstimatedProb float64 `json:"estimated_probability"`
	Confidence    float64 `json:"confidence"`
}

// FileSource implementa ports.DecisionSource leyendo un archivo JSON.
type FileSource struct {
	path string
}

// NewFileSource crea la fuente sobre la ruta dada.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// LoadDecisions parsea el archivo y devuelve los batches válidos agrupados
// por modelo y ordenados por fecha ascendente.
func (f *FileSource) LoadDecisions(_ context.Context) (map[string][]domain.DecisionBatch, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("decisions.LoadDecisions: read %q: %w", f.path, err)
	}

	var raw []rawBatch
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decisions.LoadDecisions: parse %q: %w", f.path, err)
	}

	byModel := make(map[string][]domain.DecisionBatch)
	rejected := 0

	for _, rb := range raw {
		batch, err := mapBatch(rb)
		if err != nil {
			slog.Warn("rejected decision batch", "model", rb.ModelID, "date", rb.Date, "err", err)
			rejected++
			continue
		}
		byModel[batch.ModelID] = append(byModel[batch.ModelID], batch)
	}

	for model := range byModel {
		batches := byModel[model]
		sort.Slice(batches, func(i, j int) bool {
			return batches[i].Date.Before(batches[j].Date)
		})
		byModel[model] = batches
	}

	slog.Info("decisions loaded",
		"path", f.path,
		"models", len(byModel),
		"batches", len(raw)-rejected,
		"rejected", rejected,
	)
	return byModel, nil
}

// mapBatch valida y convierte un batch raw. Cualquier mercado o evento
// inválido rechaza el batch entero: un log parcial no es de fiar.
func mapBatch(rb rawBatch) (domain.DecisionBatch, error) {
	if rb.ModelID == "" {
		return domain.DecisionBatch{}, fmt.Errorf("%w: empty model id", domain.ErrInvalidDecision)
	}

	date, err := parseDate(rb.Date)
	if err != nil {
		return domain.DecisionBatch{}, fmt.Errorf("%w: bad date %q", domain.ErrInvalidDecision, rb.Date)
	}

	events := make([]domain.EventDecision, 0, len(rb.Events))
	for _, re := range rb.Events {
		markets := make([]domain.MarketDecision, 0, len(re.Markets))
		for _, rm := range re.Markets {
			m, err := domain.NewMarketDecision(rm.MarketID, rm.Bet, rm.EstimatedProb, rm.Confidence)
			if err != nil {
				return domain.DecisionBatch{}, err
			}
			markets = append(markets, m)
		}
		e, err := domain.NewEventDecision(re.EventID, markets, re.UnallocatedCapital)
		if err != nil {
			return domain.DecisionBatch{}, err
		}
		events = append(events, e)
	}

	if len(events) == 0 {
		return domain.DecisionBatch{}, fmt.Errorf("%w: batch has no events", domain.ErrInvalidDecision)
	}

	return domain.DecisionBatch{ModelID: rb.ModelID, Date: date, Events: events}, nil
}

// parseDate acepta fecha sola o timestamp RFC3339.
func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format %q", s)
}
