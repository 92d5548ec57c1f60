package notify

// json.go — serializa el resultado del run al JSON plano (listas fecha/valor)
// que consume la capa de presentación.

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/alejandrodnm/polyperf/internal/domain"
)

// JSONFile implementa ports.Reporter escribiendo el resultado a un archivo.
type JSONFile struct {
	path string
}

// NewJSONFile crea el reporter sobre la ruta dada.
func NewJSONFile(path string) *JSONFile {
	return &JSONFile{path: path}
}

type jsonResult struct {
	RunID       string      `json:"run_id"`
	GeneratedAt string      `json:"generated_at"`
	Models      []jsonModel `json:"models"`
}

type jsonModel struct {
	ModelID     string             `json:"model_id"`
	Compounding []domain.FlatPoint `json:"compounding"`
	Cumulative  []domain.FlatPoint `json:"cumulative"`
	AvgReturn   map[string]float64 `json:"avg_return"`
	Sharpe      map[string]float64 `json:"sharpe"`
	Brier       float64            `json:"brier"`
	TradeCount  int                `json:"trade_count"`
	TradeDates  []string           `json:"trade_dates"`
	Decisions   []jsonDecision     `json:"decisions"`
}

type jsonDecision struct {
	Date   string      `json:"date"`
	Events []jsonEvent `json:"events"`
}

type jsonEvent struct {
	EventID    string             `json:"event_id"`
	Returns    map[string]float64 `json:"returns"`
	GainSeries []domain.FlatPoint `json:"gain_series"`
	Markets    []jsonMarket       `json:"markets"`
}

type jsonMarket struct {
	MarketID      string             `json:"market_id"`
	Question      string             `json:"question,omitempty"`
	Bet           float64            `json:"bet"`
	Returns       map[string]float64 `json:"returns"`
	GainSeries    []domain.FlatPoint `json:"gain_series"`
	MarketPrice   float64            `json:"market_price"`
	EstimatedProb float64            `json:"estimated_probability"`
}

// Report escribe el resultado serializado. Sobrescribe el archivo anterior:
// el resultado es una función pura de (decisiones, precios) y se regenera
// entero en cada run.
func (j *JSONFile) Report(_ context.Context, result domain.RunResult) error {
	out := jsonResult{
		RunID:       result.RunID,
		GeneratedAt: result.GeneratedAt.UTC().Format(time.RFC3339),
		Models:      make([]jsonModel, 0, len(result.Performances)),
	}

	for _, perf := range result.Performances {
		out.Models = append(out.Models, mapModel(perf, result.Questions))
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("notify.JSONFile.Report: marshal: %w", err)
	}
	if err := os.WriteFile(j.path, data, 0o644); err != nil {
		return fmt.Errorf("notify.JSONFile.Report: write %q: %w", j.path, err)
	}
	return nil
}

func mapModel(perf domain.ModelPerformance, questions map[string]string) jsonModel {
	m := jsonModel{
		ModelID:     perf.ModelID,
		Compounding: domain.Flatten(perf.Compounding),
		Cumulative:  domain.Flatten(perf.Cumulative),
		AvgReturn:   perf.AvgReturn,
		Sharpe:      perf.Sharpe,
		Brier:       perf.Brier,
		TradeCount:  perf.TradeCount,
	}

	for _, d := range perf.TradeDates {
		m.TradeDates = append(m.TradeDates, d.Format("2006-01-02"))
	}

	for _, dec := range perf.Decisions {
		jd := jsonDecision{Date: dec.Date.UTC().Format(time.RFC3339)}
		for _, e := range dec.Events {
			je := jsonEvent{
				EventID:    e.EventID,
				Returns:    e.Returns,
				GainSeries: domain.Flatten(e.GainSeries),
			}
			for _, mk := range e.Markets {
				je.Markets = append(je.Markets, jsonMarket{
					MarketID:      mk.MarketID,
					Question:      questions[mk.MarketID],
					Bet:           mk.Bet,
					Returns:       mk.Returns,
					GainSeries:    domain.Flatten(mk.GainSeries),
					MarketPrice:   mk.Calibration.MarketPrice,
					EstimatedProb: mk.Calibration.EstimatedProb,
				})
			}
			jd.Events = append(jd.Events, je)
		}
		m.Decisions = append(m.Decisions, jd)
	}

	return m
}
