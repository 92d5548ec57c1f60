package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/polyperf/internal/domain"
)

// Console implementa ports.Reporter imprimiendo el resumen por modelo y,
// en modo breakdown, el desglose por evento/mercado.
type Console struct {
	out       io.Writer
	breakdown bool
}

// NewConsole crea un reporter que escribe a stdout.
func NewConsole(breakdown bool) *Console {
	return &Console{out: os.Stdout, breakdown: breakdown}
}

// NewConsoleWriter crea un reporter para tests.
func NewConsoleWriter(w io.Writer, breakdown bool) *Console {
	return &Console{out: w, breakdown: breakdown}
}

// Report imprime el resultado del run.
func (c *Console) Report(_ context.Context, result domain.RunResult) error {
	if len(result.Performances) == 0 {
		fmt.Fprintf(c.out, "[%s] no model performance to report\n",
			result.GeneratedAt.Format("15:04:05"))
		return nil
	}

	fmt.Fprintf(c.out, "\n=== MODEL PERFORMANCE — run %s (%s) ===\n",
		shortID(result.RunID), result.GeneratedAt.Format("2006-01-02 15:04"))

	c.printSummary(result.Performances)

	if c.breakdown {
		for _, perf := range result.Performances {
			c.printBreakdown(perf, result.Questions)
		}
	}

	return nil
}

// printSummary imprime la tabla por modelo.
func (c *Console) printSummary(performances []domain.ModelPerformance) {
	horizons := horizonOrder(performances)

	headers := []string{"Model", "Trades", "Final ×", "Final +"}
	for _, h := range horizons {
		headers = append(headers, "Avg "+h, "Sharpe "+h)
	}
	headers = append(headers, "Brier")

	table := tablewriter.NewWriter(c.out)
	table.Header(toAny(headers)...)

	for _, perf := range performances {
		row := []string{
			perf.ModelID,
			fmt.Sprintf("%d", perf.TradeCount),
			fmt.Sprintf("%.4f", finalValue(perf.Compounding, 1.0)),
			fmt.Sprintf("%.4f", finalValue(perf.Cumulative, 1.0)),
		}
		for _, h := range horizons {
			row = append(row,
				fmt.Sprintf("%+.4f", perf.AvgReturn[h]),
				fmt.Sprintf("%.3f", perf.Sharpe[h]),
			)
		}
		row = append(row, fmt.Sprintf("%.4f", perf.Brier))
		table.Append(toAny(row)...)
	}

	table.Render()

	fmt.Fprintln(c.out, "  Final × = valor final compuesto | Final + = valor final acumulado")
	fmt.Fprintln(c.out, "  Sharpe = media/desv.est. de retornos por evento, sin anualizar")
}

// printBreakdown imprime el desglose por decisión/evento/mercado de un modelo.
func (c *Console) printBreakdown(perf domain.ModelPerformance, questions map[string]string) {
	fmt.Fprintf(c.out, "\n--- %s: %d decision dates ---\n", perf.ModelID, len(perf.TradeDates))

	table := tablewriter.NewWriter(c.out)
	table.Header("Date", "Event", "Market", "Bet", "Ret all", "Est.p", "Mkt.p")

	for _, dec := range perf.Decisions {
		for _, event := range dec.Events {
			for _, m := range event.Markets {
				table.Append(
					dec.Date.Format("2006-01-02"),
					truncate(event.EventID, 20),
					truncate(marketLabel(m.MarketID, questions), 40),
					fmt.Sprintf("%+.3f", m.Bet),
					fmt.Sprintf("%+.4f", m.Returns[domain.HorizonAll]),
					fmt.Sprintf("%.2f", m.Calibration.EstimatedProb),
					fmt.Sprintf("%.2f", m.Calibration.MarketPrice),
				)
			}
		}
	}

	table.Render()
}

// marketLabel devuelve la pregunta legible si está resuelta, o el token id.
func marketLabel(tokenID string, questions map[string]string) string {
	if q, ok := questions[tokenID]; ok && q != "" {
		return q
	}
	return tokenID
}

// horizonOrder devuelve los horizontes presentes, días ascendentes y "all" al final.
func horizonOrder(performances []domain.ModelPerformance) []string {
	seen := make(map[string]struct{})
	var days []string
	hasAll := false
	for _, p := range performances {
		for h := range p.AvgReturn {
			if _, ok := seen[h]; ok {
				continue
			}
			seen[h] = struct{}{}
			if h == domain.HorizonAll {
				hasAll = true
				continue
			}
			days = append(days, h)
		}
	}
	sort.Slice(days, func(i, j int) bool {
		var a, b int
		fmt.Sscanf(days[i], "%dd", &a)
		fmt.Sscanf(days[j], "%dd", &b)
		return a < b
	})
	if hasAll {
		days = append(days, domain.HorizonAll)
	}
	return days
}

// finalValue devuelve el último valor de la serie, o fallback si está vacía.
func finalValue(s domain.Series, fallback float64) float64 {
	if last, ok := s.Last(); ok {
		return last.V
	}
	return fallback
}

func truncate(s string, maxLen int) string {
	if len(s) > maxLen {
		return s[:maxLen-3] + "..."
	}
	return s
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
