package polymarket

// history.go — Polymarket CLOB /prices-history adapter.
//
// La API limita cada request a ~15 días de rango: un rango mayor se parte en
// sub-ventanas de maxWindow fetcheadas secuencialmente y concatenadas. Si la
// query primaria (con fidelity) devuelve un history vacío, la sub-ventana se
// reintenta una vez sin el parámetro fidelity.

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/polyperf/internal/domain"
)

const (
	pricesHistoryPath = "/prices-history"

	// maxWindow es el rango máximo por request que acepta la API.
	maxWindow = 14*24*time.Hour + 23*time.Hour
)

// FetchPriceHistory devuelve la serie de precios del token en [start, end]
// a la fidelity dada, partiendo el rango en sub-ventanas cuando excede el
// límite por request. Implementa ports.PriceHistoryProvider.
func (c *Client) FetchPriceHistory(ctx context.Context, tokenID string, start, end time.Time, fidelityMinutes int) (domain.Series, error) {
	if tokenID == "" {
		return nil, fmt.Errorf("polymarket.FetchPriceHistory: empty token id")
	}
	if !end.After(start) {
		return nil, nil
	}

	var all domain.Series
	windows := 0

	for ws := start; ws.Before(end); ws = ws.Add(maxWindow) {
		we := ws.Add(maxWindow)
		if we.After(end) {
			we = end
		}
		windows++

		points, err := c.fetchWindow(ctx, tokenID, ws, we, fidelityMinutes)
		if err != nil {
			return nil, fmt.Errorf("polymarket.FetchPriceHistory: window [%s, %s]: %w",
				ws.Format(time.RFC3339), we.Format(time.RFC3339), err)
		}

		if len(points) == 0 && fidelityMinutes > 0 {
			// Degradar a la query sin fidelity — algunos tokens solo
			// devuelven datos con el parameter set reducido.
			points, err = c.fetchWindow(ctx, tokenID, ws, we, 0)
			if err != nil {
				return nil, fmt.Errorf("polymarket.FetchPriceHistory: fallback window [%s, %s]: %w",
					ws.Format(time.RFC3339), we.Format(time.RFC3339), err)
			}
		}

		all = append(all, points...)
	}

	slog.Debug("price history fetched",
		"token", shortToken(tokenID),
		"windows", windows,
		"fidelity_min", fidelityMinutes,
		"points", len(all),
	)

	return all.Sorted(), nil
}

// fetchWindow hace un GET /prices-history para una sub-ventana.
// fidelityMinutes <= 0 omite el parámetro (query degradada).
func (c *Client) fetchWindow(ctx context.Context, tokenID string, start, end time.Time, fidelityMinutes int) (domain.Series, error) {
	url := fmt.Sprintf("%s%s?market=%s&startTs=%d&endTs=%d",
		c.clobBase, pricesHistoryPath, tokenID, start.Unix(), end.Unix())
	if fidelityMinutes > 0 {
		url += fmt.Sprintf("&fidelity=%d", fidelityMinutes)
	}

	var resp priceHistoryResponse
	if err := c.get(ctx, c.clobLimiter, url, &resp); err != nil {
		return nil, err
	}

	return mapPriceHistory(resp.History), nil
}

// shortToken trunca un token id para logs.
func shortToken(tokenID string) string {
	if len(tokenID) > 8 {
		return tokenID[:8] + "..."
	}
	return tokenID
}
