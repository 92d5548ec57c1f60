package polymarket

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

const (
	gammaMarketsPath = "/markets"
	gammaTokenMax    = 20
)

// FetchMarketQuestions resuelve token ids a preguntas legibles usando Gamma.
// Los tokens sin datos en Gamma simplemente no aparecen en el map — el
// enriquecimiento es opcional y los batches fallidos se saltan con log.
// Implementa ports.MarketMetadataProvider.
func (c *Client) FetchMarketQuestions(ctx context.Context, tokenIDs []string) (map[string]string, error) {
	result := make(map[string]string, len(tokenIDs))

	for i := 0; i < len(tokenIDs); i += gammaTokenMax {
		end := i + gammaTokenMax
		if end > len(tokenIDs) {
			end = len(tokenIDs)
		}
		batch := tokenIDs[i:end]

		url := fmt.Sprintf("%s%s?clob_token_ids=%s&limit=%d",
			c.gammaBase,
			gammaMarketsPath,
			strings.Join(batch, ","),
			gammaTokenMax,
		)

		var resp gammaMarketsResponse
		if err := c.get(ctx, c.gammaLimiter, url, &resp); err != nil {
			slog.Debug("gamma batch failed, skipping",
				"batch", fmt.Sprintf("%d-%d", i, end),
				"err", err,
			)
			continue
		}

		for _, gm := range resp {
			for _, id := range tokenIDsOf(gm) {
				result[id] = gm.Question
			}
		}
	}

	slog.Debug("gamma metadata fetched", "tokens", len(tokenIDs), "resolved", len(result))
	return result, nil
}
