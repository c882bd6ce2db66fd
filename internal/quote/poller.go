package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/goldsouk/bullion-engine/internal/metrics"
	"github.com/goldsouk/bullion-engine/internal/model"
)

// HTTPFeed fetches quote snapshots from an upstream REST endpoint. Used
// when the upstream offers no streaming socket.
type HTTPFeed struct {
	url    string
	client *http.Client
}

// NewHTTPFeed creates an on-demand feed for the given endpoint.
func NewHTTPFeed(url string) *HTTPFeed {
	return &HTTPFeed{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Fetch retrieves the current snapshot for the instrument.
func (f *HTTPFeed) Fetch(ctx context.Context, instrument string) (model.Quote, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url+"?symbol="+instrument, nil)
	if err != nil {
		return model.Quote{}, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return model.Quote{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.Quote{}, fmt.Errorf("quote fetch: upstream returned %d", resp.StatusCode)
	}

	var msg feedMessage
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return model.Quote{}, err
	}
	return parseQuote(instrument, msg)
}

// Poll fetches on an interval into the tracker until ctx is cancelled.
// Each request is keyed by a sequence number taken before the fetch
// starts, so a response that resolves after a newer request is discarded
// rather than applied out of order.
func Poll(ctx context.Context, f Fetcher, instrument string, interval time.Duration, tr *Tracker, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		seq := tr.Begin()
		go func(seq uint64) {
			fetchCtx, cancel := context.WithTimeout(ctx, interval)
			defer cancel()

			q, err := f.Fetch(fetchCtx, instrument)
			if err != nil {
				logger.Warn("quote poll failed", "instrument", instrument, "err", err)
				return
			}
			if err := tr.Offer(seq, q); errors.Is(err, ErrStaleQuote) {
				metrics.StaleQuotes.Inc()
			}
		}(seq)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
