// Package quote supplies the latest market snapshot for an instrument.
// Quotes arrive from an external feed, either streamed over a websocket or
// fetched on demand; a Tracker keeps the newest snapshot and discards
// responses that resolve out of order.
package quote

import (
	"context"
	"errors"
	"sync"

	"github.com/goldsouk/bullion-engine/internal/model"
)

// ErrStaleQuote is returned when a fetch result is superseded by a newer
// request. Stale results are discarded silently, never shown to users.
var ErrStaleQuote = errors.New("quote: superseded by a newer request")

// Source is an external market-data feed.
type Source interface {
	// Name identifies the feed for logging.
	Name() string

	// Stream pushes quote ticks into the channel until ctx is cancelled.
	Stream(ctx context.Context, ticks chan<- model.Quote) error
}

// Fetcher is a feed queried on demand rather than streamed.
type Fetcher interface {
	Fetch(ctx context.Context, instrument string) (model.Quote, error)
}

// Tracker holds the latest quote snapshot and serializes concurrent
// fetches by request sequence number: a result is applied only if no newer
// request was started after it.
type Tracker struct {
	mu        sync.Mutex
	nextSeq   uint64
	latestSeq uint64
	latest    model.Quote
	hasQuote  bool
	subs      []chan model.Quote
}

// NewTracker creates an empty tracker. Latest reports no quote until the
// first tick is accepted.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Begin reserves a sequence number for a fetch about to start. Pass it to
// Offer with the result.
func (t *Tracker) Begin() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextSeq++
	return t.nextSeq
}

// Offer applies a fetch result unless a newer request already resolved.
// Out-of-order results are rejected with ErrStaleQuote and must be
// dropped by the caller.
func (t *Tracker) Offer(seq uint64, q model.Quote) error {
	t.mu.Lock()

	if t.hasQuote && seq <= t.latestSeq {
		t.mu.Unlock()
		return ErrStaleQuote
	}
	t.latestSeq = seq
	t.latest = q
	t.hasQuote = true
	subs := make([]chan model.Quote, len(t.subs))
	copy(subs, t.subs)
	t.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub <- q:
		default:
			// Drop the tick rather than block the feed; the subscriber
			// will catch up on the next one.
		}
	}
	return nil
}

// Push records a streamed tick. Streamed ticks are inherently ordered by
// the connection, so each gets the next sequence number.
func (t *Tracker) Push(q model.Quote) {
	t.Offer(t.Begin(), q)
}

// Latest returns the newest accepted snapshot, if any.
func (t *Tracker) Latest() (model.Quote, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.latest, t.hasQuote
}

// Subscribe returns a channel receiving every accepted tick. Slow
// subscribers miss ticks instead of blocking the feed.
func (t *Tracker) Subscribe() <-chan model.Quote {
	ch := make(chan model.Quote, 16)

	t.mu.Lock()
	t.subs = append(t.subs, ch)
	t.mu.Unlock()

	return ch
}

// Run consumes a streaming source into the tracker until ctx is cancelled.
func (t *Tracker) Run(ctx context.Context, src Source) error {
	ticks := make(chan model.Quote, 16)

	errc := make(chan error, 1)
	go func() {
		errc <- src.Stream(ctx, ticks)
	}()

	for {
		select {
		case <-ctx.Done():
			return <-errc
		case q := <-ticks:
			t.Push(q)
		}
	}
}
