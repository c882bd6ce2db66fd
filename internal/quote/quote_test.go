package quote

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/goldsouk/bullion-engine/internal/model"
)

func tick(bid float64) model.Quote {
	return model.Quote{
		Instrument: "GOLD",
		Bid:        decimal.NewFromFloat(bid),
		Timestamp:  time.Now().UTC(),
	}
}

func TestTracker_LatestEmpty(t *testing.T) {
	tr := NewTracker()
	if _, ok := tr.Latest(); ok {
		t.Error("empty tracker should report no quote")
	}
}

func TestTracker_StaleResponseDiscarded(t *testing.T) {
	tr := NewTracker()

	// Two fetches start; the later one resolves first.
	older := tr.Begin()
	newer := tr.Begin()

	if err := tr.Offer(newer, tick(2010)); err != nil {
		t.Fatalf("newer result should be accepted: %v", err)
	}
	if err := tr.Offer(older, tick(2000)); !errors.Is(err, ErrStaleQuote) {
		t.Fatalf("expected ErrStaleQuote for superseded result, got %v", err)
	}

	latest, ok := tr.Latest()
	if !ok {
		t.Fatal("tracker should hold a quote")
	}
	if !latest.Bid.Equal(decimal.NewFromFloat(2010)) {
		t.Errorf("latest bid = %s, want 2010 (stale 2000 must not apply)", latest.Bid)
	}
}

func TestTracker_InOrderResultsApply(t *testing.T) {
	tr := NewTracker()

	first := tr.Begin()
	if err := tr.Offer(first, tick(2000)); err != nil {
		t.Fatalf("first result: %v", err)
	}
	second := tr.Begin()
	if err := tr.Offer(second, tick(2005)); err != nil {
		t.Fatalf("second result: %v", err)
	}

	latest, _ := tr.Latest()
	if !latest.Bid.Equal(decimal.NewFromFloat(2005)) {
		t.Errorf("latest bid = %s, want 2005", latest.Bid)
	}
}

func TestTracker_PushOrdersStreamedTicks(t *testing.T) {
	tr := NewTracker()
	tr.Push(tick(1990))
	tr.Push(tick(1995))

	latest, _ := tr.Latest()
	if !latest.Bid.Equal(decimal.NewFromFloat(1995)) {
		t.Errorf("latest bid = %s, want 1995", latest.Bid)
	}
}

func TestTracker_SubscribeReceivesAcceptedTicks(t *testing.T) {
	tr := NewTracker()
	sub := tr.Subscribe()

	tr.Push(tick(2000))

	select {
	case q := <-sub:
		if !q.Bid.Equal(decimal.NewFromFloat(2000)) {
			t.Errorf("subscriber got bid %s, want 2000", q.Bid)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive the tick")
	}
}

func TestTracker_SubscriberDoesNotSeeStaleTick(t *testing.T) {
	tr := NewTracker()
	sub := tr.Subscribe()

	older := tr.Begin()
	newer := tr.Begin()
	tr.Offer(newer, tick(2010))
	tr.Offer(older, tick(2000))

	select {
	case q := <-sub:
		if !q.Bid.Equal(decimal.NewFromFloat(2010)) {
			t.Errorf("subscriber got bid %s, want 2010", q.Bid)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive the accepted tick")
	}

	select {
	case q := <-sub:
		t.Errorf("subscriber should not receive the stale tick, got bid %s", q.Bid)
	default:
	}
}
