package quote

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/goldsouk/bullion-engine/internal/model"
)

// feedMessage is the wire format of the upstream market-data socket.
// Prices arrive as strings to preserve exact decimal values.
type feedMessage struct {
	Symbol string `json:"symbol"`
	Bid    string `json:"bid"`
	Ask    string `json:"ask"`
	Low    string `json:"low"`
	High   string `json:"high"`
}

// WSFeed streams quotes from an upstream websocket market-data service,
// reconnecting with capped exponential backoff when the connection drops.
type WSFeed struct {
	url        string
	instrument string
	logger     *slog.Logger
}

// NewWSFeed creates a websocket feed for one instrument.
func NewWSFeed(url, instrument string, logger *slog.Logger) *WSFeed {
	return &WSFeed{url: url, instrument: instrument, logger: logger}
}

func (f *WSFeed) Name() string {
	return "ws:" + f.instrument
}

// Stream connects and pushes ticks until ctx is cancelled.
func (f *WSFeed) Stream(ctx context.Context, ticks chan<- model.Quote) error {
	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			f.logger.Info("quote feed: context cancelled, shutting down", "feed", f.Name())
			return nil
		default:
		}

		f.logger.Info("quote feed: connecting", "url", f.url, "backoff", backoff)
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
		if err != nil {
			f.logger.Error("quote feed: connection failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
				backoff *= 2
				if backoff > 16*time.Second {
					backoff = 16 * time.Second
				}
			}
			continue
		}

		backoff = time.Second
		f.logger.Info("quote feed: connected", "feed", f.Name())

		f.readLoop(ctx, conn, ticks)
		conn.Close()
	}
}

func (f *WSFeed) readLoop(ctx context.Context, conn *websocket.Conn, ticks chan<- model.Quote) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			f.logger.Error("quote feed: read failed", "error", err)
			return
		}

		var msg feedMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			f.logger.Warn("quote feed: unparseable message", "error", err)
			continue
		}
		if msg.Symbol != "" && msg.Symbol != f.instrument {
			continue
		}

		q, err := parseQuote(f.instrument, msg)
		if err != nil {
			f.logger.Warn("quote feed: bad tick", "error", err)
			continue
		}

		select {
		case ticks <- q:
		case <-ctx.Done():
			return
		}
	}
}

func parseQuote(instrument string, msg feedMessage) (model.Quote, error) {
	bid, err := decimal.NewFromString(msg.Bid)
	if err != nil {
		return model.Quote{}, err
	}
	ask, err := decimal.NewFromString(msg.Ask)
	if err != nil {
		return model.Quote{}, err
	}

	q := model.Quote{
		Instrument: instrument,
		Bid:        bid,
		Ask:        ask,
		Timestamp:  time.Now().UTC(),
	}
	// Low/high are optional on some upstreams.
	if msg.Low != "" {
		if q.Low, err = decimal.NewFromString(msg.Low); err != nil {
			return model.Quote{}, err
		}
	}
	if msg.High != "" {
		if q.High, err = decimal.NewFromString(msg.High); err != nil {
			return model.Quote{}, err
		}
	}
	return q, nil
}
