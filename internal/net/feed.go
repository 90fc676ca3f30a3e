// Package net exposes verification runs over HTTP: a websocket feed that
// streams replay diagnostics to observers and a verify endpoint that accepts
// record streams.
package net

import (
	"context"
	"encoding/json"
	nethttp "net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/telemetry"
	"github.com/hansjm10/Idle-Game-Engine-sub003/logging"
)

const (
	metricFeedSubscribers = "feed_subscribers"
	metricFeedBroadcasts  = "feed_broadcasts_total"
	metricFeedDrops       = "feed_dropped_events_total"
)

// subscriberBuffer bounds how many events a slow observer may fall behind
// before the feed drops events for it.
const subscriberBuffer = 256

// Feed fans diagnostic events out to websocket observers. It implements the
// event publisher interface, so it can sit directly behind a runner or be
// added as one more destination on a logging router.
type Feed struct {
	logger  telemetry.Logger
	metrics telemetry.Metrics

	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]chan logging.Event
}

// FeedConfig carries the feed's observability collaborators.
type FeedConfig struct {
	Logger  telemetry.Logger
	Metrics telemetry.Metrics
}

// NewFeed constructs an empty feed.
func NewFeed(cfg FeedConfig) *Feed {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.LoggerFunc(nil)
	}
	return &Feed{
		logger:  logger,
		metrics: cfg.Metrics,
		subs:    map[uint64]chan logging.Event{},
	}
}

var _ logging.Publisher = (*Feed)(nil)

// Publish broadcasts the event to every subscriber. Slow observers lose
// events rather than stall the verification run.
func (f *Feed) Publish(_ context.Context, event logging.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, ch := range f.subs {
		select {
		case ch <- event:
		default:
			f.logger.Printf("feed subscriber %d lagging, dropping event %s", id, event.Type)
			if f.metrics != nil {
				f.metrics.Add(metricFeedDrops, 1)
			}
		}
	}
	if f.metrics != nil {
		f.metrics.Add(metricFeedBroadcasts, 1)
	}
}

func (f *Feed) subscribe() (uint64, chan logging.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := f.nextID
	ch := make(chan logging.Event, subscriberBuffer)
	f.subs[id] = ch
	if f.metrics != nil {
		f.metrics.Store(metricFeedSubscribers, uint64(len(f.subs)))
	}
	return id, ch
}

func (f *Feed) unsubscribe(id uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ch, ok := f.subs[id]; ok {
		delete(f.subs, id)
		close(ch)
	}
	if f.metrics != nil {
		f.metrics.Store(metricFeedSubscribers, uint64(len(f.subs)))
	}
}

// FeedHandler upgrades observers onto the feed.
type FeedHandler struct {
	feed     *Feed
	logger   telemetry.Logger
	upgrader websocket.Upgrader
}

// NewFeedHandler constructs the websocket endpoint for a feed.
func NewFeedHandler(feed *Feed, logger telemetry.Logger) *FeedHandler {
	if logger == nil {
		logger = telemetry.LoggerFunc(nil)
	}
	return &FeedHandler{
		feed:   feed,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *nethttp.Request) bool {
				return true
			},
		},
	}
}

type helloMessage struct {
	Type       string `json:"type"`
	ServerTime int64  `json:"serverTime"`
}

type eventMessage struct {
	Type  string        `json:"type"`
	Event logging.Event `json:"event"`
}

// Handle upgrades the request and streams events until the observer hangs
// up. Inbound messages are ignored; the feed is one-way.
func (h *FeedHandler) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("feed upgrade failed: %v", err)
		return
	}
	id, events := h.feed.subscribe()
	defer h.feed.unsubscribe(id)
	defer conn.Close()

	hello, err := json.Marshal(helloMessage{Type: "hello", ServerTime: time.Now().UnixMilli()})
	if err != nil {
		h.logger.Printf("feed %d: marshal hello: %v", id, err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, hello); err != nil {
		return
	}

	// Drain the read side so client close frames are processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(eventMessage{Type: "event", Event: event})
			if err != nil {
				h.logger.Printf("feed %d: marshal event %s: %v", id, event.Type, err)
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}
}
