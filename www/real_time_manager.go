package www

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/icodeforyou/bessquote/metrics"
	"github.com/icodeforyou/bessquote/notify"
	"github.com/icodeforyou/bessquote/quote"
)

// Publisher forwards quote summaries outside the process, implemented by
// notify.MqttPublisher.
type Publisher interface {
	Publish(s notify.Summary) error
}

// RealTimeManager tells websocket listeners and the publisher about every
// stored quote.
type RealTimeManager struct {
	logger    *slog.Logger
	hub       *Hub
	publisher Publisher // nil when publishing is disabled
	metrics   *metrics.Metrics
	wg        sync.WaitGroup
}

func NewRealTimeManager(hub *Hub, publisher Publisher, m *metrics.Metrics) *RealTimeManager {
	return &RealTimeManager{
		logger:    slog.Default().With("module", "real_time_manager"),
		hub:       hub,
		publisher: publisher,
		metrics:   m,
	}
}

// Announce never blocks on the publisher.
func (m *RealTimeManager) Announce(id, industry string, q *quote.AuthenticatedQuote) {
	s, err := notify.Summarize(id, industry, q)
	if err != nil {
		m.logger.Error("summarizing quote failed", slog.String("id", id), slog.Any("error", err))
		return
	}

	buf, err := json.Marshal(s)
	if err != nil {
		m.logger.Error("encoding summary failed", slog.String("id", id), slog.Any("error", err))
		return
	}
	if m.hub.Send(industry, buf) {
		m.metrics.ObserveBroadcast("websocket", nil)
	}

	if m.publisher == nil {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		err := m.publisher.Publish(s)
		m.metrics.ObserveBroadcast("mqtt", err)
		if err != nil {
			m.logger.Warn("publishing quote summary failed", slog.String("id", id), slog.Any("error", err))
		}
	}()
}

// Wait blocks until pending publishes are done.
func (m *RealTimeManager) Wait() {
	m.wg.Wait()
}
