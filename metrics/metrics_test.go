package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/icodeforyou/bessquote/quote"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

const testDoc = `{"signature":"abc","seal":"def","timestamp":"2026-03-10T12:00:00Z","confidence":"verified",
"payload":{"options":[],"deviations":[{"tier":"Starter","equipment":"solar"},{"tier":"Enterprise","equipment":"solar"}],
"degradations":[{"dependency":"utility-rates"}]}}`

func TestObserveQuote(t *testing.T) {
	m := New(prometheus.NewRegistry())

	q, err := quote.ParseQuote([]byte(testDoc))
	if err != nil {
		t.Fatal(err)
	}
	m.ObserveQuote(quote.Response{State: quote.StateAuthenticated, Quote: q}, 200*time.Millisecond)
	m.ObserveQuote(quote.Response{
		State:     quote.StateRejected,
		Rejection: &quote.RejectionResult{Reason: "industry is required", Field: "industry"},
	}, time.Millisecond)

	tests := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"authenticated", m.quotes.WithLabelValues("authenticated", "verified"), 1},
		{"rejected", m.quotes.WithLabelValues("rejected", ""), 1},
		{"rejection field", m.rejections.WithLabelValues("industry"), 1},
		{"deviations", m.deviations.WithLabelValues("solar"), 2},
		{"degradations", m.degradations.WithLabelValues("utility-rates"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := testutil.ToFloat64(tt.c); got != tt.want {
				t.Errorf("got %f, wanted %f", got, tt.want)
			}
		})
	}
}

func TestHandler(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveBroadcast("mqtt", errors.New("offline"))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `bessquote_broadcasts_total{channel="mqtt",result="error"} 1`) {
		t.Errorf("metric missing from output:\n%s", body)
	}
}
