package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordCheckRunAndFeedEvents(t *testing.T) {
	m := NewClientMetrics("plagctl")

	m.RecordCheckRun("queue", "completed", 12)
	m.RecordCheckRun("queue", "completed", 3)
	m.RecordCheckRun("all", "failed", 1)
	m.RecordFeedEvent("message")
	m.RecordFeedEvent("")

	if got := testutil.ToFloat64(m.checkRunsTotal.WithLabelValues("plagctl", "queue", "completed")); got != 2 {
		t.Fatalf("expected 2 completed queue runs, got %v", got)
	}
	if got := testutil.ToFloat64(m.feedEventsTotal.WithLabelValues("plagctl", "unknown")); got != 1 {
		t.Fatalf("expected unknown kind counted once, got %v", got)
	}
	if got := testutil.CollectAndCount(m.checkDuration); got != 2 {
		t.Fatalf("expected two duration series, got %d", got)
	}
}

func TestInstrumentTransportCountsRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/documents/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = io.WriteString(w, "[]")
	}))
	defer server.Close()

	m := NewClientMetrics("plagctl")
	client := &http.Client{Transport: m.InstrumentTransport(nil)}

	for _, path := range []string{"/get_all_pdf_metadata", "/documents/65f1a2b3c4d5e6f7a8b9c0d1", "/documents/42"} {
		resp, err := client.Get(server.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
	}

	if got := testutil.ToFloat64(m.requestTotal.WithLabelValues("plagctl", "GET", "/documents/{id}", "404")); got != 2 {
		t.Fatalf("expected ids folded into one series, got %v", got)
	}
	if got := testutil.ToFloat64(m.requestTotal.WithLabelValues("plagctl", "GET", "/get_all_pdf_metadata", "200")); got != 1 {
		t.Fatalf("expected one listing request, got %v", got)
	}
	if got := testutil.ToFloat64(m.requestInFlight); got != 0 {
		t.Fatalf("in-flight gauge should return to zero, got %v", got)
	}
}

func TestInstrumentTransportRecordsTransportErrors(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	m := NewClientMetrics("plagctl")
	client := &http.Client{Transport: m.InstrumentTransport(nil)}
	if _, err := client.Get(url + "/api/ngrok-url"); err == nil {
		t.Fatalf("expected transport error")
	}
	if got := testutil.ToFloat64(m.requestTotal.WithLabelValues("plagctl", "GET", "/api/ngrok-url", "error")); got != 1 {
		t.Fatalf("expected error outcome counted, got %v", got)
	}
}

func TestRecordBreakerState(t *testing.T) {
	m := NewClientMetrics("plagctl")

	m.RecordBreakerState("documents.list", "closed", "open")
	if got := testutil.ToFloat64(m.breakerOpen.WithLabelValues("plagctl", "documents.list")); got != 1 {
		t.Fatalf("expected open breaker gauge, got %v", got)
	}
	m.RecordBreakerState("documents.list", "half-open", "closed")
	if got := testutil.ToFloat64(m.breakerOpen.WithLabelValues("plagctl", "documents.list")); got != 0 {
		t.Fatalf("expected closed breaker gauge, got %v", got)
	}
}
