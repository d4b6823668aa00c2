package metrics

import (
	"net/http"
	"regexp"
	"strconv"
	"time"
)

var idSegment = regexp.MustCompile(`/([0-9a-fA-F]{24}|[0-9]+)(/|$)`)

// InstrumentTransport wraps next so every backend request is counted and
// timed. A nil next uses http.DefaultTransport.
func (m *ClientMetrics) InstrumentTransport(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		start := time.Now()
		path := normalizePath(req.URL.Path)

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		resp, err := next.RoundTrip(req)

		status := "error"
		if err == nil {
			status = strconv.Itoa(resp.StatusCode)
		}
		m.requestTotal.WithLabelValues(m.service, req.Method, path, status).Inc()
		m.requestDuration.WithLabelValues(m.service, req.Method, path).Observe(time.Since(start).Seconds())
		return resp, err
	})
}

// normalizePath folds document and notification ids into one label value.
func normalizePath(path string) string {
	return idSegment.ReplaceAllString(path, "/{id}$2")
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}
