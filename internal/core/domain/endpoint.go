package domain

type EndpointSource string

const (
	EndpointExplicit EndpointSource = "explicit"
	EndpointCached   EndpointSource = "cached"
	EndpointDefault  EndpointSource = "default"
)

// APIEndpoint is the resolved backend base URL and where it came from.
type APIEndpoint struct {
	Source EndpointSource `json:"source"`
	URL    string         `json:"url"`
}

type DataSource string

const (
	SourceLive  DataSource = "live"
	SourceCache DataSource = "cache"
	SourceMock  DataSource = "mock"
)

// Fetched carries a value together with where it was served from, so callers
// can tell live data from a fallback.
type Fetched[T any] struct {
	Value  T
	Source DataSource
}

func (f Fetched[T]) Degraded() bool {
	return f.Source != SourceLive
}
