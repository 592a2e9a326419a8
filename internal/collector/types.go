// Package collector fetches financial data sources and turns their payloads
// into structured records.
package collector

import (
	"context"
	"net/http"
	"time"
)

// Source describes one financial data source to poll.
type Source struct {
	// Name is a short identifier used in logs, metrics, and records.
	Name string `mapstructure:"name" json:"name"`
	// URL is the page or endpoint to fetch.
	URL string `mapstructure:"url" json:"url"`
	// Series names the data series the source feeds, e.g. "cpi.food.monthly".
	Series string `mapstructure:"series" json:"series"`
	// Currency is the ISO 4217 code the source reports in.
	Currency string `mapstructure:"currency" json:"currency"`
	// Selector is the CSS selector matching value cells in the payload.
	Selector string `mapstructure:"selector" json:"selector"`
	// Headless renders the page with a browser before parsing.
	Headless bool `mapstructure:"headless" json:"headless"`
	// Headers are extra request headers sent on every fetch.
	Headers map[string]string `mapstructure:"headers" json:"headers,omitempty"`
}

// Job is one collection request for a source.
type Job struct {
	ID         string
	Source     Source
	EnqueuedAt time.Time
}

// FetchRequest describes a single page retrieval.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse carries the outcome of a fetch.
type FetchResponse struct {
	URL          string
	StatusCode   int
	Headers      http.Header
	Body         []byte
	Duration     time.Duration
	UsedHeadless bool
}

// Record is one observed data point extracted from a source payload.
type Record struct {
	ID          string         `json:"id"`
	Source      string         `json:"source"`
	Series      string         `json:"series"`
	Period      string         `json:"period"`
	Value       float64        `json:"value"`
	Currency    string         `json:"currency"`
	URL         string         `json:"url"`
	Hash        string         `json:"hash"`
	BlobURI     string         `json:"blob_uri,omitempty"`
	CollectedAt time.Time      `json:"collected_at"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Fetcher retrieves one page.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Parser extracts records from a fetched payload.
type Parser interface {
	Parse(source Source, resp FetchResponse) ([]Record, error)
}

// RecordStore persists extracted records.
type RecordStore interface {
	SaveRecord(ctx context.Context, rec Record) (string, error)
	Ping(ctx context.Context) error
}

// Archive stores raw payloads and returns a URI for later replay.
type Archive interface {
	Put(ctx context.Context, key string, contentType string, data []byte) (string, error)
}

// Publisher announces stored records downstream.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock abstracts time.Now for deterministic tests.
type Clock interface {
	Now() time.Time
}

// Hasher computes payload digests for deduplication.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// IDGenerator mints record and job identifiers.
type IDGenerator interface {
	NewID() (string, error)
}
