package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCollyFetcherFetch(t *testing.T) {
	t.Parallel()

	var gotUA, gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.UserAgent()
		gotHeader = r.Header.Get("X-Source-Token")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><td>132.4</td></html>"))
	}))
	defer srv.Close()

	f := NewCollyFetcher(CollyConfig{UserAgent: "collector-test/1.0", Timeout: 5 * time.Second})
	headers := http.Header{}
	headers.Set("X-Source-Token", "abc")

	resp, err := f.Fetch(context.Background(), FetchRequest{URL: srv.URL, Headers: headers})
	require.NoError(t, err)

	require.Equal(t, 200, resp.StatusCode)
	require.Contains(t, string(resp.Body), "132.4")
	require.Equal(t, "text/html; charset=utf-8", resp.Headers.Get("Content-Type"))
	require.Positive(t, resp.Duration)

	require.Equal(t, "collector-test/1.0", gotUA)
	require.Equal(t, "abc", gotHeader)
}

func TestCollyFetcherReportsHTTPErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewCollyFetcher(CollyConfig{Timeout: 5 * time.Second})
	_, err := f.Fetch(context.Background(), FetchRequest{URL: srv.URL})
	require.Error(t, err)
}

func TestCollyFetcherRespectsContext(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	f := NewCollyFetcher(CollyConfig{Timeout: 30 * time.Second})
	_, err := f.Fetch(ctx, FetchRequest{URL: srv.URL})
	require.ErrorContains(t, err, "fetch canceled")
}
