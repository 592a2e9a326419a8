package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openquant/collector/internal/metrics"
	"github.com/openquant/collector/internal/module"
)

func TestMain(m *testing.M) {
	metrics.Init()
	os.Exit(m.Run())
}

type fakeStore struct {
	mu      sync.Mutex
	records []Record
	pingErr error
	saveErr error
}

func (s *fakeStore) SaveRecord(_ context.Context, rec Record) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return "", s.saveErr
	}
	s.records = append(s.records, rec)
	return rec.ID, nil
}

func (s *fakeStore) Ping(context.Context) error { return s.pingErr }

func (s *fakeStore) stored() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Record(nil), s.records...)
}

type fakeArchive struct {
	mu   sync.Mutex
	keys []string
}

func (a *fakeArchive) Put(_ context.Context, key string, _ string, _ []byte) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.keys = append(a.keys, key)
	return "fake://" + key, nil
}

type published struct {
	topic   string
	payload map[string]any
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []published
}

func (p *fakePublisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	body, _ := payload.(map[string]any)
	p.messages = append(p.messages, published{topic: topic, payload: body})
	return fmt.Sprintf("msg-%d", len(p.messages)), nil
}

func (p *fakePublisher) sent() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.messages...)
}

type fixedClock struct{ at time.Time }

func (c fixedClock) Now() time.Time { return c.at }

type staticHasher struct{}

func (staticHasher) Hash([]byte) (string, error) { return "deadbeefdeadbeef", nil }

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDs) NewID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("id-%d", g.n), nil
}

func newTestModule(t *testing.T, jobs <-chan Job, store *fakeStore, arch *fakeArchive, pub *fakePublisher) *Module {
	t.Helper()
	m, err := New(Deps{
		Jobs:      jobs,
		Store:     store,
		Archive:   arch,
		Publisher: pub,
		Clock:     fixedClock{at: time.Date(2023, 10, 14, 12, 0, 0, 0, time.UTC)},
		Hasher:    staticHasher{},
		IDs:       &seqIDs{},
		Logger:    zap.NewNop(),
	})
	require.NoError(t, err)
	require.NoError(t, m.Initialize(context.Background(), map[string]any{
		"workers":       1,
		"topic":         "records",
		"fetch_timeout": "5s",
	}))
	return m
}

func TestModuleCollectsFromSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<table>
			<td class="value" data-period="2023-09">131.9</td>
			<td class="value" data-period="2023-10">132.4</td>
		</table>`))
	}))
	defer srv.Close()

	jobs := make(chan Job, 1)
	store := &fakeStore{}
	arch := &fakeArchive{}
	pub := &fakePublisher{}
	m := newTestModule(t, jobs, store, arch, pub)

	ctx := context.Background()
	require.NoError(t, m.Start(ctx))
	defer func() { require.NoError(t, m.Stop(ctx)) }()

	jobs <- Job{ID: "job-1", Source: Source{
		Name:     "ons-cpi",
		URL:      srv.URL,
		Series:   "cpi.food.monthly",
		Currency: "GBP",
		Selector: "td.value",
	}}

	require.Eventually(t, func() bool { return len(store.stored()) == 2 }, 5*time.Second, 10*time.Millisecond)

	records := store.stored()
	require.Equal(t, "id-1", records[0].ID)
	require.Equal(t, "2023-09", records[0].Period)
	require.Equal(t, 131.9, records[0].Value)
	require.Equal(t, "deadbeefdeadbeef", records[0].Hash)
	require.Equal(t, "fake://ons-cpi/2023/10/14/deadbeefdead.html", records[0].BlobURI)
	require.Equal(t, time.Date(2023, 10, 14, 12, 0, 0, 0, time.UTC), records[0].CollectedAt)

	require.Eventually(t, func() bool { return len(pub.sent()) == 1 }, 5*time.Second, 10*time.Millisecond)
	msg := pub.sent()[0]
	require.Equal(t, "records", msg.topic)
	require.Equal(t, "job-1", msg.payload["job_id"])
	require.Equal(t, "ons-cpi", msg.payload["source"])
	require.Equal(t, []string{"id-1", "id-2"}, msg.payload["record_ids"])
}

func TestModuleCountsFailedJobs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	jobs := make(chan Job, 1)
	store := &fakeStore{}
	m := newTestModule(t, jobs, store, &fakeArchive{}, &fakePublisher{})

	ctx := context.Background()
	require.NoError(t, m.Start(ctx))
	defer func() { require.NoError(t, m.Stop(ctx)) }()

	jobs <- Job{ID: "job-1", Source: Source{Name: "ons-cpi", URL: srv.URL, Selector: "td.value"}}

	require.Eventually(t, func() bool { return m.failed.Load() == 1 }, 5*time.Second, 10*time.Millisecond)
	require.Empty(t, store.stored())

	health, err := m.HealthCheck(ctx)
	require.NoError(t, err)
	require.Equal(t, module.StatusHealthy, health.Status)
	require.Contains(t, health.Details, "last_error")
}

func TestModuleHealthUnhealthyWhenStoreUnreachable(t *testing.T) {
	jobs := make(chan Job)
	store := &fakeStore{pingErr: fmt.Errorf("connection refused")}
	m := newTestModule(t, jobs, store, &fakeArchive{}, &fakePublisher{})

	health, err := m.HealthCheck(context.Background())
	require.NoError(t, err)
	require.Equal(t, module.StatusUnhealthy, health.Status)
}

func TestModuleRequiresHeadlessPoolForHeadlessSource(t *testing.T) {
	jobs := make(chan Job, 1)
	m := newTestModule(t, jobs, &fakeStore{}, &fakeArchive{}, &fakePublisher{})

	_, err := m.fetch(context.Background(), Source{Name: "spa", URL: "https://example.com", Headless: true})
	require.ErrorContains(t, err, "headless_parallel is 0")
}

func TestModuleStopWaitsForWorkers(t *testing.T) {
	jobs := make(chan Job)
	m := newTestModule(t, jobs, &fakeStore{}, &fakeArchive{}, &fakePublisher{})

	ctx := context.Background()
	require.NoError(t, m.Start(ctx))

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, m.Stop(stopCtx))
}
