package crawl

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	redisv8 "github.com/go-redis/redis/v8"

	"crawlmanager/internal/config"
	rds "crawlmanager/internal/platform/redis"
	"crawlmanager/internal/platform/shepherd"
)

// fakeShepherd is a scriptable stand-in for the worker orchestrator. Each
// request_flock call consumes the next queued response; start/stop replies
// are looked up per request id.
type fakeShepherd struct {
	mu sync.Mutex

	requestQueue []shepherd.FlockResponse
	startErrors  map[string]string
	stopErrors   map[string]string

	requestCalls int
	startCalls   []string
	stopCalls    []string

	lastOptions shepherd.FlockOptions

	srv *httptest.Server
}

func newFakeShepherd(t *testing.T) *fakeShepherd {
	t.Helper()
	f := &fakeShepherd{
		startErrors: map[string]string{},
		stopErrors:  map[string]string{},
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeShepherd) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var res shepherd.FlockResponse
	switch {
	case strings.HasPrefix(r.URL.Path, "/api/request_flock/"):
		f.requestCalls++
		_ = json.NewDecoder(r.Body).Decode(&f.lastOptions)
		if len(f.requestQueue) > 0 {
			res = f.requestQueue[0]
			f.requestQueue = f.requestQueue[1:]
		}
	case strings.HasPrefix(r.URL.Path, "/api/start_flock/"):
		reqID := strings.TrimPrefix(r.URL.Path, "/api/start_flock/")
		f.startCalls = append(f.startCalls, reqID)
		res.Error = f.startErrors[reqID]
	case strings.HasPrefix(r.URL.Path, "/api/stop_flock/"):
		reqID := strings.TrimPrefix(r.URL.Path, "/api/stop_flock/")
		f.stopCalls = append(f.stopCalls, reqID)
		res.Error = f.stopErrors[reqID]
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(res)
}

func (f *fakeShepherd) queueRequestResponse(res shepherd.FlockResponse) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requestQueue = append(f.requestQueue, res)
}

func (f *fakeShepherd) options() shepherd.FlockOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastOptions
}

func (f *fakeShepherd) counts() (requests int, starts, stops []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requestCalls, append([]string(nil), f.startCalls...), append([]string(nil), f.stopCalls...)
}

func testConfig() config.Config {
	return config.Config{
		RedisURL:        "redis://localhost",
		DefaultBrowser:  "chrome:76",
		NumBrowsers:     2,
		SameDomainDepth: 100,
		BehaviorAPIURL:  "http://behaviors:3030",
	}
}

// newTestRegistry wires a Registry against an in-process Redis and the fake
// orchestrator.
func newTestRegistry(t *testing.T, f *fakeShepherd) (*Registry, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redisv8.NewClient(&redisv8.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	var sh *shepherd.Client
	if f != nil {
		sh = shepherd.New(shepherd.Options{BaseURL: f.srv.URL, Flock: "browsers"})
	}

	return NewRegistry(rds.NewFromClient(client), sh, testConfig()), mr
}

// mustCreate creates a crawl and returns its loaded coordinator.
func mustCreate(t *testing.T, reg *Registry, req CreateRequest) *Crawl {
	t.Helper()
	ctx := context.Background()
	id, err := reg.Create(ctx, req)
	if err != nil {
		t.Fatalf("create crawl: %v", err)
	}
	c, err := reg.Load(ctx, id)
	if err != nil {
		t.Fatalf("load crawl: %v", err)
	}
	return c
}
