package crawl

import (
	"context"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/google/uuid"

	"crawlmanager/internal/config"
	"crawlmanager/internal/logger"
	rds "crawlmanager/internal/platform/redis"
	"crawlmanager/internal/platform/shepherd"
)

// Registry owns the crawl-id to crawl-record mapping. It creates and loads
// crawl records, enumerates them, and brokers every call to the worker
// orchestrator on behalf of the per-crawl coordinators.
type Registry struct {
	redis    *rds.Service
	shepherd *shepherd.Client
	cfg      config.Config
	log      *logger.Logger
}

func NewRegistry(redis *rds.Service, sh *shepherd.Client, cfg config.Config) *Registry {
	return &Registry{redis: redis, shepherd: sh, cfg: cfg, log: logger.New("Registry")}
}

// NewCrawlID returns a fresh crawl identifier: the last 12 hex characters of
// a random UUID. Globally unique with overwhelming probability, never reused.
func NewCrawlID() string {
	u := uuid.New()
	h := hex.EncodeToString(u[:])
	return h[len(h)-12:]
}

// Create persists a new crawl record with status "new" and returns its id.
// The crawl depth is derived from the scope type.
func (r *Registry) Create(ctx context.Context, req CreateRequest) (string, error) {
	id := NewCrawlID()

	var depth int
	switch req.ScopeType {
	case ScopeAllLinks:
		depth = 1
	case ScopeSameDomain:
		depth = r.cfg.SameDomainDepth
	default:
		depth = 0
	}

	numBrowsers := req.NumBrowsers
	if numBrowsers < 1 {
		numBrowsers = r.cfg.NumBrowsers
	}
	numTabs := req.NumTabs
	if numTabs < 1 {
		numTabs = 1
	}

	info := Info{
		ID:          id,
		Status:      StatusNew,
		ScopeType:   req.ScopeType,
		CrawlDepth:  depth,
		NumBrowsers: numBrowsers,
		NumTabs:     numTabs,
	}

	if err := r.redis.Client().HSet(ctx, infoKey(id), info.toHash()).Err(); err != nil {
		return "", err
	}

	r.log.LogInfof("created crawl %s (scope=%s browsers=%d)", id, req.ScopeType, numBrowsers)
	return id, nil
}

// Load fetches the crawl record for id and binds a coordinator to the
// snapshot. Callers holding the handle across long gaps must re-load before
// trusting the status again.
func (r *Registry) Load(ctx context.Context, id string) (*Crawl, error) {
	h, err := r.redis.Client().HGetAll(ctx, infoKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(h) == 0 {
		return nil, ErrNotFound
	}

	info, err := infoFromHash(h)
	if err != nil {
		return nil, err
	}

	return newCrawl(id, info, r), nil
}

// ListAll enumerates every crawl record in the store. A crawl deleted while
// the scan is in flight is skipped, not an error; partial results are fine.
func (r *Registry) ListAll(ctx context.Context) ([]FullInfo, error) {
	infos := []FullInfo{}

	iter := r.redis.Client().Scan(ctx, 0, scanPattern, 0).Iterator()
	for iter.Next(ctx) {
		parts := strings.SplitN(iter.Val(), ":", 3)
		if len(parts) != 3 {
			continue
		}
		id := parts[1]

		c, err := r.Load(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) || errors.Is(err, ErrCorrupt) {
				continue
			}
			return nil, err
		}

		info, err := c.FullInfo(ctx)
		if err != nil {
			if errors.Is(err, ErrNotFound) || errors.Is(err, ErrCorrupt) {
				continue
			}
			return nil, err
		}
		infos = append(infos, info)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}

	return infos, nil
}

// RequestFlock forwards a worker-group provisioning request to the
// orchestrator. Any error field in the response is surfaced untouched.
func (r *Registry) RequestFlock(ctx context.Context, opts shepherd.FlockOptions) (shepherd.FlockResponse, error) {
	return r.shepherd.RequestFlock(ctx, opts)
}

// StartFlock forwards a worker-group start request to the orchestrator.
func (r *Registry) StartFlock(ctx context.Context, reqID string) (shepherd.FlockResponse, error) {
	return r.shepherd.StartFlock(ctx, reqID)
}

// StopFlock forwards a worker-group stop request to the orchestrator.
func (r *Registry) StopFlock(ctx context.Context, reqID string) (shepherd.FlockResponse, error) {
	return r.shepherd.StopFlock(ctx, reqID)
}
