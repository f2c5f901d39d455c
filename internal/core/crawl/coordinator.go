package crawl

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"

	redisv8 "github.com/go-redis/redis/v8"

	"crawlmanager/internal/platform/shepherd"
)

// Crawl coordinates one crawl instance: its status transitions, frontier,
// dedup and scope sets, and worker membership. It holds no in-process locks;
// the engine may run as many independent instances, so all coordination rests
// on single-key Redis atomicity.
type Crawl struct {
	id    string
	model Info
	reg   *Registry

	infoKey        string
	frontierKey    string
	pendingKey     string
	seenKey        string
	scopeKey       string
	browserKey     string
	browserDoneKey string
}

func newCrawl(id string, model Info, reg *Registry) *Crawl {
	return &Crawl{
		id:             id,
		model:          model,
		reg:            reg,
		infoKey:        infoKey(id),
		frontierKey:    frontierKey(id),
		pendingKey:     pendingKey(id),
		seenKey:        seenKey(id),
		scopeKey:       scopeKey(id),
		browserKey:     browserKey(id),
		browserDoneKey: browserDoneKey(id),
	}
}

func (c *Crawl) ID() string  { return c.id }
func (c *Crawl) Model() Info { return c.model }

func (c *Crawl) rdb() *redisv8.Client { return c.reg.redis.Client() }

// QueueURLs appends each URL to the frontier tail, in input order, at depth 0,
// and records it in the seen set. Nothing is checked against the seen set
// first: the set records history, it is not a gate here. Workers consult it
// before re-queueing discovered links.
func (c *Crawl) QueueURLs(ctx context.Context, urls []string) error {
	for _, u := range urls {
		item, err := json.Marshal(URLItem{URL: u, Depth: 0})
		if err != nil {
			return err
		}
		if err := c.rdb().RPush(ctx, c.frontierKey, item).Err(); err != nil {
			return err
		}
		if err := c.rdb().SAdd(ctx, c.seenKey, u).Err(); err != nil {
			return err
		}
	}

	if c.model.ScopeType == ScopeSameDomain {
		return c.initDomainScopes(ctx, urls)
	}

	return nil
}

// initDomainScopes records the distinct network locations (host[:port]) of
// the seed URLs as the crawl's domain scope. Set semantics make repeated
// additions a no-op; the scope is never expanded by this engine afterwards.
func (c *Crawl) initDomainScopes(ctx context.Context, urls []string) error {
	domains := map[string]struct{}{}
	for _, raw := range urls {
		u, err := url.Parse(raw)
		if err != nil {
			continue
		}
		domains[u.Host] = struct{}{}
	}

	for domain := range domains {
		entry, err := json.Marshal(scopeEntry{Domain: domain})
		if err != nil {
			return err
		}
		if err := c.rdb().SAdd(ctx, c.scopeKey, entry).Err(); err != nil {
			return err
		}
	}
	return nil
}

// FullInfo re-reads the crawl record and attaches the current worker
// membership and worker-done sets. Pure read.
func (c *Crawl) FullInfo(ctx context.Context) (FullInfo, error) {
	h, err := c.rdb().HGetAll(ctx, c.infoKey).Result()
	if err != nil {
		return FullInfo{}, err
	}
	if len(h) == 0 {
		return FullInfo{}, ErrNotFound
	}
	info, err := infoFromHash(h)
	if err != nil {
		return FullInfo{}, err
	}

	browsers, err := c.rdb().SMembers(ctx, c.browserKey).Result()
	if err != nil {
		return FullInfo{}, err
	}
	done, err := c.rdb().SMembers(ctx, c.browserDoneKey).Result()
	if err != nil {
		return FullInfo{}, err
	}

	return FullInfo{Info: info, Browsers: browsers, BrowsersDone: done}, nil
}

// URLInfo returns the crawl's scope set, the full frontier in order, and the
// pending and seen sets. Pure read, safe to call concurrently with writers.
func (c *Crawl) URLInfo(ctx context.Context) (URLInfo, error) {
	rawScopes, err := c.rdb().SMembers(ctx, c.scopeKey).Result()
	if err != nil {
		return URLInfo{}, err
	}
	scopes := make([]scopeEntry, 0, len(rawScopes))
	for _, raw := range rawScopes {
		var s scopeEntry
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			continue
		}
		scopes = append(scopes, s)
	}

	rawQueue, err := c.rdb().LRange(ctx, c.frontierKey, 0, -1).Result()
	if err != nil {
		return URLInfo{}, err
	}
	queue := make([]URLItem, 0, len(rawQueue))
	for _, raw := range rawQueue {
		var item URLItem
		if err := json.Unmarshal([]byte(raw), &item); err != nil {
			continue
		}
		queue = append(queue, item)
	}

	pending, err := c.rdb().SMembers(ctx, c.pendingKey).Result()
	if err != nil {
		return URLInfo{}, err
	}
	seen, err := c.rdb().SMembers(ctx, c.seenKey).Result()
	if err != nil {
		return URLInfo{}, err
	}

	return URLInfo{Scopes: scopes, Queue: queue, Pending: pending, Seen: seen}, nil
}

// Start provisions and starts one worker group per requested browser, then
// moves the crawl to running. Per-worker failures are collected rather than
// short-circuiting the loop; if any occurred the whole start fails with the
// aggregated list and the status stays "new". Workers that did start are left
// in the membership set — the caller must reconcile, a retried Start adds
// more on top.
func (c *Crawl) Start(ctx context.Context, req StartRequest) ([]string, error) {
	if c.model.Status == StatusRunning {
		return nil, ErrAlreadyRunning
	}

	browser := req.Browser
	if browser == "" {
		browser = c.reg.cfg.DefaultBrowser
	}

	userParams := req.UserParams
	if userParams == nil {
		userParams = map[string]interface{}{}
	}
	userParams["auto_id"] = c.id

	environ := c.reg.cfg.ContainerEnviron()
	environ["AUTO_ID"] = c.id
	environ["NUM_TABS"] = strconv.Itoa(c.model.NumTabs)
	if req.BehaviorTimeout > 0 {
		environ["BEHAVIOR_RUN_TIME"] = strconv.Itoa(req.BehaviorTimeout)
	}
	if req.ScreenshotTargetURI != "" {
		environ["SCREENSHOT_TARGET_URI"] = req.ScreenshotTargetURI
		environ["SCREENSHOT_FORMAT"] = "png"
	}

	// The automation driver always starts deferred; headless crawls defer the
	// display server as well.
	deferred := map[string]bool{"autodriver": false}
	if req.Headless {
		deferred["xserver"] = true
	}

	opts := shepherd.FlockOptions{
		Overrides: map[string]string{
			"browser": "oldwebtoday/" + browser,
			"xserver": "oldwebtoday/vnc-webrtc-audio",
		},
		Deferred:   deferred,
		UserParams: userParams,
		Environ:    environ,
	}

	var errs []string

	for i := 0; i < c.model.NumBrowsers; i++ {
		res, err := c.reg.RequestFlock(ctx, opts)
		if err != nil {
			return nil, err
		}
		if res.ReqID == "" {
			if res.Error != "" {
				errs = append(errs, res.Error)
			}
			continue
		}

		started, err := c.reg.StartFlock(ctx, res.ReqID)
		if err != nil {
			return nil, err
		}
		if started.Error != "" {
			errs = append(errs, started.Error)
			continue
		}

		if err := c.rdb().SAdd(ctx, c.browserKey, res.ReqID).Err(); err != nil {
			return nil, err
		}
	}

	if len(errs) > 0 {
		return nil, &StartError{Errors: errs}
	}

	if err := c.rdb().HSet(ctx, c.infoKey, "status", string(StatusRunning)).Err(); err != nil {
		return nil, err
	}
	c.model.Status = StatusRunning

	browsers, err := c.rdb().SMembers(ctx, c.browserKey).Result()
	if err != nil {
		return nil, err
	}
	return browsers, nil
}

// Stop asks the orchestrator to stop every worker group in the membership
// set, collecting errors without short-circuiting. Only a fully successful
// stop moves the crawl to stopped; otherwise the status is left at running
// so the caller can retry.
func (c *Crawl) Stop(ctx context.Context) error {
	if c.model.Status != StatusRunning {
		return ErrNotRunning
	}

	browsers, err := c.rdb().SMembers(ctx, c.browserKey).Result()
	if err != nil {
		return err
	}

	var errs []string
	for _, reqID := range browsers {
		res, err := c.reg.StopFlock(ctx, reqID)
		if err != nil {
			return err
		}
		if res.Error != "" {
			errs = append(errs, res.Error)
		}
	}

	if len(errs) > 0 {
		return &StopError{Errors: errs}
	}

	if err := c.rdb().HSet(ctx, c.infoKey, "status", string(StatusStopped)).Err(); err != nil {
		return err
	}
	c.model.Status = StatusStopped

	return nil
}

// IsDone evaluates quiescence: the crawl is done once the frontier is empty,
// no work is pending, and every provisioned worker has signaled completion.
// Cheap signals are checked first so repeated polling stays inexpensive, and
// a done status short-circuits everything. The only side effect is persisting
// the final transition to done.
func (c *Crawl) IsDone(ctx context.Context) (bool, error) {
	if c.model.Status == StatusDone {
		return true, nil
	}

	// a crawl that is new or stopped can never become done
	if c.model.Status != StatusRunning {
		return false, nil
	}

	qlen, err := c.rdb().LLen(ctx, c.frontierKey).Result()
	if err != nil {
		return false, err
	}
	if qlen > 0 {
		return false, nil
	}

	pending, err := c.rdb().SCard(ctx, c.pendingKey).Result()
	if err != nil {
		return false, err
	}
	if pending > 0 {
		return false, nil
	}

	browsers, err := c.rdb().SMembers(ctx, c.browserKey).Result()
	if err != nil {
		return false, err
	}
	done, err := c.rdb().SMembers(ctx, c.browserDoneKey).Result()
	if err != nil {
		return false, err
	}
	if !sameMembers(browsers, done) {
		return false, nil
	}

	if err := c.rdb().HSet(ctx, c.infoKey, "status", string(StatusDone)).Err(); err != nil {
		return false, err
	}
	c.model.Status = StatusDone

	return true, nil
}

// sameMembers reports exact set equality of the two member lists.
func sameMembers(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, m := range a {
		set[m] = struct{}{}
	}
	for _, m := range b {
		if _, ok := set[m]; !ok {
			return false
		}
	}
	return true
}

// Delete tears down the crawl: a running crawl is first stopped best-effort
// (a failed stop does not block deletion), then the record and every
// associated queue and set are removed. Deleting keys that no longer exist
// is a no-op, so Delete is idempotent.
func (c *Crawl) Delete(ctx context.Context) error {
	if c.model.Status == StatusRunning {
		if err := c.Stop(ctx); err != nil {
			c.reg.log.LogWarnf("stop during delete of crawl %s failed: %v", c.id, err)
		}
	}

	keys := []string{
		c.infoKey,
		c.frontierKey,
		c.pendingKey,
		c.seenKey,
		c.scopeKey,
		c.browserKey,
		c.browserDoneKey,
	}
	for _, key := range keys {
		if err := c.rdb().Del(ctx, key).Err(); err != nil {
			return err
		}
	}

	return nil
}
