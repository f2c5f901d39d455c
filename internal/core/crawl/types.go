package crawl

import "strconv"

// Status is the lifecycle state of a crawl. A crawl starts as new, is moved
// to running by Start, and ends as stopped (explicit) or done (quiescence).
// Neither terminal state can be restarted.
type Status string

const (
	StatusNew     Status = "new"
	StatusRunning Status = "running"
	StatusStopped Status = "stopped"
	StatusDone    Status = "done"
)

// ScopeType controls which discovered links are in scope for a crawl.
type ScopeType string

const (
	ScopeAllLinks   ScopeType = "all-links"
	ScopeSameDomain ScopeType = "same-domain"
	ScopeNone       ScopeType = "none"
)

// Info is the crawl record persisted as a Redis hash under a:<id>:info.
type Info struct {
	ID          string    `json:"id"`
	Status      Status    `json:"status"`
	ScopeType   ScopeType `json:"scope_type"`
	CrawlDepth  int       `json:"crawl_depth"`
	NumBrowsers int       `json:"num_browsers"`
	NumTabs     int       `json:"num_tabs"`
}

// toHash flattens the record into the string fields stored in the info hash.
func (i Info) toHash() map[string]interface{} {
	return map[string]interface{}{
		"id":           i.ID,
		"status":       string(i.Status),
		"scope_type":   string(i.ScopeType),
		"crawl_depth":  strconv.Itoa(i.CrawlDepth),
		"num_browsers": strconv.Itoa(i.NumBrowsers),
		"num_tabs":     strconv.Itoa(i.NumTabs),
	}
}

// infoFromHash validates and decodes a stored info hash. Records missing
// required fields, or carrying unparseable counters, are reported as corrupt
// rather than trusted.
func infoFromHash(h map[string]string) (Info, error) {
	id := h["id"]
	status := h["status"]
	if id == "" || status == "" {
		return Info{}, ErrCorrupt
	}

	depth, err := strconv.Atoi(h["crawl_depth"])
	if err != nil {
		return Info{}, ErrCorrupt
	}
	numBrowsers, err := strconv.Atoi(h["num_browsers"])
	if err != nil {
		return Info{}, ErrCorrupt
	}
	numTabs, err := strconv.Atoi(h["num_tabs"])
	if err != nil {
		return Info{}, ErrCorrupt
	}

	return Info{
		ID:          id,
		Status:      Status(status),
		ScopeType:   ScopeType(h["scope_type"]),
		CrawlDepth:  depth,
		NumBrowsers: numBrowsers,
		NumTabs:     numTabs,
	}, nil
}

// URLItem is one frontier work item: a URL and the depth it was found at.
// Seed URLs always enter at depth 0.
type URLItem struct {
	URL   string `json:"url"`
	Depth int    `json:"depth"`
}

// scopeEntry is the JSON shape of one scope set member.
type scopeEntry struct {
	Domain string `json:"domain"`
}

// CreateRequest is the body of POST /crawls.
type CreateRequest struct {
	ScopeType   ScopeType `json:"scope_type"`
	NumBrowsers int       `json:"num_browsers"`
	NumTabs     int       `json:"num_tabs"`
}

// StartRequest is the body of POST /crawl/:id/start.
type StartRequest struct {
	Browser             string                 `json:"browser"`
	UserParams          map[string]interface{} `json:"user_params"`
	BehaviorTimeout     int                    `json:"behavior_timeout"`
	ScreenshotTargetURI string                 `json:"screenshot_target_uri"`
	Headless            bool                   `json:"headless"`
}

// QueueURLsRequest is the body of PUT /crawl/:id/urls.
type QueueURLsRequest struct {
	URLs []string `json:"urls"`
}

// FullInfo is the record plus the live worker membership sets, as returned
// by GET /crawl/:id.
type FullInfo struct {
	Info
	Browsers     []string `json:"browsers"`
	BrowsersDone []string `json:"browsers_done"`
}

// URLInfo is the frontier/scope/pending/seen snapshot returned by
// GET /crawl/:id/urls.
type URLInfo struct {
	Scopes  []scopeEntry `json:"scopes"`
	Queue   []URLItem    `json:"queue"`
	Pending []string     `json:"pending"`
	Seen    []string     `json:"seen"`
}

type CreateResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
}

type StartResponse struct {
	Success  bool     `json:"success"`
	Browsers []string `json:"browsers"`
}

type DoneResponse struct {
	Done bool `json:"done"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}

type ListResponse struct {
	Crawls []FullInfo `json:"crawls"`
}
