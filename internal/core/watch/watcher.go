// Package watch polls running crawls for quiescence in the background, so
// completion is still detected when no client is polling the done endpoint.
package watch

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/hibiken/asynq"

	"crawlmanager/internal/core/crawl"
	"crawlmanager/internal/logger"
)

const TaskTypeWatch = "crawl:watch"

type watchPayload struct {
	CrawlID string `json:"crawl_id"`
}

// Enqueuer schedules a task for later processing. Satisfied by tasks.Client.
type Enqueuer interface {
	EnqueueIn(task *asynq.Task, d time.Duration, queue string, maxRetries int) error
}

// Watcher re-checks a crawl's completion on an interval. Each check is one
// task; a crawl that is still running schedules the next check. The chain
// ends when the crawl is done, stopped, or deleted.
type Watcher struct {
	reg        *crawl.Registry
	tasks      Enqueuer
	interval   time.Duration
	maxRetries int
	log        *logger.Logger
}

func NewWatcher(reg *crawl.Registry, tasks Enqueuer, interval time.Duration, maxRetries int) *Watcher {
	return &Watcher{
		reg:        reg,
		tasks:      tasks,
		interval:   interval,
		maxRetries: maxRetries,
		log:        logger.New("Watcher"),
	}
}

// Schedule queues the first completion check for a crawl. Called after a
// successful start; a scheduling failure is logged, never fatal, since
// clients can always poll the done endpoint themselves.
func (w *Watcher) Schedule(ctx context.Context, crawlID string) {
	if err := w.schedule(crawlID); err != nil {
		w.log.LogErrorf("could not schedule watch for crawl %s: %v", crawlID, err)
	}
}

func (w *Watcher) schedule(crawlID string) error {
	payload, err := json.Marshal(watchPayload{CrawlID: crawlID})
	if err != nil {
		return err
	}
	return w.tasks.EnqueueIn(asynq.NewTask(TaskTypeWatch, payload), w.interval, "default", w.maxRetries)
}

// HandleWatchTask is the asynq handler for one completion check.
func (w *Watcher) HandleWatchTask(ctx context.Context, task *asynq.Task) error {
	var p watchPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return err
	}

	c, err := w.reg.Load(ctx, p.CrawlID)
	if err != nil {
		// deleted or unreadable crawls end the watch chain
		if errors.Is(err, crawl.ErrNotFound) || errors.Is(err, crawl.ErrCorrupt) {
			w.log.LogDebugf("crawl %s gone, ending watch", p.CrawlID)
			return nil
		}
		return err
	}

	done, err := c.IsDone(ctx)
	if err != nil {
		return err
	}
	if done {
		w.log.LogInfof("crawl %s is done", p.CrawlID)
		return nil
	}
	if c.Model().Status != crawl.StatusRunning {
		w.log.LogDebugf("crawl %s no longer running, ending watch", p.CrawlID)
		return nil
	}

	return w.schedule(p.CrawlID)
}
