package tasks

import (
	"time"

	"github.com/hibiken/asynq"

	"crawlmanager/internal/platform/redis"
)

type Client struct{ c *asynq.Client }

func New(r *redis.Service) *Client { return &Client{c: asynq.NewClient(r.AsynqRedisOpt())} }

func (t *Client) Enqueue(task *asynq.Task, queue string, maxRetries int) error {
	_, err := t.c.Enqueue(task, asynq.Queue(queue), asynq.MaxRetry(maxRetries))
	return err
}

// EnqueueIn schedules a task for processing after the given delay.
func (t *Client) EnqueueIn(task *asynq.Task, d time.Duration, queue string, maxRetries int) error {
	_, err := t.c.Enqueue(task, asynq.Queue(queue), asynq.MaxRetry(maxRetries), asynq.ProcessIn(d))
	return err
}

func (t *Client) Close() error { return t.c.Close() }
