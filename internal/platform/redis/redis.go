package redis

import (
	"context"
	"fmt"
	"time"

	redisv8 "github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"

	"crawlmanager/internal/logger"
)

type Options struct {
	Addr     string
	Password string
}

// Service wraps the shared Redis client. Every piece of crawl state lives
// behind it: the crawl info hash, the frontier list, and the seen/pending/
// scope/browser sets. The engine relies only on single-key atomicity.
type Service struct {
	client *redisv8.Client
	log    *logger.Logger
}

func New(opts Options) (*Service, error) {
	c := redisv8.NewClient(&redisv8.Options{Addr: opts.Addr, Password: opts.Password})
	if err := c.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return &Service{client: c, log: logger.New("Redis")}, nil
}

// NewFromClient wraps an existing client; used by tests running against
// an in-process server.
func NewFromClient(c *redisv8.Client) *Service {
	return &Service{client: c, log: logger.New("Redis")}
}

func (s *Service) Close() error            { return s.client.Close() }
func (s *Service) Client() *redisv8.Client { return s.client }

func (s *Service) HealthCheck(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		s.log.LogErrorf("Redis health check failed: %v", err)
		return fmt.Errorf("redis ping failed: %v", err)
	}

	testKey := "health:test:" + time.Now().Format("20060102150405")
	testValue := "ok"

	err := s.client.Set(ctx, testKey, testValue, 10*time.Second).Err()
	if err != nil {
		return fmt.Errorf("redis write test failed: %v", err)
	}

	val, err := s.client.Get(ctx, testKey).Result()
	if err != nil {
		return fmt.Errorf("redis read test failed: %v", err)
	}

	if val != testValue {
		return fmt.Errorf("redis value mismatch: got %s, want %s", val, testValue)
	}

	_ = s.client.Del(ctx, testKey).Err()

	return nil
}

func (s *Service) AsynqRedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: s.client.Options().Addr, Password: s.client.Options().Password}
}
