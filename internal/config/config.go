package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	AppEnv        string `yaml:"app_env"`
	HTTPAddr      string `yaml:"http_addr"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisURL      string `yaml:"redis_url"`

	ShepherdURL string `yaml:"shepherd_url"`
	FlockName   string `yaml:"flock"`
	Pool        string `yaml:"pool"`

	DefaultBrowser  string `yaml:"default_browser"`
	NumBrowsers     int    `yaml:"num_browsers"`
	SameDomainDepth int    `yaml:"same_domain_depth"`

	BehaviorAPIURL   string `yaml:"behavior_api_url"`
	ScreenshotAPIURL string `yaml:"screenshot_api_url"`

	WatchInterval  time.Duration `yaml:"watch_interval"`
	TaskMaxRetries int           `yaml:"task_max_retries"`
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

// Load builds the configuration from the environment. When CONFIG_FILE points
// at a YAML file, its non-zero fields override the environment-derived values.
func Load() Config {
	cfg := Config{
		AppEnv:        getenv("APP_ENV", "development"),
		HTTPAddr:      getenv("HTTP_ADDR", ":8080"),
		RedisAddr:     getenv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisURL:      getenv("REDIS_URL", "redis://localhost"),

		ShepherdURL: getenv("DEFAULT_SHEPHERD", "http://shepherd:9020"),
		FlockName:   getenv("DEFAULT_FLOCK", "browsers"),
		Pool:        os.Getenv("DEFAULT_POOL"),

		DefaultBrowser:  getenv("DEFAULT_BROWSER", "chrome:76"),
		NumBrowsers:     getenvInt("DEFAULT_NUM_BROWSERS", 2),
		SameDomainDepth: getenvInt("DEFAULT_SAME_DOMAIN_DEPTH", 100),

		BehaviorAPIURL:   getenv("BEHAVIOR_API_URL", "http://behaviors:3030"),
		ScreenshotAPIURL: os.Getenv("SCREENSHOT_API_URL"),

		WatchInterval:  time.Duration(getenvInt("WATCH_INTERVAL_SECONDS", 30)) * time.Second,
		TaskMaxRetries: getenvInt("TASK_MAX_RETRIES", 3),
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			panic(fmt.Errorf("config file %s: %w", path, err))
		}
	}

	if cfg.RedisAddr == "" {
		panic(fmt.Errorf("REDIS_ADDR is required"))
	}
	return cfg
}

func (c *Config) applyFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var overlay Config
	if err := yaml.Unmarshal(b, &overlay); err != nil {
		return err
	}
	c.merge(overlay)
	return nil
}

func (c *Config) merge(o Config) {
	if o.AppEnv != "" {
		c.AppEnv = o.AppEnv
	}
	if o.HTTPAddr != "" {
		c.HTTPAddr = o.HTTPAddr
	}
	if o.RedisAddr != "" {
		c.RedisAddr = o.RedisAddr
	}
	if o.RedisPassword != "" {
		c.RedisPassword = o.RedisPassword
	}
	if o.RedisURL != "" {
		c.RedisURL = o.RedisURL
	}
	if o.ShepherdURL != "" {
		c.ShepherdURL = o.ShepherdURL
	}
	if o.FlockName != "" {
		c.FlockName = o.FlockName
	}
	if o.Pool != "" {
		c.Pool = o.Pool
	}
	if o.DefaultBrowser != "" {
		c.DefaultBrowser = o.DefaultBrowser
	}
	if o.NumBrowsers != 0 {
		c.NumBrowsers = o.NumBrowsers
	}
	if o.SameDomainDepth != 0 {
		c.SameDomainDepth = o.SameDomainDepth
	}
	if o.BehaviorAPIURL != "" {
		c.BehaviorAPIURL = o.BehaviorAPIURL
	}
	if o.ScreenshotAPIURL != "" {
		c.ScreenshotAPIURL = o.ScreenshotAPIURL
	}
	if o.WatchInterval != 0 {
		c.WatchInterval = o.WatchInterval
	}
	if o.TaskMaxRetries != 0 {
		c.TaskMaxRetries = o.TaskMaxRetries
	}
}

// ContainerEnviron returns the base environment handed to every worker
// container. Callers copy and extend it per crawl.
func (c Config) ContainerEnviron() map[string]string {
	return map[string]string{
		"URL":                "about:blank",
		"REDIS_URL":          c.RedisURL,
		"WAIT_FOR_Q":         "5",
		"TAB_TYPE":           "CrawlerTab",
		"VNC_PASS":           "pass",
		"IDLE_TIMEOUT":       "",
		"BEHAVIOR_API_URL":   c.BehaviorAPIURL,
		"SCREENSHOT_API_URL": c.ScreenshotAPIURL,
	}
}
