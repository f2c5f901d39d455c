package server

import (
	"github.com/gofiber/fiber/v2"

	"crawlmanager/internal/core/crawl"
	"crawlmanager/internal/health"
	"crawlmanager/internal/platform/redis"
)

type Dependencies struct {
	Crawl *crawl.Handler
	Redis *redis.Service
}

func RegisterRoutes(app *fiber.App, d Dependencies) *health.HealthHandler {
	healthHandler := health.NewHealthHandler(d.Redis)
	app.Get("/v1/health", health.HealthLimiter(), healthHandler.HandleHealth)

	app.Post("/crawls", d.Crawl.HandleCreateCrawl)
	app.Get("/crawls", d.Crawl.HandleListCrawls)

	one := app.Group("/crawl")
	one.Get("/:crawlId", d.Crawl.HandleGetCrawl)
	one.Get("/:crawlId/urls", d.Crawl.HandleGetCrawlURLs)
	one.Put("/:crawlId/urls", d.Crawl.HandleQueueURLs)
	one.Post("/:crawlId/start", d.Crawl.HandleStartCrawl)
	one.Post("/:crawlId/stop", d.Crawl.HandleStopCrawl)
	one.Get("/:crawlId/done", d.Crawl.HandleIsDone)
	one.Delete("/:crawlId", d.Crawl.HandleDeleteCrawl)

	return healthHandler
}
