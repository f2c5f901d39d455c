package crawl

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"crawlmanager/internal/logger"
	"crawlmanager/internal/platform/shepherd"
)

// ErrorResponse is the JSON error shape for every crawl endpoint.
type ErrorResponse struct {
	Success bool     `json:"success"`
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

// Handler exposes the registry and coordinator operations over HTTP.
type Handler struct {
	reg *Registry
	log *logger.Logger

	// onStarted, when set, is invoked after a successful start; the watcher
	// uses it to begin polling the crawl for completion.
	onStarted func(ctx context.Context, crawlID string)
}

func NewHandler(reg *Registry, onStarted func(ctx context.Context, crawlID string)) *Handler {
	return &Handler{reg: reg, log: logger.New("CrawlHandler"), onStarted: onStarted}
}

func (h *Handler) HandleCreateCrawl(c *fiber.Ctx) error {
	var req CreateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid body"})
	}

	id, err := h.reg.Create(c.Context(), req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(CreateResponse{Success: true, ID: id})
}

func (h *Handler) HandleListCrawls(c *fiber.Ctx) error {
	infos, err := h.reg.ListAll(c.Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(ListResponse{Crawls: infos})
}

func (h *Handler) HandleGetCrawl(c *fiber.Ctx) error {
	cr, err := h.load(c)
	if err != nil {
		return h.fail(c, err)
	}
	info, err := cr.FullInfo(c.Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(info)
}

func (h *Handler) HandleGetCrawlURLs(c *fiber.Ctx) error {
	cr, err := h.load(c)
	if err != nil {
		return h.fail(c, err)
	}
	info, err := cr.URLInfo(c.Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(info)
}

func (h *Handler) HandleQueueURLs(c *fiber.Ctx) error {
	cr, err := h.load(c)
	if err != nil {
		return h.fail(c, err)
	}

	var req QueueURLsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid body"})
	}

	if err := cr.QueueURLs(c.Context(), req.URLs); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(SuccessResponse{Success: true})
}

func (h *Handler) HandleStartCrawl(c *fiber.Ctx) error {
	cr, err := h.load(c)
	if err != nil {
		return h.fail(c, err)
	}

	var req StartRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid body"})
	}

	browsers, err := cr.Start(c.Context(), req)
	if err != nil {
		return h.fail(c, err)
	}

	if h.onStarted != nil {
		h.onStarted(c.Context(), cr.ID())
	}

	return c.JSON(StartResponse{Success: true, Browsers: browsers})
}

func (h *Handler) HandleStopCrawl(c *fiber.Ctx) error {
	cr, err := h.load(c)
	if err != nil {
		return h.fail(c, err)
	}
	if err := cr.Stop(c.Context()); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(SuccessResponse{Success: true})
}

func (h *Handler) HandleIsDone(c *fiber.Ctx) error {
	cr, err := h.load(c)
	if err != nil {
		return h.fail(c, err)
	}
	done, err := cr.IsDone(c.Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(DoneResponse{Done: done})
}

func (h *Handler) HandleDeleteCrawl(c *fiber.Ctx) error {
	cr, err := h.load(c)
	if err != nil {
		return h.fail(c, err)
	}
	if err := cr.Delete(c.Context()); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(SuccessResponse{Success: true})
}

func (h *Handler) load(c *fiber.Ctx) (*Crawl, error) {
	return h.reg.Load(c.Context(), c.Params("crawlId"))
}

// fail maps domain errors onto HTTP statuses: unknown crawls are 404, state
// machine violations and orchestrator failures are 400, store failures 500.
func (h *Handler) fail(c *fiber.Ctx, err error) error {
	var startErr *StartError
	var stopErr *StopError

	switch {
	case errors.Is(err, ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "not_found"})
	case errors.Is(err, ErrAlreadyRunning):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "already_running"})
	case errors.Is(err, ErrNotRunning):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "not_running"})
	case errors.As(err, &startErr):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "start_failed", Details: startErr.Errors})
	case errors.As(err, &stopErr):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "stop_failed", Details: stopErr.Errors})
	case errors.Is(err, shepherd.ErrUnavailable):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	default:
		h.log.LogError("internal error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}
}
