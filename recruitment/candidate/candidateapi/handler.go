package candidateapi

import (
	"github.com/Abraxas-365/applyflow/pkg/errx"
	"github.com/Abraxas-365/applyflow/pkg/kernel"
	"github.com/Abraxas-365/applyflow/pkg/logx"
	"github.com/Abraxas-365/applyflow/recruitment/candidate"
	"github.com/Abraxas-365/applyflow/recruitment/candidate/candidatesrv"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers provides HTTP handlers for the read-only candidate API
type Handlers struct {
	service *candidatesrv.QueryService
}

// NewHandlers creates a new candidate handlers instance
func NewHandlers(service *candidatesrv.QueryService) *Handlers {
	return &Handlers{
		service: service,
	}
}

// Index describes the service
// GET /
func (h *Handlers) Index(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service": "applyflow",
		"endpoints": []string{
			"GET /health",
			"GET /candidatures",
			"GET /candidatures/search?first_name=&last_name=",
			"GET /candidatures/similar?q=&limit=",
			"GET /candidatures/:id",
			"GET /metrics",
		},
	})
}

// Health pings the store
// GET /health
func (h *Handlers) Health(c *fiber.Ctx) error {
	if err := h.service.Health(c.UserContext()); err != nil {
		return err
	}
	count, err := h.service.Count(c.UserContext())
	if err != nil {
		return candidate.ErrRegistry.NewWithCause(candidate.CodeStoreUnavailable, err)
	}
	return c.JSON(fiber.Map{
		"status": "ok",
		"count":  count,
	})
}

// ListCandidates returns every stored record
// GET /candidatures
func (h *Handlers) ListCandidates(c *fiber.Ctx) error {
	list, err := h.service.GetAll(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(list)
}

// SearchCandidates matches by first and/or last name
// GET /candidatures/search
func (h *Handlers) SearchCandidates(c *fiber.Ctx) error {
	var req candidate.SearchCandidatesRequest
	if err := c.QueryParser(&req); err != nil {
		return candidate.ErrInvalidRequest().WithDetail("parse_error", err.Error())
	}

	list, err := h.service.Search(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.JSON(list)
}

// SimilarCandidates ranks records by CV similarity to q
// GET /candidatures/similar
func (h *Handlers) SimilarCandidates(c *fiber.Ctx) error {
	var req candidate.SimilarCandidatesRequest
	if err := c.QueryParser(&req); err != nil {
		return candidate.ErrInvalidRequest().WithDetail("parse_error", err.Error())
	}

	results, err := h.service.Similar(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"count": len(results),
		"items": results,
	})
}

// GetCandidateByID retrieves a record by storage id
// GET /candidatures/:id
func (h *Handlers) GetCandidateByID(c *fiber.Ctx) error {
	id := kernel.CandidateID(c.Params("id"))

	resp, err := h.service.GetByID(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

// RegisterRoutes registers the query routes. auth guards the record routes
// and may be nil.
func RegisterRoutes(app *fiber.App, handlers *Handlers, auth fiber.Handler) {
	app.Use(RequestMetrics())

	app.Get("/", handlers.Index)
	app.Get("/health", handlers.Health)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/candidatures")
	if auth != nil {
		api.Use(auth)
	}
	api.Get("/", handlers.ListCandidates)
	api.Get("/search", handlers.SearchCandidates)
	api.Get("/similar", handlers.SimilarCandidates)
	api.Get("/:id", handlers.GetCandidateByID)
}

// ErrorHandler converts errors to standard HTTP responses
func ErrorHandler(c *fiber.Ctx, err error) error {
	if e, ok := err.(*fiber.Error); ok {
		return c.Status(e.Code).JSON(fiber.Map{
			"error": e.Message,
			"code":  e.Code,
		})
	}

	if e, ok := errx.As(err); ok {
		if e.HTTPStatus >= fiber.StatusInternalServerError {
			logx.Errorf("Request %s %s failed: %v", c.Method(), c.Path(), err)
		}
		return c.Status(e.HTTPStatus).JSON(e.ToHTTPResponse())
	}

	logx.Errorf("Internal Server Error: %v", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error":   "Internal Server Error",
		"type":    "INTERNAL",
		"code":    "INTERNAL_ERROR",
		"message": "An unexpected error occurred",
	})
}
