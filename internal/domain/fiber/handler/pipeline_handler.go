package handler

import (
	"time"

	"github.com/aldirahman/toolradar/internal/dto"
	"github.com/aldirahman/toolradar/internal/middleware"
	"github.com/aldirahman/toolradar/internal/repository"
	"github.com/aldirahman/toolradar/internal/response"
	"github.com/aldirahman/toolradar/internal/usecase"
	"github.com/aldirahman/toolradar/internal/util"
	"github.com/gofiber/fiber/v2"
)

type PipelineHandler struct {
	ingest     usecase.Ingester
	postings   repository.PostingRepositoryInterface
	detections repository.DetectionRepositoryInterface
	terms      repository.SearchTermRepositoryInterface

	maxItemsPerTerm int
}

func NewPipelineHandler(
	ingest usecase.Ingester,
	postings repository.PostingRepositoryInterface,
	detections repository.DetectionRepositoryInterface,
	terms repository.SearchTermRepositoryInterface,
	maxItemsPerTerm int,
) *PipelineHandler {
	return &PipelineHandler{
		ingest:          ingest,
		postings:        postings,
		detections:      detections,
		terms:           terms,
		maxItemsPerTerm: maxItemsPerTerm,
	}
}

func (h *PipelineHandler) RegisterRoutes(app *fiber.App) {
	// Each manual scrape hits the paid provider, so the route gets its own
	// tight limiter on top of the global one.
	app.Post("/scrape", middleware.RateLimiter(2, time.Minute), h.Scrape)
	app.Get("/status", h.Status)
	app.Get("/detections", h.Detections)
	app.Post("/requeue-failed", h.RequeueFailed)
}

// Scrape triggers one on-demand ingestion run outside the weekly schedule.
func (h *PipelineHandler) Scrape(c *fiber.Ctx) error {
	var req dto.ScrapeRequestDTO
	if err := c.BodyParser(&req); err != nil {
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Code:    fiber.StatusBadRequest,
			Message: "invalid request body",
		}, err)
	}
	if req.Title == "" {
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Code:    fiber.StatusBadRequest,
			Message: "title is required",
		})
	}
	if req.MaxItems <= 0 {
		req.MaxItems = h.maxItemsPerTerm
	}

	result, err := h.ingest.Ingest(c.UserContext(), req.Title, req.MaxItems)
	if err != nil {
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Message: "scrape run failed",
		}, err)
	}

	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Code:    fiber.StatusOK,
		Message: "Success scrape run",
		Data:    result,
	})
}

// Status reports queue depth, registry size and per-term scrape freshness.
func (h *PipelineHandler) Status(c *fiber.Ctx) error {
	total, unprocessed, err := h.postings.Counts()
	if err != nil {
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Message: "failed to count postings",
		}, err)
	}
	detections, err := h.detections.Count()
	if err != nil {
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Message: "failed to count detections",
		}, err)
	}
	terms, err := h.terms.FindAll()
	if err != nil {
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Message: "failed to load search terms",
		}, err)
	}

	status := dto.StatusDTO{
		TotalPostings:    total,
		UnprocessedCount: unprocessed,
		TotalDetections:  detections,
		Terms:            make([]dto.TermStatusDTO, 0, len(terms)),
	}
	for _, t := range terms {
		status.Terms = append(status.Terms, dto.TermStatusDTO{
			Term:           t.Term,
			Active:         t.Active,
			LastScrapedAt:  t.LastScrapedAt,
			JobsFoundCount: t.JobsFoundCount,
		})
	}

	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Code:    fiber.StatusOK,
		Message: "Success get pipeline status",
		Data:    status,
	})
}

// Detections lists the company registry, newest detections first.
func (h *PipelineHandler) Detections(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	pageSize := c.QueryInt("page_size", 25)
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 25
	}

	detections, totalItems, err := h.detections.FindPage(page, pageSize)
	if err != nil {
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Message: "failed to load detections",
		}, err)
	}

	totalPages := totalItems / int64(pageSize)
	if totalItems%int64(pageSize) != 0 {
		totalPages++
	}
	from := (page-1)*pageSize + 1
	if len(detections) == 0 {
		from = 0
	}

	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Code:    fiber.StatusOK,
		Message: "Success get detections",
		Data:    detections,
		Pagination: &response.Pagination{
			Page:       page,
			PageSize:   pageSize,
			TotalPages: totalPages,
			TotalItems: totalItems,
			HasMore:    int64(page) < totalPages,
			From:       from,
			To:         from + len(detections) - 1,
		},
	})
}

// RequeueFailed puts processed postings back in the analyzer queue. Meant for
// postings consumed by malformed model replies.
func (h *PipelineHandler) RequeueFailed(c *fiber.Ctx) error {
	var req dto.RequeueRequestDTO
	if err := c.BodyParser(&req); err != nil {
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Code:    fiber.StatusBadRequest,
			Message: "invalid request body",
		}, err)
	}
	if len(req.IDs) == 0 {
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Code:    fiber.StatusBadRequest,
			Message: "ids is required",
		})
	}

	requeued, err := h.postings.ResetProcessed(req.IDs)
	if err != nil {
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Message: "failed to requeue postings",
		}, err)
	}

	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Code:    fiber.StatusOK,
		Message: "Success requeue postings",
		Data:    fiber.Map{"requeued": requeued},
	})
}
