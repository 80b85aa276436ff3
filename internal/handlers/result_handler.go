package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"gar-rock/resume-crunch/internal/models"
	"gar-rock/resume-crunch/internal/repositories"
	"gar-rock/resume-crunch/internal/services"
)

// ResultHandler serves read-only projections of the stored records.
type ResultHandler struct {
	repo repositories.ResumeRepository
}

func NewResultHandler(repo repositories.ResumeRepository) *ResultHandler {
	return &ResultHandler{repo: repo}
}

// HandleGetResult handles GET /resumes/:filename
func (h *ResultHandler) HandleGetResult(c *fiber.Ctx) error {
	record, err := h.repo.FindByFilename(c.UserContext(), c.Params("filename"))
	if err != nil {
		if errors.Is(err, repositories.ErrResumeNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Resume not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load resume",
		})
	}

	return c.JSON(models.NewResultResponse(record))
}

// HandleListResults handles GET /resumes, optionally filtered by ?status=.
func (h *ResultHandler) HandleListResults(c *fiber.Ctx) error {
	var (
		records []models.ResumeRecord
		err     error
	)

	if status := models.ProcessingStatus(c.Query("status")); status != "" {
		if !status.Valid() {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "unknown status " + string(status),
			})
		}
		records, err = h.repo.FindByStatus(c.UserContext(), status, 0)
	} else {
		records, err = h.repo.FindAll(c.UserContext())
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to list resumes",
		})
	}

	results := make([]models.ResultResponse, 0, len(records))
	for i := range records {
		results = append(results, models.NewResultResponse(&records[i]))
	}
	return c.JSON(results)
}

// HandleStats handles GET /stats
func (h *ResultHandler) HandleStats(c *fiber.Ctx) error {
	records, err := h.repo.FindAll(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to list resumes",
		})
	}

	return c.JSON(services.ComputeStats(records))
}
