package handlers

import (
	"github.com/gofiber/fiber/v2"

	"gar-rock/resume-crunch/internal/models"
	"gar-rock/resume-crunch/internal/services"
)

type EvaluationHandler struct {
	evaluations services.EvaluationService
}

func NewEvaluationHandler(evaluations services.EvaluationService) *EvaluationHandler {
	return &EvaluationHandler{evaluations: evaluations}
}

// HandleEvaluate handles POST /evaluate
func (h *EvaluationHandler) HandleEvaluate(c *fiber.Ctx) error {
	var req models.EvaluateRequest

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request payload",
		})
	}

	task, err := h.evaluations.RequestEvaluation(c.UserContext(), req)
	if err != nil {
		return c.Status(statusFor(err)).JSON(errorBody(err))
	}

	return c.Status(fiber.StatusAccepted).JSON(models.EvaluateResponse{
		ResumeName: task.ResumeName,
		TaskID:     task.ID.String(),
		Status:     string(models.StatusProcessing),
	})
}

// HandleBatchEvaluate handles POST /evaluate/batch. Names are accepted or
// rejected one by one.
func (h *EvaluationHandler) HandleBatchEvaluate(c *fiber.Ctx) error {
	var req models.BatchEvaluateRequest

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request payload",
		})
	}

	outcomes, err := h.evaluations.RequestBatchEvaluation(c.UserContext(), req)
	if err != nil {
		return c.Status(statusFor(err)).JSON(errorBody(err))
	}

	results := make([]models.EvaluateResponse, 0, len(outcomes))
	accepted := 0
	for _, o := range outcomes {
		if o.Err != nil {
			results = append(results, models.EvaluateResponse{
				ResumeName: o.ResumeName,
				Status:     "rejected",
				Error:      o.Err.Error(),
			})
			continue
		}
		accepted++
		results = append(results, models.EvaluateResponse{
			ResumeName: o.ResumeName,
			TaskID:     o.Task.ID.String(),
			Status:     string(models.StatusProcessing),
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"accepted": accepted,
		"results":  results,
	})
}
