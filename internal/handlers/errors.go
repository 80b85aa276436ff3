package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"gar-rock/resume-crunch/internal/models"
	"gar-rock/resume-crunch/internal/repositories"
	"gar-rock/resume-crunch/internal/services"
)

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr), errors.Is(err, services.ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, repositories.ErrResumeNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, models.ErrAlreadyProcessing), errors.Is(err, repositories.ErrResumeProcessing):
		return fiber.StatusConflict
	case errors.Is(err, services.ErrQueueFull), errors.Is(err, services.ErrWorkerStopped):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func errorBody(err error) fiber.Map {
	body := fiber.Map{"error": err.Error()}

	var verr *services.ValidationError
	if errors.As(err, &verr) {
		body["error"] = "validation failed"
		body["fields"] = verr.Fields
	}
	return body
}
