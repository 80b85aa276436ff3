package handlers

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"gar-rock/resume-crunch/internal/logger"
	"gar-rock/resume-crunch/internal/models"
	"gar-rock/resume-crunch/internal/repositories"
	"gar-rock/resume-crunch/internal/services"
)

type UploadHandler struct {
	repo      repositories.ResumeRepository
	storage   services.StorageService
	extractor services.TextExtractor
	log       *zap.Logger
}

func NewUploadHandler(
	repo repositories.ResumeRepository,
	storage services.StorageService,
	extractor services.TextExtractor,
	log *zap.Logger,
) *UploadHandler {
	return &UploadHandler{
		repo:      repo,
		storage:   storage,
		extractor: extractor,
		log:       logger.OrNop(log),
	}
}

// HandleUpload handles POST /resumes. The document is stored under its
// sanitized name and registered as pending; text extraction runs once so the
// caller learns early when the content cannot be read. An evaluation accepted
// between Create and Commit reads the previous file, never a partial one.
func (h *UploadHandler) HandleUpload(c *fiber.Ctx) error {
	file, err := c.FormFile("resume")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "resume file is required",
		})
	}
	description := strings.TrimSpace(c.FormValue("description"))

	staged, err := h.storage.StageFile(file)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrFileTooLarge):
			return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, services.ErrInvalidFilename), errors.Is(err, services.ErrUnsupportedFileExt):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		h.log.Error("❌ Failed to save upload", zap.String("file", file.Filename), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to save resume file",
		})
	}
	defer staged.Discard()
	filename, size := staged.Name, staged.Size

	extraction := h.extractor.Extract(c.UserContext(), services.Source{Path: staged.Path()}, filename)

	// the store refuses to replace a record under evaluation, so the stored
	// file is only swapped once Create succeeded
	record := models.NewResumeRecord(filename, description, size, time.Now())
	if err := h.repo.Create(c.UserContext(), record); err != nil {
		if errors.Is(err, repositories.ErrResumeProcessing) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": fmt.Sprintf("%s is being evaluated, try again later", filename),
			})
		}
		h.log.Error("❌ Failed to save resume record", zap.String("file", filename), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to save resume record",
		})
	}

	if err := staged.Commit(); err != nil {
		h.log.Error("❌ Failed to store upload", zap.String("file", filename), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to save resume file",
		})
	}

	resp := models.UploadResponse{
		Filename:          filename,
		Size:              size,
		Status:            string(record.ProcessingStatus),
		ExtractionBackend: extraction.Backend,
	}
	switch {
	case !extraction.OK():
		resp.Warning = extraction.String()
	case strings.TrimSpace(extraction.Text) == "":
		resp.Warning = "no text could be extracted from " + filename
	}

	h.log.Info("📄 Resume uploaded",
		zap.String("file", filename),
		zap.Int64("size", size),
		zap.String("backend", extraction.Backend),
	)

	return c.Status(fiber.StatusCreated).JSON(resp)
}

// HandleDelete handles DELETE /resumes/:filename
func (h *UploadHandler) HandleDelete(c *fiber.Ctx) error {
	filename := c.Params("filename")

	if err := h.repo.Delete(c.UserContext(), filename); err != nil {
		switch {
		case errors.Is(err, repositories.ErrResumeNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Resume not found"})
		case errors.Is(err, repositories.ErrResumeProcessing):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": fmt.Sprintf("%s is being evaluated, try again later", filename),
			})
		}
		h.log.Error("❌ Failed to delete resume record", zap.String("file", filename), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to delete resume",
		})
	}

	if err := h.storage.DeleteFile(filename); err != nil {
		h.log.Warn("⚠️ Resume record deleted but file remains", zap.String("file", filename), zap.Error(err))
	}

	h.log.Info("🗑️ Resume deleted", zap.String("file", filename))
	return c.SendStatus(fiber.StatusNoContent)
}
