package handlers

import "github.com/gofiber/fiber/v2"

// RegisterRoutes mounts the resume endpoints on router.
func RegisterRoutes(router fiber.Router, upload *UploadHandler, evaluation *EvaluationHandler, result *ResultHandler) {
	router.Post("/resumes", upload.HandleUpload)
	router.Get("/resumes", result.HandleListResults)
	router.Get("/resumes/:filename", result.HandleGetResult)
	router.Delete("/resumes/:filename", upload.HandleDelete)
	router.Post("/evaluate", evaluation.HandleEvaluate)
	router.Post("/evaluate/batch", evaluation.HandleBatchEvaluate)
	router.Get("/stats", result.HandleStats)
}
