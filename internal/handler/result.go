package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/framewatch/api/internal/service"
	"github.com/framewatch/api/pkg/response"
)

type ResultHandler struct {
	service *service.ResultService
}

func NewResultHandler(svc *service.ResultService) *ResultHandler {
	return &ResultHandler{service: svc}
}

// Find handles GET /api/detect/result/:jobId
// @Summary      Get detection results
// @Description  List all anomalies detected for a job with time-limited snapshot links
// @Tags         Detect
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.FindResultResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Router       /api/detect/result/{jobId} [get]
func (h *ResultHandler) Find(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.service.FindResult(c.Context(), jobID)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}
