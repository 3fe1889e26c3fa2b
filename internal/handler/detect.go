package handler

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/klauspost/compress/zip"

	"github.com/framewatch/api/internal/model"
	"github.com/framewatch/api/internal/service"
	"github.com/framewatch/api/internal/store"
	"github.com/framewatch/api/pkg/response"
)

const maxUploadSize = 500 * 1024 * 1024 // 500MB

type DetectHandler struct {
	service   *service.DetectionService
	validator *validator.Validate
}

func NewDetectHandler(svc *service.DetectionService, v *validator.Validate) *DetectHandler {
	return &DetectHandler{
		service:   svc,
		validator: v,
	}
}

// Video handles POST /api/detect/video
// @Summary      Start video detection
// @Description  Upload a video file and start an anomaly detection job on it
// @Tags         Detect
// @Accept       multipart/form-data
// @Produce      json
// @Param        model formData string true "Classifier model (statistical or vision)"
// @Param        file  formData file   true "Video file (max 500MB)"
// @Success      202 {object} model.DetectResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Router       /api/detect/video [post]
func (h *DetectHandler) Video(c *fiber.Ctx) error {
	m, err := model.ModelTypeFromString(c.FormValue("model"))
	if err != nil {
		return response.ValidationError(c, err.Error(), nil)
	}

	file, err := c.FormFile("file")
	if err != nil {
		return response.ValidationError(c, "File is required", nil)
	}

	if file.Size > maxUploadSize {
		return response.ValidationError(c, "File size exceeds 500MB limit", map[string]interface{}{
			"maxSize":  maxUploadSize,
			"fileSize": file.Size,
		})
	}

	f, err := file.Open()
	if err != nil {
		return response.ServiceError(c, "Failed to open file")
	}
	defer f.Close()

	result, err := h.service.StartVideo(c.Context(), f, file.Filename, m)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.Accepted(c, result)
}

// Stream handles POST /api/detect/stream
// @Summary      Start stream detection
// @Description  Start an anomaly detection job on a live RTSP stream
// @Tags         Detect
// @Accept       json
// @Produce      json
// @Param        request body model.StreamDetectRequest true "Stream detect request"
// @Success      202 {object} model.DetectResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Router       /api/detect/stream [post]
func (h *DetectHandler) Stream(c *fiber.Ctx) error {
	var req model.StreamDetectRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	if !strings.HasPrefix(req.Source, "rtsp://") {
		return response.ValidationError(c, "Only rtsp:// stream sources are supported", nil)
	}

	m, err := model.ModelTypeFromString(req.Model)
	if err != nil {
		return response.ValidationError(c, err.Error(), nil)
	}

	result, err := h.service.StartStream(c.Context(), req.Source, m)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.Accepted(c, result)
}

// Archive handles POST /api/detect/archive
// @Summary      Start batch detection
// @Description  Upload a zip archive of videos and start one detection job per entry
// @Tags         Detect
// @Accept       multipart/form-data
// @Produce      json
// @Param        model formData string true "Classifier model (statistical or vision)"
// @Param        file  formData file   true "Zip archive of video files (max 500MB)"
// @Success      202 {object} model.ArchiveDetectResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Router       /api/detect/archive [post]
func (h *DetectHandler) Archive(c *fiber.Ctx) error {
	m, err := model.ModelTypeFromString(c.FormValue("model"))
	if err != nil {
		return response.ValidationError(c, err.Error(), nil)
	}

	file, err := c.FormFile("file")
	if err != nil {
		return response.ValidationError(c, "File is required", nil)
	}

	if file.Size > maxUploadSize {
		return response.ValidationError(c, "File size exceeds 500MB limit", map[string]interface{}{
			"maxSize":  maxUploadSize,
			"fileSize": file.Size,
		})
	}

	f, err := file.Open()
	if err != nil {
		return response.ServiceError(c, "Failed to open file")
	}
	defer f.Close()

	archive, err := zip.NewReader(f, file.Size)
	if err != nil {
		return response.ValidationError(c, "Invalid zip archive", nil)
	}

	var jobIDs []string
	for _, entry := range archive.File {
		if entry.FileInfo().IsDir() || !isVideoEntry(entry.Name) {
			continue
		}

		rc, err := entry.Open()
		if err != nil {
			return response.ServiceError(c, fmt.Sprintf("Failed to read archive entry %s", entry.Name))
		}

		result, err := h.service.StartVideo(c.Context(), rc, entry.Name, m)
		rc.Close()
		if err != nil {
			return response.ServiceError(c, err.Error())
		}
		jobIDs = append(jobIDs, result.JobID)
	}

	if len(jobIDs) == 0 {
		return response.ValidationError(c, "Archive contains no video files", nil)
	}

	return response.Accepted(c, model.ArchiveDetectResponse{JobIDs: jobIDs})
}

// Status handles GET /api/detect/status/:jobId
// @Summary      Get detection job status
// @Description  Get the current status and window progress of a detection job
// @Tags         Detect
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.JobStatusResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Router       /api/detect/status/{jobId} [get]
func (h *DetectHandler) Status(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.service.GetStatus(c.Context(), jobID)
	if err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

// Cancel handles POST /api/detect/cancel/:jobId
// @Summary      Cancel detection job
// @Description  Stop a running detection job at the next window boundary
// @Tags         Detect
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      204 "No Content"
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Router       /api/detect/cancel/{jobId} [post]
func (h *DetectHandler) Cancel(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	if err := h.service.Cancel(c.Context(), jobID); err != nil {
		if errors.Is(err, service.ErrJobNotProcessing) {
			return response.NotFound(c, "Job is not being processed")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.NoContent(c)
}

func isVideoEntry(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mp4", ".avi", ".mov", ".mkv", ".webm":
		return true
	}
	return false
}

// formatValidationErrors formats validator errors for response
func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return nil
}
