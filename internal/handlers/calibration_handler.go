package handlers

import (
	"fmt"
	"io"

	"github.com/gofiber/fiber/v2"

	"alfredoptarigan/cto-screener/internal/services"
)

type CalibrationHandler struct {
	ingestor    services.CalibrationIngestor
	maxFileSize int64
}

func NewCalibrationHandler(ingestor services.CalibrationIngestor, maxFileSize int64) *CalibrationHandler {
	return &CalibrationHandler{
		ingestor:    ingestor,
		maxFileSize: maxFileSize,
	}
}

// HandleIngest handles POST /admin/calibration. Form fields: file, label
// and an optional source.
func (h *CalibrationHandler) HandleIngest(c *fiber.Ctx) error {
	if h.ingestor == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "calibration store is not configured",
			"code":  fiber.StatusServiceUnavailable,
		})
	}

	file, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "file is required")
	}
	if h.maxFileSize > 0 && file.Size > h.maxFileSize {
		return badRequest(c, fmt.Sprintf("File too large. Max size: %d bytes", h.maxFileSize))
	}

	src, err := file.Open()
	if err != nil {
		return respondError(c, fmt.Errorf("failed to open uploaded file: %w", err))
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return respondError(c, fmt.Errorf("failed to read uploaded file: %w", err))
	}

	result, err := h.ingestor.Ingest(c.UserContext(), services.CalibrationDocument{
		Label:    c.FormValue("label"),
		Source:   c.FormValue("source"),
		Filename: file.Filename,
		Data:     data,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}
