package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"alfredoptarigan/cto-screener/internal/services"
)

// statusFor maps service errors onto HTTP codes. Anything unknown is a 500.
func statusFor(err error) int {
	var fe *fiber.Error
	var invalid *services.InvalidURLsError
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.As(err, &invalid):
		return fiber.StatusBadRequest
	case errors.Is(err, services.ErrSessionNotFound),
		errors.Is(err, services.ErrCandidateNotFound),
		errors.Is(err, services.ErrCountryNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrCandidateClaimed):
		return fiber.StatusConflict
	case errors.Is(err, services.ErrInvalidCorrection),
		errors.Is(err, services.ErrNoProfiles),
		errors.Is(err, services.ErrCountryName),
		errors.Is(err, services.ErrUnsupportedFormat),
		errors.Is(err, services.ErrUnsupportedDocument),
		errors.Is(err, services.ErrCalibrationLabel):
		return fiber.StatusBadRequest
	case errors.Is(err, services.ErrScrape):
		return fiber.StatusBadGateway
	}
	return fiber.StatusInternalServerError
}

func respondError(c *fiber.Ctx, err error) error {
	code := statusFor(err)
	if code >= fiber.StatusInternalServerError {
		log.Printf("❌ %s %s: %v\n", c.Method(), c.Path(), err)
	}

	body := fiber.Map{
		"error": err.Error(),
		"code":  code,
	}
	var invalid *services.InvalidURLsError
	if errors.As(err, &invalid) {
		body["invalid_urls"] = invalid.URLs
	}
	return c.Status(code).JSON(body)
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": message,
		"code":  fiber.StatusBadRequest,
	})
}

// ErrorHandler is the app-level fallback for errors returned by handlers
// and middleware.
func ErrorHandler(c *fiber.Ctx, err error) error {
	return respondError(c, err)
}
