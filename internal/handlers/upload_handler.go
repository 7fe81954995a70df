package handlers

import (
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"alfredoptarigan/cto-screener/internal/models"
	"alfredoptarigan/cto-screener/internal/services"
)

type UploadHandler struct {
	ingestion services.IngestionService
	storage   services.StorageService
}

func NewUploadHandler(ingestion services.IngestionService, storage services.StorageService) *UploadHandler {
	return &UploadHandler{
		ingestion: ingestion,
		storage:   storage,
	}
}

// HandleUpload handles POST /upload. It accepts either a JSON body with a
// profiles array or a multipart form with a "file" holding the export.
func (h *UploadHandler) HandleUpload(c *fiber.Ctx) error {
	var req models.UploadRequest

	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		parsed, err := h.parseMultipart(c)
		if err != nil {
			return badRequest(c, err.Error())
		}
		req = *parsed
	} else if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request payload")
	}

	if len(req.Profiles) == 0 {
		return badRequest(c, "profiles must be a non-empty array")
	}

	resp, err := h.ingestion.Ingest(c.UserContext(), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

func (h *UploadHandler) parseMultipart(c *fiber.Ctx) (*models.UploadRequest, error) {
	file, err := c.FormFile("file")
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "file is required")
	}

	data, err := h.storage.ReadUpload(file)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	req := &models.UploadRequest{CreatedBy: c.FormValue("created_by")}
	if err := json.Unmarshal(data, &req.Profiles); err != nil {
		// a wrapped export: {"profiles": [...]}
		var wrapped models.UploadRequest
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, "file must contain a JSON array of profiles")
		}
		req.Profiles = wrapped.Profiles
		req.Config = wrapped.Config
	}

	if raw := c.FormValue("config"); raw != "" {
		var cfg models.ScreeningConfig
		if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, "config must be a JSON object")
		}
		req.Config = &cfg
	}

	if raw := c.FormValue("country_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, "Invalid country_id format")
		}
		req.CountryID = &id
	}
	return req, nil
}

// HandleScrape handles POST /scrape.
func (h *UploadHandler) HandleScrape(c *fiber.Ctx) error {
	var req models.ScrapeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request payload")
	}
	if len(req.URLs) == 0 {
		return badRequest(c, "urls must be a non-empty array")
	}

	resp, err := h.ingestion.Scrape(c.UserContext(), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}
