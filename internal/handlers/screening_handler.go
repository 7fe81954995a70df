package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"alfredoptarigan/cto-screener/internal/models"
	"alfredoptarigan/cto-screener/internal/services"
)

type ScreeningHandler struct {
	sessions  services.SessionService
	ingestion services.IngestionService
	screening services.ScreeningService
	batch     services.BatchRunner
	export    services.ExportService
	storage   services.StorageService
}

func NewScreeningHandler(
	sessions services.SessionService,
	ingestion services.IngestionService,
	screening services.ScreeningService,
	batch services.BatchRunner,
	export services.ExportService,
	storage services.StorageService,
) *ScreeningHandler {
	return &ScreeningHandler{
		sessions:  sessions,
		ingestion: ingestion,
		screening: screening,
		batch:     batch,
		export:    export,
		storage:   storage,
	}
}

type createSessionRequest struct {
	Config    *models.ScreeningConfig `json:"config,omitempty"`
	CreatedBy string                  `json:"created_by"`
}

// HandleList handles GET /screenings
func (h *ScreeningHandler) HandleList(c *fiber.Ctx) error {
	sessions, err := h.sessions.List(c.UserContext(), c.QueryInt("limit", 0))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(sessions)
}

// HandleCreate handles POST /screenings
func (h *ScreeningHandler) HandleCreate(c *fiber.Ctx) error {
	var req createSessionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request payload")
		}
	}

	session, err := h.ingestion.CreateSession(c.UserContext(), req.Config, req.CreatedBy)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(session)
}

// HandleGet handles GET /screenings/:id
func (h *ScreeningHandler) HandleGet(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	detail, err := h.sessions.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(detail)
}

// HandleStart handles POST /screenings/:id/start. Each call processes one
// batch; clients repeat until the status is completed.
func (h *ScreeningHandler) HandleStart(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	result, err := h.batch.RunBatch(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}

// HandleReconcile handles POST /screenings/:id/reconcile
func (h *ScreeningHandler) HandleReconcile(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	counters, err := h.screening.ReconcileCounters(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(counters)
}

// HandleExport handles GET /screenings/:id/export?format=csv|xlsx
func (h *ScreeningHandler) HandleExport(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	format := services.ExportFormat(c.Query("format", string(services.ExportCSV)))
	file, err := h.export.Export(c.UserContext(), id, format)
	if err != nil {
		return respondError(c, err)
	}

	c.Set(fiber.HeaderContentType, file.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, file.Filename))
	return c.Send(file.Data)
}

// HandleDataset handles GET /screenings/:id/dataset, returning the raw
// profile documents archived at ingestion.
func (h *ScreeningHandler) HandleDataset(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	data, err := h.storage.Fetch(c.UserContext(), services.DatasetKey(id))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Dataset not found",
			"code":  fiber.StatusNotFound,
		})
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(data)
}

// HandleErrors handles GET /screenings/:id/errors
func (h *ScreeningHandler) HandleErrors(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	errs, err := h.sessions.Errors(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"session_id": id,
		"errors":     errs,
	})
}

// HandleFilters handles GET /screenings/:id/filters
func (h *ScreeningHandler) HandleFilters(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	opts, err := h.sessions.FilterOptions(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(opts)
}
