package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"alfredoptarigan/cto-screener/internal/models"
	"alfredoptarigan/cto-screener/internal/services"
)

const maxCandidatePageSize = 100

type CandidateHandler struct {
	sessions  services.SessionService
	screening services.ScreeningService
}

func NewCandidateHandler(sessions services.SessionService, screening services.ScreeningService) *CandidateHandler {
	return &CandidateHandler{
		sessions:  sessions,
		screening: screening,
	}
}

// HandleList handles GET /candidates. Filters: sessionId, countryId,
// decision, search, from, to, page, limit.
func (h *CandidateHandler) HandleList(c *fiber.Ctx) error {
	sessionID, err := queryUUID(c, "sessionId")
	if err != nil {
		return respondError(c, err)
	}
	countryID, err := queryUUID(c, "countryId")
	if err != nil {
		return respondError(c, err)
	}
	from, err := queryDate(c, "from")
	if err != nil {
		return respondError(c, err)
	}
	to, err := queryDate(c, "to")
	if err != nil {
		return respondError(c, err)
	}

	page := max(c.QueryInt("page", 1), 1)
	limit := min(max(c.QueryInt("limit", 50), 1), maxCandidatePageSize)

	candidates, total, err := h.sessions.ListCandidates(c.UserContext(), models.CandidateFilter{
		SessionID: sessionID,
		CountryID: countryID,
		Decision:  models.DecisionResult(strings.ToUpper(c.Query("decision"))),
		Search:    c.Query("search"),
		DateFrom:  from,
		DateTo:    to,
		Offset:    (page - 1) * limit,
		Limit:     limit,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"candidates": candidates,
		"total":      total,
		"page":       page,
		"limit":      limit,
	})
}

// HandleRetry handles POST /candidates/:id/retry
func (h *CandidateHandler) HandleRetry(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	result, err := h.screening.RetryCandidate(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}

// HandleDelete handles DELETE /candidates/:id
func (h *CandidateHandler) HandleDelete(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	if err := h.screening.DeleteCandidate(c.UserContext(), id); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// HandleListCorrections handles GET /corrections. format=summary drops the
// per-entry profile payloads.
func (h *CandidateHandler) HandleListCorrections(c *fiber.Ctx) error {
	from, err := queryDate(c, "from")
	if err != nil {
		return respondError(c, err)
	}
	to, err := queryDate(c, "to")
	if err != nil {
		return respondError(c, err)
	}

	summary, err := h.screening.ListCorrections(c.UserContext(), models.CorrectionFilter{
		Name:     c.Query("name"),
		DateFrom: from,
		DateTo:   to,
		Decision: models.DecisionResult(strings.ToUpper(c.Query("decision"))),
	})
	if err != nil {
		return respondError(c, err)
	}

	if c.Query("format") == "summary" {
		for i := range summary.Corrections {
			summary.Corrections[i].Profile = nil
		}
	}
	return c.JSON(summary)
}

// HandleCreateCorrection handles POST /corrections
func (h *CandidateHandler) HandleCreateCorrection(c *fiber.Ctx) error {
	var req models.CorrectionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request payload")
	}
	req.NewDecision = models.DecisionResult(strings.ToUpper(string(req.NewDecision)))

	candidate, err := h.screening.ApplyCorrection(c.UserContext(), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(candidate)
}
