package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"alfredoptarigan/cto-screener/internal/models"
	"alfredoptarigan/cto-screener/internal/services"
)

type CountryHandler struct {
	countries services.CountryService
}

func NewCountryHandler(countries services.CountryService) *CountryHandler {
	return &CountryHandler{countries: countries}
}

// HandleList handles GET /countries
func (h *CountryHandler) HandleList(c *fiber.Ctx) error {
	countries, err := h.countries.List(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(countries)
}

// HandleCreate handles POST /countries
func (h *CountryHandler) HandleCreate(c *fiber.Ctx) error {
	var req models.CountryRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request payload")
	}

	country, err := h.countries.Create(c.UserContext(), req.Name)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(country)
}

// HandleDetail handles GET /countries/:id?page=&limit=&decision=&search=
func (h *CountryHandler) HandleDetail(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	detail, err := h.countries.Detail(c.UserContext(), id, services.CountryQuery{
		Page:     c.QueryInt("page", 1),
		Limit:    c.QueryInt("limit", 0),
		Decision: models.DecisionResult(strings.ToUpper(c.Query("decision"))),
		Search:   c.Query("search"),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(detail)
}

// HandleDelete handles DELETE /countries/:id
func (h *CountryHandler) HandleDelete(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	if err := h.countries.Delete(c.UserContext(), id); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// HandleBackfillReport handles GET /admin/backfill-countries
func (h *CountryHandler) HandleBackfillReport(c *fiber.Ctx) error {
	report, err := h.countries.Report(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(report)
}

// HandleBackfill handles POST /admin/backfill-countries
func (h *CountryHandler) HandleBackfill(c *fiber.Ctx) error {
	report, err := h.countries.Backfill(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(report)
}
