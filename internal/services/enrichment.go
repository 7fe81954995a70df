package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"alfredoptarigan/cto-screener/internal/models"
)

// EnrichmentService looks up background on a candidate's employers. It is
// best-effort: lookups degrade to a placeholder and never return an error.
type EnrichmentService interface {
	EnrichCompany(ctx context.Context, name, website string) models.EnrichedCompany
	EnrichProfile(ctx context.Context, profile *models.LinkedInProfile) []models.EnrichedCompany
}

type enrichmentService struct {
	search       SearchClient
	cache        CompanyCache
	maxCompanies int
	now          func() time.Time
}

func NewEnrichmentService(search SearchClient, cache CompanyCache, maxCompanies int) EnrichmentService {
	if cache == nil {
		cache = NewNoopCompanyCache()
	}
	if maxCompanies <= 0 {
		maxCompanies = 3
	}
	return &enrichmentService{
		search:       search,
		cache:        cache,
		maxCompanies: maxCompanies,
		now:          time.Now,
	}
}

func (e *enrichmentService) EnrichCompany(ctx context.Context, name, website string) models.EnrichedCompany {
	if cached, ok := e.cache.Get(ctx, name); ok {
		return *cached
	}

	query := strings.TrimSpace(fmt.Sprintf("%s company information funding tech stack reputation %s", name, website))
	resp, err := e.search.Search(ctx, query)
	if err != nil || resp == nil {
		log.Printf("⚠️  Failed to enrich company %s: %v\n", name, err)
		return models.EnrichedCompany{
			Name:            name,
			Description:     models.CompanyLookupFailed,
			Website:         website,
			SearchTimestamp: e.now(),
		}
	}

	company := models.EnrichedCompany{
		Name:            name,
		Description:     resp.Answer,
		Website:         website,
		SearchTimestamp: e.now(),
	}
	if company.Website == "" && len(resp.Results) > 0 {
		company.Website = resp.Results[0].URL
	}
	if company.Description == "" && len(resp.Results) == 0 {
		company.Description = models.CompanyLookupFailed
	}

	e.cache.Set(ctx, company)
	return company
}

// EnrichProfile enriches the most recent distinct employers in parallel.
// Results keep the experience order.
func (e *enrichmentService) EnrichProfile(ctx context.Context, profile *models.LinkedInProfile) []models.EnrichedCompany {
	type target struct{ name, website string }

	var targets []target
	seen := make(map[string]bool)
	for _, exp := range profile.Experiences {
		key := strings.ToLower(exp.CompanyName)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		targets = append(targets, target{name: exp.CompanyName, website: exp.CompanyWebsite})
		if len(targets) == e.maxCompanies {
			break
		}
	}

	results := make([]models.EnrichedCompany, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	for i, t := range targets {
		g.Go(func() error {
			results[i] = e.EnrichCompany(gctx, t.name, t.website)
			return nil
		})
	}
	_ = g.Wait()

	return results
}
