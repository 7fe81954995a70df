package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"

	"github.com/google/uuid"

	"alfredoptarigan/cto-screener/internal/models"
	"alfredoptarigan/cto-screener/internal/repositories"
)

const defaultCountryPageSize = 20

var (
	ErrCountryNotFound = errors.New("country not found")
	ErrCountryName     = errors.New("country name is required")
)

type CountryQuery struct {
	Page     int
	Limit    int
	Decision models.DecisionResult
	Search   string
}

// CountryService manages the country catalog and candidate grouping.
type CountryService interface {
	List(ctx context.Context) ([]models.CountryWithCounts, error)
	Create(ctx context.Context, name string) (*models.Country, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Detail(ctx context.Context, id uuid.UUID, q CountryQuery) (*models.CountryDetail, error)
	Backfill(ctx context.Context) (*models.BackfillReport, error)
	Report(ctx context.Context) (*models.BackfillReport, error)
}

type countryService struct {
	countries  repositories.CountryRepository
	candidates repositories.CandidateRepository
}

func NewCountryService(countries repositories.CountryRepository, candidates repositories.CandidateRepository) CountryService {
	return &countryService{countries: countries, candidates: candidates}
}

func (s *countryService) List(ctx context.Context) ([]models.CountryWithCounts, error) {
	return s.countries.ListWithCounts(ctx)
}

func (s *countryService) Create(ctx context.Context, name string) (*models.Country, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrCountryName
	}
	return s.countries.FindOrCreate(ctx, NormalizeCountryName(name))
}

func (s *countryService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.countries.Delete(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrCountryNotFound, id)
		}
		return err
	}
	return nil
}

// Detail returns one page of the country's candidates with decision
// stats over all of them.
func (s *countryService) Detail(ctx context.Context, id uuid.UUID, q CountryQuery) (*models.CountryDetail, error) {
	country, err := s.countries.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrCountryNotFound, id)
		}
		return nil, err
	}

	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit <= 0 {
		q.Limit = defaultCountryPageSize
	}

	candidates, total, err := s.candidates.List(ctx, models.CandidateFilter{
		CountryID: &id,
		Decision:  q.Decision,
		Search:    q.Search,
		Offset:    (q.Page - 1) * q.Limit,
		Limit:     q.Limit,
	})
	if err != nil {
		return nil, err
	}

	stats, err := s.candidates.CountByDecision(ctx, models.CandidateFilter{CountryID: &id})
	if err != nil {
		return nil, err
	}

	totalPages := int(math.Ceil(float64(total) / float64(q.Limit)))
	return &models.CountryDetail{
		Country:    *country,
		Stats:      stats,
		PassRate:   passRate(stats),
		Candidates: candidates,
		Total:      total,
		Page:       q.Page,
		Limit:      q.Limit,
		TotalPages: totalPages,
		HasMore:    q.Page < totalPages,
	}, nil
}

func passRate(stats map[models.DecisionResult]int) int {
	total := 0
	for _, n := range stats {
		total += n
	}
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(stats[models.DecisionPass]) / float64(total) * 100))
}

// Backfill assigns countries to candidates that have none, then drops
// countries left without references.
func (s *countryService) Backfill(ctx context.Context) (*models.BackfillReport, error) {
	candidates, err := s.candidates.FindWithoutCountry(ctx)
	if err != nil {
		return nil, err
	}
	log.Printf("🔄 Backfilling countries for %d candidates...\n", len(candidates))

	stats := &models.BackfillStats{CandidatesScanned: len(candidates)}
	cache := make(map[string]uuid.UUID)

	for _, c := range candidates {
		profile, err := c.Profile()
		if err != nil {
			profile = &models.LinkedInProfile{}
		}
		if c.Location != "" {
			profile.Location = c.Location
		}

		name := ExtractCountryFromProfile(profile)
		if name == "" {
			stats.CandidatesSkipped++
			continue
		}

		countryID, ok := cache[name]
		if !ok {
			country, err := s.countries.FindOrCreate(ctx, name)
			if err != nil {
				return nil, err
			}
			countryID = country.ID
			cache[name] = countryID
		}

		if err := s.candidates.UpdateCountry(ctx, c.ID, countryID); err != nil {
			log.Printf("⚠️  Failed to update country for candidate %s: %v\n", c.ID, err)
			stats.CandidatesSkipped++
			continue
		}
		stats.CandidatesUpdated++
	}

	orphans, err := s.countries.DeleteOrphans(ctx)
	if err != nil {
		return nil, err
	}
	stats.OrphansDeleted = orphans
	log.Printf("✅ Backfill done: %d updated, %d skipped, %d orphans removed\n",
		stats.CandidatesUpdated, stats.CandidatesSkipped, len(orphans))

	report, err := s.Report(ctx)
	if err != nil {
		return nil, err
	}
	report.Stats = stats
	return report, nil
}

// Report shows what a backfill would touch without changing anything.
func (s *countryService) Report(ctx context.Context) (*models.BackfillReport, error) {
	pending, err := s.candidates.CountWithoutCountry(ctx)
	if err != nil {
		return nil, err
	}
	countries, err := s.countries.ListWithCounts(ctx)
	if err != nil {
		return nil, err
	}

	orphans := []string{}
	for _, c := range countries {
		if c.CandidateCount == 0 {
			orphans = append(orphans, c.Name)
		}
	}

	return &models.BackfillReport{
		Pending:   pending,
		Orphans:   orphans,
		Countries: countries,
	}, nil
}
