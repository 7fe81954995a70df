package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"alfredoptarigan/cto-screener/internal/models"
	"alfredoptarigan/cto-screener/internal/repositories"
)

const sourceScrape = "apify_scrape"

var (
	ErrNoProfiles = errors.New("no profiles to screen")
	ErrScrape     = errors.New("scraping failed")
)

// InvalidURLsError is returned when none of the submitted URLs is a
// profile URL.
type InvalidURLsError struct {
	URLs []string
}

func (e *InvalidURLsError) Error() string {
	return fmt.Sprintf("no valid profile URLs provided (%d invalid)", len(e.URLs))
}

// IngestionService turns raw profile documents into a screening session
// with PENDING candidates.
type IngestionService interface {
	CreateSession(ctx context.Context, config *models.ScreeningConfig, createdBy string) (*models.ScreeningSession, error)
	Ingest(ctx context.Context, req models.UploadRequest) (*models.UploadResponse, error)
	Scrape(ctx context.Context, req models.ScrapeRequest) (*models.ScrapeResponse, error)
}

type ingestionService struct {
	sessions  repositories.SessionRepository
	countries repositories.CountryRepository
	scraper   ScraperService
	storage   StorageService
}

func NewIngestionService(
	sessions repositories.SessionRepository,
	countries repositories.CountryRepository,
	scraper ScraperService,
	storage StorageService,
) IngestionService {
	return &ingestionService{
		sessions:  sessions,
		countries: countries,
		scraper:   scraper,
		storage:   storage,
	}
}

// DatasetKey is where a session's raw profile documents are archived.
func DatasetKey(sessionID uuid.UUID) string {
	return fmt.Sprintf("datasets/%s.json", sessionID)
}

func (s *ingestionService) CreateSession(ctx context.Context, config *models.ScreeningConfig, createdBy string) (*models.ScreeningSession, error) {
	session, err := newSession(config, createdBy, nil)
	if err != nil {
		return nil, err
	}
	if _, err := s.sessions.CreateWithCandidates(ctx, session, nil); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *ingestionService) Ingest(ctx context.Context, req models.UploadRequest) (*models.UploadResponse, error) {
	if len(req.Profiles) == 0 {
		return nil, ErrNoProfiles
	}
	return s.ingest(ctx, req.Profiles, req.Config, req.CreatedBy, req.CountryID)
}

func (s *ingestionService) Scrape(ctx context.Context, req models.ScrapeRequest) (*models.ScrapeResponse, error) {
	if s.scraper == nil {
		return nil, fmt.Errorf("%w: scraper is not configured", ErrScrape)
	}

	urls := NormalizeProfileURLs(req.URLs)
	if len(urls.Valid) == 0 {
		return nil, &InvalidURLsError{URLs: urls.Invalid}
	}

	log.Printf("📋 Scraping %d profiles...\n", len(urls.Valid))
	result, err := s.scraper.ScrapeProfiles(ctx, urls.Valid)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScrape, err)
	}
	if len(result.Profiles) == 0 {
		return nil, fmt.Errorf("%w: no profiles were scraped successfully", ErrNoProfiles)
	}

	config := models.DefaultScreeningConfig()
	if req.Config != nil {
		config = *req.Config
	}
	config.Source = sourceScrape

	upload, err := s.ingest(ctx, result.Profiles, &config, req.CreatedBy, nil)
	if err != nil {
		return nil, err
	}

	return &models.ScrapeResponse{
		UploadResponse: *upload,
		Scraped:        len(result.Profiles),
		FailedURLs:     result.FailedURLs,
		InvalidURLs:    append(urls.Invalid, result.FailedURLs...),
	}, nil
}

func (s *ingestionService) ingest(
	ctx context.Context,
	docs []map[string]any,
	config *models.ScreeningConfig,
	createdBy string,
	countryID *uuid.UUID,
) (*models.UploadResponse, error) {
	session, err := newSession(config, createdBy, countryID)
	if err != nil {
		return nil, err
	}

	countryIDs := make(map[string]uuid.UUID)
	candidates := make([]models.CandidateEvaluation, 0, len(docs))
	seen := make(map[string]bool)

	for _, doc := range docs {
		doc, _ = models.SanitizeProfile(doc).(map[string]any)
		if doc == nil {
			continue
		}
		profile := models.ProfileFromMap(doc)

		candidateID := CanonicalProfileURL(profile.LinkedinURL)
		if candidateID == "" {
			candidateID = profile.LinkedinURL
		}
		if candidateID == "" || seen[candidateID] {
			continue
		}
		seen[candidateID] = true

		raw, err := json.Marshal(doc)
		if err != nil {
			log.Printf("⚠️  Skipping unencodable profile %s: %v\n", candidateID, err)
			continue
		}

		candidate := models.CandidateEvaluation{
			CandidateID:          candidateID,
			LinkedinURL:          profile.LinkedinURL,
			FullName:             profile.DisplayName(),
			CurrentTitle:         profile.JobTitle,
			CurrentCompany:       profile.CompanyName,
			Location:             profile.AddressCountryOnly,
			ProfileData:          datatypes.JSON(raw),
			ProfileSchemaVersion: models.ProfileSchemaVersion,
			DecisionResult:       models.DecisionPending,
		}

		if name := ExtractCountryFromProfile(profile); name != "" {
			id, ok := countryIDs[name]
			if !ok {
				country, err := s.countries.FindOrCreate(ctx, name)
				if err != nil {
					return nil, err
				}
				id = country.ID
				countryIDs[name] = id
			}
			candidate.CountryID = &id
		}

		candidates = append(candidates, candidate)
	}

	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no profile had a usable linkedinUrl", ErrNoProfiles)
	}

	inserted, err := s.sessions.CreateWithCandidates(ctx, session, candidates)
	if err != nil {
		return nil, err
	}
	log.Printf("✅ Session %s created with %d candidates\n", session.ID, inserted)

	detected := make([]string, 0, len(countryIDs))
	for name := range countryIDs {
		detected = append(detected, name)
	}
	sort.Strings(detected)

	resp := &models.UploadResponse{
		SessionID:         session.ID.String(),
		TotalCandidates:   int(inserted),
		Skipped:           len(docs) - int(inserted),
		CountriesDetected: detected,
	}

	if s.storage != nil {
		if dataset, err := json.Marshal(docs); err == nil {
			key, err := s.storage.Archive(ctx, DatasetKey(session.ID), dataset)
			if err != nil {
				log.Printf("⚠️  Failed to archive dataset for session %s: %v\n", session.ID, err)
			} else {
				resp.ArchiveKey = key
			}
		}
	}

	return resp, nil
}

func newSession(config *models.ScreeningConfig, createdBy string, countryID *uuid.UUID) (*models.ScreeningSession, error) {
	cfg := models.DefaultScreeningConfig()
	if config != nil {
		cfg = *config
	}
	if cfg.TargetRole == "" {
		cfg.TargetRole = models.RoleCTO
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode screening config: %w", err)
	}
	if createdBy == "" {
		createdBy = "user"
	}

	return &models.ScreeningSession{
		ID:        uuid.New(),
		CreatedBy: createdBy,
		Config:    datatypes.JSON(raw),
		Status:    models.SessionPending,
		CountryID: countryID,
	}, nil
}
