package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"alfredoptarigan/cto-screener/internal/models"
	"alfredoptarigan/cto-screener/internal/repositories"
)

const defaultSessionListLimit = 20

// SessionService is the read side of screening sessions.
type SessionService interface {
	List(ctx context.Context, limit int) ([]models.ScreeningSession, error)
	Get(ctx context.Context, id uuid.UUID) (*models.SessionDetail, error)
	FilterOptions(ctx context.Context, id uuid.UUID) (*models.FilterOptions, error)
	Errors(ctx context.Context, id uuid.UUID) ([]models.SessionError, error)
	ListCandidates(ctx context.Context, filter models.CandidateFilter) ([]models.CandidateEvaluation, int64, error)
}

type sessionService struct {
	sessions   repositories.SessionRepository
	candidates repositories.CandidateRepository
}

func NewSessionService(sessions repositories.SessionRepository, candidates repositories.CandidateRepository) SessionService {
	return &sessionService{sessions: sessions, candidates: candidates}
}

func (s *sessionService) List(ctx context.Context, limit int) ([]models.ScreeningSession, error) {
	if limit <= 0 {
		limit = defaultSessionListLimit
	}
	return s.sessions.List(ctx, limit)
}

func (s *sessionService) find(ctx context.Context, id uuid.UUID) (*models.ScreeningSession, error) {
	session, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
		}
		return nil, err
	}
	return session, nil
}

func (s *sessionService) Get(ctx context.Context, id uuid.UUID) (*models.SessionDetail, error) {
	session, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	evaluations, err := s.candidates.ListBySession(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.SessionDetail{Session: session, Evaluations: evaluations}, nil
}

// FilterOptions lists the distinct countries and current companies of a
// session's candidates, both sorted by name.
func (s *sessionService) FilterOptions(ctx context.Context, id uuid.UUID) (*models.FilterOptions, error) {
	if _, err := s.find(ctx, id); err != nil {
		return nil, err
	}
	evaluations, err := s.candidates.ListBySession(ctx, id)
	if err != nil {
		return nil, err
	}

	countries := make(map[uuid.UUID]models.Country)
	companies := make(map[string]bool)
	for _, e := range evaluations {
		if e.Country != nil {
			countries[e.Country.ID] = *e.Country
		}
		if company := strings.TrimSpace(e.CurrentCompany); company != "" {
			companies[company] = true
		}
	}

	opts := &models.FilterOptions{
		Countries: make([]models.Country, 0, len(countries)),
		Companies: make([]string, 0, len(companies)),
	}
	for _, c := range countries {
		opts.Countries = append(opts.Countries, c)
	}
	for c := range companies {
		opts.Companies = append(opts.Companies, c)
	}
	sort.Slice(opts.Countries, func(i, j int) bool { return opts.Countries[i].Name < opts.Countries[j].Name })
	sort.Strings(opts.Companies)
	return opts, nil
}

func (s *sessionService) Errors(ctx context.Context, id uuid.UUID) ([]models.SessionError, error) {
	if _, err := s.find(ctx, id); err != nil {
		return nil, err
	}
	return s.sessions.ListErrors(ctx, id)
}

func (s *sessionService) ListCandidates(ctx context.Context, filter models.CandidateFilter) ([]models.CandidateEvaluation, int64, error) {
	return s.candidates.List(ctx, filter)
}
