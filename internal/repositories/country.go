package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"alfredoptarigan/cto-screener/internal/models"
)

type CountryRepository interface {
	FindOrCreate(ctx context.Context, name string) (*models.Country, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Country, error)
	List(ctx context.Context) ([]models.Country, error)
	ListWithCounts(ctx context.Context) ([]models.CountryWithCounts, error)
	Create(ctx context.Context, name string) (*models.Country, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteOrphans(ctx context.Context) ([]string, error)
}

type countryRepository struct {
	db *gorm.DB
}

func NewCountryRepository(db *gorm.DB) CountryRepository {
	return &countryRepository{db: db}
}

// FindOrCreate upserts by the unique name.
func (r *countryRepository) FindOrCreate(ctx context.Context, name string) (*models.Country, error) {
	db := r.db.WithContext(ctx)
	country := models.Country{Name: name}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&country).Error; err != nil {
		return nil, fmt.Errorf("failed to upsert country: %w", err)
	}

	var existing models.Country
	if err := db.Where("name = ?", name).First(&existing).Error; err != nil {
		return nil, fmt.Errorf("failed to load country: %w", err)
	}
	return &existing, nil
}

func (r *countryRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Country, error) {
	var country models.Country
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&country).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find country: %w", err)
	}
	return &country, nil
}

func (r *countryRepository) List(ctx context.Context) ([]models.Country, error) {
	var countries []models.Country
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&countries).Error; err != nil {
		return nil, fmt.Errorf("failed to list countries: %w", err)
	}
	return countries, nil
}

func (r *countryRepository) ListWithCounts(ctx context.Context) ([]models.CountryWithCounts, error) {
	var rows []models.CountryWithCounts
	if err := r.db.WithContext(ctx).Model(&models.Country{}).
		Select(`countries.*,
			(SELECT COUNT(*) FROM candidate_evaluations c WHERE c.country_id = countries.id) AS candidate_count,
			(SELECT COUNT(*) FROM screening_sessions s WHERE s.country_id = countries.id) AS session_count`).
		Order("name ASC").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list country stats: %w", err)
	}
	return rows, nil
}

func (r *countryRepository) Create(ctx context.Context, name string) (*models.Country, error) {
	country := models.Country{Name: name}
	if err := r.db.WithContext(ctx).Create(&country).Error; err != nil {
		return nil, fmt.Errorf("failed to create country: %w", err)
	}
	return &country, nil
}

// Delete detaches candidates and sessions from the country before removing it.
func (r *countryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.CandidateEvaluation{}).
			Where("country_id = ?", id).
			Update("country_id", nil).Error; err != nil {
			return fmt.Errorf("failed to detach candidates: %w", err)
		}
		if err := tx.Model(&models.ScreeningSession{}).
			Where("country_id = ?", id).
			Update("country_id", nil).Error; err != nil {
			return fmt.Errorf("failed to detach sessions: %w", err)
		}
		result := tx.Delete(&models.Country{}, "id = ?", id)
		if result.Error != nil {
			return fmt.Errorf("failed to delete country: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// DeleteOrphans removes countries no candidate refers to and returns their
// names.
func (r *countryRepository) DeleteOrphans(ctx context.Context) ([]string, error) {
	var orphans []models.Country
	db := r.db.WithContext(ctx)
	if err := db.
		Where("NOT EXISTS (SELECT 1 FROM candidate_evaluations c WHERE c.country_id = countries.id)").
		Where("NOT EXISTS (SELECT 1 FROM screening_sessions s WHERE s.country_id = countries.id)").
		Find(&orphans).Error; err != nil {
		return nil, fmt.Errorf("failed to find orphan countries: %w", err)
	}
	if len(orphans) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, 0, len(orphans))
	names := make([]string, 0, len(orphans))
	for _, c := range orphans {
		ids = append(ids, c.ID)
		names = append(names, c.Name)
	}
	if err := db.Where("id IN ?", ids).Delete(&models.Country{}).Error; err != nil {
		return nil, fmt.Errorf("failed to delete orphan countries: %w", err)
	}
	return names, nil
}
