package models

import (
	"time"

	"github.com/google/uuid"
)

type Country struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Name      string    `gorm:"type:text;not null;uniqueIndex" json:"name"`
	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Country) TableName() string {
	return "countries"
}

// CountryWithCounts is the listing row for the countries view.
type CountryWithCounts struct {
	Country
	CandidateCount int64 `json:"candidate_count"`
	SessionCount   int64 `json:"session_count"`
}
