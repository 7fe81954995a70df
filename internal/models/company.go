package models

import "time"

const CompanyLookupFailed = "Failed to fetch company information"

type EnrichedCompany struct {
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	Website         string    `json:"website,omitempty"`
	SearchTimestamp time.Time `json:"searchTimestamp"`
}

// Degraded reports whether the lookup failed and the entry is a placeholder.
func (c EnrichedCompany) Degraded() bool {
	return c.Description == CompanyLookupFailed
}
