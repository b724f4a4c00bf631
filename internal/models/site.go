package models

import "github.com/google/uuid"

// Site maps a subdomain behind the reverse proxy to the set of ranks allowed
// to reach it.
type Site struct {
	BaseModel
	Subdomain string     `json:"subdomain" gorm:"type:varchar(63);uniqueIndex;not null"`
	Ranks     []SiteRank `json:"-" gorm:"foreignKey:SiteID"`
}

// HasRank reports plain set membership; there is no rank hierarchy.
func (s *Site) HasRank(rank string) bool {
	for _, r := range s.Ranks {
		if r.Rank == rank {
			return true
		}
	}
	return false
}

// RankList flattens the allow-set for API responses.
func (s *Site) RankList() []string {
	ranks := make([]string, 0, len(s.Ranks))
	for _, r := range s.Ranks {
		ranks = append(ranks, r.Rank)
	}
	return ranks
}

type SiteRank struct {
	BaseModel
	SiteID uuid.UUID `json:"-" gorm:"type:uuid;not null;uniqueIndex:idx_site_rank"`
	Rank   string    `json:"rank" gorm:"type:varchar(50);not null;uniqueIndex:idx_site_rank"`
}
