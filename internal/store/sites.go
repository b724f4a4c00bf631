package store

import (
	"context"
	"errors"

	"github.com/authgate/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type siteStore struct {
	db *gorm.DB
}

func NewSiteStore(db *gorm.DB) SiteStore {
	return &siteStore{db: db}
}

func (s *siteStore) Insert(ctx context.Context, subdomain string) (*models.Site, error) {
	site := models.Site{Subdomain: subdomain}
	if err := s.db.WithContext(ctx).Create(&site).Error; err != nil {
		if isDuplicate(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return &site, nil
}

func (s *siteStore) BySubdomain(ctx context.Context, subdomain string) (*models.Site, error) {
	var site models.Site
	err := s.db.WithContext(ctx).Preload("Ranks").First(&site, "subdomain = ?", subdomain).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &site, nil
}

func (s *siteStore) ByID(ctx context.Context, id uuid.UUID) (*models.Site, error) {
	var site models.Site
	err := s.db.WithContext(ctx).Preload("Ranks").First(&site, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &site, nil
}

func (s *siteStore) All(ctx context.Context) ([]models.Site, error) {
	var sites []models.Site
	if err := s.db.WithContext(ctx).Preload("Ranks").Order("subdomain ASC").Find(&sites).Error; err != nil {
		return nil, err
	}
	return sites, nil
}

// Delete drops the site together with its rank set.
func (s *siteStore) Delete(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.SiteRank{}, "site_id = ?", id).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.Site{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *siteStore) RenameSubdomain(ctx context.Context, id uuid.UUID, subdomain string) error {
	result := s.db.WithContext(ctx).Model(&models.Site{}).
		Where("id = ?", id).
		Update("subdomain", subdomain)
	if result.Error != nil {
		if isDuplicate(result.Error) {
			return ErrDuplicate
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *siteStore) AddRank(ctx context.Context, siteID uuid.UUID, rank string) error {
	entry := models.SiteRank{SiteID: siteID, Rank: rank}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (s *siteStore) RemoveRank(ctx context.Context, siteID uuid.UUID, rank string) error {
	result := s.db.WithContext(ctx).Delete(&models.SiteRank{}, "site_id = ? AND rank = ?", siteID, rank)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
