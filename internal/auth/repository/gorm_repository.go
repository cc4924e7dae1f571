package repository

import (
	"time"

	"design-assistant-backend/internal/auth/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// gormMondayLinkRepository implements MondayLinkRepository using GORM
type gormMondayLinkRepository struct {
	db *gorm.DB
}

func NewGormMondayLinkRepository(db *gorm.DB) MondayLinkRepository {
	db.AutoMigrate(&domain.MondayLink{})
	return &gormMondayLinkRepository{db: db}
}

func (r *gormMondayLinkRepository) Upsert(link *domain.MondayLink) error {
	now := time.Now()
	if link.CreatedAt.IsZero() {
		link.CreatedAt = now
	}
	link.UpdatedAt = now
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "account_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"user_id", "encrypted_access_token", "scopes", "updated_at",
		}),
	}).Create(link).Error
}

func (r *gormMondayLinkRepository) FindByAccount(accountID string) (*domain.MondayLink, error) {
	var link domain.MondayLink
	err := r.db.Where("account_id = ?", accountID).First(&link).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &link, nil
}

// gormHandoffCodeRepository implements HandoffCodeRepository using GORM
type gormHandoffCodeRepository struct {
	db *gorm.DB
}

func NewGormHandoffCodeRepository(db *gorm.DB) HandoffCodeRepository {
	db.AutoMigrate(&domain.HandoffCode{})
	return &gormHandoffCodeRepository{db: db}
}

func (r *gormHandoffCodeRepository) Create(code *domain.HandoffCode) error {
	code.CreatedAt = time.Now()
	return r.db.Create(code).Error
}

func (r *gormHandoffCodeRepository) Consume(code string) (*domain.HandoffCode, error) {
	now := time.Now()
	// The WHERE clause makes consumption single-winner under concurrency.
	result := r.db.Model(&domain.HandoffCode{}).
		Where("code = ? AND used_at IS NULL", code).
		Update("used_at", now)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}

	var consumed domain.HandoffCode
	if err := r.db.Where("code = ?", code).First(&consumed).Error; err != nil {
		return nil, err
	}
	return &consumed, nil
}
