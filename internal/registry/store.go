package registry

import (
	"context"

	"github.com/psds-microservice/ticket-bot/internal/model"
	"gorm.io/gorm"
)

// GormStore persists tickets in the "tickets" table.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) LoadAll(ctx context.Context) ([]model.Ticket, error) {
	var items []model.Ticket
	if err := s.db.WithContext(ctx).Order("created_at ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *GormStore) Save(ctx context.Context, t *model.Ticket) error {
	return s.db.WithContext(ctx).Save(t).Error
}

func (s *GormStore) DeleteByChannel(ctx context.Context, channelID string) error {
	return s.db.WithContext(ctx).Where("channel_id = ?", channelID).Delete(&model.Ticket{}).Error
}
