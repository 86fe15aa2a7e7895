package contracts

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"contract-flow/pkg/apperr"
	"contract-flow/pkg/models"
)

// EventInput describes a calendar entry such as a renewal or review date.
type EventInput struct {
	Title       string
	Description string
	EventType   string
	Date        time.Time
}

func (s *Service) AddEvent(ctx context.Context, contractID string, in EventInput) (*models.CalendarEvent, error) {
	if strings.TrimSpace(in.Title) == "" || in.Date.IsZero() {
		return nil, apperr.Invalid("Title and date are required")
	}
	ev := models.CalendarEvent{
		ContractID:  contractID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		EventType:   in.EventType,
		Date:        in.Date.UTC(),
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.requireContract(tx, contractID); err != nil {
			return err
		}
		if err := tx.Create(&ev).Error; err != nil {
			return dbError(err, "")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// Events lists a contract's events by date.
func (s *Service) Events(ctx context.Context, contractID string) ([]models.CalendarEvent, error) {
	var out []models.CalendarEvent
	if err := s.db.WithContext(ctx).Where("contract_id = ?", contractID).Order("date").Find(&out).Error; err != nil {
		return nil, dbError(err, "")
	}
	return out, nil
}
