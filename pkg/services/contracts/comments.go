package contracts

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"contract-flow/pkg/apperr"
	"contract-flow/pkg/models"
)

// AddComment stores a comment, or a reply when parentID names a comment on
// the same contract.
func (s *Service) AddComment(ctx context.Context, contractID string, userID uint, content string, parentID *uint) (*models.Comment, error) {
	if strings.TrimSpace(content) == "" {
		return nil, apperr.Invalid("No comment content provided")
	}
	c := models.Comment{ContractID: contractID, UserID: userID, Content: content, ParentID: parentID}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.requireContract(tx, contractID); err != nil {
			return err
		}
		if parentID != nil {
			var parent models.Comment
			if err := tx.First(&parent, "id = ? AND contract_id = ?", *parentID, contractID).Error; err != nil {
				return dbError(err, "Parent comment not found")
			}
		}
		if err := tx.Create(&c).Error; err != nil {
			return dbError(err, "")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Preload("User").First(&c, c.ID).Error; err != nil {
		return nil, dbError(err, "Comment not found")
	}
	return &c, nil
}

// Comments lists a contract's comments in creation order. Resolved ones are
// included only on request.
func (s *Service) Comments(ctx context.Context, contractID string, includeResolved bool) ([]models.Comment, error) {
	q := s.db.WithContext(ctx).Preload("User").Where("contract_id = ?", contractID)
	if !includeResolved {
		q = q.Where("resolved = ?", false)
	}
	var out []models.Comment
	if err := q.Order("created_at, id").Find(&out).Error; err != nil {
		return nil, dbError(err, "")
	}
	return out, nil
}

func (s *Service) ResolveComment(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Model(&models.Comment{}).Where("id = ?", id).Update("resolved", true)
	if res.Error != nil {
		return dbError(res.Error, "")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("Comment not found")
	}
	return nil
}
