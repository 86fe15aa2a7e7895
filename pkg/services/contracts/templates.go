package contracts

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"contract-flow/pkg/apperr"
	"contract-flow/pkg/models"
)

// TemplateInput carries template fields. A nil Tags leaves tags unchanged on
// update; an empty slice clears them.
type TemplateInput struct {
	Name        string
	Description string
	Content     string
	Category    string
	Tags        []string
}

// TemplateFilter narrows ListTemplates. Query matches name or description.
type TemplateFilter struct {
	Category string
	Tag      string
	Query    string
}

func (s *Service) CreateTemplate(ctx context.Context, in TemplateInput, createdBy *uint) (*models.Template, error) {
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Content) == "" {
		return nil, apperr.Invalid("Name and content are required")
	}
	t := models.Template{
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Content:     in.Content,
		Category:    in.Category,
		CreatedByID: createdBy,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tags, err := ensureTags(tx, in.Tags)
		if err != nil {
			return err
		}
		t.Tags = tags
		return tx.Create(&t).Error
	})
	if err != nil {
		return nil, dbError(err, "")
	}
	s.logger.Info("template created", zap.Uint("template_id", t.ID), zap.Strings("tags", t.TagNames()))
	return &t, nil
}

// ensureTags gets or creates a tag row per distinct non-empty name.
func ensureTags(tx *gorm.DB, names []string) ([]models.Tag, error) {
	tags := make([]models.Tag, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		var tag models.Tag
		if err := tx.Where(models.Tag{Name: name}).FirstOrCreate(&tag).Error; err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

func (s *Service) ListTemplates(ctx context.Context, f TemplateFilter) ([]models.Template, error) {
	q := s.db.WithContext(ctx).Model(&models.Template{}).Preload("Tags")
	if f.Category != "" {
		q = q.Where("templates.category = ?", f.Category)
	}
	if f.Tag != "" {
		q = q.Joins("JOIN template_tags ON template_tags.template_id = templates.id").
			Joins("JOIN tags ON tags.id = template_tags.tag_id").
			Where("tags.name = ?", f.Tag)
	}
	if query := strings.TrimSpace(f.Query); query != "" {
		pattern := "%" + strings.ToLower(query) + "%"
		q = q.Where("LOWER(templates.name) LIKE ? OR LOWER(templates.description) LIKE ?", pattern, pattern)
	}
	var out []models.Template
	if err := q.Order("templates.name").Find(&out).Error; err != nil {
		return nil, dbError(err, "")
	}
	return out, nil
}

func (s *Service) GetTemplate(ctx context.Context, id uint) (*models.Template, error) {
	var t models.Template
	if err := s.db.WithContext(ctx).Preload("Tags").First(&t, id).Error; err != nil {
		return nil, dbError(err, "Template not found")
	}
	return &t, nil
}

// UpdateTemplate overwrites the non-empty fields of in.
func (s *Service) UpdateTemplate(ctx context.Context, id uint, in TemplateInput) (*models.Template, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t models.Template
		if err := tx.First(&t, id).Error; err != nil {
			return err
		}
		updates := map[string]any{}
		if v := strings.TrimSpace(in.Name); v != "" {
			updates["name"] = v
		}
		if in.Description != "" {
			updates["description"] = in.Description
		}
		if in.Content != "" {
			updates["content"] = in.Content
		}
		if in.Category != "" {
			updates["category"] = in.Category
		}
		if len(updates) > 0 {
			if err := tx.Model(&t).Updates(updates).Error; err != nil {
				return err
			}
		}
		if in.Tags != nil {
			tags, err := ensureTags(tx, in.Tags)
			if err != nil {
				return err
			}
			if err := tx.Model(&t).Association("Tags").Replace(tags); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, dbError(err, "Template not found")
	}
	return s.GetTemplate(ctx, id)
}

func (s *Service) DeleteTemplate(ctx context.Context, id uint) error {
	t := models.Template{}
	t.ID = id
	res := s.db.WithContext(ctx).Select("Tags").Delete(&t)
	if res.Error != nil {
		return dbError(res.Error, "")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("Template not found")
	}
	return nil
}

// TemplateByName finds a template by its exact name.
func (s *Service) TemplateByName(ctx context.Context, name string) (*models.Template, error) {
	var t models.Template
	if err := s.db.WithContext(ctx).Preload("Tags").First(&t, "name = ?", name).Error; err != nil {
		return nil, dbError(err, "Template not found")
	}
	return &t, nil
}
