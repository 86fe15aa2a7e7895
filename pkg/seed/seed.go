package seed

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"contract-flow/pkg/apperr"
	"contract-flow/pkg/models"
	"contract-flow/pkg/services/contracts"
)

//go:embed templates.yaml
var builtin []byte

// Template is one seeded template.
type Template struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Category    string   `yaml:"category"`
	Tags        []string `yaml:"tags"`
	Content     string   `yaml:"content"`
}

type file struct {
	Templates []Template `yaml:"templates"`
}

// Store is the part of the contracts service seeding needs.
type Store interface {
	TemplateByName(ctx context.Context, name string) (*models.Template, error)
	CreateTemplate(ctx context.Context, in contracts.TemplateInput, createdBy *uint) (*models.Template, error)
}

// Builtin returns the bundled starter templates.
func Builtin() ([]Template, error) {
	return Parse(builtin)
}

func Parse(data []byte) ([]Template, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return f.Templates, nil
}

// Templates creates each template whose name is not yet taken and reports how
// many were added.
func Templates(ctx context.Context, store Store, templates []Template, logger *zap.Logger) (int, error) {
	added := 0
	for _, t := range templates {
		_, err := store.TemplateByName(ctx, t.Name)
		if err == nil {
			logger.Debug("template already present", zap.String("name", t.Name))
			continue
		}
		if !errors.Is(err, apperr.ErrNotFound) {
			return added, err
		}
		if _, err := store.CreateTemplate(ctx, contracts.TemplateInput{
			Name:        t.Name,
			Description: t.Description,
			Content:     t.Content,
			Category:    t.Category,
			Tags:        t.Tags,
		}, nil); err != nil {
			return added, fmt.Errorf("seed template %q: %w", t.Name, err)
		}
		added++
	}
	logger.Info("templates seeded", zap.Int("added", added), zap.Int("total", len(templates)))
	return added, nil
}
