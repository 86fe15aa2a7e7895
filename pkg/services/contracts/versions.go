package contracts

import (
	"context"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	"gorm.io/gorm"

	"contract-flow/pkg/apperr"
	"contract-flow/pkg/models"
)

// CreateVersion snapshots content as the contract's next version and makes
// it the current content.
func (s *Service) CreateVersion(ctx context.Context, contractID, content string, userID uint) (*models.ContractVersion, error) {
	if strings.TrimSpace(content) == "" {
		return nil, apperr.Invalid("No content provided")
	}
	var v models.ContractVersion
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := s.requireContract(tx, contractID)
		if err != nil {
			return err
		}
		next := c.Version + 1
		if err := tx.Model(c).Updates(map[string]any{"version": next, "content": content}).Error; err != nil {
			return dbError(err, "")
		}
		v = models.ContractVersion{ContractID: contractID, Content: content, Version: next, CreatedByID: userID}
		if err := tx.Create(&v).Error; err != nil {
			return dbError(err, "")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Preload("CreatedBy").First(&v, v.ID).Error; err != nil {
		return nil, dbError(err, "Version not found")
	}
	return &v, nil
}

// Versions lists a contract's versions, newest first.
func (s *Service) Versions(ctx context.Context, contractID string) ([]models.ContractVersion, error) {
	var out []models.ContractVersion
	err := s.db.WithContext(ctx).Preload("CreatedBy").
		Where("contract_id = ?", contractID).
		Order("version DESC").
		Find(&out).Error
	if err != nil {
		return nil, dbError(err, "")
	}
	return out, nil
}

func (s *Service) Version(ctx context.Context, contractID string, number int) (*models.ContractVersion, error) {
	var v models.ContractVersion
	err := s.db.WithContext(ctx).Preload("CreatedBy").
		First(&v, "contract_id = ? AND version = ?", contractID, number).Error
	if err != nil {
		return nil, dbError(err, "Version not found")
	}
	return &v, nil
}

// DiffLine is one line of a version comparison.
type DiffLine struct {
	Op   string `json:"op"` // equal, insert or delete
	Text string `json:"text"`
}

// Comparison holds two versions and the line diff from the first to the second.
type Comparison struct {
	From    *models.ContractVersion
	To      *models.ContractVersion
	Lines   []DiffLine
	Added   int
	Removed int
}

func (s *Service) CompareVersions(ctx context.Context, contractID string, from, to int) (*Comparison, error) {
	if from <= 0 || to <= 0 {
		return nil, apperr.Invalid("Both versions must be specified")
	}
	v1, err := s.Version(ctx, contractID, from)
	if err != nil {
		return nil, err
	}
	v2, err := s.Version(ctx, contractID, to)
	if err != nil {
		return nil, err
	}
	cmp := &Comparison{From: v1, To: v2, Lines: LineDiff(v1.Content, v2.Content)}
	for _, l := range cmp.Lines {
		switch l.Op {
		case "insert":
			cmp.Added++
		case "delete":
			cmp.Removed++
		}
	}
	return cmp, nil
}

// LineDiff compares two texts line by line.
func LineDiff(oldText, newText string) []DiffLine {
	dmp := diffmatchpatch.New()
	a, b, lineArray := dmp.DiffLinesToChars(oldText, newText)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lineArray)

	out := []DiffLine{}
	for _, d := range diffs {
		op := "equal"
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			op = "insert"
		case diffmatchpatch.DiffDelete:
			op = "delete"
		}
		lines := strings.Split(d.Text, "\n")
		if lines[len(lines)-1] == "" {
			lines = lines[:len(lines)-1]
		}
		for _, line := range lines {
			out = append(out, DiffLine{Op: op, Text: line})
		}
	}
	return out
}
