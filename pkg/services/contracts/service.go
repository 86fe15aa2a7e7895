package contracts

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"contract-flow/pkg/apperr"
	"contract-flow/pkg/mailer"
	"contract-flow/pkg/models"
)

// Service owns contract persistence and collaboration.
type Service struct {
	db     *gorm.DB
	mail   mailer.Mailer
	appURL string
	logger *zap.Logger
	now    func() time.Time
}

func NewService(db *gorm.DB, mail mailer.Mailer, appURL string, logger *zap.Logger) *Service {
	return &Service{
		db:     db,
		mail:   mail,
		appURL: strings.TrimRight(appURL, "/"),
		logger: logger,
		now:    time.Now,
	}
}

// dbError turns a gorm error into an AppError, reporting missing rows as
// not found with the given message.
func dbError(err error, notFound string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(notFound)
	}
	return apperr.Database("Database operation failed", err)
}

// EnsureUser returns the user with email, creating it when absent. An empty
// name defaults to the local part of the address.
func (s *Service) EnsureUser(ctx context.Context, email, name string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, apperr.Invalid("Email is required")
	}
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}
	user := models.User{Email: email}
	if err := s.db.WithContext(ctx).Where(models.User{Email: email}).Attrs(models.User{Name: name}).FirstOrCreate(&user).Error; err != nil {
		return nil, dbError(err, "User not found")
	}
	return &user, nil
}

// ContractInput carries the fields of a new contract.
type ContractInput struct {
	Title      string
	Content    string
	Status     string
	TemplateID *uint
}

var contractStatuses = map[string]bool{
	models.ContractDraft:       true,
	models.ContractUnderReview: true,
	models.ContractSigned:      true,
	models.ContractExpired:     true,
}

// CreateContract stores a contract owned by ownerID together with its first
// version snapshot.
func (s *Service) CreateContract(ctx context.Context, ownerID uint, in ContractInput) (*models.Contract, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, apperr.Invalid("Title is required")
	}
	status := in.Status
	if status == "" {
		status = models.ContractDraft
	}
	if !contractStatuses[status] {
		return nil, apperr.Invalidf("Unknown contract status %q", status)
	}

	c := models.Contract{
		ID:         uuid.NewString(),
		Title:      strings.TrimSpace(in.Title),
		Content:    in.Content,
		Status:     status,
		Version:    1,
		OwnerID:    &ownerID,
		TemplateID: in.TemplateID,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&c).Error; err != nil {
			return err
		}
		return tx.Create(&models.ContractVersion{
			ContractID:  c.ID,
			Content:     c.Content,
			Version:     1,
			CreatedByID: ownerID,
		}).Error
	})
	if err != nil {
		return nil, dbError(err, "Contract not found")
	}
	s.logger.Info("contract created", zap.String("contract_id", c.ID))
	return &c, nil
}

// ListContracts returns contracts, newest first.
func (s *Service) ListContracts(ctx context.Context) ([]models.Contract, error) {
	var out []models.Contract
	if err := s.db.WithContext(ctx).Preload("Owner").Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, dbError(err, "")
	}
	return out, nil
}

// GetContract loads a contract with its owner and collaborators.
func (s *Service) GetContract(ctx context.Context, id string) (*models.Contract, error) {
	var c models.Contract
	err := s.db.WithContext(ctx).
		Preload("Owner").
		Preload("Collaborators.User").
		First(&c, "id = ?", id).Error
	if err != nil {
		return nil, dbError(err, "Contract not found")
	}
	return &c, nil
}

// RecordEnvelope marks a contract as sent for signature.
func (s *Service) RecordEnvelope(ctx context.Context, id, envelopeID string) error {
	res := s.db.WithContext(ctx).Model(&models.Contract{}).Where("id = ?", id).
		Updates(map[string]any{"envelope_id": envelopeID, "status": models.ContractUnderReview})
	if res.Error != nil {
		return dbError(res.Error, "")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("Contract not found")
	}
	return nil
}

func (s *Service) requireContract(tx *gorm.DB, id string) (*models.Contract, error) {
	var c models.Contract
	if err := tx.First(&c, "id = ?", id).Error; err != nil {
		return nil, dbError(err, "Contract not found")
	}
	return &c, nil
}
