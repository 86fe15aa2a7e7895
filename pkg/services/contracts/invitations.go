package contracts

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"contract-flow/pkg/apperr"
	"contract-flow/pkg/logging"
	"contract-flow/pkg/mailer"
	"contract-flow/pkg/models"
)

// InvitationTTL is how long an invitation can be accepted.
const InvitationTTL = 7 * 24 * time.Hour

var collaboratorRoles = map[string]bool{
	models.RoleViewer: true,
	models.RoleEditor: true,
	models.RoleAdmin:  true,
}

// Invite records an invitation and emails its accept link. A failed email is
// logged and the invitation is kept.
func (s *Service) Invite(ctx context.Context, contractID, email, role, message string) (*models.Invitation, error) {
	if strings.TrimSpace(email) == "" {
		return nil, apperr.Invalid("Email is required")
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil {
		return nil, apperr.Invalidf("Invalid email address %q", email)
	}
	if role == "" {
		role = models.RoleViewer
	}
	if !collaboratorRoles[role] {
		return nil, apperr.Invalidf("Unknown role %q", role)
	}

	now := s.now().UTC()
	inv := models.Invitation{
		ContractID: contractID,
		Email:      strings.ToLower(addr.Address),
		Role:       role,
		Message:    message,
		Token:      uuid.NewString(),
		Status:     models.InvitationPending,
		CreatedAt:  now,
		ExpiresAt:  now.Add(InvitationTTL),
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.requireContract(tx, contractID); err != nil {
			return err
		}
		if err := tx.Create(&inv).Error; err != nil {
			return dbError(err, "")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log := logging.FromContext(ctx, s.logger).With(zap.String("contract_id", contractID), zap.Uint("invitation_id", inv.ID))
	if err := s.mail.Send(ctx, s.invitationMessage(inv)); err != nil {
		log.Warn("failed to send invitation email", zap.Error(err))
	} else {
		log.Info("invitation sent")
	}
	return &inv, nil
}

// AcceptURL is the link an invitee follows.
func (s *Service) AcceptURL(token string) string {
	return fmt.Sprintf("%s/invitations/%s/accept", s.appURL, token)
}

func (s *Service) invitationMessage(inv models.Invitation) mailer.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello,\n\nYou've been invited to collaborate on a contract with the role of %s.\n\n", inv.Role)
	if inv.Message != "" {
		fmt.Fprintf(&b, "%s\n\n", inv.Message)
	}
	fmt.Fprintf(&b, "Click the following link to accept the invitation:\n%s\n\n", s.AcceptURL(inv.Token))
	fmt.Fprintf(&b, "This invitation will expire on %s.\n", inv.ExpiresAt.Format("2006-01-02 15:04:05 UTC"))
	name, _, _ := strings.Cut(inv.Email, "@")
	return mailer.Message{
		To:      inv.Email,
		ToName:  name,
		Subject: "Contract Collaboration Invitation",
		Body:    b.String(),
	}
}

// Invitations lists a contract's invitations, newest first.
func (s *Service) Invitations(ctx context.Context, contractID string) ([]models.Invitation, error) {
	var out []models.Invitation
	if err := s.db.WithContext(ctx).Where("contract_id = ?", contractID).Order("created_at DESC, id DESC").Find(&out).Error; err != nil {
		return nil, dbError(err, "")
	}
	return out, nil
}

// AcceptInvitation adds the invitee as a collaborator with the invited role,
// creating the user if needed. Only pending, unexpired invitations can be
// accepted.
func (s *Service) AcceptInvitation(ctx context.Context, token string) (*models.Contract, error) {
	var contractID string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var inv models.Invitation
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&inv, "token = ? AND status = ?", token, models.InvitationPending).Error
		if err != nil {
			return dbError(err, "Invalid or expired invitation")
		}
		if inv.Expired(s.now()) {
			return apperr.New("INVITATION_EXPIRED", "Invalid or expired invitation", apperr.ErrInvalidInput)
		}

		name, _, _ := strings.Cut(inv.Email, "@")
		user := models.User{Email: inv.Email}
		if err := tx.Where(models.User{Email: inv.Email}).Attrs(models.User{Name: name}).FirstOrCreate(&user).Error; err != nil {
			return dbError(err, "")
		}
		collab := models.ContractCollaborator{ContractID: inv.ContractID, UserID: user.ID, Role: inv.Role}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&collab).Error; err != nil {
			return dbError(err, "")
		}
		if err := tx.Model(&inv).Update("status", models.InvitationAccepted).Error; err != nil {
			return dbError(err, "")
		}
		contractID = inv.ContractID
		return nil
	})
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx, s.logger).Info("invitation accepted", zap.String("contract_id", contractID))
	return s.GetContract(ctx, contractID)
}

// Collaborators lists the users on a contract.
func (s *Service) Collaborators(ctx context.Context, contractID string) ([]models.ContractCollaborator, error) {
	var out []models.ContractCollaborator
	if err := s.db.WithContext(ctx).Preload("User").Where("contract_id = ?", contractID).Order("created_at").Find(&out).Error; err != nil {
		return nil, dbError(err, "")
	}
	return out, nil
}

func (s *Service) RemoveCollaborator(ctx context.Context, contractID string, userID uint) error {
	res := s.db.WithContext(ctx).Where("contract_id = ? AND user_id = ?", contractID, userID).Delete(&models.ContractCollaborator{})
	if res.Error != nil {
		return dbError(res.Error, "")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("Collaborator not found")
	}
	return nil
}
