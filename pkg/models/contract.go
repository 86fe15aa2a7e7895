package models

import (
	"time"
)

// Contract statuses
const (
	ContractDraft       = "draft"
	ContractUnderReview = "under_review"
	ContractSigned      = "signed"
	ContractExpired     = "expired"
)

// Collaborator roles
const (
	RoleViewer = "viewer"
	RoleEditor = "editor"
	RoleAdmin  = "admin"
)

// Contract is a contract document and its current content.
type Contract struct {
	ID            string `gorm:"primaryKey;size:36"`
	Title         string `gorm:"size:255"`
	Content       string `gorm:"type:text"`
	Status        string `gorm:"size:50;default:draft"`
	Version       int    `gorm:"default:1"`
	EnvelopeID    string `gorm:"size:64"`
	OwnerID       *uint
	Owner         *User
	TemplateID    *uint
	Collaborators []ContractCollaborator `gorm:"foreignKey:ContractID"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ContractCollaborator is the contract_collaborators join row.
type ContractCollaborator struct {
	ContractID string `gorm:"primaryKey;size:36"`
	UserID     uint   `gorm:"primaryKey"`
	User       User
	Role       string `gorm:"size:50;default:viewer"`
	CreatedAt  time.Time
}

// ContractVersion is a snapshot of contract content.
type ContractVersion struct {
	ID          uint   `gorm:"primaryKey"`
	ContractID  string `gorm:"size:36;index;not null"`
	Content     string `gorm:"type:text;not null"`
	Version     int    `gorm:"not null"`
	CreatedByID uint
	CreatedBy   User
	CreatedAt   time.Time
}

// Comment is a threaded remark on a contract.
type Comment struct {
	ID         uint   `gorm:"primaryKey"`
	ContractID string `gorm:"size:36;index;not null"`
	UserID     uint
	User       User
	Content    string `gorm:"type:text;not null"`
	Resolved   bool   `gorm:"default:false"`
	ParentID   *uint
	Replies    []Comment `gorm:"foreignKey:ParentID"`
	CreatedAt  time.Time
}

// Invitation statuses
const (
	InvitationPending  = "pending"
	InvitationAccepted = "accepted"
	InvitationRejected = "rejected"
)

// Invitation asks someone by email to collaborate on a contract.
type Invitation struct {
	ID         uint   `gorm:"primaryKey"`
	ContractID string `gorm:"size:36;index;not null"`
	Email      string `gorm:"size:255;not null"`
	Role       string `gorm:"size:50;default:viewer"`
	Message    string `gorm:"type:text"`
	Token      string `gorm:"size:255;uniqueIndex;not null"`
	Status     string `gorm:"size:50;default:pending"`
	CreatedAt  time.Time
	ExpiresAt  time.Time `gorm:"not null"`
}

// Expired reports whether the invitation can no longer be accepted at now.
func (i Invitation) Expired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}

// CalendarEvent is a deadline, renewal or review date attached to a contract.
type CalendarEvent struct {
	ID          uint      `gorm:"primaryKey"`
	ContractID  string    `gorm:"size:36;index;not null"`
	Title       string    `gorm:"size:255;not null"`
	Description string    `gorm:"type:text"`
	EventType   string    `gorm:"size:50"`
	Date        time.Time `gorm:"not null"`
	CreatedAt   time.Time
}

// All lists every model for auto-migration.
func All() []interface{} {
	return []interface{}{
		&User{}, &Tag{}, &Template{}, &Contract{}, &ContractCollaborator{},
		&ContractVersion{}, &Comment{}, &Invitation{}, &CalendarEvent{},
	}
}
