package models

import "time"

// Lead statuses.
const (
	LeadStatusNew       = "NEW"
	LeadStatusContacted = "CONTACTED"
	LeadStatusQualified = "QUALIFIED"
	LeadStatusLost      = "LOST"
)

// Reminder statuses.
const (
	ReminderStatusPending   = "PENDING"
	ReminderStatusCompleted = "COMPLETED"
	ReminderStatusCancelled = "CANCELLED"
)

type User struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Username     string    `json:"username" gorm:"uniqueIndex;not null"`
	Email        string    `json:"email" gorm:"not null"`
	PasswordHash string    `json:"-" gorm:"not null"`
	CreatedAt    time.Time `json:"created_at"`
}

// Lead is the root entity. Every dependent row carries the same CreatedBy
// and is removed when the lead is deleted.
type Lead struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedBy uint      `json:"created_by" gorm:"index;not null"`
	Name      string    `json:"name" gorm:"not null"`
	Email     string    `json:"email" gorm:"not null"`
	Company   string    `json:"company"`
	Status    string    `json:"status" gorm:"not null;default:NEW"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Contact struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedBy uint      `json:"created_by" gorm:"index;not null"`
	LeadID    uint      `json:"lead_id" gorm:"index;not null"`
	Name      string    `json:"name" gorm:"not null"`
	Email     string    `json:"email" gorm:"not null"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}

type Note struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedBy uint      `json:"created_by" gorm:"index;not null"`
	LeadID    uint      `json:"lead_id" gorm:"index;not null"`
	Content   string    `json:"content" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at"`
}

type Reminder struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedBy uint      `json:"created_by" gorm:"index;not null"`
	LeadID    uint      `json:"lead_id" gorm:"index;not null"`
	Message   string    `json:"message" gorm:"not null"`
	Status    string    `json:"status" gorm:"not null;default:PENDING"`
	RemindAt  time.Time `json:"remind_at" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
}

func ValidLeadStatus(s string) bool {
	switch s {
	case LeadStatusNew, LeadStatusContacted, LeadStatusQualified, LeadStatusLost:
		return true
	}
	return false
}

func ValidReminderStatus(s string) bool {
	switch s {
	case ReminderStatusPending, ReminderStatusCompleted, ReminderStatusCancelled:
		return true
	}
	return false
}
