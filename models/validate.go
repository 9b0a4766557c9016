package models

import (
	"net/mail"
	"strings"
	"time"
)

// FieldErrors maps a field name to a human-readable problem with it.
// An empty map means the input passed.
type FieldErrors map[string]string

func (fe FieldErrors) OK() bool { return len(fe) == 0 }

// ValidateLead checks a lead before it is persisted. Status defaults to
// NEW upstream, so an empty status is accepted here.
func ValidateLead(l *Lead) FieldErrors {
	errs := FieldErrors{}
	if strings.TrimSpace(l.Name) == "" {
		errs["name"] = "name is required"
	}
	if strings.TrimSpace(l.Email) == "" {
		errs["email"] = "email is required"
	} else if _, err := mail.ParseAddress(l.Email); err != nil {
		errs["email"] = "email is not a valid address"
	}
	if l.Status != "" && !ValidLeadStatus(l.Status) {
		errs["status"] = "status must be one of NEW, CONTACTED, QUALIFIED, LOST"
	}
	return errs
}

func ValidateContact(c *Contact) FieldErrors {
	errs := FieldErrors{}
	if strings.TrimSpace(c.Name) == "" {
		errs["name"] = "name is required"
	}
	if c.LeadID == 0 {
		errs["lead_id"] = "lead_id is required"
	}
	if strings.TrimSpace(c.Email) == "" {
		errs["email"] = "email is required"
	} else if _, err := mail.ParseAddress(c.Email); err != nil {
		errs["email"] = "email is not a valid address"
	}
	return errs
}

func ValidateNote(n *Note) FieldErrors {
	errs := FieldErrors{}
	if n.LeadID == 0 {
		errs["lead_id"] = "lead_id is required"
	}
	if strings.TrimSpace(n.Content) == "" {
		errs["content"] = "content is required"
	}
	return errs
}

// ValidateReminder enforces the strictly-in-the-future rule on remind_at.
// now is passed in so tests control the clock.
func ValidateReminder(r *Reminder, now time.Time) FieldErrors {
	errs := FieldErrors{}
	if strings.TrimSpace(r.Message) == "" {
		errs["message"] = "message is required"
	}
	if r.LeadID == 0 {
		errs["lead_id"] = "lead_id is required"
	}
	if r.RemindAt.IsZero() {
		errs["remind_at"] = "remind_at is required"
	} else if !r.RemindAt.After(now) {
		errs["remind_at"] = "remind_at must be in the future"
	}
	if r.Status != "" && !ValidReminderStatus(r.Status) {
		errs["status"] = "status must be one of PENDING, COMPLETED, CANCELLED"
	}
	return errs
}
