package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"mini-crm/middleware"
	"mini-crm/models"
	"mini-crm/utils"
)

// Scheduler enqueues the deferred job that will fire a reminder.
type Scheduler interface {
	Schedule(ctx context.Context, reminderID uint, fireAt time.Time) error
}

type ReminderHandler struct {
	repo      models.Repository
	scheduler Scheduler
	logger    *log.Logger
}

func NewReminderHandler(repo models.Repository, scheduler Scheduler, logger *log.Logger) *ReminderHandler {
	return &ReminderHandler{repo: repo, scheduler: scheduler, logger: logger}
}

// remind_at is bound as a string and parsed by hand so a malformed
// timestamp surfaces as a field error, not a binding failure.
type reminderCreateRequest struct {
	Message  string `json:"message"`
	LeadID   uint   `json:"lead_id"`
	RemindAt string `json:"remind_at"`
	Status   string `json:"status"`
}

type reminderUpdateRequest struct {
	Message  *string `json:"message"`
	LeadID   *uint   `json:"lead_id"`
	RemindAt *string `json:"remind_at"`
	Status   *string `json:"status"`
}

func (h *ReminderHandler) CreateReminder(c *gin.Context) {
	owner, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req reminderCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reminder := &models.Reminder{
		CreatedBy: owner,
		LeadID:    req.LeadID,
		Message:   req.Message,
		Status:    req.Status,
	}
	if req.RemindAt != "" {
		at, err := parseTimestamp(req.RemindAt)
		if err != nil {
			validationFailed(c, "Reminder creation failed", models.FieldErrors{"remind_at": "remind_at is not a valid timestamp"})
			return
		}
		reminder.RemindAt = at
	}
	if reminder.Status == "" {
		reminder.Status = models.ReminderStatusPending
	}

	if errs := models.ValidateReminder(reminder, time.Now()); !errs.OK() {
		validationFailed(c, "Reminder creation failed", errs)
		return
	}

	if _, err := h.repo.GetLeadByID(owner, req.LeadID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			validationFailed(c, "Reminder creation failed", models.FieldErrors{"lead_id": "lead not found"})
			return
		}
		internalError(c, err)
		return
	}

	if err := h.repo.CreateReminder(reminder); err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			validationFailed(c, "Reminder creation failed", models.FieldErrors{"message": "an identical reminder already exists for this lead"})
			return
		}
		internalError(c, err)
		return
	}

	// The job is scheduled after the row exists; if enqueueing fails the
	// reminder stays PENDING and is reported, never lost silently.
	if reminder.Status == models.ReminderStatusPending {
		if err := h.scheduler.Schedule(c.Request.Context(), reminder.ID, reminder.RemindAt); err != nil {
			h.logger.Printf("Failed to schedule reminder %d: %v", reminder.ID, err)
			utils.CaptureError(err, map[string]interface{}{"reminder_id": reminder.ID})
		}
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Reminder created successfully", "data": reminder})
}

func (h *ReminderHandler) GetReminder(c *gin.Context) {
	owner, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	reminder, err := h.repo.GetReminderByID(owner, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			notFound(c, "reminder")
			return
		}
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Reminder retrieved successfully", "data": reminder})
}

func (h *ReminderHandler) ListReminders(c *gin.Context) {
	owner, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	filter := models.ReminderFilter{Status: c.Query("status")}
	if filter.Status != "" && !models.ValidReminderStatus(filter.Status) {
		validationFailed(c, "Invalid filter", models.FieldErrors{"status": "status must be one of PENDING, COMPLETED, CANCELLED"})
		return
	}
	if v := c.Query("lead_id"); v != "" {
		leadID, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			validationFailed(c, "Invalid filter", models.FieldErrors{"lead_id": "lead_id must be an integer"})
			return
		}
		filter.LeadID = uint(leadID)
	}

	page := parsePage(c)
	reminders, total, err := h.repo.ListReminders(owner, filter, page)
	if err != nil {
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "Reminders retrieved successfully",
		"data":       reminders,
		"pagination": paginationMeta(page, total),
	})
}

// UpdateReminder is a partial update. A changed remind_at triggers a
// reschedule; the superseded job is neutralised by the status gate when it
// fires. A remind_at that is not in the future is logged and skipped
// without failing the rest of the update.
func (h *ReminderHandler) UpdateReminder(c *gin.Context) {
	owner, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req reminderUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reminder, err := h.repo.GetReminderByID(owner, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			notFound(c, "reminder")
			return
		}
		internalError(c, err)
		return
	}

	if req.Message != nil {
		if *req.Message == "" {
			validationFailed(c, "Reminder update failed", models.FieldErrors{"message": "message is required"})
			return
		}
		reminder.Message = *req.Message
	}
	if req.Status != nil {
		if !models.ValidReminderStatus(*req.Status) {
			validationFailed(c, "Reminder update failed", models.FieldErrors{"status": "status must be one of PENDING, COMPLETED, CANCELLED"})
			return
		}
		reminder.Status = *req.Status
	}
	if req.LeadID != nil && *req.LeadID != reminder.LeadID {
		if _, err := h.repo.GetLeadByID(owner, *req.LeadID); err != nil {
			if errors.Is(err, models.ErrNotFound) {
				validationFailed(c, "Reminder update failed", models.FieldErrors{"lead_id": "lead not found"})
				return
			}
			internalError(c, err)
			return
		}
		reminder.LeadID = *req.LeadID
	}

	reschedule := false
	if req.RemindAt != nil {
		at, err := parseTimestamp(*req.RemindAt)
		if err != nil {
			validationFailed(c, "Reminder update failed", models.FieldErrors{"remind_at": "remind_at is not a valid timestamp"})
			return
		}
		if !at.Equal(reminder.RemindAt) {
			if at.After(time.Now()) {
				reminder.RemindAt = at
				reschedule = true
			} else {
				h.logger.Printf("Reminder %d: ignoring reschedule to past timestamp %s", reminder.ID, at)
			}
		}
	}

	if err := h.repo.UpdateReminder(reminder); err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			validationFailed(c, "Reminder update failed", models.FieldErrors{"message": "an identical reminder already exists for this lead"})
			return
		}
		internalError(c, err)
		return
	}

	if reschedule && reminder.Status == models.ReminderStatusPending {
		if err := h.scheduler.Schedule(c.Request.Context(), reminder.ID, reminder.RemindAt); err != nil {
			h.logger.Printf("Failed to reschedule reminder %d: %v", reminder.ID, err)
			utils.CaptureError(err, map[string]interface{}{"reminder_id": reminder.ID})
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "Reminder updated successfully", "data": reminder})
}

func (h *ReminderHandler) DeleteReminder(c *gin.Context) {
	owner, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.repo.DeleteReminder(owner, id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			notFound(c, "reminder")
			return
		}
		internalError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
