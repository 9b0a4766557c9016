package handlers

import (
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"mini-crm/middleware"
	"mini-crm/models"
)

const recentActivityLimit = 5

type DashboardHandler struct {
	repo models.Repository
}

func NewDashboardHandler(repo models.Repository) *DashboardHandler {
	return &DashboardHandler{repo: repo}
}

type activityItem struct {
	ID          uint      `json:"id"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
}

// GetDashboard aggregates per-owner counts and the latest note/reminder
// activity into one payload.
func (h *DashboardHandler) GetDashboard(c *gin.Context) {
	owner, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	totalLeads, err := h.repo.CountLeads(owner)
	if err != nil {
		internalError(c, err)
		return
	}
	activeContacts, err := h.repo.CountContacts(owner)
	if err != nil {
		internalError(c, err)
		return
	}
	pendingReminders, err := h.repo.CountPendingReminders(owner, time.Now())
	if err != nil {
		internalError(c, err)
		return
	}

	recentNotes, err := h.repo.RecentNoteActivity(owner, recentActivityLimit)
	if err != nil {
		internalError(c, err)
		return
	}
	recentReminders, err := h.repo.RecentReminderActivity(owner, recentActivityLimit)
	if err != nil {
		internalError(c, err)
		return
	}

	activity := make([]activityItem, 0, len(recentNotes)+len(recentReminders))
	for _, row := range recentNotes {
		activity = append(activity, activityItem{
			ID:          row.ID,
			Description: fmt.Sprintf("Note added for lead: %s", row.LeadName),
			Timestamp:   row.CreatedAt,
		})
	}
	for _, row := range recentReminders {
		activity = append(activity, activityItem{
			ID:          row.ID,
			Description: fmt.Sprintf("Reminder created for lead: %s", row.LeadName),
			Timestamp:   row.CreatedAt,
		})
	}
	sort.Slice(activity, func(i, j int) bool {
		return activity[i].Timestamp.After(activity[j].Timestamp)
	})

	c.JSON(http.StatusOK, gin.H{
		"message": "Dashboard data retrieved successfully",
		"data": gin.H{
			"stats": gin.H{
				"total_leads":       totalLeads,
				"active_contacts":   activeContacts,
				"pending_reminders": pendingReminders,
				"recent_notes":      len(recentNotes),
			},
			"recent_activity": activity,
		},
	})
}
