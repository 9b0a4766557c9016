package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"mini-crm/events"
	"mini-crm/middleware"
	"mini-crm/models"
	"mini-crm/utils"
)

type NoteHandler struct {
	repo   models.Repository
	kafka  utils.KafkaProducer
	logger *log.Logger
}

func NewNoteHandler(repo models.Repository, kafka utils.KafkaProducer, logger *log.Logger) *NoteHandler {
	return &NoteHandler{repo: repo, kafka: kafka, logger: logger}
}

type noteRequest struct {
	Content string `json:"content"`
	LeadID  uint   `json:"lead_id"`
}

func (h *NoteHandler) CreateNote(c *gin.Context) {
	owner, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req noteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	note := &models.Note{
		CreatedBy: owner,
		LeadID:    req.LeadID,
		Content:   req.Content,
	}

	if errs := models.ValidateNote(note); !errs.OK() {
		validationFailed(c, "Note creation failed", errs)
		return
	}

	if _, err := h.repo.GetLeadByID(owner, req.LeadID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			validationFailed(c, "Note creation failed", models.FieldErrors{"lead_id": "lead not found"})
			return
		}
		internalError(c, err)
		return
	}

	if err := h.repo.CreateNote(note); err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			validationFailed(c, "Note creation failed", models.FieldErrors{"content": "an identical note already exists for this lead"})
			return
		}
		internalError(c, err)
		return
	}

	go publishEvent(h.kafka, h.logger, events.Event{Event: events.NoteCreated, Note: note})

	c.JSON(http.StatusCreated, gin.H{"message": "Note created successfully", "data": note})
}

func (h *NoteHandler) GetNote(c *gin.Context) {
	owner, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	note, err := h.repo.GetNoteByID(owner, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			notFound(c, "note")
			return
		}
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Note retrieved successfully", "data": note})
}

func (h *NoteHandler) ListNotes(c *gin.Context) {
	owner, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	filter := models.NoteFilter{}
	if v := c.Query("lead_id"); v != "" {
		leadID, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			validationFailed(c, "Invalid filter", models.FieldErrors{"lead_id": "lead_id must be an integer"})
			return
		}
		filter.LeadID = uint(leadID)
	}

	page := parsePage(c)
	notes, total, err := h.repo.ListNotes(owner, filter, page)
	if err != nil {
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "Notes retrieved successfully",
		"data":       notes,
		"pagination": paginationMeta(page, total),
	})
}

func (h *NoteHandler) UpdateNote(c *gin.Context) {
	owner, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req noteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	note, err := h.repo.GetNoteByID(owner, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			notFound(c, "note")
			return
		}
		internalError(c, err)
		return
	}

	note.Content = req.Content
	if req.LeadID != 0 {
		note.LeadID = req.LeadID
	}

	if errs := models.ValidateNote(note); !errs.OK() {
		validationFailed(c, "Note update failed", errs)
		return
	}

	if err := h.repo.UpdateNote(note); err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			validationFailed(c, "Note update failed", models.FieldErrors{"content": "an identical note already exists for this lead"})
			return
		}
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Note updated successfully", "data": note})
}

func (h *NoteHandler) DeleteNote(c *gin.Context) {
	owner, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.repo.DeleteNote(owner, id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			notFound(c, "note")
			return
		}
		internalError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
