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

type ContactHandler struct {
	repo   models.Repository
	kafka  utils.KafkaProducer
	logger *log.Logger
}

func NewContactHandler(repo models.Repository, kafka utils.KafkaProducer, logger *log.Logger) *ContactHandler {
	return &ContactHandler{repo: repo, kafka: kafka, logger: logger}
}

type contactRequest struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Phone  string `json:"phone"`
	LeadID uint   `json:"lead_id"`
}

func (h *ContactHandler) CreateContact(c *gin.Context) {
	owner, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req contactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contact := &models.Contact{
		CreatedBy: owner,
		LeadID:    req.LeadID,
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
	}

	if errs := models.ValidateContact(contact); !errs.OK() {
		validationFailed(c, "Contact creation failed", errs)
		return
	}

	if _, err := h.repo.GetLeadByID(owner, req.LeadID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			validationFailed(c, "Contact creation failed", models.FieldErrors{"lead_id": "lead not found"})
			return
		}
		internalError(c, err)
		return
	}

	if err := h.repo.CreateContact(contact); err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			validationFailed(c, "Contact creation failed", models.FieldErrors{"email": "a contact with this email already exists"})
			return
		}
		internalError(c, err)
		return
	}

	go publishEvent(h.kafka, h.logger, events.Event{Event: events.ContactCreated, Contact: contact})

	c.JSON(http.StatusCreated, gin.H{"message": "Contact created successfully", "data": contact})
}

func (h *ContactHandler) GetContact(c *gin.Context) {
	owner, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	contact, err := h.repo.GetContactByID(owner, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			notFound(c, "contact")
			return
		}
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Contact retrieved successfully", "data": contact})
}

func (h *ContactHandler) ListContacts(c *gin.Context) {
	owner, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	filter := models.ContactFilter{}
	if v := c.Query("lead_id"); v != "" {
		leadID, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			validationFailed(c, "Invalid filter", models.FieldErrors{"lead_id": "lead_id must be an integer"})
			return
		}
		filter.LeadID = uint(leadID)
	}

	page := parsePage(c)
	contacts, total, err := h.repo.ListContacts(owner, filter, page)
	if err != nil {
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "Contacts retrieved successfully",
		"data":       contacts,
		"pagination": paginationMeta(page, total),
	})
}

func (h *ContactHandler) UpdateContact(c *gin.Context) {
	owner, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req contactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contact, err := h.repo.GetContactByID(owner, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			notFound(c, "contact")
			return
		}
		internalError(c, err)
		return
	}

	contact.Name = req.Name
	contact.Email = req.Email
	contact.Phone = req.Phone
	if req.LeadID != 0 {
		contact.LeadID = req.LeadID
	}

	if errs := models.ValidateContact(contact); !errs.OK() {
		validationFailed(c, "Contact update failed", errs)
		return
	}

	if err := h.repo.UpdateContact(contact); err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			validationFailed(c, "Contact update failed", models.FieldErrors{"email": "a contact with this email already exists"})
			return
		}
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Contact updated successfully", "data": contact})
}

func (h *ContactHandler) DeleteContact(c *gin.Context) {
	owner, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.repo.DeleteContact(owner, id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			notFound(c, "contact")
			return
		}
		internalError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
