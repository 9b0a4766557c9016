package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"mini-crm/events"
	"mini-crm/middleware"
	"mini-crm/models"
	"mini-crm/utils"
)

const leadSearchIndex = "leads"

type LeadHandler struct {
	repo   models.Repository
	kafka  utils.KafkaProducer
	cache  utils.RedisClient
	es     utils.ElasticsearchClient
	logger *log.Logger
}

func NewLeadHandler(repo models.Repository, kafka utils.KafkaProducer, cache utils.RedisClient, es utils.ElasticsearchClient, logger *log.Logger) *LeadHandler {
	return &LeadHandler{repo: repo, kafka: kafka, cache: cache, es: es, logger: logger}
}

type leadRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Company string `json:"company"`
	Status  string `json:"status"`
	Phone   string `json:"phone"`
}

func (h *LeadHandler) CreateLead(c *gin.Context) {
	owner, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req leadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	lead := &models.Lead{
		CreatedBy: owner,
		Name:      req.Name,
		Email:     req.Email,
		Company:   req.Company,
		Status:    req.Status,
		Phone:     req.Phone,
	}
	if lead.Status == "" {
		lead.Status = models.LeadStatusNew
	}

	if errs := models.ValidateLead(lead); !errs.OK() {
		validationFailed(c, "Lead creation failed", errs)
		return
	}

	if err := h.repo.CreateLead(lead); err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			validationFailed(c, "Lead creation failed", models.FieldErrors{"email": "a lead with this email already exists"})
			return
		}
		internalError(c, err)
		return
	}

	go publishEvent(h.kafka, h.logger, events.Event{Event: events.LeadCreated, Lead: lead})

	c.JSON(http.StatusCreated, gin.H{"message": "Lead created successfully", "data": lead})
}

func (h *LeadHandler) GetLead(c *gin.Context) {
	owner, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	// Cache-aside: the consumer warms leads:<id> on lifecycle events.
	if h.cache != nil {
		if cached, err := h.cache.GetFromCache(c.Request.Context(), leadCacheKey(id)); err == nil && cached != "" {
			var lead models.Lead
			if err := json.Unmarshal([]byte(cached), &lead); err == nil && lead.CreatedBy == owner {
				c.JSON(http.StatusOK, gin.H{"message": "Lead retrieved successfully", "data": lead})
				return
			}
		}
	}

	lead, err := h.repo.GetLeadByID(owner, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			notFound(c, "lead")
			return
		}
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Lead retrieved successfully", "data": lead})
}

func (h *LeadHandler) ListLeads(c *gin.Context) {
	owner, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	filter := models.LeadFilter{Status: c.Query("status")}
	if filter.Status != "" && !models.ValidLeadStatus(filter.Status) {
		validationFailed(c, "Invalid filter", models.FieldErrors{"status": "status must be one of NEW, CONTACTED, QUALIFIED, LOST"})
		return
	}
	if v := c.Query("from"); v != "" {
		t, err := parseTimestamp(v)
		if err != nil {
			validationFailed(c, "Invalid filter", models.FieldErrors{"from": "from is not a valid timestamp"})
			return
		}
		filter.CreatedFrom = &t
	}
	if v := c.Query("to"); v != "" {
		t, err := parseTimestamp(v)
		if err != nil {
			validationFailed(c, "Invalid filter", models.FieldErrors{"to": "to is not a valid timestamp"})
			return
		}
		filter.CreatedTo = &t
	}

	page := parsePage(c)
	leads, total, err := h.repo.ListLeads(owner, filter, page)
	if err != nil {
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "Leads retrieved successfully",
		"data":       leads,
		"pagination": paginationMeta(page, total),
	})
}

// SearchLeads queries the Elasticsearch mirror maintained by the event
// consumer. Results are scoped to the caller like every other read.
func (h *LeadHandler) SearchLeads(c *gin.Context) {
	owner, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if h.es == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "search is not available"})
		return
	}

	q := c.Query("q")
	if q == "" {
		validationFailed(c, "Invalid search", models.FieldErrors{"q": "q is required"})
		return
	}

	query := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": []interface{}{
					map[string]interface{}{
						"multi_match": map[string]interface{}{
							"query":  q,
							"fields": []string{"name", "email", "company"},
						},
					},
				},
				"filter": []interface{}{
					map[string]interface{}{
						"term": map[string]interface{}{"created_by": owner},
					},
				},
			},
		},
	}

	results, err := h.es.SearchLeads(c.Request.Context(), leadSearchIndex, query)
	if err != nil {
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Leads retrieved successfully", "data": results})
}

func (h *LeadHandler) UpdateLead(c *gin.Context) {
	owner, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req leadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	lead, err := h.repo.GetLeadByID(owner, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			notFound(c, "lead")
			return
		}
		internalError(c, err)
		return
	}

	lead.Name = req.Name
	lead.Email = req.Email
	lead.Company = req.Company
	lead.Phone = req.Phone
	if req.Status != "" {
		lead.Status = req.Status
	}

	if errs := models.ValidateLead(lead); !errs.OK() {
		validationFailed(c, "Lead update failed", errs)
		return
	}

	if err := h.repo.UpdateLead(lead); err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			validationFailed(c, "Lead update failed", models.FieldErrors{"email": "a lead with this email already exists"})
			return
		}
		internalError(c, err)
		return
	}

	go publishEvent(h.kafka, h.logger, events.Event{Event: events.LeadUpdated, Lead: lead})

	c.JSON(http.StatusOK, gin.H{"message": "Lead updated successfully", "data": lead})
}

func (h *LeadHandler) DeleteLead(c *gin.Context) {
	owner, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.repo.DeleteLead(owner, id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			notFound(c, "lead")
			return
		}
		internalError(c, err)
		return
	}

	go publishEvent(h.kafka, h.logger, events.Event{Event: events.LeadDeleted, LeadID: id})

	c.Status(http.StatusNoContent)
}
