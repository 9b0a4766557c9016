package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"mini-crm/events"
	"mini-crm/models"
	"mini-crm/utils"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

func parsePage(c *gin.Context) models.Page {
	page, err := strconv.Atoi(c.Query("page"))
	if err != nil || page < 1 {
		page = 1
	}
	rows, err := strconv.Atoi(c.Query("rows"))
	if err != nil || rows < 1 {
		rows = defaultPageSize
	}
	if rows > maxPageSize {
		rows = maxPageSize
	}
	return models.Page{Number: page, Size: rows}
}

func paginationMeta(page models.Page, total int64) gin.H {
	lastPage := (total + int64(page.Size) - 1) / int64(page.Size)
	return gin.H{
		"currentPage": page.Number,
		"total":       total,
		"pageSize":    page.Size,
		"last_page":   lastPage,
	}
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id format"})
		return 0, false
	}
	return uint(id), true
}

// parseTimestamp accepts RFC3339 or a bare date.
func parseTimestamp(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", v)
}

func validationFailed(c *gin.Context, message string, errs models.FieldErrors) {
	c.JSON(http.StatusBadRequest, gin.H{"message": message, "errors": errs})
}

func notFound(c *gin.Context, what string) {
	c.JSON(http.StatusNotFound, gin.H{"error": what + " not found"})
}

// internalError hides the raw fault from the caller and records it on the
// context for the Sentry middleware.
func internalError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}

// publishEvent ships one lifecycle event to Kafka. Handlers call it with
// go; failures are logged, never surfaced to the request.
func publishEvent(kafka utils.KafkaProducer, logger *log.Logger, event events.Event) {
	if kafka == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	jsonData, err := json.Marshal(event)
	if err != nil {
		logger.Printf("Failed to marshal %s event: %v", event.Event, err)
		return
	}

	if err := kafka.SendMessage(ctx, events.Topic, nil, jsonData); err != nil {
		logger.Printf("Failed to send %s event: %v", event.Event, err)
	}
}

func leadCacheKey(id uint) string {
	return fmt.Sprintf("leads:%d", id)
}
