package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"mini-crm/middleware"
	"mini-crm/models"
)

type scheduleCall struct {
	ReminderID uint
	FireAt     time.Time
}

type fakeScheduler struct {
	mu    sync.Mutex
	calls []scheduleCall
}

func (s *fakeScheduler) Schedule(ctx context.Context, reminderID uint, fireAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, scheduleCall{ReminderID: reminderID, FireAt: fireAt})
	return nil
}

func (s *fakeScheduler) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// testRouter wires every handler over the fake repo with a stub auth
// middleware that fixes the calling owner.
func testRouter(repo models.Repository, sched Scheduler, owner uint) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := log.New(io.Discard, "", 0)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserKey, owner)
		c.Next()
	})

	leadHandler := NewLeadHandler(repo, nil, nil, nil, logger)
	contactHandler := NewContactHandler(repo, nil, logger)
	noteHandler := NewNoteHandler(repo, nil, logger)
	reminderHandler := NewReminderHandler(repo, sched, logger)
	dashboardHandler := NewDashboardHandler(repo)

	r.GET("/dashboard", dashboardHandler.GetDashboard)
	r.GET("/leads", leadHandler.ListLeads)
	r.POST("/leads", leadHandler.CreateLead)
	r.GET("/leads/:id", leadHandler.GetLead)
	r.PUT("/leads/:id", leadHandler.UpdateLead)
	r.DELETE("/leads/:id", leadHandler.DeleteLead)
	r.GET("/contacts", contactHandler.ListContacts)
	r.POST("/contacts", contactHandler.CreateContact)
	r.GET("/notes", noteHandler.ListNotes)
	r.POST("/notes", noteHandler.CreateNote)
	r.GET("/reminders", reminderHandler.ListReminders)
	r.POST("/reminders", reminderHandler.CreateReminder)
	r.GET("/reminders/:id", reminderHandler.GetReminder)
	r.PUT("/reminders/:id", reminderHandler.UpdateReminder)
	r.DELETE("/reminders/:id", reminderHandler.DeleteReminder)

	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response body %q: %v", w.Body.String(), err)
	}
	return body
}

func fieldError(t *testing.T, body map[string]interface{}, field string) string {
	t.Helper()
	errs, ok := body["errors"].(map[string]interface{})
	if !ok {
		t.Fatalf("response has no errors map: %v", body)
	}
	msg, ok := errs[field].(string)
	if !ok {
		t.Fatalf("no error for field %q: %v", field, errs)
	}
	return msg
}

func seedLead(t *testing.T, repo *fakeRepo, owner uint, name, email string, createdAt time.Time) *models.Lead {
	t.Helper()
	lead := &models.Lead{
		CreatedBy: owner,
		Name:      name,
		Email:     email,
		Status:    models.LeadStatusNew,
		CreatedAt: createdAt,
	}
	if err := repo.CreateLead(lead); err != nil {
		t.Fatalf("failed to seed lead %s: %v", name, err)
	}
	return lead
}

func mustStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, want, w.Body.String())
	}
}
