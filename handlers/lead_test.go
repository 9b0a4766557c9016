package handlers

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"mini-crm/models"
)

func TestCreateLeadDefaultsStatusNew(t *testing.T) {
	repo := newFakeRepo()
	r := testRouter(repo, &fakeScheduler{}, 1)

	w := doJSON(t, r, http.MethodPost, "/leads", map[string]string{
		"name":  "Acme",
		"email": "a@b.com",
	})
	mustStatus(t, w, http.StatusCreated)

	body := decodeBody(t, w)
	data := body["data"].(map[string]interface{})
	if data["status"] != models.LeadStatusNew {
		t.Errorf("status = %v, want %s", data["status"], models.LeadStatusNew)
	}
}

func TestCreateLeadMissingFields(t *testing.T) {
	repo := newFakeRepo()
	r := testRouter(repo, &fakeScheduler{}, 1)

	w := doJSON(t, r, http.MethodPost, "/leads", map[string]string{"company": "Acme Inc"})
	mustStatus(t, w, http.StatusBadRequest)

	body := decodeBody(t, w)
	fieldError(t, body, "name")
	fieldError(t, body, "email")
}

func TestCreateLeadInvalidStatus(t *testing.T) {
	repo := newFakeRepo()
	r := testRouter(repo, &fakeScheduler{}, 1)

	w := doJSON(t, r, http.MethodPost, "/leads", map[string]string{
		"name":   "Acme",
		"email":  "a@b.com",
		"status": "FROZEN",
	})
	mustStatus(t, w, http.StatusBadRequest)
	fieldError(t, decodeBody(t, w), "status")
}

func TestCreateLeadDuplicateEmailCaseInsensitive(t *testing.T) {
	repo := newFakeRepo()
	r := testRouter(repo, &fakeScheduler{}, 1)

	w := doJSON(t, r, http.MethodPost, "/leads", map[string]string{"name": "Acme", "email": "a@b.com"})
	mustStatus(t, w, http.StatusCreated)

	w = doJSON(t, r, http.MethodPost, "/leads", map[string]string{"name": "Acme Two", "email": "A@B.com"})
	mustStatus(t, w, http.StatusBadRequest)
	fieldError(t, decodeBody(t, w), "email")
}

func TestDuplicateEmailAllowedAcrossOwners(t *testing.T) {
	repo := newFakeRepo()

	w := doJSON(t, testRouter(repo, &fakeScheduler{}, 1), http.MethodPost, "/leads",
		map[string]string{"name": "Acme", "email": "a@b.com"})
	mustStatus(t, w, http.StatusCreated)

	w = doJSON(t, testRouter(repo, &fakeScheduler{}, 2), http.MethodPost, "/leads",
		map[string]string{"name": "Acme", "email": "a@b.com"})
	mustStatus(t, w, http.StatusCreated)
}

func TestGetLeadNotOwned(t *testing.T) {
	repo := newFakeRepo()
	lead := seedLead(t, repo, 2, "Other", "other@x.com", time.Now())

	r := testRouter(repo, &fakeScheduler{}, 1)
	w := doJSON(t, r, http.MethodGet, fmt.Sprintf("/leads/%d", lead.ID), nil)
	mustStatus(t, w, http.StatusNotFound)
}

func TestListLeadsPagination(t *testing.T) {
	repo := newFakeRepo()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 1; i <= 5; i++ {
		seedLead(t, repo, 1, fmt.Sprintf("Lead %d", i), fmt.Sprintf("lead%d@x.com", i),
			base.Add(time.Duration(i)*time.Hour))
	}

	r := testRouter(repo, &fakeScheduler{}, 1)
	w := doJSON(t, r, http.MethodGet, "/leads?rows=2&page=2", nil)
	mustStatus(t, w, http.StatusOK)

	body := decodeBody(t, w)
	data := body["data"].([]interface{})
	if len(data) != 2 {
		t.Fatalf("page size = %d, want 2", len(data))
	}
	// Ordered by creation descending: page 2 holds the 3rd and 4th newest.
	first := data[0].(map[string]interface{})
	second := data[1].(map[string]interface{})
	if first["name"] != "Lead 3" || second["name"] != "Lead 2" {
		t.Errorf("page 2 = [%v, %v], want [Lead 3, Lead 2]", first["name"], second["name"])
	}

	pagination := body["pagination"].(map[string]interface{})
	if pagination["last_page"].(float64) != 3 {
		t.Errorf("last_page = %v, want 3", pagination["last_page"])
	}
	if pagination["total"].(float64) != 5 {
		t.Errorf("total = %v, want 5", pagination["total"])
	}
	if pagination["currentPage"].(float64) != 2 {
		t.Errorf("currentPage = %v, want 2", pagination["currentPage"])
	}
	if pagination["pageSize"].(float64) != 2 {
		t.Errorf("pageSize = %v, want 2", pagination["pageSize"])
	}
}

func TestListLeadsStatusFilter(t *testing.T) {
	repo := newFakeRepo()
	seedLead(t, repo, 1, "New Lead", "new@x.com", time.Now())
	qualified := &models.Lead{CreatedBy: 1, Name: "Qualified Lead", Email: "q@x.com", Status: models.LeadStatusQualified, CreatedAt: time.Now()}
	if err := repo.CreateLead(qualified); err != nil {
		t.Fatal(err)
	}

	r := testRouter(repo, &fakeScheduler{}, 1)
	w := doJSON(t, r, http.MethodGet, "/leads?status=QUALIFIED", nil)
	mustStatus(t, w, http.StatusOK)

	data := decodeBody(t, w)["data"].([]interface{})
	if len(data) != 1 {
		t.Fatalf("filtered count = %d, want 1", len(data))
	}
	if data[0].(map[string]interface{})["name"] != "Qualified Lead" {
		t.Errorf("unexpected lead in filtered list: %v", data[0])
	}
}

func TestDeleteLeadCascades(t *testing.T) {
	repo := newFakeRepo()
	lead := seedLead(t, repo, 1, "Acme", "a@b.com", time.Now())

	if err := repo.CreateContact(&models.Contact{CreatedBy: 1, LeadID: lead.ID, Name: "Jo", Email: "jo@x.com"}); err != nil {
		t.Fatal(err)
	}
	if err := repo.CreateNote(&models.Note{CreatedBy: 1, LeadID: lead.ID, Content: "call back"}); err != nil {
		t.Fatal(err)
	}
	if err := repo.CreateReminder(&models.Reminder{CreatedBy: 1, LeadID: lead.ID, Message: "follow up", Status: models.ReminderStatusPending, RemindAt: time.Now().Add(time.Hour)}); err != nil {
		t.Fatal(err)
	}

	r := testRouter(repo, &fakeScheduler{}, 1)
	w := doJSON(t, r, http.MethodDelete, fmt.Sprintf("/leads/%d", lead.ID), nil)
	mustStatus(t, w, http.StatusNoContent)

	for _, path := range []string{"/contacts", "/notes", "/reminders"} {
		w = doJSON(t, r, http.MethodGet, path, nil)
		mustStatus(t, w, http.StatusOK)
		if data, ok := decodeBody(t, w)["data"].([]interface{}); ok && len(data) != 0 {
			t.Errorf("%s not empty after cascade delete: %v", path, data)
		}
	}
}

func TestUpdateLeadNotFound(t *testing.T) {
	repo := newFakeRepo()
	r := testRouter(repo, &fakeScheduler{}, 1)

	w := doJSON(t, r, http.MethodPut, "/leads/42", map[string]string{"name": "X", "email": "x@y.com"})
	mustStatus(t, w, http.StatusNotFound)
}
