package handlers

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"mini-crm/models"
)

// fakeRepo is an in-memory Repository with the same uniqueness, ownership
// and cascade semantics as the Postgres implementation.
type fakeRepo struct {
	mu        sync.Mutex
	users     map[uint]*models.User
	leads     map[uint]*models.Lead
	contacts  map[uint]*models.Contact
	notes     map[uint]*models.Note
	reminders map[uint]*models.Reminder
	nextID    uint
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users:     make(map[uint]*models.User),
		leads:     make(map[uint]*models.Lead),
		contacts:  make(map[uint]*models.Contact),
		notes:     make(map[uint]*models.Note),
		reminders: make(map[uint]*models.Reminder),
	}
}

func (f *fakeRepo) id() uint {
	f.nextID++
	return f.nextID
}

func (f *fakeRepo) CreateUser(user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == user.Username {
			return models.ErrDuplicate
		}
	}
	user.ID = f.id()
	user.CreatedAt = time.Now()
	f.users[user.ID] = user
	return nil
}

func (f *fakeRepo) GetUserByUsername(username string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == username {
			copied := *u
			return &copied, nil
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakeRepo) CreateLead(lead *models.Lead) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.leads {
		if l.CreatedBy == lead.CreatedBy && strings.EqualFold(l.Email, lead.Email) {
			return models.ErrDuplicate
		}
	}
	lead.ID = f.id()
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = time.Now()
	}
	lead.UpdatedAt = lead.CreatedAt
	copied := *lead
	f.leads[lead.ID] = &copied
	return nil
}

func (f *fakeRepo) GetLeadByID(owner, id uint) (*models.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.leads[id]
	if !ok || l.CreatedBy != owner {
		return nil, models.ErrNotFound
	}
	copied := *l
	return &copied, nil
}

func (f *fakeRepo) UpdateLead(lead *models.Lead) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.leads {
		if l.ID != lead.ID && l.CreatedBy == lead.CreatedBy && strings.EqualFold(l.Email, lead.Email) {
			return models.ErrDuplicate
		}
	}
	lead.UpdatedAt = time.Now()
	copied := *lead
	f.leads[lead.ID] = &copied
	return nil
}

func (f *fakeRepo) DeleteLead(owner, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.leads[id]
	if !ok || l.CreatedBy != owner {
		return models.ErrNotFound
	}
	for cid, c := range f.contacts {
		if c.LeadID == id {
			delete(f.contacts, cid)
		}
	}
	for nid, n := range f.notes {
		if n.LeadID == id {
			delete(f.notes, nid)
		}
	}
	for rid, r := range f.reminders {
		if r.LeadID == id {
			delete(f.reminders, rid)
		}
	}
	delete(f.leads, id)
	return nil
}

func (f *fakeRepo) ListLeads(owner uint, filter models.LeadFilter, page models.Page) ([]models.Lead, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []models.Lead
	for _, l := range f.leads {
		if l.CreatedBy != owner {
			continue
		}
		if filter.Status != "" && l.Status != filter.Status {
			continue
		}
		if filter.CreatedFrom != nil && l.CreatedAt.Before(*filter.CreatedFrom) {
			continue
		}
		if filter.CreatedTo != nil && l.CreatedAt.After(*filter.CreatedTo) {
			continue
		}
		all = append(all, *l)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return paginateLeads(all, page)
}

func paginateLeads(all []models.Lead, page models.Page) ([]models.Lead, int64, error) {
	total := int64(len(all))
	start := (page.Number - 1) * page.Size
	if start >= len(all) {
		return nil, total, nil
	}
	end := start + page.Size
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (f *fakeRepo) CreateContact(contact *models.Contact) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.contacts {
		if c.CreatedBy == contact.CreatedBy && strings.EqualFold(c.Email, contact.Email) {
			return models.ErrDuplicate
		}
	}
	contact.ID = f.id()
	contact.CreatedAt = time.Now()
	copied := *contact
	f.contacts[contact.ID] = &copied
	return nil
}

func (f *fakeRepo) GetContactByID(owner, id uint) (*models.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.contacts[id]
	if !ok || c.CreatedBy != owner {
		return nil, models.ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (f *fakeRepo) UpdateContact(contact *models.Contact) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.contacts {
		if c.ID != contact.ID && c.CreatedBy == contact.CreatedBy && strings.EqualFold(c.Email, contact.Email) {
			return models.ErrDuplicate
		}
	}
	copied := *contact
	f.contacts[contact.ID] = &copied
	return nil
}

func (f *fakeRepo) DeleteContact(owner, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.contacts[id]
	if !ok || c.CreatedBy != owner {
		return models.ErrNotFound
	}
	delete(f.contacts, id)
	return nil
}

func (f *fakeRepo) ListContacts(owner uint, filter models.ContactFilter, page models.Page) ([]models.Contact, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []models.Contact
	for _, c := range f.contacts {
		if c.CreatedBy != owner {
			continue
		}
		if filter.LeadID != 0 && c.LeadID != filter.LeadID {
			continue
		}
		all = append(all, *c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := int64(len(all))
	start := (page.Number - 1) * page.Size
	if start >= len(all) {
		return nil, total, nil
	}
	end := start + page.Size
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (f *fakeRepo) CreateNote(note *models.Note) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.notes {
		if n.CreatedBy == note.CreatedBy && n.LeadID == note.LeadID && n.Content == note.Content {
			return models.ErrDuplicate
		}
	}
	note.ID = f.id()
	note.CreatedAt = time.Now()
	copied := *note
	f.notes[note.ID] = &copied
	return nil
}

func (f *fakeRepo) GetNoteByID(owner, id uint) (*models.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.notes[id]
	if !ok || n.CreatedBy != owner {
		return nil, models.ErrNotFound
	}
	copied := *n
	return &copied, nil
}

func (f *fakeRepo) UpdateNote(note *models.Note) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.notes {
		if n.ID != note.ID && n.CreatedBy == note.CreatedBy && n.LeadID == note.LeadID && n.Content == note.Content {
			return models.ErrDuplicate
		}
	}
	copied := *note
	f.notes[note.ID] = &copied
	return nil
}

func (f *fakeRepo) DeleteNote(owner, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.notes[id]
	if !ok || n.CreatedBy != owner {
		return models.ErrNotFound
	}
	delete(f.notes, id)
	return nil
}

func (f *fakeRepo) ListNotes(owner uint, filter models.NoteFilter, page models.Page) ([]models.Note, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []models.Note
	for _, n := range f.notes {
		if n.CreatedBy != owner {
			continue
		}
		if filter.LeadID != 0 && n.LeadID != filter.LeadID {
			continue
		}
		all = append(all, *n)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := int64(len(all))
	start := (page.Number - 1) * page.Size
	if start >= len(all) {
		return nil, total, nil
	}
	end := start + page.Size
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (f *fakeRepo) CreateReminder(reminder *models.Reminder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.reminders {
		if r.CreatedBy == reminder.CreatedBy && r.LeadID == reminder.LeadID &&
			r.Message == reminder.Message && r.RemindAt.Equal(reminder.RemindAt) {
			return models.ErrDuplicate
		}
	}
	reminder.ID = f.id()
	reminder.CreatedAt = time.Now()
	copied := *reminder
	f.reminders[reminder.ID] = &copied
	return nil
}

func (f *fakeRepo) GetReminderByID(owner, id uint) (*models.Reminder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reminders[id]
	if !ok || r.CreatedBy != owner {
		return nil, models.ErrNotFound
	}
	copied := *r
	return &copied, nil
}

func (f *fakeRepo) UpdateReminder(reminder *models.Reminder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.reminders {
		if r.ID != reminder.ID && r.CreatedBy == reminder.CreatedBy && r.LeadID == reminder.LeadID &&
			r.Message == reminder.Message && r.RemindAt.Equal(reminder.RemindAt) {
			return models.ErrDuplicate
		}
	}
	copied := *reminder
	f.reminders[reminder.ID] = &copied
	return nil
}

func (f *fakeRepo) DeleteReminder(owner, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reminders[id]
	if !ok || r.CreatedBy != owner {
		return models.ErrNotFound
	}
	delete(f.reminders, id)
	return nil
}

func (f *fakeRepo) ListReminders(owner uint, filter models.ReminderFilter, page models.Page) ([]models.Reminder, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []models.Reminder
	for _, r := range f.reminders {
		if r.CreatedBy != owner {
			continue
		}
		if filter.LeadID != 0 && r.LeadID != filter.LeadID {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		all = append(all, *r)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := int64(len(all))
	start := (page.Number - 1) * page.Size
	if start >= len(all) {
		return nil, total, nil
	}
	end := start + page.Size
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (f *fakeRepo) CompleteDueReminder(ctx context.Context, id uint, send func(r *models.Reminder, lead *models.Lead) error) (models.DispatchOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reminders[id]
	if !ok {
		return models.DispatchNotFound, nil
	}
	if r.Status != models.ReminderStatusPending {
		return models.DispatchNotPending, nil
	}
	lead, ok := f.leads[r.LeadID]
	if !ok {
		return models.DispatchNotFound, nil
	}
	if lead.Email == "" {
		return models.DispatchNoEmail, nil
	}
	if err := send(r, lead); err != nil {
		return models.DispatchSendFailed, nil
	}
	r.Status = models.ReminderStatusCompleted
	return models.DispatchSent, nil
}

func (f *fakeRepo) CountLeads(owner uint) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, l := range f.leads {
		if l.CreatedBy == owner {
			n++
		}
	}
	return n, nil
}

func (f *fakeRepo) CountContacts(owner uint) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, c := range f.contacts {
		if c.CreatedBy == owner {
			n++
		}
	}
	return n, nil
}

func (f *fakeRepo) CountPendingReminders(owner uint, since time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, r := range f.reminders {
		if r.CreatedBy == owner && r.Status == models.ReminderStatusPending && !r.RemindAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (f *fakeRepo) RecentNoteActivity(owner uint, limit int) ([]models.ActivityRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var rows []models.ActivityRow
	for _, n := range f.notes {
		if n.CreatedBy != owner {
			continue
		}
		name := ""
		if l, ok := f.leads[n.LeadID]; ok {
			name = l.Name
		}
		rows = append(rows, models.ActivityRow{ID: n.ID, LeadName: name, CreatedAt: n.CreatedAt})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].CreatedAt.After(rows[j].CreatedAt) })
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (f *fakeRepo) RecentReminderActivity(owner uint, limit int) ([]models.ActivityRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var rows []models.ActivityRow
	for _, r := range f.reminders {
		if r.CreatedBy != owner {
			continue
		}
		name := ""
		if l, ok := f.leads[r.LeadID]; ok {
			name = l.Name
		}
		rows = append(rows, models.ActivityRow{ID: r.ID, LeadName: name, CreatedAt: r.CreatedAt})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].CreatedAt.After(rows[j].CreatedAt) })
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (f *fakeRepo) Ping(ctx context.Context) error { return nil }
func (f *fakeRepo) Close() error                   { return nil }
