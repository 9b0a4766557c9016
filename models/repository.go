package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

// Page is a 1-based page request.
type Page struct {
	Number int
	Size   int
}

func (p Page) offset() int { return (p.Number - 1) * p.Size }

type LeadFilter struct {
	Status      string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

type ContactFilter struct {
	LeadID uint
}

type NoteFilter struct {
	LeadID uint
}

type ReminderFilter struct {
	LeadID uint
	Status string
}

// ActivityRow is a dashboard line item: a note or reminder joined with the
// name of its lead.
type ActivityRow struct {
	ID        uint      `json:"id"`
	LeadName  string    `json:"lead_name"`
	CreatedAt time.Time `json:"created_at"`
}

// DispatchOutcome reports what a locked reminder-dispatch attempt did.
type DispatchOutcome int

const (
	DispatchNotFound   DispatchOutcome = iota // reminder deleted before the job fired
	DispatchNotPending                        // already completed or cancelled, nothing sent
	DispatchNoEmail                           // lead has no email, left pending
	DispatchSendFailed                        // transport error, left pending
	DispatchSent                              // email sent, now completed
)

type Repository interface {
	// Users
	CreateUser(user *User) error
	GetUserByUsername(username string) (*User, error)

	// Leads
	CreateLead(lead *Lead) error
	GetLeadByID(owner, id uint) (*Lead, error)
	UpdateLead(lead *Lead) error
	DeleteLead(owner, id uint) error
	ListLeads(owner uint, filter LeadFilter, page Page) ([]Lead, int64, error)

	// Contacts
	CreateContact(contact *Contact) error
	GetContactByID(owner, id uint) (*Contact, error)
	UpdateContact(contact *Contact) error
	DeleteContact(owner, id uint) error
	ListContacts(owner uint, filter ContactFilter, page Page) ([]Contact, int64, error)

	// Notes
	CreateNote(note *Note) error
	GetNoteByID(owner, id uint) (*Note, error)
	UpdateNote(note *Note) error
	DeleteNote(owner, id uint) error
	ListNotes(owner uint, filter NoteFilter, page Page) ([]Note, int64, error)

	// Reminders
	CreateReminder(reminder *Reminder) error
	GetReminderByID(owner, id uint) (*Reminder, error)
	UpdateReminder(reminder *Reminder) error
	DeleteReminder(owner, id uint) error
	ListReminders(owner uint, filter ReminderFilter, page Page) ([]Reminder, int64, error)

	// CompleteDueReminder runs the dispatcher's check-send-complete sequence
	// for one reminder under a row lock, so two concurrent executions cannot
	// both observe PENDING and both send. The send callback runs inside the
	// lock; the status flips to COMPLETED only when it returns nil.
	CompleteDueReminder(ctx context.Context, id uint, send func(r *Reminder, lead *Lead) error) (DispatchOutcome, error)

	// Dashboard
	CountLeads(owner uint) (int64, error)
	CountContacts(owner uint) (int64, error)
	CountPendingReminders(owner uint, since time.Time) (int64, error)
	RecentNoteActivity(owner uint, limit int) ([]ActivityRow, error)
	RecentReminderActivity(owner uint, limit int) ([]ActivityRow, error)

	Ping(ctx context.Context) error
	Close() error
}

type PostgresRepository struct {
	db *gorm.DB
}

// Uniqueness lives in the database so inserts are atomic create-if-absent:
// a losing insert comes back as ErrDuplicate instead of racing a pre-check.
var uniqueIndexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_leads_owner_email ON leads (created_by, LOWER(email))`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_contacts_owner_email ON contacts (created_by, LOWER(email))`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_notes_dedup ON notes (created_by, lead_id, MD5(content))`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_reminders_dedup ON reminders (created_by, lead_id, message, remind_at)`,
}

func NewPostgresRepository(host, user, password, name, port string) (*PostgresRepository, error) {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		host, user, password, name, port,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&User{}, &Lead{}, &Contact{}, &Note{}, &Reminder{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate database: %w", err)
	}
	for _, stmt := range uniqueIndexes {
		if err := db.Exec(stmt).Error; err != nil {
			return nil, fmt.Errorf("failed to create unique index: %w", err)
		}
	}

	return &PostgresRepository{db: db}, nil
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	}
	return err
}

// --- Users ---

func (r *PostgresRepository) CreateUser(user *User) error {
	return translate(r.db.Create(user).Error)
}

func (r *PostgresRepository) GetUserByUsername(username string) (*User, error) {
	var user User
	if err := r.db.Where("username = ?", username).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// --- Leads ---

func (r *PostgresRepository) CreateLead(lead *Lead) error {
	return translate(r.db.Create(lead).Error)
}

func (r *PostgresRepository) GetLeadByID(owner, id uint) (*Lead, error) {
	var lead Lead
	if err := r.db.Where("created_by = ?", owner).First(&lead, id).Error; err != nil {
		return nil, translate(err)
	}
	return &lead, nil
}

func (r *PostgresRepository) UpdateLead(lead *Lead) error {
	return translate(r.db.Save(lead).Error)
}

// DeleteLead removes the lead and all of its contacts, notes and reminders
// in one transaction.
func (r *PostgresRepository) DeleteLead(owner, id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var lead Lead
		if err := tx.Where("created_by = ?", owner).First(&lead, id).Error; err != nil {
			return translate(err)
		}
		for _, dependent := range []interface{}{&Reminder{}, &Note{}, &Contact{}} {
			if err := tx.Where("lead_id = ?", id).Delete(dependent).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&lead).Error
	})
}

func (r *PostgresRepository) ListLeads(owner uint, filter LeadFilter, page Page) ([]Lead, int64, error) {
	q := r.db.Model(&Lead{}).Where("created_by = ?", owner)
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.CreatedFrom != nil {
		q = q.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		q = q.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var leads []Lead
	err := q.Order("created_at DESC").Offset(page.offset()).Limit(page.Size).Find(&leads).Error
	return leads, total, err
}

// --- Contacts ---

func (r *PostgresRepository) CreateContact(contact *Contact) error {
	return translate(r.db.Create(contact).Error)
}

func (r *PostgresRepository) GetContactByID(owner, id uint) (*Contact, error) {
	var contact Contact
	if err := r.db.Where("created_by = ?", owner).First(&contact, id).Error; err != nil {
		return nil, translate(err)
	}
	return &contact, nil
}

func (r *PostgresRepository) UpdateContact(contact *Contact) error {
	return translate(r.db.Save(contact).Error)
}

func (r *PostgresRepository) DeleteContact(owner, id uint) error {
	res := r.db.Where("created_by = ?", owner).Delete(&Contact{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) ListContacts(owner uint, filter ContactFilter, page Page) ([]Contact, int64, error) {
	q := r.db.Model(&Contact{}).Where("created_by = ?", owner)
	if filter.LeadID != 0 {
		q = q.Where("lead_id = ?", filter.LeadID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var contacts []Contact
	err := q.Order("created_at DESC").Offset(page.offset()).Limit(page.Size).Find(&contacts).Error
	return contacts, total, err
}

// --- Notes ---

func (r *PostgresRepository) CreateNote(note *Note) error {
	return translate(r.db.Create(note).Error)
}

func (r *PostgresRepository) GetNoteByID(owner, id uint) (*Note, error) {
	var note Note
	if err := r.db.Where("created_by = ?", owner).First(&note, id).Error; err != nil {
		return nil, translate(err)
	}
	return &note, nil
}

func (r *PostgresRepository) UpdateNote(note *Note) error {
	return translate(r.db.Save(note).Error)
}

func (r *PostgresRepository) DeleteNote(owner, id uint) error {
	res := r.db.Where("created_by = ?", owner).Delete(&Note{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) ListNotes(owner uint, filter NoteFilter, page Page) ([]Note, int64, error) {
	q := r.db.Model(&Note{}).Where("created_by = ?", owner)
	if filter.LeadID != 0 {
		q = q.Where("lead_id = ?", filter.LeadID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var notes []Note
	err := q.Order("created_at DESC").Offset(page.offset()).Limit(page.Size).Find(&notes).Error
	return notes, total, err
}

// --- Reminders ---

func (r *PostgresRepository) CreateReminder(reminder *Reminder) error {
	return translate(r.db.Create(reminder).Error)
}

func (r *PostgresRepository) GetReminderByID(owner, id uint) (*Reminder, error) {
	var reminder Reminder
	if err := r.db.Where("created_by = ?", owner).First(&reminder, id).Error; err != nil {
		return nil, translate(err)
	}
	return &reminder, nil
}

func (r *PostgresRepository) UpdateReminder(reminder *Reminder) error {
	return translate(r.db.Save(reminder).Error)
}

func (r *PostgresRepository) DeleteReminder(owner, id uint) error {
	res := r.db.Where("created_by = ?", owner).Delete(&Reminder{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) ListReminders(owner uint, filter ReminderFilter, page Page) ([]Reminder, int64, error) {
	q := r.db.Model(&Reminder{}).Where("created_by = ?", owner)
	if filter.LeadID != 0 {
		q = q.Where("lead_id = ?", filter.LeadID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var reminders []Reminder
	err := q.Order("created_at DESC").Offset(page.offset()).Limit(page.Size).Find(&reminders).Error
	return reminders, total, err
}

// --- Dispatcher ---

func (r *PostgresRepository) CompleteDueReminder(ctx context.Context, id uint, send func(rem *Reminder, lead *Lead) error) (DispatchOutcome, error) {
	outcome := DispatchNotFound

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var reminder Reminder
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&reminder, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			outcome = DispatchNotFound
			return nil
		}
		if err != nil {
			return err
		}

		if reminder.Status != ReminderStatusPending {
			outcome = DispatchNotPending
			return nil
		}

		var lead Lead
		if err := tx.First(&lead, reminder.LeadID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				outcome = DispatchNotFound
				return nil
			}
			return err
		}

		if lead.Email == "" {
			outcome = DispatchNoEmail
			return nil
		}

		if err := send(&reminder, &lead); err != nil {
			// Left PENDING on purpose. The failure is terminal for this
			// fire; the caller logs and reports it.
			outcome = DispatchSendFailed
			return nil
		}

		outcome = DispatchSent
		return tx.Model(&reminder).Update("status", ReminderStatusCompleted).Error
	})

	return outcome, err
}

// --- Dashboard ---

func (r *PostgresRepository) CountLeads(owner uint) (int64, error) {
	var n int64
	err := r.db.Model(&Lead{}).Where("created_by = ?", owner).Count(&n).Error
	return n, err
}

func (r *PostgresRepository) CountContacts(owner uint) (int64, error) {
	var n int64
	err := r.db.Model(&Contact{}).Where("created_by = ?", owner).Count(&n).Error
	return n, err
}

func (r *PostgresRepository) CountPendingReminders(owner uint, since time.Time) (int64, error) {
	var n int64
	err := r.db.Model(&Reminder{}).
		Where("created_by = ? AND status = ? AND remind_at >= ?", owner, ReminderStatusPending, since).
		Count(&n).Error
	return n, err
}

func (r *PostgresRepository) RecentNoteActivity(owner uint, limit int) ([]ActivityRow, error) {
	var rows []ActivityRow
	err := r.db.Table("notes").
		Select("notes.id, leads.name AS lead_name, notes.created_at").
		Joins("JOIN leads ON leads.id = notes.lead_id").
		Where("notes.created_by = ?", owner).
		Order("notes.created_at DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

func (r *PostgresRepository) RecentReminderActivity(owner uint, limit int) ([]ActivityRow, error) {
	var rows []ActivityRow
	err := r.db.Table("reminders").
		Select("reminders.id, leads.name AS lead_name, reminders.created_at").
		Joins("JOIN leads ON leads.id = reminders.lead_id").
		Where("reminders.created_by = ?", owner).
		Order("reminders.created_at DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (r *PostgresRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
