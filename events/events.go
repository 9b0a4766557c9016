package events

import "mini-crm/models"

// Topic carries every entity lifecycle event.
const Topic = "crm_events"

// Event names.
const (
	LeadCreated    = "lead_created"
	LeadUpdated    = "lead_updated"
	LeadDeleted    = "lead_deleted"
	ContactCreated = "contact_created"
	NoteCreated    = "note_created"
)

// Event is the wire format on the crm_events topic. Exactly one payload
// field is set, matching the event name; deletes carry only the id.
type Event struct {
	Event   string          `json:"event"`
	Lead    *models.Lead    `json:"lead,omitempty"`
	Contact *models.Contact `json:"contact,omitempty"`
	Note    *models.Note    `json:"note,omitempty"`
	LeadID  uint            `json:"lead_id,omitempty"`
}
