package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"mini-crm/events"
	"mini-crm/notifier"
	"mini-crm/utils"
)

const leadSearchIndex = "leads"

// EventConsumer reads entity lifecycle events off Kafka and applies their
// side effects: warming the lead cache, maintaining the Elasticsearch
// mirror, and fanning out creation notices. All of it is best effort; the
// request that produced the event has long since returned.
type EventConsumer struct {
	cache        utils.RedisClient
	es           utils.ElasticsearchClient
	notify       *notifier.Notifier
	notifyEmails []string
	reader       *kafka.Reader
	logger       *log.Logger
	shutdown     chan struct{}
}

func NewEventConsumer(broker string, cache utils.RedisClient, es utils.ElasticsearchClient, notify *notifier.Notifier, notifyEmails []string, logger *log.Logger) *EventConsumer {
	return &EventConsumer{
		cache:        cache,
		es:           es,
		notify:       notify,
		notifyEmails: notifyEmails,
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: []string{broker},
			Topic:   events.Topic,
			GroupID: "mini-crm-group",
			MaxWait: 10 * time.Second,
		}),
		logger:   logger,
		shutdown: make(chan struct{}),
	}
}

func (c *EventConsumer) Start(ctx context.Context) {
	c.logger.Println("Starting event consumer...")

	go func() {
		for {
			select {
			case <-c.shutdown:
				return
			default:
				c.processMessage(ctx)
			}
		}
	}()
}

func (c *EventConsumer) Stop() {
	close(c.shutdown)
	if err := c.reader.Close(); err != nil {
		c.logger.Printf("Error closing Kafka reader: %v", err)
	}
}

func (c *EventConsumer) processMessage(ctx context.Context) {
	msg, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if err == context.Canceled {
			return
		}
		c.logger.Printf("Kafka read error: %v (will retry)", err)
		time.Sleep(5 * time.Second)
		return
	}

	var event events.Event
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		c.logger.Printf("Failed to unmarshal event: %v", err)
		return
	}

	switch event.Event {
	case events.LeadCreated:
		c.handleLeadUpsert(ctx, event)
		if event.Lead != nil {
			c.sendNotice(ctx, fmt.Sprintf("New lead created: %s", event.Lead.Name),
				fmt.Sprintf("Lead %q (%s) was just created in Mini CRM.", event.Lead.Name, event.Lead.Email))
		}
	case events.LeadUpdated:
		c.handleLeadUpsert(ctx, event)
	case events.LeadDeleted:
		c.handleLeadDeleted(ctx, event.LeadID)
	case events.ContactCreated:
		if event.Contact == nil {
			c.logger.Printf("Event %s without a contact payload", event.Event)
			return
		}
		c.sendNotice(ctx, fmt.Sprintf("New contact created: %s", event.Contact.Name),
			fmt.Sprintf("Contact %q (%s) was just added in Mini CRM.", event.Contact.Name, event.Contact.Email))
	case events.NoteCreated:
		if event.Note == nil {
			c.logger.Printf("Event %s without a note payload", event.Event)
			return
		}
		c.sendNotice(ctx, "New note created",
			fmt.Sprintf("A note was just added for lead %d in Mini CRM.", event.Note.LeadID))
	default:
		c.logger.Printf("Unknown event type: %s", event.Event)
	}
}

func (c *EventConsumer) handleLeadUpsert(ctx context.Context, event events.Event) {
	if event.Lead == nil {
		c.logger.Printf("Event %s without a lead payload", event.Event)
		return
	}
	lead := event.Lead

	leadJSON, err := json.Marshal(lead)
	if err != nil {
		c.logger.Printf("Failed to marshal lead %d: %v", lead.ID, err)
		return
	}

	cacheKey := fmt.Sprintf("leads:%d", lead.ID)
	if err := c.cache.SetToCache(ctx, cacheKey, string(leadJSON), 24*time.Hour); err != nil {
		c.logger.Printf("Failed to cache lead %d: %v", lead.ID, err)
	}

	if c.es != nil {
		if err := c.es.IndexLead(ctx, leadSearchIndex, fmt.Sprintf("%d", lead.ID), lead); err != nil {
			c.logger.Printf("Failed to index lead %d: %v", lead.ID, err)
		}
	}

	c.logger.Printf("Processed %s event for lead %d", event.Event, lead.ID)
}

func (c *EventConsumer) handleLeadDeleted(ctx context.Context, leadID uint) {
	cacheKey := fmt.Sprintf("leads:%d", leadID)
	if err := c.cache.DeleteFromCache(ctx, cacheKey); err != nil {
		c.logger.Printf("Failed to evict lead %d from cache: %v", leadID, err)
	}

	if c.es != nil {
		if err := c.es.DeleteLead(ctx, leadSearchIndex, fmt.Sprintf("%d", leadID)); err != nil {
			c.logger.Printf("Failed to delete lead %d from index: %v", leadID, err)
		}
	}

	c.logger.Printf("Processed lead_deleted event for lead %d", leadID)
}

func (c *EventConsumer) sendNotice(ctx context.Context, subject, body string) {
	if c.notify == nil || len(c.notifyEmails) == 0 {
		return
	}
	c.notify.Notify(ctx, c.notifyEmails, subject, body)
}
