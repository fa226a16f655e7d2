// Package events publishes appointment lifecycle events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"clinic-booking/internal/model"
	"clinic-booking/pkg/logging"
)

const (
	TypeCreated       = "appointment.created"
	TypeStatusChanged = "appointment.status_changed"
)

type Event struct {
	Type          string       `json:"type"`
	AppointmentID string       `json:"appointmentId"`
	DoctorID      string       `json:"doctorId,omitempty"`
	Doctor        string       `json:"doctor"`
	Service       string       `json:"service"`
	Date          string       `json:"date"`
	TimeSlot      string       `json:"timeSlot"`
	Status        model.Status `json:"status"`
	From          model.Status `json:"from,omitempty"`
	ActorID       string       `json:"actorId,omitempty"`
	OccurredAt    time.Time    `json:"occurredAt"`
}

func Created(a *model.Appointment, at time.Time) Event {
	return fromAppointment(TypeCreated, a, at)
}

func StatusChanged(a *model.Appointment, from model.Status, actorID string, at time.Time) Event {
	e := fromAppointment(TypeStatusChanged, a, at)
	e.From = from
	e.ActorID = actorID
	return e
}

func fromAppointment(typ string, a *model.Appointment, at time.Time) Event {
	return Event{
		Type:          typ,
		AppointmentID: a.ID,
		DoctorID:      a.DoctorID,
		Doctor:        a.Doctor,
		Service:       a.Service,
		Date:          a.Date,
		TimeSlot:      a.TimeSlot,
		Status:        a.Status,
		OccurredAt:    at.UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// messageWriter is the part of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	w      messageWriter
	logger *logging.Logger
}

func NewKafkaPublisher(brokers []string, topic string, logger *logging.Logger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
		Async:                  true,
	}
	p := newKafkaPublisher(w, logger)
	// Async writes report delivery failures here instead of to the caller.
	w.Completion = func(msgs []kafka.Message, err error) {
		if err != nil {
			p.logger.WithError(err).WithField("messages", len(msgs)).Warn("event delivery failed")
		}
	}
	return p
}

func newKafkaPublisher(w messageWriter, logger *logging.Logger) *KafkaPublisher {
	if logger == nil {
		logger = logging.Default()
	}
	return &KafkaPublisher{w: w, logger: logger}
}

// Publish keys messages by appointment id so one appointment's events stay
// ordered within a partition.
func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("events: marshal: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(e.AppointmentID),
		Value: body,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(e.Type)},
		},
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("events: publish %s: %w", e.Type, err)
	}
	p.logger.WithField("type", e.Type).WithField("appointment_id", e.AppointmentID).Debug("event published")
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}

// NopPublisher drops events; used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }
