package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"clinic-booking/internal/auth"
	"clinic-booking/internal/events"
	"clinic-booking/internal/lifecycle"
	"clinic-booking/internal/metrics"
	"clinic-booking/internal/model"
	"clinic-booking/pkg/logging"
)

// Store is the persistence the handlers need; *store.Store implements it.
type Store interface {
	CreateUser(ctx context.Context, u *model.User) error
	UserByEmail(ctx context.Context, email string) (*model.User, error)
	DoctorByName(ctx context.Context, name string) (*model.User, error)
	CreateAppointment(ctx context.Context, a *model.Appointment) error
	CreateAppointmentUnique(ctx context.Context, a *model.Appointment) error
	GetAppointment(ctx context.Context, id string) (*model.Appointment, error)
	ListAppointments(ctx context.Context, doctorID string) ([]model.Appointment, error)
	UpdateStatus(ctx context.Context, id string, to model.Status, from []model.Status) (*model.Appointment, error)
}

// Notifier tells a patient their appointment was decided.
type Notifier interface {
	Notify(ctx context.Context, a *model.Appointment)
}

// validate checks the tagged request structs in model.
var validate = validator.New()

type Handler struct {
	store       Store
	issuer      *auth.Issuer
	revoker     auth.Revoker
	catalog     *lifecycle.Catalog
	window      lifecycle.Window
	uniqueSlots bool
	events      events.Publisher
	notifier    Notifier
	metrics     *metrics.BookingMetrics
	pubTimeout  time.Duration
	log         *logging.Logger
	now         func() time.Time
}

type Option func(*Handler)

func WithRevoker(r auth.Revoker) Option { return func(h *Handler) { h.revoker = r } }

func WithCatalog(c *lifecycle.Catalog, w lifecycle.Window) Option {
	return func(h *Handler) { h.catalog, h.window = c, w }
}

// WithUniqueSlots refuses a second live booking for the same doctor, day and slot.
func WithUniqueSlots(on bool) Option { return func(h *Handler) { h.uniqueSlots = on } }

func WithPublisher(p events.Publisher) Option { return func(h *Handler) { h.events = p } }

func WithNotifier(n Notifier) Option { return func(h *Handler) { h.notifier = n } }

func WithMetrics(m *metrics.BookingMetrics) Option { return func(h *Handler) { h.metrics = m } }

// WithPublishTimeout bounds how long a request waits on the event publisher.
func WithPublishTimeout(d time.Duration) Option { return func(h *Handler) { h.pubTimeout = d } }

func WithLogger(l *logging.Logger) Option { return func(h *Handler) { h.log = l } }

func WithClock(now func() time.Time) Option { return func(h *Handler) { h.now = now } }

func New(st Store, issuer *auth.Issuer, opts ...Option) *Handler {
	h := &Handler{
		store:      st,
		issuer:     issuer,
		revoker:    auth.NewMemoryRevoker(),
		catalog:    lifecycle.DefaultCatalog(),
		window:     lifecycle.DefaultWindow(),
		events:     events.NopPublisher{},
		pubTimeout: 2 * time.Second,
		log:        logging.Default(),
		now:        time.Now,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

const maxBody = 1 << 20

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty body")
		}
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"message": msg})
}

// internalError logs err and answers with a body that leaks nothing.
func (h *Handler) internalError(w http.ResponseWriter, op string, err error) {
	h.log.WithError(err).WithField("op", op).Error("request failed")
	writeError(w, http.StatusInternalServerError, "internal error")
}

func (h *Handler) publish(ctx context.Context, e events.Event) {
	ctx, cancel := context.WithTimeout(ctx, h.pubTimeout)
	defer cancel()
	if err := h.events.Publish(ctx, e); err != nil {
		h.log.WithError(err).WithField("type", e.Type).Warn("event publish failed")
	}
}
