package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"clinic-booking/internal/events"
	"clinic-booking/internal/lifecycle"
	"clinic-booking/internal/middleware"
	"clinic-booking/internal/model"
	"clinic-booking/internal/store"
)

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Catalog(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, model.CatalogInfo{
		Services:   h.catalog.Services(),
		Slots:      append([]string(nil), h.window.Slots...),
		WindowDays: h.window.Days,
	})
}

func (h *Handler) reject(w http.ResponseWriter, reason, msg string) {
	h.metrics.ObserveRejected(reason)
	writeError(w, http.StatusBadRequest, msg)
}

// CreateAppointment is the public booking endpoint. Any status the caller
// sends is ignored; bookings always start pending.
func (h *Handler) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	var req model.BookingRequest
	if err := decode(r, &req); err != nil {
		h.reject(w, "bad_body", "invalid request body")
		return
	}

	form := lifecycle.Form{
		FullName: req.FullName, Email: req.Email, Mobile: req.Mobile, Age: req.Age,
		Gender: req.Gender, Service: req.Service, Date: req.Date, Address: req.Address,
		TimeSlot: req.TimeSlot,
	}
	if err := form.Validate(); err != nil {
		h.reject(w, "missing_fields", err.Error())
		return
	}
	if err := validate.Struct(req); err != nil {
		h.reject(w, "bad_age", "age must be between 0 and 120")
		return
	}
	if err := h.window.CheckSlot(req.TimeSlot); err != nil {
		h.reject(w, "unknown_slot", "unknown time slot")
		return
	}
	if err := h.window.CheckDateString(req.Date, h.now()); err != nil {
		if errors.Is(err, lifecycle.ErrBadDate) {
			h.reject(w, "bad_date", "date must be YYYY-MM-DD")
			return
		}
		h.reject(w, "date_out_of_range", "date is outside the booking window")
		return
	}

	// The catalog is authoritative for known services; otherwise keep
	// whatever the caller resolved.
	doctor := strings.TrimSpace(req.Doctor)
	if d, ok := h.catalog.Lookup(req.Service); ok {
		doctor = d
	}
	if doctor == "" {
		h.reject(w, "no_doctor", "no doctor is assigned to this service")
		return
	}

	ctx := r.Context()
	doctorID := ""
	switch u, err := h.store.DoctorByName(ctx, doctor); {
	case err == nil:
		doctorID = u.ID
	case errors.Is(err, store.ErrNotFound):
		h.log.WithField("doctor", doctor).Warn("booking for doctor without an account")
	default:
		h.internalError(w, "create appointment", err)
		return
	}

	a := &model.Appointment{
		ID:          uuid.NewString(),
		PatientName: strings.TrimSpace(req.FullName),
		Email:       strings.TrimSpace(req.Email),
		Phone:       strings.TrimSpace(req.Mobile),
		Age:         req.Age,
		Gender:      req.Gender,
		Address:     req.Address,
		Service:     req.Service,
		DoctorID:    doctorID,
		Doctor:      doctor,
		Date:        req.Date,
		TimeSlot:    req.TimeSlot,
		Status:      model.StatusPending,
	}

	create := h.store.CreateAppointment
	if h.uniqueSlots {
		create = h.store.CreateAppointmentUnique
	}
	if err := create(ctx, a); err != nil {
		if errors.Is(err, store.ErrSlotTaken) {
			h.metrics.ObserveRejected("slot_taken")
			writeError(w, http.StatusConflict, "this slot is already booked")
			return
		}
		h.internalError(w, "create appointment", err)
		return
	}

	h.metrics.ObserveCreated(a.Service)
	h.publish(ctx, events.Created(a, h.now()))
	h.log.WithField("appointment_id", a.ID).WithField("doctor_id", a.DoctorID).Info("appointment booked")
	writeJSON(w, http.StatusCreated, a)
}

func filterFrom(r *http.Request) lifecycle.Filter {
	q := r.URL.Query()
	return lifecycle.Filter{Status: model.Status(q.Get("status")), Search: q.Get("q")}
}

func (h *Handler) writeList(w http.ResponseWriter, r *http.Request, list []model.Appointment) {
	out := filterFrom(r).Apply(list)
	if out == nil {
		out = []model.Appointment{}
	}
	writeJSON(w, http.StatusOK, out)
}

// ListAppointments is the admin view of every appointment.
func (h *Handler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.ListAppointments(r.Context(), "")
	if err != nil {
		h.internalError(w, "list appointments", err)
		return
	}
	h.writeList(w, r, list)
}

// ListDoctorAppointments lets a doctor read their own list; admins may
// read any doctor's.
func (h *Handler) ListDoctorAppointments(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFrom(r.Context())
	// shares the {id} segment with the status route
	doctorID := chi.URLParam(r, "id")
	if claims.Role == model.RoleDoctor && claims.UserID != doctorID {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	list, err := h.store.ListAppointments(r.Context(), doctorID)
	if err != nil {
		h.internalError(w, "list doctor appointments", err)
		return
	}
	h.writeList(w, r, list)
}

// UpdateStatus applies an accept or reject. Doctors may only decide their
// own appointments; a concurrent decision that landed first yields 409.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims, _ := middleware.ClaimsFrom(ctx)
	id := chi.URLParam(r, "id")

	var req model.StatusUpdate
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	to := req.Status
	sources := lifecycle.SourcesFor(to)
	if !to.Valid() || len(sources) == 0 {
		h.metrics.ObserveTransition(string(to), "invalid")
		writeError(w, http.StatusBadRequest, "status must be confirmed or cancelled")
		return
	}

	cur, err := h.store.GetAppointment(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "appointment not found")
		return
	}
	if err != nil {
		h.internalError(w, "update status", err)
		return
	}
	if claims.Role == model.RoleDoctor && cur.DoctorID != claims.UserID {
		h.metrics.ObserveTransition(string(to), "forbidden")
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	if err := lifecycle.CheckTransition(cur.Status, to); err != nil {
		h.metrics.ObserveTransition(string(to), "conflict")
		writeError(w, http.StatusConflict, "appointment is already "+string(cur.Status))
		return
	}

	updated, err := h.store.UpdateStatus(ctx, id, to, sources)
	switch {
	case errors.Is(err, store.ErrStatusConflict):
		h.metrics.ObserveTransition(string(to), "conflict")
		writeError(w, http.StatusConflict, "appointment status changed, reload and retry")
		return
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "appointment not found")
		return
	case err != nil:
		h.metrics.ObserveTransition(string(to), "error")
		h.internalError(w, "update status", err)
		return
	}

	h.metrics.ObserveTransition(string(to), "ok")
	h.publish(ctx, events.StatusChanged(updated, cur.Status, claims.UserID, h.now()))
	if h.notifier != nil {
		h.notifier.Notify(ctx, updated)
	}
	h.log.WithField("appointment_id", id).WithField("status", to).WithField("actor", claims.UserID).Info("status changed")
	writeJSON(w, http.StatusOK, updated)
}
