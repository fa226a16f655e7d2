package lifecycle

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"clinic-booking/internal/model"
	"clinic-booking/pkg/logging"
)

// Form is what a patient fills in on the booking page.
type Form struct {
	FullName string
	Email    string
	Mobile   string
	Age      int
	Gender   string
	Service  string
	Date     string
	Address  string
	TimeSlot string
}

// ValidationError lists the required fields that were left empty.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "missing required fields: " + strings.Join(e.Missing, ", ")
}

// Validate only checks presence. Date range and slot membership are
// input-level concerns (see Window) and are not re-checked here.
func (f Form) Validate() error {
	var missing []string
	for _, fld := range []struct {
		name, val string
	}{
		{"fullName", f.FullName},
		{"mobile", f.Mobile},
		{"service", f.Service},
		{"date", f.Date},
		{"timeSlot", f.TimeSlot},
	} {
		if strings.TrimSpace(fld.val) == "" {
			missing = append(missing, fld.name)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}

// Request turns the form into the create payload with the doctor resolved.
func (f Form) Request(c *Catalog) model.BookingRequest {
	return model.BookingRequest{
		FullName: strings.TrimSpace(f.FullName),
		Email:    strings.TrimSpace(f.Email),
		Mobile:   strings.TrimSpace(f.Mobile),
		Age:      f.Age,
		Gender:   f.Gender,
		Service:  f.Service,
		Date:     f.Date,
		Address:  f.Address,
		TimeSlot: f.TimeSlot,
		Doctor:   c.Resolve(f.Service),
	}
}

// Submitter creates appointments on the backend.
type Submitter interface {
	CreateAppointment(ctx context.Context, req model.BookingRequest) (*model.Appointment, error)
}

// Booker validates a form and submits it exactly once.
type Booker struct {
	catalog *Catalog
	submit  Submitter
	log     *logging.Logger
}

func NewBooker(c *Catalog, s Submitter, logger *logging.Logger) *Booker {
	if c == nil {
		c = DefaultCatalog()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Booker{catalog: c, submit: s, log: logger}
}

// Book returns a *ValidationError without touching the network when a
// required field is empty.
func (b *Booker) Book(ctx context.Context, f Form) (*model.Appointment, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	req := f.Request(b.catalog)
	if req.Doctor == "" {
		b.log.WithField("service", f.Service).Warn("no doctor mapped for service, submitting without one")
	}

	appt, err := b.submit.CreateAppointment(ctx, req)
	if err != nil {
		b.log.WithFields(logrus.Fields{"service": f.Service, "error": err}).Error("booking failed")
		return nil, err
	}
	b.log.WithFields(logrus.Fields{"appointment_id": appt.ID, "doctor": req.Doctor}).Info("appointment booked")
	return appt, nil
}
