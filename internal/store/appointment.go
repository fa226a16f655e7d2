package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"clinic-booking/internal/model"
)

const appointmentCols = `id, patient_name, email, phone, age, gender, address, service, ` +
	`COALESCE(doctor_id::text, ''), doctor_name, date, time_slot, status, created_at, updated_at`

func scanAppointment(row pgx.Row) (*model.Appointment, error) {
	a := &model.Appointment{}
	var date time.Time
	var status string
	if err := row.Scan(
		&a.ID, &a.PatientName, &a.Email, &a.Phone, &a.Age, &a.Gender, &a.Address, &a.Service,
		&a.DoctorID, &a.Doctor, &date, &a.TimeSlot, &status, &a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	a.Date = date.Format(model.DateLayout)
	a.Status = model.Status(status)
	return a, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

const insertAppointment = `INSERT INTO appointments
	(id, patient_name, email, phone, age, gender, address, service, doctor_id, doctor_name, date, time_slot, status)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	RETURNING created_at, updated_at`

func insertArgs(a *model.Appointment) ([]any, error) {
	d, err := time.Parse(model.DateLayout, a.Date)
	if err != nil {
		return nil, fmt.Errorf("store: appointment date: %w", err)
	}
	return []any{
		a.ID, a.PatientName, a.Email, a.Phone, a.Age, a.Gender, a.Address, a.Service,
		nullable(a.DoctorID), a.Doctor, d, a.TimeSlot, string(a.Status),
	}, nil
}

func (s *Store) CreateAppointment(ctx context.Context, a *model.Appointment) error {
	args, err := insertArgs(a)
	if err != nil {
		return err
	}
	if err := s.pool.QueryRow(ctx, insertAppointment, args...).Scan(&a.CreatedAt, &a.UpdatedAt); err != nil {
		return fmt.Errorf("store: create appointment: %w", err)
	}
	return nil
}

// CreateAppointmentUnique inserts unless the doctor already holds a live
// booking for the same day and slot. An advisory lock on the slot key
// serializes concurrent bookers.
func (s *Store) CreateAppointmentUnique(ctx context.Context, a *model.Appointment) error {
	args, err := insertArgs(a)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	key := a.DoctorID + "|" + a.Doctor + "|" + a.Date + "|" + a.TimeSlot
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
		return fmt.Errorf("store: slot lock: %w", err)
	}

	var taken bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM appointments
			WHERE doctor_name = $1 AND date = $2 AND time_slot = $3
			  AND status <> 'cancelled')`,
		a.Doctor, args[10], a.TimeSlot,
	).Scan(&taken)
	if err != nil {
		return fmt.Errorf("store: slot check: %w", err)
	}
	if taken {
		return ErrSlotTaken
	}

	if err := tx.QueryRow(ctx, insertAppointment, args...).Scan(&a.CreatedAt, &a.UpdatedAt); err != nil {
		return fmt.Errorf("store: create appointment: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *Store) GetAppointment(ctx context.Context, id string) (*model.Appointment, error) {
	a, err := scanAppointment(s.pool.QueryRow(ctx,
		`SELECT `+appointmentCols+` FROM appointments WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get appointment: %w", err)
	}
	return a, nil
}

// ListAppointments returns every appointment, or only doctorID's when set.
func (s *Store) ListAppointments(ctx context.Context, doctorID string) ([]model.Appointment, error) {
	q := `SELECT ` + appointmentCols + ` FROM appointments`
	var args []any
	if doctorID != "" {
		q += ` WHERE doctor_id = $1`
		args = append(args, doctorID)
	}
	q += ` ORDER BY date DESC, created_at DESC`

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list appointments: %w", err)
	}
	defer rows.Close()

	out := []model.Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan appointment: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *Store) CountAppointments(ctx context.Context, doctorID string) (int64, error) {
	q := `SELECT COUNT(*) FROM appointments`
	var args []any
	if doctorID != "" {
		q += ` WHERE doctor_id = $1`
		args = append(args, doctorID)
	}
	var n int64
	if err := s.pool.QueryRow(ctx, q, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count appointments: %w", err)
	}
	return n, nil
}

// UpdateStatus moves an appointment to `to` only if it is currently in one
// of `from`. The first of two racing writers wins; the second gets
// ErrStatusConflict.
func (s *Store) UpdateStatus(ctx context.Context, id string, to model.Status, from []model.Status) (*model.Appointment, error) {
	allowed := make([]string, len(from))
	for i, st := range from {
		allowed[i] = string(st)
	}

	a, err := scanAppointment(s.pool.QueryRow(ctx,
		`UPDATE appointments SET status = $1, updated_at = NOW()
		 WHERE id = $2 AND status = ANY($3)
		 RETURNING `+appointmentCols,
		string(to), id, allowed,
	))
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("store: update status: %w", err)
	}

	if _, err := s.GetAppointment(ctx, id); err != nil {
		return nil, err
	}
	return nil, ErrStatusConflict
}
