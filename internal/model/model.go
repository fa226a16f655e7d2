package model

import "time"

// DateLayout is the wire format of appointment dates (calendar day only).
const DateLayout = "2006-01-02"

type Role string

const (
	RoleDoctor Role = "doctor"
	RoleAdmin  Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleDoctor || r == RoleAdmin
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled:
		return true
	}
	return false
}

type User struct {
	ID           string
	Email        string
	PasswordHash string
	Name         string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Appointment is the server-owned booking record. Doctor is denormalized at
// booking time and never re-resolved.
type Appointment struct {
	ID          string    `json:"id"`
	PatientName string    `json:"fullName"`
	Email       string    `json:"email,omitempty"`
	Phone       string    `json:"mobile"`
	Age         int       `json:"age,omitempty"`
	Gender      string    `json:"gender,omitempty"`
	Address     string    `json:"address,omitempty"`
	Service     string    `json:"service"`
	DoctorID    string    `json:"doctorId,omitempty"`
	Doctor      string    `json:"doctor"`
	Date        string    `json:"date"`
	TimeSlot    string    `json:"timeSlot"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// BookingRequest is the public create payload. It carries no status; the
// server always starts a booking as pending.
type BookingRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email,omitempty"`
	Mobile   string `json:"mobile"`
	Age      int    `json:"age,omitempty" validate:"min=0,max=120"`
	Gender   string `json:"gender,omitempty"`
	Service  string `json:"service"`
	Date     string `json:"date"`
	Address  string `json:"address,omitempty"`
	TimeSlot string `json:"timeSlot"`
	Doctor   string `json:"doctor"`
}

type StatusUpdate struct {
	Status Status `json:"status"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UserInfo struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Role Role   `json:"role"`
}

type LoginResponse struct {
	Token string   `json:"token"`
	User  UserInfo `json:"user"`
}

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name" validate:"required"`
	Role     Role   `json:"role" validate:"oneof=doctor admin"`
}

// CatalogInfo describes what the booking form may offer.
type CatalogInfo struct {
	Services   []string `json:"services"`
	Slots      []string `json:"slots"`
	WindowDays int      `json:"windowDays"`
}
