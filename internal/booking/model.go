package booking

import (
	"time"

	"github.com/google/uuid"
)

type ConsultationMethod string

const (
	MethodInPerson ConsultationMethod = "in_person"
	MethodVirtual  ConsultationMethod = "virtual"
)

func (m ConsultationMethod) Valid() bool {
	return m == MethodInPerson || m == MethodVirtual
}

type CancellerRole string

const (
	CancelledByPatient CancellerRole = "patient"
	CancelledByDoctor  CancellerRole = "doctor"
)

func (r CancellerRole) Valid() bool {
	return r == CancelledByPatient || r == CancelledByDoctor
}

// Slot is an offered consultation slot. A default slot is a daily
// template: booking it pushes Date forward one day instead of deleting
// it. At most one slot exists per (doctor, date, start time).
type Slot struct {
	ID          uuid.UUID
	DoctorID    uuid.UUID
	Date        time.Time
	StartTime   string // "15:04" wall-clock, kept as text like the rest of the platform
	Method      ConsultationMethod
	IsAvailable bool
	IsDefault   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Booking is the durable record of a purchased slot. It snapshots the
// slot fields at purchase time; the slot itself may be advanced or
// deleted afterwards. Bookings are never deleted, cancellation only
// flips Active and records the canceller.
type Booking struct {
	ID               uuid.UUID
	PaymentID        string
	Amount           int64 // minor units
	UserID           uuid.UUID
	SlotID           uuid.UUID
	SpecialtyID      uuid.UUID
	DoctorID         uuid.UUID
	BookingDate      time.Time
	StartTime        string
	ConsultationDone bool
	Method           ConsultationMethod
	Active           bool
	CancelledBy      *CancellerRole
	CreatedAt        time.Time
}

type Patient struct {
	ID            uuid.UUID
	Name          string
	Email         string
	WalletBalance int64 // minor units, never negative
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Doctor struct {
	ID          uuid.UUID
	Name        string
	SpecialtyID uuid.UUID
	Specialty   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// WalletEntry is one line of a patient's append-only wallet history.
// Debits are stored with a negative amount.
type WalletEntry struct {
	ID          int64
	UserID      uuid.UUID
	Amount      int64
	Description string
	CreatedAt   time.Time
}

type Wallet struct {
	Balance int64
	History []WalletEntry
}
