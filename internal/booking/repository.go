package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrSlotNotFound      = errors.New("slot not found")
	ErrDuplicateSlot     = errors.New("slot already exists for this doctor, date and start time")
	ErrSlotTaken         = errors.New("slot already taken by another booking")
	ErrBookingNotFound   = errors.New("booking not found")
	ErrAlreadyCancelled  = errors.New("booking already cancelled")
	ErrPatientNotFound   = errors.New("patient not found")
	ErrInsufficientFunds = errors.New("insufficient wallet funds")
)

// CreateSlotParams carries the doctor-supplied fields of a new slot.
type CreateSlotParams struct {
	DoctorID  uuid.UUID
	Date      time.Time
	StartTime string
	Method    ConsultationMethod
	IsDefault bool
}

// CreateBookingParams is the full input of the booking transaction.
// FromWallet selects the wallet-debit path.
type CreateBookingParams struct {
	PaymentID   string
	Amount      int64
	UserID      uuid.UUID
	SlotID      uuid.UUID
	SpecialtyID uuid.UUID
	DoctorID    uuid.UUID
	BookingDate time.Time
	StartTime   string
	Method      ConsultationMethod
	FromWallet  bool
}

// Repository contains all store interactions needed by the service.
type Repository interface {
	// Slots
	CreateSlot(ctx context.Context, p CreateSlotParams) (*Slot, error)
	GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error)
	ListAvailableSlots(ctx context.Context, doctorID uuid.UUID, method ConsultationMethod) ([]Slot, error)
	ListSlotsByDoctor(ctx context.Context, doctorID uuid.UUID) ([]Slot, error)
	SetSlotAvailability(ctx context.Context, slotID uuid.UUID, available bool) error
	DeleteSlot(ctx context.Context, slotID uuid.UUID) error

	// Patients and wallets
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetWallet(ctx context.Context, userID uuid.UUID) (*Wallet, error)

	// Booking transaction: slot retire/advance, booking insert, optional
	// wallet debit and chat unlock, all in one failure-atomic unit.
	CreateBooking(ctx context.Context, p CreateBookingParams) (*Booking, error)
	GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	ListBookingsByUser(ctx context.Context, userID uuid.UUID) ([]Booking, error)
	ListBookingsByDoctor(ctx context.Context, doctorID uuid.UUID) ([]Booking, error)
	MarkConsultationComplete(ctx context.Context, bookingID uuid.UUID) (*Booking, error)

	// Cancellation: booking deactivation and wallet refund in one unit.
	CancelBooking(ctx context.Context, userID, bookingID uuid.UUID, amount int64, cancelledBy CancellerRole) (*Booking, *Patient, error)

	// Chat gate
	HasActiveBooking(ctx context.Context, userID, doctorID uuid.UUID) (bool, error)
}
