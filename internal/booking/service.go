package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	redisclient "github.com/curalink/booking-engine/internal/redis"
)

var (
	ErrSlotBeingBooked  = errors.New("slot is currently being booked, please retry")
	ErrInvalidAmount    = errors.New("amount must be positive")
	ErrInvalidMethod    = errors.New("unknown consultation method")
	ErrInvalidCanceller = errors.New("canceller must be patient or doctor")
)

// BookingRequest is the caller-facing input of both purchase paths.
// PaymentID is required on the gateway path (the gateway has already
// captured the payment) and generated internally on the wallet path.
type BookingRequest struct {
	PaymentID   string
	Amount      int64
	UserID      uuid.UUID
	SlotID      uuid.UUID
	SpecialtyID uuid.UUID
	DoctorID    uuid.UUID
	BookingDate time.Time
	StartTime   string
	Method      ConsultationMethod
}

type Service struct {
	repo   Repository
	locker redisclient.Locker
	log    *zap.SugaredLogger
}

func NewService(repo Repository, locker redisclient.Locker, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		locker: locker,
		log:    logger.Sugar(),
	}
}

// Slot management (doctor-initiated, independent of the booking flow)

func (s *Service) CreateSlot(ctx context.Context, p CreateSlotParams) (*Slot, error) {
	if !p.Method.Valid() {
		return nil, ErrInvalidMethod
	}
	if p.StartTime == "" {
		return nil, errors.New("start time is required")
	}

	slot, err := s.repo.CreateSlot(ctx, p)
	if err != nil {
		return nil, err
	}

	s.log.Infow("slot created",
		"slot_id", slot.ID,
		"doctor_id", slot.DoctorID,
		"date", slot.Date.Format("2006-01-02"),
		"start_time", slot.StartTime,
		"default", slot.IsDefault,
	)
	return slot, nil
}

func (s *Service) ListAvailableSlots(ctx context.Context, doctorID uuid.UUID, method ConsultationMethod) ([]Slot, error) {
	if method != "" && !method.Valid() {
		return nil, ErrInvalidMethod
	}
	return s.repo.ListAvailableSlots(ctx, doctorID, method)
}

func (s *Service) ListSlotsByDoctor(ctx context.Context, doctorID uuid.UUID) ([]Slot, error) {
	return s.repo.ListSlotsByDoctor(ctx, doctorID)
}

func (s *Service) SetSlotAvailability(ctx context.Context, slotID uuid.UUID, available bool) error {
	return s.repo.SetSlotAvailability(ctx, slotID, available)
}

func (s *Service) DeleteSlot(ctx context.Context, slotID uuid.UUID) error {
	return s.repo.DeleteSlot(ctx, slotID)
}

// Purchase paths

// BookWithGateway records a booking whose payment was already captured
// by the external gateway. The slot transition and booking insert run
// inside a per-slot lock so concurrent bookers fail fast with a
// conflict instead of contending on the store transaction.
func (s *Service) BookWithGateway(ctx context.Context, req BookingRequest) (*Booking, error) {
	if req.PaymentID == "" {
		return nil, errors.New("payment id is required")
	}
	return s.book(ctx, req, false)
}

// BookWithWallet is the wallet-funded path: the debit happens inside
// the same transaction as the slot transition, so an overdraw leaves
// both the slot and the balance untouched.
func (s *Service) BookWithWallet(ctx context.Context, req BookingRequest) (*Booking, error) {
	req.PaymentID = "wallet-" + uuid.NewString()
	return s.book(ctx, req, true)
}

func (s *Service) book(ctx context.Context, req BookingRequest, fromWallet bool) (*Booking, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if !req.Method.Valid() {
		return nil, ErrInvalidMethod
	}

	// Fail fast on a slot that is already gone, before taking the lock.
	if _, err := s.repo.GetSlotByID(ctx, req.SlotID); err != nil {
		if errors.Is(err, ErrSlotNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load slot: %w", err)
	}

	var created *Booking

	err := s.locker.WithSlotLock(ctx, req.SlotID, func(lockCtx context.Context) error {
		booking, err := s.repo.CreateBooking(lockCtx, CreateBookingParams{
			PaymentID:   req.PaymentID,
			Amount:      req.Amount,
			UserID:      req.UserID,
			SlotID:      req.SlotID,
			SpecialtyID: req.SpecialtyID,
			DoctorID:    req.DoctorID,
			BookingDate: req.BookingDate,
			StartTime:   req.StartTime,
			Method:      req.Method,
			FromWallet:  fromWallet,
		})
		if err != nil {
			return err
		}
		created = booking
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	s.log.Infow("slot booked",
		"booking_id", created.ID,
		"slot_id", created.SlotID,
		"user_id", created.UserID,
		"amount", created.Amount,
		"wallet", fromWallet,
	)
	return created, nil
}

// Cancellation

// Cancel deactivates the booking, records who cancelled it and refunds
// the amount to the user's wallet. A booking that is already inactive
// is rejected with ErrAlreadyCancelled rather than credited twice. The
// consumed slot stays consumed.
func (s *Service) Cancel(ctx context.Context, userID, bookingID uuid.UUID, amount int64, cancelledBy CancellerRole) (*Booking, *Patient, error) {
	if amount <= 0 {
		return nil, nil, ErrInvalidAmount
	}
	if !cancelledBy.Valid() {
		return nil, nil, ErrInvalidCanceller
	}

	booking, patient, err := s.repo.CancelBooking(ctx, userID, bookingID, amount, cancelledBy)
	if err != nil {
		return nil, nil, err
	}

	s.log.Infow("booking cancelled",
		"booking_id", booking.ID,
		"user_id", userID,
		"cancelled_by", cancelledBy,
		"refund", amount,
	)
	return booking, patient, nil
}

// Booking records and consultation lifecycle

func (s *Service) GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	return s.repo.GetBookingByID(ctx, id)
}

func (s *Service) ListBookingsByUser(ctx context.Context, userID uuid.UUID) ([]Booking, error) {
	return s.repo.ListBookingsByUser(ctx, userID)
}

func (s *Service) ListBookingsByDoctor(ctx context.Context, doctorID uuid.UUID) ([]Booking, error) {
	return s.repo.ListBookingsByDoctor(ctx, doctorID)
}

func (s *Service) MarkConsultationComplete(ctx context.Context, bookingID uuid.UUID) (*Booking, error) {
	return s.repo.MarkConsultationComplete(ctx, bookingID)
}

// Wallet and chat gate

func (s *Service) GetWallet(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	return s.repo.GetWallet(ctx, userID)
}

// HasActiveBooking is the predicate the chat subsystem consults before
// showing a conversation.
func (s *Service) HasActiveBooking(ctx context.Context, userID, doctorID uuid.UUID) (bool, error) {
	return s.repo.HasActiveBooking(ctx, userID, doctorID)
}
