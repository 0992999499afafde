package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/curalink/booking-engine/internal/booking"
)

const dateLayout = "2006-01-02"

type CreateSlotRequest struct {
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime string `json:"start_time" validate:"required"`
	Method    string `json:"method" validate:"required,oneof=in_person virtual"`
	IsDefault bool   `json:"is_default"`
}

type SlotResponse struct {
	ID          uuid.UUID `json:"id"`
	DoctorID    uuid.UUID `json:"doctor_id"`
	Date        string    `json:"date"`
	StartTime   string    `json:"start_time"`
	Method      string    `json:"method"`
	IsAvailable bool      `json:"is_available"`
	IsDefault   bool      `json:"is_default"`
}

func toSlotResponse(s *booking.Slot) SlotResponse {
	return SlotResponse{
		ID:          s.ID,
		DoctorID:    s.DoctorID,
		Date:        s.Date.Format(dateLayout),
		StartTime:   s.StartTime,
		Method:      string(s.Method),
		IsAvailable: s.IsAvailable,
		IsDefault:   s.IsDefault,
	}
}

type SetAvailabilityRequest struct {
	Available *bool `json:"available" validate:"required"`
}

type BookSlotRequest struct {
	PaymentID   string `json:"payment_id"`
	Amount      int64  `json:"amount" validate:"required,gt=0"`
	UserID      string `json:"user_id" validate:"required,uuid"`
	SlotID      string `json:"slot_id" validate:"required,uuid"`
	SpecialtyID string `json:"specialty_id" validate:"required,uuid"`
	DoctorID    string `json:"doctor_id" validate:"required,uuid"`
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime   string `json:"start_time" validate:"required"`
	Method      string `json:"method" validate:"required,oneof=in_person virtual"`
}

type BookingResponse struct {
	ID               uuid.UUID `json:"id"`
	PaymentID        string    `json:"payment_id"`
	Amount           int64     `json:"amount"`
	UserID           uuid.UUID `json:"user_id"`
	SlotID           uuid.UUID `json:"slot_id"`
	SpecialtyID      uuid.UUID `json:"specialty_id"`
	DoctorID         uuid.UUID `json:"doctor_id"`
	BookingDate      string    `json:"booking_date"`
	StartTime        string    `json:"start_time"`
	ConsultationDone bool      `json:"consultation_done"`
	Method           string    `json:"method"`
	Active           bool      `json:"active"`
	CancelledBy      *string   `json:"cancelled_by,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

func toBookingResponse(b *booking.Booking) BookingResponse {
	resp := BookingResponse{
		ID:               b.ID,
		PaymentID:        b.PaymentID,
		Amount:           b.Amount,
		UserID:           b.UserID,
		SlotID:           b.SlotID,
		SpecialtyID:      b.SpecialtyID,
		DoctorID:         b.DoctorID,
		BookingDate:      b.BookingDate.Format(dateLayout),
		StartTime:        b.StartTime,
		ConsultationDone: b.ConsultationDone,
		Method:           string(b.Method),
		Active:           b.Active,
		CreatedAt:        b.CreatedAt,
	}
	if b.CancelledBy != nil {
		role := string(*b.CancelledBy)
		resp.CancelledBy = &role
	}
	return resp
}

type CancelBookingRequest struct {
	UserID      string `json:"user_id" validate:"required,uuid"`
	Amount      int64  `json:"amount" validate:"required,gt=0"`
	CancelledBy string `json:"cancelled_by" validate:"required,oneof=patient doctor"`
}

type CancelBookingResponse struct {
	Booking BookingResponse `json:"booking"`
	User    UserResponse    `json:"user"`
}

type UserResponse struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	WalletBalance int64     `json:"wallet_balance"`
}

type WalletEntryResponse struct {
	Amount      int64     `json:"amount"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

type WalletResponse struct {
	Balance int64                 `json:"balance"`
	History []WalletEntryResponse `json:"history"`
}

type ChatAccessResponse struct {
	Allowed bool `json:"allowed"`
}

type SendOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type SendOTPResponse struct {
	Token   string `json:"token"`
	Message string `json:"message"`
}

type VerifyOTPRequest struct {
	Token string `json:"token" validate:"required"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

type VerifyOTPResponse struct {
	Matches bool `json:"matches"`
	Expired bool `json:"expired"`
}
