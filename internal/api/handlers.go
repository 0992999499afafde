package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/curalink/booking-engine/internal/booking"
	"github.com/curalink/booking-engine/internal/otp"
)

// BookingService is the slice of the booking engine the HTTP layer uses.
type BookingService interface {
	CreateSlot(ctx context.Context, p booking.CreateSlotParams) (*booking.Slot, error)
	ListAvailableSlots(ctx context.Context, doctorID uuid.UUID, method booking.ConsultationMethod) ([]booking.Slot, error)
	ListSlotsByDoctor(ctx context.Context, doctorID uuid.UUID) ([]booking.Slot, error)
	SetSlotAvailability(ctx context.Context, slotID uuid.UUID, available bool) error
	DeleteSlot(ctx context.Context, slotID uuid.UUID) error

	BookWithGateway(ctx context.Context, req booking.BookingRequest) (*booking.Booking, error)
	BookWithWallet(ctx context.Context, req booking.BookingRequest) (*booking.Booking, error)
	Cancel(ctx context.Context, userID, bookingID uuid.UUID, amount int64, cancelledBy booking.CancellerRole) (*booking.Booking, *booking.Patient, error)
	MarkConsultationComplete(ctx context.Context, bookingID uuid.UUID) (*booking.Booking, error)
	ListBookingsByUser(ctx context.Context, userID uuid.UUID) ([]booking.Booking, error)
	ListBookingsByDoctor(ctx context.Context, doctorID uuid.UUID) ([]booking.Booking, error)

	GetWallet(ctx context.Context, userID uuid.UUID) (*booking.Wallet, error)
	HasActiveBooking(ctx context.Context, userID, doctorID uuid.UUID) (bool, error)
}

type OTPService interface {
	Issue(ctx context.Context, email string) (string, error)
	Verify(token, code string) (otp.Result, error)
}

var validate = validator.New()

func decodeAndValidate(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.New("could not parse JSON")
	}
	return validate.Struct(v)
}

func pathUUID(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	return id, err == nil
}

// Slots

func createSlotHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := pathUUID(r, "doctorID")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctorID must be a valid UUID")
			return
		}

		var req CreateSlotRequest
		if err := decodeAndValidate(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
			return
		}

		date, _ := time.Parse(dateLayout, req.Date)

		slot, err := svc.CreateSlot(r.Context(), booking.CreateSlotParams{
			DoctorID:  doctorID,
			Date:      date,
			StartTime: req.StartTime,
			Method:    booking.ConsultationMethod(req.Method),
			IsDefault: req.IsDefault,
		})
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toSlotResponse(slot))
	}
}

func listAvailableSlotsHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := pathUUID(r, "doctorID")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctorID must be a valid UUID")
			return
		}

		method := booking.ConsultationMethod(r.URL.Query().Get("method"))

		slots, err := svc.ListAvailableSlots(r.Context(), doctorID, method)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		resp := make([]SlotResponse, 0, len(slots))
		for i := range slots {
			resp = append(resp, toSlotResponse(&slots[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func listDoctorSlotsHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := pathUUID(r, "doctorID")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctorID must be a valid UUID")
			return
		}

		slots, err := svc.ListSlotsByDoctor(r.Context(), doctorID)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		resp := make([]SlotResponse, 0, len(slots))
		for i := range slots {
			resp = append(resp, toSlotResponse(&slots[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func setSlotAvailabilityHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slotID, ok := pathUUID(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_slot_id", "id must be a valid UUID")
			return
		}

		var req SetAvailabilityRequest
		if err := decodeAndValidate(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
			return
		}

		if err := svc.SetSlotAvailability(r.Context(), slotID, *req.Available); err != nil {
			handleBookingError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func deleteSlotHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slotID, ok := pathUUID(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_slot_id", "id must be a valid UUID")
			return
		}

		if err := svc.DeleteSlot(r.Context(), slotID); err != nil {
			handleBookingError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// Bookings

func bookSlotHandler(svc BookingService, wallet bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookSlotRequest
		if err := decodeAndValidate(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
			return
		}

		if !wallet && req.PaymentID == "" {
			writeError(w, http.StatusBadRequest, "missing_payment_id", "payment_id is required for gateway bookings")
			return
		}

		date, _ := time.Parse(dateLayout, req.Date)

		in := booking.BookingRequest{
			PaymentID:   req.PaymentID,
			Amount:      req.Amount,
			UserID:      uuid.MustParse(req.UserID),
			SlotID:      uuid.MustParse(req.SlotID),
			SpecialtyID: uuid.MustParse(req.SpecialtyID),
			DoctorID:    uuid.MustParse(req.DoctorID),
			BookingDate: date,
			StartTime:   req.StartTime,
			Method:      booking.ConsultationMethod(req.Method),
		}

		var (
			b   *booking.Booking
			err error
		)
		if wallet {
			b, err = svc.BookWithWallet(r.Context(), in)
		} else {
			b, err = svc.BookWithGateway(r.Context(), in)
		}
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toBookingResponse(b))
	}
}

func cancelBookingHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bookingID, ok := pathUUID(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_booking_id", "id must be a valid UUID")
			return
		}

		var req CancelBookingRequest
		if err := decodeAndValidate(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
			return
		}

		b, user, err := svc.Cancel(r.Context(), uuid.MustParse(req.UserID), bookingID, req.Amount, booking.CancellerRole(req.CancelledBy))
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, CancelBookingResponse{
			Booking: toBookingResponse(b),
			User: UserResponse{
				ID:            user.ID,
				Name:          user.Name,
				Email:         user.Email,
				WalletBalance: user.WalletBalance,
			},
		})
	}
}

func completeConsultationHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bookingID, ok := pathUUID(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_booking_id", "id must be a valid UUID")
			return
		}

		b, err := svc.MarkConsultationComplete(r.Context(), bookingID)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toBookingResponse(b))
	}
}

func listUserBookingsHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := pathUUID(r, "userID")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_user_id", "userID must be a valid UUID")
			return
		}

		bookings, err := svc.ListBookingsByUser(r.Context(), userID)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeBookings(w, bookings)
	}
}

func listDoctorBookingsHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := pathUUID(r, "doctorID")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctorID must be a valid UUID")
			return
		}

		bookings, err := svc.ListBookingsByDoctor(r.Context(), doctorID)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeBookings(w, bookings)
	}
}

func writeBookings(w http.ResponseWriter, bookings []booking.Booking) {
	resp := make([]BookingResponse, 0, len(bookings))
	for i := range bookings {
		resp = append(resp, toBookingResponse(&bookings[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Wallet

func getWalletHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := pathUUID(r, "userID")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_user_id", "userID must be a valid UUID")
			return
		}

		wallet, err := svc.GetWallet(r.Context(), userID)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		resp := WalletResponse{Balance: wallet.Balance, History: make([]WalletEntryResponse, 0, len(wallet.History))}
		for _, e := range wallet.History {
			resp.History = append(resp.History, WalletEntryResponse{
				Amount:      e.Amount,
				Description: e.Description,
				CreatedAt:   e.CreatedAt,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// Chat gate

func chatAccessHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := uuid.Parse(r.URL.Query().Get("user_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_user_id", "user_id must be a valid UUID")
			return
		}
		doctorID, err := uuid.Parse(r.URL.Query().Get("doctor_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}

		allowed, err := svc.HasActiveBooking(r.Context(), userID, doctorID)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, ChatAccessResponse{Allowed: allowed})
	}
}

// OTP

func sendOTPHandler(svc OTPService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SendOTPRequest
		if err := decodeAndValidate(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
			return
		}

		token, err := svc.Issue(r.Context(), req.Email)
		if err != nil {
			if errors.Is(err, otp.ErrDeliveryFailure) {
				writeError(w, http.StatusBadGateway, "otp_delivery_failed", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, SendOTPResponse{
			Token:   token,
			Message: "OTP sent successfully! Please check your email",
		})
	}
}

func verifyOTPHandler(svc OTPService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req VerifyOTPRequest
		if err := decodeAndValidate(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
			return
		}

		result, err := svc.Verify(req.Token, req.Code)
		if err != nil {
			if errors.Is(err, otp.ErrInvalidToken) {
				writeError(w, http.StatusBadRequest, "invalid_token", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, VerifyOTPResponse{Matches: result.Matches, Expired: result.Expired})
	}
}

// Error mapping

func handleBookingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrSlotNotFound):
		writeError(w, http.StatusNotFound, "slot_not_found", err.Error())
	case errors.Is(err, booking.ErrBookingNotFound):
		writeError(w, http.StatusNotFound, "booking_not_found", err.Error())
	case errors.Is(err, booking.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, booking.ErrDuplicateSlot):
		writeError(w, http.StatusConflict, "duplicate_slot", err.Error())
	case errors.Is(err, booking.ErrSlotTaken):
		writeError(w, http.StatusConflict, "slot_already_booked", err.Error())
	case errors.Is(err, booking.ErrSlotBeingBooked):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")
	case errors.Is(err, booking.ErrAlreadyCancelled):
		writeError(w, http.StatusConflict, "already_cancelled", err.Error())
	case errors.Is(err, booking.ErrInsufficientFunds):
		writeError(w, http.StatusPaymentRequired, "insufficient_funds", err.Error())
	case errors.Is(err, booking.ErrInvalidAmount),
		errors.Is(err, booking.ErrInvalidMethod),
		errors.Is(err, booking.ErrInvalidCanceller):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
