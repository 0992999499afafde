package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/curalink/booking-engine/internal/booking"
	"github.com/curalink/booking-engine/internal/otp"
)

type stubBookingService struct {
	slot    *booking.Slot
	slots   []booking.Slot
	slotErr error

	booked  *booking.Booking
	bookErr error

	cancelled  *booking.Booking
	cancelUser *booking.Patient
	cancelErr  error

	wallet    *booking.Wallet
	walletErr error

	chatAllowed bool
	chatErr     error
}

func (s *stubBookingService) CreateSlot(ctx context.Context, p booking.CreateSlotParams) (*booking.Slot, error) {
	return s.slot, s.slotErr
}

func (s *stubBookingService) ListAvailableSlots(ctx context.Context, doctorID uuid.UUID, method booking.ConsultationMethod) ([]booking.Slot, error) {
	return s.slots, s.slotErr
}

func (s *stubBookingService) ListSlotsByDoctor(ctx context.Context, doctorID uuid.UUID) ([]booking.Slot, error) {
	return s.slots, s.slotErr
}

func (s *stubBookingService) SetSlotAvailability(ctx context.Context, slotID uuid.UUID, available bool) error {
	return s.slotErr
}

func (s *stubBookingService) DeleteSlot(ctx context.Context, slotID uuid.UUID) error {
	return s.slotErr
}

func (s *stubBookingService) BookWithGateway(ctx context.Context, req booking.BookingRequest) (*booking.Booking, error) {
	return s.booked, s.bookErr
}

func (s *stubBookingService) BookWithWallet(ctx context.Context, req booking.BookingRequest) (*booking.Booking, error) {
	return s.booked, s.bookErr
}

func (s *stubBookingService) Cancel(ctx context.Context, userID, bookingID uuid.UUID, amount int64, cancelledBy booking.CancellerRole) (*booking.Booking, *booking.Patient, error) {
	return s.cancelled, s.cancelUser, s.cancelErr
}

func (s *stubBookingService) MarkConsultationComplete(ctx context.Context, bookingID uuid.UUID) (*booking.Booking, error) {
	return s.booked, s.bookErr
}

func (s *stubBookingService) ListBookingsByUser(ctx context.Context, userID uuid.UUID) ([]booking.Booking, error) {
	return nil, nil
}

func (s *stubBookingService) ListBookingsByDoctor(ctx context.Context, doctorID uuid.UUID) ([]booking.Booking, error) {
	return nil, nil
}

func (s *stubBookingService) GetWallet(ctx context.Context, userID uuid.UUID) (*booking.Wallet, error) {
	return s.wallet, s.walletErr
}

func (s *stubBookingService) HasActiveBooking(ctx context.Context, userID, doctorID uuid.UUID) (bool, error) {
	return s.chatAllowed, s.chatErr
}

type stubOTPService struct {
	token    string
	issueErr error

	result    otp.Result
	verifyErr error
}

func (s *stubOTPService) Issue(ctx context.Context, email string) (string, error) {
	return s.token, s.issueErr
}

func (s *stubOTPService) Verify(token, code string) (otp.Result, error) {
	return s.result, s.verifyErr
}

func newTestRouter(bs BookingService, os OTPService) http.Handler {
	return NewRouter(RouterConfig{
		Booking: bs,
		OTP:     os,
		Logger:  zap.NewNop(),
		Env:     "test",
		Version: "test",
	})
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func sampleBooking() *booking.Booking {
	return &booking.Booking{
		ID:          uuid.New(),
		PaymentID:   "pay-1",
		Amount:      25000,
		UserID:      uuid.New(),
		SlotID:      uuid.New(),
		SpecialtyID: uuid.New(),
		DoctorID:    uuid.New(),
		BookingDate: time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC),
		StartTime:   "10:00",
		Method:      booking.MethodVirtual,
		Active:      true,
		CreatedAt:   time.Now(),
	}
}

func bookBody() map[string]any {
	return map[string]any{
		"payment_id":   "pay-1",
		"amount":       25000,
		"user_id":      uuid.NewString(),
		"slot_id":      uuid.NewString(),
		"specialty_id": uuid.NewString(),
		"doctor_id":    uuid.NewString(),
		"date":         "2024-05-20",
		"start_time":   "10:00",
		"method":       "virtual",
	}
}

func TestCreateSlot(t *testing.T) {
	doctorID := uuid.New()
	svc := &stubBookingService{slot: &booking.Slot{
		ID:          uuid.New(),
		DoctorID:    doctorID,
		Date:        time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC),
		StartTime:   "10:00",
		Method:      booking.MethodInPerson,
		IsAvailable: true,
	}}
	router := newTestRouter(svc, &stubOTPService{})

	rec := doJSON(t, router, http.MethodPost, "/doctors/"+doctorID.String()+"/slots", map[string]any{
		"date":       "2024-05-20",
		"start_time": "10:00",
		"method":     "in_person",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp SlotResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "2024-05-20", resp.Date)
	assert.True(t, resp.IsAvailable)
}

func TestCreateSlot_BadDate(t *testing.T) {
	router := newTestRouter(&stubBookingService{}, &stubOTPService{})

	rec := doJSON(t, router, http.MethodPost, "/doctors/"+uuid.NewString()+"/slots", map[string]any{
		"date":       "20-05-2024",
		"start_time": "10:00",
		"method":     "in_person",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateSlot_DuplicateConflict(t *testing.T) {
	svc := &stubBookingService{slotErr: booking.ErrDuplicateSlot}
	router := newTestRouter(svc, &stubOTPService{})

	rec := doJSON(t, router, http.MethodPost, "/doctors/"+uuid.NewString()+"/slots", map[string]any{
		"date":       "2024-05-20",
		"start_time": "10:00",
		"method":     "in_person",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestBookGateway_RequiresPaymentID(t *testing.T) {
	router := newTestRouter(&stubBookingService{booked: sampleBooking()}, &stubOTPService{})

	body := bookBody()
	delete(body, "payment_id")
	rec := doJSON(t, router, http.MethodPost, "/bookings/gateway", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBookWallet_Created(t *testing.T) {
	b := sampleBooking()
	router := newTestRouter(&stubBookingService{booked: b}, &stubOTPService{})

	body := bookBody()
	delete(body, "payment_id")
	rec := doJSON(t, router, http.MethodPost, "/bookings/wallet", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp BookingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, b.ID, resp.ID)
	assert.True(t, resp.Active)
}

func TestBook_ErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{booking.ErrSlotNotFound, http.StatusNotFound},
		{booking.ErrSlotTaken, http.StatusConflict},
		{booking.ErrSlotBeingBooked, http.StatusConflict},
		{booking.ErrInsufficientFunds, http.StatusPaymentRequired},
		{booking.ErrPatientNotFound, http.StatusNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			router := newTestRouter(&stubBookingService{bookErr: tc.err}, &stubOTPService{})

			rec := doJSON(t, router, http.MethodPost, "/bookings/wallet", bookBody())
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestCancelBooking(t *testing.T) {
	cancelledBy := booking.CancelledByPatient
	b := sampleBooking()
	b.Active = false
	b.CancelledBy = &cancelledBy

	svc := &stubBookingService{
		cancelled: b,
		cancelUser: &booking.Patient{
			ID:            b.UserID,
			Name:          "Jordan Reyes",
			Email:         "jordan@example.com",
			WalletBalance: 50000,
		},
	}
	router := newTestRouter(svc, &stubOTPService{})

	rec := doJSON(t, router, http.MethodPost, fmt.Sprintf("/bookings/%s/cancel", b.ID), map[string]any{
		"user_id":      b.UserID.String(),
		"amount":       25000,
		"cancelled_by": "patient",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp CancelBookingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Booking.Active)
	require.NotNil(t, resp.Booking.CancelledBy)
	assert.Equal(t, "patient", *resp.Booking.CancelledBy)
	assert.Equal(t, int64(50000), resp.User.WalletBalance)
}

func TestCancelBooking_AlreadyCancelled(t *testing.T) {
	svc := &stubBookingService{cancelErr: booking.ErrAlreadyCancelled}
	router := newTestRouter(svc, &stubOTPService{})

	rec := doJSON(t, router, http.MethodPost, fmt.Sprintf("/bookings/%s/cancel", uuid.New()), map[string]any{
		"user_id":      uuid.NewString(),
		"amount":       25000,
		"cancelled_by": "doctor",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCancelBooking_RejectsUnknownRole(t *testing.T) {
	router := newTestRouter(&stubBookingService{}, &stubOTPService{})

	rec := doJSON(t, router, http.MethodPost, fmt.Sprintf("/bookings/%s/cancel", uuid.New()), map[string]any{
		"user_id":      uuid.NewString(),
		"amount":       25000,
		"cancelled_by": "admin",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetWallet(t *testing.T) {
	userID := uuid.New()
	svc := &stubBookingService{wallet: &booking.Wallet{
		Balance: 32000,
		History: []booking.WalletEntry{
			{Amount: -18000, Description: "Wallet booking payment", CreatedAt: time.Now()},
			{Amount: 50000, Description: "Top up", CreatedAt: time.Now().Add(-time.Hour)},
		},
	}}
	router := newTestRouter(svc, &stubOTPService{})

	rec := doJSON(t, router, http.MethodGet, "/users/"+userID.String()+"/wallet", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp WalletResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(32000), resp.Balance)
	require.Len(t, resp.History, 2)
	assert.Equal(t, int64(-18000), resp.History[0].Amount)
}

func TestGetWallet_UnknownUser(t *testing.T) {
	svc := &stubBookingService{walletErr: booking.ErrPatientNotFound}
	router := newTestRouter(svc, &stubOTPService{})

	rec := doJSON(t, router, http.MethodGet, "/users/"+uuid.NewString()+"/wallet", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChatAccess(t *testing.T) {
	svc := &stubBookingService{chatAllowed: true}
	router := newTestRouter(svc, &stubOTPService{})

	url := fmt.Sprintf("/chat/access?user_id=%s&doctor_id=%s", uuid.NewString(), uuid.NewString())
	rec := doJSON(t, router, http.MethodGet, url, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ChatAccessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Allowed)
}

func TestChatAccess_MissingIDs(t *testing.T) {
	router := newTestRouter(&stubBookingService{}, &stubOTPService{})

	rec := doJSON(t, router, http.MethodGet, "/chat/access", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendOTP(t *testing.T) {
	router := newTestRouter(&stubBookingService{}, &stubOTPService{token: "signed-token"})

	rec := doJSON(t, router, http.MethodPost, "/otp/send", map[string]any{"email": "patient@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SendOTPResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "signed-token", resp.Token)
}

func TestSendOTP_DeliveryFailure(t *testing.T) {
	router := newTestRouter(&stubBookingService{}, &stubOTPService{issueErr: otp.ErrDeliveryFailure})

	rec := doJSON(t, router, http.MethodPost, "/otp/send", map[string]any{"email": "patient@example.com"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestSendOTP_BadEmail(t *testing.T) {
	router := newTestRouter(&stubBookingService{}, &stubOTPService{})

	rec := doJSON(t, router, http.MethodPost, "/otp/send", map[string]any{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerifyOTP(t *testing.T) {
	router := newTestRouter(&stubBookingService{}, &stubOTPService{result: otp.Result{Matches: true}})

	rec := doJSON(t, router, http.MethodPost, "/otp/verify", map[string]any{
		"token": "signed-token",
		"code":  "123456",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp VerifyOTPResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Matches)
	assert.False(t, resp.Expired)
}

func TestVerifyOTP_InvalidToken(t *testing.T) {
	router := newTestRouter(&stubBookingService{}, &stubOTPService{verifyErr: otp.ErrInvalidToken})

	rec := doJSON(t, router, http.MethodPost, "/otp/verify", map[string]any{
		"token": "garbage",
		"code":  "123456",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerifyOTP_RejectsShortCode(t *testing.T) {
	router := newTestRouter(&stubBookingService{}, &stubOTPService{})

	rec := doJSON(t, router, http.MethodPost, "/otp/verify", map[string]any{
		"token": "signed-token",
		"code":  "123",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
