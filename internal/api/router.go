package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Booking BookingService
	OTP     OTPService
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Logger  *zap.Logger
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
	}))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Slot catalog
	r.Route("/doctors/{doctorID}", func(r chi.Router) {
		r.Get("/slots", listAvailableSlotsHandler(cfg.Booking))
		r.Get("/slots/all", listDoctorSlotsHandler(cfg.Booking))
		r.Post("/slots", createSlotHandler(cfg.Booking))
		r.Get("/bookings", listDoctorBookingsHandler(cfg.Booking))
	})
	r.Patch("/slots/{id}/availability", setSlotAvailabilityHandler(cfg.Booking))
	r.Delete("/slots/{id}", deleteSlotHandler(cfg.Booking))

	// Purchase and cancellation
	r.Post("/bookings/gateway", bookSlotHandler(cfg.Booking, false))
	r.Post("/bookings/wallet", bookSlotHandler(cfg.Booking, true))
	r.Post("/bookings/{id}/cancel", cancelBookingHandler(cfg.Booking))
	r.Post("/bookings/{id}/complete", completeConsultationHandler(cfg.Booking))

	// User views
	r.Get("/users/{userID}/bookings", listUserBookingsHandler(cfg.Booking))
	r.Get("/users/{userID}/wallet", getWalletHandler(cfg.Booking))

	// Chat gate
	r.Get("/chat/access", chatAccessHandler(cfg.Booking))

	// OTP
	r.Post("/otp/send", sendOTPHandler(cfg.OTP))
	r.Post("/otp/verify", verifyOTPHandler(cfg.OTP))

	return r
}
