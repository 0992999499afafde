package booking

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	debitDescription  = "Wallet booking payment"
	refundDescription = "Slot cancellation refund"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Migrate brings the schema up to date. Called once at startup.
func (r *PgRepository) Migrate(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// Helpers

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot

	err := row.Scan(
		&s.ID,
		&s.DoctorID,
		&s.Date,
		&s.StartTime,
		&s.Method,
		&s.IsAvailable,
		&s.IsDefault,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}

	return &s, nil
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	var cancelledBy *string

	err := row.Scan(
		&b.ID,
		&b.PaymentID,
		&b.Amount,
		&b.UserID,
		&b.SlotID,
		&b.SpecialtyID,
		&b.DoctorID,
		&b.BookingDate,
		&b.StartTime,
		&b.ConsultationDone,
		&b.Method,
		&b.Active,
		&cancelledBy,
		&b.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	if cancelledBy != nil {
		role := CancellerRole(*cancelledBy)
		b.CancelledBy = &role
	}
	return &b, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Email,
		&p.WalletBalance,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	return &p, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

const slotColumns = `id, doctor_id, date, start_time, consultation_method, is_available, is_default, created_at, updated_at`

const bookingColumns = `id, payment_id, amount, user_id, slot_id, specialty_id, doctor_id, booking_date, start_time, consultation_done, consultation_method, booking_active, cancelled_by, created_at`

// Slots

func (r *PgRepository) CreateSlot(ctx context.Context, p CreateSlotParams) (*Slot, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO slots (id, doctor_id, date, start_time, consultation_method, is_available, is_default, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, true, $6, now(), now())
		RETURNING `+slotColumns,
		id, p.DoctorID, p.Date, p.StartTime, p.Method, p.IsDefault)

	slot, err := scanSlot(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: doctor %s at %s %s", ErrDuplicateSlot, p.DoctorID, p.Date.Format("2006-01-02"), p.StartTime)
		}
		return nil, fmt.Errorf("insert slot: %w", err)
	}

	return slot, nil
}

func (r *PgRepository) GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+slotColumns+`
		FROM slots
		WHERE id = $1
	`, id)
	return scanSlot(row)
}

func (r *PgRepository) ListAvailableSlots(ctx context.Context, doctorID uuid.UUID, method ConsultationMethod) ([]Slot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM slots
		WHERE doctor_id = $1 AND is_available`
	args := []any{doctorID}

	if method != "" {
		query += ` AND consultation_method = $2`
		args = append(args, method)
	}
	query += ` ORDER BY date, start_time, id`

	return r.querySlots(ctx, query, args...)
}

func (r *PgRepository) ListSlotsByDoctor(ctx context.Context, doctorID uuid.UUID) ([]Slot, error) {
	return r.querySlots(ctx, `
		SELECT `+slotColumns+`
		FROM slots
		WHERE doctor_id = $1
		ORDER BY date, start_time, id
	`, doctorID)
}

func (r *PgRepository) querySlots(ctx context.Context, query string, args ...any) ([]Slot, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) SetSlotAvailability(ctx context.Context, slotID uuid.UUID, available bool) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE slots
		SET is_available = $2,
		    updated_at = now()
		WHERE id = $1
	`, slotID, available)
	if err != nil {
		return fmt.Errorf("update slot availability: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotNotFound
	}
	return nil
}

func (r *PgRepository) DeleteSlot(ctx context.Context, slotID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM slots WHERE id = $1`, slotID)
	if err != nil {
		return fmt.Errorf("delete slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotNotFound
	}
	return nil
}

// Patients and wallets

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, wallet_balance, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetWallet(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	var balance int64
	err := r.pool.QueryRow(ctx, `
		SELECT wallet_balance FROM patients WHERE id = $1
	`, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("get wallet balance: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, amount, description, created_at
		FROM wallet_entries
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("get wallet history: %w", err)
	}
	defer rows.Close()

	wallet := &Wallet{Balance: balance}
	for rows.Next() {
		var e WalletEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Amount, &e.Description, &e.CreatedAt); err != nil {
			return nil, err
		}
		wallet.History = append(wallet.History, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return wallet, nil
}

// debitWallet decrements the balance with a floor check in a single
// conditional update, so two concurrent debits cannot both pass against
// a stale balance.
func debitWallet(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64) error {
	tag, err := tx.Exec(ctx, `
		UPDATE patients
		SET wallet_balance = wallet_balance - $2,
		    updated_at = now()
		WHERE id = $1
		  AND wallet_balance >= $2
	`, userID, amount)
	if err != nil {
		return fmt.Errorf("debit wallet: %w", err)
	}

	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM patients WHERE id = $1)`, userID).Scan(&exists); err != nil {
			return fmt.Errorf("check patient: %w", err)
		}
		if !exists {
			return ErrPatientNotFound
		}
		return ErrInsufficientFunds
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO wallet_entries (user_id, amount, description)
		VALUES ($1, $2, $3)
	`, userID, -amount, debitDescription)
	if err != nil {
		return fmt.Errorf("insert debit entry: %w", err)
	}

	return nil
}

// Bookings

// CreateBooking runs the whole purchase in one transaction: the slot is
// advanced (default) or deleted (one-off) via a conditional update keyed
// on is_available, the wallet is debited on the wallet path, the booking
// row is inserted, and chat between the pair is unlocked. Any failure
// rolls the whole unit back, so a slot is never consumed without a
// booking to show for it.
func (r *PgRepository) CreateBooking(ctx context.Context, p CreateBookingParams) (*Booking, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	slot, err := scanSlot(tx.QueryRow(ctx, `
		SELECT `+slotColumns+`
		FROM slots
		WHERE id = $1
		FOR UPDATE
	`, p.SlotID))
	if err != nil {
		return nil, err
	}
	if !slot.IsAvailable {
		return nil, ErrSlotTaken
	}

	if slot.IsDefault {
		// Advance the template to the next day instead of deleting it.
		tag, err := tx.Exec(ctx, `
			UPDATE slots
			SET is_available = false,
			    date = date + INTERVAL '1 day',
			    updated_at = now()
			WHERE id = $1
			  AND is_available
		`, p.SlotID)
		if err != nil {
			// The doctor may already offer a slot at the same time next
			// day. The purchase cannot proceed without losing the
			// template, so surface it as a conflict.
			if isUniqueViolation(err) {
				return nil, fmt.Errorf("%w: slot already offered at %s next day", ErrDuplicateSlot, slot.StartTime)
			}
			return nil, fmt.Errorf("advance slot: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil, ErrSlotTaken
		}
	} else {
		tag, err := tx.Exec(ctx, `
			DELETE FROM slots
			WHERE id = $1
			  AND is_available
		`, p.SlotID)
		if err != nil {
			return nil, fmt.Errorf("retire slot: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil, ErrSlotTaken
		}
	}

	if p.FromWallet {
		if err := debitWallet(ctx, tx, p.UserID, p.Amount); err != nil {
			return nil, err
		}
	}

	id := uuid.New()
	booking, err := scanBooking(tx.QueryRow(ctx, `
		INSERT INTO bookings (id, payment_id, amount, user_id, slot_id, specialty_id, doctor_id, booking_date, start_time, consultation_done, consultation_method, booking_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, false, $10, true, now())
		RETURNING `+bookingColumns,
		id, p.PaymentID, p.Amount, p.UserID, p.SlotID, p.SpecialtyID, p.DoctorID, p.BookingDate, p.StartTime, p.Method))
	if err != nil {
		return nil, fmt.Errorf("insert booking: %w", err)
	}

	// A booking unlocks the conversation between patient and doctor.
	_, err = tx.Exec(ctx, `
		UPDATE chat_messages
		SET is_booked = true
		WHERE sender_id = $1
		  AND receiver_id = $2
		  AND NOT is_booked
	`, p.UserID, p.DoctorID)
	if err != nil {
		return nil, fmt.Errorf("unlock chat: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return booking, nil
}

func (r *PgRepository) GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = $1
	`, id)
	return scanBooking(row)
}

func (r *PgRepository) ListBookingsByUser(ctx context.Context, userID uuid.UUID) ([]Booking, error) {
	return r.queryBookings(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE user_id = $1
		ORDER BY created_at DESC, id
	`, userID)
}

func (r *PgRepository) ListBookingsByDoctor(ctx context.Context, doctorID uuid.UUID) ([]Booking, error) {
	return r.queryBookings(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE doctor_id = $1
		ORDER BY created_at DESC, id
	`, doctorID)
}

func (r *PgRepository) queryBookings(ctx context.Context, query string, args ...any) ([]Booking, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *b)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) MarkConsultationComplete(ctx context.Context, bookingID uuid.UUID) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE bookings
		SET consultation_done = true
		WHERE id = $1
		RETURNING `+bookingColumns,
		bookingID)
	return scanBooking(row)
}

// CancelBooking flips booking_active with a conditional update so a
// second cancel cannot credit the wallet again, then refunds the amount
// and appends the history entry in the same transaction. The consumed
// slot is not reconstituted.
func (r *PgRepository) CancelBooking(ctx context.Context, userID, bookingID uuid.UUID, amount int64, cancelledBy CancellerRole) (*Booking, *Patient, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	booking, err := scanBooking(tx.QueryRow(ctx, `
		UPDATE bookings
		SET booking_active = false,
		    cancelled_by = $2
		WHERE id = $1
		  AND booking_active
		RETURNING `+bookingColumns,
		bookingID, string(cancelledBy)))
	if err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			var exists bool
			if scanErr := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bookings WHERE id = $1)`, bookingID).Scan(&exists); scanErr != nil {
				return nil, nil, fmt.Errorf("check booking: %w", scanErr)
			}
			if exists {
				return nil, nil, ErrAlreadyCancelled
			}
			return nil, nil, ErrBookingNotFound
		}
		return nil, nil, fmt.Errorf("deactivate booking: %w", err)
	}

	patient, err := scanPatient(tx.QueryRow(ctx, `
		UPDATE patients
		SET wallet_balance = wallet_balance + $2,
		    updated_at = now()
		WHERE id = $1
		RETURNING id, name, email, wallet_balance, created_at, updated_at
	`, userID, amount))
	if err != nil {
		return nil, nil, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO wallet_entries (user_id, amount, description)
		VALUES ($1, $2, $3)
	`, userID, amount, refundDescription)
	if err != nil {
		return nil, nil, fmt.Errorf("insert refund entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit tx: %w", err)
	}

	return booking, patient, nil
}

// Chat gate

func (r *PgRepository) HasActiveBooking(ctx context.Context, userID, doctorID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE user_id = $1
			  AND doctor_id = $2
			  AND booking_active
		)
	`, userID, doctorID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check active booking: %w", err)
	}
	return exists, nil
}
