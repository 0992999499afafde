// simulate drives concurrent booking traffic against a running
// api-server and reports how contention resolved. Point it at a small
// slot pool (SIM_SLOT_LIMIT) to stress the single-booking guarantee:
// every slot should produce exactly one success and the rest conflicts.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/curalink/booking-engine/internal/config"
	"github.com/curalink/booking-engine/internal/db"
)

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	WalletRatio  float64
	PatientLimit int
	SlotLimit    int
	PostgresDSN  string
}

type slotTarget struct {
	ID          uuid.UUID
	DoctorID    uuid.UUID
	SpecialtyID uuid.UUID
	Date        string
	StartTime   string
	Method      string
}

type DataPool struct {
	Patients []uuid.UUID
	Slots    []slotTarget
}

type Metrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	NotFound  int64
	Rejected  int64 // insufficient funds and other 4xx
	Error     int64
	mu        sync.Mutex
	latencies []time.Duration
}

func (m *Metrics) Record(latency time.Duration, status int) {
	atomic.AddInt64(&m.Total, 1)
	switch {
	case status == http.StatusCreated:
		atomic.AddInt64(&m.Success, 1)
	case status == http.StatusConflict:
		atomic.AddInt64(&m.Conflict, 1)
	case status == http.StatusNotFound:
		atomic.AddInt64(&m.NotFound, 1)
	case status >= 400 && status < 500:
		atomic.AddInt64(&m.Rejected, 1)
	default:
		atomic.AddInt64(&m.Error, 1)
	}

	m.mu.Lock()
	m.latencies = append(m.latencies, latency)
	m.mu.Unlock()
}

func (m *Metrics) Stats() (avg, min, max, p95 time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.latencies) == 0 {
		return 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(m.latencies))
	copy(latencies, m.latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]

	p95Idx := len(latencies) * 95 / 100
	if p95Idx >= len(latencies) {
		p95Idx = len(latencies) - 1
	}
	p95 = latencies[p95Idx]

	return avg, min, max, p95
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pgPool.Close()

	pool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}
	if len(pool.Patients) == 0 || len(pool.Slots) == 0 {
		log.Fatal("no patients or slots to simulate with, run cmd/seed first")
	}

	log.Printf("loaded: %d patients, %d slots, workers=%d duration=%s",
		len(pool.Patients), len(pool.Slots), cfg.Workers, cfg.Duration)

	metrics := &Metrics{}
	client := &http.Client{Timeout: 10 * time.Second}

	runCtx, stopRun := context.WithTimeout(context.Background(), cfg.Duration)
	defer stopRun()

	var wg sync.WaitGroup
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for runCtx.Err() == nil {
				bookOnce(runCtx, client, cfg, pool, metrics)
			}
		}()
	}
	wg.Wait()

	printReport(metrics)
}

func bookOnce(ctx context.Context, client *http.Client, cfg SimConfig, pool *DataPool, metrics *Metrics) {
	slot := pool.Slots[rand.Intn(len(pool.Slots))]
	patient := pool.Patients[rand.Intn(len(pool.Patients))]

	wallet := rand.Float64() < cfg.WalletRatio

	body := map[string]any{
		"amount":       int64(gofakeit.Number(5000, 50000)),
		"user_id":      patient.String(),
		"slot_id":      slot.ID.String(),
		"specialty_id": slot.SpecialtyID.String(),
		"doctor_id":    slot.DoctorID.String(),
		"date":         slot.Date,
		"start_time":   slot.StartTime,
		"method":       slot.Method,
	}
	path := "/bookings/wallet"
	if !wallet {
		body["payment_id"] = "sim-" + uuid.NewString()
		path = "/bookings/gateway"
	}

	payload, _ := json.Marshal(body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.APIBaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			metrics.Record(time.Since(start), 0)
		}
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	metrics.Record(time.Since(start), resp.StatusCode)
}

func printReport(m *Metrics) {
	avg, min, max, p95 := m.Stats()

	fmt.Println("=== booking simulation report ===")
	fmt.Printf("total:      %d\n", m.Total)
	fmt.Printf("success:    %d\n", m.Success)
	fmt.Printf("conflict:   %d\n", m.Conflict)
	fmt.Printf("not_found:  %d\n", m.NotFound)
	fmt.Printf("rejected:   %d\n", m.Rejected)
	fmt.Printf("error:      %d\n", m.Error)
	fmt.Printf("latency:    avg=%s min=%s max=%s p95=%s\n", avg, min, max, p95)
}

func loadConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load base config: %v", err)
	}

	return SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		WalletRatio:  getFloat("SIM_WALLET_RATIO", 0.3),
		PatientLimit: getInt("SIM_PATIENT_LIMIT", 1000),
		SlotLimit:    getInt("SIM_SLOT_LIMIT", 50),
		PostgresDSN:  baseCfg.PostgresDSN,
	}
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{}

	rows, err := pool.Query(ctx, `SELECT id FROM patients LIMIT $1`, cfg.PatientLimit)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		dataPool.Patients = append(dataPool.Patients, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	slotRows, err := pool.Query(ctx, `
		SELECT s.id, s.doctor_id, d.specialty_id, to_char(s.date, 'YYYY-MM-DD'), s.start_time, s.consultation_method
		FROM slots s
		JOIN doctors d ON d.id = s.doctor_id
		WHERE s.is_available
		LIMIT $1
	`, cfg.SlotLimit)
	if err != nil {
		return nil, fmt.Errorf("load slots: %w", err)
	}
	defer slotRows.Close()

	for slotRows.Next() {
		var t slotTarget
		if err := slotRows.Scan(&t.ID, &t.DoctorID, &t.SpecialtyID, &t.Date, &t.StartTime, &t.Method); err != nil {
			return nil, err
		}
		dataPool.Slots = append(dataPool.Slots, t)
	}
	if err := slotRows.Err(); err != nil {
		return nil, err
	}

	return dataPool, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
