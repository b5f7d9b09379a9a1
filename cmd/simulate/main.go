package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/logging"
)

// simulate drives concurrent drag/drop/confirm flows against a running
// api-server. Several workers racing on the same appointments exercise the
// transaction state checks and the Redis move lock.

type SimConfig struct {
	APIBaseURL       string
	Duration         time.Duration
	Workers          int
	MoveRatio        float64
	SlotsRatio       float64
	MatchesRatio     float64
	AppointmentLimit int
	PostgresDSN      string
}

type target struct {
	OrgID         uuid.UUID
	AppointmentID uuid.UUID
	Date          string
}

type DataPool struct {
	Targets []target
}

func (dp *DataPool) random(rng *rand.Rand) target {
	return dp.Targets[rng.Intn(len(dp.Targets))]
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, status int, err error) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case err == nil && status < 300:
		atomic.AddInt64(&om.Success, 1)
	case err == nil && status == http.StatusConflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]
	return avg, min, max, p50, p95
}

func percentileIndex(n, p int) int {
	idx := n * p / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	Begin   OperationMetrics
	Drop    OperationMetrics
	Confirm OperationMetrics
	Slots   OperationMetrics
	Matches OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	logger  zerolog.Logger
}

func main() {
	base, err := config.Load()
	if err != nil {
		logging.New("info", "prod").Fatal().Err(err).Msg("failed to load base config")
	}
	logger := logging.New(base.LogLevel, base.Env).With().Str("service", "simulate").Logger()

	cfg := loadConfig(base)
	if err := validateConfig(cfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	logger.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Float64("move", cfg.MoveRatio).
		Float64("slots", cfg.SlotsRatio).
		Float64("matches", cfg.MatchesRatio).
		Msg("simulator starting")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolOptions{MaxConns: 2})
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("load data pool")
	}
	logger.Info().Int("appointments", len(dataPool.Targets)).Msg("data pool loaded")

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}

	sim.Run()
	sim.PrintReport()
}

func loadConfig(base config.Config) SimConfig {
	cfg := SimConfig{
		APIBaseURL:       getEnv("SIM_API_BASE_URL", "http://localhost:"+base.HTTPPort),
		Duration:         getDuration("SIM_DURATION", 30*time.Second),
		Workers:          getInt("SIM_WORKERS", 10),
		MoveRatio:        getFloat("SIM_MOVE_RATIO", 0.5),
		SlotsRatio:       getFloat("SIM_SLOTS_RATIO", 0.35),
		MatchesRatio:     getFloat("SIM_MATCHES_RATIO", 0.15),
		AppointmentLimit: getInt("SIM_APPOINTMENT_LIMIT", 500),
		PostgresDSN:      base.PostgresDSN,
	}

	// Normalize ratios
	total := cfg.MoveRatio + cfg.SlotsRatio + cfg.MatchesRatio
	if total > 0 {
		cfg.MoveRatio /= total
		cfg.SlotsRatio /= total
		cfg.MatchesRatio /= total
	}
	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	return nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, org_id, date
		FROM appointments
		WHERE date >= CURRENT_DATE
		  AND status IN ('agendado', 'confirmado', 'aguardando_confirmacao')
		ORDER BY date, time
		LIMIT $1
	`, cfg.AppointmentLimit)
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}
	defer rows.Close()

	dataPool := &DataPool{}
	for rows.Next() {
		var (
			t   target
			day time.Time
		)
		if err := rows.Scan(&t.AppointmentID, &t.OrgID, &day); err != nil {
			return nil, err
		}
		t.Date = day.Format("2006-01-02")
		dataPool.Targets = append(dataPool.Targets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(dataPool.Targets) == 0 {
		return nil, fmt.Errorf("no upcoming appointments, run cmd/seed first")
	}
	return dataPool, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.logger.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for ctx.Err() == nil {
		r := rng.Float64()
		switch {
		case r < s.config.MoveRatio:
			s.doMove(ctx, rng)
		case r < s.config.MoveRatio+s.config.SlotsRatio:
			s.doSlots(ctx, rng)
		default:
			s.doMatches(ctx, rng)
		}
	}
}

type slotView struct {
	Time        string `json:"time"`
	IsAvailable bool   `json:"is_available"`
}

// doMove runs one begin, drop, confirm sequence onto a random free slot of
// the same day. A 409 at any step ends the sequence.
func (s *Simulator) doMove(ctx context.Context, rng *rand.Rand) {
	t := s.pool.random(rng)
	movePath := fmt.Sprintf("/orgs/%s/moves/%s", t.OrgID, t.AppointmentID)

	status, err := s.call(ctx, &s.metrics.Begin, http.MethodPost, fmt.Sprintf("/orgs/%s/moves", t.OrgID),
		map[string]string{"appointment_id": t.AppointmentID.String()}, nil)
	if err != nil || status != http.StatusCreated {
		return
	}

	var slots struct {
		Slots []slotView `json:"slots"`
	}
	if status, err := s.call(ctx, &s.metrics.Slots, http.MethodGet,
		fmt.Sprintf("/orgs/%s/slots?date=%s", t.OrgID, t.Date), nil, &slots); err != nil || status != http.StatusOK {
		s.cancelMove(ctx, movePath)
		return
	}

	free := make([]string, 0, len(slots.Slots))
	for _, sv := range slots.Slots {
		if sv.IsAvailable {
			free = append(free, sv.Time)
		}
	}
	if len(free) == 0 {
		s.cancelMove(ctx, movePath)
		return
	}

	status, err = s.call(ctx, &s.metrics.Drop, http.MethodPost, movePath+"/drop",
		map[string]string{"date": t.Date, "time": free[rng.Intn(len(free))]}, nil)
	if err != nil || status != http.StatusOK {
		s.cancelMove(ctx, movePath)
		return
	}

	_, _ = s.call(ctx, &s.metrics.Confirm, http.MethodPost, movePath+"/confirm", nil, nil)
}

func (s *Simulator) cancelMove(ctx context.Context, movePath string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+movePath+"/cancel", nil)
	if err != nil {
		return
	}
	if resp, err := s.client.Do(req); err == nil {
		resp.Body.Close()
	}
}

func (s *Simulator) doSlots(ctx context.Context, rng *rand.Rand) {
	t := s.pool.random(rng)
	_, _ = s.call(ctx, &s.metrics.Slots, http.MethodGet, fmt.Sprintf("/orgs/%s/slots?date=%s", t.OrgID, t.Date), nil, nil)
}

func (s *Simulator) doMatches(ctx context.Context, rng *rand.Rand) {
	t := s.pool.random(rng)
	at := fmt.Sprintf("%02d:00", 8+rng.Intn(10))
	_, _ = s.call(ctx, &s.metrics.Matches, http.MethodGet,
		fmt.Sprintf("/orgs/%s/waitlist/matches?date=%s&time=%s", t.OrgID, t.Date, at), nil, nil)
}

// call sends one request, records it and decodes the body into out when set.
func (s *Simulator) call(ctx context.Context, om *OperationMetrics, method, path string, body, out any) (int, error) {
	var payload *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		payload = bytes.NewReader(data)
	} else {
		payload = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, payload)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		if ctx.Err() == nil {
			om.Record(latency, 0, err)
		}
		return 0, err
	}
	defer resp.Body.Close()

	om.Record(latency, resp.StatusCode, nil)
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Begin move", &s.metrics.Begin)
	printOperationReport("Drop", &s.metrics.Drop)
	printOperationReport("Confirm", &s.metrics.Confirm)
	printOperationReport("Slots", &s.metrics.Slots)
	printOperationReport("Waitlist matches", &s.metrics.Matches)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

// Helper functions

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
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
