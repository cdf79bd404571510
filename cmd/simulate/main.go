package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"

	"github.com/AhmetDumanli/Dakik-new/internal/api"
	"github.com/AhmetDumanli/Dakik-new/internal/db"
	"github.com/AhmetDumanli/Dakik-new/internal/obs"
)

type SimConfig struct {
	EventsURL       string        `envconfig:"EVENTS_URL" default:"http://localhost:8081"`
	AppointmentsURL string        `envconfig:"APPOINTMENTS_URL" default:"http://localhost:8080"`
	AppointmentsDSN string        `envconfig:"APPOINTMENTS_DSN"` // optional, enables the post-run consistency check
	Duration        time.Duration `envconfig:"DURATION" default:"30s"`
	Workers         int           `envconfig:"WORKERS" default:"20"`
	Requesters      int64         `envconfig:"REQUESTERS" default:"200"` // requester ids 1000..1000+n
	HotEvents       int           `envconfig:"HOT_EVENTS" default:"25"`  // bookings race on this many events
	BookingRatio    float64       `envconfig:"BOOKING_RATIO" default:"0.6"`
	DecideRatio     float64       `envconfig:"DECIDE_RATIO" default:"0.15"`
	CancelRatio     float64       `envconfig:"CANCEL_RATIO" default:"0.1"`
	ReadRatio       float64       `envconfig:"READ_RATIO" default:"0.15"`
}

type simEvent struct {
	ID      int64 `json:"id"`
	OwnerID int64 `json:"owner_id"`
}

type simAppointment struct {
	ID           int64  `json:"id"`
	EventID      int64  `json:"event_id"`
	BookedBy     int64  `json:"booked_by"`
	EventOwnerID int64  `json:"event_owner_id"`
	Status       string `json:"status"`
}

type DataPool struct {
	Events       []simEvent
	mu           sync.RWMutex
	appointments []simAppointment
}

func (dp *DataPool) AddAppointment(a simAppointment) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, a)
}

func (dp *DataPool) RandomAppointment(rng *rand.Rand) (simAppointment, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return simAppointment{}, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
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
	case err != nil:
		atomic.AddInt64(&om.Error, 1)
	case status >= 200 && status < 300:
		atomic.AddInt64(&om.Success, 1)
	case status == http.StatusConflict || status == http.StatusForbidden:
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

	n := len(latencies)
	return sum / time.Duration(n), latencies[0], latencies[n-1], latencies[n*50/100], latencies[min95(n)]
}

func min95(n int) int {
	i := n * 95 / 100
	if i >= n {
		i = n - 1
	}
	return i
}

type Metrics struct {
	Booking OperationMetrics
	Decide  OperationMetrics
	Cancel  OperationMetrics
	Read    OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	logger  logrus.FieldLogger
	metrics Metrics
}

func main() {
	logger := obs.NewLogger("simulate", "info", true)

	cfg, err := loadConfig()
	if err != nil {
		logger.Fatalf("invalid config: %v", err)
	}

	logger.WithFields(logrus.Fields{
		"duration": cfg.Duration,
		"workers":  cfg.Workers,
		"booking":  cfg.BookingRatio,
		"decide":   cfg.DecideRatio,
		"cancel":   cfg.CancelRatio,
		"read":     cfg.ReadRatio,
	}).Info("simulator starting")

	sim := &Simulator{
		config: cfg,
		pool:   &DataPool{},
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := sim.loadEvents(ctx); err != nil {
		logger.Fatalf("load events: %v", err)
	}
	logger.Infof("loaded %d open events", len(sim.pool.Events))

	sim.Run()
	sim.PrintReport()

	if cfg.AppointmentsDSN != "" {
		if err := checkConsistency(context.Background(), cfg.AppointmentsDSN); err != nil {
			logger.Fatalf("consistency check failed: %v", err)
		}
		logger.Info("consistency check passed: at most one live appointment per event")
	}
}

func loadConfig() (SimConfig, error) {
	_ = godotenv.Load()

	var cfg SimConfig
	if err := envconfig.Process("SIM", &cfg); err != nil {
		return SimConfig{}, err
	}
	if cfg.Workers <= 0 {
		return SimConfig{}, fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return SimConfig{}, fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.Requesters <= 0 {
		return SimConfig{}, fmt.Errorf("SIM_REQUESTERS must be > 0")
	}

	total := cfg.BookingRatio + cfg.DecideRatio + cfg.CancelRatio + cfg.ReadRatio
	if total <= 0 {
		return SimConfig{}, fmt.Errorf("at least one ratio must be > 0")
	}
	cfg.BookingRatio /= total
	cfg.DecideRatio /= total
	cfg.CancelRatio /= total
	cfg.ReadRatio /= total

	return cfg, nil
}

// loadEvents keeps the first HotEvents open events so that many workers
// contend on the same few ids.
func (s *Simulator) loadEvents(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.EventsURL+"/events", nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("list open events: status %d", resp.StatusCode)
	}

	var events []simEvent
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		return fmt.Errorf("decode events: %w", err)
	}
	if len(events) == 0 {
		return fmt.Errorf("no open events, run cmd/seed first")
	}
	if len(events) > s.config.HotEvents {
		events = events[:s.config.HotEvents]
	}
	s.pool.Events = events
	return nil
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
	s.logger.Info("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))
	c := s.config

	for ctx.Err() == nil {
		r := rng.Float64()
		switch {
		case r < c.BookingRatio:
			s.doBooking(ctx, rng)
		case r < c.BookingRatio+c.DecideRatio:
			s.doDecide(ctx, rng)
		case r < c.BookingRatio+c.DecideRatio+c.CancelRatio:
			s.doCancel(ctx, rng)
		default:
			s.doRead(ctx, rng)
		}
	}
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	ev := s.pool.Events[rng.Intn(len(s.pool.Events))]
	requester := 1000 + rng.Int63n(s.config.Requesters)

	body, _ := json.Marshal(api.CreateAppointmentRequest{EventID: ev.ID})

	var appt simAppointment
	start := time.Now()
	status, err := s.call(ctx, http.MethodPost, "/appointments", requester, body, &appt)
	s.record(ctx, &s.metrics.Booking, start, status, err)

	if err == nil && status == http.StatusCreated {
		s.pool.AddAppointment(appt)
	}
}

// doDecide has the owner approve or reject one of the appointments
// created so far.
func (s *Simulator) doDecide(ctx context.Context, rng *rand.Rand) {
	appt, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}

	action := "approve"
	if rng.Intn(2) == 0 {
		action = "reject"
	}

	start := time.Now()
	status, err := s.call(ctx, http.MethodPut, fmt.Sprintf("/appointments/%d/%s", appt.ID, action), appt.EventOwnerID, nil, nil)
	s.record(ctx, &s.metrics.Decide, start, status, err)
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	appt, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}

	start := time.Now()
	status, err := s.call(ctx, http.MethodDelete, "/appointments/"+strconv.FormatInt(appt.ID, 10), appt.BookedBy, nil, nil)
	s.record(ctx, &s.metrics.Cancel, start, status, err)
}

func (s *Simulator) doRead(ctx context.Context, rng *rand.Rand) {
	requester := 1000 + rng.Int63n(s.config.Requesters)

	start := time.Now()
	status, err := s.call(ctx, http.MethodGet, "/appointments/my", requester, nil, nil)
	s.record(ctx, &s.metrics.Read, start, status, err)
}

// record drops requests cut off by the end of the run.
func (s *Simulator) record(ctx context.Context, om *OperationMetrics, start time.Time, status int, err error) {
	if ctx.Err() != nil {
		return
	}
	om.Record(time.Since(start), status, err)
}

func (s *Simulator) call(ctx context.Context, method, path string, userID int64, body []byte, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.config.AppointmentsURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(api.HeaderUserID, strconv.FormatInt(userID, 10))

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

// checkConsistency fails when any event has more than one PENDING or BOOKED
// appointment.
func checkConsistency(ctx context.Context, dsn string) error {
	pool, err := db.ConnectPostgres(ctx, dsn, db.PoolOptions{MaxConns: 2})
	if err != nil {
		return err
	}
	defer pool.Close()

	return verifySingleLive(ctx, pool)
}

func verifySingleLive(ctx context.Context, pool *pgxpool.Pool) error {
	rows, err := pool.Query(ctx, `
		SELECT event_id, count(*)
		FROM appointments
		WHERE status IN ('PENDING', 'BOOKED')
		GROUP BY event_id
		HAVING count(*) > 1
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	var bad []string
	for rows.Next() {
		var eventID, n int64
		if err := rows.Scan(&eventID, &n); err != nil {
			return err
		}
		bad = append(bad, fmt.Sprintf("event %d has %d live appointments", eventID, n))
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(bad) > 0 {
		return fmt.Errorf("%s", strings.Join(bad, "; "))
	}
	return nil
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Printf("Hot events: %d\n", len(s.pool.Events))
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Approve/Reject", &s.metrics.Decide)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("List mine", &s.metrics.Read)
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
		fmt.Printf("  Rejected by rules: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}
