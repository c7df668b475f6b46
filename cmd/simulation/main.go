package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	minRules   = 5
	maxRules   = 25
	numWorkers = 3
	viewPolls  = 20
)

var defaultServer = "http://localhost:1212"

var prototypes = []int64{12, 13, 24, 31, 45}
var gemIDs = []int64{101, 102, 204, 305, 401}

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// routeStats tracks performance statistics for an API endpoint
type routeStats struct {
	name       string
	durations  []time.Duration
	totalCalls int
	failures   int
}

func (rs *routeStats) addDuration(d time.Duration) {
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
}

// calculate computes performance statistics from recorded durations
// Returns min, max, mean, median, 95th percentile, and 99th percentile durations
func (rs *routeStats) calculate() (min, max, mean, median, p95, p99 time.Duration) {
	if len(rs.durations) == 0 {
		return 0, 0, 0, 0, 0, 0
	}

	sort.Slice(rs.durations, func(i, j int) bool {
		return rs.durations[i] < rs.durations[j]
	})

	min = rs.durations[0]
	max = rs.durations[len(rs.durations)-1]

	var sum time.Duration
	for _, d := range rs.durations {
		sum += d
	}
	mean = sum / time.Duration(len(rs.durations))
	median = rs.durations[len(rs.durations)/2]

	p95idx := int(math.Ceil(float64(len(rs.durations))*0.95)) - 1
	p99idx := int(math.Ceil(float64(len(rs.durations))*0.99)) - 1
	p95 = rs.durations[p95idx]
	p99 = rs.durations[p99idx]

	return
}

// simulationClient drives the bot's control surface over HTTP
type simulationClient struct {
	baseURL   string
	authToken string
	client    *http.Client

	mu    sync.Mutex
	stats map[string]*routeStats
}

func newSimulationClient() *simulationClient {
	baseURL := os.Getenv("SERVER_URL")
	if baseURL == "" {
		baseURL = defaultServer
	}

	return &simulationClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		stats: map[string]*routeStats{
			"auth":   {name: "Authentication"},
			"add":    {name: "Add Rule"},
			"delete": {name: "Delete Rule"},
			"view":   {name: "State View"},
			"start":  {name: "Start Bot"},
			"stop":   {name: "Stop Bot"},
		},
	}
}

func (sc *simulationClient) record(route string, start time.Time, failed bool) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.stats[route].addDuration(time.Since(start))
	if failed {
		sc.stats[route].failures++
	}
}

// authenticate exchanges API credentials for a control token, when the
// server runs with authentication enabled.
func (sc *simulationClient) authenticate(apiKey, apiSecret string) error {
	start := time.Now()
	failed := false
	defer func() { sc.record("auth", start, failed) }()

	body, _ := json.Marshal(map[string]string{
		"api_key":    apiKey,
		"api_secret": apiSecret,
	})

	resp, err := sc.client.Post(sc.baseURL+"/auth/token", "application/json", bytes.NewBuffer(body))
	if err != nil {
		failed = true
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		failed = true
		return fmt.Errorf("authentication failed with status: %d", resp.StatusCode)
	}

	var result struct {
		Data struct {
			Token string `json:"jwt_token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		failed = true
		return err
	}

	sc.authToken = result.Data.Token
	return nil
}

func (sc *simulationClient) post(path string, payload any) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewBuffer(b)
	}

	req, err := http.NewRequest(http.MethodPost, sc.baseURL+path, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if sc.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+sc.authToken)
	}

	resp, err := sc.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	return resp.StatusCode, respBody, err
}

// randomRule builds either a momo or a gem rule with plausible ceilings.
func randomRule() map[string]any {
	if rand.Intn(2) == 0 {
		rule := map[string]any{
			"kind":          "momo",
			"price_ceiling": fmt.Sprintf("%d", rand.Intn(20)+1),
		}
		if rand.Intn(2) == 0 {
			rule["prototype"] = prototypes[rand.Intn(len(prototypes))]
		}
		return rule
	}
	return map[string]any{
		"kind":             "gem",
		"gem_id":           gemIDs[rand.Intn(len(gemIDs))],
		"per_unit_ceiling": fmt.Sprintf("0.0%d", rand.Intn(9)+1),
	}
}

// addRule submits one random rule
func (sc *simulationClient) addRule() error {
	start := time.Now()
	failed := false
	defer func() { sc.record("add", start, failed) }()

	status, body, err := sc.post("/filter", randomRule())
	if err != nil {
		failed = true
		return err
	}
	if status != http.StatusOK {
		failed = true
		return fmt.Errorf("add rule failed with status %d: %s", status, string(body))
	}
	return nil
}

func (sc *simulationClient) deleteRule(id int64) error {
	start := time.Now()
	failed := false
	defer func() { sc.record("delete", start, failed) }()

	status, body, err := sc.post(fmt.Sprintf("/filter/%d", id), nil)
	if err != nil {
		failed = true
		return err
	}
	if status != http.StatusOK {
		failed = true
		return fmt.Errorf("delete rule failed with status %d: %s", status, string(body))
	}
	return nil
}

type stateView struct {
	Running bool `json:"running"`
	Rules   []struct {
		RuleID int64  `json:"rule_id"`
		Kind   string `json:"kind"`
	} `json:"rules"`
	Bids []struct {
		BidKey string `json:"bid_key"`
		Status string `json:"status"`
	} `json:"bids"`
	InFlight []any `json:"in_flight"`
}

// getState fetches the full state view
func (sc *simulationClient) getState() (*stateView, error) {
	start := time.Now()
	failed := false
	defer func() { sc.record("view", start, failed) }()

	resp, err := sc.client.Get(sc.baseURL + "/")
	if err != nil {
		failed = true
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		failed = true
		return nil, fmt.Errorf("state view failed with status: %d", resp.StatusCode)
	}

	var result struct {
		Data stateView `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		failed = true
		return nil, err
	}
	return &result.Data, nil
}

func (sc *simulationClient) startBot() error {
	start := time.Now()
	failed := false
	defer func() { sc.record("start", start, failed) }()

	status, body, err := sc.post("/start", nil)
	if err != nil {
		failed = true
		return err
	}
	if status != http.StatusOK {
		failed = true
		return fmt.Errorf("start failed with status %d: %s", status, string(body))
	}
	return nil
}

func (sc *simulationClient) stopBot() error {
	start := time.Now()
	failed := false
	defer func() { sc.record("stop", start, failed) }()

	status, body, err := sc.post("/stop", nil)
	if err != nil {
		failed = true
		return err
	}
	if status != http.StatusOK {
		failed = true
		return fmt.Errorf("stop failed with status %d: %s", status, string(body))
	}
	return nil
}

// printPerformanceStats renders the latency table for every route
func (sc *simulationClient) printPerformanceStats() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("CONTROL SURFACE PERFORMANCE")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("%-16s %8s %8s %10s %10s %10s %10s %10s\n",
		"Route", "Calls", "Fails", "Min", "Median", "Mean", "P95", "P99")

	for _, key := range []string{"auth", "add", "delete", "view", "start", "stop"} {
		rs := sc.stats[key]
		if rs.totalCalls == 0 {
			continue
		}
		min, _, mean, median, p95, p99 := rs.calculate()
		fmt.Printf("%-16s %8d %8d %10v %10v %10v %10v %10v\n",
			rs.name, rs.totalCalls, rs.failures,
			min.Round(time.Microsecond), median.Round(time.Microsecond),
			mean.Round(time.Microsecond), p95.Round(time.Microsecond),
			p99.Round(time.Microsecond))
	}
	fmt.Println(strings.Repeat("=", 80))
}

// main drives a randomized session against a running bidwatch server: rule
// churn from several workers, a start/stop cycle, and repeated state polls.
func main() {
	sc := newSimulationClient()

	if apiKey := os.Getenv("API_KEY"); apiKey != "" {
		if err := sc.authenticate(apiKey, os.Getenv("API_SECRET")); err != nil {
			log.Fatal().Err(err).Msg("Failed to authenticate")
		}
		log.Info().Msg("Authenticated against control surface")
	}

	numRules := rand.Intn(maxRules-minRules) + minRules
	log.Info().Int("rules", numRules).Int("workers", numWorkers).Msg("Starting simulation")

	var wg sync.WaitGroup
	perWorker := numRules / numWorkers
	for worker := 0; worker < numWorkers; worker++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if err := sc.addRule(); err != nil {
					log.Error().Err(err).Int("worker_id", workerID).Msg("Failed to add rule")
				}
				time.Sleep(time.Duration(rand.Intn(200)) * time.Millisecond)
			}
		}(worker)
	}
	wg.Wait()

	if err := sc.startBot(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start bot")
	}

	for i := 0; i < viewPolls; i++ {
		state, err := sc.getState()
		if err != nil {
			log.Error().Err(err).Msg("Failed to fetch state")
			continue
		}
		log.Info().
			Bool("running", state.Running).
			Int("rules", len(state.Rules)).
			Int("bids", len(state.Bids)).
			Int("in_flight", len(state.InFlight)).
			Msg("State poll")
		time.Sleep(500 * time.Millisecond)
	}

	if err := sc.stopBot(); err != nil {
		log.Error().Err(err).Msg("Failed to stop bot")
	}

	// Tear the rule set back down.
	state, err := sc.getState()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to fetch final state")
	}
	for _, r := range state.Rules {
		if err := sc.deleteRule(r.RuleID); err != nil {
			log.Error().Err(err).Int64("rule_id", r.RuleID).Msg("Failed to delete rule")
		}
	}

	bidsByStatus := map[string]int{}
	for _, b := range state.Bids {
		bidsByStatus[b.Status]++
	}
	log.Info().
		Int("rules_created", numRules).
		Interface("bids_by_status", bidsByStatus).
		Msg("Simulation completed")

	sc.printPerformanceStats()
}
