package main

import (
	"maps"
	"math"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"
)

const (
	endpointScenario    = "scenario"
	endpointCreateSale  = "POST /api/sales"
	endpointListSales   = "GET /api/sales"
	transportErrorLabel = "transport_error"
)

// outcome классифицирует ответ: конфликт (нет остатка, повтор ключа) не считается сбоем сервиса.
type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeConflict
	outcomeFailed
)

func classifyStatus(status int) outcome {
	switch status {
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		return outcomeConflict
	}
	if status >= 200 && status < 300 {
		return outcomeSuccess
	}
	return outcomeFailed
}

type latencySummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type endpointReport struct {
	Calls     int64            `json:"calls"`
	Success   int64            `json:"success"`
	Conflicts int64            `json:"conflicts"`
	Failed    int64            `json:"failed"`
	ErrorRate float64          `json:"error_rate"`
	Codes     map[string]int64 `json:"codes"`
	LatencyMs latencySummary   `json:"latency_ms"`
}

type report struct {
	StartedAt       time.Time                 `json:"started_at"`
	DurationSeconds float64                   `json:"duration_seconds"`
	RPS             float64                   `json:"rps"`
	Scenarios       endpointReport            `json:"scenarios"`
	Endpoints       map[string]endpointReport `json:"endpoints"`
}

type tally struct {
	byOutcome [3]int64
	codes     map[string]int64
	latencies []float64
}

func (t *tally) report() endpointReport {
	calls := t.byOutcome[outcomeSuccess] + t.byOutcome[outcomeConflict] + t.byOutcome[outcomeFailed]
	return endpointReport{
		Calls:     calls,
		Success:   t.byOutcome[outcomeSuccess],
		Conflicts: t.byOutcome[outcomeConflict],
		Failed:    t.byOutcome[outcomeFailed],
		ErrorRate: ratio(t.byOutcome[outcomeFailed], calls),
		Codes:     maps.Clone(t.codes),
		LatencyMs: summarize(t.latencies),
	}
}

// recorder собирает результаты вызовов со всех воркеров.
type recorder struct {
	mu      sync.Mutex
	tallies map[string]*tally
}

func newRecorder() *recorder {
	return &recorder{tallies: make(map[string]*tally)}
}

// observe учитывает один вызов; status 0 означает транспортную ошибку.
func (r *recorder) observe(endpoint string, latency time.Duration, status int) {
	code := transportErrorLabel
	if status > 0 {
		code = strconv.Itoa(status)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	t := r.tallies[endpoint]
	if t == nil {
		t = &tally{codes: make(map[string]int64)}
		r.tallies[endpoint] = t
	}
	t.byOutcome[classifyStatus(status)]++
	t.codes[code]++
	t.latencies = append(t.latencies, float64(latency.Microseconds())/1000)
}

func (r *recorder) report(startedAt time.Time, elapsed time.Duration) report {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := report{
		StartedAt:       startedAt.UTC(),
		DurationSeconds: elapsed.Seconds(),
		Endpoints:       make(map[string]endpointReport, len(r.tallies)),
	}
	for endpoint, t := range r.tallies {
		if endpoint == endpointScenario {
			out.Scenarios = t.report()
			continue
		}
		out.Endpoints[endpoint] = t.report()
	}
	if elapsed > 0 {
		out.RPS = float64(out.Scenarios.Calls) / elapsed.Seconds()
	}
	return out
}

func summarize(values []float64) latencySummary {
	if len(values) == 0 {
		return latencySummary{}
	}
	sorted := slices.Sorted(slices.Values(values))

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	return latencySummary{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: sum / float64(len(sorted)),
		P50: percentile(sorted, 50),
		P95: percentile(sorted, 95),
		P99: percentile(sorted, 99),
	}
}

// percentile считает перцентиль по методу nearest-rank; sorted должен быть отсортирован.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(p / 100 * float64(len(sorted))))
	return sorted[min(max(rank, 1), len(sorted))-1]
}

func ratio(part, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(part) / float64(total)
}
