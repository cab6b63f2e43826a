package main

import (
	"net/http"
	"testing"
	"time"
)

func TestClassifyStatus(t *testing.T) {
	cases := map[int]outcome{
		http.StatusCreated:             outcomeSuccess,
		http.StatusOK:                  outcomeSuccess,
		http.StatusBadRequest:          outcomeConflict,
		http.StatusConflict:            outcomeConflict,
		http.StatusUnprocessableEntity: outcomeConflict,
		http.StatusNotFound:            outcomeFailed,
		http.StatusInternalServerError: outcomeFailed,
		0:                              outcomeFailed,
	}
	for status, want := range cases {
		if got := classifyStatus(status); got != want {
			t.Errorf("classifyStatus(%d) = %d, want %d", status, got, want)
		}
	}
}

func TestRecorderReport(t *testing.T) {
	rec := newRecorder()
	rec.observe(endpointScenario, 10*time.Millisecond, http.StatusCreated)
	rec.observe(endpointScenario, 20*time.Millisecond, http.StatusBadRequest)
	rec.observe(endpointScenario, 30*time.Millisecond, 0)
	rec.observe(endpointCreateSale, 15*time.Millisecond, http.StatusCreated)

	r := rec.report(time.Now(), 2*time.Second)
	s := r.Scenarios
	if s.Calls != 3 || s.Success != 1 || s.Conflicts != 1 || s.Failed != 1 {
		t.Fatalf("unexpected scenario totals: %+v", s)
	}
	if r.RPS != 1.5 {
		t.Fatalf("expected 1.5 rps, got %f", r.RPS)
	}
	if s.Codes["201"] != 1 || s.Codes["400"] != 1 || s.Codes[transportErrorLabel] != 1 {
		t.Fatalf("unexpected codes: %+v", s.Codes)
	}
	if _, ok := r.Endpoints[endpointScenario]; ok {
		t.Fatal("scenario totals must not be listed as an endpoint")
	}
	if r.Endpoints[endpointCreateSale].Calls != 1 {
		t.Fatalf("expected POST /api/sales stats, got %+v", r.Endpoints)
	}

	// Отчёт не должен разделять map с recorder.
	s.Codes["201"] = 100
	if rec.report(time.Now(), time.Second).Scenarios.Codes["201"] != 1 {
		t.Fatal("report codes must be a copy")
	}
}

func TestSummarize(t *testing.T) {
	summary := summarize([]float64{40, 10, 30, 20})
	want := latencySummary{Min: 10, Max: 40, Avg: 25, P50: 20, P95: 40, P99: 40}
	if summary != want {
		t.Fatalf("summarize = %+v, want %+v", summary, want)
	}
	if summarize(nil) != (latencySummary{}) {
		t.Fatal("empty input must give zero summary")
	}
}

func TestPercentile(t *testing.T) {
	sorted := make([]float64, 100)
	for i := range sorted {
		sorted[i] = float64(i + 1)
	}
	tests := []struct {
		p    float64
		want float64
	}{
		{p: 0, want: 1},
		{p: 50, want: 50},
		{p: 95, want: 95},
		{p: 100, want: 100},
	}
	for _, tc := range tests {
		if got := percentile(sorted, tc.p); got != tc.want {
			t.Errorf("percentile(%v) = %v, want %v", tc.p, got, tc.want)
		}
	}
	if got := percentile([]float64{5}, 99); got != 5 {
		t.Fatalf("single value percentile = %f", got)
	}
}

func TestRatio(t *testing.T) {
	if got := ratio(1, 4); got != 0.25 {
		t.Fatalf("ratio mismatch: %f", got)
	}
	if got := ratio(1, 0); got != 0 {
		t.Fatalf("ratio with zero total must be 0, got %f", got)
	}
}
