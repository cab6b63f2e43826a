// Command loadtest нагружает POST /api/sales параллельными продажами одного товара
// и печатает сводку: успешные продажи, конфликты по остатку и перцентили задержек.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"maps"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"syscall"
	"text/tabwriter"
	"time"
)

func main() {
	cfg, err := parseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startedAt := time.Now()
	rec := newRecorder()
	runID := fmt.Sprintf("%d-%d", startedAt.UnixNano(), os.Getpid())
	if err := newRunner(cfg, runID, rec).run(ctx); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "load run interrupted: %v\n", err)
	}

	result := rec.report(startedAt, time.Since(startedAt))
	printReport(os.Stdout, result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
			os.Exit(1)
		}
	}

	if result.Scenarios.Failed > 0 {
		os.Exit(1)
	}
}

func printReport(w io.Writer, result report, cfg config) {
	s := result.Scenarios
	_, _ = fmt.Fprintf(w, "Load test summary\nmode=%s run=%s duration=%.2fs rps=%.2f\n",
		cfg.mode, cfg.target(), result.DurationSeconds, result.RPS)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ENDPOINT\tCALLS\tOK\tCONFLICT\tFAILED\tERR RATE\tP50 MS\tP95 MS\tP99 MS")
	row := func(name string, r endpointReport) {
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%.4f\t%.2f\t%.2f\t%.2f\n",
			name, r.Calls, r.Success, r.Conflicts, r.Failed, r.ErrorRate,
			r.LatencyMs.P50, r.LatencyMs.P95, r.LatencyMs.P99)
	}
	row(endpointScenario, s)
	for _, name := range slices.Sorted(maps.Keys(result.Endpoints)) {
		row(name, result.Endpoints[name])
	}
	_ = tw.Flush()
}

// writeJSONReport пишет отчёт в файл. Относительный путь не может выходить за текущий каталог.
func writeJSONReport(path string, result report) error {
	clean := filepath.Clean(path)
	switch {
	case clean == "." || clean == string(filepath.Separator):
		return errors.New("output path must point to a file")
	case !filepath.IsAbs(clean) && !filepath.IsLocal(clean):
		return fmt.Errorf("output path must be inside current directory: %s", path)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(clean, append(data, '\n'), 0o600)
}
