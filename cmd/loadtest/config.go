package main

import (
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"
)

type loadMode string

const (
	modeSale           loadMode = "sale"
	modeSaleReplay     loadMode = "sale-replay"
	modeSaleAndHistory loadMode = "sale-history"
)

var loadModes = []loadMode{modeSale, modeSaleReplay, modeSaleAndHistory}

// config: параметры прогона. maxScenarios == 0 означает «без ограничения»
// и допустимо только вместе с duration.
type config struct {
	baseURL      string
	duration     time.Duration
	maxScenarios int
	concurrency  int
	timeout      time.Duration
	mode         loadMode
	productID    string
	quantity     int
	customerTag  string
	outputPath   string
}

func parseConfig(fs *flag.FlagSet, args []string) (config, error) {
	var (
		cfg   config
		total int
		mode  string
	)

	fs.StringVar(&cfg.baseURL, "url", "http://localhost:5000", "POS REST API base URL")
	fs.IntVar(&total, "total", 400, "scenarios to run; with -duration only applies when set explicitly")
	fs.DurationVar(&cfg.duration, "duration", 0, "run for a fixed time instead of a fixed count (e.g. 1m)")
	fs.IntVar(&cfg.concurrency, "concurrency", 40, "scenarios in flight")
	fs.DurationVar(&cfg.timeout, "timeout", 5*time.Second, "per-request timeout")
	fs.StringVar(&mode, "mode", string(modeSale), "sale | sale-replay | sale-history")
	fs.StringVar(&cfg.productID, "product", "1", "product id to sell")
	fs.IntVar(&cfg.quantity, "qty", 1, "quantity per sale")
	fs.StringVar(&cfg.customerTag, "customer-tag", "load", "customer name prefix")
	fs.StringVar(&cfg.outputPath, "output", "", "write JSON report to this file")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	totalSet := false
	fs.Visit(func(f *flag.Flag) { totalSet = totalSet || f.Name == "total" })

	var err error
	if cfg.mode, err = parseMode(mode); err != nil {
		return cfg, err
	}
	cfg.baseURL = strings.TrimRight(strings.TrimSpace(cfg.baseURL), "/")
	cfg.productID = strings.TrimSpace(cfg.productID)
	cfg.customerTag = strings.TrimSpace(cfg.customerTag)

	switch {
	case cfg.duration < 0:
		return cfg, errors.New("duration must be >= 0")
	case cfg.duration == 0 || totalSet:
		if total <= 0 {
			return cfg, errors.New("total must be > 0")
		}
		cfg.maxScenarios = total
	}

	return cfg, cfg.validate()
}

func (c config) validate() error {
	var errs []error
	if c.baseURL == "" {
		errs = append(errs, errors.New("url is required"))
	}
	if c.concurrency <= 0 {
		errs = append(errs, errors.New("concurrency must be > 0"))
	}
	if c.timeout <= 0 {
		errs = append(errs, errors.New("timeout must be > 0"))
	}
	if c.quantity <= 0 {
		errs = append(errs, errors.New("qty must be > 0"))
	}
	if c.productID == "" {
		errs = append(errs, errors.New("product is required"))
	}
	if c.customerTag == "" {
		errs = append(errs, errors.New("customer-tag is required"))
	}
	return errors.Join(errs...)
}

func parseMode(value string) (loadMode, error) {
	value = strings.TrimSpace(value)
	for _, mode := range loadModes {
		if string(mode) == value {
			return mode, nil
		}
	}
	return "", fmt.Errorf("unsupported mode: %s", value)
}

// target описывает границу прогона для отчёта.
func (c config) target() string {
	switch {
	case c.duration <= 0:
		return fmt.Sprintf("count:%d", c.maxScenarios)
	case c.maxScenarios > 0:
		return fmt.Sprintf("duration:%s,max-total:%d", c.duration, c.maxScenarios)
	default:
		return fmt.Sprintf("duration:%s", c.duration)
	}
}
