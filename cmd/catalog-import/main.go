package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"
)

// productRow описывает строку CSV: id,name,description,category,price,quantity.
// Пустой id означает, что идентификатор назначит сервер.
type productRow struct {
	ID          string `csv:"id"`
	Name        string `csv:"name"`
	Description string `csv:"description"`
	Category    string `csv:"category"`
	Price       string `csv:"price"`
	Quantity    int    `csv:"quantity"`
}

type productPayload struct {
	ID          string      `json:"id,omitempty"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Category    string      `json:"category"`
	Price       json.Number `json:"price"`
	Quantity    int         `json:"quantity"`
}

type apiError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type summary struct {
	Created int
	Updated int
	Failed  int
}

type importer struct {
	client *resty.Client
	out    io.Writer
	dryRun bool
}

func readRows(r io.Reader) ([]productRow, error) {
	var rows []productRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return rows, nil
}

func (r productRow) payload() (productPayload, error) {
	price, err := decimal.NewFromString(strings.TrimSpace(r.Price))
	if err != nil {
		return productPayload{}, fmt.Errorf("invalid price %q", r.Price)
	}
	return productPayload{
		ID:          strings.TrimSpace(r.ID),
		Name:        strings.TrimSpace(r.Name),
		Description: strings.TrimSpace(r.Description),
		Category:    strings.TrimSpace(r.Category),
		Price:       json.Number(price.String()),
		Quantity:    r.Quantity,
	}, nil
}

// importRows создаёт новые товары и обновляет существующие (по id).
// Ошибка одной строки не прерывает импорт.
func (im *importer) importRows(ctx context.Context, rows []productRow) summary {
	var s summary
	for i, row := range rows {
		line := i + 2 // строка 1 занята заголовком
		action, err := im.importRow(ctx, row)
		if err != nil {
			s.Failed++
			_, _ = fmt.Fprintf(im.out, "line %d: %v\n", line, err)
			continue
		}
		switch action {
		case "created":
			s.Created++
		case "updated":
			s.Updated++
		}
		_, _ = fmt.Fprintf(im.out, "line %d: %s %s\n", line, action, row.Name)
	}
	return s
}

func (im *importer) importRow(ctx context.Context, row productRow) (string, error) {
	payload, err := row.payload()
	if err != nil {
		return "", err
	}

	exists := false
	if payload.ID != "" {
		exists, err = im.productExists(ctx, payload.ID)
		if err != nil {
			return "", err
		}
	}

	if im.dryRun {
		if exists {
			return "updated", nil
		}
		return "created", nil
	}

	if exists {
		if err := im.send(ctx, http.MethodPut, "/api/products/"+payload.ID, payload, http.StatusOK); err != nil {
			return "", err
		}
		return "updated", nil
	}
	if err := im.send(ctx, http.MethodPost, "/api/products", payload, http.StatusCreated); err != nil {
		return "", err
	}
	return "created", nil
}

func (im *importer) productExists(ctx context.Context, id string) (bool, error) {
	resp, err := im.client.R().SetContext(ctx).Get("/api/products/" + id)
	if err != nil {
		return false, fmt.Errorf("get product %s: %w", id, err)
	}
	switch resp.StatusCode() {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("get product %s: unexpected status %d", id, resp.StatusCode())
	}
}

func (im *importer) send(ctx context.Context, method, path string, payload productPayload, want int) error {
	resp, err := im.client.R().
		SetContext(ctx).
		SetBody(payload).
		SetError(&apiError{}).
		Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.StatusCode() != want {
		if apiErr, ok := resp.Error().(*apiError); ok && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %d %s: %s", method, path, resp.StatusCode(), apiErr.Code, apiErr.Error)
		}
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode())
	}
	return nil
}

func newClient(baseURL string, timeout time.Duration) *resty.Client {
	return resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
}

func run(ctx context.Context, args []string, out io.Writer) (summary, error) {
	fs := flag.NewFlagSet("catalog-import", flag.ContinueOnError)
	fs.SetOutput(out)
	var (
		file    string
		baseURL string
		timeout time.Duration
		dryRun  bool
	)
	fs.StringVar(&file, "file", "", "CSV file with columns id,name,description,category,price,quantity")
	fs.StringVar(&baseURL, "url", "http://localhost:5000", "POS REST API base URL")
	fs.DurationVar(&timeout, "timeout", 5*time.Second, "per-request timeout")
	fs.BoolVar(&dryRun, "dry-run", false, "only report what would be created or updated")
	if err := fs.Parse(args); err != nil {
		return summary{}, err
	}
	if strings.TrimSpace(file) == "" {
		return summary{}, errors.New("-file is required")
	}

	// #nosec G304 -- path is an explicit CLI input parameter.
	f, err := os.Open(file)
	if err != nil {
		return summary{}, err
	}
	defer f.Close()

	rows, err := readRows(f)
	if err != nil {
		return summary{}, err
	}

	im := &importer{client: newClient(baseURL, timeout), out: out, dryRun: dryRun}
	return im.importRows(ctx, rows), nil
}

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	s, err := run(ctx, os.Args[1:], os.Stdout)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "catalog import failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("created=%d updated=%d failed=%d\n", s.Created, s.Updated, s.Failed)
	if s.Failed > 0 {
		os.Exit(1)
	}
}
