package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/errgroup"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayedHeader    = "Idempotency-Replayed"
	salesPath         = "/api/sales"
)

type saleLine struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type saleRequest struct {
	Customer string     `json:"customer"`
	Items    []saleLine `json:"items"`
}

type runner struct {
	client *resty.Client
	cfg    config
	runID  string
	rec    *recorder
}

func newRunner(cfg config, runID string, rec *recorder) *runner {
	client := resty.New().
		SetBaseURL(cfg.baseURL).
		SetTimeout(cfg.timeout).
		SetHeader("Accept", "application/json")
	return &runner{client: client, cfg: cfg, runID: runID, rec: rec}
}

// run запускает сценарии, держа в полёте не больше cfg.concurrency,
// пока не исчерпан maxScenarios или не вышел duration.
func (r *runner) run(ctx context.Context) error {
	stop := ctx
	if r.cfg.duration > 0 {
		var cancel context.CancelFunc
		stop, cancel = context.WithTimeout(ctx, r.cfg.duration)
		defer cancel()
	}

	g := new(errgroup.Group)
	g.SetLimit(r.cfg.concurrency)
	for i := 0; r.cfg.maxScenarios == 0 || i < r.cfg.maxScenarios; i++ {
		if stop.Err() != nil {
			break
		}
		g.Go(func() error {
			r.scenario(ctx, i)
			return nil
		})
	}
	_ = g.Wait()

	return ctx.Err()
}

// scenario продаёт cfg.quantity единиц товара и, в зависимости от режима,
// повторяет запрос с тем же ключом или читает историю продаж.
func (r *runner) scenario(ctx context.Context, index int) {
	start := time.Now()
	req := saleRequest{
		Customer: fmt.Sprintf("%s-%s-%d", r.cfg.customerTag, r.runID, index),
		Items:    []saleLine{{ProductID: r.cfg.productID, Quantity: r.cfg.quantity}},
	}
	key := fmt.Sprintf("lt-sale-%s-%d", r.runID, index)

	status, _ := r.createSale(ctx, req, key)
	if classifyStatus(status) == outcomeSuccess {
		switch r.cfg.mode {
		case modeSaleReplay:
			replayStatus, replayed := r.createSale(ctx, req, key)
			if replayStatus != status || !replayed {
				// Повтор с тем же ключом обязан вернуть сохранённый ответ.
				status = http.StatusInternalServerError
			}
		case modeSaleAndHistory:
			status = r.listSales(ctx)
		}
	}

	r.rec.observe(endpointScenario, time.Since(start), status)
}

func (r *runner) createSale(ctx context.Context, body saleRequest, key string) (status int, replayed bool) {
	start := time.Now()
	resp, err := r.client.R().
		SetContext(ctx).
		SetHeader(idempotencyHeader, key).
		SetBody(body).
		Post(salesPath)
	status = statusOf(resp, err)
	r.rec.observe(endpointCreateSale, time.Since(start), status)
	return status, status != 0 && resp.Header().Get(replayedHeader) == "true"
}

func (r *runner) listSales(ctx context.Context) int {
	start := time.Now()
	resp, err := r.client.R().SetContext(ctx).Get(salesPath)
	status := statusOf(resp, err)
	r.rec.observe(endpointListSales, time.Since(start), status)
	return status
}

func statusOf(resp *resty.Response, err error) int {
	if err != nil || resp == nil {
		return 0
	}
	return resp.StatusCode()
}
