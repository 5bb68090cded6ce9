// Package importer pulls transaction exports from the mobile app backend and
// normalizes them into stored transactions.
package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rewired-gh/salesmap/internal/logger"
	"github.com/rewired-gh/salesmap/internal/models"
)

var log = logger.Named("importer")

// Client fetches a JSON array of transaction documents from an export URL.
type Client struct {
	url            string
	httpClient     *http.Client
	loc            *time.Location
	maxRetries     int
	retryDelayBase time.Duration
	now            func() time.Time
}

type ClientConfig struct {
	MaxRetries     int
	RetryDelayBase time.Duration
	Location       *time.Location
}

func NewClient(url string, timeout time.Duration, cfg ClientConfig) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelayBase <= 0 {
		cfg.RetryDelayBase = time.Second
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Client{
		url:            url,
		httpClient:     &http.Client{Timeout: timeout},
		loc:            cfg.Location,
		maxRetries:     cfg.MaxRetries,
		retryDelayBase: cfg.RetryDelayBase,
		now:            time.Now,
	}
}

// Fetch downloads and decodes every document. Documents that are not valid
// JSON objects are skipped and logged.
func (c *Client) Fetch(ctx context.Context) ([]models.Transaction, error) {
	resp, err := c.doRequest(ctx, c.url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transactions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var docs []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&docs); err != nil {
		return nil, fmt.Errorf("failed to decode transactions: %w", err)
	}

	now := c.now()
	txs := make([]models.Transaction, 0, len(docs))
	for i, raw := range docs {
		tx, err := ParseDocument(raw, c.loc, now)
		if err != nil {
			log.Warn("Skipping document %d: %v", i, err)
			continue
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

// Sink stores imported transactions.
type Sink interface {
	AddTransaction(tx *models.Transaction) (bool, error)
}

// Sync fetches the export and stores new transactions, returning how many
// were inserted.
func (c *Client) Sync(ctx context.Context, sink Sink) (int, error) {
	txs, err := c.Fetch(ctx)
	if err != nil {
		return 0, err
	}
	inserted := 0
	for i := range txs {
		ok, err := sink.AddTransaction(&txs[i])
		if err != nil {
			log.Warn("Failed to store transaction %s: %v", txs[i].ID, err)
			continue
		}
		if ok {
			inserted++
		}
	}
	log.Info("Imported %d new of %d fetched transactions", inserted, len(txs))
	return inserted, nil
}

// doRequest performs an HTTP GET with linear-backoff retry on transport
// errors and 5xx responses.
func (c *Client) doRequest(ctx context.Context, urlStr string) (*http.Response, error) {
	var lastErr error

	for i := 0; i < c.maxRetries; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
		} else if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
		} else {
			return resp, nil
		}

		if i == c.maxRetries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.retryDelayBase * time.Duration(i+1)):
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
