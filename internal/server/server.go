// Package server exposes the sales map analysis over HTTP and websocket.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rewired-gh/salesmap/internal/analysis"
	"github.com/rewired-gh/salesmap/internal/feed"
	"github.com/rewired-gh/salesmap/internal/importer"
	"github.com/rewired-gh/salesmap/internal/logger"
	"github.com/rewired-gh/salesmap/internal/models"
	"github.com/rewired-gh/salesmap/internal/storage"
)

var log = logger.Named("http")

const maxBodyBytes = 1 << 20

// Analyzer runs analyses for a resolved window.
type Analyzer interface {
	Window(mode, date string) (analysis.Window, error)
	Analyze(ctx context.Context, w analysis.Window) (*models.AnalysisResult, error)
	AnalyzeSnapshot(txs []models.Transaction, mode, date string) (*models.AnalysisResult, error)
}

// Store accepts posted transactions.
type Store interface {
	AddTransactions(txs []models.Transaction) ([]bool, error)
	Revision(ctx context.Context) (storage.Revision, error)
}

// Feed is refreshed after writes and drives websocket pushes.
type Feed interface {
	Refresh(ctx context.Context) (bool, error)
	Subscribe(h feed.Handler) (unsubscribe func())
}

type Options struct {
	DefaultMode string
	Location    *time.Location
}

type Server struct {
	engine   *gin.Engine
	analyzer Analyzer
	store    Store
	feed     Feed
	hub      *Hub
	opts     Options
	now      func() time.Time
}

func New(analyzer Analyzer, store Store, f Feed, opts Options) *Server {
	if opts.DefaultMode == "" {
		opts.DefaultMode = string(analysis.ModeToday)
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}

	s := &Server{
		engine:   gin.New(),
		analyzer: analyzer,
		store:    store,
		feed:     f,
		hub:      NewHub(),
		opts:     opts,
		now:      time.Now,
	}

	s.engine.Use(gin.Recovery(), requestLogger())
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/health", s.handleHealth)

	api := s.engine.Group("/api/v1")
	api.GET("/analysis", s.handleAnalysis)
	api.GET("/analysis/geojson", s.handleGeoJSON)
	api.POST("/transactions", s.handlePostTransactions)
	api.GET("/ws", s.hub.serve)
}

// Handler returns the HTTP handler for use in an http.Server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run starts the websocket hub and pushes the default-window analysis on
// every feed snapshot until ctx is cancelled.
func (s *Server) Run(ctx context.Context) {
	go s.hub.Run(ctx)

	unsubscribe := s.feed.Subscribe(func(snap feed.Snapshot) {
		result, err := s.analyzer.AnalyzeSnapshot(snap.Transactions, s.opts.DefaultMode, "")
		if err != nil {
			log.Error("Failed to analyze snapshot for websocket clients: %v", err)
			return
		}
		s.hub.Broadcast(result)
	})

	<-ctx.Done()
	unsubscribe()
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("%s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(),
			time.Since(start).Round(time.Microsecond))
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	rev, err := s.store.Revision(c.Request.Context())
	if err != nil {
		log.Error("Health check failed: %v", err)
		fail(c, http.StatusServiceUnavailable, "storage unavailable")
		return
	}
	success(c, gin.H{
		"status":       "ok",
		"transactions": rev.Count,
		"time":         s.now().UTC(),
	})
}

// resolve runs the analysis for the mode/date query parameters.
func (s *Server) resolve(c *gin.Context) (*models.AnalysisResult, bool) {
	mode := c.DefaultQuery("mode", s.opts.DefaultMode)
	w, err := s.analyzer.Window(mode, c.Query("date"))
	if err != nil {
		badRequest(c, err.Error())
		return nil, false
	}
	result, err := s.analyzer.Analyze(c.Request.Context(), w)
	if err != nil {
		log.Error("Analysis failed: %v", err)
		internalError(c, "analysis failed")
		return nil, false
	}
	return result, true
}

func (s *Server) handleAnalysis(c *gin.Context) {
	if result, ok := s.resolve(c); ok {
		success(c, result)
	}
}

func (s *Server) handleGeoJSON(c *gin.Context) {
	result, ok := s.resolve(c)
	if !ok {
		return
	}
	body, err := json.Marshal(toFeatureCollection(result))
	if err != nil {
		log.Error("Failed to encode GeoJSON: %v", err)
		internalError(c, "failed to encode GeoJSON")
		return
	}
	c.Data(http.StatusOK, "application/geo+json", body)
}

type postResult struct {
	ID       string `json:"id"`
	Inserted bool   `json:"inserted"`
}

// handlePostTransactions accepts a single document or an array of them in
// any of the export shapes understood by the importer.
func (s *Server) handlePostTransactions(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		badRequest(c, "failed to read body")
		return
	}

	docs, err := splitDocuments(body)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	now := s.now()
	txs := make([]models.Transaction, 0, len(docs))
	for i, raw := range docs {
		tx, err := importer.ParseDocument(raw, s.opts.Location, now)
		if err != nil {
			badRequest(c, fmt.Sprintf("document %d: %v", i, err))
			return
		}
		txs = append(txs, tx)
	}

	// The batch is stored atomically, so a rejected document leaves
	// nothing behind.
	ok, err := s.store.AddTransactions(txs)
	if err != nil {
		if errors.Is(err, models.ErrInvalidTransaction) {
			badRequest(c, err.Error())
			return
		}
		log.Error("Failed to store %d transactions: %v", len(txs), err)
		internalError(c, "failed to store transactions")
		return
	}

	results := make([]postResult, len(txs))
	inserted := 0
	for i, tx := range txs {
		results[i] = postResult{ID: tx.ID, Inserted: ok[i]}
		if ok[i] {
			inserted++
		}
	}

	if inserted > 0 {
		if _, err := s.feed.Refresh(c.Request.Context()); err != nil {
			log.Warn("Feed refresh after insert failed: %v", err)
		}
	}

	if inserted == 0 {
		success(c, results)
		return
	}
	created(c, results)
}

func splitDocuments(body []byte) ([]json.RawMessage, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, errors.New("empty body")
	}
	if body[0] == '[' {
		var docs []json.RawMessage
		if err := json.Unmarshal(body, &docs); err != nil {
			return nil, err
		}
		if len(docs) == 0 {
			return nil, errors.New("empty batch")
		}
		return docs, nil
	}
	return []json.RawMessage{body}, nil
}
