package controllers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rzbill/urlfrontier/internal/frontier"
	"github.com/rzbill/urlfrontier/internal/metrics"
	"github.com/rzbill/urlfrontier/internal/runtime"
	"github.com/rzbill/urlfrontier/pkg/id"
	logpkg "github.com/rzbill/urlfrontier/pkg/log"
)

// streamBuffer is the channel capacity of both stream directions; it is
// the back-pressure window between transport and pipeline.
const streamBuffer = 64

// FrontierController handles the frontier's HTTP endpoints.
type FrontierController struct {
	fr      *frontier.Frontier
	metrics *metrics.Metrics
	logger  logpkg.Logger
	ids     *id.Generator
}

// NewFrontierController creates the controller.
func NewFrontierController(rt *runtime.Runtime, m *metrics.Metrics, logger logpkg.Logger) *FrontierController {
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithLevel(logpkg.InfoLevel))
	}
	return &FrontierController{
		fr:      rt.Frontier(),
		metrics: m,
		logger:  logger.WithComponent("controllers"),
		ids:     id.NewGenerator(),
	}
}

// RegisterRoutes registers the frontier routes.
func (c *FrontierController) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/v1/urls/put", c.handlePut).Methods(http.MethodPost)
	r.HandleFunc("/v1/urls/get", c.handleGet).Methods(http.MethodPost)
	r.HandleFunc("/v1/queues", c.handleListQueues).Methods(http.MethodGet)
	r.HandleFunc("/v1/queues/delete", c.handleDeleteQueue).Methods(http.MethodPost)
	r.HandleFunc("/v1/crawls/delete", c.handleDeleteCrawl).Methods(http.MethodPost)
	r.HandleFunc("/v1/stats", c.handleStats).Methods(http.MethodGet)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, tag, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Tag: tag, Message: message})
}

// handlePut streams URLItems in and acks out.
// POST /v1/urls/put, NDJSON both ways.
func (c *FrontierController) handlePut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stream := c.ids.Next().String()
	logger := c.logger.With(logpkg.Str("stream", stream))

	items := make(chan frontier.URLItem, streamBuffer)
	acks := make(chan string, streamBuffer)

	go func() {
		defer close(items)
		dec := json.NewDecoder(r.Body)
		for {
			var item frontier.URLItem
			if err := dec.Decode(&item); err != nil {
				if !errors.Is(err, io.EOF) && ctx.Err() == nil {
					logger.WithError(err).Warn("put stream decode failed")
				}
				return
			}
			select {
			case items <- item:
			case <-ctx.Done():
				return
			}
		}
	}()

	done := make(chan error, 1)
	go func() { done <- c.fr.PutURLs(ctx, items, acks) }()

	w.Header().Set("Content-Type", "application/x-ndjson")
	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)
	acked := 0
	for url := range acks {
		if err := enc.Encode(Ack{URL: url}); err != nil {
			break
		}
		if flusher != nil {
			flusher.Flush()
		}
		if c.metrics != nil {
			c.metrics.URLsPut.WithLabelValues(metrics.ResultAcked).Inc()
		}
		acked++
	}
	if err := <-done; err != nil && ctx.Err() == nil {
		logger.WithError(err).Warn("put stream ended")
	}
	logger.Debug("put stream closed", logpkg.Int("acked", acked))
}

// handleGet streams dispatchable URLs out.
// POST /v1/urls/get with GetParams body, NDJSON response.
func (c *FrontierController) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var params frontier.GetParams
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			writeError(w, http.StatusBadRequest, "bad-json-decode", err.Error())
			return
		}
	}

	out := make(chan frontier.URLInfo, streamBuffer)
	done := make(chan error, 1)
	go func() { done <- c.fr.GetURLs(ctx, params, out) }()

	w.Header().Set("Content-Type", "application/x-ndjson")
	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)
	for info := range out {
		if err := enc.Encode(info); err != nil {
			break
		}
		if flusher != nil {
			flusher.Flush()
		}
		if c.metrics != nil {
			c.metrics.URLsSent.Inc()
		}
	}
	if err := <-done; err != nil && ctx.Err() == nil {
		c.logger.WithError(err).Warn("get stream ended")
	}
}

// handleListQueues returns dispatchable queue keys.
// GET /v1/queues?crawlID=<id>&max=<n>
func (c *FrontierController) handleListQueues(w http.ResponseWriter, r *http.Request) {
	maxQueues := 0
	if v := r.URL.Query().Get("max"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad-max", err.Error())
			return
		}
		maxQueues = n
	}
	crawlID := r.URL.Query().Get("crawlID")
	queues, err := c.fr.ListQueues(crawlID, maxQueues)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list-queues", err.Error())
		return
	}
	writeJSON(w, QueueListResponse{CrawlID: frontier.NormalizeCrawlID(crawlID), Queues: queues})
}

// handleDeleteQueue removes one queue from both families.
// POST /v1/queues/delete
func (c *FrontierController) handleDeleteQueue(w http.ResponseWriter, r *http.Request) {
	var req DeleteQueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad-json-decode", err.Error())
		return
	}
	if req.Key == "" {
		writeError(w, http.StatusBadRequest, "empty-key", "queue key required")
		return
	}
	n, err := c.fr.DeleteQueue(req.CrawlID, req.Key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "delete-queue", err.Error())
		return
	}
	writeJSON(w, DeletedResponse{Deleted: n})
}

// handleDeleteCrawl removes every queue of a crawl.
// POST /v1/crawls/delete
func (c *FrontierController) handleDeleteCrawl(w http.ResponseWriter, r *http.Request) {
	var req DeleteCrawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad-json-decode", err.Error())
		return
	}
	n, err := c.fr.DeleteCrawl(req.CrawlID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "delete-crawl", err.Error())
		return
	}
	writeJSON(w, DeletedResponse{Deleted: n})
}

// handleStats reports counters for one queue or a whole crawl.
// GET /v1/stats?crawlID=<id>&key=<queue>
func (c *FrontierController) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := c.fr.GetStats(r.URL.Query().Get("crawlID"), r.URL.Query().Get("key"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "stats", err.Error())
		return
	}
	writeJSON(w, stats)
}
