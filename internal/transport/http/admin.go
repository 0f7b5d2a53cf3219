package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/akovalev/netchat-server/internal/store"
)

// StatsSource exposes the runtime gauges the admin surface reports.
type StatsSource interface {
	Sessions() int
	ActiveUsers() []string
	Rooms() []string
	PendingTransfers() int
	InFlightTransfers() int
}

// AdminServer serves operational endpoints: health, runtime stats,
// and the transfer audit trail.
type AdminServer struct {
	stats StatsSource
	audit store.TransferLog // nil when the audit trail is disabled
	log   *zerolog.Logger
}

// StatsResponse is the /stats response body.
type StatsResponse struct {
	Sessions          int      `json:"sessions"`
	ActiveUsers       []string `json:"active_users"`
	Rooms             []string `json:"rooms"`
	PendingTransfers  int      `json:"pending_transfers"`
	InFlightTransfers int      `json:"in_flight_transfers"`
}

// TransferResponse is one entry in the /transfers response body.
type TransferResponse struct {
	TaskID        string `json:"task_id"`
	Sender        string `json:"sender"`
	Recipient     string `json:"recipient"`
	Filename      string `json:"filename"`
	FinalFilename string `json:"final_filename"`
	Size          uint64 `json:"size"`
	Outcome       string `json:"outcome"`
	Reason        string `json:"reason,omitempty"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// NewServer builds the admin HTTP server. audit may be nil.
func NewServer(addr string, stats StatsSource, audit store.TransferLog, logger *zerolog.Logger) *http.Server {
	a := &AdminServer{stats: stats, audit: audit, log: logger}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), loggerMiddleware(logger))
	router.GET("/health", a.Health)
	router.GET("/stats", a.Stats)
	router.GET("/transfers", a.Transfers)

	return &http.Server{
		Addr:    addr,
		Handler: router,
	}
}

// Health reports liveness.
// GET /health
func (a *AdminServer) Health(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// Stats reports runtime gauges of the chat core.
// GET /stats
func (a *AdminServer) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, StatsResponse{
		Sessions:          a.stats.Sessions(),
		ActiveUsers:       a.stats.ActiveUsers(),
		Rooms:             a.stats.Rooms(),
		PendingTransfers:  a.stats.PendingTransfers(),
		InFlightTransfers: a.stats.InFlightTransfers(),
	})
}

// Transfers lists the most recently finished transfers.
// GET /transfers
func (a *AdminServer) Transfers(c *gin.Context) {
	if a.audit == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "audit trail disabled"})
		return
	}

	records, err := a.audit.RecentTransfers(c.Request.Context(), 50)
	if err != nil {
		a.log.Error().Err(err).Msg("failed to list transfers")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	out := make([]TransferResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, TransferResponse{
			TaskID:        rec.TaskID,
			Sender:        rec.Sender,
			Recipient:     rec.Recipient,
			Filename:      rec.Filename,
			FinalFilename: rec.FinalFilename,
			Size:          rec.Size,
			Outcome:       string(rec.Outcome),
			Reason:        rec.Reason,
		})
	}
	c.JSON(http.StatusOK, out)
}

// loggerMiddleware logs each admin request after it completes.
func loggerMiddleware(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Msg("admin request")
	}
}
