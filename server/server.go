// Package server exposes the agent over HTTP.
//
// Information Hiding:
// - echo routing and request binding hidden
// - Mapping of turn errors to HTTP status codes hidden
// - Listener lifecycle and graceful shutdown hidden

package server

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/richinex/scout/agent"
	"github.com/richinex/scout/model"
)

const shutdownTimeout = 10 * time.Second

// Runner runs one agent turn.
type Runner interface {
	Run(ctx context.Context, query model.Query) (agent.Result, error)
}

// Handler serves the turn, health and metrics endpoints.
type Handler struct {
	runner  Runner
	metrics http.Handler
}

// NewHandler creates a handler. metrics may be nil, in which case
// /metrics is not mounted.
func NewHandler(runner Runner, metrics http.Handler) *Handler {
	return &Handler{runner: runner, metrics: metrics}
}

// TurnRequest is the body of POST /v1/turns.
type TurnRequest struct {
	Query string `json:"query"`
}

// TurnResponse is the successful reply of POST /v1/turns.
type TurnResponse struct {
	Answer   string `json:"answer"`
	TraceID  string `json:"trace_id"`
	Searched bool   `json:"searched"`
}

// ErrorResponse is returned for any failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// Echo builds the router.
func (h *Handler) Echo() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	e.POST("/v1/turns", h.CreateTurn)
	e.GET("/health", h.Health)
	if h.metrics != nil {
		e.GET("/metrics", echo.WrapHandler(h.metrics))
	}
	return e
}

// CreateTurn runs one turn for the posted query.
// POST /v1/turns
func (h *Handler) CreateTurn(c echo.Context) error {
	var req TurnRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}
	if model.Query(req.Query).Blank() {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "query is required"})
	}

	res, err := h.runner.Run(c.Request().Context(), model.Query(req.Query))
	if err != nil {
		status := http.StatusBadGateway
		msg := "Something went wrong. Please try again."
		if oe, ok := agent.AsOrchestrationError(err); ok {
			msg = oe.UserMessage()
			if errors.Is(err, agent.ErrEmptyQuery) {
				status = http.StatusBadRequest
			}
		} else {
			status = http.StatusInternalServerError
		}
		return c.JSON(status, ErrorResponse{Error: msg, TraceID: res.TraceID})
	}

	return c.JSON(http.StatusOK, TurnResponse{
		Answer:   res.Answer.String(),
		TraceID:  res.TraceID,
		Searched: res.Searched,
	})
}

// Health reports liveness.
// GET /health
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
// In-flight turns are allowed to finish within the shutdown timeout.
func Run(ctx context.Context, addr string, h *Handler) error {
	e := h.Echo()

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		log.Info().Str("addr", addr).Msg("http server listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http server")
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server shutdown error")
			return err
		}
		return nil
	})
	return eg.Wait()
}
