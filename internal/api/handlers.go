package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hazardwatch/hazardwatch/internal/api/auth"
	"github.com/hazardwatch/hazardwatch/internal/errors"
)

// TriggerResponse is the body of a successful trigger.
type TriggerResponse struct {
	HasData bool `json:"has_data"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SourceInfo describes one enabled source.
type SourceInfo struct {
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
	Interval string `json:"interval"`
}

// triggerSource runs a source on behalf of the authenticated actor.
// 201 means new hazards were stored, 200 that the run found nothing new.
func (s *Server) triggerSource(c echo.Context) error {
	name := c.Param("name")
	actor := auth.ActorFrom(c)

	hadData, err := s.triggerer.Trigger(c.Request().Context(), name, actor)
	switch {
	case err == nil && hadData:
		return c.JSON(http.StatusCreated, TriggerResponse{HasData: true})
	case err == nil:
		return c.JSON(http.StatusOK, TriggerResponse{HasData: false})
	case errors.IsNotFound(err):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "unknown source"})
	case errors.IsSourceUnavailable(err):
		s.slogger.Warn("Triggered source unavailable", "source", name, "actor", actor.String(), "error", err)
		return c.JSON(http.StatusBadGateway, ErrorResponse{Error: "source unavailable"})
	default:
		s.slogger.Error("Triggered ingestion failed", "source", name, "actor", actor.String(), "error", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}

// listSources returns the enabled sources in registration order.
func (s *Server) listSources(c echo.Context) error {
	entries := s.sources.Entries()
	out := make([]SourceInfo, 0, len(entries))
	for _, e := range entries {
		info := SourceInfo{Name: e.Source.Name(), Interval: e.Interval.String()}
		if cat := e.Source.Category(); cat != "" {
			info.Category = cat.String()
		}
		out = append(out, info)
	}
	return c.JSON(http.StatusOK, out)
}

// healthCheck handles the server health check endpoint.
func (s *Server) healthCheck(c echo.Context) error {
	uptime := time.Since(s.startTime)
	return c.JSON(http.StatusOK, map[string]any{
		"status":         "healthy",
		"sources":        len(s.sources.Entries()),
		"uptime":         uptime.String(),
		"uptime_seconds": uptime.Seconds(),
		"timestamp":      time.Now().Format(time.RFC3339),
	})
}
