package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/portfoliod/internal/supervisor"
)

// HeaderConversationID lets clients correlate turns of one conversation in
// logs and the request journal.
const HeaderConversationID = "X-Conversation-ID"

// ChatRequest is the body of POST /api/v1/chat.
type ChatRequest struct {
	Message    string            `json:"message"`
	PriorSlots *supervisor.Slots `json:"prior_slots,omitempty"`
	// ReferenceDate is 2006-01-02 or RFC 3339. Empty means now.
	ReferenceDate string `json:"reference_date,omitempty"`
}

// PropertyResponse is one entry of GET /api/v1/properties.
type PropertyResponse struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"display_name"`
	Address     string   `json:"address,omitempty"`
	EntityID    string   `json:"entity_id,omitempty"`
	Aliases     []string `json:"aliases,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status   string        `json:"status"`
	Service  string        `json:"service"`
	Version  string        `json:"version"`
	Time     time.Time     `json:"time"`
	Dataset  DatasetHealth `json:"dataset"`
	Semantic bool          `json:"semantic"`
}

// DatasetHealth summarizes the loaded ledger.
type DatasetHealth struct {
	Source     string `json:"source,omitempty"`
	Rows       int    `json:"rows"`
	Properties int    `json:"properties"`
	Tenants    int    `json:"tenants"`
	FirstMonth string `json:"first_period,omitempty"`
	LastMonth  string `json:"last_period,omitempty"`
}

// ErrorResponse is returned for rejected requests.
type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(c echo.Context) error {
	table := s.sup.Table()
	first, last := table.PeriodRange()
	return c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Service: "portfoliod",
		Version: s.config.Version,
		Time:    s.clock().UTC(),
		Dataset: DatasetHealth{
			Source:     table.Source(),
			Rows:       table.Len(),
			Properties: len(table.Properties()),
			Tenants:    len(table.Tenants()),
			FirstMonth: first.String(),
			LastMonth:  last.String(),
		},
		Semantic: s.sup.Resolver().Semantic(),
	})
}

func (s *Server) handleProperties(c echo.Context) error {
	idx := s.sup.Resolver().Index()
	props := idx.Properties()
	out := make([]PropertyResponse, 0, len(props))
	for _, p := range props {
		out = append(out, PropertyResponse{
			ID:          p.PropertyID,
			DisplayName: p.DisplayName,
			Address:     p.Address,
			EntityID:    p.EntityID,
			Aliases:     idx.Aliases(p.PropertyID),
		})
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleChat(c echo.Context) error {
	ctx := c.Request().Context()

	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}
	if strings.TrimSpace(req.Message) == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "message is required"})
	}
	ref, err := parseReferenceDate(req.ReferenceDate)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	}

	resp, err := s.sup.HandleRequest(ctx, supervisor.Request{
		Text:          req.Message,
		PriorSlots:    req.PriorSlots,
		ReferenceDate: ref,
	})
	if err != nil {
		s.logger.Error(ctx, "chat turn failed", zap.Error(err))
		if errors.Is(err, supervisor.ErrNoDataset) {
			return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "dataset not loaded"})
		}
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
	return c.JSON(http.StatusOK, resp)
}

func parseReferenceDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, errors.New("reference_date must be YYYY-MM-DD or RFC 3339")
	}
	return t, nil
}
