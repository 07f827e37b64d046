package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/portfoliod/internal/intent"
	"github.com/fyrsmithlabs/portfoliod/internal/resolver"
	"github.com/fyrsmithlabs/portfoliod/internal/supervisor"
)

// addTool registers h with the MCP server and its metadata with the
// registry, wrapping it with invocation metrics.
func addTool[In, Out any](s *Server, meta *ToolMetadata, h mcp.ToolHandlerFor[In, Out]) {
	s.toolRegistry.Register(meta)
	name := meta.Name
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        name,
		Description: meta.Description,
	}, func(ctx context.Context, req *mcp.CallToolRequest, in In) (*mcp.CallToolResult, Out, error) {
		done := s.metrics.Begin(ctx, name)
		res, out, err := h(ctx, req, in)
		done(err)
		if err != nil {
			s.logger.Warn("tool call failed", zap.String("tool", name), zap.Error(err))
		}
		return res, out, err
	})
}

func (s *Server) registerTools() {
	s.registerQueryTools()
	s.registerCatalogTools()
	s.registerSearchTools()
}

// ===== QUERY TOOLS =====

type askInput struct {
	Message       string         `json:"message" jsonschema:"The question in plain English, e.g. 'NOI for Building 180 in 2025 vs 2024'"`
	PriorSlots    map[string]any `json:"prior_slots,omitempty" jsonschema:"The slots object returned by the previous turn; send it back to continue a clarification"`
	ReferenceDate string         `json:"reference_date,omitempty" jsonschema:"Anchor date for relative periods such as 'this year', YYYY-MM-DD; defaults to today"`
}

type askOutput struct {
	RequestID string                   `json:"request_id" jsonschema:"Identifier for this turn"`
	Answer    string                   `json:"answer" jsonschema:"Rendered answer or clarification question"`
	Intent    string                   `json:"intent" jsonschema:"Classified intent"`
	State     string                   `json:"state" jsonschema:"routed or awaiting_clarification"`
	Slots     any                      `json:"slots" jsonschema:"Slots after this turn; pass back as prior_slots on the next turn"`
	Result    any                      `json:"result,omitempty" jsonschema:"Structured specialist result"`
	Error     *supervisor.ErrorPayload `json:"error,omitempty" jsonschema:"Why the turn needs clarification"`
	Notice    *supervisor.ErrorPayload `json:"notice,omitempty" jsonschema:"Informational note on an answered turn"`
	Decision  intent.Decision          `json:"decision" jsonschema:"How the intent was chosen"`
}

func (s *Server) registerQueryTools() {
	addTool(s, &ToolMetadata{
		Name:        "portfolio_ask",
		Description: "Ask a question about the real-estate portfolio: P&L and NOI by property, tenant, and period, property comparisons, asset details, and accounting definitions. When the answer asks for clarification, reply with the missing detail and pass the returned slots as prior_slots.",
		Category:    CategoryQuery,
		Keywords:    []string{"pnl", "noi", "revenue", "expenses", "compare", "property", "tenant", "chat"},
	}, func(ctx context.Context, req *mcp.CallToolRequest, args askInput) (*mcp.CallToolResult, askOutput, error) {
		if strings.TrimSpace(args.Message) == "" {
			return nil, askOutput{}, fmt.Errorf("message is required")
		}
		prior, err := decodeSlots(args.PriorSlots)
		if err != nil {
			return nil, askOutput{}, err
		}
		ref, err := parseReferenceDate(args.ReferenceDate)
		if err != nil {
			return nil, askOutput{}, err
		}

		resp, err := s.sup.HandleRequest(ctx, supervisor.Request{
			Text:          args.Message,
			PriorSlots:    prior,
			ReferenceDate: ref,
		})
		if err != nil {
			return nil, askOutput{}, fmt.Errorf("handling request: %w", err)
		}
		s.outcomes.Record(ctx, resp)

		out := askOutput{
			RequestID: resp.RequestID,
			Answer:    resp.Answer,
			Intent:    string(resp.Intent),
			State:     string(resp.State),
			Slots:     resp.Slots,
			Result:    resp.Result,
			Error:     resp.Error,
			Notice:    resp.Notice,
			Decision:  resp.Decision,
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: resp.Answer}},
		}, out, nil
	})
}

// decodeSlots converts the loosely typed prior_slots argument.
func decodeSlots(raw map[string]any) (*supervisor.Slots, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid prior_slots: %w", err)
	}
	var slots supervisor.Slots
	if err := json.Unmarshal(b, &slots); err != nil {
		return nil, fmt.Errorf("invalid prior_slots: %w", err)
	}
	return &slots, nil
}

func parseReferenceDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid reference_date %q: want YYYY-MM-DD", s)
	}
	return t, nil
}

// ===== CATALOG TOOLS =====

type propertiesInput struct {
	Query string `json:"query,omitempty" jsonschema:"Optional text to filter by id, name, address, or alias"`
}

type propertyEntry struct {
	ID          string   `json:"id" jsonschema:"Property identifier"`
	DisplayName string   `json:"display_name" jsonschema:"Display name"`
	Address     string   `json:"address,omitempty" jsonschema:"Street address"`
	EntityID    string   `json:"entity_id,omitempty" jsonschema:"Owning entity"`
	Aliases     []string `json:"aliases,omitempty" jsonschema:"Configured aliases"`
}

type propertiesOutput struct {
	Properties []propertyEntry `json:"properties" jsonschema:"Matching properties"`
	Count      int             `json:"count" jsonschema:"Number of properties returned"`
}

type datasetInput struct{}

type datasetOutput struct {
	Source      string   `json:"source,omitempty" jsonschema:"Path the ledger was loaded from"`
	Rows        int      `json:"rows" jsonschema:"Ledger rows"`
	Properties  int      `json:"properties" jsonschema:"Distinct properties"`
	Tenants     int      `json:"tenants" jsonschema:"Distinct tenants"`
	FirstPeriod string   `json:"first_period,omitempty" jsonschema:"Earliest period key"`
	LastPeriod  string   `json:"last_period,omitempty" jsonschema:"Latest period key"`
	Semantic    bool     `json:"semantic" jsonschema:"Whether semantic property suggestions are enabled"`
	Intents     []string `json:"intents" jsonschema:"Question types the assistant understands"`
}

func (s *Server) registerCatalogTools() {
	addTool(s, &ToolMetadata{
		Name:        "portfolio_properties",
		Description: "List the properties in the portfolio with their addresses and aliases. Use it to find the exact name to ask about.",
		Category:    CategoryCatalog,
		Keywords:    []string{"building", "address", "alias", "catalog"},
	}, func(ctx context.Context, req *mcp.CallToolRequest, args propertiesInput) (*mcp.CallToolResult, propertiesOutput, error) {
		idx := s.sup.Resolver().Index()
		query := resolver.Normalize(args.Query)

		entries := make([]propertyEntry, 0, idx.Len())
		for _, p := range idx.Properties() {
			e := propertyEntry{
				ID:          p.PropertyID,
				DisplayName: p.DisplayName,
				Address:     p.Address,
				EntityID:    p.EntityID,
				Aliases:     idx.Aliases(p.PropertyID),
			}
			if query != "" && !matchesProperty(e, query) {
				continue
			}
			entries = append(entries, e)
		}

		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.DisplayName)
		}
		text := fmt.Sprintf("%d properties: %s", len(entries), strings.Join(names, ", "))
		if len(entries) == 0 {
			text = fmt.Sprintf("No properties match %q", args.Query)
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: text}},
		}, propertiesOutput{Properties: entries, Count: len(entries)}, nil
	})

	addTool(s, &ToolMetadata{
		Name:        "portfolio_dataset",
		Description: "Describe the loaded ledger: row count, properties, tenants, and the period range covered.",
		Category:    CategoryCatalog,
		Keywords:    []string{"dataset", "ledger", "periods", "coverage"},
	}, func(ctx context.Context, req *mcp.CallToolRequest, _ datasetInput) (*mcp.CallToolResult, datasetOutput, error) {
		table := s.sup.Table()
		first, last := table.PeriodRange()
		out := datasetOutput{
			Source:      table.Source(),
			Rows:        table.Len(),
			Properties:  len(table.Properties()),
			Tenants:     len(table.Tenants()),
			FirstPeriod: first.String(),
			LastPeriod:  last.String(),
			Semantic:    s.sup.Resolver().Semantic(),
		}
		for _, def := range intent.Definitions() {
			out.Intents = append(out.Intents, string(def.Intent))
		}
		text := fmt.Sprintf("%d rows across %d properties and %d tenants, %s to %s",
			out.Rows, out.Properties, out.Tenants, first.Label(), last.Label())
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: text}},
		}, out, nil
	})
}

func matchesProperty(e propertyEntry, query string) bool {
	fields := append([]string{e.ID, e.DisplayName, e.Address}, e.Aliases...)
	for _, f := range fields {
		if strings.Contains(resolver.Normalize(f), query) {
			return true
		}
	}
	return false
}
