package mcp

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric"

	"github.com/fyrsmithlabs/portfoliod/internal/ledger"
	"github.com/fyrsmithlabs/portfoliod/internal/resolver"
	"github.com/fyrsmithlabs/portfoliod/internal/supervisor"
	"github.com/fyrsmithlabs/portfoliod/internal/telemetry"
)

func newTestSupervisor(t *testing.T) *supervisor.Supervisor {
	t.Helper()
	table, err := ledger.Load(filepath.Join("..", "ledger", "testdata", "portfolio.csv"))
	require.NoError(t, err)
	res, err := resolver.New(context.Background(), table.Properties(),
		map[string]string{"harbor plaza": "P180"}, resolver.Config{})
	require.NoError(t, err)
	sup, err := supervisor.New(supervisor.Deps{
		Table:    table,
		Resolver: res,
		Clock:    func() time.Time { return time.Date(2025, 7, 15, 9, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return sup
}

// connect starts srv on an in-memory transport and returns a client session.
func connect(t *testing.T, meter metric.Meter) (*Server, *mcp.ClientSession) {
	t.Helper()
	ctx := context.Background()

	cfg := DefaultConfig()
	cfg.Version = "1.0.0-test"
	cfg.Meter = meter
	srv, err := NewServer(cfg, newTestSupervisor(t))
	require.NoError(t, err)

	clientT, serverT := mcp.NewInMemoryTransports()
	ss, err := srv.Connect(ctx, serverT)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0"}, nil)
	cs, err := client.Connect(ctx, clientT, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return srv, cs
}

func call(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

// structured decodes the structured content of res into out.
func structured(t *testing.T, res *mcp.CallToolResult, out any) {
	t.Helper()
	require.False(t, res.IsError, "tool returned error: %+v", res.Content)
	b, err := json.Marshal(res.StructuredContent)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, out))
}

func text(res *mcp.CallToolResult) string {
	for _, c := range res.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestNewServer_RequiresSupervisor(t *testing.T) {
	_, err := NewServer(nil, nil)
	assert.Error(t, err)
}

func TestListTools(t *testing.T) {
	srv, cs := connect(t, nil)

	res, err := cs.ListTools(context.Background(), &mcp.ListToolsParams{})
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{
		"portfolio_ask", "portfolio_properties", "portfolio_dataset", "tool_search", "tool_list",
	}, names)
	assert.Equal(t, []string{
		"portfolio_ask", "portfolio_dataset", "portfolio_properties", "tool_list", "tool_search",
	}, srv.Registry().ListNames())
}

func TestPortfolioAsk(t *testing.T) {
	_, cs := connect(t, nil)

	res := call(t, cs, "portfolio_ask", map[string]any{"message": "What is the total P&L for 2025?"})
	var out askOutput
	structured(t, res, &out)
	assert.Equal(t, "pnl", out.Intent)
	assert.Equal(t, string(supervisor.StateRouted), out.State)
	assert.NotEmpty(t, out.RequestID)
	assert.Equal(t, out.Answer, text(res))
	assert.Nil(t, out.Error)
}

func TestPortfolioAsk_ClarificationRoundTrip(t *testing.T) {
	_, cs := connect(t, nil)

	first := call(t, cs, "portfolio_ask", map[string]any{"message": "Compare Building 120"})
	var out1 askOutput
	structured(t, first, &out1)
	assert.Equal(t, string(supervisor.StateAwaitingClarification), out1.State)
	require.NotNil(t, out1.Error)
	assert.Equal(t, supervisor.ErrorMissingProperty, out1.Error.Type)

	slots, ok := out1.Slots.(map[string]any)
	require.True(t, ok)

	second := call(t, cs, "portfolio_ask", map[string]any{"message": "Building 160", "prior_slots": slots})
	var out2 askOutput
	structured(t, second, &out2)
	assert.Equal(t, "price_comparison", out2.Intent)
	assert.Equal(t, string(supervisor.StateRouted), out2.State)
}

func TestPortfolioAsk_Rejects(t *testing.T) {
	_, cs := connect(t, nil)

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{name: "blank message", args: map[string]any{"message": "  "}, want: "message is required"},
		{name: "bad reference date", args: map[string]any{"message": "P&L for 2025", "reference_date": "yesterday"}, want: "reference_date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: "portfolio_ask", Arguments: tt.args})
			if err != nil {
				assert.Contains(t, err.Error(), tt.want)
				return
			}
			assert.True(t, res.IsError)
			assert.Contains(t, text(res), tt.want)
		})
	}
}

func TestPortfolioProperties(t *testing.T) {
	_, cs := connect(t, nil)

	var all propertiesOutput
	structured(t, call(t, cs, "portfolio_properties", map[string]any{}), &all)
	assert.Equal(t, 4, all.Count)

	var filtered propertiesOutput
	res := call(t, cs, "portfolio_properties", map[string]any{"query": "Harbor"})
	structured(t, res, &filtered)
	require.Equal(t, 1, filtered.Count)
	assert.Equal(t, "P180", filtered.Properties[0].ID)
	assert.Equal(t, []string{"harbor plaza"}, filtered.Properties[0].Aliases)
	assert.Contains(t, text(res), "Building 180")

	var none propertiesOutput
	res = call(t, cs, "portfolio_properties", map[string]any{"query": "nowhere"})
	structured(t, res, &none)
	assert.Zero(t, none.Count)
	assert.Contains(t, text(res), "No properties match")
}

func TestPortfolioDataset(t *testing.T) {
	_, cs := connect(t, nil)

	var out datasetOutput
	structured(t, call(t, cs, "portfolio_dataset", map[string]any{}), &out)
	assert.Equal(t, 37, out.Rows)
	assert.Equal(t, 4, out.Properties)
	assert.Equal(t, "2024-11", out.FirstPeriod)
	assert.False(t, out.Semantic)
	assert.Contains(t, out.Intents, "pnl")
}

func TestToolSearch(t *testing.T) {
	_, cs := connect(t, nil)

	var out toolSearchOutput
	structured(t, call(t, cs, "tool_search", map[string]any{"query": "noi"}), &out)
	require.NotEmpty(t, out.Results)
	assert.Equal(t, "portfolio_ask", out.Results[0].Name)
	assert.Equal(t, 5, out.TotalTools)

	var byCategory toolSearchOutput
	structured(t, call(t, cs, "tool_search", map[string]any{"query": "portfolio", "category": "catalog"}), &byCategory)
	assert.Equal(t, 2, byCategory.Count)

	var limited toolSearchOutput
	structured(t, call(t, cs, "tool_search", map[string]any{"query": "portfolio", "limit": 1}), &limited)
	assert.Equal(t, 1, limited.Count)
}

func TestToolList(t *testing.T) {
	_, cs := connect(t, nil)

	var out toolListOutput
	structured(t, call(t, cs, "tool_list", map[string]any{}), &out)
	assert.Equal(t, 5, out.Count)

	var search toolListOutput
	structured(t, call(t, cs, "tool_list", map[string]any{"category": "search"}), &search)
	assert.Equal(t, 2, search.Count)
}

func TestToolMetrics(t *testing.T) {
	tt := telemetry.NewTestTelemetry()
	_, cs := connect(t, tt.Meter(instrumentationName))

	call(t, cs, "portfolio_ask", map[string]any{"message": "What is the total P&L for 2025?"})
	call(t, cs, "portfolio_ask", map[string]any{"message": "Tell me about 123 Fake St"})

	for _, name := range []string{
		"portfoliod.mcp.tool.invocations_total",
		"portfoliod.mcp.tool.duration_seconds",
		"portfoliod.turns.answered_total",
		"portfoliod.turns.clarification_total",
	} {
		tt.AssertMetricExists(t, name)
	}
}

func TestDecodeSlots(t *testing.T) {
	slots, err := decodeSlots(nil)
	require.NoError(t, err)
	assert.Nil(t, slots)

	slots, err = decodeSlots(map[string]any{
		"intent":     "pnl",
		"properties": []any{"P180"},
		"period":     map[string]any{"kind": "year", "year": 2025},
	})
	require.NoError(t, err)
	require.NotNil(t, slots)
	assert.Equal(t, []string{"P180"}, slots.Properties)
	assert.Equal(t, 2025, slots.Period.Year)

	_, err = decodeSlots(map[string]any{"properties": "P180"})
	assert.Error(t, err)
}
