package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ===== TOOL SEARCH TOOLS =====

const defaultSearchLimit = 5

type toolSearchInput struct {
	Query    string `json:"query" jsonschema:"Search text or regular expression matched against tool names, descriptions, and keywords"`
	Category string `json:"category,omitempty" jsonschema:"Restrict to one category (query, catalog, search)"`
	Limit    int    `json:"limit,omitempty" jsonschema:"Maximum results to return (default: 5)"`
}

type toolEntry struct {
	Name        string   `json:"name" jsonschema:"Tool name"`
	Description string   `json:"description" jsonschema:"What the tool does"`
	Category    string   `json:"category" jsonschema:"Tool category"`
	Keywords    []string `json:"keywords,omitempty" jsonschema:"Search keywords"`
	Score       int      `json:"score,omitempty" jsonschema:"Match quality, higher is better"`
	MatchReason string   `json:"match_reason,omitempty" jsonschema:"Why the tool matched"`
}

type toolSearchOutput struct {
	Query      string      `json:"query" jsonschema:"Search query used"`
	Results    []toolEntry `json:"results" jsonschema:"Matching tools"`
	Count      int         `json:"count" jsonschema:"Number of tools found"`
	TotalTools int         `json:"total_tools" jsonschema:"Total number of tools in registry"`
}

type toolListInput struct {
	Category string `json:"category,omitempty" jsonschema:"Restrict to one category"`
}

type toolListOutput struct {
	Tools []toolEntry `json:"tools" jsonschema:"Registered tools"`
	Count int         `json:"count" jsonschema:"Number of tools returned"`
}

func entryFor(tool *ToolMetadata) toolEntry {
	return toolEntry{
		Name:        tool.Name,
		Description: tool.Description,
		Category:    string(tool.Category),
		Keywords:    tool.Keywords,
	}
}

func (s *Server) registerSearchTools() {
	addTool(s, &ToolMetadata{
		Name:        "tool_search",
		Description: "Search the available tools by name, description, or keyword. Accepts a regular expression.",
		Category:    CategorySearch,
		Keywords:    []string{"discover", "find", "tools"},
	}, func(ctx context.Context, req *mcp.CallToolRequest, args toolSearchInput) (*mcp.CallToolResult, toolSearchOutput, error) {
		if args.Query == "" {
			return nil, toolSearchOutput{}, fmt.Errorf("query is required")
		}
		limit := args.Limit
		if limit <= 0 {
			limit = defaultSearchLimit
		}

		var found []*SearchResult
		if args.Category != "" {
			found = s.toolRegistry.SearchByCategory(args.Query, ToolCategory(args.Category))
		} else {
			found = s.toolRegistry.Search(args.Query)
		}
		if len(found) > limit {
			found = found[:limit]
		}

		results := make([]toolEntry, 0, len(found))
		names := make([]string, 0, len(found))
		for _, sr := range found {
			e := entryFor(sr.Tool)
			e.Score = sr.Score
			e.MatchReason = sr.MatchReason
			results = append(results, e)
			names = append(names, sr.Tool.Name)
		}

		text := fmt.Sprintf("No tools found matching: %s", args.Query)
		if len(names) > 0 {
			text = fmt.Sprintf("Found %d tool(s) for query '%s': %s", len(names), args.Query, strings.Join(names, ", "))
		}
		return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: text}},
			}, toolSearchOutput{
				Query:      args.Query,
				Results:    results,
				Count:      len(results),
				TotalTools: s.toolRegistry.Count(),
			}, nil
	})

	addTool(s, &ToolMetadata{
		Name:        "tool_list",
		Description: "List every available tool with its category and keywords.",
		Category:    CategorySearch,
	}, func(ctx context.Context, req *mcp.CallToolRequest, args toolListInput) (*mcp.CallToolResult, toolListOutput, error) {
		var tools []*ToolMetadata
		if args.Category != "" {
			tools = s.toolRegistry.ListByCategory(ToolCategory(args.Category))
		} else {
			tools = s.toolRegistry.List()
		}

		out := toolListOutput{Tools: make([]toolEntry, 0, len(tools))}
		for _, tool := range tools {
			out.Tools = append(out.Tools, entryFor(tool))
		}
		out.Count = len(out.Tools)
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Found %d tools", out.Count)}},
		}, out, nil
	})
}
