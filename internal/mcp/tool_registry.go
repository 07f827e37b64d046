package mcp

import (
	"regexp"
	"sort"
	"strings"
	"sync"
)

// ToolCategory groups tools for discovery.
type ToolCategory string

const (
	CategoryQuery   ToolCategory = "query"   // conversational questions
	CategoryCatalog ToolCategory = "catalog" // property and dataset lookups
	CategorySearch  ToolCategory = "search"  // tool discovery
)

// ToolMetadata describes a registered tool for tool_search and tool_list.
type ToolMetadata struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Category    ToolCategory `json:"category"`
	Keywords    []string     `json:"keywords,omitempty"`
}

// SearchResult is one tool_search hit. Score is 3 for an exact name, 2 for a
// name match and 1 for a description or keyword match.
type SearchResult struct {
	Tool        *ToolMetadata `json:"tool"`
	Score       int           `json:"score"`
	MatchReason string        `json:"match_reason"`
}

// ToolRegistry indexes the tools a Server exposes. It is safe for
// concurrent use.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]*ToolMetadata
}

// NewToolRegistry creates an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: map[string]*ToolMetadata{}}
}

// Register adds or replaces a tool. Unnamed tools are ignored.
func (r *ToolRegistry) Register(tool *ToolMetadata) {
	if tool == nil || tool.Name == "" {
		return
	}
	r.mu.Lock()
	r.tools[tool.Name] = tool
	r.mu.Unlock()
}

// RegisterAll registers each tool in turn.
func (r *ToolRegistry) RegisterAll(tools []*ToolMetadata) {
	for _, t := range tools {
		r.Register(t)
	}
}

// Get looks a tool up by name.
func (r *ToolRegistry) Get(name string) (*ToolMetadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Count returns the number of registered tools.
func (r *ToolRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// List returns every tool ordered by name.
func (r *ToolRegistry) List() []*ToolMetadata {
	return r.filter(func(*ToolMetadata) bool { return true })
}

// ListByCategory returns the tools in category ordered by name.
func (r *ToolRegistry) ListByCategory(category ToolCategory) []*ToolMetadata {
	return r.filter(func(t *ToolMetadata) bool { return t.Category == category })
}

// ListNames returns the sorted tool names.
func (r *ToolRegistry) ListNames() []string {
	tools := r.List()
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Name
	}
	return names
}

func (r *ToolRegistry) filter(keep func(*ToolMetadata) bool) []*ToolMetadata {
	r.mu.RLock()
	out := make([]*ToolMetadata, 0, len(r.tools))
	for _, t := range r.tools {
		if keep(t) {
			out = append(out, t)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Search matches query case-insensitively against names, descriptions and
// keywords. A query that compiles as a regular expression is also tried as
// one. Results are ordered by score, then name.
func (r *ToolRegistry) Search(query string) []*SearchResult {
	if query == "" {
		return nil
	}
	m := newMatcher(query)

	r.mu.RLock()
	var results []*SearchResult
	for _, t := range r.tools {
		if score, reason := m.score(t); score > 0 {
			results = append(results, &SearchResult{Tool: t, Score: score, MatchReason: reason})
		}
	}
	r.mu.RUnlock()

	sortSearchResults(results)
	return results
}

// SearchByCategory is Search restricted to one category.
func (r *ToolRegistry) SearchByCategory(query string, category ToolCategory) []*SearchResult {
	var out []*SearchResult
	for _, res := range r.Search(query) {
		if res.Tool.Category == category {
			out = append(out, res)
		}
	}
	return out
}

type matcher struct {
	lower string
	re    *regexp.Regexp // nil when query is not a valid pattern
}

func newMatcher(query string) matcher {
	m := matcher{lower: strings.ToLower(query)}
	if re, err := regexp.Compile("(?i)" + query); err == nil {
		m.re = re
	}
	return m
}

func (m matcher) contains(s string) bool { return strings.Contains(strings.ToLower(s), m.lower) }
func (m matcher) pattern(s string) bool  { return m.re != nil && m.re.MatchString(s) }

// score returns the best match for t, first hit wins.
func (m matcher) score(t *ToolMetadata) (int, string) {
	switch {
	case strings.ToLower(t.Name) == m.lower:
		return 3, "exact name match"
	case m.contains(t.Name):
		return 2, "name contains query"
	case m.pattern(t.Name):
		return 2, "name matches pattern"
	case m.contains(t.Description):
		return 1, "description contains query"
	case m.pattern(t.Description):
		return 1, "description matches pattern"
	}
	for _, kw := range t.Keywords {
		if m.contains(kw) {
			return 1, "keyword contains query"
		}
		if m.pattern(kw) {
			return 1, "keyword matches pattern"
		}
	}
	return 0, ""
}

func sortSearchResults(results []*SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Tool.Name < results[j].Tool.Name
	})
}
