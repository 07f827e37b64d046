package intent

import "strings"

// Slot names a piece of information a request may need.
type Slot string

const (
	SlotProperty       Slot = "property"
	SlotSecondProperty Slot = "second_property"
	SlotTimeframe      Slot = "timeframe"
)

// Coverage says how completely the dataset can serve an intent.
type Coverage string

const (
	CoverageFull    Coverage = "full"
	CoveragePartial Coverage = "partial"
	CoverageMissing Coverage = "missing"
)

// Definition describes how an intent behaves.
type Definition struct {
	Intent        Intent
	Title         string
	Description   string
	Triggers      []string
	Required      []Slot
	Informational []Slot
	FallbackHint  string
	MeasurementID string
	Coverage      Coverage
}

var catalog = map[Intent]Definition{
	PriceComparison: {
		Intent:        PriceComparison,
		Title:         "Price Comparison",
		Description:   "Compare valuations between two properties.",
		Triggers:      []string{"compare", "comparison", "price", "value", "worth", "valuation", "versus", "vs"},
		Required:      []Slot{SlotProperty, SlotSecondProperty},
		FallbackHint:  "Please mention two portfolio properties so I can compare them.",
		MeasurementID: "req_price_comparison",
		Coverage:      CoveragePartial,
	},
	PnL: {
		Intent:        PnL,
		Title:         "Profit & Loss",
		Description:   "Aggregate revenue, expenses, and NOI for a filter.",
		Triggers:      []string{"p&l", "pnl", "profit", "loss", "income", "noi", "revenue", "expense", "performance"},
		Informational: []Slot{SlotTimeframe},
		FallbackHint:  "Specify a month, quarter, or year so I can narrow the P&L.",
		MeasurementID: "req_pnl",
		Coverage:      CoverageFull,
	},
	AssetDetails: {
		Intent:        AssetDetails,
		Title:         "Asset Details",
		Description:   "Return the latest ledger snapshot for a property.",
		Triggers:      []string{"tell me about", "details", "describe", "info", "information", "overview", "snapshot"},
		Required:      []Slot{SlotProperty},
		FallbackHint:  "Let me know which property you want details for.",
		MeasurementID: "req_asset_detail",
		Coverage:      CoverageFull,
	},
	GeneralKnowledge: {
		Intent:        GeneralKnowledge,
		Title:         "General Knowledge",
		Description:   "Definitions, ledger explanations, and dataset questions.",
		Triggers:      []string{"what is", "explain", "meaning of", "definition", "how does", "ledger code", "ledger group"},
		FallbackHint:  "Ask me something about the portfolio, metrics, or ledger codes.",
		MeasurementID: "req_general",
		Coverage:      CoverageMissing,
	},
	Clarification: {
		Intent:        Clarification,
		Title:         "Clarification",
		Description:   "Ask for the information needed to answer.",
		FallbackHint:  "Please share more context so I can help.",
		MeasurementID: "req_clarification",
		Coverage:      CoveragePartial,
	},
}

var aliases = map[string]Intent{
	"price":           PriceComparison,
	"compare":         PriceComparison,
	"comparison":      PriceComparison,
	"valuation":       PriceComparison,
	"p&l":             PnL,
	"p_and_l":         PnL,
	"profit":          PnL,
	"loss":            PnL,
	"profit_and_loss": PnL,
	"noi":             PnL,
	"asset":           AssetDetails,
	"details":         AssetDetails,
	"asset_detail":    AssetDetails,
	"general":         GeneralKnowledge,
	"knowledge":       GeneralKnowledge,
	"question":        Clarification,
	"unsupported":     Clarification,
}

// Lookup returns the definition for i. Unknown intents get the
// clarification entry.
func Lookup(i Intent) Definition {
	if d, ok := catalog[i]; ok {
		return d
	}
	return catalog[Clarification]
}

// Definitions returns every definition in priority order.
func Definitions() []Definition {
	out := make([]Definition, 0, len(catalog))
	for _, i := range All() {
		out = append(out, catalog[i])
	}
	return out
}

// Normalize maps a free-form label ("P&L", "asset-details", "general") to
// an intent. The boolean is false for labels outside the catalog.
func Normalize(label string) (Intent, bool) {
	key := strings.ToLower(strings.TrimSpace(label))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	if key == "" {
		return "", false
	}
	if i := Intent(key); i.Valid() {
		return i, true
	}
	i, ok := aliases[key]
	return i, ok
}
