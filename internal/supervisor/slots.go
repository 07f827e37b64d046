package supervisor

import (
	"github.com/fyrsmithlabs/portfoliod/internal/intent"
	"github.com/fyrsmithlabs/portfoliod/internal/ledger"
	"github.com/fyrsmithlabs/portfoliod/internal/period"
)

// Slots is the structured form of one request. The caller carries it
// between clarification turns; the supervisor keeps no copy.
type Slots struct {
	Intent     intent.Intent `json:"intent,omitempty"`
	Properties []string      `json:"properties"`
	Tenants    []string      `json:"tenants"`
	Period     period.Filter `json:"period"`
	// ComparePeriod is a second period of the same granularity to report
	// against, when the text names two.
	ComparePeriod *period.Filter `json:"compare_period,omitempty"`
	// Missing lists the slots that block routing.
	Missing []intent.Slot `json:"missing"`
	// Informational lists absent slots that do not block routing.
	Informational []intent.Slot `json:"informational,omitempty"`
	// Unresolved holds mentions that resolved to no single property.
	Unresolved []string `json:"unresolved,omitempty"`
}

func newSlots() Slots {
	return Slots{Properties: []string{}, Tenants: []string{}, Missing: []intent.Slot{}}
}

func (s Slots) clone() Slots {
	out := s
	out.Properties = append([]string{}, s.Properties...)
	out.Tenants = append([]string{}, s.Tenants...)
	out.Missing = append([]intent.Slot{}, s.Missing...)
	out.Informational = append([]intent.Slot(nil), s.Informational...)
	out.Unresolved = append([]string(nil), s.Unresolved...)
	if s.ComparePeriod != nil {
		cp := *s.ComparePeriod
		out.ComparePeriod = &cp
	}
	return out
}

// Query is the ledger filter the slots describe.
func (s Slots) Query() ledger.Query {
	return ledger.Query{
		PropertyIDs: s.Properties,
		TenantIDs:   s.Tenants,
		Period:      s.Period,
	}
}

// merge folds prior-turn slots into the current ones. Properties and
// tenants are unioned with prior values first; the current period
// overrides the prior one. Intent is handled by the caller.
func (s *Slots) merge(prior *Slots) {
	if prior == nil {
		return
	}
	s.Properties = union(prior.Properties, s.Properties, func(v string) string { return v })
	s.Tenants = union(prior.Tenants, s.Tenants, ledger.NormalizeTenant)
	if s.Period.IsNone() {
		s.Period = prior.Period
		if s.ComparePeriod == nil && prior.ComparePeriod != nil {
			cp := *prior.ComparePeriod
			s.ComparePeriod = &cp
		}
	}
}

func union(first, second []string, key func(string) string) []string {
	seen := make(map[string]bool, len(first)+len(second))
	out := make([]string, 0, len(first)+len(second))
	for _, list := range [][]string{first, second} {
		for _, v := range list {
			k := key(v)
			if k == "" || seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

// missingFor computes the blocking and informational slots for an intent.
func missingFor(i intent.Intent, s Slots) (missing, informational []intent.Slot) {
	missing = []intent.Slot{}
	switch i {
	case intent.PriceComparison:
		switch len(s.Properties) {
		case 0:
			missing = append(missing, intent.SlotProperty, intent.SlotSecondProperty)
		case 1:
			missing = append(missing, intent.SlotSecondProperty)
		}
	case intent.AssetDetails:
		if len(s.Properties) == 0 {
			missing = append(missing, intent.SlotProperty)
		}
	case intent.PnL:
		if s.Period.IsNone() {
			informational = append(informational, intent.SlotTimeframe)
		}
	}
	if len(s.Unresolved) > 0 && !containsSlot(missing, intent.SlotProperty) {
		missing = append(missing, intent.SlotProperty)
	}
	return missing, informational
}

func containsSlot(list []intent.Slot, s intent.Slot) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
