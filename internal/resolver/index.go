package resolver

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/portfoliod/internal/ledger"
)

// ErrInvalidIndex is returned by NewIndex for inconsistent property sets.
var ErrInvalidIndex = errors.New("invalid property index")

// Index is the lexical view of the portfolio: canonical names, addresses,
// ids, and aliases, all normalized. It is immutable once built.
type Index struct {
	properties map[string]ledger.PropertyRecord
	ids        []string
	aliases    map[string]string
	exact      map[string][]string
	keys       map[string][]string
	dropped    []string
}

// NewIndex builds an index from the distinct properties and an alias map
// (free text to property id). Aliases naming unknown properties are dropped
// and reported by Dropped.
func NewIndex(properties []ledger.PropertyRecord, aliases map[string]string) (*Index, error) {
	idx := &Index{
		properties: make(map[string]ledger.PropertyRecord, len(properties)),
		aliases:    make(map[string]string, len(aliases)),
		exact:      make(map[string][]string),
		keys:       make(map[string][]string, len(properties)),
	}

	for _, p := range properties {
		id := strings.TrimSpace(p.PropertyID)
		if id == "" {
			return nil, fmt.Errorf("%w: empty property id", ErrInvalidIndex)
		}
		if _, dup := idx.properties[id]; dup {
			return nil, fmt.Errorf("%w: duplicate property id %q", ErrInvalidIndex, id)
		}
		idx.properties[id] = p
		idx.ids = append(idx.ids, id)

		for _, text := range []string{p.DisplayName, p.Address, id} {
			idx.addExact(Normalize(text), id)
		}
	}
	sort.Strings(idx.ids)

	aliasKeys := make([]string, 0, len(aliases))
	for k := range aliases {
		aliasKeys = append(aliasKeys, k)
	}
	sort.Strings(aliasKeys)
	for _, raw := range aliasKeys {
		key := Normalize(raw)
		id := strings.TrimSpace(aliases[raw])
		if key == "" || id == "" {
			continue
		}
		if _, ok := idx.properties[id]; !ok {
			idx.dropped = append(idx.dropped, raw)
			continue
		}
		idx.aliases[key] = id
		idx.addKey(id, key)
	}
	return idx, nil
}

func (idx *Index) addExact(key, id string) {
	if key == "" {
		return
	}
	for _, existing := range idx.exact[key] {
		if existing == id {
			return
		}
	}
	idx.exact[key] = append(idx.exact[key], id)
	idx.addKey(id, key)
}

func (idx *Index) addKey(id, key string) {
	for _, k := range idx.keys[id] {
		if k == key {
			return
		}
	}
	idx.keys[id] = append(idx.keys[id], key)
}

// Len returns the number of properties.
func (idx *Index) Len() int { return len(idx.ids) }

// Property returns the canonical record for id.
func (idx *Index) Property(id string) (ledger.PropertyRecord, bool) {
	p, ok := idx.properties[id]
	return p, ok
}

// Properties returns all records sorted by id.
func (idx *Index) Properties() []ledger.PropertyRecord {
	out := make([]ledger.PropertyRecord, 0, len(idx.ids))
	for _, id := range idx.ids {
		out = append(out, idx.properties[id])
	}
	return out
}

// Dropped returns alias keys that referenced unknown properties.
func (idx *Index) Dropped() []string {
	return append([]string(nil), idx.dropped...)
}

// Aliases returns the normalized aliases recorded for id.
func (idx *Index) Aliases(id string) []string {
	var out []string
	for k, v := range idx.aliases {
		if v == id {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// document is the searchable text for a property: every key joined.
func (idx *Index) document(id string) string {
	p := idx.properties[id]
	parts := []string{p.DisplayName}
	if p.Address != "" {
		parts = append(parts, p.Address)
	}
	parts = append(parts, idx.Aliases(id)...)
	return strings.Join(parts, " | ")
}

// Phrases returns the names, addresses, and aliases that occur verbatim
// (after normalization) in text, longest first.
func (idx *Index) Phrases(text string) []string {
	norm := Normalize(text)
	seen := make(map[string]bool)
	var out []string
	consider := func(key string) {
		if seen[key] || len(key) < 3 {
			return
		}
		if containsPhrase(norm, key) {
			seen[key] = true
			out = append(out, key)
		}
	}
	for key := range idx.aliases {
		consider(key)
	}
	for key := range idx.exact {
		consider(key)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) > len(out[j])
		}
		return out[i] < out[j]
	})
	return out
}
