package termid

import (
	"sort"
	"strings"
)

// OBOPurl is the base IRI used by OBO Foundry ontologies.
const OBOPurl = "http://purl.obolibrary.org/obo/"

// Prefixes maps CURIE prefixes to IRI bases. It is a plain value handed to
// whatever needs to translate between IRIs and TermIDs.
type Prefixes struct {
	bases map[string]string
}

// NewPrefixes returns a prefix map seeded with the given prefix -> base pairs.
func NewPrefixes(m map[string]string) Prefixes {
	bases := make(map[string]string, len(m))
	for k, v := range m {
		bases[k] = v
	}
	return Prefixes{bases: bases}
}

// DefaultPrefixes returns the prefixes of the ontologies the toolkit is
// typically run against. All of them live under the OBO PURL.
func DefaultPrefixes() Prefixes {
	m := make(map[string]string)
	for _, p := range []string{"HP", "GO", "MP", "UPHENO", "MONDO", "CHEBI", "UBERON", "PATO"} {
		m[p] = OBOPurl + p + "_"
	}
	return NewPrefixes(m)
}

// Expand returns the IRI for t. Unknown prefixes fall back to the OBO PURL.
func (p Prefixes) Expand(t TermID) string {
	if base, ok := p.bases[t.prefix]; ok {
		return base + t.id
	}
	return OBOPurl + t.prefix + "_" + t.id
}

// Compact converts an IRI to a TermID. The longest matching base wins. IRIs
// under the OBO PURL are accepted even if their prefix is not registered.
func (p Prefixes) Compact(iri string) (TermID, bool) {
	keys := make([]string, 0, len(p.bases))
	for k := range p.bases {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return len(p.bases[keys[i]]) > len(p.bases[keys[j]]) })
	for _, k := range keys {
		base := p.bases[k]
		if strings.HasPrefix(iri, base) && len(iri) > len(base) {
			return New(k, iri[len(base):]), true
		}
	}
	if strings.HasPrefix(iri, OBOPurl) {
		t, err := Parse(iri[len(OBOPurl):])
		if err == nil {
			return t, true
		}
	}
	return TermID{}, false
}
