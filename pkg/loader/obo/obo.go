// Package obo parses ontologies in OBO 1.4 flat file format into the
// parameters of an ontology.MinimalOntology.
package obo

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/OFFIS-RIT/ontokit/pkg/loader"
	"github.com/OFFIS-RIT/ontokit/pkg/ontology"
	"github.com/OFFIS-RIT/ontokit/pkg/termid"
)

const scannerBufferSize = 1 << 20 // 1 MB

// Options controls how relationships are typed.
type Options struct {
	// Prefixes resolves IRI-form ids. Zero value uses DefaultPrefixes.
	Prefixes *termid.Prefixes
	// Propagating lists the relation ids, besides is_a, whose edges take
	// part in ancestor closures, e.g. part_of for GO.
	Propagating []string
	// ArtificialRoot joins multiple roots under one synthesised term.
	ArtificialRoot bool
}

// internPool avoids duplicate string allocations for repeated values.
type internPool struct {
	m map[string]string
}

func newInternPool() *internPool {
	return &internPool{m: make(map[string]string, 64)}
}

func (p *internPool) get(s string) string {
	if v, ok := p.m[s]; ok {
		return v
	}
	p.m[s] = s
	return s
}

type edge struct {
	subject termid.TermID
	relType string
	object  string
	line    int
}

type parser struct {
	sc       *bufio.Scanner
	line     int
	pool     *internPool
	prefixes termid.Prefixes

	meta     map[string]string
	terms    []ontology.Term
	edges    []edge
	typedefs map[string]string // id -> name
}

func (p *parser) next() (string, bool) {
	if !p.sc.Scan() {
		return "", false
	}
	p.line++
	return strings.TrimRight(p.sc.Text(), " \t\r"), true
}

func (p *parser) id(s string) (termid.TermID, error) {
	s, _, _ = strings.Cut(s, " ! ")
	s, _, _ = strings.Cut(s, " {")
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		if t, ok := p.prefixes.Compact(s); ok {
			return t, nil
		}
	}
	t, err := termid.Parse(s)
	if err != nil {
		return termid.TermID{}, fmt.Errorf("line %d: %w", p.line, err)
	}
	return t, nil
}

// Parse reads an OBO document. Obsolete terms are kept as terms but their
// relationships are dropped. Relationships are numbered from 1 in file order.
func Parse(r io.Reader, opts Options) (ontology.Params, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, scannerBufferSize), scannerBufferSize)

	p := &parser{
		sc:       sc,
		pool:     newInternPool(),
		prefixes: termid.DefaultPrefixes(),
		meta:     map[string]string{},
		typedefs: map[string]string{},
	}
	if opts.Prefixes != nil {
		p.prefixes = *opts.Prefixes
	}

	stanza := ""
	for {
		line, ok := p.next()
		if !ok {
			break
		}
		if line == "" || line[0] == '!' {
			continue
		}
		for strings.HasPrefix(line, "[") {
			stanza = line
			var err error
			switch stanza {
			case "[Term]":
				line, err = p.parseTerm()
			case "[Typedef]":
				line, err = p.parseTypedef()
			default:
				line = p.skipStanza()
			}
			if err != nil {
				return ontology.Params{}, err
			}
		}
		if stanza == "" && line != "" {
			p.parseHeaderLine(line)
		}
	}
	if err := sc.Err(); err != nil {
		return ontology.Params{}, fmt.Errorf("failed to read obo: %w", err)
	}
	return p.params(opts)
}

// ParseFile loads and parses an ontology file through its loader.
func ParseFile(ctx context.Context, file loader.File, opts Options) (ontology.Params, error) {
	r, err := file.Open(ctx)
	if err != nil {
		return ontology.Params{}, fmt.Errorf("failed to open %s: %w", file.FilePath, err)
	}
	defer r.Close()
	return Parse(r, opts)
}

// Load parses file and builds the ontology.
func Load(ctx context.Context, file loader.File, opts Options) (*ontology.MinimalOntology, error) {
	params, err := ParseFile(ctx, file, opts)
	if err != nil {
		return nil, err
	}
	return ontology.New(params)
}

func (p *parser) parseHeaderLine(line string) {
	key, val, ok := strings.Cut(line, ": ")
	if !ok {
		return
	}
	if _, seen := p.meta[key]; !seen {
		p.meta[key] = val
	}
}

// skipStanza consumes an unsupported stanza ([Instance] etc.) and returns
// the line that ended it.
func (p *parser) skipStanza() string {
	for {
		line, ok := p.next()
		if !ok || strings.HasPrefix(line, "[") {
			return line
		}
	}
}

// parseTerm reads a [Term] stanza. It returns the next stanza header if the
// stanza ended on one, "" otherwise.
func (p *parser) parseTerm() (string, error) {
	var t ontology.Term
	var edges []edge
	start := p.line
	next := ""

	for {
		line, ok := p.next()
		if !ok || line == "" {
			break
		}
		if strings.HasPrefix(line, "[") {
			next = line
			break
		}
		key, val, ok := strings.Cut(line, ": ")
		if !ok {
			continue
		}

		switch key {
		case "id":
			id, err := p.id(val)
			if err != nil {
				return "", err
			}
			t.ID = id
		case "name":
			t.Name = val
		case "def":
			t.Definition = parseQuoted(val)
		case "comment":
			t.Comment = val
		case "synonym":
			t.Synonyms = append(t.Synonyms, parseSynonym(val, p.pool))
		case "xref":
			t.Xrefs = append(t.Xrefs, parseXref(val))
		case "alt_id":
			alt, err := p.id(val)
			if err != nil {
				return "", err
			}
			t.AltIDs = append(t.AltIDs, alt)
		case "is_obsolete":
			t.Obsolete = val == "true"
		case "replaced_by":
			if rb, err := p.id(val); err == nil {
				t.ReplacedBy = rb
			}
		case "is_a":
			edges = append(edges, edge{relType: termid.IsA.ID, object: val, line: p.line})
		case "relationship":
			typ, target, ok := strings.Cut(val, " ")
			if !ok {
				return "", fmt.Errorf("line %d: malformed relationship %q", p.line, val)
			}
			edges = append(edges, edge{relType: p.pool.get(typ), object: target, line: p.line})
		}
	}

	if t.ID.IsZero() {
		return "", fmt.Errorf("line %d: term stanza without id", start)
	}
	p.terms = append(p.terms, t)
	if !t.Obsolete {
		for _, e := range edges {
			e.subject = t.ID
			p.edges = append(p.edges, e)
		}
	}
	return next, nil
}

func (p *parser) parseTypedef() (string, error) {
	var id, name string
	next := ""
	for {
		line, ok := p.next()
		if !ok || line == "" {
			break
		}
		if strings.HasPrefix(line, "[") {
			next = line
			break
		}
		key, val, ok := strings.Cut(line, ": ")
		if !ok {
			continue
		}
		switch key {
		case "id":
			id = p.pool.get(val)
		case "name":
			name = val
		}
	}
	if id != "" {
		p.typedefs[id] = name
	}
	return next, nil
}

func (p *parser) params(opts Options) (ontology.Params, error) {
	types := map[string]termid.RelationType{termid.IsA.ID: termid.IsA}
	relType := func(id string) termid.RelationType {
		if rt, ok := types[id]; ok {
			return rt
		}
		label := p.typedefs[id]
		if label == "" {
			label = strings.ReplaceAll(id, "_", " ")
		}
		rt := termid.RelationType{ID: id, Label: label, Propagates: slices.Contains(opts.Propagating, id)}
		types[id] = rt
		return rt
	}

	rels := make([]termid.Relationship, 0, len(p.edges))
	for i, e := range p.edges {
		p.line = e.line
		obj, err := p.id(e.object)
		if err != nil {
			return ontology.Params{}, err
		}
		rels = append(rels, termid.Relationship{
			Subject: e.subject,
			Type:    relType(e.relType),
			Object:  obj,
			ID:      i + 1,
		})
	}

	params := ontology.Params{
		Meta:          p.meta,
		Terms:         p.terms,
		Relationships: rels,
		Hierarchy:     termid.IsA,
	}
	if opts.ArtificialRoot {
		params, _ = ontology.EnsureSingleRoot(params, ontology.Term{})
	}
	return params, nil
}

// parseQuoted extracts text between the first pair of double quotes.
// Escaped quotes inside the text are kept.
func parseQuoted(s string) string {
	start := strings.IndexByte(s, '"')
	if start < 0 {
		return s
	}
	var b strings.Builder
	for i := start + 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			if i+1 < len(s) {
				i++
				b.WriteByte(s[i])
			}
		case '"':
			return b.String()
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// parseSynonym parses: "text" SCOPE [xrefs]
func parseSynonym(s string, pool *internPool) ontology.Synonym {
	syn := ontology.Synonym{Value: parseQuoted(s)}
	end := strings.LastIndex(s, "\" ")
	if end < 0 {
		return syn
	}
	parts := strings.Fields(s[end+2:])
	if len(parts) > 0 && !strings.HasPrefix(parts[0], "[") {
		syn.Scope = pool.get(parts[0])
	}
	return syn
}

// parseXref parses: DB:ID "optional description"
func parseXref(s string) ontology.Xref {
	id, rest, _ := strings.Cut(s, " ")
	x := ontology.Xref{ID: id}
	if strings.Contains(rest, "\"") {
		x.Description = parseQuoted(rest)
	}
	return x
}
