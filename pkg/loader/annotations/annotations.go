// Package annotations reads term annotation tables such as HPO's
// genes_to_phenotype.txt into annotation profiles keyed by object id.
package annotations

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/OFFIS-RIT/ontokit/pkg/loader"
	"github.com/OFFIS-RIT/ontokit/pkg/ontology"
	"github.com/OFFIS-RIT/ontokit/pkg/termid"

	"golang.org/x/sync/singleflight"
)

var ErrMissingColumn = errors.New("annotation table is missing a column")

// Profiles maps an object id (e.g. an NCBI gene id) to its annotated terms.
// Every slice is sorted and free of duplicates.
type Profiles map[int][]termid.TermID

// Objects returns the object ids in ascending order.
func (p Profiles) Objects() []int {
	ids := make([]int, 0, len(p))
	for id := range p {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Options names the columns to read. Headerless tables fall back to the
// column positions of genes_to_phenotype.txt.
type Options struct {
	ObjectColumn string
	TermColumn   string
}

func (o Options) withDefaults() Options {
	if o.ObjectColumn == "" {
		o.ObjectColumn = "ncbi_gene_id"
	}
	if o.TermColumn == "" {
		o.TermColumn = "hpo_id"
	}
	return o
}

// Stats describes what a parse dropped.
type Stats struct {
	Rows     int
	Unknown  int
	Obsolete int
}

// Parse reads a tab separated table. Alternate ids are mapped to their
// primary id, obsolete and unknown terms are dropped and counted in Stats.
// A nil ontology keeps every well-formed term as is.
func Parse(r io.Reader, o *ontology.MinimalOntology, opts Options) (Profiles, Stats, error) {
	opts = opts.withDefaults()

	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.Comment = '#'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.ReuseRecord = true

	objCol, termCol := 0, 2
	profiles := Profiles{}
	var stats Stats
	seen := map[int]map[termid.TermID]struct{}{}

	first := true
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, stats, fmt.Errorf("failed to read annotations: %w", err)
		}
		if first {
			first = false
			if i, j, ok := headerColumns(record, opts); ok {
				objCol, termCol = i, j
				continue
			}
			if _, err := parseObjectID(record[0]); err != nil {
				return nil, stats, fmt.Errorf("%w: %s, %s", ErrMissingColumn, opts.ObjectColumn, opts.TermColumn)
			}
		}
		if len(record) <= max(objCol, termCol) {
			continue
		}

		line, _ := reader.FieldPos(0)
		objectID, err := parseObjectID(record[objCol])
		if err != nil {
			return nil, stats, fmt.Errorf("line %d: %w", line, err)
		}
		id, err := termid.Parse(record[termCol])
		if err != nil {
			return nil, stats, fmt.Errorf("line %d: %w", line, err)
		}
		stats.Rows++

		if o != nil {
			t, ok := o.Term(id)
			if !ok {
				stats.Unknown++
				continue
			}
			if t.Obsolete {
				stats.Obsolete++
				continue
			}
			id = t.ID
		}

		set, ok := seen[objectID]
		if !ok {
			set = map[termid.TermID]struct{}{}
			seen[objectID] = set
		}
		if _, dup := set[id]; dup {
			continue
		}
		set[id] = struct{}{}
		profiles[objectID] = append(profiles[objectID], id)
	}

	for id := range profiles {
		slices.SortFunc(profiles[id], termid.TermID.Compare)
	}
	return profiles, stats, nil
}

func headerColumns(record []string, opts Options) (int, int, bool) {
	objCol, termCol := -1, -1
	for i, name := range record {
		switch strings.TrimSpace(name) {
		case opts.ObjectColumn:
			objCol = i
		case opts.TermColumn:
			termCol = i
		}
	}
	return objCol, termCol, objCol >= 0 && termCol >= 0
}

// parseObjectID accepts plain integers and CURIEs such as NCBIGene:2200.
func parseObjectID(s string) (int, error) {
	s = strings.TrimSpace(s)
	if _, local, ok := strings.Cut(s, ":"); ok {
		s = local
	}
	id, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid object id %q", s)
	}
	return id, nil
}

// Source loads annotation files once per ontology version. Concurrent
// requests for the same file share one parse.
type Source struct {
	opts Options

	mu     sync.RWMutex
	parsed map[string]parsed
	group  singleflight.Group
}

type parsed struct {
	profiles Profiles
	stats    Stats
}

func NewSource(opts Options) *Source {
	return &Source{
		opts:   opts,
		parsed: make(map[string]parsed),
	}
}

func (s *Source) cached(key string) (parsed, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.parsed[key]
	return p, ok
}

// Profiles returns the parsed profiles of file resolved against o, with the
// statistics of the parse that produced them.
func (s *Source) Profiles(ctx context.Context, file loader.File, o *ontology.MinimalOntology) (Profiles, Stats, error) {
	key := loader.CacheKey(file)
	if o != nil {
		key += "@" + o.Version()
	}
	if p, ok := s.cached(key); ok {
		return p.profiles, p.stats, nil
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		if p, ok := s.cached(key); ok {
			return p, nil
		}

		r, err := file.Open(ctx)
		if err != nil {
			return nil, err
		}
		defer r.Close()

		profiles, st, err := Parse(r, o, s.opts)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", file.FilePath, err)
		}

		p := parsed{profiles: profiles, stats: st}
		s.mu.Lock()
		s.parsed[key] = p
		s.mu.Unlock()
		return p, nil
	})
	if err != nil {
		return nil, Stats{}, err
	}
	p := v.(parsed)
	return p.profiles, p.stats, nil
}

// Forget drops every cached parse of file, e.g. after the table was
// replaced by a new release.
func (s *Source) Forget(file loader.File) {
	prefix := loader.CacheKey(file)
	s.mu.Lock()
	for k := range s.parsed {
		if k == prefix || strings.HasPrefix(k, prefix+"@") {
			delete(s.parsed, k)
		}
	}
	s.mu.Unlock()
}
