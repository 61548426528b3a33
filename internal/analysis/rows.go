package analysis

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/OFFIS-RIT/ontokit/pkg/termid"
)

const na = "NA"

// RowOptions describes the layout of a tab separated query table. The
// first row is a header; columns are found by name.
type RowOptions struct {
	ObjectColumn string
	TermsColumn  string
	// TermSeparator splits the term list cell. Defaults to ",".
	TermSeparator string
}

func (o RowOptions) withDefaults() RowOptions {
	if o.ObjectColumn == "" {
		o.ObjectColumn = "object_id"
	}
	if o.TermsColumn == "" {
		o.TermsColumn = "terms"
	}
	if o.TermSeparator == "" {
		o.TermSeparator = ","
	}
	return o
}

// AnnotateRows copies the table from r to w with resnik_sim and p_value
// appended to every row. Both are "NA" when the object has no profile;
// p_value alone is "NA" when no distribution is loaded for the row. It
// returns the number of data rows written.
func (e *Engine) AnnotateRows(r io.Reader, w io.Writer, opts RowOptions) (int, error) {
	opts = opts.withDefaults()

	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.Comment = '#'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	cw := csv.NewWriter(w)
	cw.Comma = '\t'

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return 0, errors.New("query table is empty")
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read header: %w", err)
	}
	objCol, termsCol := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(name) {
		case opts.ObjectColumn:
			objCol = i
		case opts.TermsColumn:
			termsCol = i
		}
	}
	if objCol < 0 || termsCol < 0 {
		return 0, fmt.Errorf("header needs columns %q and %q", opts.ObjectColumn, opts.TermsColumn)
	}
	if err := cw.Write(append(header, "resnik_sim", "p_value")); err != nil {
		return 0, err
	}

	rows := 0
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return rows, fmt.Errorf("failed to read row %d: %w", rows+1, err)
		}
		if len(record) <= max(objCol, termsCol) {
			return rows, fmt.Errorf("row %d: expected at least %d columns, got %d", rows+1, max(objCol, termsCol)+1, len(record))
		}

		q, err := parseQuery(record[objCol], record[termsCol], opts.TermSeparator)
		if err != nil {
			return rows, fmt.Errorf("row %d: %w", rows+1, err)
		}
		s := e.Score(q)
		if err := cw.Write(append(record, formatValue(s.Similarity), formatValue(s.PValue))); err != nil {
			return rows, err
		}
		rows++
	}

	cw.Flush()
	return rows, cw.Error()
}

func parseQuery(object, terms, sep string) (Query, error) {
	object = strings.TrimSpace(object)
	if _, local, ok := strings.Cut(object, ":"); ok {
		object = local
	}
	id, err := strconv.Atoi(object)
	if err != nil {
		return Query{}, fmt.Errorf("invalid object id %q", object)
	}

	var ids []string
	for _, t := range strings.Split(terms, sep) {
		if t = strings.TrimSpace(t); t != "" {
			ids = append(ids, t)
		}
	}
	parsed, err := termid.ParseAll(ids)
	if err != nil {
		return Query{}, err
	}
	return Query{ObjectID: id, Terms: parsed}, nil
}

func formatValue(v *float64) string {
	if v == nil {
		return na
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}
