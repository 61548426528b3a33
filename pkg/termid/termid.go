package termid

import (
	"errors"
	"fmt"
	"strings"
)

var ErrMalformedTermID = errors.New("malformed term id")

// TermID identifies an ontology term by prefix and local id, e.g. HP:0000118.
// TermID is a comparable value and can be used as a map key.
type TermID struct {
	prefix string
	id     string
}

// New returns the TermID for prefix and local id.
func New(prefix, id string) TermID {
	return TermID{prefix: prefix, id: id}
}

// Parse parses the canonical PREFIX:ID form. Underscore separated ids
// (HP_0000118) as found in OBO PURLs are accepted as well.
func Parse(s string) (TermID, error) {
	s = strings.TrimSpace(s)
	prefix, id, ok := strings.Cut(s, ":")
	if !ok {
		prefix, id, ok = strings.Cut(s, "_")
	}
	if !ok || prefix == "" || id == "" {
		return TermID{}, fmt.Errorf("%w: %q", ErrMalformedTermID, s)
	}
	return TermID{prefix: prefix, id: id}, nil
}

// MustParse is like Parse but panics on error. Intended for tests and constants.
func MustParse(s string) TermID {
	t, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (t TermID) Prefix() string { return t.prefix }
func (t TermID) ID() string     { return t.id }

// IsZero reports whether t is the zero TermID.
func (t TermID) IsZero() bool { return t.prefix == "" && t.id == "" }

func (t TermID) String() string {
	return t.prefix + ":" + t.id
}

// Compare orders by prefix first, then by local id.
func (t TermID) Compare(o TermID) int {
	if c := strings.Compare(t.prefix, o.prefix); c != 0 {
		return c
	}
	return strings.Compare(t.id, o.id)
}

func (t TermID) Less(o TermID) bool { return t.Compare(o) < 0 }

// MarshalText encodes the zero TermID as an empty string.
func (t TermID) MarshalText() ([]byte, error) {
	if t.IsZero() {
		return []byte{}, nil
	}
	return []byte(t.String()), nil
}

func (t *TermID) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*t = TermID{}
		return nil
	}
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// GobEncode stores the text form, as gob cannot see unexported fields.
func (t TermID) GobEncode() ([]byte, error) {
	return t.MarshalText()
}

func (t *TermID) GobDecode(b []byte) error {
	return t.UnmarshalText(b)
}

// ParseAll parses every string in ids, failing on the first malformed one.
func ParseAll(ids []string) ([]TermID, error) {
	out := make([]TermID, 0, len(ids))
	for _, s := range ids {
		t, err := Parse(s)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
