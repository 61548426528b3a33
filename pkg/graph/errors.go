package graph

import (
	"errors"
	"fmt"
	"strings"

	"github.com/OFFIS-RIT/ontokit/pkg/termid"
)

var (
	// ErrNodeNotPresent is matched by every NodeNotPresentError. Callers use it
	// to tell an unknown vertex apart from a vertex with an empty result.
	ErrNodeNotPresent = errors.New("node not present in graph")

	// ErrGraphNotDAG is returned when a cycle is found among propagating edges.
	ErrGraphNotDAG = errors.New("graph is not a DAG")

	// ErrStructural is matched by every StructuralError.
	ErrStructural = errors.New("structural error")
)

// NodeNotPresentError reports a query for a vertex outside the graph.
type NodeNotPresentError struct {
	ID termid.TermID
}

func (e *NodeNotPresentError) Error() string {
	return fmt.Sprintf("node not present in graph: %s", e.ID)
}

func (e *NodeNotPresentError) Is(target error) bool {
	return target == ErrNodeNotPresent
}

// StructuralErrorKind classifies why a graph could not be built.
type StructuralErrorKind int

const (
	EmptyGraph StructuralErrorKind = iota
	DuplicateRelationshipIDs
	MissingRoot
	AmbiguousRoot
	NotDAG
)

func (k StructuralErrorKind) String() string {
	switch k {
	case EmptyGraph:
		return "empty graph"
	case DuplicateRelationshipIDs:
		return "duplicate relationship ids"
	case MissingRoot:
		return "missing root"
	case AmbiguousRoot:
		return "ambiguous root"
	case NotDAG:
		return "not a DAG"
	}
	return "unknown"
}

// StructuralError is fatal at build time. There is no partially built graph.
type StructuralError struct {
	Kind StructuralErrorKind
	// RelationshipIDs holds the offending ids for DuplicateRelationshipIDs.
	RelationshipIDs []int
	// Terms holds the root candidates for AmbiguousRoot and the vertex where
	// the cycle was detected for NotDAG.
	Terms []termid.TermID
	Err   error
}

func (e *StructuralError) Error() string {
	var b strings.Builder
	b.WriteString("structural error: ")
	b.WriteString(e.Kind.String())
	if len(e.RelationshipIDs) > 0 {
		fmt.Fprintf(&b, " %v", e.RelationshipIDs)
	}
	if len(e.Terms) > 0 {
		ids := make([]string, len(e.Terms))
		for i, t := range e.Terms {
			ids[i] = t.String()
		}
		fmt.Fprintf(&b, " [%s]", strings.Join(ids, ", "))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *StructuralError) Is(target error) bool {
	return target == ErrStructural
}

func (e *StructuralError) Unwrap() error { return e.Err }
