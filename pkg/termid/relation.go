package termid

// RelationType describes the kind of an edge between two terms. Only
// propagating relations take part in ancestor and descendant closures.
type RelationType struct {
	ID         string `json:"id"`
	Label      string `json:"label"`
	Propagates bool   `json:"propagates"`
}

var (
	IsA    = RelationType{ID: "is_a", Label: "is a", Propagates: true}
	PartOf = RelationType{ID: "part_of", Label: "part of", Propagates: true}
)

// Relationship is a typed edge subject -> object, e.g. child is_a parent.
// ID must be unique among the relationships of one graph.
type Relationship struct {
	Subject TermID       `json:"subject"`
	Type    RelationType `json:"type"`
	Object  TermID       `json:"object"`
	ID      int          `json:"id"`
}
