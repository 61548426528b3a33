package routes

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/OFFIS-RIT/ontokit/internal/server/middleware"
	"github.com/OFFIS-RIT/ontokit/pkg/graph"
	"github.com/OFFIS-RIT/ontokit/pkg/ontology"
	"github.com/OFFIS-RIT/ontokit/pkg/termid"

	"github.com/labstack/echo/v4"
)

func errorJSON(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"error": msg})
}

// GetOntologyHandler describes the loaded ontology.
func GetOntologyHandler(c echo.Context) error {
	type ontologyResponse struct {
		ID            string                `json:"id"`
		Version       string                `json:"version"`
		Root          termid.TermID         `json:"root"`
		Terms         int                   `json:"terms"`
		Obsolete      int                   `json:"obsolete"`
		Objects       int                   `json:"objects"`
		RelationTypes []termid.RelationType `json:"relation_types"`
		NumTerms      []int                 `json:"distribution_term_counts"`
	}

	e := c.(*middleware.AppContext).App.Engine
	o := e.Ontology()
	return c.JSON(http.StatusOK, ontologyResponse{
		ID:            e.ID(),
		Version:       o.Version(),
		Root:          o.Root(),
		Terms:         len(o.NonObsoleteTermIDs()),
		Obsolete:      len(o.ObsoleteTermIDs()),
		Objects:       len(e.Objects()),
		RelationTypes: o.Graph().RelationTypes(),
		NumTerms:      e.NumTerms(),
	})
}

func parseTermParam(c echo.Context) (termid.TermID, error) {
	return termid.Parse(c.Param("id"))
}

// GetTermHandler returns a term by primary or alternate id together with
// its information content.
func GetTermHandler(c echo.Context) error {
	type termResponse struct {
		*ontology.Term
		IC *float64 `json:"ic,omitempty"`
	}

	id, err := parseTermParam(c)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}
	e := c.(*middleware.AppContext).App.Engine
	t, err := e.Ontology().Lookup(id)
	if err != nil {
		return errorJSON(c, http.StatusNotFound, err.Error())
	}

	res := termResponse{Term: t}
	if ic, ok := e.Resnik().IC(t.ID); ok {
		res.IC = &ic
	}
	return c.JSON(http.StatusOK, res)
}

// GetAncestorsHandler lists the ancestors of a term. include_self=true adds
// the term itself.
func GetAncestorsHandler(c echo.Context) error {
	return closureHandler(c, (*ontology.MinimalOntology).Ancestors)
}

func GetDescendantsHandler(c echo.Context) error {
	return closureHandler(c, (*ontology.MinimalOntology).Descendants)
}

func closureHandler(c echo.Context, closure func(*ontology.MinimalOntology, termid.TermID, bool) ([]termid.TermID, error)) error {
	type closureResponse struct {
		ID    termid.TermID   `json:"id"`
		Terms []termid.TermID `json:"terms"`
	}

	id, err := parseTermParam(c)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}
	includeSelf, _ := strconv.ParseBool(c.QueryParam("include_self"))

	o := c.(*middleware.AppContext).App.Engine.Ontology()
	if primary, ok := o.PrimaryTermID(id); ok {
		id = primary
	}
	terms, err := closure(o, id, includeSelf)
	if errors.Is(err, graph.ErrNodeNotPresent) {
		return errorJSON(c, http.StatusNotFound, err.Error())
	}
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	if terms == nil {
		terms = []termid.TermID{}
	}
	return c.JSON(http.StatusOK, closureResponse{ID: id, Terms: terms})
}
