package routes

import (
	"errors"
	"net/http"

	"github.com/OFFIS-RIT/ontokit/internal/analysis"
	"github.com/OFFIS-RIT/ontokit/internal/server/middleware"
	"github.com/OFFIS-RIT/ontokit/pkg/graph"
	"github.com/OFFIS-RIT/ontokit/pkg/stats"
	"github.com/OFFIS-RIT/ontokit/pkg/termid"

	"github.com/labstack/echo/v4"
)

// GetSimilarityHandler returns the Resnik similarity of two terms and their
// most informative common ancestor.
func GetSimilarityHandler(c echo.Context) error {
	type similarityResponse struct {
		A          termid.TermID `json:"a"`
		B          termid.TermID `json:"b"`
		Similarity float64       `json:"similarity"`
		MICA       termid.TermID `json:"mica"`
	}

	a, errA := termid.Parse(c.QueryParam("a"))
	b, errB := termid.Parse(c.QueryParam("b"))
	if err := errors.Join(errA, errB); err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}

	e := c.(*middleware.AppContext).App.Engine
	o := e.Ontology()
	if p, ok := o.PrimaryTermID(a); ok {
		a = p
	}
	if p, ok := o.PrimaryTermID(b); ok {
		b = p
	}
	mica, score, err := e.Resnik().MICA(a, b)
	if errors.Is(err, graph.ErrNodeNotPresent) {
		return errorJSON(c, http.StatusNotFound, err.Error())
	}
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, similarityResponse{A: a, B: b, Similarity: score, MICA: mica})
}

type queryBody struct {
	ObjectID int      `json:"object_id" validate:"min=0"`
	Terms    []string `json:"terms" validate:"required,min=1,dive,required"`
}

func (q queryBody) query() (analysis.Query, error) {
	ids, err := termid.ParseAll(q.Terms)
	if err != nil {
		return analysis.Query{}, err
	}
	return analysis.Query{ObjectID: q.ObjectID, Terms: ids}, nil
}

// ScoreHandler scores one term set against one object.
func ScoreHandler(c echo.Context) error {
	data := new(queryBody)
	if err := c.Bind(data); err != nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(data); err != nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid request body")
	}
	q, err := data.query()
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}

	e := c.(*middleware.AppContext).App.Engine
	return c.JSON(http.StatusOK, e.Score(q))
}

// ScoreBatchHandler scores many queries and adjusts their p-values with the
// requested correction, defaulting to the configured one.
func ScoreBatchHandler(c echo.Context) error {
	type scoreBatchBody struct {
		Queries    []queryBody `json:"queries" validate:"required,min=1,dive"`
		Correction string      `json:"correction"`
	}
	type scoreBatchResponse struct {
		Correction stats.Method     `json:"correction"`
		Scores     []analysis.Score `json:"scores"`
	}

	data := new(scoreBatchBody)
	if err := c.Bind(data); err != nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(data); err != nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid request body")
	}

	app := c.(*middleware.AppContext).App
	method := app.Correction
	if data.Correction != "" {
		m, err := stats.ParseMethod(data.Correction)
		if err != nil {
			return errorJSON(c, http.StatusBadRequest, err.Error())
		}
		method = m
	}

	queries := make([]analysis.Query, len(data.Queries))
	for i, qb := range data.Queries {
		q, err := qb.query()
		if err != nil {
			return errorJSON(c, http.StatusBadRequest, err.Error())
		}
		queries[i] = q
	}

	scores, err := app.Engine.ScoreBatch(queries, method)
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, scoreBatchResponse{Correction: method, Scores: scores})
}
