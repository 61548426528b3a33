package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/ontokit/pkg/stats"

	"github.com/labstack/echo/v4"
)

// CorrectHandler adjusts a list of raw p-values. Results keep the order of
// the input.
func CorrectHandler(c echo.Context) error {
	type correctBody struct {
		PValues []float64 `json:"p_values" validate:"required,min=1,dive,min=0,max=1"`
		Method  string    `json:"method" validate:"required"`
	}
	type correctResponse struct {
		Method   stats.Method `json:"method"`
		Adjusted []float64    `json:"adjusted"`
	}

	data := new(correctBody)
	if err := c.Bind(data); err != nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(data); err != nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid request body")
	}
	method, err := stats.ParseMethod(data.Method)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}

	items := make([]stats.Item2PValue[int], len(data.PValues))
	for i, p := range data.PValues {
		items[i] = stats.NewItem2PValue(i, p)
	}
	if err := stats.Adjust(method, items); err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}

	adjusted := make([]float64, len(items))
	for _, it := range items {
		adjusted[it.Item] = it.Adjusted
	}
	return c.JSON(http.StatusOK, correctResponse{Method: method, Adjusted: adjusted})
}
