package routes

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/OFFIS-RIT/ontokit/internal/queue"
	"github.com/OFFIS-RIT/ontokit/internal/server/middleware"
	"github.com/OFFIS-RIT/ontokit/pkg/logger"
	"github.com/OFFIS-RIT/ontokit/pkg/sampling"
	"github.com/OFFIS-RIT/ontokit/pkg/store"

	"github.com/labstack/echo/v4"
)

// CreateSamplingJobHandler stores a sampling job for the served ontology
// and enqueues it for the worker. Fields left out of options keep their
// defaults.
func CreateSamplingJobHandler(c echo.Context) error {
	type createJobBody struct {
		Options *sampling.Options `json:"options"`
	}

	defaults := sampling.DefaultOptions()
	data := &createJobBody{Options: &defaults}
	if err := c.Bind(data); err != nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid request body")
	}

	opts := sampling.DefaultOptions()
	if data.Options != nil {
		opts = *data.Options
	}
	if err := opts.Validate(); err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App
	if app.Queue == nil {
		return errorJSON(c, http.StatusServiceUnavailable, "Sampling queue is not configured")
	}

	job, err := app.Store.CreateJob(ctx, store.Job{Ontology: app.Engine.ID(), Options: opts})
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	if err := queue.PublishSamplingJob(ctx, app.Queue, job); err != nil {
		logger.Error("Failed to enqueue sampling job", "job_id", job.ID, "err", err)
		_ = app.Store.UpdateJob(ctx, job.ID, store.JobFailed, "failed to enqueue", "")
		return errorJSON(c, http.StatusInternalServerError, "Failed to enqueue sampling job")
	}

	logger.Info("Queued sampling job", "job_id", job.ID, "ontology", job.Ontology)
	return c.JSON(http.StatusAccepted, job)
}

func ListSamplingJobsHandler(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	jobs, err := c.(*middleware.AppContext).App.Store.ListJobs(c.Request().Context(), limit)
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, jobs)
}

// GetSamplingJobHandler returns a job. Completed jobs with an uploaded
// artifact carry a short lived download link.
func GetSamplingJobHandler(c echo.Context) error {
	type jobResponse struct {
		store.Job
		DownloadURL string `json:"download_url,omitempty"`
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App
	job, err := app.Store.GetJob(ctx, c.Param("id"))
	if errors.Is(err, store.ErrJobNotFound) {
		return errorJSON(c, http.StatusNotFound, err.Error())
	}
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}

	res := jobResponse{Job: job}
	if job.ArtifactKey != "" && app.Artifacts != nil {
		link, err := app.Artifacts.DownloadLink(ctx, job.ArtifactKey)
		if err != nil {
			logger.Warn("Failed to create download link", "job_id", job.ID, "err", err)
		} else {
			res.DownloadURL = link
		}
	}
	return c.JSON(http.StatusOK, res)
}

// ReloadDistributionsHandler replaces the served distributions with the
// stored ones, e.g. after a sampling job finished.
func ReloadDistributionsHandler(c echo.Context) error {
	app := c.(*middleware.AppContext).App
	if err := app.Engine.LoadDistributions(c.Request().Context(), app.Store); err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"term_counts": app.Engine.NumTerms()})
}
