package middleware

import (
	"context"

	"github.com/OFFIS-RIT/ontokit/internal/analysis"
	"github.com/OFFIS-RIT/ontokit/internal/queue"
	"github.com/OFFIS-RIT/ontokit/pkg/stats"
	"github.com/OFFIS-RIT/ontokit/pkg/store"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type AppUser struct {
	UserID      int64
	Role        string
	Permissions []string
}

// ArtifactLinker hands out download links for stored artifacts.
type ArtifactLinker interface {
	DownloadLink(ctx context.Context, key string) (string, error)
}

type App struct {
	Engine     *analysis.Engine
	Store      store.DistributionStorage
	Queue      queue.Publisher
	Artifacts  ArtifactLinker
	Key        jwt.Keyfunc
	Correction stats.Method

	MasterAPIKey   string
	MasterUserID   int64
	MasterUserRole string
}

type AppContext struct {
	echo.Context
	App  *App
	User *AppUser
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app, nil}
			return next(cc)
		}
	}
}
