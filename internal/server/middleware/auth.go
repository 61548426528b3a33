package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var allPermissions = []string{
	"sampling.create",
	"sampling.view",
	"distributions.reload",
}

func unauthorized(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, map[string]string{"error": msg})
}

func AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		token, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || token == "" {
			return unauthorized(c, "Unauthorized")
		}

		ac := c.(*AppContext)
		app := ac.App

		// Master API Key bypass
		if app.MasterAPIKey != "" && app.MasterUserID != 0 && app.MasterUserRole != "" && token == app.MasterAPIKey {
			ac.User = &AppUser{
				UserID:      app.MasterUserID,
				Role:        app.MasterUserRole,
				Permissions: allPermissions,
			}
			return next(c)
		}

		if app.Key == nil {
			return unauthorized(c, "Unauthorized")
		}
		parsed, err := jwt.Parse(token, app.Key)
		if err != nil || !parsed.Valid {
			return unauthorized(c, "Unauthorized")
		}

		claims, ok := parsed.Claims.(jwt.MapClaims)
		if !ok {
			return unauthorized(c, "Unauthorized")
		}

		var userID int64
		switch id := claims["id"].(type) {
		case string:
			userID, err = strconv.ParseInt(id, 10, 64)
			if err != nil {
				return unauthorized(c, "Invalid user ID")
			}
		case float64:
			userID = int64(id)
		default:
			return unauthorized(c, "Invalid user ID")
		}

		role := "user"
		if roleClaim, ok := claims["role"].(string); ok {
			role = roleClaim
		}

		var permissions []string
		if permsClaim, ok := claims["permissions"].([]any); ok {
			for _, p := range permsClaim {
				if pStr, ok := p.(string); ok {
					permissions = append(permissions, pStr)
				}
			}
		}

		if role == "admin" && len(permissions) == 0 {
			permissions = allPermissions
		}

		ac.User = &AppUser{
			UserID:      userID,
			Role:        role,
			Permissions: permissions,
		}

		return next(c)
	}
}
