package middlewares

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/accessd/accessd/internal/access"
	"github.com/accessd/accessd/internal/server/handlers/api"
)

// Identity establishes who is calling. Two methods are tried in order:
//
//  1. SSO proxy headers (Remote-User, Remote-Name) set by a trusted reverse
//     proxy; the user is upserted on first sight.
//  2. HTTP basic auth checked against the user's stored access token.
//
// On success the verified username lands in the request context under
// "user"; everything downstream trusts it.
func Identity(store *access.Store) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if username := ctx.GetHeader("Remote-User"); username != "" {
			name := ctx.GetHeader("Remote-Name")
			user, err := store.EnsureUser(ctx.Request.Context(), username, name)
			if err != nil {
				api.AbortWithAccessError(ctx, err)
				return
			}
			ctx.Set("user", user.Username)
			ctx.Next()
			return
		}

		if username, token, ok := ctx.Request.BasicAuth(); ok {
			if store.VerifyToken(username, token) {
				ctx.Set("user", username)
				ctx.Next()
				return
			}
		}

		ctx.Header("WWW-Authenticate", `Basic realm="accessd"`)
		api.AbortWithError(ctx, http.StatusUnauthorized, api.CodeUnauthorized,
			errors.New("missing or invalid credentials"))
	}
}

// RequireAdmin gates administrative endpoints on the acting identity
// holding Admin default access.
func RequireAdmin(store *access.Store) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		actor := ctx.GetString("user")
		user, err := store.GetUser(actor)
		if err != nil || user.DefaultAccess != access.ActionAdmin {
			api.AbortWithError(ctx, http.StatusForbidden, api.CodeForbidden,
				fmt.Errorf("user %q is not an admin", actor))
			return
		}
		ctx.Next()
	}
}
