package users

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/accessd/accessd/internal/access"
	"github.com/accessd/accessd/internal/server/handlers/api"
)

type Handler struct {
	store *access.Store
}

func New(store *access.Store) *Handler {
	return &Handler{store: store}
}

// List returns every known user.
func (h *Handler) List(ctx *gin.Context) {
	users := h.store.ListUsers()
	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	ctx.PureJSON(http.StatusOK, out)
}

// Get returns one user with their permission records.
func (h *Handler) Get(ctx *gin.Context) {
	username := ctx.Param("username")

	user, err := h.store.GetUser(username)
	if err != nil {
		api.AbortWithAccessError(ctx, err)
		return
	}
	perms, err := h.store.ListForUser(username)
	if err != nil {
		api.AbortWithAccessError(ctx, err)
		return
	}

	ctx.PureJSON(http.StatusOK, &UserDetailResponse{
		UserResponse: toUserResponse(user),
		Permissions:  perms,
	})
}

// ListPermissions returns the user's permission records.
func (h *Handler) ListPermissions(ctx *gin.Context) {
	perms, err := h.store.ListForUser(ctx.Param("username"))
	if err != nil {
		api.AbortWithAccessError(ctx, err)
		return
	}
	ctx.PureJSON(http.StatusOK, perms)
}

// SetDefaultAccess replaces the user's fallback action.
func (h *Handler) SetDefaultAccess(ctx *gin.Context) {
	var req SetDefaultAccessRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, err)
		return
	}

	action, err := access.ParseAction(req.Action)
	if err != nil {
		api.AbortWithAccessError(ctx, err)
		return
	}

	user, err := h.store.SetDefaultAccess(ctx.Request.Context(), ctx.Param("username"), action)
	if err != nil {
		api.AbortWithAccessError(ctx, err)
		return
	}
	ctx.PureJSON(http.StatusOK, toUserResponse(user))
}

// Delete removes the user and all their permission records. The acting
// identity comes from the auth middleware and may not delete itself.
func (h *Handler) Delete(ctx *gin.Context) {
	actor := ctx.GetString("user")
	username := ctx.Param("username")

	removed, err := h.store.DeleteUser(ctx.Request.Context(), actor, username)
	if err != nil {
		api.AbortWithAccessError(ctx, err)
		return
	}

	ctx.PureJSON(http.StatusOK, &DeleteUserResponse{
		Username:     username,
		RemovedCount: removed,
	})
}

// Me returns the acting identity.
func (h *Handler) Me(ctx *gin.Context) {
	user, err := h.store.GetUser(ctx.GetString("user"))
	if err != nil {
		api.AbortWithAccessError(ctx, err)
		return
	}
	ctx.PureJSON(http.StatusOK, toUserResponse(user))
}

// MePermissions returns the acting identity's permission records.
func (h *Handler) MePermissions(ctx *gin.Context) {
	perms, err := h.store.ListForUser(ctx.GetString("user"))
	if err != nil {
		api.AbortWithAccessError(ctx, err)
		return
	}
	ctx.PureJSON(http.StatusOK, perms)
}

// RegenerateToken issues a fresh access token for the acting identity. The
// plaintext token appears in this response only.
func (h *Handler) RegenerateToken(ctx *gin.Context) {
	token, err := h.store.RegenerateToken(ctx.Request.Context(), ctx.GetString("user"))
	if err != nil {
		api.AbortWithAccessError(ctx, err)
		return
	}
	ctx.PureJSON(http.StatusOK, &TokenResponse{Token: token})
}

// RevokeToken removes the acting identity's access token.
func (h *Handler) RevokeToken(ctx *gin.Context) {
	if err := h.store.RevokeToken(ctx.Request.Context(), ctx.GetString("user")); err != nil {
		api.AbortWithAccessError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}
