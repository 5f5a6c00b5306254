package access

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/accessd/accessd/internal/access"
	"github.com/accessd/accessd/internal/server/handlers/api"
)

type Handler struct {
	resolver *access.Resolver
	store    *access.Store
}

func New(resolver *access.Resolver, store *access.Store) *Handler {
	return &Handler{
		resolver: resolver,
		store:    store,
	}
}

// Resolve answers the highest action the user may perform at the path.
func (h *Handler) Resolve(ctx *gin.Context) {
	var req ResolveRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, err)
		return
	}

	action, err := h.resolver.Resolve(ctx.Request.Context(), req.User, req.Path)
	if err != nil {
		api.AbortWithAccessError(ctx, err)
		return
	}

	ctx.PureJSON(http.StatusOK, &ResolveResponse{
		User:   req.User,
		Path:   req.Path,
		Action: action,
	})
}

// Check verifies the user holds at least the requested level at the path.
func (h *Handler) Check(ctx *gin.Context) {
	var req CheckRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, err)
		return
	}

	level, err := access.ParseAction(req.Level)
	if err != nil {
		api.AbortWithAccessError(ctx, err)
		return
	}

	if err := h.resolver.Require(ctx.Request.Context(), req.User, req.Path, level); err != nil {
		api.AbortWithAccessError(ctx, err)
		return
	}

	ctx.PureJSON(http.StatusOK, &CheckResponse{
		User:    req.User,
		Path:    req.Path,
		Level:   level,
		Allowed: true,
	})
}

// Assign creates a new permission record.
func (h *Handler) Assign(ctx *gin.Context) {
	var req AssignRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, err)
		return
	}

	action, err := access.ParseAction(req.Action)
	if err != nil {
		api.AbortWithAccessError(ctx, err)
		return
	}

	perm, err := h.store.Assign(ctx.Request.Context(), req.Owner, req.Path, action, req.AffectsChildren)
	if err != nil {
		api.AbortWithAccessError(ctx, err)
		return
	}

	ctx.PureJSON(http.StatusCreated, perm)
}

// Revoke deletes a permission record by id.
func (h *Handler) Revoke(ctx *gin.Context) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest,
			fmt.Errorf("invalid permission id %q", ctx.Param("id")))
		return
	}

	if err := h.store.Revoke(ctx.Request.Context(), id); err != nil {
		api.AbortWithAccessError(ctx, err)
		return
	}

	ctx.PureJSON(http.StatusOK, &RevokeResponse{ID: id, Revoked: true})
}
