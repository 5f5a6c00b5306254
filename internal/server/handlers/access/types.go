package access

import "github.com/accessd/accessd/internal/access"

type ResolveRequest struct {
	User string `form:"user" binding:"required"`
	Path string `form:"path" binding:"required"`
}

type ResolveResponse struct {
	User   string        `json:"user"`
	Path   string        `json:"path"`
	Action access.Action `json:"action"`
}

type CheckRequest struct {
	User  string `form:"user" binding:"required"`
	Path  string `form:"path" binding:"required"`
	Level string `form:"level" binding:"required"`
}

type CheckResponse struct {
	User    string        `json:"user"`
	Path    string        `json:"path"`
	Level   access.Action `json:"level"`
	Allowed bool          `json:"allowed"`
}

type AssignRequest struct {
	Owner           string `json:"owner" binding:"required"`
	Path            string `json:"path" binding:"required"`
	Action          string `json:"action" binding:"required"`
	AffectsChildren bool   `json:"affectsChildren"`
}

type RevokeResponse struct {
	ID      int64 `json:"id"`
	Revoked bool  `json:"revoked"`
}
