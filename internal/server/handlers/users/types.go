package users

import "github.com/accessd/accessd/internal/access"

type UserResponse struct {
	Username      string        `json:"username"`
	Name          string        `json:"name"`
	DefaultAccess access.Action `json:"defaultAccess"`
}

type UserDetailResponse struct {
	UserResponse
	Permissions []*access.Permission `json:"permissions"`
}

type SetDefaultAccessRequest struct {
	Action string `json:"action" binding:"required"`
}

type DeleteUserResponse struct {
	Username     string `json:"username"`
	RemovedCount int64  `json:"removedCount"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

func toUserResponse(u access.User) UserResponse {
	return UserResponse{
		Username:      u.Username,
		Name:          u.Name,
		DefaultAccess: u.DefaultAccess,
	}
}
