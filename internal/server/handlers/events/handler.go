package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"

	"github.com/accessd/accessd/internal/access"
	"github.com/accessd/accessd/internal/server/handlers/api"
)

const (
	subscriberBuffer = 64
	writeTimeout     = 5 * time.Second
)

// InvalidationEvent tells a downstream cache that a user's permission set
// changed and any decisions held for them must be dropped or refreshed.
type InvalidationEvent struct {
	User string    `json:"user"`
	Time time.Time `json:"time"`
}

// Handler streams permission invalidation events over a websocket, one
// subscription per connection.
type Handler struct {
	notifier *access.ChangeNotifier
}

func New(notifier *access.ChangeNotifier) *Handler {
	return &Handler{notifier: notifier}
}

func (h *Handler) Stream(ctx *gin.Context) {
	conn, err := websocket.Accept(ctx.Writer, ctx.Request, nil)
	if err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	events, cancel := h.notifier.Subscribe(subscriberBuffer)
	defer cancel()

	// CloseRead surfaces client disconnects as context cancellation.
	connCtx := conn.CloseRead(ctx.Request.Context())
	user := ctx.GetString("user")
	slog.Debug("event stream opened", "user", user)
	defer slog.Debug("event stream closed", "user", user)

	for {
		select {
		case <-connCtx.Done():
			return
		case username, ok := <-events:
			if !ok {
				return
			}
			if err := h.write(connCtx, conn, username); err != nil {
				slog.Debug("event stream write failed", "user", user, "error", err)
				return
			}
		}
	}
}

func (h *Handler) write(ctx context.Context, conn *websocket.Conn, username string) error {
	payload, err := json.Marshal(&InvalidationEvent{
		User: username,
		Time: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, payload)
}
