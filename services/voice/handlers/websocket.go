package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/AleutianAI/AleutianVoice/services/rag"
	"github.com/AleutianAI/AleutianVoice/services/voice/observability"
	"github.com/AleutianAI/AleutianVoice/services/voice/session"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,
}

// HandleASRWebSocket upgrades the connection and hands it to a fresh
// protocol engine. The engine owns the connection until the client stops
// or disconnects.
func HandleASRWebSocket(client rag.Client, metrics *observability.Metrics, chunkSize int) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("failed to upgrade the websocket", "error", err)
			return
		}
		defer ws.Close()

		state := session.NewState(uuid.New().String())
		writer := session.NewFrameWriter(ws)
		ctrl := session.NewController(writer, client, metrics, chunkSize)
		engine := session.NewEngine(ws, writer, ctrl, state, metrics)
		engine.Run(c.Request.Context())
	}
}
