package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/zbgw/gatewayd/internal/wsbroadcast"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsHandler upgrades GET /ws and registers the connection with the
// broadcaster. The read loop only drains incoming frames (the gateway's
// streams are all server-to-client); it exists to detect client
// disconnects and to let gorilla answer control frames (ping/pong,
// close).
func wsHandler(b *wsbroadcast.Broadcaster) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}
		client := b.AddClient(conn)
		if client == nil {
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		b.RemoveClient(client)
	}
}
