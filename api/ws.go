package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const writeWait = 2 * time.Second

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// wsMessage 客户端发来的消息
type wsMessage struct {
	Type string `json:"type"` // "key" 或 "restart"
	Key  string `json:"key,omitempty"`
}

// StreamHandler pushes a snapshot after every state transition and
// accepts key and restart messages from the client.
func StreamHandler(game Game) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("upgrade error: %v", err)
			return
		}

		sub, cancel := game.Subscribe(16)
		defer cancel()

		ctx := c.Request.Context()
		readDone := make(chan struct{})
		// 关闭连接后等读协程退出，gin.Context 会被复用
		defer func() {
			conn.Close()
			<-readDone
		}()
		go func() {
			defer close(readDone)
			for {
				_, data, err := conn.ReadMessage()
				if err != nil {
					return
				}
				var msg wsMessage
				if err := json.Unmarshal(data, &msg); err != nil {
					continue
				}
				handleClientMessage(ctx, game, msg)
			}
		}()

		// 先发一次完整状态
		if err := writeJSON(conn, game.Snapshot()); err != nil {
			return
		}
		for {
			select {
			case <-readDone:
				return
			case <-ctx.Done():
				return
			case snap, ok := <-sub:
				if !ok {
					conn.SetWriteDeadline(time.Now().Add(writeWait))
					conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "game closed"))
					return
				}
				if err := writeJSON(conn, snap); err != nil {
					return
				}
			}
		}
	}
}

func handleClientMessage(ctx context.Context, game Game, msg wsMessage) {
	var err error
	switch msg.Type {
	case "key":
		_, err = game.Press(ctx, msg.Key)
	case "restart":
		_, err = game.Restart(ctx)
	}
	if err != nil {
		log.Printf("ws %s: %v", msg.Type, err)
	}
}

func writeJSON(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}
