package websocket

import (
	"context"
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	domainJob "github.com/reelforge/reelforge/domains/job"
	"github.com/reelforge/reelforge/infrastructure/valkey"
	"github.com/sirupsen/logrus"
	valkeylib "github.com/valkey-io/valkey-go"
)

type client struct {
	userID string
}

// ProgressMessage is the envelope pushed to subscribed clients on every
// persisted job state change.
type ProgressMessage struct {
	Code     string `json:"code"`
	UserID   string `json:"user_id"`
	Result   any    `json:"result"`
	SenderID string `json:"sender_id,omitempty"`
}

var (
	Clients    = make(map[*websocket.Conn]client)
	Register   = make(chan *websocket.Conn)
	Broadcast  = make(chan ProgressMessage)
	Unregister = make(chan *websocket.Conn)

	vkClient *valkey.Client
	wsChan   = "ws:progress"
	localID  string
)

// SetValkeyClient enables cross-instance fan-out of progress events.
func SetValkeyClient(c *valkey.Client, serverID string) {
	vkClient = c
	localID = serverID
}

// PublishProgress is wired as the pipeline engine's progress callback.
func PublishProgress(v domainJob.Video) {
	code := "JOB_PROGRESS"
	if v.Status == domainJob.StatusCompleted {
		code = "JOB_COMPLETED"
	} else if v.Status == domainJob.StatusFailed {
		code = "JOB_FAILED"
	}
	Broadcast <- ProgressMessage{Code: code, UserID: v.UserID, Result: v}
}

func handleRegister(conn *websocket.Conn) {
	Clients[conn] = client{userID: conn.Query("user_id")}
	logrus.Debug("[WS] Connection registered")
}

func handleUnregister(conn *websocket.Conn) {
	delete(Clients, conn)
	logrus.Debug("[WS] Connection unregistered")
}

// broadcastToLocal delivers only to connections owned by the event's user.
func broadcastToLocal(message ProgressMessage) {
	data, err := json.Marshal(message)
	if err != nil {
		logrus.Errorf("[WS] Marshal error: %v", err)
		return
	}

	for conn, cl := range Clients {
		if cl.userID != "" && cl.userID != message.UserID {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			logrus.Errorf("[WS] Write error: %v", err)
			closeConnection(conn)
		}
	}
}

func publishToValkey(message ProgressMessage) {
	if vkClient == nil {
		return
	}
	message.SenderID = localID
	data, err := json.Marshal(message)
	if err != nil {
		return
	}
	if err := vkClient.Publish(context.Background(), wsChan, string(data)); err != nil {
		logrus.Errorf("[WS] Failed to publish to Valkey: %v", err)
	}
}

func startValkeySubscriber() {
	logrus.Info("[WS] Starting Valkey Pub/Sub subscriber for distributed progress events")
	go func() {
		channel := vkClient.Key(wsChan)
		err := vkClient.Inner().Receive(context.Background(), vkClient.Inner().B().Subscribe().Channel(channel).Build(), func(msg valkeylib.PubSubMessage) {
			var progress ProgressMessage
			if err := json.Unmarshal([]byte(msg.Message), &progress); err == nil {
				// Ignore our own events; they were already delivered locally.
				if progress.SenderID == localID {
					return
				}
				broadcastToLocal(progress)
			}
		})
		if err != nil {
			logrus.Errorf("[WS] Valkey subscriber failed: %v", err)
		}
	}()
}

func closeConnection(conn *websocket.Conn) {
	_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
	_ = conn.Close()
	delete(Clients, conn)
}

func RunHub() {
	if vkClient != nil {
		startValkeySubscriber()
	}

	for {
		select {
		case conn := <-Register:
			handleRegister(conn)
		case conn := <-Unregister:
			handleUnregister(conn)
		case message := <-Broadcast:
			broadcastToLocal(message)
			if vkClient != nil {
				publishToValkey(message)
			}
		}
	}
}

// RegisterRoutes mounts the progress stream at /ws. Clients pass their
// user id as a query parameter and receive only their own job events.
func RegisterRoutes(app fiber.Router) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	})

	app.Get("/ws", websocket.New(func(conn *websocket.Conn) {
		defer func() {
			Unregister <- conn
			_ = conn.Close()
		}()

		Register <- conn

		// The stream is one-way; reads only detect disconnects.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					logrus.Debugf("[WS] Read error: %v", err)
				}
				return
			}
		}
	}))
}
