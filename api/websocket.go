package api

import (
	"artemis/service"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10 // 54 seconds
	maxMessageSize = 64 * 1024
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Dashboards and gateways are served from other origins
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// Client is one dashboard connection fed by a hub subscription.
type Client struct {
	conn     *websocket.Conn
	sub      *service.Subscription
	pipeline *service.Pipeline
}

// HandleWebSocket upgrades a dashboard connection and streams events to it,
// starting with a registry snapshot.
func HandleWebSocket(p *service.Pipeline, c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	status := gin.H{"type": "connection_status", "status": "connected", "message": "Connected to server"}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(status); err != nil {
		conn.Close()
		return
	}

	client := &Client{
		conn:     conn,
		sub:      p.Subscribe(),
		pipeline: p,
	}

	go client.writePump()
	go client.readPump()
}

// readPump only services control frames; dashboards do not send data. It
// releases the subscription when the peer goes away.
func (c *Client) readPump() {
	defer func() {
		c.sub.Close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.WithError(err).Warn("WebSocket error")
			}
			return
		}
	}
}

// writePump forwards subscription events as JSON text frames, plus pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.sub.Close()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.sub.Events():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			payload, err := json.Marshal(event)
			if err != nil {
				log.WithError(err).Error("Failed to marshal event")
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.WithError(err).WithField("subscriber", c.sub.ID).Info("Subscriber unreachable, dropping")
				return
			}
			if c.sub.Lagged() {
				c.pipeline.Resync(c.sub)
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// HandleIngestSocket accepts a message stream from a relay. Each text frame
// is one ingest message; invalid frames are skipped without closing the
// stream. The connection is closed when ctx ends.
func HandleIngestSocket(ctx context.Context, p *service.Pipeline, c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.WithError(err).Warn("Ingest upgrade failed")
		return
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	remote := conn.RemoteAddr().String()
	log.WithField("remote", remote).Info("🔌 Relay connected")

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	})

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).WithField("remote", remote).Warn("Relay stream error")
			}
			log.WithField("remote", remote).Info("Relay disconnected")
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))
		if messageType != websocket.TextMessage {
			continue
		}
		if err := p.IngestJSON(data); err != nil && !errors.Is(err, service.ErrInvalidMessage) {
			log.WithError(err).WithField("remote", remote).Error("Ingest failed")
		}
	}
}
