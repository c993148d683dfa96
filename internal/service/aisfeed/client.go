package aisfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"LaneRisk/internal/domain/models"
	drepo "LaneRisk/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Client implements a SignalStream backed by an AIS anomaly feed WebSocket.
// The feed emits vessel-movement anomalies per shipping lane; each anomaly
// is mapped to a risk signal against the lane's factor graph.
type Client struct {
	apiKey          string
	websocketURL    string
	lanes           []string
	reconnectDelay  time.Duration
	pingInterval    time.Duration
	defaultHalfLife time.Duration

	conn      *websocket.Conn
	connected bool
}

// New creates a new AIS SignalStream.
func New(apiKey, websocketURL string, lanes []string, reconnectDelay, pingInterval, defaultHalfLife time.Duration) drepo.SignalStream {
	return &Client{
		apiKey:          apiKey,
		websocketURL:    websocketURL,
		lanes:           lanes,
		reconnectDelay:  reconnectDelay,
		pingInterval:    pingInterval,
		defaultHalfLife: defaultHalfLife,
	}
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	u := fmt.Sprintf("%s?token=%s", c.websocketURL, c.apiKey)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("aisfeed connect: %w", err)
	}
	c.conn = conn
	c.connected = true
	log.Printf("aisfeed: connected")
	return nil
}

// Subscribe subscribes to configured lanes.
func (c *Client) Subscribe(ctx context.Context) error {
	if c.conn == nil || !c.connected {
		return fmt.Errorf("aisfeed not connected")
	}
	for _, lane := range c.lanes {
		msg := map[string]string{"type": "subscribe", "lane": lane}
		if err := c.conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", lane, err)
		}
		log.Printf("aisfeed: subscribed %s", lane)
	}
	return nil
}

type aisAnomaly struct {
	Lane      string   `json:"lane"`
	Factor    string   `json:"factor"`
	Severity  float64  `json:"severity"`
	Direction string   `json:"direction"`
	Topic     string   `json:"topic"`
	Tags      []string `json:"tags"`
	T         int64    `json:"t"` // ms
}

type aisMessage struct {
	Type string       `json:"type"`
	Data []aisAnomaly `json:"data"`
}

// Read streams Signal events and errors.
func (c *Client) Read(ctx context.Context) (<-chan *models.Signal, <-chan error) {
	signals := make(chan *models.Signal, 1024)
	errs := make(chan error, 1)

	// ping loop
	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if c.conn != nil {
					_ = c.conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(signals)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if c.conn == nil {
					errs <- fmt.Errorf("aisfeed conn nil")
					return
				}
				_, b, err := c.conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("aisfeed read: %w", err)
					return
				}
				var m aisMessage
				if err := json.Unmarshal(b, &m); err != nil {
					// ignore non-anomaly frames
					continue
				}
				if m.Type != "anomaly" {
					continue
				}
				for _, d := range m.Data {
					sig := c.toSignal(d)
					select {
					case signals <- sig:
					default:
						// drop on backpressure
					}
				}
			}
		}
	}()

	return signals, errs
}

func (c *Client) toSignal(a aisAnomaly) *models.Signal {
	dir := models.DirectionIncrease
	if a.Direction == string(models.DirectionDecrease) {
		dir = models.DirectionDecrease
	}
	return &models.Signal{
		ID:              uuid.NewString(),
		EntityID:        a.Lane,
		Source:          models.SourceAIS,
		FactorID:        a.Factor,
		Strength:        a.Severity,
		Direction:       dir,
		ObservedAt:      time.UnixMilli(a.T).UTC(),
		DecayHalfLife:   c.defaultHalfLife,
		Topic:           a.Topic,
		TopicTags:       a.Tags,
	}
}

// Reconnect closes and reconnects.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	time.Sleep(c.reconnectDelay)
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.connected = false
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool { return c.connected }
