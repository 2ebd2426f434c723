package clients

import (
	"fmt"
	"log"
	"time"

	"hako-backend/internal/config"
	"hako-backend/internal/metrics"

	"github.com/nats-io/nats.go"
)

// NATSClient wraps a JetStream connection used to publish ledger audit events.
type NATSClient struct {
	conn       *nats.Conn
	js         nats.JetStreamContext
	streamName string
	prefix     string
}

// NewNATSClient connects to NATS and provisions the ledger event stream.
func NewNATSClient(url, streamName, subjectPrefix string) (*NATSClient, error) {
	connectTimeout := 10 * time.Second
	if config.AppConfig != nil && config.AppConfig.NATS.Timeout > 0 {
		connectTimeout = time.Duration(config.AppConfig.NATS.Timeout) * time.Second
	}

	conn, err := nats.Connect(url,
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Printf("NATS disconnected: %v", err)
			metrics.NATSConnectionStatus.Set(0)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("NATS reconnected")
			metrics.NATSConnectionStatus.Set(1)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	client := &NATSClient{
		conn:       conn,
		js:         js,
		streamName: streamName,
		prefix:     subjectPrefix,
	}

	if err := client.ensureStream(); err != nil {
		conn.Close()
		return nil, err
	}

	metrics.NATSConnectionStatus.Set(1)
	log.Printf("✅ NATS client connected, stream %s ready", streamName)

	return client, nil
}

// ensureStream creates the event stream if it does not exist yet.
func (c *NATSClient) ensureStream() error {
	_, err := c.js.StreamInfo(c.streamName)
	if err == nil {
		return nil
	}

	streamConfig := &nats.StreamConfig{
		Name:      c.streamName,
		Subjects:  []string{c.prefix + ".>"},
		Retention: nats.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
		Storage:   nats.FileStorage,
	}

	if _, err := c.js.AddStream(streamConfig); err != nil {
		return fmt.Errorf("failed to create stream %s: %w", c.streamName, err)
	}

	log.Printf("✅ Created stream %s", c.streamName)
	return nil
}

// Publish sends a payload on <prefix>.<networkID>.<eventType>.
func (c *NATSClient) Publish(networkID uint32, eventType string, data []byte) error {
	subject := fmt.Sprintf("%s.%d.%s", c.prefix, networkID, eventType)
	if _, err := c.js.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish %s: %w", subject, err)
	}
	metrics.EventsPublished.WithLabelValues(eventType).Inc()
	return nil
}

// Close shuts the connection down.
func (c *NATSClient) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}

// GetConnection exposes the raw NATS connection.
func (c *NATSClient) GetConnection() *nats.Conn {
	return c.conn
}
