// Package events publishes memory notifications over NATS.
//
// The desktop UI subscribes to these to refresh its live memory view
// without polling. They are purely a freshness hint: the on-disk store
// remains the only source of truth across processes, and the engine's
// consistency contract does not depend on any event arriving.
package events

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/promptpad/memoryd/internal/model"
	"github.com/promptpad/memoryd/pkg/logger"
)

// SubjectConversationStored is where stored-exchange events are published.
const SubjectConversationStored = "memory.conversation.stored"

// Config holds NATS connection configuration.
type Config struct {
	URL      string
	CAFile   string
	CertFile string
	KeyFile  string
	Token    string
}

// Publisher wraps a NATS connection for memory event publishing.
type Publisher struct {
	conn   *nats.Conn
	logger *logger.Logger
}

// StoredEvent is the payload published after a successful store.
type StoredEvent struct {
	ConversationID string            `json:"conversation_id"`
	SessionID      string            `json:"session_id"`
	ContentType    model.ContentType `json:"content_type"`
	Timestamp      time.Time         `json:"timestamp"`
}

// Connect establishes a connection to the NATS server.
func Connect(ctx context.Context, cfg Config, log *logger.Logger) (*Publisher, error) {
	opts := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected")
		}),
	}

	if cfg.CAFile != "" && cfg.CertFile != "" && cfg.KeyFile != "" {
		tlsConfig, err := createTLSConfig(cfg.CAFile, cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
		opts = append(opts, nats.Secure(tlsConfig))
	}

	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &Publisher{conn: nc, logger: log}, nil
}

// PublishStored announces a newly stored exchange. Failures are logged and
// swallowed; an event is never worth failing a store over.
func (p *Publisher) PublishStored(rec *model.ConversationRecord) {
	if p == nil || p.conn == nil {
		return
	}

	payload, err := json.Marshal(StoredEvent{
		ConversationID: rec.ID,
		SessionID:      rec.SessionID,
		ContentType:    rec.ContentType,
		Timestamp:      rec.Timestamp,
	})
	if err != nil {
		p.logger.Warn("failed to encode stored event", zap.Error(err))
		return
	}

	if err := p.conn.Publish(SubjectConversationStored, payload); err != nil {
		p.logger.Warn("failed to publish stored event",
			zap.String("conversation_id", rec.ID),
			zap.Error(err),
		)
	}
}

// IsConnected returns true if connected to NATS.
func (p *Publisher) IsConnected() bool {
	return p != nil && p.conn != nil && p.conn.IsConnected()
}

// Close closes the NATS connection.
func (p *Publisher) Close() {
	if p != nil && p.conn != nil {
		p.conn.Close()
	}
}

func createTLSConfig(caFile, certFile, keyFile string) (*tls.Config, error) {
	caCert, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA file: %w", err)
	}

	caCertPool := x509.NewCertPool()
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("failed to parse CA certificate")
	}

	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load client cert: %w", err)
	}

	return &tls.Config{
		RootCAs:      caCertPool,
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
