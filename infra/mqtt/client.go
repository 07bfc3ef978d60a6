// Package mqtt publishes dispatch lifecycle events to an MQTT broker.
package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/kilianp07/ambudispatch/core/events"
	"github.com/kilianp07/ambudispatch/core/monitoring"
	"github.com/kilianp07/ambudispatch/infra/logger"
	"github.com/kilianp07/ambudispatch/internal/eventbus"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker      string          `json:"broker"`
	ClientID    string          `json:"client_id"`
	Username    string          `json:"username"`
	Password    string          `json:"password"`
	TopicPrefix string          `json:"topic_prefix"`
	UseTLS      bool            `json:"use_tls"`
	ClientCert  string          `json:"client_cert"`
	ClientKey   string          `json:"client_key"`
	CABundle    string          `json:"ca_bundle"`
	AuthMethod  string          `json:"auth_method"`
	QoS         map[string]byte `json:"qos"`
	// Status topic carries a retained "online" on connect and "offline" as the will.
	StatusTopic string      `json:"status_topic"`
	MaxRetries  int         `json:"max_retries"`
	BackoffMS   int         `json:"backoff_ms"`
	TLSConfig   *tls.Config `json:"-"`
}

// DefaultTopicPrefix is used when Config.TopicPrefix is empty.
const DefaultTopicPrefix = "ambudispatch/events"

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

// Publisher writes events as JSON envelopes to <prefix>/<event name>.
type Publisher struct {
	cli         pahoClient
	prefix      string
	statusTopic string
	qos         map[string]byte
	logger      logger.Logger
	maxRetries  int
	backoff     time.Duration
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// Envelope is the wire shape of a published event.
type Envelope struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Time    time.Time       `json:"time"`
	Payload json.RawMessage `json:"payload"`
}

// NewPublisher connects to the broker.
func NewPublisher(cfg Config) (*Publisher, error) {
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	log := logger.New("mqtt_publisher")
	p := &Publisher{
		prefix:      strings.TrimSuffix(cfg.TopicPrefix, "/"),
		statusTopic: cfg.StatusTopic,
		qos:         cfg.QoS,
		logger:      log,
		maxRetries:  cfg.MaxRetries,
		backoff:     time.Duration(cfg.BackoffMS) * time.Millisecond,
	}
	if p.prefix == "" {
		p.prefix = DefaultTopicPrefix
	}
	if p.maxRetries <= 0 {
		p.maxRetries = 3
	}
	if p.backoff <= 0 {
		p.backoff = 100 * time.Millisecond
	}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected")
		if p.statusTopic == "" {
			return
		}
		if token := c.Publish(p.statusTopic, p.qosFor("status"), true, "online"); token.Wait() && token.Error() != nil {
			log.Errorf("status publish error: %v", token.Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	p.cli = c
	return p, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt: broker is required")
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "ambudispatch-" + uuid.NewString()[:8]
	}
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(clientID)
	opts.AutoReconnect = true
	if cfg.AuthMethod == "username_password" || cfg.AuthMethod == "both" || cfg.AuthMethod == "" {
		if cfg.Username != "" {
			opts.SetUsername(cfg.Username)
		}
		if cfg.Password != "" {
			opts.SetPassword(cfg.Password)
		}
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.StatusTopic != "" {
		opts.SetWill(cfg.StatusTopic, "offline", cfg.QoS["status"], true)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

func (p *Publisher) qosFor(kind string) byte {
	if q, ok := p.qos[kind]; ok {
		return q
	}
	return p.qos["default"]
}

// Topic returns the topic an event is published on.
func (p *Publisher) Topic(e events.Event) string {
	return p.prefix + "/" + e.Name()
}

// Publish sends e, retrying with exponential backoff. Exhausted retries are
// reported to the monitoring facade. Patient identity never reaches the broker.
func (p *Publisher) Publish(e events.Event) error {
	if r, ok := e.(events.Redactor); ok {
		e = r.Redacted()
	}
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode %s: %w", e.Name(), err)
	}
	payload, err := json.Marshal(Envelope{ID: uuid.NewString(), Type: e.Name(), Time: time.Now().UTC(), Payload: body})
	if err != nil {
		return err
	}

	topic := p.Topic(e)
	qos := p.qosFor(e.Name())
	var publishErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		token := p.cli.Publish(topic, qos, false, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			p.logger.Debugf("published %s to %s", e.Name(), topic)
			return nil
		}
		p.logger.Errorf("publish attempt %d failed: %v", attempt+1, publishErr)
		if attempt < p.maxRetries {
			time.Sleep(p.backoff * time.Duration(1<<attempt))
		}
	}
	monitoring.CaptureException(publishErr, map[string]string{"module": "mqtt", "event": e.Name()})
	return publishErr
}

// Run forwards bus events to the broker until ctx is done or the bus closes.
func (p *Publisher) Run(ctx context.Context, bus *eventbus.TypedBus[events.Event]) {
	eventbus.Forward(ctx, bus, func(e events.Event) {
		_ = p.Publish(e)
	})
}

// Disconnect publishes the offline status and closes the connection.
func (p *Publisher) Disconnect() {
	if p.cli == nil || !p.cli.IsConnected() {
		return
	}
	if p.statusTopic != "" {
		p.cli.Publish(p.statusTopic, p.qosFor("status"), true, "offline").WaitTimeout(time.Second)
	}
	p.cli.Disconnect(250)
}
