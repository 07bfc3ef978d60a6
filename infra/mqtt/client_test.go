package mqtt

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/ambudispatch/core/events"
	"github.com/kilianp07/ambudispatch/core/model"
	coremon "github.com/kilianp07/ambudispatch/core/monitoring"
	"github.com/kilianp07/ambudispatch/internal/eventbus"
)

// helper to generate self-signed cert
func generateCert(t *testing.T) (certFile, keyFile, caFile string) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("gen key: %v", err)
	}
	tmpl := x509.Certificate{SerialNumber: big.NewInt(1), Subject: pkix.Name{CommonName: "test"}, NotBefore: time.Now(), NotAfter: time.Now().Add(time.Hour)}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &priv.PublicKey, priv)
	if err != nil {
		t.Fatalf("create cert: %v", err)
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})

	dir := t.TempDir()
	certFile = dir + "/cert.pem"
	keyFile = dir + "/key.pem"
	caFile = dir + "/ca.pem"
	for path, data := range map[string][]byte{certFile: certPEM, keyFile: keyPEM, caFile: certPEM} {
		if err := os.WriteFile(path, data, 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	return
}

func useMock(t *testing.T, mc *mockClient) {
	t.Helper()
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	t.Cleanup(func() {
		newMQTTClient = func(opts *paho.ClientOptions) pahoClient { return paho.NewClient(opts) }
	})
}

func TestLoadTLSConfig(t *testing.T) {
	cert, key, ca := generateCert(t)
	cfg := Config{UseTLS: true, ClientCert: cert, ClientKey: key, CABundle: ca}
	tlsCfg, err := cfg.LoadTLSConfig()
	if err != nil {
		t.Fatalf("load tls: %v", err)
	}
	if len(tlsCfg.Certificates) == 0 {
		t.Fatalf("no certs loaded")
	}
	if tlsCfg.RootCAs == nil {
		t.Fatalf("no root CAs")
	}
}

func TestLoadTLSConfigMissingFiles(t *testing.T) {
	_, err := Config{UseTLS: true}.LoadTLSConfig()
	require.Error(t, err)
}

func TestNewClientOptions(t *testing.T) {
	opts, err := NewClientOptions(Config{Broker: "tcp://localhost:1883", ClientID: "id", Username: "u", Password: "p", StatusTopic: "st"})
	if err != nil {
		t.Fatalf("opts: %v", err)
	}
	if opts.Username != "u" || opts.Password != "p" {
		t.Fatalf("auth not set")
	}
	assert.True(t, opts.WillEnabled)
	assert.True(t, opts.WillRetained)
	assert.Equal(t, "st", opts.WillTopic)
	assert.Equal(t, "offline", string(opts.WillPayload))

	_, err = NewClientOptions(Config{})
	require.Error(t, err)

	opts, err = NewClientOptions(Config{Broker: "tcp://localhost:1883"})
	require.NoError(t, err)
	assert.Contains(t, opts.ClientID, "ambudispatch-")
}

func TestPublishEnvelope(t *testing.T) {
	mc := &mockClient{}
	useMock(t, mc)
	p, err := NewPublisher(Config{Broker: "tcp://localhost:1883", TopicPrefix: "city/", StatusTopic: "city/status", QoS: map[string]byte{"status_changed": 2, "status": 1}})
	require.NoError(t, err)

	require.Len(t, mc.published, 1, "online status on connect")
	assert.Equal(t, "city/status", mc.published[0].topic)
	assert.True(t, mc.published[0].retained)
	assert.Equal(t, byte(1), mc.published[0].qos)

	ev := events.StatusChanged{RequestID: "7", From: "Pending", To: "In Progress"}
	require.NoError(t, p.Publish(ev))
	require.Len(t, mc.published, 2)
	got := mc.published[1]
	assert.Equal(t, "city/status_changed", got.topic)
	assert.Equal(t, byte(2), got.qos)

	var env Envelope
	require.NoError(t, json.Unmarshal(got.payload.([]byte), &env))
	assert.Equal(t, "status_changed", env.Type)
	assert.NotEmpty(t, env.ID)
	var body events.StatusChanged
	require.NoError(t, json.Unmarshal(env.Payload, &body))
	assert.Equal(t, "7", body.RequestID)
}

func TestPublishOmitsPatientIdentity(t *testing.T) {
	mc := &mockClient{}
	useMock(t, mc)
	p, err := NewPublisher(Config{Broker: "tcp://localhost:1883"})
	require.NoError(t, err)

	ev := events.RequestCreated{DispatchID: "d1", Request: model.EmergencyRequest{
		ID: "4", PatientName: "Asha Rao", Phone: "9800000000", Severity: model.SeverityHigh, AssignedUnitID: "2",
	}}
	require.NoError(t, p.Publish(ev))
	got := mc.published[len(mc.published)-1]
	raw := string(got.payload.([]byte))
	assert.NotContains(t, raw, "Asha Rao")
	assert.NotContains(t, raw, "9800000000")

	var env Envelope
	require.NoError(t, json.Unmarshal(got.payload.([]byte), &env))
	var body events.RequestCreated
	require.NoError(t, json.Unmarshal(env.Payload, &body))
	assert.Equal(t, "4", body.Request.ID)
	assert.Equal(t, "2", body.Request.AssignedUnitID)
	assert.Equal(t, "Asha Rao", ev.Request.PatientName)
}

func TestDefaultTopicPrefix(t *testing.T) {
	useMock(t, &mockClient{})
	p, err := NewPublisher(Config{Broker: "tcp://localhost:1883"})
	require.NoError(t, err)
	assert.Equal(t, DefaultTopicPrefix+"/no_coverage", p.Topic(events.NoCoverage{}))
}

func TestRetryLogic(t *testing.T) {
	mc := &mockClient{publishErrs: []error{fmt.Errorf("net fail"), nil}}
	useMock(t, mc)
	p, err := NewPublisher(Config{Broker: "tcp://localhost:1883", MaxRetries: 1, BackoffMS: 1})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	if err := p.Publish(events.NoCoverage{RequestID: "1"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(mc.published) != 2 {
		t.Fatalf("expected retries, got %d publishes", len(mc.published))
	}
}

type recordMonitor struct {
	mu   sync.Mutex
	err  error
	tags map[string]string
}

func (r *recordMonitor) CaptureException(err error, tags map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
	r.tags = tags
}
func (r *recordMonitor) CapturePanic(any)    {}
func (r *recordMonitor) Flush(time.Duration) {}

func TestPublishErrorCaptured(t *testing.T) {
	fail := fmt.Errorf("net fail")
	mc := &mockClient{publishErrs: []error{fail, fail}}
	useMock(t, mc)
	mon := &recordMonitor{}
	coremon.Init(mon)
	defer coremon.Init(coremon.NopMonitor{})

	p, err := NewPublisher(Config{Broker: "tcp://localhost:1883", MaxRetries: 1, BackoffMS: 1})
	require.NoError(t, err)
	err = p.Publish(events.NoCoverage{RequestID: "1"})
	require.ErrorIs(t, err, fail)
	if mon.err == nil {
		t.Fatalf("error not captured")
	}
	if mon.tags["event"] != "no_coverage" || mon.tags["module"] != "mqtt" {
		t.Fatalf("tags not set: %v", mon.tags)
	}
}

func TestRunForwardsBusEvents(t *testing.T) {
	mc := &mockClient{}
	useMock(t, mc)
	p, err := NewPublisher(Config{Broker: "tcp://localhost:1883"})
	require.NoError(t, err)

	bus := eventbus.NewTyped[events.Event]()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx, bus)
		close(done)
	}()

	require.Eventually(t, func() bool {
		bus.Publish(events.NoCoverage{RequestID: "9"})
		return mc.count() > 0
	}, time.Second, 10*time.Millisecond)
	cancel()
	<-done
	assert.Equal(t, DefaultTopicPrefix+"/no_coverage", mc.first().topic)
}

func TestDisconnectPublishesOffline(t *testing.T) {
	mc := &mockClient{}
	useMock(t, mc)
	p, err := NewPublisher(Config{Broker: "tcp://localhost:1883", StatusTopic: "st"})
	require.NoError(t, err)
	p.Disconnect()
	require.Len(t, mc.published, 2)
	assert.Equal(t, "offline", mc.published[1].payload)
	assert.True(t, mc.disconnected)
}

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  interface{}
}

// mockClient implements paho.Client for tests
type mockClient struct {
	mu           sync.Mutex
	opts         *paho.ClientOptions
	published    []published
	publishErrs  []error
	disconnected bool
}

func (m *mockClient) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.published)
}

func (m *mockClient) first() published {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.published[0]
}

func (m *mockClient) IsConnected() bool { return true }
func (m *mockClient) Connect() paho.Token {
	if m.opts != nil && m.opts.OnConnect != nil {
		m.opts.OnConnect(m)
	}
	return &dummyToken{}
}
func (m *mockClient) Disconnect(uint) { m.disconnected = true }
func (m *mockClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, published{topic, qos, retained, payload})
	if len(m.publishErrs) > 0 {
		err := m.publishErrs[0]
		m.publishErrs = m.publishErrs[1:]
		return &dummyToken{err: err}
	}
	return &dummyToken{}
}
func (m *mockClient) Subscribe(string, byte, paho.MessageHandler) paho.Token { return &dummyToken{} }
func (m *mockClient) SubscribeMultiple(map[string]byte, paho.MessageHandler) paho.Token {
	return &dummyToken{}
}
func (m *mockClient) Unsubscribe(...string) paho.Token        { return &dummyToken{} }
func (m *mockClient) AddRoute(string, paho.MessageHandler)    {}
func (m *mockClient) OptionsReader() paho.ClientOptionsReader { return paho.ClientOptionsReader{} }
func (m *mockClient) IsConnectionOpen() bool                  { return true }

type dummyToken struct{ err error }

func (d dummyToken) Wait() bool                     { return true }
func (d dummyToken) WaitTimeout(time.Duration) bool { return true }
func (d dummyToken) Done() <-chan struct{}          { ch := make(chan struct{}); close(ch); return ch }
func (d dummyToken) Error() error                   { return d.err }
