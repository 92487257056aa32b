package tag

import (
	"context"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/ua"
	"opcbridge/pkg/generic"
	"opcbridge/pkg/plc"
	"opcbridge/pkg/storage"
)

type fakeToken struct {
	err error
}

func (t *fakeToken) Wait() bool {
	return true
}

func (t *fakeToken) WaitTimeout(time.Duration) bool {
	return true
}

func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

func (t *fakeToken) Error() error {
	return t.err
}

type publishRecord struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeMqttClient struct {
	mu        sync.Mutex
	published []publishRecord
}

var _ mqtt.Client = (*fakeMqttClient)(nil)

func (c *fakeMqttClient) IsConnected() bool {
	return true
}

func (c *fakeMqttClient) IsConnectionOpen() bool {
	return true
}

func (c *fakeMqttClient) Connect() mqtt.Token {
	return &fakeToken{}
}

func (c *fakeMqttClient) Disconnect(quiesce uint) {}

func (c *fakeMqttClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, _ := payload.([]byte)
	c.published = append(c.published, publishRecord{topic: topic, qos: qos, retained: retained, payload: data})
	return &fakeToken{}
}

func (c *fakeMqttClient) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	return &fakeToken{}
}

func (c *fakeMqttClient) SubscribeMultiple(filters map[string]byte, callback mqtt.MessageHandler) mqtt.Token {
	return &fakeToken{}
}

func (c *fakeMqttClient) Unsubscribe(topics ...string) mqtt.Token {
	return &fakeToken{}
}

func (c *fakeMqttClient) AddRoute(topic string, callback mqtt.MessageHandler) {}

func (c *fakeMqttClient) OptionsReader() mqtt.ClientOptionsReader {
	return mqtt.ClientOptionsReader{}
}

func (c *fakeMqttClient) records() []publishRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]publishRecord(nil), c.published...)
}

type fakePlcSubscription struct {
	mu           sync.Mutex
	nextItemID   uint32
	handles      []uint32
	unmonitored  []uint32
	unmonitorErr error
}

func (s *fakePlcSubscription) Monitor(_ context.Context, reqs ...*ua.MonitoredItemCreateRequest) (*ua.CreateMonitoredItemsResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	results := make([]*ua.MonitoredItemCreateResult, 0, len(reqs))
	for _, req := range reqs {
		s.nextItemID++
		s.handles = append(s.handles, req.RequestedParameters.ClientHandle)
		results = append(results, &ua.MonitoredItemCreateResult{
			StatusCode:      ua.StatusOK,
			MonitoredItemID: s.nextItemID,
		})
	}
	return &ua.CreateMonitoredItemsResponse{Results: results}, nil
}

func (s *fakePlcSubscription) lastHandle() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.handles) == 0 {
		return 0
	}
	return s.handles[len(s.handles)-1]
}

func (s *fakePlcSubscription) Unmonitor(_ context.Context, monitoredItemIDs ...uint32) (*ua.DeleteMonitoredItemsResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unmonitorErr != nil {
		return nil, s.unmonitorErr
	}
	s.unmonitored = append(s.unmonitored, monitoredItemIDs...)
	return &ua.DeleteMonitoredItemsResponse{}, nil
}

func (s *fakePlcSubscription) Cancel(_ context.Context) error {
	return nil
}

type fakePlcSession struct {
	mu        sync.Mutex
	connected bool
	readResp  *ua.ReadResponse
	readErr   error
	writeResp *ua.WriteResponse
	writeErr  error
	lastWrite *ua.WriteRequest
	sub       *fakePlcSubscription
	notifyCh  chan<- *opcua.PublishNotificationData
}

func newFakePlcSession() *fakePlcSession {
	return &fakePlcSession{sub: &fakePlcSubscription{}}
}

func (s *fakePlcSession) Connect(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
	return nil
}

func (s *fakePlcSession) Close(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	return nil
}

func (s *fakePlcSession) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *fakePlcSession) Read(_ context.Context, req *ua.ReadRequest) (*ua.ReadResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	return s.readResp, nil
}

func (s *fakePlcSession) Write(_ context.Context, req *ua.WriteRequest) (*ua.WriteResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastWrite = req
	if s.writeErr != nil {
		return nil, s.writeErr
	}
	return s.writeResp, nil
}

func (s *fakePlcSession) Subscribe(_ context.Context, _ time.Duration, notifyCh chan<- *opcua.PublishNotificationData) (plc.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifyCh = notifyCh
	return s.sub, nil
}

func (s *fakePlcSession) notify(handle uint32, value interface{}) {
	s.mu.Lock()
	ch := s.notifyCh
	s.mu.Unlock()
	ch <- &opcua.PublishNotificationData{
		Value: &ua.DataChangeNotification{
			MonitoredItems: []*ua.MonitoredItemNotification{{
				ClientHandle: handle,
				Value:        &ua.DataValue{Value: ua.MustVariant(value)},
			}},
		},
	}
}

func newTestManager(session *fakePlcSession) (*Manager, *fakeMqttClient) {
	plcClient := plc.New("10.0.0.5",
		plc.WithDialer(func() (plc.Session, error) { return session, nil }),
		plc.WithProbe(func(host string, timeout time.Duration) bool { return true }),
	)
	mqttClient := &fakeMqttClient{}
	stopCh := make(chan struct{})
	return NewManager(nil, plcClient, mqttClient, stopCh), mqttClient
}

func newStoreBackedManager(t *testing.T, session *fakePlcSession) *Manager {
	t.Helper()
	storage.SetStorePath(t.TempDir())
	store, err := generic.NewStore(storage.StoreGroupToString[storage.StoreGroupPlc], storage.Tags, &Tag{})
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	plcClient := plc.New("10.0.0.5",
		plc.WithDialer(func() (plc.Session, error) { return session, nil }),
		plc.WithProbe(func(host string, timeout time.Duration) bool { return true }),
	)
	return NewManager(store, plcClient, &fakeMqttClient{}, make(chan struct{}))
}
