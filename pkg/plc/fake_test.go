package plc

import (
	"context"
	"sync"
	"time"

	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/ua"
)

type fakeSubscription struct {
	mu            sync.Mutex
	monitorErr    error
	monitorStatus ua.StatusCode
	unmonitorErr  error
	nextItemID    uint32
	handles       []uint32
	items         map[uint32]uint32
	unmonitored   []uint32
	cancelled     bool
}

func newFakeSubscription() *fakeSubscription {
	return &fakeSubscription{
		monitorStatus: ua.StatusOK,
		nextItemID:    100,
		items:         make(map[uint32]uint32),
	}
}

func (s *fakeSubscription) Monitor(_ context.Context, reqs ...*ua.MonitoredItemCreateRequest) (*ua.CreateMonitoredItemsResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.monitorErr != nil {
		return nil, s.monitorErr
	}
	results := make([]*ua.MonitoredItemCreateResult, 0, len(reqs))
	for _, req := range reqs {
		handle := req.RequestedParameters.ClientHandle
		s.nextItemID++
		s.handles = append(s.handles, handle)
		s.items[handle] = s.nextItemID
		results = append(results, &ua.MonitoredItemCreateResult{
			StatusCode:      s.monitorStatus,
			MonitoredItemID: s.nextItemID,
		})
	}
	return &ua.CreateMonitoredItemsResponse{Results: results}, nil
}

func (s *fakeSubscription) Unmonitor(_ context.Context, monitoredItemIDs ...uint32) (*ua.DeleteMonitoredItemsResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unmonitorErr != nil {
		return nil, s.unmonitorErr
	}
	s.unmonitored = append(s.unmonitored, monitoredItemIDs...)
	return &ua.DeleteMonitoredItemsResponse{}, nil
}

func (s *fakeSubscription) Cancel(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = true
	return nil
}

func (s *fakeSubscription) lastHandle() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.handles) == 0 {
		return 0
	}
	return s.handles[len(s.handles)-1]
}

type fakeSession struct {
	mu           sync.Mutex
	connectErr   error
	connected    bool
	closed       bool
	readResp     *ua.ReadResponse
	readErr      error
	writeResp    *ua.WriteResponse
	writeErr     error
	subscribeErr error
	sub          *fakeSubscription
	notifyCh     chan<- *opcua.PublishNotificationData
	lastRead     *ua.ReadRequest
	lastWrite    *ua.WriteRequest
}

func newFakeSession() *fakeSession {
	return &fakeSession{sub: newFakeSubscription()}
}

func (s *fakeSession) Connect(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connectErr != nil {
		return s.connectErr
	}
	s.connected = true
	return nil
}

func (s *fakeSession) Close(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	s.closed = true
	return nil
}

func (s *fakeSession) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *fakeSession) Read(_ context.Context, req *ua.ReadRequest) (*ua.ReadResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRead = req
	if s.readErr != nil {
		return nil, s.readErr
	}
	return s.readResp, nil
}

func (s *fakeSession) Write(_ context.Context, req *ua.WriteRequest) (*ua.WriteResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastWrite = req
	if s.writeErr != nil {
		return nil, s.writeErr
	}
	return s.writeResp, nil
}

func (s *fakeSession) Subscribe(_ context.Context, _ time.Duration, notifyCh chan<- *opcua.PublishNotificationData) (Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subscribeErr != nil {
		return nil, s.subscribeErr
	}
	s.notifyCh = notifyCh
	return s.sub, nil
}

func (s *fakeSession) publish(data *opcua.PublishNotificationData) {
	s.mu.Lock()
	ch := s.notifyCh
	s.mu.Unlock()
	ch <- data
}

func newTestClient(session Session, reachable *bool) *Client {
	return New("10.0.0.5",
		WithDialer(func() (Session, error) { return session, nil }),
		WithProbe(func(host string, timeout time.Duration) bool { return *reachable }),
	)
}

func boolPtr(b bool) *bool {
	return &b
}
