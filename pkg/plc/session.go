package plc

import (
	"context"
	"time"

	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/ua"
	"github.com/pkg/errors"
)

// Session is the narrow view of the underlying OPC UA client that the façade
// relies on. Production code wraps the gopcua client; tests substitute fakes.
type Session interface {
	Connect(ctx context.Context) error
	Close(ctx context.Context) error
	Connected() bool
	Read(ctx context.Context, req *ua.ReadRequest) (*ua.ReadResponse, error)
	Write(ctx context.Context, req *ua.WriteRequest) (*ua.WriteResponse, error)
	Subscribe(ctx context.Context, interval time.Duration, notifyCh chan<- *opcua.PublishNotificationData) (Subscription, error)
}

// Subscription is a server-side registration that pushes data change
// notifications for its monitored items onto the notify channel.
type Subscription interface {
	Monitor(ctx context.Context, reqs ...*ua.MonitoredItemCreateRequest) (*ua.CreateMonitoredItemsResponse, error)
	Unmonitor(ctx context.Context, monitoredItemIDs ...uint32) (*ua.DeleteMonitoredItemsResponse, error)
	Cancel(ctx context.Context) error
}

type uaSession struct {
	client *opcua.Client
}

var _ Session = (*uaSession)(nil)

func dialUa(endpoint, username, password string) (Session, error) {
	opts := []opcua.Option{opcua.SecurityMode(ua.MessageSecurityModeNone)}
	if len(username) > 0 {
		opts = append(opts, opcua.AuthUsername(username, password))
	} else {
		opts = append(opts, opcua.AuthAnonymous())
	}
	c, err := opcua.NewClient(endpoint, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "create opc ua client %s", endpoint)
	}
	return &uaSession{client: c}, nil
}

func (s *uaSession) Connect(ctx context.Context) error {
	return s.client.Connect(ctx)
}

func (s *uaSession) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

func (s *uaSession) Connected() bool {
	if s.client.State() == opcua.Closed || s.client.State() == opcua.Disconnected {
		return false
	}
	return true
}

func (s *uaSession) Read(ctx context.Context, req *ua.ReadRequest) (*ua.ReadResponse, error) {
	return s.client.Read(ctx, req)
}

func (s *uaSession) Write(ctx context.Context, req *ua.WriteRequest) (*ua.WriteResponse, error) {
	return s.client.Write(ctx, req)
}

func (s *uaSession) Subscribe(ctx context.Context, interval time.Duration, notifyCh chan<- *opcua.PublishNotificationData) (Subscription, error) {
	sub, err := s.client.Subscribe(ctx, &opcua.SubscriptionParameters{Interval: interval}, notifyCh)
	if err != nil {
		return nil, err
	}
	return &uaSubscription{sub: sub}, nil
}

type uaSubscription struct {
	sub *opcua.Subscription
}

var _ Subscription = (*uaSubscription)(nil)

func (s *uaSubscription) Monitor(ctx context.Context, reqs ...*ua.MonitoredItemCreateRequest) (*ua.CreateMonitoredItemsResponse, error) {
	return s.sub.Monitor(ctx, ua.TimestampsToReturnBoth, reqs...)
}

func (s *uaSubscription) Unmonitor(ctx context.Context, monitoredItemIDs ...uint32) (*ua.DeleteMonitoredItemsResponse, error) {
	return s.sub.Unmonitor(ctx, monitoredItemIDs...)
}

func (s *uaSubscription) Cancel(ctx context.Context) error {
	return s.sub.Cancel(ctx)
}
