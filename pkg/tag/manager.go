package tag

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"k8s.io/klog/v2"
	"opcbridge/pkg/apis"
	"opcbridge/pkg/apis/response"
	"opcbridge/pkg/generic"
	"opcbridge/pkg/plc"
	"opcbridge/pkg/runtime"
	"opcbridge/pkg/runtime/constant"
	"opcbridge/pkg/utils/randutil"
	"opcbridge/pkg/utils/uuidutil"
)

type Option func(*Manager)

type Manager struct {
	plcClient   *plc.Client
	mqttClient  mqtt.Client
	store       *generic.Store
	mu          *sync.Mutex
	tags        *sync.Map
	watchedTags *sync.Map
	stopCh      <-chan struct{}
}

func NewManager(store *generic.Store, plcClient *plc.Client, mqttClient mqtt.Client, stop <-chan struct{}, opts ...Option) *Manager {
	m := &Manager{
		plcClient:   plcClient,
		mqttClient:  mqttClient,
		store:       store,
		mu:          &sync.Mutex{},
		tags:        &sync.Map{},
		watchedTags: &sync.Map{},
		stopCh:      stop,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Init() {
	tags, _ := m.store.LoadResource()
	for _, object := range tags {
		obj, _ := runtime.Accessor(object)
		m.tags.Store(obj.GetID(), object)
	}

	m.plcClient.OnError(func(message string) {
		klog.V(2).InfoS("Received plc error", "endpoint", m.plcClient.Url(), "message", message)
	})
	m.plcClient.OnStatusChange(func(connected bool) {
		m.publishStatus(connected)
	})

	if !m.plcClient.Open(context.Background()) {
		klog.V(2).InfoS("Failed to connect plc", "endpoint", m.plcClient.Url())
	}

	// 开启探测协程 15S一次
	go m.heartBeatDetection()
}

func (m *Manager) CreateTag(object *Tag) (*Tag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.findByNodeID(object.NodeID, ""); err == nil {
		return nil, response.ErrResourceExists(object.NodeID)
	}

	object.SetID(uuidutil.UUID())
	object.SetVersion(strconv.FormatUint(randutil.Uint64n(), 10))
	object.SetModTime(time.Now())
	if len(object.Topic) == 0 {
		object.Topic = fmt.Sprintf("data/opcbridge/v1/%s", object.GetID())
	}

	created, err := m.store.Create(object)
	if err != nil {
		klog.V(2).InfoS("Failed to store tag", "error", err)
		return nil, err
	}
	rt := created.(*Tag)
	m.tags.Store(rt.GetID(), rt)

	return rt, nil
}

func (m *Manager) DeleteTag(id string, version string) (*Tag, error) {
	t, err := m.GetTagById(id)
	if err != nil {
		return nil, err
	}

	if t.GetVersion() != version {
		return nil, apis.ErrMismatch
	}

	if _, watched := m.watchedTags.Load(id); watched {
		if err := m.Unwatch(id); err != nil {
			klog.V(2).InfoS("Failed to unwatch tag", "tagId", id, "err", err)
		}
	}

	if _, err := m.store.Delete(t); err != nil {
		klog.V(2).InfoS("Failed to delete tag", "tagId", id)
	}

	klog.V(2).InfoS("Deleted tag", "tagId", id)

	m.tags.Delete(id)
	return t, nil
}

func (m *Manager) UpdateTagById(id string, version string, newObj *Tag) (*Tag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.GetTagById(id)
	if err != nil {
		return nil, err
	}

	if version != t.GetVersion() {
		return nil, apis.ErrMismatch
	}

	if newObj.NodeID != t.NodeID {
		if _, err := m.findByNodeID(newObj.NodeID, id); err == nil {
			return nil, response.ErrResourceExists(newObj.NodeID)
		}
	}

	copied := t.DeepCopy()
	oldNodeID := copied.NodeID
	copied.SetName(newObj.GetName())
	copied.NodeID = newObj.NodeID
	copied.DataType = newObj.DataType
	copied.AccessMode = newObj.AccessMode
	if len(newObj.Topic) > 0 {
		copied.Topic = newObj.Topic
	}
	copied.SetModTime(time.Now())

	updated, err := m.store.Update(copied)
	if err != nil {
		klog.V(2).InfoS("Failed to update tag", "error", err)
		return nil, err
	}
	rt := updated.(*Tag)
	m.tags.Store(rt.GetID(), rt)

	if _, watched := m.watchedTags.Load(id); watched && oldNodeID != rt.NodeID {
		m.plcClient.CancelSubscription(context.Background(), oldNodeID)
		if !m.subscribe(rt) {
			klog.V(2).InfoS("Failed to resume watch after update", "tagId", id)
		}
	}

	return rt, nil
}

func (m *Manager) ListTags(filter *runtime.TagFilter) ([]runtime.Tag, error) {
	rts := make([]runtime.Tag, 0)
	predicates := runtime.ParseTagFilter(filter)

	// descend
	byModTime := func(t1, t2 runtime.Tag) bool { return t1.GetModTime().Before(t2.GetModTime()) }
	sorter := runtime.ByTag(byModTime)

	m.tags.Range(func(key, value interface{}) bool {
		isMatch := true
		v := value.(runtime.Tag)
		for _, p := range predicates {
			if !p(v) {
				isMatch = false
				break
			}
		}
		if isMatch {
			rts = sorter.Insert(rts, v)
		}
		return true
	})

	return rts, nil
}

func (m *Manager) GetTagById(id string) (*Tag, error) {
	t, isExist := m.tags.Load(id)
	if !isExist {
		return nil, os.ErrNotExist
	}
	return t.(*Tag), nil
}

// ReadValue reads the node bound to tag id with the typed accessor the tag's
// data type selects.
func (m *Manager) ReadValue(ctx context.Context, id string) (interface{}, error) {
	t, err := m.GetTagById(id)
	if err != nil {
		return nil, err
	}

	if !m.plcClient.IsConnected() {
		return nil, response.ErrPlcNotConnected(m.plcClient.Url())
	}

	value, ok := m.readTyped(ctx, t)
	if !ok {
		return nil, ErrReadFailed
	}
	return value, nil
}

// WriteValue writes value to the node bound to tag id. value comes out of a
// JSON body, so numbers arrive as float64 and are narrowed to the tag's
// declared data type.
func (m *Manager) WriteValue(ctx context.Context, id string, value interface{}) error {
	t, err := m.GetTagById(id)
	if err != nil {
		return err
	}

	if t.AccessMode != constant.AccessModeReadWrite {
		return response.ErrTagNotWritable(t.GetName())
	}

	if !m.plcClient.IsConnected() {
		return response.ErrPlcNotConnected(m.plcClient.Url())
	}

	return m.writeTyped(ctx, t, value)
}

// Watch subscribes the tag's node on the PLC and publishes every value
// change to the tag's topic. A tag can be watched once.
func (m *Manager) Watch(id string) error {
	t, err := m.GetTagById(id)
	if err != nil {
		return err
	}

	if _, watched := m.watchedTags.Load(id); watched {
		return response.ErrResourceExists(id)
	}

	if !m.subscribe(t) {
		return ErrWatchFailed
	}
	m.watchedTags.Store(id, struct{}{})
	return nil
}

// Unwatch cancels the tag's subscription. Unwatching a tag that is not
// watched succeeds.
func (m *Manager) Unwatch(id string) error {
	t, err := m.GetTagById(id)
	if err != nil {
		return err
	}

	if !m.plcClient.CancelSubscription(context.Background(), t.NodeID) {
		return ErrUnwatchFailed
	}
	m.watchedTags.Delete(id)
	return nil
}

func (m *Manager) PlcStatus() *PlcStatus {
	return &PlcStatus{
		Endpoint:  m.plcClient.Url(),
		Available: m.plcClient.IsAvailable(),
		Connected: m.plcClient.IsConnected(),
	}
}

func (m *Manager) Shutdown(ctx context.Context) error {
	m.plcClient.Close(ctx)
	m.mqttClient.Disconnect(2000)
	return nil
}

func (m *Manager) subscribe(t *Tag) bool {
	id := t.GetID()
	topic := t.GetTopic()
	return m.plcClient.AddSubscription(context.Background(), t.NodeID, func(n plc.Notification) {
		publishData := runtime.PublishData{Payload: runtime.Payload{Data: []runtime.TimeSeriesData{{
			Timestamp: time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
			Values: []runtime.PointData{{
				DataPointId: id,
				Value:       n.Value,
			}},
		}}}}

		marshal, _ := json.Marshal(publishData)
		token := m.mqttClient.Publish(topic, 1, false, marshal)
		if token.WaitTimeout(mqttTimeout) && token.Error() == nil {
			klog.V(5).InfoS("Succeed to publish MQTT", "topic", topic, "data", publishData)
		} else {
			klog.V(1).InfoS("Failed to publish MQTT", "topic", topic, "err", token.Error())
		}
	})
}

func (m *Manager) publishStatus(connected bool) {
	payload, _ := json.Marshal(&PlcStatus{
		Endpoint:  m.plcClient.Url(),
		Available: m.plcClient.IsAvailable(),
		Connected: connected,
	})
	token := m.mqttClient.Publish(statusTopic, 1, true, payload)
	if token.WaitTimeout(mqttTimeout) && token.Error() == nil {
		klog.V(5).InfoS("Succeed to publish plc status", "topic", statusTopic, "connected", connected)
	} else {
		klog.V(1).InfoS("Failed to publish plc status", "topic", statusTopic, "err", token.Error())
	}
}

func (m *Manager) heartBeatDetection() {
	tick := time.Tick(heartBeatTimeInterval)
	for {
		select {
		case _, ok := <-m.stopCh:
			if !ok {
				return
			}
		case <-tick:
			if m.plcClient.IsConnected() {
				continue
			}
			m.plcClient.Close(context.Background())
			if !m.plcClient.Open(context.Background()) {
				continue
			}
			m.resumeWatch()
		}
	}
}

func (m *Manager) resumeWatch() {
	m.watchedTags.Range(func(key, _ interface{}) bool {
		id := key.(string)
		t, err := m.GetTagById(id)
		if err != nil {
			return true
		}
		m.plcClient.CancelSubscription(context.Background(), t.NodeID)
		if !m.subscribe(t) {
			klog.V(2).InfoS("Failed to resume watch", "tagId", id)
		}
		return true
	})
}

// findByNodeID returns the tag bound to nodeID, skipping exceptId.
func (m *Manager) findByNodeID(nodeID string, exceptId string) (*Tag, error) {
	var found *Tag
	m.tags.Range(func(_, value interface{}) bool {
		t := value.(*Tag)
		if t.NodeID == nodeID && t.GetID() != exceptId {
			found = t
			return false
		}
		return true
	})
	if found == nil {
		return nil, os.ErrNotExist
	}
	return found, nil
}

func (m *Manager) readTyped(ctx context.Context, t *Tag) (interface{}, bool) {
	switch t.DataType {
	case constant.BOOL:
		return boxed(plc.TryRead[bool](ctx, m.plcClient, t.NodeID))
	case constant.INT16:
		return boxed(plc.TryRead[int16](ctx, m.plcClient, t.NodeID))
	case constant.INT32:
		return boxed(plc.TryRead[int32](ctx, m.plcClient, t.NodeID))
	case constant.INT64:
		return boxed(plc.TryRead[int64](ctx, m.plcClient, t.NodeID))
	case constant.UINT16:
		return boxed(plc.TryRead[uint16](ctx, m.plcClient, t.NodeID))
	case constant.UINT32:
		return boxed(plc.TryRead[uint32](ctx, m.plcClient, t.NodeID))
	case constant.UINT64:
		return boxed(plc.TryRead[uint64](ctx, m.plcClient, t.NodeID))
	case constant.FLOAT32:
		return boxed(plc.TryRead[float32](ctx, m.plcClient, t.NodeID))
	case constant.FLOAT64:
		return boxed(plc.TryRead[float64](ctx, m.plcClient, t.NodeID))
	case constant.STRING:
		return boxed(plc.TryRead[string](ctx, m.plcClient, t.NodeID))
	default:
		return nil, false
	}
}

func boxed[T any](value T, ok bool) (interface{}, bool) {
	return value, ok
}

func (m *Manager) writeTyped(ctx context.Context, t *Tag, value interface{}) error {
	ok := false
	switch t.DataType {
	case constant.BOOL:
		b, isBool := value.(bool)
		if !isBool {
			return apis.ErrInvalidValue
		}
		ok = plc.TryWrite[bool](ctx, m.plcClient, t.NodeID, b)
	case constant.STRING:
		s, isString := value.(string)
		if !isString {
			return apis.ErrInvalidValue
		}
		ok = plc.TryWrite[string](ctx, m.plcClient, t.NodeID, s)
	default:
		f, isNumber := value.(float64)
		if !isNumber {
			return apis.ErrInvalidValue
		}
		switch t.DataType {
		case constant.INT16:
			ok = plc.TryWrite[int16](ctx, m.plcClient, t.NodeID, int16(f))
		case constant.INT32:
			ok = plc.TryWrite[int32](ctx, m.plcClient, t.NodeID, int32(f))
		case constant.INT64:
			ok = plc.TryWrite[int64](ctx, m.plcClient, t.NodeID, int64(f))
		case constant.UINT16:
			ok = plc.TryWrite[uint16](ctx, m.plcClient, t.NodeID, uint16(f))
		case constant.UINT32:
			ok = plc.TryWrite[uint32](ctx, m.plcClient, t.NodeID, uint32(f))
		case constant.UINT64:
			ok = plc.TryWrite[uint64](ctx, m.plcClient, t.NodeID, uint64(f))
		case constant.FLOAT32:
			ok = plc.TryWrite[float32](ctx, m.plcClient, t.NodeID, float32(f))
		case constant.FLOAT64:
			ok = plc.TryWrite[float64](ctx, m.plcClient, t.NodeID, f)
		default:
			return response.ErrUnsupportedDataType(t.GetDataType())
		}
	}
	if !ok {
		return ErrWriteFailed
	}
	return nil
}
