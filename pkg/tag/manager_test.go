package tag

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/gopcua/opcua/ua"
	"github.com/stretchr/testify/assert"
	"opcbridge/pkg/apis"
	"opcbridge/pkg/apis/response"
	"opcbridge/pkg/runtime"
	"opcbridge/pkg/runtime/constant"
)

func seedTag(m *Manager, id, name, nodeID string, dataType constant.DataType, accessMode constant.AccessMode) *Tag {
	t := &Tag{
		ObjectMeta: runtime.ObjectMeta{
			Name:    name,
			ID:      id,
			Version: "100",
			ModTime: time.Now(),
		},
		NodeID:     nodeID,
		DataType:   dataType,
		AccessMode: accessMode,
		Topic:      "data/opcbridge/v1/" + id,
	}
	m.tags.Store(id, t)
	return t
}

func TestReadValueTyped(t *testing.T) {
	session := newFakePlcSession()
	session.readResp = &ua.ReadResponse{
		Results: []*ua.DataValue{{Status: ua.StatusOK, Value: ua.MustVariant(int32(21))}},
	}
	m, _ := newTestManager(session)
	seedTag(m, "t1", "counter", "ns=2;s=Demo.Counter", constant.INT32, constant.AccessModeReadOnly)
	assert.True(t, m.plcClient.Open(context.Background()))

	value, err := m.ReadValue(context.Background(), "t1")
	assert.Nil(t, err)
	assert.Equal(t, int32(21), value)
}

func TestReadValueNotConnected(t *testing.T) {
	session := newFakePlcSession()
	m, _ := newTestManager(session)
	seedTag(m, "t1", "counter", "ns=2;s=Demo.Counter", constant.INT32, constant.AccessModeReadOnly)

	_, err := m.ReadValue(context.Background(), "t1")
	assert.NotNil(t, err)
	assert.True(t, response.IsResponseError(err))
}

func TestReadValueUnknownTag(t *testing.T) {
	session := newFakePlcSession()
	m, _ := newTestManager(session)

	_, err := m.ReadValue(context.Background(), "no-such-tag")
	assert.NotNil(t, err)
}

func TestWriteValueNarrowsJSONNumber(t *testing.T) {
	session := newFakePlcSession()
	session.writeResp = &ua.WriteResponse{Results: []ua.StatusCode{ua.StatusOK}}
	m, _ := newTestManager(session)
	seedTag(m, "t1", "setpoint", "ns=2;s=Demo.Setpoint", constant.INT32, constant.AccessModeReadWrite)
	assert.True(t, m.plcClient.Open(context.Background()))

	// JSON numbers decode as float64.
	assert.Nil(t, m.WriteValue(context.Background(), "t1", float64(41)))

	if assert.Len(t, session.lastWrite.NodesToWrite, 1) {
		assert.Equal(t, int32(41), session.lastWrite.NodesToWrite[0].Value.Value.Value())
	}
}

func TestWriteValueReadOnlyTag(t *testing.T) {
	session := newFakePlcSession()
	m, _ := newTestManager(session)
	seedTag(m, "t1", "counter", "ns=2;s=Demo.Counter", constant.INT32, constant.AccessModeReadOnly)
	assert.True(t, m.plcClient.Open(context.Background()))

	err := m.WriteValue(context.Background(), "t1", float64(1))
	assert.True(t, response.IsResponseError(err))
	assert.Nil(t, session.lastWrite)
}

func TestWriteValueTypeMismatch(t *testing.T) {
	session := newFakePlcSession()
	m, _ := newTestManager(session)
	seedTag(m, "t1", "setpoint", "ns=2;s=Demo.Setpoint", constant.INT32, constant.AccessModeReadWrite)
	assert.True(t, m.plcClient.Open(context.Background()))

	assert.Equal(t, apis.ErrInvalidValue, m.WriteValue(context.Background(), "t1", "not a number"))
}

func TestWatchPublishesValueChanges(t *testing.T) {
	session := newFakePlcSession()
	m, mqttClient := newTestManager(session)
	seedTag(m, "t1", "temperature", "ns=2;s=Demo.Temperature", constant.FLOAT64, constant.AccessModeReadOnly)
	assert.True(t, m.plcClient.Open(context.Background()))

	assert.Nil(t, m.Watch("t1"))
	session.notify(session.sub.lastHandle(), float64(3.5))

	var records []publishRecord
	for i := 0; i < 100; i++ {
		records = mqttClient.records()
		if len(records) > 0 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if assert.NotEmpty(t, records) {
		assert.Equal(t, "data/opcbridge/v1/t1", records[0].topic)
		var data runtime.PublishData
		assert.Nil(t, json.Unmarshal(records[0].payload, &data))
		if assert.Len(t, data.Payload.Data, 1) {
			assert.Equal(t, "t1", data.Payload.Data[0].Values[0].DataPointId)
			assert.Equal(t, 3.5, data.Payload.Data[0].Values[0].Value)
		}
	}
}

func TestWatchTwiceRejected(t *testing.T) {
	session := newFakePlcSession()
	m, _ := newTestManager(session)
	seedTag(m, "t1", "temperature", "ns=2;s=Demo.Temperature", constant.FLOAT64, constant.AccessModeReadOnly)
	assert.True(t, m.plcClient.Open(context.Background()))

	assert.Nil(t, m.Watch("t1"))
	err := m.Watch("t1")
	assert.True(t, response.IsResponseError(err))
}

func TestUnwatchIsIdempotent(t *testing.T) {
	session := newFakePlcSession()
	m, _ := newTestManager(session)
	seedTag(m, "t1", "temperature", "ns=2;s=Demo.Temperature", constant.FLOAT64, constant.AccessModeReadOnly)
	assert.True(t, m.plcClient.Open(context.Background()))

	assert.Nil(t, m.Watch("t1"))
	assert.Nil(t, m.Unwatch("t1"))
	assert.Nil(t, m.Unwatch("t1"))

	// The node can be watched again after an unwatch.
	assert.Nil(t, m.Watch("t1"))
}

func TestUnwatchKeepsWatchOnCancelFailure(t *testing.T) {
	session := newFakePlcSession()
	m, _ := newTestManager(session)
	seedTag(m, "t1", "temperature", "ns=2;s=Demo.Temperature", constant.FLOAT64, constant.AccessModeReadOnly)
	assert.True(t, m.plcClient.Open(context.Background()))

	assert.Nil(t, m.Watch("t1"))

	session.sub.unmonitorErr = ua.StatusBadSessionIDInvalid
	assert.Equal(t, ErrUnwatchFailed, m.Unwatch("t1"))
	_, watched := m.watchedTags.Load("t1")
	assert.True(t, watched)

	session.sub.unmonitorErr = nil
	assert.Nil(t, m.Unwatch("t1"))
	_, watched = m.watchedTags.Load("t1")
	assert.False(t, watched)
}

func TestListTagsFilter(t *testing.T) {
	session := newFakePlcSession()
	m, _ := newTestManager(session)
	seedTag(m, "t1", "temperature", "ns=2;s=Demo.Temperature", constant.FLOAT64, constant.AccessModeReadOnly)
	seedTag(m, "t2", "setpoint", "ns=2;s=Demo.Setpoint", constant.FLOAT64, constant.AccessModeReadWrite)
	seedTag(m, "t3", "counter", "ns=2;s=Demo.Counter", constant.INT32, constant.AccessModeReadOnly)

	rts, err := m.ListTags(&runtime.TagFilter{DataType: "float64"})
	assert.Nil(t, err)
	assert.Len(t, rts, 2)

	rts, err = m.ListTags(&runtime.TagFilter{Name: "counter"})
	assert.Nil(t, err)
	if assert.Len(t, rts, 1) {
		assert.Equal(t, "t3", rts[0].GetID())
	}

	rts, err = m.ListTags(&runtime.TagFilter{Name: map[string]interface{}{"startsWith": "temp"}})
	assert.Nil(t, err)
	assert.Len(t, rts, 1)
}

func TestCreateTagPersists(t *testing.T) {
	m := newStoreBackedManager(t, newFakePlcSession())

	created, err := m.CreateTag(&Tag{
		ObjectMeta: runtime.ObjectMeta{Name: "temperature"},
		NodeID:     "ns=2;s=Demo.Temperature",
		DataType:   constant.FLOAT64,
		AccessMode: constant.AccessModeReadOnly,
	})
	assert.Nil(t, err)
	assert.NotEmpty(t, created.GetID())
	assert.NotEmpty(t, created.GetVersion())
	assert.Equal(t, "data/opcbridge/v1/"+created.GetID(), created.Topic)

	_, err = m.CreateTag(&Tag{
		ObjectMeta: runtime.ObjectMeta{Name: "duplicate"},
		NodeID:     "ns=2;s=Demo.Temperature",
		DataType:   constant.FLOAT64,
		AccessMode: constant.AccessModeReadOnly,
	})
	assert.True(t, response.IsResponseError(err))

	loaded, err := m.store.LoadResource()
	assert.Nil(t, err)
	if assert.Len(t, loaded, 1) {
		assert.Equal(t, created.GetID(), loaded[0].GetID())
	}
}

func TestUpdateTagBumpsVersion(t *testing.T) {
	m := newStoreBackedManager(t, newFakePlcSession())

	created, err := m.CreateTag(&Tag{
		ObjectMeta: runtime.ObjectMeta{Name: "setpoint"},
		NodeID:     "ns=2;s=Demo.Setpoint",
		DataType:   constant.FLOAT64,
		AccessMode: constant.AccessModeReadWrite,
	})
	assert.Nil(t, err)

	updated, err := m.UpdateTagById(created.GetID(), created.GetVersion(), &Tag{
		ObjectMeta: runtime.ObjectMeta{Name: "setpoint-renamed"},
		NodeID:     "ns=2;s=Demo.Setpoint",
		DataType:   constant.FLOAT64,
		AccessMode: constant.AccessModeReadWrite,
	})
	assert.Nil(t, err)
	assert.Equal(t, "setpoint-renamed", updated.GetName())
	assert.NotEqual(t, created.GetVersion(), updated.GetVersion())

	_, err = m.UpdateTagById(created.GetID(), created.GetVersion(), updated.DeepCopy())
	assert.Equal(t, apis.ErrMismatch, err)
}

func TestUpdateTagNodeIDConflict(t *testing.T) {
	m := newStoreBackedManager(t, newFakePlcSession())

	first, err := m.CreateTag(&Tag{
		ObjectMeta: runtime.ObjectMeta{Name: "temperature"},
		NodeID:     "ns=2;s=Demo.Temperature",
		DataType:   constant.FLOAT64,
		AccessMode: constant.AccessModeReadOnly,
	})
	assert.Nil(t, err)
	second, err := m.CreateTag(&Tag{
		ObjectMeta: runtime.ObjectMeta{Name: "pressure"},
		NodeID:     "ns=2;s=Demo.Pressure",
		DataType:   constant.FLOAT64,
		AccessMode: constant.AccessModeReadOnly,
	})
	assert.Nil(t, err)

	_, err = m.UpdateTagById(second.GetID(), second.GetVersion(), &Tag{
		ObjectMeta: runtime.ObjectMeta{Name: "pressure"},
		NodeID:     first.NodeID,
		DataType:   constant.FLOAT64,
		AccessMode: constant.AccessModeReadOnly,
	})
	assert.True(t, response.IsResponseError(err))
}

func TestDeleteTagRemovesFromStore(t *testing.T) {
	m := newStoreBackedManager(t, newFakePlcSession())

	created, err := m.CreateTag(&Tag{
		ObjectMeta: runtime.ObjectMeta{Name: "counter"},
		NodeID:     "ns=2;s=Demo.Counter",
		DataType:   constant.INT32,
		AccessMode: constant.AccessModeReadOnly,
	})
	assert.Nil(t, err)

	_, err = m.DeleteTag(created.GetID(), "stale")
	assert.Equal(t, apis.ErrMismatch, err)

	_, err = m.DeleteTag(created.GetID(), created.GetVersion())
	assert.Nil(t, err)

	loaded, err := m.store.LoadResource()
	assert.Nil(t, err)
	assert.Len(t, loaded, 0)
}

func TestPlcStatus(t *testing.T) {
	session := newFakePlcSession()
	m, _ := newTestManager(session)

	status := m.PlcStatus()
	assert.Equal(t, "opc.tcp://10.0.0.5:4840", status.Endpoint)
	assert.True(t, status.Available)
	assert.False(t, status.Connected)

	assert.True(t, m.plcClient.Open(context.Background()))
	assert.True(t, m.PlcStatus().Connected)
}
