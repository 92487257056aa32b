package plc

import (
	"context"

	"github.com/gopcua/opcua/ua"
	"k8s.io/klog/v2"
)

// Read returns the current value of nodeID, or the zero value when the read
// fails. Callers that need to distinguish a genuine zero from a failure use
// TryRead.
func Read[T any](ctx context.Context, c *Client, nodeID string) T {
	value, _ := TryRead[T](ctx, c, nodeID)
	return value
}

// TryRead reads nodeID and reports success explicitly. On failure the error
// observers fire and the zero value is returned.
func TryRead[T any](ctx context.Context, c *Client, nodeID string) (T, bool) {
	var zero T
	id, err := ua.ParseNodeID(nodeID)
	if err != nil {
		klog.V(2).InfoS("Failed to parse node id", "nodeId", nodeID, "err", err)
		c.reportError("Failed to parse node id %s: %v", nodeID, err)
		return zero, false
	}
	session := c.currentSession()
	if session == nil {
		c.reportError("Failed to read node %s: %v", nodeID, ErrNotConnected)
		return zero, false
	}

	req := &ua.ReadRequest{
		MaxAge:             2000,
		TimestampsToReturn: ua.TimestampsToReturnBoth,
		NodesToRead:        []*ua.ReadValueID{{NodeID: id}},
	}
	resp, err := session.Read(ctx, req)
	if err != nil {
		klog.V(2).InfoS("Failed to read opc ua server data", "nodeId", nodeID, "err", err)
		c.reportError("Failed to read node %s: %v", nodeID, err)
		return zero, false
	}
	if resp == nil || len(resp.Results) == 0 {
		c.reportError("Failed to read node %s: empty response", nodeID)
		return zero, false
	}
	result := resp.Results[0]
	if result.Status != ua.StatusOK {
		c.reportError("Failed to read node %s: %v", nodeID, result.Status)
		return zero, false
	}
	if result.Value == nil {
		c.reportError("Failed to read node %s: no value", nodeID)
		return zero, false
	}
	value, ok := coerce[T](result.Value.Value())
	if !ok {
		c.reportError("Failed to convert node %s value %v", nodeID, result.Value.Value())
		return zero, false
	}
	return value, true
}

// TryWrite writes value to nodeID. The server's own status is the result; a
// transport error or a bad status fires the error observers and returns
// false. There is no retry.
func TryWrite[T any](ctx context.Context, c *Client, nodeID string, value T) bool {
	id, err := ua.ParseNodeID(nodeID)
	if err != nil {
		klog.V(2).InfoS("Failed to parse node id", "nodeId", nodeID, "err", err)
		c.reportError("Failed to parse node id %s: %v", nodeID, err)
		return false
	}
	session := c.currentSession()
	if session == nil {
		c.reportError("Failed to write node %s: %v", nodeID, ErrNotConnected)
		return false
	}

	variant, err := ua.NewVariant(value)
	if err != nil {
		klog.V(2).InfoS("Failed to build variant", "nodeId", nodeID, "err", err)
		c.reportError("Failed to write node %s: %v", nodeID, err)
		return false
	}
	req := &ua.WriteRequest{
		NodesToWrite: []*ua.WriteValue{{
			NodeID:      id,
			AttributeID: ua.AttributeIDValue,
			Value: &ua.DataValue{
				EncodingMask: ua.DataValueValue,
				Value:        variant,
			},
		}},
	}
	resp, err := session.Write(ctx, req)
	if err != nil {
		klog.V(2).InfoS("Failed to write opc ua server data", "nodeId", nodeID, "err", err)
		c.reportError("Failed to write node %s: %v", nodeID, err)
		return false
	}
	if resp == nil || len(resp.Results) == 0 {
		c.reportError("Failed to write node %s: empty response", nodeID)
		return false
	}
	if resp.Results[0] != ua.StatusOK {
		c.reportError("Failed to write node %s: %v", nodeID, resp.Results[0])
		return false
	}
	return true
}

// coerce converts the variant payload into T, widening between integer and
// float widths where the server reports a different width than the tag
// declares.
func coerce[T any](raw interface{}) (T, bool) {
	var zero T
	if raw == nil {
		return zero, false
	}
	if value, ok := raw.(T); ok {
		return value, true
	}
	switch any(zero).(type) {
	case float64:
		if f, ok := toFloat64(raw); ok {
			return any(f).(T), true
		}
	case float32:
		if f, ok := toFloat64(raw); ok {
			return any(float32(f)).(T), true
		}
	case int64:
		if i, ok := toInt64(raw); ok {
			return any(i).(T), true
		}
	case int32:
		if i, ok := toInt64(raw); ok {
			return any(int32(i)).(T), true
		}
	case int16:
		if i, ok := toInt64(raw); ok {
			return any(int16(i)).(T), true
		}
	case uint64:
		if i, ok := toInt64(raw); ok {
			return any(uint64(i)).(T), true
		}
	case uint32:
		if i, ok := toInt64(raw); ok {
			return any(uint32(i)).(T), true
		}
	case uint16:
		if i, ok := toInt64(raw); ok {
			return any(uint16(i)).(T), true
		}
	}
	return zero, false
}

func toFloat64(raw interface{}) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case int8:
		return float64(v), true
	case uint8:
		return float64(v), true
	}
	return 0, false
}

func toInt64(raw interface{}) (int64, bool) {
	switch v := raw.(type) {
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		return int64(v), true
	case int8:
		return int64(v), true
	case uint8:
		return int64(v), true
	}
	return 0, false
}
