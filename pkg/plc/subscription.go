package plc

import (
	"context"

	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/ua"
	"k8s.io/klog/v2"
)

// Notification carries a value change reported by the PLC for one node.
type Notification struct {
	NodeID string
	Value  interface{}
}

type monitoredNode struct {
	callback     func(Notification)
	clientHandle uint32
	itemID       uint32
}

// AddSubscription registers callback for value changes of nodeID. A node may
// carry at most one callback: registering an already subscribed node returns
// false and leaves the original callback in place. Failures are reported to
// the error observers and surface as a false return.
func (c *Client) AddSubscription(ctx context.Context, nodeID string, callback func(Notification)) bool {
	id, err := ua.ParseNodeID(nodeID)
	if err != nil {
		klog.V(2).InfoS("Failed to parse node id", "nodeId", nodeID, "err", err)
		c.reportError("Failed to parse node id %s: %v", nodeID, err)
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.subs[nodeID]; exists {
		return false
	}
	if err := c.ensureSubscription(ctx); err != nil {
		klog.V(2).InfoS("Failed to create subscription", "url", c.url, "err", err)
		c.reportError("Failed to create subscription on %s: %v", c.url, err)
		return false
	}

	handle := c.nextHandle
	c.nextHandle++
	request := opcua.NewMonitoredItemCreateRequestWithDefaults(id, ua.AttributeIDValue, handle)
	resp, err := c.sub.Monitor(ctx, request)
	if err != nil {
		klog.V(2).InfoS("Failed to monitor node", "nodeId", nodeID, "err", err)
		c.reportError("Failed to monitor node %s: %v", nodeID, err)
		return false
	}
	if resp == nil || len(resp.Results) == 0 {
		c.reportError("Failed to monitor node %s: empty response", nodeID)
		return false
	}
	if resp.Results[0].StatusCode != ua.StatusOK {
		c.reportError("Failed to monitor node %s: %v", nodeID, resp.Results[0].StatusCode)
		return false
	}

	c.subs[nodeID] = &monitoredNode{
		callback:     callback,
		clientHandle: handle,
		itemID:       resp.Results[0].MonitoredItemID,
	}
	c.handles[handle] = nodeID
	return true
}

// CancelSubscription removes the callback registered for nodeID and deletes
// the monitored item at the PLC. Cancelling an unregistered node is a no-op
// success.
func (c *Client) CancelSubscription(ctx context.Context, nodeID string) bool {
	c.mu.Lock()
	node, exists := c.subs[nodeID]
	if exists {
		delete(c.subs, nodeID)
		delete(c.handles, node.clientHandle)
	}
	sub := c.sub
	c.mu.Unlock()

	if !exists || sub == nil {
		return true
	}
	if _, err := sub.Unmonitor(ctx, node.itemID); err != nil {
		klog.V(2).InfoS("Failed to unmonitor node", "nodeId", nodeID, "err", err)
		c.reportError("Failed to unmonitor node %s: %v", nodeID, err)
		return false
	}
	return true
}

func (c *Client) dispatch(ch <-chan *opcua.PublishNotificationData, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case res := <-ch:
			if res == nil {
				continue
			}
			if res.Error != nil {
				klog.V(2).InfoS("Failed to receive publish notification", "url", c.url, "err", res.Error)
				c.reportError("Failed to receive publish notification from %s: %v", c.url, res.Error)
				continue
			}
			switch x := res.Value.(type) {
			case *ua.DataChangeNotification:
				for _, item := range x.MonitoredItems {
					if item == nil || item.Value == nil || item.Value.Value == nil {
						continue
					}
					nodeID, callback := c.callbackByHandle(item.ClientHandle)
					if callback == nil {
						continue
					}
					callback(Notification{NodeID: nodeID, Value: item.Value.Value.Value()})
				}
			default:
				klog.V(3).InfoS("Dropped unknown publish result", "url", c.url, "value", res.Value)
			}
		}
	}
}

// callbackByHandle resolves the callback through the registry by node
// identifier so that a cancel-then-resubscribe always reaches the current
// callback.
func (c *Client) callbackByHandle(handle uint32) (string, func(Notification)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	nodeID, ok := c.handles[handle]
	if !ok {
		return "", nil
	}
	node, ok := c.subs[nodeID]
	if !ok {
		return "", nil
	}
	return nodeID, node.callback
}
