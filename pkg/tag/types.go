package tag

import (
	"opcbridge/pkg/runtime"
	"opcbridge/pkg/runtime/constant"
)

// Tag binds a name to a single OPC UA node on the PLC. The declared data
// type selects the typed accessor used for value reads and writes; the
// access mode gates writes. Topic is the MQTT topic value changes are
// published to while the tag is watched.
type Tag struct {
	runtime.ObjectMeta
	NodeID     string              `json:"nodeId" binding:"required"`
	DataType   constant.DataType   `json:"dataType"`
	AccessMode constant.AccessMode `json:"accessMode"`
	Topic      string              `json:"topic,omitempty"`
}

var _ runtime.Tag = (*Tag)(nil)

func (t *Tag) GetNodeID() string {
	return t.NodeID
}

func (t *Tag) SetNodeID(nodeID string) {
	t.NodeID = nodeID
}

func (t *Tag) GetDataType() string {
	return constant.DataTypeToString[t.DataType]
}

func (t *Tag) SetDataType(dataType string) {
	t.DataType = constant.StringToDataType[dataType]
}

func (t *Tag) GetAccessMode() string {
	return constant.ReadWritePropertyToString[t.AccessMode]
}

func (t *Tag) GetTopic() string {
	return t.Topic
}

func (t *Tag) SetTopic(topic string) {
	t.Topic = topic
}

func (t *Tag) DeepCopy() *Tag {
	copied := *t
	return &copied
}

// PlcStatus is the connectivity view exposed over the HTTP API.
type PlcStatus struct {
	Endpoint  string `json:"endpoint"`
	Available bool   `json:"available"`
	Connected bool   `json:"connected"`
}
