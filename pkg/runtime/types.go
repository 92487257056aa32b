package runtime

import (
	"fmt"
	"time"
)

var ErrNotObject = fmt.Errorf("object does not implement the Object interfaces")

type ObjectMeta struct {
	Name    string    `json:"name"`
	ID      string    `json:"id"`
	Version string    `json:"eTag"`
	ModTime time.Time `json:"modTime"`
}

type Object interface {
	GetName() string
	SetName(string)
	GetID() string
	SetID(string)
	GetVersion() string
	SetVersion(string)
	GetModTime() time.Time
	SetModTime(time.Time)
}

// Tag is a named binding to a single OPC UA node on the PLC.
type Tag interface {
	Object
	GetNodeID() string
	SetNodeID(string)
	GetDataType() string
	SetDataType(string)
	GetAccessMode() string
	GetTopic() string
	SetTopic(string)
}

func (o *ObjectMeta) GetName() string {
	return o.Name
}

func (o *ObjectMeta) SetName(name string) {
	o.Name = name
}

func (o *ObjectMeta) GetID() string {
	return o.ID
}

func (o *ObjectMeta) SetID(id string) {
	o.ID = id
}

func (o *ObjectMeta) GetVersion() string {
	return o.Version
}

func (o *ObjectMeta) SetVersion(version string) {
	o.Version = version
}

func (o *ObjectMeta) GetModTime() time.Time {
	return o.ModTime
}

func (o *ObjectMeta) SetModTime(t time.Time) {
	o.ModTime = t
}

type ObjectMetaAccessor interface {
	GetObjectMeta() Object
}

// Accessor returns the Object view of obj.
func Accessor(obj interface{}) (Object, error) {
	switch t := obj.(type) {
	case Object:
		return t, nil
	case ObjectMetaAccessor:
		if m := t.GetObjectMeta(); m != nil {
			return m, nil
		}
		return nil, ErrNotObject
	default:
		return nil, ErrNotObject
	}
}

type ResponseModel struct {
	Tags interface{} `json:"tags,omitempty"`
}

type PublishData struct {
	Payload Payload `json:"payload"`
}

type Payload struct {
	Data []TimeSeriesData `json:"data"`
}

type TimeSeriesData struct {
	Timestamp string      `json:"timestamp"`
	Values    []PointData `json:"values"`
}

type PointData struct {
	DataPointId string      `json:"dataPointId"`
	Value       interface{} `json:"value"`
}
