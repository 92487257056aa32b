package runtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type testTag struct {
	ObjectMeta
	NodeID   string
	DataType string
}

func (t *testTag) GetNodeID() string       { return t.NodeID }
func (t *testTag) SetNodeID(nodeID string) { t.NodeID = nodeID }
func (t *testTag) GetDataType() string     { return t.DataType }
func (t *testTag) SetDataType(dt string)   { t.DataType = dt }
func (t *testTag) GetAccessMode() string   { return "r" }
func (t *testTag) GetTopic() string        { return "" }
func (t *testTag) SetTopic(string)         {}

func newTestTag(name, nodeID, dataType string, modTime time.Time) *testTag {
	return &testTag{
		ObjectMeta: ObjectMeta{Name: name, ID: name, ModTime: modTime},
		NodeID:     nodeID,
		DataType:   dataType,
	}
}

func matchAll(predicates []predicateTag, t Tag) bool {
	for _, p := range predicates {
		if !p(t) {
			return false
		}
	}
	return true
}

func TestParseTagFilter(t *testing.T) {
	temperature := newTestTag("temperature", "ns=2;s=Demo.Temperature", "float64", time.Now())
	counter := newTestTag("counter", "ns=2;s=Demo.Counter", "int32", time.Now())

	predicates := ParseTagFilter(&TagFilter{DataType: "float64"})
	assert.True(t, matchAll(predicates, temperature))
	assert.False(t, matchAll(predicates, counter))

	predicates = ParseTagFilter(&TagFilter{NodeID: "ns=2;s=Demo.Counter"})
	assert.False(t, matchAll(predicates, temperature))
	assert.True(t, matchAll(predicates, counter))

	predicates = ParseTagFilter(&TagFilter{Name: "temperature"})
	assert.True(t, matchAll(predicates, temperature))
	assert.False(t, matchAll(predicates, counter))
}

func TestParseTagFilterNameFuncs(t *testing.T) {
	temperature := newTestTag("temperature", "ns=2;s=Demo.Temperature", "float64", time.Now())
	counter := newTestTag("counter", "ns=2;s=Demo.Counter", "int32", time.Now())

	predicates := ParseTagFilter(&TagFilter{Name: map[string]interface{}{"startsWith": "temp"}})
	assert.True(t, matchAll(predicates, temperature))
	assert.False(t, matchAll(predicates, counter))

	predicates = ParseTagFilter(&TagFilter{Name: map[string]interface{}{"contains": "unt"}})
	assert.False(t, matchAll(predicates, temperature))
	assert.True(t, matchAll(predicates, counter))

	predicates = ParseTagFilter(&TagFilter{Name: map[string]interface{}{"in": []string{"counter", "pressure"}}})
	assert.True(t, matchAll(predicates, counter))
	assert.False(t, matchAll(predicates, temperature))
}

func TestTagSorterInsert(t *testing.T) {
	base := time.Now()
	oldest := newTestTag("a", "ns=2;s=A", "int32", base.Add(-2*time.Hour))
	middle := newTestTag("b", "ns=2;s=B", "int32", base.Add(-time.Hour))
	newest := newTestTag("c", "ns=2;s=C", "int32", base)

	// descend
	byModTime := func(t1, t2 Tag) bool { return t1.GetModTime().Before(t2.GetModTime()) }
	sorter := ByTag(byModTime)

	tags := make([]Tag, 0)
	tags = sorter.Insert(tags, middle)
	tags = sorter.Insert(tags, newest)
	tags = sorter.Insert(tags, oldest)

	assert.Equal(t, []Tag{newest, middle, oldest}, tags)
}
