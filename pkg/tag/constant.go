package tag

import (
	"errors"
	"time"

	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/util/sets"
)

var patchTypes = sets.NewString(string(types.JSONPatchType), string(types.MergePatchType))

const (
	maxJSONPatchOperations = 1000
	mqttTimeout            = 3 * time.Second
	heartBeatTimeInterval  = 15 * time.Second

	statusTopic = "status/opcbridge/v1"
)

var (
	ErrReadFailed    = errors.New("failed to read tag value from plc")
	ErrWriteFailed   = errors.New("failed to write tag value to plc")
	ErrWatchFailed   = errors.New("failed to watch tag")
	ErrUnwatchFailed = errors.New("failed to unwatch tag")
)
