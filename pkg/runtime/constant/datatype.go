package constant

import (
	"encoding/json"
	"fmt"
)

type DataType int8

const (
	BOOL DataType = iota
	INT16
	INT32
	INT64
	UINT16
	UINT32
	UINT64
	FLOAT32
	FLOAT64
	STRING
)

var DataTypeToString = map[DataType]string{
	BOOL:    "bool",
	INT16:   "int16",
	INT32:   "int32",
	INT64:   "int64",
	UINT16:  "uint16",
	UINT32:  "uint32",
	UINT64:  "uint64",
	FLOAT32: "float32",
	FLOAT64: "float64",
	STRING:  "string",
}

var StringToDataType = map[string]DataType{
	"bool":    BOOL,
	"int16":   INT16,
	"int32":   INT32,
	"int64":   INT64,
	"uint16":  UINT16,
	"uint32":  UINT32,
	"uint64":  UINT64,
	"float32": FLOAT32,
	"float64": FLOAT64,
	"string":  STRING,
}

func (dt DataType) MarshalJSON() ([]byte, error) {
	if s, ok := DataTypeToString[dt]; ok {
		return json.Marshal(s)
	}
	return nil, fmt.Errorf("unknown data type %d", dt)
}

func (dt *DataType) UnmarshalJSON(bytes []byte) error {
	var s string
	if err := json.Unmarshal(bytes, &s); err != nil {
		return err
	}

	v, ok := StringToDataType[s]
	if !ok {
		return fmt.Errorf("unknown data type %s", s)
	}
	*dt = v
	return nil
}
