package domain

import (
	"bytes"
	"encoding/json"
	"time"
)

// DataType is one entry of the immutable measurement type reference set.
type DataType struct {
	ID    int64  `json:"id"`
	Label string `json:"label"`
	Unit  string `json:"unit,omitempty"`
}

// ResolvedType is a requested measurement type after registry lookup:
// the original label, its internal id, and the sanitized column alias.
type ResolvedType struct {
	Name   string
	TypeID int64
	Alias  string
}

// Column returns the pivoted result column name for this type.
func (t ResolvedType) Column() string {
	return t.Alias + "_value"
}

// ProfileData is the nested result of one aggregation pass.
//
// DataColumns lists the per-depth column names in the order the arrays
// appear on each cast: "depth_id", "depth", "date_and_time", then one
// "<alias>_value" column per requested measurement type. It is sourced
// from the compiled query, never from the rows, so an empty result
// still names its columns.
type ProfileData struct {
	DataColumns []string      `json:"data_columns"`
	DataSets    []DataSetNode `json:"data_sets"`
	GeneratedAt time.Time     `json:"generated_at,omitzero"`
}

// DataSetNode is one data set in an aggregation result.
type DataSetNode struct {
	DataSetID int64         `json:"data_set_id"`
	Expocode  string        `json:"expocode"`
	Stations  []StationNode `json:"stations"`
}

// StationNode is one station, in row order, within a data set node.
type StationNode struct {
	StationID     int64      `json:"station_id"`
	StationNumber int64      `json:"station_number"`
	Latitude      float64    `json:"latitude"`
	Longitude     float64    `json:"longitude"`
	Casts         []CastNode `json:"casts"`
}

// CastNode holds one cast's depth samples as parallel arrays: index i
// of every array describes the same depth sample. Measurement arrays
// keep a nil where that type was not measured at a depth, so positions
// stay aligned across columns.
type CastNode struct {
	CastID   int64       `json:"cast_id"`
	CastNo   int64       `json:"cast_no"`
	DepthIDs []int64     `json:"depth_id"`
	Depths   []float64   `json:"depth"`
	Times    []time.Time `json:"date_and_time"`

	// Values maps a pivoted column name ("<alias>_value") to that
	// column's array. Serialized flat alongside the fixed arrays; see
	// MarshalJSON.
	Values map[string][]*float64 `json:"-"`

	// valueOrder preserves the compiler's column order for
	// serialization. Maps iterate randomly, result columns must not.
	valueOrder []string
}

// NewCastNode creates a cast node whose measurement arrays will
// serialize in the given column order.
func NewCastNode(castID, castNo int64, valueColumns []string) CastNode {
	return CastNode{
		CastID:     castID,
		CastNo:     castNo,
		Values:     make(map[string][]*float64, len(valueColumns)),
		valueOrder: valueColumns,
	}
}

// ValueColumns returns the measurement column names in serialization order.
func (c CastNode) ValueColumns() []string {
	return c.valueOrder
}

// MarshalJSON flattens the measurement arrays next to the fixed arrays,
// producing one JSON object per cast:
//
//	{"cast_id":5678,"cast_no":1,"depth_id":[...],"depth":[...],
//	 "date_and_time":[...],"temperature_value":[...],...}
func (c CastNode) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	fields := []struct {
		name  string
		value any
	}{
		{"cast_id", c.CastID},
		{"cast_no", c.CastNo},
		{"depth_id", emptyNotNull(c.DepthIDs)},
		{"depth", emptyNotNull(c.Depths)},
		{"date_and_time", emptyNotNull(c.Times)},
	}
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeField(&buf, f.name, f.value); err != nil {
			return nil, err
		}
	}
	for _, col := range c.valueOrder {
		buf.WriteByte(',')
		if err := writeField(&buf, col, emptyNotNull(c.Values[col])); err != nil {
			return nil, err
		}
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeField(buf *bytes.Buffer, name string, value any) error {
	key, err := json.Marshal(name)
	if err != nil {
		return err
	}
	buf.Write(key)
	buf.WriteByte(':')
	val, err := json.Marshal(value)
	if err != nil {
		return err
	}
	buf.Write(val)
	return nil
}

// emptyNotNull keeps nil slices rendering as [] instead of null.
func emptyNotNull[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
