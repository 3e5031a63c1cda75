package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCastNodeMarshalJSON(t *testing.T) {
	t.Run("flattens measurement arrays in column order", func(t *testing.T) {
		temp1, temp2 := 10.1, 20.5
		cast := NewCastNode(5678, 1, []string{"temperature_value", "salinity_value"})
		cast.DepthIDs = []int64{100, 101}
		cast.Depths = []float64{10.5, 22.0}
		cast.Times = []time.Time{
			time.Date(1985, 1, 1, 20, 0, 0, 0, time.UTC),
			time.Date(1985, 1, 1, 20, 0, 0, 0, time.UTC),
		}
		cast.Values["temperature_value"] = []*float64{&temp1, &temp2}
		cast.Values["salinity_value"] = []*float64{nil, nil}

		data, err := json.Marshal(cast)
		require.NoError(t, err)

		var decoded map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Contains(t, decoded, "cast_id")
		assert.Contains(t, decoded, "depth_id")
		assert.Contains(t, decoded, "temperature_value")
		assert.JSONEq(t, `[10.1,20.5]`, string(decoded["temperature_value"]))
		assert.JSONEq(t, `[null,null]`, string(decoded["salinity_value"]))

		// Column order must match the compiler's, not map iteration.
		assert.Regexp(t, `"temperature_value":.*"salinity_value":`, string(data))
	})

	t.Run("empty cast renders empty arrays, not null", func(t *testing.T) {
		cast := NewCastNode(1, 1, []string{"oxygen_value"})

		data, err := json.Marshal(cast)
		require.NoError(t, err)
		assert.JSONEq(t,
			`{"cast_id":1,"cast_no":1,"depth_id":[],"depth":[],"date_and_time":[],"oxygen_value":[]}`,
			string(data))
	})
}
