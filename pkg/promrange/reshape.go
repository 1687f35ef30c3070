package promrange

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/tidwall/gjson"
)

// MissingKeyError reports that the response body lacks one of the nested
// keys the range query result shape requires. It is surfaced to the caller
// so the offending payload can be echoed back for debugging.
type MissingKeyError struct {
	Path string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("promrange: response is missing %q", e.Path)
}

// Frame is a column-per-series table indexed by timestamp: one column per
// distinct instance label, rows aligned to the sorted Index. Gaps (an
// instance with no sample at a given timestamp) hold NaN.
type Frame struct {
	Index   []time.Time          `json:"index"`
	Columns []string             `json:"columns"`
	Data    map[string][]float64 `json:"data"`
}

// MarshalJSON encodes gaps as null; encoding/json rejects NaN outright.
func (f *Frame) MarshalJSON() ([]byte, error) {
	data := make(map[string][]any, len(f.Data))
	for name, col := range f.Data {
		vals := make([]any, len(col))
		for i, v := range col {
			if math.IsNaN(v) {
				vals[i] = nil
			} else {
				vals[i] = v
			}
		}
		data[name] = vals
	}
	return json.Marshal(struct {
		Index   []time.Time      `json:"index"`
		Columns []string         `json:"columns"`
		Data    map[string][]any `json:"data"`
	}{f.Index, f.Columns, data})
}

// Reshape converts a range query response body of the shape
//
//	{"data": {"result": [{"metric": {"instance": ...}, "values": [[ts, "v"], ...]}, ...]}}
//
// into a Frame. Timestamps are epoch seconds converted to UTC time points;
// values are the source strings converted to float64. Any missing expected
// key returns a *MissingKeyError; a value that does not parse as a number is
// an error as well. Sample order within a series is kept chronological as
// returned by the source, with no deduplication or gap filling beyond the
// NaN alignment.
func Reshape(body []byte) (*Frame, error) {
	result := gjson.GetBytes(body, "data.result")
	if !result.Exists() {
		return nil, &MissingKeyError{Path: "data.result"}
	}

	type sample struct {
		ts    int64
		value float64
	}
	series := make(map[string][]sample)
	order := []string{}

	var reshapeErr error
	result.ForEach(func(_, mtr gjson.Result) bool {
		instance := mtr.Get("metric.instance")
		if !instance.Exists() {
			reshapeErr = &MissingKeyError{Path: "metric.instance"}
			return false
		}
		values := mtr.Get("values")
		if !values.Exists() {
			reshapeErr = &MissingKeyError{Path: "values"}
			return false
		}

		name := instance.String()
		if _, seen := series[name]; !seen {
			order = append(order, name)
		}
		values.ForEach(func(_, pair gjson.Result) bool {
			arr := pair.Array()
			if len(arr) != 2 {
				reshapeErr = fmt.Errorf("promrange: invalid value pair length: %d", len(arr))
				return false
			}
			v, err := strconv.ParseFloat(arr[1].String(), 64)
			if err != nil {
				reshapeErr = fmt.Errorf("promrange: parse value: %w", err)
				return false
			}
			series[name] = append(series[name], sample{ts: int64(arr[0].Float()), value: v})
			return true
		})
		return reshapeErr == nil
	})
	if reshapeErr != nil {
		return nil, reshapeErr
	}

	// Union of timestamps across all series forms the index.
	stamps := make(map[int64]struct{})
	for _, samples := range series {
		for _, s := range samples {
			stamps[s.ts] = struct{}{}
		}
	}
	index := make([]int64, 0, len(stamps))
	for ts := range stamps {
		index = append(index, ts)
	}
	sort.Slice(index, func(i, j int) bool { return index[i] < index[j] })

	at := make(map[int64]int, len(index))
	frame := &Frame{
		Columns: order,
		Data:    make(map[string][]float64, len(order)),
		Index:   make([]time.Time, len(index)),
	}
	for i, ts := range index {
		at[ts] = i
		frame.Index[i] = time.Unix(ts, 0).UTC()
	}

	for _, name := range order {
		col := make([]float64, len(index))
		for i := range col {
			col[i] = math.NaN()
		}
		for _, s := range series[name] {
			col[at[s.ts]] = s.value
		}
		frame.Data[name] = col
	}
	return frame, nil
}
