package analysis

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResult_EncodeKeepsOrder(t *testing.T) {
	tests := []struct {
		name   string
		result Result
		want   string
	}{
		{
			name:   "scalar",
			result: Scalar{Value: 4},
			want:   `{"type":"scalar","value":4}`,
		},
		{
			name:   "mapping",
			result: mapping("Sylhet", 600.0, "Dhaka", mapping("2023", 3500.0, "2024", nil)),
			want:   `{"type":"dict","data":{"Sylhet":600,"Dhaka":{"2023":3500,"2024":null}}}`,
		},
		{
			name:   "sequence",
			result: Sequence{Items: []any{"a", 1.5, true, nil}},
			want:   `{"type":"list","data":["a",1.5,true,null]}`,
		},
		{
			name: "table",
			result: Table{
				Columns: []string{"Division_Name", "Net_Amount_BDT"},
				Rows:    [][]any{{"Dhaka", 5000.0}, {"Sylhet", nil}},
			},
			want: `{"type":"dataframe","data":[{"Division_Name":"Dhaka","Net_Amount_BDT":5000},{"Division_Name":"Sylhet","Net_Amount_BDT":null}],"shape":[2,2],"columns":["Division_Name","Net_Amount_BDT"]}`,
		},
		{
			name:   "unrecognized",
			result: Unrecognized{Text: "nan"},
			want:   `{"type":"unknown","data":"nan"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := json.Marshal(tt.result)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(raw))

			decoded, err := DecodeResult(raw)
			require.NoError(t, err)
			assert.Equal(t, tt.result, decoded)
		})
	}
}

func TestDecodeResult_Strict(t *testing.T) {
	for name, raw := range map[string]string{
		"not json":          `{"type":`,
		"missing tag":       `{"value":4}`,
		"unknown tag":       `{"type":"series","data":{}}`,
		"string scalar":     `{"type":"scalar","value":"4"}`,
		"extra field":       `{"type":"scalar","value":4,"extra":1}`,
		"dict without data": `{"type":"dict"}`,
		"list as object":    `{"type":"list","data":{}}`,
		"shape mismatch":    `{"type":"dataframe","data":[{"a":1}],"shape":[2,1],"columns":["a"]}`,
		"missing column":    `{"type":"dataframe","data":[{"b":1}],"shape":[1,1],"columns":["a"]}`,
		"negative shape":    `{"type":"dataframe","data":[],"shape":[-1,0],"columns":[]}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeResult([]byte(raw))
			assert.ErrorIs(t, err, ErrMalformedResult)
		})
	}
}

func TestEnvelope_InStruct(t *testing.T) {
	type response struct {
		Success bool      `json:"success"`
		Data    *Envelope `json:"data"`
	}

	in := response{Success: true, Data: &Envelope{Result: mapping("b", 2.0, "a", 1.0)}}
	raw, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"data":{"type":"dict","data":{"b":2,"a":1}}}`, string(raw))

	var out response
	require.NoError(t, json.Unmarshal(raw, &out))
	require.NotNil(t, out.Data)
	assert.Equal(t, []string{"b", "a"}, out.Data.Result.(Mapping).Keys())

	var empty response
	require.NoError(t, json.Unmarshal([]byte(`{"success":false,"data":null}`), &empty))
	assert.Nil(t, empty.Data)

	assert.Error(t, json.Unmarshal([]byte(`{"data":{"type":"nope"}}`), &empty))
}

func TestScalar_RejectsNonFinite(t *testing.T) {
	_, err := Scalar{Value: math.NaN()}.MarshalJSON()
	assert.Error(t, err)

	_, err = json.Marshal(Normalize(math.Inf(-1)))
	require.NoError(t, err)
}
