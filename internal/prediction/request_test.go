package prediction

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMonth(t *testing.T) {
	tests := []struct {
		in      string
		want    Month
		wantErr bool
	}{
		{"October", 10, false},
		{"october", 10, false},
		{" MARCH ", 3, false},
		{"1", 1, false},
		{"12", 12, false},
		{"0", 0, true},
		{"13", 0, true},
		{"", 0, true},
		{"Oct", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMonth(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMonthJSON(t *testing.T) {
	b, err := json.Marshal(DefaultMonth)
	require.NoError(t, err)
	assert.Equal(t, `"October"`, string(b))

	var m Month
	require.NoError(t, json.Unmarshal([]byte(`"july"`), &m))
	assert.Equal(t, Month(7), m)
	require.NoError(t, json.Unmarshal([]byte(`4`), &m))
	assert.Equal(t, Month(4), m)
	assert.Error(t, json.Unmarshal([]byte(`"Smarch"`), &m))
}

func TestRequestNormalize(t *testing.T) {
	req, m, err := Request{DealerCode: " 10131 ", PartNumber: " ABC123\t", Month: "10"}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, "10131", req.DealerCode)
	assert.Equal(t, "ABC123", req.PartNumber)
	assert.Equal(t, "October", req.Month, "month is canonicalised to the name the backend expects")
	assert.Equal(t, Month(10), m)
}

func TestValidationErrorMessage(t *testing.T) {
	assert.Equal(t, "part_number is required", (&ValidationError{Field: "part_number"}).Error())
	assert.Equal(t, "month: unknown", (&ValidationError{Field: "month", Message: "unknown"}).Error())
}
