package normalize

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var contractSchema = Schema{
	{Name: "vendor_name", Type: Text},
	{Name: "contract_start_date", Type: Text},
	{Name: "contract_end_date", Type: Text},
	{Name: "total_value", Type: Float},
}

func TestCoerce_NotObject(t *testing.T) {
	for _, payload := range []any{nil, "x", []any{1}, 3.0} {
		_, err := Coerce(payload, contractSchema)
		assert.ErrorIs(t, err, ErrNotObject)
	}
}

func TestCoerce_ContractPayload(t *testing.T) {
	got, err := Coerce(map[string]any{
		"vendor_name":         "  Acme \n Corp ",
		"contract_start_date": "March 1st, 2026",
		"contract_end_date":   "03/31/2027",
		"total_value":         "$70,000 USD",
		"notes":               "dropped",
	}, contractSchema)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"vendor_name":         "Acme Corp",
		"contract_start_date": "2026-03-01",
		"contract_end_date":   "2027-03-31",
		"total_value":         70000.0,
	}, got)
}

func TestCoerce_MissingAndAbsentNumbers(t *testing.T) {
	got, err := Coerce(map[string]any{
		"vendor_name": "Acme",
		"total_value": nil,
	}, contractSchema)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"vendor_name": "Acme"}, got)
}

func TestCoerce_IntAndBool(t *testing.T) {
	schema := Schema{{Name: "count", Type: Int}, {Name: "flag", Type: Bool}}
	got, err := Coerce(map[string]any{"count": "12.9 units", "flag": "Yes"}, schema)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"count": int64(12), "flag": true}, got)
}

func TestToNumber(t *testing.T) {
	tests := []struct {
		name   string
		in     any
		want   float64
		wantOK bool
	}{
		{"currency and separators", "$70,000 USD", 70000, true},
		{"magnitude word", "1.5 million dollars", 1500000, true},
		{"magnitude suffix", "USD 250k", 250000, true},
		{"billion", "2 B", 2e9, true},
		{"parenthesized negative", "(200)", -200, true},
		{"euro", "€1,200.50", 1200.5, true},
		{"pounds word", "300 pounds", 300, true},
		{"plain float", 42.5, 42.5, true},
		{"plain int", 7, 7, true},
		{"unit that is not a magnitude", "5 months", 5, true},
		{"null", nil, 0, false},
		{"blank", "   ", 0, false},
		{"bool", true, 0, false},
		{"nullish text", "N/A", 0, false},
		{"no digits", "tbd", 0, false},
		{"infinite", math.Inf(1), 0, false},
		{"nan", math.NaN(), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ToNumber(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.InDelta(t, tt.want, got, 1e-9)
			}
		})
	}
}

func TestToText_Nullish(t *testing.T) {
	for _, in := range []string{"", "-", "n/a", "NA", "None", "NULL", "nil", "Unknown", "Not Specified", "not available", "  n/a  "} {
		assert.Equal(t, "", ToText(in, "vendor_name"), "input %q", in)
	}
}

func TestToText_NonString(t *testing.T) {
	assert.Equal(t, "", ToText(nil, "vendor_name"))
	assert.Equal(t, "1500", ToText(1500.0, "vendor_name"))
	assert.Equal(t, "true", ToText(true, "vendor_name"))
	assert.Equal(t, `{"a":1}`, ToText(map[string]any{"a": 1}, "vendor_name"))
	assert.Equal(t, `["x","y"]`, ToText([]any{"x", "y"}, "vendor_name"))
}

func TestToText_Dates(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2026-03-01", "2026-03-01"},
		{"2026/3/1", "2026-03-01"},
		{"03/31/2027", "2027-03-31"},
		{"31/03/2027", "2027-03-31"},
		{"31-03-2027", "2027-03-31"},
		{"March 1st, 2026", "2026-03-01"},
		{"Mar 22nd, 2026", "2026-03-22"},
		{"3rd January 2026", "2026-01-03"},
		{"14 Feb 2026", "2026-02-14"},
		{"end of next   quarter", "end of next quarter"},
		{"Feb 30, 2026", "Feb 30, 2026"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ToText(tt.in, "contract_end_date"))
		})
	}
}

func TestToText_DateOnlyForDateFields(t *testing.T) {
	assert.Equal(t, "March 1st, 2026", ToText("March 1st, 2026", "vendor_name"))
}

func TestToBool(t *testing.T) {
	tests := []struct {
		in   any
		want bool
	}{
		{true, true},
		{false, false},
		{1.0, true},
		{0.0, false},
		{"YES", true},
		{" y ", true},
		{"1", true},
		{"no", false},
		{"maybe", false},
		{nil, false},
		{[]any{}, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ToBool(tt.in), "input %#v", tt.in)
	}
}
