package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParseCoefficient(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Coefficient
		wantErr bool
	}{
		{name: "integer", input: "2", want: 2000},
		{name: "one decimal", input: "1.5", want: 1500},
		{name: "three decimals", input: "1.857", want: 1857},
		{name: "trailing zeros", input: "2.500", want: 2500},
		{name: "whitespace", input: " 3.25 ", want: 3250},
		{name: "too many decimals", input: "1.8575", wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{name: "negative", input: "-1.5", wantErr: true},
		{name: "garbage", input: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCoefficient(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCoefficientString(t *testing.T) {
	assert.Equal(t, "1.857", Coefficient(1857).String())
	assert.Equal(t, "2.000", Coefficient(2000).String())
	assert.Equal(t, "0.500", Coefficient(500).String())
}

func TestCoefficientPayoutTruncates(t *testing.T) {
	// 100 * 1.857 = 185.7, fractional stars are dropped
	assert.Equal(t, int64(185), Coefficient(1857).Payout(100))
	assert.Equal(t, int64(200), Coefficient(2000).Payout(100))
	assert.Equal(t, int64(0), Coefficient(1500).Payout(0))
	assert.Equal(t, int64(1), Coefficient(1999).Payout(1))
}

func TestCoefficientJSONRoundTrip(t *testing.T) {
	c := Coefficient(1857)
	data, err := json.Marshal(c)
	require.NoError(t, err)
	assert.Equal(t, "1.857", string(data))

	var back Coefficient
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, c, back)

	var fromInt Coefficient
	require.NoError(t, json.Unmarshal([]byte("2"), &fromInt))
	assert.Equal(t, Coefficient(2000), fromInt)
}

// Payout must never exceed the exact product and never undershoot by a full
// star, for any stake and coefficient.
func TestCoefficientPayoutProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		value := rapid.Int64Range(0, 1_000_000).Draw(t, "value")
		coef := Coefficient(rapid.Int64Range(1000, 999_999).Draw(t, "coef"))

		payout := coef.Payout(value)

		exact := value * int64(coef)
		assert.LessOrEqual(t, payout*1000, exact)
		assert.Greater(t, (payout+1)*1000, exact)

		// Coefficient >= 1.000 never pays less than the stake
		assert.GreaterOrEqual(t, payout, value)
	})
}

func TestCoefficientStringParseRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		c := Coefficient(rapid.Int64Range(0, 999_999).Draw(t, "coef"))
		parsed, err := ParseCoefficient(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, parsed)
	})
}
