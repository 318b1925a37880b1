package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_RoundTripsThroughJSON(t *testing.T) {
	cases := []struct {
		name string
		in   Value
	}{
		{"string", NewString("hello")},
		{"int", NewInt(42)},
		{"float", NewFloat(3.5)},
		{"bool", NewBool(true)},
		{"array", NewArray([]Value{NewInt(1), NewString("x")})},
		{"object", NewObject(map[string]Value{"k": NewString("v")})},
		{"null", Null},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			data, err := json.Marshal(c.in)
			require.NoError(t, err)

			var out Value
			require.NoError(t, json.Unmarshal(data, &out))
			assert.Equal(t, c.in.Kind(), out.Kind())
		})
	}
}

func TestValue_UnmarshalKeepsWholeNumbersAsInt(t *testing.T) {
	var v Value
	require.NoError(t, json.Unmarshal([]byte(`7`), &v))
	assert.Equal(t, KindInt, v.Kind())
	assert.EqualValues(t, 7, v.Int())

	require.NoError(t, json.Unmarshal([]byte(`7.5`), &v))
	assert.Equal(t, KindFloat, v.Kind())
}

func TestValue_String(t *testing.T) {
	assert.Equal(t, "hello", NewString("hello").String())
	assert.Equal(t, "42", NewInt(42).String())
	assert.Equal(t, "true", NewBool(true).String())
	assert.Equal(t, "", Null.String())
}
