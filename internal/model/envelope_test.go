package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnvelope(t *testing.T) {
	line := []byte(`{"_id":"a1","class_id":1000,"variant_id":40,"update_date":"2026-01-15 10:30:00","update_count":3,"name":"ada lovelace"}`)

	env, err := ParseEnvelope(line)
	require.NoError(t, err)
	assert.Equal(t, "a1", env.ID)
	assert.Equal(t, 1000, env.ClassID)
	assert.Equal(t, 40, env.VariantID)
	assert.Equal(t, 3, env.UpdateCount)
	assert.Equal(t, time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC), env.UpdateDate)
	assert.JSONEq(t, string(line), string(env.Raw))
}

func TestParseEnvelope_MissingMetadata(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"missing _id", `{"class_id":1000,"variant_id":40}`},
		{"empty _id", `{"_id":"","class_id":1000,"variant_id":40}`},
		{"missing class_id", `{"_id":"a1","variant_id":40}`},
		{"missing variant_id", `{"_id":"a1","class_id":1000}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseEnvelope([]byte(tt.line))
			assert.Error(t, err)
		})
	}
}

func TestParseEnvelope_NotJSON(t *testing.T) {
	_, err := ParseEnvelope([]byte("not json at all"))
	assert.Error(t, err)

	_, err = ParseEnvelope([]byte(`[1,2,3]`))
	assert.Error(t, err)
}

func TestParseEnvelope_BadDateFallsBack(t *testing.T) {
	before := time.Now().UTC()
	env, err := ParseEnvelope([]byte(`{"_id":"a1","class_id":1000,"variant_id":40,"update_date":"garbage"}`))
	require.NoError(t, err)
	assert.False(t, env.UpdateDate.Before(before.Add(-time.Second)))
}

func TestEnvelope_MsgID(t *testing.T) {
	env := &Envelope{ID: "x9", ClassID: 1010, VariantID: 50}
	assert.Equal(t, "101050x9", env.MsgID())
}

func TestEnvelope_Kind(t *testing.T) {
	env := &Envelope{ClassID: 1020, VariantID: 1}
	assert.Equal(t, Kind{ClassID: 1020, VariantID: 1}, env.Kind())
}
