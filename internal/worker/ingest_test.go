package worker

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/creditwise/credit-gateway/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeUsagePlainEvent(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	raw, err := json.Marshal(model.UsageEvent{
		ID:        "01J0000000000000000000SAMP",
		AccountID: 42,
		Feature:   "ai_image_generation",
		Credits:   5,
		Detail:    `{"prompt_chars":120}`,
		CreatedAt: now,
	})
	require.NoError(t, err)

	rec, err := decodeUsage(raw)
	require.NoError(t, err)
	assert.Equal(t, int64(42), rec.AccountID)
	assert.Equal(t, model.OpImageGeneration, rec.Feature)
	assert.Equal(t, int64(5), rec.Credits)
	assert.Equal(t, now, rec.CreatedAt)
}

func TestDecodeUsageWrappedPayload(t *testing.T) {
	inner, err := json.Marshal(model.UsageEvent{
		ID:        "01J0000000000000000000SAMP",
		AccountID: 7,
		Feature:   "ai_text_chat",
		Credits:   1,
	})
	require.NoError(t, err)

	raw, err := json.Marshal(map[string]string{"payload": string(inner)})
	require.NoError(t, err)

	rec, err := decodeUsage(raw)
	require.NoError(t, err)
	assert.Equal(t, int64(7), rec.AccountID)
	assert.Equal(t, model.OpTextChat, rec.Feature)
}

func TestDecodeUsageRejectsGarbage(t *testing.T) {
	_, err := decodeUsage([]byte("not json"))
	assert.Error(t, err)

	_, err = decodeUsage([]byte(`{}`))
	assert.Error(t, err)
}

func TestDecodeUsageRejectsUnknownFeature(t *testing.T) {
	raw, err := json.Marshal(model.UsageEvent{ID: "x", AccountID: 1, Feature: "ai_video"})
	require.NoError(t, err)

	_, err = decodeUsage(raw)
	assert.ErrorIs(t, err, model.ErrUnrecognizedOperationType)
}
