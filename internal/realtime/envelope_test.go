package realtime

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, e Envelope) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(e.bytes(), &out), "envelope did not round-trip through JSON")
	return out
}

func TestMessageCreated_OmitsReplyWhenNil(t *testing.T) {
	content := "hello"
	got := decode(t, MessageCreated(1, 2, 3, &content, "text", "2026-01-01T00:00:00Z", nil))
	assert.NotContains(t, got, "reply_to_message_id", "should be absent when replyTo is nil")
	assert.Equal(t, "message", got["type"])
}

func TestMessageCreated_IncludesReplyWhenSet(t *testing.T) {
	content := "hello"
	replyTo := int64(42)
	got := decode(t, MessageCreated(1, 2, 3, &content, "text", "2026-01-01T00:00:00Z", &replyTo))
	assert.Equal(t, float64(42), got["reply_to_message_id"])
}

func TestMessageDeleted_AlwaysForEveryone(t *testing.T) {
	got := decode(t, MessageDeleted(5, 9))
	assert.Equal(t, true, got["for_everyone"], "message_deleted envelope should always carry for_everyone=true")
}

func TestChatUpdated_MergesChangedFields(t *testing.T) {
	name := "new-name"
	got := decode(t, ChatUpdated(7, map[string]interface{}{"name": name}))
	assert.Equal(t, float64(7), got["chat_id"])
	assert.Equal(t, name, got["name"])
}

func TestPresenceApprox_CarriesBucketNotExactStatus(t *testing.T) {
	got := decode(t, PresenceApprox(11, "recently"))
	assert.Equal(t, "approx_only", got["privacy"])
	assert.Equal(t, "recently", got["last_seen_bucket"])
	assert.NotContains(t, got, "status", "approx envelope should not carry an exact status field")
}

func TestEnvelopeBytes_Deterministic(t *testing.T) {
	e := pong()
	assert.JSONEq(t, `{"type":"pong"}`, string(e.bytes()))
}
