package authz

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopmindai/chatcore/internal/model"
)

func TestCanEdit(t *testing.T) {
	o := New(nil)
	now := time.Now()

	cases := []struct {
		name string
		msg  *model.Message
		user int64
		want bool
	}{
		{"sender editing own text message", &model.Message{SenderID: 1, MessageType: model.MessageText, CreatedAt: now}, 1, true},
		{"non-sender cannot edit", &model.Message{SenderID: 1, MessageType: model.MessageText, CreatedAt: now}, 2, false},
		{"deleted message cannot be edited", &model.Message{SenderID: 1, MessageType: model.MessageText, IsDeleted: true, CreatedAt: now}, 1, false},
		{"non-text message cannot be edited", &model.Message{SenderID: 1, MessageType: model.MessageFile, CreatedAt: now}, 1, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, o.CanEdit(tc.msg, tc.user))
		})
	}
}

// CanDeleteForEveryone's window check and the sender fast path never touch
// the store, so both are testable with a nil *store.Store.
func TestCanDeleteForEveryone_WindowAndSenderFastPaths(t *testing.T) {
	o := New(nil)

	t.Run("sender within window", func(t *testing.T) {
		msg := &model.Message{SenderID: 7, ChatID: 1, CreatedAt: time.Now().Add(-time.Hour)}
		ok, err := o.CanDeleteForEveryone(nil, msg, 7)
		require.NoError(t, err)
		assert.True(t, ok, "sender within the 48h window should be allowed")
	})

	t.Run("sender outside window", func(t *testing.T) {
		msg := &model.Message{SenderID: 7, ChatID: 1, CreatedAt: time.Now().Add(-49 * time.Hour)}
		ok, err := o.CanDeleteForEveryone(nil, msg, 7)
		require.NoError(t, err)
		assert.False(t, ok, "sender outside the 48h window should be denied, including the original sender")
	})

	t.Run("non-sender outside window never reaches the store", func(t *testing.T) {
		msg := &model.Message{SenderID: 7, ChatID: 1, CreatedAt: time.Now().Add(-49 * time.Hour)}
		ok, err := o.CanDeleteForEveryone(nil, msg, 99)
		require.NoError(t, err)
		assert.False(t, ok, "expected denial purely from the window check")
	})
}
