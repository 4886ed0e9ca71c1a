//go:build integration

// Integration tests against a real Postgres, spun up via testcontainers-go.
// Run with: go test -tags=integration ./internal/store/...
package store

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/shopmindai/chatcore/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("chat"),
		postgres.WithUsername("chat"),
		postgres.WithPassword("chat"),
	)
	require.NoError(t, err, "starting postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminating postgres container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "connection string")

	log := logrus.NewEntry(logrus.New())
	st, err := Open(dsn, log)
	require.NoError(t, err, "store.Open")
	t.Cleanup(func() { st.Close() })
	return st
}

func TestStore_CreateAndFetchUser(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	display := "Ada Lovelace"
	u, err := st.CreateUser(ctx, "ada", &display, "hashed-password")
	require.NoError(t, err, "CreateUser")
	assert.NotZero(t, u.ID, "CreateUser returned a zero ID")

	got, err := st.GetUserByID(ctx, u.ID)
	require.NoError(t, err, "GetUserByID")
	assert.Equal(t, "ada", got.Username)
	if assert.NotNil(t, got.DisplayName) {
		assert.Equal(t, display, *got.DisplayName)
	}
}

func TestStore_CreateChatAndListForMember(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	owner, err := st.CreateUser(ctx, "owner", nil, "hash")
	require.NoError(t, err, "CreateUser(owner)")
	member, err := st.CreateUser(ctx, "member", nil, "hash")
	require.NoError(t, err, "CreateUser(member)")

	name := "general"
	chat, err := st.CreateChat(ctx, model.Chat{Type: model.ChatGroup, Name: &name, OwnerID: owner.ID}, []int64{member.ID})
	require.NoError(t, err, "CreateChat")

	chats, err := st.ListChatsForUser(ctx, member.ID)
	require.NoError(t, err, "ListChatsForUser")
	found := false
	for _, c := range chats {
		if c.ID == chat.ID {
			found = true
		}
	}
	assert.True(t, found, "ListChatsForUser(member) should include chat %d", chat.ID)

	role, err := st.Membership(ctx, chat.ID, owner.ID)
	require.NoError(t, err, "Membership(owner)")
	assert.True(t, role.IsManager(), "owner role %q should be a manager role", role)
}

func TestStore_InsertAndPageMessages(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	owner, err := st.CreateUser(ctx, "sender", nil, "hash")
	require.NoError(t, err, "CreateUser")
	chat, err := st.CreateChat(ctx, model.Chat{Type: model.ChatDirect, OwnerID: owner.ID}, nil)
	require.NoError(t, err, "CreateChat")

	for i := 0; i < 3; i++ {
		text := "hello"
		_, _, err := st.InsertMessage(ctx, chat.ID, owner.ID, &text, model.MessageText, nil, nil, nil, nil)
		require.NoError(t, err, "InsertMessage[%d]", i)
	}

	page, err := st.EnrichedMessages(ctx, chat.ID, owner.ID, Cursor{}, 10)
	require.NoError(t, err, "EnrichedMessages")
	assert.Len(t, page, 3)
}

// seedChatWithMessages creates a group chat with two members and n text
// messages from the first, returning the message ids in insertion order.
func seedChatWithMessages(t *testing.T, st *Store, n int) (sender, other *model.User, chat *model.Chat, ids []int64) {
	t.Helper()
	ctx := context.Background()

	sender, err := st.CreateUser(ctx, "alice", nil, "hash")
	require.NoError(t, err, "CreateUser(alice)")
	other, err = st.CreateUser(ctx, "bob", nil, "hash")
	require.NoError(t, err, "CreateUser(bob)")
	chat, err = st.CreateChat(ctx, model.Chat{Type: model.ChatGroup, OwnerID: sender.ID}, []int64{other.ID})
	require.NoError(t, err, "CreateChat")

	for i := 0; i < n; i++ {
		text := "hello"
		id, _, err := st.InsertMessage(ctx, chat.ID, sender.ID, &text, model.MessageText, nil, nil, nil, nil)
		require.NoError(t, err, "InsertMessage[%d]", i)
		ids = append(ids, id)
	}
	return sender, other, chat, ids
}

func TestStore_ToggleReactionIsInvolution(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	sender, _, _, ids := seedChatWithMessages(t, st, 1)

	added, err := st.ToggleReaction(ctx, ids[0], sender.ID, "👍")
	require.NoError(t, err, "first toggle")
	assert.True(t, added, "first toggle should add")

	summaries, err := st.ReactionsByMessageIDs(ctx, sender.ID, ids)
	require.NoError(t, err, "ReactionsByMessageIDs")
	require.Len(t, summaries, 1)
	assert.Equal(t, 1, summaries[0].Count)
	assert.True(t, summaries[0].Me)

	added, err = st.ToggleReaction(ctx, ids[0], sender.ID, "👍")
	require.NoError(t, err, "second toggle")
	assert.False(t, added, "second toggle should remove")

	summaries, err = st.ReactionsByMessageIDs(ctx, sender.ID, ids)
	require.NoError(t, err, "ReactionsByMessageIDs after removal")
	assert.Empty(t, summaries, "toggling twice should return to the original state")
}

func TestStore_ReadCursorIsNonDecreasing(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	sender, _, chat, ids := seedChatWithMessages(t, st, 3)

	require.NoError(t, st.AdvanceReadCursor(ctx, sender.ID, chat.ID, ids[2]))
	require.NoError(t, st.AdvanceReadCursor(ctx, sender.ID, chat.ID, ids[0]), "retrograde advance must not error")

	cur, err := st.GetReadCursor(ctx, sender.ID, chat.ID)
	require.NoError(t, err, "GetReadCursor")
	assert.Equal(t, ids[2], cur.LastReadMsgID, "cursor must never move backwards")
}

func TestStore_DeleteForMeIsViewerScoped(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	sender, other, chat, ids := seedChatWithMessages(t, st, 2)

	require.NoError(t, st.DeleteMessageForUser(ctx, other.ID, ids[0]))

	forOther, err := st.EnrichedMessages(ctx, chat.ID, other.ID, Cursor{}, 10)
	require.NoError(t, err)
	assert.Len(t, forOther, 1, "deleted-for-me message must be hidden from that viewer")

	forSender, err := st.EnrichedMessages(ctx, chat.ID, sender.ID, Cursor{}, 10)
	require.NoError(t, err)
	assert.Len(t, forSender, 2, "deleted-for-me message must stay visible to everyone else")

	require.NoError(t, st.DeleteMessageForEveryone(ctx, ids[1]))
	forSender, err = st.EnrichedMessages(ctx, chat.ID, sender.ID, Cursor{}, 10)
	require.NoError(t, err)
	assert.Len(t, forSender, 1, "deleted-for-everyone message must be hidden from all viewers")
}

func TestStore_PagingWindows(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	sender, _, chat, ids := seedChatWithMessages(t, st, 5)

	after, err := st.EnrichedMessages(ctx, chat.ID, sender.ID, Cursor{After: &ids[1]}, 10)
	require.NoError(t, err, "after page")
	require.Len(t, after, 3)
	assert.Equal(t, ids[2], after[0].ID, "after paging starts just past the cursor")

	before, err := st.EnrichedMessages(ctx, chat.ID, sender.ID, Cursor{Before: &ids[3]}, 2)
	require.NoError(t, err, "before page")
	require.Len(t, before, 2)
	assert.Equal(t, []int64{ids[1], ids[2]}, []int64{before[0].ID, before[1].ID}, "before paging returns the newest older rows, ascending")

	newest, err := st.EnrichedMessages(ctx, chat.ID, sender.ID, Cursor{}, 2)
	require.NoError(t, err, "default page")
	require.Len(t, newest, 2)
	assert.Equal(t, []int64{ids[3], ids[4]}, []int64{newest[0].ID, newest[1].ID}, "default paging returns the newest rows, ascending")

	for i := 1; i < len(after); i++ {
		assert.True(t, after[i-1].ID < after[i].ID)
		assert.False(t, after[i].CreatedAt.Before(after[i-1].CreatedAt), "created_at must be non-decreasing in id order")
	}
}

func TestStore_SearchMessagesMatchesTextOnly(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	sender, _, chat, _ := seedChatWithMessages(t, st, 0)

	text := "Hello World"
	textID, _, err := st.InsertMessage(ctx, chat.ID, sender.ID, &text, model.MessageText, nil, nil, nil, nil)
	require.NoError(t, err)
	voiceCaption := "hello from voice"
	dur := 3
	_, _, err = st.InsertMessage(ctx, chat.ID, sender.ID, &voiceCaption, model.MessageVoice, nil, nil, &dur, nil)
	require.NoError(t, err)

	hits, err := st.SearchMessages(ctx, chat.ID, sender.ID, "hello", nil, 20)
	require.NoError(t, err, "SearchMessages")
	require.Len(t, hits, 1, "search is case-insensitive and restricted to text messages")
	assert.Equal(t, textID, hits[0].ID)
}

func TestStore_AtMostOneActivePin(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	sender, _, chat, ids := seedChatWithMessages(t, st, 2)

	require.NoError(t, st.PinMessage(ctx, chat.ID, ids[0], sender.ID))
	require.NoError(t, st.PinMessage(ctx, chat.ID, ids[1], sender.ID))

	pin, err := st.GetActivePinnedMessage(ctx, chat.ID)
	require.NoError(t, err, "GetActivePinnedMessage")
	assert.Equal(t, ids[1], pin.MessageID, "a new pin replaces the previous active pin")
	assert.Nil(t, pin.UnpinnedAt)

	require.NoError(t, st.UnpinMessage(ctx, chat.ID))
	_, err = st.GetActivePinnedMessage(ctx, chat.ID)
	assert.ErrorIs(t, err, ErrNotFound, "no active pin remains after unpin")
}

func TestStore_ChatAvatarRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	sender, _, chat, _ := seedChatWithMessages(t, st, 0)

	file, err := st.InsertFile(ctx, model.File{
		OwnerID: sender.ID, ObjectKey: "avatars/abc", Bucket: "chat-media",
		ContentType: "image/png", SizeBytes: 128,
	})
	require.NoError(t, err, "InsertFile")

	require.NoError(t, st.UpdateChatAvatar(ctx, chat.ID, file.ID))

	got, err := st.GetChat(ctx, chat.ID)
	require.NoError(t, err, "GetChat")
	if assert.NotNil(t, got.AvatarFileID) {
		assert.Equal(t, file.ID, *got.AvatarFileID)
	}
}
