package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/shopmindai/chatcore/internal/broker"
	"github.com/shopmindai/chatcore/internal/model"
)

type fakePresenceStore struct {
	chats        map[int64][]int64
	settings     map[int64]*model.UserSettings
	users        map[int64]*model.User
	touchedCalls []int64
}

func (f *fakePresenceStore) ChatsForUser(ctx context.Context, userID int64) ([]int64, error) {
	return f.chats[userID], nil
}

func (f *fakePresenceStore) GetUserSettings(ctx context.Context, userID int64) (*model.UserSettings, error) {
	if s, ok := f.settings[userID]; ok {
		return s, nil
	}
	s := model.DefaultUserSettings(userID)
	return &s, nil
}

func (f *fakePresenceStore) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	return f.users[id], nil
}

func (f *fakePresenceStore) TouchUserLastActivity(ctx context.Context, userID int64) error {
	f.touchedCalls = append(f.touchedCalls, userID)
	return nil
}

func newTestPresence(fs *fakePresenceStore) (*Presence, *Registry) {
	log := logrus.NewEntry(logrus.New())
	var reg *Registry
	brk := broker.New(nil, log, func(channel string, payload []byte) { reg.DispatchFallback(channel, payload) })
	reg = NewRegistry(brk, log)
	return NewPresence(fs, reg, log), reg
}

func TestPresence_Attach_BroadcastsOnlineOnFirstSession(t *testing.T) {
	fs := &fakePresenceStore{
		chats:    map[int64][]int64{1: {100}},
		settings: map[int64]*model.UserSettings{1: {LastSeenVisibility: model.VisibilityEveryone}},
	}
	pr, reg := newTestPresence(fs)
	viewer := newTestSession()
	reg.AttachChat(viewer, 100)

	pr.Attach(context.Background(), 1, true)

	recv(t, viewer)
}

func TestPresence_Attach_SecondSessionDoesNotRebroadcast(t *testing.T) {
	fs := &fakePresenceStore{
		chats:    map[int64][]int64{1: {100}},
		settings: map[int64]*model.UserSettings{1: {LastSeenVisibility: model.VisibilityEveryone}},
	}
	pr, reg := newTestPresence(fs)
	viewer := newTestSession()
	reg.AttachChat(viewer, 100)

	pr.Attach(context.Background(), 1, true)
	recv(t, viewer)

	pr.Attach(context.Background(), 1, true) // a second device attaching

	select {
	case <-viewer.outbox:
		t.Fatal("a second active session for an already-online user should not broadcast again")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPresence_Detach_BroadcastsOfflineOnLastSession(t *testing.T) {
	fs := &fakePresenceStore{
		chats:    map[int64][]int64{1: {100}},
		settings: map[int64]*model.UserSettings{1: {LastSeenVisibility: model.VisibilityEveryone}},
	}
	pr, reg := newTestPresence(fs)
	viewer := newTestSession()
	reg.AttachChat(viewer, 100)

	pr.Attach(context.Background(), 1, true)
	recv(t, viewer) // online

	pr.Detach(context.Background(), 1, true)
	recv(t, viewer) // offline

	assert.Equal(t, []int64{1}, fs.touchedCalls)
}

func TestPresence_VisibilityNobody_SuppressesOtherViewers(t *testing.T) {
	fs := &fakePresenceStore{
		chats:    map[int64][]int64{1: {100}},
		settings: map[int64]*model.UserSettings{1: {LastSeenVisibility: model.VisibilityNobody}},
	}
	pr, reg := newTestPresence(fs)
	other := newTestSession()
	other.userID = 2
	reg.AttachChat(other, 100)

	pr.Attach(context.Background(), 1, true)

	select {
	case <-other.outbox:
		t.Fatal("visibility=nobody should suppress the broadcast to other viewers")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPresence_VisibilityApproxOnly_SendsBucketToOthersButFullToSelf(t *testing.T) {
	fs := &fakePresenceStore{
		chats:    map[int64][]int64{1: {100}},
		settings: map[int64]*model.UserSettings{1: {LastSeenVisibility: model.VisibilityApproxOnly}},
	}
	pr, reg := newTestPresence(fs)
	self := newTestSession()
	self.userID = 1
	other := newTestSession()
	other.userID = 2
	reg.AttachChat(self, 100)
	reg.AttachChat(other, 100)

	pr.Attach(context.Background(), 1, true)

	selfPayload := string(recv(t, self))
	otherPayload := string(recv(t, other))

	assert.Contains(t, selfPayload, `"status":"online"`, "self payload should carry the exact status")
	assert.NotContains(t, otherPayload, `"status"`, "other viewer payload should not carry an exact status")
}
