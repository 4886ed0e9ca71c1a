package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/shopmindai/chatcore/internal/broker"
)

func newTestRegistry() *Registry {
	log := logrus.NewEntry(logrus.New())
	var reg *Registry
	brk := broker.New(nil, log, func(channel string, payload []byte) {
		reg.DispatchFallback(channel, payload)
	})
	reg = NewRegistry(brk, log)
	return reg
}

func newTestSession() *Session {
	return &Session{outbox: make(chan []byte, 16)}
}

func recv(t *testing.T, s *Session) []byte {
	t.Helper()
	select {
	case payload := <-s.outbox:
		return payload
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
		return nil
	}
}

func TestRegistry_PublishChat_FansOutToLocalSubscribers(t *testing.T) {
	reg := newTestRegistry()
	a, b := newTestSession(), newTestSession()
	reg.AttachChat(a, 100)
	reg.AttachChat(b, 100)

	reg.PublishChat(context.Background(), 100, MessageCreated(1, 100, 1, nil, "text", "now", nil))

	recv(t, a)
	recv(t, b)
}

func TestRegistry_PublishChat_DoesNotReachOtherChats(t *testing.T) {
	reg := newTestRegistry()
	a := newTestSession()
	reg.AttachChat(a, 100)

	reg.PublishChat(context.Background(), 200, MessageCreated(1, 200, 1, nil, "text", "now", nil))

	select {
	case <-a.outbox:
		t.Fatal("session subscribed to a different chat should not receive this publish")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRegistry_Detach_StopsFurtherDelivery(t *testing.T) {
	reg := newTestRegistry()
	a := newTestSession()
	reg.AttachChat(a, 100)
	reg.AttachUser(a, 7)

	reg.Detach(a)

	reg.PublishChat(context.Background(), 100, MessageCreated(1, 100, 1, nil, "text", "now", nil))
	reg.PublishUser(context.Background(), 7, authOk(7))

	select {
	case <-a.outbox:
		t.Fatal("a detached session should not receive further publishes")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRegistry_PublishUser_FansOutAcrossMultipleDevices(t *testing.T) {
	reg := newTestRegistry()
	desktop, mobile := newTestSession(), newTestSession()
	reg.AttachUser(desktop, 42)
	reg.AttachUser(mobile, 42)

	reg.PublishUser(context.Background(), 42, ReadReceipt(42, 9))

	recv(t, desktop)
	recv(t, mobile)
}

func TestRegistry_LocalSessionsForChat_Snapshot(t *testing.T) {
	reg := newTestRegistry()
	a, b := newTestSession(), newTestSession()
	reg.AttachChat(a, 1)
	reg.AttachChat(b, 1)

	assert.Len(t, reg.LocalSessionsForChat(1), 2)
}
