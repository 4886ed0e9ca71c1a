// Package httpapi wires the HTTP surface of spec.md §6 on top of
// gin-gonic/gin, the same router the teacher's chat-service cmd/server uses.
// Every write endpoint follows C7's authorize/persist/publish shape via
// internal/dispatch; read endpoints (C8) enrich store rows and attach
// pre-signed URLs via internal/objectstore.
package httpapi

import (
	"github.com/sirupsen/logrus"

	"github.com/shopmindai/chatcore/internal/authn"
	"github.com/shopmindai/chatcore/internal/authz"
	"github.com/shopmindai/chatcore/internal/cache"
	"github.com/shopmindai/chatcore/internal/dispatch"
	"github.com/shopmindai/chatcore/internal/objectstore"
	"github.com/shopmindai/chatcore/internal/realtime"
	"github.com/shopmindai/chatcore/internal/store"
)

// Handlers bundles every collaborator the HTTP surface needs. Built once in
// cmd/server and threaded through the router — a server context value, not
// a package-level global, per DESIGN NOTES §9's "singleton services".
type Handlers struct {
	Store         *store.Store
	Authz         *authz.Oracle
	Dispatch      *dispatch.Handlers
	Registry      *realtime.Registry
	Presence      *realtime.Presence
	Signer        *authn.Signer
	Cache         *cache.Manager
	ObjStore      objectstore.Config
	MaxFileSizeMB int
	Log           *logrus.Entry
}

func (h *Handlers) presignFile(bucket, key string) string {
	return objectstore.PresignGET(h.ObjStore, bucket, key)
}
