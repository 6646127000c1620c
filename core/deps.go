package core

import (
	"pkt.systems/foldscreen/schema"
	"pkt.systems/pslog"
)

// KV is a string key-value store scoped to one browsing context.
type KV interface {
	Get(key string) (string, bool)
	Set(key, value string) error
}

// OpenStoreFunc opens the key-value store of a browsing context.
type OpenStoreFunc func(id schema.ContextID) (KV, error)

// Metrics observes emulator activity.
type Metrics interface {
	Invalidated(id schema.ContextID, coalesced bool)
	Dispatched(id schema.ContextID)
	Resized(id schema.ContextID)
	BridgeMessage(id schema.ContextID, err error)
	ContextsLive(n int)
}

// RegistryDeps captures dependencies for the emulator registry.
type RegistryDeps struct {
	OpenStore OpenStoreFunc
	Metrics   Metrics
	Logger    pslog.Logger
}

type noopMetrics struct{}

func (noopMetrics) Invalidated(schema.ContextID, bool)    {}
func (noopMetrics) Dispatched(schema.ContextID)           {}
func (noopMetrics) Resized(schema.ContextID)              {}
func (noopMetrics) BridgeMessage(schema.ContextID, error) {}
func (noopMetrics) ContextsLive(int)                      {}
