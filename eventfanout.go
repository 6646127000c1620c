package foldscreen

import (
	"pkt.systems/foldscreen/core"
	"pkt.systems/foldscreen/schema"
)

type metricsFanout struct {
	sinks []core.Metrics
}

func (f metricsFanout) Invalidated(id schema.ContextID, coalesced bool) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.Invalidated(id, coalesced)
	}
}

func (f metricsFanout) Dispatched(id schema.ContextID) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.Dispatched(id)
	}
}

func (f metricsFanout) Resized(id schema.ContextID) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.Resized(id)
	}
}

func (f metricsFanout) BridgeMessage(id schema.ContextID, err error) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.BridgeMessage(id, err)
	}
}

func (f metricsFanout) ContextsLive(n int) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.ContextsLive(n)
	}
}
