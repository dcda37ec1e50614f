package pipeline

import "quill/internal/store"

// allowedEdges is the directed stage graph. Items only move forward except
// for the failed <-> queued pair, which supports publish failure and manual
// re-queue. Nothing leaves published.
var allowedEdges = map[store.Stage]map[store.Stage]struct{}{
	store.StageInput:      {store.StageProcessing: {}},
	store.StageProcessing: {store.StageQueued: {}},
	store.StageQueued:     {store.StagePublished: {}, store.StageFailed: {}},
	store.StageFailed:     {store.StageQueued: {}},
	store.StagePublished:  {},
}

// EdgeAllowed reports whether the stage graph permits a transition.
func EdgeAllowed(from, to store.Stage) bool {
	targets, ok := allowedEdges[from]
	if !ok {
		return false
	}
	_, ok = targets[to]
	return ok
}
