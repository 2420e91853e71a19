// Package hl implements hub labeling: a per-node pair of sorted (hub, cost)
// labels derived from a contraction hierarchy, answering shortest-path cost
// queries via a sorted-merge overlap in O(|label|) time. Grounded in the
// original ship_routing's routing/hl/label.rs, re-expressed over this
// repo's CSR-backed CHGraph and the shared pkg/dijkstra kernel.
package hl

import (
	"errors"
	"sort"
)

// ErrNoRoute is returned when two labels share no hub.
var ErrNoRoute = errors.New("hl: no route found")

// LabelEntry is one (hub, cost) pair in a Label, kept sorted by Hub so two
// labels can be merged in a single linear pass.
type LabelEntry struct {
	Hub  uint32
	Cost uint32
}

// Label is a sorted-by-Hub list of (hub, cost) entries.
type Label struct {
	Entries []LabelEntry
}

// newLabel builds a Label from an unsorted map of hub->cost, sorting it
// once, matching the original's Label::new.
func newLabel(reached map[uint32]uint32) Label {
	entries := make([]LabelEntry, 0, len(reached))
	for hub, cost := range reached {
		entries = append(entries, LabelEntry{Hub: hub, Cost: cost})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Hub < entries[j].Hub })
	return Label{Entries: entries}
}

// Overlap performs the sorted-merge minimal-overlap computation: the
// smallest sum of a.cost + b.cost over hubs shared by both labels.
func Overlap(a, b Label) (cost uint32, hub uint32, ok bool) {
	i, j := 0, 0
	best := ^uint32(0)
	var bestHub uint32
	for i < len(a.Entries) && j < len(b.Entries) {
		ea, eb := a.Entries[i], b.Entries[j]
		switch {
		case ea.Hub < eb.Hub:
			i++
		case ea.Hub > eb.Hub:
			j++
		default:
			if sum := ea.Cost + eb.Cost; sum < best {
				best = sum
				bestHub = ea.Hub
			}
			i++
			j++
		}
	}
	if best == ^uint32(0) {
		return 0, 0, false
	}
	return best, bestHub, true
}

// HubGraph holds the forward and backward labels for every node in a
// contraction hierarchy.
type HubGraph struct {
	Forward  []Label
	Backward []Label
}

// Query returns the shortest-path cost between source and target using the
// sorted-merge overlap of source's forward label and target's backward
// label.
func (h *HubGraph) Query(source, target uint32) (uint32, error) {
	cost, _, ok := Overlap(h.Forward[source], h.Backward[target])
	if !ok {
		return 0, ErrNoRoute
	}
	return cost, nil
}

// QueryHub is Query but also returns the meeting hub, needed by callers
// that must unpack a full path via the CH overlay afterwards.
func (h *HubGraph) QueryHub(source, target uint32) (cost uint32, hub uint32, err error) {
	cost, hub, ok := Overlap(h.Forward[source], h.Backward[target])
	if !ok {
		return 0, 0, ErrNoRoute
	}
	return cost, hub, nil
}
