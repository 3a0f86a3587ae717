package kb

import (
	"errors"
	"fmt"
	"sync"

	"github.com/signalsfoundry/relay-network-simulator/model"
)

var (
	// ErrBodyExists indicates a body with the same ID or name is already stored.
	ErrBodyExists = errors.New("body already exists")
	// ErrBodyNotFound indicates a requested body was not found.
	ErrBodyNotFound = errors.New("body not found")
	// ErrConstellationExists indicates a constellation with the same ID or name
	// is already stored.
	ErrConstellationExists = errors.New("constellation already exists")
	// ErrConstellationNotFound indicates a requested constellation was not found.
	ErrConstellationNotFound = errors.New("constellation not found")
)

// EventType indicates what kind of change happened in the KB.
type EventType int

const (
	EventBodyAdded EventType = iota
	EventBodyRemoved
	EventConstellationAdded
	EventConstellationRemoved
)

func (t EventType) String() string {
	switch t {
	case EventBodyAdded:
		return "body added"
	case EventBodyRemoved:
		return "body removed"
	case EventConstellationAdded:
		return "constellation added"
	case EventConstellationRemoved:
		return "constellation removed"
	default:
		return "unknown event"
	}
}

// Event is emitted to subscribers when something interesting happens.
type Event struct {
	Type EventType
	ID   string
	Name string
}

// KnowledgeBase is the arena that owns every body and constellation, keyed by
// stable ID. Bodies reference their parent by ID only, so removal never leaves
// a reference cycle behind. Listing preserves insertion order.
type KnowledgeBase struct {
	mu sync.RWMutex

	bodies    map[string]*model.Body
	bodyOrder []string

	constellations     map[string]*model.Constellation
	constellationOrder []string

	subs []func(Event)
}

// NewKnowledgeBase constructs an empty KB.
func NewKnowledgeBase() *KnowledgeBase {
	return &KnowledgeBase{
		bodies:         make(map[string]*model.Body),
		constellations: make(map[string]*model.Constellation),
	}
}

// AddBody stores a body. The ID and name must be unique and a non-empty
// ParentID must reference a stored body.
func (kb *KnowledgeBase) AddBody(b *model.Body) error {
	if b == nil || b.ID == "" {
		return fmt.Errorf("nil or empty body")
	}

	kb.mu.Lock()
	if _, exists := kb.bodies[b.ID]; exists {
		kb.mu.Unlock()
		return fmt.Errorf("%w: id %q", ErrBodyExists, b.ID)
	}
	if kb.bodyByNameLocked(b.Name) != nil {
		kb.mu.Unlock()
		return fmt.Errorf("%w: name %q", ErrBodyExists, b.Name)
	}
	if b.HasParent() {
		if _, ok := kb.bodies[b.ParentID]; !ok {
			kb.mu.Unlock()
			return fmt.Errorf("%w: parent %q", ErrBodyNotFound, b.ParentID)
		}
	}
	// store pointer so motion updates land in place
	kb.bodies[b.ID] = b
	kb.bodyOrder = append(kb.bodyOrder, b.ID)
	subs := kb.subscribersLocked()
	kb.mu.Unlock()

	notify(subs, Event{Type: EventBodyAdded, ID: b.ID, Name: b.Name})
	return nil
}

// GetBody returns the body with the given ID, or nil if not found.
func (kb *KnowledgeBase) GetBody(id string) *model.Body {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return kb.bodies[id]
}

// FindBodyByName returns the body with the given name, or nil if not found.
func (kb *KnowledgeBase) FindBodyByName(name string) *model.Body {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return kb.bodyByNameLocked(name)
}

// ListBodies returns a snapshot slice of all bodies in insertion order.
func (kb *KnowledgeBase) ListBodies() []*model.Body {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	res := make([]*model.Body, 0, len(kb.bodyOrder))
	for _, id := range kb.bodyOrder {
		res = append(res, kb.bodies[id])
	}
	return res
}

// Children returns the direct children of the body with the given ID.
func (kb *KnowledgeBase) Children(id string) []*model.Body {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	var res []*model.Body
	for _, bid := range kb.bodyOrder {
		if b := kb.bodies[bid]; b.ParentID == id {
			res = append(res, b)
		}
	}
	return res
}

// Descendants returns every body below id, breadth first.
func (kb *KnowledgeBase) Descendants(id string) []*model.Body {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return kb.descendantsLocked(id)
}

// RemoveBodies deletes the given bodies. Unknown IDs are ignored.
func (kb *KnowledgeBase) RemoveBodies(ids ...string) {
	kb.mu.Lock()
	var events []Event
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		b, ok := kb.bodies[id]
		if !ok {
			continue
		}
		drop[id] = struct{}{}
		delete(kb.bodies, id)
		events = append(events, Event{Type: EventBodyRemoved, ID: id, Name: b.Name})
	}
	kb.bodyOrder = filterOrder(kb.bodyOrder, drop)
	subs := kb.subscribersLocked()
	kb.mu.Unlock()

	for _, ev := range events {
		notify(subs, ev)
	}
}

// AddConstellation stores a constellation. Its anchor must be a stored body.
func (kb *KnowledgeBase) AddConstellation(c *model.Constellation) error {
	if c == nil || c.ID == "" {
		return fmt.Errorf("nil or empty constellation")
	}

	kb.mu.Lock()
	if _, exists := kb.constellations[c.ID]; exists {
		kb.mu.Unlock()
		return fmt.Errorf("%w: id %q", ErrConstellationExists, c.ID)
	}
	if kb.constellationByNameLocked(c.Name) != nil {
		kb.mu.Unlock()
		return fmt.Errorf("%w: name %q", ErrConstellationExists, c.Name)
	}
	if _, ok := kb.bodies[c.AnchorID]; !ok {
		kb.mu.Unlock()
		return fmt.Errorf("%w: anchor %q", ErrBodyNotFound, c.AnchorID)
	}
	kb.constellations[c.ID] = c
	kb.constellationOrder = append(kb.constellationOrder, c.ID)
	subs := kb.subscribersLocked()
	kb.mu.Unlock()

	notify(subs, Event{Type: EventConstellationAdded, ID: c.ID, Name: c.Name})
	return nil
}

// GetConstellation returns the constellation with the given ID, or nil.
func (kb *KnowledgeBase) GetConstellation(id string) *model.Constellation {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return kb.constellations[id]
}

// FindConstellationByName returns the constellation with the given name, or nil.
func (kb *KnowledgeBase) FindConstellationByName(name string) *model.Constellation {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return kb.constellationByNameLocked(name)
}

// ListConstellations returns a snapshot slice of all constellations in
// insertion order.
func (kb *KnowledgeBase) ListConstellations() []*model.Constellation {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	res := make([]*model.Constellation, 0, len(kb.constellationOrder))
	for _, id := range kb.constellationOrder {
		res = append(res, kb.constellations[id])
	}
	return res
}

// ConstellationsAnchoredTo returns the constellations orbiting any of the
// given bodies.
func (kb *KnowledgeBase) ConstellationsAnchoredTo(bodyIDs ...string) []*model.Constellation {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	anchors := make(map[string]struct{}, len(bodyIDs))
	for _, id := range bodyIDs {
		anchors[id] = struct{}{}
	}
	var res []*model.Constellation
	for _, id := range kb.constellationOrder {
		c := kb.constellations[id]
		if _, ok := anchors[c.AnchorID]; ok {
			res = append(res, c)
		}
	}
	return res
}

// RemoveConstellations deletes the given constellations. Unknown IDs are
// ignored.
func (kb *KnowledgeBase) RemoveConstellations(ids ...string) {
	kb.mu.Lock()
	var events []Event
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		c, ok := kb.constellations[id]
		if !ok {
			continue
		}
		drop[id] = struct{}{}
		delete(kb.constellations, id)
		events = append(events, Event{Type: EventConstellationRemoved, ID: id, Name: c.Name})
	}
	kb.constellationOrder = filterOrder(kb.constellationOrder, drop)
	subs := kb.subscribersLocked()
	kb.mu.Unlock()

	for _, ev := range events {
		notify(subs, ev)
	}
}

// Counts returns the number of bodies, constellations and satellites.
func (kb *KnowledgeBase) Counts() (bodies, constellations, satellites int) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	for _, c := range kb.constellations {
		satellites += c.Size()
	}
	return len(kb.bodies), len(kb.constellations), satellites
}

// Subscribe registers a callback for KB events. It returns an unsubscribe function.
func (kb *KnowledgeBase) Subscribe(fn func(Event)) (unsubscribe func()) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	kb.subs = append(kb.subs, fn)
	idx := len(kb.subs) - 1

	return func() {
		kb.mu.Lock()
		defer kb.mu.Unlock()
		if idx < 0 || idx >= len(kb.subs) {
			return
		}
		kb.subs[idx] = nil
		idx = -1
	}
}

func (kb *KnowledgeBase) bodyByNameLocked(name string) *model.Body {
	for _, id := range kb.bodyOrder {
		if b := kb.bodies[id]; b.Name == name {
			return b
		}
	}
	return nil
}

func (kb *KnowledgeBase) constellationByNameLocked(name string) *model.Constellation {
	for _, id := range kb.constellationOrder {
		if c := kb.constellations[id]; c.Name == name {
			return c
		}
	}
	return nil
}

func (kb *KnowledgeBase) descendantsLocked(id string) []*model.Body {
	var res []*model.Body
	seen := map[string]struct{}{id: {}}
	frontier := []string{id}
	for len(frontier) > 0 {
		var next []string
		for _, parent := range frontier {
			for _, bid := range kb.bodyOrder {
				b := kb.bodies[bid]
				if b.ParentID != parent {
					continue
				}
				if _, dup := seen[b.ID]; dup {
					continue
				}
				seen[b.ID] = struct{}{}
				res = append(res, b)
				next = append(next, b.ID)
			}
		}
		frontier = next
	}
	return res
}

// subscribersLocked copies the subscriber list so callbacks run outside the
// lock.
func (kb *KnowledgeBase) subscribersLocked() []func(Event) {
	return append([]func(Event){}, kb.subs...)
}

func notify(subs []func(Event), ev Event) {
	for _, sub := range subs {
		if sub != nil {
			sub(ev)
		}
	}
}

func filterOrder(order []string, drop map[string]struct{}) []string {
	if len(drop) == 0 {
		return order
	}
	kept := order[:0]
	for _, id := range order {
		if _, ok := drop[id]; !ok {
			kept = append(kept, id)
		}
	}
	return kept
}
