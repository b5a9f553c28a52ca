package runtime

import (
	"sync"

	"plan-chat/contract"
	"plan-chat/domain/chat"
)

type Set map[contract.ConnID]struct{}

type Registry struct {
	mu          sync.RWMutex
	sessions    map[contract.ConnID]contract.EventSink // map connection -> Sink
	roomMembers map[chat.PlanID]Set                    // map room to connections
	memberOf    map[contract.ConnID]map[chat.PlanID]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		sessions:    make(map[contract.ConnID]contract.EventSink),
		roomMembers: make(map[chat.PlanID]Set),
		memberOf:    make(map[contract.ConnID]map[chat.PlanID]struct{}),
	}
}

// Connect registers the sink of a freshly opened connection. It joins no room.
func (r *Registry) Connect(connID contract.ConnID, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[connID] = sink
	if _, ok := r.memberOf[connID]; !ok {
		r.memberOf[connID] = make(map[chat.PlanID]struct{})
	}
}

// Join adds the connection to the room. Joining twice is a no-op and returns false.
// Unknown connections are ignored.
func (r *Registry) Join(connID contract.ConnID, room chat.PlanID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rooms, ok := r.memberOf[connID]
	if !ok {
		return false
	}
	if _, already := rooms[room]; already {
		return false
	}
	rooms[room] = struct{}{}

	if _, ok := r.roomMembers[room]; !ok {
		r.roomMembers[room] = make(Set)
	}
	r.roomMembers[room][connID] = struct{}{}
	return true
}

// Disconnect forgets the connection and every membership it held.
// Rooms left empty are removed to keep the map from growing over time.
func (r *Registry) Disconnect(connID contract.ConnID) []chat.PlanID {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, connID)
	rooms := r.memberOf[connID]
	delete(r.memberOf, connID)

	left := make([]chat.PlanID, 0, len(rooms))
	for room := range rooms {
		left = append(left, room)
		if members, ok := r.roomMembers[room]; ok {
			delete(members, connID)
			if len(members) == 0 {
				delete(r.roomMembers, room)
			}
		}
	}
	return left
}

func (r *Registry) Sink(connID contract.ConnID) (contract.EventSink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sink, ok := r.sessions[connID]
	return sink, ok
}

// SinksForRoom resolves the members of a room into their sinks, skipping except.
// Returns nil if the room doesn't exist or has no other members.
func (r *Registry) SinksForRoom(room chat.PlanID, except contract.ConnID) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.roomMembers[room]
	if !ok {
		return nil
	}
	var activeSinks []contract.EventSink
	for connID := range members {
		if connID == except {
			continue
		}
		if sink, exists := r.sessions[connID]; exists {
			activeSinks = append(activeSinks, sink)
		}
	}
	return activeSinks
}

func (r *Registry) Stats() contract.RegistryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return contract.RegistryStats{Connections: len(r.sessions), Rooms: len(r.roomMembers)}
}
