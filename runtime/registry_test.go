package runtime

import (
	"context"
	"testing"

	"plan-chat/contract"
	"plan-chat/domain/chat"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type Sink struct {
	name string
}

func (s Sink) Consume(_ context.Context, _ chat.Envelope) error {
	return nil
}

func TestRegistry_Join_One_Room_One_Connection(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	connID := contract.ConnID(uuid.NewString())
	sink := Sink{name: "a"}

	// Given no connection is open
	req.Equal(contract.RegistryStats{}, registry.Stats())

	// When a connection opens and joins a room
	registry.Connect(connID, sink)
	req.True(registry.Join(connID, "plan-42"))

	// Then
	req.Equal(contract.RegistryStats{Connections: 1, Rooms: 1}, registry.Stats())
	req.Equal([]contract.EventSink{sink}, registry.SinksForRoom("plan-42", ""))
	req.Empty(registry.SinksForRoom("plan-42", connID))
}

func TestRegistry_Join_Twice_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	registry.Connect("c1", Sink{name: "a"})

	req.True(registry.Join("c1", "plan-42"))
	req.False(registry.Join("c1", "plan-42"))
	req.Len(registry.SinksForRoom("plan-42", ""), 1)
}

func TestRegistry_Join_Unknown_Connection(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	req.False(registry.Join("ghost", "plan-42"))
	req.Nil(registry.SinksForRoom("plan-42", ""))
}

func TestRegistry_Multiple_Rooms_Are_Isolated(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	a, b, c := Sink{name: "a"}, Sink{name: "b"}, Sink{name: "c"}

	// Given A and B in plan-42, C in plan-7
	registry.Connect("A", a)
	registry.Connect("B", b)
	registry.Connect("C", c)
	registry.Join("A", "plan-42")
	registry.Join("B", "plan-42")
	registry.Join("C", "plan-7")

	// Then a message from A to plan-42 reaches B only
	req.Equal([]contract.EventSink{b}, registry.SinksForRoom("plan-42", "A"))
	req.Equal([]contract.EventSink{c}, registry.SinksForRoom("plan-7", ""))
	req.ElementsMatch([]contract.EventSink{a, b}, registry.SinksForRoom("plan-42", ""))
}

func TestRegistry_Disconnect_Clears_Memberships(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	registry.Connect("A", Sink{name: "a"})
	registry.Connect("B", Sink{name: "b"})
	registry.Join("A", "plan-42")
	registry.Join("A", "plan-7")
	registry.Join("B", "plan-42")

	// When A disconnects
	left := registry.Disconnect("A")

	// Then A left both rooms and plan-7, now empty, is gone
	req.ElementsMatch([]chat.PlanID{"plan-42", "plan-7"}, left)
	req.Equal(contract.RegistryStats{Connections: 1, Rooms: 1}, registry.Stats())
	req.Nil(registry.SinksForRoom("plan-7", ""))
	_, ok := registry.Sink("A")
	req.False(ok)

	// And disconnecting again is harmless
	req.Empty(registry.Disconnect("A"))
}
