// Package runtime routes relay frames between connections grouped by plan room.
// It holds no message history: everything it knows lives in memory and dies with the process.
package runtime

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"plan-chat/contract"
	"plan-chat/domain/chat"
	"plan-chat/errors"
)

const defaultCommandBuffer = 256

type RelayStats struct {
	contract.RegistryStats
	Relayed  uint64 `json:"relayed"`
	Rejected uint64 `json:"rejected"`
}

type relayCommand interface {
	apply(ctx context.Context, r *Relay)
}

type connectCmd struct {
	connID contract.ConnID
	sink   contract.EventSink
}

type frameCmd struct {
	connID   contract.ConnID
	envelope chat.Envelope
}

type rejectCmd struct {
	connID contract.ConnID
	err    error
}

type disconnectCmd struct {
	connID contract.ConnID
}

type statsCmd struct {
	reply chan RelayStats
}

// Relay is the single owner of the membership table. Connection handlers submit
// commands and the Run loop applies them one at a time, so frames coming from one
// connection are relayed in the order they were read.
type Relay struct {
	registry     contract.IRegistry
	commands     chan relayCommand
	echoToSender bool
	log          *slog.Logger
	stopped      chan struct{}
	stopOnce     sync.Once
	relayed      atomic.Uint64
	rejected     atomic.Uint64
}

// NewRelay builds a relay on top of registry. With echoToSender the author of a
// message receives its own receive-message frame too.
func NewRelay(registry contract.IRegistry, bufferSize int, echoToSender bool, log *slog.Logger) *Relay {
	if bufferSize <= 0 {
		bufferSize = defaultCommandBuffer
	}
	return &Relay{
		registry:     registry,
		commands:     make(chan relayCommand, bufferSize),
		echoToSender: echoToSender,
		log:          log,
		stopped:      make(chan struct{}),
	}
}

func (r *Relay) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			r.stopOnce.Do(func() { close(r.stopped) })
			r.log.Debug("Relay stopped")
			return nil
		case cmd := <-r.commands:
			cmd.apply(ctx, r)
		}
	}
}

// Connect registers a connection. It belongs to no room until it sends join-room.
func (r *Relay) Connect(ctx context.Context, connID contract.ConnID, sink contract.EventSink) error {
	return r.submit(ctx, connectCmd{connID: connID, sink: sink})
}

// Handle parses one inbound frame of the connection authenticated as userID and queues it.
// An invalid frame, or a message signed with another author, is answered with an error
// event on the sender's own connection and never reaches the room.
func (r *Relay) Handle(ctx context.Context, connID contract.ConnID, userID string, frame []byte) error {
	envelope, err := chat.ParseEnvelope(frame)
	if err == nil {
		err = envelope.CheckAuthor(userID)
	}
	if err != nil {
		return r.submit(ctx, rejectCmd{connID: connID, err: err})
	}
	return r.submit(ctx, frameCmd{connID: connID, envelope: envelope})
}

func (r *Relay) Disconnect(ctx context.Context, connID contract.ConnID) error {
	return r.submit(ctx, disconnectCmd{connID: connID})
}

func (r *Relay) Stats(ctx context.Context) (RelayStats, error) {
	reply := make(chan RelayStats, 1)
	if err := r.submit(ctx, statsCmd{reply: reply}); err != nil {
		return RelayStats{}, err
	}
	select {
	case stats := <-reply:
		return stats, nil
	case <-ctx.Done():
		return RelayStats{}, ctx.Err()
	case <-r.stopped:
		return RelayStats{}, errors.ErrRelayClosed
	}
}

// Backlog reports how many commands wait for the event loop.
func (r *Relay) Backlog() (length, capacity int) {
	return len(r.commands), cap(r.commands)
}

func (r *Relay) submit(ctx context.Context, cmd relayCommand) error {
	select {
	case <-r.stopped:
		return errors.ErrRelayClosed
	default:
	}
	select {
	case r.commands <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-r.stopped:
		return errors.ErrRelayClosed
	}
}

func (c connectCmd) apply(_ context.Context, r *Relay) {
	r.registry.Connect(c.connID, c.sink)
	r.log.Debug("Connection registered", "conn_id", c.connID)
}

func (c frameCmd) apply(ctx context.Context, r *Relay) {
	switch c.envelope.Event {
	case chat.EventJoinRoom:
		if r.registry.Join(c.connID, c.envelope.Room) {
			r.log.Debug("Room joined", "conn_id", c.connID, "room", c.envelope.Room)
		}
	case chat.EventSendMessage:
		except := c.connID
		if r.echoToSender {
			except = ""
		}
		outbound := chat.NewReceiveMessage(c.envelope.Room, c.envelope.Payload)
		sinks := r.registry.SinksForRoom(c.envelope.Room, except)
		for _, sink := range sinks {
			if err := sink.Consume(ctx, outbound); err != nil {
				r.log.Debug("Frame not delivered", "room", c.envelope.Room, "error", err)
			}
		}
		r.relayed.Add(1)
		r.log.Debug("Message relayed", "conn_id", c.connID, "room", c.envelope.Room, "recipients", len(sinks))
	}
}

func (c rejectCmd) apply(ctx context.Context, r *Relay) {
	r.rejected.Add(1)
	r.log.Debug("Frame rejected", "conn_id", c.connID, "error", c.err)
	sink, ok := r.registry.Sink(c.connID)
	if !ok {
		return
	}
	if err := sink.Consume(ctx, chat.NewErrorEvent("", c.err)); err != nil {
		r.log.Debug("Error event not delivered", "conn_id", c.connID, "error", err)
	}
}

func (c disconnectCmd) apply(_ context.Context, r *Relay) {
	left := r.registry.Disconnect(c.connID)
	r.log.Debug("Connection closed", "conn_id", c.connID, "rooms_left", len(left))
}

func (c statsCmd) apply(_ context.Context, r *Relay) {
	c.reply <- RelayStats{
		RegistryStats: r.registry.Stats(),
		Relayed:       r.relayed.Load(),
		Rejected:      r.rejected.Load(),
	}
}
