//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"plan-chat/domain/chat"
	"plan-chat/domain/mimetypes"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// IMessageRepository persists messages. Insert returns the stored record with its generated id.
type IMessageRepository interface {
	Insert(ctx context.Context, message chat.Message) (chat.Message, error)
	FindByPlan(ctx context.Context, planID chat.PlanID) ([]chat.Message, error)
}

// IMediaUploader pushes an image to the media host and returns its durable URL.
type IMediaUploader interface {
	Upload(ctx context.Context, planID chat.PlanID, image mimetypes.Image) (string, error)
}

type IMessageIndex interface {
	Index(ctx context.Context, message chat.Message) error
	Search(ctx context.Context, planID chat.PlanID, terms string, limit int) ([]chat.Message, error)
}

// EventSink receives relay frames addressed to one connection.
type EventSink interface {
	Consume(ctx context.Context, envelope chat.Envelope) error
}

type ConnID string

type RegistryStats struct {
	Connections int `json:"connections"`
	Rooms       int `json:"rooms"`
}

// IRegistry maps relay connections to their sink and to the rooms they joined.
// An empty except in SinksForRoom excludes nobody.
type IRegistry interface {
	Connect(connID ConnID, sink EventSink)
	Join(connID ConnID, room chat.PlanID) bool
	Disconnect(connID ConnID) []chat.PlanID
	Sink(connID ConnID) (EventSink, bool)
	SinksForRoom(room chat.PlanID, except ConnID) []EventSink
	Stats() RegistryStats
}
