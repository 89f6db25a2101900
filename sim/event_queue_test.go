package sim

import (
	"container/heap"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeEvent struct {
	BaseEvent
	name string
}

func (f *fakeEvent) Execute(sim *Simulator) {}

func TestEventQueue_OrdersByTimestampThenTypeThenID(t *testing.T) {
	typeName := func(e Event) string { return e.(*fakeEvent).name }
	q := NewEventQueue(typeName)

	push := func(name string, at, id int64) {
		heap.Push(q, &fakeEvent{BaseEvent: BaseEvent{At: at, ID: id}, name: name})
	}
	// Same timestamp: NetworkDelayEvent (priority 1) must pop before
	// ServerCPUShareEvent (priority 4) regardless of insertion order.
	push("ServerCPUShareEvent", 100, 1)
	push("NetworkDelayEvent", 100, 2)
	push("IngressEvent", 50, 3)
	push("NetworkDelayEvent", 100, 0) // lower id, same type/time: must pop first among equals

	var order []string
	for q.Len() > 0 {
		e := heap.Pop(q).(*fakeEvent)
		order = append(order, e.name)
	}
	assert.Equal(t, []string{"IngressEvent", "NetworkDelayEvent", "NetworkDelayEvent", "ServerCPUShareEvent"}, order)
}

func TestEventQueue_PeekDoesNotRemove(t *testing.T) {
	q := NewEventQueue(eventTypeName)
	heap.Push(q, &IngressEvent{BaseEvent: BaseEvent{At: 5, ID: 1}})
	assert.Equal(t, int64(5), q.Peek().Timestamp())
	assert.Equal(t, 1, q.Len())
}

func TestEventQueue_EmptyPeekIsNil(t *testing.T) {
	q := NewEventQueue(eventTypeName)
	assert.Nil(t, q.Peek())
}
