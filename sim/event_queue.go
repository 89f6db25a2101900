package sim

// eventTypePriority breaks ties between events with equal Timestamp and no
// natural ordering otherwise. Lower value pops first. Events not listed
// get a value after every listed one (lowest priority among ties), which only
// matters for same-microsecond events and is fixed across runs regardless.
var eventTypePriority = map[string]int{
	"IngressEvent":          0,
	"NetworkDelayEvent":     1,
	"SFIProcessEvent":       2,
	"DoSchedulingEvent":     3,
	"ServerCPUShareEvent":   4,
	"RateEstimatorTickEvent": 5,
}

func typePriority(name string) int {
	if p, ok := eventTypePriority[name]; ok {
		return p
	}
	return len(eventTypePriority)
}

// EventQueue implements container/heap.Interface, ordering events by
// (Timestamp, type priority, EventID). The EventID tie-break guarantees a
// stable, deterministic pop order for events sharing both timestamp and
// type, matching the insertion order they were scheduled in.
type EventQueue struct {
	items    []Event
	typeName func(Event) string
}

// NewEventQueue creates an empty EventQueue. typeName classifies an Event
// for tie-break priority purposes (normally via a type switch in events.go).
func NewEventQueue(typeName func(Event) string) *EventQueue {
	return &EventQueue{typeName: typeName}
}

func (q *EventQueue) Len() int { return len(q.items) }

func (q *EventQueue) Less(i, j int) bool {
	a, b := q.items[i], q.items[j]
	if a.Timestamp() != b.Timestamp() {
		return a.Timestamp() < b.Timestamp()
	}
	pa, pb := typePriority(q.typeName(a)), typePriority(q.typeName(b))
	if pa != pb {
		return pa < pb
	}
	return a.EventID() < b.EventID()
}

func (q *EventQueue) Swap(i, j int) { q.items[i], q.items[j] = q.items[j], q.items[i] }

func (q *EventQueue) Push(x any) {
	q.items = append(q.items, x.(Event))
}

func (q *EventQueue) Pop() any {
	old := q.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	q.items = old[:n-1]
	return item
}

// Peek returns the event with the smallest (Timestamp, priority, id) without
// removing it, or nil if the queue is empty.
func (q *EventQueue) Peek() Event {
	if len(q.items) == 0 {
		return nil
	}
	return q.items[0]
}
