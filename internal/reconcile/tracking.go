package reconcile

import (
	"sync"
	"time"
)

type EventType string

const (
	EventNew    EventType = "new"
	EventCancel EventType = "cancel"
)

// TrackingCap – ile zdarzeń trzymamy w pamięci. W bazie bez limitu.
const TrackingCap = 50

type TrackingEvent struct {
	Time        time.Time
	OrderNumber string
	ProductName string
	Type        EventType
	SessionID   string
}

// TrackingLog – log zdarzeń od najnowszego, z limitem TrackingCap.
type TrackingLog struct {
	mu     sync.Mutex
	events []TrackingEvent
}

// Record dopisuje zdarzenia na początek; najstarsze nadmiarowe wypadają.
func (l *TrackingLog) Record(events ...TrackingEvent) {
	if len(events) == 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	next := make([]TrackingEvent, 0, len(events)+len(l.events))
	for i := len(events) - 1; i >= 0; i-- {
		next = append(next, events[i])
	}
	next = append(next, l.events...)
	if len(next) > TrackingCap {
		next = next[:TrackingCap]
	}
	l.events = next
}

// Events zwraca kopię, najnowsze pierwsze.
func (l *TrackingLog) Events() []TrackingEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]TrackingEvent(nil), l.events...)
}

func (l *TrackingLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

func (l *TrackingLog) Clear() {
	l.mu.Lock()
	l.events = nil
	l.mu.Unlock()
}

// EventsFromDiff zamienia wynik Diff na zdarzenia: najpierw nowe, potem
// anulowane, każda grupa po numerze zamówienia.
func EventsFromDiff(d DiffResult, at time.Time, session string) []TrackingEvent {
	out := make([]TrackingEvent, 0, len(d.Arrivals)+len(d.Cancellations))
	for _, no := range d.Arrivals.OrderNumbers() {
		out = append(out, TrackingEvent{Time: at, OrderNumber: no, ProductName: d.Arrivals[no], Type: EventNew, SessionID: session})
	}
	for _, no := range d.Cancellations.OrderNumbers() {
		out = append(out, TrackingEvent{Time: at, OrderNumber: no, ProductName: d.Cancellations[no], Type: EventCancel, SessionID: session})
	}
	return out
}
