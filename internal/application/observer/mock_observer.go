package observer

import (
	"context"
	"fmt"
	"sync"
)

// MockObserver is a test observer that records every event it receives.
type MockObserver struct {
	name       string
	events     []Event
	callCount  int
	mu         sync.Mutex
	filter     EventFilter
	shouldFail bool
	failError  error
}

func NewMockObserver(name string) *MockObserver {
	return &MockObserver{
		name:   name,
		events: make([]Event, 0),
	}
}

func (m *MockObserver) Name() string {
	return m.name
}

func (m *MockObserver) Filter() EventFilter {
	return m.filter
}

func (m *MockObserver) OnEvent(ctx context.Context, event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.callCount++
	m.events = append(m.events, event)

	if m.shouldFail {
		if m.failError != nil {
			return m.failError
		}
		return fmt.Errorf("mock observer error")
	}

	return nil
}

func (m *MockObserver) GetEvents() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	eventsCopy := make([]Event, len(m.events))
	copy(eventsCopy, m.events)
	return eventsCopy
}

func (m *MockObserver) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

func (m *MockObserver) SetFilter(filter EventFilter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filter = filter
}

func (m *MockObserver) SetShouldFail(fail bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shouldFail = fail
	m.failError = err
}
