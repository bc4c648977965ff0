package mocks

import (
	"sync"

	"github.com/mcoot/gamerelay/internal/dependencies/random"
)

// MockRandom is a mock implementation of Random for testing.
// Queued values are returned in order; once a queue is empty Intn returns 0
// and Bytes returns a deterministic counter-derived slice.
type MockRandom struct {
	mu sync.Mutex

	intnResults []int
	bytesResult [][]byte
	counter     byte
}

// Ensure MockRandom implements Random
var _ random.Random = (*MockRandom)(nil)

// NewMockRandom creates a new MockRandom
func NewMockRandom() *MockRandom {
	return &MockRandom{}
}

// Intn returns the next queued result, or 0 if none remaining
func (r *MockRandom) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.intnResults) == 0 {
		return 0
	}
	result := r.intnResults[0]
	r.intnResults = r.intnResults[1:]
	return result
}

// Bytes returns the next queued slice, or n bytes filled from an incrementing counter
func (r *MockRandom) Bytes(n int) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.bytesResult) > 0 {
		result := r.bytesResult[0]
		r.bytesResult = r.bytesResult[1:]
		return result
	}
	r.counter++
	b := make([]byte, n)
	for i := range b {
		b[i] = r.counter
	}
	return b
}

// QueueIntn adds values to the Intn result queue
func (r *MockRandom) QueueIntn(values ...int) {
	r.mu.Lock()
	r.intnResults = append(r.intnResults, values...)
	r.mu.Unlock()
}

// QueueBytes adds values to the Bytes result queue
func (r *MockRandom) QueueBytes(values ...[]byte) {
	r.mu.Lock()
	r.bytesResult = append(r.bytesResult, values...)
	r.mu.Unlock()
}

// Reset clears all queued results
func (r *MockRandom) Reset() {
	r.mu.Lock()
	r.intnResults = nil
	r.bytesResult = nil
	r.counter = 0
	r.mu.Unlock()
}
