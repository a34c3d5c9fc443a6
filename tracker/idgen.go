package tracker

import "sync"

// IDGenerator hands out incremental tracking IDs.  The counter only ever
// increases so an ID is never reused, not even after the processor is reset.
type IDGenerator struct {
	id int32
	sync.Mutex
}

// NewIDGenerator returns a generator whose first ID is 1
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{}
}

// GetNext returns the next incremental ID
func (id *IDGenerator) GetNext() int32 {
	id.Lock()
	defer id.Unlock()
	id.id++
	return id.id
}

// Last returns the most recently issued ID, or 0 if none has been issued
func (id *IDGenerator) Last() int32 {
	id.Lock()
	defer id.Unlock()
	return id.id
}
