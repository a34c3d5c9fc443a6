package handtrack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct {
	value int
}

func TestStreamPublishesCompletedFrames(t *testing.T) {

	s := NewStream[counter](2, nil)
	assert.False(t, s.HasConnections())

	r := s.Connect()
	assert.True(t, s.HasConnections())

	_, _, ok := r.Acquire()
	assert.False(t, ok, "nothing published yet")

	frame := s.BeginWrite(1)
	require.NotNil(t, frame)
	frame.value = 10

	// an open write is not visible
	_, _, ok = r.Acquire()
	assert.False(t, ok)

	s.EndWrite()

	got, index, ok := r.Acquire()
	require.True(t, ok)
	assert.Equal(t, 1, index)
	assert.Equal(t, 10, got.value)
	r.Release()

	r.Close()
	assert.False(t, s.HasConnections())

	// closing twice does not disconnect other readers
	other := s.Connect()
	r.Close()
	assert.True(t, s.HasConnections())
	other.Close()
}

func TestStreamBackpressure(t *testing.T) {

	s := NewStream[counter](2, nil)
	r := s.Connect()
	defer r.Close()

	s.BeginWrite(1).value = 1
	s.EndWrite()

	// reader holds frame 1
	held, _, ok := r.Acquire()
	require.True(t, ok)

	s.BeginWrite(2).value = 2
	s.EndWrite()

	// frame 1 is held and frame 2 is published so nothing is free
	assert.Nil(t, s.BeginWrite(3))
	assert.Equal(t, 1, held.value, "held frame must not be overwritten")

	r.Release()

	frame := s.BeginWrite(3)
	require.NotNil(t, frame)
	frame.value = 3
	s.EndWrite()

	got, index, ok := r.Acquire()
	require.True(t, ok)
	assert.Equal(t, 3, index)
	assert.Equal(t, 3, got.value)
	r.Release()
}

func TestStreamInitializesBuffers(t *testing.T) {

	s := NewStream(3, newDebugImageFrameInit(4, 2))

	for i := 0; i < 3; i++ {
		frame := s.BeginWrite(i)
		require.NotNil(t, frame)
		assert.Len(t, frame.Data, 4*2*3)
		s.EndWrite()
	}
}
