package services

import (
	"domus/internal/models"
)

// DefaultBufferCapacity is the number of frames retained per household
const DefaultBufferCapacity = 10

// ObservationBuffer is a fixed-capacity FIFO of frames for one household.
// Frames are immutable once appended and stay in non-decreasing capture order.
// The buffer itself is not synchronized; the owning household state serializes
// access (one in-flight comparison per household).
type ObservationBuffer struct {
	frames   []models.Frame
	capacity int
}

// NewObservationBuffer creates a buffer with the given capacity.
// Non-positive capacities fall back to the default.
func NewObservationBuffer(capacity int) *ObservationBuffer {
	if capacity <= 0 {
		capacity = DefaultBufferCapacity
	}
	return &ObservationBuffer{
		frames:   make([]models.Frame, 0, capacity),
		capacity: capacity,
	}
}

// Append adds a frame to the tail, evicting the oldest frame when the buffer
// is full
func (b *ObservationBuffer) Append(frame models.Frame) {
	b.frames = append(b.frames, frame)
	if len(b.frames) > b.capacity {
		// Shift rather than re-slice so evicted frames are released
		copy(b.frames, b.frames[len(b.frames)-b.capacity:])
		b.frames = b.frames[:b.capacity]
	}
}

// Snapshot returns the current frames oldest-first without mutating the buffer
func (b *ObservationBuffer) Snapshot() []models.Frame {
	out := make([]models.Frame, len(b.frames))
	copy(out, b.frames)
	return out
}

// Len returns the number of buffered frames
func (b *ObservationBuffer) Len() int {
	return len(b.frames)
}

// Capacity returns the configured maximum frame count
func (b *ObservationBuffer) Capacity() int {
	return b.capacity
}

// Latest returns the most recent frame, or false when the buffer is empty
func (b *ObservationBuffer) Latest() (models.Frame, bool) {
	if len(b.frames) == 0 {
		return models.Frame{}, false
	}
	return b.frames[len(b.frames)-1], true
}
