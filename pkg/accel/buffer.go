package accel

import (
	"fmt"
	"sync"

	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/geometry"
)

// Buffer is a flat float32 storage of Count elements of Stride components each,
// the equivalent of a structured compute buffer.
// A Buffer created by a Device is owned by that device's queue: host reads and writes
// are ordered behind every command submitted before them.
// A Buffer created with NewBuffer lives on the host and is accessed directly.
type Buffer struct {
	mu       sync.RWMutex
	data     []float32
	shadow   []float32 // dispatch-start copy, reused across dispatches
	count    int
	stride   int
	released bool
	owner    submitter
}

// submitter is implemented by device queues that order host access to their buffers.
type submitter interface {
	submit(fn func() error) (*Fence, error)
}

// NewBuffer allocates a host buffer of count elements of stride float32 each.
func NewBuffer(count, stride int) *Buffer {
	if count < 0 {
		count = 0
	}
	if stride < 1 {
		stride = 1
	}
	return &Buffer{
		data:   make([]float32, count*stride),
		count:  count,
		stride: stride,
	}
}

// Count returns the number of elements.
func (b *Buffer) Count() int { return b.count }

// Stride returns the number of float32 components per element.
func (b *Buffer) Stride() int { return b.stride }

// Released reports whether Release was called.
func (b *Buffer) Released() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.released
}

// SetData replaces the whole content of the buffer. len(src) must equal Count*Stride.
func (b *Buffer) SetData(src []float32) error {
	if len(src) != b.count*b.stride {
		return fmt.Errorf("%w: got %d floats, want %d", ErrBufferSize, len(src), b.count*b.stride)
	}
	return b.ordered(func() error {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.released {
			return ErrBufferReleased
		}
		copy(b.data, src)
		return nil
	})
}

// GetData copies the whole content of the buffer into dst. len(dst) must equal Count*Stride.
func (b *Buffer) GetData(dst []float32) error {
	if len(dst) != b.count*b.stride {
		return fmt.Errorf("%w: got %d floats, want %d", ErrBufferSize, len(dst), b.count*b.stride)
	}
	return b.ordered(func() error {
		b.mu.RLock()
		defer b.mu.RUnlock()
		if b.released {
			return ErrBufferReleased
		}
		copy(dst, b.data)
		return nil
	})
}

// SetVectors uploads one Vector3D per element. The buffer stride must be 3.
func (b *Buffer) SetVectors(src []geometry.Vector3D) error {
	if b.stride != 3 {
		return fmt.Errorf("%w: stride %d cannot hold vectors", ErrBufferSize, b.stride)
	}
	if len(src) != b.count {
		return fmt.Errorf("%w: got %d vectors, want %d", ErrBufferSize, len(src), b.count)
	}
	return b.SetData(PackVectors(src, nil))
}

// Vectors reads the buffer back as one Vector3D per element. The buffer stride must be 3.
func (b *Buffer) Vectors() ([]geometry.Vector3D, error) {
	if b.stride != 3 {
		return nil, fmt.Errorf("%w: stride %d cannot hold vectors", ErrBufferSize, b.stride)
	}
	raw := make([]float32, b.count*3)
	if err := b.GetData(raw); err != nil {
		return nil, err
	}
	return UnpackVectors(raw, nil), nil
}

// Release frees the storage. On a device buffer the release is queued behind
// pending commands, so in-flight dispatches still see valid data.
// Releasing twice is a no-op.
func (b *Buffer) Release() {
	release := func() error {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.released = true
		b.data = nil
		b.shadow = nil
		return nil
	}
	if b.owner != nil {
		if _, err := b.owner.submit(release); err == nil {
			return
		}
	}
	_ = release()
}

// ordered runs fn directly on host buffers and through the owning queue otherwise.
func (b *Buffer) ordered(fn func() error) error {
	if b.owner == nil {
		return fn()
	}
	fence, err := b.owner.submit(fn)
	if err != nil {
		return err
	}
	<-fence.Done()
	return fence.Err()
}

// snapshot copies the live data into the shadow slice and returns it.
// Caller must hold the write lock.
func (b *Buffer) snapshot() []float32 {
	if cap(b.shadow) < len(b.data) {
		b.shadow = make([]float32, len(b.data))
	}
	b.shadow = b.shadow[:len(b.data)]
	copy(b.shadow, b.data)
	return b.shadow
}

// PackVectors flattens vectors into dst (reallocated when too small) as x,y,z triples.
func PackVectors(src []geometry.Vector3D, dst []float32) []float32 {
	n := len(src) * 3
	if cap(dst) < n {
		dst = make([]float32, n)
	}
	dst = dst[:n]
	for i, v := range src {
		dst[i*3] = float32(v.X)
		dst[i*3+1] = float32(v.Y)
		dst[i*3+2] = float32(v.Z)
	}
	return dst
}

// UnpackVectors is the inverse of PackVectors. Trailing components that do not form a
// full triple are ignored.
func UnpackVectors(src []float32, dst []geometry.Vector3D) []geometry.Vector3D {
	n := len(src) / 3
	if cap(dst) < n {
		dst = make([]geometry.Vector3D, n)
	}
	dst = dst[:n]
	for i := range dst {
		dst[i] = VectorAt(src, i)
	}
	return dst
}

// VectorAt reads element i of a stride-3 float32 slice.
func VectorAt(src []float32, i int) geometry.Vector3D {
	return geometry.Vector3D{
		X: float64(src[i*3]),
		Y: float64(src[i*3+1]),
		Z: float64(src[i*3+2]),
	}
}

// StoreVector writes v at element i of a stride-3 float32 slice.
func StoreVector(dst []float32, i int, v geometry.Vector3D) {
	dst[i*3] = float32(v.X)
	dst[i*3+1] = float32(v.Y)
	dst[i*3+2] = float32(v.Z)
}
