// Package accel models a massively parallel compute device: buffers living on the
// device, constant storage, kernels grouped in programs, and an ordered command queue
// whose dispatches complete asynchronously behind a Fence.
package accel

import "errors"

var (
	// ErrDeviceUnavailable is returned by any operation on a closed or missing device.
	ErrDeviceUnavailable = errors.New("accel: device unavailable")
	// ErrKernelNotFound is returned when a program does not define the requested kernel.
	ErrKernelNotFound = errors.New("accel: kernel not found")
	// ErrBufferReleased is returned when accessing a released buffer.
	ErrBufferReleased = errors.New("accel: buffer released")
	// ErrBufferSize is returned when host data does not match the buffer layout.
	ErrBufferSize = errors.New("accel: buffer size mismatch")
	// ErrInvalidDispatch is returned for dispatches with no work-group or bad bindings.
	ErrInvalidDispatch = errors.New("accel: invalid dispatch")
	// ErrCommandPanicked is signalled on the fence of a command that panicked on the queue.
	ErrCommandPanicked = errors.New("accel: command panicked")
)

// Bindings maps kernel buffer names to device buffers.
type Bindings map[string]*Buffer

// Device is a compute device with an in-order command queue.
type Device interface {
	// Name identifies the device in logs.
	Name() string
	// NewBuffer allocates count elements of stride float32 on the device.
	NewBuffer(count, stride int) (*Buffer, error)
	// FindKernel looks up a kernel of program.
	FindKernel(program *Program, name string) (KernelHandle, error)
	// Dispatch enqueues groups work-groups of kernel and returns immediately.
	// Uniforms are copied at submission; later changes do not affect the dispatch.
	Dispatch(kernel KernelHandle, groups int, uniforms *Uniforms, bindings Bindings) (*Fence, error)
	// Finish returns a fence signalled once every command submitted before it has completed.
	Finish() (*Fence, error)
	// Close drains the queue and releases the device.
	Close() error
}
