package accel

import "context"

// Fence is the completion token of a submitted command.
type Fence struct {
	done chan struct{}
	err  error
}

func newFence() *Fence {
	return &Fence{done: make(chan struct{})}
}

// signal marks the command as finished. It must be called exactly once.
func (f *Fence) signal(err error) {
	f.err = err
	close(f.done)
}

// Done is closed when the command has finished.
func (f *Fence) Done() <-chan struct{} {
	return f.done
}

// Err returns the command error once Done is closed, nil before.
func (f *Fence) Err() error {
	select {
	case <-f.done:
		return f.err
	default:
		return nil
	}
}

// Wait blocks until the command finished or ctx is done.
func (f *Fence) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Completed reports whether the command has finished.
func (f *Fence) Completed() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}
