package accel

import (
	"fmt"
	"sort"
)

// DefaultGroupSize is the number of work items per work-group when a kernel does not
// declare its own.
const DefaultGroupSize = 64

// Kernel executes a single work item. id is the global invocation index in
// [0, groups*groupSize); kernels must ignore ids past the end of their data.
type Kernel func(id int, inv *Invocation)

// Program is a set of named kernels, the equivalent of a compiled compute shader.
type Program struct {
	name    string
	kernels map[string]kernelSpec
}

type kernelSpec struct {
	fn        Kernel
	groupSize int
}

// NewProgram returns an empty program.
func NewProgram(name string) *Program {
	return &Program{name: name, kernels: make(map[string]kernelSpec)}
}

// Name returns the program name.
func (p *Program) Name() string { return p.name }

// AddKernel registers fn under name with the given work-group size
// (DefaultGroupSize when groupSize < 1). It returns p to allow chaining.
func (p *Program) AddKernel(name string, groupSize int, fn Kernel) *Program {
	if groupSize < 1 {
		groupSize = DefaultGroupSize
	}
	p.kernels[name] = kernelSpec{fn: fn, groupSize: groupSize}
	return p
}

// Kernels lists the kernel names in lexical order.
func (p *Program) Kernels() []string {
	names := make([]string, 0, len(p.kernels))
	for name := range p.kernels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// KernelHandle identifies a kernel found on a device.
type KernelHandle struct {
	program string
	name    string
	spec    kernelSpec
}

// Name returns the kernel name.
func (k KernelHandle) Name() string { return k.name }

// GroupSize returns the number of work items per work-group.
func (k KernelHandle) GroupSize() int { return k.spec.groupSize }

// String implements fmt.Stringer.
func (k KernelHandle) String() string {
	return fmt.Sprintf("%s/%s", k.program, k.name)
}

func (k KernelHandle) valid() bool { return k.spec.fn != nil }

// GroupsFor returns how many work-groups of groupSize cover n items, never less than one.
func GroupsFor(n, groupSize int) int {
	if groupSize < 1 {
		groupSize = DefaultGroupSize
	}
	if n <= groupSize {
		return 1
	}
	return (n + groupSize - 1) / groupSize
}

// Invocation gives a work item access to the dispatch constants and bound buffers.
type Invocation struct {
	Uniforms *Uniforms
	read     map[string][]float32
	write    map[string][]float32
}

// Read returns the content of a bound buffer as it was when the dispatch started.
// Work items can read any index without observing writes of other items.
func (inv *Invocation) Read(name string) []float32 {
	return inv.read[name]
}

// Write returns the live storage of a bound buffer. A work item must only write
// the elements it owns.
func (inv *Invocation) Write(name string) []float32 {
	return inv.write[name]
}
