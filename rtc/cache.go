package rtc

import (
	"fmt"
	"sync"

	"github.com/notargets/FFTKernel/logging"
)

// Compiler turns kernel source into a loaded kernel
type Compiler interface {
	Build(source, name string) (CompiledKernel, error)
}

// CompilerFunc adapts a function to Compiler
type CompilerFunc func(source, name string) (CompiledKernel, error)

// Build calls f
func (f CompilerFunc) Build(source, name string) (CompiledKernel, error) {
	return f(source, name)
}

// KernelCache compiles generators, keyed by generated kernel name. The
// source builder only runs when the name has not been compiled before.
type KernelCache struct {
	mu       sync.Mutex
	compiler Compiler
	kernels  map[string]CompiledKernel
	hits     int
	misses   int
}

// NewKernelCache creates an empty cache compiling through compiler
func NewKernelCache(compiler Compiler) *KernelCache {
	return &KernelCache{
		compiler: compiler,
		kernels:  make(map[string]CompiledKernel),
	}
}

// Compile returns the kernel for gen, building it on a miss. The lock is
// held through compilation so a kernel is never built twice.
func (c *KernelCache) Compile(gen Generator) (*StockhamKernel, error) {
	if gen.Empty() {
		return nil, fmt.Errorf("empty generator")
	}
	name := gen.GenerateName()

	c.mu.Lock()
	defer c.mu.Unlock()
	if compiled, ok := c.kernels[name]; ok {
		c.hits++
		return gen.Construct(name, compiled), nil
	}
	c.misses++

	source, err := gen.GenerateSource(name)
	if err != nil {
		return nil, fmt.Errorf("failed to generate source for %s: %w", name, err)
	}
	compiled, err := c.compiler.Build(source, name)
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s: %w", name, err)
	}
	if compiled == nil {
		return nil, fmt.Errorf("compiler returned no kernel for %s", name)
	}
	c.kernels[name] = compiled
	logging.For("rtc").WithField("arch", gen.Arch).Debugf("compiled %s", name)
	return gen.Construct(name, compiled), nil
}

// Stats returns the hit and miss counts
func (c *KernelCache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Len is the number of compiled kernels
func (c *KernelCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.kernels)
}

// Free releases every compiled kernel
func (c *KernelCache) Free() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range c.kernels {
		k.Free()
	}
	c.kernels = make(map[string]CompiledKernel)
}
