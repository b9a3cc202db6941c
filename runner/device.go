package runner

import (
	"sync"
	"unsafe"

	"github.com/notargets/FFTKernel/fft"
	"github.com/notargets/FFTKernel/rtc"
	"github.com/notargets/gocca"
	"github.com/pkg/errors"
)

// Device is the allocation side of a compute device. Malloc returns nil
// when the allocation fails; callers pass that nil along without
// interpreting it.
type Device interface {
	Malloc(bytes int64, src unsafe.Pointer) fft.DevicePtr
	Free(ptr fft.DevicePtr)
	Finish()
}

// OCCADevice adapts a gocca device
type OCCADevice struct {
	Device *gocca.OCCADevice
}

// NewOCCADevice opens a device from OCCA properties such as
// {"mode": "Serial"}
func NewOCCADevice(props string) (*OCCADevice, error) {
	device, err := gocca.NewDevice(props)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create device from %s", props)
	}
	return &OCCADevice{Device: device}, nil
}

func (d *OCCADevice) Malloc(bytes int64, src unsafe.Pointer) fft.DevicePtr {
	mem := d.Device.Malloc(bytes, src, nil)
	if mem == nil {
		return nil
	}
	return mem
}

func (d *OCCADevice) Free(ptr fft.DevicePtr) {
	if mem, ok := ptr.(*gocca.OCCAMemory); ok && mem != nil {
		mem.Free()
	}
}

func (d *OCCADevice) Finish() {
	d.Device.Finish()
}

// Mode is the OCCA backend name
func (d *OCCADevice) Mode() string {
	return d.Device.Mode()
}

// Close releases the device
func (d *OCCADevice) Close() {
	d.Device.Free()
}

// OCCACompiler builds OKL source on a gocca device
type OCCACompiler struct {
	Device *gocca.OCCADevice
	// Flags overrides the compiler flags; empty keeps the backend default
	Flags string

	mu          sync.Mutex
	placeholder *gocca.OCCAMemory
}

// NewOCCACompiler creates a compiler for device
func NewOCCACompiler(device *gocca.OCCADevice, flags string) *OCCACompiler {
	return &OCCACompiler{Device: device, Flags: flags}
}

// Build compiles source and loads kernel name from it
func (c *OCCACompiler) Build(source, name string) (rtc.CompiledKernel, error) {
	flags := c.Flags
	if flags == "" && c.Device.Mode() == "OpenMP" {
		// OCCA does not pass -O3 to OpenMP builds by default
		flags = "-O3"
	}

	var kernel *gocca.OCCAKernel
	var err error
	if flags != "" {
		props := gocca.JsonParse(`{"compiler_flags": "` + flags + `"}`)
		defer props.Free()
		kernel, err = c.Device.BuildKernelFromString(source, name, props)
	} else {
		kernel, err = c.Device.BuildKernelFromString(source, name, nil)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to build kernel %s", name)
	}
	if kernel == nil {
		return nil, errors.Errorf("kernel build returned nil for %s", name)
	}
	return &occaKernel{kernel: kernel, placeholder: c.nullBuffer()}, nil
}

// nullBuffer stands in for absent pointer arguments, which OCCA cannot
// pass through RunWithArgs
func (c *OCCACompiler) nullBuffer() *gocca.OCCAMemory {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.placeholder == nil {
		c.placeholder = c.Device.Malloc(16, nil, nil)
	}
	return c.placeholder
}

// Close frees the placeholder buffer
func (c *OCCACompiler) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.placeholder != nil {
		c.placeholder.Free()
		c.placeholder = nil
	}
}

type occaKernel struct {
	kernel      *gocca.OCCAKernel
	placeholder *gocca.OCCAMemory
}

func (k *occaKernel) RunWithArgs(args ...interface{}) error {
	resolved := make([]interface{}, len(args))
	for i, a := range args {
		if a == nil {
			resolved[i] = k.placeholder
			continue
		}
		resolved[i] = a
	}
	return k.kernel.RunWithArgs(resolved...)
}

func (k *occaKernel) Free() {
	k.kernel.Free()
}
