// Package catalog holds the static table of known Stockham kernels. The
// table is built once and is read without locking afterwards.
package catalog

import (
	"fmt"
	"slices"
	"sort"

	"github.com/notargets/FFTKernel/fft"
)

// Key identifies a catalog entry. Length[1] is only used by 2D kernels and
// Transpose only by the refined block row/column entries.
type Key struct {
	Length    [2]int
	Precision fft.Precision
	Scheme    fft.Scheme
	Transpose fft.TransposeType
}

// NewKey builds the key of a one dimensional kernel
func NewKey(length int, precision fft.Precision, scheme fft.Scheme) Key {
	return Key{Length: [2]int{length, 0}, Precision: precision, Scheme: scheme}
}

// NewKey2D builds the key of a fused two dimensional kernel
func NewKey2D(length0, length1 int, precision fft.Precision, scheme fft.Scheme) Key {
	return Key{Length: [2]int{length0, length1}, Precision: precision, Scheme: scheme}
}

// NewTransposeKey builds the key of a refined block row/column kernel
func NewTransposeKey(length int, precision fft.Precision, scheme fft.Scheme,
	transpose fft.TransposeType) Key {
	return Key{Length: [2]int{length, 0}, Precision: precision, Scheme: scheme, Transpose: transpose}
}

func (k Key) String() string {
	s := fmt.Sprintf("len=%d", k.Length[0])
	if k.Length[1] != 0 {
		s += fmt.Sprintf("x%d", k.Length[1])
	}
	s += fmt.Sprintf(" %s %s", k.Precision, k.Scheme)
	if k.Transpose != fft.TransposeNone {
		s += " " + k.Transpose.String()
	}
	return s
}

// Entry describes one catalogued kernel
type Entry struct {
	Key                 Key
	Factors             []int
	WorkgroupSize       int
	ThreadsPerTransform [2]int
	TransformsPerBlock  int
	HalfLDS             bool
	DirectToFromReg     bool
	// AOTRTC kernels are built ahead of time for any dimension count and
	// take the dimension as a runtime argument
	AOTRTC bool
	// Precompiled means a compiled device kernel already exists for Key
	Precompiled bool
}

// Catalog maps keys to kernel descriptions
type Catalog struct {
	entries map[Key]Entry
}

// New builds a catalog. Later entries replace earlier ones with the same key.
func New(entries ...Entry) *Catalog {
	c := &Catalog{entries: make(map[Key]Entry, len(entries))}
	for _, e := range entries {
		e.Factors = slices.Clone(e.Factors)
		c.entries[e.Key] = e
	}
	return c
}

// Lookup returns a copy of the entry for key
func (c *Catalog) Lookup(key Key) (Entry, bool) {
	e, ok := c.entries[key]
	if !ok {
		return Entry{}, false
	}
	e.Factors = slices.Clone(e.Factors)
	return e, true
}

// Len is the number of entries
func (c *Catalog) Len() int {
	return len(c.entries)
}

// Keys returns every key ordered by scheme, precision, length, transpose
func (c *Catalog) Keys() []Key {
	keys := make([]Key, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.Scheme != b.Scheme {
			return a.Scheme < b.Scheme
		}
		if a.Precision != b.Precision {
			return a.Precision < b.Precision
		}
		if a.Length != b.Length {
			if a.Length[0] != b.Length[0] {
				return a.Length[0] < b.Length[0]
			}
			return a.Length[1] < b.Length[1]
		}
		return a.Transpose < b.Transpose
	})
	return keys
}

// Product multiplies factors together
func Product(factors []int) int {
	p := 1
	for _, f := range factors {
		p *= f
	}
	return p
}
