// Package rtc turns transform nodes into specialized Stockham kernels:
// it decides whether a node needs a generated kernel, snapshots the node
// into pure name and source builders, and marshals launch arguments.
package rtc

import (
	"github.com/notargets/FFTKernel/catalog"
	"github.com/notargets/FFTKernel/fft"
	"github.com/notargets/FFTKernel/logging"
	"github.com/notargets/FFTKernel/runner/builder"
)

// Generator is the deferred work for one specialized kernel. The zero
// value is empty: no kernel has to be generated.
type Generator struct {
	GenerateName   func() string
	GenerateSource func(name string) (string, error)
	Construct      func(name string, compiled CompiledKernel) *StockhamKernel
	Arch           string
}

// Empty reports whether there is nothing to generate
func (g Generator) Empty() bool {
	return g.GenerateName == nil
}

// Specializer decides, per node, between an existing kernel and a
// generated one. It only reads the catalog and is safe for concurrent use.
type Specializer struct {
	Catalog *catalog.Catalog
	Arch    string
}

// NewSpecializer creates a specializer over cat for the given device
// architecture
func NewSpecializer(cat *catalog.Catalog, arch string) *Specializer {
	return &Specializer{Catalog: cat, Arch: arch}
}

// Generate returns the generator for node, or an empty generator when a
// precompiled kernel already covers it or the node has no Stockham kernel.
// Scaled nodes are always regenerated since the scale lives in the source.
func (s *Specializer) Generate(node *fft.Node, enableCallbacks bool) Generator {
	return s.generate(node, enableCallbacks, false)
}

// Precompiled returns the generator that builds a catalogued precompiled
// kernel: dimension general and unscaled. It is empty when the catalog has
// no precompiled kernel for node.
func (s *Specializer) Precompiled(node *fft.Node, enableCallbacks bool) Generator {
	if node == nil || node.IsScalingEnabled() {
		return Generator{}
	}
	return s.generate(node, enableCallbacks, true)
}

// Entry resolves the catalog entry the kernel for node is built from along
// with its tile traversal. Block row/column nodes use the entry refined by
// their traversal; everything that depends on the kernel's factors should
// read them from here.
func (s *Specializer) Entry(node *fft.Node) (catalog.Entry, fft.TransposeType, bool) {
	log := logging.For("rtc")
	if node == nil || len(node.Length) == 0 {
		return catalog.Entry{}, fft.TransposeNone, false
	}
	scheme, _ := node.Scheme.Canonical()
	key := catalog.NewKey(node.Length[0], node.Precision, scheme)
	if scheme == fft.Kernel2DSingle {
		if node.Dim() < 2 {
			return catalog.Entry{}, fft.TransposeNone, false
		}
		key = catalog.NewKey2D(node.Length[0], node.Length[1], node.Precision, scheme)
	}
	entry, ok := s.Catalog.Lookup(key)
	if !ok {
		log.Debugf("no catalog entry for %s", key)
		return catalog.Entry{}, fft.TransposeNone, false
	}
	if scheme != fft.KernelStockhamBlockRC {
		return entry, fft.TransposeNone, true
	}
	transpose := node.SBRCTransposeType(entry.TransformsPerBlock)
	refined := catalog.NewTransposeKey(node.Length[0], node.Precision, node.Scheme, transpose)
	if entry, ok = s.Catalog.Lookup(refined); !ok {
		log.Debugf("no catalog entry for %s", refined)
		return catalog.Entry{}, fft.TransposeNone, false
	}
	return entry, transpose, true
}

func (s *Specializer) generate(node *fft.Node, enableCallbacks, precompiled bool) Generator {
	log := logging.For("rtc")
	if node == nil || !node.Scheme.IsStockham() || len(node.Length) == 0 {
		return Generator{}
	}

	scheme, remapped := node.Scheme.Canonical()
	staticDim := node.Dim()
	if remapped {
		staticDim = max(staticDim, 3)
	}

	entry, transpose, ok := s.Entry(node)
	if !ok {
		return Generator{}
	}
	if precompiled {
		if !entry.Precompiled {
			return Generator{}
		}
	} else if entry.Precompiled && !node.IsScalingEnabled() {
		return Generator{}
	}

	if entry.AOTRTC || precompiled {
		staticDim = 0
	}

	specs := []builder.StockhamSpec{{
		Factors:             entry.Factors,
		Precisions:          []fft.Precision{node.Precision},
		WorkgroupSize:       entry.WorkgroupSize,
		Scheme:              scheme.String(),
		ThreadsPerTransform: entry.ThreadsPerTransform[0],
		HalfLDS:             entry.HalfLDS,
		DirectToFromReg:     entry.DirectToFromReg,
		StaticDim:           staticDim,
	}}
	if scheme == fft.Kernel2DSingle {
		first, second, ok := SplitFactors(node.Length[0], entry.Factors)
		if !ok || catalog.Product(second) != node.Length[1] {
			log.Debugf("factors %v do not split over %dx%d", entry.Factors, node.Length[0], node.Length[1])
			return Generator{}
		}
		pass2 := specs[0].Clone()
		specs[0].Factors, specs[0].OtherFactors = first, second
		pass2.Factors, pass2.OtherFactors = second, first
		pass2.ThreadsPerTransform = entry.ThreadsPerTransform[1]
		specs = append(specs, pass2)
	}

	params := snapshot(node, staticDim, transpose, enableCallbacks)
	return s.bundle(params, specs)
}

// snapshot copies everything the builders need so they never touch the
// node again
func snapshot(node *fft.Node, staticDim int, transpose fft.TransposeType, enableCallbacks bool) builder.StockhamParams {
	p := builder.StockhamParams{
		Scheme:          node.Scheme,
		Length0:         node.Length[0],
		StaticDim:       staticDim,
		Direction:       node.Direction,
		Precision:       node.Precision,
		Placement:       node.Placement,
		InArrayType:     node.InArrayType,
		OutArrayType:    node.OutArrayType,
		UnitStride:      node.UnitStride(),
		LargeTwdBase:    node.LargeTwdBase,
		LargeTwdSteps:   node.LargeTwdSteps,
		EmbeddedType:    node.EmbeddedType,
		DirReg:          node.DirReg,
		IntrinsicMode:   node.IntrinsicMode,
		Transpose:       transpose,
		EnableCallbacks: enableCallbacks,
		EnableScaling:   node.IsScalingEnabled(),
		ScaleFactor:     node.ScaleFactor,
	}
	if node.Scheme == fft.Kernel2DSingle {
		p.Length1 = node.Length[1]
	}
	return p
}

func (s *Specializer) bundle(params builder.StockhamParams, specs []builder.StockhamSpec) Generator {
	hardcodedDim := params.StaticDim != 0
	return Generator{
		GenerateName: func() string {
			return builder.StockhamKernelName(params)
		},
		GenerateSource: func(name string) (string, error) {
			owned := make([]builder.StockhamSpec, len(specs))
			for i := range specs {
				owned[i] = specs[i].Clone()
			}
			return builder.StockhamSource(name, params, owned...)
		},
		Construct: func(name string, compiled CompiledKernel) *StockhamKernel {
			return NewStockhamKernel(name, compiled, hardcodedDim)
		},
		Arch: s.Arch,
	}
}

// SplitFactors divides the factors of a fused 2D kernel between its two
// passes: factors are taken for the first pass until they cover length0.
func SplitFactors(length0 int, factors []int) (first, second []int, ok bool) {
	remain := length0
	for _, f := range factors {
		if remain > 1 {
			first = append(first, f)
			remain /= f
		} else {
			second = append(second, f)
		}
	}
	return first, second, catalog.Product(first) == length0 && len(second) > 0
}
