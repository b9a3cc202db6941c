package catalog

import (
	"sync"

	"github.com/notargets/FFTKernel/fft"
)

// row is one line of the static kernel table
type row struct {
	length     int
	factors    []int
	tpb        int // transforms per block
	halfLDS    bool
	dirReg     bool
	aot        bool
	precompile bool
}

// Stockham lengths with their pass decomposition
var stockhamRows = []row{
	{length: 2, factors: []int{2}, tpb: 64, aot: true, precompile: true},
	{length: 3, factors: []int{3}, tpb: 64},
	{length: 4, factors: []int{4}, tpb: 64, aot: true, precompile: true},
	{length: 5, factors: []int{5}, tpb: 64},
	{length: 7, factors: []int{7}, tpb: 64},
	{length: 8, factors: []int{8}, tpb: 32, aot: true, precompile: true},
	{length: 9, factors: []int{3, 3}, tpb: 32},
	{length: 11, factors: []int{11}, tpb: 32},
	{length: 13, factors: []int{13}, tpb: 32},
	{length: 16, factors: []int{4, 4}, tpb: 16, dirReg: true, aot: true, precompile: true},
	{length: 25, factors: []int{5, 5}, tpb: 16},
	{length: 27, factors: []int{3, 3, 3}, tpb: 16},
	{length: 32, factors: []int{8, 4}, tpb: 16, dirReg: true, aot: true, precompile: true},
	{length: 49, factors: []int{7, 7}, tpb: 8},
	{length: 60, factors: []int{6, 10}, tpb: 8},
	{length: 64, factors: []int{8, 8}, tpb: 8, dirReg: true, aot: true, precompile: true},
	{length: 81, factors: []int{3, 3, 9}, tpb: 8},
	{length: 100, factors: []int{10, 10}, tpb: 8},
	{length: 121, factors: []int{11, 11}, tpb: 4},
	{length: 125, factors: []int{5, 5, 5}, tpb: 4},
	{length: 128, factors: []int{8, 4, 4}, tpb: 4, aot: true, precompile: true},
	{length: 169, factors: []int{13, 13}, tpb: 4},
	{length: 256, factors: []int{4, 4, 4, 4}, tpb: 4, halfLDS: true, aot: true, precompile: true},
	{length: 343, factors: []int{7, 7, 7}, tpb: 2},
	{length: 512, factors: []int{8, 8, 8}, tpb: 2, halfLDS: true, aot: true, precompile: true},
	{length: 1024, factors: []int{8, 8, 16}, tpb: 1, halfLDS: true, aot: true, precompile: true},
	{length: 2048, factors: []int{8, 16, 16}, tpb: 1, halfLDS: true, aot: true},
	{length: 4096, factors: []int{16, 16, 16}, tpb: 1, halfLDS: true, aot: true},
}

// Block column lengths used by the large 1D decomposition
var blockCCRows = []row{
	{length: 64, factors: []int{8, 8}, tpb: 8, aot: true},
	{length: 128, factors: []int{8, 4, 4}, tpb: 8, aot: true},
	{length: 256, factors: []int{4, 4, 4, 4}, tpb: 8, aot: true},
}

var blockCRRows = []row{
	{length: 64, factors: []int{8, 8}, tpb: 16},
	{length: 128, factors: []int{8, 4, 4}, tpb: 8},
	{length: 256, factors: []int{4, 4, 4, 4}, tpb: 8},
}

// Block row/column generic entries; tpb doubles as the tile block width
var blockRCRows = []row{
	{length: 64, factors: []int{4, 4, 4}, tpb: 16},
	{length: 81, factors: []int{3, 3, 9}, tpb: 16},
	{length: 128, factors: []int{8, 4, 4}, tpb: 8},
	{length: 256, factors: []int{4, 4, 4, 4}, tpb: 8},
	{length: 512, factors: []int{8, 8, 8}, tpb: 8},
}

// Fused 2D kernels: factors of the first dimension followed by the second
var twoDRows = []struct {
	length0, length1 int
	factors          []int
	precompile       bool
}{
	{16, 16, []int{4, 4, 4, 4}, true},
	{16, 32, []int{4, 4, 8, 4}, false},
	{32, 16, []int{8, 4, 4, 4}, false},
	{32, 32, []int{8, 4, 8, 4}, true},
	{64, 64, []int{8, 8, 8, 8}, false},
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the process-wide static catalog
func Default() *Catalog {
	defaultOnce.Do(func() {
		defaultCatalog = New(defaultEntries()...)
	})
	return defaultCatalog
}

func maxFactor(factors []int) int {
	m := 1
	for _, f := range factors {
		if f > m {
			m = f
		}
	}
	return m
}

func entryFromRow(key Key, r row) Entry {
	tpt := r.length / maxFactor(r.factors)
	return Entry{
		Key:                 key,
		Factors:             r.factors,
		WorkgroupSize:       tpt * r.tpb,
		ThreadsPerTransform: [2]int{tpt, 0},
		TransformsPerBlock:  r.tpb,
		HalfLDS:             r.halfLDS,
		DirectToFromReg:     r.dirReg,
		AOTRTC:              r.aot,
		Precompiled:         r.precompile,
	}
}

func defaultEntries() []Entry {
	var entries []Entry
	sbrcVariants := []fft.Scheme{
		fft.KernelStockhamBlockRC,
		fft.KernelStockhamTransposeXYZ,
		fft.KernelStockhamTransposeZXY,
		fft.KernelStockhamR2CTransposeZXY,
	}
	transposes := []fft.TransposeType{
		fft.TransposeDiagonal,
		fft.TransposeTileAligned,
		fft.TransposeTileUnaligned,
	}

	for _, prec := range []fft.Precision{fft.Single, fft.Double} {
		for _, r := range stockhamRows {
			entries = append(entries, entryFromRow(NewKey(r.length, prec, fft.KernelStockham), r))
		}
		for _, r := range blockCCRows {
			entries = append(entries, entryFromRow(NewKey(r.length, prec, fft.KernelStockhamBlockCC), r))
		}
		for _, r := range blockCRRows {
			entries = append(entries, entryFromRow(NewKey(r.length, prec, fft.KernelStockhamBlockCR), r))
		}
		for _, r := range blockRCRows {
			entries = append(entries, entryFromRow(NewKey(r.length, prec, fft.KernelStockhamBlockRC), r))
			for _, scheme := range sbrcVariants {
				for _, tt := range transposes {
					refined := r
					// diagonal traversal only pays off with a half sized LDS tile
					refined.halfLDS = tt == fft.TransposeDiagonal
					entries = append(entries,
						entryFromRow(NewTransposeKey(r.length, prec, scheme, tt), refined))
				}
			}
		}
		for _, r := range twoDRows {
			tpt0 := r.length0 / maxFactor(r.factors)
			tpt1 := r.length1 / maxFactor(r.factors)
			wgs := tpt0 * r.length1
			if alt := tpt1 * r.length0; alt > wgs {
				wgs = alt
			}
			entries = append(entries, Entry{
				Key:                 NewKey2D(r.length0, r.length1, prec, fft.Kernel2DSingle),
				Factors:             r.factors,
				WorkgroupSize:       wgs,
				ThreadsPerTransform: [2]int{tpt0, tpt1},
				TransformsPerBlock:  1,
				Precompiled:         r.precompile,
			})
		}
	}
	return entries
}
