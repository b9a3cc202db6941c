package runner

import (
	"fmt"

	"github.com/notargets/FFTKernel/catalog"
	"github.com/notargets/FFTKernel/fft"
	"github.com/notargets/FFTKernel/repo"
	"github.com/notargets/FFTKernel/twiddle"
)

// LargeTwiddleBase is the digit width of large twiddle tables
const LargeTwiddleBase = 8

// bufferRole names the buffer a node reads or writes
type bufferRole int

const (
	userIn bufferRole = iota
	userOut
	tempBuf
)

// step is one node of a plan plus where its data comes from and goes to
type step struct {
	node *fft.Node
	in   bufferRole
	out  bufferRole
}

// planner turns plan parameters into an ordered node list
type planner struct {
	cat    *catalog.Catalog
	params repo.Params
}

func (pl planner) hasStockham(length int) bool {
	_, ok := pl.cat.Lookup(catalog.NewKey(length, pl.params.Precision, fft.KernelStockham))
	return ok
}

// baseNode fills the fields every node of the plan shares
func (pl planner) baseNode(scheme fft.Scheme, lengths, inStride, outStride []int, idist, odist int) *fft.Node {
	return &fft.Node{
		Scheme:       scheme,
		Length:       lengths,
		Precision:    pl.params.Precision,
		Direction:    pl.params.Direction,
		Placement:    fft.NotInPlace,
		InArrayType:  fft.ComplexInterleaved,
		OutArrayType: fft.ComplexInterleaved,
		InStride:     inStride,
		OutStride:    outStride,
		IDist:        idist,
		ODist:        odist,
		Batch:        pl.params.Batch,
	}
}

// steps plans the transform. The first node reads the user input and the
// remaining nodes work in place on the output, except for the large 1D
// decomposition which passes through a temporary buffer.
func (pl planner) steps() ([]step, error) {
	p := pl.params
	if p.Rank < 1 || p.Rank > repo.MaxRank {
		return nil, fmt.Errorf("unsupported rank %d", p.Rank)
	}
	if p.InArrayType == fft.Real || p.OutArrayType == fft.Real ||
		p.InArrayType == fft.HermitianInterleaved || p.InArrayType == fft.HermitianPlanar {
		return nil, fmt.Errorf("real transforms are not supported")
	}
	for d := 0; d < p.Rank; d++ {
		if p.Lengths[d] < 2 {
			return nil, fmt.Errorf("length %d of dimension %d is too small", p.Lengths[d], d)
		}
	}

	var steps []step
	var err error
	switch {
	case p.Rank == 1 && !pl.hasStockham(p.Lengths[0]):
		steps, err = pl.large1D()
	case p.Rank == 2 && pl.hasTwoD():
		steps = []step{pl.twoD()}
	default:
		steps, err = pl.passes()
	}
	if err != nil {
		return nil, err
	}
	pl.finish(steps)
	return steps, nil
}

// finish applies the user layout to the first and last nodes
func (pl planner) finish(steps []step) {
	p := pl.params
	for _, s := range steps {
		if s.in == userIn {
			s.node.InArrayType = p.InArrayType
		}
		if s.out == userOut {
			s.node.OutArrayType = p.OutArrayType
		}
		// a node reading the output buffer runs in place on it
		if s.in == userOut {
			s.node.Placement = fft.InPlace
			s.node.InArrayType = p.OutArrayType
		}
		if s.in == userIn && s.out == userOut && p.Placement == fft.InPlace {
			s.node.Placement = fft.InPlace
		}
	}
	steps[len(steps)-1].node.ScaleFactor = p.ScaleFactor
}

func (pl planner) hasTwoD() bool {
	p := pl.params
	key := catalog.NewKey2D(p.Lengths[0], p.Lengths[1], p.Precision, fft.Kernel2DSingle)
	_, ok := pl.cat.Lookup(key)
	return ok
}

func (pl planner) twoD() step {
	p := pl.params
	n := pl.baseNode(fft.Kernel2DSingle,
		[]int{p.Lengths[0], p.Lengths[1]},
		[]int{p.InStrides[0], p.InStrides[1]},
		[]int{p.OutStrides[0], p.OutStrides[1]},
		p.InDist, p.OutDist)
	return step{node: n, in: userIn, out: userOut}
}

// passes runs one Stockham pass per dimension. Dimension d is moved to the
// front of the node's lengths; the rest keep their order.
func (pl planner) passes() ([]step, error) {
	p := pl.params
	var steps []step
	for d := 0; d < p.Rank; d++ {
		if !pl.hasStockham(p.Lengths[d]) {
			return nil, fmt.Errorf("no kernel for length %d", p.Lengths[d])
		}
		order := []int{d}
		for o := 0; o < p.Rank; o++ {
			if o != d {
				order = append(order, o)
			}
		}
		pick := func(src [repo.MaxRank]int) []int {
			out := make([]int, len(order))
			for i, o := range order {
				out[i] = src[o]
			}
			return out
		}
		if d == 0 {
			n := pl.baseNode(fft.KernelStockham, pick(p.Lengths), pick(p.InStrides), pick(p.OutStrides),
				p.InDist, p.OutDist)
			steps = append(steps, step{node: n, in: userIn, out: userOut})
			continue
		}
		n := pl.baseNode(fft.KernelStockham, pick(p.Lengths), pick(p.OutStrides), pick(p.OutStrides),
			p.OutDist, p.OutDist)
		steps = append(steps, step{node: n, in: userOut, out: userOut})
	}
	return steps, nil
}

// large1D splits a length the catalog has no single kernel for into
// n = n0*n1: a block column pass of length n0 that also applies the large
// twiddles, then a Stockham pass of length n1 writing the transposed result.
func (pl planner) large1D() ([]step, error) {
	p := pl.params
	n := p.Lengths[0]
	n0, n1, ok := pl.splitLarge(n)
	if !ok {
		return nil, fmt.Errorf("no kernel decomposition for length %d", n)
	}
	istr, ostr := p.InStrides[0], p.OutStrides[0]

	cc := pl.baseNode(fft.KernelStockhamBlockCC,
		[]int{n0, n1},
		[]int{n1 * istr, istr},
		[]int{n1, 1},
		p.InDist, n)
	cc.LargeTwdBase = LargeTwiddleBase
	cc.LargeTwdSteps = twiddle.LargeSteps(n, LargeTwiddleBase)

	row := pl.baseNode(fft.KernelStockham,
		[]int{n1, n0},
		[]int{1, n1},
		[]int{n0 * ostr, ostr},
		n, p.OutDist)

	return []step{
		{node: cc, in: userIn, out: tempBuf},
		{node: row, in: tempBuf, out: userOut},
	}, nil
}

// splitLarge prefers the largest block column length that leaves a
// catalogued Stockham length
func (pl planner) splitLarge(n int) (n0, n1 int, ok bool) {
	keys := pl.cat.Keys()
	for i := len(keys) - 1; i >= 0; i-- {
		k := keys[i]
		if k.Scheme != fft.KernelStockhamBlockCC || k.Precision != pl.params.Precision {
			continue
		}
		l0 := k.Length[0]
		if n%l0 == 0 && pl.hasStockham(n/l0) {
			return l0, n / l0, true
		}
	}
	return 0, 0, false
}
