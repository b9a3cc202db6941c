package builder

import (
	"fmt"
	"slices"
	"strings"

	"github.com/notargets/FFTKernel/catalog"
	"github.com/notargets/FFTKernel/fft"
	"github.com/notargets/FFTKernel/twiddle"
)

// StockhamSource generates the OKL source for a Stockham kernel. A 2D
// single kernel takes two specs, one per fused pass; every other scheme
// takes one.
func StockhamSource(name string, p StockhamParams, specs ...StockhamSpec) (string, error) {
	if len(specs) == 0 {
		return "", fmt.Errorf("no kernel spec for %s", name)
	}
	if p.Scheme == fft.Kernel2DSingle && len(specs) != 2 {
		return "", fmt.Errorf("2D single kernel %s needs two specs, got %d", name, len(specs))
	}
	lengths := []int{p.Length0}
	if p.Scheme == fft.Kernel2DSingle {
		lengths = append(lengths, p.Length1)
	}
	for i, s := range specs[:len(lengths)] {
		if len(s.Factors) == 0 || catalog.Product(s.Factors) != lengths[i] {
			return "", fmt.Errorf("factors %v do not decompose length %d", s.Factors, lengths[i])
		}
		if s.ThreadsPerTransform <= 0 {
			return "", fmt.Errorf("threads per transform must be positive, got %d", s.ThreadsPerTransform)
		}
	}

	g := &stockhamGen{name: name, p: p, specs: specs}
	return g.generate(), nil
}

type stockhamGen struct {
	sb    strings.Builder
	name  string
	p     StockhamParams
	specs []StockhamSpec
}

func (g *stockhamGen) printf(format string, args ...interface{}) {
	fmt.Fprintf(&g.sb, format, args...)
}

func (g *stockhamGen) twoD() bool { return g.p.Scheme == fft.Kernel2DSingle }

func (g *stockhamGen) dimExpr() string {
	if g.p.StaticDim != 0 {
		return fmt.Sprintf("%d", g.p.StaticDim)
	}
	return "dim"
}

// firstBatchDim is the first dimension that counts transforms
func (g *stockhamGen) firstBatchDim() int {
	if g.twoD() {
		return 2
	}
	return 1
}

func (g *stockhamGen) transposed() bool {
	return !slices.Equal(g.p.Scheme.OutputDims(), []int{0, 1, 2})
}

func (g *stockhamGen) transformsPerBlock() int {
	if g.twoD() {
		return 1
	}
	s := g.specs[0]
	if tpb := s.WorkgroupSize / s.ThreadsPerTransform; tpb > 1 {
		return tpb
	}
	return 1
}

func (g *stockhamGen) workgroupSize() int {
	if g.twoD() {
		wg := g.specs[0].WorkgroupSize
		for _, s := range g.specs {
			wg = max(wg, s.ThreadsPerTransform)
		}
		return wg
	}
	return g.specs[0].ThreadsPerTransform * g.transformsPerBlock()
}

// guarded is true when the last block may hold fewer transforms than fit
func (g *stockhamGen) guarded() bool {
	if g.transformsPerBlock() == 1 {
		return false
	}
	if !g.p.blockRC() {
		return true
	}
	return g.p.Transpose != fft.TransposeTileAligned && g.p.Transpose != fft.TransposeDiagonal
}

func (g *stockhamGen) elements() int {
	if g.twoD() {
		return g.p.Length0 * g.p.Length1
	}
	return g.p.Length0
}

func (g *stockhamGen) dirReg() bool {
	if g.twoD() || g.specs[0].HalfLDS {
		return false
	}
	if g.p.DirReg != fft.DirRegOn || !g.specs[0].DirectToFromReg {
		return false
	}
	// one pass in place would read and write global memory in the same loop
	return len(g.specs[0].Factors) > 1 || g.p.Placement == fft.NotInPlace
}

func (g *stockhamGen) generate() string {
	g.preamble()
	g.printf("\n@kernel void %s(%s) {\n", g.name, GenerateKernelSignature(StockhamArguments(g.p.Layout())))

	tpb := g.transformsPerBlock()
	ntrans := fmt.Sprintf("transform_count(%d, %s, lengths, nbatch)", g.firstBatchDim(), g.dimExpr())
	g.printf("  for (long blk = 0; blk < (%s + %d) / %d; ++blk; @outer) {\n", ntrans, tpb-1, tpb)
	g.printf("    @shared real2_t lds[%d][%d];\n", g.ldsBuffers(), tpb*g.elements())
	if g.specs[0].HalfLDS {
		g.printf("    @exclusive real2_t regs[%d];\n", g.exclusiveRegs())
	}

	passes := g.passes()
	dirReg := g.dirReg()
	if !dirReg {
		g.loadLoop(ntrans)
	}
	for i, ps := range passes {
		ps.fromGlobal = dirReg && i == 0
		ps.toGlobal = dirReg && i == len(passes)-1
		g.passLoop(ntrans, i, ps)
	}
	if !dirReg {
		g.storeLoop(ntrans, len(passes)%g.ldsBuffers())
	}
	g.printf("  }\n}\n")
	return g.sb.String()
}

func (g *stockhamGen) ldsBuffers() int {
	if g.specs[0].HalfLDS {
		return 1
	}
	return 2
}

func (g *stockhamGen) exclusiveRegs() int {
	most := 0
	for _, ps := range g.passes() {
		butterflies := ps.count * ps.n / ps.radix
		perThread := (butterflies + g.threadsPerTransform() - 1) / g.threadsPerTransform()
		most = max(most, perThread*ps.radix)
	}
	return most
}

func (g *stockhamGen) threadsPerTransform() int {
	if g.twoD() {
		return g.workgroupSize()
	}
	return g.specs[0].ThreadsPerTransform
}

// pass is one radix step over a set of sub-transforms held in LDS. Element
// e of sub-transform s lives at s*subStride + e*elemStride.
type pass struct {
	n           int
	radix       int
	ns          int
	count       int
	subStride   int
	elemStride  int
	twiddleBase int
	fromGlobal  bool
	toGlobal    bool
}

func (g *stockhamGen) passes() []pass {
	var out []pass
	add := func(factors []int, n, count, subStride, elemStride, twdBase int) {
		ns := 1
		for _, r := range factors {
			out = append(out, pass{n: n, radix: r, ns: ns, count: count,
				subStride: subStride, elemStride: elemStride, twiddleBase: twdBase})
			ns *= r
		}
	}
	if !g.twoD() {
		add(g.specs[0].Factors, g.p.Length0, 1, 0, 1, 0)
		return out
	}
	l0, l1 := g.p.Length0, g.p.Length1
	add(g.specs[0].Factors, l0, l1, l0, 1, 0)
	base := 0
	if !twiddle.Shared2D(l0, g.specs[0].Factors, l1, g.specs[1].Factors) {
		base = twiddle.Size(l0)
	}
	add(g.specs[1].Factors, l1, l0, 1, l0, base)
	return out
}

// threadHeader opens an @inner loop and binds the per-thread indices
func (g *stockhamGen) threadHeader(ntrans string) {
	tpt := g.threadsPerTransform()
	g.printf("    for (int j = 0; j < %d; ++j; @inner) {\n", g.workgroupSize())
	g.printf("      const int tid = j %% %d;\n", tpt)
	g.printf("      const int slot = j / %d;\n", tpt)
	g.printf("      const long t = %s;\n", g.transformIndex())
	if g.guarded() {
		g.printf("      if (t < %s) {\n", ntrans)
	} else {
		g.printf("      {\n")
	}
}

func (g *stockhamGen) threadFooter() {
	g.printf("      }\n    }\n")
}

func (g *stockhamGen) transformIndex() string {
	idx := fmt.Sprintf("blk * %d + slot", g.transformsPerBlock())
	if g.p.blockRC() && g.p.Transpose == fft.TransposeDiagonal {
		return fmt.Sprintf("diagonal_index(%s, lengths[1])", idx)
	}
	return idx
}

// inputOffset is the global offset of element expression e in buf_in
func (g *stockhamGen) inputOffset(e string) string {
	base := fmt.Sprintf("batch_offset(t, %d, %s, lengths, stride_in)", g.firstBatchDim(), g.dimExpr())
	if g.twoD() {
		return fmt.Sprintf("%s + ((%s) %% %d) * stride_in[0] + ((%s) / %d) * stride_in[1]",
			base, e, g.p.Length0, e, g.p.Length0)
	}
	if g.p.UnitStride {
		return fmt.Sprintf("%s + (%s)", base, e)
	}
	return fmt.Sprintf("%s + (%s) * stride_in[0]", base, e)
}

func (g *stockhamGen) outputStrides() string {
	if g.p.Placement == fft.InPlace {
		return "stride_in"
	}
	return "stride_out"
}

func (g *stockhamGen) outputOffset(e string) string {
	strides := g.outputStrides()
	if g.transposed() {
		return fmt.Sprintf("transposed_offset(%s, t, %s, lengths, %s)", e, g.dimExpr(), strides)
	}
	base := fmt.Sprintf("batch_offset(t, %d, %s, lengths, %s)", g.firstBatchDim(), g.dimExpr(), strides)
	if g.twoD() {
		return fmt.Sprintf("%s + ((%s) %% %d) * %s[0] + ((%s) / %d) * %s[1]",
			base, e, g.p.Length0, strides, e, g.p.Length0, strides)
	}
	if g.p.UnitStride {
		return fmt.Sprintf("%s + (%s)", base, e)
	}
	return fmt.Sprintf("%s + (%s) * %s[0]", base, e, strides)
}

func (g *stockhamGen) loadExpr(off string) string {
	direct := fmt.Sprintf("buf_in[%s]", off)
	if g.p.InArrayType.IsPlanar() {
		direct = fmt.Sprintf("cmplx(buf_in[%s], buf_in_imag[%s])", off, off)
	}
	if !g.p.EnableCallbacks {
		return direct
	}
	return fmt.Sprintf("(load_cb_fn ? ((load_cb_t)load_cb_fn)(buf_in, %s, load_cb_data, 0) : %s)", off, direct)
}

// storeStmts writes value v of element e to global memory
func (g *stockhamGen) storeStmts(indent, e, v string) {
	g.printf("%s{\n", indent)
	g.printf("%s  real2_t o = %s;\n", indent, v)
	if g.p.Scheme == fft.KernelStockhamBlockCC {
		g.printf("%s  o = %s(o, large_twiddle(twiddles_large, (%s) * (t %% lengths[1])));\n",
			indent, g.twiddleMul(), e)
	}
	if g.p.EnableScaling {
		scale := literal(g.p.ScaleFactor, g.p.Precision)
		g.printf("%s  o.x *= %s;\n%s  o.y *= %s;\n", indent, scale, indent, scale)
	}
	g.printf("%s  const long off = %s;\n", indent, g.outputOffset(e))

	buf, imag, planar := "buf_in", "buf_in_imag", g.p.InArrayType.IsPlanar()
	if g.p.Placement == fft.NotInPlace {
		buf, imag, planar = "buf_out", "buf_out_imag", g.p.OutArrayType.IsPlanar()
	}
	write := fmt.Sprintf("%s[off] = o;", buf)
	if planar {
		write = fmt.Sprintf("%s[off] = o.x; %s[off] = o.y;", buf, imag)
	}
	if g.p.EnableCallbacks && !planar {
		g.printf("%s  if (store_cb_fn) ((store_cb_t)store_cb_fn)(%s, off, o, store_cb_data, 0);\n", indent, buf)
		g.printf("%s  else %s\n", indent, write)
	} else {
		g.printf("%s  %s\n", indent, write)
	}
	g.printf("%s}\n", indent)
}

func (g *stockhamGen) twiddleMul() string {
	if g.p.Direction == fft.Backward {
		return "cmul_conj"
	}
	return "cmul"
}

func (g *stockhamGen) loadLoop(ntrans string) {
	g.threadHeader(ntrans)
	g.printf("        real2_t* dst = lds[0] + slot * %d;\n", g.elements())
	g.printf("        for (long i = tid; i < %d; i += %d) {\n", g.elements(), g.threadsPerTransform())
	g.printf("          dst[i] = %s;\n", g.loadExpr(g.inputOffset("i")))
	g.printf("        }\n")
	g.threadFooter()
}

func (g *stockhamGen) storeLoop(ntrans string, buffer int) {
	g.threadHeader(ntrans)
	g.printf("        const real2_t* src = lds[%d] + slot * %d;\n", buffer, g.elements())
	g.printf("        for (long i = tid; i < %d; i += %d) {\n", g.elements(), g.threadsPerTransform())
	g.storeStmts("          ", "i", "src[i]")
	g.printf("        }\n")
	g.threadFooter()
}

// butterflyHeader binds s (sub-transform), b (butterfly), k and the
// element index helper for butterfly q
func (g *stockhamGen) butterflyHeader(ps pass, indent string) {
	per := ps.n / ps.radix
	g.printf("%sconst long s = q / %d;\n", indent, per)
	g.printf("%sconst long b = q %% %d;\n", indent, per)
	g.printf("%sconst long k = b %% %d;\n", indent, ps.ns)
	g.printf("%sconst long d = (b / %d) * %d + k;\n", indent, ps.ns, ps.ns*ps.radix)
}

func (g *stockhamGen) readIndex(ps pass, r int) string {
	return fmt.Sprintf("s * %d + (b + %d) * %d", ps.subStride, r*(ps.n/ps.radix), ps.elemStride)
}

func (g *stockhamGen) writeIndex(ps pass, r int) string {
	return fmt.Sprintf("s * %d + (d + %d) * %d", ps.subStride, r*ps.ns, ps.elemStride)
}

func (g *stockhamGen) computeButterfly(ps pass, indent, src string) {
	g.printf("%sreal2_t v[%d];\n", indent, ps.radix)
	for r := 0; r < ps.radix; r++ {
		idx := g.readIndex(ps, r)
		if ps.fromGlobal {
			g.printf("%sv[%d] = %s;\n", indent, r, g.loadExpr(g.inputOffset(idx)))
		} else {
			g.printf("%sv[%d] = %s[%s];\n", indent, r, src, idx)
		}
	}
	if ps.ns > 1 {
		for r := 1; r < ps.radix; r++ {
			g.printf("%sv[%d] = %s(v[%d], twiddles[%d + %d + k * %d]);\n",
				indent, r, g.twiddleMul(), r, ps.twiddleBase+ps.ns-1, r-1, ps.radix-1)
		}
	}
	g.printf("%s%s(v);\n", indent, codeletName(ps.radix, g.p.Direction))
}

func (g *stockhamGen) passLoop(ntrans string, i int, ps pass) {
	butterflies := ps.count * ps.n / ps.radix
	tpt := g.threadsPerTransform()
	elems := g.elements()

	if g.specs[0].HalfLDS {
		// compute into registers, then write back over the single buffer
		g.threadHeader(ntrans)
		g.printf("        real2_t* buf = lds[0] + slot * %d;\n", elems)
		g.printf("        int nreg = 0;\n")
		g.printf("        for (long q = tid; q < %d; q += %d) {\n", butterflies, tpt)
		g.butterflyHeader(ps, "          ")
		g.computeButterfly(ps, "          ", "buf")
		for r := 0; r < ps.radix; r++ {
			g.printf("          regs[nreg++] = v[%d];\n", r)
		}
		g.printf("        }\n")
		g.threadFooter()

		g.threadHeader(ntrans)
		g.printf("        real2_t* buf = lds[0] + slot * %d;\n", elems)
		g.printf("        int nreg = 0;\n")
		g.printf("        for (long q = tid; q < %d; q += %d) {\n", butterflies, tpt)
		g.butterflyHeader(ps, "          ")
		for r := 0; r < ps.radix; r++ {
			g.printf("          buf[%s] = regs[nreg++];\n", g.writeIndex(ps, r))
		}
		g.printf("        }\n")
		g.threadFooter()
		return
	}

	g.threadHeader(ntrans)
	g.printf("        const real2_t* src = lds[%d] + slot * %d;\n", i%2, elems)
	g.printf("        real2_t* dst = lds[%d] + slot * %d;\n", (i+1)%2, elems)
	g.printf("        for (long q = tid; q < %d; q += %d) {\n", butterflies, tpt)
	g.butterflyHeader(ps, "          ")
	g.computeButterfly(ps, "          ", "src")
	for r := 0; r < ps.radix; r++ {
		idx := g.writeIndex(ps, r)
		if ps.toGlobal {
			g.storeStmts("          ", idx, fmt.Sprintf("v[%d]", r))
		} else {
			g.printf("          dst[%s] = v[%d];\n", idx, r)
		}
	}
	g.printf("        }\n")
	g.threadFooter()
}

func (g *stockhamGen) preamble() {
	g.printf("typedef %s real_t;\n", RealTypeName(g.p.Precision))
	g.printf("typedef struct { real_t x; real_t y; } real2_t;\n\n")

	g.printf(`real2_t cmplx(const real_t x, const real_t y) {
  real2_t z;
  z.x = x;
  z.y = y;
  return z;
}

real2_t cmul(const real2_t a, const real2_t b) {
  return cmplx(a.x * b.x - a.y * b.y, a.x * b.y + a.y * b.x);
}

// a * conj(b)
real2_t cmul_conj(const real2_t a, const real2_t b) {
  return cmplx(a.x * b.x + a.y * b.y, a.y * b.x - a.x * b.y);
}

long transform_count(const int first, const long dim, const long* lengths, const long nbatch) {
  long n = nbatch;
  for (long d = first; d < dim; ++d) n *= lengths[d];
  return n;
}

// stride[dim] holds the batch distance
long batch_offset(long t, const int first, const long dim, const long* lengths, const long* stride) {
  long off = 0;
  for (long d = first; d < dim; ++d) {
    off += (t %% lengths[d]) * stride[d];
    t /= lengths[d];
  }
  return off + t * stride[dim];
}
`)

	if g.transposed() {
		perm := g.p.Scheme.OutputDims()
		g.printf(`
long transposed_offset(const long i, long t, const long dim, const long* lengths, const long* stride) {
  long c[3] = {i, 0, 0};
  for (long d = 1; d < dim; ++d) {
    c[d] = t %% lengths[d];
    t /= lengths[d];
  }
  const int perm[3] = {%d, %d, %d};
  long off = t * stride[dim];
  for (long d = 0; d < dim; ++d) off += c[perm[d]] * stride[d];
  return off;
}
`, perm[0], perm[1], perm[2])
	}

	if g.p.blockRC() && g.p.Transpose == fft.TransposeDiagonal {
		g.printf(`
long diagonal_index(const long t, const long width) {
  const long row = t / width;
  return row * width + (t %% width + row) %% width;
}
`)
	}

	if g.p.Scheme == fft.KernelStockhamBlockCC {
		g.largeTwiddle()
	}

	if g.p.EnableCallbacks {
		g.printf(`
typedef real2_t (*load_cb_t)(void* buf, long offset, void* data, void* shared);
typedef void (*store_cb_t)(void* buf, long offset, real2_t value, void* data, void* shared);
`)
	}

	for _, r := range uniqueRadices(g.specs...) {
		g.printf("\n%s", generateCodelet(r, g.p.Direction, g.p.Precision))
	}
}

// largeTwiddle emits the product of per-step table lookups. Without a
// step count the table holds one entry per index.
func (g *stockhamGen) largeTwiddle() {
	g.printf("\nreal2_t large_twiddle(const real2_t* twl, const long idx) {\n")
	if g.p.LargeTwdSteps <= 0 || g.p.LargeTwdBase <= 0 {
		g.printf("  return twl[idx];\n}\n")
		return
	}
	base := g.p.LargeTwdBase
	mask := (1 << base) - 1
	g.printf("  real2_t w = twl[idx & %d];\n", mask)
	for s := 1; s < g.p.LargeTwdSteps; s++ {
		g.printf("  w = cmul(w, twl[%d + ((idx >> %d) & %d)]);\n", s<<base, s*base, mask)
	}
	g.printf("  return w;\n}\n")
}
