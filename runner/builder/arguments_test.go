package builder

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStockhamArguments_Order(t *testing.T) {
	tests := []struct {
		name   string
		layout ArgLayout
		want   []string
	}{
		{
			name:   "in place interleaved static dim",
			layout: ArgLayout{},
			want: []string{"twiddles", "lengths", "stride_in", "nbatch", "lds_padding",
				"load_cb_fn", "load_cb_data", "load_cb_lds_bytes", "store_cb_fn", "store_cb_data",
				"buf_in"},
		},
		{
			name:   "everything",
			layout: ArgLayout{LargeTwiddles: true, DynamicDim: true, OutOfPlace: true, PlanarIn: true, PlanarOut: true},
			want: []string{"twiddles", "twiddles_large", "dim", "lengths", "stride_in", "stride_out",
				"nbatch", "lds_padding", "load_cb_fn", "load_cb_data", "load_cb_lds_bytes",
				"store_cb_fn", "store_cb_data", "buf_in", "buf_in_imag", "buf_out", "buf_out_imag"},
		},
		{
			name:   "planar output only matters out of place",
			layout: ArgLayout{PlanarOut: true},
			want: []string{"twiddles", "lengths", "stride_in", "nbatch", "lds_padding",
				"load_cb_fn", "load_cb_data", "load_cb_lds_bytes", "store_cb_fn", "store_cb_data",
				"buf_in"},
		},
		{
			name:   "out of place interleaved to planar",
			layout: ArgLayout{OutOfPlace: true, PlanarOut: true},
			want: []string{"twiddles", "lengths", "stride_in", "stride_out", "nbatch", "lds_padding",
				"load_cb_fn", "load_cb_data", "load_cb_lds_bytes", "store_cb_fn", "store_cb_data",
				"buf_in", "buf_out", "buf_out_imag"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ArgumentNames(StockhamArguments(tt.layout)))
		})
	}
}

func TestGenerateKernelSignature(t *testing.T) {
	args := StockhamArguments(ArgLayout{DynamicDim: true, PlanarIn: true})
	sig := GenerateKernelSignature(args)
	parts := strings.Split(sig, ",\n\t")
	require.Len(t, parts, len(args))
	assert.Equal(t, "const real2_t* twiddles", parts[0])
	assert.Equal(t, "const long dim", parts[1])
	assert.Equal(t, "real_t* buf_in_imag", parts[len(parts)-1])

	for i, a := range args {
		switch a.Type {
		case "const long":
			assert.Equal(t, SizeArg, a.Kind, a.Name)
		case "const unsigned int":
			assert.Equal(t, UintArg, a.Kind, a.Name)
		default:
			assert.Equal(t, PointerArg, a.Kind, a.Name)
		}
		assert.True(t, strings.HasSuffix(parts[i], " "+a.Name))
	}
}
