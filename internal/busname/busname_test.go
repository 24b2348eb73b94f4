package busname

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		bits []string
	}{
		{"clk", []string{"clk"}},
		{"sig[0:3]", []string{"sig[0]", "sig[1]", "sig[2]", "sig[3]"}},
		{"d[2:0]", []string{"d[2]", "d[1]", "d[0]"}},
		{"a, b[1]", []string{"a", "b[1]"}},
		{"x[1,3]", []string{"x[1]", "x[3]"}},
		{"m[0:1][0:1]", []string{"m[0][0]", "m[0][1]", "m[1][0]", "m[1][1]"}},
		{"q[5]", []string{"q[5]"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			n, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.bits, n.Bits())
			assert.Equal(t, len(tt.bits), n.Width())
			assert.Equal(t, len(tt.bits) > 1, n.IsBus())
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, in := range []string{"", "a[", "a]", "a[x]", "a,,b", "[0]", "a[0:1]b", "a,a", "a[-1]"} {
		t.Run(in, func(t *testing.T) {
			_, err := Parse(in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrSyntax))
		})
	}
}

func TestScalarFallback(t *testing.T) {
	n := Scalar("weird]name")
	assert.Equal(t, 1, n.Width())
	assert.Equal(t, "weird]name", n.Bit(0))
}
