package money

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0", "0"},
		{"1", "1000000000000000000"},
		{"100.5", "100500000000000000000"},
		{"100.000000000000000000", "100000000000000000000"},
		{"0.000000000000000001", "1"},
		// 超过18位小数截断
		{"1.0000000000000000019", "1000000000000000001"},
		// 科学计数法归一化
		{"1e2", "100000000000000000000"},
		{"2.5E-1", "250000000000000000"},
	}

	for _, c := range cases {
		got, err := Parse(c.in)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, got.String(), c.in)
	}
}

func TestParseRejects(t *testing.T) {
	for _, in := range []string{"", "abc", "-1", "-0.5", "1.2.3"} {
		_, err := Parse(in)
		assert.Error(t, err, in)
	}
}

func TestFormat(t *testing.T) {
	v, _ := new(big.Int).SetString("100500000000000000000", 10)
	assert.Equal(t, "100.5", Format(v))
	assert.Equal(t, "0", Format(big.NewInt(0)))
	assert.Equal(t, "100.50", FormatFixed(v, 2))

	whole, _ := new(big.Int).SetString("7000000000000000000", 10)
	assert.Equal(t, "7", Format(whole))
}

func TestCheckedOps(t *testing.T) {
	a := big.NewInt(10)
	b := big.NewInt(3)

	sum, err := Add(a, b)
	require.NoError(t, err)
	assert.Equal(t, int64(13), sum.Int64())

	diff, err := Sub(a, b)
	require.NoError(t, err)
	assert.Equal(t, int64(7), diff.Int64())

	_, err = Sub(b, a)
	assert.Error(t, err)

	_, err = Mul(a, b)
	require.NoError(t, err)

	huge := new(big.Int).Exp(big.NewInt(10), big.NewInt(40), nil)
	_, err = Mul(huge, huge)
	assert.Error(t, err)
}

func TestApplyBps(t *testing.T) {
	amount, _ := Parse("100")

	// 500bps = 5%
	assert.Equal(t, "5", Format(ApplyBps(amount, 500)))
	assert.Equal(t, "2", Format(ApplyBps(amount, 200)))
	assert.Equal(t, "0.3", Format(ApplyBps(amount, 30)))
	assert.Equal(t, "0", ApplyBps(amount, 0).String())
	assert.Equal(t, "0", ApplyBps(big.NewInt(0), 500).String())

	// 整数除法向零截断
	assert.Equal(t, int64(0), ApplyBps(big.NewInt(3), 30).Int64())
}

func TestApplyPercent(t *testing.T) {
	amount, _ := Parse("100")

	assert.Equal(t, "200", Format(ApplyPercent(amount, 200)))
	assert.Equal(t, "300", Format(ApplyPercent(amount, 300)))
}

func TestDBRoundTrip(t *testing.T) {
	v, _ := Parse("123.456")
	assert.Equal(t, v.String(), FromDB(ToDB(v)).String())
	assert.Equal(t, "0", FromDB("").String())
	assert.Equal(t, "0", ToDB(nil))
	assert.Equal(t, "0", FromDB("garbage").String())
}
