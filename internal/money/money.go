package money

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Decimals 代币精度，1个展示单位 = 10^18 原子单位
const Decimals = 18

var (
	// Unit 10^18
	Unit = new(big.Int).Exp(big.NewInt(10), big.NewInt(Decimals), nil)

	bpsDenominator     = big.NewInt(10000)
	percentDenominator = big.NewInt(100)
)

// Parse 将人类可读金额字符串转换为原子单位整数
// 科学计数法先归一化为定点小数；小数部分补齐/截断到18位；拒绝负数和非法输入
func Parse(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty amount")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("negative amount %q", s)
	}

	// Shift(18) 归一化指数表示；Truncate 丢弃第18位之后的小数
	atomic := d.Shift(Decimals).Truncate(0)
	return atomic.BigInt(), nil
}

// Format 将原子单位整数转换为人类可读字符串，去掉末尾的零小数
func Format(atomic *big.Int) string {
	if atomic == nil {
		return "0"
	}
	return decimal.NewFromBigInt(atomic, -Decimals).String()
}

// FormatFixed 固定小数位展示（截断，不做四舍五入）
func FormatFixed(atomic *big.Int, places int32) string {
	if atomic == nil {
		return decimal.Zero.StringFixed(places)
	}
	d := decimal.NewFromBigInt(atomic, -Decimals)
	return d.Truncate(places).StringFixed(places)
}

// Add 带下溢检查的加法，结果为负时报错
func Add(a, b *big.Int) (*big.Int, error) {
	sum := new(big.Int).Add(a, b)
	if sum.Sign() < 0 {
		return nil, fmt.Errorf("negative result: %s + %s", a, b)
	}
	return sum, nil
}

// Sub 带下溢检查的减法，a < b 时报错
func Sub(a, b *big.Int) (*big.Int, error) {
	if a.Cmp(b) < 0 {
		return nil, fmt.Errorf("underflow: %s - %s", a, b)
	}
	return new(big.Int).Sub(a, b), nil
}

// Mul 乘法，结果位宽超出安全上限时报错
func Mul(a, b *big.Int) (*big.Int, error) {
	product := new(big.Int).Mul(a, b)
	// 金额列按78位十进制数封顶（覆盖2^256）
	if len(new(big.Int).Abs(product).String()) > 78 {
		return nil, fmt.Errorf("overflow: %s * %s", a, b)
	}
	return product, nil
}

// ApplyBps 按基点计算：amount * bps / 10000，整数除法向零截断
func ApplyBps(amount *big.Int, bps int64) *big.Int {
	if amount == nil || amount.Sign() <= 0 || bps <= 0 {
		return big.NewInt(0)
	}
	v := new(big.Int).Mul(amount, big.NewInt(bps))
	return v.Div(v, bpsDenominator)
}

// ApplyPercent 按百分比计算：amount * percent / 100，整数除法向零截断
func ApplyPercent(amount *big.Int, percent int64) *big.Int {
	if amount == nil || amount.Sign() <= 0 || percent <= 0 {
		return big.NewInt(0)
	}
	v := new(big.Int).Mul(amount, big.NewInt(percent))
	return v.Div(v, percentDenominator)
}

// FromDB 数据库字符串转原子单位整数，空串按0处理
func FromDB(s string) *big.Int {
	if s == "" {
		return big.NewInt(0)
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return big.NewInt(0)
	}
	return v
}

// ToDB 原子单位整数转数据库字符串
func ToDB(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
