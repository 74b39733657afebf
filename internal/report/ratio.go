package report

import (
	"github.com/shopspring/decimal"

	"github.com/MakiDevelop/ting-data-etl/internal/parser"
)

var hundred = decimal.NewFromInt(100)

// Ratio 比率；分母为 0 或缺失时无定义
type Ratio struct {
	Value   decimal.Decimal
	Defined bool
}

// Divide num / den，den 为 0 时返回无定义
func Divide(num, den decimal.Decimal) Ratio {
	if den.IsZero() {
		return Ratio{}
	}
	return Ratio{Value: num.Div(den), Defined: true}
}

// Growth 同比 (cur - prev) / prev；prevOK 为 false 表示没有对比期数据
func Growth(cur, prev decimal.Decimal, prevOK bool) Ratio {
	if !prevOK {
		return Ratio{}
	}
	return Divide(cur.Sub(prev), prev)
}

// Percent 输出格式 "12.34%"，无定义时为空字符串
func (r Ratio) Percent() string {
	if !r.Defined {
		return ""
	}
	return r.Value.Mul(hundred).StringFixed(2) + "%"
}

// Less 排序比较：无定义的比率在升序和降序中都排在最后
func (r Ratio) Less(other Ratio, descending bool) bool {
	switch {
	case !r.Defined:
		return false
	case !other.Defined:
		return true
	case descending:
		return r.Value.GreaterThan(other.Value)
	default:
		return r.Value.LessThan(other.Value)
	}
}

// sums 按 key 累加，缺失或无法解析的值按 0 计
type sums map[string]decimal.Decimal

func (s sums) add(key, text string) {
	s[key] = s[key].Add(parser.NumberOrZero(text))
}

func (s sums) get(key string) (decimal.Decimal, bool) {
	v, ok := s[key]
	return v, ok
}

func formatNumber(d decimal.Decimal) string {
	return d.String()
}
