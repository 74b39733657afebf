package parser

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseNumber 宽松数值解析
// 去掉千分位逗号、百分号与首尾空白；空值、"nan"、"None" 以及无法解析的内容视为缺失
func ParseNumber(text string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(text)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "%", "")
	s = strings.TrimSpace(s)

	switch strings.ToLower(s) {
	case "", "nan", "none":
		return decimal.Zero, false
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// NumberOrZero 缺失值按 0 参与求和
func NumberOrZero(text string) decimal.Decimal {
	d, _ := ParseNumber(text)
	return d
}
