package parser

import (
	"strings"

	"github.com/MakiDevelop/ting-data-etl/internal/layout"
	"github.com/MakiDevelop/ting-data-etl/internal/model"
)

// NormalizeStoreID 规范化商店序号
// 表格软件导出时整数常被写成 "40316.0"，以 ".0" 结尾时去掉小数点及之后的部分
func NormalizeStoreID(raw string) string {
	id := strings.TrimSpace(raw)
	if strings.HasSuffix(id, ".0") {
		id = id[:strings.Index(id, ".")]
	}
	return id
}

// IDPolicy 商店序号校验策略
type IDPolicy struct {
	RequireNumeric bool     // 严格模式：只接受纯数字
	Reserved       []string // 严格模式下拒绝与表头别名相同的值
}

// Check 规范化并校验商店序号，不通过时返回丢弃原因
// 商店序号会成为输出目录名，任何模式下都拒绝不能作为单层目录名的值
func (p IDPolicy) Check(raw string) (string, model.DiscardReason) {
	id := NormalizeStoreID(raw)
	if id == "" {
		return "", model.DiscardEmptyID
	}
	if !layout.SafeName(id) {
		return id, model.DiscardUnsafeID
	}
	if !p.RequireNumeric {
		return id, ""
	}
	for _, reserved := range p.Reserved {
		if id == reserved {
			return "", model.DiscardHeaderValue
		}
	}
	if !IsASCIIDigits(id) {
		return id, model.DiscardNonNumericID
	}
	return id, ""
}

// CheckRow 取出一行中的商店序号并校验
func (p IDPolicy) CheckRow(row []string, index int) (string, model.DiscardReason) {
	if index < 0 || index >= len(row) {
		return "", model.DiscardShortRow
	}
	return p.Check(row[index])
}
