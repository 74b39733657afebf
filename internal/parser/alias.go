package parser

import (
	"errors"
	"fmt"
	"strings"
)

// ErrColumnNotFound 必需列在表头及其历史别名中均不存在
var ErrColumnNotFound = errors.New("column not found")

// 逻辑字段（以规范列名表示）
const (
	FieldStoreID   = "商店序號"
	FieldStoreName = "門市名稱"
	FieldYear      = "年度"
	FieldMonth     = "月份"
)

// AliasTable 逻辑字段 -> 按优先级排列的历史别名
type AliasTable map[string][]string

// DefaultAliases 默认别名表
func DefaultAliases() AliasTable {
	return AliasTable{
		FieldStoreID: {"商店序號", "shopId", "ShopId", "storeId", "store_id"},
		FieldStoreName: {
			"門市名稱",
			"門市",
			"Store Name",
			"store_name",
			"Name",
			"門市名稱(中文)",
			"門市名稱（中文）",
		},
		FieldYear:  {"年度", "年", "year", "Year"},
		FieldMonth: {"月份", "月", "月份(數字)", "month", "Month", "MONTH", "Established At Month"},
	}
}

// Candidates 返回字段的候选列名：规范名在前，别名按配置顺序，去重
func (t AliasTable) Candidates(field string) []string {
	out := []string{field}
	seen := map[string]bool{field: true}
	for _, alias := range t[field] {
		if alias == "" || seen[alias] {
			continue
		}
		seen[alias] = true
		out = append(out, alias)
	}
	return out
}

// Resolver 统一的列解析器，分发、聚合、校验共用同一套匹配规则
type Resolver struct {
	aliases AliasTable
}

// NewResolver 创建列解析器
func NewResolver(aliases AliasTable) *Resolver {
	if aliases == nil {
		aliases = DefaultAliases()
	}
	return &Resolver{aliases: aliases}
}

// Aliases 返回字段的别名（按优先级），用于表头定位
func (r *Resolver) Aliases(field string) []string {
	if list, ok := r.aliases[field]; ok && len(list) > 0 {
		return list
	}
	return []string{field}
}

// Resolve 在表头中查找字段所在列
// 顺序：规范名 -> 别名（按优先级）-> 大小写不敏感匹配
func (r *Resolver) Resolve(header []string, field string) (int, error) {
	normalized := make([]string, len(header))
	for i, col := range header {
		normalized[i] = NormalizeColumnName(col)
	}

	candidates := r.aliases.Candidates(field)
	for _, name := range candidates {
		for i, col := range normalized {
			if col == name {
				return i, nil
			}
		}
	}

	for _, name := range candidates {
		lower := strings.ToLower(name)
		for i, col := range normalized {
			if strings.ToLower(col) == lower {
				return i, nil
			}
		}
	}

	return -1, fmt.Errorf("%w: %s (available: %s)", ErrColumnNotFound, field, strings.Join(normalized, ", "))
}
