package parser

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	whitespacePattern = regexp.MustCompile(`\s+`)
	yearPattern       = regexp.MustCompile(`(\d{4})`)
	nonDigitPattern   = regexp.MustCompile(`[^0-9]`)
)

const utf8BOM = "\ufeff"

// NormalizeColumnName 规范化列名，去除 BOM、空格和换行
func NormalizeColumnName(name string) string {
	name = strings.TrimPrefix(name, utf8BOM)
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "\n", "")
	name = strings.ReplaceAll(name, "\r", "")
	name = strings.ReplaceAll(name, "\t", "")
	return whitespacePattern.ReplaceAllString(name, " ")
}

// ParseMonth 解析月份，支持 "03" / "3" / "3.0" / "202503" / "2025-03" / "2025/3"
// 只保留数字；5 位及以上视为年份在前，取年份之后的部分；结果必须在 1-12 之间
func ParseMonth(text string) (int, bool) {
	digits := nonDigitPattern.ReplaceAllString(NormalizeStoreID(text), "")
	if digits == "" {
		return 0, false
	}
	if len(digits) >= 5 {
		digits = digits[4:]
	}
	month, err := strconv.Atoi(digits)
	if err != nil || month < 1 || month > 12 {
		return 0, false
	}
	return month, true
}

// ParseYear 解析年度，支持 "2025" / "2025.0" / "2025年"
func ParseYear(text string) (int, bool) {
	text = NormalizeStoreID(text)
	matches := yearPattern.FindStringSubmatch(text)
	if len(matches) < 2 {
		return 0, false
	}
	year, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0, false
	}
	return year, true
}

// IsASCIIDigits 判断字符串是否全部由 ASCII 数字组成
func IsASCIIDigits(text string) bool {
	if text == "" {
		return false
	}
	for i := 0; i < len(text); i++ {
		if text[i] < '0' || text[i] > '9' {
			return false
		}
	}
	return true
}
