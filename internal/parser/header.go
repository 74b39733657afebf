package parser

import (
	"errors"
	"fmt"
	"io"
)

// ErrHeaderNotFound 整个文件中没有任何一行包含商店序号别名
var ErrHeaderNotFound = errors.New("store id header not found")

// RowReader 逐行读取原始记录（*csv.Reader 满足该接口）
type RowReader interface {
	Read() ([]string, error)
}

// Header 表头定位结果
type Header struct {
	Preamble [][]string // 表头之前的说明行，原样保留
	Row      []string   // 表头行
	KeyIndex int        // 商店序号所在列
	KeyName  string     // 命中的别名
	Line     int        // 表头所在记录号（从 1 开始）
}

// MatchHeader 判断一行是否为表头
// 同一行出现多个别名时，按别名优先级取第一个，而不是按列从左到右
func MatchHeader(row []string, aliases []string) (int, string, bool) {
	if len(row) == 0 {
		return -1, "", false
	}
	normalized := make([]string, len(row))
	for i, cell := range row {
		normalized[i] = NormalizeColumnName(cell)
	}
	for _, alias := range aliases {
		for i, cell := range normalized {
			if cell == alias {
				return i, alias, true
			}
		}
	}
	return -1, "", false
}

// LocateHeader 从首行开始扫描，直到遇到包含别名的行
func LocateHeader(r RowReader, aliases []string) (*Header, error) {
	h := &Header{}
	line := 0
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil, ErrHeaderNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("读取表头失败: %w", err)
		}
		line++

		if idx, alias, ok := MatchHeader(row, aliases); ok {
			h.Row = row
			h.KeyIndex = idx
			h.KeyName = alias
			h.Line = line
			return h, nil
		}
		h.Preamble = append(h.Preamble, row)
	}
}

// Lines 表头及说明行，用于写入新建的分店文件
func (h *Header) Lines() [][]string {
	out := make([][]string, 0, len(h.Preamble)+1)
	out = append(out, h.Preamble...)
	return append(out, h.Row)
}
