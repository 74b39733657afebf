package model

import (
	"sort"
	"time"
)

// DiscardReason 行被丢弃的原因
type DiscardReason string

const (
	DiscardShortRow     DiscardReason = "short_row"      // 行长度不足，取不到商店序号列
	DiscardEmptyID      DiscardReason = "empty_id"       // 商店序号为空
	DiscardNonNumericID DiscardReason = "non_numeric_id" // 严格模式下非纯数字
	DiscardHeaderValue  DiscardReason = "header_value"   // 与表头别名相同（文件中间混入的表头行）
	DiscardUnsafeID     DiscardReason = "unsafe_id"      // 不能作为单层目录名（如 ".."、"a/b"）
	DiscardMalformed    DiscardReason = "malformed"      // CSV 语法错误
)

// FileStatus 单个输入文件的处理状态
type FileStatus string

const (
	FileProcessed FileStatus = "processed"
	FileSkipped   FileStatus = "skipped"
	FileError     FileStatus = "error"
)

// maxFlagged 每个文件最多记录的待复核商店序号
const maxFlagged = 20

// FileReport 单个文件的处理结果
type FileReport struct {
	Filename        string                `json:"filename"`
	Status          FileStatus            `json:"status"`
	KeyColumn       string                `json:"keyColumn,omitempty"`
	PreambleRows    int                   `json:"preambleRows"`
	TotalRows       int                   `json:"totalRows"`
	WrittenRows     int                   `json:"writtenRows"`
	Stores          int                   `json:"stores"`
	HeaderOnlyFiles int                   `json:"headerOnlyFiles"`
	Discards        map[DiscardReason]int `json:"discards,omitempty"`
	Flagged         []string              `json:"flagged,omitempty"`
	Error           string                `json:"error,omitempty"`
	Duration        time.Duration         `json:"duration"`
}

// NewFileReport 创建文件结果
func NewFileReport(filename string) FileReport {
	return FileReport{
		Filename: filename,
		Status:   FileProcessed,
		Discards: map[DiscardReason]int{},
	}
}

// Discard 记录一次丢弃
func (r *FileReport) Discard(reason DiscardReason) {
	if r.Discards == nil {
		r.Discards = map[DiscardReason]int{}
	}
	r.Discards[reason]++
}

// Flag 记录待复核的商店序号（去重，有上限）
func (r *FileReport) Flag(value string) {
	if len(r.Flagged) >= maxFlagged {
		return
	}
	for _, v := range r.Flagged {
		if v == value {
			return
		}
	}
	r.Flagged = append(r.Flagged, value)
}

// DiscardedRows 丢弃总数
func (r FileReport) DiscardedRows() int {
	total := 0
	for _, n := range r.Discards {
		total += n
	}
	return total
}

// RunReport 一次批处理的汇总
type RunReport struct {
	RunID           string        `json:"runId"`
	TotalFiles      int           `json:"totalFiles"`
	ProcessedFiles  int           `json:"processedFiles"`
	SkippedFiles    int           `json:"skippedFiles"`
	ErrorFiles      int           `json:"errorFiles"`
	TotalRows       int           `json:"totalRows"`
	WrittenRows     int           `json:"writtenRows"`
	DiscardedRows   int           `json:"discardedRows"`
	BackfilledFiles int           `json:"backfilledFiles"`
	Duration        time.Duration `json:"duration"`
	Files           []FileReport  `json:"files"`
}

// Add 汇总单个文件结果
func (r *RunReport) Add(fr FileReport) {
	r.TotalFiles++
	switch fr.Status {
	case FileProcessed:
		r.ProcessedFiles++
	case FileSkipped:
		r.SkippedFiles++
	case FileError:
		r.ErrorFiles++
	}
	r.TotalRows += fr.TotalRows
	r.WrittenRows += fr.WrittenRows
	r.DiscardedRows += fr.DiscardedRows()
	r.Files = append(r.Files, fr)
}

// SortedReasons 按名称排序的丢弃原因，便于稳定输出
func SortedReasons(discards map[DiscardReason]int) []DiscardReason {
	out := make([]DiscardReason, 0, len(discards))
	for reason := range discards {
		out = append(out, reason)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
