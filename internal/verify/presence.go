package verify

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/MakiDevelop/ting-data-etl/internal/csvio"
	"github.com/MakiDevelop/ting-data-etl/internal/layout"
	"github.com/MakiDevelop/ting-data-etl/internal/parser"
)

// PresenceStatus 某个源文件中某商店的数据情况
type PresenceStatus string

const (
	PresenceRows          PresenceStatus = "rows"
	PresenceNone          PresenceStatus = "none"
	PresenceMissingFile   PresenceStatus = "missing_file"
	PresenceMissingColumn PresenceStatus = "missing_column"
	PresenceReadError     PresenceStatus = "read_error"
)

// PresenceSource 待检查的源文件
type PresenceSource struct {
	Label string
	File  string
}

// PresenceEntry 检查结果
type PresenceEntry struct {
	Label  string         `json:"label"`
	File   string         `json:"file"`
	Status PresenceStatus `json:"status"`
	Rows   int            `json:"rows"`
	Error  string         `json:"error,omitempty"`
}

// CheckPresence 逐个源文件统计某商店的行数，纯诊断，不返回错误
func CheckPresence(dir string, enc csvio.Encoding, aliases []string, sources []PresenceSource, store string) []PresenceEntry {
	want := parser.NormalizeStoreID(store)
	out := make([]PresenceEntry, 0, len(sources))
	for _, src := range sources {
		entry := PresenceEntry{Label: src.Label, File: src.File}
		path := filepath.Join(dir, src.File)
		if !layout.FileExists(path) {
			entry.Status = PresenceMissingFile
			out = append(out, entry)
			continue
		}
		n, err := countStoreRows(path, enc, aliases, want)
		switch {
		case errors.Is(err, parser.ErrHeaderNotFound):
			entry.Status = PresenceMissingColumn
		case err != nil:
			entry.Status = PresenceReadError
			entry.Error = err.Error()
		case n > 0:
			entry.Status = PresenceRows
			entry.Rows = n
		default:
			entry.Status = PresenceNone
		}
		out = append(out, entry)
	}
	return out
}

func countStoreRows(path string, enc csvio.Encoding, aliases []string, store string) (int, error) {
	r, err := csvio.Open(path, enc)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	header, err := parser.LocateHeader(r, aliases)
	if err != nil {
		return 0, err
	}
	n := 0
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			if csvio.IsParseError(err) {
				continue
			}
			return n, err
		}
		if header.KeyIndex < len(row) && parser.NormalizeStoreID(row[header.KeyIndex]) == store {
			n++
		}
	}
}

// WritePresence 输出文本报告
func WritePresence(w io.Writer, store string, entries []PresenceEntry) {
	fmt.Fprintf(w, "\n檢查商店序號：%s\n\n", store)
	for _, e := range entries {
		switch e.Status {
		case PresenceRows:
			fmt.Fprintf(w, "[OK] %s：有資料（%d 列）\n", e.Label, e.Rows)
		case PresenceNone:
			fmt.Fprintf(w, "[NONE] %s：沒有任何資料\n", e.Label)
		case PresenceMissingFile:
			fmt.Fprintf(w, "[MISSING] %s：找不到檔案 %s\n", e.Label, e.File)
		case PresenceMissingColumn:
			fmt.Fprintf(w, "[WARN] %s：找不到欄位 %s\n", e.Label, parser.FieldStoreID)
		default:
			fmt.Fprintf(w, "[ERROR] %s：讀取失敗 (%s)\n", e.Label, e.Error)
		}
	}
	fmt.Fprintln(w, "\n--- 檢查完成 ---")
}
