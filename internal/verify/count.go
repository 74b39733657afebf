package verify

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/MakiDevelop/ting-data-etl/internal/layout"
)

// DirCount 超出上限的目录
type DirCount struct {
	Path  string `json:"path"`
	Files int    `json:"files"`
}

// CountReport 文件数校验结果
type CountReport struct {
	Limit    int        `json:"limit"`
	Exceeded []DirCount `json:"exceeded"`
}

// Failed 是否有目录超出上限
func (r *CountReport) Failed() bool {
	return len(r.Exceeded) > 0
}

// CheckFileCount 递归检查 root 下每个目录直接包含的文件数（不含 root 本身）
func CheckFileCount(root string, limit int) (*CountReport, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("输入目录不存在: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s 不是目录", root)
	}

	report := &CountReport{Limit: limit}
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() || path == root {
			return nil
		}
		n, err := layout.CountFiles(path)
		if err != nil {
			return err
		}
		if n > limit {
			report.Exceeded = append(report.Exceeded, DirCount{Path: path, Files: n})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// Write 输出文本报告
func (r *CountReport) Write(w io.Writer) {
	for _, dc := range r.Exceeded {
		fmt.Fprintf(w, "%s exceeded limit\n", dc.Path)
	}
	if r.Failed() {
		fmt.Fprintf(w, "\nVerification failed: %d store(s) exceeded limit.\n", len(r.Exceeded))
		return
	}
	fmt.Fprintln(w, "Verification passed: all store directories are within file count limit.")
}
