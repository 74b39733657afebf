package verify

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/MakiDevelop/ting-data-etl/internal/csvio"
	"github.com/MakiDevelop/ting-data-etl/internal/layout"
	"github.com/MakiDevelop/ting-data-etl/internal/parser"
)

// maxRowsPerFile 每个文件最多列出的违规行
const maxRowsPerFile = 5

// missingHeaderValue 找不到表头时记录的值
const missingHeaderValue = "<missing 商店序號 header>"

// Violation 一条违规记录
type Violation struct {
	Line  int    `json:"line"`
	Value string `json:"value"`
}

// FileViolations 单个文件的违规
type FileViolations struct {
	Store string      `json:"store"`
	File  string      `json:"file"`
	Rows  []Violation `json:"rows"`
	Total int         `json:"total"`
}

// ContentReport 内容校验结果
type ContentReport struct {
	CheckedFiles    int              `json:"checkedFiles"`
	ViolatedFiles   int              `json:"violatedFiles"`
	TotalViolations int              `json:"totalViolations"`
	Violations      []FileViolations `json:"violations"`
}

// Failed 是否存在违规
func (r *ContentReport) Failed() bool {
	return r.TotalViolations > 0
}

// ContentChecker 校验每个分店文件中的商店序号都等于所在目录名
type ContentChecker struct {
	Tree     layout.Tree
	Encoding csvio.Encoding
	Aliases  []string // 与分发使用同一组商店序号别名
	Logger   *zap.Logger
}

// Check 遍历所有商店目录下的 CSV
func (c *ContentChecker) Check(ctx context.Context) (*ContentReport, error) {
	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	stores, err := c.Tree.Stores()
	if err != nil {
		return nil, fmt.Errorf("读取输出目录失败: %w", err)
	}

	report := &ContentReport{}
	for _, store := range stores {
		files, err := c.Tree.StoreFiles(store)
		if err != nil {
			return nil, err
		}
		for _, name := range files {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			report.CheckedFiles++
			fv, err := c.checkFile(store, name)
			if err != nil {
				return nil, err
			}
			if fv.Total == 0 {
				continue
			}
			report.ViolatedFiles++
			report.TotalViolations += fv.Total
			report.Violations = append(report.Violations, fv)
			logger.Debug("发现违规行", zap.String("store", store), zap.String("file", name), zap.Int("count", fv.Total))
		}
	}
	return report, nil
}

func (c *ContentChecker) checkFile(store, name string) (FileViolations, error) {
	fv := FileViolations{Store: store, File: name}
	path := c.Tree.FilePath(store, name)

	r, err := csvio.Open(path, c.Encoding)
	if err != nil {
		return fv, err
	}
	defer r.Close()

	header, err := parser.LocateHeader(r, c.Aliases)
	if errors.Is(err, parser.ErrHeaderNotFound) {
		fv.Rows = append(fv.Rows, Violation{Line: 1, Value: missingHeaderValue})
		fv.Total = 1
		return fv, nil
	}
	if err != nil {
		return fv, fmt.Errorf("%s: %w", path, err)
	}

	line := header.Line
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			if csvio.IsParseError(err) {
				fv.add(line, "<malformed row>")
				continue
			}
			return fv, fmt.Errorf("读取 %s 失败: %w", path, err)
		}
		actual := ""
		if header.KeyIndex < len(row) {
			actual = row[header.KeyIndex]
		}
		if parser.NormalizeStoreID(actual) != store {
			fv.add(line, actual)
		}
	}
	return fv, nil
}

func (fv *FileViolations) add(line int, value string) {
	fv.Total++
	if len(fv.Rows) < maxRowsPerFile {
		fv.Rows = append(fv.Rows, Violation{Line: line, Value: value})
	}
}

// Write 输出文本报告
func (r *ContentReport) Write(w io.Writer) {
	fmt.Fprintln(w, "== Content Check ==")
	fmt.Fprintf(w, "checked files: %d\n", r.CheckedFiles)
	fmt.Fprintf(w, "violated files: %d\n", r.ViolatedFiles)
	fmt.Fprintf(w, "violation rows (total): %d\n", r.TotalViolations)
	if len(r.Violations) == 0 {
		return
	}
	fmt.Fprintf(w, "-- Violations (up to %d rows per file) --\n", maxRowsPerFile)
	for _, fv := range r.Violations {
		for _, v := range fv.Rows {
			fmt.Fprintf(w, "%s/%s line %d: 商店序號=%s\n", fv.Store, fv.File, v.Line, v.Value)
		}
	}
}
