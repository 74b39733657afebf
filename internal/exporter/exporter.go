package exporter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/MakiDevelop/ting-data-etl/internal/csvio"
	"github.com/MakiDevelop/ting-data-etl/internal/layout"
)

// maxSheetName Excel 工作表名称长度上限
const maxSheetName = 31

var sheetNameReplacer = strings.NewReplacer(
	":", "_", `\`, "_", "/", "_", "?", "_", "*", "_", "[", "(", "]", ")",
)

// Exporter 分店工作簿导出器：每个分店一个 xlsx，每个 CSV 一个工作表
type Exporter struct {
	tree     layout.Tree
	encoding csvio.Encoding
	logger   *zap.Logger
}

// NewExporter 创建导出器
func NewExporter(tree layout.Tree, enc csvio.Encoding, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{tree: tree, encoding: enc, logger: logger}
}

// ExportOptions 导出选项
type ExportOptions struct {
	ExportDir string
	Stores    []string // 为空时导出全部商店
	Progress  func(ProgressEvent)
}

// Exported 一个已导出的工作簿
type Exported struct {
	Store  string
	Path   string
	Sheets int
}

// Export 导出工作簿到 {ExportDir}/{store}.xlsx
func (e *Exporter) Export(ctx context.Context, opts ExportOptions) ([]Exported, error) {
	stores := opts.Stores
	if len(stores) == 0 {
		all, err := e.tree.Stores()
		if err != nil {
			return nil, err
		}
		stores = all
	}
	if err := layout.EnsureDir(opts.ExportDir); err != nil {
		return nil, err
	}

	reportProgress(opts.Progress, 0, "开始导出")
	out := make([]Exported, 0, len(stores))
	for i, store := range stores {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if !layout.SafeName(store) {
			return out, fmt.Errorf("非法商店序号: %q", store)
		}
		exp, err := e.exportStore(store, opts.ExportDir)
		if err != nil {
			return out, err
		}
		out = append(out, exp)
		reportProgress(opts.Progress, (i+1)*100/len(stores), "已导出 "+store)
	}
	reportProgress(opts.Progress, 100, "导出完成")
	e.logger.Info("工作簿导出完成", zap.Int("stores", len(out)), zap.String("export_dir", opts.ExportDir))
	return out, nil
}

func (e *Exporter) exportStore(store, dir string) (Exported, error) {
	f, sheets, err := e.BuildWorkbook(store)
	if err != nil {
		return Exported{}, err
	}
	defer f.Close()

	target := filepath.Join(dir, store+".xlsx")
	tempPath := filepath.Join(dir, fmt.Sprintf(".%s_%s.xlsx", store, uuid.New().String()))
	if err := f.SaveAs(tempPath); err != nil {
		_ = os.Remove(tempPath)
		return Exported{}, fmt.Errorf("写入工作簿失败: %w", err)
	}
	if err := os.Rename(tempPath, target); err != nil {
		_ = os.Remove(tempPath)
		return Exported{}, err
	}
	e.logger.Debug("导出分店工作簿", zap.String("store", store), zap.Int("sheets", sheets), zap.String("path", target))
	return Exported{Store: store, Path: target, Sheets: sheets}, nil
}

// BuildWorkbook 构建某分店的工作簿；目录中没有 CSV 时保留一个空工作表
func (e *Exporter) BuildWorkbook(store string) (*excelize.File, int, error) {
	files, err := e.tree.StoreFiles(store)
	if err != nil {
		return nil, 0, fmt.Errorf("读取商店 %s 失败: %w", store, err)
	}

	f := excelize.NewFile()
	defaultSheet := f.GetSheetName(0)
	used := map[string]bool{}
	for i, name := range files {
		rows, err := csvio.ReadAll(e.tree.FilePath(store, name), e.encoding)
		if err != nil {
			_ = f.Close()
			return nil, 0, err
		}

		sheet := SheetName(name, used)
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, sheet); err != nil {
				_ = f.Close()
				return nil, 0, err
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			_ = f.Close()
			return nil, 0, err
		}
		if err := writeRows(f, sheet, rows); err != nil {
			_ = f.Close()
			return nil, 0, fmt.Errorf("写入工作表 %s 失败: %w", sheet, err)
		}
	}
	f.SetActiveSheet(0)
	return f, len(files), nil
}

func writeRows(f *excelize.File, sheet string, rows [][]string) error {
	for r, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, r+1)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(row))
		for i, v := range row {
			values[i] = v
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}
	return nil
}

// SheetName 由文件名生成合法且不重复的工作表名
func SheetName(filename string, used map[string]bool) string {
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	base = strings.Trim(sheetNameReplacer.Replace(base), "'")
	if base == "" {
		base = "Sheet"
	}
	name := truncateRunes(base, maxSheetName)
	for n := 2; used[strings.ToLower(name)]; n++ {
		suffix := fmt.Sprintf("~%d", n)
		name = truncateRunes(base, maxSheetName-len(suffix)) + suffix
	}
	used[strings.ToLower(name)] = true
	return name
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
