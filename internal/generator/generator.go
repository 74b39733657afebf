package generator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"go.uber.org/zap"

	"github.com/MakiDevelop/ting-data-etl/internal/csvio"
	"github.com/MakiDevelop/ting-data-etl/internal/layout"
)

// 列类型
const (
	TypeString = "string"
	TypeInt    = "int"
	TypeFloat  = "float"
	TypeDate   = "date"
	TypeBool   = "bool"
)

var columnTypes = []string{TypeString, TypeInt, TypeFloat, TypeDate, TypeBool}

var (
	dateStart = time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	dateEnd   = time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
)

// Options 测试数据生成选项
type Options struct {
	OutputDir    string
	CSVCount     int
	StoreCount   int
	MinRows      int
	MaxRows      int
	MinCols      int // 含商店序号列
	MaxCols      int
	PreambleRows int
	Seed         int64 // 0 表示随机
	StoreColumn  string
	Encoding     csvio.Encoding
}

// DefaultOptions 默认选项
func DefaultOptions() Options {
	return Options{
		OutputDir:   "generated_data",
		CSVCount:    60,
		StoreCount:  150,
		MinRows:     1000,
		MaxRows:     10000,
		MinCols:     3,
		MaxCols:     10,
		StoreColumn: "商店序號",
		Encoding:    csvio.UTF8,
	}
}

// Validate 校验选项
func (o Options) Validate() error {
	switch {
	case o.CSVCount < 0:
		return errors.New("csv-count must be >= 0")
	case o.StoreCount <= 0:
		return errors.New("store-count must be > 0")
	case o.MinRows < 0:
		return errors.New("min-rows must be >= 0")
	case o.MinRows > o.MaxRows:
		return errors.New("min-rows must be <= max-rows")
	case o.MinCols < 2:
		return errors.New("min-cols must be >= 2 (including the store id column)")
	case o.MinCols > o.MaxCols:
		return errors.New("min-cols must be <= max-cols")
	case o.PreambleRows < 0:
		return errors.New("preamble-rows must be >= 0")
	case o.StoreColumn == "":
		return errors.New("store column is required")
	}
	return nil
}

// File 生成的文件
type File struct {
	Path    string
	Rows    int
	Columns []string
}

// Generator 测试数据生成器
type Generator struct {
	opts   Options
	faker  *gofakeit.Faker
	stores []string
	logger *zap.Logger
}

// New 创建生成器
func New(opts Options, logger *zap.Logger) (*Generator, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		opts:   opts,
		faker:  gofakeit.New(opts.Seed),
		stores: StoreIDs(opts.StoreCount),
		logger: logger,
	}, nil
}

// StoreIDs 纯数字商店序号，分发的严格模式可以直接接受
func StoreIDs(count int) []string {
	ids := make([]string, count)
	for i := range ids {
		ids[i] = strconv.Itoa(10001 + i)
	}
	return ids
}

// Run 生成 data_NN.csv
func (g *Generator) Run(ctx context.Context) ([]File, error) {
	if err := layout.EnsureDir(g.opts.OutputDir); err != nil {
		return nil, err
	}
	files := make([]File, 0, g.opts.CSVCount)
	for i := 1; i <= g.opts.CSVCount; i++ {
		if err := ctx.Err(); err != nil {
			return files, err
		}
		f, err := g.writeFile(filepath.Join(g.opts.OutputDir, fmt.Sprintf("data_%02d.csv", i)))
		if err != nil {
			return files, err
		}
		g.logger.Debug("生成文件", zap.String("file", f.Path), zap.Int("rows", f.Rows), zap.Int("columns", len(f.Columns)))
		files = append(files, f)
	}
	g.logger.Info("测试数据生成完成", zap.Int("files", len(files)), zap.String("output_dir", g.opts.OutputDir))
	return files, nil
}

func (g *Generator) writeFile(path string) (File, error) {
	columns, types := g.schema()
	rows := g.faker.Number(g.opts.MinRows, g.opts.MaxRows)

	preamble := make([][]string, 0, g.opts.PreambleRows+1)
	for i := 0; i < g.opts.PreambleRows; i++ {
		preamble = append(preamble, []string{g.faker.Company() + " " + g.faker.Word()})
	}
	preamble = append(preamble, columns)

	data := make([][]string, rows)
	for r := range data {
		row := make([]string, len(columns))
		row[0] = g.stores[g.faker.Number(0, len(g.stores)-1)]
		for c := 1; c < len(columns); c++ {
			row[c] = g.value(types[c])
		}
		data[r] = row
	}

	if err := csvio.WriteFile(path, g.opts.Encoding, preamble, data); err != nil {
		return File{}, fmt.Errorf("写入 %s 失败: %w", path, err)
	}
	return File{Path: path, Rows: rows, Columns: columns}, nil
}

// schema 商店序号列 + 随机命名的 col_NNNN 列
func (g *Generator) schema() ([]string, []string) {
	count := g.faker.Number(g.opts.MinCols, g.opts.MaxCols)
	used := map[string]bool{g.opts.StoreColumn: true}
	columns := []string{g.opts.StoreColumn}
	types := []string{TypeString}
	for len(columns) < count {
		name := fmt.Sprintf("col_%d", g.faker.Number(1000, 9999))
		if used[name] {
			continue
		}
		used[name] = true
		columns = append(columns, name)
		types = append(types, g.faker.RandomString(columnTypes))
	}
	return columns, types
}

func (g *Generator) value(kind string) string {
	switch kind {
	case TypeString:
		return fmt.Sprintf("val_%d", g.faker.Number(10000, 99999))
	case TypeInt:
		return strconv.Itoa(g.faker.Number(-100000, 100000))
	case TypeFloat:
		return strconv.FormatFloat(g.faker.Float64Range(-10000, 10000), 'f', 4, 64)
	case TypeDate:
		return g.faker.DateRange(dateStart, dateEnd).Format("2006-01-02")
	case TypeBool:
		return strconv.FormatBool(g.faker.Bool())
	}
	return ""
}
