package report

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/MakiDevelop/ting-data-etl/internal/csvio"
	"github.com/MakiDevelop/ting-data-etl/internal/layout"
	"github.com/MakiDevelop/ting-data-etl/internal/model"
	"github.com/MakiDevelop/ting-data-etl/internal/parser"
)

// EngineOptions 报表引擎选项
type EngineOptions struct {
	Registry       *Registry
	RawDir         string // 原始导出目录
	SourceDir      string // 非空时原始源从该目录树的分店文件读取（ting-test）
	OutputDir      string // 报表写入的目录树
	Encoding       csvio.Encoding
	ReportEncoding csvio.Encoding
	Aliases        parser.AliasTable
	Policy         parser.IDPolicy
	ExcludeDirs    []string
}

// Result 一次报表运行的结果
type Result struct {
	Key        string                      `json:"key"`
	OutputFile string                      `json:"outputFile"`
	Stores     int                         `json:"stores"`     // 有数据的商店数
	HeaderOnly int                         `json:"headerOnly"` // 只写表头的商店数
	Discards   map[model.DiscardReason]int `json:"discards,omitempty"`
	Duration   time.Duration               `json:"duration"`
}

// Engine 报表引擎
type Engine struct {
	registry *Registry
	loader   *Loader
	policy   parser.IDPolicy
	target   layout.Tree
	source   *layout.Tree
	encoding csvio.Encoding
	logger   *zap.Logger
}

// NewEngine 创建报表引擎
func NewEngine(opts EngineOptions, logger *zap.Logger) (*Engine, error) {
	if opts.Registry == nil {
		return nil, errors.New("registry is required")
	}
	if opts.OutputDir == "" {
		return nil, errors.New("output dir is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Encoding.Name == "" {
		opts.Encoding = csvio.UTF8
	}
	if opts.ReportEncoding.Name == "" {
		opts.ReportEncoding = csvio.UTF8BOM
	}

	target := layout.NewTree(opts.OutputDir, opts.ExcludeDirs...)
	e := &Engine{
		registry: opts.Registry,
		policy:   opts.Policy,
		target:   target,
		encoding: opts.ReportEncoding,
		logger:   logger,
		loader: &Loader{
			RawDir:         opts.RawDir,
			OutputTree:     target,
			Encoding:       opts.Encoding,
			ReportEncoding: opts.ReportEncoding,
			Resolver:       parser.NewResolver(opts.Aliases),
		},
	}
	if opts.SourceDir != "" {
		source := layout.NewTree(opts.SourceDir, opts.ExcludeDirs...)
		e.source = &source
		e.loader.SourceTree = &source
	}
	return e, nil
}

// Run 运行一个报表：读取源、计算、按商店写出；已知但无数据的商店写只有表头的文件
func (e *Engine) Run(ctx context.Context, key string) (*Result, error) {
	start := time.Now()
	rep, err := e.registry.Lookup(key)
	if err != nil {
		return nil, err
	}
	e.logger.Info("开始生成报表",
		zap.String("key", key),
		zap.String("kind", string(rep.Kind())),
		zap.String("output_dir", e.target.Root),
	)

	in := newInputs(ctx, e.loader, e.policy, rep.Sources())
	out, err := rep.build(in)
	if err != nil {
		return nil, fmt.Errorf("报表 %s: %w", key, err)
	}

	universe, err := e.universe(out)
	if err != nil {
		return nil, err
	}

	result := &Result{Key: key, OutputFile: rep.OutputFile(), Discards: in.discards}
	header := [][]string{rep.Columns()}
	for _, store := range universe {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, err := e.target.EnsureStore(store); err != nil {
			return nil, err
		}
		rows := out.rows[store]
		path := e.target.FilePath(store, rep.OutputFile())
		if err := csvio.WriteFile(path, e.encoding, header, rows); err != nil {
			return nil, fmt.Errorf("写入 %s 失败: %w", path, err)
		}
		if len(rows) == 0 {
			result.HeaderOnly++
		} else {
			result.Stores++
		}
	}
	result.Duration = time.Since(start)

	fields := []zap.Field{
		zap.String("key", key),
		zap.Int("stores", result.Stores),
		zap.Int("header_only", result.HeaderOnly),
		zap.Duration("duration", result.Duration),
	}
	for _, reason := range model.SortedReasons(result.Discards) {
		fields = append(fields, zap.Int("discard_"+string(reason), result.Discards[reason]))
	}
	e.logger.Info("报表完成", fields...)
	return result, nil
}

// universe 商店全集：目标目录树已有的商店 + 源目录树的商店 + 本次结果中的商店
func (e *Engine) universe(out *output) ([]string, error) {
	set := map[string]bool{}
	stores, err := e.target.Stores()
	if err != nil {
		return nil, err
	}
	for _, s := range stores {
		set[s] = true
	}
	if e.source != nil {
		stores, err := e.source.Stores()
		if err != nil {
			return nil, err
		}
		for _, s := range stores {
			set[s] = true
		}
	}
	for _, s := range out.stores() {
		set[s] = true
	}

	list := make([]string, 0, len(set))
	for s := range set {
		if layout.SafeName(s) {
			list = append(list, s)
		}
	}
	sort.Strings(list)
	return list, nil
}

// Registry 引擎使用的报表集合
func (e *Engine) Registry() *Registry {
	return e.registry
}
