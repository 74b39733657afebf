package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"

	"github.com/MakiDevelop/ting-data-etl/internal/csvio"
	"github.com/MakiDevelop/ting-data-etl/internal/layout"
	"github.com/MakiDevelop/ting-data-etl/internal/model"
	"github.com/MakiDevelop/ting-data-etl/internal/parser"
)

// Table 一个源文件的内容（全部按字符串读取）
type Table struct {
	Origin    string
	Header    []string
	Rows      [][]string
	Malformed int

	resolver *parser.Resolver
}

// Column 按逻辑字段或列名定位列
func (t *Table) Column(field string) (int, error) {
	idx, err := t.resolver.Resolve(t.Header, field)
	if err != nil {
		return -1, fmt.Errorf("%s: %w", t.Origin, err)
	}
	return idx, nil
}

// Columns 批量定位列
func (t *Table) Columns(fields ...string) ([]int, error) {
	out := make([]int, len(fields))
	for i, field := range fields {
		idx, err := t.Column(field)
		if err != nil {
			return nil, err
		}
		out[i] = idx
	}
	return out, nil
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// Loader 读取报表源文件
type Loader struct {
	RawDir         string         // 原始导出目录（input/aggregate）
	SourceTree     *layout.Tree   // 设置后原始源改为从该目录树的分店文件读取（ting-test）
	OutputTree     layout.Tree    // 链式报表从这里读取之前的输出
	Encoding       csvio.Encoding // 原始源与分发结果的编码
	ReportEncoding csvio.Encoding // 之前输出的报表的编码；为空时同 Encoding
	Resolver       *parser.Resolver
}

// Load 读取一个源
func (l *Loader) Load(ctx context.Context, src Source) (*Table, error) {
	switch {
	case src.Kind == SourceReport:
		enc := l.ReportEncoding
		if enc.Name == "" {
			enc = l.Encoding
		}
		return l.loadTree(ctx, l.OutputTree, src.File, enc)
	case l.SourceTree != nil:
		return l.loadTree(ctx, *l.SourceTree, src.File, l.Encoding)
	default:
		return l.loadFile(filepath.Join(l.RawDir, src.File), l.Encoding)
	}
}

// loadFile 读取单个文件；表头按商店序号别名定位，允许前置说明行
func (l *Loader) loadFile(path string, enc csvio.Encoding) (*Table, error) {
	if !layout.FileExists(path) {
		return nil, fmt.Errorf("%w: %s", ErrMissingSource, path)
	}
	r, err := csvio.Open(path, enc)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	header, err := parser.LocateHeader(r, l.Resolver.Aliases(parser.FieldStoreID))
	if errors.Is(err, parser.ErrHeaderNotFound) {
		return nil, fmt.Errorf("%s: %w: %s", path, parser.ErrColumnNotFound, parser.FieldStoreID)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	t := &Table{Origin: path, Header: header.Row, resolver: l.Resolver}
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if csvio.IsParseError(err) {
				t.Malformed++
				continue
			}
			return nil, fmt.Errorf("读取 %s 失败: %w", path, err)
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// loadTree 把目录树中各分店的同名文件合并成一张表
// 列按名称对齐到第一个文件的表头，后出现的新列追加在末尾
func (l *Loader) loadTree(ctx context.Context, tree layout.Tree, name string, enc csvio.Encoding) (*Table, error) {
	stores, err := tree.Stores()
	if err != nil {
		return nil, err
	}

	merged := &Table{Origin: filepath.Join(tree.Root, "*", name), resolver: l.Resolver}
	index := map[string]int{}
	found := 0
	for _, store := range stores {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := tree.FilePath(store, name)
		if !layout.FileExists(path) {
			continue
		}
		t, err := l.loadFile(path, enc)
		if err != nil {
			return nil, err
		}
		found++
		merged.Malformed += t.Malformed

		mapping := make([]int, len(t.Header))
		for i, col := range t.Header {
			key := parser.NormalizeColumnName(col)
			pos, ok := index[key]
			if !ok {
				pos = len(merged.Header)
				index[key] = pos
				merged.Header = append(merged.Header, key)
			}
			mapping[i] = pos
		}
		for _, row := range t.Rows {
			out := make([]string, len(merged.Header))
			for i, v := range row {
				if i < len(mapping) {
					out[mapping[i]] = v
				}
			}
			merged.Rows = append(merged.Rows, out)
		}
	}
	if found == 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingSource, merged.Origin)
	}
	return merged, nil
}

// inputs 一次报表运行的输入上下文
type inputs struct {
	ctx      context.Context
	loader   *Loader
	policy   parser.IDPolicy
	sources  map[string]Source
	tables   map[string]*Table
	discards map[model.DiscardReason]int
}

func newInputs(ctx context.Context, loader *Loader, policy parser.IDPolicy, sources []Source) *inputs {
	in := &inputs{
		ctx:      ctx,
		loader:   loader,
		policy:   policy,
		sources:  map[string]Source{},
		tables:   map[string]*Table{},
		discards: map[model.DiscardReason]int{},
	}
	for _, src := range sources {
		in.sources[src.Name] = src
	}
	return in
}

// table 按源名称取表，只读取一次
func (in *inputs) table(name string) (*Table, error) {
	if t, ok := in.tables[name]; ok {
		return t, nil
	}
	src, ok := in.sources[name]
	if !ok {
		return nil, fmt.Errorf("%w: source %s is not declared", ErrInvalidReport, name)
	}
	t, err := in.loader.Load(in.ctx, src)
	if err != nil {
		return nil, err
	}
	if t.Malformed > 0 {
		in.discards[model.DiscardMalformed] += t.Malformed
	}
	in.tables[name] = t
	return t, nil
}

// each 遍历商店序号合法的行，不合法的行计入丢弃统计
func (in *inputs) each(t *Table, fn func(store string, row []string)) error {
	idx, err := t.Column(parser.FieldStoreID)
	if err != nil {
		return err
	}
	for _, row := range t.Rows {
		store, reason := in.policy.CheckRow(row, idx)
		if reason != "" {
			in.discards[reason]++
			continue
		}
		fn(store, row)
	}
	return in.ctx.Err()
}

// output 按商店分组的结果行
type output struct {
	rows map[string][][]string
}

func newOutput() *output {
	return &output{rows: map[string][][]string{}}
}

func (o *output) add(store string, row []string) {
	o.rows[store] = append(o.rows[store], row)
}

func (o *output) stores() []string {
	out := make([]string, 0, len(o.rows))
	for store := range o.rows {
		out = append(out, store)
	}
	sort.Strings(out)
	return out
}
