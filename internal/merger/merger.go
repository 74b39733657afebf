package merger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/MakiDevelop/ting-data-etl/internal/csvio"
	"github.com/MakiDevelop/ting-data-etl/internal/layout"
	"github.com/MakiDevelop/ting-data-etl/internal/parser"
)

// errEmptyGroup 一组分片全部为空，跳过不输出
var errEmptyGroup = errors.New("all chunks are empty")

// chunkPattern 分片文件名：「名稱.csv」「名稱(1).csv」「名稱 (2).csv」
var chunkPattern = regexp.MustCompile(`(?i)^(?P<base>.+?)(\((?P<idx>\d+)\))?\.csv$`)

// Chunk 一个分片
type Chunk struct {
	Index int
	Path  string
}

// Group 同名分片
type Group struct {
	Base   string
	Chunks []Chunk
}

// Result 一个合并结果
type Result struct {
	Base    string
	Output  string
	Files   int
	Rows    int
	Columns int
}

// Options 合并选项
type Options struct {
	InputDir  string
	OutputDir string
	Encoding  csvio.Encoding
}

// ParseChunkName 解析分片文件名，返回基础名与序号（无序号为 0）
func ParseChunkName(name string) (string, int, bool) {
	m := chunkPattern.FindStringSubmatch(name)
	if m == nil {
		return "", 0, false
	}
	base := strings.TrimSpace(m[chunkPattern.SubexpIndex("base")])
	if base == "" {
		return "", 0, false
	}
	idx := 0
	if s := m[chunkPattern.SubexpIndex("idx")]; s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return "", 0, false
		}
		idx = n
	}
	return base, idx, true
}

// Collect 递归收集分片并按基础名分组；组按名称排序，组内按序号排序
func Collect(dir string) ([]Group, error) {
	byBase := map[string][]Chunk{}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		base, idx, ok := ParseChunkName(d.Name())
		if !ok {
			return nil
		}
		byBase[base] = append(byBase[base], Chunk{Index: idx, Path: path})
		return nil
	})
	if err != nil {
		return nil, err
	}

	groups := make([]Group, 0, len(byBase))
	for base, chunks := range byBase {
		sort.SliceStable(chunks, func(i, j int) bool {
			if chunks[i].Index != chunks[j].Index {
				return chunks[i].Index < chunks[j].Index
			}
			return chunks[i].Path < chunks[j].Path
		})
		groups = append(groups, Group{Base: base, Chunks: chunks})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Base < groups[j].Base })
	return groups, nil
}

// Run 合并输入目录下的所有分片到 {output}/{base}.csv
func Run(ctx context.Context, opts Options, logger *zap.Logger) ([]Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	info, err := os.Stat(opts.InputDir)
	if err != nil {
		return nil, fmt.Errorf("输入目录不存在: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s 不是目录", opts.InputDir)
	}
	if err := layout.EnsureDir(opts.OutputDir); err != nil {
		return nil, err
	}

	groups, err := Collect(opts.InputDir)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(groups))
	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := mergeGroup(g, opts)
		if errors.Is(err, errEmptyGroup) {
			logger.Warn("分片全部为空，跳过", zap.String("base", g.Base), zap.Int("files", len(g.Chunks)))
			continue
		}
		if err != nil {
			return results, fmt.Errorf("合并 %s 失败: %w", g.Base, err)
		}
		logger.Info("合并完成",
			zap.String("base", g.Base),
			zap.Int("files", res.Files),
			zap.Int("rows", res.Rows),
			zap.String("output", res.Output),
		)
		results = append(results, res)
	}
	return results, nil
}

// mergeGroup 以首行为表头拼接；后续分片出现的新列追加到末尾，缺失单元格留空
func mergeGroup(g Group, opts Options) (Result, error) {
	res := Result{Base: g.Base, Output: filepath.Join(opts.OutputDir, g.Base+".csv"), Files: len(g.Chunks)}

	var header []string
	index := map[string]int{}
	var rows [][]string
	for _, chunk := range g.Chunks {
		records, err := csvio.ReadAll(chunk.Path, opts.Encoding)
		if err != nil {
			return res, err
		}
		if len(records) == 0 {
			continue
		}
		mapping := make([]int, len(records[0]))
		for i, col := range records[0] {
			key := parser.NormalizeColumnName(col)
			pos, ok := index[key]
			if !ok {
				pos = len(header)
				index[key] = pos
				header = append(header, key)
			}
			mapping[i] = pos
		}
		for _, record := range records[1:] {
			row := make([]string, len(header))
			for i, v := range record {
				if i < len(mapping) {
					row[mapping[i]] = v
				}
			}
			rows = append(rows, row)
		}
	}

	for i, row := range rows {
		if len(row) < len(header) {
			padded := make([]string, len(header))
			copy(padded, row)
			rows[i] = padded
		}
	}
	if header == nil {
		return res, errEmptyGroup
	}
	res.Rows = len(rows)
	res.Columns = len(header)
	return res, csvio.WriteFile(res.Output, opts.Encoding, [][]string{header}, rows)
}

// WriteSummary 输出合并摘要
func WriteSummary(w io.Writer, results []Result) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No chunked CSV files found.")
		return
	}
	for _, res := range results {
		fmt.Fprintf(w, "Merged %d files -> %s\n", res.Files, filepath.Base(res.Output))
	}
}
