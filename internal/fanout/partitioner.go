package fanout

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MakiDevelop/ting-data-etl/internal/csvio"
	"github.com/MakiDevelop/ting-data-etl/internal/layout"
	"github.com/MakiDevelop/ting-data-etl/internal/model"
	"github.com/MakiDevelop/ting-data-etl/internal/parser"
)

// WriteMode 重跑时的写入策略
type WriteMode string

const (
	// WriteAppend 一直追加；未清空输出目录就重跑会产生重复行
	WriteAppend WriteMode = "append"
	// WriteTruncate 本次运行中第一次写某个分店文件时先截断，重跑结果一致
	WriteTruncate WriteMode = "truncate"
)

// ParseWriteMode 解析写入策略
func ParseWriteMode(s string) (WriteMode, error) {
	switch WriteMode(s) {
	case WriteAppend, "":
		return WriteAppend, nil
	case WriteTruncate:
		return WriteTruncate, nil
	}
	return "", fmt.Errorf("unknown write mode %q", s)
}

// Options 分发选项
type Options struct {
	InputDir     string
	OutputDir    string
	Encoding     csvio.Encoding
	Aliases      []string // 商店序号列别名，按优先级
	Policy       parser.IDPolicy
	WriteMode    WriteMode
	MaxOpenFiles int
	ExcludeDirs  []string
}

// Partitioner 按商店序号把输入 CSV 拆分到 {output}/{storeId}/{filename}
type Partitioner struct {
	opts   Options
	tree   layout.Tree
	logger *zap.Logger

	// 本次运行已写过的输出文件（truncate 模式据此决定是否截断）
	touched map[string]bool
}

// processedFile 已成功处理的输入文件，用于最后补齐只有表头的文件
type processedFile struct {
	name   string
	header *parser.Header
}

// New 创建分发器
func New(opts Options, logger *zap.Logger) (*Partitioner, error) {
	if opts.InputDir == "" || opts.OutputDir == "" {
		return nil, errors.New("input dir and output dir are required")
	}
	if len(opts.Aliases) == 0 {
		return nil, errors.New("at least one store id alias is required")
	}
	if opts.WriteMode == "" {
		opts.WriteMode = WriteAppend
	}
	if opts.MaxOpenFiles <= 0 {
		opts.MaxOpenFiles = 128
	}
	if opts.Encoding.Name == "" {
		opts.Encoding = csvio.UTF8
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Partitioner{
		opts:    opts,
		tree:    layout.NewTree(opts.OutputDir, opts.ExcludeDirs...),
		logger:  logger,
		touched: map[string]bool{},
	}, nil
}

// Run 处理输入目录下的所有 CSV
func (p *Partitioner) Run(ctx context.Context) (*model.RunReport, error) {
	start := time.Now()
	report := &model.RunReport{RunID: uuid.New().String()}

	names, err := layout.ListCSV(p.opts.InputDir)
	if err != nil {
		return nil, fmt.Errorf("读取输入目录失败: %w", err)
	}
	if err := layout.EnsureDir(p.opts.OutputDir); err != nil {
		return nil, fmt.Errorf("创建输出目录失败: %w", err)
	}

	p.logger.Info("开始分发",
		zap.String("run_id", report.RunID),
		zap.String("input_dir", p.opts.InputDir),
		zap.String("output_dir", p.opts.OutputDir),
		zap.Int("files", len(names)),
		zap.String("write_mode", string(p.opts.WriteMode)),
	)

	var processed []processedFile
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		fr, header, err := p.PartitionFile(ctx, filepath.Join(p.opts.InputDir, name))
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return report, ctxErr
			}
			fr.Status = model.FileError
			fr.Error = err.Error()
			p.logger.Error("处理文件失败", zap.String("file", name), zap.Error(err))
		}
		if header != nil {
			processed = append(processed, processedFile{name: name, header: header})
		}
		report.Add(fr)
	}

	backfilled, err := p.backfill(processed)
	if err != nil {
		return report, err
	}
	report.BackfilledFiles = backfilled
	report.Duration = time.Since(start)

	p.logger.Info("分发完成",
		zap.String("run_id", report.RunID),
		zap.Int("processed", report.ProcessedFiles),
		zap.Int("skipped", report.SkippedFiles),
		zap.Int("errors", report.ErrorFiles),
		zap.Int("written_rows", report.WrittenRows),
		zap.Int("discarded_rows", report.DiscardedRows),
		zap.Int("backfilled_files", backfilled),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

// PartitionFile 单次扫描一个输入文件；找不到表头时返回 skipped 结果而不是错误
func (p *Partitioner) PartitionFile(ctx context.Context, path string) (fr model.FileReport, header *parser.Header, err error) {
	start := time.Now()
	name := filepath.Base(path)
	fr = model.NewFileReport(name)
	defer func() { fr.Duration = time.Since(start) }()

	p.logger.Info("处理文件", zap.String("file", path))

	reader, err := csvio.Open(path, p.opts.Encoding)
	if err != nil {
		return fr, nil, err
	}
	defer reader.Close()

	header, err = parser.LocateHeader(reader, p.opts.Aliases)
	if errors.Is(err, parser.ErrHeaderNotFound) {
		fr.Status = model.FileSkipped
		fr.Error = err.Error()
		p.logger.Warn("缺少商店序号表头，跳过", zap.String("file", path), zap.Strings("aliases", p.opts.Aliases))
		return fr, nil, nil
	}
	if err != nil {
		return fr, nil, err
	}
	fr.KeyColumn = header.KeyName
	fr.PreambleRows = len(header.Preamble)

	writers := newWriterCache(p.opts.MaxOpenFiles)
	defer writers.closeAll()

	seen := map[string]bool{}
	for {
		if err := ctx.Err(); err != nil {
			return fr, header, err
		}
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if csvio.IsParseError(err) {
				fr.TotalRows++
				fr.Discard(model.DiscardMalformed)
				continue
			}
			return fr, header, err
		}
		fr.TotalRows++

		storeID, reason := p.opts.Policy.CheckRow(row, header.KeyIndex)
		if reason != "" {
			fr.Discard(reason)
			if reason == model.DiscardNonNumericID || reason == model.DiscardUnsafeID {
				fr.Flag(storeID)
			}
			continue
		}

		w, err := p.writerFor(writers, storeID, name, header)
		if err != nil {
			return fr, header, err
		}
		if err := w.Write(row); err != nil {
			return fr, header, fmt.Errorf("写入 %s/%s 失败: %w", storeID, name, err)
		}
		seen[storeID] = true
		fr.WrittenRows++
	}

	if err := writers.closeAll(); err != nil {
		return fr, header, err
	}
	fr.Stores = len(seen)

	if len(fr.Flagged) > 0 {
		p.logger.Warn("存在非数字或不能作为目录名的商店序号，已丢弃，请复核",
			zap.String("file", name),
			zap.Strings("values", fr.Flagged),
		)
	}

	// 已存在但本文件没有数据的商店，补一个只有表头的文件
	stores, err := p.tree.Stores()
	if err != nil {
		return fr, header, err
	}
	for _, storeID := range stores {
		if seen[storeID] {
			continue
		}
		created, err := p.writeHeaderOnly(storeID, name, header)
		if err != nil {
			return fr, header, err
		}
		if created {
			fr.HeaderOnlyFiles++
		}
	}

	p.logger.Debug("文件完成",
		zap.String("file", name),
		zap.Int("rows", fr.TotalRows),
		zap.Int("written", fr.WrittenRows),
		zap.Int("stores", fr.Stores),
		zap.Int("header_only", fr.HeaderOnlyFiles),
		zap.Int("discarded", fr.DiscardedRows()),
	)
	return fr, header, nil
}

// writerFor 取得（必要时打开）某商店的输出文件；新文件先写说明行与表头
func (p *Partitioner) writerFor(cache *writerCache, storeID, name string, header *parser.Header) (*csvio.Writer, error) {
	path := p.tree.FilePath(storeID, name)
	if w, ok := cache.get(path); ok {
		return w, nil
	}
	if cache.full() {
		if err := cache.closeAll(); err != nil {
			return nil, err
		}
	}
	if _, err := p.tree.EnsureStore(storeID); err != nil {
		return nil, err
	}

	var (
		w     *csvio.Writer
		fresh bool
		err   error
	)
	if p.opts.WriteMode == WriteTruncate && !p.touched[path] {
		w, err = csvio.Create(path, p.opts.Encoding)
		fresh = true
	} else {
		w, fresh, err = csvio.Append(path, p.opts.Encoding)
	}
	if err != nil {
		return nil, fmt.Errorf("打开 %s 失败: %w", path, err)
	}
	p.touched[path] = true

	if fresh {
		if err := w.WriteAll(header.Lines()); err != nil {
			_ = w.Close()
			return nil, err
		}
	}
	cache.put(path, w)
	return w, nil
}

// writeHeaderOnly 写入只有说明行与表头的文件
// append 模式只在文件不存在或为空时写；truncate 模式对本次运行未写过的文件重写
func (p *Partitioner) writeHeaderOnly(storeID, name string, header *parser.Header) (bool, error) {
	path := p.tree.FilePath(storeID, name)
	if p.touched[path] {
		return false, nil
	}
	if p.opts.WriteMode != WriteTruncate && !layout.IsEmptyOrMissing(path) {
		return false, nil
	}
	if err := csvio.WriteFile(path, p.opts.Encoding, header.Lines(), nil); err != nil {
		return false, fmt.Errorf("写入表头文件 %s 失败: %w", path, err)
	}
	p.touched[path] = true
	return true, nil
}

// backfill 批次结束后，为每个商店补齐所有已处理输入文件，保证目录形状一致
func (p *Partitioner) backfill(processed []processedFile) (int, error) {
	if len(processed) == 0 {
		return 0, nil
	}
	stores, err := p.tree.Stores()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, storeID := range stores {
		for _, pf := range processed {
			created, err := p.writeHeaderOnly(storeID, pf.name, pf.header)
			if err != nil {
				return n, err
			}
			if created {
				n++
			}
		}
	}
	return n, nil
}
