package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MakiDevelop/ting-data-etl/internal/generator"
	"github.com/MakiDevelop/ting-data-etl/internal/merger"
	"github.com/MakiDevelop/ting-data-etl/internal/parser"
)

var mergeFlags struct {
	input  string
	output string
}

var generateOpts = generator.DefaultOptions()

// mergeChunksCmd 合并分段导出
var mergeChunksCmd = &cobra.Command{
	Use:   "merge-chunks",
	Short: "合并 name.csv、name(1).csv、name(2).csv… 这类分段导出",
	Long: `递归扫描输入目录，把同名分段文件按序号拼接为 {output}/{name}.csv，
表头取各分段列名的并集。`,
	Args: cobra.NoArgs,
	RunE: runMergeChunks,
}

// generateCmd 生成测试数据
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "生成随机结构的测试 CSV",
	Args:  cobra.NoArgs,
	RunE:  runGenerate,
}

func init() {
	mergeChunksCmd.Flags().StringVar(&mergeFlags.input, "input", "", "分段文件所在目录 (默认: paths.aggregate_dir)")
	mergeChunksCmd.Flags().StringVar(&mergeFlags.output, "output", "", "合并结果目录 (默认: paths.aggregate_dir)")

	f := generateCmd.Flags()
	f.IntVar(&generateOpts.CSVCount, "csv-count", generateOpts.CSVCount, "生成的文件数")
	f.IntVar(&generateOpts.StoreCount, "store-count", generateOpts.StoreCount, "商店数")
	f.IntVar(&generateOpts.MinRows, "min-rows", generateOpts.MinRows, "每个文件最少行数")
	f.IntVar(&generateOpts.MaxRows, "max-rows", generateOpts.MaxRows, "每个文件最多行数")
	f.IntVar(&generateOpts.MinCols, "min-cols", generateOpts.MinCols, "最少列数（含商店序号列）")
	f.IntVar(&generateOpts.MaxCols, "max-cols", generateOpts.MaxCols, "最多列数")
	f.IntVar(&generateOpts.PreambleRows, "preamble-rows", generateOpts.PreambleRows, "表头前的说明行数")
	f.Int64Var(&generateOpts.Seed, "seed", generateOpts.Seed, "随机种子（0 表示随机）")
	f.StringVar(&generateOpts.OutputDir, "output-dir", generateOpts.OutputDir, "输出目录")
}

func runMergeChunks(cmd *cobra.Command, args []string) error {
	enc, err := encodingOr("", cfg.CSV.Encoding)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext(cmd)
	defer cancel()

	results, err := merger.Run(ctx, merger.Options{
		InputDir:  stringOr(mergeFlags.input, cfg.Paths.AggregateDir),
		OutputDir: stringOr(mergeFlags.output, cfg.Paths.AggregateDir),
		Encoding:  enc,
	}, logger)
	if err != nil {
		return err
	}
	merger.WriteSummary(cmd.OutOrStdout(), results)
	return nil
}

func runGenerate(cmd *cobra.Command, args []string) error {
	opts := generateOpts
	if aliases := cfg.AliasTable()[parser.FieldStoreID]; len(aliases) > 0 {
		opts.StoreColumn = aliases[0]
	}
	enc, err := encodingOr("", cfg.CSV.Encoding)
	if err != nil {
		return err
	}
	opts.Encoding = enc

	g, err := generator.New(opts, logger)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext(cmd)
	defer cancel()

	files, err := g.Run(ctx)
	if err != nil {
		return err
	}
	rows := 0
	for _, f := range files {
		rows += f.Rows
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Generated %d files (%d rows) in %s\n", len(files), rows, opts.OutputDir)
	return nil
}
