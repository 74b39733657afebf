package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/MakiDevelop/ting-data-etl/internal/layout"
	"github.com/MakiDevelop/ting-data-etl/internal/model"
	"github.com/MakiDevelop/ting-data-etl/internal/report"
)

var aggregateFlags struct {
	config     string
	tingTest   bool
	inputDir   string
	outputDir  string
	list       bool
	reportJSON string
}

// aggregateCmd 计算一张分店报表
var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "计算一张分店报表并写入每个分店目录",
	Long: `按报表编号读取原始导出（paths.aggregate_dir），按商店汇总后写入
{output}/{商店序号}/{报表文件}；没有数据的已知商店写入只有表头的文件。

--ting-test 时原始源从之前的分发结果 output/{商店序号}/{文件} 读取，
结果写入测试目录（默认 paths.test_output_dir）。

Example:
  tingetl aggregate --config 23-1
  tingetl aggregate --config 24-2-annual --ting-test
  tingetl aggregate --list`,
	Args: cobra.NoArgs,
	RunE: runAggregate,
}

func init() {
	aggregateCmd.Flags().StringVar(&aggregateFlags.config, "config", "", "报表编号，如 23-1")
	aggregateCmd.Flags().BoolVar(&aggregateFlags.tingTest, "ting-test", false, "从分发结果读取原始源并写入测试目录")
	aggregateCmd.Flags().StringVar(&aggregateFlags.inputDir, "input-dir", "", "原始导出目录 (默认: paths.aggregate_dir)")
	aggregateCmd.Flags().StringVar(&aggregateFlags.outputDir, "output-dir", "", "报表输出目录 (默认: paths.output_dir，--ting-test 时为 paths.test_output_dir)")
	aggregateCmd.Flags().BoolVar(&aggregateFlags.list, "list", false, "列出所有报表")
	aggregateCmd.Flags().StringVar(&aggregateFlags.reportJSON, "report-json", "", "把运行结果写成 JSON 文件")
}

func builtinRegistry() (*report.Registry, error) {
	return report.NewBuiltinRegistry(report.Settings{
		CurrentYear:  cfg.Reports.CurrentYear,
		PreviousYear: cfg.Reports.PreviousYear,
		TopN:         cfg.Reports.TopN,
	})
}

func runAggregate(cmd *cobra.Command, args []string) error {
	registry, err := builtinRegistry()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if aggregateFlags.list {
		writeReportList(out, registry)
		return nil
	}
	if aggregateFlags.config == "" {
		return fmt.Errorf("--config is required (one of %v)", registry.Keys())
	}

	enc, err := encodingOr("", cfg.CSV.Encoding)
	if err != nil {
		return err
	}
	reportEnc, err := encodingOr("", cfg.CSV.ReportEncoding)
	if err != nil {
		return err
	}

	opts := report.EngineOptions{
		Registry:       registry,
		RawDir:         stringOr(aggregateFlags.inputDir, cfg.Paths.AggregateDir),
		OutputDir:      stringOr(aggregateFlags.outputDir, cfg.Paths.OutputDir),
		Encoding:       enc,
		ReportEncoding: reportEnc,
		Aliases:        cfg.AliasTable(),
		Policy:         cfg.IDPolicy(),
		ExcludeDirs:    cfg.Paths.ExcludeDirs,
	}
	if aggregateFlags.tingTest {
		opts.SourceDir = cfg.Paths.OutputDir
		opts.OutputDir = stringOr(aggregateFlags.outputDir, cfg.Paths.TestOutputDir)
	}

	engine, err := report.NewEngine(opts, logger)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	res, err := engine.Run(ctx, aggregateFlags.config)
	if err != nil {
		return err
	}
	for _, reason := range model.SortedReasons(res.Discards) {
		fmt.Fprintf(out, "  discarded %s: %d\n", reason, res.Discards[reason])
	}
	if aggregateFlags.reportJSON != "" {
		if err := layout.WriteJSONAtomic(aggregateFlags.reportJSON, res); err != nil {
			return err
		}
	}
	fmt.Fprintf(out, "[OK] config=%s, stores=%d\n", res.Key, res.Stores)
	return nil
}

func writeReportList(w io.Writer, registry *report.Registry) {
	for _, r := range registry.List() {
		fmt.Fprintf(w, "%-12s %-14s %-18s %s\n", r.Key(), r.Kind(), r.OutputFile(), r.Description())
	}
}
