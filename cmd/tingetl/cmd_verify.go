package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MakiDevelop/ting-data-etl/internal/layout"
	"github.com/MakiDevelop/ting-data-etl/internal/parser"
	"github.com/MakiDevelop/ting-data-etl/internal/verify"
)

// errVerifyFailed 校验发现问题（报告已输出）
var errVerifyFailed = errors.New("verification failed")

var verifyFlags struct {
	inputDir  string
	outputDir string
	encoding  string
}

var verifyCountFlags struct {
	inputDir string
	limit    int
}

var presenceFlags struct {
	store    string
	inputDir string
}

// verifyCmd 校验拆分结果
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "校验分发结果：文件集合与商店序号内容",
	Long: `文件集合：每个商店目录应当正好包含输入目录中的全部 CSV 文件名。
内容：每个分店文件中每一行的商店序号（规范化后）都应等于所在目录名。
发现问题时输出完整报告并以状态码 1 退出。`,
	Args: cobra.NoArgs,
	RunE: runVerify,
}

// verifyCountCmd 目录文件数检查
var verifyCountCmd = &cobra.Command{
	Use:   "verify-count",
	Short: "检查每个目录直接包含的文件数是否超过上限",
	Args:  cobra.NoArgs,
	RunE:  runVerifyCount,
}

// presenceCmd 单店数据诊断
var presenceCmd = &cobra.Command{
	Use:   "presence",
	Short: "检查某商店在各报表源文件中是否有数据",
	Args:  cobra.NoArgs,
	RunE:  runPresence,
}

func init() {
	verifyCmd.Flags().StringVar(&verifyFlags.inputDir, "input-dir", "", "输入目录 (默认: paths.input_dir)")
	verifyCmd.Flags().StringVar(&verifyFlags.outputDir, "output-dir", "", "输出目录 (默认: paths.output_dir)")
	verifyCmd.Flags().StringVar(&verifyFlags.encoding, "encoding", "", "CSV 编码 (默认: csv.encoding)")

	verifyCountCmd.Flags().StringVar(&verifyCountFlags.inputDir, "input-dir", "", "要检查的目录 (默认: paths.output_dir)")
	verifyCountCmd.Flags().IntVar(&verifyCountFlags.limit, "limit-file-count", 0, "每个目录允许的最大文件数")
	_ = verifyCountCmd.MarkFlagRequired("limit-file-count")

	presenceCmd.Flags().StringVar(&presenceFlags.store, "store", "", "商店序号")
	presenceCmd.Flags().StringVar(&presenceFlags.inputDir, "input-dir", "", "原始导出目录 (默认: paths.aggregate_dir)")
	_ = presenceCmd.MarkFlagRequired("store")
}

func runVerify(cmd *cobra.Command, args []string) error {
	enc, err := encodingOr(verifyFlags.encoding, cfg.CSV.Encoding)
	if err != nil {
		return err
	}
	inputDir := stringOr(verifyFlags.inputDir, cfg.Paths.InputDir)
	tree := layout.NewTree(stringOr(verifyFlags.outputDir, cfg.Paths.OutputDir), cfg.Paths.ExcludeDirs...)
	out := cmd.OutOrStdout()

	sets, err := verify.CheckFileSets(inputDir, tree)
	if err != nil {
		return err
	}
	sets.Write(out)

	checker := &verify.ContentChecker{
		Tree:     tree,
		Encoding: enc,
		Aliases:  cfg.AliasTable()[parser.FieldStoreID],
		Logger:   logger,
	}
	ctx, cancel := signalContext(cmd)
	defer cancel()

	content, err := checker.Check(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(out)
	content.Write(out)

	if sets.Failed() || content.Failed() {
		return errVerifyFailed
	}
	return nil
}

func runVerifyCount(cmd *cobra.Command, args []string) error {
	if verifyCountFlags.limit < 0 {
		return fmt.Errorf("--limit-file-count must be >= 0")
	}
	rep, err := verify.CheckFileCount(stringOr(verifyCountFlags.inputDir, cfg.Paths.OutputDir), verifyCountFlags.limit)
	if err != nil {
		return err
	}
	rep.Write(cmd.OutOrStdout())
	if rep.Failed() {
		return errVerifyFailed
	}
	return nil
}

func runPresence(cmd *cobra.Command, args []string) error {
	registry, err := builtinRegistry()
	if err != nil {
		return err
	}
	enc, err := encodingOr("", cfg.CSV.Encoding)
	if err != nil {
		return err
	}

	var sources []verify.PresenceSource
	for _, file := range registry.SourceFiles() {
		sources = append(sources, verify.PresenceSource{
			Label: fmt.Sprintf("%v %s", registry.Consumers(file), file),
			File:  file,
		})
	}
	entries := verify.CheckPresence(
		stringOr(presenceFlags.inputDir, cfg.Paths.AggregateDir),
		enc,
		cfg.AliasTable()[parser.FieldStoreID],
		sources,
		presenceFlags.store,
	)
	verify.WritePresence(cmd.OutOrStdout(), presenceFlags.store, entries)
	return nil
}
