package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MakiDevelop/ting-data-etl/internal/fanout"
	"github.com/MakiDevelop/ting-data-etl/internal/layout"
	"github.com/MakiDevelop/ting-data-etl/internal/model"
	"github.com/MakiDevelop/ting-data-etl/internal/parser"
)

var fanoutFlags struct {
	inputDir        string
	outputDir       string
	encoding        string
	writeMode       string
	allowNonNumeric bool
	reportJSON      string
}

// fanoutCmd 按商店序号拆分
var fanoutCmd = &cobra.Command{
	Use:   "fanout",
	Short: "按商店序号把输入 CSV 拆分到分店目录",
	Long: `扫描输入目录下的 *.csv（不递归），定位包含商店序号的表头行，
逐行写入 {output}/{商店序号}/{原文件名}；表头之前的说明行原样复制。

Example:
  tingetl fanout --input-dir input --output-dir output --write-mode truncate`,
	Args: cobra.NoArgs,
	RunE: runFanout,
}

func init() {
	fanoutCmd.Flags().StringVar(&fanoutFlags.inputDir, "input-dir", "", "输入目录 (默认: paths.input_dir)")
	fanoutCmd.Flags().StringVar(&fanoutFlags.outputDir, "output-dir", "", "输出目录 (默认: paths.output_dir)")
	fanoutCmd.Flags().StringVar(&fanoutFlags.encoding, "encoding", "", "CSV 编码 (默认: csv.encoding)")
	fanoutCmd.Flags().StringVar(&fanoutFlags.writeMode, "write-mode", "", "append 或 truncate (默认: fanout.write_mode)")
	fanoutCmd.Flags().BoolVar(&fanoutFlags.allowNonNumeric, "allow-non-numeric", false, "接受非纯数字的商店序号")
	fanoutCmd.Flags().StringVar(&fanoutFlags.reportJSON, "report-json", "", "把运行报告写成 JSON 文件")
}

func runFanout(cmd *cobra.Command, args []string) error {
	enc, err := encodingOr(fanoutFlags.encoding, cfg.CSV.Encoding)
	if err != nil {
		return err
	}
	mode, err := fanout.ParseWriteMode(strings.ToLower(stringOr(fanoutFlags.writeMode, cfg.Fanout.WriteMode)))
	if err != nil {
		return err
	}
	policy := cfg.IDPolicy()
	if fanoutFlags.allowNonNumeric {
		policy.RequireNumeric = false
	}

	p, err := fanout.New(fanout.Options{
		InputDir:     stringOr(fanoutFlags.inputDir, cfg.Paths.InputDir),
		OutputDir:    stringOr(fanoutFlags.outputDir, cfg.Paths.OutputDir),
		Encoding:     enc,
		Aliases:      cfg.AliasTable()[parser.FieldStoreID],
		Policy:       policy,
		WriteMode:    mode,
		MaxOpenFiles: cfg.Fanout.MaxOpenFiles,
		ExcludeDirs:  cfg.Paths.ExcludeDirs,
	}, logger)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	rep, err := p.Run(ctx)
	if rep != nil {
		writeRunSummary(cmd.OutOrStdout(), rep)
		if fanoutFlags.reportJSON != "" {
			if werr := layout.WriteJSONAtomic(fanoutFlags.reportJSON, rep); werr != nil {
				return errors.Join(err, werr)
			}
		}
	}
	if err != nil {
		return err
	}
	if rep.ErrorFiles > 0 {
		return fmt.Errorf("%d 个文件处理失败", rep.ErrorFiles)
	}
	return nil
}

// writeRunSummary 输出每个文件的处理结果与丢弃原因
func writeRunSummary(w io.Writer, rep *model.RunReport) {
	for _, f := range rep.Files {
		switch f.Status {
		case model.FileSkipped:
			fmt.Fprintf(w, "[SKIP] %s: %s\n", f.Filename, f.Error)
			continue
		case model.FileError:
			fmt.Fprintf(w, "[ERROR] %s: %s\n", f.Filename, f.Error)
			continue
		}
		fmt.Fprintf(w, "[OK] %s: rows=%d, written=%d, stores=%d, header_only=%d\n",
			f.Filename, f.TotalRows, f.WrittenRows, f.Stores, f.HeaderOnlyFiles)
		for _, reason := range model.SortedReasons(f.Discards) {
			fmt.Fprintf(w, "       discarded %s: %d\n", reason, f.Discards[reason])
		}
		if len(f.Flagged) > 0 {
			fmt.Fprintf(w, "       flagged ids: %s\n", strings.Join(f.Flagged, ", "))
		}
	}
	fmt.Fprintf(w, "Files: %d processed, %d skipped, %d failed; rows: %d written, %d discarded; backfilled: %d (run %s, %s)\n",
		rep.ProcessedFiles, rep.SkippedFiles, rep.ErrorFiles, rep.WrittenRows, rep.DiscardedRows,
		rep.BackfilledFiles, rep.RunID, rep.Duration.Round(1e6))
}
