package main

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/MakiDevelop/ting-data-etl/internal/exporter"
	"github.com/MakiDevelop/ting-data-etl/internal/layout"
	"github.com/MakiDevelop/ting-data-etl/internal/parser"
	"github.com/MakiDevelop/ting-data-etl/internal/server"
	"github.com/MakiDevelop/ting-data-etl/internal/util"
)

var exportFlags struct {
	outputDir string
	exportDir string
	stores    []string
}

var serveFlags struct {
	outputDir string
	port      int
	open      bool
	store     string
	file      string
}

// exportCmd 导出分店工作簿
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "把每个分店目录导出为一个 xlsx 工作簿（每个 CSV 一个工作表）",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

// serveCmd 报表浏览服务
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动只读的报表浏览 HTTP 服务",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	exportCmd.Flags().StringVar(&exportFlags.outputDir, "output-dir", "", "分店目录树 (默认: paths.output_dir)")
	exportCmd.Flags().StringVar(&exportFlags.exportDir, "export-dir", "", "工作簿输出目录 (默认: paths.export_dir)")
	exportCmd.Flags().StringSliceVar(&exportFlags.stores, "store", nil, "只导出指定商店，可重复")

	serveCmd.Flags().StringVar(&serveFlags.outputDir, "output-dir", "", "分店目录树 (默认: paths.output_dir)")
	serveCmd.Flags().IntVar(&serveFlags.port, "port", 0, "服务端口 (默认: server.port)")
	serveCmd.Flags().BoolVar(&serveFlags.open, "open", false, "启动后打开浏览器")
	serveCmd.Flags().StringVar(&serveFlags.store, "store", "", "--open 时直接打开该商店的文件列表")
	serveCmd.Flags().StringVar(&serveFlags.file, "file", "", "--open 时直接打开该商店下的文件（需配合 --store）")
}

func runExport(cmd *cobra.Command, args []string) error {
	enc, err := encodingOr("", cfg.CSV.Encoding)
	if err != nil {
		return err
	}
	tree := layout.NewTree(stringOr(exportFlags.outputDir, cfg.Paths.OutputDir), cfg.Paths.ExcludeDirs...)
	exp := exporter.NewExporter(tree, enc, logger)

	ctx, cancel := signalContext(cmd)
	defer cancel()

	lastPercent := -1
	results, err := exp.Export(ctx, exporter.ExportOptions{
		ExportDir: stringOr(exportFlags.exportDir, cfg.Paths.ExportDir),
		Stores:    exportFlags.stores,
		Progress: func(p exporter.ProgressEvent) {
			if p.Percent == lastPercent {
				return
			}
			lastPercent = p.Percent
			logger.Debug("导出进度", zap.Int("percent", p.Percent), zap.String("stage", p.Stage))
		},
	})
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, r := range results {
		fmt.Fprintf(out, "[OK] store=%s, sheets=%d -> %s\n", r.Store, r.Sheets, r.Path)
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	registry, err := builtinRegistry()
	if err != nil {
		return err
	}
	enc, err := encodingOr("", cfg.CSV.Encoding)
	if err != nil {
		return err
	}
	srv, err := server.NewServer(server.Options{
		OutputDir:   stringOr(serveFlags.outputDir, cfg.Paths.OutputDir),
		ExcludeDirs: cfg.Paths.ExcludeDirs,
		Encoding:    enc,
		Aliases:     cfg.AliasTable()[parser.FieldStoreID],
		Registry:    registry,
		DevMode:     cfg.Server.DevMode,
	}, logger)
	if err != nil {
		return err
	}

	port := cfg.Server.Port
	if serveFlags.port > 0 {
		port = serveFlags.port
	}
	addr := fmt.Sprintf(":%d", port)
	url, err := util.BrowseURL(port, serveFlags.store, serveFlags.file)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run(addr)
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "服务已启动: %s\n按 Ctrl+C 停止服务...\n", url)
	if serveFlags.open {
		if err := util.OpenBrowserWithFallback(url); err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "无法自动打开浏览器，请手动访问: %s\n", url)
		}
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		fmt.Fprintln(cmd.OutOrStdout(), "正在关闭服务...")
		return nil
	}
}
