package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MakiDevelop/ting-data-etl/internal/generator"
)

func zero[T any](T) (z T) { return }

func resetFlags() {
	fanoutFlags = zero(fanoutFlags)
	aggregateFlags = zero(aggregateFlags)
	verifyFlags = zero(verifyFlags)
	verifyCountFlags = zero(verifyCountFlags)
	presenceFlags = zero(presenceFlags)
	mergeFlags = zero(mergeFlags)
	exportFlags = zero(exportFlags)
	serveFlags = zero(serveFlags)
	generateOpts = generator.DefaultOptions()
	verbose = false
}

type workspace struct {
	root      string
	input     string
	aggregate string
	output    string
	config    string
}

func newWorkspace(t *testing.T) workspace {
	t.Helper()
	root := t.TempDir()
	ws := workspace{
		root:      root,
		input:     filepath.Join(root, "input"),
		aggregate: filepath.Join(root, "input", "aggregate"),
		output:    filepath.Join(root, "output"),
		config:    filepath.Join(root, "config.toml"),
	}
	toml := fmt.Sprintf(`[paths]
input_dir = %q
aggregate_dir = %q
output_dir = %q
test_output_dir = %q
export_dir = %q

[fanout]
write_mode = "truncate"

[log]
level = "error"
`, ws.input, ws.aggregate, ws.output, filepath.Join(ws.output, "ting-test"), filepath.Join(root, "export"))
	writeFile(t, ws.config, toml)
	return ws
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func run(t *testing.T, ws workspace, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--config-file", ws.config}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCLI_FanoutThenVerify(t *testing.T) {
	ws := newWorkspace(t)
	writeFile(t, filepath.Join(ws.input, "a.csv"), "匯出說明\n商店序號,v\n101,1\n202.0,2\n,3\n")
	writeFile(t, filepath.Join(ws.input, "b.csv"), "shopId,w\n101,x\n")

	reportPath := filepath.Join(ws.root, "runs", "fanout.json")
	out, err := run(t, ws, "fanout", "--report-json", reportPath)
	if err != nil {
		t.Fatalf("fanout: %v\n%s", err, out)
	}
	if data, err := os.ReadFile(reportPath); err != nil || !strings.Contains(string(data), `"runId"`) {
		t.Fatalf("run report not written: %v %s", err, data)
	}
	if !strings.Contains(out, "[OK] a.csv") || !strings.Contains(out, "discarded empty_id: 1") {
		t.Fatalf("unexpected fanout summary:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(ws.output, "202", "b.csv")); err != nil {
		t.Fatalf("expected header-only backfill for store 202: %v", err)
	}

	out, err = run(t, ws, "verify")
	if err != nil {
		t.Fatalf("verify: %v\n%s", err, out)
	}

	writeFile(t, filepath.Join(ws.output, "101", "a.csv"), "商店序號,v\n999,1\n")
	out, err = run(t, ws, "verify")
	if !errors.Is(err, errVerifyFailed) {
		t.Fatalf("expected verification failure, got %v\n%s", err, out)
	}
	if !strings.Contains(out, "101/a.csv") {
		t.Fatalf("violation not reported:\n%s", out)
	}
}

func TestCLI_AggregateVisits(t *testing.T) {
	ws := newWorkspace(t)
	writeFile(t, filepath.Join(ws.aggregate, "門市首購人數_門市.csv"),
		"商店序號,門市名稱,yyyymm,visit_count\n101,A,202401,3\n101,A,202412,4\n101,A,202501,100\n")
	writeFile(t, filepath.Join(ws.output, "202", "x.csv"), "商店序號\n")

	out, err := run(t, ws, "aggregate", "--config", "visits-2024")
	if err != nil {
		t.Fatalf("aggregate: %v\n%s", err, out)
	}
	if !strings.Contains(out, "[OK] config=visits-2024, stores=1") {
		t.Fatalf("unexpected output:\n%s", out)
	}
	data, err := os.ReadFile(filepath.Join(ws.output, "101", "visit-total.csv"))
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !strings.Contains(string(data), "101,7") {
		t.Fatalf("unexpected report content: %q", data)
	}
	if _, err := os.Stat(filepath.Join(ws.output, "202", "visit-total.csv")); err != nil {
		t.Fatalf("expected header-only report for store 202: %v", err)
	}
}

func TestCLI_AggregateListAndUnknown(t *testing.T) {
	ws := newWorkspace(t)

	out, err := run(t, ws, "aggregate", "--list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, key := range []string{"23-1", "23-2", "24-1", "24-2", "24-2-annual", "25-1", "25-2", "visits-2024"} {
		if !strings.Contains(out, key) {
			t.Fatalf("missing %s in list:\n%s", key, out)
		}
	}

	if _, err := run(t, ws, "aggregate", "--config", "99-9"); err == nil {
		t.Fatalf("expected error for unknown report")
	}
}

func TestCLI_VerifyCountAndPresence(t *testing.T) {
	ws := newWorkspace(t)
	writeFile(t, filepath.Join(ws.output, "101", "a.csv"), "商店序號\n101\n")
	writeFile(t, filepath.Join(ws.output, "101", "b.csv"), "商店序號\n101\n")

	out, err := run(t, ws, "verify-count", "--limit-file-count", "1")
	if !errors.Is(err, errVerifyFailed) {
		t.Fatalf("expected failure, got %v\n%s", err, out)
	}
	if _, err := run(t, ws, "verify-count", "--limit-file-count", "2"); err != nil {
		t.Fatalf("verify-count within limit: %v", err)
	}

	writeFile(t, filepath.Join(ws.aggregate, "區間綁定推薦人人數.csv"), "商店序號,總綁定,年度,月份\n101,5,2025,1\n")
	out, err = run(t, ws, "presence", "--store", "101")
	if err != nil {
		t.Fatalf("presence: %v", err)
	}
	if !strings.Contains(out, "區間綁定推薦人人數.csv") {
		t.Fatalf("unexpected presence output:\n%s", out)
	}
}

func TestCLI_GenerateMergeExport(t *testing.T) {
	ws := newWorkspace(t)
	gen := filepath.Join(ws.root, "generated")

	out, err := run(t, ws, "generate", "--csv-count", "2", "--store-count", "3",
		"--min-rows", "2", "--max-rows", "4", "--min-cols", "2", "--max-cols", "3",
		"--seed", "7", "--output-dir", gen)
	if err != nil {
		t.Fatalf("generate: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Generated 2 files") {
		t.Fatalf("unexpected output:\n%s", out)
	}

	chunks := filepath.Join(ws.root, "chunks")
	writeFile(t, filepath.Join(chunks, "r.csv"), "商店序號\n1\n")
	writeFile(t, filepath.Join(chunks, "r(1).csv"), "商店序號\n2\n")
	out, err = run(t, ws, "merge-chunks", "--input", chunks, "--output", filepath.Join(ws.root, "merged"))
	if err != nil {
		t.Fatalf("merge-chunks: %v", err)
	}
	if !strings.Contains(out, "r.csv") {
		t.Fatalf("unexpected merge output:\n%s", out)
	}

	writeFile(t, filepath.Join(ws.output, "101", "a.csv"), "商店序號\n101\n")
	out, err = run(t, ws, "export")
	if err != nil {
		t.Fatalf("export: %v\n%s", err, out)
	}
	if _, err := os.Stat(filepath.Join(ws.root, "export", "101.xlsx")); err != nil {
		t.Fatalf("workbook missing: %v", err)
	}
}

func TestCLI_BadConfig(t *testing.T) {
	ws := newWorkspace(t)
	writeFile(t, ws.config, "[csv]\nencoding = \"klingon\"\n")

	if _, err := run(t, ws, "fanout"); err == nil {
		t.Fatalf("expected config error")
	}
}
