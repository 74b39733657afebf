package generator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/MakiDevelop/ting-data-etl/internal/csvio"
	"github.com/MakiDevelop/ting-data-etl/internal/parser"
)

func smallOptions(dir string) Options {
	opts := DefaultOptions()
	opts.OutputDir = dir
	opts.CSVCount = 3
	opts.StoreCount = 4
	opts.MinRows = 5
	opts.MaxRows = 10
	opts.MinCols = 2
	opts.MaxCols = 5
	opts.PreambleRows = 2
	opts.Seed = 42
	return opts
}

func TestGenerator_WritesLocatableFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	g, err := New(smallOptions(dir), nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	files, err := g.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("want 3 files, got %d", len(files))
	}
	if filepath.Base(files[0].Path) != "data_01.csv" {
		t.Fatalf("unexpected name: %s", files[0].Path)
	}

	valid := map[string]bool{}
	for _, id := range StoreIDs(4) {
		valid[id] = true
	}
	aliases := parser.DefaultAliases()[parser.FieldStoreID]
	for _, f := range files {
		if f.Rows < 5 || f.Rows > 10 {
			t.Fatalf("%s: rows out of range: %d", f.Path, f.Rows)
		}
		if len(f.Columns) < 2 || len(f.Columns) > 5 {
			t.Fatalf("%s: columns out of range: %d", f.Path, len(f.Columns))
		}
		r, err := csvio.Open(f.Path, csvio.UTF8)
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		header, err := parser.LocateHeader(r, aliases)
		if err != nil {
			_ = r.Close()
			t.Fatalf("%s: locate header: %v", f.Path, err)
		}
		if len(header.Preamble) != 2 || header.KeyIndex != 0 {
			_ = r.Close()
			t.Fatalf("%s: unexpected header %+v", f.Path, header)
		}
		for {
			row, err := r.Read()
			if err != nil {
				break
			}
			if !valid[row[0]] {
				_ = r.Close()
				t.Fatalf("%s: unexpected store id %q", f.Path, row[0])
			}
		}
		_ = r.Close()
	}
}

func TestGenerator_SeedIsReproducible(t *testing.T) {
	t.Parallel()

	a, b := t.TempDir(), t.TempDir()
	for _, dir := range []string{a, b} {
		g, err := New(smallOptions(dir), nil)
		if err != nil {
			t.Fatalf("new: %v", err)
		}
		if _, err := g.Run(context.Background()); err != nil {
			t.Fatalf("run: %v", err)
		}
	}
	for _, name := range []string{"data_01.csv", "data_02.csv", "data_03.csv"} {
		x, err := os.ReadFile(filepath.Join(a, name))
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		y, err := os.ReadFile(filepath.Join(b, name))
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if string(x) != string(y) {
			t.Fatalf("%s differs between runs with the same seed", name)
		}
	}
}

func TestOptions_Validate(t *testing.T) {
	t.Parallel()

	base := smallOptions(t.TempDir())
	cases := map[string]func(o *Options){
		"rows":     func(o *Options) { o.MinRows, o.MaxRows = 10, 5 },
		"min cols": func(o *Options) { o.MinCols = 1 },
		"cols":     func(o *Options) { o.MinCols, o.MaxCols = 6, 5 },
		"stores":   func(o *Options) { o.StoreCount = 0 },
	}
	for name, mutate := range cases {
		o := base
		mutate(&o)
		if err := o.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("base options should be valid: %v", err)
	}
}
