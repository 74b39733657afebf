package verify

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MakiDevelop/ting-data-etl/internal/csvio"
	"github.com/MakiDevelop/ting-data-etl/internal/fanout"
	"github.com/MakiDevelop/ting-data-etl/internal/layout"
	"github.com/MakiDevelop/ting-data-etl/internal/parser"
)

var storeAliases = parser.DefaultAliases()[parser.FieldStoreID]

func writeCSV(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func checker(out string) *ContentChecker {
	return &ContentChecker{
		Tree:     layout.NewTree(out, "ting-test"),
		Encoding: csvio.UTF8,
		Aliases:  storeAliases,
	}
}

func TestVerify_CleanPartitionHasNoDiscrepancies(t *testing.T) {
	t.Parallel()

	in, out := t.TempDir(), t.TempDir()
	writeCSV(t, filepath.Join(in, "a.csv"), "說明一\n說明二\n商店序號,v\n40316.0,1\n40316,2\n7,3\n")
	writeCSV(t, filepath.Join(in, "b.csv"), "shopId,w\n7,x\n")
	writeCSV(t, filepath.Join(in, "c.CSV"), "foo,商店序號\nbar,9\n,blank\n")

	p, err := fanout.New(fanout.Options{
		InputDir:  in,
		OutputDir: out,
		Aliases:   storeAliases,
		Policy:    parser.IDPolicy{RequireNumeric: true, Reserved: storeAliases},
	}, nil)
	require.NoError(t, err)
	_, err = p.Run(context.Background())
	require.NoError(t, err)

	sets, err := CheckFileSets(in, layout.NewTree(out, "ting-test"))
	require.NoError(t, err)
	assert.False(t, sets.Failed())
	assert.Equal(t, 3, sets.Stores)
	assert.Equal(t, 3, sets.OK())

	content, err := checker(out).Check(context.Background())
	require.NoError(t, err)
	assert.False(t, content.Failed())
	assert.Equal(t, 9, content.CheckedFiles)
}

func TestCheckFileSets_MissingAndExtra(t *testing.T) {
	t.Parallel()

	in, out := t.TempDir(), t.TempDir()
	writeCSV(t, filepath.Join(in, "a.csv"), "商店序號\n")
	writeCSV(t, filepath.Join(in, "b.csv"), "商店序號\n")
	writeCSV(t, filepath.Join(out, "1", "a.csv"), "商店序號\n")
	writeCSV(t, filepath.Join(out, "1", "z.csv"), "商店序號\n")
	writeCSV(t, filepath.Join(out, "2", "a.csv"), "商店序號\n")
	writeCSV(t, filepath.Join(out, "2", "b.csv"), "商店序號\n")

	report, err := CheckFileSets(in, layout.NewTree(out))
	require.NoError(t, err)
	assert.True(t, report.Failed())
	assert.Equal(t, map[string][]string{"1": {"b.csv"}}, report.Missing)
	assert.Equal(t, map[string][]string{"1": {"z.csv"}}, report.Extra)
	assert.Equal(t, 1, report.OK())

	var buf bytes.Buffer
	report.Write(&buf)
	assert.Contains(t, buf.String(), "== File Set Check ==")
	assert.Contains(t, buf.String(), "1: b.csv")
	assert.Contains(t, buf.String(), "input files: 2")
}

func TestContentChecker_Violations(t *testing.T) {
	t.Parallel()

	out := t.TempDir()
	writeCSV(t, filepath.Join(out, "5", "a.csv"), "title\n商店序號,v\n5,ok\n5.0,ok\n6,bad\n\n")
	writeCSV(t, filepath.Join(out, "5", "b.csv"), "no,header\n1,2\n")
	var rows bytes.Buffer
	rows.WriteString("商店序號\n")
	for i := 0; i < 8; i++ {
		rows.WriteString("9\n")
	}
	writeCSV(t, filepath.Join(out, "6", "c.csv"), rows.String())

	report, err := checker(out).Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.CheckedFiles)
	assert.Equal(t, 3, report.ViolatedFiles)
	assert.Equal(t, 1+1+8, report.TotalViolations)

	require.Len(t, report.Violations, 3)
	assert.Equal(t, []Violation{{Line: 5, Value: "6"}}, report.Violations[0].Rows)
	assert.Equal(t, []Violation{{Line: 1, Value: missingHeaderValue}}, report.Violations[1].Rows)
	assert.Len(t, report.Violations[2].Rows, maxRowsPerFile)
	assert.Equal(t, 8, report.Violations[2].Total)

	var buf bytes.Buffer
	report.Write(&buf)
	assert.Contains(t, buf.String(), "5/a.csv line 5: 商店序號=6")
	assert.Contains(t, buf.String(), "violation rows (total): 10")
}

func TestCheckFileCount(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeCSV(t, filepath.Join(root, "1", "a.csv"), "")
	writeCSV(t, filepath.Join(root, "1", "b.csv"), "")
	writeCSV(t, filepath.Join(root, "1", "c.csv"), "")
	writeCSV(t, filepath.Join(root, "2", "a.csv"), "")
	writeCSV(t, filepath.Join(root, "2", "nested", "a.csv"), "")
	writeCSV(t, filepath.Join(root, "2", "nested", "b.csv"), "")
	writeCSV(t, filepath.Join(root, "2", "nested", "c.csv"), "")

	report, err := CheckFileCount(root, 2)
	require.NoError(t, err)
	require.True(t, report.Failed())
	assert.Equal(t, []DirCount{
		{Path: filepath.Join(root, "1"), Files: 3},
		{Path: filepath.Join(root, "2", "nested"), Files: 3},
	}, report.Exceeded)

	report, err = CheckFileCount(root, 3)
	require.NoError(t, err)
	assert.False(t, report.Failed())

	_, err = CheckFileCount(filepath.Join(root, "missing"), 3)
	assert.Error(t, err)
}

func TestCheckPresence(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeCSV(t, filepath.Join(dir, "a.csv"), "商店序號,v\n1194,1\n1194.0,2\n2,3\n")
	writeCSV(t, filepath.Join(dir, "b.csv"), "商店序號,v\n2,3\n")
	writeCSV(t, filepath.Join(dir, "c.csv"), "foo,bar\n1194,1\n")

	entries := CheckPresence(dir, csvio.UTF8, storeAliases, []PresenceSource{
		{Label: "A", File: "a.csv"},
		{Label: "B", File: "b.csv"},
		{Label: "C", File: "c.csv"},
		{Label: "D", File: "d.csv"},
	}, "1194")

	require.Len(t, entries, 4)
	assert.Equal(t, PresenceRows, entries[0].Status)
	assert.Equal(t, 2, entries[0].Rows)
	assert.Equal(t, PresenceNone, entries[1].Status)
	assert.Equal(t, PresenceMissingColumn, entries[2].Status)
	assert.Equal(t, PresenceMissingFile, entries[3].Status)

	var buf bytes.Buffer
	WritePresence(&buf, "1194", entries)
	assert.Contains(t, buf.String(), "[OK] A：有資料（2 列）")
}
