package report

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MakiDevelop/ting-data-etl/internal/csvio"
	"github.com/MakiDevelop/ting-data-etl/internal/parser"
)

func writeCSV(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func readOutput(t *testing.T, path string) [][]string {
	t.Helper()
	rows, err := csvio.ReadAll(path, csvio.UTF8BOM)
	require.NoError(t, err)
	return rows
}

func newTestEngine(t *testing.T, raw, out string, reports ...Report) *Engine {
	t.Helper()
	reg, err := NewRegistry(reports...)
	require.NoError(t, err)
	aliases := parser.DefaultAliases()
	e, err := NewEngine(EngineOptions{
		Registry:    reg,
		RawDir:      raw,
		OutputDir:   out,
		Aliases:     aliases,
		Policy:      parser.IDPolicy{RequireNumeric: true, Reserved: aliases[parser.FieldStoreID]},
		ExcludeDirs: []string{"ting-test"},
	}, nil)
	require.NoError(t, err)
	return e
}

func regionReport() YoYSummary {
	return YoYSummary{
		ReportKey:     "region",
		Output:        "region-yoy.csv",
		Interval:      Raw("interval", "region.csv"),
		IntervalValue: "總綁定",
		CurrentYear:   2025,
		PreviousYear:  2024,
		MonthFilter:   true,
	}
}

func TestEngine_RegionYoY(t *testing.T) {
	t.Parallel()

	raw, out := t.TempDir(), t.TempDir()
	writeCSV(t, filepath.Join(raw, "region.csv"), "商店序號,總綁定,年度,月份\n100,\"1,200\",2025,03\n100,800,2024,03\n")

	res, err := newTestEngine(t, raw, out, regionReport()).Run(context.Background(), "region")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stores)

	rows := readOutput(t, filepath.Join(out, "100", "region-yoy.csv"))
	require.Len(t, rows, 2)
	assert.Equal(t, []string{ColStoreID, ColIntervalBind, ColIntervalYoY, ColBindRate}, rows[0])
	assert.Equal(t, []string{"100", "1200", "50.00%", ""}, rows[1])
}

func TestEngine_ZeroPreviousYearMasksYoY(t *testing.T) {
	t.Parallel()

	raw, out := t.TempDir(), t.TempDir()
	writeCSV(t, filepath.Join(raw, "region.csv"), "商店序號,總綁定,年度,月份\n100,5,2025,1\n100,0,2024,1\n200,7,2025,1\n")

	_, err := newTestEngine(t, raw, out, regionReport()).Run(context.Background(), "region")
	require.NoError(t, err)

	assert.Equal(t, "", readOutput(t, filepath.Join(out, "100", "region-yoy.csv"))[1][2])
	assert.Equal(t, "", readOutput(t, filepath.Join(out, "200", "region-yoy.csv"))[1][2])
}

func TestEngine_HeaderOnlyForKnownStores(t *testing.T) {
	t.Parallel()

	raw, out := t.TempDir(), t.TempDir()
	writeCSV(t, filepath.Join(raw, "region.csv"), "商店序號,總綁定,年度,月份\n100,1,2025,1\n")
	require.NoError(t, os.MkdirAll(filepath.Join(out, "555"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(out, "ting-test"), 0755))

	res, err := newTestEngine(t, raw, out, regionReport()).Run(context.Background(), "region")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stores)
	assert.Equal(t, 1, res.HeaderOnly)

	rows := readOutput(t, filepath.Join(out, "555", "region-yoy.csv"))
	assert.Len(t, rows, 1)
	assert.NoFileExists(t, filepath.Join(out, "ting-test", "region-yoy.csv"))
}

func TestEngine_Errors(t *testing.T) {
	t.Parallel()

	raw, out := t.TempDir(), t.TempDir()
	e := newTestEngine(t, raw, out, regionReport())

	_, err := e.Run(context.Background(), "99-9")
	assert.ErrorIs(t, err, ErrUnknownReport)

	_, err = e.Run(context.Background(), "region")
	assert.ErrorIs(t, err, ErrMissingSource)

	writeCSV(t, filepath.Join(raw, "region.csv"), "商店序號,總綁定,月份\n100,1,1\n")
	_, err = e.Run(context.Background(), "region")
	assert.ErrorIs(t, err, parser.ErrColumnNotFound)

	writeCSV(t, filepath.Join(raw, "region.csv"), "foo,bar\n1,2\n")
	_, err = e.Run(context.Background(), "region")
	assert.ErrorIs(t, err, parser.ErrColumnNotFound)
}

func TestEngine_DiscardsInvalidStoreIDs(t *testing.T) {
	t.Parallel()

	raw, out := t.TempDir(), t.TempDir()
	writeCSV(t, filepath.Join(raw, "region.csv"), "報表\n商店序號,總綁定,年度,月份\n,1,2025,1\nabc,1,2025,1\n100.0,2,2025,1\n")

	res, err := newTestEngine(t, raw, out, regionReport()).Run(context.Background(), "region")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stores)
	assert.Equal(t, 2, len(res.Discards))
	assert.Equal(t, "2", readOutput(t, filepath.Join(out, "100", "region-yoy.csv"))[1][1])
	assert.NoDirExists(t, filepath.Join(out, "abc"))
}

func rankedFixture(t *testing.T, raw string) {
	t.Helper()
	writeCSV(t, filepath.Join(raw, FileFirstPurchaseStore), "商店序號,門市,門市首購人數\n"+
		"1,A,100\n1,B,100\n1,C,100\n1,D,100\n1,E,100\n1,F,100\n1,G,100\n"+
		"2,X,10\n2,Y,10\n2,Z,10\n"+
		"3,P,0\n3,Q,10\n3,nan,10\n")
	writeCSV(t, filepath.Join(raw, FileStoreBinds), "商店序號,門市名稱,年度,總綁定數\n"+
		"1,A,2025,10\n1,B,2025,50\n1,C,2025,30\n1,D,2025,50\n1,E,2025,0\n1,F,2025,20\n1,G,2025,40\n"+
		"1,A,2024,90\n"+
		"2,X,2025,1\n2,Y,2025,3\n2,Z,2025,2\n"+
		"3,P,2025,4\n3,Q,2025,5\n")
}

func names(rows [][]string) []string {
	var out []string
	for _, row := range rows[1:] {
		out = append(out, row[1])
	}
	return out
}

func TestEngine_RankedShareTopAndBottom(t *testing.T) {
	t.Parallel()

	raw, out := t.TempDir(), t.TempDir()
	rankedFixture(t, raw)

	e := newTestEngine(t, raw, out, Builtins(Settings{CurrentYear: 2025, PreviousYear: 2024, TopN: 5})...)

	_, err := e.Run(context.Background(), "25-1")
	require.NoError(t, err)
	top := readOutput(t, filepath.Join(out, "1", "25-1.csv"))
	assert.Equal(t, []string{"B", "D", "G", "C", "F"}, names(top))
	assert.Equal(t, []string{"1", "B", "100", "50", "50.00%"}, top[1])
	assert.Equal(t, []string{"Y", "Z", "X"}, names(readOutput(t, filepath.Join(out, "2", "25-1.csv"))))
	assert.Equal(t, []string{"Q", "P"}, names(readOutput(t, filepath.Join(out, "3", "25-1.csv"))))

	_, err = e.Run(context.Background(), "25-2")
	require.NoError(t, err)
	bottom := readOutput(t, filepath.Join(out, "1", "25-2.csv"))
	assert.Equal(t, []string{"E", "A", "F", "C", "G"}, names(bottom))
	assert.Equal(t, "0.00%", bottom[1][4])
	last := readOutput(t, filepath.Join(out, "3", "25-2.csv"))
	assert.Equal(t, []string{"Q", "P"}, names(last))
	assert.Equal(t, "", last[2][4])
}

func TestEngine_ChainedRatioReadsPriorOutput(t *testing.T) {
	t.Parallel()

	raw, out := t.TempDir(), t.TempDir()
	writeCSV(t, filepath.Join(raw, FileFirstPurchaseMonth), "商店序號,月份,門市首購人數\n1,202502,50\n1,202501,100\n2,01,0\n")
	writeCSV(t, filepath.Join(raw, FileIntervalBind), "商店序號,總綁定,年度,月份\n1,10,2025,1\n1,20,2025,2\n1,99,2024,1\n2,5,2025,1\n")

	e := newTestEngine(t, raw, out, Builtins(Settings{CurrentYear: 2025, PreviousYear: 2024, TopN: 5})...)

	_, err := e.Run(context.Background(), "24-2-annual")
	require.ErrorIs(t, err, ErrMissingSource)

	_, err = e.Run(context.Background(), "24-2")
	require.NoError(t, err)
	monthly := readOutput(t, filepath.Join(out, "1", "24-2.csv"))
	assert.Equal(t, [][]string{
		{ColStoreID, ColMonth, ColFirstPurchase, ColBindCount, ColBindRate},
		{"1", "1", "100", "10", "10.00%"},
		{"1", "2", "50", "20", "40.00%"},
	}, monthly)

	_, err = e.Run(context.Background(), "24-2-annual")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "150", "30", "20.00%"}, readOutput(t, filepath.Join(out, "1", "24-2-annual.csv"))[1])
	assert.Equal(t, []string{"2", "0", "5", ""}, readOutput(t, filepath.Join(out, "2", "24-2-annual.csv"))[1])
}

func TestEngine_ChainedRatioWithBig5RawSources(t *testing.T) {
	t.Parallel()

	big5, err := csvio.LookupEncoding("big5")
	require.NoError(t, err)

	raw, out := t.TempDir(), t.TempDir()
	require.NoError(t, csvio.WriteFile(filepath.Join(raw, FileFirstPurchaseMonth), big5,
		[][]string{{"商店序號", "月份", "門市首購人數"}},
		[][]string{{"1", "202501", "100"}, {"1", "202502", "50"}}))
	require.NoError(t, csvio.WriteFile(filepath.Join(raw, FileIntervalBind), big5,
		[][]string{{"商店序號", "總綁定", "年度", "月份"}},
		[][]string{{"1", "10", "2025", "1"}, {"1", "20", "2025", "2"}}))

	reg, err := NewBuiltinRegistry(Settings{CurrentYear: 2025, PreviousYear: 2024, TopN: 5})
	require.NoError(t, err)
	aliases := parser.DefaultAliases()
	e, err := NewEngine(EngineOptions{
		Registry:  reg,
		RawDir:    raw,
		OutputDir: out,
		Encoding:  big5,
		Aliases:   aliases,
		Policy:    parser.IDPolicy{RequireNumeric: true, Reserved: aliases[parser.FieldStoreID]},
	}, nil)
	require.NoError(t, err)

	_, err = e.Run(context.Background(), "24-2")
	require.NoError(t, err)
	_, err = e.Run(context.Background(), "24-2-annual")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "150", "30", "20.00%"}, readOutput(t, filepath.Join(out, "1", "24-2-annual.csv"))[1])
}

func TestEngine_MonthlyYoYFillsTwelveMonths(t *testing.T) {
	t.Parallel()

	raw, out := t.TempDir(), t.TempDir()
	writeCSV(t, filepath.Join(raw, FileIntervalBind), "商店序號,總綁定,年度,月份\n7,30,2025,03\n7,20,2024,3\n7,4,2024,202405\n7,1,2023,1\n")

	e := newTestEngine(t, raw, out, Builtins(Settings{CurrentYear: 2025, PreviousYear: 2024, TopN: 5})...)
	_, err := e.Run(context.Background(), "23-2")
	require.NoError(t, err)

	rows := readOutput(t, filepath.Join(out, "7", "23-2.csv"))
	require.Len(t, rows, 13)
	assert.Equal(t, []string{ColStoreID, ColMonth, "2024年", "2025年", ColMonthlyYoY}, rows[0])
	assert.Equal(t, []string{"7", "1", "0", "0", ""}, rows[1])
	assert.Equal(t, []string{"7", "3", "20", "30", "50.00%"}, rows[3])
	assert.Equal(t, []string{"7", "5", "4", "0", "-100.00%"}, rows[5])
}

func TestEngine_MonthlyYoYIgnoresStoresWithoutValidMonths(t *testing.T) {
	t.Parallel()

	raw, out := t.TempDir(), t.TempDir()
	writeCSV(t, filepath.Join(raw, FileIntervalBind), "商店序號,總綁定,年度,月份\n7,30,2025,03\n8,5,2025,n/a\n8,6,2024,\n")

	e := newTestEngine(t, raw, out, Builtins(Settings{CurrentYear: 2025, PreviousYear: 2024, TopN: 5})...)
	res, err := e.Run(context.Background(), "23-2")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stores)

	require.Len(t, readOutput(t, filepath.Join(out, "7", "23-2.csv")), 13)
	_, err = os.Stat(filepath.Join(out, "8"))
	assert.True(t, os.IsNotExist(err), "store without a parseable month must not get rows")
}

func TestEngine_BindRateFromCumulativeAndMembers(t *testing.T) {
	t.Parallel()

	raw, out := t.TempDir(), t.TempDir()
	writeCSV(t, filepath.Join(raw, FileIntervalBind), "商店序號,總綁定,年度,月份\n1,10,2025,1\n2,10,2025,1\n")
	writeCSV(t, filepath.Join(raw, FileCumulativeBind), "商店序號,累計至今推薦人綁定人數\n1,25\n2,3\n")
	writeCSV(t, filepath.Join(raw, FileMemberGrowth), "商店序號,總會員數\n1,\"1,000\"\n2,0\n")

	e := newTestEngine(t, raw, out, Builtins(Settings{CurrentYear: 2025, PreviousYear: 2024, TopN: 5})...)
	_, err := e.Run(context.Background(), "24-1")
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "2.50%", "10", ""}, readOutput(t, filepath.Join(out, "1", "24-1.csv"))[1])
	assert.Equal(t, []string{"2", "", "10", ""}, readOutput(t, filepath.Join(out, "2", "24-1.csv"))[1])
}

func TestEngine_SimpleSumWithPeriodAllowList(t *testing.T) {
	t.Parallel()

	raw, out := t.TempDir(), t.TempDir()
	writeCSV(t, filepath.Join(raw, FileFirstPurchaseStore), "store_id,yyyymm,visit_count\n1,202401,3\n1,202412,4\n1,202501,100\n2,202406.0,1.5\n")

	e := newTestEngine(t, raw, out, Builtins(Settings{CurrentYear: 2025, PreviousYear: 2024, TopN: 5})...)
	res, err := e.Run(context.Background(), "visits-2024")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Stores)

	assert.Equal(t, []string{"1", "7"}, readOutput(t, filepath.Join(out, "1", "visit-total.csv"))[1])
	assert.Equal(t, []string{"2", "1.5"}, readOutput(t, filepath.Join(out, "2", "visit-total.csv"))[1])
}

func TestEngine_TingTestReadsPriorTree(t *testing.T) {
	t.Parallel()

	out := t.TempDir()
	testDir := filepath.Join(out, "ting-test")
	writeCSV(t, filepath.Join(out, "100", "region.csv"), "說明\n商店序號,總綁定,年度,月份\n100,3,2025,1\n")
	writeCSV(t, filepath.Join(out, "200", "region.csv"), "說明\n商店序號,年度,總綁定,月份\n200,2025,4,1\n")
	writeCSV(t, filepath.Join(out, "300", "other.csv"), "商店序號\n")

	reg, err := NewRegistry(regionReport())
	require.NoError(t, err)
	e, err := NewEngine(EngineOptions{
		Registry:    reg,
		RawDir:      filepath.Join(out, "does-not-exist"),
		SourceDir:   out,
		OutputDir:   testDir,
		Aliases:     parser.DefaultAliases(),
		Policy:      parser.IDPolicy{RequireNumeric: true},
		ExcludeDirs: []string{"ting-test"},
	}, nil)
	require.NoError(t, err)

	res, err := e.Run(context.Background(), "region")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Stores)
	assert.Equal(t, 1, res.HeaderOnly)

	assert.Equal(t, "3", readOutput(t, filepath.Join(testDir, "100", "region-yoy.csv"))[1][1])
	assert.Equal(t, "4", readOutput(t, filepath.Join(testDir, "200", "region-yoy.csv"))[1][1])
	assert.FileExists(t, filepath.Join(testDir, "300", "region-yoy.csv"))
	assert.NoFileExists(t, filepath.Join(out, "100", "region-yoy.csv"))
}
