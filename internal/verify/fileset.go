package verify

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/MakiDevelop/ting-data-etl/internal/layout"
)

// maxListedStores 报告中最多列出的商店数
const maxListedStores = 10

// FileSetReport 文件集合校验结果
type FileSetReport struct {
	InputFiles []string            `json:"inputFiles"`
	Stores     int                 `json:"stores"`
	Missing    map[string][]string `json:"missing"`
	Extra      map[string][]string `json:"extra"`
}

// OK 文件集合完全一致的商店数
func (r *FileSetReport) OK() int {
	bad := map[string]bool{}
	for store := range r.Missing {
		bad[store] = true
	}
	for store := range r.Extra {
		bad[store] = true
	}
	return r.Stores - len(bad)
}

// Failed 是否存在缺失或多余文件
func (r *FileSetReport) Failed() bool {
	return len(r.Missing) > 0 || len(r.Extra) > 0
}

// CheckFileSets 对每个商店目录计算 missing = 输入 - 商店，extra = 商店 - 输入
func CheckFileSets(inputDir string, tree layout.Tree) (*FileSetReport, error) {
	inputs, err := layout.ListCSV(inputDir)
	if err != nil {
		return nil, fmt.Errorf("读取输入目录失败: %w", err)
	}
	stores, err := tree.Stores()
	if err != nil {
		return nil, fmt.Errorf("读取输出目录失败: %w", err)
	}

	report := &FileSetReport{
		InputFiles: inputs,
		Stores:     len(stores),
		Missing:    map[string][]string{},
		Extra:      map[string][]string{},
	}
	expected := toSet(inputs)
	for _, store := range stores {
		files, err := tree.StoreFiles(store)
		if err != nil {
			return nil, err
		}
		actual := toSet(files)
		if missing := difference(inputs, actual); len(missing) > 0 {
			report.Missing[store] = missing
		}
		if extra := difference(files, expected); len(extra) > 0 {
			report.Extra[store] = extra
		}
	}
	return report, nil
}

// Write 输出文本报告
func (r *FileSetReport) Write(w io.Writer) {
	fmt.Fprintln(w, "== File Set Check ==")
	fmt.Fprintf(w, "stores: %d\n", r.Stores)
	fmt.Fprintf(w, "stores ok: %d\n", r.OK())
	fmt.Fprintf(w, "stores missing files: %d\n", len(r.Missing))
	fmt.Fprintf(w, "stores extra files: %d\n", len(r.Extra))
	if len(r.Missing) > 0 {
		fmt.Fprintf(w, "-- Missing files (up to %d stores) --\n", maxListedStores)
		writeStoreFiles(w, r.Missing)
	}
	if len(r.Extra) > 0 {
		fmt.Fprintf(w, "-- Extra files (up to %d stores) --\n", maxListedStores)
		writeStoreFiles(w, r.Extra)
	}
	fmt.Fprintf(w, "input files: %d\n", len(r.InputFiles))
}

func writeStoreFiles(w io.Writer, byStore map[string][]string) {
	stores := make([]string, 0, len(byStore))
	for store := range byStore {
		stores = append(stores, store)
	}
	sort.Strings(stores)
	if len(stores) > maxListedStores {
		stores = stores[:maxListedStores]
	}
	for _, store := range stores {
		fmt.Fprintf(w, "%s: %s\n", store, strings.Join(byStore[store], ", "))
	}
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}

// difference 保持 items 的顺序（已排序）
func difference(items []string, exclude map[string]bool) []string {
	var out []string
	for _, item := range items {
		if !exclude[item] {
			out = append(out, item)
		}
	}
	return out
}
