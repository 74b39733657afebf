package report

import (
	"errors"
	"sort"
	"strings"

	"github.com/MakiDevelop/ting-data-etl/internal/parser"
)

// 视为缺失的门市名称
var missingNames = map[string]bool{"": true, "nan": true, "NaN": true, "NULL": true, "None": true}

// RankedShare 门市结构：每个门市的绑定人数 / 首购人数，按比率排序取前 N（或后 N）
// Base 的每一行是一个候选门市；Binds 按 (商店, 门市名称) 汇总今年的绑定人数后左连接
type RankedShare struct {
	ReportKey  string
	Title      string
	Output     string
	Base       Source
	BaseValue  string
	Binds      Source
	BindsValue string
	Year       int
	TopN       int
	Descending bool
}

func (r RankedShare) Key() string         { return r.ReportKey }
func (r RankedShare) Kind() Kind          { return KindRankedShare }
func (r RankedShare) Description() string { return r.Title }
func (r RankedShare) OutputFile() string  { return r.Output }
func (r RankedShare) Sources() []Source   { return []Source{r.Base, r.Binds} }

func (r RankedShare) Columns() []string {
	return []string{ColStoreID, ColStoreName, ColFirstPurchase, ColBindPeople, ColShare}
}

func (r RankedShare) Validate() error {
	if err := validateCommon(r.ReportKey, r.Output, r.Columns(), r.Sources()); err != nil {
		return err
	}
	if r.TopN <= 0 {
		return errors.New("top n must be positive")
	}
	if r.BaseValue == "" || r.BindsValue == "" {
		return errors.New("base and binds value columns are required")
	}
	if r.Year <= 0 {
		return errors.New("year is required")
	}
	return nil
}

type rankedCandidate struct {
	store string
	name  string
	base  string
	binds string
	ratio Ratio
}

func (r RankedShare) build(in *inputs) (*output, error) {
	binds, err := in.table(r.Binds.Name)
	if err != nil {
		return nil, err
	}
	bindIdx, err := binds.Columns(parser.FieldStoreName, parser.FieldYear, r.BindsValue)
	if err != nil {
		return nil, err
	}
	bindTotals := sums{}
	err = in.each(binds, func(store string, row []string) {
		name := strings.TrimSpace(cell(row, bindIdx[0]))
		if missingNames[name] {
			return
		}
		if year, ok := parser.ParseYear(cell(row, bindIdx[1])); !ok || year != r.Year {
			return
		}
		bindTotals.add(nameKey(store, name), cell(row, bindIdx[2]))
	})
	if err != nil {
		return nil, err
	}

	base, err := in.table(r.Base.Name)
	if err != nil {
		return nil, err
	}
	baseIdx, err := base.Columns(parser.FieldStoreName, r.BaseValue)
	if err != nil {
		return nil, err
	}

	candidates := map[string][]rankedCandidate{}
	err = in.each(base, func(store string, row []string) {
		name := strings.TrimSpace(cell(row, baseIdx[0]))
		if missingNames[name] {
			return
		}
		den := parser.NumberOrZero(cell(row, baseIdx[1]))
		num := bindTotals[nameKey(store, name)]
		candidates[store] = append(candidates[store], rankedCandidate{
			store: store,
			name:  name,
			base:  formatNumber(den),
			binds: formatNumber(num),
			ratio: Divide(num, den),
		})
	})
	if err != nil {
		return nil, err
	}

	out := newOutput()
	for store, list := range candidates {
		for _, c := range r.rank(list) {
			out.add(store, []string{c.store, c.name, c.base, c.binds, c.ratio.Percent()})
		}
	}
	return out, nil
}

// rank 稳定排序后取前 N，不足 N 行时原样返回
func (r RankedShare) rank(list []rankedCandidate) []rankedCandidate {
	sorted := append([]rankedCandidate(nil), list...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ratio.Less(sorted[j].ratio, r.Descending)
	})
	if len(sorted) > r.TopN {
		sorted = sorted[:r.TopN]
	}
	return sorted
}

func nameKey(store, name string) string {
	return store + "\x00" + name
}
