package report

import (
	"errors"
	"sort"
	"strconv"

	"github.com/MakiDevelop/ting-data-etl/internal/parser"
)

// MonthlyRatio 每月绑定率：分子按今年的 (商店, 月份) 汇总，分母为同月首购人数
// 只输出分母源中出现过的 (商店, 月份)
type MonthlyRatio struct {
	ReportKey        string
	Title            string
	Output           string
	Denominator      Source
	DenominatorValue string
	Numerator        Source
	NumeratorValue   string
	Year             int // 分子的年度
}

func (r MonthlyRatio) Key() string         { return r.ReportKey }
func (r MonthlyRatio) Kind() Kind          { return KindMonthlyRatio }
func (r MonthlyRatio) Description() string { return r.Title }
func (r MonthlyRatio) OutputFile() string  { return r.Output }
func (r MonthlyRatio) Sources() []Source   { return []Source{r.Denominator, r.Numerator} }

func (r MonthlyRatio) Columns() []string {
	return []string{ColStoreID, ColMonth, ColFirstPurchase, ColBindCount, ColBindRate}
}

func (r MonthlyRatio) Validate() error {
	if err := validateCommon(r.ReportKey, r.Output, r.Columns(), r.Sources()); err != nil {
		return err
	}
	if r.DenominatorValue == "" || r.NumeratorValue == "" {
		return errors.New("numerator and denominator value columns are required")
	}
	if r.Year <= 0 {
		return errors.New("year is required")
	}
	return nil
}

func (r MonthlyRatio) build(in *inputs) (*output, error) {
	den, err := in.table(r.Denominator.Name)
	if err != nil {
		return nil, err
	}
	denIdx, err := den.Columns(parser.FieldMonth, r.DenominatorValue)
	if err != nil {
		return nil, err
	}

	num, err := in.table(r.Numerator.Name)
	if err != nil {
		return nil, err
	}
	numIdx, err := num.Columns(parser.FieldYear, parser.FieldMonth, r.NumeratorValue)
	if err != nil {
		return nil, err
	}

	type storeMonth struct {
		store string
		month int
	}
	var order []storeMonth
	denominators := sums{}
	err = in.each(den, func(store string, row []string) {
		month, ok := parser.ParseMonth(cell(row, denIdx[0]))
		if !ok {
			return
		}
		key := monthKey(store, month)
		if _, seen := denominators[key]; !seen {
			order = append(order, storeMonth{store, month})
		}
		denominators.add(key, cell(row, denIdx[1]))
	})
	if err != nil {
		return nil, err
	}

	numerators := sums{}
	err = in.each(num, func(store string, row []string) {
		year, ok := parser.ParseYear(cell(row, numIdx[0]))
		if !ok || year != r.Year {
			return
		}
		month, ok := parser.ParseMonth(cell(row, numIdx[1]))
		if !ok {
			return
		}
		numerators.add(monthKey(store, month), cell(row, numIdx[2]))
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(order, func(i, j int) bool { return order[i].month < order[j].month })

	out := newOutput()
	for _, sm := range order {
		key := monthKey(sm.store, sm.month)
		d, n := denominators[key], numerators[key]
		out.add(sm.store, []string{
			sm.store,
			strconv.Itoa(sm.month),
			formatNumber(d),
			formatNumber(n),
			Divide(n, d).Percent(),
		})
	}
	return out, nil
}

// ChainedRatio 读取之前报表的分店输出，按商店汇总分子与分母后重新计算比率
type ChainedRatio struct {
	ReportKey         string
	Title             string
	Output            string
	Prior             Source
	NumeratorColumn   string
	DenominatorColumn string
	RatioColumn       string
}

func (r ChainedRatio) Key() string         { return r.ReportKey }
func (r ChainedRatio) Kind() Kind          { return KindChainedRatio }
func (r ChainedRatio) Description() string { return r.Title }
func (r ChainedRatio) OutputFile() string  { return r.Output }
func (r ChainedRatio) Sources() []Source   { return []Source{r.Prior} }

func (r ChainedRatio) Columns() []string {
	return []string{ColStoreID, r.DenominatorColumn, r.NumeratorColumn, r.RatioColumn}
}

func (r ChainedRatio) Validate() error {
	if err := validateCommon(r.ReportKey, r.Output, r.Columns(), r.Sources()); err != nil {
		return err
	}
	if r.Prior.Kind != SourceReport {
		return errors.New("chained ratio must read a prior report output")
	}
	if r.NumeratorColumn == "" || r.DenominatorColumn == "" || r.RatioColumn == "" {
		return errors.New("numerator, denominator and ratio columns are required")
	}
	return nil
}

func (r ChainedRatio) build(in *inputs) (*output, error) {
	t, err := in.table(r.Prior.Name)
	if err != nil {
		return nil, err
	}
	idx, err := t.Columns(r.NumeratorColumn, r.DenominatorColumn)
	if err != nil {
		return nil, err
	}

	numerators, denominators := sums{}, sums{}
	err = in.each(t, func(store string, row []string) {
		numerators.add(store, cell(row, idx[0]))
		denominators.add(store, cell(row, idx[1]))
	})
	if err != nil {
		return nil, err
	}

	out := newOutput()
	for store, d := range denominators {
		n := numerators[store]
		out.add(store, []string{store, formatNumber(d), formatNumber(n), Divide(n, d).Percent()})
	}
	return out, nil
}
