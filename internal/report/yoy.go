package report

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/MakiDevelop/ting-data-etl/internal/parser"
)

// YoYSummary 区间绑定人数、同比与绑定率卡片
// Interval 按年度（可选再按月份 1-12）汇总今年与去年；
// 绑定率 = 累计绑定人数 / 总会员数，两者任一未配置时该列留空
type YoYSummary struct {
	ReportKey     string
	Title         string
	Output        string
	Interval      Source
	IntervalValue string
	Cumulative    *Source
	CumulativeCol string
	Members       *Source
	MembersCol    string
	CurrentYear   int
	PreviousYear  int
	MonthFilter   bool     // 只统计月份可解析为 1-12 的行
	Layout        []string // 输出列顺序，取自 ColStoreID / ColIntervalBind / ColIntervalYoY / ColBindRate
}

func (r YoYSummary) Key() string         { return r.ReportKey }
func (r YoYSummary) Kind() Kind          { return KindYoYSummary }
func (r YoYSummary) Description() string { return r.Title }
func (r YoYSummary) OutputFile() string  { return r.Output }

func (r YoYSummary) Columns() []string {
	if len(r.Layout) > 0 {
		return append([]string(nil), r.Layout...)
	}
	return []string{ColStoreID, ColIntervalBind, ColIntervalYoY, ColBindRate}
}

func (r YoYSummary) Sources() []Source {
	sources := []Source{r.Interval}
	if r.Cumulative != nil {
		sources = append(sources, *r.Cumulative)
	}
	if r.Members != nil {
		sources = append(sources, *r.Members)
	}
	return sources
}

func (r YoYSummary) Validate() error {
	if err := validateCommon(r.ReportKey, r.Output, r.Columns(), r.Sources()); err != nil {
		return err
	}
	if r.IntervalValue == "" {
		return errors.New("interval value column is required")
	}
	if r.CurrentYear <= r.PreviousYear {
		return fmt.Errorf("current year %d must be after previous year %d", r.CurrentYear, r.PreviousYear)
	}
	if (r.Cumulative == nil) != (r.Members == nil) {
		return errors.New("cumulative and members sources must be set together")
	}
	if r.Cumulative != nil && (r.CumulativeCol == "" || r.MembersCol == "") {
		return errors.New("cumulative and members value columns are required")
	}
	for _, col := range r.Columns() {
		switch col {
		case ColStoreID, ColIntervalBind, ColIntervalYoY, ColBindRate:
		default:
			return fmt.Errorf("unsupported column %s", col)
		}
	}
	return nil
}

func (r YoYSummary) build(in *inputs) (*output, error) {
	t, err := in.table(r.Interval.Name)
	if err != nil {
		return nil, err
	}
	idx, err := t.Columns(parser.FieldYear, r.IntervalValue)
	if err != nil {
		return nil, err
	}
	yearIdx, valueIdx := idx[0], idx[1]
	monthIdx := -1
	if r.MonthFilter {
		if monthIdx, err = t.Column(parser.FieldMonth); err != nil {
			return nil, err
		}
	}

	cur, prev := sums{}, sums{}
	err = in.each(t, func(store string, row []string) {
		if monthIdx >= 0 {
			if _, ok := parser.ParseMonth(cell(row, monthIdx)); !ok {
				return
			}
		}
		year, ok := parser.ParseYear(cell(row, yearIdx))
		if !ok {
			return
		}
		switch year {
		case r.CurrentYear:
			cur.add(store, cell(row, valueIdx))
		case r.PreviousYear:
			prev.add(store, cell(row, valueIdx))
		}
	})
	if err != nil {
		return nil, err
	}

	var cumulative, members sums
	if r.Cumulative != nil {
		if cumulative, err = r.sumBy(in, r.Cumulative.Name, r.CumulativeCol); err != nil {
			return nil, err
		}
		if members, err = r.sumBy(in, r.Members.Name, r.MembersCol); err != nil {
			return nil, err
		}
	}

	out := newOutput()
	columns := r.Columns()
	for store, total := range cur {
		prevTotal, prevOK := prev.get(store)
		values := map[string]string{
			ColStoreID:      store,
			ColIntervalBind: formatNumber(total),
			ColIntervalYoY:  Growth(total, prevTotal, prevOK).Percent(),
		}
		if cumulative != nil {
			values[ColBindRate] = Divide(cumulative[store], members[store]).Percent()
		}
		row := make([]string, len(columns))
		for i, col := range columns {
			row[i] = values[col]
		}
		out.add(store, row)
	}
	return out, nil
}

func (r YoYSummary) sumBy(in *inputs, source, column string) (sums, error) {
	t, err := in.table(source)
	if err != nil {
		return nil, err
	}
	idx, err := t.Column(column)
	if err != nil {
		return nil, err
	}
	totals := sums{}
	err = in.each(t, func(store string, row []string) {
		totals.add(store, cell(row, idx))
	})
	return totals, err
}

// MonthlyYoY 每个商店 1-12 月的去年/今年绑定数与同比，缺月补 0
type MonthlyYoY struct {
	ReportKey     string
	Title         string
	Output        string
	Interval      Source
	IntervalValue string
	CurrentYear   int
	PreviousYear  int
}

func (r MonthlyYoY) Key() string         { return r.ReportKey }
func (r MonthlyYoY) Kind() Kind          { return KindMonthlyYoY }
func (r MonthlyYoY) Description() string { return r.Title }
func (r MonthlyYoY) OutputFile() string  { return r.Output }
func (r MonthlyYoY) Sources() []Source   { return []Source{r.Interval} }

func (r MonthlyYoY) Columns() []string {
	return []string{ColStoreID, ColMonth, yearColumn(r.PreviousYear), yearColumn(r.CurrentYear), ColMonthlyYoY}
}

func (r MonthlyYoY) Validate() error {
	if err := validateCommon(r.ReportKey, r.Output, r.Columns(), r.Sources()); err != nil {
		return err
	}
	if r.IntervalValue == "" {
		return errors.New("interval value column is required")
	}
	if r.CurrentYear <= r.PreviousYear {
		return fmt.Errorf("current year %d must be after previous year %d", r.CurrentYear, r.PreviousYear)
	}
	return nil
}

func (r MonthlyYoY) build(in *inputs) (*output, error) {
	t, err := in.table(r.Interval.Name)
	if err != nil {
		return nil, err
	}
	idx, err := t.Columns(parser.FieldYear, parser.FieldMonth, r.IntervalValue)
	if err != nil {
		return nil, err
	}
	yearIdx, monthIdx, valueIdx := idx[0], idx[1], idx[2]

	stores := map[string]bool{}
	cur, prev := sums{}, sums{}
	err = in.each(t, func(store string, row []string) {
		year, ok := parser.ParseYear(cell(row, yearIdx))
		if !ok || (year != r.CurrentYear && year != r.PreviousYear) {
			return
		}
		month, ok := parser.ParseMonth(cell(row, monthIdx))
		if !ok {
			return
		}
		stores[store] = true
		key := monthKey(store, month)
		if year == r.CurrentYear {
			cur.add(key, cell(row, valueIdx))
		} else {
			prev.add(key, cell(row, valueIdx))
		}
	})
	if err != nil {
		return nil, err
	}

	out := newOutput()
	for store := range stores {
		for month := 1; month <= 12; month++ {
			key := monthKey(store, month)
			c, p := cur[key], prev[key]
			out.add(store, []string{
				store,
				strconv.Itoa(month),
				formatNumber(p),
				formatNumber(c),
				Divide(c.Sub(p), p).Percent(),
			})
		}
	}
	return out, nil
}

func monthKey(store string, month int) string {
	return store + "\x00" + strconv.Itoa(month)
}
