package report

import (
	"errors"
	"strings"

	"github.com/MakiDevelop/ting-data-etl/internal/parser"
)

// SimpleSum 按商店对一个数值列求和，可按期间白名单过滤
type SimpleSum struct {
	ReportKey    string
	Title        string
	Output       string
	Source       Source
	PeriodColumn string   // 为空时不过滤
	Periods      []string // 期间白名单，如 "202401"
	ValueColumn  string
}

func (r SimpleSum) Key() string         { return r.ReportKey }
func (r SimpleSum) Kind() Kind          { return KindSimpleSum }
func (r SimpleSum) Description() string { return r.Title }
func (r SimpleSum) OutputFile() string  { return r.Output }
func (r SimpleSum) Sources() []Source   { return []Source{r.Source} }

func (r SimpleSum) Columns() []string {
	return []string{ColStoreID, ColTotal}
}

func (r SimpleSum) Validate() error {
	if err := validateCommon(r.ReportKey, r.Output, r.Columns(), r.Sources()); err != nil {
		return err
	}
	if r.ValueColumn == "" {
		return errors.New("value column is required")
	}
	if r.PeriodColumn != "" && len(r.Periods) == 0 {
		return errors.New("period column set without periods")
	}
	return nil
}

func (r SimpleSum) build(in *inputs) (*output, error) {
	t, err := in.table(r.Source.Name)
	if err != nil {
		return nil, err
	}
	valueIdx, err := t.Column(r.ValueColumn)
	if err != nil {
		return nil, err
	}
	periodIdx := -1
	if r.PeriodColumn != "" {
		if periodIdx, err = t.Column(r.PeriodColumn); err != nil {
			return nil, err
		}
	}
	allowed := map[string]bool{}
	for _, p := range r.Periods {
		allowed[strings.TrimSpace(p)] = true
	}

	totals := sums{}
	err = in.each(t, func(store string, row []string) {
		if periodIdx >= 0 && !allowed[parser.NormalizeStoreID(cell(row, periodIdx))] {
			return
		}
		totals.add(store, cell(row, valueIdx))
	})
	if err != nil {
		return nil, err
	}

	out := newOutput()
	for store, total := range totals {
		out.add(store, []string{store, formatNumber(total)})
	}
	return out, nil
}
