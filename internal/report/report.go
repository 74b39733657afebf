package report

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrUnknownReport 报表 key 未注册
	ErrUnknownReport = errors.New("unknown report")
	// ErrMissingSource 报表所需的源文件不存在
	ErrMissingSource = errors.New("missing source file")
	// ErrInvalidReport 报表定义不合法（启动时校验）
	ErrInvalidReport = errors.New("invalid report definition")
)

// 输出列名
const (
	ColStoreID        = "商店序號"
	ColStoreName      = "門市名稱"
	ColMonth          = "月份"
	ColIntervalBind   = "區間推薦人綁定人數"
	ColIntervalYoY    = "區間推薦人綁定人數 YoY"
	ColBindRate       = "推薦人綁定率"
	ColMonthlyYoY     = "推薦人新綁定數 YoY"
	ColFirstPurchase  = "門市首購人數"
	ColBindCount      = "推薦人綁定數"
	ColBindPeople     = "推薦人綁定人數"
	ColShare          = "佔比"
	ColTotal          = "total"
	yearColumnPattern = "%d年"
)

// Kind 报表类型
type Kind string

const (
	KindSimpleSum    Kind = "simple-sum"
	KindYoYSummary   Kind = "yoy-summary"
	KindMonthlyYoY   Kind = "monthly-yoy"
	KindMonthlyRatio Kind = "monthly-ratio"
	KindChainedRatio Kind = "chained-ratio"
	KindRankedShare  Kind = "ranked-share"
)

// SourceKind 源文件位置
type SourceKind string

const (
	// SourceRaw 聚合输入目录下的原始导出
	SourceRaw SourceKind = "raw"
	// SourceReport 之前报表写入输出目录树的结果
	SourceReport SourceKind = "report"
)

// Source 报表的一个输入
type Source struct {
	Name string     `json:"name"`
	Kind SourceKind `json:"kind"`
	File string     `json:"file"`
}

// Raw 原始导出源
func Raw(name, file string) Source {
	return Source{Name: name, Kind: SourceRaw, File: file}
}

// Prior 之前报表的输出
func Prior(name, file string) Source {
	return Source{Name: name, Kind: SourceReport, File: file}
}

// Report 报表定义，只能由本包中的类型实现
type Report interface {
	Key() string
	Kind() Kind
	Description() string
	OutputFile() string
	Columns() []string
	Sources() []Source
	Validate() error

	build(in *inputs) (*output, error)
}

// Settings 内置报表的年度口径
type Settings struct {
	CurrentYear  int
	PreviousYear int
	TopN         int
}

// Registry 已注册的报表集合
type Registry struct {
	reports []Report
	byKey   map[string]Report
}

// NewRegistry 注册并校验报表：key 唯一、定义合法、链式输入必须由某个已注册报表产出
func NewRegistry(reports ...Report) (*Registry, error) {
	r := &Registry{byKey: map[string]Report{}}
	outputs := map[string]string{}
	for _, rep := range reports {
		key := rep.Key()
		if strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("%w: empty key", ErrInvalidReport)
		}
		if _, dup := r.byKey[key]; dup {
			return nil, fmt.Errorf("%w: duplicate key %s", ErrInvalidReport, key)
		}
		if err := rep.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidReport, key, err)
		}
		if other, dup := outputs[rep.OutputFile()]; dup {
			return nil, fmt.Errorf("%w: %s and %s both write %s", ErrInvalidReport, other, key, rep.OutputFile())
		}
		outputs[rep.OutputFile()] = key
		r.byKey[key] = rep
		r.reports = append(r.reports, rep)
	}

	for _, rep := range r.reports {
		for _, src := range rep.Sources() {
			if src.Kind != SourceReport {
				continue
			}
			producer, ok := outputs[src.File]
			if !ok {
				return nil, fmt.Errorf("%w: %s reads %s which no report produces", ErrInvalidReport, rep.Key(), src.File)
			}
			if producer == rep.Key() {
				return nil, fmt.Errorf("%w: %s reads its own output", ErrInvalidReport, rep.Key())
			}
		}
	}
	return r, nil
}

// Lookup 按 key 查找报表
func (r *Registry) Lookup(key string) (Report, error) {
	rep, ok := r.byKey[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s (available: %s)", ErrUnknownReport, key, strings.Join(r.Keys(), ", "))
	}
	return rep, nil
}

// List 按注册顺序返回报表
func (r *Registry) List() []Report {
	out := make([]Report, len(r.reports))
	copy(out, r.reports)
	return out
}

// Keys 已注册的 key
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.reports))
	for _, rep := range r.reports {
		keys = append(keys, rep.Key())
	}
	return keys
}

// SourceFiles 所有报表用到的原始源文件（去重排序）
func (r *Registry) SourceFiles() []string {
	seen := map[string]bool{}
	var files []string
	for _, rep := range r.reports {
		for _, src := range rep.Sources() {
			if src.Kind != SourceRaw || seen[src.File] {
				continue
			}
			seen[src.File] = true
			files = append(files, src.File)
		}
	}
	sort.Strings(files)
	return files
}

// validateCommon 所有报表共有的校验
func validateCommon(key, outputFile string, columns []string, sources []Source) error {
	if key == "" {
		return errors.New("key is required")
	}
	if outputFile == "" || !strings.HasSuffix(strings.ToLower(outputFile), ".csv") {
		return fmt.Errorf("output file must be a .csv name: %q", outputFile)
	}
	if len(columns) == 0 || columns[0] != ColStoreID {
		return fmt.Errorf("first output column must be %s", ColStoreID)
	}
	seen := map[string]bool{}
	for _, col := range columns {
		if seen[col] {
			return fmt.Errorf("duplicate output column %s", col)
		}
		seen[col] = true
	}
	if len(sources) == 0 {
		return errors.New("at least one source is required")
	}
	names := map[string]bool{}
	for _, src := range sources {
		if src.Name == "" || src.File == "" {
			return fmt.Errorf("source name and file are required: %+v", src)
		}
		if names[src.Name] {
			return fmt.Errorf("duplicate source name %s", src.Name)
		}
		names[src.Name] = true
	}
	return nil
}

func yearColumn(year int) string {
	return fmt.Sprintf(yearColumnPattern, year)
}

// Consumers 使用某个原始源文件的报表 key
func (r *Registry) Consumers(file string) []string {
	var keys []string
	for _, rep := range r.reports {
		for _, src := range rep.Sources() {
			if src.Kind == SourceRaw && src.File == file {
				keys = append(keys, rep.Key())
				break
			}
		}
	}
	return keys
}
