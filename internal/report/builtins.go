package report

import "fmt"

// 原始导出文件
const (
	FileIntervalBind       = "區間綁定推薦人人數.csv"
	FileCumulativeBind     = "累計至今綁定推薦人人數.csv"
	FileMemberGrowth       = "14-1.會員成長趨勢_新增註冊會員數卡片.csv"
	FileFirstPurchaseMonth = "門市首購人數_月份.csv"
	FileFirstPurchaseStore = "門市首購人數_門市.csv"
	FileStoreBinds         = "各門市累計綁定人數.csv"
)

// Builtins 内置报表
func Builtins(s Settings) []Report {
	interval := Raw("interval", FileIntervalBind)
	cumulative := Raw("cumulative", FileCumulativeBind)
	members := Raw("members", FileMemberGrowth)

	months := make([]string, 0, 12)
	for m := 1; m <= 12; m++ {
		months = append(months, fmt.Sprintf("%d%02d", s.PreviousYear, m))
	}

	return []Report{
		YoYSummary{
			ReportKey:     "23-1",
			Title:         fmt.Sprintf("區間推薦人綁定人數（%d 年 1-12 月）、YoY 與推薦人綁定率", s.CurrentYear),
			Output:        "23-1.csv",
			Interval:      interval,
			IntervalValue: "總綁定",
			Cumulative:    &cumulative,
			CumulativeCol: "累計至今推薦人綁定人數",
			Members:       &members,
			MembersCol:    "總會員數",
			CurrentYear:   s.CurrentYear,
			PreviousYear:  s.PreviousYear,
			MonthFilter:   true,
			Layout:        []string{ColStoreID, ColIntervalBind, ColIntervalYoY, ColBindRate},
		},
		MonthlyYoY{
			ReportKey:     "23-2",
			Title:         fmt.Sprintf("推薦人新綁定數月度 YoY（%d vs %d）", s.CurrentYear, s.PreviousYear),
			Output:        "23-2.csv",
			Interval:      interval,
			IntervalValue: "總綁定",
			CurrentYear:   s.CurrentYear,
			PreviousYear:  s.PreviousYear,
		},
		YoYSummary{
			ReportKey:     "24-1",
			Title:         "推薦人綁定率、區間推薦人綁定人數與 YoY",
			Output:        "24-1.csv",
			Interval:      interval,
			IntervalValue: "總綁定",
			Cumulative:    &cumulative,
			CumulativeCol: "累計至今推薦人綁定人數",
			Members:       &members,
			MembersCol:    "總會員數",
			CurrentYear:   s.CurrentYear,
			PreviousYear:  s.PreviousYear,
			Layout:        []string{ColStoreID, ColBindRate, ColIntervalBind, ColIntervalYoY},
		},
		MonthlyRatio{
			ReportKey:        "24-2",
			Title:            fmt.Sprintf("每月推薦人綁定率（%d）", s.CurrentYear),
			Output:           "24-2.csv",
			Denominator:      Raw("first_purchase", FileFirstPurchaseMonth),
			DenominatorValue: ColFirstPurchase,
			Numerator:        interval,
			NumeratorValue:   "總綁定",
			Year:             s.CurrentYear,
		},
		ChainedRatio{
			ReportKey:         "24-2-annual",
			Title:             "全年推薦人綁定率（彙總 24-2）",
			Output:            "24-2-annual.csv",
			Prior:             Prior("monthly", "24-2.csv"),
			NumeratorColumn:   ColBindCount,
			DenominatorColumn: ColFirstPurchase,
			RatioColumn:       ColBindRate,
		},
		RankedShare{
			ReportKey:  "25-1",
			Title:      fmt.Sprintf("門市結構 Top %d（推薦人綁定人數 / 門市首購人數）", s.TopN),
			Output:     "25-1.csv",
			Base:       Raw("stores", FileFirstPurchaseStore),
			BaseValue:  ColFirstPurchase,
			Binds:      Raw("binds", FileStoreBinds),
			BindsValue: "總綁定數",
			Year:       s.CurrentYear,
			TopN:       s.TopN,
			Descending: true,
		},
		RankedShare{
			ReportKey:  "25-2",
			Title:      fmt.Sprintf("門市結構 Bottom %d（推薦人綁定人數 / 門市首購人數）", s.TopN),
			Output:     "25-2.csv",
			Base:       Raw("stores", FileFirstPurchaseStore),
			BaseValue:  ColFirstPurchase,
			Binds:      Raw("binds", FileStoreBinds),
			BindsValue: "總綁定數",
			Year:       s.CurrentYear,
			TopN:       s.TopN,
		},
		SimpleSum{
			ReportKey:    fmt.Sprintf("visits-%d", s.PreviousYear),
			Title:        fmt.Sprintf("%d 全年拜訪次數", s.PreviousYear),
			Output:       "visit-total.csv",
			Source:       Raw("visits", FileFirstPurchaseStore),
			PeriodColumn: "yyyymm",
			Periods:      months,
			ValueColumn:  "visit_count",
		},
	}
}

// NewBuiltinRegistry 注册内置报表
func NewBuiltinRegistry(s Settings) (*Registry, error) {
	return NewRegistry(Builtins(s)...)
}
