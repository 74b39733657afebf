package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/MakiDevelop/ting-data-etl/internal/csvio"
	"github.com/MakiDevelop/ting-data-etl/internal/parser"
)

// AppConfig 应用配置
type AppConfig struct {
	Paths   PathsConfig   `toml:"paths"`
	CSV     CSVConfig     `toml:"csv"`
	Fanout  FanoutConfig  `toml:"fanout"`
	Aliases AliasConfig   `toml:"aliases"`
	Reports ReportsConfig `toml:"reports"`
	Server  ServerConfig  `toml:"server"`
	Log     LogConfig     `toml:"log"`
}

// PathsConfig 目录配置
type PathsConfig struct {
	InputDir      string   `toml:"input_dir"`
	AggregateDir  string   `toml:"aggregate_dir"`
	OutputDir     string   `toml:"output_dir"`
	TestOutputDir string   `toml:"test_output_dir"`
	ExportDir     string   `toml:"export_dir"`
	ExcludeDirs   []string `toml:"exclude_dirs"`
}

// CSVConfig 编码配置
type CSVConfig struct {
	Encoding       string `toml:"encoding"`        // 读取与分发写入
	ReportEncoding string `toml:"report_encoding"` // 报表输出
}

// FanoutConfig 分发配置
type FanoutConfig struct {
	RequireNumericID bool   `toml:"require_numeric_id"`
	WriteMode        string `toml:"write_mode"` // append / truncate
	MaxOpenFiles     int    `toml:"max_open_files"`
}

// AliasConfig 各逻辑字段的历史列名
type AliasConfig struct {
	StoreID   []string `toml:"store_id"`
	StoreName []string `toml:"store_name"`
	Year      []string `toml:"year"`
	Month     []string `toml:"month"`
}

// ReportsConfig 报表口径
type ReportsConfig struct {
	CurrentYear  int `toml:"current_year"`
	PreviousYear int `toml:"previous_year"`
	TopN         int `toml:"top_n"`
}

// ServerConfig 报表浏览服务配置
type ServerConfig struct {
	Port    int  `toml:"port"`
	DevMode bool `toml:"dev_mode"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level       string `toml:"level"`
	Development bool   `toml:"development"`
}

// LoadConfigInfo 配置加载元信息
type LoadConfigInfo struct {
	Path  string
	Found bool
}

// DefaultConfig 默认配置
func DefaultConfig() *AppConfig {
	aliases := parser.DefaultAliases()
	return &AppConfig{
		Paths: PathsConfig{
			InputDir:      "input",
			AggregateDir:  filepath.Join("input", "aggregate"),
			OutputDir:     "output",
			TestOutputDir: filepath.Join("output", "ting-test"),
			ExportDir:     "export",
			ExcludeDirs:   []string{"ting-test"},
		},
		CSV: CSVConfig{
			Encoding:       "utf-8",
			ReportEncoding: "utf-8-sig",
		},
		Fanout: FanoutConfig{
			RequireNumericID: true,
			WriteMode:        "append",
			MaxOpenFiles:     128,
		},
		Aliases: AliasConfig{
			StoreID:   aliases[parser.FieldStoreID],
			StoreName: aliases[parser.FieldStoreName],
			Year:      aliases[parser.FieldYear],
			Month:     aliases[parser.FieldMonth],
		},
		Reports: ReportsConfig{
			CurrentYear:  2025,
			PreviousYear: 2024,
			TopN:         5,
		},
		Server: ServerConfig{
			Port: 20262,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// GetExeDir 获取可执行文件所在目录
func GetExeDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Dir(exe), nil
}

// DefaultConfigPath 默认配置文件：可执行文件同目录下的 config.toml
func DefaultConfigPath() string {
	exeDir, err := GetExeDir()
	if err != nil {
		exeDir = "."
	}
	return filepath.Join(exeDir, "config.toml")
}

// LoadConfigWithInfo 加载配置并返回元信息；path 为空时使用默认位置，文件不存在时使用默认配置
func LoadConfigWithInfo(path string) (*AppConfig, LoadConfigInfo, error) {
	if path == "" {
		path = DefaultConfigPath()
	}
	info := LoadConfigInfo{Path: path}
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		info.Found = true
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, info, fmt.Errorf("解析 %s 失败: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, info, err
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, info, err
	}
	return cfg, info, nil
}

// LoadConfig 从默认位置加载配置
func LoadConfig() (*AppConfig, error) {
	cfg, _, err := LoadConfigWithInfo("")
	return cfg, err
}

// SaveConfig 保存配置
func SaveConfig(path string, cfg *AppConfig) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// 环境变量覆盖（用于脚本 / 本地运行）
func applyEnv(cfg *AppConfig) {
	if v := os.Getenv("TINGETL_INPUT_DIR"); v != "" {
		cfg.Paths.InputDir = v
	}
	if v := os.Getenv("TINGETL_AGGREGATE_DIR"); v != "" {
		cfg.Paths.AggregateDir = v
	}
	if v := os.Getenv("TINGETL_OUTPUT_DIR"); v != "" {
		cfg.Paths.OutputDir = v
	}
	if v := os.Getenv("TINGETL_ENCODING"); v != "" {
		cfg.CSV.Encoding = v
	}
}

// Validate 校验配置
func (c *AppConfig) Validate() error {
	if _, err := csvio.LookupEncoding(c.CSV.Encoding); err != nil {
		return fmt.Errorf("csv.encoding: %w", err)
	}
	if _, err := csvio.LookupEncoding(c.CSV.ReportEncoding); err != nil {
		return fmt.Errorf("csv.report_encoding: %w", err)
	}
	switch strings.ToLower(c.Fanout.WriteMode) {
	case "append", "truncate":
	default:
		return fmt.Errorf("fanout.write_mode 只能是 append 或 truncate: %q", c.Fanout.WriteMode)
	}
	if c.Fanout.MaxOpenFiles <= 0 {
		return fmt.Errorf("fanout.max_open_files 必须大于 0: %d", c.Fanout.MaxOpenFiles)
	}
	if len(c.Aliases.StoreID) == 0 {
		return errors.New("aliases.store_id 不能为空")
	}
	if c.Reports.TopN <= 0 {
		return fmt.Errorf("reports.top_n 必须大于 0: %d", c.Reports.TopN)
	}
	if c.Reports.CurrentYear <= c.Reports.PreviousYear {
		return fmt.Errorf("reports.current_year (%d) 必须大于 previous_year (%d)", c.Reports.CurrentYear, c.Reports.PreviousYear)
	}
	return nil
}

// AliasTable 转为解析器使用的别名表
func (c *AppConfig) AliasTable() parser.AliasTable {
	table := parser.DefaultAliases()
	if len(c.Aliases.StoreID) > 0 {
		table[parser.FieldStoreID] = c.Aliases.StoreID
	}
	if len(c.Aliases.StoreName) > 0 {
		table[parser.FieldStoreName] = c.Aliases.StoreName
	}
	if len(c.Aliases.Year) > 0 {
		table[parser.FieldYear] = c.Aliases.Year
	}
	if len(c.Aliases.Month) > 0 {
		table[parser.FieldMonth] = c.Aliases.Month
	}
	return table
}

// IDPolicy 商店序号校验策略
func (c *AppConfig) IDPolicy() parser.IDPolicy {
	return parser.IDPolicy{
		RequireNumeric: c.Fanout.RequireNumericID,
		Reserved:       c.Aliases.StoreID,
	}
}
