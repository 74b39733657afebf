package layout

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// EnsureDir 确保目录存在
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// FileExists 文件是否存在
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// IsEmptyOrMissing 文件不存在或长度为 0
func IsEmptyOrMissing(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return true
	}
	return info.Size() == 0
}

// IsCSV 文件名是否以 .csv 结尾（不区分大小写）
func IsCSV(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".csv")
}

// ListCSV 列出目录下的 CSV 文件名（不递归），按名称排序
func ListCSV(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !IsCSV(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// CountFiles 统计目录下直接包含的普通文件数
func CountFiles(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			n++
		}
	}
	return n, nil
}

// SafeName 判断路径片段是否为单层名称（防止 ../ 穿越）
func SafeName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return filepath.Base(name) == name && !strings.ContainsAny(name, `/\`)
}

// WriteJSONAtomic 先写临时文件再改名，读者不会看到写了一半的内容
func WriteJSONAtomic(path string, v interface{}) error {
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
