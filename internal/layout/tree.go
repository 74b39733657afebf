package layout

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Tree 按商店序号分区的输出目录：{Root}/{storeId}/{filename}
type Tree struct {
	Root    string
	exclude map[string]bool
}

// NewTree 创建目录树；exclude 中的目录名（如 ting-test）不属于商店集合
func NewTree(root string, exclude ...string) Tree {
	t := Tree{Root: root, exclude: map[string]bool{}}
	for _, name := range exclude {
		name = strings.TrimSpace(name)
		if name != "" {
			t.exclude[name] = true
		}
	}
	return t
}

// StoreDir 商店目录
func (t Tree) StoreDir(storeID string) string {
	return filepath.Join(t.Root, storeID)
}

// FilePath 商店下的文件路径
func (t Tree) FilePath(storeID, name string) string {
	return filepath.Join(t.Root, storeID, name)
}

// EnsureStore 确保商店目录存在
func (t Tree) EnsureStore(storeID string) (string, error) {
	dir := t.StoreDir(storeID)
	if err := EnsureDir(dir); err != nil {
		return "", err
	}
	return dir, nil
}

// Stores 当前已存在的商店集合（排序）；根目录不存在时返回空集合
func (t Tree) Stores() ([]string, error) {
	entries, err := os.ReadDir(t.Root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var stores []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") || t.exclude[name] {
			continue
		}
		stores = append(stores, name)
	}
	sort.Strings(stores)
	return stores, nil
}

// StoreFiles 商店目录下的 CSV 文件名
func (t Tree) StoreFiles(storeID string) ([]string, error) {
	return ListCSV(t.StoreDir(storeID))
}
