package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
)

// Reader 带编码转换的 CSV 读取器
type Reader struct {
	file *os.File
	csv  *csv.Reader
}

// Open 打开 CSV 文件
func Open(path string, enc Encoding) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{file: f, csv: NewCSVReader(enc.decode(f))}, nil
}

// NewCSVReader 创建宽松的 csv.Reader：允许不规范引号和变长行
func NewCSVReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	return cr
}

// Read 读取一行
func (r *Reader) Read() ([]string, error) {
	return r.csv.Read()
}

// Close 关闭文件
func (r *Reader) Close() error {
	return r.file.Close()
}

// IsParseError 是否为可跳过的 CSV 语法错误（读取器可以继续读取下一行）
func IsParseError(err error) bool {
	var pe *csv.ParseError
	return errors.As(err, &pe)
}

// ReadAll 读取整个文件
func ReadAll(path string, enc Encoding) ([][]string, error) {
	r, err := Open(path, enc)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var rows [][]string
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("读取 %s 失败: %w", path, err)
		}
		rows = append(rows, row)
	}
}
