package csvio

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
)

// Writer 带编码转换的 CSV 文件写入器
type Writer struct {
	file   *os.File
	closer io.Closer
	csv    *csv.Writer
}

// Create 创建（或截断）文件
func Create(path string, enc Encoding) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return newWriter(f, enc, true)
}

// Append 以追加方式打开文件，fresh 表示文件此前不存在或为空
func Append(path string, enc Encoding) (w *Writer, fresh bool, err error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, false, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, false, err
	}
	fresh = info.Size() == 0
	w, err = newWriter(f, enc, fresh)
	if err != nil {
		return nil, false, err
	}
	return w, fresh, nil
}

func newWriter(f *os.File, enc Encoding, fresh bool) (*Writer, error) {
	if fresh && enc.WritesBOM() {
		if _, err := f.Write(utf8BOM); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	out, closer := enc.encode(f)
	return &Writer{file: f, closer: closer, csv: csv.NewWriter(out)}, nil
}

// Write 写入一行
func (w *Writer) Write(row []string) error {
	return w.csv.Write(row)
}

// WriteAll 写入多行
func (w *Writer) WriteAll(rows [][]string) error {
	for _, row := range rows {
		if err := w.csv.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// Close 刷出缓冲并关闭文件
func (w *Writer) Close() error {
	w.csv.Flush()
	errs := []error{w.csv.Error()}
	if w.closer != nil {
		errs = append(errs, w.closer.Close())
	}
	errs = append(errs, w.file.Close())
	return errors.Join(errs...)
}

// WriteFile 写入完整文件：表头前的说明行、表头、数据行
func WriteFile(path string, enc Encoding, lines [][]string, rows [][]string) error {
	w, err := Create(path, enc)
	if err != nil {
		return err
	}
	if err := w.WriteAll(lines); err != nil {
		_ = w.Close()
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}
