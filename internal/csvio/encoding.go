package csvio

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/transform"
)

// ErrUnknownEncoding 不支持的编码名称
var ErrUnknownEncoding = errors.New("unknown encoding")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Encoding CSV 文件编码
type Encoding struct {
	Name string
	enc  encoding.Encoding // nil 表示 UTF-8
	bom  bool              // 新建文件时写入 UTF-8 BOM（utf-8-sig）
}

// UTF8 默认编码
var UTF8 = Encoding{Name: "utf-8"}

// UTF8BOM 带 BOM 的 UTF-8，表格软件直接打开不乱码
var UTF8BOM = Encoding{Name: "utf-8-sig", bom: true}

// LookupEncoding 按名称查找编码
// 支持 utf-8 / utf-8-sig / big5 / cp950 / shift_jis / cp932 以及 WHATWG 标签
func LookupEncoding(name string) (Encoding, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.ReplaceAll(key, "_", "-")

	switch key {
	case "", "utf-8", "utf8":
		return UTF8, nil
	case "utf-8-sig", "utf8-sig":
		return UTF8BOM, nil
	case "big5", "cp950", "big5-hkscs":
		return Encoding{Name: key, enc: traditionalchinese.Big5}, nil
	case "shift-jis", "sjis", "cp932", "ms932":
		return Encoding{Name: key, enc: japanese.ShiftJIS}, nil
	}

	enc, err := htmlindex.Get(key)
	if err != nil {
		return Encoding{}, fmt.Errorf("%w: %s", ErrUnknownEncoding, name)
	}
	if canonical, err := htmlindex.Name(enc); err == nil && canonical == "utf-8" {
		return UTF8, nil
	}
	return Encoding{Name: key, enc: enc}, nil
}

// IsUTF8 是否为 UTF-8 系编码
func (e Encoding) IsUTF8() bool {
	return e.enc == nil
}

// WritesBOM 新建文件时是否写入 BOM
func (e Encoding) WritesBOM() bool {
	return e.bom
}

// String 编码名称
func (e Encoding) String() string {
	if e.Name == "" {
		return UTF8.Name
	}
	return e.Name
}

// decode 包装读取端：带 UTF-8 BOM 的文件一律按 UTF-8 读取，其他编码转为 UTF-8
func (e Encoding) decode(r io.Reader) io.Reader {
	br, hasBOM := sniffBOM(r)
	if e.enc == nil || hasBOM {
		return br
	}
	return transform.NewReader(br, e.enc.NewDecoder())
}

// encode 包装写入端，返回的 closer 负责刷出转换缓冲
func (e Encoding) encode(w io.Writer) (io.Writer, io.Closer) {
	if e.enc == nil {
		return w, nil
	}
	tw := transform.NewWriter(w, e.enc.NewEncoder())
	return tw, tw
}

// SkipBOM 跳过 UTF-8 BOM
func SkipBOM(r io.Reader) io.Reader {
	br, _ := sniffBOM(r)
	return br
}

// sniffBOM 检查并跳过开头的 UTF-8 BOM
func sniffBOM(r io.Reader) (io.Reader, bool) {
	br := bufio.NewReader(r)
	peeked, err := br.Peek(len(utf8BOM))
	if err != nil || !bytes.Equal(peeked, utf8BOM) {
		return br, false
	}
	_, _ = br.Discard(len(utf8BOM))
	return br, true
}
