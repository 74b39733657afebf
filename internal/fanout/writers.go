package fanout

import (
	"errors"

	"github.com/MakiDevelop/ting-data-etl/internal/csvio"
)

// writerCache 单个输入文件处理期间打开的分店文件，数量有上限
// 达到上限时整体关闭，之后按需以追加方式重新打开
type writerCache struct {
	limit   int
	writers map[string]*csvio.Writer
}

func newWriterCache(limit int) *writerCache {
	return &writerCache{limit: limit, writers: map[string]*csvio.Writer{}}
}

func (c *writerCache) get(path string) (*csvio.Writer, bool) {
	w, ok := c.writers[path]
	return w, ok
}

func (c *writerCache) put(path string, w *csvio.Writer) {
	c.writers[path] = w
}

func (c *writerCache) full() bool {
	return len(c.writers) >= c.limit
}

// closeAll 关闭全部文件，可重复调用
func (c *writerCache) closeAll() error {
	var errs []error
	for path, w := range c.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(c.writers, path)
	}
	return errors.Join(errs...)
}
