package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/MakiDevelop/ting-data-etl/internal/csvio"
	"github.com/MakiDevelop/ting-data-etl/internal/layout"
	"github.com/MakiDevelop/ting-data-etl/internal/parser"
	"github.com/MakiDevelop/ting-data-etl/internal/report"
	"github.com/MakiDevelop/ting-data-etl/internal/verify"
)

type storeFile struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

type fileContent struct {
	Store    string     `json:"store"`
	Name     string     `json:"name"`
	Preamble [][]string `json:"preamble"`
	Header   []string   `json:"header"`
	Rows     [][]string `json:"rows"`
}

type reportInfo struct {
	Key         string          `json:"key"`
	Kind        report.Kind     `json:"kind"`
	Description string          `json:"description"`
	OutputFile  string          `json:"outputFile"`
	Columns     []string        `json:"columns"`
	Sources     []report.Source `json:"sources"`
}

// ListStores 商店列表
// GET /api/stores
func (s *Server) ListStores(c *gin.Context) {
	stores, err := s.tree.Stores()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if stores == nil {
		stores = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"items": stores, "total": len(stores)})
}

// ListFiles 商店目录下的 CSV
// GET /api/stores/:id/files
func (s *Server) ListFiles(c *gin.Context) {
	store, ok := s.storeParam(c)
	if !ok {
		return
	}
	names, err := s.tree.StoreFiles(store)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	items := make([]storeFile, 0, len(names))
	for _, name := range names {
		item := storeFile{Name: name}
		if info, err := os.Stat(s.tree.FilePath(store, name)); err == nil {
			item.Size = info.Size()
		}
		items = append(items, item)
	}
	c.JSON(http.StatusOK, gin.H{"store": store, "items": items, "total": len(items)})
}

// GetFile 读取分店文件：说明行、表头、数据行分开返回
// GET /api/stores/:id/files/:name
func (s *Server) GetFile(c *gin.Context) {
	store, ok := s.storeParam(c)
	if !ok {
		return
	}
	name := c.Param("name")
	if !layout.SafeName(name) || !layout.IsCSV(name) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file name"})
		return
	}
	path := s.tree.FilePath(store, name)
	if !layout.FileExists(path) {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("%s/%s not found", store, name)})
		return
	}

	content, err := s.readFile(store, name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, content)
}

func (s *Server) readFile(store, name string) (*fileContent, error) {
	r, err := csvio.Open(s.tree.FilePath(store, name), s.encoding)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	out := &fileContent{Store: store, Name: name, Preamble: [][]string{}, Rows: [][]string{}}
	header, err := parser.LocateHeader(r, s.aliases)
	if errors.Is(err, parser.ErrHeaderNotFound) {
		// 没有表头：整份文件都作为说明行返回
		rows, err := csvio.ReadAll(s.tree.FilePath(store, name), s.encoding)
		if err != nil {
			return nil, err
		}
		if rows != nil {
			out.Preamble = rows
		}
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	if header.Preamble != nil {
		out.Preamble = header.Preamble
	}
	out.Header = header.Row

	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			if csvio.IsParseError(err) {
				continue
			}
			return nil, err
		}
		out.Rows = append(out.Rows, row)
	}
}

// DownloadWorkbook 下载商店工作簿（每个 CSV 一个工作表）
// GET /api/stores/:id/workbook
func (s *Server) DownloadWorkbook(c *gin.Context) {
	store, ok := s.storeParam(c)
	if !ok {
		return
	}
	f, _, err := s.exporter.BuildWorkbook(store)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "生成工作簿失败: " + err.Error()})
		return
	}
	defer f.Close()

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", store+".xlsx"))
	if err := f.Write(c.Writer); err != nil {
		s.logger.Sugar().Warnw("写出工作簿失败", "store", store, "error", err)
	}
}

// ListReports 报表目录
// GET /api/reports
func (s *Server) ListReports(c *gin.Context) {
	list := s.registry.List()
	items := make([]reportInfo, 0, len(list))
	for _, r := range list {
		items = append(items, reportInfo{
			Key:         r.Key(),
			Kind:        r.Kind(),
			Description: r.Description(),
			OutputFile:  r.OutputFile(),
			Columns:     r.Columns(),
			Sources:     r.Sources(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": len(items)})
}

// Verify 对输出目录执行内容校验
// GET /api/verify
func (s *Server) Verify(c *gin.Context) {
	checker := &verify.ContentChecker{
		Tree:     s.tree,
		Encoding: s.encoding,
		Aliases:  s.aliases,
		Logger:   s.logger,
	}
	rep, err := checker.Check(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": !rep.Failed(), "report": rep})
}

func (s *Server) storeParam(c *gin.Context) (string, bool) {
	store := c.Param("id")
	if !layout.SafeName(store) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid store id"})
		return "", false
	}
	info, err := os.Stat(s.tree.StoreDir(store))
	if err != nil || !info.IsDir() {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("store %s not found", store)})
		return "", false
	}
	return store, true
}
