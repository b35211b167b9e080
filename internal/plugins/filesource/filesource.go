// 包 filesource：分隔文本文件数据源（首行列名、次行列类型、其余为数据行）
package filesource

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"geodata/internal/dataset"
	"geodata/internal/plugins"
)

const (
	Name      = "File Reader"
	FilePath  = "File Path"
	Delimiter = "Delimiter"
)

// Source：文件数据源；baseDir 非空时路径按其解析且不得越界
type Source struct {
	baseDir string
}

func New(baseDir string) *Source { return &Source{baseDir: baseDir} }

func (s *Source) Name() string { return Name }

func (s *Source) InputSpec() []plugins.InputConfig {
	return []plugins.InputConfig{
		plugins.NewInput(FilePath, plugins.Text, nil),
		plugins.NewInput(Delimiter, plugins.Text, nil),
	}
}

func (s *Source) resolve(p string) (string, error) {
	if s.baseDir == "" {
		return p, nil
	}
	full := filepath.Join(s.baseDir, p)
	rel, err := filepath.Rel(s.baseDir, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", plugins.ArgumentErrorf(Name, "path %q escapes %s", p, s.baseDir)
	}
	return full, nil
}

// ParseDelimiter：支持单字符与 "tab"/"\t" 写法，缺省为逗号
func ParseDelimiter(d string) (rune, error) {
	switch d {
	case "":
		return ',', nil
	case "tab", `\t`, "\t":
		return '\t', nil
	}
	r, n := utf8.DecodeRuneInString(d)
	if n != len(d) || r == '"' || r == '\r' || r == '\n' {
		return 0, fmt.Errorf("unsupported delimiter %q", d)
	}
	return r, nil
}

// 文档注释：加载文件
// 背景：首行为列名，次行为 Integer/Double/String/Polygon 类型名，其余每行一条记录；Polygon 列为几何 JSON。
// 约束：缺少列名行或类型行、类型名无法识别、单元格无法按列类型解析都作为错误返回，后两者带行号。
func (s *Source) Load(_ context.Context, params plugins.Params) (*dataset.Table, error) {
	path := params.First(FilePath)
	if path == "" {
		return nil, plugins.ArgumentErrorf(Name, "%s is required", FilePath)
	}
	delim, err := ParseDelimiter(params.First(Delimiter))
	if err != nil {
		return nil, plugins.ArgumentErrorf(Name, "%v", err)
	}
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		return nil, plugins.ArgumentErrorf(Name, "%v", err)
	}
	defer f.Close()
	return Read(f, delim)
}

// Read：从任意 Reader 解析，供 Load 与命令行工具共用
func Read(r io.Reader, delim rune) (*dataset.Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	labels, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, plugins.ArgumentErrorf(Name, "missing column label line")
	}
	if err != nil {
		return nil, err
	}
	typeNames, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, plugins.ArgumentErrorf(Name, "missing column type line")
	}
	if err != nil {
		return nil, err
	}
	if len(typeNames) != len(labels) {
		return nil, fmt.Errorf("%w: %d labels, %d types", dataset.ErrSizeMismatch, len(labels), len(typeNames))
	}
	types := make([]dataset.Type, len(typeNames))
	for i, n := range typeNames {
		if types[i], err = dataset.ParseType(n); err != nil {
			return nil, fmt.Errorf("column %q: %w", labels[i], err)
		}
	}

	var rows [][]any
	for line := 0; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(rec) != len(types) {
			return nil, &dataset.ValidationError{Row: line, Col: -1, Msg: fmt.Sprintf("expected %d values, got %d", len(types), len(rec))}
		}
		row := make([]any, len(rec))
		for j, cell := range rec {
			v, err := plugins.ParseCell(types[j], cell)
			if err != nil {
				return nil, &dataset.ValidationError{Row: line, Col: j, Msg: err.Error()}
			}
			row[j] = v
		}
		rows = append(rows, row)
	}
	return dataset.New(labels, types, rows)
}
