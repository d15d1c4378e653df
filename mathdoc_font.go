// Copyright 2025 肖其顿 (XIAO QI DUN)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mathdoc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/tdewolff/canvas"
	"go.uber.org/zap"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/gomonobolditalic"
	"golang.org/x/image/font/gofont/gomonoitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/gofont/gosmallcaps"
	"golang.org/x/image/font/gofont/gosmallcapsitalic"
	"golang.org/x/text/cases"
)

// 内置字体名
const (
	FontGo          = "Go"
	FontGoMono      = "Go Mono"
	FontGoSmallcaps = "Go Smallcaps"
)

// fontAliases 通用字体名到内置字体的映射
var fontAliases = map[string]string{
	"serif":      FontGo,
	"sansserif":  FontGo,
	"sans-serif": FontGo,
	"dialog":     FontGo,
	"monospace":  FontGoMono,
	"monospaced": FontGoMono,
	"smallcaps":  FontGoSmallcaps,
}

// fontStyles 字体族需要加载的四种样式
var fontStyles = []FontStyle{StylePlain, StyleBold, StyleItalic, StyleBold | StyleItalic}

// canvasStyle 转换为画布字体样式
func canvasStyle(s FontStyle) canvas.FontStyle {
	out := canvas.FontRegular
	if s&StyleBold != 0 {
		out |= canvas.FontBold
	}
	if s&StyleItalic != 0 {
		out |= canvas.FontItalic
	}
	return out
}

// fontEntry 已注册的字体族
type fontEntry struct {
	name   string
	data   map[FontStyle][]byte
	family *canvas.FontFamily
}

// build 加载四种样式, 缺少的样式依次回退到斜体或粗体、常规
func (e *fontEntry) build() error {
	ff := canvas.NewFontFamily(e.name)
	for _, st := range fontStyles {
		data := e.pick(st)
		if data == nil {
			return fmt.Errorf("font %s has no usable face", e.name)
		}
		if err := ff.LoadFont(data, 0, canvasStyle(st)); err != nil {
			return fmt.Errorf("load font %s: %w", e.name, err)
		}
	}
	e.family = ff
	return nil
}

func (e *fontEntry) pick(st FontStyle) []byte {
	for _, s := range []FontStyle{st, st & StyleItalic, st & StyleBold, StylePlain} {
		if d, ok := e.data[s]; ok {
			return d
		}
	}
	for _, s := range fontStyles {
		if d, ok := e.data[s]; ok {
			return d
		}
	}
	return nil
}

// FontRegistry 字体注册表, 排版度量与绘制使用同一份字体
type FontRegistry struct {
	mu      sync.RWMutex
	entries map[string]*fontEntry
	logger  *zap.Logger
}

// NewFontRegistry 创建包含内置字体的注册表
// 返回: *FontRegistry 注册表
func NewFontRegistry() *FontRegistry {
	r := &FontRegistry{entries: make(map[string]*fontEntry), logger: zap.NewNop()}
	builtins := []struct {
		name string
		data map[FontStyle][]byte
	}{
		{FontGo, map[FontStyle][]byte{
			StylePlain: goregular.TTF, StyleBold: gobold.TTF,
			StyleItalic: goitalic.TTF, StyleBold | StyleItalic: gobolditalic.TTF,
		}},
		{FontGoMono, map[FontStyle][]byte{
			StylePlain: gomono.TTF, StyleBold: gomonobold.TTF,
			StyleItalic: gomonoitalic.TTF, StyleBold | StyleItalic: gomonobolditalic.TTF,
		}},
		{FontGoSmallcaps, map[FontStyle][]byte{
			StylePlain: gosmallcaps.TTF, StyleItalic: gosmallcapsitalic.TTF,
		}},
	}
	for _, b := range builtins {
		e := &fontEntry{name: b.name, data: b.data}
		if err := e.build(); err != nil {
			r.logger.Warn("builtin font unavailable", zap.String("font", b.name), zap.Error(err))
			continue
		}
		r.entries[r.key(b.name)] = e
	}
	return r
}

var (
	defaultFontsOnce sync.Once
	defaultFonts     *FontRegistry
)

// DefaultFontRegistry 进程内共享的字体注册表
func DefaultFontRegistry() *FontRegistry {
	defaultFontsOnce.Do(func() {
		defaultFonts = NewFontRegistry()
	})
	return defaultFonts
}

// IsFontName 判断字体名是否已在共享注册表中
// 入参: name 字体名
// 返回: bool 是否可用
func IsFontName(name string) bool {
	return DefaultFontRegistry().Has(name)
}

// SetLogger 设置日志记录器
func (r *FontRegistry) SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r.mu.Lock()
	r.logger = logger
	r.mu.Unlock()
}

// key 名称不区分大小写与首尾空白
func (r *FontRegistry) key(name string) string {
	k := cases.Fold().String(strings.TrimSpace(name))
	if alias, ok := fontAliases[k]; ok {
		return cases.Fold().String(alias)
	}
	return k
}

// Has 判断字体名是否可用
func (r *FontRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[r.key(name)]
	return ok
}

// Names 已注册的字体名
// 返回: []string 已排序的字体名
func (r *FontRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		names = append(names, e.name)
	}
	slices.Sort(names)
	return names
}

// Family 获取字体族, 未注册的名称使用内置字体
func (r *FontRegistry) Family(name string) *canvas.FontFamily {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.entries[r.key(name)]; ok {
		return e.family
	}
	if e, ok := r.entries[r.key(FontGo)]; ok {
		return e.family
	}
	return nil
}

// Register 注册字体文件数据, 缺少 OS/2 表的 TrueType 数据会被修补
// 入参: name 字体名, style 样式(仅粗体与斜体位有效), data 字体文件数据
// 返回: error 错误信息
func (r *FontRegistry) Register(name string, style FontStyle, data []byte) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("font name is empty")
	}
	if fixed, patched, err := RepairFontData(data); err == nil && patched {
		data = fixed
	}
	style &= StyleBold | StyleItalic
	r.mu.Lock()
	defer r.mu.Unlock()
	k := r.key(name)
	prev := r.entries[k]
	e := &fontEntry{name: name, data: make(map[FontStyle][]byte)}
	if prev != nil {
		e.name = prev.name
		for s, d := range prev.data {
			e.data[s] = d
		}
	}
	e.data[style] = data
	if err := e.build(); err != nil {
		return err
	}
	r.entries[k] = e
	r.logger.Debug("font registered", zap.String("font", e.name), zap.String("style", style.String()))
	return nil
}

// fontFileStyle 按文件名后缀推断字体名与样式, 如 Name-BoldItalic.ttf
func fontFileStyle(file string) (string, FontStyle) {
	stem := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	name, suffix, found := strings.Cut(stem, "-")
	if !found {
		return stem, StylePlain
	}
	lower := strings.ToLower(suffix)
	var style FontStyle
	if strings.Contains(lower, "bold") {
		style |= StyleBold
	}
	if strings.Contains(lower, "italic") || strings.Contains(lower, "oblique") {
		style |= StyleItalic
	}
	if style == StylePlain && lower != "regular" {
		return stem, StylePlain
	}
	return name, style
}

// isFontFile 判断文件扩展名
func isFontFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".ttf", ".otf":
		return true
	}
	return false
}

// RegisterDir 注册目录中的全部字体文件
// 入参: dir 目录
// 返回: int 成功注册的文件数, error 错误信息
func (r *FontRegistry) RegisterDir(dir string) (int, error) {
	return r.RegisterFS(os.DirFS(dir), ".")
}

// RegisterFS 注册文件系统中某目录下的全部字体文件
// 入参: fsys 文件系统, dir 目录
// 返回: int 成功注册的文件数, error 错误信息
func (r *FontRegistry) RegisterFS(fsys fs.FS, dir string) (int, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, de := range entries {
		if de.IsDir() || !isFontFile(de.Name()) {
			continue
		}
		p := de.Name()
		if dir != "." {
			p = dir + "/" + p
		}
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			r.logger.Warn("font file unreadable", zap.String("file", p), zap.Error(err))
			continue
		}
		name, style := fontFileStyle(de.Name())
		if err := r.Register(name, style, data); err != nil {
			r.logger.Warn("font file rejected", zap.String("file", p), zap.Error(err))
			continue
		}
		count++
	}
	return count, nil
}

// sfntTable 字体表目录项
type sfntTable struct {
	tag      string
	checkSum uint32
	offset   uint32
	length   uint32
	data     []byte
}

// readTableDirectory 读取 sfnt 表目录
func readTableDirectory(data []byte) ([]sfntTable, bool) {
	if len(data) < 12 {
		return nil, false
	}
	n := int(binary.BigEndian.Uint16(data[4:6]))
	tables := make([]sfntTable, 0, n+1)
	for i := range n {
		pos := 12 + 16*i
		if len(data) < pos+16 {
			return nil, false
		}
		t := sfntTable{
			tag:      string(data[pos : pos+4]),
			checkSum: binary.BigEndian.Uint32(data[pos+4 : pos+8]),
			offset:   binary.BigEndian.Uint32(data[pos+8 : pos+12]),
			length:   binary.BigEndian.Uint32(data[pos+12 : pos+16]),
		}
		if uint64(len(data)) < uint64(t.offset)+uint64(t.length) {
			return nil, false
		}
		t.data = data[t.offset : t.offset+t.length]
		tables = append(tables, t)
	}
	return tables, true
}

// buildOS2 以 hhea 表的上升与下降高度构造版本3的 OS/2 表
func buildOS2(ascender, descender int16) []byte {
	w := new(bytes.Buffer)
	put := func(v any) { _ = binary.Write(w, binary.BigEndian, v) }
	put(uint16(3))
	put(int16(500))
	put(uint16(400))
	put(uint16(5))
	put(uint16(0))
	for range 11 {
		put(int16(0))
	}
	w.Write(make([]byte, 10))
	for range 4 {
		put(uint32(0))
	}
	w.WriteString("MDOC")
	put(uint16(0x0040))
	put(uint16(0x0020))
	put(uint16(0xFFFD))
	put(ascender)
	put(descender)
	put(int16(0))
	put(uint16(ascender))
	if descender < 0 {
		put(uint16(-descender))
	} else {
		put(uint16(descender))
	}
	put(uint32(1))
	put(uint32(0))
	put(int16(0))
	put(int16(0))
	put(uint16(0))
	put(uint16(0x0020))
	put(uint16(0))
	return w.Bytes()
}

// assembleFont 按表名排序重新写出 sfnt 数据并修正 head 表的校验调整值
func assembleFont(version []byte, tables []sfntTable) []byte {
	slices.SortFunc(tables, func(a, b sfntTable) int { return strings.Compare(a.tag, b.tag) })
	n := len(tables)
	selector := 0
	for 1<<(selector+1) <= n {
		selector++
	}
	searchRange := 1 << (selector + 4)
	buf := new(bytes.Buffer)
	buf.Write(version)
	for _, v := range []uint16{uint16(n), uint16(searchRange), uint16(selector), uint16(n*16 - searchRange)} {
		_ = binary.Write(buf, binary.BigEndian, v)
	}
	offset := uint32(12 + 16*n)
	headOffset, headLen := uint32(0), uint32(0)
	for i := range tables {
		t := &tables[i]
		t.offset = offset
		if t.tag == "head" {
			headOffset, headLen = t.offset, t.length
		}
		buf.WriteString(t.tag)
		for _, v := range []uint32{t.checkSum, t.offset, t.length} {
			_ = binary.Write(buf, binary.BigEndian, v)
		}
		offset += align4(t.length)
	}
	for _, t := range tables {
		buf.Write(t.data)
		buf.Write(make([]byte, align4(t.length)-t.length))
	}
	out := buf.Bytes()
	if headLen >= 12 {
		adj := out[headOffset+8 : headOffset+12]
		binary.BigEndian.PutUint32(adj, 0)
		binary.BigEndian.PutUint32(adj, 0xB1B0AFBA-tableChecksum(out))
	}
	return out
}

// RepairFontData 为缺少 OS/2 表的 TrueType 数据补充该表, 画布字体库需要其中的度量信息
// 入参: data 字体文件数据
// 返回: []byte 修补后的数据, bool 是否修补, error 错误信息
func RepairFontData(data []byte) ([]byte, bool, error) {
	tables, ok := readTableDirectory(data)
	if !ok {
		return data, false, nil
	}
	var hhea []byte
	for _, t := range tables {
		switch t.tag {
		case "OS/2":
			return data, false, nil
		case "hhea":
			hhea = t.data
		}
	}
	if len(hhea) < 10 {
		return data, false, fmt.Errorf("font has neither OS/2 nor hhea table")
	}
	ascender := int16(binary.BigEndian.Uint16(hhea[4:6]))
	descender := int16(binary.BigEndian.Uint16(hhea[6:8]))
	os2 := buildOS2(ascender, descender)
	tables = append(tables, sfntTable{tag: "OS/2", checkSum: tableChecksum(os2), length: uint32(len(os2)), data: os2})
	return assembleFont(data[0:4], tables), true, nil
}

// align4 按4字节对齐
func align4(n uint32) uint32 {
	return (n + 3) &^ 3
}

// tableChecksum 字体表校验和
func tableChecksum(data []byte) uint32 {
	var sum uint32
	for i := 0; i < len(data); i += 4 {
		var word [4]byte
		copy(word[:], data[i:])
		sum += binary.BigEndian.Uint32(word[:])
	}
	return sum
}
