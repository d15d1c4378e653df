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
	"io"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/zap"
)

// ParseOption 解析选项
type ParseOption func(*parser)

// WithParserLogger 设置解析日志记录器
// 入参: logger 日志记录器
// 返回: ParseOption 解析选项
func WithParserLogger(logger *zap.Logger) ParseOption {
	return func(p *parser) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithParserMode 设置解析模式
// 入参: mode 解析模式
// 返回: ParseOption 解析选项
func WithParserMode(mode ParserMode) ParseOption {
	return func(p *parser) {
		p.mode = mode
	}
}

// parser 单次解析的状态
type parser struct {
	ctx    *EvalContext
	diag   *Diagnostics
	mode   ParserMode
	logger *zap.Logger
}

func newParser(ctx *EvalContext, opts []ParseOption) *parser {
	p := &parser{ctx: ctx, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	p.diag = newDiagnostics(p.logger)
	return p
}

// Parse 读取XML并构建文档模板
// 入参: r XML输入, ctx 求值上下文(用于校验公式变量, 可为nil), opts 解析选项
// 返回: *Column 文档模板(存在任何错误时为nil), *Diagnostics 错误与警告
func Parse(r io.Reader, ctx *EvalContext, opts ...ParseOption) (*Column, *Diagnostics) {
	p := newParser(ctx, opts)
	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(r); err != nil {
		p.diag.errorf(nil, "Unable to parse XML: %v", err)
		return nil, p.diag
	}
	root := doc.Root()
	if root == nil {
		p.diag.errorf(nil, "Document has no root element.")
		return nil, p.diag
	}
	return p.document(root), p.diag
}

// ParseString 从字符串构建文档模板
// 入参: s XML文本, ctx 求值上下文, opts 解析选项
// 返回: *Column 文档模板, *Diagnostics 错误与警告
func ParseString(s string, ctx *EvalContext, opts ...ParseOption) (*Column, *Diagnostics) {
	return Parse(strings.NewReader(s), ctx, opts...)
}

// ParseFile 从文件构建文档模板
// 入参: path 文件路径, ctx 求值上下文, opts 解析选项
// 返回: *Column 文档模板, *Diagnostics 错误与警告
func ParseFile(path string, ctx *EvalContext, opts ...ParseOption) (*Column, *Diagnostics) {
	data, err := os.ReadFile(path)
	if err != nil {
		p := newParser(ctx, opts)
		p.diag.errorf(nil, "Unable to read %s: %v", path, err)
		return nil, p.diag
	}
	return Parse(bytes.NewReader(data), ctx, opts...)
}

// ParseElement 从已解析的XML元素构建文档模板
// 入参: root 文档根元素, ctx 求值上下文, opts 解析选项
// 返回: *Column 文档模板, *Diagnostics 错误与警告
func ParseElement(root *etree.Element, ctx *EvalContext, opts ...ParseOption) (*Column, *Diagnostics) {
	p := newParser(ctx, opts)
	return p.document(root), p.diag
}

// ParseSpan 解析 <span> 片段, 用作片段型参数的取值
// 入参: s XML文本, ctx 求值上下文, opts 解析选项
// 返回: *Span 片段(存在任何错误时为nil), *Diagnostics 错误与警告
func ParseSpan(s string, ctx *EvalContext, opts ...ParseOption) (*Span, *Diagnostics) {
	p := newParser(ctx, opts)
	doc := etree.NewDocument()
	if err := doc.ReadFromString(s); err != nil {
		p.diag.errorf(nil, "Unable to parse XML: %v", err)
		return nil, p.diag
	}
	root := doc.Root()
	if root == nil || !strings.EqualFold(root.Tag, "span") {
		p.diag.errorf(root, "Span value must be a <span> element.")
		return nil, p.diag
	}
	span, ok := p.span(root).(*Span)
	if !ok || p.diag.HasErrors() {
		return nil, p.diag
	}
	return span, p.diag
}

// src 图元属性的错误记录位置
func (p *parser) src(e *etree.Element) AttrSource {
	return AttrSource{Elem: e, Diag: p.diag, Mode: p.mode, Ctx: p.ctx}
}

// formatAttrs 所有文档元素都支持的格式属性
var formatAttrs = []string{"color", "fontname", "fontsize", "fontstyle"}

// attr 查找属性
func attr(e *etree.Element, key string) (string, bool) {
	a := e.SelectAttr(key)
	if a == nil {
		return "", false
	}
	return a.Value, true
}

// checkAttrs 校验元素上的属性, 不在允许列表中的属性为错误
func (p *parser) checkAttrs(e *etree.Element, allowed ...string) bool {
	ok := true
	for _, a := range e.Attr {
		if a.Space != "" || a.Key == "xmlns" {
			continue
		}
		if slices.Contains(allowed, a.Key) || slices.Contains(formatAttrs, a.Key) {
			continue
		}
		p.diag.errorf(e, "Unsupported attribute '%s' on <%s>.", a.Key, e.Tag)
		ok = false
	}
	return ok
}

// formattable 读取格式属性
func (p *parser) formattable(e *etree.Element, b *NodeBase) bool {
	src := p.src(e)
	ok := true
	for _, name := range formatAttrs {
		if v, has := attr(e, name); has {
			ok = setFontAttr(b, name, v, src) && ok
		}
	}
	return ok
}

// charData 拼接元素的全部直接字符数据
func charData(e *etree.Element) string {
	var sb strings.Builder
	for _, tok := range e.Child {
		if cd, ok := tok.(*etree.CharData); ok {
			sb.WriteString(cd.Data)
		}
	}
	return sb.String()
}

// noText 不允许出现非空白文本的元素
func (p *parser) noText(e *etree.Element, where string) bool {
	if strings.TrimSpace(charData(e)) != "" {
		p.diag.errorf(e, "Unexpected text within %s.", where)
		return false
	}
	return true
}

// onlyChildren 校验子元素均在允许列表中
func (p *parser) onlyChildren(e *etree.Element, where string, allowed ...string) bool {
	ok := p.noText(e, where)
	for _, c := range e.ChildElements() {
		if !slices.Contains(allowed, strings.ToLower(c.Tag)) {
			p.diag.errorf(e, "The %s tag is not valid within %s.", c.Tag, where)
			ok = false
		}
	}
	return ok
}

// formula 解析公式元素
// 当前语法以 <expr> 子元素给出表达式, 旧语法直接以元素文本给出
func (p *parser) formula(e *etree.Element) (*Formula, bool) {
	kids := e.ChildElements()
	var src string
	switch {
	case len(kids) == 1 && strings.EqualFold(kids[0].Tag, "expr"):
		if strings.TrimSpace(charData(e)) != "" {
			return nil, false
		}
		src = charData(kids[0])
	case len(kids) == 0:
		src = charData(e)
		p.diag.deprecated(e, p.mode, "Deprecated text-format formula in <%s>", e.Tag)
	default:
		return nil, false
	}
	f, err := ParseFormula(src, p.ctx)
	if err != nil {
		p.logger.Debug("formula rejected", zap.String("tag", e.Tag), zap.Error(err))
		return nil, false
	}
	return f, true
}

// parseNumber 解析有限数值, integer 为真时只接受整数
func parseNumber(s string, integer bool) (float64, bool) {
	s = strings.TrimSpace(s)
	if integer {
		v, err := strconv.Atoi(s)
		return float64(v), err == nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// numberOrFormula 读取数值属性或同名公式子元素, 两者不能同时出现
// 入参: e 元素, name 属性名, integer 属性值是否必须为整数
// 返回: *NumberOrFormula 取值(均未提供时为nil), bool 是否有效
func (p *parser) numberOrFormula(e *etree.Element, name string, integer bool) (*NumberOrFormula, bool) {
	var out *NumberOrFormula
	valid := true
	value, hasAttr := attr(e, name)
	if hasAttr {
		if v, ok := parseNumber(value, integer); ok {
			n := NewNumber(v)
			out = &n
		} else if integer {
			p.diag.errorf(e, "Invalid '%s' attribute value (must be an integer).", name)
			valid = false
		} else {
			p.diag.errorf(e, "Invalid '%s' attribute value (must be a valid number).", name)
			valid = false
		}
	}
	count := 0
	for _, c := range e.ChildElements() {
		if !strings.EqualFold(c.Tag, name) {
			continue
		}
		count++
		if hasAttr {
			p.diag.errorf(e, "Cannot have both %s attribute and %s formula.", name, name)
			valid = false
			continue
		}
		if count > 1 {
			p.diag.errorf(e, "Cannot have multiple %s formulas.", name)
			valid = false
			continue
		}
		f, ok := p.formula(c)
		if !ok {
			p.diag.errorf(e, "Invalid '%s' formula.", name)
			valid = false
			continue
		}
		n := NewFormulaValue(f)
		out = &n
	}
	return out, valid
}

// document 解析文档根元素, 其下只允许段落与垂直间距
func (p *parser) document(e *etree.Element) *Column {
	col := NewColumn(strings.ToLower(e.Tag))
	valid := p.checkAttrs(e)
	valid = p.formattable(e, &col.NodeBase) && valid
	for _, tok := range e.Child {
		switch t := tok.(type) {
		case *etree.CharData:
			if strings.TrimSpace(t.Data) != "" {
				p.diag.errorf(e, "All items in this context must be within <p> tags - found text.")
				valid = false
			}
		case *etree.Element:
			var n Node
			switch strings.ToLower(t.Tag) {
			case "p":
				n = p.paragraph(t)
			case "v-space":
				n = p.vspace(t)
			default:
				p.diag.errorf(t, "All items in this context must be within <p> tags - found <%s>.", t.Tag)
			}
			if n == nil {
				valid = false
				continue
			}
			col.Add(n)
		}
	}
	if !valid || p.diag.HasErrors() {
		return nil
	}
	return col
}

// vspace 解析 <v-space>
func (p *parser) vspace(e *etree.Element) Node {
	valid := p.checkAttrs(e, "height")
	h, ok := p.numberOrFormula(e, "height", false)
	valid = ok && valid
	valid = p.onlyChildren(e, "v-space", "height") && valid
	v := NewVSpace(h)
	valid = p.formattable(e, &v.NodeBase) && valid
	if !valid {
		return nil
	}
	return v
}

// hspace 解析 <h-space>
func (p *parser) hspace(e *etree.Element) Node {
	valid := p.checkAttrs(e, "width")
	w, ok := p.numberOrFormula(e, "width", false)
	valid = ok && valid
	valid = p.onlyChildren(e, "h-space", "width") && valid
	h := NewHSpace(w)
	valid = p.formattable(e, &h.NodeBase) && valid
	if !valid {
		return nil
	}
	return h
}

// halign 解析 <h-align>, position 必须提供
func (p *parser) halign(e *etree.Element) Node {
	valid := p.checkAttrs(e, "position")
	pos, ok := p.numberOrFormula(e, "position", false)
	valid = ok && valid
	valid = p.onlyChildren(e, "h-align", "position") && valid
	if pos == nil {
		if ok {
			p.diag.errorf(e, "<h-align> element missing required 'position' attribute.")
		}
		return nil
	}
	h := NewHAlign(*pos)
	valid = p.formattable(e, &h.NodeBase) && valid
	if !valid {
		return nil
	}
	return h
}

// alignMark 解析 <align-mark>
func (p *parser) alignMark(e *etree.Element) Node {
	a := NewAlignMark()
	valid := p.checkAttrs(e)
	valid = p.onlyChildren(e, "align-mark") && valid
	valid = p.formattable(e, &a.NodeBase) && valid
	if !valid {
		return nil
	}
	return a
}

// paragraph 解析 <p>
func (p *parser) paragraph(e *etree.Element) Node {
	par := NewParagraph()
	valid := p.checkAttrs(e, "justification", "spacing", "indent")
	if v, ok := attr(e, "justification"); ok {
		if j, found := justificationVocab.parse(v); found {
			par.SetJustification(j)
		} else {
			p.diag.errorf(e, "Invalid justification (should be 'left', 'right', 'center', 'full', or 'left-hang').")
			valid = false
		}
	}
	if v, ok := attr(e, "spacing"); ok {
		if s, found := spacingVocab.parse(v); found {
			par.SetSpacing(s)
		} else {
			p.diag.errorf(e, "Invalid paragraph spacing (should be 'none', 'small', 'normal' or 'large').")
			valid = false
		}
	}
	if v, ok := attr(e, "indent"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n < 0 {
			p.diag.errorf(e, "Invalid paragraph indent.")
			valid = false
		} else {
			par.SetIndent(n)
		}
	}
	valid = p.formattable(e, &par.NodeBase) && valid
	valid = p.content(e, par, paragraphRules, nil) && valid
	if !valid {
		return nil
	}
	return par
}

// adder 可追加子节点的容器
type adder interface {
	Add(n Node)
}

// contentRules 行内容器的内容规则
type contentRules struct {
	// wrapText 为真时空白单独成为可断行的空白节点, 否则并入文本
	wrapText     bool
	allowSpan    bool
	allowPalette bool
	where        string
}

var (
	paragraphRules = contentRules{wrapText: true, allowSpan: true, allowPalette: true, where: "a paragraph"}
	spanRules      = contentRules{wrapText: true, allowSpan: true, allowPalette: true, where: "span"}
	fenceRules     = contentRules{wrapText: true, allowSpan: true, where: "fence"}
	nonwrapRules   = contentRules{allowPalette: true, where: "nonwrap"}
	mathRules      = contentRules{where: "math"}
)

// content 解析行内容器的字符数据与子元素
// 入参: e 元素, into 目标容器, rules 内容规则, skip 由调用方自行处理的子元素
// 返回: bool 是否有效
func (p *parser) content(e *etree.Element, into adder, rules contentRules, skip func(*etree.Element) bool) bool {
	valid := true
	for _, tok := range e.Child {
		switch t := tok.(type) {
		case *etree.CharData:
			if rules.wrapText {
				valid = p.extractText(e, t.Data, into) && valid
			} else {
				valid = p.extractNonwrapText(e, t.Data, into) && valid
			}
		case *etree.Element:
			if skip != nil && skip(t) {
				continue
			}
			valid = p.inline(t, into, rules) && valid
		}
	}
	return valid
}

// inline 解析行内元素并追加到容器
func (p *parser) inline(e *etree.Element, into adder, rules contentRules) bool {
	var n Node
	switch strings.ToLower(e.Tag) {
	case "span":
		if !rules.allowSpan {
			return p.notWithin(e, rules)
		}
		n = p.span(e)
	case "nonwrap":
		if nw, ok := p.nonwrap(e, "nonwrap"); ok {
			n = nw
		}
	case "math":
		n = p.math(e)
	case "fraction":
		n = p.fraction(e)
	case "radical":
		n = p.radical(e)
	case "rel-offset":
		n = p.relOffset(e)
	case "fence":
		n = p.fence(e)
	case "h-space":
		n = p.hspace(e)
	case "h-align":
		n = p.halign(e)
	case "align-mark":
		n = p.alignMark(e)
	case "table":
		n = p.table(e)
	case "drawing":
		n = p.drawing(e)
	case "graphxy":
		n = p.graphXY(e)
	case "input":
		n = p.input(e)
	case "image":
		n = p.image(e)
	case "symbol-palette":
		if !rules.allowPalette {
			return p.notWithin(e, rules)
		}
		n = p.symbolPalette(e)
	default:
		return p.notWithin(e, rules)
	}
	if n == nil {
		return false
	}
	into.Add(n)
	return true
}

func (p *parser) notWithin(e *etree.Element, rules contentRules) bool {
	p.diag.errorf(e, "The %s element is not valid within %s.", e.Tag, rules.where)
	return false
}

// span 解析可换行片段
func (p *parser) span(e *etree.Element) Node {
	s := NewSpan()
	valid := p.checkAttrs(e)
	valid = p.formattable(e, &s.NodeBase) && valid
	valid = p.content(e, s, spanRules, nil) && valid
	if !valid {
		return nil
	}
	return s
}

// nonwrap 解析不可断行片段, 分式、根式、上下标的组成部分与表格单元格共用
// 入参: e 元素, tag 节点元素名
// 返回: *Nonwrap 片段(总是非nil), bool 是否有效
func (p *parser) nonwrap(e *etree.Element, tag string) (*Nonwrap, bool) {
	s := NewNonwrap(tag)
	allowed := []string{"bgcolor"}
	if tag == "td" {
		allowed = append(allowed, "lines")
	}
	valid := p.checkAttrs(e, allowed...)
	valid = p.formattable(e, &s.NodeBase) && valid
	if v, ok := attr(e, "bgcolor"); ok {
		if IsColorName(v) {
			s.SetBgColor(v)
		} else {
			p.diag.errorf(e, "Invalid color specified for bgcolor.")
			valid = false
		}
	}
	if v, ok := attr(e, "lines"); ok && tag == "td" {
		if lines, found := parseCellLines(v); found {
			s.SetLines(lines)
		} else {
			p.diag.errorf(e, "Invalid table cell line position, use a comma-separated list of 'left', 'right', 'top' and 'bottom'")
			valid = false
		}
	}
	valid = p.content(e, s, nonwrapRules, nil) && valid
	return s, valid
}

// parseCellLines 解析单元格边框列表, "none" 表示无边框
func parseCellLines(s string) (int, bool) {
	if strings.EqualFold(strings.TrimSpace(s), "none") {
		return 0, true
	}
	lines := 0
	for _, part := range strings.Split(s, ",") {
		v, ok := cellLineVocab.parse(part)
		if !ok {
			return 0, false
		}
		lines |= v
	}
	return lines, true
}

// math 解析数学片段
func (p *parser) math(e *etree.Element) Node {
	m := NewMath()
	valid := p.checkAttrs(e)
	valid = p.formattable(e, &m.NodeBase) && valid
	valid = p.content(e, m, mathRules, nil) && valid
	if !valid {
		return nil
	}
	return m
}

// fence 解析括号
func (p *parser) fence(e *etree.Element) Node {
	f := NewFence(FenceParentheses)
	valid := p.checkAttrs(e, "type", "valign")
	if v, ok := attr(e, "type"); ok {
		if t, found := fenceVocab.parse(v); found {
			f.SetFenceType(t)
		} else {
			p.diag.errorf(e, "Invalid fence type (should be 'parentheses', 'brackets', 'bars', 'braces', or 'lbrace').")
			valid = false
		}
	}
	if v, ok := attr(e, "valign"); ok {
		va, found := valignVocab.parse(v)
		if !found || va == AlignTop {
			p.diag.errorf(e, "Invalid fence valign setting (should be 'center', 'baseline').")
			valid = false
		} else {
			f.SetVAlign(va)
		}
	}
	valid = p.formattable(e, &f.NodeBase) && valid
	valid = p.content(e, f, fenceRules, nil) && valid
	if !valid {
		return nil
	}
	return f
}

// autoScale 上下标等部件与基础内容字号相同且大于8时缩小为75%
func autoScale(part, base *Nonwrap) {
	if part == nil || base == nil {
		return
	}
	if part.FontSize() == base.FontSize() && base.FontSize() > 8 {
		part.SetFontScale(0.75)
	}
}

// parts 解析由命名部件组成的元素, 每个部件最多出现一次
// 入参: e 元素, where 错误信息中的元素说明, names 允许的部件名
// 返回: map[string]*Nonwrap 已解析的部件, bool 是否有效
func (p *parser) parts(e *etree.Element, where string, names ...string) (map[string]*Nonwrap, bool) {
	out := make(map[string]*Nonwrap, len(names))
	valid := p.noText(e, where)
	for _, c := range e.ChildElements() {
		tag := strings.ToLower(c.Tag)
		if !slices.Contains(names, tag) {
			p.diag.errorf(e, "The %s tag is not valid within %s.", c.Tag, where)
			valid = false
			continue
		}
		if _, dup := out[tag]; dup {
			p.diag.errorf(e, "Multiple <%s> tags in %s.", tag, where)
			valid = false
			continue
		}
		nw, ok := p.nonwrap(c, tag)
		valid = ok && valid
		out[tag] = nw
	}
	return out, valid
}

// fraction 解析分式
func (p *parser) fraction(e *etree.Element) Node {
	valid := p.checkAttrs(e)
	parts, ok := p.parts(e, "fraction", "numerator", "denominator")
	valid = ok && valid
	num, den := parts["numerator"], parts["denominator"]
	if num == nil || den == nil {
		p.diag.errorf(e, "<fraction> must have both <numerator> and <denominator> child.")
		return nil
	}
	f := NewFraction(num, den)
	valid = p.formattable(e, &f.NodeBase) && valid
	if !valid {
		return nil
	}
	return f
}

// radical 解析根式
func (p *parser) radical(e *etree.Element) Node {
	valid := p.checkAttrs(e)
	parts, ok := p.parts(e, "radical", "base", "root")
	valid = ok && valid
	base, root := parts["base"], parts["root"]
	if base == nil {
		p.diag.errorf(e, "<radical> must have <base> child.")
		return nil
	}
	autoScale(root, base)
	r := NewRadical(base, root)
	valid = p.formattable(e, &r.NodeBase) && valid
	if !valid {
		return nil
	}
	return r
}

// relOffset 解析上下标结构
func (p *parser) relOffset(e *etree.Element) Node {
	valid := p.checkAttrs(e)
	parts, ok := p.parts(e, "<rel-offset> element", "base", "super", "sub", "over", "under")
	valid = ok && valid
	base := parts["base"]
	if base == nil {
		p.diag.errorf(e, "<rel-offset> must have <base> child.")
		return nil
	}
	for _, name := range []string{"super", "sub", "over", "under"} {
		autoScale(parts[name], base)
	}
	r := NewRelativeOffset(base, parts["super"], parts["sub"], parts["over"], parts["under"])
	valid = p.formattable(e, &r.NodeBase) && valid
	if !valid {
		return nil
	}
	return r
}

// intAttr 读取整数属性
func (p *parser) intAttr(e *etree.Element, name, msg string, dst *int) bool {
	v, ok := attr(e, name)
	if !ok {
		return true
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 0 {
		p.diag.errorf(e, "%s", msg)
		return false
	}
	*dst = n
	return true
}

// parseInsets 解析单元格留白, 单个整数表示四边相同, 四个整数依次为上、左、下、右
func parseInsets(s string) (Insets, bool) {
	parts := strings.Split(s, ",")
	vals := make([]int, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || v < 0 {
			return Insets{}, false
		}
		vals = append(vals, v)
	}
	switch len(vals) {
	case 1:
		return Insets{Top: vals[0], Left: vals[0], Bottom: vals[0], Right: vals[0]}, true
	case 4:
		return Insets{Top: vals[0], Left: vals[1], Bottom: vals[2], Right: vals[3]}, true
	}
	return Insets{}, false
}

// table 解析表格
func (p *parser) table(e *etree.Element) Node {
	valid := p.checkAttrs(e, "box-width", "v-line-width", "h-line-width", "column-width", "justification", "bgcolor", "cell-margins")
	box, hLine, vLine := 1, 1, 1
	valid = p.intAttr(e, "box-width", "Box width must be integer", &box) && valid
	valid = p.intAttr(e, "v-line-width", "Vertical Line width must be integer", &vLine) && valid
	valid = p.intAttr(e, "h-line-width", "Horizontal Line width must be integer", &hLine) && valid

	var rows [][]*Nonwrap
	valid = p.noText(e, "table") && valid
	for _, tr := range e.ChildElements() {
		if !strings.EqualFold(tr.Tag, "tr") {
			p.diag.errorf(e, "The %s tag is not valid within table.", tr.Tag)
			valid = false
			continue
		}
		valid = p.checkAttrs(tr) && valid
		valid = p.noText(tr, "table row") && valid
		var row []*Nonwrap
		for _, td := range tr.ChildElements() {
			if !strings.EqualFold(td.Tag, "td") {
				p.diag.errorf(tr, "The %s tag is not valid within table row.", td.Tag)
				valid = false
				continue
			}
			cell, ok := p.nonwrap(td, "td")
			valid = ok && valid
			row = append(row, cell)
		}
		rows = append(rows, row)
	}

	t := NewTable(rows)
	t.SetLineWidths(box, hLine, vLine)
	if v, ok := attr(e, "column-width"); ok {
		if cw, found := columnWidthVocab.parse(v); found {
			t.SetColumnWidth(cw)
		} else {
			p.diag.errorf(e, "Invalid column width, use 'uniform' or 'nonuniform'")
			valid = false
		}
	}
	if v, ok := attr(e, "justification"); ok {
		j, found := justificationVocab.parse(v)
		if !found || (j != JustifyLeft && j != JustifyRight && j != JustifyCenter) {
			p.diag.errorf(e, "Invalid justification, use 'left', 'right', or 'center'")
			valid = false
		} else {
			t.SetJustification(j)
		}
	}
	if v, ok := attr(e, "bgcolor"); ok {
		if IsColorName(v) {
			t.SetBgColor(v)
		} else {
			p.diag.errorf(e, "Invalid color specified for bgcolor.")
			valid = false
		}
	}
	if v, ok := attr(e, "cell-margins"); ok {
		if in, found := parseInsets(v); found {
			t.SetCellInsets(&in)
		} else {
			p.diag.errorf(e, "Invalid cell margin specification.")
			valid = false
		}
	}
	valid = p.formattable(e, &t.NodeBase) && valid
	if !valid {
		return nil
	}
	return t
}

// isXMLSpace XML空白字符
func isXMLSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

// collapseWhitespace 连续空白折叠为单个空格
func collapseWhitespace(s string) string {
	var sb strings.Builder
	space := false
	for _, r := range s {
		if isXMLSpace(r) {
			if !space {
				sb.WriteByte(' ')
			}
			space = true
			continue
		}
		space = false
		sb.WriteRune(r)
	}
	return sb.String()
}

// unescape 解码旧式 \uXXXX 转义
func (p *parser) unescape(e *etree.Element, s string) (string, bool) {
	if !strings.Contains(s, `\u`) {
		return s, true
	}
	var sb strings.Builder
	ok := true
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) && s[i+1] == 'u' && i+6 <= len(s) {
			hex := s[i+2 : i+6]
			v, err := strconv.ParseUint(hex, 16, 32)
			if err != nil {
				p.diag.errorf(e, "Invalid escape: \\u%s", hex)
				ok = false
				sb.WriteByte(s[i])
				continue
			}
			p.diag.deprecated(e, p.mode, "Deprecated escape: \\u%s", hex)
			sb.WriteRune(rune(v))
			i += 5
			continue
		}
		sb.WriteByte(s[i])
	}
	return sb.String(), ok
}

// reference 花括号内的名称, 以反斜杠开头时为命名符号, 未知符号替换为空文本
// 符号名按原样匹配, 不去除空白
func reference(name string) Node {
	if entity, ok := strings.CutPrefix(name, "\\"); ok {
		return NewText(lookupEntity(entity))
	}
	return NewParameterReference(name)
}

// extractText 将字符数据拆分为空白、文本与参数引用
// 参数名内部的空白属于名称
func (p *parser) extractText(e *etree.Element, data string, into adder) bool {
	var inSpace, inText, inParam bool
	start := 0
	valid := true
	emitText := func(end int) {
		s, ok := p.unescape(e, data[start:end])
		valid = ok && valid
		into.Add(NewText(s))
		inText = false
	}
	emitSpace := func() {
		if inSpace {
			into.Add(NewWhitespace())
			inSpace = false
		}
	}
	for i, r := range data {
		switch {
		case isXMLSpace(r):
			if inParam {
				continue
			}
			if inText {
				emitText(i)
			}
			inSpace = true
		case r == '{':
			emitSpace()
			if inParam {
				p.diag.errorf(e, "Unexpected '{' within parameter or entity name.")
				return false
			}
			if inText {
				emitText(i)
			}
			inParam, start = true, i
		case r == '}':
			emitSpace()
			if !inParam {
				p.diag.errorf(e, "Unexpected '}' found, no matching '{'.")
				return false
			}
			into.Add(reference(data[start+1 : i]))
			inParam = false
		default:
			emitSpace()
			if !inText && !inParam {
				inText, start = true, i
			}
		}
	}
	if inParam {
		p.diag.errorf(e, "No matching '}' found.")
		return false
	}
	if inText {
		emitText(len(data))
	}
	emitSpace()
	return valid
}

// extractNonwrapText 与 extractText 相同, 但空白折叠后并入相邻文本
func (p *parser) extractNonwrapText(e *etree.Element, data string, into adder) bool {
	var inText, inParam bool
	start := 0
	valid := true
	emitText := func(end int) {
		s, ok := p.unescape(e, collapseWhitespace(data[start:end]))
		valid = ok && valid
		into.Add(NewText(s))
		inText = false
	}
	for i, r := range data {
		switch r {
		case '{':
			if inParam {
				p.diag.errorf(e, "Unexpected '{' within parameter or entity name.")
				return false
			}
			if inText {
				emitText(i)
			}
			inParam, start = true, i
		case '}':
			if !inParam {
				p.diag.errorf(e, "Unexpected '}' found, no matching '{'.")
				return false
			}
			into.Add(reference(data[start+1 : i]))
			inParam = false
		default:
			if !inText && !inParam {
				inText, start = true, i
			}
		}
	}
	if inParam {
		p.diag.errorf(e, "No matching '}' found.")
		return false
	}
	if inText {
		emitText(len(data))
	}
	return valid
}
