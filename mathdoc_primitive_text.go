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
	"math"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// substituteParams 替换文本中的 {name} 参数与 {\entity} 符号
// 入参: s 文本, ctx 求值上下文
// 返回: string 替换结果, bool 引用的参数全部有值时为真
func substituteParams(s string, ctx *EvalContext) (string, bool) {
	var sb strings.Builder
	for {
		open := strings.IndexByte(s, '{')
		if open < 0 {
			break
		}
		end := strings.IndexByte(s[open:], '}')
		if end < 0 {
			break
		}
		sb.WriteString(s[:open])
		name := strings.TrimSpace(s[open+1 : open+end])
		s = s[open+end+1:]
		if strings.HasPrefix(name, "\\") {
			sb.WriteString(lookupEntity(name[1:]))
			continue
		}
		v := ctx.GetVariable(name)
		if v == nil || v.Value == nil {
			return "", false
		}
		if span, ok := v.Value.(*Span); ok {
			sb.WriteString(span.PlainText())
			continue
		}
		text, ok := formatValue(v.Value)
		if !ok {
			return "", false
		}
		sb.WriteString(text)
	}
	sb.WriteString(s)
	return sb.String(), true
}

// addTextParams 收集文本中引用的参数名
func addTextParams(set map[string]struct{}, s string) {
	for {
		open := strings.IndexByte(s, '{')
		if open < 0 {
			return
		}
		end := strings.IndexByte(s[open:], '}')
		if end < 0 {
			return
		}
		name := strings.TrimSpace(s[open+1 : open+end])
		if name != "" && !strings.HasPrefix(name, "\\") {
			set[name] = struct{}{}
		}
		s = s[open+end+1:]
	}
}

// setFontAttr 解析字体相关格式属性
// 入参: b 目标节点, name 属性名, value 属性值, src 错误记录位置
// 返回: bool 是否成功
func setFontAttr(b *NodeBase, name, value string, src AttrSource) bool {
	switch name {
	case "color":
		if !IsColorName(value) {
			return src.errorf("Unrecognized color: %s", value)
		}
		b.colorName = value
	case "fontname":
		if !IsFontName(value) {
			return src.errorf("Unrecognized font name: %s", value)
		}
		b.fontName = value
	case "fontsize":
		value = strings.TrimSpace(value)
		if pct, ok := strings.CutSuffix(value, "%"); ok {
			v, err := strconv.ParseFloat(strings.TrimSpace(pct), 64)
			if err != nil {
				return src.errorf("Unrecognized font scale factor: %s", value)
			}
			if v <= 0 {
				return src.errorf("Font scale factor must be greater than zero.")
			}
			b.fontScale = v / 100
			return true
		}
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return src.errorf("Unrecognized font size: %s", value)
		}
		if v <= 0 {
			return src.errorf("Font size must be greater than zero.")
		}
		b.fontSize = v
	case "fontstyle":
		st, err := ParseFontStyle(value)
		if err != nil {
			return src.errorf("Invalid font style.")
		}
		b.SetFontStyle(st)
	default:
		return false
	}
	return true
}

// TextPrimitive 绘图中的单行文本, 可引用参数
type TextPrimitive struct {
	primitiveBase
	style     *Span
	anchor    TextAnchor
	highlight string
	alpha     *float64
	value     string
}

// NewTextPrimitive 创建文本图元
func NewTextPrimitive() *TextPrimitive {
	return &TextPrimitive{
		primitiveBase: primitiveBase{tag: "text", nums: newNumericAttrs("x", "y")},
		style:         &Span{NodeBase: NodeBase{tag: "text"}},
	}
}

// Value 获取文本模板
func (t *TextPrimitive) Value() string {
	return t.value
}

func (t *TextPrimitive) setOwner(owner Node) {
	t.owner = owner
	t.style.parent = owner
}

// SetAttr 设置属性
func (t *TextPrimitive) SetAttr(name, value string, src AttrSource) bool {
	owner := "text primitive"
	switch name {
	case "anchor":
		a, ok := anchorVocab.parse(value)
		if !ok {
			return src.errorf("Invalid 'anchor' value (%s) on %s", value, owner)
		}
		t.anchor = a
		return true
	case "highlight":
		c, ok := src.color(value, name, owner)
		t.highlight = c
		return ok
	case "alpha":
		a, ok := src.alpha(value, name, owner)
		t.alpha = a
		return ok
	case "value":
		t.value = value
		return true
	case "color", "fontname", "fontsize", "fontstyle":
		return setFontAttr(&t.style.NodeBase, name, value, src)
	}
	if t.nums.allowed(name) {
		_, ok := t.setCommon(name, value, src)
		return ok
	}
	return t.unsupported(name, src)
}

// Instance 生成实例
func (t *TextPrimitive) Instance(ctx *EvalContext) PrimitiveInst {
	x, ok1 := t.nums.eval(ctx, "x", 0)
	y, ok2 := t.nums.eval(ctx, "y", 0)
	if !ok1 || !ok2 {
		return nil
	}
	text, ok := substituteParams(t.value, ctx)
	if !ok {
		return nil
	}
	inst := &TextPrimitiveInst{
		X: x, Y: y, Anchor: t.anchor, Text: text,
		Style: t.style.resolvedStyle(), Highlight: t.highlight, Alpha: 1,
	}
	if t.alpha != nil {
		inst.Alpha = *t.alpha
	}
	return inst
}

// Copy 深拷贝
func (t *TextPrimitive) Copy() Primitive {
	c := *t
	c.primitiveBase = t.cloneBase()
	c.style = &Span{NodeBase: NodeBase{tag: "text", formatting: t.style.formatting, parent: t.owner}}
	return &c
}

func (t *TextPrimitive) writeXML(parent *etree.Element) {
	e := parent.CreateElement(t.tag)
	writeAnchor(e, t.anchor)
	if t.highlight != "" {
		e.CreateAttr("highlight", t.highlight)
	}
	if t.alpha != nil {
		e.CreateAttr("alpha", formatNumber(*t.alpha))
	}
	t.style.writeAttrs(e)
	e.CreateAttr("value", t.value)
	t.nums.writeXML(e)
}

func (t *TextPrimitive) accumulateParameterNames(set map[string]struct{}) {
	t.nums.accumulateParameterNames(set)
	addTextParams(set, t.value)
}

func writeAnchor(e *etree.Element, a TextAnchor) {
	if a != AnchorSW {
		e.CreateAttr("anchor", anchorVocab.name(a))
	}
}

// SpanPrimitive 绘图中的富文本
type SpanPrimitive struct {
	primitiveBase
	style   *Span
	anchor  TextAnchor
	alpha   *float64
	content *Span
}

// NewSpanPrimitive 创建富文本图元
func NewSpanPrimitive() *SpanPrimitive {
	return &SpanPrimitive{
		primitiveBase: primitiveBase{tag: "span", nums: newNumericAttrs("x", "y")},
		style:         &Span{NodeBase: NodeBase{tag: "span"}},
	}
}

// Content 获取内容
func (s *SpanPrimitive) Content() *Span {
	return s.content
}

// SetContent 设置内容
func (s *SpanPrimitive) SetContent(c *Span) {
	s.content = c
	if c != nil {
		c.tag = "content"
		adopt(s.style, c)
	}
}

func (s *SpanPrimitive) setOwner(owner Node) {
	s.owner = owner
	s.style.parent = owner
}

// SetAttr 设置属性
func (s *SpanPrimitive) SetAttr(name, value string, src AttrSource) bool {
	owner := "span primitive"
	switch name {
	case "anchor":
		a, ok := anchorVocab.parse(value)
		if !ok {
			return src.errorf("Invalid 'anchor' value (%s) on %s", value, owner)
		}
		s.anchor = a
		return true
	case "alpha":
		a, ok := src.alpha(value, name, owner)
		s.alpha = a
		return ok
	case "filled":
		src.deprecated("Deprecated 'filled' attribute on %s", owner)
		return true
	case "color", "fontname", "fontsize", "fontstyle":
		return setFontAttr(&s.style.NodeBase, name, value, src)
	}
	if s.nums.allowed(name) {
		_, ok := s.setCommon(name, value, src)
		return ok
	}
	return s.unsupported(name, src)
}

// Instance 生成实例
func (s *SpanPrimitive) Instance(ctx *EvalContext) PrimitiveInst {
	x, ok1 := s.nums.eval(ctx, "x", 0)
	y, ok2 := s.nums.eval(ctx, "y", 0)
	if !ok1 || !ok2 || s.content == nil {
		return nil
	}
	content, ok := s.content.Instance(ctx).(*SpanInst)
	if !ok {
		return nil
	}
	inst := &SpanPrimitiveInst{X: x, Y: y, Anchor: s.anchor, Content: content, Style: s.style.resolvedStyle(), Alpha: 1}
	if s.alpha != nil {
		inst.Alpha = *s.alpha
	}
	return inst
}

// Copy 深拷贝
func (s *SpanPrimitive) Copy() Primitive {
	c := &SpanPrimitive{
		primitiveBase: s.cloneBase(),
		style:         &Span{NodeBase: NodeBase{tag: "span", formatting: s.style.formatting, parent: s.owner}},
		anchor:        s.anchor,
		alpha:         s.alpha,
	}
	if s.content != nil {
		c.SetContent(s.content.Copy().(*Span))
	}
	return c
}

func (s *SpanPrimitive) writeXML(parent *etree.Element) {
	e := parent.CreateElement(s.tag)
	writeAnchor(e, s.anchor)
	if s.alpha != nil {
		e.CreateAttr("alpha", formatNumber(*s.alpha))
	}
	s.style.writeAttrs(e)
	s.nums.writeXML(e)
	if s.content != nil {
		s.content.writeXML(e)
	}
}

func (s *SpanPrimitive) accumulateParameterNames(set map[string]struct{}) {
	s.nums.accumulateParameterNames(set)
	if s.content != nil {
		s.content.accumulateParameterNames(set)
	}
}

// DefaultDomainVar 函数图像的默认自变量名
const DefaultDomainVar = "x"

// plotSamples 函数图像的采样段数
const plotSamples = 200

// FormulaPlot 坐标图中的函数图像
type FormulaPlot struct {
	primitiveBase
	domainVar string
	expr      *Formula
	window    Box
}

// NewFormulaPlot 创建函数图像
// 入参: expr 函数表达式
func NewFormulaPlot(expr *Formula) *FormulaPlot {
	return &FormulaPlot{
		primitiveBase: primitiveBase{tag: "formula", nums: newNumericAttrs("minx", "maxx")},
		domainVar:     DefaultDomainVar,
		expr:          expr,
	}
}

// Expr 获取函数表达式
func (f *FormulaPlot) Expr() *Formula {
	return f.expr
}

// DomainVar 获取自变量名
func (f *FormulaPlot) DomainVar() string {
	return f.domainVar
}

// SetExpr 设置函数表达式
func (f *FormulaPlot) SetExpr(expr *Formula) {
	f.expr = expr
}

// SetAttr 设置属性
func (f *FormulaPlot) SetAttr(name, value string, src AttrSource) bool {
	owner := "graph formula"
	switch name {
	case "domain-var":
		if strings.TrimSpace(value) == "" {
			return src.errorf("Invalid 'domain-var' value (%s) on %s", value, owner)
		}
		f.domainVar = strings.TrimSpace(value)
		return true
	case "color":
		if !IsColorName(value) {
			return src.errorf("Unrecognized color value.")
		}
		f.paint.strokeColor = value
		return true
	}
	if handled, ok := f.setCommon(name, value, src); handled {
		return ok
	}
	return f.unsupported(name, src)
}

// Instance 在定义域内采样, 无法求值的点将曲线断开
func (f *FormulaPlot) Instance(ctx *EvalContext) PrimitiveInst {
	if f.expr == nil {
		return nil
	}
	lo, ok1 := f.nums.eval(ctx, "minx", f.window.X)
	hi, ok2 := f.nums.eval(ctx, "maxx", f.window.X+f.window.W)
	if !ok1 || !ok2 || hi <= lo {
		return nil
	}
	inst := &FormulaPlotInst{Stroke: f.paint.stroke(f.owner)}
	var xs, ys []float64
	flush := func() {
		if len(xs) > 1 {
			inst.Segments = append(inst.Segments, PolygonInst{Xs: xs, Ys: ys, Stroke: inst.Stroke})
		}
		xs, ys = nil, nil
	}
	for i := 0; i <= plotSamples; i++ {
		x := lo + (hi-lo)*float64(i)/plotSamples
		local := ctx.withVariable(&Variable{Name: f.domainVar, Value: x, Input: true})
		v, err := f.expr.Evaluate(local)
		y, ok := toFloat(v)
		if err != nil || !ok || math.IsNaN(y) || math.IsInf(y, 0) {
			flush()
			continue
		}
		xs, ys = append(xs, x), append(ys, y)
	}
	flush()
	return inst
}

// Copy 深拷贝
func (f *FormulaPlot) Copy() Primitive {
	c := *f
	c.primitiveBase = f.cloneBase()
	return &c
}

func (f *FormulaPlot) writeXML(parent *etree.Element) {
	e := parent.CreateElement(f.tag)
	if f.domainVar != DefaultDomainVar {
		e.CreateAttr("domain-var", f.domainVar)
	}
	if f.paint.strokeColor != "" {
		e.CreateAttr("color", f.paint.strokeColor)
	}
	if f.paint.strokeWidth != nil {
		e.CreateAttr("stroke-width", formatNumber(*f.paint.strokeWidth))
	}
	if len(f.paint.strokeDash) > 0 {
		e.CreateAttr("stroke-dash", formatFloats(f.paint.strokeDash))
	}
	f.nums.writeXML(e)
	if f.expr != nil {
		e.CreateElement("expr").CreateCharData(f.expr.Source())
	}
}

func (f *FormulaPlot) accumulateParameterNames(set map[string]struct{}) {
	f.nums.accumulateParameterNames(set)
	if f.expr != nil {
		for _, name := range f.expr.vars {
			if name != f.domainVar {
				set[name] = struct{}{}
			}
		}
	}
}
