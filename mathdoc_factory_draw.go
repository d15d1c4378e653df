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
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// primitiveFactories 绘图与坐标图中可出现的图元
var primitiveFactories = map[string]func() Primitive{
	"line":       func() Primitive { return NewLine() },
	"arc":        func() Primitive { return NewArc() },
	"oval":       func() Primitive { return NewOval() },
	"rectangle":  func() Primitive { return NewRectangle() },
	"polygon":    func() Primitive { return NewPolygon() },
	"polyline":   func() Primitive { return NewPolyline() },
	"protractor": func() Primitive { return NewProtractor() },
	"raster":     func() Primitive { return NewRaster() },
	"text":       func() Primitive { return NewTextPrimitive() },
}

// valign 读取画布的垂直对齐方式
func (p *parser) valign(e *etree.Element, b *NodeBase) bool {
	v, ok := attr(e, "valign")
	if !ok {
		return true
	}
	va, found := valignVocab.parse(v)
	if !found {
		p.diag.errorf(e, "Invalid 'valign' attribute value.")
		return false
	}
	b.SetVAlign(va)
	return true
}

// drawing 解析绘图
func (p *parser) drawing(e *etree.Element) Node {
	valid := p.checkAttrs(e, "width", "height", "valign", "alt", "bgcolor")
	w, ok := p.numberOrFormula(e, "width", true)
	valid = ok && valid
	h, ok := p.numberOrFormula(e, "height", true)
	valid = ok && valid
	d := NewDrawing(w, h)
	valid = p.valign(e, &d.NodeBase) && valid
	if v, has := attr(e, "alt"); has {
		d.SetAlt(v)
	}
	if v, has := attr(e, "bgcolor"); has {
		if IsColorName(v) {
			d.SetBgColor(v)
		} else {
			p.diag.errorf(e, "Invalid color specified for bgcolor.")
			valid = false
		}
	}
	valid = p.formattable(e, &d.NodeBase) && valid
	valid = p.noText(e, "drawing") && valid
	for _, c := range e.ChildElements() {
		tag := strings.ToLower(c.Tag)
		if tag == "width" || tag == "height" {
			continue
		}
		prim, ok := p.anyPrimitive(c)
		if prim == nil {
			p.diag.errorf(e, "The %s tag is not valid within drawing.", c.Tag)
			valid = false
			continue
		}
		if !ok {
			valid = false
			continue
		}
		d.Add(prim)
	}
	if !valid {
		return nil
	}
	return d
}

// anyPrimitive 解析图元元素
// 返回: Primitive 图元(元素不是图元时为nil), bool 是否有效
func (p *parser) anyPrimitive(e *etree.Element) (Primitive, bool) {
	tag := strings.ToLower(e.Tag)
	if tag == "span" {
		return p.spanPrimitive(e)
	}
	factory, found := primitiveFactories[tag]
	if !found {
		return nil, false
	}
	prim := factory()
	return prim, p.primitive(e, prim)
}

// setPrimitiveAttrs 按文档顺序设置图元属性, 遇到第一个错误即停止
func (p *parser) setPrimitiveAttrs(e *etree.Element, prim Primitive) bool {
	src := p.src(e)
	for _, a := range e.Attr {
		if a.Space != "" {
			continue
		}
		if !prim.SetAttr(a.Key, a.Value, src) {
			return false
		}
	}
	return true
}

// primitiveFormula 以公式子元素覆盖图元的数值属性
func (p *parser) primitiveFormula(e, c *etree.Element, prim Primitive) bool {
	name := strings.ToLower(c.Tag)
	f, ok := p.formula(c)
	if !ok {
		p.diag.errorf(e, "Invalid '%s' formula.", name)
		return false
	}
	if !prim.SetFormula(name, f) {
		p.diag.errorf(e, "Unsupported '%s' child of <%s> primitive.", c.Tag, prim.Tag())
		return false
	}
	return true
}

// primitive 解析图元的属性与子元素
func (p *parser) primitive(e *etree.Element, prim Primitive) bool {
	if !p.setPrimitiveAttrs(e, prim) {
		return false
	}
	valid := p.noText(e, prim.Tag()+" primitive")
	for _, c := range e.ChildElements() {
		if arc, isArc := prim.(*Arc); isArc && strings.EqualFold(c.Tag, "label") {
			nw, ok := p.nonwrap(c, "label")
			valid = ok && valid
			arc.SetLabelSpan(nw)
			continue
		}
		valid = p.primitiveFormula(e, c, prim) && valid
	}
	return valid
}

// spanPrimitive 解析富文本图元
// 当前语法以 <content> 子元素给出内容, 旧语法直接以元素内容给出
func (p *parser) spanPrimitive(e *etree.Element) (Primitive, bool) {
	sp := NewSpanPrimitive()
	if !p.setPrimitiveAttrs(e, sp) {
		return sp, false
	}
	var content *etree.Element
	for _, c := range e.ChildElements() {
		if strings.EqualFold(c.Tag, "content") {
			content = c
			break
		}
	}
	valid := true
	if content == nil {
		p.diag.deprecated(e, p.mode, "Deprecated format for <span> primitive")
		s := NewSpan()
		valid = p.content(e, s, spanRules, func(c *etree.Element) bool {
			tag := strings.ToLower(c.Tag)
			if tag != "x" && tag != "y" {
				return false
			}
			valid = p.primitiveFormula(e, c, sp) && valid
			return true
		}) && valid
		sp.SetContent(s)
		return sp, valid
	}
	valid = p.noText(e, "span primitive")
	for _, c := range e.ChildElements() {
		if c == content {
			continue
		}
		if strings.EqualFold(c.Tag, "content") {
			p.diag.errorf(e, "Multiple <content> tags in span primitive.")
			valid = false
			continue
		}
		valid = p.primitiveFormula(e, c, sp) && valid
	}
	s := NewSpan()
	ok := p.checkAttrs(content)
	ok = p.formattable(content, &s.NodeBase) && ok
	ok = p.content(content, s, spanRules, nil) && ok
	if !ok {
		p.diag.errorf(e, "Failed to parse <content> in span primitive.")
		return sp, false
	}
	sp.SetContent(s)
	return sp, valid
}

// graphAttrs 坐标图支持的属性
var graphAttrs = []string{
	"width", "height", "minx", "maxx", "miny", "maxy", "xtickinterval", "ytickinterval",
	"bgcolor", "bordercolor", "gridcolor", "tickcolor", "axiscolor",
	"borderwidth", "gridwidth", "tickwidth", "ticksize", "axiswidth",
	"axislabelfontsize", "ticklabelfontsize", "xaxislabel", "yaxislabel", "valign", "alt",
}

// graphWindow 读取坐标窗口, 四个边界必须同时给出
func (p *parser) graphWindow(e *etree.Element) (Box, bool) {
	names := []string{"minx", "maxx", "miny", "maxy"}
	var vals [4]float64
	count := 0
	valid := true
	for i, name := range names {
		v, ok := attr(e, name)
		if !ok {
			continue
		}
		count++
		f, ok := parseNumber(v, false)
		if !ok {
			valid = false
			continue
		}
		vals[i] = f
	}
	switch {
	case count == 0:
		return DefaultGraphWindow, true
	case count < len(names):
		p.diag.errorf(e, "Incomplete window specification.")
		return Box{}, false
	case !valid:
		p.diag.errorf(e, "Invalid window min or max attribute value (must be a number).")
		return Box{}, false
	case vals[1] <= vals[0] || vals[3] <= vals[2]:
		p.diag.errorf(e, "Invalid window (max must be greater than min).")
		return Box{}, false
	}
	return Box{X: vals[0], Y: vals[2], W: vals[1] - vals[0], H: vals[3] - vals[2]}, true
}

// graphStyle 读取坐标轴、网格与刻度设置
func (p *parser) graphStyle(e *etree.Element) (GraphStyle, bool) {
	s := DefaultGraphStyle()
	valid := true
	for _, t := range []struct {
		name string
		dst  *float64
	}{{"xtickinterval", &s.XTickInterval}, {"ytickinterval", &s.YTickInterval}} {
		v, ok := attr(e, t.name)
		if !ok {
			continue
		}
		f, ok := parseNumber(v, false)
		if !ok || f <= 0 {
			p.diag.errorf(e, "Invalid '%s' attribute value (must be a positive number).", t.name)
			valid = false
			continue
		}
		*t.dst = f
	}
	for _, c := range []struct {
		name string
		dst  *string
	}{
		{"bgcolor", &s.BgColor}, {"bordercolor", &s.BorderColor}, {"gridcolor", &s.GridColor},
		{"tickcolor", &s.TickColor}, {"axiscolor", &s.AxisColor},
	} {
		v, ok := attr(e, c.name)
		if !ok {
			continue
		}
		if !IsColorName(v) {
			p.diag.errorf(e, "Invalid '%s' color name.", c.name)
			valid = false
			continue
		}
		*c.dst = v
	}
	for _, w := range []struct {
		name string
		dst  *int
	}{
		{"borderwidth", &s.BorderWidth}, {"gridwidth", &s.GridWidth}, {"tickwidth", &s.TickWidth},
		{"ticksize", &s.TickSize}, {"axiswidth", &s.AxisWidth},
		{"axislabelfontsize", &s.AxisLabelFontSize}, {"ticklabelfontsize", &s.TickLabelFontSize},
	} {
		v, ok := attr(e, w.name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n < 0 {
			p.diag.errorf(e, "Invalid '%s' attribute value (must be an integer).", w.name)
			valid = false
			continue
		}
		*w.dst = n
	}
	if v, ok := attr(e, "xaxislabel"); ok {
		s.XAxisLabel = v
	}
	if v, ok := attr(e, "yaxislabel"); ok {
		s.YAxisLabel = v
	}
	return s, valid
}

// requiredInt 读取必需的正整数属性
func (p *parser) requiredInt(e *etree.Element, name string) (int, bool) {
	v, ok := attr(e, name)
	if !ok {
		p.diag.errorf(e, "<%s> element missing required '%s' attribute.", e.Tag, name)
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n <= 0 {
		p.diag.errorf(e, "Invalid '%s' attribute value (must be an integer).", name)
		return 0, false
	}
	return n, true
}

// graphXY 解析坐标图
func (p *parser) graphXY(e *etree.Element) Node {
	valid := p.checkAttrs(e, graphAttrs...)
	w, ok := p.requiredInt(e, "width")
	valid = ok && valid
	h, ok := p.requiredInt(e, "height")
	valid = ok && valid
	window, ok := p.graphWindow(e)
	valid = ok && valid
	style, ok := p.graphStyle(e)
	valid = ok && valid

	g := NewGraphXY(w, h)
	g.SetStyle(style)
	if window.W > 0 && window.H > 0 {
		g.SetWindow(window.X, window.X+window.W, window.Y, window.Y+window.H)
	}
	if v, has := attr(e, "alt"); has {
		g.SetAlt(v)
	}
	valid = p.valign(e, &g.NodeBase) && valid
	valid = p.formattable(e, &g.NodeBase) && valid
	valid = p.noText(e, "GraphXY") && valid
	for _, c := range e.ChildElements() {
		tag := strings.ToLower(c.Tag)
		if tag == "formula" || tag == "function-plot" {
			plot, ok := p.graphFormula(c)
			if !ok {
				valid = false
				continue
			}
			g.Add(plot)
			continue
		}
		prim, ok := p.anyPrimitive(c)
		if prim == nil {
			p.diag.errorf(e, "The %s tag is not valid within GraphXY.", c.Tag)
			valid = false
			continue
		}
		if !ok {
			valid = false
			continue
		}
		g.Add(prim)
	}
	if !valid {
		return nil
	}
	return g
}

// graphFormula 解析函数图像
// 自变量只在表达式的解析上下文中可见, 不写入调用方的上下文
func (p *parser) graphFormula(e *etree.Element) (Primitive, bool) {
	f := NewFormulaPlot(nil)
	if !p.setPrimitiveAttrs(e, f) {
		return nil, false
	}
	exprCtx := p.ctx
	if exprCtx != nil {
		exprCtx = exprCtx.withVariable(&Variable{Name: f.DomainVar(), Value: 0.0, Input: true})
	}
	valid := true
	kids := e.ChildElements()
	if len(kids) == 0 {
		if src := strings.TrimSpace(charData(e)); src != "" {
			p.diag.deprecated(e, p.mode, "Deprecated text-format expression in graph formula")
			expr, err := ParseFormula(src, exprCtx)
			if err != nil {
				p.diag.errorf(e, "Unable to parse formula.")
				return nil, false
			}
			f.SetExpr(expr)
		}
	} else {
		valid = p.noText(e, "graph formula")
	}
	for _, c := range kids {
		switch name := strings.ToLower(c.Tag); name {
		case "expr":
			expr, err := ParseFormula(charData(c), exprCtx)
			if err != nil {
				p.diag.errorf(e, "Invalid 'expr' formula")
				valid = false
				continue
			}
			f.SetExpr(expr)
		case "minx", "maxx":
			bound, ok := p.formula(c)
			if !ok {
				p.diag.errorf(e, "Invalid '%s' formula", name)
				valid = false
				continue
			}
			f.SetFormula(name, bound)
		default:
			p.diag.errorf(e, "Unsupported '%s' child of graph formula", c.Tag)
			valid = false
		}
	}
	if f.Expr() == nil {
		if valid {
			p.diag.errorf(e, "Unable to parse formula.")
		}
		return nil, false
	}
	return f, valid
}

// inputAttrs 输入控件支持的属性
var inputAttrs = []string{
	"type", "name", "value", "selected", "width", "style", "treat-minus-as",
	"default", "text-value", "enabled-var-name", "enabled-var-value",
}

// input 解析作答输入控件
func (p *parser) input(e *etree.Element) Node {
	valid := p.checkAttrs(e, inputAttrs...)
	ts, ok := attr(e, "type")
	if !ok {
		p.diag.errorf(e, "<input> element missing required 'type' attribute")
		return nil
	}
	name, ok := attr(e, "name")
	if !ok || strings.TrimSpace(name) == "" {
		p.diag.errorf(e, "<input> element missing required 'name' attribute")
		return nil
	}
	t, found := inputTypeVocab.parse(ts)
	if !found {
		p.diag.errorf(e, "Unrecognized type of input: %s", ts)
		return nil
	}
	in := NewInput(t, strings.TrimSpace(name))
	if t == InputRadioButton || t == InputCheckbox {
		valid = p.choiceAttrs(e, in) && valid
	} else {
		valid = p.fieldAttrs(e, in) && valid
	}
	valid = p.enabledVar(e, in) && valid
	valid = p.formattable(e, &in.NodeBase) && valid
	valid = p.noText(e, "input") && valid
	for _, c := range e.ChildElements() {
		if !strings.EqualFold(c.Tag, "enabled") {
			p.diag.errorf(e, "The %s tag is not valid within input.", c.Tag)
			valid = false
			continue
		}
		p.diag.deprecated(e, p.mode, "Deprecated 'enabled' formula on input")
		f, ok := p.formula(c)
		if !ok {
			p.diag.errorf(e, "Invalid 'enabled' formula.")
			valid = false
			continue
		}
		in.SetEnabledFormula(f)
	}
	if !valid {
		return nil
	}
	return in
}

// choiceAttrs 单选按钮与复选框的属性
func (p *parser) choiceAttrs(e *etree.Element, in *Input) bool {
	kind := "radio button"
	if in.Type() == InputCheckbox {
		kind = "checkbox"
	}
	valid := true
	v, ok := attr(e, "value")
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if !ok || err != nil {
		p.diag.errorf(e, "Invalid %s value.", kind)
		valid = false
	} else {
		in.SetChoice(n)
	}
	if v, ok := attr(e, "selected"); ok {
		b, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(v)))
		if err != nil {
			p.diag.errorf(e, "Invalid %s selected value (must be TRUE or FALSE).", kind)
			valid = false
		} else {
			in.SetValue(strconv.FormatBool(b))
		}
	}
	return valid
}

// fieldAttrs 整数、实数与文本输入框的属性
func (p *parser) fieldAttrs(e *etree.Element, in *Input) bool {
	valid := true
	if v, ok := attr(e, "width"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n <= 0 {
			p.diag.errorf(e, "Invalid 'width' attribute value")
			valid = false
		} else {
			in.SetWidth(n)
		}
	}
	if v, ok := attr(e, "style"); ok {
		s, found := fieldStyleVocab.parse(v)
		if !found {
			p.diag.errorf(e, "Invalid 'style' attribute value")
			valid = false
		} else {
			in.SetFieldStyle(s)
		}
	}
	if v, ok := attr(e, "treat-minus-as"); ok {
		f, good := parseNumber(v, in.Type() == InputInteger)
		if !good || in.Type() == InputString {
			p.diag.errorf(e, "Invalid 'treat-minus-as' attribute value")
			valid = false
		} else {
			in.SetTreatMinusAs(f)
		}
	}
	if v, ok := attr(e, "default"); ok && !in.SetDefault(v) {
		p.diag.errorf(e, "Invalid 'default' attribute value")
		valid = false
	}
	for _, name := range []string{"value", "text-value"} {
		if v, ok := attr(e, name); ok && !in.SetValue(v) {
			p.diag.errorf(e, "Invalid '%s' attribute value", name)
			valid = false
		}
	}
	return valid
}

// enabledVar 按变量取值启用控件的条件, 名称与取值必须同时给出
func (p *parser) enabledVar(e *etree.Element, in *Input) bool {
	name, hasName := attr(e, "enabled-var-name")
	value, hasValue := attr(e, "enabled-var-value")
	switch {
	case !hasName && !hasValue:
		return true
	case !hasValue:
		p.diag.errorf(e, "'enabled-var-name' present but 'enabled-var-value' absent")
		return false
	case !hasName:
		p.diag.errorf(e, "'enabled-var-value' present but 'enabled-var-name' absent")
		return false
	}
	value = strings.TrimSpace(value)
	switch strings.ToLower(value) {
	case "true", "false":
		in.SetEnabledVar(strings.TrimSpace(name), strings.EqualFold(value, "true"))
		return true
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		p.diag.errorf(e, "Invalid 'enabled-var-value' attribute value")
		return false
	}
	in.SetEnabledVar(strings.TrimSpace(name), n)
	return true
}

// image 解析图片
func (p *parser) image(e *etree.Element) Node {
	valid := p.checkAttrs(e, "src", "width", "height", "valign", "alt")
	src, ok := attr(e, "src")
	if !ok {
		p.diag.errorf(e, "<image> element missing required 'src' attribute.")
		return nil
	}
	if !validImageURL(src) {
		p.diag.errorf(e, "<image> element has invalid URL in 'src' attribute.")
		return nil
	}
	im := NewImage(src)
	w, ok := p.numberOrFormula(e, "width", false)
	valid = ok && valid
	h, ok := p.numberOrFormula(e, "height", false)
	valid = ok && valid
	im.SetSize(w, h)
	if v, has := attr(e, "alt"); has {
		im.SetAlt(v)
	}
	valid = p.valign(e, &im.NodeBase) && valid
	valid = p.formattable(e, &im.NodeBase) && valid
	valid = p.onlyChildren(e, "image", "width", "height") && valid
	if !valid {
		return nil
	}
	return im
}

// symbolPalette 解析符号面板
func (p *parser) symbolPalette(e *etree.Element) Node {
	valid := p.checkAttrs(e, "symbols")
	v, ok := attr(e, "symbols")
	symbols, good := parseSymbolList(v)
	if !ok || !good {
		p.diag.errorf(e, "Invalid 'symbols' attribute value.")
		return nil
	}
	valid = p.onlyChildren(e, "symbol-palette") && valid
	if !valid {
		return nil
	}
	return NewSymbolPalette(symbols)
}
