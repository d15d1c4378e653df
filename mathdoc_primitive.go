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

// Primitive 绘图或坐标图中的图元
// 图元不参与文本排版, 几何信息在生成实例或绘制时求值
type Primitive interface {
	// Tag 获取XML元素名
	Tag() string
	// SetAttr 校验并保存一个属性, 失败时在 src 上记录错误并返回false
	SetAttr(name, value string, src AttrSource) bool
	// SetFormula 以子元素公式覆盖数值属性, 属性不支持公式时返回false
	SetFormula(name string, f *Formula) bool
	// Instance 求值全部几何属性, 失败时返回nil
	Instance(ctx *EvalContext) PrimitiveInst
	// Copy 深拷贝
	Copy() Primitive

	setOwner(owner Node)
	writeXML(parent *etree.Element)
	accumulateParameterNames(set map[string]struct{})
}

// AttrSource 属性错误的记录位置
type AttrSource struct {
	Elem *etree.Element
	Diag *Diagnostics
	Mode ParserMode
	// Ctx 用于校验旧语法公式中的变量名, 可为nil
	Ctx *EvalContext
}

func (s AttrSource) errorf(format string, args ...any) bool {
	if s.Diag != nil {
		s.Diag.errorf(s.Elem, format, args...)
	}
	return false
}

func (s AttrSource) deprecated(format string, args ...any) {
	if s.Diag != nil {
		s.Diag.deprecated(s.Elem, s.Mode, format, args...)
	}
}

// parseFinite 解析有限浮点数
func parseFinite(value string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// numberOrFormula 解析数值属性, 非数字时按旧语法解析为公式
func (s AttrSource) numberOrFormula(value, name, owner string) (NumberOrFormula, bool) {
	if v, ok := parseFinite(value); ok {
		return NewNumber(v), true
	}
	f, err := ParseFormula(value, s.Ctx)
	if err != nil {
		return NumberOrFormula{}, s.errorf("Invalid '%s' value (%s) on %s", name, value, owner)
	}
	s.deprecated("Deprecated use of formula in '%s' on %s", name, owner)
	return NewFormulaValue(f), true
}

func (s AttrSource) float(value, name, owner string) (float64, bool) {
	v, ok := parseFinite(value)
	if !ok {
		return 0, s.errorf("Invalid '%s' value (%s) on %s", name, value, owner)
	}
	return v, true
}

func (s AttrSource) alpha(value, name, owner string) (*float64, bool) {
	v, ok := parseFinite(value)
	if !ok || v < 0 || v > 1 {
		return nil, s.errorf("Invalid '%s' value (%s) on %s", name, value, owner)
	}
	return &v, true
}

func (s AttrSource) color(value, name, owner string) (string, bool) {
	if !IsColorName(value) {
		return "", s.errorf("Invalid '%s' value (%s) on %s", name, value, owner)
	}
	return value, true
}

func (s AttrSource) dash(value, name, owner string) ([]float64, bool) {
	d, ok := parseFloats(value)
	if !ok {
		return nil, s.errorf("Invalid '%s' value (%s) on %s", name, value, owner)
	}
	for _, v := range d {
		if v < 0 {
			return nil, s.errorf("Invalid '%s' value (%s) on %s", name, value, owner)
		}
	}
	return d, true
}

func formatFloats(vs []float64) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = formatNumber(v)
	}
	return strings.Join(parts, ",")
}

// numericAttrs 图元的数值属性, 每项为常量或公式
type numericAttrs struct {
	names []string
	vals  map[string]NumberOrFormula
}

func newNumericAttrs(names ...string) numericAttrs {
	return numericAttrs{names: names, vals: make(map[string]NumberOrFormula)}
}

func (n *numericAttrs) allowed(name string) bool {
	for _, s := range n.names {
		if s == name {
			return true
		}
	}
	return false
}

func (n *numericAttrs) set(name string, v NumberOrFormula) {
	n.vals[name] = v
}

func (n *numericAttrs) has(name string) bool {
	_, ok := n.vals[name]
	return ok
}

// eval 求值, 未设置时返回默认值
func (n *numericAttrs) eval(ctx *EvalContext, name string, def float64) (float64, bool) {
	v, ok := n.vals[name]
	if !ok {
		return def, true
	}
	f, err := v.Evaluate(ctx)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		ctx.Logger().Debug("primitive value unavailable")
		return 0, false
	}
	return f, true
}

func (n *numericAttrs) clone() numericAttrs {
	c := numericAttrs{names: n.names, vals: make(map[string]NumberOrFormula, len(n.vals))}
	for k, v := range n.vals {
		c.vals[k] = v
	}
	return c
}

func (n *numericAttrs) writeXML(e *etree.Element) {
	for _, name := range n.names {
		if v, ok := n.vals[name]; ok {
			writeNumberOrFormula(e, name, v)
		}
	}
}

func (n *numericAttrs) accumulateParameterNames(set map[string]struct{}) {
	for _, v := range n.vals {
		addFormulaNames(set, &v)
	}
}

// paintStyle 描边与填充设置
type paintStyle struct {
	strokeWidth *float64
	strokeColor string
	strokeDash  []float64
	strokeAlpha *float64
	fillable    bool
	fillStyle   FillStyle
	fillColor   string
	fillAlpha   *float64
}

// setAttr 处理描边与填充属性
// 返回: bool 属性是否属于描边填充, bool 是否成功
func (p *paintStyle) setAttr(name, value, owner string, src AttrSource) (bool, bool) {
	ok := true
	switch name {
	case "stroke-width":
		var w float64
		if w, ok = src.float(value, name, owner); ok {
			if w < 0 {
				ok = src.errorf("Invalid '%s' value (%s) on %s", name, value, owner)
			} else {
				p.strokeWidth = &w
			}
		}
	case "stroke-color":
		p.strokeColor, ok = src.color(value, name, owner)
	case "stroke-dash":
		p.strokeDash, ok = src.dash(value, name, owner)
	case "stroke-alpha":
		p.strokeAlpha, ok = src.alpha(value, name, owner)
	case "color":
		src.deprecated("Deprecated 'color' attribute on %s", owner)
		if p.strokeColor, ok = src.color(value, name, owner); ok && p.fillable {
			p.fillColor = p.strokeColor
		}
	case "dash":
		src.deprecated("Deprecated 'dash' attribute on %s", owner)
		p.strokeDash, ok = src.dash(value, name, owner)
	case "alpha":
		src.deprecated("Deprecated 'alpha' attribute on %s", owner)
		if p.strokeAlpha, ok = src.alpha(value, name, owner); ok && p.fillable {
			p.fillAlpha = p.strokeAlpha
		}
	default:
		if !p.fillable {
			return false, false
		}
		switch name {
		case "fill-style":
			fs, found := fillStyleVocab.parse(value)
			if !found {
				return true, src.errorf("Invalid 'fill-style' value (%s) on %s", value, owner)
			}
			p.fillStyle = fs
		case "fill-color":
			p.fillColor, ok = src.color(value, name, owner)
		case "fill-alpha":
			p.fillAlpha, ok = src.alpha(value, name, owner)
		case "filled":
			src.deprecated("Deprecated 'filled' attribute on %s", owner)
			switch strings.ToLower(strings.TrimSpace(value)) {
			case "true":
				p.fillStyle = FillSolid
			case "false":
				p.fillStyle = FillNone
			default:
				return true, src.errorf("Invalid 'filled' value (%s) on %s", value, owner)
			}
		default:
			return false, false
		}
	}
	return true, ok
}

func (p *paintStyle) clone() paintStyle {
	c := *p
	c.strokeDash = append([]float64(nil), p.strokeDash...)
	return c
}

// stroke 解析描边, 线宽为零时返回nil
func (p *paintStyle) stroke(owner Node) *StrokeInst {
	s := &StrokeInst{Width: 1, ColorName: p.strokeColor, Dash: p.strokeDash, Alpha: 1}
	if p.strokeWidth != nil {
		s.Width = *p.strokeWidth
	}
	if s.Width == 0 {
		return nil
	}
	if s.ColorName == "" {
		s.ColorName = inheritedColor(owner)
	}
	if p.strokeAlpha != nil {
		s.Alpha = *p.strokeAlpha
	}
	return s
}

// fill 解析填充, 不填充时返回nil
func (p *paintStyle) fill(owner Node) *FillInst {
	if p.fillStyle != FillSolid {
		return nil
	}
	f := &FillInst{ColorName: p.fillColor, Alpha: 1}
	if f.ColorName == "" {
		f.ColorName = p.strokeColor
	}
	if f.ColorName == "" {
		f.ColorName = inheritedColor(owner)
	}
	if p.fillAlpha != nil {
		f.Alpha = *p.fillAlpha
	}
	return f
}

func (p *paintStyle) writeAttrs(e *etree.Element) {
	if p.strokeWidth != nil {
		e.CreateAttr("stroke-width", formatNumber(*p.strokeWidth))
	}
	if p.strokeColor != "" {
		e.CreateAttr("stroke-color", p.strokeColor)
	}
	if len(p.strokeDash) > 0 {
		e.CreateAttr("stroke-dash", formatFloats(p.strokeDash))
	}
	if p.strokeAlpha != nil {
		e.CreateAttr("stroke-alpha", formatNumber(*p.strokeAlpha))
	}
	if p.fillStyle != FillNone {
		e.CreateAttr("fill-style", fillStyleVocab.name(p.fillStyle))
	}
	if p.fillColor != "" {
		e.CreateAttr("fill-color", p.fillColor)
	}
	if p.fillAlpha != nil {
		e.CreateAttr("fill-alpha", formatNumber(*p.fillAlpha))
	}
}

// inheritedColor 获取所属容器的颜色
func inheritedColor(owner Node) string {
	if owner == nil {
		return DefaultColorName
	}
	return owner.Base().ColorName()
}

// primitiveBase 图元公共字段
type primitiveBase struct {
	tag   string
	nums  numericAttrs
	paint paintStyle
	owner Node
}

// Tag 获取XML元素名
func (p *primitiveBase) Tag() string {
	return p.tag
}

// SetFormula 以公式设置数值属性
func (p *primitiveBase) SetFormula(name string, f *Formula) bool {
	if f == nil || !p.nums.allowed(name) {
		return false
	}
	p.nums.set(name, NewFormulaValue(f))
	return true
}

func (p *primitiveBase) setOwner(owner Node) {
	p.owner = owner
}

// setCommon 处理数值与描边填充属性
// 返回: bool 属性是否已处理, bool 是否成功
func (p *primitiveBase) setCommon(name, value string, src AttrSource) (bool, bool) {
	owner := p.tag + " primitive"
	if p.nums.allowed(name) {
		v, ok := src.numberOrFormula(value, name, owner)
		if ok {
			p.nums.set(name, v)
		}
		return true, ok
	}
	return p.paint.setAttr(name, value, owner, src)
}

func (p *primitiveBase) unsupported(name string, src AttrSource) bool {
	return src.errorf("Unsupported attribute '%s' on %s primitive", name, p.tag)
}

func (p *primitiveBase) cloneBase() primitiveBase {
	return primitiveBase{tag: p.tag, nums: p.nums.clone(), paint: p.paint.clone(), owner: p.owner}
}

func (p *primitiveBase) writeBase(parent *etree.Element) *etree.Element {
	e := parent.CreateElement(p.tag)
	p.paint.writeAttrs(e)
	return e
}

func (p *primitiveBase) accumulateParameterNames(set map[string]struct{}) {
	p.nums.accumulateParameterNames(set)
}

// bounds 椭圆与椭圆弧共用的外接矩形
// 出现 cx/cy/r/rx/ry 任一属性时按圆心与半径计算并忽略 x/y/width/height, rx/ry 缺省取 r
func (p *primitiveBase) bounds(ctx *EvalContext) (Box, bool) {
	n := &p.nums
	if n.has("cx") || n.has("cy") || n.has("r") || n.has("rx") || n.has("ry") {
		cx, ok1 := n.eval(ctx, "cx", 0)
		cy, ok2 := n.eval(ctx, "cy", 0)
		r, ok3 := n.eval(ctx, "r", 0)
		rx, ok4 := n.eval(ctx, "rx", r)
		ry, ok5 := n.eval(ctx, "ry", r)
		if !(ok1 && ok2 && ok3 && ok4 && ok5) {
			return Box{}, false
		}
		return Box{X: cx - rx, Y: cy - ry, W: 2 * rx, H: 2 * ry}, true
	}
	x, ok1 := n.eval(ctx, "x", 0)
	y, ok2 := n.eval(ctx, "y", 0)
	w, ok3 := n.eval(ctx, "width", 0)
	h, ok4 := n.eval(ctx, "height", 0)
	return Box{X: x, Y: y, W: w, H: h}, ok1 && ok2 && ok3 && ok4
}

// Line 线段, 从 (x,y) 到 (x+width, y+height)
type Line struct {
	primitiveBase
}

// NewLine 创建线段
func NewLine() *Line {
	return &Line{primitiveBase{tag: "line", nums: newNumericAttrs("x", "y", "width", "height")}}
}

// SetAttr 设置属性
func (l *Line) SetAttr(name, value string, src AttrSource) bool {
	if handled, ok := l.setCommon(name, value, src); handled {
		return ok
	}
	return l.unsupported(name, src)
}

// Instance 生成实例
func (l *Line) Instance(ctx *EvalContext) PrimitiveInst {
	b, ok := l.bounds(ctx)
	if !ok {
		return nil
	}
	return &LineInst{X: b.X, Y: b.Y, Width: b.W, Height: b.H, Stroke: l.paint.stroke(l.owner)}
}

// Copy 深拷贝
func (l *Line) Copy() Primitive {
	return &Line{l.cloneBase()}
}

func (l *Line) writeXML(parent *etree.Element) {
	l.nums.writeXML(l.writeBase(parent))
}

// Rectangle 矩形
type Rectangle struct {
	primitiveBase
}

// NewRectangle 创建矩形
func NewRectangle() *Rectangle {
	r := &Rectangle{primitiveBase{tag: "rectangle", nums: newNumericAttrs("x", "y", "width", "height")}}
	r.paint.fillable = true
	return r
}

// SetAttr 设置属性
func (r *Rectangle) SetAttr(name, value string, src AttrSource) bool {
	if handled, ok := r.setCommon(name, value, src); handled {
		return ok
	}
	return r.unsupported(name, src)
}

// Instance 生成实例
func (r *Rectangle) Instance(ctx *EvalContext) PrimitiveInst {
	b, ok := r.bounds(ctx)
	if !ok {
		return nil
	}
	return &RectangleInst{Bounds: b, Stroke: r.paint.stroke(r.owner), Fill: r.paint.fill(r.owner)}
}

// Copy 深拷贝
func (r *Rectangle) Copy() Primitive {
	return &Rectangle{r.cloneBase()}
}

func (r *Rectangle) writeXML(parent *etree.Element) {
	r.nums.writeXML(r.writeBase(parent))
}

// Oval 椭圆, 以外接矩形或圆心半径描述
type Oval struct {
	primitiveBase
}

// NewOval 创建椭圆
func NewOval() *Oval {
	o := &Oval{primitiveBase{tag: "oval", nums: newNumericAttrs("x", "y", "width", "height", "cx", "cy", "r", "rx", "ry")}}
	o.paint.fillable = true
	return o
}

// SetAttr 设置属性
func (o *Oval) SetAttr(name, value string, src AttrSource) bool {
	if handled, ok := o.setCommon(name, value, src); handled {
		return ok
	}
	return o.unsupported(name, src)
}

// Instance 生成实例
func (o *Oval) Instance(ctx *EvalContext) PrimitiveInst {
	b, ok := o.bounds(ctx)
	if !ok {
		return nil
	}
	return &OvalInst{Bounds: b, Stroke: o.paint.stroke(o.owner), Fill: o.paint.fill(o.owner)}
}

// Copy 深拷贝
func (o *Oval) Copy() Primitive {
	return &Oval{o.cloneBase()}
}

func (o *Oval) writeXML(parent *etree.Element) {
	o.nums.writeXML(o.writeBase(parent))
}

// Arc 椭圆弧, 可显示起止射线与标签
type Arc struct {
	primitiveBase
	raysShown  RaysShown
	ray        paintStyle
	label      string
	labelAlpha *float64
	labelStyle *Span
	labelSpan  *Nonwrap
}

// NewArc 创建椭圆弧
func NewArc() *Arc {
	return &Arc{primitiveBase: primitiveBase{tag: "arc", nums: newNumericAttrs(
		"x", "y", "width", "height", "cx", "cy", "r", "rx", "ry",
		"start-angle", "arc-angle", "ray-length", "label-offset",
	), paint: paintStyle{fillable: true}}, labelStyle: &Span{NodeBase: NodeBase{tag: "label"}}}
}

// SetLabelSpan 设置富文本标签
func (a *Arc) SetLabelSpan(s *Nonwrap) {
	a.labelSpan = s
	if s != nil {
		s.tag = "label"
		adopt(a.labelStyle, s)
	}
}

// LabelSpan 获取富文本标签
func (a *Arc) LabelSpan() *Nonwrap {
	return a.labelSpan
}

func (a *Arc) setOwner(owner Node) {
	a.owner = owner
	a.labelStyle.parent = owner
}

// SetAttr 设置属性
func (a *Arc) SetAttr(name, value string, src AttrSource) bool {
	if handled, ok := a.setCommon(name, value, src); handled {
		return ok
	}
	owner := "arc primitive"
	switch name {
	case "rays-shown":
		rs, ok := raysShownVocab.parse(value)
		if !ok {
			return src.errorf("Invalid 'rays-shown' value (%s) on %s", value, owner)
		}
		a.raysShown = rs
		return true
	case "ray-width", "ray-color", "ray-dash", "ray-alpha":
		_, ok := a.ray.setAttr("stroke-"+strings.TrimPrefix(name, "ray-"), value, owner, src)
		return ok
	case "label":
		a.label = value
		return true
	case "label-color":
		c, ok := src.color(value, name, owner)
		a.labelStyle.colorName = c
		return ok
	case "label-alpha":
		v, ok := src.alpha(value, name, owner)
		a.labelAlpha = v
		return ok
	case "fontname", "fontsize", "fontstyle":
		return setFontAttr(&a.labelStyle.NodeBase, name, value, src)
	}
	return a.unsupported(name, src)
}

// Instance 生成实例
func (a *Arc) Instance(ctx *EvalContext) PrimitiveInst {
	b, ok := a.bounds(ctx)
	if !ok {
		return nil
	}
	start, ok1 := a.nums.eval(ctx, "start-angle", 0)
	extent, ok2 := a.nums.eval(ctx, "arc-angle", 360)
	rayLen, ok3 := a.nums.eval(ctx, "ray-length", 0)
	offset, ok4 := a.nums.eval(ctx, "label-offset", 0)
	if !(ok1 && ok2 && ok3 && ok4) {
		return nil
	}
	inst := &ArcInst{
		Bounds: b, StartAngle: start, ArcAngle: extent,
		Stroke: a.paint.stroke(a.owner), Fill: a.paint.fill(a.owner),
		RaysShown: a.raysShown, RayLength: rayLen, LabelOffset: offset,
		LabelStyle: a.labelStyle.resolvedStyle(), LabelAlpha: 1,
	}
	if a.raysShown != RaysNone {
		inst.RayStroke = a.ray.stroke(a.owner)
	}
	if a.labelAlpha != nil {
		inst.LabelAlpha = *a.labelAlpha
	}
	if a.label != "" {
		s, ok := substituteParams(a.label, ctx)
		if !ok {
			return nil
		}
		inst.Label = s
	}
	if a.labelSpan != nil {
		if inst.LabelSpan, ok = a.labelSpan.Instance(ctx).(*NonwrapInst); !ok {
			return nil
		}
	}
	return inst
}

// Copy 深拷贝
func (a *Arc) Copy() Primitive {
	c := &Arc{
		primitiveBase: a.cloneBase(),
		raysShown:     a.raysShown,
		ray:           a.ray.clone(),
		label:         a.label,
		labelAlpha:    a.labelAlpha,
		labelStyle:    &Span{NodeBase: NodeBase{tag: "label", formatting: a.labelStyle.formatting, parent: a.owner}},
	}
	if a.labelSpan != nil {
		c.SetLabelSpan(a.labelSpan.Copy().(*Nonwrap))
	}
	return c
}

func (a *Arc) writeXML(parent *etree.Element) {
	e := a.writeBase(parent)
	if a.raysShown != RaysNone {
		e.CreateAttr("rays-shown", raysShownVocab.name(a.raysShown))
	}
	if a.ray.strokeWidth != nil {
		e.CreateAttr("ray-width", formatNumber(*a.ray.strokeWidth))
	}
	if a.ray.strokeColor != "" {
		e.CreateAttr("ray-color", a.ray.strokeColor)
	}
	if len(a.ray.strokeDash) > 0 {
		e.CreateAttr("ray-dash", formatFloats(a.ray.strokeDash))
	}
	if a.ray.strokeAlpha != nil {
		e.CreateAttr("ray-alpha", formatNumber(*a.ray.strokeAlpha))
	}
	if a.label != "" {
		e.CreateAttr("label", a.label)
	}
	if a.labelStyle.colorName != "" {
		e.CreateAttr("label-color", a.labelStyle.colorName)
	}
	if a.labelAlpha != nil {
		e.CreateAttr("label-alpha", formatNumber(*a.labelAlpha))
	}
	f := a.labelStyle.formatting
	f.colorName = ""
	f.writeAttrs(e)
	a.nums.writeXML(e)
	if a.labelSpan != nil {
		a.labelSpan.writeXML(e)
	}
}

func (a *Arc) accumulateParameterNames(set map[string]struct{}) {
	a.nums.accumulateParameterNames(set)
	addTextParams(set, a.label)
	if a.labelSpan != nil {
		a.labelSpan.accumulateParameterNames(set)
	}
}
