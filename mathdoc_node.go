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
	"sort"
	"strconv"

	"github.com/beevik/etree"
	"go.uber.org/zap"
)

const (
	// DefaultFontSize 默认字号(像素)
	DefaultFontSize = 24.0
	// DefaultFontName 默认字体
	DefaultFontName = "Go"
	// MathColorName 数学内容的默认颜色
	MathColorName = "navy"
)

// Node 模板节点
// 模板树在排版时就地写入几何信息, 不能在多个上下文中并发排版
type Node interface {
	// Base 获取公共字段
	Base() *NodeBase
	// Layout 计算本节点及其子树的宽高、基线与中线
	Layout(lc *LayoutContext, mode LayoutMode)
	// Instance 在上下文中生成实例节点, 无法生成时返回nil
	Instance(ctx *EvalContext) InstNode
	// Copy 深拷贝子树
	Copy() Node

	writeXML(parent *etree.Element)
	accumulateParameterNames(set map[string]struct{})
	accumulateInputs(list *[]*Input)
}

// FontSpec 排版用字体描述
type FontSpec struct {
	Name  string
	Size  float64
	Style FontStyle
}

// Metrics 文本度量结果
type Metrics struct {
	Width   float64
	Ascent  float64
	Descent float64
}

// Measurer 文本度量能力
type Measurer interface {
	Measure(font FontSpec, text string) Metrics
}

// LayoutContext 排版上下文
type LayoutContext struct {
	Eval     *EvalContext
	Measurer Measurer
}

// NewLayoutContext 创建排版上下文
// 入参: ctx 求值上下文, m 度量器, 为nil时使用内置字体度量
// 返回: *LayoutContext 排版上下文
func NewLayoutContext(ctx *EvalContext, m Measurer) *LayoutContext {
	if m == nil {
		m = DefaultMeasurer()
	}
	return &LayoutContext{Eval: ctx, Measurer: m}
}

func (lc *LayoutContext) measure(f FontSpec, s string) Metrics {
	if lc.Measurer == nil {
		lc.Measurer = DefaultMeasurer()
	}
	return lc.Measurer.Measure(f, s)
}

func (lc *LayoutContext) textWidth(f FontSpec, s string) int {
	return int(math.Round(lc.measure(f, s).Width))
}

// lineMetrics 字体的上升与下降高度
func (lc *LayoutContext) lineMetrics(f FontSpec) (int, int) {
	m := lc.measure(f, "My")
	return int(math.Round(m.Ascent)), int(math.Round(m.Descent))
}

// centerOffset 中线在基线之上的高度
func (lc *LayoutContext) centerOffset(f FontSpec) int {
	asc, _ := lc.lineMetrics(f)
	return asc / 3
}

// evalFloat 求值为有限数值, 失败时返回false并记录日志
func (lc *LayoutContext) evalFloat(n *NumberOrFormula, what string) (float64, bool) {
	if n == nil {
		return 0, false
	}
	v, err := n.Evaluate(lc.Eval)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		lc.Eval.Logger().Debug("layout value unavailable", zap.String("attr", what), zap.Error(err))
		return 0, false
	}
	return v, true
}

// evalInt 求值并取整
func (lc *LayoutContext) evalInt(n *NumberOrFormula, what string) (int, bool) {
	v, ok := lc.evalFloat(n, what)
	return int(math.Round(v)), ok
}

// formatting 元素上显式设置的格式属性
type formatting struct {
	colorName string
	fontName  string
	fontSize  float64
	fontScale float64
	fontStyle FontStyle
	styleSet  bool
}

// writeAttrs 输出格式属性
func (f *formatting) writeAttrs(e *etree.Element) {
	if f.colorName != "" {
		e.CreateAttr("color", f.colorName)
	}
	if f.fontName != "" {
		e.CreateAttr("fontname", f.fontName)
	}
	if f.fontSize != 0 {
		e.CreateAttr("fontsize", formatNumber(f.fontSize))
	} else if f.fontScale != 0 && f.fontScale != 1 {
		e.CreateAttr("fontsize", strconv.Itoa(int(math.Round(f.fontScale*100)))+"%")
	}
	if f.styleSet {
		e.CreateAttr("fontstyle", f.fontStyle.String())
	}
}

// NodeBase 所有模板节点共享的几何与样式字段
type NodeBase struct {
	X, Y          int
	Width, Height int
	BaseLine      int
	CenterLine    int

	formatting
	tag    string
	parent Node
	valign VAlign
}

// Base 获取公共字段
func (b *NodeBase) Base() *NodeBase {
	return b
}

// Tag 获取XML元素名
func (b *NodeBase) Tag() string {
	return b.tag
}

// Parent 获取父节点
func (b *NodeBase) Parent() Node {
	return b.parent
}

// VAlign 获取在父容器中的对齐方式
func (b *NodeBase) VAlign() VAlign {
	return b.valign
}

// SetVAlign 设置对齐方式
func (b *NodeBase) SetVAlign(v VAlign) {
	b.valign = v
}

// SetColorName 设置颜色
func (b *NodeBase) SetColorName(name string) {
	b.colorName = name
}

// SetFontName 设置字体
func (b *NodeBase) SetFontName(name string) {
	b.fontName = name
}

// SetFontSize 设置绝对字号
func (b *NodeBase) SetFontSize(size float64) {
	b.fontSize = size
}

// SetFontScale 设置相对字号
func (b *NodeBase) SetFontScale(scale float64) {
	b.fontScale = scale
}

// SetFontStyle 设置字体样式
func (b *NodeBase) SetFontStyle(s FontStyle) {
	b.fontStyle = s
	b.styleSet = true
}

func (b *NodeBase) parentBase() *NodeBase {
	if b.parent == nil {
		return nil
	}
	return b.parent.Base()
}

// ColorName 沿父链继承的颜色
func (b *NodeBase) ColorName() string {
	for n := b; n != nil; n = n.parentBase() {
		if n.colorName != "" {
			return n.colorName
		}
	}
	return DefaultColorName
}

// FontName 沿父链继承的字体
func (b *NodeBase) FontName() string {
	for n := b; n != nil; n = n.parentBase() {
		if n.fontName != "" {
			return n.fontName
		}
	}
	return DefaultFontName
}

// FontSize 沿父链继承的字号, 相对字号逐级相乘
func (b *NodeBase) FontSize() float64 {
	scale := 1.0
	for n := b; n != nil; n = n.parentBase() {
		if n.fontSize != 0 {
			return n.fontSize * scale
		}
		if n.fontScale != 0 {
			scale *= n.fontScale
		}
	}
	return DefaultFontSize * scale
}

// FontStyle 沿父链继承的字体样式
func (b *NodeBase) FontStyle() FontStyle {
	for n := b; n != nil; n = n.parentBase() {
		if n.styleSet {
			return n.fontStyle
		}
	}
	return StylePlain
}

// IsBold 是否粗体
func (b *NodeBase) IsBold() bool { return b.FontStyle()&StyleBold != 0 }

// IsItalic 是否斜体
func (b *NodeBase) IsItalic() bool { return b.FontStyle()&StyleItalic != 0 }

// IsBoxed 是否加框
func (b *NodeBase) IsBoxed() bool { return b.FontStyle()&StyleBoxed != 0 }

// IsHidden 是否隐藏
func (b *NodeBase) IsHidden() bool { return b.FontStyle()&StyleHidden != 0 }

// fontSpec 当前节点的排版字体
func (b *NodeBase) fontSpec() FontSpec {
	return FontSpec{Name: b.FontName(), Size: b.FontSize(), Style: b.FontStyle() & (StyleBold | StyleItalic)}
}

// resolvedStyle 解析后的样式记录
func (b *NodeBase) resolvedStyle() Style {
	return Style{ColorName: b.ColorName(), FontName: b.FontName(), FontSize: b.FontSize(), FontStyle: b.FontStyle()}
}

// setBox 写入排版结果
func (b *NodeBase) setBox(w, h, baseline, centerline int) {
	b.Width, b.Height, b.BaseLine, b.CenterLine = w, h, baseline, centerline
}

// adopt 建立父子关系
func adopt(parent, child Node) {
	if child != nil {
		child.Base().parent = parent
	}
}

// copyChildren 深拷贝子节点并挂到新父节点下
func copyChildren(parent Node, kids []Node) []Node {
	if kids == nil {
		return nil
	}
	out := make([]Node, 0, len(kids))
	for _, k := range kids {
		c := k.Copy()
		adopt(parent, c)
		out = append(out, c)
	}
	return out
}

// copyNonwrap 深拷贝可选的非换行片段
func copyNonwrap(parent Node, n *Nonwrap) *Nonwrap {
	if n == nil {
		return nil
	}
	c := n.Copy().(*Nonwrap)
	adopt(parent, c)
	return c
}

// flowItems 展开透明容器(普通片段与参数引用), 返回参与排版的对象
func flowItems(children []Node) []Node {
	var out []Node
	for _, c := range children {
		out = appendFlow(out, c)
	}
	return out
}

func appendFlow(out []Node, n Node) []Node {
	switch t := n.(type) {
	case *Span:
		for _, c := range t.children {
			out = appendFlow(out, c)
		}
		return out
	case *ParameterReference:
		if t.contents != nil {
			return appendFlow(out, t.contents)
		}
		return out
	}
	return append(out, n)
}

// alignRow 统一一行对象的基线与中线, 写入各对象的Y
// 入参: objs 行内对象, top 行顶部Y, fallbackCenter 行内无基线对象时的中线高度, skip 不参与中线统计的对象
// 返回: int 基线(相对top), int 中线(相对top), int 行底部Y
func alignRow(objs []Node, top, fallbackCenter int, skip func(Node) bool) (int, int, int) {
	maxCenter := 0
	for _, o := range objs {
		b := o.Base()
		if b.valign != AlignBaseline || (skip != nil && skip(o)) {
			continue
		}
		if c := b.BaseLine - b.CenterLine; c > maxCenter {
			maxCenter = c
		}
	}
	if maxCenter == 0 {
		maxCenter = fallbackCenter
	}
	maxHeight := 0
	for _, o := range objs {
		b := o.Base()
		h := 0
		switch b.valign {
		case AlignBaseline:
			h = b.BaseLine
		case AlignCenter:
			h = maxCenter + b.CenterLine
		}
		if h > maxHeight {
			maxHeight = h
		}
	}
	bottom := top
	for _, o := range objs {
		b := o.Base()
		y := 0
		switch b.valign {
		case AlignBaseline:
			y = maxHeight - b.BaseLine
		case AlignCenter:
			y = maxHeight - maxCenter - b.CenterLine
		}
		b.Y = top + y
		if b.Y+b.Height > bottom {
			bottom = b.Y + b.Height
		}
	}
	return maxHeight, maxHeight - maxCenter, bottom
}

// layoutRow 将对象依次横向排列并统一基线
// 入参: b 容器, objs 已排版的对象, x0 起始X, fallbackCenter 默认中线高度
// 返回: int 行宽
func layoutRow(b *NodeBase, objs []Node, x0, fallbackCenter int) int {
	if len(objs) == 0 {
		b.setBox(x0, 0, 0, 0)
		return x0
	}
	x := x0
	for _, o := range objs {
		ob := o.Base()
		ob.X = x
		x += ob.Width
	}
	baseline, centerline, bottom := alignRow(objs, 0, fallbackCenter, nil)
	b.setBox(x, bottom, baseline, centerline)
	return x
}

// AccumulateParameterNames 收集子树引用的全部参数名
// 入参: n 模板节点
// 返回: []string 已排序的参数名
func AccumulateParameterNames(n Node) []string {
	set := make(map[string]struct{})
	n.accumulateParameterNames(set)
	names := make([]string, 0, len(set))
	for k := range set {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// addFormulaNames 收集公式引用的变量名
func addFormulaNames(set map[string]struct{}, vals ...*NumberOrFormula) {
	for _, v := range vals {
		if v != nil && v.formula != nil {
			for _, name := range v.formula.vars {
				set[name] = struct{}{}
			}
		}
	}
}
