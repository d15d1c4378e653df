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

	"github.com/beevik/etree"
)

// InstNode 实例节点
// 实例树由模板在某个求值上下文中生成, 只含常量, 生成后不再修改, 可在多个协程间共享
type InstNode interface {
	// Base 获取公共字段
	Base() *InstBase

	writeXML(parent *etree.Element)
}

// InstBase 实例节点公共字段
type InstBase struct {
	// Tag XML元素名
	Tag string
	// Style 解析父链后的样式
	Style Style
	// VAlign 对齐方式
	VAlign VAlign

	format formatting
}

// Base 获取公共字段
func (b *InstBase) Base() *InstBase {
	return b
}

// instBase 供各实例类型嵌入
type instBase = InstBase

// newInstBase 复制模板节点的样式
func newInstBase(b *NodeBase) instBase {
	return InstBase{Tag: b.tag, Style: b.resolvedStyle(), VAlign: b.valign, format: b.formatting}
}

// containerInst 有序子节点
type containerInst struct {
	instBase
	children []InstNode
}

// Children 获取子节点
func (c *containerInst) Children() []InstNode {
	return c.children
}

func (c *containerInst) writeContainer(parent *etree.Element, def string) *etree.Element {
	tag := c.Tag
	if tag == "" {
		tag = def
	}
	e := parent.CreateElement(tag)
	c.format.writeAttrs(e)
	return e
}

func writeInstChildren(e *etree.Element, kids []InstNode) {
	for _, k := range kids {
		k.writeXML(e)
	}
}

// SpanInst 片段实例
type SpanInst struct {
	containerInst
}

func (s *SpanInst) writeXML(parent *etree.Element) {
	writeInstChildren(s.writeContainer(parent, "span"), s.children)
}

// NonwrapInst 不可断行片段实例
type NonwrapInst struct {
	containerInst
	BgColor string
	Lines   int
}

func (s *NonwrapInst) writeXML(parent *etree.Element) {
	e := s.writeContainer(parent, "nonwrap")
	writeCellAttrs(e, s.BgColor, s.Lines)
	writeInstChildren(e, s.children)
}

// MathInst 数学片段实例
type MathInst struct {
	containerInst
}

func (s *MathInst) writeXML(parent *etree.Element) {
	e := parent.CreateElement("math")
	f := s.format
	if f.colorName == MathColorName {
		f.colorName = ""
	}
	f.writeAttrs(e)
	writeInstChildren(e, s.children)
}

// TextInst 文本实例
type TextInst struct {
	instBase
	Text string
}

func (t *TextInst) writeXML(parent *etree.Element) {
	parent.CreateCharData(encodeText(t.Text))
}

// WhitespaceInst 空白实例
type WhitespaceInst struct {
	instBase
}

func (w *WhitespaceInst) writeXML(parent *etree.Element) {
	parent.CreateCharData(" ")
}

// ParagraphInst 段落实例
type ParagraphInst struct {
	containerInst
	Justification Justification
	Spacing       Spacing
	Indent        int
}

func (p *ParagraphInst) writeXML(parent *etree.Element) {
	e := parent.CreateElement("p")
	writeParagraphAttrs(e, p.Justification, p.Spacing, p.Indent)
	p.format.writeAttrs(e)
	writeInstChildren(e, p.children)
}

// AlignMarkInst 对齐标记实例
type AlignMarkInst struct {
	instBase
}

func (a *AlignMarkInst) writeXML(parent *etree.Element) {
	parent.CreateElement("align-mark")
}

// HAlignInst 制表位实例
type HAlignInst struct {
	instBase
	Position float64
}

func (h *HAlignInst) writeXML(parent *etree.Element) {
	parent.CreateElement("h-align").CreateAttr("position", formatNumber(h.Position))
}

// ColumnInst 文档实例根节点
type ColumnInst struct {
	containerInst
	Width int
}

func (c *ColumnInst) writeXML(parent *etree.Element) {
	writeInstChildren(c.writeContainer(parent, "column"), c.children)
}

// VSpaceInst 垂直间距实例
type VSpaceInst struct {
	instBase
	Height *float64
}

func (v *VSpaceInst) writeXML(parent *etree.Element) {
	e := parent.CreateElement("v-space")
	if v.Height != nil {
		e.CreateAttr("height", formatNumber(*v.Height))
	}
}

// HSpaceInst 水平间距实例
type HSpaceInst struct {
	instBase
	Width *float64
}

func (h *HSpaceInst) writeXML(parent *etree.Element) {
	e := parent.CreateElement("h-space")
	if h.Width != nil {
		e.CreateAttr("width", formatNumber(*h.Width))
	}
}

// FenceInst 括号实例
type FenceInst struct {
	containerInst
	Type FenceType
}

func (f *FenceInst) writeXML(parent *etree.Element) {
	e := parent.CreateElement("fence")
	writeFenceAttrs(e, f.Type, f.VAlign)
	f.format.writeAttrs(e)
	writeInstChildren(e, f.children)
}

// FractionInst 分式实例
type FractionInst struct {
	instBase
	Numerator   *NonwrapInst
	Denominator *NonwrapInst
}

func (f *FractionInst) writeXML(parent *etree.Element) {
	e := parent.CreateElement("fraction")
	f.format.writeAttrs(e)
	f.Numerator.writeXML(e)
	f.Denominator.writeXML(e)
}

// RadicalInst 根式实例
type RadicalInst struct {
	instBase
	Radicand *NonwrapInst
	Root     *NonwrapInst
}

func (r *RadicalInst) writeXML(parent *etree.Element) {
	e := parent.CreateElement("radical")
	r.format.writeAttrs(e)
	r.Radicand.writeXML(e)
	if r.Root != nil {
		r.Root.writeXML(e)
	}
}

// RelativeOffsetInst 上下标实例
type RelativeOffsetInst struct {
	instBase
	BaseNode, Super, Sub, Over, Under *NonwrapInst
}

func (r *RelativeOffsetInst) writeXML(parent *etree.Element) {
	e := parent.CreateElement("rel-offset")
	r.format.writeAttrs(e)
	for _, p := range []*NonwrapInst{r.BaseNode, r.Super, r.Sub, r.Over, r.Under} {
		if p != nil {
			p.writeXML(e)
		}
	}
}

// TableInst 表格实例
type TableInst struct {
	instBase
	ColumnWidth   ColumnWidth
	Justification Justification
	BoxWidth      int
	HLineWidth    int
	VLineWidth    int
	BgColor       string
	CellInsets    *Insets
	Rows          [][]*NonwrapInst
}

func (t *TableInst) writeXML(parent *etree.Element) {
	e := parent.CreateElement("table")
	writeTableAttrs(e, t.BoxWidth, t.VLineWidth, t.HLineWidth, t.ColumnWidth, t.Justification, t.BgColor, t.CellInsets)
	t.format.writeAttrs(e)
	for _, row := range t.Rows {
		tr := e.CreateElement("tr")
		for _, cell := range row {
			cell.writeXML(tr)
		}
	}
}

// DrawingInst 画布实例
type DrawingInst struct {
	instBase
	Width, Height int
	Alt           string
	BgColor       string
	Primitives    []PrimitiveInst
}

func (d *DrawingInst) writeXML(parent *etree.Element) {
	e := parent.CreateElement("drawing")
	e.CreateAttr("width", strconv.Itoa(d.Width))
	e.CreateAttr("height", strconv.Itoa(d.Height))
	writeDrawingAttrs(e, d.VAlign, d.Alt, d.BgColor)
	d.format.writeAttrs(e)
	writePrimitiveInsts(e, d.Primitives)
}

// GraphXYInst 坐标图实例
type GraphXYInst struct {
	instBase
	Width, Height int
	Alt           string
	Window        Box
	Style         GraphStyle
	Primitives    []PrimitiveInst
}

func (g *GraphXYInst) writeXML(parent *etree.Element) {
	e := parent.CreateElement("graphxy")
	writeGraphAttrs(e, g.Width, g.Height, g.Window)
	g.Style.writeAttrs(e)
	writeDrawingAttrs(e, g.VAlign, g.Alt, "")
	g.format.writeAttrs(e)
	writePrimitiveInsts(e, g.Primitives)
}

// InputInst 输入控件实例
// Enabled 为仅引用输入变量的启用公式; 其余启用公式在生成实例时求值, 结果记录在 EnabledConst
type InputInst struct {
	instBase
	Type            InputType
	Name            string
	Width           int
	FieldStyle      FieldStyle
	TreatMinusAs    *float64
	Default         string
	Choice          int64
	Text            string
	Selected        bool
	Enabled         *Formula
	EnabledConst    *bool
	EnabledVarName  string
	EnabledVarValue any
}

// IsEnabled 判断控件是否可用
func (in *InputInst) IsEnabled(ctx *EvalContext) bool {
	return inputEnabled(ctx, in.EnabledVarName, in.EnabledVarValue, in.Enabled, in.EnabledConst)
}

func (in *InputInst) writeXML(parent *etree.Element) {
	e := parent.CreateElement("input")
	writeInputAttrs(e, in.Type, in.Name, in.Width, in.FieldStyle, in.TreatMinusAs, in.Default, in.Choice, in.Text, in.Selected, in.EnabledVarName, in.EnabledVarValue)
	in.format.writeAttrs(e)
	switch {
	case in.Enabled != nil:
		writeEnabledFormula(e, in.Enabled)
	case in.EnabledConst != nil:
		e.CreateElement("enabled").CreateElement("expr").CreateCharData(pyBool(*in.EnabledConst))
	}
}

// pyBool 公式语言中的布尔常量
func pyBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// ImageInst 图片实例
type ImageInst struct {
	instBase
	Source        string
	Alt           string
	Width, Height *float64
}

func (im *ImageInst) writeXML(parent *etree.Element) {
	e := parent.CreateElement("image")
	e.CreateAttr("src", im.Source)
	if im.Width != nil {
		e.CreateAttr("width", formatNumber(*im.Width))
	}
	if im.Height != nil {
		e.CreateAttr("height", formatNumber(*im.Height))
	}
	writeDrawingAttrs(e, im.VAlign, im.Alt, "")
	im.format.writeAttrs(e)
}

// SymbolPaletteInst 符号面板实例
type SymbolPaletteInst struct {
	instBase
	Symbols []string
}

func (s *SymbolPaletteInst) writeXML(parent *etree.Element) {
	NewSymbolPalette(s.Symbols).writeXML(parent)
}

// instChildren 获取实例节点的直接子节点
func instChildren(n InstNode) []InstNode {
	var out []InstNode
	addNonwrap := func(parts ...*NonwrapInst) {
		for _, p := range parts {
			if p != nil {
				out = append(out, p)
			}
		}
	}
	switch t := n.(type) {
	case *SpanInst:
		return t.children
	case *NonwrapInst:
		return t.children
	case *MathInst:
		return t.children
	case *ParagraphInst:
		return t.children
	case *ColumnInst:
		return t.children
	case *FenceInst:
		return t.children
	case *FractionInst:
		addNonwrap(t.Numerator, t.Denominator)
	case *RadicalInst:
		addNonwrap(t.Radicand, t.Root)
	case *RelativeOffsetInst:
		addNonwrap(t.BaseNode, t.Super, t.Sub, t.Over, t.Under)
	case *TableInst:
		for _, row := range t.Rows {
			addNonwrap(row...)
		}
	}
	return out
}

// WalkInst 先序遍历实例树
// 入参: n 根节点, fn 访问函数, 返回false时不再深入该节点
func WalkInst(n InstNode, fn func(InstNode) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range instChildren(n) {
		WalkInst(c, fn)
	}
}

// InstFormulas 收集实例树中保留的公式
// 入参: n 根节点
// 返回: []*Formula 公式
func InstFormulas(n InstNode) []*Formula {
	var out []*Formula
	WalkInst(n, func(c InstNode) bool {
		if in, ok := c.(*InputInst); ok && in.Enabled != nil {
			out = append(out, in.Enabled)
		}
		return true
	})
	return out
}

// InstInputs 收集实例树中的输入控件
func InstInputs(n InstNode) []*InputInst {
	var out []*InputInst
	WalkInst(n, func(c InstNode) bool {
		if in, ok := c.(*InputInst); ok {
			out = append(out, in)
		}
		return true
	})
	return out
}

// formatInt64 整数文本
func formatInt64(v int64) string {
	return strconv.FormatInt(v, 10)
}
