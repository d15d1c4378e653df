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

	"github.com/beevik/etree"
)

// 段落留白(像素)
const (
	insetTopNone      = 1
	insetTopSmall     = 3
	insetTopNormal    = 7
	insetTopLarge     = 11
	insetBottomNone   = 1
	insetBottomSmall  = 3
	insetBottomNormal = 7
	insetBottomLarge  = 11
	insetLeft         = 4
	insetRight        = 4
)

// Paragraph 自动断行的段落
type Paragraph struct {
	NodeBase
	children      []Node
	justification Justification
	spacing       Spacing
	indent        int
	wrapWidth     int

	flow []Node
}

// NewParagraph 创建段落
func NewParagraph() *Paragraph {
	return &Paragraph{NodeBase: NodeBase{tag: "p"}, justification: JustifyLeft}
}

// Add 追加子节点
func (p *Paragraph) Add(n Node) {
	adopt(p, n)
	p.children = append(p.children, n)
}

// Children 获取子节点
func (p *Paragraph) Children() []Node {
	return p.children
}

// Flow 获取最近一次排版的行内对象
func (p *Paragraph) Flow() []Node {
	return p.flow
}

// Justification 获取对齐方式
func (p *Paragraph) Justification() Justification {
	return p.justification
}

// SetJustification 设置对齐方式
func (p *Paragraph) SetJustification(j Justification) {
	p.justification = j
}

// Spacing 获取段落间距
func (p *Paragraph) Spacing() Spacing {
	return p.spacing
}

// SetSpacing 设置段落间距
func (p *Paragraph) SetSpacing(s Spacing) {
	p.spacing = s
}

// Indent 获取首行缩进(数字宽度个数)
func (p *Paragraph) Indent() int {
	return p.indent
}

// SetIndent 设置首行缩进
func (p *Paragraph) SetIndent(n int) {
	p.indent = n
}

// SetWrapWidth 设置断行宽度, 0 表示不断行
func (p *Paragraph) SetWrapWidth(w int) {
	p.wrapWidth = w
}

// insets 按间距获取上下留白
func (p *Paragraph) insets() (int, int) {
	switch p.spacing {
	case SpacingNone:
		return insetTopNone, insetBottomNone
	case SpacingSmall:
		return insetTopSmall, insetBottomSmall
	case SpacingLarge:
		return insetTopLarge, insetBottomLarge
	}
	return insetTopNormal, insetBottomNormal
}

// skipCenter 不参与行中线统计的对象
func skipCenter(n Node) bool {
	switch n.(type) {
	case *Drawing, *GraphXY, *Image, *Table:
		return true
	}
	return false
}

// Layout 排版子节点并断行
func (p *Paragraph) Layout(lc *LayoutContext, mode LayoutMode) {
	font := p.fontSpec()
	digitWidth := lc.textWidth(font, "0")
	for _, c := range p.children {
		c.Layout(lc, mode)
	}
	objs := flowItems(p.children)
	i := 0
	for i < len(objs) {
		if _, ok := objs[i].(*Whitespace); !ok {
			break
		}
		i++
	}
	objs = objs[i:]
	p.flow = objs

	limit := math.MaxInt32
	if p.wrapWidth > 0 {
		limit = p.wrapWidth - insetRight
	}
	top, bottom := p.insets()
	left := insetLeft
	if p.indent > 0 {
		left += digitWidth * p.indent
	}
	asc, _ := lc.lineMetrics(font)
	fallback := asc * 5 / 12

	x, y := left, top
	hanging, first := 0, 0
	firstLine := true
	wrap := func(end int) {
		base, center, lineBottom := alignRow(objs[first:end], y, fallback, skipCenter)
		if firstLine {
			p.BaseLine, p.CenterLine = y+base, y+center
			firstLine = false
		}
		p.justifyLine(objs[first:end])
		y = lineBottom
		first = end
	}
	for k, obj := range objs {
		ob := obj.Base()
		switch t := obj.(type) {
		case *AlignMark:
			ob.X = x
			if p.justification == JustifyLeftHang {
				hanging = x
			}
		case *HAlign:
			ob.X = x
			pos, ok := lc.evalFloat(&t.position, "position")
			if !ok {
				continue
			}
			abs := pos * float64(digitWidth)
			if math.IsInf(abs, 0) || abs <= 0 {
				continue
			}
			intAbs := insetLeft + int(abs)
			if intAbs > limit {
				if first < k {
					wrap(k)
				}
				x = left
				if hanging > 0 {
					x = hanging
				}
			} else if intAbs > x {
				ob.X = intAbs
				x = intAbs
			}
		default:
			objX := x
			if x+ob.Width > limit {
				if first < k {
					wrap(k)
				}
				objX = left
				if hanging > 0 {
					objX = hanging
				}
				if _, ws := obj.(*Whitespace); ws {
					x = objX
				} else {
					x = objX + ob.Width
				}
			} else {
				x += ob.Width
			}
			ob.X = objX
			ob.Y = 0
		}
	}
	if first < len(objs) {
		wrap(len(objs))
	}
	if firstLine {
		p.BaseLine, p.CenterLine = y, y
	}
	width := p.wrapWidth
	if width == 0 {
		right := left
		for _, o := range objs {
			if r := o.Base().X + o.Base().Width; r > right {
				right = r
			}
		}
		width = right + insetRight
	}
	p.Width = width
	p.Height = y + bottom
}

// justifyLine 按对齐方式水平移动一行
func (p *Paragraph) justifyLine(line []Node) {
	if p.wrapWidth == 0 || len(line) == 0 {
		return
	}
	last := line[len(line)-1].Base()
	dx := p.wrapWidth - (last.X + last.Width)
	if dx <= 0 {
		return
	}
	n := len(line) - 1
	for k, o := range line {
		b := o.Base()
		switch p.justification {
		case JustifyCenter:
			b.X += dx / 2
		case JustifyRight:
			b.X += dx
		case JustifyFull:
			if dx*4 < p.wrapWidth && n > 0 {
				b.X += dx * k / n
			}
		}
	}
}

// Instance 生成段落实例
func (p *Paragraph) Instance(ctx *EvalContext) InstNode {
	kids, ok := instanceChildren(ctx, p.children, true)
	if !ok {
		return nil
	}
	return &ParagraphInst{
		containerInst: containerInst{instBase: newInstBase(&p.NodeBase), children: kids},
		Justification: p.justification,
		Spacing:       p.spacing,
		Indent:        p.indent,
	}
}

// Copy 深拷贝
func (p *Paragraph) Copy() Node {
	c := *p
	c.children = copyChildren(&c, p.children)
	c.flow = nil
	return &c
}

func (p *Paragraph) writeXML(parent *etree.Element) {
	e := parent.CreateElement("p")
	writeParagraphAttrs(e, p.justification, p.spacing, p.indent)
	p.writeAttrs(e)
	writeChildren(e, p.children)
}

// writeParagraphAttrs 输出段落属性, 默认值省略
func writeParagraphAttrs(e *etree.Element, j Justification, s Spacing, indent int) {
	if j != JustifyLeft && j != 0 {
		e.CreateAttr("justification", justificationVocab.name(j))
	}
	if s != SpacingNormal {
		e.CreateAttr("spacing", spacingVocab.name(s))
	}
	if indent > 0 {
		e.CreateAttr("indent", strconv.Itoa(indent))
	}
}

func (p *Paragraph) accumulateParameterNames(set map[string]struct{}) {
	for _, c := range p.children {
		c.accumulateParameterNames(set)
	}
}

func (p *Paragraph) accumulateInputs(list *[]*Input) {
	for _, c := range p.children {
		c.accumulateInputs(list)
	}
}

// AlignMark 悬挂缩进的对齐位置
type AlignMark struct {
	NodeBase
}

// NewAlignMark 创建对齐标记
func NewAlignMark() *AlignMark {
	return &AlignMark{NodeBase: NodeBase{tag: "align-mark"}}
}

// Layout 零尺寸
func (a *AlignMark) Layout(*LayoutContext, LayoutMode) {
	a.setBox(0, 0, 0, 0)
}

// Instance 生成实例
func (a *AlignMark) Instance(*EvalContext) InstNode {
	return &AlignMarkInst{instBase: newInstBase(&a.NodeBase)}
}

// Copy 深拷贝
func (a *AlignMark) Copy() Node {
	c := *a
	return &c
}

func (a *AlignMark) writeXML(parent *etree.Element) {
	a.writeAttrs(parent.CreateElement("align-mark"))
}

func (a *AlignMark) accumulateParameterNames(map[string]struct{}) {}

func (a *AlignMark) accumulateInputs(*[]*Input) {}

// HAlign 以数字宽度计量的制表位
type HAlign struct {
	NodeBase
	position NumberOrFormula
}

// NewHAlign 创建制表位
// 入参: pos 位置
func NewHAlign(pos NumberOrFormula) *HAlign {
	return &HAlign{NodeBase: NodeBase{tag: "h-align"}, position: pos}
}

// Position 获取位置
func (h *HAlign) Position() NumberOrFormula {
	return h.position
}

// Layout 零尺寸, 位置由段落处理
func (h *HAlign) Layout(*LayoutContext, LayoutMode) {
	h.setBox(0, 0, 0, 0)
}

// Instance 位置公式被替换为常量
func (h *HAlign) Instance(ctx *EvalContext) InstNode {
	v, err := h.position.Evaluate(ctx)
	if err != nil {
		return nil
	}
	return &HAlignInst{instBase: newInstBase(&h.NodeBase), Position: v}
}

// Copy 深拷贝
func (h *HAlign) Copy() Node {
	c := *h
	return &c
}

func (h *HAlign) writeXML(parent *etree.Element) {
	e := parent.CreateElement("h-align")
	h.writeAttrs(e)
	writeNumberOrFormula(e, "position", h.position)
}

func (h *HAlign) accumulateParameterNames(set map[string]struct{}) {
	addFormulaNames(set, &h.position)
}

func (h *HAlign) accumulateInputs(*[]*Input) {}
