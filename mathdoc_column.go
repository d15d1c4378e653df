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
	"github.com/beevik/etree"
)

// DefaultColumnWidth 未设置宽度时的文档宽度(像素)
const DefaultColumnWidth = 600

// Column 文档根节点, 纵向排列段落与垂直间距
type Column struct {
	NodeBase
	children    []Node
	columnWidth int
}

// NewColumn 创建文档根节点
// 入参: tag 元素名
func NewColumn(tag string) *Column {
	if tag == "" {
		tag = "column"
	}
	return &Column{NodeBase: NodeBase{tag: tag}}
}

// Add 追加子节点
func (c *Column) Add(n Node) {
	adopt(c, n)
	c.children = append(c.children, n)
}

// Children 获取子节点
func (c *Column) Children() []Node {
	return c.children
}

// ColumnWidth 获取文档宽度
func (c *Column) ColumnWidth() int {
	return c.columnWidth
}

// SetColumnWidth 设置文档宽度, 所有段落使用该宽度断行
func (c *Column) SetColumnWidth(w int) {
	c.columnWidth = w
}

// Layout 先设置段落宽度再排版, 子节点依次向下堆叠
func (c *Column) Layout(lc *LayoutContext, mode LayoutMode) {
	for _, child := range c.children {
		if p, ok := child.(*Paragraph); ok {
			p.SetWrapWidth(c.columnWidth)
		}
		child.Layout(lc, mode)
	}
	width := c.columnWidth
	height := 0
	for _, child := range c.children {
		b := child.Base()
		b.X, b.Y = 0, height
		height += b.Height
		if c.columnWidth > 0 {
			b.Width = c.columnWidth
		} else if b.Width > width {
			width = b.Width
		}
	}
	c.setBox(width, height, 0, 0)
}

// Instance 生成文档实例
func (c *Column) Instance(ctx *EvalContext) InstNode {
	kids, ok := instanceChildren(ctx, c.children, true)
	if !ok {
		return nil
	}
	return &ColumnInst{containerInst: containerInst{instBase: newInstBase(&c.NodeBase), children: kids}, Width: c.columnWidth}
}

// Copy 深拷贝
func (c *Column) Copy() Node {
	cp := *c
	cp.children = copyChildren(&cp, c.children)
	return &cp
}

func (c *Column) writeXML(parent *etree.Element) {
	e := parent.CreateElement(c.tagOr("column"))
	c.writeAttrs(e)
	writeChildren(e, c.children)
}

func (c *Column) accumulateParameterNames(set map[string]struct{}) {
	for _, child := range c.children {
		child.accumulateParameterNames(set)
	}
}

func (c *Column) accumulateInputs(list *[]*Input) {
	for _, child := range c.children {
		child.accumulateInputs(list)
	}
}

// ParameterNames 获取文档引用的全部参数名
// 返回: []string 已排序的参数名
func (c *Column) ParameterNames() []string {
	return AccumulateParameterNames(c)
}

// Inputs 获取文档中全部输入控件, 按文档顺序排列
// 返回: []*Input 输入控件
func (c *Column) Inputs() []*Input {
	var list []*Input
	c.accumulateInputs(&list)
	return list
}

// VSpace 垂直间距
type VSpace struct {
	NodeBase
	height *NumberOrFormula
}

// NewVSpace 创建垂直间距
// 入参: h 高度, nil 表示零高度
func NewVSpace(h *NumberOrFormula) *VSpace {
	return &VSpace{NodeBase: NodeBase{tag: "v-space"}, height: h}
}

// SpaceHeight 获取高度设置
func (v *VSpace) SpaceHeight() *NumberOrFormula {
	return v.height
}

// Layout 高度取求值结果, 失败时为零
func (v *VSpace) Layout(lc *LayoutContext, _ LayoutMode) {
	h, _ := lc.evalInt(v.height, "height")
	if h < 0 {
		h = 0
	}
	v.setBox(0, h, 0, 0)
}

// Instance 高度公式被替换为常量
func (v *VSpace) Instance(ctx *EvalContext) InstNode {
	inst := &VSpaceInst{instBase: newInstBase(&v.NodeBase)}
	if v.height != nil {
		h, err := v.height.Evaluate(ctx)
		if err != nil {
			return nil
		}
		inst.Height = &h
	}
	return inst
}

// Copy 深拷贝
func (v *VSpace) Copy() Node {
	c := *v
	return &c
}

func (v *VSpace) writeXML(parent *etree.Element) {
	e := parent.CreateElement("v-space")
	v.writeAttrs(e)
	if v.height != nil {
		writeNumberOrFormula(e, "height", *v.height)
	}
}

func (v *VSpace) accumulateParameterNames(set map[string]struct{}) {
	addFormulaNames(set, v.height)
}

func (v *VSpace) accumulateInputs(*[]*Input) {}

// HSpace 水平间距
type HSpace struct {
	NodeBase
	width *NumberOrFormula
}

// NewHSpace 创建水平间距
// 入参: w 宽度, nil 表示零宽度
func NewHSpace(w *NumberOrFormula) *HSpace {
	return &HSpace{NodeBase: NodeBase{tag: "h-space"}, width: w}
}

// SpaceWidth 获取宽度设置
func (h *HSpace) SpaceWidth() *NumberOrFormula {
	return h.width
}

// Layout 宽度取求值结果, 失败时为零
func (h *HSpace) Layout(lc *LayoutContext, _ LayoutMode) {
	w, _ := lc.evalInt(h.width, "width")
	if w < 0 {
		w = 0
	}
	h.setBox(w, 0, 0, 0)
}

// Instance 宽度公式被替换为常量
func (h *HSpace) Instance(ctx *EvalContext) InstNode {
	inst := &HSpaceInst{instBase: newInstBase(&h.NodeBase)}
	if h.width != nil {
		w, err := h.width.Evaluate(ctx)
		if err != nil {
			return nil
		}
		inst.Width = &w
	}
	return inst
}

// Copy 深拷贝
func (h *HSpace) Copy() Node {
	c := *h
	return &c
}

func (h *HSpace) writeXML(parent *etree.Element) {
	e := parent.CreateElement("h-space")
	h.writeAttrs(e)
	if h.width != nil {
		writeNumberOrFormula(e, "width", *h.width)
	}
}

func (h *HSpace) accumulateParameterNames(set map[string]struct{}) {
	addFormulaNames(set, h.width)
}

func (h *HSpace) accumulateInputs(*[]*Input) {}
