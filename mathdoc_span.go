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
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/zap"
)

// Span 可换行的行内片段, 在段落中其子节点直接参与断行
type Span struct {
	NodeBase
	children []Node
}

// NewSpan 创建可换行片段
func NewSpan() *Span {
	return &Span{NodeBase: NodeBase{tag: "span"}}
}

// Add 追加子节点
func (s *Span) Add(n Node) {
	adopt(s, n)
	s.children = append(s.children, n)
}

// Children 获取子节点
func (s *Span) Children() []Node {
	return s.children
}

// PlainText 拼接片段中的纯文本
// 返回: string 文本内容
func (s *Span) PlainText() string {
	var sb strings.Builder
	writePlainText(&sb, s.children)
	return sb.String()
}

func writePlainText(sb *strings.Builder, kids []Node) {
	for _, c := range kids {
		switch t := c.(type) {
		case *Text:
			sb.WriteString(t.text)
		case *Whitespace:
			sb.WriteByte(' ')
		case *Span:
			writePlainText(sb, t.children)
		case *Nonwrap:
			writePlainText(sb, t.children)
		case *Math:
			writePlainText(sb, t.children)
		}
	}
}

// Layout 排版全部子节点后按单行排列
func (s *Span) Layout(lc *LayoutContext, mode LayoutMode) {
	for _, c := range s.children {
		c.Layout(lc, mode)
	}
	layoutRow(&s.NodeBase, flowItems(s.children), 0, lc.centerOffset(s.fontSpec()))
}

// Instance 生成片段实例
func (s *Span) Instance(ctx *EvalContext) InstNode {
	kids, ok := instanceChildren(ctx, s.children, true)
	if !ok {
		return nil
	}
	return &SpanInst{containerInst{instBase: newInstBase(&s.NodeBase), children: kids}}
}

// Copy 深拷贝
func (s *Span) Copy() Node {
	c := *s
	c.children = copyChildren(&c, s.children)
	return &c
}

func (s *Span) writeXML(parent *etree.Element) {
	e := parent.CreateElement(s.tagOr("span"))
	s.writeAttrs(e)
	writeChildren(e, s.children)
}

func (s *Span) accumulateParameterNames(set map[string]struct{}) {
	for _, c := range s.children {
		c.accumulateParameterNames(set)
	}
}

func (s *Span) accumulateInputs(list *[]*Input) {
	for _, c := range s.children {
		c.accumulateInputs(list)
	}
}

// Nonwrap 不可断行的片段
// 分式的分子分母、根式、上下标及表格单元格都使用该类型, 以元素名区分
type Nonwrap struct {
	NodeBase
	children []Node
	bgColor  string
	lines    int

	flow []Node
}

// NewNonwrap 创建不可断行片段
// 入参: tag 元素名
func NewNonwrap(tag string) *Nonwrap {
	return &Nonwrap{NodeBase: NodeBase{tag: tag}, lines: AllLines}
}

// Add 追加子节点
func (s *Nonwrap) Add(n Node) {
	adopt(s, n)
	s.children = append(s.children, n)
}

// Children 获取子节点
func (s *Nonwrap) Children() []Node {
	return s.children
}

// Flow 获取最近一次排版的行内对象
func (s *Nonwrap) Flow() []Node {
	return s.flow
}

// BgColor 获取背景色
func (s *Nonwrap) BgColor() string {
	return s.bgColor
}

// SetBgColor 设置背景色
func (s *Nonwrap) SetBgColor(name string) {
	s.bgColor = name
}

// Lines 获取表格单元格边框标志
func (s *Nonwrap) Lines() int {
	return s.lines
}

// SetLines 设置表格单元格边框标志
func (s *Nonwrap) SetLines(lines int) {
	s.lines = lines
}

// Layout 单行排列全部内容
func (s *Nonwrap) Layout(lc *LayoutContext, mode LayoutMode) {
	for _, c := range s.children {
		c.Layout(lc, mode)
	}
	s.flow = flowItems(s.children)
	layoutRow(&s.NodeBase, s.flow, 0, lc.centerOffset(s.fontSpec()))
}

// Instance 生成实例
func (s *Nonwrap) Instance(ctx *EvalContext) InstNode {
	kids, ok := instanceChildren(ctx, s.children, false)
	if !ok {
		return nil
	}
	return &NonwrapInst{
		containerInst: containerInst{instBase: newInstBase(&s.NodeBase), children: kids},
		BgColor:       s.bgColor,
		Lines:         s.lines,
	}
}

// Copy 深拷贝
func (s *Nonwrap) Copy() Node {
	c := *s
	c.children = copyChildren(&c, s.children)
	c.flow = nil
	return &c
}

func (s *Nonwrap) writeXML(parent *etree.Element) {
	e := parent.CreateElement(s.tagOr("nonwrap"))
	s.writeAttrs(e)
	writeCellAttrs(e, s.bgColor, s.lines)
	writeChildren(e, s.children)
}

func (s *Nonwrap) accumulateParameterNames(set map[string]struct{}) {
	for _, c := range s.children {
		c.accumulateParameterNames(set)
	}
}

func (s *Nonwrap) accumulateInputs(list *[]*Input) {
	for _, c := range s.children {
		c.accumulateInputs(list)
	}
}

// Math 数学片段, 内容按行内公式模式排版
type Math struct {
	NodeBase
	children []Node

	flow []Node
}

// NewMath 创建数学片段
func NewMath() *Math {
	return &Math{NodeBase: NodeBase{tag: "math", formatting: formatting{colorName: MathColorName}}}
}

// Add 追加子节点
func (s *Math) Add(n Node) {
	adopt(s, n)
	s.children = append(s.children, n)
}

// Children 获取子节点
func (s *Math) Children() []Node {
	return s.children
}

// Flow 获取最近一次排版的行内对象
func (s *Math) Flow() []Node {
	return s.flow
}

// Layout 以数学模式排版, 已处于独立公式模式时保持不变
func (s *Math) Layout(lc *LayoutContext, mode LayoutMode) {
	if mode != ModeDisplayMath {
		mode = ModeInlineMath
	}
	for _, c := range s.children {
		c.Layout(lc, mode)
	}
	s.flow = flowItems(s.children)
	layoutRow(&s.NodeBase, s.flow, 0, lc.centerOffset(s.fontSpec()))
}

// Instance 生成实例
func (s *Math) Instance(ctx *EvalContext) InstNode {
	kids, ok := instanceChildren(ctx, s.children, false)
	if !ok {
		return nil
	}
	return &MathInst{containerInst{instBase: newInstBase(&s.NodeBase), children: kids}}
}

// Copy 深拷贝
func (s *Math) Copy() Node {
	c := *s
	c.children = copyChildren(&c, s.children)
	c.flow = nil
	return &c
}

func (s *Math) writeXML(parent *etree.Element) {
	e := parent.CreateElement("math")
	f := s.formatting
	if f.colorName == MathColorName {
		f.colorName = ""
	}
	f.writeAttrs(e)
	writeChildren(e, s.children)
}

func (s *Math) accumulateParameterNames(set map[string]struct{}) {
	for _, c := range s.children {
		c.accumulateParameterNames(set)
	}
}

func (s *Math) accumulateInputs(list *[]*Input) {
	for _, c := range s.children {
		c.accumulateInputs(list)
	}
}

// tagOr 获取元素名, 未设置时使用默认值
func (b *NodeBase) tagOr(def string) string {
	if b.tag == "" {
		return def
	}
	return b.tag
}

// writeChildren 依次输出子节点
func writeChildren(e *etree.Element, kids []Node) {
	for _, c := range kids {
		c.writeXML(e)
	}
}

// instanceChildren 生成子节点实例, 无格式的片段型参数被展开拼接
// 带格式的片段保留外层节点, 容器不允许片段时改为不可断行片段
// 入参: ctx 求值上下文, kids 子节点, allowSpan 容器是否允许片段
// 返回: []InstNode 子实例, bool 全部成功时为真
func instanceChildren(ctx *EvalContext, kids []Node, allowSpan bool) ([]InstNode, bool) {
	out := make([]InstNode, 0, len(kids))
	for _, c := range kids {
		inst := c.Instance(ctx)
		if inst == nil {
			ctx.Logger().Debug("instance unavailable", zap.String("tag", c.Base().tag))
			return nil, false
		}
		if _, ok := c.(*ParameterReference); ok {
			if sp, ok := inst.(*SpanInst); ok {
				switch {
				case sp.format == (formatting{}):
					out = append(out, sp.children...)
				case allowSpan:
					out = append(out, sp)
				default:
					nw := &NonwrapInst{containerInst: sp.containerInst, Lines: AllLines}
					nw.Tag = "nonwrap"
					out = append(out, nw)
				}
				continue
			}
		}
		out = append(out, inst)
	}
	return out, true
}
