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

// fenceGlyphs 各括号类型的左右符号, 排版时用于度量宽度
var fenceGlyphs = map[FenceType][2]string{
	FenceParentheses: {"(", ")"},
	FenceBrackets:    {"[", "]"},
	FenceBars:        {"|", "|"},
	FenceBraces:      {"{", "}"},
	FenceLBrace:      {"{", ""},
}

// Fence 包裹一行内容的成对括号, 括号高度随内容伸缩
type Fence struct {
	NodeBase
	children  []Node
	fenceType FenceType

	open, close *Text
	flow        []Node
}

// NewFence 创建括号
// 入参: t 括号类型
func NewFence(t FenceType) *Fence {
	if t == 0 {
		t = FenceParentheses
	}
	return &Fence{NodeBase: NodeBase{tag: "fence", valign: AlignCenter}, fenceType: t}
}

// Add 追加子节点
func (f *Fence) Add(n Node) {
	adopt(f, n)
	f.children = append(f.children, n)
}

// Children 获取子节点
func (f *Fence) Children() []Node {
	return f.children
}

// FenceType 获取括号类型
func (f *Fence) FenceType() FenceType {
	return f.fenceType
}

// SetFenceType 设置括号类型
func (f *Fence) SetFenceType(t FenceType) {
	f.fenceType = t
}

// Flow 获取最近一次排版的行内对象, 不含左右括号
func (f *Fence) Flow() []Node {
	return f.flow
}

// Brackets 获取最近一次排版的左右括号, 单侧括号的右括号为nil
func (f *Fence) Brackets() (*Text, *Text) {
	return f.open, f.close
}

// Layout 展开内容后与左右括号统一基线并横向排列
func (f *Fence) Layout(lc *LayoutContext, mode LayoutMode) {
	glyphs := fenceGlyphs[f.fenceType]
	f.open, f.close = NewText(glyphs[0]), nil
	adopt(f, f.open)
	f.open.Layout(lc, ModeText)
	for _, c := range f.children {
		c.Layout(lc, mode)
	}
	f.flow = flowItems(f.children)
	objs := make([]Node, 0, len(f.flow)+2)
	objs = append(objs, f.open)
	objs = append(objs, f.flow...)
	if glyphs[1] != "" {
		f.close = NewText(glyphs[1])
		adopt(f, f.close)
		f.close.Layout(lc, ModeText)
		objs = append(objs, f.close)
	}
	x := 0
	for _, o := range objs {
		o.Base().X = x
		x += o.Base().Width
	}
	baseline, centerline, bottom := alignRow(objs, 0, 0, nil)
	f.setBox(x, bottom, baseline, centerline)
}

// Instance 生成实例
func (f *Fence) Instance(ctx *EvalContext) InstNode {
	kids, ok := instanceChildren(ctx, f.children, true)
	if !ok {
		return nil
	}
	return &FenceInst{containerInst: containerInst{instBase: newInstBase(&f.NodeBase), children: kids}, Type: f.fenceType}
}

// Copy 深拷贝
func (f *Fence) Copy() Node {
	c := *f
	c.children = copyChildren(&c, f.children)
	c.open, c.close, c.flow = nil, nil, nil
	return &c
}

func (f *Fence) writeXML(parent *etree.Element) {
	e := parent.CreateElement("fence")
	writeFenceAttrs(e, f.fenceType, f.valign)
	f.writeAttrs(e)
	writeChildren(e, f.children)
}

// writeFenceAttrs 输出括号属性, 默认值省略
func writeFenceAttrs(e *etree.Element, t FenceType, v VAlign) {
	if t != FenceParentheses {
		e.CreateAttr("type", fenceVocab.name(t))
	}
	if v != AlignCenter {
		e.CreateAttr("valign", valignVocab.name(v))
	}
}

func (f *Fence) accumulateParameterNames(set map[string]struct{}) {
	for _, c := range f.children {
		c.accumulateParameterNames(set)
	}
}

func (f *Fence) accumulateInputs(list *[]*Input) {
	for _, c := range f.children {
		c.accumulateInputs(list)
	}
}
