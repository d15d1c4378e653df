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

// Fraction 分子分母上下堆叠的分式
type Fraction struct {
	NodeBase
	numerator   *Nonwrap
	denominator *Nonwrap

	barY, barThickness int
}

// NewFraction 创建分式
// 入参: num 分子, den 分母
func NewFraction(num, den *Nonwrap) *Fraction {
	f := &Fraction{NodeBase: NodeBase{tag: "fraction", valign: AlignCenter}, numerator: num, denominator: den}
	adopt(f, num)
	adopt(f, den)
	return f
}

// Numerator 获取分子
func (f *Fraction) Numerator() *Nonwrap {
	return f.numerator
}

// Denominator 获取分母
func (f *Fraction) Denominator() *Nonwrap {
	return f.denominator
}

// Bar 获取分数线的纵向位置与粗细
func (f *Fraction) Bar() (int, int) {
	return f.barY, f.barThickness
}

// Layout 分子在上, 分母在下, 中间为分数线, 中线对齐分数线
func (f *Fraction) Layout(lc *LayoutContext, mode LayoutMode) {
	f.numerator.Layout(lc, mode)
	f.denominator.Layout(lc, mode)
	font := f.fontSpec()
	gap := max(2, int(font.Size/8))
	t := max(1, int(font.Size/16))
	pad := int(font.Size / 6)
	num, den := f.numerator.Base(), f.denominator.Base()
	w := max(num.Width, den.Width) + 2*pad
	num.X, num.Y = (w-num.Width)/2, 0
	f.barY, f.barThickness = num.Height+gap, t
	den.X, den.Y = (w-den.Width)/2, f.barY+t+gap
	center := f.barY + t/2
	f.setBox(w, den.Y+den.Height, center+lc.centerOffset(font), center)
}

// Instance 生成实例
func (f *Fraction) Instance(ctx *EvalContext) InstNode {
	num, ok := f.numerator.Instance(ctx).(*NonwrapInst)
	if !ok {
		return nil
	}
	den, ok := f.denominator.Instance(ctx).(*NonwrapInst)
	if !ok {
		return nil
	}
	return &FractionInst{instBase: newInstBase(&f.NodeBase), Numerator: num, Denominator: den}
}

// Copy 深拷贝
func (f *Fraction) Copy() Node {
	c := *f
	c.numerator = copyNonwrap(&c, f.numerator)
	c.denominator = copyNonwrap(&c, f.denominator)
	return &c
}

func (f *Fraction) writeXML(parent *etree.Element) {
	e := parent.CreateElement("fraction")
	f.writeAttrs(e)
	f.numerator.writeXML(e)
	f.denominator.writeXML(e)
}

func (f *Fraction) accumulateParameterNames(set map[string]struct{}) {
	f.numerator.accumulateParameterNames(set)
	f.denominator.accumulateParameterNames(set)
}

func (f *Fraction) accumulateInputs(list *[]*Input) {
	f.numerator.accumulateInputs(list)
	f.denominator.accumulateInputs(list)
}

// Radical 根式, 可带根指数
type Radical struct {
	NodeBase
	base *Nonwrap
	root *Nonwrap

	signX, signW int
	barY, barT   int
}

// NewRadical 创建根式
// 入参: base 被开方数, root 根指数, 可为nil
func NewRadical(base, root *Nonwrap) *Radical {
	r := &Radical{NodeBase: NodeBase{tag: "radical"}, base: base, root: root}
	adopt(r, base)
	if root != nil {
		adopt(r, root)
	}
	return r
}

// Radicand 获取被开方数
func (r *Radical) Radicand() *Nonwrap {
	return r.base
}

// Root 获取根指数, 可能为nil
func (r *Radical) Root() *Nonwrap {
	return r.root
}

// Sign 获取根号的位置: 起点X, 宽度, 顶线Y, 线宽
func (r *Radical) Sign() (int, int, int, int) {
	return r.signX, r.signW, r.barY, r.barT
}

// Layout 根号位于左侧, 顶线覆盖被开方数, 根指数位于根号左上方
func (r *Radical) Layout(lc *LayoutContext, mode LayoutMode) {
	r.base.Layout(lc, mode)
	size := r.FontSize()
	r.barT = max(1, int(size/16))
	r.signW = int(size / 2)
	gap := 2 * r.barT
	pad := int(size / 12)
	base := r.base.Base()

	rootW, rootH := 0, 0
	if r.root != nil {
		r.root.Layout(lc, mode)
		rb := r.root.Base()
		rootW, rootH = rb.Width, rb.Height
	}
	r.signX = 0
	if rootW > r.signW/2 {
		r.signX = rootW - r.signW/2
	}
	r.barY = 0
	baseY := r.barT + gap
	if hook := baseY + base.Height/2; rootH > hook {
		r.barY = rootH - hook
		baseY += r.barY
	}
	if r.root != nil {
		r.root.Base().X, r.root.Base().Y = 0, 0
	}
	base.X, base.Y = r.signX+r.signW+pad, baseY
	h := max(baseY+base.Height, rootH)
	r.setBox(base.X+base.Width+pad, h, baseY+base.BaseLine, baseY+base.CenterLine)
}

// Instance 生成实例
func (r *Radical) Instance(ctx *EvalContext) InstNode {
	base, ok := r.base.Instance(ctx).(*NonwrapInst)
	if !ok {
		return nil
	}
	inst := &RadicalInst{instBase: newInstBase(&r.NodeBase), Radicand: base}
	if r.root != nil {
		if inst.Root, ok = r.root.Instance(ctx).(*NonwrapInst); !ok {
			return nil
		}
	}
	return inst
}

// Copy 深拷贝
func (r *Radical) Copy() Node {
	c := *r
	c.base = copyNonwrap(&c, r.base)
	c.root = copyNonwrap(&c, r.root)
	return &c
}

func (r *Radical) writeXML(parent *etree.Element) {
	e := parent.CreateElement("radical")
	r.writeAttrs(e)
	r.base.writeXML(e)
	if r.root != nil {
		r.root.writeXML(e)
	}
}

func (r *Radical) accumulateParameterNames(set map[string]struct{}) {
	r.base.accumulateParameterNames(set)
	if r.root != nil {
		r.root.accumulateParameterNames(set)
	}
}

func (r *Radical) accumulateInputs(list *[]*Input) {
	r.base.accumulateInputs(list)
	if r.root != nil {
		r.root.accumulateInputs(list)
	}
}
