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

// RelativeOffset 带上下标及上下方标注的基础内容
type RelativeOffset struct {
	NodeBase
	base  *Nonwrap
	sup   *Nonwrap
	sub   *Nonwrap
	over  *Nonwrap
	under *Nonwrap
}

// NewRelativeOffset 创建上下标结构, 除 base 外均可为nil
func NewRelativeOffset(base, sup, sub, over, under *Nonwrap) *RelativeOffset {
	r := &RelativeOffset{NodeBase: NodeBase{tag: "rel-offset"}, base: base, sup: sup, sub: sub, over: over, under: under}
	for _, p := range r.parts() {
		adopt(r, p)
	}
	return r
}

// parts 非空的组成部分, 按 base, super, sub, over, under 顺序
func (r *RelativeOffset) parts() []*Nonwrap {
	var out []*Nonwrap
	for _, p := range []*Nonwrap{r.base, r.sup, r.sub, r.over, r.under} {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

// BaseContent 获取基础内容
func (r *RelativeOffset) BaseContent() *Nonwrap { return r.base }

// Superscript 获取上标
func (r *RelativeOffset) Superscript() *Nonwrap { return r.sup }

// Subscript 获取下标
func (r *RelativeOffset) Subscript() *Nonwrap { return r.sub }

// Over 获取上方标注
func (r *RelativeOffset) Over() *Nonwrap { return r.over }

// Under 获取下方标注
func (r *RelativeOffset) Under() *Nonwrap { return r.under }

// partSize 排版并返回部件尺寸, 部件缺失时为零
func partSize(lc *LayoutContext, mode LayoutMode, p *Nonwrap) (int, int) {
	if p == nil {
		return 0, 0
	}
	p.Layout(lc, mode)
	return p.Width, p.Height
}

// italicCorrection 基础内容末尾为斜体时上标需要右移的距离
func (r *RelativeOffset) italicCorrection(lc *LayoutContext) int {
	size := int(r.base.FontSize())
	if r.base.IsItalic() {
		return size / 6
	}
	if len(r.base.children) == 0 {
		return 0
	}
	last := r.base.children[len(r.base.children)-1]
	if last.Base().IsItalic() {
		return size / 6
	}
	if t, ok := last.(*Text); ok && t.italic {
		return size / 6
	}
	ref, ok := last.(*ParameterReference)
	if !ok {
		return 0
	}
	v := lc.Eval.GetVariable(ref.name)
	if v == nil {
		return 0
	}
	span, ok := v.Value.(*Span)
	if !ok {
		return 0
	}
	if span.IsItalic() {
		return int(last.Base().FontSize()) / 6
	}
	if n := len(span.children); n > 0 {
		inner := span.children[n-1].Base()
		if inner.IsItalic() {
			return int(inner.FontSize()) / 6
		}
	}
	return 0
}

// Layout 基础内容居中于上下方标注之间, 上下标位于右侧
func (r *RelativeOffset) Layout(lc *LayoutContext, mode LayoutMode) {
	baseW, baseH := partSize(lc, mode, r.base)
	supW, supH := partSize(lc, mode, r.sup)
	subW, subH := partSize(lc, mode, r.sub)
	overW, overH := partSize(lc, mode, r.over)
	underW, underH := partSize(lc, mode, r.under)

	widest := max(overW, baseW, underW)
	w := widest + max(supW, subW)
	h := overH + baseH + underH
	if supH/2 > overH {
		h += supH/2 - overH
	}
	if subH/2 > underH {
		h += subH/2 - underH
	}

	baseX, overX, underX := 0, 0, 0
	baseY := max(overH, supH/2)
	if r.base != nil {
		baseX = (widest - baseW) / 2
		r.base.X, r.base.Y = baseX, baseY
	}
	if r.over != nil {
		overX = (widest - overW) / 2
		r.over.X, r.over.Y = overX, 0
		if overH <= supH/2 {
			r.over.Y = supH/2 - overH
		}
	}
	if r.under != nil {
		underX = (widest - underW) / 2
		r.under.X, r.under.Y = underX, baseY+baseH
	}
	if r.base != nil {
		shift := int(r.base.FontSize()) / 3
		if r.sup != nil {
			x := overX + overW
			if shift+baseW > overW {
				x = baseX + baseW
			}
			r.sup.X = x + r.italicCorrection(lc)
			r.sup.Y = 0
			if overH > supH/2 {
				r.sup.Y = overH - supH/3
			}
		}
		if r.sub != nil {
			x := underX + underW
			if shift+baseW > underW {
				x = baseX + baseW
			}
			r.sub.X, r.sub.Y = x, baseY+baseH-2*subH/3
		}
		r.setBox(w, h, r.base.BaseLine+baseY, r.base.CenterLine+baseY)
		return
	}
	r.setBox(w, h, baseY, baseY)
}

// Instance 生成实例
func (r *RelativeOffset) Instance(ctx *EvalContext) InstNode {
	inst := &RelativeOffsetInst{instBase: newInstBase(&r.NodeBase)}
	slots := []struct {
		src *Nonwrap
		dst **NonwrapInst
	}{
		{r.base, &inst.BaseNode}, {r.sup, &inst.Super}, {r.sub, &inst.Sub}, {r.over, &inst.Over}, {r.under, &inst.Under},
	}
	for _, s := range slots {
		if s.src == nil {
			continue
		}
		part, ok := s.src.Instance(ctx).(*NonwrapInst)
		if !ok {
			return nil
		}
		*s.dst = part
	}
	return inst
}

// Copy 深拷贝
func (r *RelativeOffset) Copy() Node {
	c := *r
	c.base = copyNonwrap(&c, r.base)
	c.sup = copyNonwrap(&c, r.sup)
	c.sub = copyNonwrap(&c, r.sub)
	c.over = copyNonwrap(&c, r.over)
	c.under = copyNonwrap(&c, r.under)
	return &c
}

func (r *RelativeOffset) writeXML(parent *etree.Element) {
	e := parent.CreateElement("rel-offset")
	r.writeAttrs(e)
	for _, p := range r.parts() {
		p.writeXML(e)
	}
}

func (r *RelativeOffset) accumulateParameterNames(set map[string]struct{}) {
	for _, p := range r.parts() {
		p.accumulateParameterNames(set)
	}
}

func (r *RelativeOffset) accumulateInputs(list *[]*Input) {
	for _, p := range r.parts() {
		p.accumulateInputs(list)
	}
}
