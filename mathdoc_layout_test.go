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
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// box 节点几何快照
type box struct {
	X, Y, W, H, Base, Center int
}

func snapshot(b *NodeBase) box {
	return box{b.X, b.Y, b.Width, b.Height, b.BaseLine, b.CenterLine}
}

// geometry 收集文档、段落及其行内对象的几何信息
func geometry(col *Column) []box {
	out := []box{snapshot(col.Base())}
	for _, c := range col.Children() {
		out = append(out, snapshot(c.Base()))
		p, ok := c.(*Paragraph)
		if !ok {
			continue
		}
		for _, o := range p.Flow() {
			out = append(out, snapshot(o.Base()))
			if f, ok := o.(*Fence); ok {
				for _, fo := range f.Flow() {
					out = append(out, snapshot(fo.Base()))
				}
			}
		}
	}
	return out
}

func TestLayout_SingleLineParagraph(t *testing.T) {
	col := mustParse(t, `<doc><p>ab cd</p></doc>`, nil)
	col.Layout(NewLayoutContext(nil, testMeasurer), ModeText)
	p := firstParagraph(t, col)

	// 字号24: 字宽12, 上升19, 下降5
	assert.Equal(t, insetTopNormal+19, p.BaseLine)
	assert.Equal(t, insetTopNormal+24+insetBottomNormal, p.Height)
	assert.Equal(t, insetLeft+12*5+insetRight, p.Width)
	assert.Equal(t, p.Height, col.Height)
}

func TestLayout_ParagraphWraps(t *testing.T) {
	col := mustParse(t, `<doc><p>aaaa bbbb cccc dddd</p></doc>`, nil)
	col.SetColumnWidth(100)
	col.Layout(NewLayoutContext(nil, testMeasurer), ModeText)
	p := firstParagraph(t, col)

	assert.Equal(t, 100, p.Width)
	assert.Equal(t, insetTopNormal+4*24+insetBottomNormal, p.Height)
	for _, o := range p.Flow() {
		if _, ws := o.(*Whitespace); ws {
			continue
		}
		b := o.Base()
		assert.Equal(t, insetLeft, b.X)
		assert.LessOrEqual(t, b.X+b.Width, 100-insetRight)
	}
}

func TestLayout_ParagraphBaselineUnified(t *testing.T) {
	col := mustParse(t, `<doc><p>x <fraction><numerator>1</numerator><denominator>2</denominator></fraction> <math>y</math></p></doc>`, nil)
	col.Layout(NewLayoutContext(nil, testMeasurer), ModeText)
	p := firstParagraph(t, col)

	require.NotEmpty(t, p.Flow())
	baselines := map[int]bool{}
	for _, o := range p.Flow() {
		b := o.Base()
		baselines[b.BaseLine] = true
		if b.VAlign() == AlignBaseline {
			assert.Equal(t, p.BaseLine, b.Y+b.BaseLine, "%T", o)
		}
	}
	assert.Greater(t, len(baselines), 1, "children should have differing baselines")
}

func TestLayout_FenceBaselineUnified(t *testing.T) {
	col := mustParse(t, `<doc><p><fence>a<fraction><numerator>1</numerator><denominator>2</denominator></fraction></fence></p></doc>`, nil)
	col.Layout(NewLayoutContext(nil, testMeasurer), ModeText)
	f, ok := firstParagraph(t, col).Children()[0].(*Fence)
	require.True(t, ok)

	open, closing := f.Brackets()
	require.NotNil(t, open)
	require.NotNil(t, closing)
	objs := append([]Node{open}, f.Flow()...)
	objs = append(objs, closing)
	for _, o := range objs {
		b := o.Base()
		if b.VAlign() == AlignBaseline {
			assert.Equal(t, f.BaseLine, b.Y+b.BaseLine, "%T", o)
		}
	}
	assert.Equal(t, 0, open.X)
	assert.Equal(t, f.Width, closing.X+closing.Width)
}

func TestLayout_Idempotent(t *testing.T) {
	ctx := NewEvalContext(&Variable{Name: "a", Value: int64(12345)})
	col := mustParse(t, `<doc><p>{a} <fence type="braces"><fraction><numerator>{a}</numerator><denominator>2</denominator></fraction></fence></p>`+
		`<v-space height="10"/><p><radical><base>x</base><root>3</root></radical><table><tr><td>1</td></tr></table></p></doc>`, ctx)
	lc := NewLayoutContext(ctx, testMeasurer)

	col.Layout(lc, ModeText)
	first := geometry(col)
	col.Layout(lc, ModeText)
	if diff := cmp.Diff(first, geometry(col)); diff != "" {
		t.Errorf("second layout drifted (-first +second):\n%s", diff)
	}
}

func TestLayout_DoesNotMutateContext(t *testing.T) {
	ctx := NewEvalContext(&Variable{Name: "a", Value: int64(3)}, &Variable{Name: "ans", Input: true})
	col := mustParse(t, `<doc><p>{a} <input type="integer" name="ans"/></p></doc>`, ctx)
	before := ctx.Copy()
	col.Layout(NewLayoutContext(ctx, testMeasurer), ModeText)
	assert.Equal(t, before.VariableNames(), ctx.VariableNames())
	assert.Equal(t, int64(3), ctx.GetVariable("a").Value)
	assert.Nil(t, ctx.GetVariable("ans").Value)
}

func TestLayout_ParameterReference(t *testing.T) {
	ctx := NewEvalContext(&Variable{Name: "a", Value: int64(12345)})
	col := mustParse(t, `<doc><p>{a}</p></doc>`, ctx)
	col.Layout(NewLayoutContext(ctx, testMeasurer), ModeText)
	p := firstParagraph(t, col)

	ref, ok := p.Children()[0].(*ParameterReference)
	require.True(t, ok)
	require.NotNil(t, ref.Contents())
	assert.Equal(t, "12345", ref.Contents().(*Text).Text())
	assert.Equal(t, 60, ref.Width)
	require.Len(t, p.Flow(), 1)
	assert.Same(t, ref.Contents(), p.Flow()[0])
}

func TestLayout_ParameterSpan(t *testing.T) {
	span, diag := ParseSpan(`<span>two words</span>`, nil)
	require.False(t, diag.HasErrors())
	ctx := NewEvalContext(&Variable{Name: "s", Value: span})
	col := mustParse(t, `<doc><p>{s}</p></doc>`, ctx)
	col.Layout(NewLayoutContext(ctx, testMeasurer), ModeText)

	// 片段内容展开为段落的行内对象
	assert.Len(t, firstParagraph(t, col).Flow(), 3)
}

func TestLayout_MathText(t *testing.T) {
	col := mustParse(t, `<doc><p><math>x</math><math>-</math><math>12</math></p></doc>`, nil)
	col.Layout(NewLayoutContext(nil, testMeasurer), ModeText)
	kids := firstParagraph(t, col).Children()
	require.Len(t, kids, 3)

	text := func(n Node) *Text {
		return n.(*Math).Children()[0].(*Text)
	}
	assert.True(t, text(kids[0]).Italic())
	assert.Equal(t, "–", text(kids[1]).Display())
	assert.True(t, text(kids[2]).Italic())
	assert.Equal(t, "12", text(kids[2]).Display())
}

func TestLayout_Table(t *testing.T) {
	col := mustParse(t, `<doc><p><table><tr><td>a</td><td>bb</td></tr><tr><td>ccc</td><td>d</td></tr></table></p></doc>`, nil)
	col.Layout(NewLayoutContext(nil, testMeasurer), ModeText)
	tbl := firstParagraph(t, col).Children()[0].(*Table)

	rowY, _, colX := tbl.Grid()
	assert.Equal(t, []int{1, 38, 75}, colX)
	assert.Equal(t, []int{1, 26, 51}, rowY)
	assert.Equal(t, 75, tbl.Width)
	assert.Equal(t, 51, tbl.Height)

	rows := tbl.Rows()
	assert.Equal(t, 13, rows[0][0].X)
	assert.Equal(t, 1, rows[0][0].Y)
	assert.Equal(t, 26, rows[1][0].Y)
}

func TestLayout_DecorationKeepsWidth(t *testing.T) {
	col := mustParse(t, `<doc><p>ab <span fontstyle="underline,strikethrough">cd</span></p></doc>`, nil)
	col.Layout(NewLayoutContext(nil, testMeasurer), ModeText)
	assert.Equal(t, insetLeft+12*5+insetRight, firstParagraph(t, col).Width)
}

func TestLayout_UnavailableValuesDegrade(t *testing.T) {
	ctx := NewEvalContext(
		&Variable{Name: "n", Value: int64(6)},
		&Variable{Name: "s", Value: "wide"},
		&Variable{Name: "u"},
	)
	vspace := func(_ *testing.T, col *Column) *NodeBase { return col.Children()[0].Base() }
	inline := func(t *testing.T, col *Column) *NodeBase { return firstParagraph(t, col).Children()[0].Base() }
	cases := []struct {
		name   string
		src    string
		node   func(*testing.T, *Column) *NodeBase
		wantW  int
		wantH  int
		widthy bool
	}{
		{"v-space number", `<doc><v-space><height><expr>n * 2</expr></height></v-space></doc>`, vspace, 0, 12, false},
		{"v-space string", `<doc><v-space><height><expr>s</expr></height></v-space></doc>`, vspace, 0, 0, false},
		{"v-space unset", `<doc><v-space><height><expr>u + 1</expr></height></v-space></doc>`, vspace, 0, 0, false},
		{"v-space nan", `<doc><v-space><height><expr>math.sqrt(-n)</expr></height></v-space></doc>`, vspace, 0, 0, false},
		{"h-space number", `<doc><p><h-space><width><expr>n</expr></width></h-space></p></doc>`, inline, 6, 0, true},
		{"h-space string", `<doc><p><h-space><width><expr>s</expr></width></h-space></p></doc>`, inline, 0, 0, true},
		{"h-space unset", `<doc><p><h-space><width><expr>u</expr></width></h-space></p></doc>`, inline, 0, 0, true},
		{"drawing string", `<doc><p><drawing height="10"><width><expr>s</expr></width></drawing></p></doc>`, inline, 0, 10, true},
		{"drawing unset", `<doc><p><drawing width="10"><height><expr>u * 2</expr></height></drawing></p></doc>`, inline, 10, 0, true},
		{"drawing negative", `<doc><p><drawing height="10"><width><expr>-n</expr></width></drawing></p></doc>`, inline, 0, 10, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			col := mustParse(t, tc.src, ctx)
			col.Layout(NewLayoutContext(ctx, testMeasurer), ModeText)
			b := tc.node(t, col)
			assert.Equal(t, tc.wantH, b.Height)
			if tc.widthy {
				assert.Equal(t, tc.wantW, b.Width)
			}
		})
	}
}

func TestLayout_Radical(t *testing.T) {
	col := mustParse(t, `<doc><p><radical><base>x</base></radical></p></doc>`, nil)
	col.Layout(NewLayoutContext(nil, testMeasurer), ModeText)
	r := firstParagraph(t, col).Children()[0].(*Radical)
	base := r.Radicand().Base()

	// 字号24: 线宽1, 根号宽12, 间距2, 留白2
	signX, signW, barY, barT := r.Sign()
	assert.Equal(t, 0, signX)
	assert.Equal(t, 12, signW)
	assert.Equal(t, 0, barY)
	assert.Equal(t, 1, barT)
	assert.Equal(t, 12+2, base.X)
	assert.Equal(t, 3, base.Y)
	assert.Equal(t, base.X+base.Width+2, r.Width)
	assert.Equal(t, 3+base.Height, r.Height)
	assert.Equal(t, 3+base.BaseLine, r.BaseLine)
}

func TestLayout_RadicalWithRoot(t *testing.T) {
	col := mustParse(t, `<doc><p><radical><base>x</base><root>123</root></radical></p></doc>`, nil)
	col.Layout(NewLayoutContext(nil, testMeasurer), ModeText)
	r := firstParagraph(t, col).Children()[0].(*Radical)
	base, root := r.Radicand().Base(), r.Root().Base()

	signX, signW, barY, barT := r.Sign()
	require.Greater(t, root.Width, signW/2)
	assert.Equal(t, 0, root.X)
	assert.Equal(t, 0, root.Y)
	// 根指数较宽时根号右移, 使其与根号左半部分重叠
	assert.Equal(t, root.Width-signW/2, signX)
	assert.Equal(t, signX+signW+int(r.FontSize()/12), base.X)
	baseY := barT + 2*barT + barY
	assert.Equal(t, baseY, base.Y)
	if hook := 3*barT + base.Height/2; root.Height > hook {
		assert.Equal(t, root.Height-hook, barY)
	} else {
		assert.Equal(t, 0, barY)
	}
	assert.Equal(t, max(baseY+base.Height, root.Height), r.Height)
	assert.Equal(t, baseY+base.BaseLine, r.BaseLine)
}

func TestLayout_RelativeOffsetScripts(t *testing.T) {
	col := mustParse(t, `<doc><p><rel-offset><base>xx</base><super>2</super><sub>i</sub></rel-offset></p></doc>`, nil)
	col.Layout(NewLayoutContext(nil, testMeasurer), ModeText)
	r := firstParagraph(t, col).Children()[0].(*RelativeOffset)
	base, sup, sub := r.BaseContent().Base(), r.Superscript().Base(), r.Subscript().Base()

	assert.Equal(t, 0, base.X)
	assert.Equal(t, sup.Height/2, base.Y)
	// 正体基础内容无斜体修正
	assert.Equal(t, base.Width, sup.X)
	assert.Equal(t, 0, sup.Y)
	assert.Equal(t, base.Width, sub.X)
	assert.Equal(t, base.Y+base.Height-2*sub.Height/3, sub.Y)

	assert.Equal(t, base.Width+max(sup.Width, sub.Width), r.Width)
	assert.Equal(t, base.Height+sup.Height/2+sub.Height/2, r.Height)
	assert.Equal(t, base.Y+base.BaseLine, r.BaseLine)
}

func TestLayout_RelativeOffsetOverUnder(t *testing.T) {
	col := mustParse(t, `<doc><p><rel-offset><base>xxxx</base><over>a</over><under>b</under></rel-offset></p></doc>`, nil)
	col.Layout(NewLayoutContext(nil, testMeasurer), ModeText)
	r := firstParagraph(t, col).Children()[0].(*RelativeOffset)
	base, over, under := r.BaseContent().Base(), r.Over().Base(), r.Under().Base()

	widest := max(base.Width, over.Width, under.Width)
	assert.Equal(t, widest, r.Width)
	assert.Equal(t, (widest-base.Width)/2, base.X)
	assert.Equal(t, (widest-over.Width)/2, over.X)
	assert.Equal(t, (widest-under.Width)/2, under.X)
	assert.Equal(t, 0, over.Y)
	assert.Equal(t, over.Height, base.Y)
	assert.Equal(t, base.Y+base.Height, under.Y)
	assert.Equal(t, over.Height+base.Height+under.Height, r.Height)
	assert.Equal(t, base.Y+base.BaseLine, r.BaseLine)
}

func TestLayout_EmptyTable(t *testing.T) {
	for _, src := range []string{
		`<doc><p><table/></p></doc>`,
		`<doc><p><table><tr/><tr/></table></p></doc>`,
	} {
		col := mustParse(t, src, nil)
		col.Layout(NewLayoutContext(nil, testMeasurer), ModeText)
		tbl := firstParagraph(t, col).Children()[0].(*Table)
		assert.Equal(t, 0, tbl.Width, src)
		assert.Equal(t, 0, tbl.Height, src)
	}

	tbl := NewTable(nil)
	tbl.Layout(NewLayoutContext(nil, testMeasurer), ModeText)
	assert.Equal(t, 0, tbl.Width)
	assert.Equal(t, 0, tbl.Height)
}
