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
	"context"
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const quizDoc = `<doc>` +
	`<p>Solve {a} + {b} = <input type="integer" name="ans" width="3"/></p>` +
	`<p><input type="checkbox" name="sure" value="1"/> I am sure` +
	`<input type="real" name="how"><enabled><expr>sure</expr></enabled></input></p>` +
	`<v-space><height><expr>a * 4</expr></height></v-space>` +
	`</doc>`

// quizContext 测验文档的求值上下文
func quizContext(a, b int64) *EvalContext {
	return NewEvalContext(
		&Variable{Name: "a", Value: a},
		&Variable{Name: "b", Value: b},
		&Variable{Name: "ans", Input: true},
		&Variable{Name: "sure", Input: true},
	)
}

func TestRealize_SubstitutesParameters(t *testing.T) {
	ctx := quizContext(3, 4)
	col := mustParse(t, quizDoc, ctx)
	inst, err := Realize(col, ctx)
	require.NoError(t, err)
	require.NotNil(t, inst.Root)

	xml := inst.XML()
	assert.Contains(t, xml, "Solve 3 + 4 =")
	assert.NotContains(t, xml, "{a}")
	assert.Contains(t, xml, `<v-space height="12"/>`)

	inputs := inst.Inputs()
	require.Len(t, inputs, 3)
	assert.Equal(t, "ans", inputs[0].Name)
	assert.Equal(t, InputInteger, inputs[0].Type)
	assert.Equal(t, 3, inputs[0].Width)
	assert.Equal(t, InputCheckbox, inputs[1].Type)
	assert.Equal(t, int64(1), inputs[1].Choice)
}

func TestRealize_InstancePurity(t *testing.T) {
	ctx := quizContext(3, 4)
	col := mustParse(t, quizDoc, ctx)
	inst, err := Realize(col, ctx)
	require.NoError(t, err)

	inputs := ctx.InputVariableNames()
	for _, f := range InstFormulas(inst.Root) {
		for _, name := range f.VariableNames() {
			assert.True(t, slices.Contains(inputs, name), "formula %q references non-input %q", f.Source(), name)
		}
	}

	how := inst.Inputs()[2]
	assert.Nil(t, how.EnabledConst)
	require.NotNil(t, how.Enabled)
	assert.Equal(t, "sure", how.Enabled.Source())
}

func TestRealize_MixedEnabledFormula(t *testing.T) {
	const doc = `<doc><p><input type="real" name="why"><enabled><expr>sure and a > 1</expr></enabled></input></p></doc>`

	ctx := quizContext(3, 4)
	col := mustParse(t, doc, ctx)
	// 公式引用了非输入变量, 需在生成时求值
	_, err := Realize(col, ctx)
	assert.ErrorIs(t, err, ErrNotRealized)

	ctx.SetValue("sure", true)
	inst, err := Realize(col, ctx)
	require.NoError(t, err)
	why := inst.Inputs()[0]
	assert.Nil(t, why.Enabled)
	require.NotNil(t, why.EnabledConst)
	assert.True(t, *why.EnabledConst)
	assert.Contains(t, inst.XML(), "<enabled><expr>True</expr></enabled>")
	assert.Empty(t, InstFormulas(inst.Root))
}

func TestRealize_MissingParameter(t *testing.T) {
	col := mustParse(t, `<doc><p>{a}</p></doc>`, nil)
	_, err := Realize(col, NewEvalContext())
	assert.ErrorIs(t, err, ErrNotRealized)

	_, err = Realize(nil, NewEvalContext())
	assert.ErrorIs(t, err, ErrNotRealized)
}

func TestRealize_TemplateRoundTrip(t *testing.T) {
	ctx := quizContext(5, 6)
	col := mustParse(t, quizDoc, ctx)
	inst, err := Realize(col, ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"ans", "sure"}, inst.InputContext().VariableNames())

	tmpl, err := inst.Template()
	require.NoError(t, err)
	again, err := Realize(tmpl, inst.InputContext())
	require.NoError(t, err)
	assert.Equal(t, inst.XML(), again.XML())

	laid, err := inst.Layout(testMeasurer)
	require.NoError(t, err)
	assert.Greater(t, laid.Height, 0)
	assert.Greater(t, laid.Width, 0)
}

func TestRealize_SpanParameter(t *testing.T) {
	span, diag := ParseSpan(`<span>x <math>y</math></span>`, nil)
	require.False(t, diag.HasErrors())
	ctx := NewEvalContext(&Variable{Name: "s", Value: span})
	col := mustParse(t, `<doc><p>Value: {s}</p></doc>`, ctx)

	inst, err := Realize(col, ctx)
	require.NoError(t, err)
	assert.Contains(t, inst.XML(), "<math>y</math>")
	// 片段参数的内容直接并入所在容器
	assert.NotContains(t, inst.XML(), "<span>")
}

func TestRealizeMany(t *testing.T) {
	defer goleak.VerifyNone(t)

	col := mustParse(t, quizDoc, quizContext(1, 1))
	var evals []*EvalContext
	for i := range 8 {
		evals = append(evals, quizContext(int64(i+1), int64(10*i)))
	}
	insts, err := RealizeMany(context.Background(), col, evals, 3)
	require.NoError(t, err)
	require.Len(t, insts, len(evals))

	ids := map[string]bool{}
	for i, inst := range insts {
		assert.Contains(t, inst.XML(), fmt.Sprintf("Solve %d + %d =", i+1, 10*i))
		ids[inst.ID.String()] = true
	}
	assert.Len(t, ids, len(evals))
}

func TestRealizeMany_Error(t *testing.T) {
	defer goleak.VerifyNone(t)

	col := mustParse(t, `<doc><p>{a}</p></doc>`, nil)
	evals := []*EvalContext{
		NewEvalContext(&Variable{Name: "a", Value: int64(1)}),
		NewEvalContext(),
	}
	_, err := RealizeMany(context.Background(), col, evals, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotRealized)
	assert.Contains(t, err.Error(), "context 1")
}

func TestRealizeMany_Canceled(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	col := mustParse(t, `<doc><p>x</p></doc>`, nil)
	_, err := RealizeMany(ctx, col, []*EvalContext{NewEvalContext(), NewEvalContext()}, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWalkInst_StopsDescent(t *testing.T) {
	ctx := quizContext(1, 2)
	inst, err := Realize(mustParse(t, quizDoc, ctx), ctx)
	require.NoError(t, err)

	var tags []string
	WalkInst(inst.Root, func(n InstNode) bool {
		if _, ok := n.(*ParagraphInst); ok {
			tags = append(tags, "p")
			return false
		}
		return true
	})
	assert.Equal(t, []string{"p", "p"}, tags)
}

func TestInput_Values(t *testing.T) {
	in := NewInput(InputInteger, "n")
	assert.Nil(t, in.Value())
	assert.True(t, in.SetValue("12"))
	assert.Equal(t, int64(12), in.Value())
	assert.False(t, in.SetValue("1.5"))
	assert.Equal(t, "12", in.Text())

	in.SetTreatMinusAs(-1)
	assert.True(t, in.SetValue("-"))
	assert.Equal(t, int64(-1), in.Value())

	real := NewInput(InputReal, "r")
	assert.True(t, real.SetValue("−2.5"))
	assert.Equal(t, -2.5, real.Value())
	assert.False(t, real.SetValue("NaN"))

	str := NewInput(InputString, "s")
	assert.True(t, str.SetDefault("hello"))
	assert.Equal(t, "hello", str.Value())
	str.Clear()
	assert.Nil(t, str.Value())

	box := NewInput(InputCheckbox, "c")
	assert.Equal(t, false, box.Value())
	assert.True(t, box.SetValue("TRUE"))
	assert.Equal(t, true, box.Value())
	assert.False(t, box.SetValue("maybe"))
}

func TestInput_RadioStore(t *testing.T) {
	ctx := NewEvalContext()
	r := NewInput(InputRadioButton, "pick")
	r.SetChoice(2)

	r.Store(ctx)
	assert.Nil(t, ctx.GetVariable("pick"))

	require.True(t, r.SetValue("true"))
	r.Store(ctx)
	require.NotNil(t, ctx.GetVariable("pick"))
	assert.Equal(t, int64(2), ctx.GetVariable("pick").Value)
	assert.True(t, ctx.IsInput("pick"))

	r.Clear()
	r.Store(ctx)
	assert.Nil(t, ctx.GetVariable("pick").Value)
}

func TestInput_EnabledVar(t *testing.T) {
	in := NewInput(InputInteger, "n")
	assert.True(t, in.IsEnabled(NewEvalContext()))

	in.SetEnabledVar("flag", true)
	assert.False(t, in.IsEnabled(NewEvalContext()))
	assert.True(t, in.IsEnabled(NewEvalContext(&Variable{Name: "flag", Value: true})))
	assert.False(t, in.IsEnabled(NewEvalContext(&Variable{Name: "flag", Value: false})))

	in.SetEnabledVar("level", int64(3))
	assert.True(t, in.IsEnabled(NewEvalContext(&Variable{Name: "level", Value: int64(3)})))
	assert.True(t, in.IsEnabled(NewEvalContext(&Variable{Name: "level", Value: 3.0})))
	assert.False(t, in.IsEnabled(NewEvalContext(&Variable{Name: "level", Value: int64(4)})))
}

func TestInput_ParsedAttributes(t *testing.T) {
	col := mustParse(t, `<doc><p><input type="real" name="x" default="1.5" treat-minus-as="-1" style="underline" enabled-var-name="go" enabled-var-value="true"/></p></doc>`, nil)
	inputs := col.Inputs()
	require.Len(t, inputs, 1)
	in := inputs[0]
	assert.Equal(t, InputReal, in.Type())
	assert.Equal(t, "1.5", in.Default())
	assert.Equal(t, 1.5, in.Value())
	require.True(t, in.SetValue("-"))
	assert.Equal(t, -1.0, in.Value())
	assert.True(t, strings.Contains(ToXML(col), `enabled-var-name="go"`))
}

// roundTrip 由实例重新解析模板并再次生成, 同时检查实例可排版
func roundTrip(t *testing.T, inst *DocInst) *DocInst {
	t.Helper()
	tmpl, err := inst.Template()
	require.NoError(t, err)
	again, err := Realize(tmpl, inst.InputContext())
	require.NoError(t, err)
	laid, err := inst.Layout(testMeasurer)
	require.NoError(t, err)
	assert.Greater(t, laid.Height, 0)
	return again
}

func TestRealize_DrawingRoundTrip(t *testing.T) {
	ctx := NewEvalContext(&Variable{Name: "w", Value: int64(7)})
	inst := realizeDoc(t, `<doc><p><drawing height="30"><width><expr>w / 2</expr></width>`+
		`<line x="1" y="2" width="10" height="0" stroke-color="red"/>`+
		`<polyline x-list="0,5,10" y-list="0,5,0"/>`+
		`</drawing></p></doc>`, ctx)

	d := findInst[*DrawingInst](t, inst.Root)
	// 宽度公式结果 3.5 四舍五入为整数
	assert.Equal(t, 4, d.Width)
	assert.Equal(t, 30, d.Height)
	xml := inst.XML()
	assert.Contains(t, xml, `<drawing width="4" height="30">`)
	assert.Contains(t, xml, `<line stroke-color="red" x="1" y="2" width="10" height="0"/>`)
	assert.Contains(t, xml, `<polyline`)

	again := roundTrip(t, inst)
	assert.Equal(t, xml, again.XML())
	assert.Len(t, findInst[*DrawingInst](t, again.Root).Primitives, 2)
}

func TestRealize_GraphRoundTrip(t *testing.T) {
	inst := realizeDoc(t, `<doc><p><graphxy width="80" height="60" minx="-2" maxx="2" miny="-1" maxy="4">`+
		`<line x="0" y="0" width="1" height="1"/>`+
		`<formula><expr>x * x</expr></formula>`+
		`</graphxy></p></doc>`, nil)

	g := findInst[*GraphXYInst](t, inst.Root)
	require.Len(t, g.Primitives, 2)
	xml := inst.XML()
	assert.Contains(t, xml, `<graphxy width="80" height="60"`)
	assert.Contains(t, xml, `<line`)
	// 函数图像写为折线
	assert.Contains(t, xml, `<polyline`)

	again := roundTrip(t, inst)
	ag := findInst[*GraphXYInst](t, again.Root)
	assert.Equal(t, g.Window, ag.Window)
	require.Len(t, ag.Primitives, 2)
	seg := g.Primitives[1].(*FormulaPlotInst).Segments[0]
	poly, ok := ag.Primitives[1].(*PolygonInst)
	require.True(t, ok, "got %T", ag.Primitives[1])
	assert.Equal(t, seg.Xs, poly.Xs)
	assert.Equal(t, seg.Ys, poly.Ys)
}

func TestRealize_RadicalAndOffsetParts(t *testing.T) {
	inst := realizeDoc(t, `<doc><p><radical><base>x</base><root>3</root></radical> `+
		`<math><rel-offset><base>y</base><super>2</super></rel-offset></math></p></doc>`, nil)

	rad := findInst[*RadicalInst](t, inst.Root)
	require.NotNil(t, rad.Radicand)
	require.NotNil(t, rad.Root)
	assert.Equal(t, "base", rad.Radicand.Tag)
	assert.Equal(t, "root", rad.Root.Tag)
	assert.Equal(t, "radical", rad.Base().Tag)

	off := findInst[*RelativeOffsetInst](t, inst.Root)
	require.NotNil(t, off.BaseNode)
	require.NotNil(t, off.Super)
	assert.Nil(t, off.Sub)
	assert.Nil(t, off.Over)
	assert.Nil(t, off.Under)

	assert.Equal(t, `$\sqrt[3]{x}$`, ToLaTeX(rad))
	again := roundTrip(t, inst)
	assert.Equal(t, inst.XML(), again.XML())
}

func TestRealize_FormattedSpanParameter(t *testing.T) {
	span, diag := ParseSpan(`<span color="red" fontstyle="bold">x</span>`, nil)
	require.False(t, diag.HasErrors())
	plain, diag := ParseSpan(`<span>y</span>`, nil)
	require.False(t, diag.HasErrors())
	ctx := NewEvalContext(&Variable{Name: "s", Value: span}, &Variable{Name: "u", Value: plain})

	inst := realizeDoc(t, `<doc><p>{s} {u}</p><p><math>{s}</math></p></doc>`, ctx)
	xml := inst.XML()
	assert.Contains(t, xml, `<span color="red"`)
	// 数学片段内不允许片段, 格式保留在不可断行片段上
	assert.Contains(t, xml, `<math><nonwrap color="red"`)
	// 无格式片段直接展开
	assert.Contains(t, xml, `y</p>`)

	tmpl, err := inst.Template()
	require.NoError(t, err)
	kids := firstParagraph(t, tmpl).Children()
	require.NotEmpty(t, kids)
	sp, ok := kids[0].(*Span)
	require.True(t, ok, "got %T", kids[0])
	assert.Equal(t, "red", sp.ColorName())
	assert.True(t, sp.IsBold())

	again := roundTrip(t, inst)
	assert.Equal(t, xml, again.XML())
}

func TestRealize_EnabledVarResolved(t *testing.T) {
	const doc = `<doc><p><input type="real" name="x" enabled-var-name="go" enabled-var-value="true"/></p></doc>`

	// 启用变量为普通参数时生成实例即确定结果
	ctx := NewEvalContext(&Variable{Name: "go", Value: true}, &Variable{Name: "x", Input: true})
	inst := realizeDoc(t, doc, ctx)
	in := inst.Inputs()[0]
	assert.Empty(t, in.EnabledVarName)
	require.NotNil(t, in.EnabledConst)
	assert.True(t, *in.EnabledConst)
	assert.True(t, in.IsEnabled(inst.InputContext()))
	assert.NotContains(t, inst.XML(), "enabled-var-name")
	roundTrip(t, inst)

	ctx = NewEvalContext(&Variable{Name: "go", Value: false}, &Variable{Name: "x", Input: true})
	in = realizeDoc(t, doc, ctx).Inputs()[0]
	require.NotNil(t, in.EnabledConst)
	assert.False(t, *in.EnabledConst)

	// 启用变量为输入变量时保留到实例中
	ctx = NewEvalContext(&Variable{Name: "go", Input: true}, &Variable{Name: "x", Input: true})
	inst = realizeDoc(t, doc, ctx)
	in = inst.Inputs()[0]
	assert.Equal(t, "go", in.EnabledVarName)
	assert.Nil(t, in.EnabledConst)
	assert.False(t, in.IsEnabled(inst.InputContext()))
	assert.True(t, in.IsEnabled(NewEvalContext(&Variable{Name: "go", Value: true, Input: true})))
}

func TestInput_ParameterNames(t *testing.T) {
	ctx := NewEvalContext(
		&Variable{Name: "ans", Input: true},
		&Variable{Name: "sure", Input: true},
		&Variable{Name: "k", Value: int64(1)},
	)
	col := mustParse(t, `<doc><p><input type="integer" name="ans"/>`+
		`<input type="real" name="how"><enabled><expr>sure and k > 0</expr></enabled></input>`+
		`<input type="integer" name="c" enabled-var-name="k" enabled-var-value="1"/></p></doc>`, ctx)
	// 控件自身的变量名不计入引用的参数
	assert.Equal(t, []string{"k", "sure"}, col.ParameterNames())
}
