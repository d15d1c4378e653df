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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormula_Evaluate(t *testing.T) {
	ctx := NewEvalContext(
		&Variable{Name: "a", Value: int64(3)},
		&Variable{Name: "x", Value: 0.5},
		&Variable{Name: "name", Value: "Ann"},
	)
	tests := []struct {
		src  string
		want any
	}{
		{"a + 1", int64(4)},
		{"a / 2", 1.5},
		{"a // 2", int64(1)},
		{"x * 4", 2.0},
		{"math.sqrt(16)", 4.0},
		{"math.pow(2, a)", 8.0},
		{"a > 1 and x < 1", true},
		{"'big' if a > 10 else 'small'", "small"},
		{"name + '!'", "Ann!"},
		{"len([i for i in range(a)])", int64(3)},
		{"int('101', base=2)", int64(5)},
		{"(lambda q: q * a)(2)", int64(6)},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			f, err := ParseFormula(tt.src, ctx)
			require.NoError(t, err)
			got, err := f.Evaluate(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormula_VariableNames(t *testing.T) {
	tests := []struct {
		src  string
		want []string
	}{
		{"b + a * a", []string{"a", "b"}},
		{"math.floor(x)", []string{"x"}},
		{"[i * n for i in range(3)]", []string{"n"}},
		{"int('7', base=10)", nil},
		{"True or False", nil},
		{"(lambda q: q * 2)(k)", []string{"k"}},
		{"[x for x in range(3)] + [x]", []string{"x"}},
		{"[i for i in range(2)][0] + i", []string{"i"}},
		{"[j for i in range(2) for j in range(i)]", nil},
	}
	for _, tt := range tests {
		f, err := ParseFormula(tt.src, nil)
		require.NoError(t, err, tt.src)
		assert.Equal(t, tt.want, f.VariableNames(), tt.src)
	}
}

func TestFormula_LocalNamesNotParameters(t *testing.T) {
	ctx := NewEvalContext(&Variable{Name: "n", Value: int64(4)})

	f, err := ParseFormula("(lambda q: q * 2)(3)", ctx)
	require.NoError(t, err)
	assert.Nil(t, f.VariableNames())
	got, err := f.Evaluate(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(6), got)

	// 推导式变量只在推导式内有效, 外部同名引用仍须是参数
	_, err = ParseFormula("[i for i in range(n)][0] + i", ctx)
	assert.ErrorContains(t, err, `unknown variable "i"`)

	f, err = ParseFormula("len([i for i in range(n)]) + n", ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"n"}, f.VariableNames())

	_, err = ParseFormula("(lambda q: q + r)(1)", ctx)
	assert.ErrorContains(t, err, `unknown variable "r"`)
}

func TestFormula_ParseErrors(t *testing.T) {
	ctx := NewEvalContext(&Variable{Name: "a", Value: int64(1)})

	_, err := ParseFormula("   ", ctx)
	assert.EqualError(t, err, "empty formula")

	_, err = ParseFormula("a +", ctx)
	assert.ErrorContains(t, err, "invalid formula")

	_, err = ParseFormula("a + b", ctx)
	assert.ErrorContains(t, err, `unknown variable "b"`)

	// 未提供上下文时不校验变量
	f, err := ParseFormula("a + b", nil)
	require.NoError(t, err)
	assert.Equal(t, "a + b", f.Source())
}

func TestFormula_EvaluateErrors(t *testing.T) {
	ctx := NewEvalContext(&Variable{Name: "a"}, &Variable{Name: "s", Value: "x"})

	f, err := ParseFormula("a + 1", ctx)
	require.NoError(t, err)
	_, err = f.Evaluate(ctx)
	assert.ErrorContains(t, err, `variable "a" has no value`)

	f, err = ParseFormula("s + 1", ctx)
	require.NoError(t, err)
	_, err = f.Evaluate(ctx)
	assert.Error(t, err)

	f, err = ParseFormula("[1, 2]", ctx)
	require.NoError(t, err)
	_, err = f.Evaluate(ctx)
	assert.ErrorContains(t, err, "unsupported result type")

	f, err = ParseFormula("1 + 1", ctx)
	require.NoError(t, err)
	_, err = f.EvaluateBool(ctx)
	assert.ErrorContains(t, err, "did not evaluate to a boolean")
}

func TestFormula_StepLimit(t *testing.T) {
	ctx := NewEvalContext()
	ctx.MaxSteps = 1000
	f, err := ParseFormula("len([i for i in range(1000000)])", ctx)
	require.NoError(t, err)
	_, err = f.Evaluate(ctx)
	require.Error(t, err)

	ctx.MaxSteps = 0
	f, err = ParseFormula("len([i for i in range(100)])", ctx)
	require.NoError(t, err)
	got, err := f.Evaluate(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(100), got)
}

func TestFormula_DependsOnlyOnInputs(t *testing.T) {
	ctx := NewEvalContext(
		&Variable{Name: "a", Value: int64(1)},
		&Variable{Name: "ans", Input: true},
		&Variable{Name: "ok", Input: true},
	)
	tests := []struct {
		src  string
		want bool
	}{
		{"ans > 1 and ok", true},
		{"ans > a", false},
		{"1 + 1", false},
	}
	for _, tt := range tests {
		f, err := ParseFormula(tt.src, ctx)
		require.NoError(t, err)
		assert.Equal(t, tt.want, f.DependsOnlyOnInputs(ctx), tt.src)
	}
}

func TestNumberOrFormula(t *testing.T) {
	n := NewNumber(2.5)
	v, ok := n.Number()
	assert.True(t, ok)
	assert.Equal(t, 2.5, v)
	assert.False(t, n.IsFormula())
	assert.Equal(t, "2.5", n.String())

	ctx := NewEvalContext(&Variable{Name: "a", Value: int64(4)}, &Variable{Name: "s", Value: "no"})
	f, err := ParseFormula("a * 2", ctx)
	require.NoError(t, err)
	n = NewFormulaValue(f)
	assert.True(t, n.IsFormula())
	assert.Equal(t, "a * 2", n.String())
	got, err := n.Evaluate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8.0, got)

	f, err = ParseFormula("s", ctx)
	require.NoError(t, err)
	_, err = NewFormulaValue(f).Evaluate(ctx)
	assert.ErrorContains(t, err, "did not evaluate to a number")
}

func TestEvalContext(t *testing.T) {
	ctx := NewEvalContext(&Variable{Name: "b", Value: int64(1)}, &Variable{Name: "a", Input: true})
	assert.Equal(t, []string{"a", "b"}, ctx.VariableNames())
	assert.Equal(t, []string{"a"}, ctx.InputVariableNames())
	assert.True(t, ctx.IsInput("a"))
	assert.False(t, ctx.IsInput("b"))
	assert.False(t, ctx.IsInput("missing"))

	cp := ctx.Copy()
	require.True(t, cp.SetValue("b", int64(9)))
	assert.Equal(t, int64(1), ctx.GetVariable("b").Value)
	assert.False(t, cp.SetValue("missing", 1))

	child := ctx.withVariable(&Variable{Name: "b", Value: int64(5)})
	assert.Equal(t, int64(5), child.GetVariable("b").Value)
	assert.True(t, child.IsInput("a"))
	assert.Equal(t, int64(1), ctx.GetVariable("b").Value)

	ctx.AddVariable(nil)
	ctx.AddVariable(&Variable{})
	assert.Len(t, ctx.VariableNames(), 2)
	assert.NotNil(t, ctx.Logger())
}
