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
	"image/color"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// findInst 在实例树中查找第一个指定类型的节点
func findInst[T InstNode](t *testing.T, root InstNode) T {
	t.Helper()
	var found T
	var ok bool
	WalkInst(root, func(n InstNode) bool {
		if ok {
			return false
		}
		found, ok = n.(T)
		return !ok
	})
	require.True(t, ok, "no %T in instance tree", found)
	return found
}

func TestDrawing_Instance(t *testing.T) {
	ctx := NewEvalContext(&Variable{Name: "w", Value: int64(20)})
	col := mustParse(t, `<doc><p><drawing width="100" height="50">`+
		`<line x="1" y="2" width="10" height="0" stroke-color="red"/>`+
		`<rectangle x="0" y="0" height="5" fill-style="solid"><width><expr>w * 2</expr></width></rectangle>`+
		`<oval cx="10" cy="10" r="4" stroke-width="0"/>`+
		`<polygon x-list="0,1,2" y-list="0,1"/>`+
		`</drawing></p></doc>`, ctx)

	inst, err := Realize(col, ctx)
	require.NoError(t, err)
	d := findInst[*DrawingInst](t, inst.Root)
	assert.Equal(t, 100, d.Width)
	assert.Equal(t, 50, d.Height)

	// 顶点个数不一致的多边形被省略
	want := []PrimitiveInst{
		&LineInst{X: 1, Y: 2, Width: 10, Stroke: &StrokeInst{Width: 1, ColorName: "red", Alpha: 1}},
		&RectangleInst{
			Bounds: Box{W: 40, H: 5},
			Stroke: &StrokeInst{Width: 1, ColorName: DefaultColorName, Alpha: 1},
			Fill:   &FillInst{ColorName: DefaultColorName, Alpha: 1},
		},
		&OvalInst{Bounds: Box{X: 6, Y: 6, W: 8, H: 8}},
	}
	if diff := cmp.Diff(want, d.Primitives); diff != "" {
		t.Errorf("primitives mismatch (-want +got):\n%s", diff)
	}
	assert.Contains(t, inst.XML(), `<oval stroke-width="0" x="6" y="6" width="8" height="8"/>`)
}

func TestDrawing_ArcBounds(t *testing.T) {
	cases := []struct {
		name  string
		attrs string
		want  Box
	}{
		{"box", `x="1" y="2" width="6" height="4"`, Box{X: 1, Y: 2, W: 6, H: 4}},
		{"radius", `cx="10" cy="20" r="3"`, Box{X: 7, Y: 17, W: 6, H: 6}},
		{"radii", `cx="10" cy="20" rx="4" ry="2"`, Box{X: 6, Y: 18, W: 8, H: 4}},
		{"radius with rx", `cx="10" cy="10" r="3" rx="5"`, Box{X: 5, Y: 7, W: 10, H: 6}},
		{"center wins", `x="100" y="100" width="1" height="1" cy="5" r="2"`, Box{X: -2, Y: 3, W: 4, H: 4}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			inst := realizeDoc(t, `<doc><p><drawing width="50" height="50"><arc `+tc.attrs+` arc-angle="90"/></drawing></p></doc>`, nil)
			d := findInst[*DrawingInst](t, inst.Root)
			require.Len(t, d.Primitives, 1)
			arc := d.Primitives[0].(*ArcInst)
			assert.Equal(t, tc.want, arc.Bounds)
			assert.Equal(t, 90.0, arc.ArcAngle)
		})
	}
}

func TestDrawing_ColorInherited(t *testing.T) {
	col := mustParse(t, `<doc><p color="blue"><drawing width="10" height="10"><line x="0" y="0" width="1" height="1"/></drawing></p></doc>`, nil)
	inst, err := Realize(col, NewEvalContext())
	require.NoError(t, err)
	line := findInst[*DrawingInst](t, inst.Root).Primitives[0].(*LineInst)
	assert.Equal(t, "blue", line.Stroke.ColorName)
}

func TestGraphXY_FormulaPlot(t *testing.T) {
	col := mustParse(t, `<doc><p><graphxy width="120" height="120" minx="-2" maxx="2" miny="-1" maxy="4">`+
		`<formula color="red"><expr>x * x</expr></formula>`+
		`</graphxy></p></doc>`, NewEvalContext())
	inst, err := Realize(col, NewEvalContext())
	require.NoError(t, err)

	g := findInst[*GraphXYInst](t, inst.Root)
	assert.Equal(t, Box{X: -2, Y: -1, W: 4, H: 5}, g.Window)
	require.Len(t, g.Primitives, 1)
	plot := g.Primitives[0].(*FormulaPlotInst)
	require.Len(t, plot.Segments, 1)
	seg := plot.Segments[0]
	require.Len(t, seg.Xs, plotSamples+1)
	assert.Equal(t, -2.0, seg.Xs[0])
	assert.Equal(t, 4.0, seg.Ys[0])
	assert.InDelta(t, 2.0, seg.Xs[plotSamples], 1e-9)
	assert.Equal(t, "red", plot.Stroke.ColorName)
}

func TestGraphXY_PlotBreaksOnInvalidPoints(t *testing.T) {
	col := mustParse(t, `<doc><p><graphxy width="100" height="100">`+
		`<formula><expr>math.sqrt(x)</expr></formula>`+
		`</graphxy></p></doc>`, nil)
	inst, err := Realize(col, NewEvalContext())
	require.NoError(t, err)

	plot := findInst[*GraphXYInst](t, inst.Root).Primitives[0].(*FormulaPlotInst)
	require.Len(t, plot.Segments, 1)
	for _, x := range plot.Segments[0].Xs {
		assert.GreaterOrEqual(t, x, -1e-9)
	}
}

func TestGraphXY_DomainVariableIsLocal(t *testing.T) {
	ctx := NewEvalContext(&Variable{Name: "k", Value: 2.0})
	col := mustParse(t, `<doc><p><graphxy width="100" height="100">`+
		`<formula domain-var="t" minx="0" maxx="1"><expr>k * t</expr></formula>`+
		`</graphxy></p></doc>`, ctx)
	assert.Nil(t, ctx.GetVariable("t"))
	assert.Equal(t, []string{"k"}, col.ParameterNames())

	inst, err := Realize(col, ctx)
	require.NoError(t, err)
	seg := findInst[*GraphXYInst](t, inst.Root).Primitives[0].(*FormulaPlotInst).Segments[0]
	assert.Equal(t, 0.0, seg.Xs[0])
	assert.InDelta(t, 2.0, seg.Ys[plotSamples], 1e-9)
}

func TestGraphXY_Matrix(t *testing.T) {
	g := NewGraphXY(100, 100)
	m := g.Matrix()

	x, y := m.Transform(0, 0)
	assert.InDelta(t, 50, x, 1e-9)
	assert.InDelta(t, 50, y, 1e-9)
	x, y = m.Transform(-5, -5)
	assert.InDelta(t, 1, x, 1e-9)
	assert.InDelta(t, 99, y, 1e-9)

	inv, ok := m.Invert()
	require.True(t, ok)
	x, y = inv.Transform(m.Transform(3, -1))
	assert.InDelta(t, 3, x, 1e-9)
	assert.InDelta(t, -1, y, 1e-9)

	_, ok = Matrix{}.Invert()
	assert.False(t, ok)
	assert.InDelta(t, 9.8, m.XScale(), 1e-9)
	assert.InDelta(t, 9.8, m.YScale(), 1e-9)
}

func TestTicks(t *testing.T) {
	ticks := Ticks(-5, 5, 2, false)
	var labels []string
	for _, tk := range ticks {
		labels = append(labels, tk.Label)
	}
	assert.Equal(t, []string{"−4", "−2", "0", "2", "4"}, labels)

	ticks = Ticks(-5, 5, 2, true)
	assert.Len(t, ticks, 4)

	// 窗口边界不出刻度
	ticks = Ticks(0, 3, 1, false)
	assert.Equal(t, []Tick{{Value: 1, Label: "1"}, {Value: 2, Label: "2"}}, ticks)

	assert.Nil(t, Ticks(0, 10, 0, false))
	assert.Nil(t, Ticks(5, 1, 1, false))
	assert.Nil(t, Ticks(0, 1, math.Inf(1), false))
}

func TestTickLabel(t *testing.T) {
	assert.Equal(t, "0.3", TickLabel(0.1*3, 0.1))
	assert.Equal(t, "−2", TickLabel(-2, 1))
	assert.Equal(t, "0", TickLabel(-0.0001, 0.5))
	assert.Equal(t, "0.125", TickLabel(0.125, 0.125))
}

func TestAutoTickInterval(t *testing.T) {
	assert.Equal(t, 0.5, autoTickInterval(0.5, 100))
	assert.Equal(t, 1.0, autoTickInterval(0, 10))
	assert.Equal(t, 5.0, autoTickInterval(0, 37))
	assert.InDelta(t, 0.2, autoTickInterval(0, 1.5), 1e-12)
	assert.Equal(t, 0.0, autoTickInterval(0, 0))
}

func TestProtractorLabel(t *testing.T) {
	assert.Equal(t, "90°", protractorLabel(3, UnitsDegrees))
	assert.Equal(t, "0", protractorLabel(0, UnitsRadians))
	assert.Equal(t, "π/4", protractorLabel(1, UnitsRadians))
	assert.Equal(t, "π/2", protractorLabel(2, UnitsRadians))
	assert.Equal(t, "π", protractorLabel(4, UnitsRadians))
	assert.Equal(t, "3π/2", protractorLabel(6, UnitsRadians))
}

func TestColors(t *testing.T) {
	assert.True(t, IsColorName("Red"))
	assert.True(t, IsColorName(" lightblue "))
	assert.False(t, IsColorName("octarine"))
	assert.Contains(t, ColorNames(), DefaultColorName)

	assert.Equal(t, color.NRGBA{255, 0, 0, 255}, parseColor("red", 1))
	assert.Equal(t, color.NRGBA{0, 0, 0, 128}, parseColor("octarine", 0.5))
}

func TestEntities(t *testing.T) {
	names := EntityNames()
	require.NotEmpty(t, names)
	assert.Contains(t, names, "alpha")
	assert.Equal(t, "α", lookupEntity("alpha"))
	assert.Equal(t, "", lookupEntity("nosuchentity"))
	name, ok := entityFor('α')
	assert.True(t, ok)
	assert.Equal(t, "alpha", name)
}
