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
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// showcaseDoc 覆盖全部可绘制节点的文档
const showcaseDoc = `<doc fontsize="20">` +
	`<p justification="center">Solve <math>x<rel-offset><base>y</base><super>2</super></rel-offset></math> = ` +
	`<fraction><numerator>1</numerator><denominator>{n}</denominator></fraction> ` +
	`<radical><base>x</base><root>3</root></radical> <fence type="braces">a, b</fence> ` +
	`<span fontstyle="bold,underline" color="red">bold</span> <input type="integer" name="ans" width="3"/> ` +
	`<input type="checkbox" name="ok" value="1"/></p>` +
	`<v-space height="6"/>` +
	`<p><table h-line-width="1" v-line-width="1" box-width="1"><tr><td>1</td><td>2</td></tr><tr><td>3</td><td>4</td></tr></table> ` +
	`<drawing width="120" height="80" bgcolor="lightyellow">` +
	`<rectangle x="5" y="5" width="40" height="20" fill-style="solid" fill-color="lightblue"/>` +
	`<arc cx="60" cy="40" r="20" start-angle="0" arc-angle="90" rays-shown="both" label="θ"/>` +
	`<protractor cx="60" cy="70" r="30"/>` +
	`<polyline x-list="0,10,20" y-list="0,10,0" stroke-dash="2,2"/>` +
	`<text x="100" y="10" value="n = {n}" anchor="c"/>` +
	`<span x="10" y="70"><content><math>z</math></content></span>` +
	`</drawing> ` +
	`<graphxy width="100" height="100" xtickinterval="1" ytickinterval="1">` +
	`<formula><expr>x * x / 2</expr></formula><line x="-4" y="-4" width="8" height="8"/>` +
	`</graphxy> <image src="pic.png" width="8" height="8"/></p>` +
	`</doc>`

// assetFS 含一张小图片的资源文件系统
func assetFS(t *testing.T) fstest.MapFS {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.NRGBA{255, 0, 0, 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return fstest.MapFS{"pic.png": {Data: buf.Bytes()}}
}

func showcase(t *testing.T) (*Column, *EvalContext) {
	t.Helper()
	ctx := NewEvalContext(&Variable{Name: "n", Value: int64(4)}, &Variable{Name: "ans", Input: true}, &Variable{Name: "ok", Input: true})
	return mustParse(t, showcaseDoc, ctx), ctx
}

func TestRenderer_Formats(t *testing.T) {
	col, ctx := showcase(t)
	r := NewRenderer(WithAssetFS(assetFS(t)))

	var svg bytes.Buffer
	require.NoError(t, r.RenderToSVG(col, ctx, &svg))
	assert.Contains(t, svg.String(), "<svg")

	var pdf bytes.Buffer
	require.NoError(t, r.RenderToPDF(col, ctx, &pdf))
	assert.True(t, bytes.HasPrefix(pdf.Bytes(), []byte("%PDF")))

	var eps bytes.Buffer
	require.NoError(t, r.RenderToEPS(col, ctx, &eps))
	assert.True(t, strings.HasPrefix(eps.String(), "%!PS"))

	var out bytes.Buffer
	require.NoError(t, r.RenderTo(col, ctx, FormatPNG, &out))
	_, err := png.Decode(&out)
	require.NoError(t, err)

	assert.Error(t, r.RenderTo(col, ctx, Format("docx"), &out))
}

func TestRenderer_ImageSize(t *testing.T) {
	col := mustParse(t, `<doc><p>Hello</p></doc>`, nil)
	r := NewRenderer()
	img, err := r.RenderToImage(col, NewEvalContext())
	require.NoError(t, err)
	b := img.Bounds()
	assert.InDelta(t, col.Width+2*DefaultMargin, b.Dx(), 1)
	assert.InDelta(t, col.Height+2*DefaultMargin, b.Dy(), 1)

	r = NewRenderer(WithDPI(192), WithMargin(0))
	img, err = r.RenderToImage(col, NewEvalContext())
	require.NoError(t, err)
	assert.InDelta(t, 2*col.Width, img.Bounds().Dx(), 2)
}

func TestRenderer_Width(t *testing.T) {
	col := mustParse(t, `<doc><p>one two three four five six seven</p></doc>`, nil)
	r := NewRenderer(WithWidth(120))
	_, err := r.Render(col, NewEvalContext())
	require.NoError(t, err)
	assert.Equal(t, 120, col.ColumnWidth())
	assert.LessOrEqual(t, col.Width, 120)

	_, err = r.Render(nil, NewEvalContext())
	assert.Error(t, err)
}

func TestRenderer_MultiPagePDF(t *testing.T) {
	col, ctx := showcase(t)
	insts, err := RealizeMany(t.Context(), col, []*EvalContext{ctx, ctx.Copy()}, 2)
	require.NoError(t, err)

	var buf bytes.Buffer
	r := NewRenderer(WithAssetFS(assetFS(t)))
	require.NoError(t, r.RenderToMultiPagePDF(insts, &buf))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))

	assert.EqualError(t, r.RenderToMultiPagePDF(nil, &buf), "no pages found")
}

func TestRenderer_MissingImageLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	col := mustParse(t, `<doc><p><image src="missing.png" width="10" height="10" alt="gone"/></p></doc>`, nil)
	r := NewRenderer(WithLogger(zap.New(core)), WithAssetFS(fstest.MapFS{}))
	_, err := r.Render(col, NewEvalContext())
	require.NoError(t, err)
	found := logs.FilterMessage("image unavailable").All()
	require.Len(t, found, 1)
	assert.Equal(t, "missing.png", found[0].ContextMap()["src"])
}

func TestRenderer_ReadAsset(t *testing.T) {
	r := NewRenderer(WithAssetFS(fstest.MapFS{"img/a.txt": {Data: []byte("A")}}))

	data, err := r.readAsset("data:text/plain,hello%20there")
	require.NoError(t, err)
	assert.Equal(t, "hello there", string(data))

	data, err = r.readAsset("data:text/plain;base64,aGk=")
	require.NoError(t, err)
	assert.Equal(t, "hi", string(data))

	_, err = r.readAsset("data:nocomma")
	assert.Error(t, err)

	data, err = r.readAsset("img/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "A", string(data))

	data, err = r.readAsset("../img/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "A", string(data))

	_, err = r.readAsset("https://example.com/a.png")
	assert.ErrorContains(t, err, "unsupported image scheme")
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"png", FormatPNG, false},
		{"SVG", FormatSVG, false},
		{"out/page.pdf", FormatPDF, false},
		{"x.eps", FormatEPS, false},
		{"docx", "", true},
		{"a.tar.gz", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
font_name: Go Mono
font_size: 18
width: 300
max_steps: 500
report_deprecated: true
variables:
  a: 3
  x: 2.5
  flag: true
  label: hi
  s: "<span>two <math>x</math></span>"
inputs: [ans, a]
`))
	require.NoError(t, err)
	assert.Equal(t, DefaultDPI, cfg.DPI)
	assert.Equal(t, DefaultMargin, cfg.Margin)
	assert.Equal(t, 300, cfg.Width)
	assert.True(t, cfg.ParserMode().ReportDeprecated)

	ctx, err := cfg.EvalContext(nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), ctx.MaxSteps)
	assert.Equal(t, int64(3), ctx.GetVariable("a").Value)
	assert.Equal(t, 2.5, ctx.GetVariable("x").Value)
	assert.Equal(t, true, ctx.GetVariable("flag").Value)
	assert.Equal(t, "hi", ctx.GetVariable("label").Value)
	assert.IsType(t, &Span{}, ctx.GetVariable("s").Value)
	assert.Equal(t, []string{"a", "ans"}, ctx.InputVariableNames())
	assert.Nil(t, ctx.GetVariable("ans").Value)

	col := mustParse(t, `<doc><p>x</p></doc>`, nil)
	cfg.Apply(col)
	assert.Equal(t, "Go Mono", col.FontName())
	assert.Equal(t, 18.0, col.FontSize())

	col = mustParse(t, `<doc fontsize="30"><p>x</p></doc>`, nil)
	cfg.Apply(col)
	assert.Equal(t, 30.0, col.FontSize())

	assert.Len(t, cfg.RendererOptions(zap.NewNop()), 4)
}

func TestConfig_Errors(t *testing.T) {
	_, err := ParseConfig([]byte("width: [1"))
	assert.ErrorContains(t, err, "parse config")

	cfg, err := ParseConfig([]byte("variables:\n  v: [1, 2]\n"))
	require.NoError(t, err)
	_, err = cfg.EvalContext(nil)
	assert.ErrorContains(t, err, "unsupported value type")

	cfg, err = ParseConfig([]byte("variables:\n  s: \"<span><bogus/></span>\"\n"))
	require.NoError(t, err)
	_, err = cfg.EvalContext(nil)
	assert.ErrorContains(t, err, "variable s")

	_, err = LoadConfig("does-not-exist.yaml")
	assert.ErrorContains(t, err, "read config")
}
