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
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testMeasurer 不依赖字体数据的度量器
var testMeasurer = FixedMeasurer{WidthRatio: 0.5, AscentRatio: 0.8, DescentRatio: 0.2}

// mustParse 解析文档, 存在错误时终止测试
func mustParse(t *testing.T, src string, ctx *EvalContext, opts ...ParseOption) *Column {
	t.Helper()
	col, diag := ParseString(src, ctx, opts...)
	require.False(t, diag.HasErrors(), "unexpected errors: %v", diag.Err())
	require.NotNil(t, col)
	return col
}

// firstParagraph 文档的第一个段落
func firstParagraph(t *testing.T, col *Column) *Paragraph {
	t.Helper()
	require.NotEmpty(t, col.Children())
	p, ok := col.Children()[0].(*Paragraph)
	require.True(t, ok, "first child is %T", col.Children()[0])
	return p
}

func TestParse_Fraction(t *testing.T) {
	col := mustParse(t, `<doc><p><fraction><numerator>2</numerator><denominator>3</denominator></fraction></p></doc>`, nil)
	p := firstParagraph(t, col)
	require.Len(t, p.Children(), 1)
	f, ok := p.Children()[0].(*Fraction)
	require.True(t, ok)

	require.Len(t, f.Numerator().Children(), 1)
	require.Len(t, f.Denominator().Children(), 1)
	assert.Equal(t, "2", f.Numerator().Children()[0].(*Text).Text())
	assert.Equal(t, "3", f.Denominator().Children()[0].(*Text).Text())

	col.Layout(NewLayoutContext(nil, testMeasurer), ModeText)
	num, den := f.Numerator().Base(), f.Denominator().Base()
	assert.Greater(t, f.Height, num.Height)
	assert.Greater(t, f.Height, den.Height)
	assert.Greater(t, f.BaseLine, num.Y+num.BaseLine)
	barY, thickness := f.Bar()
	assert.GreaterOrEqual(t, barY, num.Y+num.Height)
	assert.GreaterOrEqual(t, den.Y, barY+thickness)
}

func TestParse_Entity(t *testing.T) {
	col := mustParse(t, `<doc><p>{\pi}</p></doc>`, nil)
	p := firstParagraph(t, col)
	require.Len(t, p.Children(), 1)
	txt, ok := p.Children()[0].(*Text)
	require.True(t, ok)
	assert.Equal(t, "π", txt.Text())
}

func TestParse_EntityNameNotTrimmed(t *testing.T) {
	// 符号名含空白时不再匹配
	for _, src := range []string{`{\pi }`, `{\ pi}`} {
		col := mustParse(t, `<doc><p>`+src+`</p></doc>`, nil)
		kids := firstParagraph(t, col).Children()
		require.Len(t, kids, 1, src)
		txt, ok := kids[0].(*Text)
		require.True(t, ok, src)
		assert.Equal(t, "", txt.Text(), src)
	}
}

func TestParse_UnknownEntityIsDropped(t *testing.T) {
	col, diag := ParseString(`<doc><p>{\nosuchentity}</p></doc>`, nil)
	require.False(t, diag.HasErrors())
	p := firstParagraph(t, col)
	require.Len(t, p.Children(), 1)
	assert.Equal(t, "", p.Children()[0].(*Text).Text())
}

func TestParse_VSpace(t *testing.T) {
	ctx := NewEvalContext(&Variable{Name: "n", Value: int64(4)})

	col := mustParse(t, `<doc><v-space height="10"/></doc>`, ctx)
	v := col.Children()[0].(*VSpace)
	require.NotNil(t, v.SpaceHeight())
	n, ok := v.SpaceHeight().Number()
	require.True(t, ok)
	assert.Equal(t, 10.0, n)

	col = mustParse(t, `<doc><v-space><height><expr>n * 2</expr></height></v-space></doc>`, ctx)
	v = col.Children()[0].(*VSpace)
	require.NotNil(t, v.SpaceHeight())
	require.True(t, v.SpaceHeight().IsFormula())
	got, err := v.SpaceHeight().Evaluate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8.0, got)

	col, diag := ParseString(`<doc><v-space height="10"><height><expr>n</expr></height></v-space></doc>`, ctx)
	assert.Nil(t, col)
	require.True(t, diag.HasErrors())
	assert.Contains(t, diag.Err().Error(), "Cannot have both height attribute and height formula.")
}

func TestParse_TableCellMargins(t *testing.T) {
	cases := []struct {
		attr string
		want Insets
	}{
		{"2,4,2,4", Insets{Top: 2, Left: 4, Bottom: 2, Right: 4}},
		{"5", Insets{Top: 5, Left: 5, Bottom: 5, Right: 5}},
	}
	for _, tc := range cases {
		t.Run(tc.attr, func(t *testing.T) {
			col := mustParse(t, `<doc><p><table cell-margins="`+tc.attr+`"><tr><td>a</td></tr></table></p></doc>`, nil)
			tbl, ok := firstParagraph(t, col).Children()[0].(*Table)
			require.True(t, ok)
			require.NotNil(t, tbl.CellInsets())
			assert.Equal(t, tc.want, *tbl.CellInsets())
		})
	}
}

func TestParse_Errors(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want string
	}{
		{"malformed", `<doc><p x=></p></doc>`, "Unable to parse XML"},
		{"loose text", `<doc>text</doc>`, "must be within <p> tags - found text"},
		{"loose element", `<doc><math>x</math></doc>`, "must be within <p> tags - found <math>"},
		{"stray close brace", `<doc><p>a } b</p></doc>`, "Unexpected '}' found, no matching '{'."},
		{"unclosed reference", `<doc><p>{a</p></doc>`, "No matching '}' found."},
		{"nested brace", `<doc><p>{a{b}}</p></doc>`, "Unexpected '{' within parameter or entity name."},
		{"fraction part missing", `<doc><p><fraction><numerator>1</numerator></fraction></p></doc>`, "must have both <numerator> and <denominator>"},
		{"duplicate part", `<doc><p><rel-offset><base>x</base><super>2</super><super>3</super></rel-offset></p></doc>`, "Multiple <super> tags"},
		{"radical base missing", `<doc><p><radical><root>3</root></radical></p></doc>`, "<radical> must have <base> child."},
		{"bad justification", `<doc><p justification="middle">x</p></doc>`, "Invalid justification"},
		{"unknown element", `<doc><p><bogus/></p></doc>`, "The bogus element is not valid within a paragraph."},
		{"unknown attribute", `<doc><p foo="1">x</p></doc>`, "Unsupported attribute 'foo' on <p>."},
		{"bad color", `<doc><p color="nocolor">x</p></doc>`, "color"},
		{"span in math", `<doc><p><math><span>x</span></math></p></doc>`, "The span element is not valid within math."},
		{"input without name", `<doc><p><input type="integer"/></p></doc>`, "<input> element missing required 'name' attribute"},
		{"input bad type", `<doc><p><input type="dial" name="x"/></p></doc>`, "Unrecognized type of input: dial"},
		{"enabled var half", `<doc><p><input type="integer" name="x" enabled-var-name="y"/></p></doc>`, "'enabled-var-name' present but 'enabled-var-value' absent"},
		{"table box width", `<doc><p><table box-width="x"><tr><td>1</td></tr></table></p></doc>`, "Box width must be integer"},
		{"table cell margins", `<doc><p><table cell-margins="1,2"><tr><td>1</td></tr></table></p></doc>`, "Invalid cell margin specification."},
		{"image without src", `<doc><p><image/></p></doc>`, "<image> element missing required 'src' attribute."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			col, diag := ParseString(tc.src, nil)
			assert.Nil(t, col)
			require.True(t, diag.HasErrors())
			assert.Contains(t, diag.Err().Error(), tc.want)
		})
	}
}

func TestParse_AttributeFormulaExclusive(t *testing.T) {
	ctx := NewEvalContext(&Variable{Name: "k", Value: int64(1)})
	cases := []struct {
		name string
		src  string
		want string
	}{
		{"v-space", `<doc><v-space height="1"><height><expr>k</expr></height></v-space></doc>`, "height"},
		{"h-space", `<doc><p><h-space width="1"><width><expr>k</expr></width></h-space></p></doc>`, "width"},
		{"h-align", `<doc><p><h-align position="1"><position><expr>k</expr></position></h-align></p></doc>`, "position"},
		{"image width", `<doc><p><image src="a.png" width="3"><width><expr>k</expr></width></image></p></doc>`, "width"},
		{"image height", `<doc><p><image src="a.png" height="3"><height><expr>k</expr></height></image></p></doc>`, "height"},
		{"drawing width", `<doc><p><drawing width="3" height="3"><width><expr>k</expr></width></drawing></p></doc>`, "width"},
		{"drawing height", `<doc><p><drawing width="3" height="3"><height><expr>k</expr></height></drawing></p></doc>`, "height"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			col, diag := ParseString(tc.src, ctx)
			assert.Nil(t, col)
			require.True(t, diag.HasErrors())
			assert.Contains(t, diag.Err().Error(), "Cannot have both "+tc.want+" attribute and "+tc.want+" formula.")
		})
	}

	col := mustParse(t, `<doc><p><h-space/><image src="a.png"/></p></doc>`, ctx)
	kids := firstParagraph(t, col).Children()
	require.Len(t, kids, 2)
	assert.Nil(t, kids[0].(*HSpace).SpaceWidth())
	w, h := kids[1].(*Image).Size()
	assert.Nil(t, w)
	assert.Nil(t, h)
}

func TestParse_DrawingSizeFormulas(t *testing.T) {
	ctx := NewEvalContext(&Variable{Name: "k", Value: int64(2)})
	cases := []struct {
		name string
		src  string
		want string
	}{
		{"multiple width", `<drawing height="3"><width><expr>k</expr></width><width><expr>k + 1</expr></width></drawing>`, "Cannot have multiple width formulas."},
		{"multiple height", `<drawing width="3"><height><expr>k</expr></height><height><expr>k</expr></height></drawing>`, "Cannot have multiple height formulas."},
		{"fractional width", `<drawing width="2.5" height="3"/>`, "Invalid 'width' attribute value (must be an integer)."},
		{"graph width formula", `<graphxy width="10" height="10"><width><expr>k</expr></width></graphxy>`, "The width tag is not valid within GraphXY."},
		{"graph height formula", `<graphxy width="10" height="10"><height><expr>k</expr></height></graphxy>`, "The height tag is not valid within GraphXY."},
		{"graph width missing", `<graphxy height="10"/>`, "<graphxy> element missing required 'width' attribute."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			col, diag := ParseString(`<doc><p>`+tc.src+`</p></doc>`, ctx)
			assert.Nil(t, col)
			require.True(t, diag.HasErrors())
			assert.Contains(t, diag.Err().Error(), tc.want)
		})
	}

	col := mustParse(t, `<doc><p><drawing height="3"><width><expr>k * 5</expr></width></drawing></p></doc>`, ctx)
	d := firstParagraph(t, col).Children()[0].(*Drawing)
	w, h := d.Size()
	require.NotNil(t, w)
	require.NotNil(t, h)
	assert.True(t, w.IsFormula())
	assert.Equal(t, "k * 5", w.String())
	assert.Equal(t, "3", h.String())
}

func TestParse_FormulaUnknownVariable(t *testing.T) {
	col, diag := ParseString(`<doc><v-space><height><expr>missing + 1</expr></height></v-space></doc>`, NewEvalContext())
	assert.Nil(t, col)
	require.True(t, diag.HasErrors())
	assert.Contains(t, diag.Err().Error(), "Invalid 'height' formula.")

	// 无上下文时不校验变量
	_, diag = ParseString(`<doc><v-space><height><expr>missing + 1</expr></height></v-space></doc>`, nil)
	assert.False(t, diag.HasErrors())
}

func TestParse_Deprecated(t *testing.T) {
	src := `<doc><v-space><height>3</height></v-space></doc>`

	_, diag := ParseString(src, nil)
	require.False(t, diag.HasErrors())
	assert.Empty(t, diag.Warnings())

	col, diag := ParseString(src, nil, WithParserMode(ParserMode{ReportDeprecated: true}))
	require.False(t, diag.HasErrors())
	require.NotNil(t, col)
	require.Len(t, diag.Warnings(), 1)
	assert.Contains(t, diag.Warnings()[0].Message, "Deprecated text-format formula")
	assert.NoError(t, diag.Err())
}

func TestParse_ParameterNames(t *testing.T) {
	ctx := NewEvalContext(
		&Variable{Name: "a", Value: int64(1)},
		&Variable{Name: "b", Value: int64(2)},
		&Variable{Name: "c", Value: int64(3)},
	)
	col := mustParse(t, `<doc><p>{b} <math>{a}</math></p><v-space><height><expr>c * 2</expr></height></v-space></doc>`, ctx)
	assert.Equal(t, []string{"a", "b", "c"}, col.ParameterNames())
}

func TestParse_TextSplitsWhitespace(t *testing.T) {
	col := mustParse(t, "<doc><p>  one   two </p></doc>", nil)
	var kinds []string
	for _, c := range firstParagraph(t, col).Children() {
		switch n := c.(type) {
		case *Text:
			kinds = append(kinds, n.Text())
		case *Whitespace:
			kinds = append(kinds, "_")
		}
	}
	assert.Equal(t, []string{"_", "one", "_", "two", "_"}, kinds)
}

func TestParse_AutoScale(t *testing.T) {
	col := mustParse(t, `<doc fontsize="24"><p><rel-offset><base>x</base><super>2</super></rel-offset></p></doc>`, nil)
	r := firstParagraph(t, col).Children()[0].(*RelativeOffset)
	col.Layout(NewLayoutContext(nil, testMeasurer), ModeText)
	assert.Less(t, r.Superscript().FontSize(), r.BaseContent().FontSize())
}

func TestXML_RoundTrip(t *testing.T) {
	ctx := NewEvalContext(
		&Variable{Name: "a", Value: int64(3)},
		&Variable{Name: "ans", Input: true},
	)
	src := `<doc fontsize="20">` +
		`<p justification="center">Let {a} be <math>x<rel-offset><base>y</base><super>2</super></rel-offset></math>.</p>` +
		`<v-space height="12"/>` +
		`<p><fraction><numerator>1</numerator><denominator>{a}</denominator></fraction>` +
		`<radical><base>2</base><root>3</root></radical>` +
		`<fence type="brackets">a, b</fence>` +
		`<h-space><width><expr>a * 2</expr></width></h-space>` +
		`<table cell-margins="1,2,3,4"><tr><td lines="left,top">1</td><td>2</td></tr></table>` +
		`<input type="integer" name="ans" width="4"/>` +
		`<input type="checkbox" name="ok" value="1" selected="true"/>` +
		`{\pi} {\lbrace}</p>` +
		`</doc>`
	first := mustParse(t, src, ctx)
	out := ToXML(first)
	second := mustParse(t, out, ctx)
	if diff := cmp.Diff(out, ToXML(second)); diff != "" {
		t.Errorf("round trip mismatch (-first +second):\n%s", diff)
	}
	assert.Equal(t, first.ParameterNames(), second.ParameterNames())
	assert.True(t, strings.HasPrefix(out, "<doc"))
}

func TestParseSpan(t *testing.T) {
	span, diag := ParseSpan(`<span>x + <math>y</math></span>`, nil)
	require.False(t, diag.HasErrors())
	require.NotNil(t, span)
	assert.Equal(t, "x + y", span.PlainText())

	_, diag = ParseSpan(`<p>x</p>`, nil)
	require.True(t, diag.HasErrors())
	assert.Contains(t, diag.Err().Error(), "Span value must be a <span> element.")
}
