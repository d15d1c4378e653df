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

// realizeDoc 解析并生成实例
func realizeDoc(t *testing.T, src string, ctx *EvalContext) *DocInst {
	t.Helper()
	if ctx == nil {
		ctx = NewEvalContext()
	}
	inst, err := Realize(mustParse(t, src, ctx), ctx)
	require.NoError(t, err)
	return inst
}

func TestToLaTeX(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"escapes text", `Cost: 5$ &amp; 10%`, `Cost: 5\$ \& 10\%`},
		{"symbols", `<math>α≤1</math>`, `$\alpha \le 1$`},
		{"superscript", `<math>x<rel-offset><base>y</base><super>2</super></rel-offset></math>`, `$x{y}^{2}$`},
		{"fraction", `<fraction><numerator>1</numerator><denominator>2</denominator></fraction>`, `$\frac{1}{2}$`},
		{"radical", `<radical><base>x</base><root>3</root></radical>`, `$\sqrt[3]{x}$`},
		{"fence", `<math><fence type="brackets">a</fence></math>`, `$\left[a\right]$`},
		{"input", `<input type="integer" name="n" width="3"/>`, `\fbox{\hspace{3em}}`},
		{"checkbox", `<input type="checkbox" name="c" value="1"/>`, `$\square $`},
		{"drawing", `<drawing width="10" height="10" alt="a_b"/>`, `\fbox{a\_b}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst := realizeDoc(t, `<doc><p>`+tt.body+`</p></doc>`, nil)
			assert.Equal(t, tt.want, ToLaTeX(inst.Root))
		})
	}
}

func TestToLaTeX_Paragraphs(t *testing.T) {
	inst := realizeDoc(t, `<doc><p>one</p><v-space height="8"/><p>two</p></doc>`, nil)
	assert.Equal(t, "one\n\n\n\\vspace{8pt}\n\n\ntwo", ToLaTeX(inst.Root))
}

func TestToLaTeX_Table(t *testing.T) {
	inst := realizeDoc(t, `<doc><p><table><tr><td>a</td><td>b</td></tr><tr><td>c</td><td>d</td></tr></table></p></doc>`, nil)
	got := ToLaTeX(inst.Root)
	assert.Contains(t, got, `\begin{tabular}`)
	assert.Contains(t, got, `a & b \\`)
	assert.Contains(t, got, `c & d \\`)
	assert.Contains(t, got, `\end{tabular}`)
}

func TestAltText(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`<fraction><numerator>1</numerator><denominator>2</denominator></fraction>`, "fraction 1 over 2 end fraction"},
		{`<math>x+α</math>`, "x plus greek small letter alpha"},
		{`<radical><base>x</base></radical>`, "square root of x end root"},
		{`<math><rel-offset><base>x</base><super>2</super></rel-offset></math>`, "x superscript 2"},
		{`Type <input type="string" name="s"/> here`, "Type blank here"},
		{`<drawing width="10" height="10" alt="a triangle"/>`, "a triangle"},
	}
	for _, tt := range tests {
		inst := realizeDoc(t, `<doc><p>`+tt.body+`</p></doc>`, nil)
		assert.Equal(t, tt.want, AltText(inst.Root), tt.body)
	}
}
