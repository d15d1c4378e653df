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
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/runenames"
)

// latexSymbols 数学模式下需要写成命令的符号
var latexSymbols = map[rune]string{
	'×': `\times`, '÷': `\div`, '±': `\pm`, '∓': `\mp`, '·': `\cdot`, '−': `-`, '–': `-`,
	'≤': `\le`, '≥': `\ge`, '≠': `\ne`, '≈': `\approx`, '≡': `\equiv`, '∼': `\sim`,
	'∝': `\propto`, '∞': `\infty`, '∈': `\in`, '∉': `\notin`, '⊂': `\subset`, '⊆': `\subseteq`,
	'∪': `\cup`, '∩': `\cap`, '∅': `\emptyset`, '∀': `\forall`, '∃': `\exists`, '¬': `\neg`,
	'∧': `\wedge`, '∨': `\vee`, '→': `\to`, '←': `\leftarrow`, '↔': `\leftrightarrow`,
	'⇒': `\Rightarrow`, '⇔': `\Leftrightarrow`, '∠': `\angle`, '°': `^\circ`, '⊥': `\perp`,
	'∥': `\parallel`, '△': `\triangle`, '∑': `\sum`, '∏': `\prod`, '∫': `\int`, '√': `\surd`,
	'∂': `\partial`, '∇': `\nabla`, '′': `'`, '″': `''`, '…': `\ldots`, '⋯': `\cdots`,
	'α': `\alpha`, 'β': `\beta`, 'γ': `\gamma`, 'δ': `\delta`, 'ε': `\epsilon`, 'ζ': `\zeta`,
	'η': `\eta`, 'θ': `\theta`, 'ι': `\iota`, 'κ': `\kappa`, 'λ': `\lambda`, 'μ': `\mu`,
	'ν': `\nu`, 'ξ': `\xi`, 'π': `\pi`, 'ρ': `\rho`, 'σ': `\sigma`, 'τ': `\tau`, 'υ': `\upsilon`,
	'φ': `\phi`, 'χ': `\chi`, 'ψ': `\psi`, 'ω': `\omega`, 'Γ': `\Gamma`, 'Δ': `\Delta`,
	'Θ': `\Theta`, 'Λ': `\Lambda`, 'Ξ': `\Xi`, 'Π': `\Pi`, 'Σ': `\Sigma`, 'Φ': `\Phi`,
	'Ψ': `\Psi`, 'Ω': `\Omega`, 'ⅇ': `e`, 'ⅈ': `i`,
}

// latexEscaper 文本模式下的特殊字符
var latexEscaper = strings.NewReplacer(
	`\`, `\textbackslash{}`, `{`, `\{`, `}`, `\}`, `$`, `\$`, `&`, `\&`, `#`, `\#`,
	`^`, `\textasciicircum{}`, `_`, `\_`, `%`, `\%`, `~`, `\textasciitilde{}`,
)

// latexFences 括号类型对应的定界符
var latexFences = map[FenceType][2]string{
	FenceParentheses: {`(`, `)`},
	FenceBrackets:    {`[`, `]`},
	FenceBars:        {`|`, `|`},
	FenceBraces:      {`\{`, `\}`},
	FenceLBrace:      {`\{`, `.`},
}

// latexWriter 输出LaTeX, 记录当前是否处于数学模式
type latexWriter struct {
	sb   strings.Builder
	math bool
}

// ToLaTeX 将实例树输出为LaTeX片段
// 入参: n 实例节点
// 返回: string LaTeX文本
func ToLaTeX(n InstNode) string {
	w := &latexWriter{}
	w.node(n)
	return strings.TrimSpace(w.sb.String())
}

func (w *latexWriter) children(kids []InstNode) {
	for _, k := range kids {
		w.node(k)
	}
}

// inMath 在数学模式中输出, 必要时加 $ 定界
func (w *latexWriter) inMath(fn func()) {
	if w.math {
		fn()
		return
	}
	w.math = true
	w.sb.WriteByte('$')
	fn()
	w.sb.WriteByte('$')
	w.math = false
}

// group 输出花括号分组
func (w *latexWriter) group(n *NonwrapInst) {
	w.sb.WriteByte('{')
	if n != nil {
		w.children(n.children)
	}
	w.sb.WriteByte('}')
}

func (w *latexWriter) text(s string) {
	if !w.math {
		w.sb.WriteString(latexEscaper.Replace(s))
		return
	}
	for _, r := range s {
		if cmd, ok := latexSymbols[r]; ok {
			w.sb.WriteString(cmd)
			if strings.HasPrefix(cmd, `\`) {
				w.sb.WriteByte(' ')
			}
			continue
		}
		switch r {
		case '{', '}', '$', '&', '#', '%', '_':
			w.sb.WriteByte('\\')
			w.sb.WriteRune(r)
		default:
			w.sb.WriteRune(r)
		}
	}
}

func (w *latexWriter) node(n InstNode) {
	switch t := n.(type) {
	case nil:
	case *ColumnInst:
		for i, c := range t.children {
			if i > 0 {
				w.sb.WriteString("\n\n")
			}
			w.node(c)
		}
	case *ParagraphInst:
		w.children(t.children)
	case *SpanInst:
		w.children(t.children)
	case *NonwrapInst:
		w.children(t.children)
	case *MathInst:
		w.inMath(func() { w.children(t.children) })
	case *TextInst:
		w.text(t.Text)
	case *WhitespaceInst:
		w.sb.WriteByte(' ')
	case *FenceInst:
		d := latexFences[t.Type]
		w.inMath(func() {
			w.sb.WriteString(`\left` + d[0])
			w.children(t.children)
			w.sb.WriteString(`\right` + d[1])
		})
	case *FractionInst:
		w.inMath(func() {
			w.sb.WriteString(`\frac`)
			w.group(t.Numerator)
			w.group(t.Denominator)
		})
	case *RadicalInst:
		w.inMath(func() {
			w.sb.WriteString(`\sqrt`)
			if t.Root != nil {
				w.sb.WriteByte('[')
				w.children(t.Root.children)
				w.sb.WriteByte(']')
			}
			w.group(t.Radicand)
		})
	case *RelativeOffsetInst:
		w.inMath(func() { w.relOffset(t) })
	case *TableInst:
		w.table(t)
	case *VSpaceInst:
		if t.Height != nil {
			fmt.Fprintf(&w.sb, "\n\\vspace{%spt}\n", formatNumber(*t.Height))
		}
	case *HSpaceInst:
		if t.Width != nil {
			fmt.Fprintf(&w.sb, `\hspace{%spt}`, formatNumber(*t.Width))
		}
	case *HAlignInst:
		w.sb.WriteString(`\quad `)
	case *InputInst:
		w.input(t)
	case *ImageInst:
		fmt.Fprintf(&w.sb, `\includegraphics{%s}`, t.Source)
	case *DrawingInst:
		w.placeholder(t.Alt, "drawing")
	case *GraphXYInst:
		w.placeholder(t.Alt, "graph")
	}
}

func (w *latexWriter) relOffset(t *RelativeOffsetInst) {
	body := func() {
		w.group(t.BaseNode)
		if t.Super != nil {
			w.sb.WriteByte('^')
			w.group(t.Super)
		}
		if t.Sub != nil {
			w.sb.WriteByte('_')
			w.group(t.Sub)
		}
	}
	wrap := func(cmd string, part *NonwrapInst, inner func()) func() {
		return func() {
			w.sb.WriteString(cmd)
			w.group(part)
			w.sb.WriteByte('{')
			inner()
			w.sb.WriteByte('}')
		}
	}
	if t.Over != nil {
		body = wrap(`\overset`, t.Over, body)
	}
	if t.Under != nil {
		body = wrap(`\underset`, t.Under, body)
	}
	body()
}

func (w *latexWriter) table(t *TableInst) {
	cols := 0
	for _, row := range t.Rows {
		cols = max(cols, len(row))
	}
	align := "c"
	switch t.Justification {
	case JustifyLeft:
		align = "l"
	case JustifyRight:
		align = "r"
	}
	sep := ""
	if t.VLineWidth > 0 {
		sep = "|"
	}
	spec := strings.Repeat(align+sep, cols)
	spec = strings.TrimSuffix(spec, sep)
	if t.BoxWidth > 0 {
		spec = "|" + spec + "|"
	}
	math := w.math
	w.math = false
	fmt.Fprintf(&w.sb, "\\begin{tabular}{%s}\n", spec)
	if t.BoxWidth > 0 {
		w.sb.WriteString("\\hline\n")
	}
	for i, row := range t.Rows {
		for j, cell := range row {
			if j > 0 {
				w.sb.WriteString(" & ")
			}
			w.children(cell.children)
		}
		w.sb.WriteString(` \\`)
		if (t.HLineWidth > 0 && i+1 < len(t.Rows)) || (t.BoxWidth > 0 && i+1 == len(t.Rows)) {
			w.sb.WriteString(` \hline`)
		}
		w.sb.WriteByte('\n')
	}
	w.sb.WriteString(`\end{tabular}`)
	w.math = math
}

func (w *latexWriter) input(in *InputInst) {
	switch in.Type {
	case InputRadioButton:
		w.inMath(func() { w.sb.WriteString(`\bigcirc `) })
	case InputCheckbox:
		w.inMath(func() { w.sb.WriteString(`\square `) })
	default:
		width := max(in.Width, 1)
		if in.FieldStyle == FieldUnderline {
			fmt.Fprintf(&w.sb, `\underline{\hspace{%dem}}`, width)
		} else {
			fmt.Fprintf(&w.sb, `\fbox{\hspace{%dem}}`, width)
		}
	}
}

func (w *latexWriter) placeholder(alt, kind string) {
	if alt == "" {
		alt = kind
	}
	math := w.math
	w.math = false
	w.sb.WriteString(`\fbox{`)
	w.text(alt)
	w.sb.WriteByte('}')
	w.math = math
}

// AltText 实例树的朗读文本, 符号按Unicode名称拼写
// 入参: n 实例节点
// 返回: string 文本
func AltText(n InstNode) string {
	var sb strings.Builder
	altText(&sb, n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

// altWords 符号的朗读名称, 未列出的符号取Unicode名称
var altWords = map[rune]string{
	'+': "plus", '-': "minus", '−': "minus", '–': "minus", '=': "equals", '×': "times",
	'÷': "divided by", '<': "less than", '>': "greater than", '≤': "less than or equal to",
	'≥': "greater than or equal to", '≠': "not equal to", '·': "times", '/': "slash",
	'(': "open paren", ')': "close paren", '°': "degrees", 'ⅇ': "e", 'ⅈ': "i",
}

func altRune(sb *strings.Builder, r rune) {
	if w, ok := altWords[r]; ok {
		sb.WriteString(" " + w + " ")
		return
	}
	if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || unicode.IsPunct(r)) {
		sb.WriteRune(r)
		return
	}
	if unicode.IsLetter(r) && !unicode.Is(unicode.Greek, r) {
		sb.WriteRune(r)
		return
	}
	name := runenames.Name(r)
	if name == "" {
		sb.WriteRune(r)
		return
	}
	sb.WriteString(" " + strings.ToLower(name) + " ")
}

func altText(sb *strings.Builder, n InstNode) {
	part := func(p *NonwrapInst) {
		if p != nil {
			altText(sb, p)
		}
	}
	switch t := n.(type) {
	case nil:
	case *TextInst:
		for _, r := range t.Text {
			altRune(sb, r)
		}
	case *WhitespaceInst:
		sb.WriteByte(' ')
	case *FractionInst:
		sb.WriteString(" fraction ")
		part(t.Numerator)
		sb.WriteString(" over ")
		part(t.Denominator)
		sb.WriteString(" end fraction ")
	case *RadicalInst:
		if t.Root != nil {
			sb.WriteString(" root of index ")
			part(t.Root)
			sb.WriteString(" of ")
		} else {
			sb.WriteString(" square root of ")
		}
		part(t.Radicand)
		sb.WriteString(" end root ")
	case *RelativeOffsetInst:
		part(t.BaseNode)
		if t.Super != nil {
			sb.WriteString(" superscript ")
			part(t.Super)
		}
		if t.Sub != nil {
			sb.WriteString(" subscript ")
			part(t.Sub)
		}
		if t.Over != nil {
			sb.WriteString(" with ")
			part(t.Over)
			sb.WriteString(" above ")
		}
		if t.Under != nil {
			sb.WriteString(" with ")
			part(t.Under)
			sb.WriteString(" below ")
		}
	case *InputInst:
		sb.WriteString(" blank ")
	case *ImageInst:
		sb.WriteString(" " + t.Alt + " ")
	case *DrawingInst:
		sb.WriteString(" " + t.Alt + " ")
	case *GraphXYInst:
		sb.WriteString(" " + t.Alt + " ")
	case *TableInst:
		for _, row := range t.Rows {
			for _, cell := range row {
				part(cell)
				sb.WriteString(", ")
			}
		}
	default:
		for _, c := range instChildren(n) {
			altText(sb, c)
		}
		if _, ok := n.(*ParagraphInst); ok {
			sb.WriteString(" ")
		}
	}
}
