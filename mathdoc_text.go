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
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/beevik/etree"
	"go.uber.org/zap"
)

// mathSubstitutions 数学模式下的整段替换
var mathSubstitutions = map[string]string{
	"-":    "–",
	"'":    "′",
	"''":   "″",
	"'''":  "‴",
	"''''": "⁗",
}

// Text 一段字面文本
type Text struct {
	NodeBase
	text string

	display string
	italic  bool
}

// NewText 创建文本节点
// 入参: s 文本内容
// 返回: *Text 文本节点
func NewText(s string) *Text {
	return &Text{text: s}
}

// Text 获取原始文本
func (t *Text) Text() string {
	return t.text
}

// Display 获取排版后实际绘制的文本
func (t *Text) Display() string {
	return t.display
}

// Italic 排版时是否按斜体绘制
func (t *Text) Italic() bool {
	return t.italic
}

// mathItalic 判断数学模式下是否使用斜体
func mathItalic(s string) bool {
	r, n := utf8.DecodeRuneInString(s)
	if n == len(s) {
		return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= 'α' && r <= 'ϵ')
	}
	return true
}

// Layout 度量文本
func (t *Text) Layout(lc *LayoutContext, mode LayoutMode) {
	t.display = t.text
	t.italic = false
	font := t.fontSpec()
	if mode != ModeText && t.text != "" {
		if sub, ok := mathSubstitutions[t.text]; ok {
			t.display = sub
		} else if mathItalic(t.text) {
			t.italic = true
		}
	}
	measured := t.display
	switch t.display {
	case "ⅇ":
		t.italic, measured = true, "e"
	case "ⅈ":
		t.italic, measured = true, "i"
	}
	if t.italic {
		font.Style |= StyleItalic
	}
	asc, desc := lc.lineMetrics(font)
	w, baseline, center := 0, 0, 0
	if t.text != "" {
		w = lc.textWidth(font, measured)
		baseline, center = asc, asc*2/3
	}
	if t.IsBoxed() {
		w += 4
	}
	t.setBox(w, asc+desc, baseline, center)
}

// Instance 生成文本实例
func (t *Text) Instance(*EvalContext) InstNode {
	return &TextInst{instBase: newInstBase(&t.NodeBase), Text: t.text}
}

// Copy 深拷贝
func (t *Text) Copy() Node {
	c := *t
	return &c
}

func (t *Text) writeXML(parent *etree.Element) {
	parent.CreateCharData(encodeText(t.text))
}

func (t *Text) accumulateParameterNames(map[string]struct{}) {}

func (t *Text) accumulateInputs(*[]*Input) {}

// encodeText 输出文本, 单个命名符号及花括号写为实体引用
func encodeText(s string) string {
	if r, n := utf8.DecodeRuneInString(s); n == len(s) && n > 0 {
		if name, ok := entityFor(r); ok {
			return "{\\" + name + "}"
		}
	}
	return braceEscaper.Replace(s)
}

var braceEscaper = strings.NewReplacer("{", "{\\lbrace}", "}", "{\\rbrace}")

// Whitespace 可折叠的空白
type Whitespace struct {
	NodeBase
}

// NewWhitespace 创建空白节点
func NewWhitespace() *Whitespace {
	return &Whitespace{}
}

// Layout 空白宽度取当前字体的空格宽度
func (w *Whitespace) Layout(lc *LayoutContext, _ LayoutMode) {
	font := w.fontSpec()
	asc, desc := lc.lineMetrics(font)
	w.setBox(lc.textWidth(font, " "), asc+desc, asc, asc*2/3)
}

// Instance 生成空白实例
func (w *Whitespace) Instance(*EvalContext) InstNode {
	return &WhitespaceInst{instBase: newInstBase(&w.NodeBase)}
}

// Copy 深拷贝
func (w *Whitespace) Copy() Node {
	c := *w
	return &c
}

func (w *Whitespace) writeXML(parent *etree.Element) {
	parent.CreateCharData(" ")
}

func (w *Whitespace) accumulateParameterNames(map[string]struct{}) {}

func (w *Whitespace) accumulateInputs(*[]*Input) {}

// ParameterReference 引用上下文变量的占位符
type ParameterReference struct {
	NodeBase
	name string

	contents Node
}

// NewParameterReference 创建参数引用
// 入参: name 变量名
// 返回: *ParameterReference 参数引用
func NewParameterReference(name string) *ParameterReference {
	return &ParameterReference{name: strings.TrimSpace(name)}
}

// Name 获取变量名
func (p *ParameterReference) Name() string {
	return p.name
}

// Contents 获取最近一次排版解析出的内容
func (p *ParameterReference) Contents() Node {
	return p.contents
}

// formatValue 将变量值格式化为文本
func formatValue(v any) (string, bool) {
	switch t := v.(type) {
	case int64:
		return strconv.FormatInt(t, 10), true
	case int:
		return strconv.Itoa(t), true
	case float64:
		return formatNumber(t), true
	case string:
		return t, true
	case bool:
		return strconv.FormatBool(t), true
	}
	return "", false
}

// resolve 在上下文中解析引用内容
func (p *ParameterReference) resolve(ctx *EvalContext) Node {
	v := ctx.GetVariable(p.name)
	if v == nil || v.Value == nil {
		ctx.Logger().Debug("parameter unresolved", zap.String("name", p.name))
		return nil
	}
	if span, ok := v.Value.(*Span); ok {
		c := span.Copy()
		adopt(p, c)
		return c
	}
	s, ok := formatValue(v.Value)
	if !ok {
		return nil
	}
	t := NewText(s)
	adopt(p, t)
	return t
}

// Layout 解析引用并排版其内容
func (p *ParameterReference) Layout(lc *LayoutContext, mode LayoutMode) {
	p.contents = p.resolve(lc.Eval)
	if p.contents == nil {
		p.setBox(0, 0, 0, 0)
		return
	}
	p.contents.Layout(lc, mode)
	b := p.contents.Base()
	p.setBox(b.Width, b.Height, b.BaseLine, b.CenterLine)
}

// Instance 解析为文本实例或片段实例
func (p *ParameterReference) Instance(ctx *EvalContext) InstNode {
	v := ctx.GetVariable(p.name)
	if v == nil || v.Value == nil {
		ctx.Logger().Debug("parameter unresolved", zap.String("name", p.name))
		return nil
	}
	if span, ok := v.Value.(*Span); ok {
		c := span.Copy()
		adopt(p, c)
		return c.Instance(ctx)
	}
	s, ok := formatValue(v.Value)
	if !ok {
		return nil
	}
	return &TextInst{instBase: newInstBase(&p.NodeBase), Text: s}
}

// Copy 深拷贝
func (p *ParameterReference) Copy() Node {
	c := *p
	c.contents = nil
	return &c
}

func (p *ParameterReference) writeXML(parent *etree.Element) {
	parent.CreateCharData("{" + p.name + "}")
}

func (p *ParameterReference) accumulateParameterNames(set map[string]struct{}) {
	set[p.name] = struct{}{}
}

func (p *ParameterReference) accumulateInputs(*[]*Input) {}
