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
	"strconv"
	"strings"
)

// FontStyle 字体样式位掩码
type FontStyle int

const (
	StylePlain         FontStyle = 0x00
	StyleBold          FontStyle = 0x01
	StyleItalic        FontStyle = 0x02
	StyleUnderline     FontStyle = 0x04
	StyleOverline      FontStyle = 0x08
	StyleStrikethrough FontStyle = 0x10
	StyleBoxed         FontStyle = 0x20
	StyleHidden        FontStyle = 0x40
)

var fontStyleNames = []struct {
	bit  FontStyle
	name string
}{
	{StyleBold, "bold"},
	{StyleItalic, "italic"},
	{StyleUnderline, "underline"},
	{StyleOverline, "overline"},
	{StyleStrikethrough, "strikethrough"},
	{StyleBoxed, "boxed"},
}

// ParseFontStyle 解析逗号分隔的字体样式列表
// 入参: s 样式字符串, 如 "bold,italic"
// 返回: FontStyle 样式位掩码, error 错误信息
func ParseFontStyle(s string) (FontStyle, error) {
	if strings.EqualFold(strings.TrimSpace(s), "plain") {
		return StylePlain, nil
	}
	var st FontStyle
	for _, part := range strings.Split(s, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		found := false
		for _, e := range fontStyleNames {
			if e.name == name {
				st |= e.bit
				found = true
				break
			}
		}
		if !found {
			return StylePlain, fmt.Errorf("invalid font style: %s", s)
		}
	}
	return st, nil
}

// String 输出规范的样式列表
// 返回: string 样式字符串
func (s FontStyle) String() string {
	var parts []string
	for _, e := range fontStyleNames {
		if s&e.bit != 0 {
			parts = append(parts, e.name)
		}
	}
	if len(parts) == 0 {
		return "plain"
	}
	return strings.Join(parts, ",")
}

// Style 实例节点的不可变样式记录
type Style struct {
	ColorName string
	FontName  string
	FontSize  float64
	FontStyle FontStyle
}

// Insets 四边留白
type Insets struct {
	Top, Left, Bottom, Right int
}

// NumberOrFormula 常量或公式二选一的数值
type NumberOrFormula struct {
	number  float64
	formula *Formula
}

// NewNumber 创建常量数值
// 入参: v 常量
// 返回: NumberOrFormula 数值
func NewNumber(v float64) NumberOrFormula {
	return NumberOrFormula{number: v}
}

// NewFormulaValue 创建公式数值
// 入参: f 公式
// 返回: NumberOrFormula 数值
func NewFormulaValue(f *Formula) NumberOrFormula {
	return NumberOrFormula{formula: f}
}

// IsFormula 是否为公式
func (n NumberOrFormula) IsFormula() bool {
	return n.formula != nil
}

// Number 获取常量
// 返回: float64 常量, bool 是否为常量
func (n NumberOrFormula) Number() (float64, bool) {
	return n.number, n.formula == nil
}

// Formula 获取公式, 常量时返回nil
func (n NumberOrFormula) Formula() *Formula {
	return n.formula
}

// Evaluate 求值
// 入参: ctx 求值上下文
// 返回: float64 数值, error 错误信息
func (n NumberOrFormula) Evaluate(ctx *EvalContext) (float64, error) {
	if n.formula == nil {
		return n.number, nil
	}
	v, err := n.formula.Evaluate(ctx)
	if err != nil {
		return 0, err
	}
	f, ok := toFloat(v)
	if !ok {
		return 0, fmt.Errorf("formula %q did not evaluate to a number", n.formula.Source())
	}
	return f, nil
}

// String 常量输出规范文本, 公式输出源码
func (n NumberOrFormula) String() string {
	if n.formula != nil {
		return n.formula.Source()
	}
	return formatNumber(n.number)
}

// formatNumber 规范化数字文本
// 入参: v 数值
// 返回: string 文本
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// toFloat 将求值结果转为浮点数
// 入参: v 求值结果
// 返回: float64 数值, bool 是否成功
func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int64:
		return float64(t), true
	case int:
		return float64(t), true
	}
	return 0, false
}

// enumVocab 大小写不敏感的枚举词表
type enumVocab[T ~int] []struct {
	name string
	val  T
}

func (v enumVocab[T]) parse(s string) (T, bool) {
	s = strings.TrimSpace(s)
	for _, e := range v {
		if strings.EqualFold(e.name, s) {
			return e.val, true
		}
	}
	var zero T
	return zero, false
}

func (v enumVocab[T]) name(t T) string {
	for _, e := range v {
		if e.val == t {
			return e.name
		}
	}
	return ""
}

// LayoutMode 排版模式
type LayoutMode int

const (
	ModeText LayoutMode = iota
	ModeInlineMath
	ModeDisplayMath
)

// VAlign 垂直对齐方式
type VAlign int

const (
	AlignBaseline VAlign = iota
	AlignCenter
	AlignTop
)

var valignVocab = enumVocab[VAlign]{{"baseline", AlignBaseline}, {"center", AlignCenter}, {"top", AlignTop}}

// Justification 段落对齐方式
type Justification int

const (
	JustifyLeft Justification = iota + 1
	JustifyRight
	JustifyCenter
	JustifyFull
	JustifyLeftHang
)

var justificationVocab = enumVocab[Justification]{
	{"left", JustifyLeft}, {"right", JustifyRight}, {"center", JustifyCenter},
	{"full", JustifyFull}, {"left-hang", JustifyLeftHang},
}

// Spacing 段落间距
type Spacing int

const (
	SpacingNormal Spacing = iota
	SpacingNone
	SpacingSmall
	SpacingLarge
)

var spacingVocab = enumVocab[Spacing]{
	{"none", SpacingNone}, {"small", SpacingSmall}, {"normal", SpacingNormal}, {"large", SpacingLarge},
}

// FenceType 括号类型
type FenceType int

const (
	FenceParentheses FenceType = iota + 1
	FenceBrackets
	FenceBars
	FenceBraces
	FenceLBrace
)

var fenceVocab = enumVocab[FenceType]{
	{"parentheses", FenceParentheses}, {"brackets", FenceBrackets}, {"bars", FenceBars},
	{"braces", FenceBraces}, {"lbrace", FenceLBrace},
}

// ColumnWidth 表格列宽策略
type ColumnWidth int

const (
	ColumnUniform ColumnWidth = iota + 1
	ColumnNonuniform
)

var columnWidthVocab = enumVocab[ColumnWidth]{{"uniform", ColumnUniform}, {"nonuniform", ColumnNonuniform}}

// 表格单元格边框标志
const (
	LineLeft   = 0x01
	LineRight  = 0x02
	LineTop    = 0x04
	LineBottom = 0x08
)

var cellLineVocab = enumVocab[int]{{"left", LineLeft}, {"right", LineRight}, {"top", LineTop}, {"bottom", LineBottom}}

// FillStyle 填充方式
type FillStyle int

const (
	FillNone FillStyle = iota
	FillSolid
)

var fillStyleVocab = enumVocab[FillStyle]{{"none", FillNone}, {"solid", FillSolid}}

// RaysShown 弧线射线显示方式
type RaysShown int

const (
	RaysNone RaysShown = iota
	RaysInitial
	RaysTerminal
	RaysBoth
)

var raysShownVocab = enumVocab[RaysShown]{
	{"none", RaysNone}, {"initial", RaysInitial}, {"terminal", RaysTerminal}, {"both", RaysBoth},
}

// TextAnchor 文本锚点
type TextAnchor int

const (
	AnchorSW TextAnchor = iota
	AnchorS
	AnchorSE
	AnchorW
	AnchorC
	AnchorE
	AnchorNW
	AnchorN
	AnchorNE
)

var anchorVocab = enumVocab[TextAnchor]{
	{"sw", AnchorSW}, {"s", AnchorS}, {"se", AnchorSE},
	{"w", AnchorW}, {"c", AnchorC}, {"e", AnchorE},
	{"nw", AnchorNW}, {"n", AnchorN}, {"ne", AnchorNE},
}

// AngleUnits 量角器刻度单位
type AngleUnits int

const (
	UnitsDegrees AngleUnits = iota
	UnitsRadians
)

var angleUnitsVocab = enumVocab[AngleUnits]{{"degrees", UnitsDegrees}, {"radians", UnitsRadians}}

// InputType 输入控件类型
type InputType int

const (
	InputInteger InputType = iota + 1
	InputReal
	InputString
	InputRadioButton
	InputCheckbox
)

var inputTypeVocab = enumVocab[InputType]{
	{"integer", InputInteger}, {"real", InputReal}, {"string", InputString},
	{"radio-button", InputRadioButton}, {"checkbox", InputCheckbox},
}

// String 输入类型名称
func (t InputType) String() string {
	return inputTypeVocab.name(t)
}
