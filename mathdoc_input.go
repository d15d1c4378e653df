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
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/zap"
)

// FieldStyle 输入框外观
type FieldStyle int

const (
	FieldBox FieldStyle = iota
	FieldUnderline
)

var fieldStyleVocab = enumVocab[FieldStyle]{{"box", FieldBox}, {"underline", FieldUnderline}}

// 输入框默认宽度(字符数)
const (
	defaultNumberWidth = 5
	defaultStringWidth = 10
)

// Input 作答输入控件, 覆盖整数、实数、文本、单选与复选五种类型
// 单选与复选控件以 Choice 表示其代表的取值, 同名单选按钮构成一组
type Input struct {
	NodeBase
	inputType InputType
	name      string
	width     int
	style     FieldStyle
	minusAs   *float64
	dflt      string
	choice    int64

	text     string
	selected bool

	enabled         *Formula
	enabledVarName  string
	enabledVarValue any
}

// NewInput 创建输入控件
// 入参: t 类型, name 对应的输入变量名
func NewInput(t InputType, name string) *Input {
	return &Input{NodeBase: NodeBase{tag: "input"}, inputType: t, name: name}
}

// Type 获取类型
func (in *Input) Type() InputType { return in.inputType }

// Name 获取变量名
func (in *Input) Name() string { return in.name }

// Choice 获取单选或复选控件代表的取值
func (in *Input) Choice() int64 { return in.choice }

// SetChoice 设置单选或复选控件代表的取值
func (in *Input) SetChoice(v int64) { in.choice = v }

// Width 获取输入框宽度(字符数)
func (in *Input) Width() int {
	if in.width > 0 {
		return in.width
	}
	if in.inputType == InputString {
		return defaultStringWidth
	}
	return defaultNumberWidth
}

// SetWidth 设置输入框宽度
func (in *Input) SetWidth(w int) { in.width = w }

// SetFieldStyle 设置输入框外观
func (in *Input) SetFieldStyle(s FieldStyle) { in.style = s }

// SetTreatMinusAs 设置只输入负号时视为的数值
func (in *Input) SetTreatMinusAs(v float64) { in.minusAs = &v }

// Default 获取默认值文本
func (in *Input) Default() string { return in.dflt }

// SetDefault 设置默认值, 当前值为空时同时作为当前值
// 入参: s 默认值文本
// 返回: bool 文本是否符合类型
func (in *Input) SetDefault(s string) bool {
	if _, ok := in.parse(s); !ok {
		return false
	}
	in.dflt = s
	if in.text == "" {
		in.text = s
	}
	return true
}

// SetEnabledFormula 设置启用条件公式
func (in *Input) SetEnabledFormula(f *Formula) { in.enabled = f }

// EnabledFormula 获取启用条件公式
func (in *Input) EnabledFormula() *Formula { return in.enabled }

// SetEnabledVar 设置按变量取值启用的条件
// 入参: name 变量名, value 启用时的取值(bool 或 int64)
func (in *Input) SetEnabledVar(name string, value any) {
	in.enabledVarName, in.enabledVarValue = name, value
}

// parse 按类型解析输入文本
func (in *Input) parse(s string) (any, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, "−", "-"))
	switch in.inputType {
	case InputInteger:
		if s == "-" && in.minusAs != nil {
			return int64(*in.minusAs), true
		}
		v, err := strconv.ParseInt(s, 10, 64)
		return v, err == nil
	case InputReal:
		if s == "-" && in.minusAs != nil {
			return *in.minusAs, true
		}
		v, err := strconv.ParseFloat(s, 64)
		return v, err == nil && !math.IsNaN(v) && !math.IsInf(v, 0)
	case InputString:
		return s, true
	case InputRadioButton, InputCheckbox:
		v, err := strconv.ParseBool(s)
		return v, err == nil
	}
	return nil, false
}

// SetValue 设置作答文本, 单选与复选控件接受 true/false
// 入参: s 文本
// 返回: bool 文本是否符合类型
func (in *Input) SetValue(s string) bool {
	v, ok := in.parse(s)
	if !ok {
		return false
	}
	if b, isBool := v.(bool); isBool {
		in.selected = b
		return true
	}
	in.text = s
	return true
}

// Text 获取作答文本
func (in *Input) Text() string { return in.text }

// Selected 单选或复选控件是否被选中
func (in *Input) Selected() bool { return in.selected }

// Value 获取当前值: 整数为 int64, 实数为 float64, 文本为 string,
// 单选按钮选中时为其 Choice, 复选框为 bool; 尚未作答时为nil
func (in *Input) Value() any {
	switch in.inputType {
	case InputRadioButton:
		if in.selected {
			return in.choice
		}
		return nil
	case InputCheckbox:
		return in.selected
	}
	if in.text == "" {
		return nil
	}
	v, ok := in.parse(in.text)
	if !ok {
		return nil
	}
	return v
}

// Clear 清除作答
func (in *Input) Clear() {
	in.text = ""
	in.selected = false
}

// Store 将当前值写入上下文中的同名输入变量, 变量不存在时创建
// 入参: ctx 求值上下文
func (in *Input) Store(ctx *EvalContext) {
	v := in.Value()
	if in.inputType == InputRadioButton && v == nil {
		if cur := ctx.GetVariable(in.name); cur != nil && cur.Value == in.choice {
			cur.Value = nil
		}
		return
	}
	if cur := ctx.GetVariable(in.name); cur != nil {
		cur.Value = v
		return
	}
	ctx.AddVariable(&Variable{Name: in.name, Value: v, Input: true})
}

// IsEnabled 判断控件是否可用
// 设置了启用变量时比较变量取值, 否则求值启用公式, 两者都未设置时可用
// 入参: ctx 求值上下文
// 返回: bool 是否可用
func (in *Input) IsEnabled(ctx *EvalContext) bool {
	return inputEnabled(ctx, in.enabledVarName, in.enabledVarValue, in.enabled, nil)
}

func inputEnabled(ctx *EvalContext, varName string, varValue any, f *Formula, fixed *bool) bool {
	if varName != "" {
		v := ctx.GetVariable(varName)
		if v == nil || v.Value == nil {
			return false
		}
		switch want := varValue.(type) {
		case bool:
			got, ok := v.Value.(bool)
			return ok && got == want
		case int64:
			got, ok := toFloat(v.Value)
			return ok && got == float64(want)
		}
		return false
	}
	if fixed != nil {
		return *fixed
	}
	if f == nil {
		return true
	}
	b, err := f.EvaluateBool(ctx)
	if err != nil {
		ctx.Logger().Debug("enabled formula unavailable", zap.String("formula", f.Source()), zap.Error(err))
		return false
	}
	return b
}

// Layout 文本框宽度按数字宽度计, 单选与复选为方形
func (in *Input) Layout(lc *LayoutContext, _ LayoutMode) {
	font := in.fontSpec()
	asc, desc := lc.lineMetrics(font)
	switch in.inputType {
	case InputRadioButton, InputCheckbox:
		in.setBox(asc+2, asc+2, asc+1, asc/2+1)
	default:
		w := lc.textWidth(font, "0")*in.Width() + 4
		in.setBox(w, asc+desc+4, asc+2, asc*2/3+2)
	}
}

// Instance 仅依赖输入变量的启用公式保留, 其余启用公式被求值
func (in *Input) Instance(ctx *EvalContext) InstNode {
	inst := &InputInst{
		instBase:        newInstBase(&in.NodeBase),
		Type:            in.inputType,
		Name:            in.name,
		Width:           in.width,
		FieldStyle:      in.style,
		Default:         in.dflt,
		Choice:          in.choice,
		Text:            in.text,
		Selected:        in.selected,
		EnabledVarName:  in.enabledVarName,
		EnabledVarValue: in.enabledVarValue,
	}
	if in.minusAs != nil {
		v := *in.minusAs
		inst.TreatMinusAs = &v
	}
	// 启用变量不是输入变量时在此求值, 实例不再依赖参数
	if in.enabledVarName != "" && !ctx.IsInput(in.enabledVarName) {
		b := inputEnabled(ctx, in.enabledVarName, in.enabledVarValue, nil, nil)
		inst.EnabledVarName, inst.EnabledVarValue = "", nil
		inst.EnabledConst = &b
		return inst
	}
	if in.enabled != nil {
		if in.enabled.DependsOnlyOnInputs(ctx) {
			inst.Enabled = in.enabled
		} else {
			b, err := in.enabled.EvaluateBool(ctx)
			if err != nil {
				ctx.Logger().Debug("enabled formula unavailable", zap.String("formula", in.enabled.Source()), zap.Error(err))
				return nil
			}
			inst.EnabledConst = &b
		}
	}
	return inst
}

// Copy 深拷贝
func (in *Input) Copy() Node {
	c := *in
	return &c
}

// writeInputAttrs 输出控件属性, 默认值省略
func writeInputAttrs(e *etree.Element, t InputType, name string, width int, style FieldStyle, minusAs *float64, dflt string, choice int64, text string, selected bool, varName string, varValue any) {
	e.CreateAttr("type", t.String())
	e.CreateAttr("name", name)
	switch t {
	case InputRadioButton, InputCheckbox:
		e.CreateAttr("value", strconv.FormatInt(choice, 10))
		if selected {
			e.CreateAttr("selected", "true")
		}
	default:
		if width > 0 {
			e.CreateAttr("width", strconv.Itoa(width))
		}
		if style != FieldBox {
			e.CreateAttr("style", fieldStyleVocab.name(style))
		}
		if minusAs != nil {
			e.CreateAttr("treat-minus-as", formatNumber(*minusAs))
		}
		if dflt != "" {
			e.CreateAttr("default", dflt)
		}
		if text != "" && text != dflt {
			e.CreateAttr("text-value", text)
		}
	}
	if varName != "" {
		e.CreateAttr("enabled-var-name", varName)
		switch v := varValue.(type) {
		case bool:
			e.CreateAttr("enabled-var-value", strconv.FormatBool(v))
		case int64:
			e.CreateAttr("enabled-var-value", strconv.FormatInt(v, 10))
		}
	}
}

// writeEnabledFormula 输出启用公式子元素
func writeEnabledFormula(e *etree.Element, f *Formula) {
	if f != nil {
		e.CreateElement("enabled").CreateElement("expr").CreateCharData(f.Source())
	}
}

func (in *Input) writeXML(parent *etree.Element) {
	e := parent.CreateElement("input")
	writeInputAttrs(e, in.inputType, in.name, in.width, in.style, in.minusAs, in.dflt, in.choice, in.text, in.selected, in.enabledVarName, in.enabledVarValue)
	in.writeAttrs(e)
	writeEnabledFormula(e, in.enabled)
}

func (in *Input) accumulateParameterNames(set map[string]struct{}) {
	if in.enabled != nil {
		for _, name := range in.enabled.vars {
			set[name] = struct{}{}
		}
	}
	if in.enabledVarName != "" {
		set[in.enabledVarName] = struct{}{}
	}
}

func (in *Input) accumulateInputs(list *[]*Input) {
	*list = append(*list, in)
}

// Image 外部图片
type Image struct {
	NodeBase
	src    string
	alt    string
	width  *NumberOrFormula
	height *NumberOrFormula
}

// NewImage 创建图片
// 入参: src 图片地址
func NewImage(src string) *Image {
	return &Image{NodeBase: NodeBase{tag: "image"}, src: src}
}

// validImageURL 判断图片地址是否可解析
func validImageURL(s string) bool {
	if strings.TrimSpace(s) == "" {
		return false
	}
	_, err := url.Parse(s)
	return err == nil
}

// Source 获取图片地址
func (im *Image) Source() string { return im.src }

// Alt 获取替代文本
func (im *Image) Alt() string { return im.alt }

// SetAlt 设置替代文本
func (im *Image) SetAlt(s string) { im.alt = s }

// SetSize 设置宽高, 可为nil
func (im *Image) SetSize(w, h *NumberOrFormula) {
	im.width, im.height = w, h
}

// Size 获取宽高设置
func (im *Image) Size() (*NumberOrFormula, *NumberOrFormula) {
	return im.width, im.height
}

// Layout 尺寸取宽高求值结果, 基线位于底边
func (im *Image) Layout(lc *LayoutContext, _ LayoutMode) {
	w, _ := lc.evalInt(im.width, "width")
	h, _ := lc.evalInt(im.height, "height")
	w, h = max(w, 0), max(h, 0)
	im.setBox(w, h, h, h/2)
}

// Instance 宽高公式被替换为常量
func (im *Image) Instance(ctx *EvalContext) InstNode {
	inst := &ImageInst{instBase: newInstBase(&im.NodeBase), Source: im.src, Alt: im.alt}
	if im.width != nil {
		w, err := im.width.Evaluate(ctx)
		if err != nil {
			return nil
		}
		inst.Width = &w
	}
	if im.height != nil {
		h, err := im.height.Evaluate(ctx)
		if err != nil {
			return nil
		}
		inst.Height = &h
	}
	return inst
}

// Copy 深拷贝
func (im *Image) Copy() Node {
	c := *im
	return &c
}

func (im *Image) writeXML(parent *etree.Element) {
	e := parent.CreateElement("image")
	e.CreateAttr("src", im.src)
	if im.width != nil {
		writeNumberOrFormula(e, "width", *im.width)
	}
	if im.height != nil {
		writeNumberOrFormula(e, "height", *im.height)
	}
	writeDrawingAttrs(e, im.valign, im.alt, "")
	im.writeAttrs(e)
}

func (im *Image) accumulateParameterNames(set map[string]struct{}) {
	addFormulaNames(set, im.width, im.height)
}

func (im *Image) accumulateInputs(*[]*Input) {}

// SymbolPalette 作答时可用的符号面板, 不占排版空间
type SymbolPalette struct {
	NodeBase
	symbols []string
}

// NewSymbolPalette 创建符号面板
// 入参: symbols 符号组名称
func NewSymbolPalette(symbols []string) *SymbolPalette {
	return &SymbolPalette{NodeBase: NodeBase{tag: "symbol-palette"}, symbols: symbols}
}

// parseSymbolList 解析逗号分隔的符号组名称
func parseSymbolList(s string) ([]string, bool) {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, false
		}
		out = append(out, part)
	}
	return out, true
}

// Symbols 获取符号组名称
func (s *SymbolPalette) Symbols() []string { return s.symbols }

// Layout 零尺寸
func (s *SymbolPalette) Layout(*LayoutContext, LayoutMode) {
	s.setBox(0, 0, 0, 0)
}

// Instance 生成实例
func (s *SymbolPalette) Instance(*EvalContext) InstNode {
	return &SymbolPaletteInst{instBase: newInstBase(&s.NodeBase), Symbols: append([]string(nil), s.symbols...)}
}

// Copy 深拷贝
func (s *SymbolPalette) Copy() Node {
	c := *s
	c.symbols = append([]string(nil), s.symbols...)
	return &c
}

func (s *SymbolPalette) writeXML(parent *etree.Element) {
	parent.CreateElement("symbol-palette").CreateAttr("symbols", strings.Join(s.symbols, ","))
}

func (s *SymbolPalette) accumulateParameterNames(map[string]struct{}) {}

func (s *SymbolPalette) accumulateInputs(*[]*Input) {}
