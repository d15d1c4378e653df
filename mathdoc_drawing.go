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
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/zap"
)

// primitiveList 绘图容器持有的图元
type primitiveList []Primitive

// add 追加图元并设置其所属容器
func (l *primitiveList) add(owner Node, p Primitive) {
	p.setOwner(owner)
	*l = append(*l, p)
}

// copyTo 深拷贝并挂到新容器下
func (l primitiveList) copyTo(owner Node) primitiveList {
	if l == nil {
		return nil
	}
	out := make(primitiveList, 0, len(l))
	for _, p := range l {
		c := p.Copy()
		c.setOwner(owner)
		out = append(out, c)
	}
	return out
}

// layoutContent 排版图元内嵌的富文本, 图元自身不参与文本排版
func (l primitiveList) layoutContent(lc *LayoutContext) {
	for _, p := range l {
		switch t := p.(type) {
		case *SpanPrimitive:
			if t.content != nil {
				t.content.Layout(lc, ModeText)
			}
		case *Arc:
			if t.labelSpan != nil {
				t.labelSpan.Layout(lc, ModeText)
			}
		}
	}
}

// instances 生成图元实例, 无法求值的图元被省略
func (l primitiveList) instances(ctx *EvalContext) []PrimitiveInst {
	out := make([]PrimitiveInst, 0, len(l))
	for _, p := range l {
		inst := p.Instance(ctx)
		if inst == nil {
			ctx.Logger().Debug("primitive omitted", zap.String("tag", p.Tag()))
			continue
		}
		out = append(out, inst)
	}
	return out
}

func (l primitiveList) writeXML(e *etree.Element) {
	for _, p := range l {
		p.writeXML(e)
	}
}

func (l primitiveList) accumulateParameterNames(set map[string]struct{}) {
	for _, p := range l {
		p.accumulateParameterNames(set)
	}
}

// Drawing 以像素坐标绘制图元的画布
type Drawing struct {
	NodeBase
	width      *NumberOrFormula
	height     *NumberOrFormula
	alt        string
	bgColor    string
	primitives primitiveList
}

// NewDrawing 创建画布
// 入参: width 宽度, height 高度, 可为nil
func NewDrawing(width, height *NumberOrFormula) *Drawing {
	return &Drawing{NodeBase: NodeBase{tag: "drawing"}, width: width, height: height}
}

// Add 追加图元
func (d *Drawing) Add(p Primitive) {
	d.primitives.add(d, p)
}

// Primitives 获取图元
func (d *Drawing) Primitives() []Primitive {
	return d.primitives
}

// Size 获取宽高设置
func (d *Drawing) Size() (*NumberOrFormula, *NumberOrFormula) {
	return d.width, d.height
}

// Alt 获取替代文本
func (d *Drawing) Alt() string {
	return d.alt
}

// SetAlt 设置替代文本
func (d *Drawing) SetAlt(s string) {
	d.alt = s
}

// BgColor 获取背景色
func (d *Drawing) BgColor() string {
	return d.bgColor
}

// SetBgColor 设置背景色
func (d *Drawing) SetBgColor(name string) {
	d.bgColor = name
}

// Layout 尺寸取宽高求值结果, 基线位于底边
func (d *Drawing) Layout(lc *LayoutContext, _ LayoutMode) {
	w, _ := lc.evalInt(d.width, "width")
	h, _ := lc.evalInt(d.height, "height")
	w, h = max(w, 0), max(h, 0)
	d.primitives.layoutContent(lc)
	d.setBox(w, h, h, h/2)
}

// Instance 宽高公式被替换为常量
func (d *Drawing) Instance(ctx *EvalContext) InstNode {
	inst := &DrawingInst{instBase: newInstBase(&d.NodeBase), Alt: d.alt, BgColor: d.bgColor}
	for _, dim := range []struct {
		n   *NumberOrFormula
		dst *int
	}{{d.width, &inst.Width}, {d.height, &inst.Height}} {
		if dim.n == nil {
			continue
		}
		v, err := dim.n.Evaluate(ctx)
		if err != nil {
			return nil
		}
		// 与排版一致取整
		*dim.dst = int(math.Round(v))
	}
	inst.Primitives = d.primitives.instances(ctx)
	return inst
}

// Copy 深拷贝
func (d *Drawing) Copy() Node {
	c := *d
	c.primitives = d.primitives.copyTo(&c)
	return &c
}

func (d *Drawing) writeXML(parent *etree.Element) {
	e := parent.CreateElement("drawing")
	if d.width != nil {
		writeNumberOrFormula(e, "width", *d.width)
	}
	if d.height != nil {
		writeNumberOrFormula(e, "height", *d.height)
	}
	writeDrawingAttrs(e, d.valign, d.alt, d.bgColor)
	d.writeAttrs(e)
	d.primitives.writeXML(e)
}

// writeDrawingAttrs 输出画布通用属性, 默认值省略
func writeDrawingAttrs(e *etree.Element, v VAlign, alt, bg string) {
	if v != AlignBaseline {
		e.CreateAttr("valign", valignVocab.name(v))
	}
	if alt != "" {
		e.CreateAttr("alt", alt)
	}
	if bg != "" {
		e.CreateAttr("bgcolor", bg)
	}
}

func (d *Drawing) accumulateParameterNames(set map[string]struct{}) {
	addFormulaNames(set, d.width, d.height)
	d.primitives.accumulateParameterNames(set)
}

func (d *Drawing) accumulateInputs(*[]*Input) {}

// 坐标图默认设置
const (
	DefaultTickSize          = 5
	DefaultAxisLabelFontSize = 20
	DefaultTickLabelFontSize = 15
)

// GraphStyle 坐标图的边框、网格、刻度与坐标轴设置
// 颜色为空时使用默认颜色, 宽度为0表示不绘制
type GraphStyle struct {
	BgColor     string
	BorderColor string
	GridColor   string
	TickColor   string
	AxisColor   string

	BorderWidth int
	GridWidth   int
	TickWidth   int
	TickSize    int
	AxisWidth   int

	AxisLabelFontSize int
	TickLabelFontSize int
	XAxisLabel        string
	YAxisLabel        string

	XTickInterval float64
	YTickInterval float64
}

// DefaultGraphStyle 默认坐标图设置
func DefaultGraphStyle() GraphStyle {
	return GraphStyle{
		BorderWidth:       1,
		GridWidth:         1,
		TickWidth:         1,
		TickSize:          DefaultTickSize,
		AxisWidth:         1,
		AxisLabelFontSize: DefaultAxisLabelFontSize,
		TickLabelFontSize: DefaultTickLabelFontSize,
		XAxisLabel:        "x",
		YAxisLabel:        "y",
	}
}

// 未设置颜色时的绘制颜色
const (
	defaultBorderColor = "gray"
	defaultGridColor   = "lavender"
	defaultTickColor   = "black"
	defaultAxisColor   = "gray"
)

// colorOr 颜色名为空时使用默认值
func colorOr(name, def string) string {
	if name == "" {
		return def
	}
	return name
}

// writeAttrs 输出坐标图设置, 默认值省略
func (s *GraphStyle) writeAttrs(e *etree.Element) {
	def := DefaultGraphStyle()
	if s.XTickInterval != 0 {
		e.CreateAttr("xtickinterval", formatNumber(s.XTickInterval))
	}
	if s.YTickInterval != 0 {
		e.CreateAttr("ytickinterval", formatNumber(s.YTickInterval))
	}
	for _, c := range []struct{ name, val string }{
		{"bgcolor", s.BgColor}, {"bordercolor", s.BorderColor}, {"gridcolor", s.GridColor},
		{"tickcolor", s.TickColor}, {"axiscolor", s.AxisColor},
	} {
		if c.val != "" {
			e.CreateAttr(c.name, c.val)
		}
	}
	for _, w := range []struct {
		name     string
		val, def int
	}{
		{"borderwidth", s.BorderWidth, def.BorderWidth},
		{"gridwidth", s.GridWidth, def.GridWidth},
		{"tickwidth", s.TickWidth, def.TickWidth},
		{"ticksize", s.TickSize, def.TickSize},
		{"axiswidth", s.AxisWidth, def.AxisWidth},
		{"axislabelfontsize", s.AxisLabelFontSize, def.AxisLabelFontSize},
		{"ticklabelfontsize", s.TickLabelFontSize, def.TickLabelFontSize},
	} {
		if w.val != w.def {
			e.CreateAttr(w.name, strconv.Itoa(w.val))
		}
	}
	if s.XAxisLabel != def.XAxisLabel {
		e.CreateAttr("xaxislabel", s.XAxisLabel)
	}
	if s.YAxisLabel != def.YAxisLabel {
		e.CreateAttr("yaxislabel", s.YAxisLabel)
	}
}

// Tick 一个刻度位置及其标签
type Tick struct {
	Value float64
	Label string
}

// TickLabel 刻度标签文本, 取最接近的刻度间隔整数倍, 最多三位小数, 负号使用 U+2212
// 入参: val 刻度值, interval 刻度间隔
// 返回: string 标签
func TickLabel(val, interval float64) string {
	var mult int
	if val > 0 {
		mult = int((val + interval/2) / interval)
	} else {
		mult = int((val - interval/2) / interval)
	}
	v := float64(mult) * interval
	s := strconv.FormatFloat(math.Round(v*1000)/1000, 'f', -1, 64)
	if s == "-0" {
		s = "0"
	}
	if rest, ok := strings.CutPrefix(s, "-"); ok {
		s = "−" + rest
	}
	return s
}

// Ticks 计算窗口内的刻度, 不含窗口边界
// 入参: lo 窗口下界, hi 窗口上界, interval 刻度间隔, skipZero 绘制坐标轴时省略原点处的刻度
// 返回: []Tick 刻度
func Ticks(lo, hi, interval float64, skipZero bool) []Tick {
	if interval <= 0 || hi <= lo || math.IsInf(interval, 0) || math.IsNaN(interval) {
		return nil
	}
	var out []Tick
	first := math.Floor(lo/interval) + 1
	for k := first; k*interval < hi; k++ {
		v := k * interval
		if skipZero && math.Abs(v) < interval/10 {
			continue
		}
		out = append(out, Tick{Value: v, Label: TickLabel(v, interval)})
		if len(out) > 10000 {
			break
		}
	}
	return out
}

// GraphXY 带坐标轴的函数图像画布
type GraphXY struct {
	NodeBase
	width, height int
	alt           string
	window        Box
	style         GraphStyle
	primitives    primitiveList
}

// DefaultGraphWindow 未设置时的坐标窗口
var DefaultGraphWindow = Box{X: -5, Y: -5, W: 10, H: 10}

// NewGraphXY 创建坐标图
// 入参: width 宽度, height 高度(像素)
func NewGraphXY(width, height int) *GraphXY {
	return &GraphXY{
		NodeBase: NodeBase{tag: "graphxy"},
		width:    width,
		height:   height,
		window:   DefaultGraphWindow,
		style:    DefaultGraphStyle(),
	}
}

// Add 追加图元, 函数图像的默认定义域取坐标窗口
func (g *GraphXY) Add(p Primitive) {
	if f, ok := p.(*FormulaPlot); ok {
		f.window = g.window
	}
	g.primitives.add(g, p)
}

// Primitives 获取图元
func (g *GraphXY) Primitives() []Primitive {
	return g.primitives
}

// PixelSize 获取像素宽高
func (g *GraphXY) PixelSize() (int, int) {
	return g.width, g.height
}

// Window 获取坐标窗口
func (g *GraphXY) Window() Box {
	return g.window
}

// SetWindow 设置坐标窗口
// 入参: minX, maxX, minY, maxY 窗口范围
func (g *GraphXY) SetWindow(minX, maxX, minY, maxY float64) {
	g.window = Box{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
	for _, p := range g.primitives {
		if f, ok := p.(*FormulaPlot); ok {
			f.window = g.window
		}
	}
}

// Style 获取坐标轴设置
func (g *GraphXY) Style() GraphStyle {
	return g.style
}

// SetStyle 设置坐标轴设置
func (g *GraphXY) SetStyle(s GraphStyle) {
	g.style = s
}

// Alt 获取替代文本
func (g *GraphXY) Alt() string {
	return g.alt
}

// SetAlt 设置替代文本
func (g *GraphXY) SetAlt(s string) {
	g.alt = s
}

// Matrix 坐标窗口到像素区域的变换, 像素区域扣除边框
func (g *GraphXY) Matrix() Matrix {
	return graphMatrix(g.window, g.width, g.height, g.style.BorderWidth)
}

func graphMatrix(window Box, w, h, border int) Matrix {
	bw := float64(max(border, 0))
	pixels := Box{X: bw, Y: bw, W: float64(w) - 2*bw, H: float64(h) - 2*bw}
	return WindowMatrix(window, pixels)
}

// Layout 固定像素尺寸, 基线位于底边
func (g *GraphXY) Layout(lc *LayoutContext, _ LayoutMode) {
	g.primitives.layoutContent(lc)
	g.setBox(g.width, g.height, g.height, g.height/2)
}

// Instance 生成实例, 函数图像被采样为折线
func (g *GraphXY) Instance(ctx *EvalContext) InstNode {
	return &GraphXYInst{
		instBase:   newInstBase(&g.NodeBase),
		Width:      g.width,
		Height:     g.height,
		Alt:        g.alt,
		Window:     g.window,
		Style:      g.style,
		Primitives: g.primitives.instances(ctx),
	}
}

// Copy 深拷贝
func (g *GraphXY) Copy() Node {
	c := *g
	c.primitives = g.primitives.copyTo(&c)
	return &c
}

// writeGraphAttrs 输出坐标图尺寸与窗口
func writeGraphAttrs(e *etree.Element, w, h int, window Box) {
	e.CreateAttr("width", strconv.Itoa(w))
	e.CreateAttr("height", strconv.Itoa(h))
	if window != DefaultGraphWindow {
		e.CreateAttr("minx", formatNumber(window.X))
		e.CreateAttr("miny", formatNumber(window.Y))
		e.CreateAttr("maxx", formatNumber(window.X+window.W))
		e.CreateAttr("maxy", formatNumber(window.Y+window.H))
	}
}

func (g *GraphXY) writeXML(parent *etree.Element) {
	e := parent.CreateElement("graphxy")
	writeGraphAttrs(e, g.width, g.height, g.window)
	g.style.writeAttrs(e)
	writeDrawingAttrs(e, g.valign, g.alt, "")
	g.writeAttrs(e)
	g.primitives.writeXML(e)
}

func (g *GraphXY) accumulateParameterNames(set map[string]struct{}) {
	g.primitives.accumulateParameterNames(set)
}

func (g *GraphXY) accumulateInputs(*[]*Input) {}
