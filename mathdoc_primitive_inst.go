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
	"github.com/beevik/etree"
)

// PrimitiveInst 图元实例, 全部几何与颜色均已求值
type PrimitiveInst interface {
	writeXML(parent *etree.Element)
}

// writePrimitiveInsts 按顺序输出图元实例
func writePrimitiveInsts(e *etree.Element, ps []PrimitiveInst) {
	for _, p := range ps {
		p.writeXML(e)
	}
}

// StrokeInst 描边
type StrokeInst struct {
	Width     float64
	ColorName string
	Dash      []float64
	Alpha     float64
}

// writeStroke 输出描边属性, nil表示不描边
func writeStroke(e *etree.Element, prefix string, s *StrokeInst) {
	if s == nil {
		e.CreateAttr(prefix+"width", "0")
		return
	}
	if s.Width != 1 {
		e.CreateAttr(prefix+"width", formatNumber(s.Width))
	}
	e.CreateAttr(prefix+"color", s.ColorName)
	if len(s.Dash) > 0 {
		e.CreateAttr(prefix+"dash", formatFloats(s.Dash))
	}
	if s.Alpha != 1 {
		e.CreateAttr(prefix+"alpha", formatNumber(s.Alpha))
	}
}

// FillInst 填充
type FillInst struct {
	ColorName string
	Alpha     float64
}

func writeFill(e *etree.Element, f *FillInst) {
	if f == nil {
		return
	}
	e.CreateAttr("fill-style", fillStyleVocab.name(FillSolid))
	e.CreateAttr("fill-color", f.ColorName)
	if f.Alpha != 1 {
		e.CreateAttr("fill-alpha", formatNumber(f.Alpha))
	}
}

func writeBoxAttrs(e *etree.Element, b Box) {
	e.CreateAttr("x", formatNumber(b.X))
	e.CreateAttr("y", formatNumber(b.Y))
	e.CreateAttr("width", formatNumber(b.W))
	e.CreateAttr("height", formatNumber(b.H))
}

// writeStyleAttrs 输出已解析的样式
func writeStyleAttrs(e *etree.Element, s Style, colorAttr string) {
	if s.ColorName != "" {
		e.CreateAttr(colorAttr, s.ColorName)
	}
	if s.FontName != "" {
		e.CreateAttr("fontname", s.FontName)
	}
	if s.FontSize > 0 {
		e.CreateAttr("fontsize", formatNumber(s.FontSize))
	}
	e.CreateAttr("fontstyle", s.FontStyle.String())
}

func writeAlpha(e *etree.Element, name string, a float64) {
	if a != 1 {
		e.CreateAttr(name, formatNumber(a))
	}
}

// LineInst 线段实例
type LineInst struct {
	X, Y, Width, Height float64
	Stroke              *StrokeInst
}

func (l *LineInst) writeXML(parent *etree.Element) {
	e := parent.CreateElement("line")
	writeStroke(e, "stroke-", l.Stroke)
	writeBoxAttrs(e, Box{X: l.X, Y: l.Y, W: l.Width, H: l.Height})
}

// RectangleInst 矩形实例
type RectangleInst struct {
	Bounds Box
	Stroke *StrokeInst
	Fill   *FillInst
}

func (r *RectangleInst) writeXML(parent *etree.Element) {
	e := parent.CreateElement("rectangle")
	writeStroke(e, "stroke-", r.Stroke)
	writeFill(e, r.Fill)
	writeBoxAttrs(e, r.Bounds)
}

// OvalInst 椭圆实例
type OvalInst struct {
	Bounds Box
	Stroke *StrokeInst
	Fill   *FillInst
}

func (o *OvalInst) writeXML(parent *etree.Element) {
	e := parent.CreateElement("oval")
	writeStroke(e, "stroke-", o.Stroke)
	writeFill(e, o.Fill)
	writeBoxAttrs(e, o.Bounds)
}

// ArcInst 椭圆弧实例, 角度单位为度, 逆时针为正
type ArcInst struct {
	Bounds      Box
	StartAngle  float64
	ArcAngle    float64
	Stroke      *StrokeInst
	Fill        *FillInst
	RaysShown   RaysShown
	RayLength   float64
	RayStroke   *StrokeInst
	LabelOffset float64
	Label       string
	LabelStyle  Style
	LabelAlpha  float64
	LabelSpan   *NonwrapInst
}

func (a *ArcInst) writeXML(parent *etree.Element) {
	e := parent.CreateElement("arc")
	writeStroke(e, "stroke-", a.Stroke)
	writeFill(e, a.Fill)
	if a.RaysShown != RaysNone {
		e.CreateAttr("rays-shown", raysShownVocab.name(a.RaysShown))
		writeStroke(e, "ray-", a.RayStroke)
	}
	if a.Label != "" {
		e.CreateAttr("label", braceEscaper.Replace(a.Label))
	}
	writeStyleAttrs(e, a.LabelStyle, "label-color")
	writeAlpha(e, "label-alpha", a.LabelAlpha)
	writeBoxAttrs(e, a.Bounds)
	e.CreateAttr("start-angle", formatNumber(a.StartAngle))
	e.CreateAttr("arc-angle", formatNumber(a.ArcAngle))
	if a.RayLength != 0 {
		e.CreateAttr("ray-length", formatNumber(a.RayLength))
	}
	if a.LabelOffset != 0 {
		e.CreateAttr("label-offset", formatNumber(a.LabelOffset))
	}
	if a.LabelSpan != nil {
		a.LabelSpan.writeXML(e)
	}
}

// PolygonInst 多边形或折线实例
type PolygonInst struct {
	Closed bool
	Xs, Ys []float64
	Stroke *StrokeInst
	Fill   *FillInst
}

func (p *PolygonInst) writeXML(parent *etree.Element) {
	tag := "polyline"
	if p.Closed {
		tag = "polygon"
	}
	e := parent.CreateElement(tag)
	writeStroke(e, "stroke-", p.Stroke)
	if p.Closed {
		writeFill(e, p.Fill)
	}
	e.CreateAttr("x-list", formatFloats(p.Xs))
	e.CreateAttr("y-list", formatFloats(p.Ys))
}

// ProtractorInst 量角器实例
type ProtractorInst struct {
	CX, CY, R     float64
	Orientation   float64
	Units         AngleUnits
	Quadrants     int
	Stroke        *StrokeInst
	TextColorName string
}

func (p *ProtractorInst) writeXML(parent *etree.Element) {
	e := parent.CreateElement("protractor")
	if p.Stroke == nil {
		e.CreateAttr("stroke-width", "0")
	} else {
		e.CreateAttr("color", p.Stroke.ColorName)
		writeAlpha(e, "alpha", p.Stroke.Alpha)
		if p.Stroke.Width != 1 {
			e.CreateAttr("stroke-width", formatNumber(p.Stroke.Width))
		}
	}
	e.CreateAttr("units", angleUnitsVocab.name(p.Units))
	e.CreateAttr("quadrants", formatInt64(int64(p.Quadrants)))
	e.CreateAttr("text-color", p.TextColorName)
	e.CreateAttr("cx", formatNumber(p.CX))
	e.CreateAttr("cy", formatNumber(p.CY))
	e.CreateAttr("r", formatNumber(p.R))
	e.CreateAttr("orientation", formatNumber(p.Orientation))
}

// RasterInst 位图实例
type RasterInst struct {
	Bounds Box
	Source string
	Alpha  float64
}

func (r *RasterInst) writeXML(parent *etree.Element) {
	e := parent.CreateElement("raster")
	e.CreateAttr("src", r.Source)
	writeAlpha(e, "alpha", r.Alpha)
	writeBoxAttrs(e, r.Bounds)
}

// TextPrimitiveInst 文本图元实例, Text 为替换参数后的文本
type TextPrimitiveInst struct {
	X, Y      float64
	Anchor    TextAnchor
	Text      string
	Style     Style
	Highlight string
	Alpha     float64
}

func (t *TextPrimitiveInst) writeXML(parent *etree.Element) {
	e := parent.CreateElement("text")
	writeAnchor(e, t.Anchor)
	if t.Highlight != "" {
		e.CreateAttr("highlight", t.Highlight)
	}
	writeAlpha(e, "alpha", t.Alpha)
	writeStyleAttrs(e, t.Style, "color")
	e.CreateAttr("value", braceEscaper.Replace(t.Text))
	e.CreateAttr("x", formatNumber(t.X))
	e.CreateAttr("y", formatNumber(t.Y))
}

// SpanPrimitiveInst 富文本图元实例
type SpanPrimitiveInst struct {
	X, Y    float64
	Anchor  TextAnchor
	Content *SpanInst
	Style   Style
	Alpha   float64
}

func (s *SpanPrimitiveInst) writeXML(parent *etree.Element) {
	e := parent.CreateElement("span")
	writeAnchor(e, s.Anchor)
	writeAlpha(e, "alpha", s.Alpha)
	writeStyleAttrs(e, s.Style, "color")
	e.CreateAttr("x", formatNumber(s.X))
	e.CreateAttr("y", formatNumber(s.Y))
	if s.Content != nil {
		s.Content.writeXML(e)
	}
}

// FormulaPlotInst 函数图像实例, 由若干段折线组成
type FormulaPlotInst struct {
	Stroke   *StrokeInst
	Segments []PolygonInst
}

// writeXML 各段写为独立的折线
func (f *FormulaPlotInst) writeXML(parent *etree.Element) {
	for i := range f.Segments {
		f.Segments[i].writeXML(parent)
	}
}
