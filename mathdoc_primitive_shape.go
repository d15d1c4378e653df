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
	"net/url"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// Polygon 多边形或折线, 顶点坐标为常量列表或逐点公式
type Polygon struct {
	primitiveBase
	xs, ys []NumberOrFormula
	closed bool
}

// NewPolygon 创建闭合多边形
func NewPolygon() *Polygon {
	p := &Polygon{primitiveBase: primitiveBase{tag: "polygon", nums: newNumericAttrs()}, closed: true}
	p.paint.fillable = true
	return p
}

// NewPolyline 创建不闭合的折线
func NewPolyline() *Polygon {
	return &Polygon{primitiveBase: primitiveBase{tag: "polyline", nums: newNumericAttrs()}}
}

// Closed 是否闭合
func (p *Polygon) Closed() bool {
	return p.closed
}

// Points 获取顶点坐标
func (p *Polygon) Points() ([]NumberOrFormula, []NumberOrFormula) {
	return p.xs, p.ys
}

// parseList 解析坐标列表, 任一项不是数字时整体按旧语法解析为公式
func (p *Polygon) parseList(value, name string, src AttrSource) ([]NumberOrFormula, bool) {
	owner := p.tag + " primitive"
	parts := strings.Split(value, ",")
	out := make([]NumberOrFormula, 0, len(parts))
	if nums, ok := parseFloats(value); ok && len(nums) == len(parts) {
		for _, v := range nums {
			out = append(out, NewNumber(v))
		}
		return out, true
	}
	src.deprecated("Deprecated use of formula in '%s' on %s", name, owner)
	for _, part := range parts {
		f, err := ParseFormula(part, src.Ctx)
		if err != nil {
			return nil, src.errorf("Invalid '%s' value (%s) on %s", name, value, owner)
		}
		out = append(out, NewFormulaValue(f))
	}
	return out, true
}

// SetAttr 设置属性
func (p *Polygon) SetAttr(name, value string, src AttrSource) bool {
	switch name {
	case "x-list":
		xs, ok := p.parseList(value, name, src)
		if ok {
			p.xs = xs
		}
		return ok
	case "y-list":
		ys, ok := p.parseList(value, name, src)
		if ok {
			p.ys = ys
		}
		return ok
	}
	if handled, ok := p.setCommon(name, value, src); handled {
		return ok
	}
	return p.unsupported(name, src)
}

// SetFormula 子元素 <x> 与 <y> 逐个追加顶点坐标, 首个子元素替换属性给出的列表
func (p *Polygon) SetFormula(name string, f *Formula) bool {
	if f == nil {
		return false
	}
	switch name {
	case "x":
		p.xs = append(p.formulaList(p.xs), NewFormulaValue(f))
	case "y":
		p.ys = append(p.formulaList(p.ys), NewFormulaValue(f))
	default:
		return false
	}
	return true
}

func (p *Polygon) formulaList(list []NumberOrFormula) []NumberOrFormula {
	for _, v := range list {
		if !v.IsFormula() {
			return nil
		}
	}
	return list
}

// Instance 生成实例, 坐标个数不一致或不足两个时返回nil
func (p *Polygon) Instance(ctx *EvalContext) PrimitiveInst {
	if len(p.xs) != len(p.ys) || len(p.xs) < 2 {
		ctx.Logger().Debug("polygon point lists mismatch")
		return nil
	}
	inst := &PolygonInst{
		Closed: p.closed,
		Xs:     make([]float64, len(p.xs)),
		Ys:     make([]float64, len(p.ys)),
		Stroke: p.paint.stroke(p.owner),
	}
	if p.closed {
		inst.Fill = p.paint.fill(p.owner)
	}
	for i := range p.xs {
		x, err := p.xs[i].Evaluate(ctx)
		if err != nil {
			return nil
		}
		y, err := p.ys[i].Evaluate(ctx)
		if err != nil {
			return nil
		}
		inst.Xs[i], inst.Ys[i] = x, y
	}
	return inst
}

// Copy 深拷贝
func (p *Polygon) Copy() Primitive {
	return &Polygon{
		primitiveBase: p.cloneBase(),
		xs:            append([]NumberOrFormula(nil), p.xs...),
		ys:            append([]NumberOrFormula(nil), p.ys...),
		closed:        p.closed,
	}
}

func (p *Polygon) writeXML(parent *etree.Element) {
	e := p.writeBase(parent)
	writeCoordList(e, "x", p.xs)
	writeCoordList(e, "y", p.ys)
}

// writeCoordList 全部为常量时写为列表属性, 否则逐点写为公式子元素
func writeCoordList(e *etree.Element, axis string, list []NumberOrFormula) {
	vals := make([]float64, 0, len(list))
	for _, v := range list {
		n, ok := v.Number()
		if !ok {
			for _, w := range list {
				writeNumberOrFormula(e, axis, NewFormulaValue(w.Formula()))
			}
			return
		}
		vals = append(vals, n)
	}
	if len(vals) > 0 {
		e.CreateAttr(axis+"-list", formatFloats(vals))
	}
}

func (p *Polygon) accumulateParameterNames(set map[string]struct{}) {
	for i := range p.xs {
		addFormulaNames(set, &p.xs[i])
	}
	for i := range p.ys {
		addFormulaNames(set, &p.ys[i])
	}
}

// Protractor 量角器
type Protractor struct {
	primitiveBase
	units     AngleUnits
	quadrants int
	textColor string
}

// NewProtractor 创建量角器
func NewProtractor() *Protractor {
	return &Protractor{
		primitiveBase: primitiveBase{tag: "protractor", nums: newNumericAttrs("cx", "cy", "r", "orientation")},
		quadrants:     2,
	}
}

// SetAttr 设置属性
func (p *Protractor) SetAttr(name, value string, src AttrSource) bool {
	owner := "protractor primitive"
	switch name {
	case "units":
		u, ok := angleUnitsVocab.parse(value)
		if !ok {
			return src.errorf("Invalid 'units' value (%s) on %s", value, owner)
		}
		p.units = u
		return true
	case "quadrants":
		q, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || q < 1 || q > 4 {
			return src.errorf("Invalid 'quadrants' value (%s) on %s", value, owner)
		}
		p.quadrants = q
		return true
	case "text-color":
		c, ok := src.color(value, name, owner)
		p.textColor = c
		return ok
	case "color":
		c, ok := src.color(value, name, owner)
		p.paint.strokeColor = c
		return ok
	case "alpha":
		a, ok := src.alpha(value, name, owner)
		p.paint.strokeAlpha = a
		return ok
	}
	if handled, ok := p.setCommon(name, value, src); handled {
		return ok
	}
	return p.unsupported(name, src)
}

// Instance 生成实例
func (p *Protractor) Instance(ctx *EvalContext) PrimitiveInst {
	cx, ok1 := p.nums.eval(ctx, "cx", 0)
	cy, ok2 := p.nums.eval(ctx, "cy", 0)
	r, ok3 := p.nums.eval(ctx, "r", 0)
	orient, ok4 := p.nums.eval(ctx, "orientation", 0)
	if !(ok1 && ok2 && ok3 && ok4) || r <= 0 {
		return nil
	}
	inst := &ProtractorInst{
		CX: cx, CY: cy, R: r, Orientation: orient,
		Units: p.units, Quadrants: p.quadrants,
		Stroke:        p.paint.stroke(p.owner),
		TextColorName: p.textColor,
	}
	if inst.TextColorName == "" {
		inst.TextColorName = inheritedColor(p.owner)
	}
	return inst
}

// Copy 深拷贝
func (p *Protractor) Copy() Primitive {
	return &Protractor{primitiveBase: p.cloneBase(), units: p.units, quadrants: p.quadrants, textColor: p.textColor}
}

func (p *Protractor) writeXML(parent *etree.Element) {
	e := parent.CreateElement(p.tag)
	if p.paint.strokeColor != "" {
		e.CreateAttr("color", p.paint.strokeColor)
	}
	if p.paint.strokeAlpha != nil {
		e.CreateAttr("alpha", formatNumber(*p.paint.strokeAlpha))
	}
	if p.paint.strokeWidth != nil {
		e.CreateAttr("stroke-width", formatNumber(*p.paint.strokeWidth))
	}
	if p.units != UnitsDegrees {
		e.CreateAttr("units", angleUnitsVocab.name(p.units))
	}
	if p.quadrants != 2 {
		e.CreateAttr("quadrants", strconv.Itoa(p.quadrants))
	}
	if p.textColor != "" {
		e.CreateAttr("text-color", p.textColor)
	}
	p.nums.writeXML(e)
}

// Raster 位图图元
type Raster struct {
	primitiveBase
	src   string
	alpha *float64
}

// NewRaster 创建位图图元
func NewRaster() *Raster {
	return &Raster{primitiveBase: primitiveBase{tag: "raster", nums: newNumericAttrs("x", "y", "width", "height")}}
}

// Source 获取图片地址
func (r *Raster) Source() string {
	return r.src
}

// SetAttr 设置属性
func (r *Raster) SetAttr(name, value string, src AttrSource) bool {
	owner := "raster primitive"
	switch name {
	case "src":
		if _, err := url.Parse(value); err != nil || strings.TrimSpace(value) == "" {
			return src.errorf("Invalid source URL '%s' on %s", value, owner)
		}
		r.src = value
		return true
	case "alpha":
		a, ok := src.alpha(value, name, owner)
		r.alpha = a
		return ok
	}
	if r.nums.allowed(name) {
		handled, ok := r.setCommon(name, value, src)
		return handled && ok
	}
	return r.unsupported(name, src)
}

// Instance 生成实例
func (r *Raster) Instance(ctx *EvalContext) PrimitiveInst {
	b, ok := r.bounds(ctx)
	if !ok || r.src == "" {
		return nil
	}
	inst := &RasterInst{Bounds: b, Source: r.src, Alpha: 1}
	if r.alpha != nil {
		inst.Alpha = *r.alpha
	}
	return inst
}

// Copy 深拷贝
func (r *Raster) Copy() Primitive {
	return &Raster{primitiveBase: r.cloneBase(), src: r.src, alpha: r.alpha}
}

func (r *Raster) writeXML(parent *etree.Element) {
	e := parent.CreateElement(r.tag)
	if r.src != "" {
		e.CreateAttr("src", r.src)
	}
	if r.alpha != nil {
		e.CreateAttr("alpha", formatNumber(*r.alpha))
	}
	r.nums.writeXML(e)
}
