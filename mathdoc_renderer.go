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
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"io/fs"
	"math"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers"
	"github.com/tdewolff/canvas/renderers/pdf"
	"github.com/tdewolff/canvas/renderers/rasterizer"
	_ "github.com/xiaoqidun/jbig2"
	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"go.uber.org/zap"
)

// pxToMM 排版像素到画布毫米, 按96DPI换算
const pxToMM = 25.4 / 96

// 渲染默认设置
const (
	DefaultDPI    = 96.0
	DefaultMargin = 8
)

// Renderer 将排版后的文档绘制到画布
// 渲染会改写模板的排版结果, 同一模板不能并发渲染
type Renderer struct {
	DPI float64

	margin   int
	width    int
	fonts    *FontRegistry
	fontDirs []string
	fontFS   []fs.FS
	assets   fs.FS
	logger   *zap.Logger
	measurer *CanvasMeasurer
}

// RendererOption 渲染器配置选项
type RendererOption func(*Renderer)

// WithDPI 设置光栅化分辨率
// 入参: dpi 每英寸像素数
func WithDPI(dpi float64) RendererOption {
	return func(r *Renderer) {
		if dpi > 0 {
			r.DPI = dpi
		}
	}
}

// WithMargin 设置页边距(像素)
func WithMargin(px int) RendererOption {
	return func(r *Renderer) {
		r.margin = max(px, 0)
	}
}

// WithWidth 文档未指定栏宽时使用的栏宽(像素)
func WithWidth(px int) RendererOption {
	return func(r *Renderer) {
		r.width = max(px, 0)
	}
}

// WithFontRegistry 使用指定的字体注册表
func WithFontRegistry(reg *FontRegistry) RendererOption {
	return func(r *Renderer) {
		r.fonts = reg
	}
}

// WithFontDirs 设置字体目录
// 入参: dirs 字体目录列表
func WithFontDirs(dirs ...string) RendererOption {
	return func(r *Renderer) {
		r.fontDirs = append(r.fontDirs, dirs...)
	}
}

// WithFontFS 设置字体文件系统
// 入参: fsys 字体文件系统
func WithFontFS(fsys ...fs.FS) RendererOption {
	return func(r *Renderer) {
		r.fontFS = append(r.fontFS, fsys...)
	}
}

// WithAssetFS 设置图片资源所在的文件系统, 图片地址按相对路径解析
func WithAssetFS(fsys fs.FS) RendererOption {
	return func(r *Renderer) {
		r.assets = fsys
	}
}

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) RendererOption {
	return func(r *Renderer) {
		r.logger = logger
	}
}

// NewRenderer 创建渲染器
// 入参: opts 配置选项
// 返回: *Renderer 渲染器
func NewRenderer(opts ...RendererOption) *Renderer {
	r := &Renderer{DPI: DefaultDPI, margin: DefaultMargin}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if r.fonts == nil {
		if len(r.fontDirs) == 0 && len(r.fontFS) == 0 {
			r.fonts = DefaultFontRegistry()
		} else {
			r.fonts = NewFontRegistry()
			r.fonts.SetLogger(r.logger)
		}
	}
	for _, dir := range r.fontDirs {
		if n, err := r.fonts.RegisterDir(dir); err != nil {
			r.logger.Warn("font dir unavailable", zap.String("dir", dir), zap.Error(err))
		} else {
			r.logger.Debug("fonts registered", zap.String("dir", dir), zap.Int("count", n))
		}
	}
	for _, fsys := range r.fontFS {
		if _, err := r.fonts.RegisterFS(fsys, "."); err != nil {
			r.logger.Warn("font fs unavailable", zap.Error(err))
		}
	}
	r.measurer = NewCanvasMeasurer(r.fonts)
	return r
}

// Measurer 渲染器使用的文本度量器, 排版与绘制使用相同的字体
func (r *Renderer) Measurer() Measurer {
	return r.measurer
}

// Fonts 渲染器使用的字体注册表
func (r *Renderer) Fonts() *FontRegistry {
	return r.fonts
}

// Render 排版并绘制文档
// 入参: col 文档模板, ctx 求值上下文
// 返回: *canvas.Canvas 画布实例, error 错误信息
func (r *Renderer) Render(col *Column, ctx *EvalContext) (*canvas.Canvas, error) {
	if col == nil {
		return nil, errors.New("mathdoc: nil document")
	}
	if r.width > 0 && col.ColumnWidth() == 0 {
		col.SetColumnWidth(r.width)
	}
	col.Layout(NewLayoutContext(ctx, r.measurer), ModeText)
	w := float64(max(col.Width, 1) + 2*r.margin)
	h := float64(max(col.Height, 1) + 2*r.margin)
	c := canvas.New(w*pxToMM, h*pxToMM)
	cc := canvas.NewContext(c)
	cc.SetFillColor(canvas.White)
	cc.DrawPath(0, 0, canvas.Rectangle(c.W, c.H))
	d := &drawer{r: r, ctx: cc, eval: ctx, pageH: h, images: map[string]image.Image{}}
	d.node(col, r.margin, r.margin)
	return c, nil
}

// RenderInst 排版并绘制文档实例
// 入参: inst 文档实例
// 返回: *canvas.Canvas 画布实例, error 错误信息
func (r *Renderer) RenderInst(inst *DocInst) (*canvas.Canvas, error) {
	col, err := inst.Template()
	if err != nil {
		return nil, err
	}
	return r.Render(col, inst.InputContext())
}

// RenderToImage 渲染为光栅图
// 入参: col 文档模板, ctx 求值上下文
// 返回: image.Image 图像对象, error 错误信息
func (r *Renderer) RenderToImage(col *Column, ctx *EvalContext) (image.Image, error) {
	c, err := r.Render(col, ctx)
	if err != nil {
		return nil, err
	}
	dpmm := r.DPI / 25.4
	return rasterizer.Draw(c, canvas.DPMM(dpmm), canvas.DefaultColorSpace), nil
}

// RenderToSVG 渲染为SVG
// 入参: col 文档模板, ctx 求值上下文, writer 输出流
// 返回: error 错误信息
func (r *Renderer) RenderToSVG(col *Column, ctx *EvalContext, writer io.Writer) error {
	c, err := r.Render(col, ctx)
	if err != nil {
		return err
	}
	return c.Write(writer, renderers.SVG())
}

// RenderToPDF 渲染为PDF
// 入参: col 文档模板, ctx 求值上下文, writer 输出流
// 返回: error 错误信息
func (r *Renderer) RenderToPDF(col *Column, ctx *EvalContext, writer io.Writer) error {
	c, err := r.Render(col, ctx)
	if err != nil {
		return err
	}
	return c.Write(writer, renderers.PDF())
}

// RenderToEPS 渲染为EPS
func (r *Renderer) RenderToEPS(col *Column, ctx *EvalContext, writer io.Writer) error {
	c, err := r.Render(col, ctx)
	if err != nil {
		return err
	}
	return c.Write(writer, renderers.EPS())
}

// RenderToMultiPagePDF 每个文档实例占一页, 导出为多页PDF
// 入参: insts 文档实例, writer 输出流
// 返回: error 错误信息
func (r *Renderer) RenderToMultiPagePDF(insts []*DocInst, writer io.Writer) error {
	if len(insts) == 0 {
		return fmt.Errorf("no pages found")
	}
	var p *pdf.PDF
	for i, inst := range insts {
		c, err := r.RenderInst(inst)
		if err != nil {
			r.logger.Warn("page skipped", zap.Int("index", i), zap.Error(err))
			continue
		}
		if p == nil {
			p = pdf.New(writer, c.W, c.H, nil)
		} else {
			p.NewPage(c.W, c.H)
		}
		c.RenderTo(p)
	}
	if p == nil {
		return fmt.Errorf("failed to render any page")
	}
	return p.Close()
}

// drawer 单次渲染的绘制状态, 坐标单位为像素, Y轴向下
type drawer struct {
	r      *Renderer
	ctx    *canvas.Context
	eval   *EvalContext
	pageH  float64
	images map[string]image.Image
}

// point 像素坐标转换为画布坐标
func (d *drawer) point(x, y float64) (float64, float64) {
	return x * pxToMM, (d.pageH - y) * pxToMM
}

// path 由像素坐标点构造路径
func (d *drawer) path(xs, ys []float64, closed bool) *canvas.Path {
	p := &canvas.Path{}
	for i := range xs {
		cx, cy := d.point(xs[i], ys[i])
		if i == 0 {
			p.MoveTo(cx, cy)
		} else {
			p.LineTo(cx, cy)
		}
	}
	if closed && len(xs) > 2 {
		p.Close()
	}
	return p
}

func (d *drawer) fillPath(p *canvas.Path, c color.Color) {
	d.ctx.SetStrokeColor(canvas.Transparent)
	d.ctx.SetFillColor(c)
	d.ctx.DrawPath(0, 0, p)
}

func (d *drawer) strokePath(p *canvas.Path, width float64, c color.Color, dash []float64) {
	if width <= 0 {
		return
	}
	d.ctx.SetFillColor(canvas.Transparent)
	d.ctx.SetStrokeColor(c)
	d.ctx.SetStrokeWidth(width * pxToMM)
	if len(dash) > 0 {
		mm := make([]float64, len(dash))
		for i, v := range dash {
			mm[i] = v * pxToMM
		}
		d.ctx.SetDashes(0, mm...)
		defer d.ctx.SetDashes(0)
	}
	d.ctx.DrawPath(0, 0, p)
}

// stroke 按图元描边设置绘制, s为nil时不绘制
func (d *drawer) stroke(p *canvas.Path, s *StrokeInst) {
	if s == nil {
		return
	}
	d.strokePath(p, s.Width, parseColor(s.ColorName, s.Alpha), s.Dash)
}

func (d *drawer) fill(p *canvas.Path, f *FillInst) {
	if f == nil {
		return
	}
	d.fillPath(p, parseColor(f.ColorName, f.Alpha))
}

func rectPoints(x, y, w, h float64) ([]float64, []float64) {
	return []float64{x, x + w, x + w, x}, []float64{y, y, y + h, y + h}
}

func (d *drawer) fillRect(x, y, w, h float64, c color.Color) {
	if w <= 0 || h <= 0 {
		return
	}
	xs, ys := rectPoints(x, y, w, h)
	d.fillPath(d.path(xs, ys, true), c)
}

func (d *drawer) strokeRect(x, y, w, h, width float64, c color.Color) {
	xs, ys := rectPoints(x+width/2, y+width/2, w-width, h-width)
	d.strokePath(d.path(xs, ys, true), width, c, nil)
}

func (d *drawer) line(x0, y0, x1, y1, width float64, c color.Color) {
	d.strokePath(d.path([]float64{x0, x1}, []float64{y0, y1}, false), width, c, nil)
}

// face 创建字体实例, 字号单位为像素
func (d *drawer) face(f FontSpec, c color.Color) *canvas.FontFace {
	ff := d.r.fonts.Family(f.Name)
	if ff == nil {
		return nil
	}
	size := f.Size
	if size <= 0 {
		size = DefaultFontSize
	}
	return ff.Face(size*pxToMM/mmPerPoint, c, canvasStyle(f.Style&(StyleBold|StyleItalic)), canvas.FontNormal)
}

// text 在基线位置绘制单行文本
// 返回: float64 文本宽度(像素)
func (d *drawer) text(s string, f FontSpec, c color.Color, x, baseline float64) float64 {
	face := d.face(f, c)
	if face == nil || s == "" {
		return 0
	}
	cx, cy := d.point(x, baseline)
	d.ctx.DrawText(cx, cy, canvas.NewTextLine(face, s, canvas.Left))
	return face.TextWidth(s) / pxToMM
}

// node 绘制排版后的节点, (ox, oy) 为父容器原点
func (d *drawer) node(n Node, ox, oy int) {
	if n == nil {
		return
	}
	b := n.Base()
	if b.IsHidden() {
		return
	}
	x, y := ox+b.X, oy+b.Y
	switch t := n.(type) {
	case *Column:
		for _, c := range t.children {
			d.node(c, x, y)
		}
	case *Paragraph:
		d.items(t.flow, x, y)
	case *Span:
		d.items(flowItems(t.children), x, y)
	case *Nonwrap:
		d.nonwrap(t, x, y)
	case *Math:
		d.items(t.flow, x, y)
	case *Text:
		d.textNode(t, x, y)
	case *ParameterReference:
		if t.contents != nil {
			cb := t.contents.Base()
			d.node(t.contents, x-cb.X, y-cb.Y)
		}
	case *Fence:
		d.fence(t, x, y)
	case *Fraction:
		d.fraction(t, x, y)
	case *Radical:
		d.radical(t, x, y)
	case *RelativeOffset:
		for _, p := range t.parts() {
			d.node(p, x, y)
		}
	case *Table:
		d.table(t, x, y)
	case *Drawing:
		if t.bgColor != "" {
			d.fillRect(float64(x), float64(y), float64(t.Width), float64(t.Height), parseColor(t.bgColor, 1))
		}
		d.primitives(t.primitives, frame{ox: float64(x), oy: float64(y), m: IdentityMatrix})
	case *GraphXY:
		d.graph(t, x, y)
	case *Input:
		d.input(t, x, y)
	case *Image:
		d.image(t, x, y)
	}
}

func (d *drawer) items(items []Node, x, y int) {
	for _, c := range items {
		d.node(c, x, y)
	}
}

func (d *drawer) nonwrap(s *Nonwrap, x, y int) {
	if s.bgColor != "" {
		d.fillRect(float64(x), float64(y), float64(s.Width), float64(s.Height), parseColor(s.bgColor, 1))
	}
	d.items(s.flow, x, y)
}

// glyphText 实际绘制的字符与字体, 虚数单位与自然常数以斜体字母显示
func glyphText(t *Text) (string, FontSpec) {
	font := t.fontSpec()
	if t.italic {
		font.Style |= StyleItalic
	}
	switch t.display {
	case "ⅇ":
		return "e", font
	case "ⅈ":
		return "i", font
	}
	return t.display, font
}

func (d *drawer) textNode(t *Text, x, y int) {
	s, font := glyphText(t)
	c := parseColor(t.ColorName(), 1)
	left := float64(x)
	if t.IsBoxed() {
		left += 2
		d.strokeRect(float64(x), float64(y), float64(t.Width), float64(t.Height), 1, c)
	}
	base := float64(y + t.BaseLine)
	w := d.text(s, font, c, left, base)
	if w == 0 {
		return
	}
	lw := max(1, font.Size/16)
	if t.FontStyle()&StyleUnderline != 0 {
		ly := base + font.Size/10
		d.line(left, ly, left+w, ly, lw, c)
	}
	if t.FontStyle()&StyleOverline != 0 {
		ly := float64(y) + lw
		d.line(left, ly, left+w, ly, lw, c)
	}
	if t.FontStyle()&StyleStrikethrough != 0 {
		ly := base - font.Size*0.3
		d.line(left, ly, left+w, ly, lw, c)
	}
}

// fence 括号按内容高度纵向拉伸
func (d *drawer) fence(f *Fence, x, y int) {
	d.items(f.flow, x, y)
	for _, g := range []*Text{f.open, f.close} {
		if g == nil {
			continue
		}
		if g.Height <= 0 || g.Height >= f.Height {
			d.node(g, x, y)
			continue
		}
		s, font := glyphText(g)
		face := d.face(font, parseColor(g.ColorName(), 1))
		if face == nil {
			continue
		}
		sy := float64(f.Height) / float64(g.Height)
		cx, cy := d.point(float64(x+g.X), float64(y+f.Height))
		d.ctx.Push()
		d.ctx.Translate(cx, cy)
		d.ctx.Scale(1, sy)
		d.ctx.DrawText(0, float64(g.Height-g.BaseLine)*pxToMM, canvas.NewTextLine(face, s, canvas.Left))
		d.ctx.Pop()
	}
}

func (d *drawer) fraction(f *Fraction, x, y int) {
	barY, t := f.Bar()
	d.fillRect(float64(x), float64(y+barY), float64(f.Width), float64(t), parseColor(f.ColorName(), 1))
	d.node(f.numerator, x, y)
	d.node(f.denominator, x, y)
}

func (d *drawer) radical(r *Radical, x, y int) {
	signX, signW, barY, barT := r.Sign()
	base := r.base.Base()
	bottom := float64(y + base.Y + base.Height)
	top := float64(y+barY) + float64(barT)/2
	left := float64(x + signX)
	w := float64(signW)
	hook := bottom - float64(base.Height)*0.45
	xs := []float64{left, left + w*0.15, left + w*0.45, left + w, float64(x + r.Width)}
	ys := []float64{hook + w*0.1, hook, bottom, top, top}
	d.strokePath(d.path(xs, ys, false), float64(barT), parseColor(r.ColorName(), 1), nil)
	d.node(r.base, x, y)
	if r.root != nil {
		d.node(r.root, x, y)
	}
}

func (d *drawer) table(t *Table, x, y int) {
	ox, oy := float64(x), float64(y)
	if t.bgColor != "" {
		d.fillRect(ox, oy, float64(t.Width), float64(t.Height), parseColor(t.bgColor, 1))
	}
	c := parseColor(t.ColorName(), 1)
	hw, vw := float64(t.hLineWidth), float64(t.vLineWidth)
	for i, row := range t.rows {
		top, bottom := float64(t.rowY[i]), float64(t.rowY[i+1])-hw
		for j, cell := range row {
			left, right := float64(t.colX[j]), float64(t.colX[j+1])-vw
			if cell.bgColor != "" {
				d.fillRect(ox+left, oy+top, right-left, bottom-top, parseColor(cell.bgColor, 1))
			}
			if vw > 0 && j+1 < len(row) && cell.lines&LineRight != 0 {
				d.fillRect(ox+right, oy+top, vw, bottom-top+hw, c)
			}
			if vw > 0 && j > 0 && cell.lines&LineLeft != 0 {
				d.fillRect(ox+left-vw, oy+top, vw, bottom-top+hw, c)
			}
			if hw > 0 && i+1 < len(t.rows) && cell.lines&LineBottom != 0 {
				d.fillRect(ox+left, oy+bottom, right-left+vw, hw, c)
			}
			if hw > 0 && i > 0 && cell.lines&LineTop != 0 {
				d.fillRect(ox+left, oy+top-hw, right-left+vw, hw, c)
			}
		}
	}
	if bw := float64(t.boxWidth); bw > 0 && t.Width > 0 {
		d.strokeRect(ox, oy, float64(t.Width), float64(t.Height), bw, c)
	}
	for _, row := range t.rows {
		for _, cell := range row {
			d.node(cell, x, y)
		}
	}
}

func (d *drawer) input(in *Input, x, y int) {
	ox, oy := float64(x), float64(y)
	w, h := float64(in.NodeBase.Width), float64(in.Height)
	c := parseColor(in.ColorName(), 1)
	if !in.IsEnabled(d.eval) {
		c = parseColor("gray", 1)
	}
	switch in.inputType {
	case InputRadioButton:
		xs, ys := ellipsePoints(ox+w/2, oy+h/2, w/2-1, h/2-1, 0, 360, false)
		d.strokePath(d.path(xs, ys, true), 1, c, nil)
		if in.selected {
			xs, ys = ellipsePoints(ox+w/2, oy+h/2, w/4, h/4, 0, 360, false)
			d.fillPath(d.path(xs, ys, true), c)
		}
	case InputCheckbox:
		d.strokeRect(ox+1, oy+1, w-2, h-2, 1, c)
		if in.selected {
			xs := []float64{ox + w*0.2, ox + w*0.45, ox + w*0.8}
			ys := []float64{oy + h*0.5, oy + h*0.75, oy + h*0.25}
			d.strokePath(d.path(xs, ys, false), max(1, h/10), c, nil)
		}
	default:
		if in.style == FieldUnderline {
			d.line(ox, oy+h-0.5, ox+w, oy+h-0.5, 1, c)
		} else {
			d.strokeRect(ox, oy, w, h, 1, c)
		}
		d.text(in.text, in.fontSpec(), c, ox+2, float64(y+in.BaseLine))
	}
}

func (d *drawer) image(im *Image, x, y int) {
	ox, oy := float64(x), float64(y)
	w, h := float64(im.Width), float64(im.Height)
	if w <= 0 || h <= 0 {
		return
	}
	if img := d.loadImage(im.src); img != nil {
		d.drawImage(img, ox, oy, w, h, 1)
		return
	}
	gray := parseColor("gray", 1)
	d.strokeRect(ox, oy, w, h, 1, gray)
	if im.alt != "" {
		f := im.fontSpec()
		asc, _ := d.r.measurer.lineMetrics(f)
		d.text(im.alt, f, gray, ox+2, oy+2+asc)
	}
}

// lineMetrics 字体的上升与下降高度(像素)
func (m *CanvasMeasurer) lineMetrics(f FontSpec) (float64, float64) {
	mt := m.Measure(f, "")
	return mt.Ascent, mt.Descent
}

// drawImage 将图片缩放到指定区域
func (d *drawer) drawImage(img image.Image, x, y, w, h, alpha float64) {
	ib := img.Bounds()
	iw, ih := float64(ib.Dx()), float64(ib.Dy())
	if iw <= 0 || ih <= 0 {
		return
	}
	if alpha >= 0 && alpha < 1 {
		img = fadeImage(img, alpha)
	}
	cx, cy := d.point(x, y+h)
	d.ctx.Push()
	d.ctx.Translate(cx, cy)
	d.ctx.Scale(w*pxToMM/iw, h*pxToMM/ih)
	d.ctx.DrawImage(0, 0, img, canvas.DPMM(1.0))
	d.ctx.Pop()
}

// fadeImage 按不透明度合成图片
func fadeImage(img image.Image, alpha float64) image.Image {
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	mask := image.NewUniform(color.Alpha{A: uint8(alpha*255 + 0.5)})
	xdraw.DrawMask(out, out.Bounds(), img, b.Min, mask, image.Point{}, xdraw.Over)
	return out
}

// loadImage 解析图片地址并解码, 支持 data URL 与本地路径, 结果在单次渲染内缓存
func (d *drawer) loadImage(src string) image.Image {
	if img, ok := d.images[src]; ok {
		return img
	}
	data, err := d.r.readAsset(src)
	var img image.Image
	if err == nil {
		img, _, err = image.Decode(bytes.NewReader(data))
	}
	if err != nil {
		d.r.logger.Warn("image unavailable", zap.String("src", src), zap.Error(err))
	}
	d.images[src] = img
	return img
}

// readAsset 读取图片数据
func (r *Renderer) readAsset(src string) ([]byte, error) {
	if rest, ok := strings.CutPrefix(src, "data:"); ok {
		meta, payload, found := strings.Cut(rest, ",")
		if !found {
			return nil, fmt.Errorf("malformed data url")
		}
		if strings.HasSuffix(meta, ";base64") {
			return base64.StdEncoding.DecodeString(payload)
		}
		s, err := url.PathUnescape(payload)
		return []byte(s), err
	}
	u, err := url.Parse(src)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "" && u.Scheme != "file" {
		return nil, fmt.Errorf("unsupported image scheme %q", u.Scheme)
	}
	if r.assets != nil {
		name := strings.TrimPrefix(path.Clean("/"+u.Path), "/")
		return fs.ReadFile(r.assets, name)
	}
	return os.ReadFile(u.Path)
}

// frame 图元坐标到页面像素坐标的变换
type frame struct {
	ox, oy float64
	m      Matrix
	yUp    bool
}

func (f frame) pt(x, y float64) (float64, float64) {
	tx, ty := f.m.Transform(x, y)
	return f.ox + tx, f.oy + ty
}

func (f frame) pts(xs, ys []float64) ([]float64, []float64) {
	outX, outY := make([]float64, len(xs)), make([]float64, len(xs))
	for i := range xs {
		outX[i], outY[i] = f.pt(xs[i], ys[i])
	}
	return outX, outY
}

// ellipsePoints 椭圆弧上的采样点, 角度按逆时针度数计算
// 入参: yUp 坐标系Y轴向上时为true
func ellipsePoints(cx, cy, rx, ry, start, extent float64, yUp bool) ([]float64, []float64) {
	n := max(8, int(math.Abs(extent)/5)+1)
	xs, ys := make([]float64, 0, n+1), make([]float64, 0, n+1)
	for i := 0; i <= n; i++ {
		x, y := arcPoint(cx, cy, rx, ry, start+extent*float64(i)/float64(n), yUp)
		xs, ys = append(xs, x), append(ys, y)
	}
	return xs, ys
}

func arcPoint(cx, cy, rx, ry, deg float64, yUp bool) (float64, float64) {
	rad := deg * math.Pi / 180
	if yUp {
		return cx + rx*math.Cos(rad), cy + ry*math.Sin(rad)
	}
	return cx + rx*math.Cos(rad), cy - ry*math.Sin(rad)
}

// anchorOrigin 按锚点计算文本左端与基线位置
// 入参: x, y 锚点, w 文本宽度, asc 上升高度, desc 下降高度
func anchorOrigin(a TextAnchor, x, y, w, asc, desc float64) (float64, float64) {
	left := x
	switch a {
	case AnchorS, AnchorC, AnchorN:
		left = x - w/2
	case AnchorSE, AnchorE, AnchorNE:
		left = x - w
	}
	base := y - desc
	switch a {
	case AnchorW, AnchorC, AnchorE:
		base = y + (asc-desc)/2
	case AnchorNW, AnchorN, AnchorNE:
		base = y + asc
	}
	return left, base
}

// anchoredText 按锚点绘制文本, highlight 非空时绘制背景
func (d *drawer) anchoredText(s string, st Style, alpha float64, x, y float64, a TextAnchor, highlight string) {
	if s == "" {
		return
	}
	f := FontSpec{Name: st.FontName, Size: st.FontSize, Style: st.FontStyle}
	m := d.r.measurer.Measure(f, s)
	left, base := anchorOrigin(a, x, y, m.Width, m.Ascent, m.Descent)
	if highlight != "" {
		d.fillRect(left-1, base-m.Ascent-1, m.Width+2, m.Ascent+m.Descent+2, parseColor(highlight, alpha))
	}
	d.text(s, f, parseColor(st.ColorName, alpha), left, base)
}

// anchoredNode 按锚点绘制已排版的富文本
func (d *drawer) anchoredNode(n Node, x, y float64, a TextAnchor) {
	b := n.Base()
	left, base := anchorOrigin(a, x, y, float64(b.Width), float64(b.BaseLine), float64(b.Height-b.BaseLine))
	top := base - float64(b.BaseLine)
	d.node(n, int(math.Round(left))-b.X, int(math.Round(top))-b.Y)
}

// primitives 绘制图元, 无法求值的图元被省略
func (d *drawer) primitives(list primitiveList, f frame) {
	for _, p := range list {
		if sp, ok := p.(*SpanPrimitive); ok {
			x, ok1 := sp.nums.eval(d.eval, "x", 0)
			y, ok2 := sp.nums.eval(d.eval, "y", 0)
			if ok1 && ok2 && sp.content != nil {
				px, py := f.pt(x, y)
				d.anchoredNode(sp.content, px, py, sp.anchor)
			}
			continue
		}
		inst := p.Instance(d.eval)
		if inst == nil {
			continue
		}
		if a, ok := inst.(*ArcInst); ok {
			var label *Nonwrap
			if arc, ok := p.(*Arc); ok {
				label = arc.labelSpan
			}
			d.arc(a, f, label)
			continue
		}
		d.primitive(inst, f)
	}
}

func (d *drawer) primitive(inst PrimitiveInst, f frame) {
	switch t := inst.(type) {
	case *LineInst:
		xs, ys := f.pts([]float64{t.X, t.X + t.Width}, []float64{t.Y, t.Y + t.Height})
		d.stroke(d.path(xs, ys, false), t.Stroke)
	case *RectangleInst:
		xs, ys := f.pts(rectPoints(t.Bounds.X, t.Bounds.Y, t.Bounds.W, t.Bounds.H))
		p := d.path(xs, ys, true)
		d.fill(p, t.Fill)
		d.stroke(p, t.Stroke)
	case *OvalInst:
		b := t.Bounds
		xs, ys := f.pts(ellipsePoints(b.X+b.W/2, b.Y+b.H/2, b.W/2, b.H/2, 0, 360, f.yUp))
		p := d.path(xs, ys, true)
		d.fill(p, t.Fill)
		d.stroke(p, t.Stroke)
	case *PolygonInst:
		xs, ys := f.pts(t.Xs, t.Ys)
		p := d.path(xs, ys, t.Closed)
		if t.Closed {
			d.fill(p, t.Fill)
		}
		d.stroke(p, t.Stroke)
	case *FormulaPlotInst:
		for i := range t.Segments {
			d.primitive(&t.Segments[i], f)
		}
	case *ProtractorInst:
		d.protractor(t, f)
	case *RasterInst:
		x0, y0 := f.pt(t.Bounds.X, t.Bounds.Y)
		x1, y1 := f.pt(t.Bounds.X+t.Bounds.W, t.Bounds.Y+t.Bounds.H)
		if img := d.loadImage(t.Source); img != nil {
			d.drawImage(img, min(x0, x1), min(y0, y1), math.Abs(x1-x0), math.Abs(y1-y0), t.Alpha)
		}
	case *TextPrimitiveInst:
		x, y := f.pt(t.X, t.Y)
		d.anchoredText(t.Text, t.Style, t.Alpha, x, y, t.Anchor, t.Highlight)
	}
}

// arc 绘制椭圆弧, 有填充时绘制扇形
func (d *drawer) arc(a *ArcInst, f frame, label *Nonwrap) {
	b := a.Bounds
	cx, cy, rx, ry := b.X+b.W/2, b.Y+b.H/2, b.W/2, b.H/2
	xs, ys := ellipsePoints(cx, cy, rx, ry, a.StartAngle, a.ArcAngle, f.yUp)
	full := math.Abs(a.ArcAngle) >= 360
	if a.Fill != nil {
		fx, fy := xs, ys
		if !full {
			fx, fy = append([]float64{cx}, xs...), append([]float64{cy}, ys...)
		}
		px, py := f.pts(fx, fy)
		d.fill(d.path(px, py, true), a.Fill)
	}
	px, py := f.pts(xs, ys)
	d.stroke(d.path(px, py, full), a.Stroke)

	ray := func(deg float64) {
		ex, ey := arcPoint(cx, cy, rx, ry, deg, f.yUp)
		if a.RayLength > 0 {
			ex, ey = arcPoint(cx, cy, a.RayLength, a.RayLength, deg, f.yUp)
		}
		rxs, rys := f.pts([]float64{cx, ex}, []float64{cy, ey})
		d.stroke(d.path(rxs, rys, false), a.RayStroke)
	}
	if a.RaysShown == RaysInitial || a.RaysShown == RaysBoth {
		ray(a.StartAngle)
	}
	if a.RaysShown == RaysTerminal || a.RaysShown == RaysBoth {
		ray(a.StartAngle + a.ArcAngle)
	}

	mid := a.StartAngle + a.ArcAngle/2
	lx, ly := arcPoint(cx, cy, rx+a.LabelOffset, ry+a.LabelOffset, mid, f.yUp)
	lx, ly = f.pt(lx, ly)
	if label != nil {
		d.anchoredNode(label, lx, ly, AnchorC)
	} else if a.Label != "" {
		d.anchoredText(a.Label, a.LabelStyle, a.LabelAlpha, lx, ly, AnchorC, "")
	}
}

// protractor 绘制量角器: 外弧、底边、刻度与刻度值
func (d *drawer) protractor(p *ProtractorInst, f frame) {
	if p.Stroke == nil || p.R <= 0 {
		return
	}
	q := min(max(p.Quadrants, 1), 4)
	extent := float64(q) * 90
	c := parseColor(p.Stroke.ColorName, p.Stroke.Alpha)
	xs, ys := ellipsePoints(p.CX, p.CY, p.R, p.R, p.Orientation, extent, f.yUp)
	if q < 4 {
		xs, ys = append(append([]float64{p.CX}, xs...), p.CX), append(append([]float64{p.CY}, ys...), p.CY)
	}
	px, py := f.pts(xs, ys)
	d.strokePath(d.path(px, py, false), p.Stroke.Width, c, nil)

	fontSize := min(max(p.R/8, 8), 16)
	st := Style{ColorName: colorOr(p.TextColorName, p.Stroke.ColorName), FontSize: fontSize}
	step, labelEvery := 5.0, 6
	if p.Units == UnitsRadians {
		step, labelEvery = 7.5, 6
	}
	n := int(extent / step)
	for i := 0; i <= n; i++ {
		if q == 4 && i == n {
			break
		}
		deg := p.Orientation + float64(i)*step
		tick := p.R * 0.05
		if i%labelEvery == 0 {
			tick = p.R * 0.1
		}
		x0, y0 := arcPoint(p.CX, p.CY, p.R-tick, p.R-tick, deg, f.yUp)
		x1, y1 := arcPoint(p.CX, p.CY, p.R, p.R, deg, f.yUp)
		txs, tys := f.pts([]float64{x0, x1}, []float64{y0, y1})
		d.strokePath(d.path(txs, tys, false), p.Stroke.Width, c, nil)
		if i%labelEvery != 0 {
			continue
		}
		lr := p.R - tick - fontSize
		lx, ly := f.pt(arcPoint(p.CX, p.CY, lr, lr, deg, f.yUp))
		d.anchoredText(protractorLabel(i/labelEvery, p.Units), st, p.Stroke.Alpha, lx, ly, AnchorC, "")
	}
}

// protractorLabel 第k个主刻度的标签, 角度制每格30度, 弧度制每格π/4
func protractorLabel(k int, units AngleUnits) string {
	if units != UnitsRadians {
		return fmt.Sprintf("%d°", k*30)
	}
	if k == 0 {
		return "0"
	}
	g := gcd(k, 4)
	num, den := k/g, 4/g
	s := "π"
	if num != 1 {
		s = fmt.Sprintf("%dπ", num)
	}
	if den != 1 {
		s += fmt.Sprintf("/%d", den)
	}
	return s
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// autoTickInterval 未设置刻度间隔时取 1、2、5 乘10的整数次幂中使刻度数不超过10的最小值
func autoTickInterval(v, span float64) float64 {
	if v > 0 {
		return v
	}
	if span <= 0 {
		return 0
	}
	raw := span / 10
	exp := math.Pow(10, math.Floor(math.Log10(raw)))
	for _, m := range []float64{1, 2, 5, 10} {
		if m*exp >= raw {
			return m * exp
		}
	}
	return 10 * exp
}

// graph 绘制坐标图: 背景、网格、坐标轴、刻度、图元与边框
func (d *drawer) graph(g *GraphXY, x, y int) {
	s := g.style
	ox, oy := float64(x), float64(y)
	w, h := float64(g.width), float64(g.height)
	if s.BgColor != "" {
		d.fillRect(ox, oy, w, h, parseColor(s.BgColor, 1))
	}
	f := frame{ox: ox, oy: oy, m: g.Matrix(), yUp: true}
	win := g.window
	x0, x1, y0, y1 := win.X, win.X+win.W, win.Y, win.Y+win.H
	xAxis := y0 <= 0 && 0 <= y1
	yAxis := x0 <= 0 && 0 <= x1
	skipZero := xAxis && yAxis && s.AxisWidth > 0
	xTicks := Ticks(x0, x1, autoTickInterval(s.XTickInterval, win.W), skipZero)
	yTicks := Ticks(y0, y1, autoTickInterval(s.YTickInterval, win.H), skipZero)

	if s.GridWidth > 0 {
		gc := parseColor(colorOr(s.GridColor, defaultGridColor), 1)
		for _, t := range xTicks {
			xs, ys := f.pts([]float64{t.Value, t.Value}, []float64{y0, y1})
			d.strokePath(d.path(xs, ys, false), float64(s.GridWidth), gc, nil)
		}
		for _, t := range yTicks {
			xs, ys := f.pts([]float64{x0, x1}, []float64{t.Value, t.Value})
			d.strokePath(d.path(xs, ys, false), float64(s.GridWidth), gc, nil)
		}
	}

	ac := parseColor(colorOr(s.AxisColor, defaultAxisColor), 1)
	axisStyle := Style{ColorName: colorOr(s.AxisColor, defaultAxisColor), FontSize: float64(s.AxisLabelFontSize), FontStyle: StyleItalic}
	if s.AxisWidth > 0 && xAxis {
		xs, ys := f.pts([]float64{x0, x1}, []float64{0, 0})
		d.strokePath(d.path(xs, ys, false), float64(s.AxisWidth), ac, nil)
		d.anchoredText(s.XAxisLabel, axisStyle, 1, xs[1]-4, ys[1]-4, AnchorSE, "")
	}
	if s.AxisWidth > 0 && yAxis {
		xs, ys := f.pts([]float64{0, 0}, []float64{y0, y1})
		d.strokePath(d.path(xs, ys, false), float64(s.AxisWidth), ac, nil)
		d.anchoredText(s.YAxisLabel, axisStyle, 1, xs[1]+4, ys[1]+4, AnchorNW, "")
	}

	if s.TickWidth > 0 && s.TickSize > 0 {
		tc := parseColor(colorOr(s.TickColor, defaultTickColor), 1)
		labelStyle := Style{ColorName: colorOr(s.TickColor, defaultTickColor), FontSize: float64(s.TickLabelFontSize)}
		half := float64(s.TickSize) / 2
		ay := min(max(0, y0), y1)
		for _, t := range xTicks {
			px, py := f.pt(t.Value, ay)
			d.line(px, py-half, px, py+half, float64(s.TickWidth), tc)
			d.anchoredText(t.Label, labelStyle, 1, px, py+half+2, AnchorN, "")
		}
		ax := min(max(0, x0), x1)
		for _, t := range yTicks {
			px, py := f.pt(ax, t.Value)
			d.line(px-half, py, px+half, py, float64(s.TickWidth), tc)
			d.anchoredText(t.Label, labelStyle, 1, px-half-2, py, AnchorE, "")
		}
	}

	d.primitives(g.primitives, f)

	if s.BorderWidth > 0 {
		d.strokeRect(ox, oy, w, h, float64(s.BorderWidth), parseColor(colorOr(s.BorderColor, defaultBorderColor), 1))
	}
}
