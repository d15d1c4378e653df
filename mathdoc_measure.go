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
	"sync"

	"github.com/tdewolff/canvas"
)

// mmPerPoint 画布以毫米为单位, 度量结果换算为点, 排版中一点记作一像素
const mmPerPoint = 25.4 / 72

// faceKey 字体实例缓存键
type faceKey struct {
	name  string
	size  float64
	style FontStyle
}

// CanvasMeasurer 基于画布字体的文本度量
// 可在多个协程间共享
type CanvasMeasurer struct {
	fonts *FontRegistry
	faces sync.Map
}

// NewCanvasMeasurer 创建文本度量器
// 入参: fonts 字体注册表, 为nil时使用共享注册表
// 返回: *CanvasMeasurer 度量器
func NewCanvasMeasurer(fonts *FontRegistry) *CanvasMeasurer {
	if fonts == nil {
		fonts = DefaultFontRegistry()
	}
	return &CanvasMeasurer{fonts: fonts}
}

var (
	defaultMeasurerOnce sync.Once
	defaultMeasurer     *CanvasMeasurer
)

// DefaultMeasurer 使用共享字体注册表的度量器
func DefaultMeasurer() Measurer {
	defaultMeasurerOnce.Do(func() {
		defaultMeasurer = NewCanvasMeasurer(nil)
	})
	return defaultMeasurer
}

// face 获取字体实例, 字号单位为点
func (m *CanvasMeasurer) face(f FontSpec) *canvas.FontFace {
	size := f.Size
	if size <= 0 || math.IsNaN(size) || math.IsInf(size, 0) {
		size = DefaultFontSize
	}
	key := faceKey{name: f.Name, size: size, style: f.Style & (StyleBold | StyleItalic)}
	if v, ok := m.faces.Load(key); ok {
		return v.(*canvas.FontFace)
	}
	ff := m.fonts.Family(f.Name)
	if ff == nil {
		return nil
	}
	face := ff.Face(size, canvas.Black, canvasStyle(key.style), canvas.FontNormal)
	v, _ := m.faces.LoadOrStore(key, face)
	return v.(*canvas.FontFace)
}

// Measure 度量文本宽度与字体的上升、下降高度
// 入参: f 字体, text 文本
// 返回: Metrics 度量结果(像素)
func (m *CanvasMeasurer) Measure(f FontSpec, text string) Metrics {
	face := m.face(f)
	if face == nil {
		size := f.Size
		if size <= 0 {
			size = DefaultFontSize
		}
		return Metrics{Width: 0.5 * size * float64(len([]rune(text))), Ascent: 0.8 * size, Descent: 0.2 * size}
	}
	fm := face.Metrics()
	return Metrics{
		Width:   face.TextWidth(text) / mmPerPoint,
		Ascent:  math.Abs(fm.Ascent) / mmPerPoint,
		Descent: math.Abs(fm.Descent) / mmPerPoint,
	}
}

// FixedMeasurer 按固定比例估算的度量器, 不依赖字体数据
// 每个字符宽度为字号的 WidthRatio 倍
type FixedMeasurer struct {
	WidthRatio   float64
	AscentRatio  float64
	DescentRatio float64
}

// Measure 度量文本
func (m FixedMeasurer) Measure(f FontSpec, text string) Metrics {
	size := f.Size
	if size <= 0 {
		size = DefaultFontSize
	}
	n := float64(len([]rune(text)))
	return Metrics{Width: m.WidthRatio * size * n, Ascent: m.AscentRatio * size, Descent: m.DescentRatio * size}
}
