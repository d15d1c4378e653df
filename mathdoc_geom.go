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
)

// Box 矩形区域
type Box struct {
	X, Y, W, H float64
}

// Contains 判断点是否位于区域内(含边界)
func (b Box) Contains(x, y float64) bool {
	return x >= b.X && x <= b.X+b.W && y >= b.Y && y <= b.Y+b.H
}

// Matrix 2D仿射变换矩阵
type Matrix struct {
	a, b, c, d, e, f float64
}

// IdentityMatrix 单位矩阵
var IdentityMatrix = Matrix{1, 0, 0, 1, 0, 0}

// WindowMatrix 图形坐标到像素坐标的变换
// 像素坐标的Y轴向下, 图形坐标的Y轴向上
// 入参: window 图形坐标窗口(X,Y 为左下角), pixels 像素区域
// 返回: Matrix 变换矩阵
func WindowMatrix(window, pixels Box) Matrix {
	if window.W == 0 || window.H == 0 {
		return IdentityMatrix
	}
	sx := pixels.W / window.W
	sy := pixels.H / window.H
	return Matrix{
		a: sx, d: -sy,
		e: pixels.X - window.X*sx,
		f: pixels.Y + pixels.H + window.Y*sy,
	}
}

// Multiply 矩阵乘法 (m * o)
// 入参: o 右侧矩阵
// 返回: Matrix 结果矩阵
func (m Matrix) Multiply(o Matrix) Matrix {
	return Matrix{
		a: m.a*o.a + m.c*o.b,
		b: m.b*o.a + m.d*o.b,
		c: m.a*o.c + m.c*o.d,
		d: m.b*o.c + m.d*o.d,
		e: m.a*o.e + m.c*o.f + m.e,
		f: m.b*o.e + m.d*o.f + m.f,
	}
}

// Transform 应用变换矩阵
// 入参: x X坐标, y Y坐标
// 返回: float64 变换后X, float64 变换后Y
func (m Matrix) Transform(x, y float64) (float64, float64) {
	nx := m.a*x + m.c*y + m.e
	ny := m.b*x + m.d*y + m.f
	return nx, ny
}

// XScale 获取X轴缩放比例
func (m Matrix) XScale() float64 {
	return math.Sqrt(m.a*m.a + m.b*m.b)
}

// YScale 获取Y轴缩放比例
// 返回: float64 缩放比例
func (m Matrix) YScale() float64 {
	return math.Sqrt(m.c*m.c + m.d*m.d)
}

// Invert 求逆矩阵, 不可逆时返回单位矩阵
// 返回: Matrix 逆矩阵, bool 是否可逆
func (m Matrix) Invert() (Matrix, bool) {
	det := m.a*m.d - m.b*m.c
	if det == 0 {
		return IdentityMatrix, false
	}
	return Matrix{
		a: m.d / det, b: -m.b / det,
		c: -m.c / det, d: m.a / det,
		e: (m.c*m.f - m.d*m.e) / det,
		f: (m.b*m.e - m.a*m.f) / det,
	}, true
}

// parseFloats 解析逗号或空白分隔的浮点数数组
// 入参: s 字符串
// 返回: []float64 浮点数数组, bool 全部解析成功时为真
func parseFloats(s string) ([]float64, bool) {
	s = strings.ReplaceAll(s, ",", " ")
	parts := strings.Fields(s)
	result := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, false
		}
		result = append(result, v)
	}
	return result, len(result) > 0
}
