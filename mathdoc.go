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

// Package mathdoc 数学测评文档模型: 解析XML模板, 在参数上下文中生成实例, 排版并输出为XML、LaTeX与图形
package mathdoc

import (
	"fmt"
	"image/png"
	"io"
	"path/filepath"
	"strings"
)

// Version 库版本
const Version = "0.3.0"

// Format 渲染输出格式
type Format string

// 支持的输出格式
const (
	FormatPNG Format = "png"
	FormatSVG Format = "svg"
	FormatPDF Format = "pdf"
	FormatEPS Format = "eps"
)

// ParseFormat 解析输出格式名称
// 入参: s 格式名称或带扩展名的文件名
// 返回: Format 格式, error 不支持时返回
func ParseFormat(s string) (Format, error) {
	if ext := filepath.Ext(s); ext != "" {
		s = ext[1:]
	}
	switch f := Format(strings.ToLower(s)); f {
	case FormatPNG, FormatSVG, FormatPDF, FormatEPS:
		return f, nil
	}
	return "", fmt.Errorf("unsupported output format %q", s)
}

// RenderTo 按格式渲染文档并写入w
// 入参: col 文档模板, ctx 求值上下文, format 输出格式, w 输出流
// 返回: error 错误信息
func (r *Renderer) RenderTo(col *Column, ctx *EvalContext, format Format, w io.Writer) error {
	switch format {
	case FormatSVG:
		return r.RenderToSVG(col, ctx, w)
	case FormatPDF:
		return r.RenderToPDF(col, ctx, w)
	case FormatEPS:
		return r.RenderToEPS(col, ctx, w)
	case FormatPNG:
		img, err := r.RenderToImage(col, ctx)
		if err != nil {
			return err
		}
		return png.Encode(w, img)
	}
	return fmt.Errorf("unsupported output format %q", format)
}

// Check 解析文档并在上下文中生成实例, 返回全部诊断信息
// 入参: path 文件路径, ctx 求值上下文, opts 解析选项
// 返回: *Column 文档模板, *Diagnostics 错误与警告, error 无法生成实例时返回
func Check(path string, ctx *EvalContext, opts ...ParseOption) (*Column, *Diagnostics, error) {
	col, diag := ParseFile(path, ctx, opts...)
	if diag.HasErrors() {
		return nil, diag, diag.Err()
	}
	if _, err := Realize(col, ctx); err != nil {
		return col, diag, err
	}
	return col, diag, nil
}
