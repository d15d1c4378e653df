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
	"errors"
	"fmt"

	"github.com/beevik/etree"
	"go.uber.org/zap"
)

// ParserMode 解析模式
type ParserMode struct {
	// ReportDeprecated 为真时对过时语法记录警告
	ReportDeprecated bool
}

// ParseError 结构或取值错误
type ParseError struct {
	Path    string
	Tag     string
	Message string
}

// Error 实现 error 接口
func (e *ParseError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Diagnostic 一条解析诊断信息
type Diagnostic struct {
	Path    string
	Tag     string
	Message string
	Warning bool
}

// String 输出诊断文本
func (d Diagnostic) String() string {
	level := "error"
	if d.Warning {
		level = "warning"
	}
	return fmt.Sprintf("%s %s: %s", level, d.Path, d.Message)
}

// Diagnostics 解析过程中累积的错误与警告
type Diagnostics struct {
	items  []Diagnostic
	logger *zap.Logger
}

// newDiagnostics 创建诊断收集器
// 入参: logger 日志记录器
// 返回: *Diagnostics 收集器
func newDiagnostics(logger *zap.Logger) *Diagnostics {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Diagnostics{logger: logger}
}

func (d *Diagnostics) add(elem *etree.Element, warning bool, msg string) {
	item := Diagnostic{Message: msg, Warning: warning}
	if elem != nil {
		item.Path = elem.GetPath()
		item.Tag = elem.Tag
	}
	d.items = append(d.items, item)
	if warning {
		d.logger.Debug("parse warning", zap.String("path", item.Path), zap.String("msg", msg))
	} else {
		d.logger.Debug("parse error", zap.String("path", item.Path), zap.String("msg", msg))
	}
}

// errorf 记录错误
func (d *Diagnostics) errorf(elem *etree.Element, format string, args ...any) {
	d.add(elem, false, fmt.Sprintf(format, args...))
}

// deprecated 在需要时记录过时语法警告
func (d *Diagnostics) deprecated(elem *etree.Element, mode ParserMode, format string, args ...any) {
	if mode.ReportDeprecated {
		d.add(elem, true, fmt.Sprintf(format, args...))
	}
}

// All 获取全部诊断
func (d *Diagnostics) All() []Diagnostic {
	return append([]Diagnostic(nil), d.items...)
}

// Errors 获取全部错误
func (d *Diagnostics) Errors() []Diagnostic {
	var out []Diagnostic
	for _, it := range d.items {
		if !it.Warning {
			out = append(out, it)
		}
	}
	return out
}

// Warnings 获取全部警告
func (d *Diagnostics) Warnings() []Diagnostic {
	var out []Diagnostic
	for _, it := range d.items {
		if it.Warning {
			out = append(out, it)
		}
	}
	return out
}

// HasErrors 是否存在错误
func (d *Diagnostics) HasErrors() bool {
	for _, it := range d.items {
		if !it.Warning {
			return true
		}
	}
	return false
}

// Err 合并全部错误, 无错误时返回nil
// 返回: error 错误信息
func (d *Diagnostics) Err() error {
	var errs []error
	for _, it := range d.items {
		if !it.Warning {
			errs = append(errs, &ParseError{Path: it.Path, Tag: it.Tag, Message: it.Message})
		}
	}
	return errors.Join(errs...)
}
