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
	"io"

	"github.com/beevik/etree"
	"github.com/google/uuid"
)

// ErrNotRealized 文档在给定上下文中无法生成实例
var ErrNotRealized = errors.New("mathdoc: document cannot be realized in this context")

// writeNumberOrFormula 常量写为属性, 公式写为同名子元素
func writeNumberOrFormula(e *etree.Element, name string, v NumberOrFormula) {
	if n, ok := v.Number(); ok {
		e.CreateAttr(name, formatNumber(n))
		return
	}
	if f := v.Formula(); f != nil {
		e.CreateElement(name).CreateElement("expr").CreateCharData(f.Source())
	}
}

// newXMLDocument 创建不带声明的XML文档, 输出不缩进
func newXMLDocument() *etree.Document {
	doc := etree.NewDocument()
	doc.WriteSettings.CanonicalEndTags = false
	return doc
}

// ToXML 输出模板的XML, 重新解析后得到等价的模板
// 入参: n 模板节点
// 返回: string XML文本
func ToXML(n Node) string {
	if n == nil {
		return ""
	}
	doc := newXMLDocument()
	n.writeXML(&doc.Element)
	s, _ := doc.WriteToString()
	return s
}

// WriteXML 将模板的XML写入w
// 入参: w 输出, n 模板节点
// 返回: error 写入错误
func WriteXML(w io.Writer, n Node) error {
	doc := newXMLDocument()
	n.writeXML(&doc.Element)
	_, err := doc.WriteTo(w)
	return err
}

// InstToXML 输出实例的XML, 其中只剩常量与输入控件的启用公式
// 入参: n 实例节点
// 返回: string XML文本
func InstToXML(n InstNode) string {
	if n == nil {
		return ""
	}
	doc := newXMLDocument()
	n.writeXML(&doc.Element)
	s, _ := doc.WriteToString()
	return s
}

// DocInst 一份已生成的文档实例
type DocInst struct {
	// ID 实例标识
	ID uuid.UUID
	// Root 实例树根节点
	Root *ColumnInst

	inputs *EvalContext
}

// Realize 在上下文中生成文档实例
// 入参: col 文档模板, ctx 求值上下文
// 返回: *DocInst 文档实例, error 任一节点无法求值时返回 ErrNotRealized
func Realize(col *Column, ctx *EvalContext) (*DocInst, error) {
	if col == nil {
		return nil, ErrNotRealized
	}
	root, ok := col.Instance(ctx).(*ColumnInst)
	if !ok || root == nil {
		return nil, ErrNotRealized
	}
	inputs := NewEvalContext()
	inputs.SetLogger(ctx.Logger())
	inputs.MaxSteps = ctx.maxSteps()
	for _, name := range ctx.InputVariableNames() {
		v := *ctx.GetVariable(name)
		inputs.AddVariable(&v)
	}
	return &DocInst{ID: uuid.New(), Root: root, inputs: inputs}, nil
}

// XML 实例的XML
func (d *DocInst) XML() string {
	return InstToXML(d.Root)
}

// InputContext 只含输入变量的上下文, 实例中的公式只能引用这些变量
func (d *DocInst) InputContext() *EvalContext {
	return d.inputs
}

// Template 将实例重新解析为模板, 用于排版或再次输出
// 返回: *Column 模板, error 解析错误
func (d *DocInst) Template() (*Column, error) {
	col, diag := ParseString(d.XML(), d.inputs)
	if diag.HasErrors() {
		return nil, diag.Err()
	}
	col.SetColumnWidth(d.Root.Width)
	return col, nil
}

// Layout 排版实例, 布局结果写入返回的模板
// 入参: m 度量器, 为nil时使用内置字体度量
// 返回: *Column 已排版的模板, error 解析错误
func (d *DocInst) Layout(m Measurer) (*Column, error) {
	col, err := d.Template()
	if err != nil {
		return nil, err
	}
	col.Layout(NewLayoutContext(d.inputs, m), ModeText)
	return col, nil
}

// Inputs 实例中的输入控件, 按文档顺序排列
func (d *DocInst) Inputs() []*InputInst {
	return InstInputs(d.Root)
}
