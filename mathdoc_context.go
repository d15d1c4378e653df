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
	"sort"

	"go.uber.org/zap"
)

// DefaultMaxSteps 单次公式求值允许的最大执行步数
const DefaultMaxSteps = 100000

// Variable 求值上下文中的变量
// Value 可以是 int64, float64, string, bool, *Span 或 nil(尚未赋值)
// Input 为真时变量由作答者控制
type Variable struct {
	Name  string
	Value any
	Input bool
}

// EvalContext 公式求值上下文
type EvalContext struct {
	vars     map[string]*Variable
	parent   *EvalContext
	MaxSteps uint64
	logger   *zap.Logger
}

// NewEvalContext 创建求值上下文
// 入参: vars 初始变量
// 返回: *EvalContext 上下文实例
func NewEvalContext(vars ...*Variable) *EvalContext {
	c := &EvalContext{
		vars:     make(map[string]*Variable, len(vars)),
		MaxSteps: DefaultMaxSteps,
		logger:   zap.NewNop(),
	}
	for _, v := range vars {
		c.AddVariable(v)
	}
	return c
}

// AddVariable 添加或替换变量
// 入参: v 变量
func (c *EvalContext) AddVariable(v *Variable) {
	if v == nil || v.Name == "" {
		return
	}
	c.vars[v.Name] = v
}

// GetVariable 按名称查找变量
// 入参: name 变量名
// 返回: *Variable 变量, 不存在时为nil
func (c *EvalContext) GetVariable(name string) *Variable {
	for ; c != nil; c = c.parent {
		if v, ok := c.vars[name]; ok {
			return v
		}
	}
	return nil
}

// VariableNames 获取全部变量名
// 返回: []string 已排序的变量名
func (c *EvalContext) VariableNames() []string {
	if c == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(c.vars))
	for n := c; n != nil; n = n.parent {
		for name := range n.vars {
			seen[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// InputVariableNames 获取全部输入变量名
// 返回: []string 已排序的变量名
func (c *EvalContext) InputVariableNames() []string {
	var names []string
	for _, name := range c.VariableNames() {
		if c.GetVariable(name).Input {
			names = append(names, name)
		}
	}
	return names
}

// IsInput 判断变量是否为输入变量
func (c *EvalContext) IsInput(name string) bool {
	v := c.GetVariable(name)
	return v != nil && v.Input
}

// SetLogger 设置日志记录器
// 入参: logger 日志记录器, nil 表示不记录
func (c *EvalContext) SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c.logger = logger
}

// Logger 获取日志记录器
func (c *EvalContext) Logger() *zap.Logger {
	if c == nil || c.logger == nil {
		return zap.NewNop()
	}
	return c.logger
}

// maxSteps 获取求值步数上限
func (c *EvalContext) maxSteps() uint64 {
	if c == nil || c.MaxSteps == 0 {
		return DefaultMaxSteps
	}
	return c.MaxSteps
}

// withVariable 创建覆盖单个变量的子上下文
func (c *EvalContext) withVariable(v *Variable) *EvalContext {
	child := &EvalContext{
		vars:     map[string]*Variable{v.Name: v},
		parent:   c,
		MaxSteps: c.maxSteps(),
		logger:   c.Logger(),
	}
	return child
}

// Copy 复制上下文, 变量记录也被复制
// 返回: *EvalContext 新上下文
func (c *EvalContext) Copy() *EvalContext {
	out := NewEvalContext()
	out.MaxSteps = c.maxSteps()
	out.logger = c.Logger()
	for _, name := range c.VariableNames() {
		v := *c.GetVariable(name)
		out.vars[name] = &v
	}
	return out
}

// SetValue 设置已存在变量的值
// 入参: name 变量名, value 新值
// 返回: bool 变量是否存在
func (c *EvalContext) SetValue(name string, value any) bool {
	v := c.GetVariable(name)
	if v == nil {
		return false
	}
	v.Value = value
	return true
}
