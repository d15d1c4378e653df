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
	"sort"
	"strings"

	starlarkmath "go.starlark.net/lib/math"
	"go.starlark.net/resolve"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// formulaBuiltins 公式中可直接使用的预定义名称
var formulaBuiltins = starlark.StringDict{
	"math": starlarkmath.Module,
}

// Formula 延迟求值的表达式
type Formula struct {
	source string
	vars   []string
}

// ParseFormula 解析表达式并校验其引用的变量
// 入参: src 表达式源码, ctx 求值上下文(为nil时不校验变量)
// 返回: *Formula 公式, error 错误信息
func ParseFormula(src string, ctx *EvalContext) (*Formula, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, errors.New("empty formula")
	}
	expr, err := syntax.ParseExpr("formula", src, 0)
	if err != nil {
		return nil, fmt.Errorf("invalid formula %q: %w", src, err)
	}
	vars, err := referencedNames(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid formula %q: %w", src, err)
	}
	if ctx != nil {
		for _, name := range vars {
			if ctx.GetVariable(name) == nil {
				return nil, fmt.Errorf("formula %q references unknown variable %q", src, name)
			}
		}
	}
	return &Formula{source: src, vars: vars}, nil
}

// referencedNames 收集表达式中引用的自由变量名
// lambda 参数与推导式循环变量只在各自的作用域内绑定, 由解析器按作用域处理
// 入参: expr 语法树
// 返回: []string 已排序的变量名, error 解析失败时返回
func referencedNames(expr syntax.Expr) ([]string, error) {
	seen := make(map[string]bool)
	var names []string
	free := func(name string) bool {
		if !isBuiltinName(name) && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
		return true
	}
	if _, err := resolve.ExprOptions(&syntax.FileOptions{}, expr, free, func(string) bool { return false }); err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// isBuiltinName 判断名称是否为预定义名称
func isBuiltinName(name string) bool {
	if _, ok := formulaBuiltins[name]; ok {
		return true
	}
	_, ok := starlark.Universe[name]
	return ok
}

// Source 获取规范化的表达式源码
func (f *Formula) Source() string {
	return f.source
}

// String 同 Source
func (f *Formula) String() string {
	return f.source
}

// VariableNames 获取公式引用的变量名
// 返回: []string 已排序的变量名
func (f *Formula) VariableNames() []string {
	return append([]string(nil), f.vars...)
}

// DependsOnlyOnInputs 判断公式是否只引用输入变量
// 入参: ctx 求值上下文
// 返回: bool 引用了至少一个变量且全部为输入变量时为真
func (f *Formula) DependsOnlyOnInputs(ctx *EvalContext) bool {
	if len(f.vars) == 0 {
		return false
	}
	for _, name := range f.vars {
		if !ctx.IsInput(name) {
			return false
		}
	}
	return true
}

// Evaluate 在上下文中求值
// 入参: ctx 求值上下文
// 返回: any 结果(int64, float64, string 或 bool), error 错误信息
func (f *Formula) Evaluate(ctx *EvalContext) (any, error) {
	env := make(starlark.StringDict, len(f.vars)+len(formulaBuiltins))
	for k, v := range formulaBuiltins {
		env[k] = v
	}
	for _, name := range f.vars {
		v := ctx.GetVariable(name)
		if v == nil || v.Value == nil {
			return nil, fmt.Errorf("variable %q has no value", name)
		}
		sv, err := toStarlark(v.Value)
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", name, err)
		}
		env[name] = sv
	}
	thread := &starlark.Thread{Name: "mathdoc"}
	thread.SetMaxExecutionSteps(ctx.maxSteps())
	val, err := starlark.Eval(thread, "formula", f.source, env)
	if err != nil {
		return nil, fmt.Errorf("formula %q: %w", f.source, err)
	}
	return fromStarlark(val)
}

// EvaluateBool 求值为布尔值
// 入参: ctx 求值上下文
// 返回: bool 结果, error 错误信息
func (f *Formula) EvaluateBool(ctx *EvalContext) (bool, error) {
	v, err := f.Evaluate(ctx)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("formula %q did not evaluate to a boolean", f.source)
	}
	return b, nil
}

// toStarlark 转换变量值
func toStarlark(v any) (starlark.Value, error) {
	switch t := v.(type) {
	case int64:
		return starlark.MakeInt64(t), nil
	case int:
		return starlark.MakeInt(t), nil
	case float64:
		return starlark.Float(t), nil
	case string:
		return starlark.String(t), nil
	case bool:
		return starlark.Bool(t), nil
	case *Span:
		return starlark.String(t.PlainText()), nil
	}
	return nil, fmt.Errorf("unsupported value type %T", v)
}

// fromStarlark 转换求值结果
func fromStarlark(v starlark.Value) (any, error) {
	switch t := v.(type) {
	case starlark.Int:
		if i, ok := t.Int64(); ok {
			return i, nil
		}
		return float64(t.Float()), nil
	case starlark.Float:
		return float64(t), nil
	case starlark.String:
		return string(t), nil
	case starlark.Bool:
		return bool(t), nil
	}
	return nil, fmt.Errorf("unsupported result type %s", v.Type())
}
