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
	"fmt"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Config 文档渲染与求值设置
type Config struct {
	// FontName 文档根节点未指定字体时使用的字体
	FontName string `yaml:"font_name"`
	// FontSize 文档根节点未指定字号时使用的字号(像素)
	FontSize float64 `yaml:"font_size"`
	DPI      float64 `yaml:"dpi"`
	Margin   int     `yaml:"margin"`
	// Width 栏宽(像素), 0表示不换行
	Width    int      `yaml:"width"`
	FontDirs []string `yaml:"font_dirs"`
	// AssetDir 图片相对路径的根目录
	AssetDir         string `yaml:"asset_dir"`
	MaxSteps         uint64 `yaml:"max_steps"`
	ReportDeprecated bool   `yaml:"report_deprecated"`
	// Variables 求值变量, 以 <span 开头的字符串按片段解析
	Variables map[string]any `yaml:"variables"`
	// Inputs 输入变量名
	Inputs []string `yaml:"inputs"`
}

// DefaultConfig 默认设置
func DefaultConfig() Config {
	return Config{
		DPI:      DefaultDPI,
		Margin:   DefaultMargin,
		MaxSteps: DefaultMaxSteps,
	}
}

// LoadConfig 读取YAML设置文件, 未出现的字段取默认值
// 入参: path 文件路径
// 返回: Config 设置, error 错误信息
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig 解析YAML设置
// 入参: data YAML文本
// 返回: Config 设置, error 错误信息
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// ParserMode 解析模式
func (c Config) ParserMode() ParserMode {
	return ParserMode{ReportDeprecated: c.ReportDeprecated}
}

// RendererOptions 对应的渲染选项
// 入参: logger 日志
func (c Config) RendererOptions(logger *zap.Logger) []RendererOption {
	opts := []RendererOption{WithDPI(c.DPI), WithMargin(c.Margin), WithWidth(c.Width), WithLogger(logger)}
	if len(c.FontDirs) > 0 {
		opts = append(opts, WithFontDirs(c.FontDirs...))
	}
	if c.AssetDir != "" {
		opts = append(opts, WithAssetFS(os.DirFS(c.AssetDir)))
	}
	return opts
}

// Apply 为未指定字体与字号的文档根节点设置默认值
func (c Config) Apply(col *Column) {
	if col == nil {
		return
	}
	if c.FontName != "" && col.fontName == "" {
		col.SetFontName(c.FontName)
	}
	if c.FontSize > 0 && col.fontSize == 0 {
		col.SetFontSize(c.FontSize)
	}
}

// EvalContext 由变量表构造求值上下文
// 入参: logger 日志
// 返回: *EvalContext 上下文, error 变量值无法识别时返回
func (c Config) EvalContext(logger *zap.Logger) (*EvalContext, error) {
	ctx := NewEvalContext()
	if logger != nil {
		ctx.SetLogger(logger)
	}
	if c.MaxSteps > 0 {
		ctx.MaxSteps = c.MaxSteps
	}
	inputs := make(map[string]bool, len(c.Inputs))
	for _, name := range c.Inputs {
		inputs[name] = true
	}
	names := make([]string, 0, len(c.Variables))
	for name := range c.Variables {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		v, err := c.variableValue(name, c.Variables[name], ctx)
		if err != nil {
			return nil, err
		}
		ctx.AddVariable(&Variable{Name: name, Value: v, Input: inputs[name]})
	}
	for _, name := range c.Inputs {
		if ctx.GetVariable(name) == nil {
			ctx.AddVariable(&Variable{Name: name, Input: true})
		}
	}
	return ctx, nil
}

// variableValue 将YAML值转换为变量值
func (c Config) variableValue(name string, raw any, ctx *EvalContext) (any, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		return v, nil
	case bool:
		return v, nil
	case string:
		if strings.HasPrefix(strings.TrimSpace(v), "<span") {
			span, diag := ParseSpan(v, ctx, WithParserMode(c.ParserMode()))
			if diag.HasErrors() {
				return nil, fmt.Errorf("variable %s: %w", name, diag.Err())
			}
			return span, nil
		}
		return v, nil
	}
	return nil, fmt.Errorf("variable %s: unsupported value type %T", name, raw)
}
