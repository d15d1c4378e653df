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

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/xiaoqidun/mathdoc"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// app 命令共享的设置与日志
type app struct {
	v      *viper.Viper
	logger *zap.Logger
	cfg    mathdoc.Config
}

// NewRootCommand 创建根命令, 每次调用返回独立的命令树
func NewRootCommand() *cobra.Command {
	a := &app{v: viper.New(), logger: zap.NewNop(), cfg: mathdoc.DefaultConfig()}
	root := &cobra.Command{
		Use:          "mathdoc",
		Short:        "Check, render and convert math assessment documents.",
		Version:      mathdoc.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.ErrOrStderr())
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = a.logger.Sync()
		},
	}
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	pf := root.PersistentFlags()
	pf.StringP("config", "c", "", "config file (YAML)")
	pf.String("log-level", "warn", "log level: debug, info, warn, error")
	pf.String("log-file", "", "also write JSON logs to this file, with rotation")
	pf.StringSlice("set", nil, "set a variable, name=value (repeatable)")
	pf.StringSlice("input", nil, "mark a variable as an input (repeatable)")
	pf.Bool("report-deprecated", false, "warn about deprecated syntax")
	pf.Uint64("max-steps", 0, "step bound for a single formula evaluation")
	a.bind(pf.Lookup("config"), pf.Lookup("log-level"), pf.Lookup("log-file"), pf.Lookup("set"),
		pf.Lookup("input"), pf.Lookup("report-deprecated"), pf.Lookup("max-steps"))

	a.v.SetEnvPrefix("MATHDOC")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	root.AddCommand(
		newCheckCommand(a),
		newRenderCommand(a),
		newParamsCommand(a),
		newLaTeXCommand(a),
		newXMLCommand(a),
	)
	return root
}

// setup 合并设置文件、环境变量与命令行参数, 并创建日志
func (a *app) setup(stderr io.Writer) error {
	a.logger = newLogger(a.v.GetString("log-level"), a.v.GetString("log-file"), stderr)
	cfg := mathdoc.DefaultConfig()
	if path := a.v.GetString("config"); path != "" {
		var err error
		if cfg, err = mathdoc.LoadConfig(path); err != nil {
			return err
		}
		a.logger.Debug("config loaded", zap.String("path", path))
	}
	if a.v.IsSet("report-deprecated") {
		cfg.ReportDeprecated = a.v.GetBool("report-deprecated")
	}
	if a.v.IsSet("max-steps") {
		cfg.MaxSteps = a.v.GetUint64("max-steps")
	}
	if a.v.IsSet("dpi") {
		cfg.DPI = a.v.GetFloat64("dpi")
	}
	if a.v.IsSet("width") {
		cfg.Width = a.v.GetInt("width")
	}
	if a.v.IsSet("margin") {
		cfg.Margin = a.v.GetInt("margin")
	}
	if a.v.IsSet("font-dir") {
		cfg.FontDirs = append(cfg.FontDirs, a.v.GetStringSlice("font-dir")...)
	}
	if a.v.IsSet("asset-dir") {
		cfg.AssetDir = a.v.GetString("asset-dir")
	}
	for _, kv := range a.v.GetStringSlice("set") {
		name, raw, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return fmt.Errorf("invalid --set %q, want name=value", kv)
		}
		if cfg.Variables == nil {
			cfg.Variables = map[string]any{}
		}
		cfg.Variables[strings.TrimSpace(name)] = scalar(raw)
	}
	cfg.Inputs = append(cfg.Inputs, a.v.GetStringSlice("input")...)
	a.cfg = cfg
	return nil
}

// bind 将参数绑定到同名设置键
func (a *app) bind(flags ...*pflag.Flag) {
	for _, f := range flags {
		_ = a.v.BindPFlag(f.Name, f)
	}
}

// scalar 按YAML标量规则识别数值与布尔值, 其余保持为字符串
func scalar(raw string) any {
	if strings.HasPrefix(strings.TrimSpace(raw), "<") {
		return raw
	}
	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	switch v.(type) {
	case int, float64, bool:
		return v
	}
	return raw
}

// evalContext 由设置构造求值上下文
func (a *app) evalContext() (*mathdoc.EvalContext, error) {
	return a.cfg.EvalContext(a.logger)
}

// parse 解析文档并输出诊断, 存在错误时返回error
func (a *app) parse(path string, ctx *mathdoc.EvalContext, w io.Writer) (*mathdoc.Column, error) {
	col, diag := mathdoc.ParseFile(path, ctx,
		mathdoc.WithParserLogger(a.logger), mathdoc.WithParserMode(a.cfg.ParserMode()))
	for _, d := range diag.All() {
		fmt.Fprintf(w, "%s: %s\n", path, d)
	}
	if diag.HasErrors() {
		return nil, fmt.Errorf("%s: %d error(s)", path, len(diag.Errors()))
	}
	a.cfg.Apply(col)
	return col, nil
}

// realize 解析文档并在上下文中生成实例
func (a *app) realize(path string, w io.Writer) (*mathdoc.DocInst, error) {
	ctx, err := a.evalContext()
	if err != nil {
		return nil, err
	}
	col, err := a.parse(path, ctx, w)
	if err != nil {
		return nil, err
	}
	inst, err := mathdoc.Realize(col, ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return inst, nil
}
