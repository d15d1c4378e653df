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
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/xiaoqidun/mathdoc"
	"go.uber.org/zap"
)

// newCheckCommand 检查文档: 解析、报告诊断并尝试生成实例
func newCheckCommand(a *app) *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "check FILE...",
		Short: "Parse documents, report diagnostics and verify they realize.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			failed := 0
			for _, path := range args {
				if err := a.checkFile(path, strict, cmd); err != nil {
					a.logger.Debug("check failed", zap.String("file", path), zap.Error(err))
					fmt.Fprintf(out, "%s: FAIL: %v\n", path, err)
					failed++
					continue
				}
				fmt.Fprintf(out, "%s: ok\n", path)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d file(s) failed", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "treat warnings as errors")
	return cmd
}

// checkFile 检查单个文档
func (a *app) checkFile(path string, strict bool, cmd *cobra.Command) error {
	ctx, err := a.evalContext()
	if err != nil {
		return err
	}
	col, diag, err := mathdoc.Check(path, ctx,
		mathdoc.WithParserLogger(a.logger), mathdoc.WithParserMode(a.cfg.ParserMode()))
	for _, d := range diag.All() {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", path, d)
	}
	if err != nil {
		return err
	}
	if strict && len(diag.Warnings()) > 0 {
		return errors.New("warnings reported in strict mode")
	}
	a.logger.Info("checked", zap.String("file", path), zap.Strings("parameters", col.ParameterNames()))
	return nil
}
