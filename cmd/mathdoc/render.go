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
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/xiaoqidun/mathdoc"
	"go.uber.org/zap"
)

// renderFlags 渲染命令参数
type renderFlags struct {
	output string
	format string
	watch  bool
}

// newRenderCommand 渲染文档为PNG、SVG、PDF或EPS
// 多个文件输出为PDF时每个文件占一页
func newRenderCommand(a *app) *cobra.Command {
	var f renderFlags
	cmd := &cobra.Command{
		Use:   "render FILE...",
		Short: "Render documents to PNG, SVG, PDF or EPS.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := a.outputFormat(f)
			if err != nil {
				return err
			}
			if len(args) > 1 && format != mathdoc.FormatPDF {
				return fmt.Errorf("multiple files require pdf output, got %s", format)
			}
			if err := a.renderFiles(args, format, f.output, cmd.ErrOrStderr()); err != nil {
				return err
			}
			if !f.watch {
				return nil
			}
			return a.watch(cmd.Context(), args, func() {
				if err := a.renderFiles(args, format, f.output, cmd.ErrOrStderr()); err != nil {
					a.logger.Error("render failed", zap.Error(err))
					return
				}
				a.logger.Info("rendered", zap.String("output", f.output))
			})
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&f.output, "output", "o", "", "output file, - for stdout")
	fl.StringVarP(&f.format, "format", "f", "", "output format: png, svg, pdf, eps (default from output extension)")
	fl.BoolVarP(&f.watch, "watch", "w", false, "render again whenever an input file changes")
	fl.Float64("dpi", mathdoc.DefaultDPI, "raster resolution")
	fl.Int("width", 0, "column width in pixels, 0 for no wrapping")
	fl.Int("margin", mathdoc.DefaultMargin, "page margin in pixels")
	fl.StringSlice("font-dir", nil, "additional font directory (repeatable)")
	fl.String("asset-dir", "", "root directory for relative image paths")
	a.bind(fl.Lookup("dpi"), fl.Lookup("width"), fl.Lookup("margin"), fl.Lookup("font-dir"), fl.Lookup("asset-dir"))
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

// outputFormat 输出格式, 未指定时由输出文件扩展名决定
func (a *app) outputFormat(f renderFlags) (mathdoc.Format, error) {
	if f.format != "" {
		return mathdoc.ParseFormat(f.format)
	}
	if f.output == "-" {
		return mathdoc.FormatSVG, nil
	}
	return mathdoc.ParseFormat(f.output)
}

// renderFiles 渲染文档并写入输出
func (a *app) renderFiles(paths []string, format mathdoc.Format, output string, diag io.Writer) error {
	r := mathdoc.NewRenderer(a.cfg.RendererOptions(a.logger)...)
	return writeOutput(output, func(w io.Writer) error {
		if len(paths) == 1 {
			ctx, err := a.evalContext()
			if err != nil {
				return err
			}
			col, err := a.parse(paths[0], ctx, diag)
			if err != nil {
				return err
			}
			return r.RenderTo(col, ctx, format, w)
		}
		insts := make([]*mathdoc.DocInst, 0, len(paths))
		for _, path := range paths {
			inst, err := a.realize(path, diag)
			if err != nil {
				return err
			}
			insts = append(insts, inst)
		}
		return r.RenderToMultiPagePDF(insts, w)
	})
}

// writeOutput 打开输出文件并调用write, 出错时删除不完整的文件
func writeOutput(output string, write func(io.Writer) error) error {
	if output == "-" {
		return write(os.Stdout)
	}
	f, err := os.Create(output)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(output)
		return err
	}
	return f.Close()
}

// watch 监听文件写入并调用onChange, 直到ctx取消
func (a *app) watch(ctx context.Context, paths []string, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	for _, path := range paths {
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
	}
	a.logger.Info("watching", zap.Strings("files", paths))
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
				a.logger.Debug("file changed", zap.String("file", event.Name))
				onChange()
			}
			if event.Op&fsnotify.Rename == fsnotify.Rename {
				// 编辑器以改名方式保存时重新监听
				_ = watcher.Add(event.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				a.logger.Warn("watch event overflow", zap.Error(err))
				onChange()
				continue
			}
			return err
		}
	}
}
