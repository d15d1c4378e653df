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
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// RealizeMany 在多个求值上下文中并发生成文档实例
// 模板在生成期间只读, 调用方不能同时对其排版
// 入参: ctx 取消上下文, col 文档模板, evals 求值上下文, limit 最大并发数(<=0 不限制)
// 返回: []*DocInst 与 evals 一一对应的实例, error 任一上下文失败时返回
func RealizeMany(ctx context.Context, col *Column, evals []*EvalContext, limit int) ([]*DocInst, error) {
	out := make([]*DocInst, len(evals))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, ev := range evals {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			inst, err := Realize(col, ev)
			if err != nil {
				ev.Logger().Debug("realize failed", zap.Int("index", i), zap.Error(err))
				return fmt.Errorf("context %d: %w", i, err)
			}
			out[i] = inst
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
