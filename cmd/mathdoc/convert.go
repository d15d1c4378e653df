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
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/xiaoqidun/mathdoc"
)

// newParamsCommand 列出文档引用的参数与输入控件
func newParamsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "params FILE",
		Short: "List the parameters and inputs a document refers to.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := a.evalContext()
			if err != nil {
				return err
			}
			col, err := a.parse(args[0], ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, name := range col.ParameterNames() {
				state := "unbound"
				if v := ctx.GetVariable(name); v != nil {
					state = "bound"
					if v.Input {
						state = "input"
					}
				}
				fmt.Fprintf(tw, "param\t%s\t%s\n", name, state)
			}
			for _, in := range col.Inputs() {
				fmt.Fprintf(tw, "input\t%s\t%s\n", in.Name(), in.Type())
			}
			return tw.Flush()
		},
	}
}

// newLaTeXCommand 输出文档实例的LaTeX或朗读文本
func newLaTeXCommand(a *app) *cobra.Command {
	var alt bool
	cmd := &cobra.Command{
		Use:   "latex FILE",
		Short: "Print the realized document as LaTeX.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := a.realize(args[0], cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			s := mathdoc.ToLaTeX(inst.Root)
			if alt {
				s = mathdoc.AltText(inst.Root)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(s))
			return err
		},
	}
	cmd.Flags().BoolVar(&alt, "alt", false, "print spoken alternative text instead")
	return cmd
}

// newXMLCommand 输出文档实例的XML
func newXMLCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "xml FILE",
		Short: "Print the realized document as XML.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := a.realize(args[0], cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), inst.XML())
			return err
		},
	}
}
