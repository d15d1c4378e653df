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
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xiaoqidun/mathdoc"
)

// run 以全新的命令树执行命令, 返回标准输出与错误输出
func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

// writeDoc 在临时目录写入文档
func writeDoc(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const sumDoc = `<doc><p>The sum is {a} + 2.</p></doc>`

func TestRootCommand_Version(t *testing.T) {
	out, _, err := run(t, "--version")
	require.NoError(t, err)
	assert.Equal(t, mathdoc.Version+"\n", out)
}

func TestCheck_OK(t *testing.T) {
	path := writeDoc(t, "sum.xml", sumDoc)
	out, _, err := run(t, "check", "--set", "a=3", path)
	require.NoError(t, err)
	assert.Contains(t, out, path+": ok")
}

func TestCheck_UnboundParameterFails(t *testing.T) {
	path := writeDoc(t, "sum.xml", sumDoc)
	out, _, err := run(t, "check", path)
	require.Error(t, err)
	assert.Contains(t, out, "FAIL")
}

func TestCheck_ReportsDiagnostics(t *testing.T) {
	path := writeDoc(t, "bad.xml", `<doc>loose text</doc>`)
	_, errOut, err := run(t, "check", path)
	require.Error(t, err)
	assert.Contains(t, errOut, "must be within <p> tags")
}

func TestCheck_InvalidSet(t *testing.T) {
	path := writeDoc(t, "sum.xml", sumDoc)
	_, _, err := run(t, "check", "--set", "a", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "want name=value")
}

func TestCheck_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "mathdoc.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("variables:\n  a: 5\n"), 0o644))
	path := writeDoc(t, "sum.xml", sumDoc)
	out, _, err := run(t, "--config", cfg, "check", path)
	require.NoError(t, err)
	assert.Contains(t, out, ": ok")
}

func TestXML_SubstitutesParameters(t *testing.T) {
	path := writeDoc(t, "sum.xml", sumDoc)
	out, _, err := run(t, "xml", "--set", "a=7", path)
	require.NoError(t, err)
	assert.Contains(t, out, "<p>")
	assert.Contains(t, out, "7")
	assert.NotContains(t, out, "{a}")
}

func TestParams_ListsStates(t *testing.T) {
	path := writeDoc(t, "sum.xml", `<doc><p>{a} and {b}</p></doc>`)
	out, _, err := run(t, "params", "--set", "a=1", "--input", "b", path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Regexp(t, `^param\s+a\s+bound$`, lines[0])
	assert.Regexp(t, `^param\s+b\s+input$`, lines[1])
}

func TestLaTeX_Fraction(t *testing.T) {
	path := writeDoc(t, "frac.xml",
		`<doc><p><math><fraction><numerator>1</numerator><denominator>2</denominator></fraction></math></p></doc>`)
	out, _, err := run(t, "latex", path)
	require.NoError(t, err)
	assert.Contains(t, out, `\frac{1}{2}`)

	out, _, err = run(t, "latex", "--alt", path)
	require.NoError(t, err)
	assert.Contains(t, out, "fraction")
}

func TestRender_SVG(t *testing.T) {
	path := writeDoc(t, "sum.xml", sumDoc)
	output := filepath.Join(t.TempDir(), "sum.svg")
	_, _, err := run(t, "render", "--set", "a=3", "-o", output, path)
	require.NoError(t, err)
	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<svg")
}

func TestRender_MultipleFilesRequirePDF(t *testing.T) {
	a := writeDoc(t, "a.xml", `<doc><p>one</p></doc>`)
	b := writeDoc(t, "b.xml", `<doc><p>two</p></doc>`)
	output := filepath.Join(t.TempDir(), "out.svg")
	_, _, err := run(t, "render", "-o", output, a, b)
	require.Error(t, err)
	assert.NoFileExists(t, output)
}

func TestRender_UnknownFormat(t *testing.T) {
	path := writeDoc(t, "sum.xml", sumDoc)
	_, _, err := run(t, "render", "-o", filepath.Join(t.TempDir(), "out.docx"), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format")
}

func TestScalar(t *testing.T) {
	assert.Equal(t, 3, scalar("3"))
	assert.Equal(t, 2.5, scalar("2.5"))
	assert.Equal(t, true, scalar("true"))
	assert.Equal(t, "abc", scalar("abc"))
	assert.Equal(t, "<span>x</span>", scalar("<span>x</span>"))
}
