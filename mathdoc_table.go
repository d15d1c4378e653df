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
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// AllLines 单元格默认绘制全部边框
const AllLines = 0xFFFF

// Table 由不可断行单元格组成的表格
type Table struct {
	NodeBase
	rows          [][]*Nonwrap
	cellInsets    *Insets
	columnWidth   ColumnWidth
	justification Justification
	boxWidth      int
	hLineWidth    int
	vLineWidth    int
	bgColor       string

	rowY, rowBase, colX []int
}

// NewTable 创建表格
// 入参: rows 按行排列的单元格
func NewTable(rows [][]*Nonwrap) *Table {
	t := &Table{
		NodeBase:      NodeBase{tag: "table", valign: AlignCenter},
		rows:          rows,
		columnWidth:   ColumnUniform,
		justification: JustifyCenter,
		boxWidth:      1,
		hLineWidth:    1,
		vLineWidth:    1,
	}
	for _, row := range rows {
		for _, cell := range row {
			adopt(t, cell)
		}
	}
	return t
}

// Rows 获取单元格
func (t *Table) Rows() [][]*Nonwrap {
	return t.rows
}

// CellInsets 获取单元格留白, 未设置时为nil
func (t *Table) CellInsets() *Insets {
	return t.cellInsets
}

// SetCellInsets 设置单元格留白
func (t *Table) SetCellInsets(in *Insets) {
	t.cellInsets = in
}

// SetColumnWidth 设置列宽策略
func (t *Table) SetColumnWidth(c ColumnWidth) {
	t.columnWidth = c
}

// SetJustification 设置单元格水平对齐, 仅支持左、右、居中
func (t *Table) SetJustification(j Justification) {
	t.justification = j
}

// SetLineWidths 设置外框、水平线与竖线宽度
func (t *Table) SetLineWidths(box, h, v int) {
	t.boxWidth, t.hLineWidth, t.vLineWidth = box, h, v
}

// LineWidths 获取外框、水平线与竖线宽度
func (t *Table) LineWidths() (int, int, int) {
	return t.boxWidth, t.hLineWidth, t.vLineWidth
}

// SetBgColor 设置背景色
func (t *Table) SetBgColor(name string) {
	t.bgColor = name
}

// BgColor 获取背景色
func (t *Table) BgColor() string {
	return t.bgColor
}

// Grid 获取最近一次排版的行边界、行基线与列边界
func (t *Table) Grid() (rowY, rowBase, colX []int) {
	return t.rowY, t.rowBase, t.colX
}

// Layout 计算行列边界并在单元格内放置内容
func (t *Table) Layout(lc *LayoutContext, mode LayoutMode) {
	var in Insets
	if t.cellInsets != nil {
		in = *t.cellInsets
	}
	cols := 0
	for _, row := range t.rows {
		for _, cell := range row {
			cell.Layout(lc, mode)
		}
		cols = max(cols, len(row))
	}
	n := len(t.rows)
	t.rowY = make([]int, n+1)
	t.rowBase = make([]int, n+1)
	t.colX = make([]int, cols+1)
	if cols == 0 {
		t.setBox(0, 0, 0, 0)
		return
	}

	uniform := t.columnWidth != ColumnNonuniform
	wMax := 0
	for i, row := range t.rows {
		aMax, dMax := 0, 0
		for j, cell := range row {
			aMax = max(aMax, cell.BaseLine)
			dMax = max(dMax, cell.Height-cell.BaseLine)
			if uniform {
				wMax = max(wMax, cell.Width)
			} else {
				t.colX[j+1] = max(t.colX[j+1], cell.Width+in.Left+in.Right)
			}
		}
		aMax += in.Top
		dMax += in.Bottom
		t.rowBase[i] = aMax
		t.rowY[i+1] = aMax + dMax
	}
	t.rowY[0] = t.boxWidth
	t.rowBase[0] += t.rowY[0]
	for i := 1; i <= n; i++ {
		t.rowY[i] += t.rowY[i-1] + t.hLineWidth
		t.rowBase[i] += t.rowY[i]
	}
	t.colX[0] = t.boxWidth
	for j := 1; j <= cols; j++ {
		if uniform {
			t.colX[j] = t.colX[j-1] + wMax + in.Left + in.Right + t.vLineWidth
		} else {
			t.colX[j] += t.colX[j-1] + t.vLineWidth
		}
	}

	for i, row := range t.rows {
		for j, cell := range row {
			switch t.justification {
			case JustifyLeft:
				cell.X = in.Left + t.colX[j]
			case JustifyRight:
				cell.X = t.colX[j+1] - in.Right - t.vLineWidth - cell.Width
			default:
				cell.X = (t.colX[j] + t.colX[j+1] - t.vLineWidth - cell.Width) / 2
			}
			cell.Y = t.rowBase[i] - cell.BaseLine
		}
	}
	t.setBox(t.colX[cols]+t.boxWidth-t.vLineWidth, t.rowY[n]+t.boxWidth-t.hLineWidth, t.rowBase[n], (t.rowY[n]+t.rowY[0])/2)
}

// Instance 生成实例
func (t *Table) Instance(ctx *EvalContext) InstNode {
	inst := &TableInst{
		instBase:      newInstBase(&t.NodeBase),
		ColumnWidth:   t.columnWidth,
		Justification: t.justification,
		BoxWidth:      t.boxWidth,
		HLineWidth:    t.hLineWidth,
		VLineWidth:    t.vLineWidth,
		BgColor:       t.bgColor,
	}
	if t.cellInsets != nil {
		in := *t.cellInsets
		inst.CellInsets = &in
	}
	for _, row := range t.rows {
		cells := make([]*NonwrapInst, 0, len(row))
		for _, cell := range row {
			c, ok := cell.Instance(ctx).(*NonwrapInst)
			if !ok {
				return nil
			}
			cells = append(cells, c)
		}
		inst.Rows = append(inst.Rows, cells)
	}
	return inst
}

// Copy 深拷贝
func (t *Table) Copy() Node {
	c := *t
	c.rows = make([][]*Nonwrap, len(t.rows))
	for i, row := range t.rows {
		c.rows[i] = make([]*Nonwrap, len(row))
		for j, cell := range row {
			c.rows[i][j] = copyNonwrap(&c, cell)
		}
	}
	if t.cellInsets != nil {
		in := *t.cellInsets
		c.cellInsets = &in
	}
	c.rowY, c.rowBase, c.colX = nil, nil, nil
	return &c
}

// formatInsets 单元格留白的属性文本
func formatInsets(in Insets) string {
	if in.Top == in.Left && in.Left == in.Bottom && in.Bottom == in.Right {
		return strconv.Itoa(in.Top)
	}
	return strings.Join([]string{
		strconv.Itoa(in.Top), strconv.Itoa(in.Left), strconv.Itoa(in.Bottom), strconv.Itoa(in.Right),
	}, ",")
}

// formatCellLines 单元格边框的属性文本
func formatCellLines(lines int) string {
	if lines == 0 {
		return "none"
	}
	var parts []string
	for _, e := range cellLineVocab {
		if lines&e.val != 0 {
			parts = append(parts, e.name)
		}
	}
	return strings.Join(parts, ",")
}

// writeCellAttrs 输出单元格背景色与边框
func writeCellAttrs(e *etree.Element, bg string, lines int) {
	if bg != "" {
		e.CreateAttr("bgcolor", bg)
	}
	if lines != AllLines && lines&^AllLines == 0 {
		e.CreateAttr("lines", formatCellLines(lines))
	}
}

// writeTableAttrs 输出表格属性, 默认值省略
func writeTableAttrs(e *etree.Element, box, v, h int, cw ColumnWidth, j Justification, bg string, in *Insets) {
	if box != 1 {
		e.CreateAttr("box-width", strconv.Itoa(box))
	}
	if v != 1 {
		e.CreateAttr("v-line-width", strconv.Itoa(v))
	}
	if h != 1 {
		e.CreateAttr("h-line-width", strconv.Itoa(h))
	}
	if cw == ColumnNonuniform {
		e.CreateAttr("column-width", "nonuniform")
	}
	if j == JustifyLeft || j == JustifyRight {
		e.CreateAttr("justification", justificationVocab.name(j))
	}
	if bg != "" {
		e.CreateAttr("bgcolor", bg)
	}
	if in != nil {
		e.CreateAttr("cell-margins", formatInsets(*in))
	}
}

func (t *Table) writeXML(parent *etree.Element) {
	e := parent.CreateElement("table")
	writeTableAttrs(e, t.boxWidth, t.vLineWidth, t.hLineWidth, t.columnWidth, t.justification, t.bgColor, t.cellInsets)
	t.writeAttrs(e)
	for _, row := range t.rows {
		tr := e.CreateElement("tr")
		for _, cell := range row {
			cell.writeXML(tr)
		}
	}
}

func (t *Table) accumulateParameterNames(set map[string]struct{}) {
	for _, row := range t.rows {
		for _, cell := range row {
			cell.accumulateParameterNames(set)
		}
	}
}

func (t *Table) accumulateInputs(list *[]*Input) {
	for _, row := range t.rows {
		for _, cell := range row {
			cell.accumulateInputs(list)
		}
	}
}
