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
	"image/color"
	"sort"
	"strings"
)

// DefaultColorName 默认颜色
const DefaultColorName = "black"

// colorNames 颜色名称表
var colorNames = map[string]color.NRGBA{
	"black":        {0, 0, 0, 255},
	"white":        {255, 255, 255, 255},
	"red":          {255, 0, 0, 255},
	"green":        {0, 128, 0, 255},
	"blue":         {0, 0, 255, 255},
	"gray":         {128, 128, 128, 255},
	"grey":         {128, 128, 128, 255},
	"lightgray":    {211, 211, 211, 255},
	"darkgray":     {169, 169, 169, 255},
	"silver":       {192, 192, 192, 255},
	"maroon":       {128, 0, 0, 255},
	"purple":       {128, 0, 128, 255},
	"magenta":      {255, 0, 255, 255},
	"fuchsia":      {255, 0, 255, 255},
	"lime":         {0, 255, 0, 255},
	"olive":        {128, 128, 0, 255},
	"yellow":       {255, 255, 0, 255},
	"navy":         {0, 0, 128, 255},
	"teal":         {0, 128, 128, 255},
	"cyan":         {0, 255, 255, 255},
	"aqua":         {0, 255, 255, 255},
	"orange":       {255, 165, 0, 255},
	"pink":         {255, 192, 203, 255},
	"brown":        {165, 42, 42, 255},
	"gold":         {255, 215, 0, 255},
	"indigo":       {75, 0, 130, 255},
	"violet":       {238, 130, 238, 255},
	"darkblue":     {0, 0, 139, 255},
	"darkgreen":    {0, 100, 0, 255},
	"darkred":      {139, 0, 0, 255},
	"darkorange":   {255, 140, 0, 255},
	"steelblue":    {70, 130, 180, 255},
	"royalblue":    {65, 105, 225, 255},
	"forestgreen":  {34, 139, 34, 255},
	"firebrick":    {178, 34, 34, 255},
	"crimson":      {220, 20, 60, 255},
	"chocolate":    {210, 105, 30, 255},
	"tan":          {210, 180, 140, 255},
	"beige":        {245, 245, 220, 255},
	"ivory":        {255, 255, 240, 255},
	"lavender":     {230, 230, 250, 255},
	"salmon":       {250, 128, 114, 255},
	"coral":        {255, 127, 80, 255},
	"turquoise":    {64, 224, 208, 255},
	"midnightblue": {25, 25, 112, 255},
	"slategray":    {112, 128, 144, 255},
	"lightblue":    {173, 216, 230, 255},
	"lightgreen":   {144, 238, 144, 255},
	"lightyellow":  {255, 255, 224, 255},
}

// IsColorName 判断颜色名称是否有效
// 入参: name 颜色名称
// 返回: bool 是否有效
func IsColorName(name string) bool {
	_, ok := colorNames[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// ColorNames 返回所有有效的颜色名称
// 返回: []string 已排序的名称
func ColorNames() []string {
	names := make([]string, 0, len(colorNames))
	for k := range colorNames {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// parseColor 解析颜色名称, 未知名称回落为黑色
// 入参: name 颜色名称, alpha 不透明度(0~1)
// 返回: color.Color 颜色对象
func parseColor(name string, alpha float64) color.Color {
	c, ok := colorNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		c = colorNames[DefaultColorName]
	}
	if alpha >= 0 && alpha < 1 {
		c.A = uint8(alpha*255 + 0.5)
	}
	return c
}
