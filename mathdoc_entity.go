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

import "sort"

// namedEntities 命名符号表, 名称到码点
var namedEntities = map[string]rune{
	"lbrace":             0x007B,
	"rbrace":             0x007D,
	"nbsp":               0x00A0,
	"degree":             0x00B0,
	"pm":                 0x00B1,
	"cdot":               0x00B7,
	"times":              0x00D7,
	"div":                0x00F7,
	"fnof":               0x0192,
	"Gamma":              0x0393,
	"Delta":              0x0394,
	"Theta":              0x0398,
	"Lamda":              0x039B,
	"Xi":                 0x039E,
	"Pi":                 0x03A0,
	"Sigma":              0x03A3,
	"Upsilon":            0x03A5,
	"Phi":                0x03A6,
	"Psi":                0x03A8,
	"Omega":              0x03A9,
	"alpha":              0x03B1,
	"beta":               0x03B2,
	"gamma":              0x03B3,
	"delta":              0x03B4,
	"varepsilon":         0x03B5,
	"zeta":               0x03B6,
	"eta":                0x03B7,
	"theta":              0x03B8,
	"iota":               0x03B9,
	"kappa":              0x03BA,
	"lamda":              0x03BB,
	"mu":                 0x03BC,
	"nu":                 0x03BD,
	"xi":                 0x03BE,
	"omicron":            0x03BF,
	"pi":                 0x03C0,
	"rho":                0x03C1,
	"varsigma":           0x03C2,
	"sigma":              0x03C3,
	"tau":                0x03C4,
	"upsilon":            0x03C5,
	"varphi":             0x03C6,
	"chi":                0x03C7,
	"psi":                0x03C8,
	"omega":              0x03C9,
	"vartheta":           0x03D1,
	"phi":                0x03D5,
	"varpi":              0x03D6,
	"varkappa":           0x03F0,
	"varrho":             0x03F1,
	"epsilon":            0x03F5,
	"minus":              0x2212,
	"textendash":         0x2013,
	"textemdash":         0x2014,
	"textquoteleft":      0x2018,
	"textquoteright":     0x2019,
	"textquotedblleft":   0x201C,
	"textquotedblright":  0x201D,
	"bullet":             0x2022,
	"prime":              0x2032,
	"dprime":             0x2033,
	"tprime":             0x2034,
	"qprime":             0x2057,
	"e":                  0x2147,
	"i":                  0x2148,
	"leftarrow":          0x2190,
	"uparrow":            0x2191,
	"rightarrow":         0x2192,
	"downarrow":          0x2193,
	"leftrightarrow":     0x2194,
	"updownarrow":        0x2195,
	"Leftarrow":          0x21D0,
	"Uparrow":            0x21D1,
	"Rightarrow":         0x21D2,
	"Downarrow":          0x21D3,
	"Leftrightarrow":     0x21D4,
	"Updownarrow":        0x21D5,
	"circ":               0x2218,
	"varpropto":          0x221D,
	"infty":              0x221E,
	"angle":              0x2220,
	"measuredangle":      0x2221,
	"cap":                0x2229,
	"cup":                0x222A,
	"int":                0x222B,
	"simeq":              0x2243,
	"approx":             0x2248,
	"neq":                0x2260,
	"leq":                0x2264,
	"geq":                0x2265,
	"leqq":               0x2266,
	"geqq":               0x2267,
	"lneqq":              0x2268,
	"gneqq":              0x2269,
	"ll":                 0x226A,
	"gg":                 0x226B,
	"between":            0x226C,
	"nless":              0x226E,
	"ngtr":               0x226F,
	"nleq":               0x2270,
	"ngeq":               0x2271,
	"lesssim":            0x2272,
	"gtrsim":             0x2273,
	"lessgtr":            0x2276,
	"gtrless":            0x2277,
	"prec":               0x227A,
	"succ":               0x227B,
	"preccurlyeq":        0x227C,
	"succcurlyeq":        0x227D,
	"precsim":            0x227E,
	"succsim":            0x227F,
	"nprec":              0x2280,
	"nsucc":              0x2281,
	"lessdot":            0x22D6,
	"gtrdot":             0x22D7,
	"lesseqgtr":          0x22DA,
	"gtreqless":          0x22DB,
	"curlyeqprec":        0x22DE,
	"curlyeqsucc":        0x22DF,
	"npreceq":            0x22E0,
	"nsucceq":            0x22E1,
	"lnsim":              0x22E6,
	"gnsim":              0x22E7,
	"precnsim":           0x22E8,
	"succnsim":           0x22E9,
	"cdots":              0x22EF,
	"smallfrown":         0x2322,
	"smallsmile":         0x2323,
	"langle":             0x2329,
	"rangle":             0x232A,
	"blacksquare":        0x25A0,
	"blacktriangle":      0x25B2,
	"triangle":           0x25B3,
	"blacktriangleright": 0x25BA,
	"blacktriangledown":  0x25BC,
	"blacktriangleleft":  0x25C4,
	"spadesuit":          0x2660,
	"clubsuit":           0x2663,
	"heartsuit":          0x2665,
	"diamondsuit":        0x2666,
	"checkmark":          0x2713,
	"diagup":             0x27CB,
	"diagdown":           0x27CD,
	"Longleftarrow":      0x27F8,
	"Longrightarrow":     0x27F9,
	"Longleftrightarrow": 0x27FA,
	"leqslant":           0x2A7D,
	"geqslant":           0x2A7E,
	"lessapprox":         0x2A85,
	"gtrapprox":          0x2A86,
	"lneq":               0x2A87,
	"gneq":               0x2A88,
	"lnapprox":           0x2A89,
	"gnapprox":           0x2A8A,
	"lesseqqgtr":         0x2A8B,
	"gtreqqless":         0x2A8C,
	"eqslantless":        0x2A95,
	"eqslantgtr":         0x2A96,
	"lll":                0x2AA1,
	"ggg":                0x2AA2,
	"preceq":             0x2AAF,
	"succeq":             0x2AB0,
	"precneqq":           0x2AB5,
	"succneqq":           0x2AB6,
	"precapprox":         0x2AB7,
	"succapprox":         0x2AB8,
	"precnapprox":        0x2AB9,
	"succnapprox":        0x2ABA,
	"pitchfork":          0x2ADB,
}

// lookupEntity 查找命名符号, 未知名称返回空串
// 入参: name 不含反斜杠的名称
// 返回: string 对应字符
func lookupEntity(name string) string {
	if r, ok := namedEntities[name]; ok {
		return string(r)
	}
	return ""
}

// EntityNames 返回所有命名符号名称
// 返回: []string 已排序的名称
func EntityNames() []string {
	names := make([]string, 0, len(namedEntities))
	for k := range namedEntities {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// entityFor 反查字符对应的命名符号
// 入参: r 字符
// 返回: string 名称, bool 是否存在
func entityFor(r rune) (string, bool) {
	name, ok := entityByRune[r]
	return name, ok
}

var entityByRune = func() map[rune]string {
	m := make(map[rune]string, len(namedEntities))
	for k, v := range namedEntities {
		if prev, ok := m[v]; !ok || k < prev {
			m[v] = k
		}
	}
	return m
}()
