// Package format 提供卡片与错误信息使用的展示格式化函数。
package format

import (
	"strconv"
	"strings"
)

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// ByteSize 把字节数格式化为 {Bytes, KB, MB, GB} 中最大的适用单位，保留两位小数并去掉末尾的 0。
//
//	0       -> "0 Bytes"
//	1024    -> "1 KB"
//	1572864 -> "1.5 MB"
//
// 超过 1024 GB 的值仍以 GB 表示；负数按 0 处理。
func ByteSize(n int64) string {
	if n <= 0 {
		return "0 Bytes"
	}

	v := float64(n)
	i := 0
	for v >= 1024 && i < len(sizeUnits)-1 {
		v /= 1024
		i++
	}

	s := strconv.FormatFloat(v, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	return s + " " + sizeUnits[i]
}

const ellipsis = "..."

// TruncateName 在 name 超过 max 个字符时截断文件名主体，保留扩展名并以 "..." 结尾。
//
// 规则：
// - 长度按 rune 计算；len <= max 时原样返回
// - 有扩展名：stem[:max-len(ext)-4] + "..." + "." + ext，总长恰好为 max
// - 扩展名本身放不下时 stem 截为空；若 "..."+"."+ext 仍超过 max，退化为前 max 个字符
// - 无扩展名（或仅有前导点，如 ".mp4"）：前 max-3 个字符 + "..."
func TruncateName(name string, max int) string {
	runes := []rune(name)
	if len(runes) <= max {
		return name
	}
	if max <= 0 {
		return ""
	}

	dot := strings.LastIndex(name, ".")
	if dot <= 0 || dot == len(name)-1 {
		if max <= len(ellipsis) {
			return string(runes[:max])
		}
		return string(runes[:max-len(ellipsis)]) + ellipsis
	}

	stem := []rune(name[:dot])
	ext := name[dot+1:]

	keep := max - len([]rune(ext)) - len(ellipsis) - 1
	if keep < 0 {
		keep = 0
	}
	if keep > len(stem) {
		keep = len(stem)
	}

	out := string(stem[:keep]) + ellipsis + "." + ext
	if len([]rune(out)) > max {
		return string(runes[:max])
	}
	return out
}
