package domain

import (
	"bytes"
	"io"
	"os"
)

// Source 是候选文件二进制内容的不透明引用。
//
// 约束：每次 Open 都返回一个新的、从头开始的 reader；调用方负责 Close。
type Source interface {
	Open() (io.ReadSeekCloser, error)
}

// Candidate 描述一个待校验的输入文件（来自命令行路径或 HTTP intake）。
//
// 不变量：
// - Name 是展示用文件名（不含目录）
// - MediaType 是“声明的”媒体类型；校验只看它，不再读内容
// - 一旦被接纳，Candidate 不再被修改
type Candidate struct {
	Name      string
	MediaType string
	Size      int64
	Path      string // 仅用于报告/日志；内存来源为空
	Source    Source
}

// FileSource 以本地文件作为内容来源。
type FileSource struct {
	Path string
}

func (s FileSource) Open() (io.ReadSeekCloser, error) {
	return os.Open(s.Path)
}

// BytesSource 以内存字节作为内容来源（测试与小文件场景）。
type BytesSource []byte

func (s BytesSource) Open() (io.ReadSeekCloser, error) {
	return nopCloser{bytes.NewReader(s)}, nil
}

type nopCloser struct {
	*bytes.Reader
}

func (nopCloser) Close() error { return nil }
