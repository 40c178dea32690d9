// Package scan 把命令行或 HTTP intake 给出的本地路径展开为候选文件。
package scan

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/John-Robertt/vidpreview/internal/domain"
)

// Candidates 把 paths 展开为候选文件，并嗅探每个文件的媒体类型作为“声明类型”。
//
// 规则（硬约束）：
// - 文件路径：原样作为一个候选，保持调用方给出的顺序
// - 目录路径：递归展开，目录内按相对路径排序；excludeDirs 相对该目录（绝对路径按绝对路径处理）
// - 以 '.' 开头的文件与目录（例如原子写入的临时文件）跳过
// - 不按扩展名预过滤：格式是否支持由校验器决定
func Candidates(paths []string, excludeDirs []string) ([]domain.Candidate, error) {
	out := make([]domain.Candidate, 0, len(paths))
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		fi, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("读取路径失败：%w", err)
		}
		if !fi.IsDir() {
			c, err := candidateFor(abs, fi)
			if err != nil {
				return nil, err
			}
			out = append(out, c)
			continue
		}
		cs, err := walkDir(abs, excludeDirs)
		if err != nil {
			return nil, err
		}
		out = append(out, cs...)
	}
	return out, nil
}

func walkDir(root string, excludeDirs []string) ([]domain.Candidate, error) {
	root = filepath.Clean(root)
	excluded := buildExcluded(root, excludeDirs)

	type found struct {
		rel string
		c   domain.Candidate
	}
	files := make([]found, 0, 32)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if isExcluded(path, excluded) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		c, err := candidateFor(path, info)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, found{rel: rel, c: c})
		return nil
	})
	if err != nil {
		return nil, err
	}

	// 强制稳定输出，避免不同平台/文件系统行为差异带来的不确定性。
	sort.Slice(files, func(i, j int) bool { return files[i].rel < files[j].rel })

	out := make([]domain.Candidate, 0, len(files))
	for _, f := range files {
		out = append(out, f.c)
	}
	return out, nil
}

func candidateFor(path string, info fs.FileInfo) (domain.Candidate, error) {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return domain.Candidate{}, fmt.Errorf("识别文件类型失败 %q：%w", path, err)
	}
	return domain.Candidate{
		Name:      info.Name(),
		MediaType: mt.String(),
		Size:      info.Size(),
		Path:      path,
		Source:    domain.FileSource{Path: path},
	}, nil
}

func buildExcluded(root string, excludeDirs []string) []string {
	excluded := make([]string, 0, len(excludeDirs))
	for _, x := range excludeDirs {
		x = strings.TrimSpace(x)
		if x == "" {
			continue
		}
		if filepath.IsAbs(x) {
			excluded = append(excluded, filepath.Clean(x))
			continue
		}
		// x 是相对路径：相对 root。
		excluded = append(excluded, filepath.Clean(filepath.Join(root, x)))
	}

	// 排除列表排序后，isExcluded 的行为更可预测（且便于测试）。
	sort.Strings(excluded)
	return excluded
}

func isExcluded(path string, excluded []string) bool {
	path = filepath.Clean(path)
	for _, base := range excluded {
		if isUnder(path, base) {
			return true
		}
	}
	return false
}

func isUnder(path, base string) bool {
	if path == base {
		return true
	}
	sep := string(filepath.Separator)
	return strings.HasPrefix(path, base+sep)
}
