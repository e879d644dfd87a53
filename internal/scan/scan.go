package scan

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/John-Robertt/zipbatch/internal/domain"
)

// NotADirectoryError 表示扫描根不存在或不是目录。
// 这是配置级错误：必须在任何 worker 启动之前失败。
type NotADirectoryError struct {
	Path string
	Err  error
}

func (e *NotADirectoryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("路径 %q 不存在或不是目录：%v", e.Path, e.Err)
	}
	return fmt.Sprintf("路径 %q 不是目录", e.Path)
}

func (e *NotADirectoryError) Unwrap() error { return e.Err }

func IsNotADirectory(err error) bool {
	var e *NotADirectoryError
	return errors.As(err, &e)
}

// Result 是一次完整扫描的产物。
// 扫描必须在批处理之前整体完成：进度条需要预先知道总字节数，
// 因此这里不做流式消费。
type Result struct {
	Files      []domain.FileEntry
	TotalBytes int64

	// Skipped 是超过单文件上限而被排除的文件（警告，不是错误）。
	Skipped []domain.SkippedFile
}

// Files 递归枚举 root 下的所有普通文件（目录不产生条目）。
//
// 规则（硬约束）：
// - 只做 stat（DirEntry.Info），不读文件内容
// - Size > limit 的文件记入 Skipped 并排除，扫描继续
// - root 缺失或不是目录返回 NotADirectoryError
func Files(root string, limit int64) (Result, error) {
	root = filepath.Clean(root)

	fi, err := os.Stat(root)
	if err != nil {
		return Result{}, &NotADirectoryError{Path: root, Err: err}
	}
	if !fi.IsDir() {
		return Result{}, &NotADirectoryError{Path: root}
	}

	res := Result{
		Files:   make([]domain.FileEntry, 0, 128),
		Skipped: make([]domain.SkippedFile, 0, 4),
	}
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		// 符号链接/设备文件等非普通文件不归档。
		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		if info.Size() > limit {
			res.Skipped = append(res.Skipped, domain.SkippedFile{
				RelPath: rel,
				Size:    info.Size(),
				Limit:   limit,
			})
			return nil
		}

		res.Files = append(res.Files, domain.FileEntry{
			AbsPath: path,
			RelPath: rel,
			Size:    info.Size(),
		})
		res.TotalBytes += info.Size()
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	// 强制稳定输出，避免不同平台/文件系统行为差异带来的不确定性。
	// （批处理的 size 降序排序是稳定排序：相同 size 保持这里的 RelPath 序。）
	sort.Slice(res.Files, func(i, j int) bool { return res.Files[i].RelPath < res.Files[j].RelPath })
	sort.Slice(res.Skipped, func(i, j int) bool { return res.Skipped[i].RelPath < res.Skipped[j].RelPath })
	return res, nil
}
