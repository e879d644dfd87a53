package zipx

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/flate"

	"github.com/John-Robertt/zipbatch/internal/infra/fsx"
)

// UnsafeEntryError 表示 zip entry 的路径试图逃出输出目录（zip-slip）。
type UnsafeEntryError struct {
	Archive string
	Name    string
}

func (e *UnsafeEntryError) Error() string {
	return fmt.Sprintf("归档 %s 内的 entry %q 路径不安全（试图越出输出目录）", e.Archive, e.Name)
}

// CountEntries 返回归档内的 entry 数（含目录项）。
// unpack 的进度总量需要在 worker 启动前算出，因此单独提供计数。
func CountEntries(path string) (int, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return 0, err
	}
	defer r.Close()
	return len(r.File), nil
}

// Extract 把一个归档的全部 entry 解出到 outDir/<entry 相对路径>。
//
// 契约：
// - 目标文件已存在：静默跳过该 entry（幂等重跑语义，刻意保留）
// - 其他失败（损坏、权限、磁盘满）：对该归档致命，向上返回
// - 每处理完一个 entry 调用一次 progress(1)：进度粒度是 entry 级
// - deleteZip 只在整个归档解包成功之后生效（delete-on-success）
// - ctx 取消在 entry 边界生效
//
// 返回实际处理的 entry 数（含被跳过的）。
func Extract(ctx context.Context, path, outDir string, deleteZip bool, progress func(int64)) (int, error) {
	if err := fsx.EnsureDir(outDir); err != nil {
		return 0, err
	}

	r, err := zip.OpenReader(path)
	if err != nil {
		// Go 1.20 起，含非本地路径的归档会连同可用 reader 一起返回
		// ErrInsecurePath；此时继续走逐 entry 的 safeJoin 判定。
		if !errors.Is(err, zip.ErrInsecurePath) {
			return 0, fmt.Errorf("打开归档 %s 失败：%w", path, err)
		}
	}
	r.RegisterDecompressor(zip.Deflate, func(in io.Reader) io.ReadCloser {
		return flate.NewReader(in)
	})

	done := 0
	extractErr := func() error {
		for _, f := range r.File {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := extractOne(f, path, outDir); err != nil {
				return err
			}
			done++
			if progress != nil {
				progress(1)
			}
		}
		return nil
	}()

	// 先关 reader 再删源文件（Windows 上持有句柄时无法删除）。
	if err := r.Close(); err != nil && extractErr == nil {
		extractErr = err
	}
	if extractErr != nil {
		return done, extractErr
	}

	if deleteZip {
		if err := os.Remove(path); err != nil {
			return done, fmt.Errorf("删除源归档 %s 失败：%w", path, err)
		}
	}
	return done, nil
}

func extractOne(f *zip.File, archive, outDir string) error {
	dst, err := safeJoin(outDir, f.Name)
	if err != nil {
		return &UnsafeEntryError{Archive: archive, Name: f.Name}
	}

	if strings.HasSuffix(f.Name, "/") {
		return os.MkdirAll(dst, 0o755)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	// O_EXCL：目标已存在时静默跳过（幂等重跑），绝不覆盖已有内容。
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil
		}
		return err
	}

	rc, err := f.Open()
	if err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}

	_, copyErr := io.Copy(out, rc)
	_ = rc.Close()
	closeErr := out.Close()

	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		// 解压中途失败：不留半成品（下次重跑才能走 O_EXCL 正常重解）。
		_ = os.Remove(dst)
		return copyErr
	}
	return nil
}

// safeJoin 把 zip entry 名拼到 outDir 下，拒绝绝对路径与 .. 逃逸。
func safeJoin(outDir, name string) (string, error) {
	rel := filepath.FromSlash(name)
	if filepath.IsAbs(rel) {
		return "", errors.New("absolute entry")
	}
	dst := filepath.Join(outDir, rel)
	base := filepath.Clean(outDir)
	if dst != base && !strings.HasPrefix(dst, base+string(filepath.Separator)) {
		return "", errors.New("entry escapes output dir")
	}
	return dst, nil
}
