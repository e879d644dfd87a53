package fsx

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// 通过可替换的函数指针，让测试能稳定模拟 EXDEV 等错误。
var renameFunc = os.Rename

// PathTypeConflictError 表示目标路径类型冲突（例如期望目录但实际是文件）。
type PathTypeConflictError struct {
	Path string
	Want string
	Got  string
}

func (e *PathTypeConflictError) Error() string {
	return fmt.Sprintf("目标路径类型冲突：%q（期望 %s，实际 %s）", e.Path, e.Want, e.Got)
}

func IsPathTypeConflict(err error) bool {
	var e *PathTypeConflictError
	return errors.As(err, &e)
}

// CrossDeviceError 表示跨盘（EXDEV）导致的 rename 失败。
// AtomicFile 的临时文件与目标同目录，正常不会触发；保留显式标记便于排查。
type CrossDeviceError struct {
	Src string
	Dst string
	Err error
}

func (e *CrossDeviceError) Error() string {
	return fmt.Sprintf("跨盘移动失败（EXDEV）：%q -> %q：%v", e.Src, e.Dst, e.Err)
}

func (e *CrossDeviceError) Unwrap() error { return e.Err }

// IsCrossDevice 判断 err 是否为跨盘（EXDEV）错误。
func IsCrossDevice(err error) bool {
	var e *CrossDeviceError
	return errors.As(err, &e)
}

// Rename 封装 os.Rename，并把 EXDEV 显式标记为 CrossDeviceError。
func Rename(src, dst string) error {
	if err := renameFunc(src, dst); err != nil {
		if isEXDEV(err) {
			return &CrossDeviceError{Src: src, Dst: dst, Err: err}
		}
		return err
	}
	return nil
}

// EnsureDir 确保 dir 存在且是目录；若同名路径是文件则返回 PathTypeConflictError。
func EnsureDir(dir string) error {
	fi, err := os.Stat(dir)
	if err == nil {
		if fi.IsDir() {
			return nil
		}
		return &PathTypeConflictError{Path: dir, Want: "dir", Got: "file"}
	}
	if !os.IsNotExist(err) {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

// AtomicFile 在 dir 下流式写入 name（临时文件 + rename）。
//
// 与一次性 []byte 写入不同，归档是边压缩边写的：调用方先拿到 io.Writer，
// 写完调用 Commit；任何中途失败调用 Abort，目标路径上不会留下半成品。
//
// 约束：
// - 临时文件必须与目标文件在同目录，以保证 rename 的原子性
// - Commit 前做 Sync；目录 Sync 采用 best-effort（平台差异大，失败不报错）
type AtomicFile struct {
	f   *os.File
	dir string
	dst string

	committed bool
}

// NewAtomicFile 创建写入 <dir>/<name> 的两阶段文件。dir 不存在时自动创建。
func NewAtomicFile(dir, name string) (*AtomicFile, error) {
	if err := EnsureDir(dir); err != nil {
		return nil, err
	}

	// 同目录临时文件（前缀带 '.'，避免被 unpack 的 *.zip 枚举误扫到）。
	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return nil, err
	}
	return &AtomicFile{
		f:   tmp,
		dir: dir,
		dst: filepath.Join(dir, name),
	}, nil
}

func (a *AtomicFile) Write(p []byte) (int, error) { return a.f.Write(p) }

// Path 返回最终目标路径（Commit 成功后文件所在的位置）。
func (a *AtomicFile) Path() string { return a.dst }

// Commit 落盘并原子替换到最终文件名。
func (a *AtomicFile) Commit() error {
	tmpName := a.f.Name()

	if err := a.f.Chmod(0o644); err != nil {
		_ = a.f.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := a.f.Sync(); err != nil {
		_ = a.f.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := a.f.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	if err := Rename(tmpName, a.dst); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	a.committed = true

	// 目录 fsync：best-effort（不同平台/文件系统的语义差异很大）。
	_ = syncDirBestEffort(a.dir)
	return nil
}

// Abort 丢弃临时文件。Commit 成功后调用是 no-op，因此可以放在 defer 里。
func (a *AtomicFile) Abort() {
	if a.committed {
		return
	}
	name := a.f.Name()
	_ = a.f.Close()
	_ = os.Remove(name)
}

func syncDirBestEffort(dir string) error {
	// Windows 上目录 Sync 的语义与支持情况不稳定，这里直接跳过。
	if runtime.GOOS == "windows" {
		return nil
	}
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
