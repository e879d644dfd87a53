package fsx

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAtomicFile_CommitAndNoTempLeft(t *testing.T) {
	dir := t.TempDir()

	af, err := NewAtomicFile(dir, "a.zip")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if _, err := af.Write([]byte("hel")); err != nil {
		t.Fatalf("写入失败：%v", err)
	}
	if _, err := af.Write([]byte("lo")); err != nil {
		t.Fatalf("写入失败：%v", err)
	}
	if err := af.Commit(); err != nil {
		t.Fatalf("Commit 失败：%v", err)
	}
	// Commit 后的 Abort 必须是 no-op（defer 惯用法）。
	af.Abort()

	if af.Path() != filepath.Join(dir, "a.zip") {
		t.Fatalf("Path 不正确：%q", af.Path())
	}
	b, err := os.ReadFile(af.Path())
	if err != nil {
		t.Fatalf("读取文件失败：%v", err)
	}
	if string(b) != "hello" {
		t.Fatalf("内容不一致：%q", string(b))
	}

	assertNoTemp(t, dir, "a.zip")
}

func TestAtomicFile_AbortLeavesNothing(t *testing.T) {
	dir := t.TempDir()

	af, err := NewAtomicFile(dir, "a.zip")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if _, err := af.Write([]byte("partial")); err != nil {
		t.Fatalf("写入失败：%v", err)
	}
	af.Abort()

	if _, err := os.Stat(filepath.Join(dir, "a.zip")); !os.IsNotExist(err) {
		t.Fatalf("Abort 不应写出最终文件，Stat err=%v", err)
	}
	assertNoTemp(t, dir, "a.zip")
}

func TestAtomicFile_RenameFail_CleanupTemp(t *testing.T) {
	dir := t.TempDir()

	old := renameFunc
	renameFunc = func(oldpath, newpath string) error {
		return os.ErrPermission
	}
	defer func() { renameFunc = old }()

	af, err := NewAtomicFile(dir, "a.zip")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if _, err := af.Write([]byte("hello")); err != nil {
		t.Fatalf("写入失败：%v", err)
	}
	if err := af.Commit(); err == nil {
		t.Fatalf("期望 Commit 失败，但得到 nil")
	}

	if _, err := os.Stat(filepath.Join(dir, "a.zip")); !os.IsNotExist(err) {
		t.Fatalf("不应写出最终文件，Stat err=%v", err)
	}
	assertNoTemp(t, dir, "a.zip")
}

func TestEnsureDir_TargetConflictFile(t *testing.T) {
	dir := t.TempDir()

	// 目标路径是文件：应返回 PathTypeConflictError。
	if err := os.WriteFile(filepath.Join(dir, "out"), []byte("x"), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}

	err := EnsureDir(filepath.Join(dir, "out"))
	if err == nil {
		t.Fatalf("期望错误，但得到 nil")
	}
	if !IsPathTypeConflict(err) {
		t.Fatalf("期望 PathTypeConflictError，实际：%T %v", err, err)
	}
}

func assertNoTemp(t *testing.T, dir, name string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir 失败：%v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "."+name+".tmp-") {
			t.Fatalf("临时文件未清理：%q", e.Name())
		}
	}
}
