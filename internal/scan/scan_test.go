package scan

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFiles_RecursiveStatOnly(t *testing.T) {
	root := t.TempDir()

	write(t, filepath.Join(root, "a.bin"), 3)
	write(t, filepath.Join(root, "sub", "b.bin"), 5)
	write(t, filepath.Join(root, "sub", "deep", "c.bin"), 7)

	got, err := Files(root, 1<<20)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(got.Files) != 3 {
		t.Fatalf("期望 3 个文件，实际 %d", len(got.Files))
	}
	if got.TotalBytes != 15 {
		t.Fatalf("期望 total=15，实际 %d", got.TotalBytes)
	}

	// 输出必须按 RelPath 稳定排序。
	wantRel := []string{
		"a.bin",
		filepath.Join("sub", "b.bin"),
		filepath.Join("sub", "deep", "c.bin"),
	}
	for i, w := range wantRel {
		if got.Files[i].RelPath != w {
			t.Fatalf("第 %d 个文件期望 rel=%q，实际=%q", i, w, got.Files[i].RelPath)
		}
	}
}

func TestFiles_OversizedSkippedNotError(t *testing.T) {
	root := t.TempDir()

	write(t, filepath.Join(root, "small.bin"), 10)
	write(t, filepath.Join(root, "big.bin"), 100)

	got, err := Files(root, 50)
	if err != nil {
		t.Fatalf("超限文件应是警告而不是错误：%v", err)
	}
	if len(got.Files) != 1 || got.Files[0].RelPath != "small.bin" {
		t.Fatalf("期望只保留 small.bin，实际：%+v", got.Files)
	}
	if got.TotalBytes != 10 {
		t.Fatalf("total 不应包含被跳过的文件：%d", got.TotalBytes)
	}
	if len(got.Skipped) != 1 || got.Skipped[0].RelPath != "big.bin" || got.Skipped[0].Size != 100 {
		t.Fatalf("skipped 记录不正确：%+v", got.Skipped)
	}
}

func TestFiles_SizeEqualLimitKept(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "exact.bin"), 50)

	got, err := Files(root, 50)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	// 上限是 >limit 才跳过：恰好等于 limit 的文件保留。
	if len(got.Files) != 1 || len(got.Skipped) != 0 {
		t.Fatalf("size==limit 的文件应保留：files=%d skipped=%d", len(got.Files), len(got.Skipped))
	}
}

func TestFiles_NotADirectory(t *testing.T) {
	root := t.TempDir()

	_, err := Files(filepath.Join(root, "missing"), 100)
	if err == nil {
		t.Fatalf("期望错误，但得到 nil")
	}
	if !IsNotADirectory(err) {
		t.Fatalf("期望 NotADirectoryError，实际：%T %v", err, err)
	}

	file := filepath.Join(root, "f")
	write(t, file, 1)
	_, err = Files(file, 100)
	if !IsNotADirectory(err) {
		t.Fatalf("root 是文件时期望 NotADirectoryError，实际：%T %v", err, err)
	}
}

func TestFiles_EmptyDir(t *testing.T) {
	root := t.TempDir()

	got, err := Files(root, 100)
	if err != nil {
		t.Fatalf("空目录不是错误：%v", err)
	}
	if len(got.Files) != 0 || got.TotalBytes != 0 {
		t.Fatalf("期望空结果，实际：%+v", got)
	}
}

func write(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
}
