package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeCfg(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0o644); err != nil {
		t.Fatalf("写入配置文件失败：%v", err)
	}
}

func TestLoadPack_Defaults(t *testing.T) {
	cwd := t.TempDir()

	eff, err := LoadPack(cwd, CLIArgs{OutputDir: "out", InputDir: "in"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Mode != "pack" {
		t.Fatalf("mode 期望 pack，实际 %q", eff.Mode)
	}
	if eff.LimitBytes != 20*(1<<30) {
		t.Fatalf("默认 limit 应为 20GiB，实际 %d", eff.LimitBytes)
	}
	if eff.Concurrency != DefaultConcurrency {
		t.Fatalf("默认并发应为 %d，实际 %d", DefaultConcurrency, eff.Concurrency)
	}
	if eff.Endpoint != DefaultEndpoint {
		t.Fatalf("默认 endpoint 不正确：%q", eff.Endpoint)
	}
	if eff.Upload {
		t.Fatalf("未指定 --upload 时不应开启上传")
	}
	// 路径必须被规范化为绝对路径。
	if !filepath.IsAbs(eff.OutputDir) || !filepath.IsAbs(eff.InputDir) {
		t.Fatalf("目录应为绝对路径：%q %q", eff.OutputDir, eff.InputDir)
	}
}

func TestLoadPack_CLIOverridesFile(t *testing.T) {
	cwd := t.TempDir()
	writeCfg(t, cwd, `{"limit":"1GB","concurrency":4}`)

	eff, err := LoadPack(cwd, CLIArgs{
		OutputDir: "out", InputDir: "in",
		Limit: "512MB", LimitSet: true,
	})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.LimitBytes != 512*(1<<20) {
		t.Fatalf("CLI limit 应覆盖配置文件：%d", eff.LimitBytes)
	}
	if eff.Concurrency != 4 {
		t.Fatalf("concurrency 应来自配置文件：%d", eff.Concurrency)
	}
}

func TestLoadPack_FileLimitUsedWhenCLIAbsent(t *testing.T) {
	cwd := t.TempDir()
	writeCfg(t, cwd, `{"limit":"100MB"}`)

	eff, err := LoadPack(cwd, CLIArgs{OutputDir: "out", InputDir: "in"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.LimitBytes != 100*(1<<20) {
		t.Fatalf("limit 应来自配置文件：%d", eff.LimitBytes)
	}
}

func TestLoadPack_InvalidLimit(t *testing.T) {
	cwd := t.TempDir()

	_, err := LoadPack(cwd, CLIArgs{
		OutputDir: "out", InputDir: "in",
		Limit: "abcGB", LimitSet: true,
	})
	if err == nil {
		t.Fatalf("期望失败，但得到 nil")
	}
	if Code(err) != ErrCodeInvalidSize {
		t.Fatalf("期望 error_code=%s，实际 %q（%v）", ErrCodeInvalidSize, Code(err), err)
	}
}

func TestLoadPack_UploadRequiresRepoAndToken(t *testing.T) {
	cwd := t.TempDir()

	_, err := LoadPack(cwd, CLIArgs{
		OutputDir: "out", InputDir: "in",
		Upload: true, UploadSet: true,
	})
	if Code(err) != ErrCodeInvalid {
		t.Fatalf("缺 repo_id 期望 %s，实际 %q（%v）", ErrCodeInvalid, Code(err), err)
	}

	_, err = LoadPack(cwd, CLIArgs{
		OutputDir: "out", InputDir: "in",
		Upload: true, UploadSet: true,
		RepoID: "my-repo", RepoIDSet: true,
	})
	if Code(err) != ErrCodeMissingToken {
		t.Fatalf("缺 token 期望 %s，实际 %q（%v）", ErrCodeMissingToken, Code(err), err)
	}

	// token 可以来自配置文件。
	writeCfg(t, cwd, `{"token":"AK:SK"}`)
	eff, err := LoadPack(cwd, CLIArgs{
		OutputDir: "out", InputDir: "in",
		Upload: true, UploadSet: true,
		RepoID: "my-repo", RepoIDSet: true,
	})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !eff.Upload || eff.Token != "AK:SK" {
		t.Fatalf("合并结果不正确：%+v", eff)
	}
}

func TestLoadUnpack_RepoTriggerIsCLIOnly(t *testing.T) {
	cwd := t.TempDir()
	// 配置文件里的 repo_id 不能隐式触发下载。
	writeCfg(t, cwd, `{"repo_id":"my-repo","token":"AK:SK"}`)

	eff, err := LoadUnpack(cwd, CLIArgs{ZipDir: "zips", OutputDir: "out"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.RepoID != "" {
		t.Fatalf("未给 --repo_id 时不应触发下载：%q", eff.RepoID)
	}

	eff, err = LoadUnpack(cwd, CLIArgs{
		ZipDir: "zips", OutputDir: "out",
		RepoID: "my-repo", RepoIDSet: true,
	})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.RepoID != "my-repo" || eff.Token != "AK:SK" {
		t.Fatalf("合并结果不正确：%+v", eff)
	}
}

func TestLoadUnpack_RepoWithoutToken(t *testing.T) {
	cwd := t.TempDir()

	_, err := LoadUnpack(cwd, CLIArgs{
		ZipDir: "zips", OutputDir: "out",
		RepoID: "my-repo", RepoIDSet: true,
	})
	if Code(err) != ErrCodeMissingToken {
		t.Fatalf("期望 %s，实际 %q（%v）", ErrCodeMissingToken, Code(err), err)
	}
}

func TestLoadUnpack_DeleteZipPriority(t *testing.T) {
	cwd := t.TempDir()
	writeCfg(t, cwd, `{"delete_zip":true}`)

	eff, err := LoadUnpack(cwd, CLIArgs{ZipDir: "zips", OutputDir: "out"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !eff.DeleteZip {
		t.Fatalf("delete_zip 应来自配置文件")
	}

	// CLI --delete_zip=false 必须能覆盖配置文件的 true。
	eff, err = LoadUnpack(cwd, CLIArgs{
		ZipDir: "zips", OutputDir: "out",
		DeleteZip: false, DeleteZipSet: true,
	})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.DeleteZip {
		t.Fatalf("CLI 应覆盖配置文件的 delete_zip")
	}
}

func TestLoadPack_BrokenConfigFile(t *testing.T) {
	cwd := t.TempDir()
	writeCfg(t, cwd, `{not json`)

	_, err := LoadPack(cwd, CLIArgs{OutputDir: "out", InputDir: "in"})
	if Code(err) != ErrCodeInvalid {
		t.Fatalf("期望 %s，实际 %q（%v）", ErrCodeInvalid, Code(err), err)
	}
}

func TestConcurrencyClamp(t *testing.T) {
	cwd := t.TempDir()
	writeCfg(t, cwd, `{"concurrency":1000}`)

	eff, err := LoadPack(cwd, CLIArgs{OutputDir: "out", InputDir: "in"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Concurrency != 64 {
		t.Fatalf("并发应被截断到 64：%d", eff.Concurrency)
	}
}
