package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/John-Robertt/zipbatch/internal/sizeparse"
)

const (
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
	// ErrCodeInvalidSize 表示 --limit（或配置文件 limit）无法解析。
	ErrCodeInvalidSize = "invalid_size"
	// ErrCodeMissingToken 表示需要访问远端仓库但没有提供 token。
	ErrCodeMissingToken = "missing_token"
)

const (
	// ConfigFileName 是工作目录下的可选配置文件。
	ConfigFileName = "zipbatch.json"

	// DefaultLimit 是单个归档的默认大小上限。
	DefaultLimit = "20GB"
	// DefaultConcurrency 是 worker 并发的内置默认值（实际并发还会被单元数截断）。
	DefaultConcurrency = 16
	// DefaultEndpoint 是远端对象存储的默认地址（S3 兼容）。
	DefaultEndpoint = "s3.amazonaws.com"
)

// CLIArgs 只包含 CLI 暴露的入口，并保留“是否显式指定”的信息。
// 这能保证覆盖优先级可实现：例如 CLI --limit 必须能覆盖配置文件的 limit。
type CLIArgs struct {
	// pack：OutputDir=产物目录，InputDir=扫描根。
	// unpack：ZipDir=归档目录，OutputDir=解包输出目录。
	OutputDir string
	InputDir  string
	ZipDir    string

	Limit    string
	LimitSet bool

	Upload    bool
	UploadSet bool

	RepoID    string
	RepoIDSet bool

	Token    string
	TokenSet bool

	DeleteZip    bool
	DeleteZipSet bool
}

// FileConfig 对应 zipbatch.json 的解析结构（全部字段可选）。
type FileConfig struct {
	Limit       string `json:"limit"`
	Concurrency int    `json:"concurrency"`
	Endpoint    string `json:"endpoint"`
	RepoID      string `json:"repo_id"`
	Token       string `json:"token"`
	DeleteZip   *bool  `json:"delete_zip"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置
// （实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	Mode string

	InputDir  string
	OutputDir string
	ZipDir    string

	LimitBytes  int64
	Concurrency int

	// 远端仓库：触发完全由 CLI 决定（--upload / --repo_id），
	// 配置文件只提供 endpoint/repo_id/token 的默认值。
	Endpoint string
	RepoID   string
	Token    string

	Upload    bool
	DeleteZip bool
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeMissingToken:
		return fmt.Sprintf("%s：访问远端仓库需要 --token（或在 %s 配置 token）", e.Code, ConfigFileName)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadPack 合并 CLI 与 <cwd>/zipbatch.json，得到 pack 的最终配置。
//
// 覆盖优先级（固定）：
// - limit：CLI --limit > config limit > 默认 20GB
// - repo_id/token：CLI > config
// - concurrency/endpoint：仅由 config 控制（CLI 不暴露）
// - upload 的触发只看 CLI（--upload）；config 不能隐式开启上传
func LoadPack(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	base, fc, err := loadCommon(cwd, cli)
	if err != nil {
		return EffectiveConfig{}, err
	}

	eff := base
	eff.Mode = "pack"
	eff.OutputDir = absCleanFrom(cwdAbs(cwd), cli.OutputDir)
	eff.InputDir = absCleanFrom(cwdAbs(cwd), cli.InputDir)
	eff.Upload = cli.UploadSet && cli.Upload

	limit := DefaultLimit
	if cli.LimitSet {
		limit = cli.Limit
	} else if strings.TrimSpace(fc.Limit) != "" {
		limit = fc.Limit
	}
	n, err := sizeparse.Parse(limit)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalidSize, Err: err}
	}
	if n <= 0 {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalidSize, Err: fmt.Errorf("limit 必须大于 0：%q", limit)}
	}
	eff.LimitBytes = n

	if eff.Upload {
		if strings.TrimSpace(eff.RepoID) == "" {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Err: fmt.Errorf("--upload 需要 --repo_id（或在 %s 配置 repo_id）", ConfigFileName)}
		}
		if strings.TrimSpace(eff.Token) == "" {
			return EffectiveConfig{}, &Error{Code: ErrCodeMissingToken}
		}
	}
	return eff, nil
}

// LoadUnpack 合并 CLI 与 <cwd>/zipbatch.json，得到 unpack 的最终配置。
// 远端下载的触发只看 CLI（--repo_id）；config 的 repo_id 只作为默认值来源，
// 不能隐式开启下载。
func LoadUnpack(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	base, fc, err := loadCommon(cwd, cli)
	if err != nil {
		return EffectiveConfig{}, err
	}

	eff := base
	eff.Mode = "unpack"
	eff.ZipDir = absCleanFrom(cwdAbs(cwd), cli.ZipDir)
	eff.OutputDir = absCleanFrom(cwdAbs(cwd), cli.OutputDir)

	if cli.DeleteZipSet {
		eff.DeleteZip = cli.DeleteZip
	} else if fc.DeleteZip != nil {
		eff.DeleteZip = *fc.DeleteZip
	}

	if !cli.RepoIDSet {
		eff.RepoID = ""
	}
	if eff.RepoID != "" && strings.TrimSpace(eff.Token) == "" {
		return EffectiveConfig{}, &Error{Code: ErrCodeMissingToken}
	}
	return eff, nil
}

func loadCommon(cwd string, cli CLIArgs) (EffectiveConfig, FileConfig, error) {
	cfgPath := filepath.Join(cwdAbs(cwd), ConfigFileName)
	fc, _, err := readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, FileConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}

	eff := EffectiveConfig{}

	// repo_id/token：CLI > config。
	eff.RepoID = strings.TrimSpace(fc.RepoID)
	if cli.RepoIDSet {
		eff.RepoID = strings.TrimSpace(cli.RepoID)
	}
	eff.Token = strings.TrimSpace(fc.Token)
	if cli.TokenSet {
		eff.Token = strings.TrimSpace(cli.Token)
	}

	eff.Endpoint = strings.TrimSpace(fc.Endpoint)
	if eff.Endpoint == "" {
		eff.Endpoint = DefaultEndpoint
	}

	concurrency := fc.Concurrency
	if concurrency == 0 {
		concurrency = DefaultConcurrency
	}
	// 范围 [1, 64]；超出截断。实际 worker 数还会被单元数截断（min(c, N)）。
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > 64 {
		concurrency = 64
	}
	eff.Concurrency = concurrency

	return eff, fc, nil
}

func cwdAbs(cwd string) string {
	abs, err := filepath.Abs(cwd)
	if err != nil {
		return filepath.Clean(cwd)
	}
	return abs
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
// - p 若已是绝对路径：直接 Clean
// - p 若是相对路径：Join(base, p) 后 Clean
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if p == "" || p == "." {
		return base
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 JSON 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := json.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
