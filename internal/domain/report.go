package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	ModePack   = "pack"
	ModeUnpack = "unpack"
)

const (
	StatusPacked    = "packed"
	StatusExtracted = "extracted"
	StatusFailed    = "failed"
)

const (
	ErrCodeInvalidSize    = "invalid_size"
	ErrCodeNotADirectory  = "not_a_directory"
	ErrCodeNoArchives     = "no_archives"
	ErrCodeMissingToken   = "missing_token"
	ErrCodeConfigInvalid  = "config_invalid"
	ErrCodeZipFailed      = "zip_failed"
	ErrCodeExtractFailed  = "extract_failed"
	ErrCodeUploadFailed   = "upload_failed"
	ErrCodeDownloadFailed = "download_failed"
	ErrCodeAuthRequired   = "auth_required"
	ErrCodeRepoNotFound   = "repo_not_found"
	ErrCodeCanceled       = "canceled"
	ErrCodeIOFailed       = "io_failed"
)

// RunReport 是对外稳定输出（stdout JSON）的结构。
// pack 与 unpack 共用：不适用的字段保持零值输出，结构不随 mode 变化。
type RunReport struct {
	Mode string `json:"mode"`

	InputDir  string `json:"input_dir,omitempty"`
	OutputDir string `json:"output_dir"`
	ZipDir    string `json:"zip_dir,omitempty"`

	LimitBytes int64 `json:"limit_bytes,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary  ReportSummary   `json:"summary"`
	Archives []ArchiveResult `json:"archives"`
	Skipped  []SkippedFile   `json:"skipped"`
}

type ReportSummary struct {
	Archives   int   `json:"archives"`
	Failed     int   `json:"failed"`
	Skipped    int   `json:"skipped"`
	Files      int   `json:"files"`
	TotalBytes int64 `json:"total_bytes"`
}

// ArchiveResult 是一个工作单元（pack：一个 batch；unpack：一个 zip）的结果。
type ArchiveResult struct {
	Index int    `json:"index"`
	Path  string `json:"path"`

	Files int   `json:"files"`
	Bytes int64 `json:"bytes"`

	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`

	Uploaded bool `json:"uploaded,omitempty"`
}

// Finalize 做三件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) archives 稳定排序：按 index 升序（index==0 的合成条目排在最后）
// 3) summary 由 archives/skipped 计算得出
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	sort.SliceStable(r.Archives, func(i, j int) bool {
		a := r.Archives[i].Index
		b := r.Archives[j].Index
		if a == 0 && b == 0 {
			return false
		}
		if a == 0 {
			return false
		}
		if b == 0 {
			return true
		}
		return a < b
	})

	var s ReportSummary
	for _, it := range r.Archives {
		switch it.Status {
		case StatusPacked, StatusExtracted:
			s.Archives++
			s.Files += it.Files
			s.TotalBytes += it.Bytes
		case StatusFailed:
			s.Failed++
		}
	}
	s.Skipped = len(r.Skipped)
	r.Summary = s
}

// MarshalJSON 仅用于集中约束输出的稳定性（避免未来不小心引入非确定字段）。
// 当前只是透传 encoding/json 的默认行为。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	return json.Marshal(Alias(r))
}
