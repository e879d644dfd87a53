package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/John-Robertt/zipbatch/internal/app/run"
	"github.com/John-Robertt/zipbatch/internal/config"
	"github.com/John-Robertt/zipbatch/internal/domain"
)

var _ run.Observer = (*progressUI)(nil)

// progressUI 是交互终端的进度输出。
//
// 设计目标：
// - 所有过程信息写到 stderr（或 fallback 到 stdout），不污染 stdout 的 JSON 输出契约
// - 事件驱动：run 层只发事件，CLI 决定如何展示
// - 进度行限流：run 层的 ticker 周期较短，这里保证两行进度间隔不小于 1 秒
type progressUI struct {
	w    io.Writer
	mode string

	mu          sync.Mutex
	startedAt   time.Time
	lastPrinted time.Time

	minProgressGap time.Duration
}

func newProgressUI(w io.Writer, mode string) *progressUI {
	return &progressUI{
		w:              w,
		mode:           mode,
		minProgressGap: time.Second,
	}
}

func (p *progressUI) OnStart(eff config.EffectiveConfig) {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startedAt.IsZero() {
		p.startedAt = now
	}

	fmt.Fprintf(p.w, "[%s] zipbatch %s\n", now.Format("15:04:05"), eff.Mode)
	fmt.Fprintln(p.w, "配置（生效）:")
	switch eff.Mode {
	case domain.ModePack:
		fmt.Fprintf(p.w, "  input: %s\n", eff.InputDir)
		fmt.Fprintf(p.w, "  output: %s\n", eff.OutputDir)
		fmt.Fprintf(p.w, "  limit: %s\n", humanize.IBytes(uint64(eff.LimitBytes)))
		fmt.Fprintf(p.w, "  upload: %s\n", onOff(eff.Upload))
	case domain.ModeUnpack:
		fmt.Fprintf(p.w, "  zip_dir: %s\n", eff.ZipDir)
		fmt.Fprintf(p.w, "  output: %s\n", eff.OutputDir)
		fmt.Fprintf(p.w, "  delete_zip: %s\n", onOff(eff.DeleteZip))
	}
	fmt.Fprintf(p.w, "  concurrency: %d\n", eff.Concurrency)
	if eff.RepoID != "" {
		fmt.Fprintf(p.w, "  repo: %s @ %s\n", eff.RepoID, eff.Endpoint)
	}
	fmt.Fprintln(p.w)

	p.lastPrinted = time.Now()
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch name {
	case "scan":
		if p.mode == domain.ModePack {
			fmt.Fprintf(p.w, "扫描: files=%d skipped=%d total=%s (%s)\n",
				intField(fields, "files"),
				intField(fields, "skipped"),
				humanize.IBytes(uint64(int64Field(fields, "total_bytes"))),
				formatShortDuration(dur),
			)
		} else {
			fmt.Fprintf(p.w, "扫描: archives=%d entries=%d (%s)\n",
				intField(fields, "archives"), intField(fields, "entries"), formatShortDuration(dur),
			)
		}
	case "batch":
		fmt.Fprintf(p.w, "分批: batches=%d (%s)\n",
			intField(fields, "batches"), formatShortDuration(dur),
		)
	case "fetch":
		fmt.Fprintf(p.w, "下载: archives=%d (%s)\n",
			intField(fields, "archives"), formatShortDuration(dur),
		)
	case "upload":
		fmt.Fprintf(p.w, "上传: uploaded=%d/%d (%s)\n",
			intField(fields, "uploaded"), intField(fields, "total"), formatShortDuration(dur),
		)
	case "exec":
		fmt.Fprintf(p.w, "执行: workers=%d total_units=%d\n\n",
			intField(fields, "workers"), intField(fields, "total_units"),
		)
	default:
		// 兜底：未知阶段也不要静默（便于调试/演进）。
		fmt.Fprintf(p.w, "%s (%s)\n", name, formatShortDuration(dur))
	}

	p.lastPrinted = time.Now()
}

func (p *progressUI) OnUnitDone(idx, total int, res domain.ArchiveResult, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	name := res.Path
	if name == "" && res.Index > 0 {
		name = domain.ArchiveName(res.Index)
	}

	switch res.Status {
	case domain.StatusPacked:
		fmt.Fprintf(p.w, "[%d/%d] %s OK files=%d size=%s (%s)\n",
			idx, total, name, res.Files, humanize.IBytes(uint64(res.Bytes)), formatShortDuration(dur),
		)
	case domain.StatusExtracted:
		fmt.Fprintf(p.w, "[%d/%d] %s OK entries=%d (%s)\n",
			idx, total, name, res.Files, formatShortDuration(dur),
		)
	default:
		fmt.Fprintf(p.w, "[%d/%d] %s FAIL %s: %s (%s)\n",
			idx, total, name, res.ErrorCode, truncate(res.ErrorMsg, 160), formatShortDuration(dur),
		)
	}

	p.lastPrinted = time.Now()
}

func (p *progressUI) OnProgress(done, total int64, elapsed time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// 限流：刚打印过单元/阶段行时跳过本次进度，避免刷屏。
	if time.Since(p.lastPrinted) < p.minProgressGap {
		return
	}

	if p.mode == domain.ModePack {
		fmt.Fprintf(p.w, "进度: %s/%s elapsed=%s\n",
			humanize.IBytes(uint64(done)), humanize.IBytes(uint64(total)), formatElapsed(elapsed),
		)
	} else {
		fmt.Fprintf(p.w, "进度: entries=%d/%d elapsed=%s\n", done, total, formatElapsed(elapsed))
	}
	p.lastPrinted = time.Now()
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func intField(fields map[string]any, key string) int {
	return int(int64Field(fields, key))
}

func int64Field(fields map[string]any, key string) int64 {
	if fields == nil {
		return 0
	}
	v, ok := fields[key]
	if !ok {
		return 0
	}
	switch x := v.(type) {
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case int64:
		return x
	case uint:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return int64(x)
	default:
		return 0
	}
}
