package run

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/John-Robertt/zipbatch/internal/batch"
	"github.com/John-Robertt/zipbatch/internal/config"
	"github.com/John-Robertt/zipbatch/internal/domain"
	"github.com/John-Robertt/zipbatch/internal/hub"
	"github.com/John-Robertt/zipbatch/internal/scan"
	"github.com/John-Robertt/zipbatch/internal/zipx"
)

// progressInterval 是共享进度计数发布给 Observer 的周期。
const progressInterval = 500 * time.Millisecond

// Pack 执行一次打包（扫描 → 分批 → 并发写归档 → 可选上传），
// 并返回对外稳定的 RunReport。
// 该函数尽量把错误“降级”为单元级失败（单个 batch 失败不影响其他）。
func Pack(ctx context.Context, eff config.EffectiveConfig, obs Observer) domain.RunReport {
	started := time.Now().UTC()

	if obs != nil {
		obs.OnStart(eff)
	}

	rr := domain.RunReport{
		Mode:       domain.ModePack,
		InputDir:   eff.InputDir,
		OutputDir:  eff.OutputDir,
		LimitBytes: eff.LimitBytes,
		StartedAt:  started,
		Archives:   make([]domain.ArchiveResult, 0, 8),
		Skipped:    []domain.SkippedFile{},
	}

	// 上传的凭证问题在任何 worker 启动之前暴露，不浪费一次打包。
	var remote *hub.Client
	if eff.Upload {
		c, err := hub.New(eff.Endpoint, eff.Token)
		if err != nil {
			return finish(rr, syntheticFailed(hubCode(err, domain.ErrCodeConfigInvalid), err.Error()))
		}
		remote = c
	}

	scanStarted := time.Now()
	res, err := scan.Files(eff.InputDir, eff.LimitBytes)
	if err != nil {
		code := domain.ErrCodeIOFailed
		if scan.IsNotADirectory(err) {
			code = domain.ErrCodeNotADirectory
		}
		return finish(rr, syntheticFailed(code, err.Error()))
	}
	rr.Skipped = res.Skipped

	if obs != nil {
		obs.OnPhaseDone("scan", map[string]any{
			"files":       len(res.Files),
			"skipped":     len(res.Skipped),
			"total_bytes": res.TotalBytes,
		}, time.Since(scanStarted))
	}

	batchStarted := time.Now()
	batches := batch.Split(res.Files, eff.LimitBytes)
	if obs != nil {
		obs.OnPhaseDone("batch", map[string]any{
			"batches": len(batches),
		}, time.Since(batchStarted))
	}

	// 空输入：零个归档，不是错误。
	if len(batches) == 0 {
		rr.FinishedAt = time.Now().UTC()
		rr.Finalize()
		return rr
	}

	if err := os.MkdirAll(eff.OutputDir, 0o755); err != nil {
		return finish(rr, syntheticFailed(domain.ErrCodeIOFailed, err.Error()))
	}

	workers := poolSize(eff.Concurrency, len(batches))
	if obs != nil {
		obs.OnPhaseDone("exec", map[string]any{
			"workers":     workers,
			"total_units": len(batches),
		}, 0)
	}

	// 所有 worker 共享的进度计数：每写完一个文件加其字节数。
	var counter atomic.Int64
	stopProgress := publishProgress(obs, &counter, res.TotalBytes, started)

	results := runUnits(workers, len(batches), func(i int) domain.ArchiveResult {
		return packOne(ctx, res.Files, batches[i], eff.OutputDir, &counter)
	})

	done := 0
	for it := range results {
		done++
		rr.Archives = append(rr.Archives, it.res)
		if obs != nil {
			obs.OnUnitDone(done, len(batches), it.res, it.dur)
		}
	}
	stopProgress()

	if eff.Upload {
		uploadAll(ctx, remote, eff.RepoID, rr.Archives, obs)
	}

	rr.FinishedAt = time.Now().UTC()
	rr.Finalize()
	return rr
}

// Unpack 执行一次解包（可选下载 → 枚举归档 → 并发解出），
// 并返回对外稳定的 RunReport。
func Unpack(ctx context.Context, eff config.EffectiveConfig, obs Observer) domain.RunReport {
	started := time.Now().UTC()

	if obs != nil {
		obs.OnStart(eff)
	}

	rr := domain.RunReport{
		Mode:      domain.ModeUnpack,
		ZipDir:    eff.ZipDir,
		OutputDir: eff.OutputDir,
		StartedAt: started,
		Archives:  make([]domain.ArchiveResult, 0, 8),
		Skipped:   []domain.SkippedFile{},
	}

	if eff.RepoID != "" {
		fetchStarted := time.Now()
		remote, err := hub.New(eff.Endpoint, eff.Token)
		if err != nil {
			return finish(rr, syntheticFailed(hubCode(err, domain.ErrCodeConfigInvalid), err.Error()))
		}
		if err := os.MkdirAll(eff.ZipDir, 0o755); err != nil {
			return finish(rr, syntheticFailed(domain.ErrCodeIOFailed, err.Error()))
		}
		paths, err := remote.Download(ctx, eff.RepoID, eff.ZipDir)
		if err != nil {
			return finish(rr, syntheticFailed(hubCode(err, domain.ErrCodeDownloadFailed), err.Error()))
		}
		if obs != nil {
			obs.OnPhaseDone("fetch", map[string]any{
				"archives": len(paths),
			}, time.Since(fetchStarted))
		}
	}

	zips, err := listArchives(eff.ZipDir)
	if err != nil {
		return finish(rr, syntheticFailed(domain.ErrCodeNotADirectory, err.Error()))
	}
	if len(zips) == 0 {
		return finish(rr, syntheticFailed(domain.ErrCodeNoArchives, fmt.Sprintf("目录 %q 下没有 *.zip 归档", eff.ZipDir)))
	}

	// 进度总量在 worker 启动前算出；坏归档这里不报错，
	// 留给对应 worker 产出单元级失败。
	countStarted := time.Now()
	var totalEntries int64
	for _, z := range zips {
		if n, err := zipx.CountEntries(z); err == nil {
			totalEntries += int64(n)
		}
	}
	if obs != nil {
		obs.OnPhaseDone("scan", map[string]any{
			"archives": len(zips),
			"entries":  totalEntries,
		}, time.Since(countStarted))
	}

	workers := poolSize(eff.Concurrency, len(zips))
	if obs != nil {
		obs.OnPhaseDone("exec", map[string]any{
			"workers":     workers,
			"total_units": len(zips),
		}, 0)
	}

	// 所有 worker 共享的进度计数：每处理完一个 entry 加一。
	var counter atomic.Int64
	stopProgress := publishProgress(obs, &counter, totalEntries, started)

	results := runUnits(workers, len(zips), func(i int) domain.ArchiveResult {
		return unpackOne(ctx, zips[i], i+1, eff.OutputDir, eff.DeleteZip, &counter)
	})

	done := 0
	for it := range results {
		done++
		rr.Archives = append(rr.Archives, it.res)
		if obs != nil {
			obs.OnUnitDone(done, len(zips), it.res, it.dur)
		}
	}
	stopProgress()

	rr.FinishedAt = time.Now().UTC()
	rr.Finalize()
	return rr
}

func packOne(ctx context.Context, files []domain.FileEntry, b domain.Batch, outDir string, counter *atomic.Int64) domain.ArchiveResult {
	res := domain.ArchiveResult{
		Index: b.Index,
		Files: len(b.FileIdx),
		Bytes: b.Size,
	}

	// 取消只在单元边界生效：已排队未开始的 batch 直接标记 canceled。
	if err := ctx.Err(); err != nil {
		res.Status = domain.StatusFailed
		res.ErrorCode = domain.ErrCodeCanceled
		res.ErrorMsg = err.Error()
		return res
	}

	h, err := zipx.WriteBatch(ctx, files, b, outDir, func(n int64) { counter.Add(n) })
	if err != nil {
		res.Status = domain.StatusFailed
		res.ErrorCode = packErrCode(err)
		res.ErrorMsg = err.Error()
		return res
	}

	res.Path = h.Path
	res.Status = domain.StatusPacked
	return res
}

func unpackOne(ctx context.Context, zipPath string, index int, outDir string, deleteZip bool, counter *atomic.Int64) domain.ArchiveResult {
	res := domain.ArchiveResult{
		Index: index,
		Path:  zipPath,
	}

	if err := ctx.Err(); err != nil {
		res.Status = domain.StatusFailed
		res.ErrorCode = domain.ErrCodeCanceled
		res.ErrorMsg = err.Error()
		return res
	}

	n, err := zipx.Extract(ctx, zipPath, outDir, deleteZip, func(n int64) { counter.Add(n) })
	res.Files = n
	if err != nil {
		res.Status = domain.StatusFailed
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			res.ErrorCode = domain.ErrCodeCanceled
		} else {
			res.ErrorCode = domain.ErrCodeExtractFailed
		}
		res.ErrorMsg = err.Error()
		return res
	}

	res.Status = domain.StatusExtracted
	return res
}

// uploadAll 把本次成功写出的归档逐个上传（失败只影响该归档的条目）。
// 不做重试：远端问题应当显式暴露给用户，而不是在这里吞掉。
func uploadAll(ctx context.Context, remote *hub.Client, repoID string, archives []domain.ArchiveResult, obs Observer) {
	uploadStarted := time.Now()
	uploaded := 0

	for i := range archives {
		if archives[i].Status != domain.StatusPacked {
			continue
		}
		if err := remote.Upload(ctx, archives[i].Path, repoID); err != nil {
			archives[i].Status = domain.StatusFailed
			archives[i].ErrorCode = hubCode(err, domain.ErrCodeUploadFailed)
			archives[i].ErrorMsg = err.Error()
			continue
		}
		archives[i].Uploaded = true
		uploaded++
	}

	if obs != nil {
		obs.OnPhaseDone("upload", map[string]any{
			"uploaded": uploaded,
			"total":    len(archives),
		}, time.Since(uploadStarted))
	}
}

type unitResult struct {
	res domain.ArchiveResult
	dur time.Duration
}

// runUnits 用 workers 个 goroutine 并发执行 n 个独立单元（channel + WaitGroup）。
// 结果按完成顺序送出；单元失败只体现在自己的结果里，绝不取消同批其他单元。
func runUnits(workers, n int, do func(i int) domain.ArchiveResult) <-chan unitResult {
	jobs := make(chan int)
	results := make(chan unitResult, n)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				oneStarted := time.Now()
				res := do(i)
				results <- unitResult{res: res, dur: time.Since(oneStarted)}
			}
		}()
	}

	go func() {
		for i := 0; i < n; i++ {
			jobs <- i
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	return results
}

// publishProgress 周期性把共享计数发布给 Observer；返回的 stop 会发出最终值。
func publishProgress(obs Observer, counter *atomic.Int64, total int64, started time.Time) (stop func()) {
	if obs == nil {
		return func() {}
	}

	stopCh := make(chan struct{})
	doneCh := make(chan struct{})
	go func() {
		defer close(doneCh)
		t := time.NewTicker(progressInterval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				obs.OnProgress(counter.Load(), total, time.Since(started))
			case <-stopCh:
				return
			}
		}
	}()

	return func() {
		close(stopCh)
		<-doneCh
		// 收尾发一次最终值，保证 100% 一定出现过。
		obs.OnProgress(counter.Load(), total, time.Since(started))
	}
}

// listArchives 枚举 dir 下的 *.zip（不递归），按文件名排序。
func listArchives(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("目录 %q 不可读：%w", dir, err)
	}

	zips := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !strings.HasSuffix(strings.ToLower(e.Name()), ".zip") {
			continue
		}
		zips = append(zips, filepath.Join(dir, e.Name()))
	}
	sort.Strings(zips)
	return zips, nil
}

// poolSize 返回实际 worker 数：不超过单元数，至少为 1。
func poolSize(configured, units int) int {
	if configured < 1 {
		configured = 1
	}
	if configured > units {
		return units
	}
	return configured
}

func syntheticFailed(code, msg string) domain.ArchiveResult {
	return domain.ArchiveResult{
		Status:    domain.StatusFailed,
		ErrorCode: code,
		ErrorMsg:  msg,
	}
}

func finish(rr domain.RunReport, item domain.ArchiveResult) domain.RunReport {
	rr.Archives = append(rr.Archives, item)
	rr.FinishedAt = time.Now().UTC()
	rr.Finalize()
	return rr
}

// hubCode 把 hub 的结构化错误映射为 report 的 error_code；其余用 fallback。
func hubCode(err error, fallback string) string {
	switch hub.Code(err) {
	case hub.ErrCodeAuthRequired:
		return domain.ErrCodeAuthRequired
	case hub.ErrCodeRepoNotFound:
		return domain.ErrCodeRepoNotFound
	default:
		return fallback
	}
}

func packErrCode(err error) string {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrCodeCanceled
	}
	if os.IsPermission(err) {
		return domain.ErrCodeIOFailed
	}
	return domain.ErrCodeZipFailed
}
