package run

import (
	"time"

	"github.com/John-Robertt/zipbatch/internal/config"
	"github.com/John-Robertt/zipbatch/internal/domain"
)

// Observer 用于把“运行进度/阶段/单元结果”从核心执行流程中解耦出来。
//
// 约束：
// - run 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）。
// - Observer 的实现必须并发安全：事件可能来自多个 goroutine。
type Observer interface {
	// OnStart 在 Pack/Unpack 开始时调用（应尽量早，保证用户 1 秒内看到输出）。
	OnStart(eff config.EffectiveConfig)
	// OnPhaseDone 在阶段结束/就绪时调用（用于打印阶段统计与耗时）。
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
	// OnUnitDone 在某个工作单元（一个 batch / 一个归档）完成时调用。
	OnUnitDone(idx, total int, res domain.ArchiveResult, dur time.Duration)
	// OnProgress 由 run 层的 ticker 周期触发，发布共享进度计数。
	// pack：done/total 是字节数；unpack：done/total 是 entry 数。
	OnProgress(done, total int64, elapsed time.Duration)
}
