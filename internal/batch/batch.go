package batch

import (
	"sort"

	"github.com/John-Robertt/zipbatch/internal/domain"
)

// Split 把已过滤（每个 Size <= limit）的文件划分为若干个总大小不超过
// limit 的 batch（贪心降序装箱，单遍；刻意不做最优装箱）。
//
// 算法：
// 1. 按 Size 降序稳定排序（相同 Size 保持扫描顺序）
// 2. 顺序放入当前 batch；放不下且当前 batch 非空时关闭它，
//    用该文件开启新 batch
// 3. 收尾关闭最后一个非空 batch
//
// 不变量：
// - 每个输入文件恰好出现在一个 batch 中（不重复、不丢失）
// - 每个 batch 的 Size 之和 <= limit（前提：输入已通过单文件上限过滤）
// - Index 从 1 开始，按关闭顺序分配
//
// 空输入返回空切片（零个归档），不是错误。
func Split(files []domain.FileEntry, limit int64) []domain.Batch {
	// 排序作用在下标上，不动调用方的切片（batch 只存下标）。
	order := make([]int, len(files))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return files[order[i]].Size > files[order[j]].Size
	})

	batches := make([]domain.Batch, 0, 8)
	var cur domain.Batch

	for _, idx := range order {
		size := files[idx].Size
		if cur.Size+size > limit && len(cur.FileIdx) > 0 {
			cur.Index = len(batches) + 1
			batches = append(batches, cur)
			cur = domain.Batch{FileIdx: []int{idx}, Size: size}
			continue
		}
		cur.FileIdx = append(cur.FileIdx, idx)
		cur.Size += size
	}

	if len(cur.FileIdx) > 0 {
		cur.Index = len(batches) + 1
		batches = append(batches, cur)
	}
	return batches
}
