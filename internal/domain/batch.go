package domain

// Batch 是将成为一个 zip 的文件分组。
// 为了数据局部性，Batch 只保存文件下标（指向 []FileEntry），避免复制大结构体。
//
// 不变量：
// - Size == 所有成员 Size 之和，且 Size <= limit（成员已先通过单文件上限过滤）
// - Index 从 1 开始，按 batch 关闭顺序分配（== 归档文件名里的序号）
type Batch struct {
	Index   int
	FileIdx []int
	Size    int64
}
