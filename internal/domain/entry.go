package domain

// FileEntry 描述一次扫描得到的普通文件（只做 stat，不读内容）。
//
// 不变量（实现必须遵守）：
// - AbsPath 必须是 clean + absolute
// - RelPath 相对扫描根目录，归档时必须用 RelPath 作为 entry 名
// - Size 来自扫描时的 stat，批处理阶段不再重新 stat
type FileEntry struct {
	AbsPath string
	RelPath string
	Size    int64
}

// SkippedFile 描述因超过单文件上限而被排除的文件。
// 跳过是警告而不是错误：run 继续，exit code 仍为 0。
type SkippedFile struct {
	RelPath string `json:"rel_path"`
	Size    int64  `json:"size"`
	Limit   int64  `json:"limit"`
}
