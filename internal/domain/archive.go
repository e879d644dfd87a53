package domain

import "fmt"

// ArchiveName 返回第 index 个归档的文件名（index 从 1 开始，按 batch 关闭顺序）。
// 命名是对外契约的一部分：unpack 只认 *.zip，上传/下载按原名传输。
func ArchiveName(index int) string {
	return fmt.Sprintf("files_%d.zip", index)
}

// ArchiveHandle 描述一个已经落盘的归档文件。
// 生命周期等于磁盘上该文件的生命周期（unpack 的 --delete_zip 会结束它）。
type ArchiveHandle struct {
	Index int
	Path  string
}
