package zipx

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/flate"

	"github.com/John-Robertt/zipbatch/internal/domain"
	"github.com/John-Robertt/zipbatch/internal/infra/fsx"
)

// deflater 用 klauspost 的 flate 替换标准库实现（产物仍是标准 deflate zip）。
func deflater(out io.Writer) (io.WriteCloser, error) {
	return flate.NewWriter(out, flate.DefaultCompression)
}

// WriteBatch 把一个 batch 写成 outDir 下的一个 zip：files_<Index>.zip。
//
// 契约：
// - 每个文件按 RelPath（斜杠分隔）作为 entry 名存储，解包可还原目录树
// - 每写完一个文件调用一次 progress(该文件字节数)：进度粒度是文件级
// - 通过临时文件 + rename 落盘：中途失败不留半成品
// - ctx 取消在文件边界生效（正在压缩的文件写完为止）
func WriteBatch(ctx context.Context, files []domain.FileEntry, b domain.Batch, outDir string, progress func(int64)) (domain.ArchiveHandle, error) {
	name := domain.ArchiveName(b.Index)

	af, err := fsx.NewAtomicFile(outDir, name)
	if err != nil {
		return domain.ArchiveHandle{}, fmt.Errorf("创建归档 %s 失败：%w", name, err)
	}
	defer af.Abort()

	zw := zip.NewWriter(af)
	zw.RegisterCompressor(zip.Deflate, deflater)

	for _, idx := range b.FileIdx {
		if err := ctx.Err(); err != nil {
			return domain.ArchiveHandle{}, err
		}

		entry := files[idx]
		if err := writeOne(zw, entry); err != nil {
			return domain.ArchiveHandle{}, fmt.Errorf("归档 %s 写入 %s 失败：%w", name, entry.RelPath, err)
		}
		if progress != nil {
			progress(entry.Size)
		}
	}

	if err := zw.Close(); err != nil {
		return domain.ArchiveHandle{}, fmt.Errorf("关闭归档 %s 失败：%w", name, err)
	}
	if err := af.Commit(); err != nil {
		return domain.ArchiveHandle{}, fmt.Errorf("落盘归档 %s 失败：%w", name, err)
	}

	return domain.ArchiveHandle{Index: b.Index, Path: af.Path()}, nil
}

func writeOne(zw *zip.Writer, entry domain.FileEntry) error {
	src, err := os.Open(entry.AbsPath)
	if err != nil {
		return err
	}
	defer src.Close()

	// entry 名必须是斜杠分隔的相对路径（zip 规范），与平台无关。
	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:   filepath.ToSlash(entry.RelPath),
		Method: zip.Deflate,
	})
	if err != nil {
		return err
	}

	_, err = io.Copy(w, src)
	return err
}
