// Package hub 是远端归档仓库的薄封装（S3 兼容对象存储，经 minio 客户端）。
//
// 约定：repo_id 即 bucket 名；token 形如 "ACCESS:SECRET"（静态 v4 凭证）。
// 核心流程只消费 Download/Upload 两个操作，不感知任何远端细节。
package hub

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	// ErrCodeAuthRequired 表示没有（或无法使用）凭证。
	ErrCodeAuthRequired = "auth_required"
	// ErrCodeRepoNotFound 表示远端不存在该 repo。
	ErrCodeRepoNotFound = "repo_not_found"
)

// Error 是远端仓库操作的结构化错误（带 error_code）。
type Error struct {
	Code string
	Repo string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeAuthRequired:
		if e.Err != nil {
			return fmt.Sprintf("%s：远端仓库需要有效 token（ACCESS:SECRET）：%v", e.Code, e.Err)
		}
		return fmt.Sprintf("%s：远端仓库需要 token（ACCESS:SECRET）", e.Code)
	case ErrCodeRepoNotFound:
		return fmt.Sprintf("%s：远端不存在 repo %q", e.Code, e.Repo)
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

// Client 持有一个已配置凭证的对象存储连接。
type Client struct {
	mc *minio.Client
}

// New 创建远端仓库客户端。token 缺失或格式不对返回 auth_required。
func New(endpoint, token string) (*Client, error) {
	ak, sk, err := splitToken(token)
	if err != nil {
		return nil, &Error{Code: ErrCodeAuthRequired, Err: err}
	}

	mc, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(ak, sk, ""),
		Secure: true,
	})
	if err != nil {
		return nil, fmt.Errorf("连接 %s 失败：%w", endpoint, err)
	}
	return &Client{mc: mc}, nil
}

// Download 把 repoID 下的全部 *.zip 对象下载到 destDir，返回本地路径。
// repo 不存在返回 repo_not_found；凭证无效返回 auth_required。
func (c *Client) Download(ctx context.Context, repoID, destDir string) ([]string, error) {
	if err := c.ensureRepo(ctx, repoID); err != nil {
		return nil, err
	}

	paths := make([]string, 0, 8)
	for obj := range c.mc.ListObjects(ctx, repoID, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return nil, classify(repoID, obj.Err)
		}
		if !strings.HasSuffix(obj.Key, ".zip") {
			continue
		}

		// 对象 key 可能带前缀路径；本地只按文件名落盘。
		local := filepath.Join(destDir, filepath.Base(filepath.FromSlash(obj.Key)))
		if err := c.mc.FGetObject(ctx, repoID, obj.Key, local, minio.GetObjectOptions{}); err != nil {
			return nil, classify(repoID, err)
		}
		paths = append(paths, local)
	}
	return paths, nil
}

// Upload 把本地归档上传到 repoID（对象名 = 文件名）。
func (c *Client) Upload(ctx context.Context, localPath, repoID string) error {
	if err := c.ensureRepo(ctx, repoID); err != nil {
		return err
	}

	_, err := c.mc.FPutObject(ctx, repoID, filepath.Base(localPath), localPath, minio.PutObjectOptions{
		ContentType: "application/zip",
	})
	if err != nil {
		return classify(repoID, err)
	}
	return nil
}

func (c *Client) ensureRepo(ctx context.Context, repoID string) error {
	found, err := c.mc.BucketExists(ctx, repoID)
	if err != nil {
		return classify(repoID, err)
	}
	if !found {
		return &Error{Code: ErrCodeRepoNotFound, Repo: repoID}
	}
	return nil
}

// classify 把 S3 响应码映射到本地错误分类；其余原样透传（带 repo 上下文）。
func classify(repoID string, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchBucket":
		return &Error{Code: ErrCodeRepoNotFound, Repo: repoID, Err: err}
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return &Error{Code: ErrCodeAuthRequired, Repo: repoID, Err: err}
	default:
		return fmt.Errorf("repo %s：%w", repoID, err)
	}
}

func splitToken(token string) (ak, sk string, err error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", "", errors.New("token 为空")
	}
	ak, sk, ok := strings.Cut(token, ":")
	if !ok || ak == "" || sk == "" {
		return "", "", fmt.Errorf("token 必须形如 ACCESS:SECRET")
	}
	return ak, sk, nil
}
