package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/John-Robertt/zipbatch/internal/app/run"
	"github.com/John-Robertt/zipbatch/internal/config"
	"github.com/John-Robertt/zipbatch/internal/domain"
)

func main() {
	args := os.Args[1:]
	if len(args) == 0 || isHelp(args[0]) {
		printUsage()
		return
	}

	switch args[0] {
	case "pack":
		if code := packCmd(args[1:]); code != 0 {
			os.Exit(code)
		}
	case "unpack":
		if code := unpackCmd(args[1:]); code != 0 {
			os.Exit(code)
		}
	default:
		fmt.Fprintf(os.Stderr, "未知命令：%q\n\n", args[0])
		printUsage()
		os.Exit(2)
	}
}

func packCmd(args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printPackUsage()
			return 0
		}
	}

	pa, err := parsePackArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printPackUsage()
		return 2
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取当前目录失败：%v\n", err)
		return 1
	}

	eff, err := config.LoadPack(cwd, pa)
	if err != nil {
		emitReport(reportForConfigError(domain.ModePack, err))
		return 1
	}

	return execute(eff, run.Pack)
}

func unpackCmd(args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printUnpackUsage()
			return 0
		}
	}

	ua, err := parseUnpackArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printUnpackUsage()
		return 2
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取当前目录失败：%v\n", err)
		return 1
	}

	eff, err := config.LoadUnpack(cwd, ua)
	if err != nil {
		emitReport(reportForConfigError(domain.ModeUnpack, err))
		return 1
	}

	return execute(eff, run.Unpack)
}

func execute(eff config.EffectiveConfig, do func(context.Context, config.EffectiveConfig, run.Observer) domain.RunReport) int {
	// SIGINT/SIGTERM：通过 ctx 优雅收尾（进行中的单元做完，排队的标记 canceled）。
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	progressW, interactive := pickProgressWriter()
	var obs run.Observer
	if interactive {
		obs = newProgressUI(progressW, eff.Mode)
	}

	rr := do(ctx, eff, obs)

	emitReport(rr)
	if rr.Summary.Failed == 0 {
		return 0
	}
	return 1
}

// parsePackArgs 解析 pack <output_dir> <input_dir> [--limit SIZE] [--upload] [--repo_id ID] [--token T]。
// 位置参数顺序固定：先产物目录，后扫描根。
func parsePackArgs(args []string) (config.CLIArgs, error) {
	ca := config.CLIArgs{}
	pos := make([]string, 0, 2)

	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--limit":
			v, ni, err := flagValue(args, i, "--limit")
			if err != nil {
				return config.CLIArgs{}, err
			}
			i = ni
			ca.Limit = v
			ca.LimitSet = true
		case strings.HasPrefix(a, "--limit="):
			ca.Limit = strings.TrimPrefix(a, "--limit=")
			ca.LimitSet = true
		case a == "--upload":
			ca.Upload = true
			ca.UploadSet = true
		case strings.HasPrefix(a, "--upload="):
			v, err := boolValue(a, "--upload")
			if err != nil {
				return config.CLIArgs{}, err
			}
			ca.Upload = v
			ca.UploadSet = true
		case a == "--repo_id":
			v, ni, err := flagValue(args, i, "--repo_id")
			if err != nil {
				return config.CLIArgs{}, err
			}
			i = ni
			ca.RepoID = v
			ca.RepoIDSet = true
		case strings.HasPrefix(a, "--repo_id="):
			ca.RepoID = strings.TrimPrefix(a, "--repo_id=")
			ca.RepoIDSet = true
		case a == "--token":
			v, ni, err := flagValue(args, i, "--token")
			if err != nil {
				return config.CLIArgs{}, err
			}
			i = ni
			ca.Token = v
			ca.TokenSet = true
		case strings.HasPrefix(a, "--token="):
			ca.Token = strings.TrimPrefix(a, "--token=")
			ca.TokenSet = true
		case strings.HasPrefix(a, "-"):
			return config.CLIArgs{}, fmt.Errorf("未知参数 %q", a)
		default:
			pos = append(pos, a)
		}
	}

	if len(pos) != 2 {
		return config.CLIArgs{}, fmt.Errorf("pack 需要两个位置参数 <output_dir> <input_dir>，实际 %d 个", len(pos))
	}
	ca.OutputDir = pos[0]
	ca.InputDir = pos[1]
	return ca, nil
}

// parseUnpackArgs 解析 unpack <zip_dir> <output_dir> [--repo_id ID] [--token T] [--delete_zip]。
func parseUnpackArgs(args []string) (config.CLIArgs, error) {
	ca := config.CLIArgs{}
	pos := make([]string, 0, 2)

	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--repo_id":
			v, ni, err := flagValue(args, i, "--repo_id")
			if err != nil {
				return config.CLIArgs{}, err
			}
			i = ni
			ca.RepoID = v
			ca.RepoIDSet = true
		case strings.HasPrefix(a, "--repo_id="):
			ca.RepoID = strings.TrimPrefix(a, "--repo_id=")
			ca.RepoIDSet = true
		case a == "--token":
			v, ni, err := flagValue(args, i, "--token")
			if err != nil {
				return config.CLIArgs{}, err
			}
			i = ni
			ca.Token = v
			ca.TokenSet = true
		case strings.HasPrefix(a, "--token="):
			ca.Token = strings.TrimPrefix(a, "--token=")
			ca.TokenSet = true
		case a == "--delete_zip":
			ca.DeleteZip = true
			ca.DeleteZipSet = true
		case strings.HasPrefix(a, "--delete_zip="):
			v, err := boolValue(a, "--delete_zip")
			if err != nil {
				return config.CLIArgs{}, err
			}
			ca.DeleteZip = v
			ca.DeleteZipSet = true
		case strings.HasPrefix(a, "-"):
			return config.CLIArgs{}, fmt.Errorf("未知参数 %q", a)
		default:
			pos = append(pos, a)
		}
	}

	if len(pos) != 2 {
		return config.CLIArgs{}, fmt.Errorf("unpack 需要两个位置参数 <zip_dir> <output_dir>，实际 %d 个", len(pos))
	}
	ca.ZipDir = pos[0]
	ca.OutputDir = pos[1]
	return ca, nil
}

func flagValue(args []string, i int, name string) (string, int, error) {
	if i+1 >= len(args) {
		return "", i, fmt.Errorf("%s 需要一个值", name)
	}
	return args[i+1], i + 1, nil
}

func boolValue(arg, name string) (bool, error) {
	v := strings.TrimPrefix(arg, name+"=")
	switch v {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, fmt.Errorf("%s 只能是 true 或 false，实际是 %q", name, v)
	}
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}

func printUsage() {
	fmt.Fprint(os.Stdout, `用法：
  zipbatch pack <output_dir> <input_dir> [--limit SIZE] [--upload] [--repo_id ID] [--token T]
  zipbatch unpack <zip_dir> <output_dir> [--repo_id ID] [--token T] [--delete_zip]

命令：
  pack    把目录打包成若干大小受限的 zip（files_1.zip, files_2.zip, ...）
  unpack  把目录下的 zip 批量解出（可选先从远端仓库下载）

使用 "zipbatch pack --help" / "zipbatch unpack --help" 查看详细说明。
`)
}

func printPackUsage() {
	fmt.Fprint(os.Stdout, `用法：
  zipbatch pack <output_dir> <input_dir> [--limit SIZE] [--upload] [--repo_id ID] [--token T]

参数：
  <output_dir>  归档产物目录
  <input_dir>   待打包的目录（递归扫描普通文件）
  --limit       单个归档大小上限，如 20GB / 512MB / 100（默认 20GB；按 1024 进位）
  --upload      打包后上传到远端仓库（需要 --repo_id 与 token）
  --repo_id     远端仓库 ID
  --token       远端仓库凭证（ACCESS:SECRET；也可在 zipbatch.json 配置）
  -h, --help    显示帮助
`)
}

func printUnpackUsage() {
	fmt.Fprint(os.Stdout, `用法：
  zipbatch unpack <zip_dir> <output_dir> [--repo_id ID] [--token T] [--delete_zip]

参数：
  <zip_dir>     归档所在目录（给了 --repo_id 则先下载到这里）
  <output_dir>  解包输出目录
  --repo_id     先从远端仓库下载归档（触发只看命令行，配置文件不会隐式开启）
  --token       远端仓库凭证（ACCESS:SECRET；也可在 zipbatch.json 配置）
  --delete_zip  每个归档成功解出后删除该 zip
  -h, --help    显示帮助
`)
}

func emitReport(rr domain.RunReport) {
	if isTTY(os.Stdout) {
		fmt.Fprintf(os.Stdout, "完成：archives=%d failed=%d skipped=%d files=%d\n",
			rr.Summary.Archives, rr.Summary.Failed, rr.Summary.Skipped, rr.Summary.Files,
		)
		if rr.Summary.Failed > 0 {
			for _, a := range rr.Archives {
				if a.Status != domain.StatusFailed {
					continue
				}
				key := a.Path
				if key == "" && a.Index > 0 {
					key = domain.ArchiveName(a.Index)
				}
				if key == "" {
					key = "<run>"
				}
				fmt.Fprintf(os.Stderr, "%s %s: %s\n", key, a.ErrorCode, a.ErrorMsg)
			}
		}
		return
	}

	// stdout 非 TTY：stdout 必须且仅输出一个 RunReport JSON（日志/摘要走 stderr）。
	enc := json.NewEncoder(os.Stdout)
	_ = enc.Encode(rr)
	fmt.Fprintf(os.Stderr, "完成：archives=%d failed=%d skipped=%d files=%d\n",
		rr.Summary.Archives, rr.Summary.Failed, rr.Summary.Skipped, rr.Summary.Files,
	)
}

// reportForConfigError 把配置阶段错误包成与正常运行同构的 RunReport，
// 保证 stdout JSON 契约在失败路径同样成立。
func reportForConfigError(mode string, err error) domain.RunReport {
	code := config.Code(err)
	if code == "" {
		code = domain.ErrCodeConfigInvalid
	}
	rr := domain.RunReport{
		Mode: mode,
		Archives: []domain.ArchiveResult{{
			Status:    domain.StatusFailed,
			ErrorCode: code,
			ErrorMsg:  err.Error(),
		}},
		Skipped: []domain.SkippedFile{},
	}
	rr.Finalize()
	return rr
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func pickProgressWriter() (io.Writer, bool) {
	// 进度输出只在交互终端启用；默认走 stderr（不污染 stdout JSON）。
	if isTTY(os.Stderr) {
		return os.Stderr, true
	}
	// 某些环境（例如仅重定向 stderr）下，stdout 仍是 TTY：退化输出到 stdout。
	if isTTY(os.Stdout) {
		return os.Stdout, true
	}
	return nil, false
}
