package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/John-Robertt/vidpreview/internal/blob"
	"github.com/John-Robertt/vidpreview/internal/config"
	"github.com/John-Robertt/vidpreview/internal/domain"
	"github.com/John-Robertt/vidpreview/internal/format"
	"github.com/John-Robertt/vidpreview/internal/httpapi"
	"github.com/John-Robertt/vidpreview/internal/infra/fsx"
	"github.com/John-Robertt/vidpreview/internal/infra/logx"
	"github.com/John-Robertt/vidpreview/internal/preview"
	"github.com/John-Robertt/vidpreview/internal/render"
	"github.com/John-Robertt/vidpreview/internal/scan"
	"github.com/John-Robertt/vidpreview/internal/transfer"
	"github.com/John-Robertt/vidpreview/internal/validate"
)

const teardownTimeout = 5 * time.Second

func main() {
	args := os.Args[1:]
	if len(args) == 0 || isHelp(args[0]) {
		printUsage()
		return
	}

	switch args[0] {
	case "serve":
		if code := serveCmd(args[1:]); code != 0 {
			os.Exit(code)
		}
	case "check":
		if code := checkCmd(args[1:]); code != 0 {
			os.Exit(code)
		}
	default:
		fmt.Fprintf(os.Stderr, "未知命令：%q\n\n", args[0])
		printUsage()
		os.Exit(2)
	}
}

func serveCmd(args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printServeUsage()
			return 0
		}
	}

	ca, err := parseArgs(args, true, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printServeUsage()
		return 2
	}

	eff, err := loadConfig(ca)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败：%v\n", err)
		return 1
	}

	log := logx.New(eff.LogLevel, eff.LogFormat, os.Stderr)

	page, err := render.NewPage(eff.NameMaxLength)
	if err != nil {
		log.Error().Err(err).Msg("init page failed")
		return 1
	}
	blobs := blob.NewRegistry(blob.DefaultBasePath, log)

	progress := progressTee{page}
	errs := errorTee{page}
	var obs preview.Observer

	progressW, interactive := pickProgressWriter()
	if interactive {
		ui := newProgressUI(progressW)
		ui.OnServeStart(eff)
		progress = append(progress, ui)
		errs = append(errs, ui)
		obs = ui
		defer ui.Close()
	}

	mgr, err := preview.New(preview.Options{
		Validator: validate.New(eff.AllowedTypes, eff.MaxFileSize),
		Transport: transfer.Simulator{
			Interval: eff.ProgressInterval,
			MaxStep:  eff.ProgressMaxStep,
		},
		Resources:     blobs,
		Render:        page,
		Progress:      progress,
		Errors:        errs,
		Observer:      obs,
		Logger:        log,
		ErrorDismiss:  eff.ErrorDismiss,
		ProgressGrace: eff.ProgressGrace,
	})
	if err != nil {
		log.Error().Err(err).Msg("init preview manager failed")
		return 1
	}

	if len(eff.Paths) > 0 {
		cands, err := scan.Candidates(eff.Paths, eff.ExcludeDirs)
		if err != nil {
			log.Error().Err(err).Msg("scan paths failed")
			return 1
		}
		mgr.ProcessCandidates(cands)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := httpapi.New(httpapi.Options{
		Addr:          eff.Addr,
		Manager:       mgr,
		Page:          page,
		Blobs:         blobs,
		ExcludeDirs:   eff.ExcludeDirs,
		Logger:        log,
		NameMaxLength: eff.NameMaxLength,
	})
	runErr := srv.Run(ctx)

	tctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	released := mgr.Teardown(tctx)
	cancel()
	log.Info().Int("released", released).Int("revoked", blobs.Revoked()).Int("live", blobs.Live()).Msg("shutdown complete")

	if runErr != nil {
		log.Error().Err(runErr).Msg("HTTP server failed")
		return 1
	}
	return 0
}

func checkCmd(args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printCheckUsage()
			return 0
		}
	}

	ca, err := parseArgs(args, false, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printCheckUsage()
		return 2
	}
	if len(ca.Paths) == 0 {
		fmt.Fprint(os.Stderr, "参数错误：check 至少需要一个 path\n\n")
		printCheckUsage()
		return 2
	}

	startedAt := time.Now()
	eff, err := loadConfig(ca)
	if err != nil {
		emitReport(reportForError(ca.Paths, startedAt, config.Code(err), err))
		return 1
	}

	log := logx.New(eff.LogLevel, eff.LogFormat, os.Stderr)

	var ui *progressUI
	if w, interactive := pickProgressWriter(); interactive {
		ui = newProgressUI(w)
	}

	cands, err := scan.Candidates(eff.Paths, eff.ExcludeDirs)
	if err != nil {
		log.Warn().Err(err).Msg("scan paths failed")
		emitReport(reportForError(eff.Paths, startedAt, domain.ErrCodeIOFailed, err))
		return 1
	}

	rr := runCheck(validate.New(eff.AllowedTypes, eff.MaxFileSize), eff.Paths, cands, startedAt, ui)

	if ca.ReportPath != "" {
		if err := writeReportFile(ca.ReportPath, rr); err != nil {
			fmt.Fprintln(os.Stderr, reportWriteMessage(err))
			emitReport(rr)
			return 1
		}
	}

	emitReport(rr)
	if ui != nil && ca.ReportPath != "" {
		fmt.Fprintf(ui.w, "report: %s\n", ca.ReportPath)
	}
	if rr.Summary.Rejected == 0 && rr.Summary.Failed == 0 {
		return 0
	}
	return 1
}

// runCheck 对每个候选文件做与 serve 相同的校验，生成 CheckReport。
func runCheck(v *validate.Validator, paths []string, cands []domain.Candidate, startedAt time.Time, ui *progressUI) domain.CheckReport {
	rr := domain.CheckReport{
		Paths:     paths,
		StartedAt: startedAt,
		Items:     make([]domain.CheckItem, 0, len(cands)),
	}
	if ui != nil {
		ui.OnCheckStart(paths, len(cands))
	}
	for i, c := range cands {
		it := domain.CheckItem{
			Name:      c.Name,
			Path:      c.Path,
			MediaType: c.MediaType,
			Size:      c.Size,
			SizeText:  format.ByteSize(c.Size),
			Status:    domain.StatusAccepted,
		}
		if res := v.Validate(c); !res.Accepted {
			it.Status = domain.StatusRejected
			it.ErrorCode = res.Code
			it.ErrorMsg = res.Reason
		}
		rr.Items = append(rr.Items, it)
		if ui != nil {
			ui.OnCheckItem(i+1, len(cands), it)
		}
	}
	rr.FinishedAt = time.Now()
	rr.Finalize()
	return rr
}

func loadConfig(ca cliArgs) (config.EffectiveConfig, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return config.EffectiveConfig{}, fmt.Errorf("读取当前目录失败：%w", err)
	}
	return config.LoadEffective(cwd, config.CLIArgs{
		Paths:      ca.Paths,
		ConfigPath: ca.ConfigPath,
		Addr:       ca.Addr,
		AddrSet:    ca.AddrSet,
	})
}

type cliArgs struct {
	Paths      []string
	ConfigPath string
	Addr       string
	AddrSet    bool
	ReportPath string
}

// parseArgs 解析 serve/check 共用的参数；allowAddr/allowReport 控制子命令特有的参数。
func parseArgs(args []string, allowAddr, allowReport bool) (cliArgs, error) {
	ca := cliArgs{}

	value := func(i *int, name string) (string, error) {
		if *i+1 >= len(args) {
			return "", fmt.Errorf("%s 需要一个值", name)
		}
		*i++
		return args[*i], nil
	}

	for i := 0; i < len(args); i++ {
		a := args[i]
		var err error
		switch {
		case a == "--config":
			ca.ConfigPath, err = value(&i, a)
		case strings.HasPrefix(a, "--config="):
			ca.ConfigPath = strings.TrimPrefix(a, "--config=")
		case allowAddr && a == "--addr":
			ca.Addr, err = value(&i, a)
			ca.AddrSet = true
		case allowAddr && strings.HasPrefix(a, "--addr="):
			ca.Addr = strings.TrimPrefix(a, "--addr=")
			ca.AddrSet = true
		case allowReport && a == "--report":
			ca.ReportPath, err = value(&i, a)
		case allowReport && strings.HasPrefix(a, "--report="):
			ca.ReportPath = strings.TrimPrefix(a, "--report=")
		case a == "--":
			ca.Paths = append(ca.Paths, args[i+1:]...)
			i = len(args)
		case strings.HasPrefix(a, "-"):
			return cliArgs{}, fmt.Errorf("未知参数 %q", a)
		default:
			ca.Paths = append(ca.Paths, a)
		}
		if err != nil {
			return cliArgs{}, err
		}
	}

	if ca.AddrSet && strings.TrimSpace(ca.Addr) == "" {
		return cliArgs{}, fmt.Errorf("--addr 不能为空")
	}
	if strings.HasPrefix(ca.ConfigPath, "--") {
		return cliArgs{}, fmt.Errorf("--config 需要一个值")
	}
	return ca, nil
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}

func printUsage() {
	fmt.Fprint(os.Stdout, `用法：
  vidpreview serve [path...] [--addr host:port] [--config file]
  vidpreview check <path...> [--config file] [--report file]

命令：
  serve  启动预览服务（可选：启动时接纳 path 下的视频）
  check  只做格式/大小校验并输出报告，不启动服务

使用 "vidpreview <命令> --help" 查看详细说明。
`)
}

func printServeUsage() {
	fmt.Fprint(os.Stdout, `用法：
  vidpreview serve [path...] [--addr host:port] [--config file]

参数：
  path        启动时接纳的文件或目录（目录会递归展开）
  --addr      监听地址（覆盖 VIDPREVIEW_ADDR 与配置文件；默认 127.0.0.1:8080）
  --config    配置文件路径（默认读取 ./vidpreview.json|.yaml|.yml，均可选）
  -h, --help  显示帮助
`)
}

func printCheckUsage() {
	fmt.Fprint(os.Stdout, `用法：
  vidpreview check <path...> [--config file] [--report file]

参数：
  path        待校验的文件或目录（目录会递归展开）
  --config    配置文件路径（默认读取 ./vidpreview.json|.yaml|.yml，均可选）
  --report    额外把报告 JSON 原子写入该文件
  -h, --help  显示帮助

退出码：全部接纳为 0；存在拒绝或失败为 1；参数错误为 2。
`)
}

func emitReport(rr domain.CheckReport) {
	summary := fmt.Sprintf("完成：accepted=%d rejected=%d failed=%d\n",
		rr.Summary.Accepted, rr.Summary.Rejected, rr.Summary.Failed,
	)
	if isTTY(os.Stdout) {
		fmt.Fprint(os.Stdout, summary)
		for _, it := range rr.Items {
			if it.Status == domain.StatusAccepted {
				continue
			}
			key := it.Path
			if key == "" {
				key = "<config>"
			}
			fmt.Fprintf(os.Stderr, "%s %s: %s\n", key, it.ErrorCode, it.ErrorMsg)
		}
		return
	}

	// stdout 非 TTY：stdout 只输出一个 CheckReport JSON（摘要走 stderr）。
	enc := json.NewEncoder(os.Stdout)
	_ = enc.Encode(rr)
	fmt.Fprint(os.Stderr, summary)
}

func reportForError(paths []string, startedAt time.Time, code string, err error) domain.CheckReport {
	if code == "" {
		code = domain.ErrCodeIOFailed
	}
	rr := domain.CheckReport{
		Paths:      paths,
		StartedAt:  startedAt,
		FinishedAt: time.Now(),
		Items: []domain.CheckItem{{
			Status:    domain.StatusFailed,
			ErrorCode: code,
			ErrorMsg:  err.Error(),
		}},
	}
	rr.Finalize()
	return rr
}

func reportWriteMessage(err error) string {
	if fsx.IsPathTypeConflict(err) {
		return fmt.Sprintf("写入报告失败：%v；请为 --report 指定文件路径而不是目录", err)
	}
	return fmt.Sprintf("写入报告失败：%v", err)
}

func writeReportFile(path string, rr domain.CheckReport) error {
	b, err := json.MarshalIndent(rr, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	return fsx.WriteFile(abs, b)
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
	if isTTY(os.Stdout) {
		return os.Stdout, true
	}
	return nil, false
}
