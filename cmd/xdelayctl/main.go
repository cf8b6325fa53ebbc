// xdelayctl 运行与运维 xdelay 延迟消息消费引擎。
//
// 用法:
//
//	xdelayctl [全局选项] <命令> [命令参数]
//
// 全局选项:
//
//	-c, --config   配置文件路径，.yaml/.yml/.json (环境变量 XDELAY_CONFIG)，为空时使用默认配置
//	-t, --timeout  单次命令超时时间 (默认: 30s，serve 不受限)
//	-o, --output   输出格式 pretty|compact (默认: pretty)
//
// 命令:
//
//	serve                       启动全部容器与清扫任务，直到收到 SIGINT/SIGTERM
//	config check|show           校验配置 / 打印脱敏后的生效配置
//	record get|retry|cancel|skip <id>
//	                            查看或人工干预消息记录
//	sweep reclaim|redeliver|archive|cleanup
//	                            立即执行一次清扫
//	publish                     发布一条延迟消息
//	version                     版本信息
//
// 退出码:
//
//	0: 成功
//	1: 执行失败（记录不存在、连接失败等）
//	2: 参数错误
//
// 示例:
//
//	xdelayctl -c xdelay.yaml serve --watch
//	xdelayctl -c xdelay.yaml record get order-1001
//	xdelayctl -c xdelay.yaml record skip order-1001 --reason "人工补单"
//	xdelayctl -c xdelay.yaml sweep redeliver
//	xdelayctl -c xdelay.yaml publish --topic order.timeout --delay 15m --payload '{"id":1001}'
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v3"
)

const defaultTimeout = 30 * time.Second

// 版本信息，通过 -ldflags "-X main.Version=..." 注入。
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

func createApp(stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "xdelayctl",
		Usage:     "xdelay 延迟消息消费引擎",
		Version:   fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "配置文件路径，为空时使用默认配置",
				Sources: cli.EnvVars("XDELAY_CONFIG"),
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Aliases: []string{"t"},
				Usage:   "单次命令超时时间",
				Value:   defaultTimeout,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "输出格式 pretty|compact",
				Value:   "pretty",
			},
		},
		Commands:       createCommands(),
		DefaultCommand: "help",
		OnUsageError:   onUsageError,
		// 退出码统一由 run 映射，禁止 urfave/cli 直接 os.Exit
		ExitErrHandler: func(_ context.Context, cmd *cli.Command, err error) {
			if _, ok := err.(cli.ExitCoder); ok {
				fmt.Fprintln(cmd.Root().ErrWriter, err)
			}
		},
	}
}

func run(args []string, stdout, stderr io.Writer) int {
	app := createApp(stdout, stderr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignalHandler(cancel)

	return exitCode(app.Run(ctx, args), stderr)
}

// exitCode 将命令错误映射为退出码并输出错误信息。
func exitCode(err error, stderr io.Writer) int {
	if err == nil {
		return 0
	}
	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	var usageErr *usageError
	if errors.As(err, &usageErr) {
		fmt.Fprintf(stderr, "参数错误: %v\n", usageErr)
		return 2
	}
	fmt.Fprintf(stderr, "错误: %v\n", err)
	return 1
}
