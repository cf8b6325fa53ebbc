package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/omeyang/xdelay/internal/app"
	"github.com/omeyang/xdelay/pkg/config/xconf"
	"github.com/omeyang/xdelay/pkg/lifecycle/xrun"
	"github.com/omeyang/xdelay/pkg/observability/xlog"
	"github.com/omeyang/xdelay/pkg/util/xjson"
)

// exitError 命令已完成输出，只需设置退出码。
type exitError struct {
	code int
}

func (e *exitError) Error() string { return "" }

// usageError 参数错误，退出码 2。
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

func onUsageError(_ context.Context, _ *cli.Command, err error, _ bool) error {
	return &usageError{msg: err.Error()}
}

func createCommands() []*cli.Command {
	return []*cli.Command{
		createServeCommand(),
		createConfigCommand(),
		createRecordCommand(),
		createSweepCommand(),
		createPublishCommand(),
		createVersionCommand(),
	}
}

func createServeCommand() *cli.Command {
	return &cli.Command{
		Name:         "serve",
		Usage:        "启动全部容器与清扫任务",
		OnUsageError: onUsageError,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "watch",
				Usage: "监视配置文件，日志级别即时生效",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cmdServe(ctx, cmd.String("config"), cmd.Bool("watch"))
		},
	}
}

func createVersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "版本信息",
		Action: func(_ context.Context, cmd *cli.Command) error {
			return printResult(cmd, map[string]string{
				"version":   Version,
				"commit":    GitCommit,
				"buildTime": BuildTime,
			})
		},
	}
}

// loadConfig 读取并校验配置。path 为空时使用默认配置，环境变量覆盖依然生效。
func loadConfig(path string) (*xconf.Loader, *xconf.Config, error) {
	var (
		loader *xconf.Loader
		err    error
	)
	if path == "" {
		loader, err = xconf.NewFromBytes([]byte("{}"), xconf.FormatJSON)
	} else {
		loader, err = xconf.New(path)
	}
	if err != nil {
		return nil, nil, err
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, err
	}
	return loader, cfg, nil
}

func cmdServe(ctx context.Context, path string, watch bool) error {
	loader, cfg, err := loadConfig(path)
	if err != nil {
		return err
	}
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}

	var extra []xrun.Service
	if watch && loader.Path() != "" {
		svc, err := a.WatchConfig(loader)
		if err != nil {
			return errors.Join(err, a.Close(context.WithoutCancel(ctx)))
		}
		extra = append(extra, svc)
	}

	err = a.Run(ctx, extra...)
	// 第一次信号取消了根 ctx，属于正常退出
	if ctx.Err() != nil && errors.Is(err, context.Canceled) {
		err = nil
	}
	return errors.Join(err, a.Close(context.WithoutCancel(ctx)))
}

// withApp 为一次性命令装配 App：日志写到 ErrWriter 且不低于 warn，
// 避免污染标准输出上的 JSON。
func withApp(ctx context.Context, cmd *cli.Command, fn func(ctx context.Context, a *app.App) error) error {
	_, cfg, err := loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}
	level, err := xlog.ParseLevel(cfg.Log.Level)
	if err != nil || level < xlog.LevelWarn {
		level = xlog.LevelWarn
	}
	logger, cleanup, err := xlog.New().
		SetOutput(cmd.Root().ErrWriter).
		SetFormat(cfg.Log.Format).
		SetLevel(level).
		Build()
	if err != nil {
		return err
	}
	defer func() { _ = cleanup() }()

	ctx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout"))
	defer cancel()

	a, err := app.New(ctx, cfg, app.WithLogger(logger))
	if err != nil {
		return err
	}
	return errors.Join(fn(ctx, a), a.Close(context.WithoutCancel(ctx)))
}

func printResult(cmd *cli.Command, v any) error {
	format, err := xjson.ParseFormat(cmd.String("output"))
	if err != nil {
		return &usageError{msg: err.Error()}
	}
	return xjson.Write(cmd.Root().Writer, v, format)
}

// setupSignalHandler 第一次信号取消 ctx，第二次强制退出（130 = 128 + SIGINT）。
func setupSignalHandler(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()

		<-sigCh
		signal.Stop(sigCh)
		os.Exit(130)
	}()
}
