package main

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/urfave/cli/v3"

	"github.com/omeyang/xdelay/internal/app"
	"github.com/omeyang/xdelay/pkg/config/xconf"
	"github.com/omeyang/xdelay/pkg/mq/xdelay"
	"github.com/omeyang/xdelay/pkg/mq/xidem"
	"github.com/omeyang/xdelay/pkg/util/xid"
)

func createRecordCommand() *cli.Command {
	reason := &cli.StringFlag{Name: "reason", Aliases: []string{"r"}, Usage: "操作原因，写入记录"}
	action := func(op string) cli.ActionFunc {
		return func(ctx context.Context, cmd *cli.Command) error {
			id := cmd.Args().First()
			if id == "" {
				return usagef("record %s: 缺少消息 ID", op)
			}
			return withApp(ctx, cmd, func(ctx context.Context, a *app.App) error {
				v, err := cmdRecord(ctx, a.Coordinator(), op, id, cmd.String("reason"))
				if err != nil {
					return err
				}
				return printResult(cmd, v)
			})
		}
	}
	return &cli.Command{
		Name:         "record",
		Usage:        "查看或人工干预消息记录",
		OnUsageError: onUsageError,
		Commands: []*cli.Command{
			{Name: "get", Usage: "查看记录", ArgsUsage: "<id>", Action: action("get")},
			{Name: "retry", Usage: "FAILED 记录立即重投", ArgsUsage: "<id>", Action: action("retry")},
			{Name: "cancel", Usage: "取消未完成的记录", ArgsUsage: "<id>", Flags: []cli.Flag{reason}, Action: action("cancel")},
			{Name: "skip", Usage: "跳过记录，后续投递直接确认", ArgsUsage: "<id>", Flags: []cli.Flag{reason}, Action: action("skip")},
		},
	}
}

// transitionResult 人工干预的结果。Changed 为 false 表示当前状态不允许该操作。
type transitionResult struct {
	MessageID string `json:"messageId"`
	Operation string `json:"operation"`
	Changed   bool   `json:"changed"`
	Status    string `json:"status,omitempty"`
}

func cmdRecord(ctx context.Context, coord *xidem.Coordinator, op, id, reason string) (any, error) {
	var (
		changed bool
		err     error
	)
	switch op {
	case "get":
		return coord.Get(ctx, id)
	case "retry":
		changed, err = coord.Retry(ctx, id)
	case "cancel":
		changed, err = coord.Cancel(ctx, id, reason)
	case "skip":
		changed, err = coord.Skip(ctx, id, reason)
	default:
		return nil, usagef("record: 未知操作 %q", op)
	}
	if err != nil {
		return nil, err
	}
	res := transitionResult{MessageID: id, Operation: op, Changed: changed}
	if rec, err := coord.Get(ctx, id); err == nil {
		res.Status = rec.Status.String()
	}
	return res, nil
}

func createSweepCommand() *cli.Command {
	olderThan := &cli.DurationFlag{Name: "older-than", Usage: "覆盖配置中的时间阈值"}
	action := func(job string) cli.ActionFunc {
		return func(ctx context.Context, cmd *cli.Command) error {
			return withApp(ctx, cmd, func(ctx context.Context, a *app.App) error {
				v, err := cmdSweep(ctx, a.Coordinator(), a.Config().Sweeper, job, cmd.Duration("older-than"))
				if err != nil {
					return err
				}
				return printResult(cmd, v)
			})
		}
	}
	return &cli.Command{
		Name:         "sweep",
		Usage:        "立即执行一次清扫",
		OnUsageError: onUsageError,
		Commands: []*cli.Command{
			{Name: "reclaim", Usage: "回收超时的 PROCESSING 记录", Flags: []cli.Flag{olderThan}, Action: action(xidem.JobReclaim)},
			{Name: "redeliver", Usage: "重投到期的 FAILED 记录", Action: action(xidem.JobRedeliver)},
			{Name: "archive", Usage: "归档已完成记录", Flags: []cli.Flag{olderThan}, Action: action(xidem.JobArchive)},
			{Name: "cleanup", Usage: "删除已归档记录", Flags: []cli.Flag{olderThan}, Action: action(xidem.JobCleanup)},
		},
	}
}

type sweepResult struct {
	Job         string `json:"job"`
	Count       int64  `json:"count"`
	Found       int    `json:"found,omitempty"`
	Rescheduled int    `json:"rescheduled,omitempty"`
}

func cmdSweep(ctx context.Context, coord *xidem.Coordinator, sc xconf.SweeperConfig, job string, olderThan time.Duration) (sweepResult, error) {
	threshold := func(def time.Duration) time.Duration {
		if olderThan > 0 {
			return olderThan
		}
		return def
	}
	res := sweepResult{Job: job}
	switch job {
	case xidem.JobReclaim:
		r, err := coord.ReclaimTimeouts(ctx, threshold(sc.ProcessingTimeout))
		if err != nil {
			return res, err
		}
		res.Count, res.Found, res.Rescheduled = int64(r.Reclaimed), r.Found, r.Rescheduled
	case xidem.JobRedeliver:
		n, err := coord.RedeliverDue(ctx)
		if err != nil {
			return res, err
		}
		res.Count = int64(n)
	case xidem.JobArchive:
		n, err := coord.Archive(ctx, threshold(sc.ArchiveAfter))
		if err != nil {
			return res, err
		}
		res.Count = n
	case xidem.JobCleanup:
		n, err := coord.Cleanup(ctx, threshold(sc.CleanupAfter))
		if err != nil {
			return res, err
		}
		res.Count = n
	default:
		return res, usagef("sweep: 未知任务 %q", job)
	}
	return res, nil
}

func createPublishCommand() *cli.Command {
	return &cli.Command{
		Name:         "publish",
		Usage:        "发布一条延迟消息",
		OnUsageError: onUsageError,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "topic", Usage: "目标 topic（必填）"},
			&cli.StringFlag{Name: "key", Usage: "分区键"},
			&cli.DurationFlag{Name: "delay", Usage: "延迟时长，0 表示立即投递"},
			&cli.StringFlag{Name: "payload", Usage: "消息体"},
			&cli.StringSliceFlag{Name: "header", Usage: "消息头 k=v，可重复"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			msg, err := buildMessage(cmd.String("topic"), cmd.String("key"), cmd.String("payload"), cmd.StringSlice("header"))
			if err != nil {
				return err
			}
			delay := cmd.Duration("delay")
			if delay < 0 {
				return usagef("publish: delay 不能为负")
			}
			return withApp(ctx, cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Publisher().PublishWithDelay(ctx, msg, delay); err != nil {
					return err
				}
				return printResult(cmd, map[string]any{
					"topic":     msg.Topic,
					"messageId": msg.Headers[xdelay.HeaderMessageID],
					"delay":     delay.String(),
				})
			})
		},
	}
}

// buildMessage 未给出 x-message-id 时生成一个，便于随后用 record get 追踪。
func buildMessage(topic, key, payload string, headers []string) (*xdelay.OutboundMessage, error) {
	if topic == "" {
		return nil, usagef("publish: --topic 必填")
	}
	msg := &xdelay.OutboundMessage{
		Topic:   topic,
		Key:     key,
		Payload: []byte(payload),
		Headers: make(map[string]string, len(headers)+1),
	}
	for _, h := range headers {
		k, v, ok := strings.Cut(h, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, usagef("publish: header %q 不是 k=v", h)
		}
		msg.Headers[strings.TrimSpace(k)] = v
	}
	if msg.Headers[xdelay.HeaderMessageID] == "" {
		id, err := xid.NewString()
		if err != nil {
			return nil, err
		}
		msg.Headers[xdelay.HeaderMessageID] = id
	}
	return msg, nil
}

func createConfigCommand() *cli.Command {
	return &cli.Command{
		Name:         "config",
		Usage:        "校验或打印生效配置",
		OnUsageError: onUsageError,
		Commands: []*cli.Command{
			{
				Name:  "check",
				Usage: "校验配置",
				Action: func(_ context.Context, cmd *cli.Command) error {
					if _, _, err := loadConfig(cmd.String("config")); err != nil {
						return err
					}
					return printResult(cmd, map[string]bool{"valid": true})
				},
			},
			{
				Name:  "show",
				Usage: "打印脱敏后的生效配置",
				Action: func(_ context.Context, cmd *cli.Command) error {
					_, cfg, err := loadConfig(cmd.String("config"))
					if err != nil {
						return err
					}
					return printResult(cmd, redact(cfg))
				},
			},
		},
	}
}

const masked = "******"

// redact 返回隐去口令与令牌的副本。
func redact(cfg *xconf.Config) *xconf.Config {
	c := *cfg
	mask := func(s *string) {
		if *s != "" {
			*s = masked
		}
	}
	mask(&c.Redis.Password)
	mask(&c.Etcd.Password)
	mask(&c.Broker.Pulsar.Token)
	mask(&c.Broker.Lmstfy.Token)
	c.Store.MySQL.DSN = redactDSN(c.Store.MySQL.DSN)
	c.Store.Mongo.URI = redactURI(c.Store.Mongo.URI)
	return &c
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return ""
	}
	mc, err := mysql.ParseDSN(dsn)
	if err != nil {
		return masked
	}
	if mc.Passwd != "" {
		mc.Passwd = masked
	}
	return mc.FormatDSN()
}

func redactURI(uri string) string {
	if uri == "" {
		return ""
	}
	u, err := url.Parse(uri)
	if err != nil || u.Scheme == "" {
		return masked
	}
	return u.Redacted()
}
