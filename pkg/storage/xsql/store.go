package xsql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/omeyang/xdelay/internal/storageopt"
	"github.com/omeyang/xdelay/pkg/mq/xidem"
	"github.com/omeyang/xdelay/pkg/observability/xlog"
	"github.com/omeyang/xdelay/pkg/observability/xmetrics"
)

const component = "xsql"

// mysqlDuplicateEntry ER_DUP_ENTRY。
const mysqlDuplicateEntry = 1062

// RecordStore MySQL 台账。
type RecordStore struct {
	db       *gorm.DB
	opts     *Options
	owned    bool
	detector *storageopt.SlowQueryDetector[SlowQueryInfo]
	health   storageopt.HealthCounter
	ops      storageopt.OpCounter
	closed   atomic.Bool
}

// Open 按 DSN 建立连接并创建台账，Close 时一并关闭连接池。
func Open(dsn string, opts ...Option) (*RecordStore, error) {
	if dsn == "" {
		return nil, ErrEmptyDSN
	}
	o := applyOptions(opts)
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 newGormLogger(o.Logger, o.LogSQL),
	})
	if err != nil {
		return nil, fmt.Errorf("xsql: open: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("xsql: open: %w", err)
	}
	sqlDB.SetMaxOpenConns(o.MaxOpenConns)
	sqlDB.SetMaxIdleConns(o.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(o.ConnMaxLifetime)

	s, err := newRecordStore(db, o)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// NewRecordStore 在已有连接上创建台账，不负责连接的生命周期。
func NewRecordStore(db *gorm.DB, opts ...Option) (*RecordStore, error) {
	if db == nil {
		return nil, ErrNilDB
	}
	return newRecordStore(db, applyOptions(opts))
}

func applyOptions(opts []Option) *Options {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

func newRecordStore(db *gorm.DB, o *Options) (*RecordStore, error) {
	sq := storageopt.SlowQueryOptions[SlowQueryInfo]{Threshold: o.SlowQueryThreshold}
	if o.SlowQueryHook != nil {
		sq.SyncHook = storageopt.SlowQueryHook[SlowQueryInfo](o.SlowQueryHook)
	}
	if o.AsyncSlowQueryHook != nil {
		sq.AsyncHook = storageopt.AsyncSlowQueryHook[SlowQueryInfo](o.AsyncSlowQueryHook)
	}
	detector, err := storageopt.NewSlowQueryDetector(sq)
	if err != nil {
		return nil, err
	}
	return &RecordStore{db: db, opts: o, detector: detector}, nil
}

// Migrate 建表与索引，幂等。
func (s *RecordStore) Migrate(ctx context.Context) error {
	return s.write(ctx, "migrate", func(tx *gorm.DB) error {
		return tx.Migrator().AutoMigrate(&recordRow{})
	})
}

func (s *RecordStore) FindByMessageID(ctx context.Context, id string) (*xidem.MessageRecord, error) {
	var row recordRow
	err := s.read(ctx, "find_one", func(tx *gorm.DB) error {
		return tx.Where("message_id = ?", id).Take(&row).Error
	})
	if err != nil {
		return nil, err
	}
	return row.record(), nil
}

func (s *RecordStore) Insert(ctx context.Context, rec *xidem.MessageRecord) (*xidem.MessageRecord, bool, error) {
	if rec == nil || rec.MessageID == "" {
		return nil, false, xidem.ErrEmptyMessageID
	}
	doc := rec.Clone()
	doc.Version = 1
	row := toRow(doc)
	err := s.write(ctx, "insert", func(tx *gorm.DB) error {
		return tx.Create(row).Error
	})
	if isDuplicate(err) {
		existing, ferr := s.FindByMessageID(ctx, rec.MessageID)
		if ferr != nil {
			return nil, false, ferr
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

func (s *RecordStore) Save(ctx context.Context, rec *xidem.MessageRecord) error {
	next := toRow(rec)
	next.Version = rec.Version + 1

	var affected int64
	err := s.write(ctx, "update", func(tx *gorm.DB) error {
		res := tx.Where("message_id = ? AND version = ?", rec.MessageID, rec.Version).
			Updates(next.columns())
		affected = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return s.missOrConflict(ctx, rec.MessageID)
	}
	rec.Version = next.Version
	return nil
}

// missOrConflict 条件更新未命中时区分记录不存在与版本不一致。
func (s *RecordStore) missOrConflict(ctx context.Context, id string) error {
	var n int64
	err := s.read(ctx, "count", func(tx *gorm.DB) error {
		return tx.Where("message_id = ?", id).Count(&n).Error
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return xidem.ErrRecordNotFound
	}
	return xidem.ErrVersionConflict
}

func (s *RecordStore) ExistsByBusinessKeyAndType(ctx context.Context, businessKey, messageType string) (bool, error) {
	var n int64
	err := s.read(ctx, "count", func(tx *gorm.DB) error {
		return tx.Where("business_key = ? AND message_type = ? AND status = ?",
			businessKey, messageType, string(xidem.StatusSuccess)).
			Count(&n).Error
	})
	return n > 0, err
}

func (s *RecordStore) FindRetryable(ctx context.Context, statuses []xidem.Status, maxRetry int, now time.Time, limit int) ([]*xidem.MessageRecord, error) {
	return s.find(ctx, "find_retryable", limit, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("status IN ? AND retry_count < ? AND next_retry_time <= ?",
			statusStrings(statuses), maxRetry, now)
	})
}

func (s *RecordStore) FindTimedOut(ctx context.Context, statuses []xidem.Status, threshold time.Time, limit int) ([]*xidem.MessageRecord, error) {
	return s.find(ctx, "find_timed_out", limit, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("status IN ? AND updated_time < ?", statusStrings(statuses), threshold)
	})
}

func (s *RecordStore) find(ctx context.Context, op string, limit int, scope func(*gorm.DB) *gorm.DB) ([]*xidem.MessageRecord, error) {
	var rows []recordRow
	err := s.read(ctx, op, func(tx *gorm.DB) error {
		q := scope(tx).Order("updated_time ASC, message_id ASC")
		if limit > 0 {
			q = q.Limit(limit)
		}
		return q.Find(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	out := make([]*xidem.MessageRecord, len(rows))
	for i := range rows {
		out[i] = rows[i].record()
	}
	return out, nil
}

func (s *RecordStore) DeleteOlderThan(ctx context.Context, t time.Time, statuses []xidem.Status) (int64, error) {
	var n int64
	err := s.write(ctx, "delete", func(tx *gorm.DB) error {
		res := tx.Where("status IN ? AND updated_time < ?", statusStrings(statuses), t).
			Delete(&recordRow{})
		n = res.RowsAffected
		return res.Error
	})
	return n, err
}

func (s *RecordStore) ArchiveOlderThan(ctx context.Context, t time.Time, statuses []xidem.Status) (int64, error) {
	var n int64
	err := s.write(ctx, "archive", func(tx *gorm.DB) error {
		res := tx.Where("status IN ? AND updated_time < ?", statusStrings(statuses), t).
			Updates(map[string]any{
				"status":  string(xidem.StatusArchived),
				"version": gorm.Expr("version + 1"),
			})
		n = res.RowsAffected
		return res.Error
	})
	return n, err
}

// Health Ping 连接池。
func (s *RecordStore) Health(ctx context.Context) (err error) {
	if s.closed.Load() {
		return ErrClosed
	}
	ctx, span := xmetrics.Start(ctx, s.opts.Observer, xmetrics.SpanOptions{
		Component: component,
		Operation: "health",
		Kind:      xmetrics.KindClient,
		Attrs:     []xmetrics.Attr{xmetrics.String("db.system", "mysql")},
	})
	defer func() { span.End(xmetrics.Result{Err: err}) }()

	s.health.IncPing()
	sqlDB, err := s.db.DB()
	if err != nil {
		s.health.IncPingError()
		return fmt.Errorf("xsql health: %w", err)
	}
	ctx, cancel := storageopt.HealthContext(ctx, s.opts.HealthTimeout)
	defer cancel()
	if err = sqlDB.PingContext(ctx); err != nil {
		s.health.IncPingError()
		return fmt.Errorf("xsql health: %w", err)
	}
	return nil
}

// Stats 计数与连接池快照。
func (s *RecordStore) Stats() Stats {
	st := Stats{
		Operations:  s.ops.Ops(),
		Errors:      s.ops.Errors(),
		SlowQueries: s.ops.SlowQueries(),
		PingCount:   s.health.PingCount(),
		PingErrors:  s.health.PingErrors(),
	}
	if sqlDB, err := s.db.DB(); err == nil {
		ps := sqlDB.Stats()
		st.OpenConnections = ps.OpenConnections
		st.InUse = ps.InUse
		st.Idle = ps.Idle
		st.WaitCount = ps.WaitCount
	}
	return st
}

// Close 停止慢查询执行器；由 Open 创建时同时关闭连接池。重复调用返回 ErrClosed。
func (s *RecordStore) Close(ctx context.Context) error {
	if !s.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	err := s.detector.Close(ctx)
	if s.owned {
		if sqlDB, derr := s.db.DB(); derr == nil {
			err = errors.Join(err, sqlDB.Close())
		}
	}
	return err
}

func (s *RecordStore) read(ctx context.Context, op string, fn func(*gorm.DB) error) error {
	return s.do(ctx, op, s.opts.QueryTimeout, fn)
}

func (s *RecordStore) write(ctx context.Context, op string, fn func(*gorm.DB) error) error {
	return s.do(ctx, op, s.opts.WriteTimeout, fn)
}

// do 统一加兜底超时、span、慢查询检测与错误归类。
func (s *RecordStore) do(ctx context.Context, op string, timeout time.Duration, fn func(*gorm.DB) error) (err error) {
	if s.closed.Load() {
		return ErrClosed
	}
	ctx, span := xmetrics.Start(ctx, s.opts.Observer, xmetrics.SpanOptions{
		Component: component,
		Operation: op,
		Kind:      xmetrics.KindClient,
		Attrs: []xmetrics.Attr{
			xmetrics.String("db.system", "mysql"),
			xmetrics.String("db.sql.table", s.opts.Table),
		},
	})
	defer func() { span.End(xmetrics.Result{Err: err}) }()

	ctx, cancel := storageopt.FallbackTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err = fn(s.db.WithContext(ctx).Table(s.opts.Table))
	elapsed := time.Since(start)

	slow := s.detector.Observe(ctx, SlowQueryInfo{
		Table:     s.opts.Table,
		Operation: op,
		Duration:  elapsed,
	}, elapsed)
	if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, sql.ErrNoRows) {
		s.ops.Record(false, slow)
		return xidem.ErrRecordNotFound
	}
	failed := err != nil && !isDuplicate(err)
	s.ops.Record(failed, slow)
	if failed {
		s.opts.Logger.Warn(ctx, "mysql 操作失败",
			xlog.Operation(op), xlog.Duration(elapsed), xlog.Err(err))
		return fmt.Errorf("xsql: %s: %w", op, err)
	}
	return err
}

// isDuplicate 兼容开启与未开启 TranslateError 的连接。
func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var me *mysqldriver.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

var _ xidem.RecordStore = (*RecordStore)(nil)
