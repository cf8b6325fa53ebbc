package xmongo

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/omeyang/xdelay/internal/storageopt"
	"github.com/omeyang/xdelay/pkg/mq/xidem"
	"github.com/omeyang/xdelay/pkg/observability/xlog"
	"github.com/omeyang/xdelay/pkg/observability/xmetrics"
)

const component = "xmongo"

// RecordStore MongoDB 台账。
type RecordStore struct {
	coll     collectionOperations
	opts     *Options
	detector *storageopt.SlowQueryDetector[SlowQueryInfo]
	health   storageopt.HealthCounter
	ops      storageopt.OpCounter
	closed   atomic.Bool
}

// NewRecordStore 在给定集合上创建台账，不负责连接的生命周期。
func NewRecordStore(coll *mongo.Collection, opts ...Option) (*RecordStore, error) {
	if coll == nil {
		return nil, ErrNilCollection
	}
	return newRecordStore(&collectionAdapter{coll: coll}, opts...)
}

func newRecordStore(coll collectionOperations, opts ...Option) (*RecordStore, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
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
	return &RecordStore{
		coll:     coll,
		opts:     o,
		detector: detector,
	}, nil
}

// EnsureIndexes 创建去重与扫描用索引，幂等。
func (s *RecordStore) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "business_key", Value: 1}, {Key: "message_type", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("idx_business"),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "next_retry_time", Value: 1}},
			Options: options.Index().SetName("idx_retry"),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "updated_time", Value: 1}},
			Options: options.Index().SetName("idx_updated"),
		},
	}
	return s.write(ctx, "create_indexes", nil, func(ctx context.Context) error {
		_, err := s.coll.CreateIndexes(ctx, models)
		return err
	})
}

func (s *RecordStore) FindByMessageID(ctx context.Context, id string) (*xidem.MessageRecord, error) {
	filter := bson.D{{Key: "_id", Value: id}}
	var rec xidem.MessageRecord
	err := s.read(ctx, "find_one", filter, func(ctx context.Context) error {
		return s.coll.FindOne(ctx, filter).Decode(&rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *RecordStore) Insert(ctx context.Context, rec *xidem.MessageRecord) (*xidem.MessageRecord, bool, error) {
	if rec == nil || rec.MessageID == "" {
		return nil, false, xidem.ErrEmptyMessageID
	}
	doc := rec.Clone()
	doc.Version = 1
	err := s.write(ctx, "insert_one", nil, func(ctx context.Context) error {
		_, err := s.coll.InsertOne(ctx, doc)
		return err
	})
	if mongo.IsDuplicateKeyError(err) {
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
	filter := bson.D{{Key: "_id", Value: rec.MessageID}, {Key: "version", Value: rec.Version}}
	next := rec.Clone()
	next.Version = rec.Version + 1

	var matched int64
	err := s.write(ctx, "replace_one", filter, func(ctx context.Context) error {
		res, err := s.coll.ReplaceOne(ctx, filter, next)
		if err != nil {
			return err
		}
		matched = res.MatchedCount
		return nil
	})
	if err != nil {
		return err
	}
	if matched == 0 {
		return s.missOrConflict(ctx, rec.MessageID)
	}
	rec.Version = next.Version
	return nil
}

// missOrConflict 条件替换未命中时区分记录不存在与版本不一致。
func (s *RecordStore) missOrConflict(ctx context.Context, id string) error {
	filter := bson.D{{Key: "_id", Value: id}}
	var n int64
	err := s.read(ctx, "count", filter, func(ctx context.Context) (err error) {
		n, err = s.coll.CountDocuments(ctx, filter, options.Count().SetLimit(1))
		return err
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
	filter := bson.D{
		{Key: "business_key", Value: businessKey},
		{Key: "message_type", Value: messageType},
		{Key: "status", Value: xidem.StatusSuccess},
	}
	var n int64
	err := s.read(ctx, "count", filter, func(ctx context.Context) (err error) {
		n, err = s.coll.CountDocuments(ctx, filter, options.Count().SetLimit(1))
		return err
	})
	return n > 0, err
}

func (s *RecordStore) FindRetryable(ctx context.Context, statuses []xidem.Status, maxRetry int, now time.Time, limit int) ([]*xidem.MessageRecord, error) {
	filter := bson.D{
		{Key: "status", Value: bson.D{{Key: "$in", Value: statuses}}},
		{Key: "retry_count", Value: bson.D{{Key: "$lt", Value: maxRetry}}},
		{Key: "next_retry_time", Value: bson.D{{Key: "$lte", Value: now}}},
	}
	return s.find(ctx, "find_retryable", filter, limit)
}

func (s *RecordStore) FindTimedOut(ctx context.Context, statuses []xidem.Status, threshold time.Time, limit int) ([]*xidem.MessageRecord, error) {
	filter := bson.D{
		{Key: "status", Value: bson.D{{Key: "$in", Value: statuses}}},
		{Key: "updated_time", Value: bson.D{{Key: "$lt", Value: threshold}}},
	}
	return s.find(ctx, "find_timed_out", filter, limit)
}

func (s *RecordStore) find(ctx context.Context, op string, filter bson.D, limit int) ([]*xidem.MessageRecord, error) {
	fo := options.Find().SetSort(bson.D{{Key: "updated_time", Value: 1}, {Key: "_id", Value: 1}})
	if limit > 0 {
		fo.SetLimit(int64(limit))
	}
	var out []*xidem.MessageRecord
	err := s.read(ctx, op, filter, func(ctx context.Context) error {
		cur, err := s.coll.Find(ctx, filter, fo)
		if err != nil {
			return err
		}
		return cur.All(ctx, &out)
	})
	return out, err
}

func (s *RecordStore) DeleteOlderThan(ctx context.Context, t time.Time, statuses []xidem.Status) (int64, error) {
	filter := olderThan(t, statuses)
	var n int64
	err := s.write(ctx, "delete_many", filter, func(ctx context.Context) error {
		res, err := s.coll.DeleteMany(ctx, filter)
		if err != nil {
			return err
		}
		n = res.DeletedCount
		return nil
	})
	return n, err
}

func (s *RecordStore) ArchiveOlderThan(ctx context.Context, t time.Time, statuses []xidem.Status) (int64, error) {
	filter := olderThan(t, statuses)
	update := bson.D{
		{Key: "$set", Value: bson.D{{Key: "status", Value: xidem.StatusArchived}}},
		{Key: "$inc", Value: bson.D{{Key: "version", Value: 1}}},
	}
	var n int64
	err := s.write(ctx, "update_many", filter, func(ctx context.Context) error {
		res, err := s.coll.UpdateMany(ctx, filter, update)
		if err != nil {
			return err
		}
		n = res.ModifiedCount
		return nil
	})
	return n, err
}

func olderThan(t time.Time, statuses []xidem.Status) bson.D {
	return bson.D{
		{Key: "status", Value: bson.D{{Key: "$in", Value: statuses}}},
		{Key: "updated_time", Value: bson.D{{Key: "$lt", Value: t}}},
	}
}

// Health Ping 主节点。
func (s *RecordStore) Health(ctx context.Context) (err error) {
	if s.closed.Load() {
		return ErrClosed
	}
	ctx, span := xmetrics.Start(ctx, s.opts.Observer, xmetrics.SpanOptions{
		Component: component,
		Operation: "health",
		Kind:      xmetrics.KindClient,
		Attrs:     []xmetrics.Attr{xmetrics.String("db.system", "mongodb")},
	})
	defer func() { span.End(xmetrics.Result{Err: err}) }()

	s.health.IncPing()
	ctx, cancel := storageopt.HealthContext(ctx, s.opts.HealthTimeout)
	defer cancel()
	if err = s.coll.Ping(ctx); err != nil {
		s.health.IncPingError()
		return fmt.Errorf("xmongo health: %w", err)
	}
	return nil
}

// Stats 计数快照。
func (s *RecordStore) Stats() Stats {
	return Stats{
		Operations:  s.ops.Ops(),
		Errors:      s.ops.Errors(),
		SlowQueries: s.ops.SlowQueries(),
		PingCount:   s.health.PingCount(),
		PingErrors:  s.health.PingErrors(),
	}
}

// Close 停止慢查询执行器，不断开客户端。重复调用返回 ErrClosed。
func (s *RecordStore) Close(ctx context.Context) error {
	if !s.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	return s.detector.Close(ctx)
}

func (s *RecordStore) read(ctx context.Context, op string, filter any, fn func(context.Context) error) error {
	return s.do(ctx, op, filter, s.opts.QueryTimeout, fn)
}

func (s *RecordStore) write(ctx context.Context, op string, filter any, fn func(context.Context) error) error {
	return s.do(ctx, op, filter, s.opts.WriteTimeout, fn)
}

// do 统一加兜底超时、span、慢查询检测与错误归类。
func (s *RecordStore) do(ctx context.Context, op string, filter any, timeout time.Duration, fn func(context.Context) error) (err error) {
	if s.closed.Load() {
		return ErrClosed
	}
	ctx, span := xmetrics.Start(ctx, s.opts.Observer, xmetrics.SpanOptions{
		Component: component,
		Operation: op,
		Kind:      xmetrics.KindClient,
		Attrs: []xmetrics.Attr{
			xmetrics.String("db.system", "mongodb"),
			xmetrics.String("db.collection", s.coll.Name()),
		},
	})
	defer func() { span.End(xmetrics.Result{Err: err}) }()

	ctx, cancel := storageopt.FallbackTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err = fn(ctx)
	elapsed := time.Since(start)

	slow := s.detector.Observe(ctx, SlowQueryInfo{
		Database:   s.coll.DatabaseName(),
		Collection: s.coll.Name(),
		Operation:  op,
		Filter:     filter,
		Duration:   elapsed,
	}, elapsed)
	if errors.Is(err, mongo.ErrNoDocuments) {
		s.ops.Record(false, slow)
		return xidem.ErrRecordNotFound
	}
	failed := err != nil && !mongo.IsDuplicateKeyError(err)
	s.ops.Record(failed, slow)
	if failed {
		s.opts.Logger.Warn(ctx, "mongo 操作失败",
			xlog.Operation(op), xlog.Duration(elapsed), xlog.Err(err))
		return fmt.Errorf("xmongo: %s: %w", op, err)
	}
	return err
}

var _ xidem.RecordStore = (*RecordStore)(nil)
