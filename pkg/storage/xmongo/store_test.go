package xmongo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/omeyang/xdelay/pkg/mq/xidem"
	"github.com/omeyang/xdelay/pkg/observability/xlog"
)

func newTestStore(t *testing.T, m *mockCollectionOps, opts ...Option) *RecordStore {
	t.Helper()
	s, err := newRecordStore(m, append([]Option{WithLogger(xlog.Discard())}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func sample() *xidem.MessageRecord {
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	return &xidem.MessageRecord{
		MessageID:     "m1",
		BusinessKey:   "order-1",
		MessageType:   "ORDER_CREATED",
		Status:        xidem.StatusPending,
		MaxRetryCount: 3,
		CreatedTime:   now,
		UpdatedTime:   now,
		Version:       1,
	}
}

func TestNewRecordStoreNilCollection(t *testing.T) {
	_, err := NewRecordStore(nil)
	assert.ErrorIs(t, err, ErrNilCollection)
}

func TestFindByMessageID(t *testing.T) {
	m := &mockCollectionOps{findOneDoc: sample()}
	s := newTestStore(t, m)

	rec, err := s.FindByMessageID(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, "order-1", rec.BusinessKey)
	assert.Equal(t, xidem.StatusPending, rec.Status)
	assert.Equal(t, bson.D{{Key: "_id", Value: "m1"}}, m.filters[0])
}

func TestFindByMessageIDNotFound(t *testing.T) {
	s := newTestStore(t, &mockCollectionOps{findOneErr: mongo.ErrNoDocuments})
	_, err := s.FindByMessageID(context.Background(), "m1")
	assert.ErrorIs(t, err, xidem.ErrRecordNotFound)
	assert.Zero(t, s.Stats().Errors)
}

func TestInsertCreates(t *testing.T) {
	m := &mockCollectionOps{}
	s := newTestStore(t, m)
	in := sample()
	in.Version = 0

	rec, created, err := s.Insert(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(1), rec.Version)
	require.Len(t, m.inserted, 1)
	assert.Zero(t, in.Version, "input is not modified")
}

func TestInsertDuplicateReturnsExisting(t *testing.T) {
	existing := sample()
	existing.Status = xidem.StatusSuccess
	m := &mockCollectionOps{
		insertErr:  mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "E11000 duplicate key"}}},
		findOneDoc: existing,
	}
	s := newTestStore(t, m)

	rec, created, err := s.Insert(context.Background(), sample())
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, xidem.StatusSuccess, rec.Status)
	assert.Zero(t, s.Stats().Errors)
}

func TestSaveCompareAndSwap(t *testing.T) {
	m := &mockCollectionOps{replace: &mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}}
	s := newTestStore(t, m)
	rec := sample()
	rec.Version = 4

	require.NoError(t, s.Save(context.Background(), rec))
	assert.Equal(t, int64(5), rec.Version)
	assert.Equal(t, bson.D{{Key: "_id", Value: "m1"}, {Key: "version", Value: int64(4)}}, m.filters[0])
	replaced, ok := m.replaced[0].(*xidem.MessageRecord)
	require.True(t, ok)
	assert.Equal(t, int64(5), replaced.Version)
}

func TestSaveConflictAndMissing(t *testing.T) {
	ctx := context.Background()

	m := &mockCollectionOps{replace: &mongo.UpdateResult{}, count: 1}
	s := newTestStore(t, m)
	rec := sample()
	assert.ErrorIs(t, s.Save(ctx, rec), xidem.ErrVersionConflict)
	assert.Equal(t, int64(1), rec.Version)

	m = &mockCollectionOps{replace: &mongo.UpdateResult{}, count: 0}
	s = newTestStore(t, m)
	assert.ErrorIs(t, s.Save(ctx, sample()), xidem.ErrRecordNotFound)
}

func TestSaveInfrastructureError(t *testing.T) {
	boom := errors.New("socket closed")
	s := newTestStore(t, &mockCollectionOps{replaceErr: boom})
	err := s.Save(context.Background(), sample())
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, xidem.ErrVersionConflict)
	assert.Equal(t, int64(1), s.Stats().Errors)
}

func TestExistsByBusinessKeyAndType(t *testing.T) {
	m := &mockCollectionOps{count: 1}
	s := newTestStore(t, m)
	ok, err := s.ExistsByBusinessKeyAndType(context.Background(), "order-1", "ORDER_CREATED")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, bson.D{
		{Key: "business_key", Value: "order-1"},
		{Key: "message_type", Value: "ORDER_CREATED"},
		{Key: "status", Value: xidem.StatusSuccess},
	}, m.filters[0])
}

func TestFindRetryableAndTimedOut(t *testing.T) {
	a, b := sample(), sample()
	b.MessageID = "m2"
	m := &mockCollectionOps{findDocs: []any{a, b}}
	s := newTestStore(t, m)
	now := time.Now()

	recs, err := s.FindRetryable(context.Background(), xidem.RetryableStatuses(), 3, now, 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "m2", recs[1].MessageID)

	recs, err = s.FindTimedOut(context.Background(), []xidem.Status{xidem.StatusProcessing}, now, 10)
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	filter, ok := m.filters[1].(bson.D)
	require.True(t, ok)
	assert.Equal(t, "updated_time", filter[1].Key)
}

func TestDeleteAndArchive(t *testing.T) {
	m := &mockCollectionOps{deleted: 3, updateMany: &mongo.UpdateResult{ModifiedCount: 2}}
	s := newTestStore(t, m)
	statuses := []xidem.Status{xidem.StatusArchived}

	n, err := s.DeleteOlderThan(context.Background(), time.Now(), statuses)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = s.ArchiveOlderThan(context.Background(), time.Now(), []xidem.Status{xidem.StatusSuccess})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	update, ok := m.updates[0].(bson.D)
	require.True(t, ok)
	assert.Equal(t, "$set", update[0].Key)
	assert.Equal(t, "$inc", update[1].Key)
}

func TestEnsureIndexes(t *testing.T) {
	m := &mockCollectionOps{}
	s := newTestStore(t, m)
	require.NoError(t, s.EnsureIndexes(context.Background()))
	assert.Len(t, m.indexes, 3)
}

func TestHealthAndClose(t *testing.T) {
	m := &mockCollectionOps{}
	s, err := newRecordStore(m, WithLogger(xlog.Discard()))
	require.NoError(t, err)

	require.NoError(t, s.Health(context.Background()))
	m.pingErr = errors.New("no primary")
	assert.Error(t, s.Health(context.Background()))
	st := s.Stats()
	assert.Equal(t, int64(2), st.PingCount)
	assert.Equal(t, int64(1), st.PingErrors)

	require.NoError(t, s.Close(context.Background()))
	assert.ErrorIs(t, s.Close(context.Background()), ErrClosed)
	assert.ErrorIs(t, s.Health(context.Background()), ErrClosed)
	_, err = s.FindByMessageID(context.Background(), "m1")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSlowQueryHook(t *testing.T) {
	var got SlowQueryInfo
	m := &mockCollectionOps{count: 0}
	s := newTestStore(t, m,
		WithSlowQueryThreshold(time.Nanosecond),
		WithSlowQueryHook(func(_ context.Context, info SlowQueryInfo) { got = info }),
	)
	_, err := s.ExistsByBusinessKeyAndType(context.Background(), "k", "T")
	require.NoError(t, err)
	assert.Equal(t, "count", got.Operation)
	assert.Equal(t, "message_records", got.Collection)
	assert.Equal(t, "xdelay", got.Database)
	assert.Equal(t, int64(1), s.Stats().SlowQueries)
}
