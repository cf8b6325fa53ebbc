package xsql

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/omeyang/xdelay/pkg/mq/xidem"
	"github.com/omeyang/xdelay/pkg/observability/xlog"
)

var columns = []string{
	"message_id", "business_key", "message_type", "content", "headers", "consumer_group", "topic",
	"status", "retry_count", "max_retry_count", "created_time", "updated_time",
	"first_processed_time", "last_processed_time", "next_retry_time", "completed_time",
	"error_message", "result", "version",
}

var ts = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

func addRow(rows *sqlmock.Rows, id string, status xidem.Status, version int64) *sqlmock.Rows {
	return rows.AddRow(id, "order-1", "ORDER_CREATED", []byte("{}"), []byte(`{"x-trace":"abc"}`), "g1", "orders",
		string(status), 0, 3, ts, ts, nil, nil, nil, nil, "", "", version)
}

func newMockStore(t *testing.T, opts ...Option) (*RecordStore, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{Conn: conn, SkipInitializeWithVersion: true}), &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		DisableAutomaticPing:   true,
		Logger:                 gormlogger.Discard,
	})
	require.NoError(t, err)

	s, err := NewRecordStore(db, append([]Option{WithLogger(xlog.Discard())}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s, mock
}

func sample() *xidem.MessageRecord {
	return &xidem.MessageRecord{
		MessageID:     "m1",
		BusinessKey:   "order-1",
		MessageType:   "ORDER_CREATED",
		Headers:       map[string]string{"x-trace": "abc"},
		Status:        xidem.StatusPending,
		MaxRetryCount: 3,
		CreatedTime:   ts,
		UpdatedTime:   ts,
		Version:       1,
	}
}

func TestNewRecordStoreValidation(t *testing.T) {
	_, err := NewRecordStore(nil)
	assert.ErrorIs(t, err, ErrNilDB)
	_, err = Open("")
	assert.ErrorIs(t, err, ErrEmptyDSN)
}

func TestFindByMessageID(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("SELECT \\* FROM `xdelay_message_record` WHERE message_id = \\?").
		WillReturnRows(addRow(sqlmock.NewRows(columns), "m1", xidem.StatusProcessing, 4))

	rec, err := s.FindByMessageID(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, xidem.StatusProcessing, rec.Status)
	assert.Equal(t, int64(4), rec.Version)
	assert.Equal(t, "abc", rec.Headers["x-trace"])
	assert.Equal(t, "orders", rec.Topic)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByMessageIDNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("SELECT \\* FROM `xdelay_message_record`").
		WillReturnRows(sqlmock.NewRows(columns))

	_, err := s.FindByMessageID(context.Background(), "nope")
	assert.ErrorIs(t, err, xidem.ErrRecordNotFound)
	assert.Zero(t, s.Stats().Errors)
}

func TestInsertCreates(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec("INSERT INTO `xdelay_message_record`").
		WillReturnResult(sqlmock.NewResult(0, 1))

	in := sample()
	in.Version = 0
	rec, created, err := s.Insert(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(1), rec.Version)
	assert.Zero(t, in.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertDuplicateReturnsExisting(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec("INSERT INTO `xdelay_message_record`").
		WillReturnError(&mysqldriver.MySQLError{Number: 1062, Message: "Duplicate entry 'm1' for key 'PRIMARY'"})
	mock.ExpectQuery("SELECT \\* FROM `xdelay_message_record`").
		WillReturnRows(addRow(sqlmock.NewRows(columns), "m1", xidem.StatusSuccess, 3))

	rec, created, err := s.Insert(context.Background(), sample())
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, xidem.StatusSuccess, rec.Status)
	assert.Zero(t, s.Stats().Errors)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertRejectsEmptyID(t *testing.T) {
	s, _ := newMockStore(t)
	_, _, err := s.Insert(context.Background(), &xidem.MessageRecord{})
	assert.ErrorIs(t, err, xidem.ErrEmptyMessageID)
}

func TestSaveCompareAndSwap(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec("UPDATE `xdelay_message_record` SET .* WHERE message_id = \\? AND version = \\?").
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := sample()
	rec.Version = 4
	require.NoError(t, s.Save(context.Background(), rec))
	assert.Equal(t, int64(5), rec.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveConflictAndMissing(t *testing.T) {
	ctx := context.Background()

	s, mock := newMockStore(t)
	mock.ExpectExec("UPDATE `xdelay_message_record`").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `xdelay_message_record`").
		WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(1))
	rec := sample()
	assert.ErrorIs(t, s.Save(ctx, rec), xidem.ErrVersionConflict)
	assert.Equal(t, int64(1), rec.Version)

	mock.ExpectExec("UPDATE `xdelay_message_record`").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `xdelay_message_record`").
		WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(0))
	assert.ErrorIs(t, s.Save(ctx, sample()), xidem.ErrRecordNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveInfrastructureError(t *testing.T) {
	s, mock := newMockStore(t)
	boom := errors.New("bad connection")
	mock.ExpectExec("UPDATE `xdelay_message_record`").WillReturnError(boom)

	err := s.Save(context.Background(), sample())
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, xidem.ErrVersionConflict)
	assert.Equal(t, int64(1), s.Stats().Errors)
}

func TestExistsByBusinessKeyAndType(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `xdelay_message_record` WHERE business_key = \\? AND message_type = \\? AND status = \\?").
		WithArgs("order-1", "ORDER_CREATED", "SUCCESS").
		WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(2))

	ok, err := s.ExistsByBusinessKeyAndType(context.Background(), "order-1", "ORDER_CREATED")
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindRetryableAndTimedOut(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("SELECT \\* FROM `xdelay_message_record` WHERE status IN .* AND retry_count < \\? AND next_retry_time <= \\? ORDER BY updated_time ASC, message_id ASC").
		WillReturnRows(addRow(addRow(sqlmock.NewRows(columns), "m1", xidem.StatusFailed, 2), "m2", xidem.StatusTimeout, 3))
	mock.ExpectQuery("SELECT \\* FROM `xdelay_message_record` WHERE status IN .* AND updated_time < \\?").
		WillReturnRows(addRow(sqlmock.NewRows(columns), "m3", xidem.StatusProcessing, 2))

	recs, err := s.FindRetryable(context.Background(), xidem.RetryableStatuses(), 3, ts, 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "m2", recs[1].MessageID)
	assert.Equal(t, xidem.StatusTimeout, recs[1].Status)

	recs, err = s.FindTimedOut(context.Background(), []xidem.Status{xidem.StatusProcessing}, ts, 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteAndArchive(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec("DELETE FROM `xdelay_message_record` WHERE status IN").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("UPDATE `xdelay_message_record` SET .*`version`=version \\+ 1").
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := s.DeleteOlderThan(context.Background(), ts, []xidem.Status{xidem.StatusArchived})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = s.ArchiveOlderThan(context.Background(), ts, []xidem.Status{xidem.StatusSuccess})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthAndClose(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectPing()
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	require.NoError(t, s.Health(context.Background()))
	assert.Error(t, s.Health(context.Background()))
	st := s.Stats()
	assert.Equal(t, int64(2), st.PingCount)
	assert.Equal(t, int64(1), st.PingErrors)

	require.NoError(t, s.Close(context.Background()))
	assert.ErrorIs(t, s.Close(context.Background()), ErrClosed)
	assert.ErrorIs(t, s.Health(context.Background()), ErrClosed)
	_, err := s.FindByMessageID(context.Background(), "m1")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSlowQueryHook(t *testing.T) {
	var got SlowQueryInfo
	s, mock := newMockStore(t,
		WithTable("records"),
		WithSlowQueryThreshold(time.Nanosecond),
		WithSlowQueryHook(func(_ context.Context, info SlowQueryInfo) { got = info }),
	)
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `records`").
		WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(0))

	ok, err := s.ExistsByBusinessKeyAndType(context.Background(), "k", "T")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "records", got.Table)
	assert.Equal(t, "count", got.Operation)
	assert.Equal(t, int64(1), s.Stats().SlowQueries)
}

func TestIsDuplicate(t *testing.T) {
	assert.False(t, isDuplicate(nil))
	assert.True(t, isDuplicate(gorm.ErrDuplicatedKey))
	assert.True(t, isDuplicate(&mysqldriver.MySQLError{Number: 1062}))
	assert.False(t, isDuplicate(&mysqldriver.MySQLError{Number: 1213}))
	assert.False(t, isDuplicate(errors.New("boom")))
}

func TestRowRoundTripKeepsNilTimes(t *testing.T) {
	rec := sample()
	next := ts.Add(time.Minute)
	rec.NextRetryTime = &next
	got := toRow(rec).record()
	assert.Equal(t, rec, got)

	cols := toRow(rec).columns()
	assert.NotContains(t, cols, "message_id")
	assert.NotContains(t, cols, "created_time")
	assert.Contains(t, cols, "next_retry_time")
}
