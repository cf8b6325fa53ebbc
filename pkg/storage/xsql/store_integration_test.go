//go:build integration

package xsql_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/omeyang/xdelay/pkg/mq/xidem"
	"github.com/omeyang/xdelay/pkg/storage/xsql"
)

// setupMySQL 返回 DSN。设置了 XDELAY_MYSQL_DSN 时直接使用外部实例。
func setupMySQL(t *testing.T) string {
	t.Helper()
	if dsn := os.Getenv("XDELAY_MYSQL_DSN"); dsn != "" {
		return dsn
	}
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not found in PATH, skipping integration test")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mysql:8.0",
			ExposedPorts: []string{"3306/tcp"},
			Env: map[string]string{
				"MYSQL_ROOT_PASSWORD": "xdelay",
				"MYSQL_DATABASE":      "xdelay",
			},
			WaitingFor: wait.ForLog("port: 3306  MySQL Community Server").WithStartupTimeout(2 * time.Minute),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("mysql container not available: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "3306/tcp")
	require.NoError(t, err)
	return fmt.Sprintf("root:xdelay@tcp(%s:%s)/xdelay?parseTime=true&loc=UTC", host, port.Port())
}

func TestRecordStore_Integration(t *testing.T) {
	ctx := context.Background()
	store, err := xsql.Open(setupMySQL(t), xsql.WithTable(fmt.Sprintf("records_%d", time.Now().UnixNano())))
	require.NoError(t, err)
	defer store.Close(ctx)
	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, store.Health(ctx))

	now := time.Now().UTC().Truncate(time.Second)
	rec := &xidem.MessageRecord{
		MessageID:   "m1",
		BusinessKey: "order-1",
		MessageType: "ORDER_CREATED",
		Headers:     map[string]string{"x-trace": "abc"},
		Status:      xidem.StatusPending,
		CreatedTime: now,
		UpdatedTime: now,
	}

	got, created, err := store.Insert(ctx, rec)
	require.NoError(t, err)
	assert.True(t, created)

	_, created, err = store.Insert(ctx, rec)
	require.NoError(t, err)
	assert.False(t, created)

	stale := got.Clone()
	got.Status = xidem.StatusProcessing
	require.NoError(t, store.Save(ctx, got))
	assert.ErrorIs(t, store.Save(ctx, stale), xidem.ErrVersionConflict)

	loaded, err := store.FindByMessageID(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, xidem.StatusProcessing, loaded.Status)
	assert.Equal(t, "abc", loaded.Headers["x-trace"])
	assert.Equal(t, int64(2), loaded.Version)

	timedOut, err := store.FindTimedOut(ctx, []xidem.Status{xidem.StatusProcessing}, now.Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, timedOut, 1)

	loaded.Status = xidem.StatusSuccess
	require.NoError(t, store.Save(ctx, loaded))
	dup, err := store.ExistsByBusinessKeyAndType(ctx, "order-1", "ORDER_CREATED")
	require.NoError(t, err)
	assert.True(t, dup)

	n, err := store.ArchiveOlderThan(ctx, now.Add(time.Minute), []xidem.Status{xidem.StatusSuccess})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = store.DeleteOlderThan(ctx, now.Add(time.Minute), []xidem.Status{xidem.StatusArchived})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = store.FindByMessageID(ctx, "m1")
	assert.ErrorIs(t, err, xidem.ErrRecordNotFound)
}
