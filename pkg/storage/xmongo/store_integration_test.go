//go:build integration

package xmongo_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/omeyang/xdelay/pkg/distributed/xdlock"
	"github.com/omeyang/xdelay/pkg/mq/xidem"
	"github.com/omeyang/xdelay/pkg/storage/xmongo"
)

func setupMongo(t *testing.T) *mongo.Collection {
	t.Helper()

	uri := os.Getenv("XDELAY_MONGO_URI")
	if uri == "" {
		uri = startMongoContainer(t)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	require.NoError(t, err, "mongo connect failed")
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		t.Fatalf("mongo ping failed: %v", err)
	}
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	coll := client.Database("xdelay_it").Collection(fmt.Sprintf("records_%d", time.Now().UnixNano()))
	t.Cleanup(func() { _ = coll.Drop(context.Background()) })
	return coll
}

func startMongoContainer(t *testing.T) string {
	t.Helper()

	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not found in PATH, skipping integration test")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7.0",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForListeningPort("27017/tcp"),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("mongo container not available: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "27017/tcp")
	require.NoError(t, err)
	return fmt.Sprintf("mongodb://%s:%s", host, port.Port())
}

func TestRecordStore_Integration(t *testing.T) {
	ctx := context.Background()
	store, err := xmongo.NewRecordStore(setupMongo(t))
	require.NoError(t, err)
	defer store.Close(ctx)
	require.NoError(t, store.EnsureIndexes(ctx))
	require.NoError(t, store.Health(ctx))

	now := time.Now().UTC().Truncate(time.Millisecond)
	rec := &xidem.MessageRecord{
		MessageID:   "m1",
		BusinessKey: "order-1",
		MessageType: "ORDER_CREATED",
		Status:      xidem.StatusPending,
		CreatedTime: now,
		UpdatedTime: now,
	}

	got, created, err := store.Insert(ctx, rec)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(1), got.Version)

	_, created, err = store.Insert(ctx, rec)
	require.NoError(t, err)
	assert.False(t, created)

	stale := got.Clone()
	got.Status = xidem.StatusProcessing
	require.NoError(t, store.Save(ctx, got))
	assert.Equal(t, int64(2), got.Version)
	assert.ErrorIs(t, store.Save(ctx, stale), xidem.ErrVersionConflict)

	missing := stale.Clone()
	missing.MessageID = "nope"
	assert.ErrorIs(t, store.Save(ctx, missing), xidem.ErrRecordNotFound)

	loaded, err := store.FindByMessageID(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, xidem.StatusProcessing, loaded.Status)
	assert.True(t, loaded.CreatedTime.Equal(now))

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

func TestCoordinatorOnMongo_Integration(t *testing.T) {
	ctx := context.Background()
	store, err := xmongo.NewRecordStore(setupMongo(t))
	require.NoError(t, err)
	defer store.Close(ctx)

	lock := xdlock.NewLocalLocker()
	defer lock.Close()
	coord, err := xidem.NewCoordinator(store, lock)
	require.NoError(t, err)
	defer coord.Close()

	_, err = coord.CreateRecord(ctx, xidem.NewRecord{
		MessageID:     "m1",
		BusinessKey:   "order-1",
		MessageType:   "ORDER_CREATED",
		MaxRetryCount: 1,
	})
	require.NoError(t, err)

	ok, err := coord.StartProcessing(ctx, "m1")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = coord.MarkFailure(ctx, "m1", errors.New("downstream 503"))
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = coord.Retry(ctx, "m1")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = coord.StartProcessing(ctx, "m1")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = coord.MarkSuccess(ctx, "m1", "ok")
	require.NoError(t, err)
	require.True(t, ok)

	rec, err := coord.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, xidem.StatusSuccess, rec.Status)
	assert.Equal(t, 1, rec.RetryCount)

	processed, err := coord.IsProcessed(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, processed)
}
