package xmongo

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// mockCollectionOps 实现 collectionOperations，记录收到的过滤条件。
type mockCollectionOps struct {
	mu sync.Mutex

	findOneDoc any
	findOneErr error
	findDocs   []any
	findErr    error
	insertErr  error
	replace    *mongo.UpdateResult
	replaceErr error
	updateMany *mongo.UpdateResult
	deleted    int64
	count      int64
	countErr   error
	pingErr    error
	indexes    []mongo.IndexModel

	filters  []any
	inserted []any
	replaced []any
	updates  []any
}

func (m *mockCollectionOps) record(filter any) {
	m.mu.Lock()
	m.filters = append(m.filters, filter)
	m.mu.Unlock()
}

func (m *mockCollectionOps) FindOne(_ context.Context, filter any, _ ...options.Lister[options.FindOneOptions]) *mongo.SingleResult {
	m.record(filter)
	doc := m.findOneDoc
	if doc == nil {
		doc = bson.D{}
	}
	return mongo.NewSingleResultFromDocument(doc, m.findOneErr, nil)
}

func (m *mockCollectionOps) Find(_ context.Context, filter any, _ ...options.Lister[options.FindOptions]) (*mongo.Cursor, error) {
	m.record(filter)
	if m.findErr != nil {
		return nil, m.findErr
	}
	return mongo.NewCursorFromDocuments(m.findDocs, nil, nil)
}

func (m *mockCollectionOps) InsertOne(_ context.Context, doc any, _ ...options.Lister[options.InsertOneOptions]) (*mongo.InsertOneResult, error) {
	m.mu.Lock()
	m.inserted = append(m.inserted, doc)
	m.mu.Unlock()
	if m.insertErr != nil {
		return nil, m.insertErr
	}
	return &mongo.InsertOneResult{}, nil
}

func (m *mockCollectionOps) ReplaceOne(_ context.Context, filter, replacement any, _ ...options.Lister[options.ReplaceOptions]) (*mongo.UpdateResult, error) {
	m.record(filter)
	m.mu.Lock()
	m.replaced = append(m.replaced, replacement)
	m.mu.Unlock()
	if m.replaceErr != nil {
		return nil, m.replaceErr
	}
	return m.replace, nil
}

func (m *mockCollectionOps) UpdateMany(_ context.Context, filter, update any, _ ...options.Lister[options.UpdateManyOptions]) (*mongo.UpdateResult, error) {
	m.record(filter)
	m.mu.Lock()
	m.updates = append(m.updates, update)
	m.mu.Unlock()
	return m.updateMany, nil
}

func (m *mockCollectionOps) DeleteMany(_ context.Context, filter any, _ ...options.Lister[options.DeleteManyOptions]) (*mongo.DeleteResult, error) {
	m.record(filter)
	return &mongo.DeleteResult{DeletedCount: m.deleted}, nil
}

func (m *mockCollectionOps) CountDocuments(_ context.Context, filter any, _ ...options.Lister[options.CountOptions]) (int64, error) {
	m.record(filter)
	return m.count, m.countErr
}

func (m *mockCollectionOps) CreateIndexes(_ context.Context, models []mongo.IndexModel) ([]string, error) {
	m.indexes = models
	names := make([]string, len(models))
	for i := range models {
		names[i] = "idx"
	}
	return names, nil
}

func (m *mockCollectionOps) Ping(context.Context) error { return m.pingErr }

func (m *mockCollectionOps) DatabaseName() string { return "xdelay" }

func (m *mockCollectionOps) Name() string { return "message_records" }

var _ collectionOperations = (*mockCollectionOps)(nil)
