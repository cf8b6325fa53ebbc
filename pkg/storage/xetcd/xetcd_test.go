package xetcd

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clientv3 "go.etcd.io/etcd/client/v3"
)

type stubKV struct {
	err  error
	keys []string
}

func (s *stubKV) Get(_ context.Context, key string, _ ...clientv3.OpOption) (*clientv3.GetResponse, error) {
	s.keys = append(s.keys, key)
	if s.err != nil {
		return nil, s.err
	}
	return &clientv3.GetResponse{}, nil
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		eps     []string
		wantErr error
	}{
		{"empty", nil, ErrNoEndpoints},
		{"blank endpoint", []string{""}, ErrInvalidEndpoint},
		{"missing port", []string{"localhost"}, ErrInvalidEndpoint},
		{"scheme without port", []string{"http://etcd"}, ErrInvalidEndpoint},
		{"ok", []string{"127.0.0.1:2379", "[::1]:2379", "https://etcd:2379"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := (&Config{Endpoints: tt.eps}).Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestConfig_Defaults(t *testing.T) {
	cfg := (&Config{Endpoints: []string{"a:1"}, DialTimeout: time.Second}).withDefaults()
	assert.Equal(t, time.Second, cfg.DialTimeout)
	assert.Equal(t, defaultKeepAliveTime, cfg.KeepAliveTime)
	assert.Equal(t, defaultKeepAliveTimeout, cfg.KeepAliveTimeout)
}

func TestNewClient_RejectsBadConfig(t *testing.T) {
	_, err := NewClient(nil)
	assert.ErrorIs(t, err, ErrNilConfig)

	_, err = NewClient(&Config{})
	assert.ErrorIs(t, err, ErrNoEndpoints)
}

func TestClient_HealthAndClose(t *testing.T) {
	kv := &stubKV{}
	var closes int
	c := &Client{kv: kv, closer: func() error { closes++; return nil }, opts: defaultOptions()}
	WithHealthCheckKey("/xdelay/health")(c.opts)

	require.NoError(t, c.Health(context.Background()))
	assert.Equal(t, []string{"/xdelay/health"}, kv.keys)

	kv.err = errors.New("permission denied")
	assert.ErrorContains(t, c.Health(context.Background()), "permission denied")

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.Equal(t, 1, closes)
	assert.ErrorIs(t, c.Health(context.Background()), ErrClientClosed)
}

func TestOptions(t *testing.T) {
	o := defaultOptions()
	WithHealthCheck(true, 0)(o)
	assert.True(t, o.healthCheck)
	assert.Equal(t, 5*time.Second, o.healthTimeout)
	WithHealthCheck(true, time.Second)(o)
	assert.Equal(t, time.Second, o.healthTimeout)
	WithHealthCheckKey("")(o)
	assert.Equal(t, defaultHealthCheckKey, o.healthCheckKey)
}
