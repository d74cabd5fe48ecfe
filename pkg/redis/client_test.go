package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rfqgateway/pkg/config"
)

func TestNewRedisClient_EmptyAddr(t *testing.T) {
	assert.Nil(t, NewRedisClient(config.RedisConfig{}))
}

func TestNewRedisClient_Ping(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	rdb := NewRedisClient(config.RedisConfig{Addr: mr.Addr()})
	require.NotNil(t, rdb)
	t.Cleanup(func() { rdb.Close() })

	assert.NoError(t, Ping(context.Background(), rdb))

	mr.Close()
	assert.Error(t, Ping(context.Background(), rdb))
}
