package redis

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/RicardoMLopes/wsh/common/config"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishToStream_FlattensValues(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	client, err := Connect(ctx, &config.RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()

	id, err := PublishToStream(ctx, client, "s", map[string]interface{}{
		"name":  "x",
		"count": 3,
		"ok":    true,
		"tags":  []string{"a"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msgs, err := client.XRange(ctx, "s", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "x", msgs[0].Values["name"])
	assert.Equal(t, "3", msgs[0].Values["count"])
	assert.Equal(t, "true", msgs[0].Values["ok"])
	assert.Equal(t, `["a"]`, msgs[0].Values["tags"])
}

func TestPublishJSONToStream(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	client, err := Connect(ctx, &config.RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()

	_, err = PublishJSONToStream(ctx, client, "events", map[string]string{"type": "submitted"})
	require.NoError(t, err)

	msgs, err := client.XRange(ctx, "events", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(msgs[0].Values["data"].(string)), &got))
	assert.Equal(t, "submitted", got["type"])
	assert.NotEmpty(t, msgs[0].Values["timestamp"])
}

func TestConnect_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := Connect(context.Background(), &config.RedisConfig{Addr: addr})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to reach redis")
}
