package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// PublishToStream appends values to a stream with XADD. Values are flattened to strings.
func PublishToStream(ctx context.Context, client *redis.Client, stream string, values map[string]interface{}) (string, error) {
	streamValues := make(map[string]interface{}, len(values))
	for k, v := range values {
		var s string
		switch val := v.(type) {
		case string:
			s = val
		case []byte:
			s = string(val)
		case int, int32, int64:
			s = fmt.Sprintf("%d", val)
		case float32, float64:
			s = fmt.Sprintf("%f", val)
		case bool:
			if val {
				s = "true"
			} else {
				s = "false"
			}
		case fmt.Stringer:
			s = val.String()
		default:
			b, err := json.Marshal(v)
			if err != nil {
				return "", err
			}
			s = string(b)
		}
		streamValues[k] = s
	}

	return client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: streamValues,
	}).Result()
}

// PublishJSONToStream publishes data as a JSON "data" field plus a unix "timestamp"
func PublishJSONToStream(ctx context.Context, client *redis.Client, stream string, data interface{}) (string, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return "", err
	}

	return PublishToStream(ctx, client, stream, map[string]interface{}{
		"data":      string(b),
		"timestamp": time.Now().Unix(),
	})
}
