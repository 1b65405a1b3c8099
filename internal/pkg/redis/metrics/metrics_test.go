package metrics

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestHook_Family(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := NewMetricsHook("push")

	testCases := []struct {
		name string
		cmd  redis.Cmder
		want string
	}{
		{name: "实体key", cmd: redis.NewStringCmd(ctx, "get", "push:target:tg_1"), want: "target"},
		{name: "索引key", cmd: redis.NewStringCmd(ctx, "set", "push:target_key:PKxx", "tg_1"), want: "target_key"},
		{name: "列表key", cmd: redis.NewStringCmd(ctx, "get", "push:deliveries"), want: "deliveries"},
		{name: "scan", cmd: redis.NewScanCmd(ctx, nil, "scan", 0, "match", "push:bindstate:*", "count", 10), want: "bindstate"},
		{name: "scan没有match", cmd: redis.NewScanCmd(ctx, nil, "scan", 0), want: "unknown"},
		{name: "没有key", cmd: redis.NewStatusCmd(ctx, "ping"), want: "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, h.Family(tc.cmd))
		})
	}
}
