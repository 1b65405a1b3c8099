package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testSortedIndex 两种存储实现共用的用例
func testSortedIndex(t *testing.T, s Store) {
	ctx := context.Background()

	members, err := s.ZRange(ctx, "idx", ZAll())
	require.NoError(t, err)
	assert.Empty(t, members)

	require.NoError(t, s.ZAdd(ctx, "idx",
		Z{Score: 30, Member: "c"},
		Z{Score: 10, Member: "a"},
		Z{Score: 20, Member: "b"},
		Z{Score: 40, Member: "d"},
	))
	// 已经存在的成员保持原来的分数
	require.NoError(t, s.ZAdd(ctx, "idx", Z{Score: 50, Member: "a"}))

	testCases := []struct {
		name  string
		query ZQuery
		want  []string
	}{
		{name: "全部", query: ZAll(), want: []string{"a", "b", "c", "d"}},
		{name: "倒序", query: ZQuery{Min: 0, Max: 100, Rev: true}, want: []string{"d", "c", "b", "a"}},
		{name: "分页", query: ZQuery{Min: 0, Max: 100, Rev: true, Offset: 1, Count: 2}, want: []string{"c", "b"}},
		{name: "跳过后取到末尾", query: ZQuery{Min: 0, Max: 100, Offset: 2}, want: []string{"c", "d"}},
		{name: "分数区间是闭区间", query: ZQuery{Min: 20, Max: 30}, want: []string{"b", "c"}},
		{name: "越界", query: ZQuery{Min: 0, Max: 100, Offset: 10, Count: 2}, want: []string{}},
	}
	for _, tc := range testCases {
		got, err := s.ZRange(ctx, "idx", tc.query)
		require.NoError(t, err, tc.name)
		if len(tc.want) == 0 {
			assert.Empty(t, got, tc.name)
			continue
		}
		assert.Equal(t, tc.want, got, tc.name)
	}

	cnt, err := s.ZCount(ctx, "idx", 15, 40)
	require.NoError(t, err)
	assert.Equal(t, int64(3), cnt)

	require.NoError(t, s.ZRem(ctx, "idx", "b", "missing"))
	members, err = s.ZRange(ctx, "idx", ZAll())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c", "d"}, members)
	require.NoError(t, s.ZRem(ctx, "idx"))
}
