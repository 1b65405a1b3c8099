package repository

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"gitee.com/flycash/push-relay/internal/domain"
	"gitee.com/flycash/push-relay/internal/errs"
	"gitee.com/flycash/push-relay/internal/pkg/keygen"
	"gitee.com/flycash/push-relay/internal/repository/store"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// faultyStore 对指定前缀的删除返回错误
type faultyStore struct {
	store.Store
	failDeletePrefix string
}

func (f *faultyStore) Delete(ctx context.Context, key string) error {
	if f.failDeletePrefix != "" && strings.HasPrefix(key, f.failDeletePrefix) {
		return assert.AnError
	}
	return f.Store.Delete(ctx, key)
}

type RepositoryTestSuite struct {
	suite.Suite
	mr         *miniredis.Miniredis
	rdb        *redis.Client
	store      *faultyStore
	channels   ChannelRepository
	targets    TargetRepository
	recipients RecipientRepository
	states     BindStateRepository
	deliveries DeliveryRepository
}

func TestRepositorySuite(t *testing.T) {
	t.Parallel()
	suite.Run(t, new(RepositoryTestSuite))
}

func (s *RepositoryTestSuite) SetupTest() {
	s.mr = miniredis.RunT(s.T())
	s.rdb = redis.NewClient(&redis.Options{Addr: s.mr.Addr()})
	s.store = &faultyStore{Store: store.NewRedisStore(s.rdb, "test")}
	s.channels = NewChannelRepository(s.store)
	s.recipients = NewRecipientRepository(s.store)
	s.targets = NewTargetRepository(s.store, s.recipients)
	s.states = NewBindStateRepository(s.store)
	s.deliveries = NewDeliveryRepository(s.store)
}

func (s *RepositoryTestSuite) TearDownTest() {
	_ = s.rdb.Close()
}

func (s *RepositoryTestSuite) newTarget(mode domain.PushMode) domain.PushTarget {
	t, err := s.targets.Create(context.Background(), domain.PushTarget{
		Name:        "告警",
		ChannelID:   "ch_1",
		PushMode:    mode,
		MessageType: domain.MessageTypePlain,
	})
	s.Require().NoError(err)
	return t
}

func (s *RepositoryTestSuite) TestChannel_RoundTrip() {
	t := s.T()
	ctx := context.Background()

	ch, err := s.channels.Create(ctx, domain.Channel{
		Name:   "测试公众号",
		Type:   domain.ChannelTypeWechat,
		Config: domain.Credentials{AppID: "wx1", AppSecret: "secret"},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ch.ID, keygen.PrefixChannel))
	assert.False(t, ch.CreatedAt.IsZero())

	got, err := s.channels.GetByID(ctx, ch.ID)
	require.NoError(t, err)
	assert.Equal(t, ch.Name, got.Name)
	assert.Equal(t, ch.Config, got.Config)

	updated, err := s.channels.Update(ctx, domain.Channel{ID: ch.ID, Name: "新名字"})
	require.NoError(t, err)
	assert.Equal(t, "新名字", updated.Name)
	// 没传的凭证保持不变
	assert.Equal(t, "secret", updated.Config.AppSecret)

	list, err := s.channels.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "新名字", list[0].Name)

	require.NoError(t, s.channels.Delete(ctx, ch.ID))
	_, err = s.channels.GetByID(ctx, ch.ID)
	assert.ErrorIs(t, err, errs.ErrChannelNotFound)
	list, err = s.channels.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	assert.ErrorIs(t, s.channels.Delete(ctx, ch.ID), errs.ErrChannelNotFound)
}

func (s *RepositoryTestSuite) TestTarget_RoundTrip() {
	t := s.T()
	ctx := context.Background()

	target := s.newTarget(domain.PushModeFanout)
	assert.True(t, keygen.IsValidKey(target.Key))

	byID, err := s.targets.GetByID(ctx, target.ID)
	require.NoError(t, err)
	byKey, err := s.targets.GetByKey(ctx, target.Key)
	require.NoError(t, err)
	assert.Equal(t, byID, byKey)

	target.Name = "新告警"
	target.Key = "PKattempt-to-change"
	target.RateWindow = domain.RateWindow{Count: 100}
	updated, err := s.targets.Update(ctx, target)
	require.NoError(t, err)
	assert.Equal(t, "新告警", updated.Name)
	assert.Equal(t, byID.Key, updated.Key)
	assert.Equal(t, 0, updated.RateWindow.Count)

	window := domain.RateWindow{Count: 3, ResetAt: time.Now().Add(time.Minute).Truncate(time.Second)}
	require.NoError(t, s.targets.UpdateRateWindow(ctx, target.ID, window))
	got, err := s.targets.GetByID(ctx, target.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.RateWindow.Count)
	assert.True(t, window.ResetAt.Equal(got.RateWindow.ResetAt))
	assert.Equal(t, "新告警", got.Name)

	byChannel, err := s.targets.ListByChannel(ctx, "ch_1")
	require.NoError(t, err)
	assert.Len(t, byChannel, 1)
	byChannel, err = s.targets.ListByChannel(ctx, "ch_other")
	require.NoError(t, err)
	assert.Empty(t, byChannel)

	require.NoError(t, s.targets.Delete(ctx, target.ID))
	_, err = s.targets.GetByID(ctx, target.ID)
	assert.ErrorIs(t, err, errs.ErrTargetNotFound)
	_, err = s.targets.GetByKey(ctx, byID.Key)
	assert.ErrorIs(t, err, errs.ErrKeyNotFound)
	list, err := s.targets.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func (s *RepositoryTestSuite) TestTarget_GetByKeyStaleIndex() {
	t := s.T()
	ctx := context.Background()

	a := s.newTarget(domain.PushModeSingle)
	b := s.newTarget(domain.PushModeSingle)

	// 索引指向了另一个目标
	require.NoError(t, s.store.Put(ctx, targetKeyIndexPrefix+a.Key, []byte(b.ID), 0))
	_, err := s.targets.GetByKey(ctx, a.Key)
	assert.ErrorIs(t, err, errs.ErrKeyNotFound)

	// 索引指向的主记录已经不存在
	require.NoError(t, s.store.Put(ctx, targetKeyIndexPrefix+a.Key, []byte("tg_missing"), 0))
	_, err = s.targets.GetByKey(ctx, a.Key)
	assert.ErrorIs(t, err, errs.ErrKeyNotFound)
}

func (s *RepositoryTestSuite) TestTarget_VerifyAndRepair() {
	t := s.T()
	ctx := context.Background()

	a := s.newTarget(domain.PushModeSingle)
	b := s.newTarget(domain.PushModeFanout)

	res, err := s.targets.Verify(ctx)
	require.NoError(t, err)
	assert.True(t, res.Consistent())
	assert.Equal(t, 2, res.Scanned)

	// 模拟两步写入中途失败
	require.NoError(t, s.store.Delete(ctx, targetKeyIndexPrefix+a.Key))
	require.NoError(t, s.targets.(*targetRepository).ids.Remove(ctx, targetListKey, b.ID))
	require.NoError(t, s.targets.(*targetRepository).ids.Add(ctx, targetListKey, "tg_ghost", time.Now()))

	res, err = s.targets.Verify(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID}, res.KeyIndexBad)
	assert.Equal(t, []string{b.ID}, res.MissingInList)
	assert.Equal(t, []string{"tg_ghost"}, res.DanglingInList)
	_, err = s.targets.GetByKey(ctx, a.Key)
	assert.ErrorIs(t, err, errs.ErrKeyNotFound)

	_, err = s.targets.Repair(ctx)
	require.NoError(t, err)

	res, err = s.targets.Verify(ctx)
	require.NoError(t, err)
	assert.True(t, res.Consistent())
	got, err := s.targets.GetByKey(ctx, a.Key)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
	list, err := s.targets.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func (s *RepositoryTestSuite) TestTarget_DeleteCascade() {
	t := s.T()
	ctx := context.Background()

	target := s.newTarget(domain.PushModeFanout)
	r1, err := s.recipients.Create(ctx, domain.Recipient{ParentID: target.ID, PlatformUserID: "o1"})
	require.NoError(t, err)
	r2, err := s.recipients.Create(ctx, domain.Recipient{ParentID: target.ID, PlatformUserID: "o2"})
	require.NoError(t, err)

	// 接收者删除失败时目标保留
	s.store.failDeletePrefix = recipientKeyPrefix
	err = s.targets.Delete(ctx, target.ID)
	require.Error(t, err)
	_, err = s.targets.GetByID(ctx, target.ID)
	require.NoError(t, err)

	s.store.failDeletePrefix = ""
	require.NoError(t, s.targets.Delete(ctx, target.ID))

	for _, r := range []domain.Recipient{r1, r2} {
		_, err = s.recipients.GetByID(ctx, r.ID)
		assert.ErrorIs(t, err, errs.ErrRecipientNotFound)
		_, err = s.recipients.GetByPlatformUser(ctx, target.ID, r.PlatformUserID)
		assert.ErrorIs(t, err, errs.ErrRecipientNotFound)
	}
	keys, err := store.ListAll(ctx, s.store, "recipient")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func (s *RepositoryTestSuite) TestRecipient_RoundTrip() {
	t := s.T()
	ctx := context.Background()

	rec, err := s.recipients.Create(ctx, domain.Recipient{ParentID: "tg_1", PlatformUserID: "o1", Nickname: "张三"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(rec.ID, keygen.PrefixRecipient))

	_, err = s.recipients.Create(ctx, domain.Recipient{ParentID: "tg_1", PlatformUserID: "o1"})
	assert.ErrorIs(t, err, errs.ErrDuplicateBinding)
	// 同一个用户可以绑定到不同目标
	_, err = s.recipients.Create(ctx, domain.Recipient{ParentID: "tg_2", PlatformUserID: "o1"})
	require.NoError(t, err)

	_, err = s.recipients.Create(ctx, domain.Recipient{ParentID: "tg_1"})
	assert.ErrorIs(t, err, errs.ErrInvalidParameter)

	got, err := s.recipients.GetByPlatformUser(ctx, "tg_1", "o1")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)

	updated, err := s.recipients.Update(ctx, domain.Recipient{ID: rec.ID, Nickname: "李四", Remark: "运维"})
	require.NoError(t, err)
	assert.Equal(t, "李四", updated.Nickname)
	assert.Equal(t, "o1", updated.PlatformUserID)

	list, err := s.recipients.ListByParent(ctx, "tg_1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "运维", list[0].Remark)

	require.NoError(t, s.recipients.Delete(ctx, rec.ID))
	_, err = s.recipients.GetByPlatformUser(ctx, "tg_1", "o1")
	assert.ErrorIs(t, err, errs.ErrRecipientNotFound)
	list, err = s.recipients.ListByParent(ctx, "tg_1")
	require.NoError(t, err)
	assert.Empty(t, list)

	// 删除后可以重新绑定
	_, err = s.recipients.Create(ctx, domain.Recipient{ParentID: "tg_1", PlatformUserID: "o1"})
	require.NoError(t, err)
}

func (s *RepositoryTestSuite) TestRecipient_AttachIdempotent() {
	t := s.T()
	ctx := context.Background()

	first, created, err := s.recipients.Attach(ctx, domain.Recipient{ParentID: "tg_1", PlatformUserID: "o1"})
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := s.recipients.Attach(ctx, domain.Recipient{ParentID: "tg_1", PlatformUserID: "o1", Nickname: "张三"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "张三", second.Nickname)

	list, err := s.recipients.ListByParent(ctx, "tg_1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func (s *RepositoryTestSuite) TestRecipient_SetSingle() {
	t := s.T()
	ctx := context.Background()

	old, err := s.recipients.SetSingle(ctx, domain.Recipient{ParentID: "tg_1", PlatformUserID: "o1"})
	require.NoError(t, err)

	cur, err := s.recipients.SetSingle(ctx, domain.Recipient{ParentID: "tg_1", PlatformUserID: "o2"})
	require.NoError(t, err)
	assert.NotEqual(t, old.ID, cur.ID)

	list, err := s.recipients.ListByParent(ctx, "tg_1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "o2", list[0].PlatformUserID)
	_, err = s.recipients.GetByID(ctx, old.ID)
	assert.ErrorIs(t, err, errs.ErrRecipientNotFound)

	// 同一个用户重复绑定
	again, err := s.recipients.SetSingle(ctx, domain.Recipient{ParentID: "tg_1", PlatformUserID: "o2"})
	require.NoError(t, err)
	assert.Equal(t, cur.ID, again.ID)
}

func (s *RepositoryTestSuite) TestBindState_SingleUse() {
	t := s.T()
	ctx := context.Background()

	state := domain.BindState{
		Token:    keygen.NewKey(keygen.PrefixState),
		Kind:     domain.BindKindBind,
		TargetID: "tg_1",
		IssuedAt: time.Now().Truncate(time.Second),
	}
	require.NoError(t, s.states.Save(ctx, state, 5*time.Minute))

	got, err := s.states.Take(ctx, state.Token)
	require.NoError(t, err)
	assert.Equal(t, state.Kind, got.Kind)
	assert.Equal(t, state.TargetID, got.TargetID)
	assert.True(t, state.IssuedAt.Equal(got.IssuedAt))

	_, err = s.states.Take(ctx, state.Token)
	assert.ErrorIs(t, err, errs.ErrStateExpired)
}

func (s *RepositoryTestSuite) TestBindState_TTL() {
	t := s.T()
	ctx := context.Background()

	require.NoError(t, s.states.SaveCode(ctx, "ABCD2345", domain.BindState{Token: "ABCD2345", TargetID: "tg_1"}, time.Minute))
	s.mr.FastForward(time.Minute + time.Second)
	_, err := s.states.TakeCode(ctx, "ABCD2345")
	assert.ErrorIs(t, err, errs.ErrStateExpired)
}

func (s *RepositoryTestSuite) TestDelivery_AppendAndRemove() {
	t := s.T()
	ctx := context.Background()

	base := time.Now()
	var records []domain.DeliveryRecord
	for i := 0; i < 3; i++ {
		targetID := "tg_a"
		if i == 1 {
			targetID = "tg_b"
		}
		rec, err := s.deliveries.Append(ctx, domain.DeliveryRecord{
			Direction: domain.DirectionOutbound,
			TargetID:  targetID,
			Title:     "t",
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
		records = append(records, rec)
	}

	ids, err := s.deliveries.ListIDs(ctx, domain.DeliveryQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{records[2].ID, records[1].ID, records[0].ID}, ids)
	ids, err = s.deliveries.ListIDs(ctx, domain.DeliveryQuery{TargetID: "tg_a"})
	require.NoError(t, err)
	assert.Equal(t, []string{records[2].ID, records[0].ID}, ids)

	got, err := s.deliveries.Get(ctx, records[1].ID)
	require.NoError(t, err)
	assert.Equal(t, "tg_b", got.TargetID)

	require.NoError(t, s.deliveries.Remove(ctx, records[0], records[1]))
	ids, err = s.deliveries.ListIDs(ctx, domain.DeliveryQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{records[2].ID}, ids)
	ids, err = s.deliveries.ListIDs(ctx, domain.DeliveryQuery{TargetID: "tg_b"})
	require.NoError(t, err)
	assert.Empty(t, ids)
	_, err = s.deliveries.Get(ctx, records[0].ID)
	assert.ErrorIs(t, err, errs.ErrRecordNotFound)

	batch, err := s.deliveries.BatchGet(ctx, "", []string{records[0].ID, records[2].ID})
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, records[2].ID, batch[0].ID)
}

// 多个实例共用同一个 Redis 并发写入，索引不能丢 id
func (s *RepositoryTestSuite) TestDelivery_ConcurrentInstances() {
	t := s.T()
	ctx := context.Background()

	instances := []DeliveryRepository{NewDeliveryRepository(s.store), NewDeliveryRepository(s.store)}
	const n = 200
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			targetID := "tg_a"
			if i%2 == 1 {
				targetID = "tg_b"
			}
			_, err := instances[i%2].Append(ctx, domain.DeliveryRecord{
				Direction: domain.DirectionOutbound,
				TargetID:  targetID,
				CreatedAt: time.Now(),
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	primaries, err := store.ListAll(ctx, s.store, deliveryKeyPrefix)
	require.NoError(t, err)
	assert.Len(t, primaries, n)

	total, err := s.deliveries.Count(ctx, domain.DeliveryQuery{})
	require.NoError(t, err)
	assert.Equal(t, n, total)
	ids, err := s.deliveries.ListIDs(ctx, domain.DeliveryQuery{})
	require.NoError(t, err)
	assert.Len(t, ids, n)
	for _, targetID := range []string{"tg_a", "tg_b"} {
		cnt, err := s.deliveries.Count(ctx, domain.DeliveryQuery{TargetID: targetID})
		require.NoError(t, err)
		assert.Equal(t, n/2, cnt, targetID)
	}
}

func (s *RepositoryTestSuite) TestRecipient_ConcurrentInstances() {
	t := s.T()
	ctx := context.Background()

	target := s.newTarget(domain.PushModeFanout)
	instances := []RecipientRepository{NewRecipientRepository(s.store), NewRecipientRepository(s.store)}
	targets := []TargetRepository{
		NewTargetRepository(s.store, instances[0]),
		NewTargetRepository(s.store, instances[1]),
	}
	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, _, err := instances[i%2].Attach(ctx, domain.Recipient{ParentID: target.ID, PlatformUserID: "o_" + strconv.Itoa(i)})
			assert.NoError(t, err)
		}(i)
		go func(i int) {
			defer wg.Done()
			_, err := targets[i%2].Create(ctx, domain.PushTarget{
				Name: "t", ChannelID: "ch_2", PushMode: domain.PushModeSingle, MessageType: domain.MessageTypePlain,
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	recs, err := s.recipients.ListByParent(ctx, target.ID)
	require.NoError(t, err)
	assert.Len(t, recs, n)
	byChannel, err := s.targets.ListByChannel(ctx, "ch_2")
	require.NoError(t, err)
	assert.Len(t, byChannel, n)
}

func (s *RepositoryTestSuite) TestDelivery_Paging() {
	t := s.T()
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	// 第 i 条是 i 分钟前写入的，写入顺序打乱
	ids := make([]string, 10)
	for _, i := range []int{3, 7, 0, 9, 1, 5, 8, 2, 6, 4} {
		rec, err := s.deliveries.Append(ctx, domain.DeliveryRecord{
			TargetID:  "tg_a",
			CreatedAt: base.Add(-time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
		ids[i] = rec.ID
	}

	got, err := s.deliveries.ListIDs(ctx, domain.DeliveryQuery{Page: 2, PageSize: 4})
	require.NoError(t, err)
	assert.Equal(t, ids[4:8], got)
	got, err = s.deliveries.ListIDs(ctx, domain.DeliveryQuery{TargetID: "tg_a", Page: 3, PageSize: 4})
	require.NoError(t, err)
	assert.Equal(t, ids[8:], got)

	start, end := base.Add(-6*time.Minute), base.Add(-3*time.Minute)
	q := domain.DeliveryQuery{StartDate: &start, EndDate: &end}
	cnt, err := s.deliveries.Count(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 4, cnt)
	got, err = s.deliveries.ListIDs(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, ids[3:7], got)
}

// 主记录丢失时只清理读到它的那个索引
func (s *RepositoryTestSuite) TestDelivery_BatchGetCleansSourceIndex() {
	t := s.T()
	ctx := context.Background()

	rec, err := s.deliveries.Append(ctx, domain.DeliveryRecord{TargetID: "tg_a", CreatedAt: time.Now()})
	require.NoError(t, err)
	require.NoError(t, s.store.Delete(ctx, deliveryKeyPrefix+rec.ID))

	recs, err := s.deliveries.BatchGet(ctx, "tg_a", []string{rec.ID})
	require.NoError(t, err)
	assert.Empty(t, recs)

	cnt, err := s.deliveries.Count(ctx, domain.DeliveryQuery{TargetID: "tg_a"})
	require.NoError(t, err)
	assert.Equal(t, 0, cnt)
	cnt, err = s.deliveries.Count(ctx, domain.DeliveryQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, cnt)

	_, err = s.deliveries.BatchGet(ctx, "", []string{rec.ID})
	require.NoError(t, err)
	cnt, err = s.deliveries.Count(ctx, domain.DeliveryQuery{})
	require.NoError(t, err)
	assert.Equal(t, 0, cnt)
}

// 索引写入失败的记录依然能被扫描到
func (s *RepositoryTestSuite) TestDelivery_ScanBeforeUnindexed() {
	t := s.T()
	ctx := context.Background()

	now := time.Now()
	old, err := s.deliveries.Append(ctx, domain.DeliveryRecord{TargetID: "tg_a", CreatedAt: now.Add(-48 * time.Hour)})
	require.NoError(t, err)
	_, err = s.deliveries.Append(ctx, domain.DeliveryRecord{TargetID: "tg_a", CreatedAt: now})
	require.NoError(t, err)
	require.NoError(t, s.store.ZRem(ctx, deliveryListKey, old.ID))
	require.NoError(t, s.store.ZRem(ctx, deliveryTargetListPrefix+"tg_a", old.ID))

	expired, err := s.deliveries.ScanBefore(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, old.ID, expired[0].ID)

	require.NoError(t, s.deliveries.Remove(ctx, expired...))
	_, err = s.deliveries.Get(ctx, old.ID)
	assert.ErrorIs(t, err, errs.ErrRecordNotFound)
}
