package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/Revenue-Intelligence/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/turtacn/Revenue-Intelligence/pkg/errors"
)

type CacheTestSuite struct {
	suite.Suite
	mock  redismock.ClientMock
	cache Cache
}

func (s *CacheTestSuite) SetupTest() {
	db, mock := redismock.NewClientMock()
	s.mock = mock
	client := NewClientFromUniversal(db, logging.NewNopLogger())
	s.cache = NewRedisCache(client, logging.NewNopLogger(), WithPrefix("test:"), WithTTLJitter(0))
}

func (s *CacheTestSuite) TearDownTest() {
	assert.NoError(s.T(), s.mock.ExpectationsWereMet())
}

type cachedSummary struct {
	Total int    `json:"total"`
	Tier  string `json:"tier"`
}

func (s *CacheTestSuite) TestGet_CacheHit() {
	val := cachedSummary{Total: 3, Tier: "high"}
	raw, _ := json.Marshal(val)
	s.mock.ExpectGet("test:key1").SetVal(string(raw))

	var dest cachedSummary
	err := s.cache.Get(context.Background(), "key1", &dest)

	assert.NoError(s.T(), err)
	assert.Equal(s.T(), val, dest)
}

func (s *CacheTestSuite) TestGet_CacheMiss() {
	s.mock.ExpectGet("test:key1").RedisNil()

	var dest cachedSummary
	err := s.cache.Get(context.Background(), "key1", &dest)

	assert.Equal(s.T(), ErrCacheMiss, err)
	assert.True(s.T(), pkgerrors.IsNotFound(err))
}

func (s *CacheTestSuite) TestGet_BackendError() {
	s.mock.ExpectGet("test:key1").SetErr(assert.AnError)

	var dest cachedSummary
	err := s.cache.Get(context.Background(), "key1", &dest)

	assert.True(s.T(), pkgerrors.IsCode(err, pkgerrors.ErrCodeCacheError))
	assert.False(s.T(), pkgerrors.IsNotFound(err))
}

func (s *CacheTestSuite) TestGet_CorruptEntryIsDropped() {
	s.mock.ExpectGet("test:key1").SetVal("{not json")
	s.mock.ExpectDel("test:key1").SetVal(1)

	var dest cachedSummary
	err := s.cache.Get(context.Background(), "key1", &dest)

	assert.Equal(s.T(), ErrCacheMiss, err)
}

func (s *CacheTestSuite) TestSet_UsesGivenTTL() {
	val := cachedSummary{Total: 1, Tier: "low"}
	raw, _ := json.Marshal(val)
	s.mock.ExpectSet("test:key1", raw, time.Minute).SetVal("OK")

	assert.NoError(s.T(), s.cache.Set(context.Background(), "key1", val, time.Minute))
}

func (s *CacheTestSuite) TestSet_DefaultTTL() {
	raw, _ := json.Marshal(cachedSummary{})
	s.mock.ExpectSet("test:key1", raw, 15*time.Minute).SetVal("OK")

	assert.NoError(s.T(), s.cache.Set(context.Background(), "key1", cachedSummary{}, 0))
}

func (s *CacheTestSuite) TestSet_Unserializable() {
	err := s.cache.Set(context.Background(), "key1", make(chan int), time.Minute)
	assert.True(s.T(), pkgerrors.IsCode(err, pkgerrors.ErrCodeSerialization))
}

func (s *CacheTestSuite) TestDelete() {
	s.mock.ExpectDel("test:k1", "test:k2").SetVal(2)

	assert.NoError(s.T(), s.cache.Delete(context.Background(), "k1", "k2"))
	assert.NoError(s.T(), s.cache.Delete(context.Background()))
}

func TestCacheSuite(t *testing.T) {
	suite.Run(t, new(CacheTestSuite))
}

func TestJitterTTL_StaysInBounds(t *testing.T) {
	c := &redisCache{jitter: 0.1}
	for i := 0; i < 100; i++ {
		got := c.jitterTTL(time.Minute)
		assert.GreaterOrEqual(t, got, 54*time.Second)
		assert.LessOrEqual(t, got, 66*time.Second)
	}
	assert.Equal(t, time.Duration(0), c.jitterTTL(0))
}
