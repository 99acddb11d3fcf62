package store

import (
	"context"
	"encoding/json"

	"github.com/akolanti/docqa/internal/config"
	"github.com/akolanti/docqa/internal/data/redisStore"
	"github.com/akolanti/docqa/internal/domain/runModel"
	"github.com/akolanti/docqa/pkg/logger_i"
)

const runKeyPrefix = "run:"

type RedisRunStore struct {
	store  *redisStore.Store
	logger *logger_i.Logger
}

// GetRunStore picks the redis backed store when redis answers a ping and the
// in-memory store otherwise.
func GetRunStore(ctx context.Context, opts redisStore.Options) runModel.RunStore {
	rs := redisStore.GetRedisStore(ctx, opts, config.RedisRunStore)
	if rs == nil {
		logger_i.NewLogger("RunStore").Warn("redis unavailable, run records are kept in memory")
		return InitInMemoryRunStore()
	}
	return &RedisRunStore{
		store:  rs,
		logger: logger_i.NewLogger("RunStore"),
	}
}

func (s *RedisRunStore) SaveRun(ctx context.Context, run runModel.Run) error {
	log := s.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY), "runId", run.Id)
	data, err := json.Marshal(run)
	if err != nil {
		return err
	}

	err = s.store.Set(ctx, runKeyPrefix+run.Id, data, config.RedisRunStoreTTL)
	if err == nil {
		log.Debug("saved run", "stage", run.Stage)
	}
	return err
}

func (s *RedisRunStore) GetRun(ctx context.Context, runId string) (runModel.Run, bool) {
	var run runModel.Run
	log := s.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY), "runId", runId)
	val, err := s.store.Get(ctx, runKeyPrefix+runId)
	if s.store.IsNil(err) {
		return run, false
	} else if err != nil {
		log.Error("could not read run", "error", err)
		return run, false
	}

	if err = json.Unmarshal([]byte(val), &run); err != nil {
		log.Error("stored run is not valid json", "error", err)
		return run, false
	}
	return run, true
}

func (s *RedisRunStore) DeleteRun(ctx context.Context, runId string) {
	if err := s.store.Del(ctx, runKeyPrefix+runId); err != nil {
		s.logger.Error("error deleting run from redis", "runId", runId, "error", err)
		return
	}
	s.logger.Debug("run deleted from redis", "runId", runId)
}

func TestRunStore(store *redisStore.Store) *RedisRunStore {
	return &RedisRunStore{
		store:  store,
		logger: logger_i.NewLogger("test redis"),
	}
}
