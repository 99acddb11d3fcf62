package store

import (
	"context"
	"sync"

	"github.com/akolanti/docqa/internal/domain/runModel"
)

type InMemoryRunStore struct {
	runMutex *sync.RWMutex
	runMap   map[string]runModel.Run
}

func InitInMemoryRunStore() *InMemoryRunStore {
	return &InMemoryRunStore{
		runMutex: new(sync.RWMutex),
		runMap:   make(map[string]runModel.Run),
	}
}

func (store *InMemoryRunStore) SaveRun(ctx context.Context, run runModel.Run) error {
	store.runMutex.Lock()
	defer store.runMutex.Unlock()
	store.runMap[run.Id] = cloneRun(run)
	return nil
}

func (store *InMemoryRunStore) GetRun(ctx context.Context, runId string) (runModel.Run, bool) {
	store.runMutex.RLock()
	defer store.runMutex.RUnlock()
	result, found := store.runMap[runId]
	if !found {
		return result, false
	}
	return cloneRun(result), true
}

func (store *InMemoryRunStore) DeleteRun(ctx context.Context, runId string) {
	store.runMutex.Lock()
	defer store.runMutex.Unlock()
	delete(store.runMap, runId)
}

// the stage timing map is shared with the caller otherwise
func cloneRun(run runModel.Run) runModel.Run {
	if run.StageMillis != nil {
		m := make(map[runModel.Stage]int64, len(run.StageMillis))
		for k, v := range run.StageMillis {
			m[k] = v
		}
		run.StageMillis = m
	}
	if run.Error != nil {
		e := *run.Error
		run.Error = &e
	}
	return run
}
