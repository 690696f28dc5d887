package http

import (
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"custanalytics/ml"
	"custanalytics/pipeline"
)

// StoredResult is an augmented table waiting to be downloaded.
type StoredResult struct {
	Task    ml.Task
	Table   *pipeline.Table
	Created time.Time
}

// ResultStore keeps recent batch results in memory for a short time only.
type ResultStore struct {
	cache *expirable.LRU[string, StoredResult]
}

func NewResultStore(size int, ttl time.Duration) *ResultStore {
	if size <= 0 {
		size = 128
	}
	return &ResultStore{cache: expirable.NewLRU[string, StoredResult](size, nil, ttl)}
}

// Put stores a result and returns its download id.
func (s *ResultStore) Put(task ml.Task, table *pipeline.Table) (string, error) {
	token, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	id := token.String()
	s.cache.Add(id, StoredResult{Task: task, Table: table, Created: time.Now()})
	return id, nil
}

func (s *ResultStore) Get(id string) (StoredResult, bool) {
	return s.cache.Get(id)
}

func (s *ResultStore) Len() int {
	return s.cache.Len()
}
