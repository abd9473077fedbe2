/*
Copyright 2025 Panelku Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package panelku implements the storefront service layer: the service
// catalog cache, the multi-backend order store and the order lifecycle
// (checkout, payment, proof upload, admin review, status reconciliation).
package panelku

import (
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/panelku/panelku/cache"
	"github.com/panelku/panelku/config"
	"github.com/panelku/panelku/database"
	redis_db "github.com/panelku/panelku/internal/redis-db"
	"github.com/panelku/panelku/model"
)

// Panelku holds all storefront state explicitly: the in-process order map
// (primary store), the optional Redis and sqlite backends, the catalog
// snapshot and the panel failure cooldown. Nothing lives in package globals.
type Panelku struct {
	config *config.Configuration

	mu     sync.RWMutex
	orders map[string]*model.Order

	redis redis.UniversalClient // nil when KV backend disabled
	cache cache.Cache           // nil when KV backend disabled
	db    *database.Datasource  // nil when SQL backend disabled

	catalogMu        sync.Mutex
	catalog          *model.CatalogSnapshot
	lastPanelFailure time.Time
}

// NewPanelku wires the service from the loaded configuration. Secondary
// backends that fail to connect are disabled with a warning rather than
// blocking startup; the in-memory store always works.
func NewPanelku() (*Panelku, error) {
	cnf, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	var rdb redis.UniversalClient
	if cnf.Redis.Dns != "" {
		client, err := redis_db.NewRedisClient(cnf.Redis.Dns)
		if err != nil {
			logrus.Warnf("redis unavailable, KV order backend disabled: %v", err)
		} else {
			rdb = client.Client()
		}
	}

	var ds *database.Datasource
	if cnf.DataSource.Dns != "" {
		ds, err = database.NewDataSource(cnf)
		if err != nil {
			logrus.Warnf("sqlite unavailable, SQL order backend disabled: %v", err)
			ds = nil
		}
	}

	return NewWithStores(cnf, rdb, ds), nil
}

// NewWithStores builds the service around explicit backends. Used directly
// by tests with miniredis and sqlmock.
func NewWithStores(cnf *config.Configuration, rdb redis.UniversalClient, ds *database.Datasource) *Panelku {
	p := &Panelku{
		config: cnf,
		orders: make(map[string]*model.Order),
		redis:  rdb,
		db:     ds,
	}
	if rdb != nil {
		p.cache = cache.NewCacheWithClient(rdb)
	}
	return p
}
