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

package panelku

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/panelku/panelku/internal/notification"
	"github.com/panelku/panelku/model"
)

const (
	orderKeyPrefix = "order:"
	orderIndexKey  = "orders:index"
)

// SaveOrder writes through to the in-memory map (authoritative for the
// process lifetime), then best-effort to Redis and sqlite. Secondary
// failures are logged and swallowed; the save still succeeds. The map
// holds a private copy; callers keep mutating their own value safely.
func (p *Panelku) SaveOrder(ctx context.Context, order *model.Order) error {
	p.mu.Lock()
	p.orders[order.OrderID] = order.Clone()
	p.mu.Unlock()

	p.saveOrderToRedis(ctx, order)
	p.saveOrderToSQL(ctx, order)
	return nil
}

func (p *Panelku) saveOrderToRedis(ctx context.Context, order *model.Order) {
	if p.redis == nil {
		return
	}
	payload, err := json.Marshal(order)
	if err != nil {
		logrus.Warnf("kv store: marshal order %s failed: %v", order.OrderID, err)
		return
	}
	ttl := time.Duration(p.config.History.TTLDays) * 24 * time.Hour
	if err := p.redis.Set(ctx, orderKeyPrefix+order.OrderID, payload, ttl).Err(); err != nil {
		notification.NotifyError(fmt.Errorf("kv store: set order %s failed: %w", order.OrderID, err))
		return
	}
	err = p.redis.ZAdd(ctx, orderIndexKey, redis.Z{
		Score:  float64(order.Score()),
		Member: order.OrderID,
	}).Err()
	if err != nil {
		logrus.Warnf("kv store: index order %s failed: %v", order.OrderID, err)
		return
	}
	p.trimRedisHistory(ctx)
}

// trimRedisHistory drops the oldest indexed orders beyond the history cap,
// deleting their keys along with the index entries.
func (p *Panelku) trimRedisHistory(ctx context.Context) {
	limit := int64(p.config.History.Limit)
	card, err := p.redis.ZCard(ctx, orderIndexKey).Result()
	if err != nil || card <= limit {
		return
	}
	evicted, err := p.redis.ZRange(ctx, orderIndexKey, 0, card-limit-1).Result()
	if err != nil {
		logrus.Warnf("kv store: history trim read failed: %v", err)
		return
	}
	for _, id := range evicted {
		if err := p.redis.Del(ctx, orderKeyPrefix+id).Err(); err != nil {
			logrus.Warnf("kv store: evict order %s failed: %v", id, err)
		}
	}
	if err := p.redis.ZRemRangeByRank(ctx, orderIndexKey, 0, card-limit-1).Err(); err != nil {
		logrus.Warnf("kv store: history trim failed: %v", err)
	}
}

func (p *Panelku) saveOrderToSQL(ctx context.Context, order *model.Order) {
	if p.db == nil {
		return
	}
	if err := p.db.UpsertOrder(ctx, order); err != nil {
		notification.NotifyError(fmt.Errorf("sql store: upsert order %s failed: %w", order.OrderID, err))
		return
	}
	if err := p.db.TrimOrders(ctx, p.config.History.Limit); err != nil {
		logrus.Warnf("sql store: history trim failed: %v", err)
	}
}

// GetOrder reads through the fallback chain: memory, Redis, sqlite. The
// first hit is backfilled into memory only. The returned order is a
// detached copy; lifecycle mutation never touches a shared object.
func (p *Panelku) GetOrder(ctx context.Context, orderID string) (*model.Order, error) {
	p.mu.RLock()
	order, ok := p.orders[orderID]
	if ok {
		order = order.Clone()
	}
	p.mu.RUnlock()
	if ok {
		return order, nil
	}

	if order := p.getOrderFromRedis(ctx, orderID); order != nil {
		p.backfillMemory(order)
		return order, nil
	}

	if p.db != nil {
		order, err := p.db.GetOrder(ctx, orderID)
		if err != nil {
			logrus.Warnf("sql store: get order %s failed: %v", orderID, err)
		} else if order != nil {
			p.backfillMemory(order)
			return order, nil
		}
	}
	return nil, nil
}

func (p *Panelku) getOrderFromRedis(ctx context.Context, orderID string) *model.Order {
	if p.redis == nil {
		return nil
	}
	payload, err := p.redis.Get(ctx, orderKeyPrefix+orderID).Bytes()
	if err != nil {
		if err != redis.Nil {
			logrus.Warnf("kv store: get order %s failed: %v", orderID, err)
		}
		return nil
	}
	var order model.Order
	if err := json.Unmarshal(payload, &order); err != nil {
		logrus.Warnf("kv store: decode order %s failed: %v", orderID, err)
		return nil
	}
	return &order
}

func (p *Panelku) backfillMemory(order *model.Order) {
	p.mu.Lock()
	p.orders[order.OrderID] = order.Clone()
	p.mu.Unlock()
}

// ListOrders merges all three backends into one deduplicated view keyed by
// order id. SQL rows load first, then the in-process map, and KV entries
// overwrite both: a shared Redis may carry fresher writes from another
// instance. Sorted descending by score. Every entry is a detached copy.
func (p *Panelku) ListOrders(ctx context.Context) ([]*model.Order, error) {
	merged := make(map[string]*model.Order)

	if p.db != nil {
		rows, err := p.db.AllOrders(ctx)
		if err != nil {
			logrus.Warnf("sql store: list orders failed: %v", err)
		} else {
			for _, o := range rows {
				merged[o.OrderID] = o
			}
		}
	}

	p.mu.RLock()
	for _, o := range p.orders {
		merged[o.OrderID] = o.Clone()
	}
	p.mu.RUnlock()

	for _, o := range p.listOrdersFromRedis(ctx) {
		merged[o.OrderID] = o
	}

	orders := make([]*model.Order, 0, len(merged))
	for _, o := range merged {
		orders = append(orders, o)
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].Score() > orders[j].Score()
	})

	p.trimMemory(orders)
	return orders, nil
}

func (p *Panelku) listOrdersFromRedis(ctx context.Context) []*model.Order {
	if p.redis == nil {
		return nil
	}
	ids, err := p.redis.ZRevRange(ctx, orderIndexKey, 0, -1).Result()
	if err != nil {
		logrus.Warnf("kv store: list index failed: %v", err)
		return nil
	}
	var orders []*model.Order
	for _, id := range ids {
		if o := p.getOrderFromRedis(ctx, id); o != nil {
			orders = append(orders, o)
		}
	}
	return orders
}

// trimMemory caps the in-process map at the history limit, dropping the
// oldest entries. Keeps a long-lived process from growing without bound.
func (p *Panelku) trimMemory(sorted []*model.Order) {
	limit := p.config.History.Limit
	if len(sorted) <= limit {
		return
	}
	p.mu.Lock()
	for _, o := range sorted[limit:] {
		delete(p.orders, o.OrderID)
	}
	p.mu.Unlock()
}

// loadOrder is the deadline-enforcing read used by every lifecycle path:
// a reviewable order past its deadline is force-cancelled and persisted
// before being returned. There is no background sweep.
func (p *Panelku) loadOrder(ctx context.Context, orderID string) (*model.Order, error) {
	order, err := p.GetOrder(ctx, orderID)
	if err != nil || order == nil {
		return order, err
	}
	return p.enforceReviewDeadline(ctx, order), nil
}

// loadAllOrders lists every order with the deadline check applied to each.
func (p *Panelku) loadAllOrders(ctx context.Context) ([]*model.Order, error) {
	orders, err := p.ListOrders(ctx)
	if err != nil {
		return nil, err
	}
	for i, o := range orders {
		orders[i] = p.enforceReviewDeadline(ctx, o)
	}
	return orders, nil
}

func (p *Panelku) enforceReviewDeadline(ctx context.Context, order *model.Order) *model.Order {
	now := time.Now()
	if !order.ReviewExpired(now) {
		return order
	}
	order.Status = model.StatusCancelled
	order.CancelReason = model.CancelReasonReviewTimeout
	order.AutoCancelled = true
	order.ReviewDeadline = nil
	order.StampEvent("auto_cancelled", now)
	order.Touch(now)
	if err := p.SaveOrder(ctx, order); err != nil {
		logrus.Warnf("persisting auto-cancel of %s failed: %v", order.OrderID, err)
	}
	return order
}
