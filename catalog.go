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
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/panelku/panelku/internal/apierror"
	"github.com/panelku/panelku/internal/request"
	"github.com/panelku/panelku/model"
)

const catalogCacheKey = "catalog:services"

// catalogCacheTTL bounds how long a snapshot survives in the KV store; the
// freshness window that triggers refetching is the much shorter configured TTL.
const catalogCacheTTL = 30 * 24 * time.Hour

// panelService is the raw service row returned by the upstream panel API.
// Numeric fields arrive as strings or numbers depending on the panel, hence
// json.Number throughout.
type panelService struct {
	Service  json.Number `json:"service"`
	Name     string      `json:"name"`
	Category string      `json:"category"`
	Type     string      `json:"type"`
	Rate     json.Number `json:"rate"`
	Min      json.Number `json:"min"`
	Max      json.Number `json:"max"`
}

// ResolveServiceCatalog returns the current catalog snapshot, refreshing
// from the upstream panel when forced or stale. It fails only when the
// panel is unreachable and neither a cached nor a manual list exists.
func (p *Panelku) ResolveServiceCatalog(ctx context.Context, forceRefresh bool) (*model.CatalogSnapshot, error) {
	p.catalogMu.Lock()
	defer p.catalogMu.Unlock()

	if p.catalog == nil {
		p.loadCatalogFromCache(ctx)
	}
	if p.catalog == nil {
		p.loadCatalogFromFile(p.config.Catalog.SnapshotFile, "cache")
	}

	ttl := time.Duration(p.config.Catalog.CacheTTLSec) * time.Second
	fresh := p.catalog != nil && time.Since(p.catalog.Meta.CachedAt) < ttl
	if fresh && !forceRefresh {
		return p.catalog, nil
	}

	snapshot, err := p.fetchPanelServices(ctx)
	if err == nil {
		p.catalog = snapshot
		p.persistCatalog(ctx, snapshot)
		return snapshot, nil
	}
	logrus.Warnf("catalog refresh failed: %v", err)

	if p.catalog != nil {
		stale := *p.catalog
		stale.Meta.Source = "cache"
		stale.Meta.Warning = fmt.Sprintf("upstream fetch failed: %v", err)
		p.catalog = &stale
		return p.catalog, nil
	}

	if manual := p.loadManualCatalog(); manual != nil {
		p.catalog = manual
		return manual, nil
	}

	return nil, apierror.NewAPIError(apierror.ErrConfig, "CATALOG_EMPTY", err.Error())
}

// fetchPanelServices iterates the configured panel URLs, short-circuiting on
// the first one returning a non-empty service array. Each attempt gets its
// own timeout. A recent failure puts all upstream calls on cooldown.
func (p *Panelku) fetchPanelServices(ctx context.Context) (*model.CatalogSnapshot, error) {
	if len(p.config.Panel.URLs) == 0 {
		return nil, fmt.Errorf("no panel urls configured")
	}

	cooldown := time.Duration(p.config.Panel.FailureCooldownSec) * time.Second
	if !p.lastPanelFailure.IsZero() && time.Since(p.lastPanelFailure) < cooldown {
		return nil, fmt.Errorf("panel on cooldown after failure at %s", p.lastPanelFailure.Format(time.RFC3339))
	}

	timeout := time.Duration(p.config.Panel.TimeoutSec) * time.Second
	attempts := 0
	var lastErr error
	for _, endpoint := range p.config.Panel.URLs {
		attempts++
		raw, err := p.fetchServicesFromURL(ctx, endpoint, timeout)
		if err != nil {
			lastErr = err
			logrus.Warnf("panel services fetch from %s failed: %v", endpoint, err)
			continue
		}
		if len(raw) == 0 {
			lastErr = fmt.Errorf("panel %s returned empty service list", endpoint)
			continue
		}
		return &model.CatalogSnapshot{
			List: normalizeServices(raw),
			Meta: model.CatalogMeta{
				Source:   "panel",
				CachedAt: time.Now().UTC(),
				Attempts: attempts,
			},
		}, nil
	}

	p.lastPanelFailure = time.Now()
	return nil, lastErr
}

func (p *Panelku) fetchServicesFromURL(ctx context.Context, endpoint string, timeout time.Duration) ([]panelService, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var raw []panelService
	resp, err := request.PostForm(attemptCtx, endpoint, map[string]string{
		"key":    p.config.Panel.Key,
		"action": "services",
	}, &raw)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("panel returned status %d", resp.StatusCode)
	}
	return raw, nil
}

func normalizeServices(raw []panelService) []model.Service {
	services := make([]model.Service, 0, len(raw))
	for _, r := range raw {
		rate, _ := r.Rate.Float64()
		min, _ := r.Min.Int64()
		max, _ := r.Max.Int64()
		services = append(services, model.Service{
			ProviderServiceID: r.Service.String(),
			Name:              r.Name,
			Category:          r.Category,
			Platform:          model.ClassifyPlatform(r.Name, r.Category),
			Action:            model.ClassifyAction(r.Name, r.Category),
			Min:               min,
			Max:               max,
			RatePer1k:         rate,
			Description:       r.Type,
		})
	}
	return services
}

func (p *Panelku) persistCatalog(ctx context.Context, snapshot *model.CatalogSnapshot) {
	if p.cache != nil {
		if err := p.cache.Set(ctx, catalogCacheKey, snapshot, catalogCacheTTL); err != nil {
			logrus.Warnf("catalog cache write failed: %v", err)
		}
	}
	payload, err := json.Marshal(snapshot)
	if err == nil {
		err = os.WriteFile(p.config.Catalog.SnapshotFile, payload, 0o644)
	}
	if err != nil {
		logrus.Warnf("catalog snapshot file write failed: %v", err)
	}
}

func (p *Panelku) loadCatalogFromCache(ctx context.Context) {
	if p.cache == nil {
		return
	}
	var snapshot model.CatalogSnapshot
	if err := p.cache.Get(ctx, catalogCacheKey, &snapshot); err != nil {
		logrus.Warnf("catalog cache read failed: %v", err)
		return
	}
	if len(snapshot.List) > 0 {
		p.catalog = &snapshot
	}
}

func (p *Panelku) loadCatalogFromFile(path, source string) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return
	}
	var snapshot model.CatalogSnapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil || len(snapshot.List) == 0 {
		return
	}
	snapshot.Meta.Source = source
	p.catalog = &snapshot
}

// loadManualCatalog reads the curated override list: a plain JSON array of
// services maintained by hand for when the panel is down on first boot.
func (p *Panelku) loadManualCatalog() *model.CatalogSnapshot {
	payload, err := os.ReadFile(p.config.Catalog.ManualFile)
	if err != nil {
		return nil
	}
	var list []model.Service
	if err := json.Unmarshal(payload, &list); err != nil || len(list) == 0 {
		logrus.Warnf("manual catalog file unusable: %v", err)
		return nil
	}
	return &model.CatalogSnapshot{
		List: list,
		Meta: model.CatalogMeta{
			Source:   "manual",
			CachedAt: time.Now().UTC(),
			Warning:  "serving manually curated catalog",
		},
	}
}

// Platform is a storefront platform tab derived from the catalog.
type Platform struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Platforms lists the distinct platforms in the catalog, catalog order.
func (p *Panelku) Platforms(ctx context.Context) ([]Platform, error) {
	snapshot, err := p.ResolveServiceCatalog(ctx, false)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var platforms []Platform
	for _, s := range snapshot.List {
		if seen[s.Platform] {
			continue
		}
		seen[s.Platform] = true
		platforms = append(platforms, Platform{ID: s.Platform, Name: s.Platform})
	}
	return platforms, nil
}

// Actions lists the distinct action labels for one platform.
func (p *Panelku) Actions(ctx context.Context, platform string) ([]string, error) {
	snapshot, err := p.ResolveServiceCatalog(ctx, false)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var actions []string
	for _, s := range snapshot.List {
		if platform != "" && s.Platform != platform {
			continue
		}
		if seen[s.Action] {
			continue
		}
		seen[s.Action] = true
		actions = append(actions, s.Action)
	}
	return actions, nil
}

// Services returns the catalog filtered by platform and action.
func (p *Panelku) Services(ctx context.Context, platform, action string, refresh bool) ([]model.Service, error) {
	snapshot, err := p.ResolveServiceCatalog(ctx, refresh)
	if err != nil {
		return nil, err
	}
	var services []model.Service
	for _, s := range snapshot.List {
		if platform != "" && s.Platform != platform {
			continue
		}
		if action != "" && s.Action != action {
			continue
		}
		services = append(services, s)
	}
	return services, nil
}

// findService looks a service up by its provider id in the current catalog.
// Catalog failures degrade to a nil hit; checkout still proceeds.
func (p *Panelku) findService(ctx context.Context, serviceID string) *model.Service {
	snapshot, err := p.ResolveServiceCatalog(ctx, false)
	if err != nil {
		return nil
	}
	for i := range snapshot.List {
		if snapshot.List[i].ProviderServiceID == serviceID {
			return &snapshot.List[i]
		}
	}
	return nil
}
