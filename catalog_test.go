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
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panelku/panelku/internal/apierror"
	"github.com/panelku/panelku/model"
)

const panelServicesBody = `[
	{"service":101,"name":"Instagram Followers [Real]","category":"Instagram","type":"Default","rate":"15.00","min":"100","max":"10000"},
	{"service":"202","name":"TikTok Views Fast","category":"TikTok","type":"Default","rate":2.5,"min":100,"max":1000000}
]`

func TestResolveCatalogFetchesFromPanel(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	p := newPanelService(t)
	httpmock.RegisterResponder(http.MethodPost, testPanelURL,
		func(req *http.Request) (*http.Response, error) {
			require.NoError(t, req.ParseForm())
			assert.Equal(t, "services", req.PostFormValue("action"))
			assert.Equal(t, "panel-key", req.PostFormValue("key"))
			return httpmock.NewStringResponse(http.StatusOK, panelServicesBody), nil
		})

	snapshot, err := p.ResolveServiceCatalog(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, "panel", snapshot.Meta.Source)
	assert.Equal(t, 1, snapshot.Meta.Attempts)
	require.Len(t, snapshot.List, 2)

	first := snapshot.List[0]
	assert.Equal(t, "101", first.ProviderServiceID)
	assert.Equal(t, "Instagram", first.Platform)
	assert.Equal(t, "Followers", first.Action)
	assert.Equal(t, 15.0, first.RatePer1k)
	assert.Equal(t, int64(100), first.Min)
	assert.Equal(t, int64(10000), first.Max)

	second := snapshot.List[1]
	assert.Equal(t, "202", second.ProviderServiceID)
	assert.Equal(t, "TikTok", second.Platform)
	assert.Equal(t, "Views", second.Action)
}

func TestResolveCatalogServesFreshSnapshot(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	p := newPanelService(t)
	seedCatalog(p)

	snapshot, err := p.ResolveServiceCatalog(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "panel", snapshot.Meta.Source)
	assert.Equal(t, 0, httpmock.GetTotalCallCount(), "fresh snapshot must not refetch")
}

func TestResolveCatalogFallsBackToStaleCache(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	p := newPanelService(t)
	seedCatalog(p)
	p.catalog.Meta.CachedAt = time.Now().Add(-time.Hour)

	// no responder registered: the panel is unreachable

	snapshot, err := p.ResolveServiceCatalog(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "cache", snapshot.Meta.Source)
	assert.NotEmpty(t, snapshot.Meta.Warning)
	require.Len(t, snapshot.List, 1)
	assert.Equal(t, "101", snapshot.List[0].ProviderServiceID)
}

func TestResolveCatalogManualFallback(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	p := newPanelService(t)
	manual := `[{"provider_service_id":"900","name":"Manual Service","platform":"Other","action":"Other","rate_per_1k":5}]`
	require.NoError(t, os.WriteFile(p.config.Catalog.ManualFile, []byte(manual), 0o644))

	snapshot, err := p.ResolveServiceCatalog(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "manual", snapshot.Meta.Source)
	assert.NotEmpty(t, snapshot.Meta.Warning)
	require.Len(t, snapshot.List, 1)
	assert.Equal(t, "900", snapshot.List[0].ProviderServiceID)
}

func TestResolveCatalogEmptyError(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	p := newPanelService(t)

	_, err := p.ResolveServiceCatalog(context.Background(), false)
	assertErrorCode(t, err, apierror.ErrConfig)
	assert.Contains(t, err.Error(), "CATALOG_EMPTY")
}

func TestPanelFailureCooldownShortCircuits(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	p := newPanelService(t)
	seedCatalog(p)
	p.catalog.Meta.CachedAt = time.Now().Add(-time.Hour)
	p.lastPanelFailure = time.Now()

	snapshot, err := p.ResolveServiceCatalog(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, "cache", snapshot.Meta.Source)
	assert.Equal(t, 0, httpmock.GetTotalCallCount(), "cooldown must skip upstream calls")
}

func TestCatalogSurvivesRestartViaKVCache(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	rdb := newTestRedis(t)
	p := newPanelService(t)
	p = NewWithStores(p.config, rdb, nil)

	httpmock.RegisterResponder(http.MethodPost, testPanelURL,
		httpmock.NewStringResponder(http.StatusOK, panelServicesBody))

	_, err := p.ResolveServiceCatalog(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, 1, httpmock.GetTotalCallCount())

	restarted := NewWithStores(p.config, rdb, nil)
	snapshot, err := restarted.ResolveServiceCatalog(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "panel", snapshot.Meta.Source)
	assert.Len(t, snapshot.List, 2)
	assert.Equal(t, 1, httpmock.GetTotalCallCount(), "restart must hit the KV cache, not the panel")
}

func TestCatalogSnapshotFilePersists(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	p := newPanelService(t)
	httpmock.RegisterResponder(http.MethodPost, testPanelURL,
		httpmock.NewStringResponder(http.StatusOK, panelServicesBody))

	_, err := p.ResolveServiceCatalog(context.Background(), false)
	require.NoError(t, err)

	restarted := NewWithStores(p.config, nil, nil)
	snapshot, err := restarted.ResolveServiceCatalog(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "cache", snapshot.Meta.Source)
	assert.Len(t, snapshot.List, 2)
	assert.Equal(t, 1, httpmock.GetTotalCallCount(), "restart must read the snapshot file")
}

func TestPlatformsActionsServices(t *testing.T) {
	ctx := context.Background()
	p := newPanelService(t)
	p.catalog = &model.CatalogSnapshot{
		List: []model.Service{
			{ProviderServiceID: "1", Name: "IG Followers", Platform: "Instagram", Action: "Followers"},
			{ProviderServiceID: "2", Name: "IG Likes", Platform: "Instagram", Action: "Likes"},
			{ProviderServiceID: "3", Name: "TT Views", Platform: "TikTok", Action: "Views"},
		},
		Meta: model.CatalogMeta{Source: "panel", CachedAt: time.Now().UTC()},
	}

	platforms, err := p.Platforms(ctx)
	require.NoError(t, err)
	require.Len(t, platforms, 2)
	assert.Equal(t, "Instagram", platforms[0].ID)
	assert.Equal(t, "TikTok", platforms[1].ID)

	actions, err := p.Actions(ctx, "Instagram")
	require.NoError(t, err)
	assert.Equal(t, []string{"Followers", "Likes"}, actions)

	services, err := p.Services(ctx, "Instagram", "Likes", false)
	require.NoError(t, err)
	require.Len(t, services, 1)
	assert.Equal(t, "2", services[0].ProviderServiceID)

	all, err := p.Services(ctx, "", "", false)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
