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

package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/gin-gonic/gin"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panelku/panelku"
	"github.com/panelku/panelku/config"
)

const testPanelURL = "https://panel.example.com/api/v2"

// panelResponder answers both catalog and submit calls the way a real
// panel would, keyed on the form action.
func panelResponder(req *http.Request) (*http.Response, error) {
	if err := req.ParseForm(); err != nil {
		return httpmock.NewStringResponse(http.StatusBadRequest, `{"error":"bad form"}`), nil
	}
	switch req.PostFormValue("action") {
	case "services":
		return httpmock.NewStringResponse(http.StatusOK,
			`[{"service":101,"name":"Instagram Followers [Real]","category":"Instagram","rate":"15.00","min":"100","max":"10000"}]`), nil
	case "add":
		return httpmock.NewStringResponse(http.StatusOK, `{"status":true,"data":{"id":"555"}}`), nil
	case "status":
		return httpmock.NewStringResponse(http.StatusOK,
			`{"status":"In progress","start_count":"10","remains":"5","charge":"0.5"}`), nil
	}
	return httpmock.NewStringResponse(http.StatusBadRequest, `{"error":"unknown action"}`), nil
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	dir := t.TempDir()
	cnf := &config.Configuration{
		Admin: config.AdminConfig{SecretKey: "admin-secret"},
		Panel: config.PanelConfig{
			URLs: []string{testPanelURL},
			Key:  "panel-key",
		},
		Catalog: config.CatalogConfig{
			SnapshotFile: filepath.Join(dir, "snapshot.json"),
			ManualFile:   filepath.Join(dir, "manual.json"),
		},
		Upload: config.UploadConfig{Dir: filepath.Join(dir, "uploads")},
	}
	config.MockConfig(cnf)

	service := panelku.NewWithStores(cnf, nil, nil)
	a, err := NewAPI(service)
	require.NoError(t, err)
	require.NotNil(t, a)
	return a.Router()
}

func postJSON(r *gin.Engine, path string, payload string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func getPath(r *gin.Engine, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func orderIDFromResponse(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		OK    bool `json:"ok"`
		Order struct {
			OrderID string `json:"order_id"`
			Status  string `json:"status"`
		} `json:"order"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.True(t, body.OK)
	return body.Order.OrderID
}

func TestHealthEndpoint(t *testing.T) {
	r := newTestRouter(t)
	w := getPath(r, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ok":true`)
}

func TestCheckoutEndpoint(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder(http.MethodPost, testPanelURL, panelResponder)

	r := newTestRouter(t)
	payload := fmt.Sprintf(
		`{"service_id":"101","target":"https://instagram.com/someone","quantity":"1000","customer":{"name":%q,"phone":%q}}`,
		gofakeit.Name(), gofakeit.Phone())

	w := postJSON(r, "/api/order/checkout", payload, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"status":"pending_payment"`)
	assert.Contains(t, w.Body.String(), `"service_name":"Instagram Followers [Real]"`)
}

func TestCheckoutEndpointRejectsInvalidPayload(t *testing.T) {
	r := newTestRouter(t)

	w := postJSON(r, "/api/order/checkout", `{"service_id":"","quantity":0}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(r, "/api/order/checkout", `not json`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPaymentMethodEndpoint(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder(http.MethodPost, testPanelURL, panelResponder)

	r := newTestRouter(t)
	w := postJSON(r, "/api/order/checkout",
		`{"service_id":"101","target":"https://instagram.com/someone","quantity":500}`, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	orderID := orderIDFromResponse(t, w)

	w = postJSON(r, "/api/order/payment-method",
		fmt.Sprintf(`{"order_id":%q,"method":"transfer","amount":7500}`, orderID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"status":"waiting_review"`)

	w = postJSON(r, "/api/order/payment-method", `{"method":"transfer"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(r, "/api/order/payment-method", `{"order_id":"ORD-nope","method":"transfer"}`, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUploadProofEndpoint(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder(http.MethodPost, testPanelURL, panelResponder)

	r := newTestRouter(t)
	w := postJSON(r, "/api/order/checkout",
		`{"service_id":"101","target":"https://instagram.com/someone","quantity":500}`, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	orderID := orderIDFromResponse(t, w)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("order_id", orderID))
	part, err := mw.CreateFormFile("proof", "bukti.jpg")
	require.NoError(t, err)
	_, err = part.Write([]byte("fake image bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/order/upload-proof", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Contains(t, resp.Body.String(), `"proof_status":"uploaded"`)
	assert.Contains(t, resp.Body.String(), `"status":"waiting_review"`)
}

func TestUploadProofEndpointValidation(t *testing.T) {
	r := newTestRouter(t)

	// missing file
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("order_id", "ORD-x"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/order/upload-proof", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestOrderStatusEndpoint(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder(http.MethodPost, testPanelURL, panelResponder)

	r := newTestRouter(t)
	w := postJSON(r, "/api/order/checkout",
		`{"service_id":"101","target":"https://instagram.com/someone","quantity":500}`, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	orderID := orderIDFromResponse(t, w)

	w = getPath(r, "/api/order/status?order_id="+orderID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"source":"local"`)

	w = getPath(r, "/api/order/status", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCatalogEndpoints(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder(http.MethodPost, testPanelURL, panelResponder)

	r := newTestRouter(t)

	w := getPath(r, "/api/platforms", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Instagram")

	w = getPath(r, "/api/actions?platform=Instagram", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Followers")

	w = getPath(r, "/api/services?platform=Instagram&action=Followers", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"provider_service_id":"101"`)
}

func TestCORSPreflight(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/order/checkout", nil)
	req.Header.Set("Origin", "https://storefront.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestAdminEndpointsRequireKey(t *testing.T) {
	r := newTestRouter(t)

	w := getPath(r, "/api/admin/orders", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = getPath(r, "/api/admin/orders", map[string]string{"x-admin-key": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = getPath(r, "/api/admin/orders", map[string]string{"x-admin-key": "admin-secret"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminUpdateStatusEndpoint(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder(http.MethodPost, testPanelURL, panelResponder)

	r := newTestRouter(t)
	adminKey := map[string]string{"x-admin-key": "admin-secret"}

	w := postJSON(r, "/api/order/checkout",
		`{"service_id":"101","target":"https://instagram.com/someone","quantity":500}`, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	orderID := orderIDFromResponse(t, w)

	w = postJSON(r, "/api/order/payment-method",
		fmt.Sprintf(`{"order_id":%q,"method":"transfer"}`, orderID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = postJSON(r, "/api/admin/orders/"+orderID+"/status",
		`{"status":"approved","admin_note":"verified"}`, adminKey)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"provider_order_id":"555"`)
	assert.Contains(t, w.Body.String(), `"status":"approved"`)

	// invalid target status
	w = postJSON(r, "/api/admin/orders/"+orderID+"/status", `{"status":"waiting_review"}`, adminKey)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// no key
	w = postJSON(r, "/api/admin/orders/"+orderID+"/status", `{"status":"rejected"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
