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
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/panelku/panelku/internal/apierror"
	"github.com/panelku/panelku/internal/notification"
	"github.com/panelku/panelku/internal/request"
	"github.com/panelku/panelku/model"
)

type panelSubmitResponse struct {
	Status bool `json:"status"`
	Data   struct {
		ID json.Number `json:"id"`
	} `json:"data"`
	Error string `json:"error"`
}

// PanelOrderStatus is the upstream view of a submitted order.
type PanelOrderStatus struct {
	Status     string      `json:"status"`
	StartCount json.Number `json:"start_count"`
	Remains    json.Number `json:"remains"`
	Charge     json.Number `json:"charge"`
	Error      string      `json:"error"`
}

func (p *Panelku) panelEndpoint() (string, error) {
	if len(p.config.Panel.URLs) == 0 || p.config.Panel.Key == "" {
		return "", apierror.NewAPIError(apierror.ErrConfig, "panel credentials not configured", nil)
	}
	return p.config.Panel.URLs[0], nil
}

// PanelConfigured reports whether upstream credentials exist.
func (p *Panelku) PanelConfigured() bool {
	_, err := p.panelEndpoint()
	return err == nil
}

// pushOrderToPanel submits an order to the upstream panel, form-encoded
// first. Some panels only parse JSON with numeric service/quantity fields,
// so any non-success answer triggers exactly one retry in that encoding.
// Returns the provider order id.
func (p *Panelku) pushOrderToPanel(ctx context.Context, order *model.Order) (string, error) {
	endpoint, err := p.panelEndpoint()
	if err != nil {
		return "", err
	}

	var formResp panelSubmitResponse
	resp, err := request.PostForm(ctx, endpoint, map[string]string{
		"key":      p.config.Panel.Key,
		"action":   "add",
		"service":  order.ServiceID,
		"link":     order.Target,
		"quantity": strconv.FormatInt(order.Quantity, 10),
	}, &formResp)
	if err == nil && resp.StatusCode < 300 && formResp.Status && formResp.Data.ID.String() != "" {
		return formResp.Data.ID.String(), nil
	}
	if err != nil {
		logrus.Warnf("panel submit (form) for %s failed: %v", order.OrderID, err)
	} else {
		logrus.Warnf("panel submit (form) for %s rejected: %s", order.OrderID, formResp.Error)
	}

	var jsonResp panelSubmitResponse
	payload := map[string]interface{}{
		"key":      p.config.Panel.Key,
		"action":   "add",
		"service":  numericIfPossible(order.ServiceID),
		"link":     order.Target,
		"quantity": order.Quantity,
	}
	resp, err = request.PostJSON(ctx, endpoint, payload, &jsonResp)
	if err == nil && resp.StatusCode < 300 && jsonResp.Status && jsonResp.Data.ID.String() != "" {
		return jsonResp.Data.ID.String(), nil
	}

	detail := jsonResp.Error
	if err != nil {
		detail = err.Error()
	}
	submitErr := apierror.NewAPIError(apierror.ErrUpstream,
		fmt.Sprintf("panel rejected order %s", order.OrderID), detail)
	notification.NotifyError(submitErr)
	return "", submitErr
}

// fetchPanelStatus polls the upstream status of one submitted order. The
// form encoding is tried first; the upstream's "id required" complaint means
// it did not parse the body, so the call is retried once JSON-encoded.
func (p *Panelku) fetchPanelStatus(ctx context.Context, providerOrderID string) (*PanelOrderStatus, error) {
	endpoint, err := p.panelEndpoint()
	if err != nil {
		return nil, err
	}

	var formResp PanelOrderStatus
	resp, formErr := request.PostForm(ctx, endpoint, map[string]string{
		"key":    p.config.Panel.Key,
		"action": "status",
		"order":  providerOrderID,
	}, &formResp)
	if formErr == nil && (resp.StatusCode < 200 || resp.StatusCode >= 300) {
		formErr = fmt.Errorf("panel returned status %d", resp.StatusCode)
	}
	if formErr == nil {
		if formResp.Error == "" {
			return &formResp, nil
		}
		// Only the body-parse complaint warrants the alternate encoding;
		// any other upstream error is final.
		if !needsJSONRetry(formResp.Error) {
			return nil, apierror.NewAPIError(apierror.ErrUpstream, "panel status fetch failed", formResp.Error)
		}
	}

	var jsonResp PanelOrderStatus
	resp, jsonErr := request.PostJSON(ctx, endpoint, map[string]interface{}{
		"key":    p.config.Panel.Key,
		"action": "status",
		"order":  numericIfPossible(providerOrderID),
	}, &jsonResp)
	if jsonErr == nil && (resp.StatusCode < 200 || resp.StatusCode >= 300) {
		jsonErr = fmt.Errorf("panel returned status %d", resp.StatusCode)
	}
	if jsonErr == nil && jsonResp.Error == "" {
		return &jsonResp, nil
	}

	detail := jsonResp.Error
	if jsonErr != nil {
		detail = jsonErr.Error()
	}
	return nil, apierror.NewAPIError(apierror.ErrUpstream, "panel status fetch failed", detail)
}

func needsJSONRetry(upstreamError string) bool {
	return strings.Contains(strings.ToLower(upstreamError), "id required")
}

func numericIfPossible(s string) interface{} {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	return s
}
