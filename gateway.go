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
	"fmt"
	"net/http"

	"github.com/panelku/panelku/internal/request"
	"github.com/panelku/panelku/model"
)

type gatewayInvoiceResponse struct {
	Status int `json:"status"`
	Data   struct {
		SessionID string `json:"session_id"`
		Url       string `json:"url"`
	} `json:"data"`
	Message string `json:"message"`
}

// requestGatewayInvoice creates a payment invoice at the configured gateway
// and returns its reference (payment URL when provided, session id
// otherwise).
func (p *Panelku) requestGatewayInvoice(ctx context.Context, order *model.Order) (string, error) {
	payload := map[string]interface{}{
		"referenceId": order.OrderID,
		"product":     []string{order.ServiceName},
		"qty":         []int64{1},
		"price":       []float64{order.Payment.Amount},
		"account":     p.config.Gateway.VaAccount,
		"buyerName":   order.Customer.Name,
		"buyerEmail":  order.Customer.Email,
		"buyerPhone":  order.Customer.Phone,
	}

	body, err := request.ToJsonReq(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.Gateway.Url, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", p.config.Gateway.ApiKey)

	var resp gatewayInvoiceResponse
	httpResp, err := request.Call(req, &resp)
	if err != nil {
		return "", err
	}
	if httpResp.StatusCode >= 300 || resp.Data.SessionID == "" && resp.Data.Url == "" {
		return "", fmt.Errorf("gateway returned status %d: %s", httpResp.StatusCode, resp.Message)
	}
	if resp.Data.Url != "" {
		return resp.Data.Url, nil
	}
	return resp.Data.SessionID, nil
}
