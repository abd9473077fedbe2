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
	"time"

	"github.com/panelku/panelku/internal/apierror"
)

// MergedOrderStatus combines the locally known order metadata with the
// live upstream counters. Local status always wins over the panel's view.
type MergedOrderStatus struct {
	OrderID         string      `json:"order_id"`
	ProviderOrderID string      `json:"provider_order_id,omitempty"`
	Status          string      `json:"status"`
	PanelStatus     string      `json:"panel_status,omitempty"`
	Target          string      `json:"target,omitempty"`
	ServiceName     string      `json:"service_name,omitempty"`
	Quantity        int64       `json:"quantity,omitempty"`
	StartCount      string      `json:"start_count,omitempty"`
	Remains         string      `json:"remains,omitempty"`
	Charge          string      `json:"charge,omitempty"`
	CreatedAt       *time.Time  `json:"created_at,omitempty"`
	UpdatedAt       *time.Time  `json:"updated_at,omitempty"`
	Payment         interface{} `json:"payment,omitempty"`
	Source          string      `json:"source"`
}

// OrderStatus reconciles the local order record with a live status poll
// against the upstream panel. Pre-submission orders (no provider id) are
// answered locally without an upstream round trip.
func (p *Panelku) OrderStatus(ctx context.Context, orderID string) (*MergedOrderStatus, error) {
	order, err := p.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order == nil {
		if !p.PanelConfigured() {
			return nil, apierror.NewAPIError(apierror.ErrNotFound,
				fmt.Sprintf("order %s not found", orderID), nil)
		}
		// Unknown locally; ask upstream with the raw id.
		upstream, err := p.fetchPanelStatus(ctx, orderID)
		if err != nil {
			return nil, err
		}
		return &MergedOrderStatus{
			OrderID:     orderID,
			Status:      upstream.Status,
			PanelStatus: upstream.Status,
			StartCount:  upstream.StartCount.String(),
			Remains:     upstream.Remains.String(),
			Charge:      upstream.Charge.String(),
			Source:      "panel",
		}, nil
	}

	merged := &MergedOrderStatus{
		OrderID:         order.OrderID,
		ProviderOrderID: order.ProviderOrderID,
		Status:          string(order.Status),
		Target:          order.Target,
		ServiceName:     order.ServiceName,
		Quantity:        order.Quantity,
		CreatedAt:       &order.CreatedAt,
		UpdatedAt:       &order.UpdatedAt,
		Payment:         order.Payment,
		Source:          "local",
	}

	// Local status is authoritative until the order reaches the panel.
	if order.ProviderOrderID == "" {
		return merged, nil
	}

	upstream, err := p.fetchPanelStatus(ctx, order.ProviderOrderID)
	if err != nil {
		return nil, err
	}
	merged.PanelStatus = upstream.Status
	merged.StartCount = upstream.StartCount.String()
	merged.Remains = upstream.Remains.String()
	merged.Charge = upstream.Charge.String()
	merged.Source = "merged"
	return merged, nil
}
