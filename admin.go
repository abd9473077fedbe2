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
	"github.com/panelku/panelku/model"
)

// AdminListOrders returns every order, each passed through the lazy
// deadline check.
func (p *Panelku) AdminListOrders(ctx context.Context) ([]*model.Order, error) {
	return p.loadAllOrders(ctx)
}

// AdminReviewOrder applies an administrator transition. Approval forwards
// the order to the upstream panel first; if the panel rejects it the order
// is left untouched and the upstream detail is surfaced. The
// provider_order_id guard makes repeated approvals idempotent: an order
// already submitted upstream is never forwarded again.
func (p *Panelku) AdminReviewOrder(ctx context.Context, orderID string, target model.Status, adminNote string) (*model.Order, error) {
	if !target.IsTerminal() {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput,
			fmt.Sprintf("status must be one of approved, rejected, cancelled; got %q", target), nil)
	}

	order, err := p.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("order %s not found", orderID), nil)
	}
	if order.Status.IsTerminal() && order.Status != target {
		return nil, apierror.NewAPIError(apierror.ErrConflict, "order already inactive", string(order.Status))
	}
	if order.Status != target && !model.CanTransition(order.Status, target) {
		return nil, apierror.NewAPIError(apierror.ErrConflict,
			fmt.Sprintf("cannot move order from %s to %s", order.Status, target), nil)
	}

	if target == model.StatusApproved && order.ProviderOrderID == "" {
		providerID, err := p.pushOrderToPanel(ctx, order)
		if err != nil {
			return nil, err
		}
		order.ProviderOrderID = providerID
	}

	now := time.Now().UTC()
	order.Status = target
	order.ReviewDeadline = nil
	if adminNote != "" {
		order.AdminNote = adminNote
	}
	order.StampEvent(string(target), now)
	order.Touch(now)

	if err := p.SaveOrder(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}
