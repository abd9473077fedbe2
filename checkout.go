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
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/panelku/panelku/internal/apierror"
	"github.com/panelku/panelku/model"
)

const (
	defaultCurrency = "IDR"

	// MaxProofSize caps uploaded proof images at 5MB.
	MaxProofSize = 5 << 20

	reviewWindow = 24 * time.Hour
)

// CheckoutInput is the validated storefront checkout payload.
type CheckoutInput struct {
	ServiceID string
	Target    string
	Quantity  int64
	Customer  model.Customer
}

// PaymentMethodInput selects how the customer intends to pay.
type PaymentMethodInput struct {
	OrderID       string
	Method        string
	Amount        float64
	ProofChannel  string
	FallbackEmail string
}

// Checkout validates the input, prices the order against the catalog when
// possible and persists a fresh pending_payment order with its payment
// window.
func (p *Panelku) Checkout(ctx context.Context, in CheckoutInput) (*model.Order, error) {
	if strings.TrimSpace(in.ServiceID) == "" {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "service_id is required", nil)
	}
	if strings.TrimSpace(in.Target) == "" {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "target is required", nil)
	}
	if in.Quantity <= 0 {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "quantity must be a positive number", nil)
	}

	now := time.Now().UTC()
	window := time.Duration(p.config.Checkout.PaymentWindowMinutes) * time.Minute
	expiresAt := now.Add(window)

	order := &model.Order{
		OrderID:   model.GenerateOrderID(),
		ServiceID: in.ServiceID,
		Quantity:  in.Quantity,
		Target:    in.Target,
		Customer:  in.Customer,
		Status:    model.StatusPendingPayment,
		Payment: model.Payment{
			ProofStatus: model.ProofMissing,
			ExpiresAt:   &expiresAt,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if svc := p.findService(ctx, in.ServiceID); svc != nil {
		order.ServiceName = svc.Name
		order.Platform = svc.Platform
		order.Category = svc.Category
		order.Price = model.Price{
			Unit:     svc.RatePer1k,
			Total:    svc.RatePer1k * float64(in.Quantity) / 1000,
			Currency: defaultCurrency,
		}
	}

	order.StampEvent("created", now)
	if err := p.SaveOrder(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// ApplyPaymentMethod records the chosen payment method, opens the 24h review
// window and advances the order to waiting_review. Terminal orders conflict.
func (p *Panelku) ApplyPaymentMethod(ctx context.Context, in PaymentMethodInput) (*model.Order, error) {
	order, err := p.loadOrder(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("order %s not found", in.OrderID), nil)
	}
	if order.Status.IsTerminal() {
		return nil, apierror.NewAPIError(apierror.ErrConflict, "order already inactive", string(order.Status))
	}
	if in.Method == "" && order.Payment.Method == "" {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "payment method is required", nil)
	}

	now := time.Now().UTC()
	if in.Method != "" {
		order.Payment.Method = in.Method
	}
	if in.Amount > 0 {
		order.Payment.Amount = in.Amount
	}
	if in.ProofChannel != "" {
		order.Payment.ProofChannel = in.ProofChannel
	}
	if in.FallbackEmail != "" {
		order.Payment.FallbackEmail = in.FallbackEmail
	}
	order.Payment.ReportedAt = &now

	switch {
	case order.Payment.ProofURL != "":
		order.Payment.ProofStatus = model.ProofUploaded
	case order.Payment.ProofChannel == "email":
		order.Payment.ProofStatus = model.ProofAwaitingEmail
	default:
		order.Payment.ProofStatus = model.ProofPendingUpload
	}

	deadline := now.Add(reviewWindow)
	order.ReviewDeadline = &deadline

	if order.Status != model.StatusWaitingReview {
		if !model.CanTransition(order.Status, model.StatusWaitingReview) {
			return nil, apierror.NewAPIError(apierror.ErrConflict, "order already inactive", string(order.Status))
		}
		order.Status = model.StatusWaitingReview
	}
	order.StampEvent("payment_method_selected", now)

	p.createGatewayInvoice(ctx, order)

	order.Touch(now)
	if err := p.SaveOrder(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// AttachPaymentProof stores the uploaded proof image on disk and advances
// the order to waiting_review.
func (p *Panelku) AttachPaymentProof(ctx context.Context, orderID, fileName string, data []byte) (*model.Order, error) {
	order, err := p.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("order %s not found", orderID), nil)
	}
	if order.Status.IsTerminal() {
		return nil, apierror.NewAPIError(apierror.ErrConflict, "order already inactive", string(order.Status))
	}
	if len(data) == 0 {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "proof file is required", nil)
	}
	if len(data) > MaxProofSize {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "proof file exceeds 5MB", nil)
	}

	storedName, err := p.storeProofFile(fileName, data)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "storing proof failed", err.Error())
	}

	now := time.Now().UTC()
	order.Payment.ProofURL = "/uploads/" + storedName
	order.Payment.ProofStatus = model.ProofUploaded
	order.Payment.UploadedAt = &now
	if order.ReviewDeadline == nil {
		deadline := now.Add(reviewWindow)
		order.ReviewDeadline = &deadline
	}

	if order.Status != model.StatusWaitingReview {
		if !model.CanTransition(order.Status, model.StatusWaitingReview) {
			return nil, apierror.NewAPIError(apierror.ErrConflict, "order already inactive", string(order.Status))
		}
		order.Status = model.StatusWaitingReview
	}
	order.StampEvent("proof_uploaded", now)

	order.Touch(now)
	if err := p.SaveOrder(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// storeProofFile writes the proof under the uploads dir with a generated
// name, preserving the original extension.
func (p *Panelku) storeProofFile(originalName string, data []byte) (string, error) {
	if err := os.MkdirAll(p.config.Upload.Dir, 0o755); err != nil {
		return "", err
	}
	ext := filepath.Ext(originalName)
	if ext == "" {
		ext = ".bin"
	}
	name := fmt.Sprintf("proof-%s%s", uuid.New().String(), ext)
	if err := os.WriteFile(filepath.Join(p.config.Upload.Dir, name), data, 0o644); err != nil {
		return "", err
	}
	return name, nil
}

// createGatewayInvoice asks the payment gateway for an invoice when the
// chosen method routes through it. Gateway trouble is recorded on the order
// and logged, never blocking the payment-method transition.
func (p *Panelku) createGatewayInvoice(ctx context.Context, order *model.Order) {
	if p.config.Gateway.Url == "" || order.Payment.Method != "gateway" {
		return
	}
	if order.Payment.GatewayRef != "" {
		return
	}
	ref, err := p.requestGatewayInvoice(ctx, order)
	if err != nil {
		logrus.Warnf("gateway invoice for %s failed: %v", order.OrderID, err)
		order.Payment.Notes = fmt.Sprintf("gateway invoice failed: %v", err)
		return
	}
	order.Payment.GatewayRef = ref
	order.StampEvent("gateway_invoice_created", time.Now().UTC())
}
