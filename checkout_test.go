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
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panelku/panelku/config"
	"github.com/panelku/panelku/internal/apierror"
	"github.com/panelku/panelku/model"
)

// newCheckoutService builds a memory-only service with catalog file paths
// pointed into a temp dir so no real panel or filesystem state leaks in.
func newCheckoutService(t *testing.T) *Panelku {
	t.Helper()
	dir := t.TempDir()
	cnf := &config.Configuration{
		Catalog: config.CatalogConfig{
			SnapshotFile: filepath.Join(dir, "snapshot.json"),
			ManualFile:   filepath.Join(dir, "manual.json"),
		},
		Upload: config.UploadConfig{Dir: filepath.Join(dir, "uploads")},
	}
	config.MockConfig(cnf)
	return NewWithStores(cnf, nil, nil)
}

func seedCatalog(p *Panelku) {
	p.catalog = &model.CatalogSnapshot{
		List: []model.Service{
			{
				ProviderServiceID: "101",
				Name:              "Instagram Followers [Real]",
				Category:          "Instagram",
				Platform:          "Instagram",
				Action:            "Followers",
				Min:               100,
				Max:               10000,
				RatePer1k:         15000,
			},
		},
		Meta: model.CatalogMeta{Source: "panel", CachedAt: time.Now().UTC()},
	}
}

func assertErrorCode(t *testing.T, err error, code apierror.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	require.True(t, ok, "expected APIError, got %T: %v", err, err)
	assert.Equal(t, code, apiErr.Code)
}

func TestCheckoutCreatesPendingOrder(t *testing.T) {
	ctx := context.Background()
	p := newCheckoutService(t)
	seedCatalog(p)

	order, err := p.Checkout(ctx, CheckoutInput{
		ServiceID: "101",
		Target:    "https://instagram.com/someone",
		Quantity:  1000,
		Customer:  model.Customer{Name: "Budi", Phone: "0812000"},
	})
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^ORD-[0-9a-z]+$`), order.OrderID)
	assert.Equal(t, model.StatusPendingPayment, order.Status)
	assert.Equal(t, "Instagram Followers [Real]", order.ServiceName)
	assert.Equal(t, "Instagram", order.Platform)
	assert.Equal(t, 15000.0, order.Price.Unit)
	assert.Equal(t, 15000.0, order.Price.Total)
	assert.Equal(t, "IDR", order.Price.Currency)
	assert.Equal(t, model.ProofMissing, order.Payment.ProofStatus)
	assert.Contains(t, order.Timeline, "created")

	require.NotNil(t, order.Payment.ExpiresAt)
	window := time.Duration(p.config.Checkout.PaymentWindowMinutes) * time.Minute
	assert.WithinDuration(t, order.CreatedAt.Add(window), *order.Payment.ExpiresAt, time.Second)

	stored, err := p.GetOrder(ctx, order.OrderID)
	require.NoError(t, err)
	require.NotNil(t, stored)
}

func TestCheckoutWithoutCatalogStillWorks(t *testing.T) {
	ctx := context.Background()
	p := newCheckoutService(t)

	order, err := p.Checkout(ctx, CheckoutInput{
		ServiceID: "999",
		Target:    "https://tiktok.com/@someone",
		Quantity:  500,
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusPendingPayment, order.Status)
	assert.Empty(t, order.ServiceName)
	assert.Zero(t, order.Price.Total)
}

func TestCheckoutValidation(t *testing.T) {
	ctx := context.Background()
	p := newCheckoutService(t)

	cases := []CheckoutInput{
		{ServiceID: "", Target: "https://x.com/a", Quantity: 100},
		{ServiceID: "101", Target: "", Quantity: 100},
		{ServiceID: "101", Target: "https://x.com/a", Quantity: 0},
		{ServiceID: "101", Target: "https://x.com/a", Quantity: -5},
	}
	for _, in := range cases {
		_, err := p.Checkout(ctx, in)
		assertErrorCode(t, err, apierror.ErrInvalidInput)
	}

	orders, err := p.ListOrders(ctx)
	require.NoError(t, err)
	assert.Empty(t, orders, "rejected checkouts must not persist anything")
}

func TestApplyPaymentMethodAdvancesToReview(t *testing.T) {
	ctx := context.Background()
	p := newCheckoutService(t)

	order, err := p.Checkout(ctx, CheckoutInput{ServiceID: "101", Target: "https://x.com/a", Quantity: 100})
	require.NoError(t, err)

	updated, err := p.ApplyPaymentMethod(ctx, PaymentMethodInput{
		OrderID: order.OrderID,
		Method:  "transfer",
		Amount:  15000,
	})
	require.NoError(t, err)

	assert.Equal(t, model.StatusWaitingReview, updated.Status)
	assert.Equal(t, "transfer", updated.Payment.Method)
	assert.Equal(t, model.ProofPendingUpload, updated.Payment.ProofStatus)
	assert.Contains(t, updated.Timeline, "payment_method_selected")

	require.NotNil(t, updated.ReviewDeadline)
	assert.WithinDuration(t, time.Now().Add(reviewWindow), *updated.ReviewDeadline, 5*time.Second)
}

func TestApplyPaymentMethodEmailChannel(t *testing.T) {
	ctx := context.Background()
	p := newCheckoutService(t)

	order, err := p.Checkout(ctx, CheckoutInput{ServiceID: "101", Target: "https://x.com/a", Quantity: 100})
	require.NoError(t, err)

	updated, err := p.ApplyPaymentMethod(ctx, PaymentMethodInput{
		OrderID:       order.OrderID,
		Method:        "transfer",
		ProofChannel:  "email",
		FallbackEmail: "proof@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, model.ProofAwaitingEmail, updated.Payment.ProofStatus)
	assert.Equal(t, "proof@example.com", updated.Payment.FallbackEmail)
}

func TestApplyPaymentMethodMissingOrder(t *testing.T) {
	p := newCheckoutService(t)
	_, err := p.ApplyPaymentMethod(context.Background(), PaymentMethodInput{OrderID: "ORD-nope", Method: "transfer"})
	assertErrorCode(t, err, apierror.ErrNotFound)
}

func TestApplyPaymentMethodTerminalConflict(t *testing.T) {
	ctx := context.Background()
	p := newCheckoutService(t)

	order := testOrder("ORD-done", model.StatusApproved)
	require.NoError(t, p.SaveOrder(ctx, order))

	_, err := p.ApplyPaymentMethod(ctx, PaymentMethodInput{OrderID: "ORD-done", Method: "transfer"})
	assertErrorCode(t, err, apierror.ErrConflict)

	// the stored order is untouched
	stored, err := p.GetOrder(ctx, "ORD-done")
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, stored.Status)
	assert.Empty(t, stored.Payment.Method)
}

func TestAttachPaymentProof(t *testing.T) {
	ctx := context.Background()
	p := newCheckoutService(t)

	order, err := p.Checkout(ctx, CheckoutInput{ServiceID: "101", Target: "https://x.com/a", Quantity: 100})
	require.NoError(t, err)

	updated, err := p.AttachPaymentProof(ctx, order.OrderID, "bukti.jpg", []byte("fake image bytes"))
	require.NoError(t, err)

	assert.Equal(t, model.StatusWaitingReview, updated.Status)
	assert.Equal(t, model.ProofUploaded, updated.Payment.ProofStatus)
	assert.Contains(t, updated.Timeline, "proof_uploaded")
	assert.Regexp(t, `^/uploads/proof-.+\.jpg$`, updated.Payment.ProofURL)
	require.NotNil(t, updated.ReviewDeadline)

	// the file actually landed on disk
	name := filepath.Base(updated.Payment.ProofURL)
	data, err := os.ReadFile(filepath.Join(p.config.Upload.Dir, name))
	require.NoError(t, err)
	assert.Equal(t, []byte("fake image bytes"), data)
}

func TestAttachPaymentProofValidation(t *testing.T) {
	ctx := context.Background()
	p := newCheckoutService(t)

	order, err := p.Checkout(ctx, CheckoutInput{ServiceID: "101", Target: "https://x.com/a", Quantity: 100})
	require.NoError(t, err)

	_, err = p.AttachPaymentProof(ctx, order.OrderID, "bukti.jpg", nil)
	assertErrorCode(t, err, apierror.ErrInvalidInput)

	huge := make([]byte, MaxProofSize+1)
	_, err = p.AttachPaymentProof(ctx, order.OrderID, "bukti.jpg", huge)
	assertErrorCode(t, err, apierror.ErrInvalidInput)

	_, err = p.AttachPaymentProof(ctx, "ORD-nope", "bukti.jpg", []byte("x"))
	assertErrorCode(t, err, apierror.ErrNotFound)
}
