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

package model

import (
	"fmt"
	"math/rand"
	"strconv"
	"time"
)

// Status is the order lifecycle state. Transitions only move forward along
// the graph encoded in allowedTransitions; terminal states accept nothing.
type Status string

const (
	StatusPendingPayment      Status = "pending_payment"
	StatusWaitingPaymentProof Status = "waiting_payment_proof"
	StatusWaitingReview       Status = "waiting_review"
	StatusApproved            Status = "approved"
	StatusRejected            Status = "rejected"
	StatusCancelled           Status = "cancelled"
)

// ProofStatus tracks the payment-proof sub-state within an order.
type ProofStatus string

const (
	ProofMissing       ProofStatus = "missing"
	ProofPendingUpload ProofStatus = "pending_upload"
	ProofAwaitingEmail ProofStatus = "awaiting_email"
	ProofUploaded      ProofStatus = "uploaded"
)

// CancelReasonReviewTimeout marks orders auto-cancelled by the lazy deadline check.
const CancelReasonReviewTimeout = "review_timeout"

var allowedTransitions = map[Status][]Status{
	StatusPendingPayment:      {StatusWaitingPaymentProof, StatusWaitingReview},
	StatusWaitingPaymentProof: {StatusWaitingReview, StatusCancelled},
	StatusWaitingReview:       {StatusApproved, StatusRejected, StatusCancelled},
}

// IsTerminal reports whether s accepts no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusCancelled
}

// IsValid reports whether s is a known lifecycle state.
func (s Status) IsValid() bool {
	switch s {
	case StatusPendingPayment, StatusWaitingPaymentProof, StatusWaitingReview,
		StatusApproved, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Customer struct {
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

type Price struct {
	Unit     float64 `json:"unit"`
	Total    float64 `json:"total"`
	Currency string  `json:"currency"`
}

type Payment struct {
	Method        string      `json:"method,omitempty"`
	Amount        float64     `json:"amount,omitempty"`
	ProofURL      string      `json:"proof_url,omitempty"`
	ProofStatus   ProofStatus `json:"proof_status"`
	ProofChannel  string      `json:"proof_channel,omitempty"`
	FallbackEmail string      `json:"fallback_email,omitempty"`
	GatewayRef    string      `json:"gateway_ref,omitempty"`
	UploadedAt    *time.Time  `json:"uploaded_at,omitempty"`
	ReportedAt    *time.Time  `json:"reported_at,omitempty"`
	ExpiresAt     *time.Time  `json:"expires_at,omitempty"`
	Notes         string      `json:"notes,omitempty"`
}

// Order is the central entity of the storefront. OrderID is immutable and
// never reused; ProviderOrderID is set at most once, on panel acceptance.
type Order struct {
	OrderID         string            `json:"order_id"`
	ServiceID       string            `json:"service_id"`
	ServiceName     string            `json:"service_name,omitempty"`
	Platform        string            `json:"platform,omitempty"`
	Category        string            `json:"category,omitempty"`
	Quantity        int64             `json:"quantity"`
	Target          string            `json:"target"`
	Customer        Customer          `json:"customer,omitempty"`
	Status          Status            `json:"status"`
	Price           Price             `json:"price"`
	Payment         Payment           `json:"payment"`
	Timeline        map[string]string `json:"timeline,omitempty"`
	ReviewDeadline  *time.Time        `json:"review_deadline,omitempty"`
	ProviderOrderID string            `json:"provider_order_id,omitempty"`
	AutoCancelled   bool              `json:"auto_cancelled,omitempty"`
	CancelReason    string            `json:"cancel_reason,omitempty"`
	AdminNote       string            `json:"admin_note,omitempty"`
	HoldUntil       *time.Time        `json:"hold_until,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// GenerateOrderID builds a new order id from the millisecond timestamp in
// base36 plus a short random tail to keep same-millisecond ids unique.
func GenerateOrderID() string {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 36)
	tail := strconv.FormatInt(rand.Int63n(36*36*36*36), 36)
	return fmt.Sprintf("ORD-%s%04s", ts, tail)
}

// Clone returns a deep copy of the order. The timeline map and every
// time pointer are detached so the copy can be mutated freely.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	if o.Timeline != nil {
		clone.Timeline = make(map[string]string, len(o.Timeline))
		for k, v := range o.Timeline {
			clone.Timeline[k] = v
		}
	}
	clone.ReviewDeadline = copyTime(o.ReviewDeadline)
	clone.HoldUntil = copyTime(o.HoldUntil)
	clone.Payment.UploadedAt = copyTime(o.Payment.UploadedAt)
	clone.Payment.ReportedAt = copyTime(o.Payment.ReportedAt)
	clone.Payment.ExpiresAt = copyTime(o.Payment.ExpiresAt)
	return &clone
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// StampEvent appends a named event with the given time to the order timeline.
// The timeline is merge-only; existing events are never removed.
func (o *Order) StampEvent(name string, at time.Time) {
	if o.Timeline == nil {
		o.Timeline = map[string]string{}
	}
	o.Timeline[name] = at.UTC().Format(time.RFC3339)
}

// Touch refreshes the update timestamp.
func (o *Order) Touch(now time.Time) {
	o.UpdatedAt = now.UTC()
}

// Score is the sort key used to order entries across storage backends:
// the best available timestamp, in unix milliseconds.
func (o *Order) Score() int64 {
	if !o.UpdatedAt.IsZero() {
		return o.UpdatedAt.UnixMilli()
	}
	if !o.CreatedAt.IsZero() {
		return o.CreatedAt.UnixMilli()
	}
	return 0
}

// ReviewExpired reports whether the lazy deadline check should force-cancel
// the order: a pre-terminal reviewable status whose deadline has passed.
func (o *Order) ReviewExpired(now time.Time) bool {
	if o.Status != StatusWaitingReview && o.Status != StatusWaitingPaymentProof {
		return false
	}
	return o.ReviewDeadline != nil && o.ReviewDeadline.Before(now)
}
