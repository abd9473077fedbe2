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
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/panelku/panelku"
	"github.com/panelku/panelku/model"
)

// FlexibleInt64 accepts both JSON numbers and numeric strings; storefront
// clients send quantity either way.
type FlexibleInt64 int64

func (q *FlexibleInt64) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*q = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != f || f > float64(1<<53) || f < -float64(1<<53) {
		return fmt.Errorf("quantity must be a finite number")
	}
	if f != math.Trunc(f) {
		return fmt.Errorf("quantity must be a whole number")
	}
	*q = FlexibleInt64(int64(f))
	return nil
}

type CheckoutCustomer struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

type CheckoutRequest struct {
	ServiceID string           `json:"service_id"`
	Target    string           `json:"target"`
	Link      string           `json:"link"`
	Quantity  FlexibleInt64    `json:"quantity"`
	Customer  CheckoutCustomer `json:"customer"`
}

func (r *CheckoutRequest) ValidateCheckout() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ServiceID, validation.Required),
		validation.Field(&r.Target, validation.By(func(interface{}) error {
			if strings.TrimSpace(r.Target) == "" && strings.TrimSpace(r.Link) == "" {
				return errors.New("target or link is required")
			}
			return nil
		})),
		validation.Field(&r.Quantity, validation.Required, validation.Min(FlexibleInt64(1))),
	)
}

func (r *CheckoutRequest) ToCheckoutInput() panelku.CheckoutInput {
	target := strings.TrimSpace(r.Target)
	if target == "" {
		target = strings.TrimSpace(r.Link)
	}
	return panelku.CheckoutInput{
		ServiceID: strings.TrimSpace(r.ServiceID),
		Target:    target,
		Quantity:  int64(r.Quantity),
		Customer: model.Customer{
			Name:  r.Customer.Name,
			Phone: r.Customer.Phone,
			Email: r.Customer.Email,
		},
	}
}

type PaymentMethodRequest struct {
	OrderID       string  `json:"order_id"`
	Method        string  `json:"method"`
	Amount        float64 `json:"amount"`
	ProofChannel  string  `json:"proof_channel"`
	FallbackEmail string  `json:"fallback_email"`
}

func (r *PaymentMethodRequest) ValidatePaymentMethod() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.OrderID, validation.Required),
	)
}

func (r *PaymentMethodRequest) ToPaymentMethodInput() panelku.PaymentMethodInput {
	return panelku.PaymentMethodInput{
		OrderID:       r.OrderID,
		Method:        r.Method,
		Amount:        r.Amount,
		ProofChannel:  r.ProofChannel,
		FallbackEmail: r.FallbackEmail,
	}
}

type AdminStatusRequest struct {
	Status    string `json:"status"`
	AdminNote string `json:"admin_note"`
}

func (r *AdminStatusRequest) ValidateAdminStatus() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Status, validation.Required, validation.In(
			string(model.StatusApproved),
			string(model.StatusRejected),
			string(model.StatusCancelled),
		)),
	)
}
