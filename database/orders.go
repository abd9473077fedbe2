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

package database

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/panelku/panelku/model"
)

// UpsertOrder writes the order payload, keyed by order_id.
func (d *Datasource) UpsertOrder(ctx context.Context, order *model.Order) error {
	payload, err := json.Marshal(order)
	if err != nil {
		return err
	}
	_, err = d.Conn.ExecContext(ctx, `
		INSERT INTO admin_orders (order_id, payload, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(order_id) DO UPDATE SET
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`, order.OrderID, string(payload), order.CreatedAt, order.UpdatedAt)
	return err
}

// GetOrder fetches one order by id. Returns (nil, nil) when absent.
func (d *Datasource) GetOrder(ctx context.Context, orderID string) (*model.Order, error) {
	row := d.Conn.QueryRowContext(ctx,
		`SELECT payload FROM admin_orders WHERE order_id = ?`, orderID)

	var payload string
	if err := row.Scan(&payload); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	var order model.Order
	if err := json.Unmarshal([]byte(payload), &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// AllOrders returns every stored order, newest first.
func (d *Datasource) AllOrders(ctx context.Context) ([]*model.Order, error) {
	rows, err := d.Conn.QueryContext(ctx,
		`SELECT payload FROM admin_orders ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var orders []*model.Order
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var order model.Order
		if err := json.Unmarshal([]byte(payload), &order); err != nil {
			return nil, err
		}
		orders = append(orders, &order)
	}
	return orders, rows.Err()
}

// TrimOrders deletes the oldest rows beyond limit, keeping the table capped.
func (d *Datasource) TrimOrders(ctx context.Context, limit int) error {
	_, err := d.Conn.ExecContext(ctx, `
		DELETE FROM admin_orders WHERE order_id NOT IN (
			SELECT order_id FROM admin_orders ORDER BY updated_at DESC LIMIT ?
		)
	`, limit)
	return err
}
