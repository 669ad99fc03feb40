// Copyright 2023 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dashboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/united-manufacturing-hub/efficiency-insight/pkg/datamodel"
	"go.uber.org/zap"
)

// OrderDetailProvider returns the order context and all appointments of an order
type OrderDetailProvider interface {
	GetOperatingOrderIDs(ctx context.Context) ([]string, error)
	GetOrderDetail(ctx context.Context, orderID string) (datamodel.OrderDetail, error)
}

// DowntimeProvider returns the downtime intervals recorded for an order
type DowntimeProvider interface {
	GetDowntimes(ctx context.Context, orderID string) ([]datamodel.DowntimeInterval, error)
}

// FleetProvider returns cross order aggregates that cannot be derived from single orders
type FleetProvider interface {
	GetFleetAggregates(ctx context.Context) (datamodel.FleetAggregates, error)
}

// Providers bundles the data sources of a refresh cycle
type Providers struct {
	Orders    OrderDetailProvider
	Downtimes DowntimeProvider
	Fleet     FleetProvider
}

// Snapshot is everything fetched during one refresh cycle
type Snapshot struct {
	FetchedAt time.Time                 `json:"fetchedAt"`
	Orders    []datamodel.OrderSnapshot `json:"orders"`
	Fleet     datamodel.FleetAggregates `json:"fleet"`
}

// Fetch loads a complete snapshot.
// Orders that disappear between listing and loading are skipped, every other error aborts the fetch.
func Fetch(ctx context.Context, providers Providers) (snapshot Snapshot, err error) {
	snapshot.FetchedAt = time.Now().UTC()

	orderIDs, err := providers.Orders.GetOperatingOrderIDs(ctx)
	if err != nil {
		return snapshot, fmt.Errorf("listing operating orders: %w", err)
	}

	snapshot.Orders = make([]datamodel.OrderSnapshot, 0, len(orderIDs))
	for _, orderID := range orderIDs {
		var order datamodel.OrderSnapshot

		order.Detail, err = providers.Orders.GetOrderDetail(ctx, orderID)
		if errors.Is(err, datamodel.ErrOrderNotFound) {
			zap.S().Debugw("Order vanished during fetch", "orderId", orderID)
			continue
		}
		if err != nil {
			return snapshot, fmt.Errorf("loading order %s: %w", orderID, err)
		}

		order.Downtimes, err = providers.Downtimes.GetDowntimes(ctx, orderID)
		if err != nil {
			return snapshot, fmt.Errorf("loading downtimes of order %s: %w", orderID, err)
		}

		snapshot.Orders = append(snapshot.Orders, order)
	}

	snapshot.Fleet, err = providers.Fleet.GetFleetAggregates(ctx)
	if err != nil {
		return snapshot, fmt.Errorf("loading fleet aggregates: %w", err)
	}

	return snapshot, nil
}
