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

package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/united-manufacturing-hub/efficiency-insight/internal"
	"github.com/united-manufacturing-hub/efficiency-insight/internal/helper"
	"github.com/united-manufacturing-hub/efficiency-insight/pkg/datamodel"
	"go.uber.org/zap"
)

// work_order.status codes
var statusCodes = map[datamodel.OrderStatus]int{
	datamodel.OrderScheduled: 0,
	datamodel.OrderActive:    1,
	datamodel.OrderFinished:  2,
	datamodel.OrderPaused:    3,
	datamodel.OrderCancelled: 4,
}

func operatingStatusCodes() []int {
	codes := make([]int, 0, len(datamodel.OperatingStatuses))
	for _, status := range datamodel.OperatingStatuses {
		codes = append(codes, statusCodes[status])
	}
	return codes
}

const (
	queryOperatingOrderIDs = `SELECT external_work_order_id FROM work_order WHERE status = ANY($1) ORDER BY work_order_id`

	queryWorkOrder = `SELECT wo.work_order_id, wo.asset_id, wo.product_type_id, wo.quantity, wo.rejected_quantity, wo.status, wo.start_time, wo.end_time, a.time_divisor
	FROM work_order wo JOIN asset a ON a.id = wo.asset_id
	WHERE wo.external_work_order_id = $1`

	queryCycleTime = `SELECT cycle_time_ms FROM product_type WHERE product_type_id = $1`

	queryAppointments = `SELECT id, timestamp, is_automatic, time_value, piece_count, rejected
	FROM appointment WHERE work_order_id = $1 ORDER BY timestamp`
)

// GetOperatingOrderIDs returns the external ids of all scheduled, active and paused orders
func (c *Connection) GetOperatingOrderIDs(ctx context.Context) ([]string, error) {
	queryCtx, cancel := context.WithTimeout(ctx, internal.OneMinute)
	defer cancel()

	rows, err := c.db.Query(queryCtx, queryOperatingOrderIDs, operatingStatusCodes())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err = rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetOrderDetail loads the context and all appointments of an order
func (c *Connection) GetOrderDetail(ctx context.Context, orderID string) (detail datamodel.OrderDetail, err error) {
	queryCtx, cancel := context.WithTimeout(ctx, internal.OneMinute)
	defer cancel()

	var (
		workOrderID   int
		assetID       int
		productTypeID int
		quantity      int
		rejected      sql.NullInt64
		status        int
		startTime     sql.NullTime
		endTime       sql.NullTime
		timeDivisor   sql.NullInt64
	)
	err = c.db.QueryRow(queryCtx, queryWorkOrder, orderID).Scan(
		&workOrderID, &assetID, &productTypeID, &quantity, &rejected, &status, &startTime, &endTime, &timeDivisor)
	if errors.Is(err, pgx.ErrNoRows) {
		return detail, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	if err != nil {
		return detail, err
	}

	detail.Context = datamodel.OrderContext{
		OrderID:               orderID,
		AssetID:               strconv.Itoa(assetID),
		PlannedQuantity:       quantity,
		RejectedQuantityTotal: helper.NullInt64ToInt(rejected),
		StartTime:             helper.NullTimeToPtr(startTime),
		EndTime:               helper.NullTimeToPtr(endTime),
		TimeDivisor:           helper.NullInt64ToInt(timeDivisor),
	}
	detail.Context.Status, err = datamodel.ParseOrderStatus(strconv.Itoa(status))
	if err != nil {
		return detail, err
	}

	detail.Context.IdealCycleTimeSeconds, err = c.idealCycleTime(queryCtx, productTypeID)
	if err != nil {
		return detail, err
	}

	detail.Appointments, err = c.appointments(queryCtx, workOrderID)
	return detail, err
}

// idealCycleTime returns the product cycle time in seconds, 0 if it is unknown
func (c *Connection) idealCycleTime(ctx context.Context, productTypeID int) (float64, error) {
	if value, ok := c.cycleTimeCache.Get(productTypeID); ok {
		c.lruHits.Add(1)
		return value.(float64), nil
	}
	c.lruMisses.Add(1)

	var cycleTimeMs sql.NullInt64
	err := c.db.QueryRow(ctx, queryCycleTime, productTypeID).Scan(&cycleTimeMs)
	if errors.Is(err, pgx.ErrNoRows) {
		zap.S().Debugw("Unknown product type", "productTypeId", productTypeID)
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	seconds := float64(helper.NullInt64ToInt(cycleTimeMs)) / float64(time.Second/time.Millisecond)
	c.cycleTimeCache.Add(productTypeID, seconds)
	return seconds, nil
}

func (c *Connection) appointments(ctx context.Context, workOrderID int) ([]datamodel.Appointment, error) {
	rows, err := c.db.Query(ctx, queryAppointments, workOrderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	appointments := make([]datamodel.Appointment, 0)
	for rows.Next() {
		var (
			id          int64
			timestamp   time.Time
			isAutomatic bool
			timeValue   float64
			pieceCount  int
			rejected    sql.NullInt64
		)
		if err = rows.Scan(&id, &timestamp, &isAutomatic, &timeValue, &pieceCount, &rejected); err != nil {
			return nil, err
		}
		appointments = append(appointments, datamodel.Appointment{
			ID:                 strconv.FormatInt(id, 10),
			TimestampUtc:       timestamp.UTC(),
			IsAutomatic:        isAutomatic,
			TimeValue:          timeValue,
			PieceCount:         pieceCount,
			RejectedInInterval: helper.NullInt64ToInt(rejected),
		})
	}
	return appointments, rows.Err()
}
