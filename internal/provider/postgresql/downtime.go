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
	"strconv"
	"time"

	"github.com/united-manufacturing-hub/efficiency-insight/internal"
	"github.com/united-manufacturing-hub/efficiency-insight/internal/helper"
	"github.com/united-manufacturing-hub/efficiency-insight/pkg/datamodel"
	"go.uber.org/zap"
)

const (
	queryDowntimes = `SELECT d.id, d.category, d.start_time, d.end_time, d.duration_seconds
	FROM downtime d JOIN work_order wo ON wo.work_order_id = d.work_order_id
	WHERE wo.external_work_order_id = $1 ORDER BY d.start_time`

	queryDefects = `SELECT df.defect_type, SUM(df.quantity)
	FROM defect df JOIN work_order wo ON wo.work_order_id = df.work_order_id
	WHERE wo.status = ANY($1) GROUP BY df.defect_type`

	queryActiveMachines = `SELECT COUNT(DISTINCT asset_id) FROM work_order WHERE status = $1`
)

// GetDowntimes returns all downtime intervals of an order, open ones included
func (c *Connection) GetDowntimes(ctx context.Context, orderID string) ([]datamodel.DowntimeInterval, error) {
	queryCtx, cancel := context.WithTimeout(ctx, internal.OneMinute)
	defer cancel()

	rows, err := c.db.Query(queryCtx, queryDowntimes, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	downtimes := make([]datamodel.DowntimeInterval, 0)
	for rows.Next() {
		var (
			id        int64
			category  string
			startTime time.Time
			endTime   sql.NullTime
			duration  sql.NullFloat64
		)
		if err = rows.Scan(&id, &category, &startTime, &endTime, &duration); err != nil {
			return nil, err
		}

		parsed, parseErr := datamodel.ParseDowntimeCategory(category)
		if parseErr != nil {
			// classified as unproductive downstream
			zap.S().Debugw("Unknown downtime category", "orderId", orderID, "downtimeId", id, "category", category)
			parsed = datamodel.DowntimeCategory(category)
		}

		downtimes = append(downtimes, datamodel.DowntimeInterval{
			ID:              strconv.FormatInt(id, 10),
			Category:        parsed,
			StartUtc:        startTime.UTC(),
			EndUtc:          helper.NullTimeToPtr(endTime),
			DurationSeconds: helper.NullFloat64ToPtr(duration),
		})
	}
	return downtimes, rows.Err()
}

// GetFleetAggregates returns defect tallies of operating orders and the number of machines running an order
func (c *Connection) GetFleetAggregates(ctx context.Context) (aggregates datamodel.FleetAggregates, err error) {
	queryCtx, cancel := context.WithTimeout(ctx, internal.OneMinute)
	defer cancel()

	rows, err := c.db.Query(queryCtx, queryDefects, operatingStatusCodes())
	if err != nil {
		return aggregates, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			defectType string
			quantity   int64
		)
		if err = rows.Scan(&defectType, &quantity); err != nil {
			return aggregates, err
		}
		aggregates.Defects = append(aggregates.Defects, datamodel.DefectTally{DefectType: defectType, Quantity: int(quantity)})
	}
	if err = rows.Err(); err != nil {
		return aggregates, err
	}

	var machines int64
	err = c.db.QueryRow(queryCtx, queryActiveMachines, statusCodes[datamodel.OrderActive]).Scan(&machines)
	if err != nil {
		return aggregates, err
	}
	aggregates.ActiveMachines = int(machines)

	return aggregates, nil
}
