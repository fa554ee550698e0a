// Package httpapi exposes the companion-side sync API consumed by the
// agent's primary transport driver. The wire shapes here are a contract:
// downstream consumers pull from the same endpoints.
package httpapi

import "github.com/dmitrijs2005/wearsync/internal/server/models"

type healthResponse struct {
	Status     string `json:"status"`
	ServerTime int64  `json:"serverTime"`
	Version    string `json:"version"`
}

type submitRequest struct {
	DeviceID          string          `json:"deviceId"`
	Data              []models.Record `json:"data"`
	LastSyncTimestamp int64           `json:"lastSyncTimestamp"`
}

type syncResponse struct {
	Success           bool            `json:"success"`
	Message           string          `json:"message"`
	LastSyncTimestamp int64           `json:"lastSyncTimestamp"`
	SyncedCount       int             `json:"syncedCount"`
	Data              []models.Record `json:"data,omitempty"`
}
