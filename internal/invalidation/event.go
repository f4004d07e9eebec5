// Package invalidation describes change events for detections and clusters
// edited outside this service.
package invalidation

import (
	"errors"
	"fmt"
	"time"

	"github.com/mohammed-shakir/streetview-viewport/internal/core/model"
)

type Event struct {
	Version  int            `json:"version"`
	Op       string         `json:"op"`
	DataType model.DataType `json:"data_type"`
	IDs      []int64        `json:"ids"`
	TS       time.Time      `json:"ts"`
	Source   string         `json:"source,omitempty"`
}

func (e Event) Validate() error {
	if e.Version != 1 {
		return errors.New("version must be 1")
	}
	switch e.Op {
	case "update", "delete":
	default:
		return errors.New("op must be update|delete")
	}
	switch e.DataType {
	case model.DataTypeDetection, model.DataTypeCluster:
	default:
		return fmt.Errorf("data_type must be DETECTION or CLUSTER, got %q", e.DataType)
	}
	if len(e.IDs) == 0 {
		return errors.New("ids are required")
	}
	for _, id := range e.IDs {
		if id <= 0 {
			return fmt.Errorf("invalid id %d", id)
		}
	}
	if e.TS.IsZero() {
		return errors.New("ts is required")
	}
	return nil
}
