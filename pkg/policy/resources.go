/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package policy

import (
	"fmt"

	"k8s.io/apimachinery/pkg/api/resource"
)

// ParseCPUCores parses a CPU quantity ("2", "500m") to fractional cores.
func ParseCPUCores(value string) (float64, error) {
	q, err := resource.ParseQuantity(value)
	if err != nil {
		return 0, err
	}
	if q.Sign() < 0 {
		return 0, fmt.Errorf("cpu quantity must not be negative")
	}
	return float64(q.MilliValue()) / 1000.0, nil
}

// ParseMemoryBytes parses a memory quantity ("512Mi", "1Gi", raw bytes) to
// bytes.
func ParseMemoryBytes(value string) (int64, error) {
	q, err := resource.ParseQuantity(value)
	if err != nil {
		return 0, err
	}
	if q.Sign() < 0 {
		return 0, fmt.Errorf("memory quantity must not be negative")
	}
	return q.Value(), nil
}
