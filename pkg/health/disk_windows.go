// Copyright 2025 The axfor Authors
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

//go:build windows

package health

import (
	"fmt"

	"golang.org/x/sys/windows"
)

const gib = 1 << 30

// getDiskUsage returns totalGB, freeGB and usedPercent via GetDiskFreeSpaceEx
func getDiskUsage(path string) (float64, float64, float64, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, 0, 0, err
	}

	var avail, total, free uint64
	if err := windows.GetDiskFreeSpaceEx(p, &avail, &total, &free); err != nil {
		return 0, 0, 0, fmt.Errorf("failed to get disk stats: %w", err)
	}
	if total == 0 {
		return 0, 0, 0, fmt.Errorf("volume at %s reports zero size", path)
	}

	return float64(total) / gib,
		float64(avail) / gib,
		float64(total-free) / float64(total) * 100,
		nil
}
