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

//go:build unix

package health

import (
	"fmt"

	"golang.org/x/sys/unix"
)

const gib = 1 << 30

// getDiskUsage returns totalGB, freeGB (available to unprivileged users)
// and usedPercent for the filesystem holding path
func getDiskUsage(path string) (float64, float64, float64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, 0, 0, fmt.Errorf("failed to get disk stats: %w", err)
	}

	bsize := uint64(stat.Bsize)
	totalBytes := uint64(stat.Blocks) * bsize
	if totalBytes == 0 {
		return 0, 0, 0, fmt.Errorf("filesystem at %s reports zero size", path)
	}
	availBytes := uint64(stat.Bavail) * bsize
	usedBytes := totalBytes - uint64(stat.Bfree)*bsize

	return float64(totalBytes) / gib,
		float64(availBytes) / gib,
		float64(usedBytes) / float64(totalBytes) * 100,
		nil
}
