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

package fileheads

import (
	"context"
	"errors"
	"io"
	"path/filepath"

	"fileHeads/internal/codec"
	"fileHeads/pkg/heads"
	"fileHeads/pkg/log"
	"fileHeads/pkg/workerpool"
)

// stream turns a pending directory listing into a stream of keys.
//
// Names are decoded one at a time as the consumer pulls. Entries without the
// marker prefix are skipped. A listing failure is delivered once, after any
// names that were read before it.
func (s *Store[K]) stream(listing *workerpool.Future[[]string]) *heads.Stream[K] {
	var (
		names   []string
		listErr error
		fetched bool
		next    int
	)

	return heads.NewStream(func(ctx context.Context) (K, error) {
		var zero K

		if !fetched {
			n, err := listing.Wait(ctx)
			if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				// caller gave up waiting, the listing is still pending
				return zero, err
			}
			names, listErr, fetched = n, err, true
		}

		for next < len(names) {
			name := names[next]
			next++

			key, ok, err := codec.ParseFileName(s.codec, name)
			if !ok {
				continue
			}
			if err != nil {
				path := filepath.Join(s.base, name)
				if s.skipUndecodable {
					s.metrics.RecordUndecodableEntry()
					s.logger.Warn("skipping undecodable head entry", log.FileName(name), log.Err(err))
					continue
				}
				s.metrics.RecordStoreError(opHeads, "decoding")
				return zero, heads.NewError(heads.ErrDecoding, opHeads, path, err)
			}
			return key, nil
		}

		if listErr != nil {
			err := listErr
			listErr = nil
			return zero, err
		}
		return zero, io.EOF
	})
}
