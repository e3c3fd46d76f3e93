// Copyright 2026 Supabase, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package bufpool provides recycling of byte buffers for outbound protocol
// messages. Buffers are kept in power-of-two capacity buckets so a request
// buffer returns to a bucket matching however large it grew.
package bufpool

import (
	"math/bits"
	"sync"
)

// Pool recycles byte slices across requests. Buckets hold slices with
// capacities [minSize, minSize*2, ..., maxSize]; slices that grew beyond
// maxSize are left for the garbage collector.
type Pool struct {
	minSize int
	maxSize int
	buckets []*sync.Pool
}

// New creates a pool with power-of-two buckets from minSize to maxSize.
// Both must be powers of two with maxSize >= minSize.
func New(minSize, maxSize int) *Pool {
	if minSize <= 0 || minSize&(minSize-1) != 0 || maxSize&(maxSize-1) != 0 || maxSize < minSize {
		panic("bufpool: sizes must be powers of two with maxSize >= minSize")
	}
	p := &Pool{minSize: minSize, maxSize: maxSize}
	for size := minSize; size <= maxSize; size *= 2 {
		p.buckets = append(p.buckets, &sync.Pool{
			New: func() any {
				buf := make([]byte, 0, size)
				return &buf
			},
		})
	}
	return p
}

// bucketFor returns the index of the smallest bucket holding at least
// size bytes, or -1 if size exceeds maxSize.
func (p *Pool) bucketFor(size int) int {
	if size > p.maxSize {
		return -1
	}
	if size <= p.minSize {
		return 0
	}
	// Round up to the next power of two relative to minSize.
	return bits.Len(uint(size-1)) - bits.Len(uint(p.minSize-1))
}

// Get returns an empty buffer with at least size bytes of capacity.
func (p *Pool) Get(size int) *[]byte {
	idx := p.bucketFor(size)
	if idx < 0 {
		buf := make([]byte, 0, size)
		return &buf
	}
	buf := p.buckets[idx].Get().(*[]byte)
	*buf = (*buf)[:0]
	return buf
}

// Put returns a buffer for reuse. Buffers whose capacity matches no bucket
// are discarded.
func (p *Pool) Put(buf *[]byte) {
	idx := p.bucketFor(cap(*buf))
	if idx < 0 || cap(*buf) < p.minSize {
		return
	}
	// A buffer belongs to the bucket whose size it can fully serve.
	if cap(*buf) != p.bucketSize(idx) {
		idx--
		if idx < 0 {
			return
		}
	}
	*buf = (*buf)[:0]
	p.buckets[idx].Put(buf)
}

// bucketSize returns the capacity served by bucket idx.
func (p *Pool) bucketSize(idx int) int {
	return p.minSize << idx
}
