package storage

import (
	"context"
	"math"
	"runtime/debug"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/vessel/internal/utils"
	"github.com/vkngwrapper/vessel/memutils"
	"golang.org/x/exp/slices"
	"golang.org/x/exp/slog"
)

// BlockID identifies a single live block handed out by an Allocator
type BlockID uint64

const (
	// NoBlock is the BlockID carried by a Storage that does not currently own a block
	NoBlock BlockID = 0
)

// AllocatorCreateOptions contains optional settings when creating an allocator
type AllocatorCreateOptions struct {
	// Logger receives debug records for every block acquired and released, as well as error
	// records for blocks that are still live when the allocator is destroyed. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
	// MaxBytes is the maximum number of bytes that may be live in blocks from this allocator at one
	// time. Requests beyond the limit fail with memutils.OutOfMemoryError. 0 means the process
	// memory limit (GOMEMLIMIT) if one is set, and DefaultMaxBytes otherwise. A negative value means
	// no limit, in which case an oversized request is refused by the Go runtime, which is fatal.
	MaxBytes int
	// Synchronized causes the allocator to guard its bookkeeping with a mutex, so that sequences
	// on different goroutines may share it. Sequences and storage themselves are never synchronized.
	Synchronized bool
}

// Allocator is the single heap allocation strategy used by Storage. It hands out blocks of
// zeroed slots, enforces an optional byte budget, and keeps track of every live block so that
// leaks can be reported.
type Allocator struct {
	mutex    utils.OptionalMutex
	logger   *slog.Logger
	maxBytes int

	nextID BlockID
	blocks *swiss.Map[BlockID, int]
	stats  memutils.DetailedStatistics
}

// DefaultMaxBytes is the byte limit of an allocator created without MaxBytes when the process has no
// memory limit of its own
const DefaultMaxBytes int64 = 16 << 30

func processMaxBytes() int {
	limit := debug.SetMemoryLimit(-1)
	if limit <= 0 || limit == math.MaxInt64 {
		limit = DefaultMaxBytes
	}
	if limit > int64(math.MaxInt) {
		return math.MaxInt
	}
	return int(limit)
}

var (
	defaultAllocator     *Allocator
	defaultAllocatorOnce sync.Once
)

// DefaultAllocator retrieves the process-wide synchronized allocator that is used by any Storage
// created with a nil Allocator
func DefaultAllocator() *Allocator {
	defaultAllocatorOnce.Do(func() {
		defaultAllocator = NewAllocator(AllocatorCreateOptions{Synchronized: true})
	})
	return defaultAllocator
}

// NewAllocator creates a new Allocator
//
// options - Optional parameters: it is valid to leave all the fields blank
func NewAllocator(options AllocatorCreateOptions) *Allocator {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	maxBytes := options.MaxBytes
	if maxBytes == 0 {
		maxBytes = processMaxBytes()
	}

	allocator := &Allocator{
		mutex:    utils.OptionalMutex{UseMutex: options.Synchronized},
		logger:   logger,
		maxBytes: maxBytes,
		blocks:   swiss.NewMap[BlockID, int](42),
	}
	allocator.stats.Clear()

	return allocator
}

func (a *Allocator) acquire(size int) (id BlockID, err error) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if a.maxBytes > 0 && a.stats.BlockBytes+size > a.maxBytes {
		return NoBlock, errors.Wrapf(memutils.OutOfMemoryError,
			"allocating %d bytes would exceed the allocator limit of %d bytes (%d bytes live)",
			size, a.maxBytes, a.stats.BlockBytes)
	}

	a.nextID++
	id = a.nextID
	a.blocks.Put(id, size)
	a.stats.AddBlock(size)
	a.stats.TotalAllocations++

	a.logger.Debug("Allocator::acquire", slog.Uint64("BlockID", uint64(id)), slog.Int("Size", size))
	return id, nil
}

func (a *Allocator) release(id BlockID) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	size, ok := a.blocks.Get(id)
	if !ok {
		panic(errors.Newf("attempted to release block %d, which is not live in this allocator", id))
	}
	a.blocks.Delete(id)

	a.stats.BlockCount--
	a.stats.BlockBytes -= size
	a.stats.TotalFrees++

	a.logger.Debug("Allocator::release", slog.Uint64("BlockID", uint64(id)), slog.Int("Size", size))
}

// MaxBytes returns the allocator's byte limit, or a negative number if it has none
func (a *Allocator) MaxBytes() int {
	return a.maxBytes
}

// LiveBlockCount returns the number of blocks that have been acquired from this allocator and not
// yet released
func (a *Allocator) LiveBlockCount() int {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	return a.blocks.Count()
}

// CalculateStatistics sums this allocator's block statistics into the statistics currently present
// in the provided memutils.DetailedStatistics object.
func (a *Allocator) CalculateStatistics(stats *memutils.DetailedStatistics) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	stats.AddDetailedStatistics(&a.stats)
}

// Validate verifies that the live block table agrees with the running statistics.
func (a *Allocator) Validate() error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	actualCount := 0
	actualBytes := 0
	a.blocks.Iter(func(id BlockID, size int) bool {
		actualCount++
		actualBytes += size
		return false
	})

	if actualCount != a.stats.BlockCount {
		return errors.Newf("the allocator lists %d live blocks, but its statistics claim %d", actualCount, a.stats.BlockCount)
	}
	if actualBytes != a.stats.BlockBytes {
		return errors.Newf("the allocator's live blocks total %d bytes, but its statistics claim %d", actualBytes, a.stats.BlockBytes)
	}
	if a.maxBytes > 0 && actualBytes > a.maxBytes {
		return errors.Newf("the allocator has %d live bytes, which is over its limit of %d", actualBytes, a.maxBytes)
	}

	return nil
}

// BuildStatsString produces a json document describing the allocator's current usage. If detailed
// is true, every live block is listed as well.
func (a *Allocator) BuildStatsString(detailed bool) string {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	writer := jwriter.NewWriter()
	obj := writer.Object()

	total := obj.Name("Total").Object()
	total.Name("BlockCount").Int(a.stats.BlockCount)
	total.Name("BlockBytes").Int(a.stats.BlockBytes)
	total.Name("TotalAllocations").Int(a.stats.TotalAllocations)
	total.Name("TotalFrees").Int(a.stats.TotalFrees)
	total.Name("PeakBlockBytes").Int(a.stats.PeakBlockBytes)
	if a.maxBytes > 0 {
		total.Name("MaxBytes").Int(a.maxBytes)
	}
	total.End()

	if detailed {
		a.printBlocks(obj)
	}

	obj.End()
	return string(writer.Bytes())
}

func (a *Allocator) printBlocks(json jwriter.ObjectState) {
	ids := make([]BlockID, 0, a.blocks.Count())
	a.blocks.Iter(func(id BlockID, size int) bool {
		ids = append(ids, id)
		return false
	})
	slices.Sort(ids)

	arrayState := json.Name("Blocks").Array()
	defer arrayState.End()

	for _, id := range ids {
		size, _ := a.blocks.Get(id)

		blockObj := arrayState.Object()
		blockObj.Name("ID").Int(int(id))
		blockObj.Name("Size").Int(size)
		blockObj.End()
	}
}

// Destroy verifies that every block acquired from this allocator has been released. Each block that is
// still live is logged and an error is returned. The allocator should not be used after Destroy.
func (a *Allocator) Destroy() error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if a.blocks.Count() == 0 {
		return nil
	}

	a.blocks.Iter(func(id BlockID, size int) bool {
		a.logger.LogAttrs(context.Background(), slog.LevelError, "[UNRELEASED MEMORY] unreleased block",
			slog.Uint64("id", uint64(id)),
			slog.Int("size", size),
		)
		return false
	})

	return errors.Newf("%d blocks were not released before the destruction of this allocator", a.blocks.Count())
}
