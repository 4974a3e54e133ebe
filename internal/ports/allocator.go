package ports

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var ErrNoAvailablePort = errors.New("no available port")

// Range is an inclusive port range.
type Range struct {
	Start int
	End   int
}

func (r Range) String() string {
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// FallbackRange is used for categories without a configured range.
var FallbackRange = Range{Start: 8000, End: 8100}

// DefaultRanges are the per-category ranges used when none are configured.
func DefaultRanges() map[string]Range {
	return map[string]Range{
		"nextjs":  {Start: 3000, End: 3010},
		"vite":    {Start: 5173, End: 5183},
		"express": {Start: 3001, End: 3020},
	}
}

// categoryAliases maps project types onto the range they share.
var categoryAliases = map[string]string{
	"node": "express",
}

// Allocator picks ports from per-category ranges. The allocated set is
// advisory bookkeeping; a fresh probe is always the source of truth.
type Allocator struct {
	mu        sync.Mutex
	ranges    map[string]Range
	probe     Prober
	allocated map[int]struct{}
}

func NewAllocator(ranges map[string]Range, probe Prober) *Allocator {
	if ranges == nil {
		ranges = DefaultRanges()
	}
	if probe == nil {
		probe = Probe{}
	}
	return &Allocator{
		ranges:    ranges,
		probe:     probe,
		allocated: make(map[int]struct{}),
	}
}

// SetRanges replaces the configured ranges, e.g. after a config reload.
func (a *Allocator) SetRanges(ranges map[string]Range) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ranges = ranges
}

// RangeFor resolves the range for a project category.
func (a *Allocator) RangeFor(category string) Range {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rangeFor(category)
}

func (a *Allocator) rangeFor(category string) Range {
	if alias, ok := categoryAliases[category]; ok {
		category = alias
	}
	if r, ok := a.ranges[category]; ok {
		return r
	}
	return FallbackRange
}

// Allocate scans the category's range in ascending order and returns the
// first port the probe reports free. The port is recorded as allocated.
func (a *Allocator) Allocate(category string) (int, error) {
	return a.AllocateExcept(category, nil)
}

// AllocateExcept is Allocate but passes over ports for which held reports
// true, such as ports owned by a process that has not bound them yet.
func (a *Allocator) AllocateExcept(category string, held func(port int) bool) (int, error) {
	r := a.RangeFor(category)

	for port := r.Start; port <= r.End; port++ {
		if held != nil && held(port) {
			continue
		}
		if a.probe.IsAvailable(port) {
			a.MarkAllocated(port)
			return port, nil
		}
	}
	return 0, fmt.Errorf("%w in range %s for %s", ErrNoAvailablePort, r, category)
}

// IsAvailable probes a single port.
func (a *Allocator) IsAvailable(port int) bool {
	return a.probe.IsAvailable(port)
}

func (a *Allocator) MarkAllocated(port int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.allocated[port] = struct{}{}
}

func (a *Allocator) Release(port int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.allocated, port)
}

func (a *Allocator) IsAllocated(port int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.allocated[port]
	return ok
}

// Allocated returns the reserved ports in ascending order.
func (a *Allocator) Allocated() []int {
	a.mu.Lock()
	defer a.mu.Unlock()

	result := make([]int, 0, len(a.allocated))
	for port := range a.allocated {
		result = append(result, port)
	}
	sort.Ints(result)
	return result
}
