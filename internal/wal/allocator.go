package wal

import (
	"fmt"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"
)

// segmentAllocator pre-creates fresh segment files on a background
// goroutine so that AppendBytes's rotation path never blocks on
// filesystem allocation. Grounded on VortexSegmentCreator
// (wal/mod.rs): a bounded channel fed by a single producer goroutine,
// first draining any unused pre-existing open segments recovered at
// startup before creating new ones.
type segmentAllocator struct {
	ch    chan openSegment
	errCh chan error
	group *errgroup.Group
	done  chan struct{}
}

func newSegmentAllocator(dir string, existing []openSegment, capacity, queueLen int) *segmentAllocator {
	if queueLen < 0 {
		queueLen = 0
	}
	bufSize := queueLen
	if bufSize < 1 {
		bufSize = 1
	}

	a := &segmentAllocator{
		ch:    make(chan openSegment, bufSize),
		errCh: make(chan error, 1),
		done:  make(chan struct{}),
	}
	group := new(errgroup.Group)
	a.group = group

	group.Go(func() error {
		return a.run(dir, existing, capacity)
	})
	return a
}

func (a *segmentAllocator) run(dir string, existing []openSegment, capacity int) error {
	sort.Slice(existing, func(i, j int) bool { return existing[i].id < existing[j].id })
	nextID := uint64(0)
	if len(existing) > 0 {
		nextID = existing[len(existing)-1].id + 1
	}

	for _, seg := range existing {
		select {
		case a.ch <- seg:
		case <-a.done:
			return nil
		}
	}

	for {
		select {
		case <-a.done:
			return nil
		default:
		}

		path := filepath.Join(dir, fmt.Sprintf("open-%d", nextID))
		seg, err := CreateSegment(path, capacity)
		if err != nil {
			a.errCh <- err
			return err
		}
		select {
		case a.ch <- openSegment{id: nextID, segment: seg}:
			nextID++
		case <-a.done:
			seg.Delete()
			return nil
		}
	}
}

// next blocks until a freshly-allocated (or recovered-unused) segment
// is available.
func (a *segmentAllocator) next() (openSegment, error) {
	select {
	case seg := <-a.ch:
		return seg, nil
	case err := <-a.errCh:
		return openSegment{}, err
	}
}

func (a *segmentAllocator) stop() {
	close(a.done)
	a.group.Wait()
}
