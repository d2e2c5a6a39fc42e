package wal

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/monishSR/vortex/internal/vortexerr"
)

// Options configures segment sizing and allocator backpressure, mirroring
// VortexWalOptions.
type Options struct {
	SegmentCapacity int // bytes per segment, default 32MiB
	SegmentQueueLen int // bounded pre-allocation channel depth, default 0
}

// DefaultOptions matches the original's qdrant-derived defaults.
func DefaultOptions() Options {
	return Options{SegmentCapacity: 32 * 1024 * 1024, SegmentQueueLen: 0}
}

type openSegment struct {
	id       uint64
	segment  *Segment
	startLSN uint64
}

type closedSegment struct {
	startLSN uint64
	segment  *Segment
}

// Wal is the directory-level write-ahead log: a sequence of closed,
// immutable segments followed by one open, appendable segment, with LSNs
// assigned as segment.startLSN + ordinal-within-segment. Single-writer:
// callers must serialize Append/Truncate calls themselves or rely on
// Wal's internal mutex, which Wal itself takes for every mutating call.
type Wal struct {
	mu       sync.Mutex
	dir      string
	lock     *flock.Flock
	open     openSegment
	closed   []closedSegment
	creator  *segmentAllocator
	options  Options
}

// Open opens or initializes a WAL directory: acquires the `.lock` file,
// classifies every `open-<id>` / `closed-<lsn>` file already present,
// removes `tmp-*` crash residue, validates that closed segments form a
// contiguous LSN prefix, and resumes (or starts) the open segment.
func Open(dir string, opts Options) (*Wal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, vortexerr.Wrap(vortexerr.Io, "create wal directory", err)
	}

	lock := flock.New(filepath.Join(dir, ".lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, vortexerr.Wrap(vortexerr.Io, "lock wal directory", err)
	}
	if !locked {
		return nil, vortexerr.New(vortexerr.Io, "wal directory already locked: "+dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		lock.Unlock()
		return nil, vortexerr.Wrap(vortexerr.Io, "list wal directory", err)
	}

	var opens []openSegment
	var closedList []closedSegment
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		path := filepath.Join(dir, name)
		switch {
		case strings.HasPrefix(name, "tmp-"):
			os.Remove(path)
		case strings.HasPrefix(name, "open-"):
			idStr := strings.TrimPrefix(name, "open-")
			id, perr := strconv.ParseUint(idStr, 10, 64)
			if perr != nil {
				lock.Unlock()
				return nil, vortexerr.New(vortexerr.Corrupt, "invalid open wal segment id: "+name)
			}
			seg, oerr := OpenSegment(path)
			if oerr != nil {
				lock.Unlock()
				return nil, oerr
			}
			opens = append(opens, openSegment{id: id, segment: seg})
		case strings.HasPrefix(name, "closed-"):
			lsnStr := strings.TrimPrefix(name, "closed-")
			lsn, perr := strconv.ParseUint(lsnStr, 10, 64)
			if perr != nil {
				lock.Unlock()
				return nil, vortexerr.New(vortexerr.Corrupt, "invalid closed wal segment lsn: "+name)
			}
			seg, oerr := OpenSegment(path)
			if oerr != nil {
				lock.Unlock()
				return nil, oerr
			}
			closedList = append(closedList, closedSegment{startLSN: lsn, segment: seg})
		}
	}

	sort.Slice(closedList, func(i, j int) bool { return closedList[i].startLSN < closedList[j].startLSN })
	var nextExpectedLSN uint64
	if len(closedList) > 0 {
		nextExpectedLSN = closedList[0].startLSN
	}
	for _, cs := range closedList {
		switch {
		case cs.startLSN < nextExpectedLSN:
			lock.Unlock()
			return nil, vortexerr.New(vortexerr.Corrupt, fmt.Sprintf("overlapping wal segments: expected %d, found %d", nextExpectedLSN, cs.startLSN))
		case cs.startLSN > nextExpectedLSN:
			lock.Unlock()
			return nil, vortexerr.New(vortexerr.Corrupt, fmt.Sprintf("missing wal segment(s): expected %d, found %d", nextExpectedLSN, cs.startLSN))
		default:
			nextExpectedLSN = cs.startLSN + uint64(cs.segment.Len())
		}
	}

	sort.Slice(opens, func(i, j int) bool { return opens[i].id < opens[j].id })
	var candidate *openSegment
	var unused []openSegment
	for i := range opens {
		o := opens[i]
		if !o.segment.IsEmpty() {
			if candidate != nil {
				if !candidate.segment.IsEmpty() {
					closed, cerr := closeSegmentAt(*candidate, nextExpectedLSN)
					if cerr != nil {
						lock.Unlock()
						return nil, cerr
					}
					nextExpectedLSN += uint64(closed.segment.Len())
					closedList = append(closedList, closed)
				} else {
					unused = append(unused, *candidate)
				}
			}
			c := o
			candidate = &c
		} else if candidate == nil {
			c := o
			candidate = &c
		} else {
			unused = append(unused, o)
		}
	}

	creator := newSegmentAllocator(dir, unused, opts.SegmentCapacity, opts.SegmentQueueLen)

	var final openSegment
	if candidate != nil {
		final = *candidate
		final.startLSN = nextExpectedLSN
	} else {
		seg, aerr := creator.next()
		if aerr != nil {
			lock.Unlock()
			return nil, aerr
		}
		seg.startLSN = nextExpectedLSN
		final = seg
	}

	w := &Wal{
		dir:     dir,
		lock:    lock,
		open:    final,
		closed:  closedList,
		creator: creator,
		options: opts,
	}
	return w, nil
}

func closeSegmentAt(toClose openSegment, startLSN uint64) (closedSegment, error) {
	newPath := filepath.Join(filepath.Dir(toClose.segment.Path()), fmt.Sprintf("closed-%d", startLSN))
	if err := toClose.segment.Rename(newPath); err != nil {
		return closedSegment{}, err
	}
	return closedSegment{startLSN: startLSN, segment: toClose.segment}, nil
}

func (w *Wal) retireOpenSegment() error {
	oldStart := w.open.startLSN
	oldLen := uint64(w.open.segment.Len())
	nextStart := oldStart + oldLen

	incoming, err := w.creator.next()
	if err != nil {
		return err
	}
	incoming.startLSN = nextStart

	if err := w.open.segment.Flush(); err != nil {
		return err
	}

	toClose := w.open
	w.open = incoming

	if len(w.closed) > 0 && w.closed[len(w.closed)-1].segment.IsEmpty() {
		last := w.closed[len(w.closed)-1]
		w.closed = w.closed[:len(w.closed)-1]
		if err := last.segment.Delete(); err != nil {
			return err
		}
	}

	closed, err := closeSegmentAt(toClose, toClose.startLSN)
	if err != nil {
		return err
	}
	w.closed = append(w.closed, closed)
	return nil
}

// AppendBytes writes one record, rotating into a freshly-allocated
// segment first if the current one lacks room, and returns the LSN it
// was assigned.
func (w *Wal) AppendBytes(record []byte) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.open.segment.SufficientCapacity(len(record)) {
		if !w.open.segment.IsEmpty() {
			if err := w.retireOpenSegment(); err != nil {
				return 0, err
			}
		}
		if err := w.open.segment.EnsureCapacity(len(record)); err != nil {
			return 0, err
		}
	}

	ordinal, ok := w.open.segment.AppendRecordBytes(record)
	if !ok {
		return 0, vortexerr.New(vortexerr.WalAppend, "failed to append wal record after ensuring capacity")
	}
	return w.open.startLSN + uint64(ordinal), nil
}

// ReadByLSN returns the record at the given LSN, or false if it doesn't
// exist (discarded by truncation, or never written).
func (w *Wal) ReadByLSN(lsn uint64) ([]byte, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if lsn >= w.open.startLSN {
		ordinal := int(lsn - w.open.startLSN)
		return w.open.segment.Entry(ordinal)
	}
	idx, ok := w.findClosedSegmentForLSN(lsn)
	if !ok {
		return nil, false
	}
	cs := w.closed[idx]
	return cs.segment.Entry(int(lsn - cs.startLSN))
}

func (w *Wal) findClosedSegmentForLSN(lsn uint64) (int, bool) {
	i := sort.Search(len(w.closed), func(i int) bool {
		cs := w.closed[i]
		return lsn < cs.startLSN+uint64(cs.segment.Len())
	})
	if i >= len(w.closed) || lsn < w.closed[i].startLSN {
		return 0, false
	}
	return i, true
}

// TruncateFromLSN discards every record at or after fromLSN. Suffix
// truncation: used on WAL-replay CRC failure and on explicit rollback.
func (w *Wal) TruncateFromLSN(fromLSN uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if fromLSN >= w.open.startLSN {
		if fromLSN-w.open.startLSN < uint64(w.open.segment.Len()) {
			w.open.segment.TruncateFromOrdinal(int(fromLSN - w.open.startLSN))
		}
		return nil
	}

	w.open.segment.TruncateFromOrdinal(0)

	idx, ok := w.findClosedSegmentForLSN(fromLSN)
	if ok {
		target := w.closed[idx]
		if fromLSN == target.startLSN {
			for _, cs := range w.closed[idx:] {
				if err := cs.segment.Delete(); err != nil {
					return err
				}
			}
			w.closed = w.closed[:idx]
			return nil
		}
		target.segment.TruncateFromOrdinal(int(fromLSN - target.startLSN))
		if err := target.segment.Flush(); err != nil {
			return err
		}
		for _, cs := range w.closed[idx+1:] {
			if err := cs.segment.Delete(); err != nil {
				return err
			}
		}
		w.closed = w.closed[:idx+1]
		return nil
	}

	// fromLSN falls strictly before every closed segment: drop them all.
	for _, cs := range w.closed {
		if err := cs.segment.Delete(); err != nil {
			return err
		}
	}
	w.closed = nil
	return nil
}

// PrefixTruncateUntilLSN deletes whole closed segments that end before
// untilLSN. The open segment's own content is never truncated by this
// call, matching spec.md §4.5's prefix-truncate semantics used after a
// successful checkpoint.
func (w *Wal) PrefixTruncateUntilLSN(untilLSN uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.open.segment.IsEmpty() && len(w.closed) == 0 {
		return nil
	}
	first, ok := w.firstLSNLocked()
	if !ok {
		first = 0
	}
	if untilLSN <= first {
		return nil
	}

	if untilLSN >= w.open.startLSN {
		for _, cs := range w.closed {
			if err := cs.segment.Delete(); err != nil {
				return err
			}
		}
		w.closed = nil
		return nil
	}

	keepFrom := len(w.closed)
	for i, cs := range w.closed {
		if cs.startLSN+uint64(cs.segment.Len()) > untilLSN {
			keepFrom = i
			break
		}
	}
	for _, cs := range w.closed[:keepFrom] {
		if err := cs.segment.Delete(); err != nil {
			return err
		}
	}
	w.closed = w.closed[keepFrom:]
	return nil
}

func (w *Wal) firstLSNLocked() (uint64, bool) {
	if len(w.closed) > 0 {
		return w.closed[0].startLSN, true
	}
	if !w.open.segment.IsEmpty() {
		return w.open.startLSN, true
	}
	return 0, false
}

// FirstLSN returns the lowest LSN still retained, if any.
func (w *Wal) FirstLSN() (uint64, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.firstLSNLocked()
}

// LastLSN returns the highest LSN appended so far, if any.
func (w *Wal) LastLSN() (uint64, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.open.segment.IsEmpty() {
		return w.open.startLSN + uint64(w.open.segment.Len()) - 1, true
	}
	for i := len(w.closed) - 1; i >= 0; i-- {
		if !w.closed[i].segment.IsEmpty() {
			return w.closed[i].startLSN + uint64(w.closed[i].segment.Len()) - 1, true
		}
	}
	return 0, false
}

// Flush persists the open segment's outstanding writes to disk. Durable
// acknowledgment of an AppendBytes call requires Flush to have returned
// successfully for the LSN it returned, per spec.md §5's ordering
// guarantee ("durability = WAL-ack before in-memory apply").
func (w *Wal) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.open.segment.Flush()
}

// Close stops the background allocator and closes every mapped segment.
func (w *Wal) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.creator.stop()
	var firstErr error
	if err := w.open.segment.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	for _, cs := range w.closed {
		if err := cs.segment.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := w.lock.Unlock(); err != nil && firstErr == nil {
		firstErr = vortexerr.Wrap(vortexerr.Io, "release wal lock", err)
	}
	return firstErr
}
