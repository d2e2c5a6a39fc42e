// Package hnsw implements HnswSegment: the binding of one MmapVectorStore
// plus one MmapGraphLinks plus the external<->internal ID map, carrying
// the insertion and search algorithms of spec.md §4.4. Grounded on
// original_source/vortex-core/src/hnsw/mod.rs (search_layer,
// select_neighbors_heuristic) and segment.rs (hnsw_insert_vector,
// hnsw_search_internal, find_valid_entry_point), re-expressed in the
// teacher's arena-by-integer-index style (internal/index/hnsw/hnsw.go's
// HNSWIndex/HNSWNode shape) rather than the teacher's in-memory
// map[uint64]*HNSWNode, since the mmap files are now the graph's actual
// storage.
package hnsw

import (
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/monishSR/vortex/internal/distance"
	"github.com/monishSR/vortex/internal/storage"
	"github.com/monishSR/vortex/internal/vortexerr"
)

// Paths names the three backing files a Segment binds.
type Paths struct {
	VectorsData string
	VectorsDel  string
	Graph       string
}

// SearchResult is one ranked hit: the caller-facing external ID and the
// original (non-heap) distance or similarity.
type SearchResult struct {
	ID    string
	Score float32
}

// Segment is spec.md's HnswSegment.
type Segment struct {
	mu sync.RWMutex

	dim      int
	metric   distance.Metric
	config   Config
	capacity uint64

	vectors *storage.MmapVectorStore
	graph   *storage.MmapGraphLinks

	extToInt  map[string]uint64
	intToExt  map[uint64]string
	nodeLevel map[uint64]int

	nextInternalID uint64
	rng            *rand.Rand
	cache          *vectorCache

	checkpointLSN uint64
	hasCheckpoint bool
}

// defaultMaxLayers picks a generous, fixed layer budget for the
// pre-allocated graph file, following the Rust original's practice of
// sizing layers off capacity rather than letting them grow unbounded.
func defaultMaxLayers(capacity uint64, m int) uint16 {
	if capacity < 2 || m < 2 {
		return 8
	}
	layers := int(math.Ceil(math.Log(float64(capacity))/math.Log(float64(m)))) + 4
	if layers < 8 {
		layers = 8
	}
	if layers > 65535 {
		layers = 65535
	}
	return uint16(layers)
}

// Create allocates fresh backing files for a brand-new, empty segment.
func Create(paths Paths, metric distance.Metric, cfg Config, capacity uint64) (*Segment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	maxLayers := defaultMaxLayers(capacity, cfg.M)

	vectors, err := storage.CreateVectorStore(paths.VectorsData, paths.VectorsDel, cfg.Dim, capacity)
	if err != nil {
		return nil, err
	}
	graph, err := storage.CreateGraphLinks(paths.Graph, capacity, maxLayers, uint32(cfg.MMax0), uint32(cfg.M))
	if err != nil {
		vectors.Close()
		return nil, err
	}

	return &Segment{
		dim:            cfg.Dim,
		metric:         metric,
		config:         cfg,
		capacity:       capacity,
		vectors:        vectors,
		graph:          graph,
		extToInt:       make(map[string]uint64),
		intToExt:       make(map[uint64]string),
		nodeLevel:      make(map[uint64]int),
		nextInternalID: 0,
		rng:            rand.New(rand.NewSource(cfg.Seed)),
		cache:          newVectorCache(defaultCacheCapacity),
	}, nil
}

// Open maps existing backing files and restores the in-memory ID/level
// maps and next_internal_id from a previously-loaded Manifest (the
// caller, internal/index, is responsible for reading the manifest JSON
// file and handing it over here).
func Open(paths Paths, m Manifest) (*Segment, error) {
	metric, err := metricFromString(m.Metric)
	if err != nil {
		return nil, err
	}
	vectors, err := storage.OpenVectorStore(paths.VectorsData, paths.VectorsDel)
	if err != nil {
		return nil, err
	}
	graph, err := storage.OpenGraphLinks(paths.Graph)
	if err != nil {
		vectors.Close()
		return nil, err
	}

	intToExt := make(map[uint64]string, len(m.ExtToInt))
	for ext, internal := range m.ExtToInt {
		intToExt[internal] = ext
	}
	nodeLevel := m.NodeLevel
	if nodeLevel == nil {
		nodeLevel = make(map[uint64]int)
	}
	extToInt := m.ExtToInt
	if extToInt == nil {
		extToInt = make(map[string]uint64)
	}

	return &Segment{
		dim:            m.Config.Dim,
		metric:         metric,
		config:         m.Config,
		capacity:       m.Capacity,
		vectors:        vectors,
		graph:          graph,
		extToInt:       extToInt,
		intToExt:       intToExt,
		nodeLevel:      nodeLevel,
		nextInternalID: m.NextInternalID,
		rng:            rand.New(rand.NewSource(m.Config.Seed)),
		cache:          newVectorCache(defaultCacheCapacity),
		checkpointLSN:  m.CheckpointLSN,
		hasCheckpoint:  m.HasCheckpoint,
	}, nil
}

// Manifest captures the current in-memory state for persistence.
func (s *Segment) Manifest() Manifest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	extToInt := make(map[string]uint64, len(s.extToInt))
	for k, v := range s.extToInt {
		extToInt[k] = v
	}
	nodeLevel := make(map[uint64]int, len(s.nodeLevel))
	for k, v := range s.nodeLevel {
		nodeLevel[k] = v
	}
	return Manifest{
		Config:         s.config,
		Metric:         s.metric.String(),
		Capacity:       s.capacity,
		MaxLayers:      s.graph.NumLayers(),
		ExtToInt:       extToInt,
		NodeLevel:      nodeLevel,
		NextInternalID: s.nextInternalID,
		CheckpointLSN:  s.checkpointLSN,
		HasCheckpoint:  s.hasCheckpoint,
	}
}

// SetCheckpointLSN records the WAL LSN this segment's on-disk state is
// consistent up to, per the Recovery flow of spec.md §4.7.
func (s *Segment) SetCheckpointLSN(lsn uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpointLSN = lsn
	s.hasCheckpoint = true
}

// CheckpointLSN returns the last-persisted checkpoint LSN, and whether
// one has ever been recorded (false means "replay everything").
func (s *Segment) CheckpointLSN() (uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.checkpointLSN, s.hasCheckpoint
}

// Dim, Metric, Config expose the segment's fixed parameters.
func (s *Segment) Dim() int                 { return s.dim }
func (s *Segment) Metric() distance.Metric  { return s.metric }
func (s *Segment) Config() Config           { return s.config }

// Size returns the number of live (undeleted, externally addressable)
// vectors.
func (s *Segment) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.extToInt)
}

func (s *Segment) readVector(id uint64) ([]float32, bool) {
	if v, ok := s.cache.get(id); ok {
		return v, true
	}
	v, ok := s.vectors.Get(id)
	if !ok {
		return nil, false
	}
	s.cache.put(id, v)
	return v, true
}

func (s *Segment) scoreAgainst(a, b []float32) (float32, error) {
	d, err := distance.Calculate(s.metric, a, b)
	if err != nil {
		return 0, err
	}
	return distance.HeapScore(s.metric, d), nil
}

// randomLevel draws u in (0, 1] uniformly and returns floor(-ln(u) * ml),
// per spec.md §4.4 and original_source/vortex-core/src/utils.rs's
// generate_random_level.
func (s *Segment) randomLevel() int {
	u := 1 - s.rng.Float64() // Float64 is [0,1); flip to (0,1]
	level := int(math.Floor(-math.Log(u) * s.config.Ml))
	if maxLayers := int(s.graph.NumLayers()); level >= maxLayers {
		level = maxLayers - 1
	}
	if level < 0 {
		level = 0
	}
	return level
}

// validEntryPoint returns the graph's recorded entry point if it's still
// live, otherwise falls back to a linear scan for the highest-level live
// node, per spec.md §4.4/§9 ("Entry-point fallback... uses a linear scan
// of the ID map").
func (s *Segment) validEntryPoint() (uint64, bool) {
	ep, ok := s.graph.EntryPoint()
	if ok {
		if _, isLive := s.intToExt[ep]; isLive {
			return ep, true
		}
	}
	best, bestLevel, found := uint64(0), -1, false
	for id := range s.intToExt {
		if s.vectors.IsDeleted(id) {
			continue
		}
		lvl := s.nodeLevel[id]
		if !found || lvl > bestLevel {
			best, bestLevel, found = id, lvl, true
		}
	}
	if !found {
		return 0, false
	}
	return best, true
}

// searchLayer is spec.md §4.4's workhorse: two heaps keyed on
// heap_score, results a min-heap capped at ef (worst-of-best at its
// root) and frontier a max-heap as the exploration queue (best-to-expand
// at its root).
func (s *Segment) searchLayer(query []float32, entry uint64, ef int, layer int) (*resultHeap, error) {
	results := newResultHeap(ef)
	frontier := newFrontierHeap()
	visited := map[uint64]struct{}{entry: {}}

	entryVec, ok := s.readVector(entry)
	if !ok {
		return results, nil
	}
	seedScore, err := s.scoreAgainst(query, entryVec)
	if err != nil {
		return nil, err
	}
	seed := Neighbor{ID: entry, Score: seedScore}
	results.Offer(seed, ef)
	frontier.PushNeighbor(seed)

	for frontier.Len() > 0 {
		c := frontier.PopNeighbor()
		if results.Len() >= ef && c.Score < results.Peek().Score {
			break
		}
		neighbors, ok := s.graph.GetConnections(c.ID, layer)
		if !ok {
			continue
		}
		for _, nID := range neighbors {
			if _, seen := visited[nID]; seen {
				continue
			}
			visited[nID] = struct{}{}
			if s.vectors.IsDeleted(nID) {
				continue
			}
			nVec, ok := s.readVector(nID)
			if !ok {
				continue
			}
			score, err := s.scoreAgainst(query, nVec)
			if err != nil {
				return nil, err
			}
			cand := Neighbor{ID: nID, Score: score}
			if results.Len() < ef || cand.Score > results.Peek().Score {
				results.Offer(cand, ef)
				frontier.PushNeighbor(cand)
			}
		}
	}
	return results, nil
}

// selectNeighborsHeuristic is spec.md §4.4's baseline heuristic: keep the
// m candidates with the best heap_score.
func selectNeighborsHeuristic(candidates []Neighbor, m int) []Neighbor {
	sorted := make([]Neighbor, len(candidates))
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })
	if m < len(sorted) {
		sorted = sorted[:m]
	}
	return sorted
}

// addBackLink appends newID to x's neighbor list at layer l, re-pruning
// x's neighborhood to its M_l closest (by x's own vector, not the query)
// if the cap is exceeded.
func (s *Segment) addBackLink(x, newID uint64, l int) error {
	if s.vectors.IsDeleted(x) {
		return nil
	}
	capM := int(s.graph.CapAt(l))
	existing, ok := s.graph.GetConnections(x, l)
	if !ok {
		return vortexerr.New(vortexerr.OutOfRange, "back-link target out of range")
	}
	updated := make([]uint64, 0, len(existing)+1)
	updated = append(updated, existing...)
	updated = append(updated, newID)
	if len(updated) <= capM {
		return s.graph.SetConnections(x, l, updated)
	}

	xVec, ok := s.readVector(x)
	if !ok {
		return nil
	}
	cands := make([]Neighbor, 0, len(updated))
	for _, nid := range updated {
		if s.vectors.IsDeleted(nid) {
			continue
		}
		nv, ok := s.readVector(nid)
		if !ok {
			continue
		}
		score, err := s.scoreAgainst(xVec, nv)
		if err != nil {
			return err
		}
		cands = append(cands, Neighbor{ID: nid, Score: score})
	}
	pruned := selectNeighborsHeuristic(cands, capM)
	ids := make([]uint64, len(pruned))
	for i, c := range pruned {
		ids[i] = c.ID
	}
	return s.graph.SetConnections(x, l, ids)
}

// Insert implements spec.md §4.4's insertion algorithm.
func (s *Segment) Insert(extID string, v []float32) error {
	if extID == "" {
		return vortexerr.New(vortexerr.InvalidConfig, "external id must be non-empty")
	}
	if len(v) != s.dim {
		return vortexerr.New(vortexerr.DimensionMismatch, "vector length does not match segment dimension")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.extToInt[extID]; exists {
		return vortexerr.New(vortexerr.AlreadyExists, "external id already mapped")
	}
	if s.nextInternalID >= s.capacity {
		return vortexerr.New(vortexerr.StorageFull, "segment at capacity")
	}

	newID := s.nextInternalID
	if err := s.vectors.Put(newID, v); err != nil {
		return err
	}
	s.nextInternalID++
	s.extToInt[extID] = newID
	s.intToExt[newID] = extID
	s.cache.put(newID, v)

	level := s.randomLevel()
	s.nodeLevel[newID] = level

	ep, hasEntry := s.graph.EntryPoint()
	if !hasEntry {
		if err := s.graph.SetNumLayers(uint16(level + 1)); err != nil {
			return err
		}
		for l := 0; l <= level; l++ {
			if err := s.graph.SetConnections(newID, l, nil); err != nil {
				return err
			}
		}
		s.graph.SetEntryPoint(newID)
		return nil
	}

	topLayer := int(s.graph.NumLayers()) - 1
	cur := ep
	if validEp, ok := s.validEntryPoint(); ok {
		cur = validEp
	}

	for l := topLayer; l > level; l-- {
		res, err := s.searchLayer(v, cur, 1, l)
		if err != nil {
			return err
		}
		if best := res.Drain(); len(best) > 0 {
			cur = best[0].ID
		}
	}

	linkTop := level
	if topLayer < linkTop {
		linkTop = topLayer
	}
	for l := linkTop; l >= 0; l-- {
		res, err := s.searchLayer(v, cur, s.config.EfConstruction, l)
		if err != nil {
			return err
		}
		candidates := res.Drain()
		capM := int(s.graph.CapAt(l))
		selected := selectNeighborsHeuristic(candidates, capM)

		ids := make([]uint64, len(selected))
		for i, nb := range selected {
			ids[i] = nb.ID
		}
		if err := s.graph.SetConnections(newID, l, ids); err != nil {
			return err
		}
		for _, nb := range selected {
			if err := s.addBackLink(nb.ID, newID, l); err != nil {
				return err
			}
		}
		if len(candidates) > 0 {
			cur = candidates[0].ID
		}
	}

	if level > topLayer {
		s.graph.SetEntryPoint(newID)
		if err := s.graph.SetNumLayers(uint16(level + 1)); err != nil {
			return err
		}
	}
	return nil
}

// Update replaces an existing external ID's vector in place without
// rebuilding graph links — spec.md §4.4's explicit semantic
// simplification: callers should delete+reinsert when vector direction
// changes materially.
func (s *Segment) Update(extID string, v []float32) error {
	if len(v) != s.dim {
		return vortexerr.New(vortexerr.DimensionMismatch, "vector length does not match segment dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.extToInt[extID]
	if !ok {
		return vortexerr.New(vortexerr.NotFound, "external id not found")
	}
	if err := s.vectors.Put(id, v); err != nil {
		return err
	}
	s.cache.put(id, v)
	return nil
}

// Delete flips the deletion flag and removes extID from the ID maps; the
// graph is left untouched (soft delete only). Deleting a nonexistent ID
// is a no-op per CollectionWal replay policy (spec.md §4.6), surfaced to
// direct callers as NotFound.
func (s *Segment) Delete(extID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.extToInt[extID]
	if !ok {
		return vortexerr.New(vortexerr.NotFound, "external id not found")
	}
	s.vectors.Delete(id)
	s.cache.evict(id)
	delete(s.extToInt, extID)
	delete(s.intToExt, id)
	return nil
}

// Get returns the current vector for a live external ID.
func (s *Segment) Get(extID string) ([]float32, error) {
	s.mu.RLock()
	id, ok := s.extToInt[extID]
	s.mu.RUnlock()
	if !ok {
		return nil, vortexerr.New(vortexerr.NotFound, "external id not found")
	}
	v, ok := s.readVector(id)
	if !ok {
		return nil, vortexerr.New(vortexerr.NotFound, "external id not found")
	}
	return v, nil
}

// Search implements spec.md §4.4's search: descend from the entry point
// with ef=1 through the upper layers, then run a full search_layer(ef_search)
// at layer 0, draining best-first up to k live results.
func (s *Segment) Search(query []float32, k, efSearch int) ([]SearchResult, error) {
	if len(query) != s.dim {
		return nil, vortexerr.New(vortexerr.DimensionMismatch, "query length does not match segment dimension")
	}
	if k == 0 {
		return nil, nil
	}
	if efSearch <= 0 {
		efSearch = s.config.EfSearch
	}
	if efSearch < k {
		efSearch = k
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ep, ok := s.validEntryPoint()
	if !ok {
		return nil, nil
	}

	cur := ep
	for l := int(s.graph.NumLayers()) - 1; l >= 1; l-- {
		res, err := s.searchLayer(query, cur, 1, l)
		if err != nil {
			return nil, err
		}
		if best := res.Drain(); len(best) > 0 {
			cur = best[0].ID
		}
	}

	res, err := s.searchLayer(query, cur, efSearch, 0)
	if err != nil {
		return nil, err
	}
	drained := res.Drain()

	out := make([]SearchResult, 0, k)
	for _, n := range drained {
		ext, ok := s.intToExt[n.ID]
		if !ok {
			continue
		}
		out = append(out, SearchResult{ID: ext, Score: distance.OriginalScore(s.metric, n.Score)})
		if len(out) == k {
			break
		}
	}
	return out, nil
}

// Flush forces an OS-level flush of every mapped file: data, deletion
// bitmap, and graph links (which includes the header).
func (s *Segment) Flush() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.vectors.FlushData(); err != nil {
		return err
	}
	if err := s.vectors.FlushFlags(); err != nil {
		return err
	}
	return s.graph.Flush()
}

// Close unmaps and closes both backing files.
func (s *Segment) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	if err := s.vectors.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.graph.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
