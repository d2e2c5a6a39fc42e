// Package collection implements CollectionWal: the domain-record layer
// spec.md §4.6 wraps around internal/wal.Wal. Every mutation to a
// collection (create the index, add a vector, delete a vector, delete
// the whole collection) is framed as one domain record and appended to
// the WAL before being applied in memory, so a crash can always be
// replayed back to the same state. Grounded on
// _examples/original_source/vortex-server/src/wal_manager.rs's
// WalRecord enum and CollectionWalManager.
package collection

import (
	"github.com/monishSR/vortex/internal/hnsw"
)

// Kind discriminates the domain record framed in the WAL. Go has no sum
// types, so the original's WalRecord enum becomes a Kind tag plus one
// optional payload struct per variant — the same discriminated-union
// idiom msgpack/JSON encoders expect from Go.
type Kind uint8

const (
	KindCreateIndex Kind = iota
	KindAddVector
	KindDeleteVector
	KindDeleteCollection
)

func (k Kind) String() string {
	switch k {
	case KindCreateIndex:
		return "CreateIndex"
	case KindAddVector:
		return "AddVector"
	case KindDeleteVector:
		return "DeleteVector"
	case KindDeleteCollection:
		return "DeleteCollection"
	default:
		return "Unknown"
	}
}

// CreateIndexPayload mirrors WalRecord::CreateIndex.
type CreateIndexPayload struct {
	IndexName  string      `msgpack:"index_name"`
	Config     hnsw.Config `msgpack:"config"`
	Metric     string      `msgpack:"metric"`
	Dimensions uint32      `msgpack:"dimensions"`
	Capacity   uint64      `msgpack:"capacity"`
}

// AddVectorPayload mirrors WalRecord::AddVector. Metadata is the
// optional payload spec.md §4.6 names in the record schema itself
// (`AddVector { id, vector, metadata? }`) — it rides in the same WAL
// record as the vector, not as a separate write.
type AddVectorPayload struct {
	VectorID string    `msgpack:"vector_id"`
	Vector   []float32 `msgpack:"vector"`
	Metadata []byte    `msgpack:"metadata,omitempty"`
}

// DeleteVectorPayload mirrors WalRecord::DeleteVector.
type DeleteVectorPayload struct {
	VectorID string `msgpack:"vector_id"`
}

// DeleteCollectionPayload is a supplemented record (absent from
// wal_manager.rs, named in spec.md's component list) covering whole-
// collection teardown.
type DeleteCollectionPayload struct {
	CollectionName string `msgpack:"collection_name"`
}

// Record is one framed WAL domain entry. Exactly one payload field is
// populated, selected by Kind.
type Record struct {
	Kind             Kind                     `msgpack:"kind"`
	CreateIndex      *CreateIndexPayload      `msgpack:"create_index,omitempty"`
	AddVector        *AddVectorPayload        `msgpack:"add_vector,omitempty"`
	DeleteVector     *DeleteVectorPayload     `msgpack:"delete_vector,omitempty"`
	DeleteCollection *DeleteCollectionPayload `msgpack:"delete_collection,omitempty"`
}

func newCreateIndexRecord(name string, cfg hnsw.Config, metric string, dim uint32, capacity uint64) Record {
	return Record{Kind: KindCreateIndex, CreateIndex: &CreateIndexPayload{
		IndexName: name, Config: cfg, Metric: metric, Dimensions: dim, Capacity: capacity,
	}}
}

func newAddVectorRecord(id string, v []float32, metadata []byte) Record {
	return Record{Kind: KindAddVector, AddVector: &AddVectorPayload{VectorID: id, Vector: v, Metadata: metadata}}
}

func newDeleteVectorRecord(id string) Record {
	return Record{Kind: KindDeleteVector, DeleteVector: &DeleteVectorPayload{VectorID: id}}
}

func newDeleteCollectionRecord(name string) Record {
	return Record{Kind: KindDeleteCollection, DeleteCollection: &DeleteCollectionPayload{CollectionName: name}}
}
