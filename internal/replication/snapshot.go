package replication

import (
	"encoding/json"
	"fmt"

	"nmeshed/internal/clock"
	"nmeshed/internal/wire"
)

// snapshotRecord is the JSON-serializable form of a KeyRecord, grounded on
// the teacher's snapshot.go (a plain json.Marshal of the in-memory map).
type snapshotRecord struct {
	Value         []byte       `json:"value,omitempty"`
	Tombstone     bool         `json:"tombstone,omitempty"`
	LastTimestamp clock.Hybrid `json:"last_timestamp"`
	LastWriter    string       `json:"last_writer"`
	LastSeq       uint64       `json:"last_seq"`
}

type snapshotPayload struct {
	Records map[string]snapshotRecord `json:"records"`
	Vector  clock.VectorClock         `json:"vector"`
}

// GetBinarySnapshot serializes every KeyRecord plus the local vector heads
// into a single Sync(snapshot) wire frame, ready for a newly-joined peer
// to bootstrap from.
func (c *Core) GetBinarySnapshot() []byte {
	c.mu.Lock()
	records := make(map[string]snapshotRecord, len(c.records))
	for k, rec := range c.records {
		records[k] = snapshotRecord{
			Value:         rec.Value,
			Tombstone:     rec.Tombstone,
			LastTimestamp: rec.LastTimestamp,
			LastWriter:    rec.LastWriter,
			LastSeq:       rec.LastSeq,
		}
	}
	c.mu.Unlock()

	vector := c.tracker.Heads()

	payload := snapshotPayload{Records: records, Vector: vector}
	data, err := json.Marshal(payload)
	if err != nil {
		// Values are opaque byte blobs; json.Marshal over a map of
		// primitives and byte slices cannot fail in practice.
		panic(fmt.Sprintf("replication: marshal snapshot: %v", err))
	}

	sync := wire.SyncFrame{Kind: wire.SyncSnapshot, Snapshot: data}
	frame := wire.Frame{Type: wire.TypeSync, Payload: wire.EncodeSync(sync)}
	return frame.Encode()
}

// ApplySnapshot merges a snapshot received from peer into the core. Each
// record is run through the same acceptance logic as a single remote op,
// so a snapshot can never resurrect state that this core has already
// superseded. The sender's full reported vector is recorded against its
// peer id for horizon computation.
func (c *Core) ApplySnapshot(peer string, snapshot []byte) error {
	var payload snapshotPayload
	if err := json.Unmarshal(snapshot, &payload); err != nil {
		return fmt.Errorf("replication: unmarshal snapshot: %w", err)
	}

	for key, rec := range payload.Records {
		c.ApplyRemote(wire.OpFrame{
			Key:       key,
			Timestamp: rec.LastTimestamp,
			Writer:    rec.LastWriter,
			Seq:       rec.LastSeq,
			IsDelete:  rec.Tombstone,
			Value:     rec.Value,
		})
	}

	c.tracker.RecordPeer(peer, payload.Vector)
	return nil
}
