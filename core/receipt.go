package core

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"time"

	"github.com/google/uuid"
	"lukechampine.com/blake3"

	"yieldpool/core/types"
	"yieldpool/crypto"
)

var keyReceiptHead = []byte("core/receipts/head")

// Digest is a blake3-256 receipt digest.
type Digest [32]byte

func (d Digest) Hex() string { return hex.EncodeToString(d[:]) }

func (d Digest) IsZero() bool { return d == Digest{} }

// MarshalText renders the digest as hex.
func (d Digest) MarshalText() ([]byte, error) { return []byte(d.Hex()), nil }

// UnmarshalText parses a hex digest.
func (d *Digest) UnmarshalText(text []byte) error {
	decoded, err := hex.DecodeString(string(text))
	if err != nil {
		return fmt.Errorf("digest: %w", err)
	}
	if len(decoded) != len(d) {
		return fmt.Errorf("digest: expected %d bytes, got %d", len(d), len(decoded))
	}
	copy(d[:], decoded)
	return nil
}

// Receipt is the record of one committed operation. Digest chains every
// receipt to its predecessor so the audit trail can be verified offline.
type Receipt struct {
	ID        uuid.UUID      `json:"id"`
	Sequence  uint64         `json:"sequence"`
	Operation string         `json:"operation"`
	Caller    crypto.Address `json:"caller"`
	Timestamp time.Time      `json:"timestamp"`
	Events    []*types.Event `json:"events"`
	Prev      Digest         `json:"prev"`
	Digest    Digest         `json:"digest"`
}

type chainHead struct {
	Sequence uint64
	Digest   [32]byte
}

func writeField(h hash.Hash, data []byte) {
	var prefix [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(prefix[:], uint64(len(data)))
	h.Write(prefix[:n])
	h.Write(data)
}

// ComputeDigest hashes the receipt contents together with the previous
// digest. Event attributes are hashed in key order.
func (r *Receipt) ComputeDigest() Digest {
	h := blake3.New(32, nil)
	h.Write(r.Prev[:])
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], r.Sequence)
	h.Write(buf[:])
	h.Write(r.ID[:])
	writeField(h, []byte(r.Operation))
	h.Write(r.Caller[:])
	binary.BigEndian.PutUint64(buf[:], uint64(r.Timestamp.Unix()))
	h.Write(buf[:])
	for _, evt := range r.Events {
		writeField(h, []byte(evt.Type))
		for _, key := range evt.SortedKeys() {
			writeField(h, []byte(key))
			writeField(h, []byte(evt.Attributes[key]))
		}
	}
	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}

// VerifyChain checks that receipts form an unbroken digest chain. The first
// receipt is trusted for its Prev value.
func VerifyChain(receipts []*Receipt) error {
	for i, r := range receipts {
		if r == nil {
			return fmt.Errorf("receipt %d: missing", i)
		}
		if got := r.ComputeDigest(); got != r.Digest {
			return fmt.Errorf("receipt %d (seq %d): digest mismatch", i, r.Sequence)
		}
		if i == 0 {
			continue
		}
		prev := receipts[i-1]
		if r.Prev != prev.Digest {
			return fmt.Errorf("receipt %d (seq %d): broken link", i, r.Sequence)
		}
		if r.Sequence != prev.Sequence+1 {
			return fmt.Errorf("receipt %d: sequence gap %d -> %d", i, prev.Sequence, r.Sequence)
		}
	}
	return nil
}

func (n *Node) loadHead() (chainHead, error) {
	var head chainHead
	if _, err := n.state.KVGet(keyReceiptHead, &head); err != nil {
		return chainHead{}, fmt.Errorf("core: load receipt head: %w", err)
	}
	return head, nil
}

// seal builds the receipt of the running operation and advances the chain
// head in the same transaction.
func (n *Node) seal(op string, caller crypto.Address, evts []*types.Event) (*Receipt, error) {
	head, err := n.loadHead()
	if err != nil {
		return nil, err
	}
	if evts == nil {
		evts = []*types.Event{}
	}
	receipt := &Receipt{
		ID:        uuid.New(),
		Sequence:  head.Sequence + 1,
		Operation: op,
		Caller:    caller,
		Timestamp: n.now().UTC().Truncate(time.Second),
		Events:    evts,
		Prev:      Digest(head.Digest),
	}
	receipt.Digest = receipt.ComputeDigest()
	next := chainHead{Sequence: receipt.Sequence, Digest: receipt.Digest}
	if err := n.state.KVPut(keyReceiptHead, &next); err != nil {
		return nil, err
	}
	return receipt, nil
}

// Head returns the sequence and digest of the last committed receipt.
func (n *Node) Head() (uint64, Digest, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	head, err := n.loadHead()
	if err != nil {
		return 0, Digest{}, err
	}
	return head.Sequence, Digest(head.Digest), nil
}
