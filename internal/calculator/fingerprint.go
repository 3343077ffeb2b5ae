package calculator

import (
	"encoding/hex"
	"sort"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/crypto/blake2b"
	"google.golang.org/protobuf/encoding/protowire"
)

// fingerprintVersion is bumped whenever the canonical encoding changes, so
// stored digests from older encodings never match by accident.
const fingerprintVersion = 1

// Field numbers of the canonical input encoding.
const (
	fieldVersion     protowire.Number = 1
	fieldItem        protowire.Number = 2
	fieldParticipant protowire.Number = 3
	fieldAssignment  protowire.Number = 4

	fieldItemID        protowire.Number = 1
	fieldItemName      protowire.Number = 2
	fieldItemUnitPrice protowire.Number = 3
	fieldItemQuantity  protowire.Number = 4
	fieldItemTotal     protowire.Number = 5
	fieldItemKind      protowire.Number = 6

	fieldParticipantID   protowire.Number = 1
	fieldParticipantName protowire.Number = 2

	fieldAssignmentItem  protowire.Number = 1
	fieldAssignmentMode  protowire.Number = 2
	fieldAssignmentID    protowire.Number = 3
	fieldAssignmentCount protowire.Number = 4

	fieldCountID    protowire.Number = 1
	fieldCountUnits protowire.Number = 2
)

// CanonicalInput returns a deterministic binary encoding of a computation's
// inputs. Items and participants keep their input order since both are
// visible in the result; assignment contents are sorted by participant ID.
func CanonicalInput(items []LineItem, assignments map[string]Assignment, participants []Participant) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldVersion, protowire.VarintType)
	b = protowire.AppendVarint(b, fingerprintVersion)

	for _, item := range items {
		b = protowire.AppendTag(b, fieldItem, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeItem(item))
	}
	for _, p := range participants {
		var m []byte
		m = appendString(m, fieldParticipantID, p.ID)
		m = appendString(m, fieldParticipantName, p.Name)
		b = protowire.AppendTag(b, fieldParticipant, protowire.BytesType)
		b = protowire.AppendBytes(b, m)
	}
	for _, item := range items {
		a, ok := assignments[item.ID]
		if !ok {
			continue
		}
		b = protowire.AppendTag(b, fieldAssignment, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeAssignment(item.ID, a))
	}
	return b
}

func encodeItem(item LineItem) []byte {
	var m []byte
	m = appendString(m, fieldItemID, item.ID)
	m = appendString(m, fieldItemName, item.Name)
	m = appendSint(m, fieldItemUnitPrice, item.UnitPrice)
	m = appendSint(m, fieldItemQuantity, item.Quantity)
	m = appendSint(m, fieldItemTotal, item.TotalPrice)
	m = appendString(m, fieldItemKind, string(item.Kind))
	return m
}

func encodeAssignment(itemID string, a Assignment) []byte {
	var m []byte
	m = appendString(m, fieldAssignmentItem, itemID)
	m = appendString(m, fieldAssignmentMode, string(a.Mode))
	switch a.Mode {
	case SplitCount:
		ids := make([]string, 0, len(a.Counts))
		for id := range a.Counts {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			var c []byte
			c = appendString(c, fieldCountID, id)
			c = appendSint(c, fieldCountUnits, a.Counts[id])
			m = protowire.AppendTag(m, fieldAssignmentCount, protowire.BytesType)
			m = protowire.AppendBytes(m, c)
		}
	default:
		for _, id := range uniqueSorted(a.Participants) {
			m = appendString(m, fieldAssignmentID, id)
		}
	}
	return m
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendSint(b []byte, num protowire.Number, v int64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeZigZag(v))
}

// CacheKey is a fast, non-cryptographic fingerprint of the inputs, used to
// memoize computations.
func CacheKey(items []LineItem, assignments map[string]Assignment, participants []Participant) string {
	sum := xxhash.Sum64(CanonicalInput(items, assignments, participants))
	return strconv.FormatUint(sum, 16)
}

// InputDigest is a BLAKE2b-256 digest of the inputs, stored with finalized
// results so they can be replayed and verified later.
func InputDigest(items []LineItem, assignments map[string]Assignment, participants []Participant) string {
	sum := blake2b.Sum256(CanonicalInput(items, assignments, participants))
	return hex.EncodeToString(sum[:])
}
