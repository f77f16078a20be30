// Package fingerprint implements the persistent Fingerprint Record store used
// for up-to-date checks (spec §3 "Fingerprint Record", §6 persisted layout).
package fingerprint

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sort"
	"time"
)

// magic identifies the on-disk record format. Any other leading bytes mean
// the file is corrupt or foreign, demoting the record to "none found" per
// spec §7's Store-error policy.
var magic = [4]byte{'G', 'R', 'V', '1'}

const schemaVersion uint16 = 1

// digestSize is the fixed width of a stored digest: a raw SHA-256 sum.
const digestSize = 32

// FileDigest pairs a declared input or output path with its content digest
// at the time the task last completed successfully.
type FileDigest struct {
	Path   string
	Digest string // hex-encoded, digestSize*2 characters
}

// Record is one Fingerprint Record: spec §3's
// {task_hash, input_digests, output_digests, duration_ms, completed_at}.
type Record struct {
	TaskHash    string // hex-encoded, digestSize*2 characters
	Inputs      []FileDigest
	Outputs     []FileDigest
	DurationMS  uint64
	CompletedAt time.Time
}

// Encode serializes r into the spec §6 binary layout: magic, schema version,
// fixed-width task hash, length-prefixed input then output entries, duration,
// completion timestamp.
func Encode(r *Record) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(magic[:])

	if err := binary.Write(&buf, binary.BigEndian, schemaVersion); err != nil {
		return nil, err
	}

	taskHashBytes, err := hex.DecodeString(r.TaskHash)
	if err != nil || len(taskHashBytes) != digestSize {
		return nil, fmt.Errorf("fingerprint: task hash must be a %d-byte hex digest", digestSize)
	}
	buf.Write(taskHashBytes)

	writeEntries := func(entries []FileDigest) error {
		if err := binary.Write(&buf, binary.BigEndian, uint16(len(entries))); err != nil {
			return err
		}
		for _, e := range entries {
			pathBytes := []byte(e.Path)
			if len(pathBytes) > 0xFFFF {
				return fmt.Errorf("fingerprint: path %q too long to encode", e.Path)
			}
			if err := binary.Write(&buf, binary.BigEndian, uint16(len(pathBytes))); err != nil {
				return err
			}
			buf.Write(pathBytes)

			digestBytes, err := hex.DecodeString(e.Digest)
			if err != nil || len(digestBytes) != digestSize {
				return fmt.Errorf("fingerprint: digest for %q must be a %d-byte hex digest", e.Path, digestSize)
			}
			buf.Write(digestBytes)
		}
		return nil
	}

	if err := writeEntries(r.Inputs); err != nil {
		return nil, err
	}
	if err := writeEntries(r.Outputs); err != nil {
		return nil, err
	}

	if err := binary.Write(&buf, binary.BigEndian, r.DurationMS); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, uint64(r.CompletedAt.UnixMilli())); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode is the inverse of Encode. Round-tripping Encode then Decode is the
// identity for every Record (spec §8 invariant 6).
func Decode(data []byte) (*Record, error) {
	buf := bytes.NewReader(data)

	var gotMagic [4]byte
	if _, err := buf.Read(gotMagic[:]); err != nil {
		return nil, fmt.Errorf("fingerprint: %w", err)
	}
	if gotMagic != magic {
		return nil, fmt.Errorf("fingerprint: bad magic bytes, record is corrupt or foreign")
	}

	var version uint16
	if err := binary.Read(buf, binary.BigEndian, &version); err != nil {
		return nil, err
	}
	if version != schemaVersion {
		return nil, fmt.Errorf("fingerprint: unsupported schema version %d", version)
	}

	taskHashBytes := make([]byte, digestSize)
	if _, err := buf.Read(taskHashBytes); err != nil {
		return nil, err
	}

	r := &Record{TaskHash: hex.EncodeToString(taskHashBytes)}

	readEntries := func() ([]FileDigest, error) {
		var count uint16
		if err := binary.Read(buf, binary.BigEndian, &count); err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, nil
		}
		entries := make([]FileDigest, 0, count)
		for i := 0; i < int(count); i++ {
			var pathLen uint16
			if err := binary.Read(buf, binary.BigEndian, &pathLen); err != nil {
				return nil, err
			}
			pathBytes := make([]byte, pathLen)
			if _, err := buf.Read(pathBytes); err != nil {
				return nil, err
			}
			digestBytes := make([]byte, digestSize)
			if _, err := buf.Read(digestBytes); err != nil {
				return nil, err
			}
			entries = append(entries, FileDigest{Path: string(pathBytes), Digest: hex.EncodeToString(digestBytes)})
		}
		return entries, nil
	}

	var err error
	if r.Inputs, err = readEntries(); err != nil {
		return nil, err
	}
	if r.Outputs, err = readEntries(); err != nil {
		return nil, err
	}

	if err := binary.Read(buf, binary.BigEndian, &r.DurationMS); err != nil {
		return nil, err
	}
	var completedAtMS uint64
	if err := binary.Read(buf, binary.BigEndian, &completedAtMS); err != nil {
		return nil, err
	}
	r.CompletedAt = time.UnixMilli(int64(completedAtMS)).UTC()

	return r, nil
}

// SortEntries orders FileDigest slices by path so comparisons and task-hash
// composition are order-independent, per spec §3's "sorted input path list".
func SortEntries(entries []FileDigest) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
}
