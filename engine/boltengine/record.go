package boltengine

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/lightningnetwork/lnd/tlv"
)

// recordKind identifies a journal entry.
type recordKind uint8

const (
	kindPut recordKind = iota + 1
	kindDelete
	kindCommit
	kindCheckpoint
)

// String returns a human readable name for the kind.
func (k recordKind) String() string {
	switch k {
	case kindPut:
		return "put"
	case kindDelete:
		return "delete"
	case kindCommit:
		return "commit"
	case kindCheckpoint:
		return "checkpoint"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

const (
	typeLSN      tlv.Type = 0
	typeKind     tlv.Type = 2
	typeTime     tlv.Type = 4
	typeFile     tlv.Type = 6
	typeKeyLen   tlv.Type = 8
	typeValueLen tlv.Type = 10

	// frameHeaderSize is the size of the length and checksum prefix of
	// every record.
	frameHeaderSize = 8

	// maxRecordSize bounds the payload of a single record so that a
	// corrupt length prefix cannot make us allocate unbounded memory.
	maxRecordSize = 1 << 16
)

var (
	// errCorruptRecord is returned when a record fails its checksum or
	// cannot be parsed.
	errCorruptRecord = errors.New("corrupt journal record")
)

// record is a single journal entry. Only the shape of a write is journaled,
// key and value bytes never leave the database file.
type record struct {
	lsn       uint64
	kind      recordKind
	timestamp uint64
	file      []byte
	keyLen    uint32
	valueLen  uint32
}

func (r *record) stream() (*tlv.Stream, *uint8) {
	kind := uint8(r.kind)

	return tlv.MustNewStream(
		tlv.MakePrimitiveRecord(typeLSN, &r.lsn),
		tlv.MakePrimitiveRecord(typeKind, &kind),
		tlv.MakePrimitiveRecord(typeTime, &r.timestamp),
		tlv.MakePrimitiveRecord(typeFile, &r.file),
		tlv.MakePrimitiveRecord(typeKeyLen, &r.keyLen),
		tlv.MakePrimitiveRecord(typeValueLen, &r.valueLen),
	), &kind
}

// encode writes the framed record: a big endian payload length, a CRC32 of
// the payload and the TLV payload itself.
func (r *record) encode(w io.Writer) (int, error) {
	stream, _ := r.stream()

	var payload bytes.Buffer
	if err := stream.Encode(&payload); err != nil {
		return 0, err
	}

	var header [frameHeaderSize]byte
	binary.BigEndian.PutUint32(header[:4], uint32(payload.Len()))
	binary.BigEndian.PutUint32(
		header[4:], crc32.ChecksumIEEE(payload.Bytes()),
	)

	n, err := w.Write(header[:])
	if err != nil {
		return n, err
	}
	m, err := w.Write(payload.Bytes())

	return n + m, err
}

// decodeRecord reads one framed record. io.EOF is returned at a clean end of
// input, errCorruptRecord for a torn or damaged record.
func decodeRecord(rd io.Reader) (*record, int, error) {
	var header [frameHeaderSize]byte
	n, err := io.ReadFull(rd, header[:])
	switch {
	case err == io.EOF:
		return nil, 0, io.EOF

	case err != nil:
		return nil, n, fmt.Errorf("%w: short header", errCorruptRecord)
	}

	size := binary.BigEndian.Uint32(header[:4])
	if size > maxRecordSize {
		return nil, n, fmt.Errorf("%w: record of %d bytes",
			errCorruptRecord, size)
	}

	payload := make([]byte, size)
	m, err := io.ReadFull(rd, payload)
	n += m
	if err != nil {
		return nil, n, fmt.Errorf("%w: short payload", errCorruptRecord)
	}

	if crc32.ChecksumIEEE(payload) != binary.BigEndian.Uint32(header[4:]) {
		return nil, n, fmt.Errorf("%w: checksum mismatch",
			errCorruptRecord)
	}

	r := &record{}
	stream, kind := r.stream()
	if err := stream.Decode(bytes.NewReader(payload)); err != nil {
		return nil, n, fmt.Errorf("%w: %v", errCorruptRecord, err)
	}
	r.kind = recordKind(*kind)

	return r, n, nil
}
