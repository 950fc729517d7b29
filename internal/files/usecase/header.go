package usecase

import (
	"encoding/binary"
	"io"

	apperrors "github.com/cryptellan/crypto-service/internal/errors"
)

// File stream layout:
//
//	magic "CSF1" | version | algorithm LP | key id LP | wrapped DEK LP |
//	base IV LP | chunk size uint32 | original size uint64
//
// followed by chunk frames:
//
//	flag byte (1 = final) | sealed length uint32 | ciphertext+tag
//
// LP fields carry a 4-byte big-endian length prefix. All integers are
// big-endian.
const (
	headerMagic   = "CSF1"
	headerVersion = byte(1)

	finalChunkFlag = byte(1)

	// maxHeaderField bounds length-prefixed header fields so a corrupt
	// length cannot trigger a huge allocation.
	maxHeaderField = 64 * 1024
)

// fileHeader carries the parameters needed to decrypt a stream.
type fileHeader struct {
	Algorithm    string
	KeyID        string
	WrappedDEK   []byte
	BaseIV       []byte
	ChunkSize    uint32
	OriginalSize uint64
}

func writeHeader(w io.Writer, h *fileHeader) error {
	buf := make([]byte, 0, 256)
	buf = append(buf, headerMagic...)
	buf = append(buf, headerVersion)
	buf = appendLengthPrefixed(buf, []byte(h.Algorithm))
	buf = appendLengthPrefixed(buf, []byte(h.KeyID))
	buf = appendLengthPrefixed(buf, h.WrappedDEK)
	buf = appendLengthPrefixed(buf, h.BaseIV)
	buf = binary.BigEndian.AppendUint32(buf, h.ChunkSize)
	buf = binary.BigEndian.AppendUint64(buf, h.OriginalSize)

	if _, err := w.Write(buf); err != nil {
		return apperrors.Wrap(err, "failed to write file header")
	}
	return nil
}

func readHeader(r io.Reader) (*fileHeader, error) {
	fixed := make([]byte, len(headerMagic)+1)
	if _, err := io.ReadFull(r, fixed); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "stream is not an encrypted file")
	}
	if string(fixed[:len(headerMagic)]) != headerMagic {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "stream is not an encrypted file")
	}
	if fixed[len(headerMagic)] != headerVersion {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "unsupported file format version")
	}

	var h fileHeader

	algorithm, err := readLengthPrefixed(r)
	if err != nil {
		return nil, err
	}
	h.Algorithm = string(algorithm)

	keyID, err := readLengthPrefixed(r)
	if err != nil {
		return nil, err
	}
	h.KeyID = string(keyID)

	if h.WrappedDEK, err = readLengthPrefixed(r); err != nil {
		return nil, err
	}
	if h.BaseIV, err = readLengthPrefixed(r); err != nil {
		return nil, err
	}

	tail := make([]byte, 12)
	if _, err := io.ReadFull(r, tail); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "truncated file header")
	}
	h.ChunkSize = binary.BigEndian.Uint32(tail[:4])
	h.OriginalSize = binary.BigEndian.Uint64(tail[4:])

	return &h, nil
}

func appendLengthPrefixed(buf, data []byte) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(data)))
	return append(buf, data...)
}

func readLengthPrefixed(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "truncated file header")
	}
	length := binary.BigEndian.Uint32(lenBuf[:])
	if length > maxHeaderField {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "malformed file header")
	}
	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "truncated file header")
	}
	return data, nil
}
