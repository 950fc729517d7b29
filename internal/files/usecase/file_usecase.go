package usecase

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/cryptellan/crypto-service/internal/audit/domain"
	"github.com/cryptellan/crypto-service/internal/crypto/engine"
	apperrors "github.com/cryptellan/crypto-service/internal/errors"
	keysDomain "github.com/cryptellan/crypto-service/internal/keys/domain"
)

const (
	defaultChunkSize = 64 * 1024
	minChunkSize     = 4 * 1024
	maxChunkSize     = 4 * 1024 * 1024

	defaultMaxFileSize = 10 << 30

	streamAlgorithm = string(keysDomain.AES256GCM)
)

// Config carries the streaming policy for the file encryption use case.
type Config struct {
	// ChunkSize is the plaintext bytes per chunk. Bounded to [4 KB, 4 MB].
	ChunkSize int

	// MaxFileSize bounds the total plaintext size of a single file.
	MaxFileSize int64
}

// fileUseCase implements the FileEncryptionUseCase interface.
type fileUseCase struct {
	keys   KeyMaterialSource
	audit  AuditRecorder
	cfg    Config
	logger *slog.Logger
}

// NewFileUseCase creates a new FileEncryptionUseCase instance.
func NewFileUseCase(keys KeyMaterialSource, audit AuditRecorder, cfg Config, logger *slog.Logger) FileEncryptionUseCase {
	if cfg.ChunkSize < minChunkSize || cfg.ChunkSize > maxChunkSize {
		cfg.ChunkSize = defaultChunkSize
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = defaultMaxFileSize
	}
	return &fileUseCase{
		keys:   keys,
		audit:  audit,
		cfg:    cfg,
		logger: logger,
	}
}

// Encrypt reads plaintext from src and writes the encrypted stream to dst.
func (f *fileUseCase) Encrypt(ctx context.Context, id keysDomain.KeyID, src io.Reader, dst io.Writer) error {
	err := f.encrypt(ctx, id, src, dst)
	f.record(ctx, auditDomain.OpFileEncrypt, id, err)
	return err
}

func (f *fileUseCase) encrypt(ctx context.Context, id keysDomain.KeyID, src io.Reader, dst io.Writer) error {
	kek, meta, err := f.keys.Material(ctx, id, keysDomain.OpWrap)
	if err != nil {
		return err
	}
	defer keysDomain.Zero(kek)

	// A fresh DEK per file; never reused even for identical content.
	dek, err := engine.GenerateSymmetricKey(32)
	if err != nil {
		return err
	}
	defer keysDomain.Zero(dek)

	wrappedDEK, err := wrapDEK(dek, kek, meta.Algorithm)
	if err != nil {
		return err
	}

	baseIV := make([]byte, engine.GCMNonceSize)
	if _, err := rand.Read(baseIV); err != nil {
		return apperrors.Wrap(err, "failed to generate base iv")
	}

	if err := writeHeader(dst, &fileHeader{
		Algorithm:  streamAlgorithm,
		KeyID:      id.String(),
		WrappedDEK: wrappedDEK,
		BaseIV:     baseIV,
		ChunkSize:  uint32(f.cfg.ChunkSize),
	}); err != nil {
		return err
	}

	aead, err := engine.NewAEAD(dek)
	if err != nil {
		return err
	}

	// Read one chunk ahead so the final chunk is known before it is sealed;
	// the final flag is authenticated, which makes truncation at a chunk
	// boundary detectable.
	current := make([]byte, f.cfg.ChunkSize)
	next := make([]byte, f.cfg.ChunkSize)

	currentLen, err := readChunk(src, current)
	if err != nil {
		return err
	}

	var total int64
	for index := uint64(0); ; index++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		total += int64(currentLen)
		if total > f.cfg.MaxFileSize {
			return apperrors.Wrap(apperrors.ErrSizeLimitExceeded, "file exceeds the size limit")
		}

		nextLen, err := readChunk(src, next)
		if err != nil {
			return err
		}
		final := nextLen == 0

		if err := writeChunkFrame(dst, aead, baseIV, index, final, current[:currentLen]); err != nil {
			return err
		}
		if final {
			return nil
		}

		current, next = next, current
		currentLen = nextLen
	}
}

// Decrypt reads an encrypted stream from src and writes the plaintext to dst.
func (f *fileUseCase) Decrypt(ctx context.Context, src io.Reader, dst io.Writer) error {
	id, err := f.decrypt(ctx, src, dst)
	f.record(ctx, auditDomain.OpFileDecrypt, id, err)
	return err
}

func (f *fileUseCase) decrypt(ctx context.Context, src io.Reader, dst io.Writer) (keysDomain.KeyID, error) {
	header, err := readHeader(src)
	if err != nil {
		return keysDomain.KeyID{}, err
	}
	if header.Algorithm != streamAlgorithm {
		return keysDomain.KeyID{}, apperrors.Wrap(apperrors.ErrInvalidInput, "unsupported stream algorithm")
	}
	if header.ChunkSize < minChunkSize || header.ChunkSize > maxChunkSize {
		return keysDomain.KeyID{}, apperrors.Wrap(apperrors.ErrInvalidInput, "malformed file header")
	}
	if len(header.BaseIV) != engine.GCMNonceSize {
		return keysDomain.KeyID{}, apperrors.Wrap(apperrors.ErrInvalidInput, "malformed file header")
	}

	id, err := keysDomain.ParseKeyID(header.KeyID)
	if err != nil {
		return keysDomain.KeyID{}, err
	}

	kek, meta, err := f.keys.Material(ctx, id, keysDomain.OpUnwrap)
	if err != nil {
		return id, err
	}
	defer keysDomain.Zero(kek)

	dek, err := unwrapDEK(header.WrappedDEK, kek, meta.Algorithm)
	if err != nil {
		return id, err
	}
	defer keysDomain.Zero(dek)

	aead, err := engine.NewAEAD(dek)
	if err != nil {
		return id, err
	}

	sealed := make([]byte, 0, int(header.ChunkSize)+engine.GCMTagSize)
	var total int64
	for index := uint64(0); ; index++ {
		if err := ctx.Err(); err != nil {
			return id, err
		}

		flag, sealedLen, err := readChunkFrame(src, int(header.ChunkSize))
		if err != nil {
			return id, err
		}

		sealed = sealed[:sealedLen]
		if _, err := io.ReadFull(src, sealed); err != nil {
			return id, apperrors.ErrIntegrity
		}

		plaintext, err := aead.Open(nil, chunkIV(header.BaseIV, index), sealed, chunkAAD(index, flag == finalChunkFlag))
		if err != nil {
			return id, apperrors.ErrIntegrity
		}

		total += int64(len(plaintext))
		if _, err := dst.Write(plaintext); err != nil {
			return id, apperrors.Wrap(err, "failed to write plaintext chunk")
		}

		if flag == finalChunkFlag {
			break
		}
	}

	// The final chunk must be the last thing in the stream.
	var trailer [1]byte
	if n, _ := src.Read(trailer[:]); n > 0 {
		return id, apperrors.ErrIntegrity
	}
	if header.OriginalSize != 0 && total != int64(header.OriginalSize) {
		return id, apperrors.ErrIntegrity
	}

	return id, nil
}

// readChunk fills buf from r, tolerating short reads. Returns 0 at EOF.
func readChunk(r io.Reader, buf []byte) (int, error) {
	n, err := io.ReadFull(r, buf)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return n, nil
	}
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to read plaintext chunk")
	}
	return n, nil
}

func writeChunkFrame(dst io.Writer, aead cipher.AEAD, baseIV []byte, index uint64, final bool, plaintext []byte) error {
	sealed := aead.Seal(nil, chunkIV(baseIV, index), plaintext, chunkAAD(index, final))

	frame := make([]byte, 0, 5+len(sealed))
	flag := byte(0)
	if final {
		flag = finalChunkFlag
	}
	frame = append(frame, flag)
	frame = binary.BigEndian.AppendUint32(frame, uint32(len(sealed)))
	frame = append(frame, sealed...)

	if _, err := dst.Write(frame); err != nil {
		return apperrors.Wrap(err, "failed to write encrypted chunk")
	}
	return nil
}

func readChunkFrame(src io.Reader, chunkSize int) (flag byte, sealedLen int, err error) {
	var head [5]byte
	if _, err := io.ReadFull(src, head[:]); err != nil {
		return 0, 0, apperrors.ErrIntegrity
	}

	flag = head[0]
	if flag != 0 && flag != finalChunkFlag {
		return 0, 0, apperrors.ErrIntegrity
	}

	sealedLen = int(binary.BigEndian.Uint32(head[1:]))
	if sealedLen < engine.GCMTagSize || sealedLen > chunkSize+engine.GCMTagSize {
		return 0, 0, apperrors.ErrIntegrity
	}
	return flag, sealedLen, nil
}

// chunkIV derives the per-chunk nonce: the chunk index XORed into the low
// eight bytes of the base IV. Indexes never repeat within a file, so nonces
// never repeat under the file's DEK.
func chunkIV(baseIV []byte, index uint64) []byte {
	iv := make([]byte, len(baseIV))
	copy(iv, baseIV)

	var counter [8]byte
	binary.BigEndian.PutUint64(counter[:], index)
	for i := 0; i < 8; i++ {
		iv[len(iv)-8+i] ^= counter[i]
	}
	return iv
}

// chunkAAD binds the chunk index and final flag, so chunks cannot be
// reordered, dropped or replayed across positions.
func chunkAAD(index uint64, final bool) []byte {
	aad := make([]byte, 9)
	binary.BigEndian.PutUint64(aad, index)
	if final {
		aad[8] = finalChunkFlag
	}
	return aad
}

// wrapDEK protects the DEK under the managed key: AES-GCM for symmetric keys,
// RSA-OAEP for RSA keys. The GCM wrap concatenates iv, tag and ciphertext.
func wrapDEK(dek, kek []byte, algorithm keysDomain.Algorithm) ([]byte, error) {
	switch {
	case algorithm.IsSymmetric():
		res, err := engine.EncryptGCM(dek, kek, nil)
		if err != nil {
			return nil, err
		}
		wrapped := make([]byte, 0, len(res.IV)+len(res.Tag)+len(res.Ciphertext))
		wrapped = append(wrapped, res.IV...)
		wrapped = append(wrapped, res.Tag...)
		wrapped = append(wrapped, res.Ciphertext...)
		return wrapped, nil

	case algorithm == keysDomain.RSA2048, algorithm == keysDomain.RSA3072, algorithm == keysDomain.RSA4096:
		priv, err := engine.ParseRSAPrivateKey(kek)
		if err != nil {
			return nil, err
		}
		return engine.EncryptOAEP(&priv.PublicKey, dek)
	}

	return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "key algorithm cannot wrap a file key")
}

func unwrapDEK(wrapped, kek []byte, algorithm keysDomain.Algorithm) ([]byte, error) {
	switch {
	case algorithm.IsSymmetric():
		if len(wrapped) <= engine.GCMNonceSize+engine.GCMTagSize {
			return nil, apperrors.ErrIntegrity
		}
		iv := wrapped[:engine.GCMNonceSize]
		tag := wrapped[engine.GCMNonceSize : engine.GCMNonceSize+engine.GCMTagSize]
		ciphertext := wrapped[engine.GCMNonceSize+engine.GCMTagSize:]
		return engine.DecryptGCM(ciphertext, kek, iv, tag, nil)

	case algorithm == keysDomain.RSA2048, algorithm == keysDomain.RSA3072, algorithm == keysDomain.RSA4096:
		priv, err := engine.ParseRSAPrivateKey(kek)
		if err != nil {
			return nil, err
		}
		return engine.DecryptOAEP(priv, wrapped)
	}

	return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "key algorithm cannot unwrap a file key")
}

func (f *fileUseCase) record(ctx context.Context, operation string, id keysDomain.KeyID, opErr error) {
	if f.audit == nil {
		return
	}

	entry := &auditDomain.Entry{
		ID:        uuid.Must(uuid.NewV7()),
		Operation: operation,
		Success:   opErr == nil,
		CreatedAt: time.Now().UTC(),
	}
	auditDomain.RequestInfoFrom(ctx).Apply(entry)
	if !id.IsZero() {
		entry.KeyID = id.String()
	}
	if opErr != nil {
		entry.ErrorCode = apperrors.Code(opErr)
	}

	if err := f.audit.Record(ctx, entry); err != nil {
		f.logger.Error("failed to record audit entry",
			slog.String("operation", operation),
			slog.String("error", err.Error()))
	}
}
