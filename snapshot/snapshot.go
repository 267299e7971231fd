// Package snapshot frames serialized worlds into self-checking files.
//
// A snapshot is a fixed 48-byte header followed by the payload:
//
//	[magic "KURA"][version u8][format u8][compression u8][reserved u8]
//	[id 16 bytes][raw size u64][payload size u64][xxhash64 of payload u64]
//
// Integers are little-endian. The payload is a kura stream in the header's
// format, compressed with the header's compression.
package snapshot

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/edwinsyarief/kura"
	"github.com/edwinsyarief/kura/codec/msgpack"
	"github.com/edwinsyarief/kura/codec/yamlcodec"
)

// Version is the header version written by this package.
const Version = 1

// HeaderSize is the encoded size of a Header.
const HeaderSize = 48

// MaxSize bounds both the raw and the stored payload size of a snapshot.
const MaxSize = 1 << 30

var magic = [4]byte{'K', 'U', 'R', 'A'}

var (
	// ErrBadMagic reports input that is not a snapshot.
	ErrBadMagic = errors.New("snapshot: bad magic")
	// ErrVersion reports a header version this package cannot read.
	ErrVersion = errors.New("snapshot: unsupported version")
	// ErrChecksum reports a payload that does not match its checksum.
	ErrChecksum = errors.New("snapshot: checksum mismatch")
	// ErrTooLarge reports a payload larger than MaxSize.
	ErrTooLarge = errors.New("snapshot: payload too large")
)

// Format identifies the codec of a snapshot payload.
type Format uint8

const (
	FormatMsgpack Format = 1
	FormatYAML    Format = 2
)

func (f Format) String() string {
	switch f {
	case FormatMsgpack:
		return "msgpack"
	case FormatYAML:
		return "yaml"
	}
	return "unknown"
}

// ParseFormat maps a configuration name to a Format.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "msgpack":
		return FormatMsgpack, nil
	case "yaml":
		return FormatYAML, nil
	}
	return 0, errors.Errorf("snapshot: unknown format %q", s)
}

// Header describes a snapshot payload.
type Header struct {
	ID          uuid.UUID
	RawSize     uint64
	Size        uint64
	Checksum    uint64
	Version     uint8
	Format      Format
	Compression Compression
}

// MarshalBinary encodes the header.
func (h Header) MarshalBinary() ([]byte, error) {
	b := make([]byte, HeaderSize)
	copy(b[0:4], magic[:])
	b[4] = h.Version
	b[5] = byte(h.Format)
	b[6] = byte(h.Compression)
	copy(b[8:24], h.ID[:])
	binary.LittleEndian.PutUint64(b[24:], h.RawSize)
	binary.LittleEndian.PutUint64(b[32:], h.Size)
	binary.LittleEndian.PutUint64(b[40:], h.Checksum)
	return b, nil
}

// UnmarshalBinary decodes a header.
func (h *Header) UnmarshalBinary(b []byte) error {
	if len(b) < HeaderSize {
		return errors.Wrapf(io.ErrUnexpectedEOF, "snapshot: header is %d bytes", len(b))
	}
	if !bytes.Equal(b[0:4], magic[:]) {
		return ErrBadMagic
	}
	h.Version = b[4]
	if h.Version != Version {
		return errors.Wrapf(ErrVersion, "version %d", h.Version)
	}
	h.Format = Format(b[5])
	h.Compression = Compression(b[6])
	copy(h.ID[:], b[8:24])
	h.RawSize = binary.LittleEndian.Uint64(b[24:])
	h.Size = binary.LittleEndian.Uint64(b[32:])
	h.Checksum = binary.LittleEndian.Uint64(b[40:])
	return nil
}

type options struct {
	id          uuid.UUID
	format      Format
	compression Compression
}

// Option configures Write.
type Option func(*options)

// WithFormat selects the payload codec. The default is msgpack.
func WithFormat(f Format) Option {
	return func(o *options) { o.format = f }
}

// WithCompression selects the payload compression. The default is zstd.
func WithCompression(c Compression) Option {
	return func(o *options) { o.compression = c }
}

// WithID sets the snapshot id instead of generating a random one.
func WithID(id uuid.UUID) Option {
	return func(o *options) { o.id = id }
}

// Encode serializes world into a payload of the given format.
func Encode(world *kura.World, f Format) ([]byte, error) {
	var buf bytes.Buffer
	switch f {
	case FormatMsgpack:
		enc := msgpack.NewEncoder(&buf)
		if err := kura.Serialize(world, enc); err != nil {
			return nil, err
		}
		if err := enc.Flush(); err != nil {
			return nil, errors.Wrap(err, "snapshot: msgpack")
		}
	case FormatYAML:
		enc := yamlcodec.NewEncoder(&buf)
		if err := kura.Serialize(world, enc); err != nil {
			return nil, err
		}
		if err := enc.Flush(); err != nil {
			return nil, errors.Wrap(err, "snapshot: yaml")
		}
	default:
		return nil, errors.Errorf("snapshot: unknown format %d", f)
	}
	return buf.Bytes(), nil
}

// Decode reconstructs a payload of the given format into world.
func Decode(world *kura.World, f Format, payload []byte) error {
	var dec kura.Decoder
	switch f {
	case FormatMsgpack:
		dec = msgpack.NewDecoder(bytes.NewReader(payload))
	case FormatYAML:
		d, err := yamlcodec.NewDecoder(bytes.NewReader(payload))
		if err != nil {
			return err
		}
		dec = d
	default:
		return errors.Errorf("snapshot: unknown format %d", f)
	}
	return kura.Deserialize(world, dec)
}

// Pack frames an encoded payload.
func Pack(w io.Writer, payload []byte, opts ...Option) (Header, error) {
	o := options{format: FormatMsgpack, compression: CompressionZstd}
	for _, opt := range opts {
		opt(&o)
	}
	if len(payload) > MaxSize {
		return Header{}, errors.Wrapf(ErrTooLarge, "%d bytes", len(payload))
	}
	if o.id == uuid.Nil {
		o.id = uuid.New()
	}
	data, applied, err := compress(payload, o.compression)
	if err != nil {
		return Header{}, err
	}
	h := Header{
		ID:          o.id,
		Version:     Version,
		Format:      o.format,
		Compression: applied,
		RawSize:     uint64(len(payload)),
		Size:        uint64(len(data)),
		Checksum:    xxhash.Sum64(data),
	}
	hb, _ := h.MarshalBinary()
	if _, err := w.Write(hb); err != nil {
		return Header{}, errors.Wrap(err, "snapshot: write header")
	}
	if _, err := w.Write(data); err != nil {
		return Header{}, errors.Wrap(err, "snapshot: write payload")
	}
	return h, nil
}

// Unpack reads a snapshot and returns its header and decompressed payload.
func Unpack(r io.Reader) (Header, []byte, error) {
	h, err := ReadHeader(r)
	if err != nil {
		return Header{}, nil, err
	}
	if h.Size > MaxSize || h.RawSize > MaxSize {
		return h, nil, errors.Wrapf(ErrTooLarge, "header declares %d bytes stored, %d raw", h.Size, h.RawSize)
	}
	// The buffer grows with the data actually read, not with the header's claim.
	var buf bytes.Buffer
	if _, err := io.CopyN(&buf, r, int64(h.Size)); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return h, nil, errors.Wrap(err, "snapshot: read payload")
	}
	data := buf.Bytes()
	if sum := xxhash.Sum64(data); sum != h.Checksum {
		return h, nil, errors.Wrapf(ErrChecksum, "want %016x, got %016x", h.Checksum, sum)
	}
	payload, err := decompress(data, h.Compression, h.RawSize)
	if err != nil {
		return h, nil, err
	}
	return h, payload, nil
}

// ReadHeader reads and validates a snapshot header.
func ReadHeader(r io.Reader) (Header, error) {
	b := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, b); err != nil {
		return Header{}, errors.Wrap(err, "snapshot: read header")
	}
	var h Header
	if err := h.UnmarshalBinary(b); err != nil {
		return Header{}, err
	}
	return h, nil
}

// Write serializes world and writes it as a snapshot.
func Write(w io.Writer, world *kura.World, opts ...Option) (Header, error) {
	o := options{format: FormatMsgpack}
	for _, opt := range opts {
		opt(&o)
	}
	payload, err := Encode(world, o.format)
	if err != nil {
		return Header{}, err
	}
	return Pack(w, payload, opts...)
}

// Read reads a snapshot and reconstructs it into world.
func Read(r io.Reader, world *kura.World) (Header, error) {
	h, payload, err := Unpack(r)
	if err != nil {
		return h, err
	}
	return h, Decode(world, h.Format, payload)
}
