// Package backup encodes tenant snapshots. A payload is JSON, compressed
// with the chosen codec; the checksum is the SHA-256 of the JSON.
package backup

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

const FormatVersion = "2"

type Compression string

const (
	None Compression = "none"
	Gzip Compression = "gzip"
	Zstd Compression = "zstd"
)

var (
	ErrChecksum           = errors.New("backup checksum mismatch")
	ErrUnknownCompression = errors.New("unknown compression type")
)

type Totals struct {
	Tasks      int `json:"tasks"`
	Filters    int `json:"filters"`
	Statistics int `json:"statistics"`
}

type Info struct {
	CreatedAt time.Time `json:"created_at"`
	Version   string    `json:"version"`
	Totals    Totals    `json:"totals"`
}

// Payload sections are kept as raw JSON so the format stays self-describing
// and independent from the store's Go types.
type Payload struct {
	User       json.RawMessage `json:"user"`
	Settings   json.RawMessage `json:"settings"`
	Tasks      json.RawMessage `json:"tasks"`
	Filters    json.RawMessage `json:"filters"`
	Statistics json.RawMessage `json:"statistics"`
	Userbot    json.RawMessage `json:"userbot"`
	BackupInfo Info            `json:"backup_info"`
}

func Section(v any) (json.RawMessage, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return b, nil
}

type Encoded struct {
	Data        []byte
	Compression Compression
	Checksum    string
	RawSize     int
}

var (
	zenc, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	zdec, _ = zstd.NewReader(nil)
)

func Encode(p Payload, c Compression) (*Encoded, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal backup: %w", err)
	}
	sum := sha256.Sum256(raw)
	out := &Encoded{Compression: c, Checksum: hex.EncodeToString(sum[:]), RawSize: len(raw)}
	switch c {
	case None, "":
		out.Compression = None
		out.Data = raw
	case Zstd:
		out.Data = zenc.EncodeAll(raw, make([]byte, 0, len(raw)/2))
	case Gzip:
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(raw); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		out.Data = buf.Bytes()
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCompression, c)
	}
	return out, nil
}

func Decode(data []byte, c Compression, checksum string) (*Payload, error) {
	var raw []byte
	switch c {
	case None, "":
		raw = data
	case Zstd:
		b, err := zdec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		raw = b
	case Gzip:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer r.Close()
		b, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		raw = b
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCompression, c)
	}
	sum := sha256.Sum256(raw)
	if checksum != "" && hex.EncodeToString(sum[:]) != checksum {
		return nil, ErrChecksum
	}
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("unmarshal backup: %w", err)
	}
	return &p, nil
}

// Describe renders size and age for listings, e.g. "12 kB, 3 hours ago".
func Describe(size int64, created time.Time) (string, string) {
	return humanize.Bytes(uint64(size)), humanize.Time(created)
}
