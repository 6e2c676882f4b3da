package backup_test

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/pkg/backup"
)

type job struct {
	ID       int64          `json:"id"`
	Name     string         `json:"name"`
	Settings map[string]any `json:"settings"`
}

func samplePayload(t *testing.T) backup.Payload {
	t.Helper()
	must := func(v any) []byte {
		b, err := backup.Section(v)
		if err != nil {
			t.Fatalf("section: %v", err)
		}
		return b
	}
	return backup.Payload{
		User:       must(map[string]any{"id": 1000000001, "name": "tenant"}),
		Settings:   must(map[string]any{"auto_backup": true, "backup_frequency": "weekly"}),
		Tasks:      must([]job{{ID: 1, Name: "news", Settings: map[string]any{"header": "H"}}}),
		Filters:    must([]map[string]any{{"job_id": 1, "category": "words", "value": "spam"}}),
		Statistics: must([]map[string]any{{"job_id": 1, "forwarded": 3}}),
		Userbot:    must(map[string]any{"phone": "+12345678901", "connected": true}),
		BackupInfo: backup.Info{
			CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
			Version:   backup.FormatVersion,
			Totals:    backup.Totals{Tasks: 1, Filters: 1, Statistics: 1},
		},
	}
}

func TestRoundTrip(t *testing.T) {
	for _, c := range []backup.Compression{backup.None, backup.Gzip, backup.Zstd} {
		t.Run(string(c), func(t *testing.T) {
			in := samplePayload(t)
			enc, err := backup.Encode(in, c)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			if enc.Checksum == "" || len(enc.Checksum) != 64 {
				t.Fatalf("bad checksum %q", enc.Checksum)
			}
			out, err := backup.Decode(enc.Data, enc.Compression, enc.Checksum)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			sections := [][2][]byte{
				{in.User, out.User}, {in.Settings, out.Settings}, {in.Tasks, out.Tasks},
				{in.Filters, out.Filters}, {in.Statistics, out.Statistics}, {in.Userbot, out.Userbot},
			}
			for i, s := range sections {
				if !bytes.Equal(s[0], s[1]) {
					t.Fatalf("section %d differs: %s vs %s", i, s[0], s[1])
				}
			}
			if !out.BackupInfo.CreatedAt.Equal(in.BackupInfo.CreatedAt) || out.BackupInfo.Totals != in.BackupInfo.Totals {
				t.Fatalf("backup info differs: %+v vs %+v", out.BackupInfo, in.BackupInfo)
			}
		})
	}
}

func TestChecksumMismatch(t *testing.T) {
	enc, err := backup.Encode(samplePayload(t), backup.None)
	if err != nil {
		t.Fatal(err)
	}
	tampered := bytes.Replace(enc.Data, []byte("news"), []byte("nows"), 1)
	if _, err := backup.Decode(tampered, backup.None, enc.Checksum); !errors.Is(err, backup.ErrChecksum) {
		t.Fatalf("expected checksum error, got %v", err)
	}
}

func TestUnknownCompression(t *testing.T) {
	if _, err := backup.Encode(samplePayload(t), "lz4"); !errors.Is(err, backup.ErrUnknownCompression) {
		t.Fatalf("expected unknown compression, got %v", err)
	}
}
