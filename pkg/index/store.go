package index

import (
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/minio/highwayhash"
	"github.com/perbu/docqa/pkg/docqa"
)

const snapshotVersion = 1

var fingerprintKey = []byte("docqa/index/fingerprint/key/0001")

// Meta describes how a persisted index was produced. A reloaded index is
// only reusable when its Meta matches the current build inputs.
type Meta struct {
	BuildID     string
	CreatedAt   time.Time
	ModelInfo   string
	Dimension   int
	Source      string
	Fingerprint uint64 // highwayhash of the document text
	ChunkSize   int
	Overlap     int
}

// NewMeta returns Meta for a fresh build of doc.
func NewMeta(doc docqa.Document, modelInfo string, chunkSize, overlap int) Meta {
	return Meta{
		BuildID:     uuid.NewString(),
		CreatedAt:   time.Now().UTC(),
		ModelInfo:   modelInfo,
		Source:      doc.Source,
		Fingerprint: Fingerprint(doc.Text),
		ChunkSize:   chunkSize,
		Overlap:     overlap,
	}
}

// Matches reports whether two builds used the same model, parameters and
// document content.
func (m Meta) Matches(o Meta) bool {
	return m.ModelInfo == o.ModelInfo &&
		m.Fingerprint == o.Fingerprint &&
		m.ChunkSize == o.ChunkSize &&
		m.Overlap == o.Overlap
}

// Fingerprint hashes document text so a stale index file can be detected.
func Fingerprint(text string) uint64 {
	return highwayhash.Sum64([]byte(text), fingerprintKey)
}

type snapshot struct {
	Version int
	Meta    Meta
	Entries []docqa.Entry
}

// Save writes the index and meta to w as gob.
func (ix *Index) Save(w io.Writer, meta Meta) error {
	if ix == nil {
		return docqa.ErrEmptyIndex
	}
	meta.Dimension = ix.dim
	snap := snapshot{
		Version: snapshotVersion,
		Meta:    meta,
		Entries: ix.entries,
	}
	if err := gob.NewEncoder(w).Encode(snap); err != nil {
		return fmt.Errorf("encoding index: %w", err)
	}
	return nil
}

// Load reads an index written by Save. Entries are validated exactly as
// Build validates them.
func Load(r io.Reader) (*Index, Meta, error) {
	var snap snapshot
	if err := gob.NewDecoder(r).Decode(&snap); err != nil {
		return nil, Meta{}, fmt.Errorf("decoding index: %w", err)
	}
	if snap.Version != snapshotVersion {
		return nil, Meta{}, fmt.Errorf("unsupported index version %d", snap.Version)
	}

	ix, err := Build(snap.Entries)
	if err != nil {
		return nil, Meta{}, err
	}
	if ix.Len() > 0 && ix.dim != snap.Meta.Dimension {
		return nil, Meta{}, fmt.Errorf("%w: meta says %d dimensions, entries have %d",
			docqa.ErrDimensionMismatch, snap.Meta.Dimension, ix.dim)
	}
	return ix, snap.Meta, nil
}

// SaveFile writes the index to path atomically.
func (ix *Index) SaveFile(path string, meta Meta) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return err
	}

	if err := ix.Save(file, meta); err != nil {
		file.Close()
		os.Remove(tmp)
		return err
	}

	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	// Atomic rename
	return os.Rename(tmp, path)
}

// LoadFile reads an index written by SaveFile.
func LoadFile(path string) (*Index, Meta, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, Meta{}, err
	}
	defer file.Close()

	return Load(file)
}
