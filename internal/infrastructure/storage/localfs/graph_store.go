package localfs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/qinyuanle/legal-qa-engine/internal/core/domain"
)

const (
	snapshotFile = "relation_graph.json"
	metadataFile = "relation_graph.meta.json"
)

// GraphStore persists relation graph snapshots on local disk, one JSON blob
// plus a metadata sidecar. Writes go through a temp file and rename so a
// crashed writer never leaves a torn snapshot.
type GraphStore struct {
	basePath string
}

func New(basePath string) (*GraphStore, error) {
	if basePath == "" {
		basePath = "./data/graph"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create graph dir: %w", err)
	}
	return &GraphStore{basePath: basePath}, nil
}

func (s *GraphStore) Save(_ context.Context, snapshot domain.GraphSnapshot, meta domain.GraphMetadata) error {
	if err := s.writeJSON(snapshotFile, snapshot); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := s.writeJSON(metadataFile, meta); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

func (s *GraphStore) Load(_ context.Context) (domain.GraphSnapshot, domain.GraphMetadata, error) {
	var snapshot domain.GraphSnapshot
	if err := s.readJSON(snapshotFile, &snapshot); err != nil {
		return domain.GraphSnapshot{}, domain.GraphMetadata{}, err
	}
	var meta domain.GraphMetadata
	if err := s.readJSON(metadataFile, &meta); err != nil {
		return domain.GraphSnapshot{}, domain.GraphMetadata{}, err
	}
	return snapshot, meta, nil
}

func (s *GraphStore) Metadata(_ context.Context) (domain.GraphMetadata, error) {
	var meta domain.GraphMetadata
	if err := s.readJSON(metadataFile, &meta); err != nil {
		return domain.GraphMetadata{}, err
	}
	return meta, nil
}

func (s *GraphStore) writeJSON(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}

	path := filepath.Join(s.basePath, name)
	tmp, err := os.CreateTemp(s.basePath, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}

func (s *GraphStore) readJSON(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.basePath, name))
	if err != nil {
		if os.IsNotExist(err) {
			return domain.WrapError(domain.ErrNotFound, "read "+name, err)
		}
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal %s: %w", name, err)
	}
	return nil
}
