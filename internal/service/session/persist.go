package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/zhouzirui/honeypot/backend/internal/model/chat"
)

const snapshotVersion = 1

// Persister stores and restores whole-table snapshots. Save always overwrites the
// previous snapshot in full.
type Persister interface {
	Load(ctx context.Context) (map[string]chat.Session, error)
	Save(ctx context.Context, sessions map[string]chat.Session) error
}

// NopPersister keeps sessions in memory only.
type NopPersister struct{}

func (NopPersister) Load(context.Context) (map[string]chat.Session, error) { return nil, nil }

func (NopPersister) Save(context.Context, map[string]chat.Session) error { return nil }

type snapshotDocument struct {
	Version  int                     `json:"version"`
	SavedAt  time.Time               `json:"savedAt"`
	Sessions map[string]chat.Session `json:"sessions"`
}

func encodeSnapshot(sessions map[string]chat.Session) ([]byte, error) {
	doc := snapshotDocument{
		Version:  snapshotVersion,
		SavedAt:  time.Now().UTC(),
		Sessions: sessions,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

func decodeSnapshot(data []byte) (map[string]chat.Session, error) {
	var doc snapshotDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if doc.Version > snapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", doc.Version)
	}
	return doc.Sessions, nil
}
