// Package sequence assigns each recording session its stable, human-sortable
// document name, {YYMMDD}_{NN}.txt, at most once.
package sequence

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/voxnote/voxnote/internal/filestore"
	appErr "github.com/voxnote/voxnote/internal/pkg/errors"
	"github.com/voxnote/voxnote/internal/pkg/naming"
	"github.com/voxnote/voxnote/internal/pkg/syncutil"
	"github.com/voxnote/voxnote/internal/repo"
)

type Allocator struct {
	mappings *repo.SequenceRepo
	text     filestore.Store
	archive  filestore.Store
	locks    *syncutil.KeyedMutex
	cache    *expirable.LRU[string, string]
}

func NewAllocator(mappings *repo.SequenceRepo, text, archive filestore.Store) *Allocator {
	return &Allocator{
		mappings: mappings,
		text:     text,
		archive:  archive,
		locks:    syncutil.NewKeyedMutex(),
		cache:    expirable.NewLRU[string, string](1024, nil, 2*time.Hour),
	}
}

// Resolve returns the document name assigned to sessionID, allocating the
// next free sequence number for its date on first contact. The persisted
// mapping always wins over a re-scan; allocation itself is an atomic
// insert-if-absent, so two concurrent resolvers for the same new session
// converge on a single name.
func (a *Allocator) Resolve(ctx context.Context, sessionID string) (string, error) {
	if name, ok := a.cache.Get(sessionID); ok {
		return name, nil
	}
	prefix, err := naming.DatePrefix(sessionID)
	if err != nil {
		return "", err
	}

	// Allocation is serialized per date so the max-scan and the insert are
	// one critical section for all new sessions sharing the prefix.
	unlock := a.locks.Lock(prefix)
	defer unlock()

	mapping, err := a.mappings.Get(ctx, sessionID)
	if err == nil {
		a.cache.Add(sessionID, mapping.DocumentName)
		return mapping.DocumentName, nil
	}
	if !appErr.IsNotFound(err) {
		return "", fmt.Errorf("lookup mapping: %w", err)
	}

	maxSeq, err := a.maxAssigned(ctx, prefix)
	if err != nil {
		return "", err
	}
	if maxSeq >= naming.MaxSequence {
		return "", fmt.Errorf("date %s: %w", prefix, appErr.ErrExhausted)
	}

	candidate := naming.DocumentName(prefix, maxSeq+1)
	created, err := a.mappings.InsertIfAbsent(ctx, sessionID, candidate)
	if err != nil {
		return "", fmt.Errorf("persist mapping: %w", err)
	}
	// Re-read so a lost race still returns the winner's name.
	mapping, err = a.mappings.Get(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("reload mapping: %w", err)
	}
	if created {
		logutil.GetLogger(ctx).Info("sequence assigned",
			zap.String("session_id", sessionID),
			zap.String("document", mapping.DocumentName))
	}
	a.cache.Add(sessionID, mapping.DocumentName)
	return mapping.DocumentName, nil
}

// maxAssigned returns the highest sequence already taken for the date: the
// mapping table covers assignments whose documents are not written yet, the
// collection scans cover documents predating the mapping table.
func (a *Allocator) maxAssigned(ctx context.Context, prefix string) (int, error) {
	maxSeq := 0
	assigned, err := a.mappings.ListByDocumentPrefix(ctx, prefix)
	if err != nil {
		return 0, fmt.Errorf("scan mappings: %w", err)
	}
	for _, mapping := range assigned {
		if seq, ok := naming.ParseSequence(prefix, mapping.DocumentName); ok && seq > maxSeq {
			maxSeq = seq
		}
	}
	for _, store := range []filestore.Store{a.text, a.archive} {
		entries, err := store.List(ctx)
		if err != nil {
			return 0, fmt.Errorf("scan collection: %w", err)
		}
		for _, entry := range entries {
			if seq, ok := naming.ParseSequence(prefix, entry.Key); ok && seq > maxSeq {
				maxSeq = seq
			}
		}
	}
	return maxSeq, nil
}
