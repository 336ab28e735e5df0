package relay

import (
	"sync"
)

// updateLog retains a room's broadcast updates for late joiners. Older
// updates are periodically folded into a single length-prefixed blob so
// the log stays bounded under long sessions.
type updateLog struct {
	mu     sync.RWMutex
	merged []byte
	recent [][]byte
}

func newUpdateLog() *updateLog {
	return &updateLog{}
}

func (l *updateLog) Add(update []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.recent = append(l.recent, update)
}

// Snapshot returns every retained update in broadcast order
func (l *updateLog) Snapshot() [][]byte {
	l.mu.RLock()
	defer l.mu.RUnlock()

	updates := splitMerged(l.merged)
	for _, u := range l.recent {
		updates = append(updates, u)
	}
	return updates
}

func (l *updateLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(splitMerged(l.merged)) + len(l.recent)
}

// Compact folds all but the most recent keep updates into the merged blob
func (l *updateLog) Compact(keep int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.recent) <= keep {
		return
	}

	old := l.recent[:len(l.recent)-keep]
	l.merged = mergeUpdates(append(splitMerged(l.merged), old...))

	kept := make([][]byte, keep)
	copy(kept, l.recent[len(l.recent)-keep:])
	l.recent = kept
}

// mergeUpdates concatenates updates with 4-byte big-endian length prefixes
func mergeUpdates(updates [][]byte) []byte {
	totalSize := 0
	for _, update := range updates {
		totalSize += len(update)
	}

	merged := make([]byte, 0, totalSize+len(updates)*4)
	for _, update := range updates {
		length := uint32(len(update))
		merged = append(merged, byte(length>>24), byte(length>>16), byte(length>>8), byte(length))
		merged = append(merged, update...)
	}
	return merged
}

// splitMerged recovers the individual updates from a merged blob
func splitMerged(merged []byte) [][]byte {
	var updates [][]byte
	offset := 0

	for offset < len(merged) {
		if offset+4 > len(merged) {
			break
		}

		length := uint32(merged[offset])<<24 |
			uint32(merged[offset+1])<<16 |
			uint32(merged[offset+2])<<8 |
			uint32(merged[offset+3])
		offset += 4

		if offset+int(length) > len(merged) {
			break
		}

		update := make([]byte, length)
		copy(update, merged[offset:offset+int(length)])
		updates = append(updates, update)
		offset += int(length)
	}

	return updates
}
