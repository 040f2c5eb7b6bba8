// Package canvas is an in-memory, per-session scratch board: an ordered
// list of small content blocks a session can push/remove/reset, snapshot
// by the HTTP layer for display. Unlike the session store it is not
// persisted — a canvas is a live-session side channel, not durable
// history, so a daemon restart starts every session's canvas empty.
package canvas

import (
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/wopr-network/wopr/pkg/types"
)

// Board owns every session's canvas state.
type Board struct {
	mu       sync.Mutex
	sessions map[string][]types.CanvasBlock
}

// New returns an empty board.
func New() *Board {
	return &Board{sessions: make(map[string][]types.CanvasBlock)}
}

// Push appends a new block to session's canvas and returns it.
func (b *Board) Push(session, content string, at int64) types.CanvasBlock {
	block := types.CanvasBlock{ID: ulid.Make().String(), Content: content, At: at}
	b.mu.Lock()
	b.sessions[session] = append(b.sessions[session], block)
	b.mu.Unlock()
	return block
}

// Remove deletes the block with the given id from session's canvas, if
// present.
func (b *Board) Remove(session, id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	blocks := b.sessions[session]
	for i, blk := range blocks {
		if blk.ID == id {
			b.sessions[session] = append(blocks[:i], blocks[i+1:]...)
			return
		}
	}
}

// Reset clears a session's entire canvas.
func (b *Board) Reset(session string) {
	b.mu.Lock()
	delete(b.sessions, session)
	b.mu.Unlock()
}

// Snapshot returns the current ordered state of session's canvas.
func (b *Board) Snapshot(session string) types.CanvasSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	blocks := append([]types.CanvasBlock{}, b.sessions[session]...)
	return types.CanvasSnapshot{Session: session, Blocks: blocks}
}
