package orchestrator

import (
	"context"
	"time"
)

const (
	DefaultChunkRunes = 50
	DefaultInterval   = 20 * time.Millisecond
)

// Pacer replays complete text as a sequence of small fragments so clients
// see the same progressive rendering whether or not upstream streamed.
type Pacer struct {
	ChunkRunes int
	Interval   time.Duration
}

func DefaultPacer() Pacer {
	return Pacer{ChunkRunes: DefaultChunkRunes, Interval: DefaultInterval}
}

// Emit calls emit for consecutive rune-aligned slices of text, waiting
// Interval between them. The concatenation of every emitted slice is text.
func (p Pacer) Emit(ctx context.Context, text string, emit func(string) error) error {
	size := p.ChunkRunes
	if size <= 0 {
		size = DefaultChunkRunes
	}
	runes := []rune(text)
	for i := 0; i < len(runes); i += size {
		if i > 0 && p.Interval > 0 {
			t := time.NewTimer(p.Interval)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		if err := emit(string(runes[i:end])); err != nil {
			return err
		}
	}
	return nil
}
