// Package capture reads frames from a shared-memory file written by a
// local capture process. It is an alternate producer next to the websocket
// ingest path, feeding the same pipeline.
package capture

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Frame files carry a 5-byte header: int8 detection count from the writer,
// then a little-endian uint32 payload length, then the encoded frame.
const headerSize = 5

type ShmSource struct {
	dir     string
	shmPath string
	watcher *fsnotify.Watcher
	Frames  chan []byte
	log     *slog.Logger
}

// NewShmSource watches dir for writes to the named frame file. dir is
// typically /dev/shm.
func NewShmSource(dir, name string, log *slog.Logger) (*ShmSource, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fs watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	return &ShmSource{
		dir:     dir,
		shmPath: filepath.Join(dir, name),
		watcher: watcher,
		Frames:  make(chan []byte, 1),
		log:     log.With("component", "capture"),
	}, nil
}

func (s *ShmSource) readFrame() ([]byte, int, error) {
	data, err := os.ReadFile(s.shmPath)
	if err != nil {
		return nil, -1, err
	}
	if len(data) < headerSize {
		return nil, -1, fmt.Errorf("invalid frame data: too short")
	}
	detected := int(int8(data[0]))
	length := binary.LittleEndian.Uint32(data[1:headerSize])
	if int(length) > len(data)-headerSize {
		return nil, detected, fmt.Errorf("invalid frame data: truncated payload")
	}
	return data[headerSize : headerSize+length], detected, nil
}

// Watch forwards each new frame to s.Frames until ctx is cancelled. The
// channel holds one frame; an unconsumed frame is replaced, never queued.
func (s *ShmSource) Watch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Name != s.shmPath || !event.Has(fsnotify.Write) {
				continue
			}
			frame, _, err := s.readFrame()
			if err != nil {
				s.log.Debug("skipping unreadable frame", "error", err)
				continue
			}
			select {
			case s.Frames <- frame:
			default:
				// Latest wins, same as everywhere downstream.
				select {
				case <-s.Frames:
				default:
				}
				s.Frames <- frame
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.log.Warn("fs watcher error", "error", err)
		}
	}
}

func (s *ShmSource) Close() error {
	return s.watcher.Close()
}
