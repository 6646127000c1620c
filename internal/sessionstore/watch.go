package sessionstore

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"pkt.systems/foldscreen/schema"
	"pkt.systems/pslog"
)

// ChangeFunc is called when a context record was changed on disk by a
// writer other than this store.
type ChangeFunc func(id schema.ContextID)

// Watch follows the store directory until ctx is done and reports records
// whose contents changed. Writes made through this store are not reported.
func (s *FileStore) Watch(ctx context.Context, onChange ChangeFunc) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("state watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()
	if err := watcher.Add(s.dir); err != nil {
		return fmt.Errorf("state watcher: %w", err)
	}
	log := pslog.Ctx(ctx).With("state_dir", s.dir)
	log.Info("state watcher started")
	for {
		select {
		case <-ctx.Done():
			log.Info("state watcher stopped")
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			id, ok := contextFromName(filepath.Base(event.Name))
			if !ok {
				continue
			}
			changed, err := s.Reload(id)
			if err != nil {
				log.Warn("state reload failed", "context", id, "err", err)
				continue
			}
			if !changed {
				log.Trace("state watcher ignored unchanged record", "context", id)
				continue
			}
			log.Debug("state changed on disk", "context", id, "op", event.Op.String())
			if onChange != nil {
				onChange(id)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("state watcher error", "err", err)
		}
	}
}
