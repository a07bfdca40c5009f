package serv

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
)

const reloadDelay = 500 * time.Millisecond

// startConfigWatcher rebuilds the engine whenever the config file changes.
// The directory is watched so editors that replace the file on save are
// seen too. A config that fails to load is logged and the running engine
// is kept.
func (s1 *HttpService) startConfigWatcher(ctx context.Context) error {
	s := s1.Load().(*service)
	cf := s.conf.ConfigFile()

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "config watcher")
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(cf)); err != nil {
		return errors.Wrapf(err, "watch %s", cf)
	}

	var (
		timer  *time.Timer
		reload <-chan time.Time
	)

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(cf) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(reloadDelay)
			reload = timer.C

		case <-reload:
			reload = nil
			s1.reloadFrom(cf)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s1.Load().(*service).log.Warnf("config watcher: %s", err)
		}
	}
}

func (s1 *HttpService) reloadFrom(cf string) {
	s := s1.Load().(*service)

	conf, err := ReadInConfig(cf)
	if err != nil {
		s.log.Errorf("reload config: %s", err)
		return
	}
	if err := s1.Reload(conf); err != nil {
		s.log.Errorf("reload config: %s", err)
		return
	}
	s1.Load().(*service).log.Infof("config reloaded: %s", cf)
}
