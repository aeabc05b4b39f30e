package app

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/signify/internal/labels"
	"github.com/ayusman/signify/internal/store"
)

// ResolveLabels picks the startup label table. A mapping file wins and is
// saved to the store; otherwise the stored table is used; otherwise the
// built-in labels are saved and used.
func ResolveLabels(s *store.Store, path string, log logrus.FieldLogger) (labels.Table, error) {
	if path != "" {
		t, err := labels.Load(path)
		if err != nil {
			return nil, err
		}
		if s != nil {
			if err := s.Labels().Replace(t); err != nil {
				return nil, fmt.Errorf("save labels: %w", err)
			}
		}
		log.WithFields(logrus.Fields{"path": path, "labels": t.Len()}).Info("loaded label mapping")
		return t, nil
	}

	if s == nil {
		return labels.Default(), nil
	}

	t, err := s.Labels().Table()
	switch {
	case err == nil:
		log.WithField("labels", t.Len()).Debug("using stored labels")
		return t, nil
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("read labels: %w", err)
	}

	t = labels.Default()
	if err := s.Labels().Replace(t); err != nil {
		return nil, fmt.Errorf("seed labels: %w", err)
	}
	log.WithField("labels", t.Len()).Info("seeded built-in labels")
	return t, nil
}
