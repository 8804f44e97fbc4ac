package service

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/tamru/tambola-services/internal/quizsvc/errs"
)

// withRetry runs op and, on a transient store failure only, retries it
// once after a fixed delay before surfacing the error. Validation and
// conflict outcomes are never retried here: a conflict means the whole
// read-decide-write cycle must be redone by the caller.
func withRetry(ctx context.Context, delay time.Duration, op func() error) error {
	err := op()
	if err == nil || !errors.Is(err, errs.ErrTransientStore) {
		return err
	}

	log.Warnf("transient store failure, retrying in %s: %v", delay, err)
	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return err
	}

	return op()
}
