// Package utils holds small concurrency helpers shared by the binaries.
package utils //nolint:revive // var-naming: utils is an acceptable package name for shared utilities

import (
	"context"
	"sync"
)

// MergeErrorChans fans several error channels into one. The output closes once
// every input has closed.
func MergeErrorChans(channels ...<-chan error) <-chan error {
	out := make(chan error)
	var wg sync.WaitGroup

	wg.Add(len(channels))
	for _, ch := range channels {
		go func(c <-chan error) {
			defer wg.Done()
			for err := range c {
				out <- err
			}
		}(ch)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}

// FirstError blocks until one of the channels yields a non-nil error, all of
// them close, or ctx is done. It returns nil in the latter two cases.
func FirstError(ctx context.Context, channels ...<-chan error) error {
	merged := MergeErrorChans(channels...)
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-merged:
			if !ok {
				return nil
			}
			if err != nil {
				return err
			}
		}
	}
}
