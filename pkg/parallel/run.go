package parallel

import (
	"fmt"
	"runtime/debug"
	"sync"

	apperrors "github.com/histobench/pkg/errors"
)

// Run starts workers goroutines, calls body(w) in each and waits for all
// of them. A panicking worker is reported as a WORKER_FAILURE error.
// When several workers fail, the error of the lowest worker index is returned.
func Run(workers int, body func(worker int) error) error {
	if workers < 1 {
		return apperrors.InvalidConfig("worker count must be >= 1, got %d", workers)
	}

	errs := make([]error, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(w int) {
			defer wg.Done()
			errs[w] = guard(w, body)
		}(w)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// ForEachPartition runs body over every partition of s, one goroutine per
// worker. body receives the worker index and the claimed partition.
func ForEachPartition(s Schedule, body func(worker int, p Partition)) error {
	return Run(s.Workers(), func(w int) error {
		c := s.Claimer(w)
		for p, ok := c.Next(); ok; p, ok = c.Next() {
			body(w, p)
		}
		return nil
	})
}

func guard(w int, body func(int) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = apperrors.Wrap(apperrors.CodeWorkerFailure,
				fmt.Sprintf("worker %d panicked", w),
				fmt.Errorf("%v\n%s", r, debug.Stack()))
		}
	}()
	if err := body(w); err != nil {
		if apperrors.GetErrorCode(err) != apperrors.CodeUnknown {
			return err
		}
		return apperrors.Wrap(apperrors.CodeWorkerFailure, fmt.Sprintf("worker %d failed", w), err)
	}
	return nil
}
