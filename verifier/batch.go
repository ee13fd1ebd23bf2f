package verifier

import (
	"context"
	"sync"
)

// CheckMany runs the single-address pipeline over emails with at most
// concurrency workers. Results arrive on the returned channel in completion
// order, not input order; the channel closes once every address has a
// terminal result or the context is cancelled. One failing pipeline never
// aborts the others: panics are recovered and mapped to unknown/temp_fail.
func (v *Verifier) CheckMany(ctx context.Context, emails []string, concurrency int) (<-chan *Result, error) {
	if concurrency < 1 {
		return nil, ErrBadConcurrency
	}

	jobs := make(chan string)
	out := make(chan *Result, concurrency)

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for email := range jobs {
				select {
				case out <- v.safeCheck(ctx, email):
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, email := range emails {
			select {
			case jobs <- email:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(out)
	}()

	return out, nil
}

// CheckAll collects CheckMany into a slice plus summary counters. The
// counters partition the results: deliverable + undeliverable + unknown +
// invalid always equals the number of results returned.
func (v *Verifier) CheckAll(ctx context.Context, emails []string, concurrency int) ([]*Result, Summary, error) {
	ch, err := v.CheckMany(ctx, emails, concurrency)
	if err != nil {
		return nil, Summary{}, err
	}
	var summary Summary
	results := make([]*Result, 0, len(emails))
	for res := range ch {
		summary.Add(res)
		results = append(results, res)
	}
	return results, summary, nil
}

// safeCheck shields the batch executor from pipeline panics.
func (v *Verifier) safeCheck(ctx context.Context, email string) (res *Result) {
	defer func() {
		if r := recover(); r != nil {
			v.log.WithField("email", email).Errorf("pipeline panic: %v", r)
			res = &Result{
				Email:   email,
				MXHosts: []string{},
				Status:  StatusUnknown,
				Reason:  strPtr(ReasonTempFail),
			}
		}
	}()
	return v.Check(ctx, email)
}
