// Package parallel runs independent extraction jobs on a bounded worker pool.
package parallel

import (
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
)

// Result carries one item's output. Err is never returned to callers as a
// failure of the batch: a failed item gets a placeholder Text so the other
// items survive.
type Result struct {
	Name string
	Text string
	Err  error
}

// Worker processes one item and returns its name and extracted text.
type Worker[T any] func(item T) (name string, text string, err error)

// RunOrdered fans items out to at most maxWorkers goroutines and returns one
// Result per item in input order. Completion order is nondeterministic under
// concurrency, and callers number sections by position, so ordering is
// restored explicitly.
func RunOrdered[T any](items []T, worker Worker[T], maxWorkers int) []Result {
	if len(items) == 0 {
		return nil
	}
	if maxWorkers > len(items) {
		maxWorkers = len(items)
	}
	if maxWorkers < 1 {
		maxWorkers = 1
	}

	results := make([]Result, len(items))

	pool, err := ants.NewPool(maxWorkers)
	if err != nil {
		// Pool construction only fails on invalid size; degrade to serial.
		for i, item := range items {
			results[i] = runOne(item, worker)
		}
		return results
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i, item := range items {
		i, item := i, item
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			results[i] = runOne(item, worker)
		})
		if submitErr != nil {
			results[i] = Result{Err: submitErr, Text: fmt.Sprintf("Error processing item: %v", submitErr)}
			wg.Done()
		}
	}
	wg.Wait()

	return results
}

func runOne[T any](item T, worker Worker[T]) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("panic: %v", r)
			res.Text = fmt.Sprintf("Error processing %s: %v", res.Name, r)
		}
	}()

	name, text, err := worker(item)
	res.Name = name
	if err != nil {
		res.Err = err
		res.Text = fmt.Sprintf("Error processing %s: %v", name, err)
		return res
	}
	res.Text = text
	return res
}
