package server

import (
	"errors"
	"sync"
	"testing"
)

func TestWorkerSerializes(t *testing.T) {
	w := NewWorker()
	defer w.Stop()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := w.Do(func() any { counter++; return nil }); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	if counter != 50 {
		t.Errorf("counter = %d, want 50", counter)
	}
}

func TestWorkerRecoversPanics(t *testing.T) {
	w := NewWorker()
	defer w.Stop()

	if _, err := w.Do(func() any { panic("boom") }); err == nil || err.Error() != "boom" {
		t.Errorf("err = %v, want boom", err)
	}
	v, err := w.Do(func() any { return 42 })
	if err != nil || v.(int) != 42 {
		t.Errorf("Do after panic = %v, %v", v, err)
	}
}

func TestWorkerStopped(t *testing.T) {
	w := NewWorker()
	w.Stop()
	w.Stop()
	if _, err := w.Do(func() any { return nil }); !errors.Is(err, ErrStopped) {
		t.Errorf("err = %v, want ErrStopped", err)
	}
}
