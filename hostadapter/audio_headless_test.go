//go:build headless

package hostadapter

import "testing"

func TestOtoSinkHeadlessIsAlwaysLowAndDropsSamples(t *testing.T) {
	s, err := NewOtoSink(2048)
	if err != nil {
		t.Fatalf("NewOtoSink error = %v", err)
	}
	if !s.BufferLow() {
		t.Fatalf("BufferLow() = false, want true under headless operation")
	}
	s.Push(make([]int16, 8), 4)
	s.Close()
}
