//go:build headless

package hostadapter

import "testing"

func TestEbitenInputSourcePollInputReturnsNilUnderHeadless(t *testing.T) {
	s := NewEbitenInputSource(0)
	if ev := s.PollInput(); ev != nil {
		t.Fatalf("PollInput() = %v, want nil under headless operation", ev)
	}
}
