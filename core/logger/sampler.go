package logger

import (
	"strconv"
	"strings"
	"sync"
)

// ratioSampler passes the first num events of every window of den.
// A zero ratio passes everything.
type ratioSampler struct {
	mu       sync.Mutex
	num, den int
	seen     int
}

func newRatioSampler(num, den int) *ratioSampler {
	s := new(ratioSampler)
	s.Set(num, den)
	return s
}

// Set changes the ratio and restarts the window.
func (s *ratioSampler) Set(num, den int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = 0
	s.num, s.den = 0, 0
	if num > 0 && den > 0 {
		s.num, s.den = min(num, den), den
	}
}

// Allow reports whether the next event passes.
func (s *ratioSampler) Allow() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.den == 0 {
		return true
	}
	pos := s.seen % s.den
	s.seen = pos + 1
	return pos < s.num
}

// parseRatioSpec reads "n/d", or a bare "d" meaning 1/d. Anything else is 0/0.
func parseRatioSpec(spec string) (num, den int) {
	a, b, isRatio := strings.Cut(strings.TrimSpace(spec), "/")
	if !isRatio {
		d, err := strconv.Atoi(a)
		if err != nil || d <= 0 {
			return 0, 0
		}
		return 1, d
	}
	n, errN := strconv.Atoi(strings.TrimSpace(a))
	d, errD := strconv.Atoi(strings.TrimSpace(b))
	if errN != nil || errD != nil {
		return 0, 0
	}
	return n, d
}
