package gate

// HistoryCapacity is the number of centroid samples kept per track
const HistoryCapacity = 5

// History is a fixed-size FIFO of vertical centroid samples.
// When full, pushing a new sample evicts the oldest.
type History struct {
	samples [HistoryCapacity]int
	head    int // index of the oldest sample
	n       int
}

func (h *History) Push(y int) {
	if h.n < HistoryCapacity {
		h.samples[(h.head+h.n)%HistoryCapacity] = y
		h.n++
		return
	}
	h.samples[h.head] = y
	h.head = (h.head + 1) % HistoryCapacity
}

// Last returns the most recent sample
func (h *History) Last() (int, bool) {
	if h.n == 0 {
		return 0, false
	}
	return h.samples[(h.head+h.n-1)%HistoryCapacity], true
}

func (h *History) Len() int {
	return h.n
}

// Samples returns a copy of the samples, oldest first
func (h *History) Samples() []int {
	out := make([]int, h.n)
	for i := 0; i < h.n; i++ {
		out[i] = h.samples[(h.head+i)%HistoryCapacity]
	}
	return out
}
