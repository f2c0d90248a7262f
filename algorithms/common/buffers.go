package common

// SampleRing is a fixed-capacity circular buffer of raw PCM samples.
// When full, writes overwrite the oldest samples. Not safe for concurrent use;
// callers synchronize.
type SampleRing struct {
	buffer   []int16
	size     int
	writePos int
	readPos  int
	count    int
}

// NewSampleRing creates a ring holding up to size samples
func NewSampleRing(size int) *SampleRing {
	if size < 1 {
		size = 1
	}
	return &SampleRing{
		buffer: make([]int16, size),
		size:   size,
	}
}

// Write appends samples and returns how many older samples were overwritten
func (r *SampleRing) Write(data []int16) int {
	dropped := 0
	for _, sample := range data {
		r.buffer[r.writePos] = sample
		r.writePos = (r.writePos + 1) % r.size
		if r.count < r.size {
			r.count++
		} else {
			r.readPos = (r.readPos + 1) % r.size
			dropped++
		}
	}
	return dropped
}

// Read consumes up to len(data) of the oldest samples and returns how many were read
func (r *SampleRing) Read(data []int16) int {
	n := min(len(data), r.count)
	for i := 0; i < n; i++ {
		data[i] = r.buffer[r.readPos]
		r.readPos = (r.readPos + 1) % r.size
	}
	r.count -= n
	return n
}

// Grow enlarges the ring to at least size samples, preserving buffered data
func (r *SampleRing) Grow(size int) {
	if size <= r.size {
		return
	}
	pending := make([]int16, r.count)
	r.Read(pending)

	r.buffer = make([]int16, size)
	r.size = size
	r.readPos, r.writePos, r.count = 0, 0, 0
	r.Write(pending)
}

// Available returns number of samples available for reading
func (r *SampleRing) Available() int {
	return r.count
}

// Cap returns the ring capacity
func (r *SampleRing) Cap() int {
	return r.size
}

// Clear empties the buffer
func (r *SampleRing) Clear() {
	r.writePos = 0
	r.readPos = 0
	r.count = 0
}
