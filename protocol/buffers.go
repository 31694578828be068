package protocol

// InputBuffer abstracts incoming link data for the frame parser.
type InputBuffer interface {
	// Data returns the available data slice.
	Data() []byte

	// Available returns the number of bytes available.
	Available() int

	// Pop removes n bytes from the front of the buffer.
	Pop(n int)
}

// OutputBuffer abstracts outgoing link data for the frame encoder. The
// encoder needs to patch the length field after the payload is known,
// hence the position-based access.
type OutputBuffer interface {
	// Output appends data to the buffer.
	Output(data []byte)

	// CurPosition returns the current write position.
	CurPosition() int

	// Update modifies a byte at a specific position.
	Update(pos int, val byte)

	// DataSince returns data from a position to the current one.
	DataSince(pos int) []byte
}

// SliceInputBuffer implements InputBuffer over a plain byte slice.
type SliceInputBuffer struct {
	data []byte
}

// NewSliceInputBuffer wraps data in an InputBuffer.
func NewSliceInputBuffer(data []byte) *SliceInputBuffer {
	return &SliceInputBuffer{data: data}
}

func (s *SliceInputBuffer) Data() []byte {
	return s.data
}

func (s *SliceInputBuffer) Available() int {
	return len(s.data)
}

func (s *SliceInputBuffer) Pop(n int) {
	if n > len(s.data) {
		n = len(s.data)
	}
	s.data = s.data[n:]
}

// ScratchOutput implements OutputBuffer over a fixed-size scratch
// array, so the device side never allocates while encoding.
type ScratchOutput struct {
	buf [ScratchMax]byte
	pos int
}

// NewScratchOutput creates an empty ScratchOutput.
func NewScratchOutput() *ScratchOutput {
	return &ScratchOutput{}
}

func (s *ScratchOutput) Output(data []byte) {
	n := copy(s.buf[s.pos:], data)
	s.pos += n
}

func (s *ScratchOutput) CurPosition() int {
	return s.pos
}

func (s *ScratchOutput) Update(pos int, val byte) {
	if pos < len(s.buf) {
		s.buf[pos] = val
	}
}

func (s *ScratchOutput) DataSince(pos int) []byte {
	if pos > s.pos {
		return nil
	}
	return s.buf[pos:s.pos]
}

// Result returns the accumulated output data.
func (s *ScratchOutput) Result() []byte {
	return s.buf[:s.pos]
}

// Reset clears the buffer.
func (s *ScratchOutput) Reset() {
	s.pos = 0
}

// FifoBuffer is a circular byte buffer between the serial reader and
// the frame parser. One slot stays unused to tell full from empty.
type FifoBuffer struct {
	buf   []byte
	read  int
	write int
	size  int
}

// NewFifoBuffer creates a FifoBuffer holding capacity-1 bytes.
func NewFifoBuffer(capacity int) *FifoBuffer {
	return &FifoBuffer{
		buf:  make([]byte, capacity),
		size: capacity,
	}
}

// Write appends data, returning how many bytes fit.
func (f *FifoBuffer) Write(data []byte) int {
	written := 0
	for _, b := range data {
		nextWrite := (f.write + 1) % f.size
		if nextWrite == f.read {
			break
		}
		f.buf[f.write] = b
		f.write = nextWrite
		written++
	}
	return written
}

// Read fills data with up to len(data) buffered bytes.
func (f *FifoBuffer) Read(data []byte) int {
	read := 0
	for i := range data {
		if f.read == f.write {
			break
		}
		data[i] = f.buf[f.read]
		f.read = (f.read + 1) % f.size
		read++
	}
	return read
}

// Available returns the number of buffered bytes.
func (f *FifoBuffer) Available() int {
	if f.write >= f.read {
		return f.write - f.read
	}
	return f.size - f.read + f.write
}

// Free returns the remaining write capacity.
func (f *FifoBuffer) Free() int {
	return f.size - f.Available() - 1
}

// Data returns the buffered bytes as one slice. When the content wraps
// it is copied out contiguously; the frame parser needs a single run.
func (f *FifoBuffer) Data() []byte {
	if f.read <= f.write {
		return f.buf[f.read:f.write]
	}
	avail := f.Available()
	result := make([]byte, avail)
	firstLen := f.size - f.read
	copy(result, f.buf[f.read:])
	copy(result[firstLen:], f.buf[:f.write])
	return result
}

// Pop removes n bytes from the front.
func (f *FifoBuffer) Pop(n int) {
	for i := 0; i < n && f.read != f.write; i++ {
		f.read = (f.read + 1) % f.size
	}
}

// IsEmpty reports whether no bytes are buffered.
func (f *FifoBuffer) IsEmpty() bool {
	return f.read == f.write
}

// Reset discards all buffered bytes.
func (f *FifoBuffer) Reset() {
	f.read = 0
	f.write = 0
}
