package gamelog

// DefaultActionLogLines is how many raw lines are kept per game.
const DefaultActionLogLines = 15

// actionBuffer keeps the most recent lines of a game, oldest evicted first.
type actionBuffer struct {
	lines []string
	start int
	size  int
}

func newActionBuffer(capacity int) *actionBuffer {
	if capacity <= 0 {
		capacity = DefaultActionLogLines
	}
	return &actionBuffer{lines: make([]string, capacity)}
}

func (b *actionBuffer) add(line string) {
	capacity := len(b.lines)
	if b.size < capacity {
		b.lines[(b.start+b.size)%capacity] = line
		b.size++
		return
	}
	b.lines[b.start] = line
	b.start = (b.start + 1) % capacity
}

// snapshot returns the buffered lines in arrival order.
func (b *actionBuffer) snapshot() []string {
	out := make([]string, b.size)
	for i := 0; i < b.size; i++ {
		out[i] = b.lines[(b.start+i)%len(b.lines)]
	}
	return out
}
