package xkafka

import "sync"

type partitionKey struct {
	topic     string
	partition int32
}

// offsetTracker 按分区记录已拉取未完成的 offset。
// 只有从最小在途 offset 起连续完成时才推进提交位置。
type offsetTracker struct {
	mu    sync.Mutex
	parts map[partitionKey]*partitionOffsets
}

type partitionOffsets struct {
	// order 按拉取顺序（即 offset 递增）排列的在途 offset
	order []int64
	done  map[int64]bool
}

func newOffsetTracker() *offsetTracker {
	return &offsetTracker{parts: make(map[partitionKey]*partitionOffsets)}
}

func (t *offsetTracker) track(topic string, partition int32, offset int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := partitionKey{topic, partition}
	p, ok := t.parts[k]
	if !ok {
		p = &partitionOffsets{done: make(map[int64]bool)}
		t.parts[k] = p
	}
	if _, dup := p.done[offset]; dup {
		return
	}
	p.order = append(p.order, offset)
	p.done[offset] = false
}

// complete 标记完成，返回应存储的下一个 offset；未推进时 ok 为 false。
func (t *offsetTracker) complete(topic string, partition int32, offset int64) (next int64, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, found := t.parts[partitionKey{topic, partition}]
	if !found {
		return 0, false
	}
	if _, tracked := p.done[offset]; !tracked {
		return 0, false
	}
	p.done[offset] = true
	for len(p.order) > 0 && p.done[p.order[0]] {
		head := p.order[0]
		delete(p.done, head)
		p.order = p.order[1:]
		next, ok = head+1, true
	}
	return next, ok
}

// reset 分区被回收时丢弃在途 offset。
func (t *offsetTracker) reset(topic string, partition int32) {
	t.mu.Lock()
	delete(t.parts, partitionKey{topic, partition})
	t.mu.Unlock()
}

// inFlight 全部分区的在途数。
func (t *offsetTracker) inFlight() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, p := range t.parts {
		n += len(p.order)
	}
	return n
}
