package cache

import (
	"container/list"
	"sync"
)

// Memory is an in-process LRU of compiled outputs bounded by the total size
// of their code. It sits in front of the SQLite store so watch mode rebuilds
// of unchanged inputs never touch disk.
type Memory struct {
	mu       sync.Mutex
	maxBytes int
	size     int
	items    map[string]*list.Element
	order    *list.List // front = most recently used
}

func NewMemory(maxBytes int) *Memory {
	if maxBytes <= 0 {
		maxBytes = 1
	}
	return &Memory{
		maxBytes: maxBytes,
		items:    make(map[string]*list.Element),
		order:    list.New(),
	}
}

func (m *Memory) Get(key string) (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.items[key]
	if !ok {
		return Entry{}, false
	}
	m.order.MoveToFront(el)
	return el.Value.(Entry), true
}

// Put stores entry under entry.Key. Entries larger than the whole budget are
// not kept.
func (m *Memory) Put(entry Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.items[entry.Key]; ok {
		m.size -= len(el.Value.(Entry).Code)
		m.order.Remove(el)
		delete(m.items, entry.Key)
	}
	if len(entry.Code) > m.maxBytes {
		return
	}

	for m.size+len(entry.Code) > m.maxBytes {
		m.evictOldestLocked()
	}
	m.items[entry.Key] = m.order.PushFront(entry)
	m.size += len(entry.Code)
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}

// Size returns the bytes of code currently held.
func (m *Memory) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.size
}

func (m *Memory) evictOldestLocked() {
	back := m.order.Back()
	if back == nil {
		return
	}
	entry := m.order.Remove(back).(Entry)
	delete(m.items, entry.Key)
	m.size -= len(entry.Code)
}
