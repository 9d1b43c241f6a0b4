package aggregator

import "sync"

// addressLocks 按地址键控的互斥锁表
// 保证同一地址的记录变更串行化，不同地址可并行；引用计数归零即回收
// 条目，内存占用只与在途地址数相关，不随历史地址数增长
type addressLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newAddressLocks() *addressLocks {
	return &addressLocks{entries: make(map[string]*lockEntry)}
}

// Acquire 获取指定地址的锁，返回释放函数
func (l *addressLocks) Acquire(mac string) func() {
	l.mu.Lock()
	e, ok := l.entries[mac]
	if !ok {
		e = &lockEntry{}
		l.entries[mac] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()

		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.entries, mac)
		}
		l.mu.Unlock()
	}
}
