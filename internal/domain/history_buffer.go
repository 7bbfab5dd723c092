package domain

// MinHistoryCapacity 过滤器至少需要的历史窗口（保留至少 15 局）
const MinHistoryCapacity = 15

// DefaultHistoryCapacity 默认保留最近 50 局
const DefaultHistoryCapacity = 50

// HistoryBuffer 有界的局历史，超过容量时丢弃最旧的记录。
// 非并发安全：由持有者串行访问。
type HistoryBuffer struct {
	capacity int
	items    []RoundOutcome // 按时间正序存储，末尾为最新
}

// NewHistoryBuffer 创建历史缓冲；capacity < MinHistoryCapacity 时按最小值处理
func NewHistoryBuffer(capacity int) *HistoryBuffer {
	if capacity < MinHistoryCapacity {
		capacity = MinHistoryCapacity
	}
	return &HistoryBuffer{
		capacity: capacity,
		items:    make([]RoundOutcome, 0, capacity),
	}
}

// Push 追加一局记录
func (b *HistoryBuffer) Push(r RoundOutcome) {
	if len(b.items) == b.capacity {
		copy(b.items, b.items[1:])
		b.items = b.items[:len(b.items)-1]
	}
	b.items = append(b.items, r)
}

// Len 当前记录数
func (b *HistoryBuffer) Len() int { return len(b.items) }

// Capacity 容量
func (b *HistoryBuffer) Capacity() int { return b.capacity }

// Latest 返回最新一局
func (b *HistoryBuffer) Latest() (RoundOutcome, bool) {
	if len(b.items) == 0 {
		return RoundOutcome{}, false
	}
	return b.items[len(b.items)-1], true
}

// Snapshot 返回按时间倒序的拷贝（index 0 为最新），调用方可自由修改
func (b *HistoryBuffer) Snapshot() History {
	out := make(History, len(b.items))
	for i := range b.items {
		out[i] = b.items[len(b.items)-1-i]
	}
	return out
}

// Reset 清空历史（新一轮 session 时使用）
func (b *HistoryBuffer) Reset() {
	b.items = b.items[:0]
}
