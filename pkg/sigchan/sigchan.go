// Package sigchan 合并式通知：多次 Emit 在被消费前只保留一次。
package sigchan

// Chan 不携带数据的通知 channel
type Chan struct {
	c chan struct{}
}

// New 容量为 1 时，连续的通知会合并成一次
func New(bufferSize int) *Chan {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &Chan{c: make(chan struct{}, bufferSize)}
}

// Emit 非阻塞发送；已有未消费的通知时返回 false
func (c *Chan) Emit() bool {
	select {
	case c.c <- struct{}{}:
		return true
	default:
		return false
	}
}

// C 用于 select
func (c *Chan) C() <-chan struct{} {
	return c.c
}
