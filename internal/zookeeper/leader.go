// internal/zookeeper/leader.go
package zookeeper

import (
	"context"
)

// Leadership 把 DistributedLock 适配成"每轮抢一次"的选主：抢到的实例执行本轮任务，结束后释放。
type Leadership struct {
	lock *DistributedLock
}

func NewLeadership(conn *Conn, resourceID string) (*Leadership, error) {
	lock, err := NewDistributedLock(conn, resourceID)
	if err != nil {
		return nil, err
	}
	return &Leadership{lock: lock}, nil
}

// Acquire 返回是否成为本轮 leader；成为 leader 时 release 用于交还。
func (l *Leadership) Acquire(ctx context.Context) (release func(), ok bool, err error) {
	ok, err = l.lock.TryLock()
	if err != nil || !ok {
		return nil, false, err
	}
	return func() { _ = l.lock.Unlock() }, true, nil
}
