// internal/zookeeper/lock.go
package zookeeper

import (
	"context"
	"sort"
	"strings"

	"github.com/go-zookeeper/zk"
	"github.com/pkg/errors"
)

const (
	lockRoot = "/distributed_locks" // 所有分布式锁的根节点
)

// ErrNotHeld 表示当前实例没有持有锁。
var ErrNotHeld = errors.New("zookeeper: lock not held")

// DistributedLock 基于临时顺序节点实现，会话断开时节点自动删除，锁随之释放。
type DistributedLock struct {
	conn     *Conn
	path     string // 例如 /distributed_locks/inventory-reaper
	lockNode string // 成功获取锁后，自己创建的节点路径
}

// NewDistributedLock 创建锁实例，必要时创建根节点和资源节点。
func NewDistributedLock(conn *Conn, resourceID string) (*DistributedLock, error) {
	lockPath := lockRoot + "/" + resourceID
	for _, p := range []string{lockRoot, lockPath} {
		if err := conn.ensurePath(p); err != nil {
			return nil, errors.Wrapf(err, "create lock node %s", p)
		}
	}
	return &DistributedLock{conn: conn, path: lockPath}, nil
}

// Lock 阻塞直到拿到锁或 ctx 结束。
func (l *DistributedLock) Lock(ctx context.Context) error {
	if err := l.createNode(); err != nil {
		return err
	}
	for {
		held, prev, err := l.check()
		if err != nil {
			_ = l.Unlock()
			return err
		}
		if held {
			return nil
		}

		// 只监听前一个节点，避免惊群
		exists, _, events, err := l.conn.ExistsW(l.path + "/" + prev)
		if err != nil {
			_ = l.Unlock()
			return errors.Wrap(err, "watch previous node")
		}
		if !exists {
			continue
		}
		select {
		case <-events:
		case <-ctx.Done():
			_ = l.Unlock()
			return ctx.Err()
		}
	}
}

// TryLock 不等待：拿不到锁时删除自己的节点并返回 false。
func (l *DistributedLock) TryLock() (bool, error) {
	if err := l.createNode(); err != nil {
		return false, err
	}
	held, _, err := l.check()
	if err != nil || !held {
		_ = l.Unlock()
		return false, err
	}
	return true, nil
}

// Unlock 释放锁
func (l *DistributedLock) Unlock() error {
	if l.lockNode == "" {
		return ErrNotHeld
	}
	err := l.conn.Delete(l.lockNode, -1)
	if err != nil && !errors.Is(err, zk.ErrNoNode) {
		return errors.Wrap(err, "delete lock node")
	}
	l.lockNode = ""
	return nil
}

func (l *DistributedLock) createNode() error {
	nodePath, err := l.conn.CreateProtectedEphemeralSequential(l.path+"/lock-", []byte{}, zk.WorldACL(zk.PermAll))
	if err != nil {
		return errors.Wrap(err, "create sequential node")
	}
	l.lockNode = nodePath
	return nil
}

// check 判断自己是否是序号最小的节点，不是时返回前一个节点名。
func (l *DistributedLock) check() (bool, string, error) {
	children, _, err := l.conn.Children(l.path)
	if err != nil {
		return false, "", errors.Wrap(err, "list lock children")
	}
	// protected 节点名带 GUID 前缀，按序号后缀排序
	sort.Slice(children, func(i, j int) bool { return sequence(children[i]) < sequence(children[j]) })

	me := strings.TrimPrefix(l.lockNode, l.path+"/")
	for i, child := range children {
		if child == me {
			if i == 0 {
				return true, "", nil
			}
			return false, children[i-1], nil
		}
	}
	return false, "", errors.New("zookeeper: own lock node disappeared")
}

func sequence(node string) string {
	if idx := strings.LastIndex(node, "lock-"); idx >= 0 {
		return node[idx+len("lock-"):]
	}
	return node
}
