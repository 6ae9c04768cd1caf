// internal/zookeeper/conn.go
package zookeeper

import (
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/pkg/errors"
)

// Conn 包装 zk.Conn，锁和选主都基于它。
type Conn struct {
	*zk.Conn
}

// Connect 连接 ZooKeeper 集群，等待会话建立或超时。
func Connect(servers []string, sessionTimeout time.Duration) (*Conn, error) {
	if len(servers) == 0 {
		return nil, errors.New("zookeeper: no servers configured")
	}
	c, events, err := zk.Connect(servers, sessionTimeout, zk.WithLogInfo(false))
	if err != nil {
		return nil, errors.Wrap(err, "zookeeper connect")
	}

	deadline := time.After(sessionTimeout)
	for {
		select {
		case ev := <-events:
			if ev.State == zk.StateHasSession {
				return &Conn{Conn: c}, nil
			}
		case <-deadline:
			c.Close()
			return nil, errors.New("zookeeper: timed out waiting for session")
		}
	}
}

// ensurePath 逐级创建持久节点，节点已存在不算错误。
func (c *Conn) ensurePath(path string) error {
	exists, _, err := c.Exists(path)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	_, err = c.Create(path, []byte{}, 0, zk.WorldACL(zk.PermAll))
	if err != nil && !errors.Is(err, zk.ErrNodeExists) {
		return err
	}
	return nil
}
