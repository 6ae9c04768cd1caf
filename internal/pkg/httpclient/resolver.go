package httpclient

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// Resolver 把逻辑服务名解析为 base URL（scheme://host:port）。
type Resolver interface {
	Resolve(ctx context.Context, service string) (string, error)
}

// Discoverer 是服务发现客户端需要提供的能力，nacos.Client 实现了它。
type Discoverer interface {
	DiscoverServiceInstance(serviceName string) (string, int, error)
}

// StaticResolver 使用配置里的固定地址。
type StaticResolver map[string]string

func (r StaticResolver) Resolve(_ context.Context, service string) (string, error) {
	if u, ok := r[service]; ok && u != "" {
		return u, nil
	}
	return "", errors.Errorf("no static url configured for service %q", service)
}

// DiscoveryResolver 每次调用都向注册中心挑选一个健康实例，失败时回退到静态地址。
type DiscoveryResolver struct {
	Discoverer Discoverer
	Fallback   StaticResolver
}

func (r *DiscoveryResolver) Resolve(ctx context.Context, service string) (string, error) {
	ip, port, err := r.Discoverer.DiscoverServiceInstance(service)
	if err == nil {
		return fmt.Sprintf("http://%s:%d", ip, port), nil
	}
	if r.Fallback != nil {
		if u, ferr := r.Fallback.Resolve(ctx, service); ferr == nil {
			return u, nil
		}
	}
	return "", err
}
