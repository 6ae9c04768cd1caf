// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"shopflow/internal/pkg/config"
	"shopflow/internal/pkg/httpclient"
	"shopflow/internal/pkg/logger"
	"shopflow/internal/pkg/nacos"
	"shopflow/internal/tracing"
)

const shutdownTimeout = 10 * time.Second

// AppCtx 是交给各服务的装配上下文。
type AppCtx struct {
	Config   *config.Config
	Mux      *http.ServeMux
	Nacos    *nacos.Client // 未启用 nacos 时为 nil
	Resolver httpclient.Resolver

	runners []runner
	closers []func(ctx context.Context) error
}

type runner struct {
	name string
	fn   func(ctx context.Context) error
}

// Go 注册一个随服务生命周期运行的后台任务（消费者、reaper、outbox relay）。
func (a *AppCtx) Go(name string, fn func(ctx context.Context) error) {
	a.runners = append(a.runners, runner{name: name, fn: fn})
}

// OnClose 注册清理函数，关停时按后进先出执行。
func (a *AppCtx) OnClose(fn func(ctx context.Context) error) {
	a.closers = append(a.closers, fn)
}

// AppInfo 包含了启动一个微服务所需的所有特定信息。
type AppInfo struct {
	Config *config.Config
	// Setup 负责装配依赖、注册路由和后台任务
	Setup func(ctx context.Context, app *AppCtx) error
}

// StartService 封装了所有微服务的通用启动和优雅关停逻辑。
func StartService(info AppInfo) error {
	cfg := info.Config
	logger.Init(cfg.App.Name, cfg.App.LogLevel, cfg.App.LogPretty)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.InitTracerProvider(cfg.App.Name, cfg.Infra.Jaeger)
	if err != nil {
		return errors.Wrap(err, "init tracer provider")
	}

	app := &AppCtx{Config: cfg, Mux: http.NewServeMux()}
	app.OnClose(tp.Shutdown)
	app.Mux.Handle("GET /metrics", promhttp.Handler())
	app.Mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	static := staticUpstreams(cfg.Order)
	app.Resolver = static
	var ip string
	if cfg.Infra.Nacos.Enabled {
		nc, err := nacos.NewNacosClient(cfg.Infra.Nacos)
		if err != nil {
			return errors.Wrap(err, "init nacos client")
		}
		app.Nacos = nc
		app.Resolver = &httpclient.DiscoveryResolver{Discoverer: nc, Fallback: static}
		if ip, err = outboundIP(); err != nil {
			return errors.Wrap(err, "get outbound ip")
		}
	}

	if info.Setup != nil {
		if err := info.Setup(ctx, app); err != nil {
			closeAll(app.closers)
			return errors.Wrap(err, "setup service")
		}
	}

	server := &http.Server{Addr: ":" + strconv.Itoa(cfg.App.Port), Handler: app.Mux}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Msgf("✅ %s listening on :%d", cfg.App.Name, cfg.App.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrapf(err, "listen on %s", server.Addr)
		}
		return nil
	})
	for _, r := range app.runners {
		r := r
		g.Go(func() error {
			log.Info().Str("runner", r.name).Msg("background runner started")
			if err := r.fn(gctx); err != nil {
				return errors.Wrapf(err, "runner %s", r.name)
			}
			log.Info().Str("runner", r.name).Msg("background runner stopped")
			return nil
		})
	}

	if app.Nacos != nil {
		if err := app.Nacos.RegisterServiceInstance(cfg.App.Name, ip, cfg.App.Port); err != nil {
			log.Error().Err(err).Msg("🛑 nacos registration failed")
		}
	}

	// 任意一个 goroutine 失败或收到信号都会进入关停流程
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msgf("shutting down service %s...", cfg.App.Name)
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if app.Nacos != nil {
			if err := app.Nacos.DeregisterServiceInstance(cfg.App.Name, ip, cfg.App.Port); err != nil {
				log.Error().Err(err).Msg("deregister from nacos")
			}
			app.Nacos.Close()
		}
		return server.Shutdown(sctx)
	})

	err = g.Wait()
	closeAll(app.closers)
	if err != nil {
		log.Error().Err(err).Msgf("🛑 service %s stopped with error", cfg.App.Name)
		return err
	}
	log.Info().Msgf("✅ service %s gracefully shut down", cfg.App.Name)
	return nil
}

func closeAll(closers []func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](ctx); err != nil {
			log.Error().Err(err).Msg("close resource")
		}
	}
}

func staticUpstreams(o config.OrderConfig) httpclient.StaticResolver {
	r := httpclient.StaticResolver{}
	for _, u := range []config.Upstream{o.Inventory, o.Cart, o.Product} {
		if u.Service != "" {
			r[u.Service] = u.URL
		}
	}
	return r
}

// outboundIP 返回本机用于出站连接的地址，注册到 nacos 使用。
func outboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}
