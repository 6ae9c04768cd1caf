package bootstrap

import (
	"context"
	"flag"
	"os"

	"github.com/segmentio/kafka-go"
	"gorm.io/gorm"

	"shopflow/internal/pkg/config"
	"shopflow/internal/pkg/database"
	"shopflow/internal/pkg/mq"
	"shopflow/internal/pkg/outbox"
	"shopflow/internal/pkg/redis"
	"shopflow/internal/zookeeper"
)

// LoadConfig 从 -config 参数或 CONFIG_PATH 读取配置
func LoadConfig(defaultPath string) (*config.Config, error) {
	path := defaultPath
	if v, ok := os.LookupEnv("CONFIG_PATH"); ok {
		path = v
	}
	flag.StringVar(&path, "config", path, "path to the service config file")
	flag.Parse()
	return config.Load(path)
}

// OpenMySQL 打开数据库并在关停时关闭连接池
func (a *AppCtx) OpenMySQL() (*gorm.DB, error) {
	db, err := database.Open(a.Config.Infra.MySQL)
	if err != nil {
		return nil, err
	}
	a.OnClose(func(context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})
	return db, nil
}

func (a *AppCtx) OpenRedis(ctx context.Context) (*redis.Client, error) {
	rc := a.Config.Infra.Redis
	client, err := redis.NewClient(ctx, []string{rc.Addr}, rc.Password, rc.DB)
	if err != nil {
		return nil, err
	}
	a.OnClose(func(context.Context) error { return client.Close() })
	return client, nil
}

// KafkaWriter 创建一个按消息指定 topic 的生产者
func (a *AppCtx) KafkaWriter() *kafka.Writer {
	w := mq.NewKafkaWriter(a.Config.Infra.Kafka.Brokers, "")
	a.OnClose(func(context.Context) error { return w.Close() })
	return w
}

// ConnectZookeeper 未配置 zookeeper 时返回 nil
func (a *AppCtx) ConnectZookeeper() (*zookeeper.Conn, error) {
	zc := a.Config.Infra.Zookeeper
	if len(zc.Servers) == 0 {
		return nil, nil
	}
	conn, err := zookeeper.Connect(zc.Servers, zc.SessionTimeout)
	if err != nil {
		return nil, err
	}
	a.OnClose(func(context.Context) error { conn.Close(); return nil })
	return conn, nil
}

// Consume 注册一个 kafka 消费者，失败消息写入死信主题
func (a *AppCtx) Consume(name, topic string, handle mq.HandlerFunc, dltWriter mq.MessageWriter) {
	kc := a.Config.Infra.Kafka
	reader := mq.NewKafkaReader(kc.Brokers, topic, kc.ConsumerGroup)
	consumer := mq.NewConsumer(name, reader, handle, mq.NewFailureHandler(dltWriter, kc.DLTTopic))
	a.Go(name, consumer.Run)
	a.OnClose(func(context.Context) error { return consumer.Close() })
}

// RunOutboxRelay 启动 outbox 投递
func (a *AppCtx) RunOutboxRelay(db *gorm.DB, writer mq.MessageWriter) {
	oc := a.Config.Outbox
	relay := outbox.NewRelay(outbox.NewGormStore(db), outbox.NewKafkaPublisher(writer), outbox.RelayConfig{
		BatchSize:   oc.BatchSize,
		Interval:    oc.Interval,
		Lease:       oc.Lease,
		MaxAttempts: oc.MaxAttempts,
		BaseBackoff: oc.BaseBackoff,
	})
	a.Go("outbox-relay", relay.Run)
}
