// internal/pkg/config/config.go
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config 是所有服务共享的配置结构，每个服务只读取自己关心的部分。
type Config struct {
	App       AppConfig       `yaml:"app"`
	Infra     InfraConfig     `yaml:"infra"`
	Inventory InventoryConfig `yaml:"inventory"`
	Order     OrderConfig     `yaml:"order"`
	Outbox    OutboxConfig    `yaml:"outbox"`
}

type AppConfig struct {
	Name      string `yaml:"name"`
	Port      int    `yaml:"port"`
	LogLevel  string `yaml:"logLevel"`
	LogPretty bool   `yaml:"logPretty"`
}

type InfraConfig struct {
	MySQL     MySQLConfig     `yaml:"mysql"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Zookeeper ZookeeperConfig `yaml:"zookeeper"`
	Nacos     NacosConfig     `yaml:"nacos"`
	Jaeger    JaegerConfig    `yaml:"jaeger"`
}

type MySQLConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
	AutoMigrate     bool          `yaml:"autoMigrate"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers       []string `yaml:"brokers"`
	ConsumerGroup string   `yaml:"consumerGroup"`
	DLTTopic      string   `yaml:"dltTopic"`
}

type ZookeeperConfig struct {
	Servers        []string      `yaml:"servers"`
	SessionTimeout time.Duration `yaml:"sessionTimeout"`
}

type NacosConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServerAddrs string `yaml:"serverAddrs"`
	Namespace   string `yaml:"namespace"`
	Group       string `yaml:"group"`
}

type JaegerConfig struct {
	Endpoint    string  `yaml:"endpoint"`
	SampleRatio float64 `yaml:"sampleRatio"`
}

type InventoryConfig struct {
	HoldDuration         time.Duration `yaml:"holdDuration"`
	ReaperInterval       time.Duration `yaml:"reaperInterval"`
	ReaperBatchSize      int           `yaml:"reaperBatchSize"`
	DefaultLowStockLevel int           `yaml:"defaultLowStockLevel"`
	CacheTTL             time.Duration `yaml:"cacheTTL"`
}

// Upstream 描述一个下游服务：开启 nacos 时按 Service 名发现，否则使用静态 URL。
type Upstream struct {
	Service string `yaml:"service"`
	URL     string `yaml:"url"`
}

type OrderConfig struct {
	Inventory          Upstream          `yaml:"inventory"`
	Cart               Upstream          `yaml:"cart"`
	Product            Upstream          `yaml:"product"`
	RequestTimeout     time.Duration     `yaml:"requestTimeout"`
	CancellationPolicy map[string]string `yaml:"cancellationPolicy"`
}

type OutboxConfig struct {
	BatchSize   int           `yaml:"batchSize"`
	Interval    time.Duration `yaml:"interval"`
	Lease       time.Duration `yaml:"lease"`
	MaxAttempts int           `yaml:"maxAttempts"`
	BaseBackoff time.Duration `yaml:"baseBackoff"`
}

// Default 返回一份可直接运行的默认配置。
func Default() *Config {
	return &Config{
		App: AppConfig{Port: 8080, LogLevel: "info"},
		Infra: InfraConfig{
			MySQL:     MySQLConfig{MaxOpenConns: 50, MaxIdleConns: 10, ConnMaxLifetime: time.Hour},
			Redis:     RedisConfig{Addr: "localhost:6379"},
			Kafka:     KafkaConfig{Brokers: []string{"localhost:9092"}, DLTTopic: "dead-letter-events"},
			Zookeeper: ZookeeperConfig{SessionTimeout: 10 * time.Second},
			Nacos:     NacosConfig{ServerAddrs: "localhost:8848", Group: "DEFAULT_GROUP"},
			Jaeger:    JaegerConfig{Endpoint: "http://localhost:14268/api/traces", SampleRatio: 1},
		},
		Inventory: InventoryConfig{
			HoldDuration:         15 * time.Minute,
			ReaperInterval:       60 * time.Second,
			ReaperBatchSize:      200,
			DefaultLowStockLevel: 10,
			CacheTTL:             10 * time.Minute,
		},
		Order: OrderConfig{
			Inventory:      Upstream{Service: "inventory-service", URL: "http://localhost:8082"},
			Cart:           Upstream{Service: "cart-service", URL: "http://localhost:8084"},
			Product:        Upstream{Service: "product-service", URL: "http://localhost:8085"},
			RequestTimeout: 5 * time.Second,
		},
		Outbox: OutboxConfig{
			BatchSize:   100,
			Interval:    500 * time.Millisecond,
			Lease:       5 * time.Second,
			MaxAttempts: 10,
			BaseBackoff: time.Second,
		},
	}
}

// Load 读取 YAML 配置文件并叠加环境变量。path 为空时只使用默认值与环境变量。
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config %s", path)
		}
	}
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 检查会导致服务无法正常工作的配置。
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return errors.New("config: app.name is required")
	}
	if c.App.Port <= 0 {
		return errors.Errorf("config: invalid app.port %d", c.App.Port)
	}
	if c.Inventory.HoldDuration <= 0 {
		return errors.New("config: inventory.holdDuration must be positive")
	}
	if c.Inventory.ReaperInterval <= 0 {
		return errors.New("config: inventory.reaperInterval must be positive")
	}
	if c.Outbox.BatchSize <= 0 || c.Outbox.Interval <= 0 {
		return errors.New("config: outbox.batchSize and outbox.interval must be positive")
	}
	return nil
}

func applyEnv(c *Config) {
	if v, ok := os.LookupEnv("APP_NAME"); ok {
		c.App.Name = v
	}
	if v, ok := os.LookupEnv("HTTP_PORT"); ok {
		if p, err := strconv.Atoi(v); err == nil {
			c.App.Port = p
		}
	}
	if v, ok := os.LookupEnv("LOG_LEVEL"); ok {
		c.App.LogLevel = v
	}
	if v, ok := os.LookupEnv("MYSQL_DSN"); ok {
		c.Infra.MySQL.DSN = v
	}
	if v, ok := os.LookupEnv("REDIS_ADDR"); ok {
		c.Infra.Redis.Addr = v
	}
	if v, ok := os.LookupEnv("KAFKA_BROKERS"); ok {
		c.Infra.Kafka.Brokers = splitList(v)
	}
	if v, ok := os.LookupEnv("ZK_SERVERS"); ok {
		c.Infra.Zookeeper.Servers = splitList(v)
	}
	if v, ok := os.LookupEnv("NACOS_SERVER_ADDRS"); ok {
		c.Infra.Nacos.ServerAddrs = v
		c.Infra.Nacos.Enabled = true
	}
	if v, ok := os.LookupEnv("NACOS_NAMESPACE"); ok {
		c.Infra.Nacos.Namespace = v
	}
	if v, ok := os.LookupEnv("NACOS_GROUP"); ok {
		c.Infra.Nacos.Group = v
	}
	if v, ok := os.LookupEnv("JAEGER_ENDPOINT"); ok {
		c.Infra.Jaeger.Endpoint = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
