package extractjob

import (
	"github.com/mengeric/extractjob-go/artifact"
	"github.com/mengeric/extractjob-go/config"
	"github.com/mengeric/extractjob-go/logging"
	"github.com/mengeric/extractjob-go/processor"
)

// Option Engine 可选项。
type Option func(*engineConfig)

type engineConfig struct {
	cfg     config.Config
	store   artifact.Store
	catalog *processor.Catalog
	log     logging.Logger
	addr    string
}

// WithConfig 指定运行配置；未设置的字段按默认值填充。
func WithConfig(c config.Config) Option { return func(ec *engineConfig) { ec.cfg = c } }

// WithStore 注入产物存储，优先于配置中的 storage.driver。
func WithStore(s artifact.Store) Option { return func(ec *engineConfig) { ec.store = s } }

// WithCatalog 注入处理器目录，Submit 与 HTTP 提交按任务类型从中取处理器。
func WithCatalog(c *processor.Catalog) Option { return func(ec *engineConfig) { ec.catalog = c } }

// WithLogger 注入日志器，默认 logging.L()。
func WithLogger(l logging.Logger) Option { return func(ec *engineConfig) { ec.log = l } }

// WithAddr 覆盖 HTTP 监听地址，例如 "127.0.0.1:0"（随机端口）。
func WithAddr(addr string) Option { return func(ec *engineConfig) { ec.addr = addr } }

// withDefaults 填充默认值。
func (ec *engineConfig) withDefaults() {
	ec.cfg.WithDefaults()
	if ec.catalog == nil {
		ec.catalog = processor.NewCatalog()
	}
	if ec.log == nil {
		ec.log = logging.L()
	}
	if ec.addr == "" {
		ec.addr = ec.cfg.Addr()
	}
}
