// Package conf 抓包程序的配置加载。
//
// 配置来自文件、环境变量与默认值，优先级依次递减。环境变量前缀为
// LIVECAP，层级分隔符用下划线，例如 LIVECAP_SNAP_LEN=262144。
package conf

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/norpex/livecap/logx"
)

// Config 一次抓包会话的完整配置。
type Config struct {
	// Source 抓包网卡名。
	Source string `mapstructure:"source" yaml:"source"`
	// Engine 引擎选择："afpacket" 或 "pcap"。
	Engine string `mapstructure:"engine" yaml:"engine"`

	SnapLen     int    `mapstructure:"snap_len" yaml:"snap_len"`
	BufferSize  int    `mapstructure:"buffer_size" yaml:"buffer_size"`
	Promiscuous bool   `mapstructure:"promiscuous" yaml:"promiscuous"`
	Immediate   bool   `mapstructure:"immediate" yaml:"immediate"`
	Filter      string `mapstructure:"filter" yaml:"filter"`

	Log logx.Config `mapstructure:"log" yaml:"log"`
}

// Default 返回可直接使用的默认配置。
func Default() Config {
	return Config{
		Source:    "any",
		Engine:    "afpacket",
		SnapLen:   65535,
		Immediate: true,
		Log: logx.Config{
			Level: "info",
		},
	}
}

// Options 加载器选项。
type Options struct {
	// File 完整配置文件路径；设置后忽略 Name 与 Paths。
	File  string
	Name  string
	Paths []string

	EnvPrefix string

	// OnChange 配置文件变更后被调用，参数是重新解析后的配置。
	OnChange func(Config)
}

type Option func(*Options)

// WithFile 指定完整的配置文件路径。
func WithFile(path string) Option {
	return func(o *Options) { o.File = path }
}

// WithName 设置配置文件名（不带扩展名）。
func WithName(name string) Option {
	return func(o *Options) { o.Name = name }
}

// WithPaths 追加配置文件搜索路径。
func WithPaths(paths ...string) Option {
	return func(o *Options) { o.Paths = append(o.Paths, paths...) }
}

// WithEnvPrefix 覆盖环境变量前缀。
func WithEnvPrefix(prefix string) Option {
	return func(o *Options) { o.EnvPrefix = prefix }
}

// WithOnChange 注册配置变更回调。
func WithOnChange(cb func(Config)) Option {
	return func(o *Options) { o.OnChange = cb }
}

// Loader 封装 viper 的配置加载器。
type Loader struct {
	v    *viper.Viper
	opts *Options

	mu       sync.Mutex
	watching bool
}

// New 创建加载器。此时还未读取任何文件，Load 才会真正加载。
func New(opts ...Option) *Loader {
	options := &Options{
		Name:      "livecap",
		Paths:     []string{".", "/etc/livecap/"},
		EnvPrefix: "LIVECAP",
	}
	for _, opt := range opts {
		opt(options)
	}

	v := viper.New()
	if options.File != "" {
		v.SetConfigFile(options.File)
	} else {
		v.SetConfigName(options.Name)
		v.SetConfigType("yaml")
		for _, p := range options.Paths {
			v.AddConfigPath(p)
		}
	}

	v.SetEnvPrefix(options.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, Default())

	return &Loader{v: v, opts: options}
}

// Load 读取配置并解析。配置文件不存在不算错误，此时返回默认值
// 叠加环境变量的结果。
func (l *Loader) Load() (Config, error) {
	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("conf: read config: %w", err)
		}
	}

	cfg, err := l.unmarshal()
	if err != nil {
		return Config{}, err
	}

	if l.opts.OnChange != nil {
		l.watch()
	}
	return cfg, nil
}

func (l *Loader) unmarshal() (Config, error) {
	var cfg Config
	err := l.v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.WeaklyTypedInput = true
	})
	if err != nil {
		return Config{}, fmt.Errorf("conf: unmarshal: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (l *Loader) watch() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.watching {
		return
	}
	l.watching = true

	l.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := l.unmarshal()
		if err != nil {
			logx.Errorf("conf: reload %s: %v", e.Name, err)
			return
		}
		logx.Infof("conf: reloaded %s", e.Name)
		l.opts.OnChange(cfg)
	})
	l.v.WatchConfig()
}

func (c Config) validate() error {
	if c.Source == "" {
		return errors.New("conf: source must not be empty")
	}
	switch c.Engine {
	case "afpacket", "pcap":
	default:
		return fmt.Errorf("conf: unknown engine %q", c.Engine)
	}
	if c.SnapLen <= 0 {
		return fmt.Errorf("conf: snap_len must be positive, got %d", c.SnapLen)
	}
	if c.BufferSize < 0 {
		return fmt.Errorf("conf: buffer_size must not be negative, got %d", c.BufferSize)
	}
	return nil
}

func setDefaults(v *viper.Viper, def Config) {
	v.SetDefault("source", def.Source)
	v.SetDefault("engine", def.Engine)
	v.SetDefault("snap_len", def.SnapLen)
	v.SetDefault("buffer_size", def.BufferSize)
	v.SetDefault("promiscuous", def.Promiscuous)
	v.SetDefault("immediate", def.Immediate)
	v.SetDefault("filter", def.Filter)
	v.SetDefault("log.level", def.Log.Level)
}

// WriteDefault 把默认配置写成 YAML 文件，作为新部署的起点。
func WriteDefault(path string) error {
	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("conf: marshal defaults: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("conf: write %s: %w", path, err)
	}
	return nil
}
