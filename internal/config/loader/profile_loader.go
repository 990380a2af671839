package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"bracket/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Profile 描述一组可热更新的下单参数。
// 字段为 0 表示该项未设置，使用时回退到 trading 配置。
type Profile struct {
	Name      string  `yaml:"-"`
	MarginUSD float64 `yaml:"margin_usd"`
	Leverage  int     `yaml:"leverage"`
	TPOffset  float64 `yaml:"tp_offset"`
	SLOffset  float64 `yaml:"sl_offset"`
}

// fileConfig 是完整的 profile 配置文件结构。
type fileConfig struct {
	Active   string             `yaml:"active"`
	Profiles map[string]Profile `yaml:"profiles"`
}

// Snapshot 对外暴露的只读快照。
type Snapshot struct {
	Version  int64
	LoadedAt time.Time
	Active   string
	Profiles map[string]Profile
}

// ActiveProfile 返回 active 指向的 profile。未配置或找不到时 ok 为 false。
func (s Snapshot) ActiveProfile() (Profile, bool) {
	name := strings.TrimSpace(s.Active)
	if name == "" {
		return Profile{}, false
	}
	for key, p := range s.Profiles {
		if strings.EqualFold(key, name) {
			return p, true
		}
	}
	return Profile{}, false
}

// ChangeListener 在配置变更时被调用。
type ChangeListener func(Snapshot)

// profileSchema 在 reload 前对整份文档做结构校验，挡住字段拼错和类型错误。
var profileSchema = jsonschema.MustCompileString("profile.schema.json", `{
	"type": "object",
	"properties": {
		"active": {"type": "string"},
		"profiles": {
			"type": "object",
			"additionalProperties": {
				"type": "object",
				"properties": {
					"margin_usd": {"type": "number", "minimum": 0},
					"leverage": {"type": "integer", "minimum": 0, "maximum": 125},
					"tp_offset": {"type": "number", "minimum": 0},
					"sl_offset": {"type": "number", "minimum": 0}
				},
				"additionalProperties": false
			}
		}
	},
	"additionalProperties": false
}`)

// ProfileLoader 负责从 YAML 文件中加载下单参数档位，并监听热更新。
// 校验失败的修改不会生效，当前快照保持不变。
type ProfileLoader struct {
	path string
	v    *viper.Viper

	mu        sync.RWMutex
	snapshot  Snapshot
	listeners []ChangeListener
}

// NewProfileLoader 读取配置文件并开始监听 FS 事件。
func NewProfileLoader(path string) (*ProfileLoader, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("profile loader requires path")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read profile config failed: %w", err)
	}
	loader := &ProfileLoader{path: path, v: v}
	if err := loader.reload(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := loader.reload(); err != nil {
			logger.Errorf("profile reload failed (%s): %v", evt.Name, err)
			return
		}
		loader.notify()
	})
	v.WatchConfig()
	return loader, nil
}

// Snapshot 返回当前配置快照（深拷贝）。
func (l *ProfileLoader) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return cloneSnapshot(l.snapshot)
}

// Subscribe 注册监听器，并立即收到一次完整快照。
func (l *ProfileLoader) Subscribe(fn ChangeListener) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.listeners = append(l.listeners, fn)
	snap := cloneSnapshot(l.snapshot)
	l.mu.Unlock()
	go func() {
		defer safeRecover("profile listener")
		fn(snap)
	}()
}

func (l *ProfileLoader) notify() {
	l.mu.RLock()
	snap := cloneSnapshot(l.snapshot)
	listeners := append([]ChangeListener(nil), l.listeners...)
	l.mu.RUnlock()
	for _, fn := range listeners {
		if fn == nil {
			continue
		}
		go func(cb ChangeListener) {
			defer safeRecover("profile listener")
			cb(snap)
		}(fn)
	}
}

func (l *ProfileLoader) reload() error {
	cfg, err := readProfileFile(l.path)
	if err != nil {
		return err
	}
	profiles := make(map[string]Profile, len(cfg.Profiles))
	for name, p := range cfg.Profiles {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		p.Name = name
		profiles[name] = p
	}
	l.mu.Lock()
	l.snapshot = Snapshot{
		Version:  l.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Active:   strings.TrimSpace(cfg.Active),
		Profiles: profiles,
	}
	l.mu.Unlock()
	logger.Infof("Trade profiles reloaded: %d from %s (active: %s)",
		len(profiles), filepath.Base(l.path), emptyDash(cfg.Active))
	return nil
}

func readProfileFile(path string) (fileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fileConfig{}, fmt.Errorf("read profile config failed: %w", err)
	}
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fileConfig{}, fmt.Errorf("parse profile config failed: %w", err)
	}
	if doc != nil {
		if err := profileSchema.Validate(doc); err != nil {
			return fileConfig{}, fmt.Errorf("profile schema validation failed: %w", err)
		}
	}
	var cfg fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	// 空文档返回 io.EOF，视为零配置。
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return fileConfig{}, fmt.Errorf("parse profile config failed: %w", err)
	}
	return cfg, nil
}

func cloneSnapshot(src Snapshot) Snapshot {
	dst := Snapshot{
		Version:  src.Version,
		LoadedAt: src.LoadedAt,
		Active:   src.Active,
		Profiles: make(map[string]Profile, len(src.Profiles)),
	}
	for name, p := range src.Profiles {
		dst.Profiles[name] = p
	}
	return dst
}

func safeRecover(tag string) {
	if r := recover(); r != nil {
		logger.Errorf("%s panic: %v", tag, r)
	}
}

func emptyDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return strings.TrimSpace(s)
}
