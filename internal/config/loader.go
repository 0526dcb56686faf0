package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"sampmon/internal/logger"
)

// Loader 配置加载器
// 保存最近一次成功加载的配置，供热更新失败时回滚
type Loader struct {
	mu      sync.RWMutex
	current *AppConfig
	lastErr error
}

// NewLoader 创建配置加载器
func NewLoader() *Loader {
	return &Loader{}
}

// Load 初始加载配置
// 文件缺失或无效时回退到内置默认配置并记录警告，此时返回的 error 为 nil，
// 具体原因可通过 LastError 获取
func (l *Loader) Load(filename string) (*AppConfig, error) {
	cfg, err := parseFile(filename)
	if err != nil {
		logger.Warn("config", "配置文件不可用，使用内置默认配置", "file", filename, "error", err)

		cfg = DefaultConfig()
		cfg.ApplyEnvOverrides()
		if nerr := cfg.Normalize(); nerr != nil {
			return nil, fmt.Errorf("默认配置归一化失败: %w", nerr)
		}
		if verr := cfg.Validate(); verr != nil {
			return nil, fmt.Errorf("默认配置校验失败: %w", verr)
		}
	}

	l.mu.Lock()
	l.current = cfg
	l.lastErr = err
	l.mu.Unlock()

	return cfg, nil
}

// LoadOrRollback 重新加载配置（热更新）
// 新配置无效时保留当前配置并返回错误
func (l *Loader) LoadOrRollback(filename string) (*AppConfig, error) {
	cfg, err := parseFile(filename)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastErr = err

	if err != nil {
		if l.current != nil {
			logger.Warn("config", "新配置无效，保留当前配置", "file", filename, "error", err)
			return l.current.Clone(), err
		}
		return nil, err
	}

	l.current = cfg
	return cfg, nil
}

// Current 返回当前生效配置的副本
func (l *Loader) Current() *AppConfig {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.current == nil {
		return nil
	}
	return l.current.Clone()
}

// LastError 返回最近一次加载的错误（成功时为 nil）
func (l *Loader) LastError() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastErr
}

// parseFile 读取、解析、覆盖环境变量、归一化并校验配置文件
func parseFile(filename string) (*AppConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &Error{Code: ErrCodeNotFound, Path: filename, Message: "配置文件不存在", Err: err}
		}
		return nil, &Error{Code: ErrCodeRead, Path: filename, Message: "读取配置文件失败", Err: err}
	}

	cfg, err := Parse(data)
	if err != nil {
		var cfgErr *Error
		if errors.As(err, &cfgErr) {
			cfgErr.Path = filename
		}
		return nil, err
	}

	logger.Info("config", "配置加载完成", "file", filename, "servers", len(cfg.Servers))
	return cfg, nil
}

// Parse 解析配置内容（YAML 或 JSON）
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &Error{Code: ErrCodeParse, Message: "解析配置文件失败", Err: err}
	}

	cfg.ApplyEnvOverrides()

	if err := cfg.Normalize(); err != nil {
		return nil, &Error{Code: ErrCodeInvalid, Message: "配置归一化失败", Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, &Error{Code: ErrCodeInvalid, Message: "配置校验失败", Err: err}
	}
	return &cfg, nil
}
