// Package buildinfo 保存构建时通过 -ldflags 注入的版本信息
//
//	go build -ldflags "-X sampmon/internal/buildinfo.Version=v1.0.0 -X sampmon/internal/buildinfo.GitCommit=$(git rev-parse --short HEAD)"
package buildinfo

import (
	"runtime"
	"time"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// GetVersion 返回版本号
func GetVersion() string { return Version }

// GetGitCommit 返回提交哈希
func GetGitCommit() string { return GitCommit }

// GetBuildTime 返回构建时间（未注入时为 unknown）
func GetBuildTime() string {
	if BuildTime == "unknown" {
		return BuildTime
	}
	if t, err := time.Parse(time.RFC3339, BuildTime); err == nil {
		return t.UTC().Format(time.RFC3339)
	}
	return BuildTime
}

// GetGoVersion 返回编译所用 Go 版本
func GetGoVersion() string { return runtime.Version() }
