package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"sampmon/internal/logger"
)

// joinHostPort 拼接 host:port（兼容 IPv6）
func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// isRealWebhook 判断 webhook 是否为真实地址（排除空值与示例占位符）
func isRealWebhook(webhook string) bool {
	trimmed := strings.TrimSpace(webhook)
	if trimmed == "" {
		return false
	}
	return !strings.Contains(strings.ToUpper(trimmed), "YOUR_WEBHOOK")
}

// validateURL 验证 URL 格式和协议安全性
func validateURL(rawURL, fieldName string) error {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return nil
	}

	parsed, err := url.ParseRequestURI(trimmed)
	if err != nil {
		return fmt.Errorf("%s 格式无效: %w", fieldName, err)
	}

	// 只允许 http 和 https 协议
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("%s 只支持 http:// 或 https:// 协议，收到: %s", fieldName, parsed.Scheme)
	}

	if parsed.Host == "" {
		return fmt.Errorf("%s 缺少主机名", fieldName)
	}

	// 非 HTTPS 警告
	if scheme == "http" {
		logger.Warn("config", "检测到非 HTTPS URL", "field", fieldName, "url", trimmed)
	}

	return nil
}
