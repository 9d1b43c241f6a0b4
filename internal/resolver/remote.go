package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// ErrVendorNotFound 远端数据库中没有该 OUI
var ErrVendorNotFound = errors.New("vendor not found")

// ErrRateLimited 远端接口限流
var ErrRateLimited = errors.New("vendor lookup rate limited")

// RemoteClient 远程厂商查询客户端（macvendors 风格接口：GET /{oui} 返回纯文本厂商名）
// 出于隐私只发送 OUI 前缀，不发送完整地址
type RemoteClient struct {
	httpClient  *resty.Client
	minInterval time.Duration
	logger      *zap.Logger

	mu       sync.Mutex
	lastCall time.Time
}

// NewRemoteClient 创建远程查询客户端
// minInterval: 两次请求之间的最小间隔（远端接口约定 1 req/s）
func NewRemoteClient(baseURL string, timeout, minInterval time.Duration, logger *zap.Logger) *RemoteClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "text/plain")

	return &RemoteClient{
		httpClient:  client,
		minInterval: minInterval,
		logger:      logger,
	}
}

// Lookup 按 OUI 查询厂商名称
// 限流等待发生在调用方 goroutine 内；该路径已通过消息流与扫描采集解耦
func (c *RemoteClient) Lookup(ctx context.Context, oui string) (string, error) {
	if err := c.throttle(ctx); err != nil {
		return "", err
	}

	resp, err := c.httpClient.R().
		SetContext(ctx).
		Get("/" + oui)
	if err != nil {
		return "", fmt.Errorf("vendor lookup failed: %w", err)
	}

	switch resp.StatusCode() {
	case 200:
		vendor := strings.TrimSpace(resp.String())
		if vendor == "" {
			return "", ErrVendorNotFound
		}
		return vendor, nil
	case 404:
		return "", ErrVendorNotFound
	case 429:
		return "", ErrRateLimited
	default:
		return "", fmt.Errorf("vendor lookup failed: unexpected status %d", resp.StatusCode())
	}
}

// throttle 保证请求间隔不小于 minInterval
func (c *RemoteClient) throttle(ctx context.Context) error {
	c.mu.Lock()
	wait := c.minInterval - time.Since(c.lastCall)
	c.lastCall = time.Now().Add(wait)
	c.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}
