// Package resolver 提供地址→厂商的身份解析
//
// 解析顺序：进程内缓存 → 本地 OUI 表 → 远程接口（可选）
// 随机化地址直接短路返回空，不做任何查询
package resolver

import (
	"context"
	"errors"
	"sync"

	"wisefido-bluetrace/internal/address"
	"wisefido-bluetrace/internal/repository"

	"go.uber.org/zap"
)

// VendorInfo 厂商解析结果
type VendorInfo struct {
	Name   string `json:"name"`
	Source string `json:"source"` // cache / local / remote
}

// Remote 远程查询接口（可为 nil，表示禁用远程查询）
type Remote interface {
	Lookup(ctx context.Context, oui string) (string, error)
}

// Resolver 身份解析器
// 缓存归解析器实例所有（不是进程级全局），按 OUI 前缀键控
type Resolver struct {
	ouiRepo repository.OUIRepository
	remote  Remote // nil = 远程查询禁用
	logger  *zap.Logger

	mu    sync.RWMutex
	cache map[string]string // OUI → 厂商名
}

// NewResolver 创建解析器
func NewResolver(ouiRepo repository.OUIRepository, remote Remote, logger *zap.Logger) *Resolver {
	return &Resolver{
		ouiRepo: ouiRepo,
		remote:  remote,
		logger:  logger,
		cache:   make(map[string]string),
	}
}

// Resolve 解析地址对应的厂商
// 随机化地址立即返回 nil；查询失败（超时、未收录、网络错误）均不致命，
// 返回 nil 厂商且不同步重试，下次独立目击时才会再查
func (r *Resolver) Resolve(ctx context.Context, addr address.Address) (*VendorInfo, error) {
	if addr.IsRandomized {
		return nil, nil
	}

	oui := addr.OUI()

	// 1. 进程内缓存
	r.mu.RLock()
	name, ok := r.cache[oui]
	r.mu.RUnlock()
	if ok {
		return &VendorInfo{Name: name, Source: "cache"}, nil
	}

	// 2. 本地 OUI 表
	name, err := r.ouiRepo.LookupVendor(ctx, oui)
	if err == nil {
		r.storeCache(oui, name)
		return &VendorInfo{Name: name, Source: "local"}, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		r.logger.Warn("Local OUI lookup failed",
			zap.String("oui", oui),
			zap.Error(err),
		)
		return nil, nil
	}

	// 3. 远程查询（启用时）
	if r.remote == nil {
		return nil, nil
	}

	name, err = r.remote.Lookup(ctx, oui)
	if err != nil {
		if !errors.Is(err, ErrVendorNotFound) {
			r.logger.Debug("Remote vendor lookup failed",
				zap.String("oui", oui),
				zap.Error(err),
			)
		}
		return nil, nil
	}

	// 成功结果写回缓存，同一 OUI 进程内不再触发远程调用
	r.storeCache(oui, name)
	return &VendorInfo{Name: name, Source: "remote"}, nil
}

func (r *Resolver) storeCache(oui, name string) {
	r.mu.Lock()
	r.cache[oui] = name
	r.mu.Unlock()
}
