package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux（避免引入第三方路由依赖）
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

// HandleHandler 支持 http.Handler 接口
func (r *Router) HandleHandler(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterDeviceRoutes 注册设备查询与用户操作路由
func (r *Router) RegisterDeviceRoutes(h *DeviceHandler) {
	r.HandleHandler(devicesBasePath, h)
	r.HandleHandler(devicesBasePath+"/", h)
}

// RegisterGroupRoutes 注册分组路由
func (r *Router) RegisterGroupRoutes(h *GroupHandler) {
	r.HandleHandler(groupsBasePath, h)
	r.HandleHandler(groupsBasePath+"/", h)
}

// RegisterStatsRoutes 注册统计与检索路由
func (r *Router) RegisterStatsRoutes(h *StatsHandler) {
	r.Handle("/bluetrace/api/v1/stats", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.GetStats(w, req)
	})

	r.Handle("/bluetrace/api/v1/search/range", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.SearchByRange(w, req)
	})

	r.Handle("/bluetrace/api/v1/metrics", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.GetMetrics(w, req)
	})
}

// RegisterOUIRoutes 注册厂商前缀表维护路由
func (r *Router) RegisterOUIRoutes(h *OUIHandler) {
	r.Handle("/bluetrace/api/v1/oui/template", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.GetImportTemplate(w, req)
	})

	r.Handle("/bluetrace/api/v1/oui/export", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.ExportVendors(w, req)
	})

	r.Handle("/bluetrace/api/v1/oui/import", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.ImportVendors(w, req)
	})
}

// RegisterHealthRoute 注册健康检查
func (r *Router) RegisterHealthRoute() {
	r.Handle("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}
