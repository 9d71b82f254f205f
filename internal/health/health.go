package health

import (
	"fmt"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"

	"drivehub/backend/internal/storage"
	redisstore "drivehub/backend/internal/storage/redis"
)

// HealthChecker 健康检查器
//
// 存活探针只看进程自身与存储连接；就绪探针额外附带
// goroutine 数量上限，异常堆积时摘除流量。
type HealthChecker struct {
	health healthcheck.Handler
	store  storage.Store
	redis  *redisstore.Client // 可为 nil
	logger *zap.Logger
}

// NewHealthChecker 创建健康检查器
func NewHealthChecker(store storage.Store, redis *redisstore.Client, logger *zap.Logger) *HealthChecker {
	hc := &HealthChecker{
		health: healthcheck.NewHandler(),
		store:  store,
		redis:  redis,
		logger: logger,
	}

	hc.addChecks()

	return hc
}

// addChecks 注册各项检查
func (hc *HealthChecker) addChecks() {
	hc.health.AddLivenessCheck("database", func() error {
		return hc.store.Health()
	})

	if hc.redis != nil {
		hc.health.AddReadinessCheck("redis", func() error {
			return hc.redis.Health()
		})
	}

	hc.health.AddReadinessCheck("goroutines", healthcheck.GoroutineCountCheck(2048))
}

// Handler 返回 /live 与 /ready 的 HTTP 处理器
func (hc *HealthChecker) Handler() http.Handler {
	return hc.health
}

// CheckHealth 执行一次检查并返回各组件状态
func (hc *HealthChecker) CheckHealth() map[string]string {
	results := make(map[string]string)

	if err := hc.store.Health(); err != nil {
		results["database"] = fmt.Sprintf("ERROR: %v", err)
	} else {
		results["database"] = "OK"
	}

	if hc.redis != nil {
		if err := hc.redis.Health(); err != nil {
			results["redis"] = fmt.Sprintf("ERROR: %v", err)
		} else {
			results["redis"] = "OK"
		}
	}

	return results
}

// StartPeriodicCheck 周期性记录健康状态，直到 stop 关闭
func (hc *HealthChecker) StartPeriodicCheck(stop <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			for component, status := range hc.CheckHealth() {
				if status != "OK" {
					hc.logger.Warn("health check failed",
						zap.String("component", component),
						zap.String("status", status),
					)
				}
			}
		}
	}
}
