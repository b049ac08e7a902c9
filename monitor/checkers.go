package monitor

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"time"
)

// RuntimeChecker reports goroutine and heap usage of the process
type RuntimeChecker struct {
	warnGoroutines     int
	criticalGoroutines int
}

// NewRuntimeChecker creates a runtime checker. A goroutine count above warn is
// degraded, above critical unhealthy.
func NewRuntimeChecker(warn, critical int) *RuntimeChecker {
	return &RuntimeChecker{
		warnGoroutines:     warn,
		criticalGoroutines: critical,
	}
}

// Name implements Checker
func (c *RuntimeChecker) Name() string {
	return "runtime"
}

// Check implements Checker
func (c *RuntimeChecker) Check(ctx context.Context) CheckResult {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	goroutines := runtime.NumGoroutine()

	result := CheckResult{
		Name:      c.Name(),
		Status:    StatusHealthy,
		Message:   "runtime is normal",
		Timestamp: time.Now(),
		Details: map[string]string{
			"goroutines":    strconv.Itoa(goroutines),
			"heap_alloc_mb": strconv.FormatUint(m.HeapAlloc/1024/1024, 10),
			"gc_runs":       strconv.FormatUint(uint64(m.NumGC), 10),
		},
	}

	switch {
	case c.criticalGoroutines > 0 && goroutines > c.criticalGoroutines:
		result.Status = StatusUnhealthy
		result.Message = fmt.Sprintf("too many goroutines: %d", goroutines)
	case c.warnGoroutines > 0 && goroutines > c.warnGoroutines:
		result.Status = StatusDegraded
		result.Message = fmt.Sprintf("high goroutine count: %d", goroutines)
	}
	return result
}
