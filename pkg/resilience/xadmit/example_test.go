package xadmit_test

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/omeyang/gatekit/pkg/resilience/xadmit"
)

func Example_httpMiddleware() {
	// 创建 Redis 客户端（示例使用 miniredis）
	mr, err := miniredis.Run()
	if err != nil {
		log.Fatal(err)
	}
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	store, err := xadmit.NewRedisStore(client)
	if err != nil {
		fmt.Println("创建存储失败:", err)
		return
	}

	// 创建准入控制器: 上传走 strict，其余 API 走 standard
	adm, err := xadmit.New(store,
		xadmit.WithPolicies(xadmit.StrictPolicy(), xadmit.StandardPolicy()),
		xadmit.WithRoute("/api/v1/upload/**", "strict"),
		xadmit.WithDefaultPolicy("standard"),
	)
	if err != nil {
		fmt.Println("创建准入控制器失败:", err)
		return
	}
	defer func() { _ = adm.Close() }()

	handler := adm.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/queries/1", nil)
	req.RemoteAddr = "203.0.113.7:40000"
	handler.ServeHTTP(rec, req)

	fmt.Println("状态码:", rec.Code)
	fmt.Println("配额:", rec.Header().Get(xadmit.HeaderLimit))
	// Output:
	// 状态码: 200
	// 配额: 100
}

func Example_enforce() {
	// 非 HTTP 调用点使用 Enforce: 放行返回 nil，拒绝返回 *QuotaError
	adm, err := xadmit.New(xadmit.NewLocalStore(),
		xadmit.WithPolicies(xadmit.Policy{
			Name:         "batch",
			Capacity:     2,
			RefillAmount: 2,
			RefillPeriod: time.Minute,
			KeyStrategy:  xadmit.StrategyUser,
		}),
	)
	if err != nil {
		fmt.Println("创建准入控制器失败:", err)
		return
	}
	defer func() { _ = adm.Close() }()

	ctx := context.Background()
	req := xadmit.Request{UserID: "alice"}

	for i := 0; i < 3; i++ {
		if err := adm.Enforce(ctx, req, "batch"); err != nil {
			fmt.Println("拒绝:", xadmit.IsQuotaExceeded(err))
			continue
		}
		fmt.Println("放行")
	}
	// Output:
	// 放行
	// 放行
	// 拒绝: true
}
