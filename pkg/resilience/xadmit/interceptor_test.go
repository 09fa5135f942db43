package xadmit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestAdmitter(t *testing.T, opts ...Option) *Admitter {
	t.Helper()

	adm, err := New(NewLocalStore(), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		if err := adm.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return adm
}

func TestNew_Validation(t *testing.T) {
	t.Run("nil store", func(t *testing.T) {
		if _, err := New(nil); !errors.Is(err, ErrNilStore) {
			t.Errorf("expected ErrNilStore, got %v", err)
		}
	})

	t.Run("invalid policy", func(t *testing.T) {
		_, err := New(NewLocalStore(), WithPolicies(Policy{Name: "bad"}))
		if !errors.Is(err, ErrInvalidPolicy) {
			t.Errorf("expected ErrInvalidPolicy, got %v", err)
		}
	})

	t.Run("duplicate policy name", func(t *testing.T) {
		_, err := New(NewLocalStore(), WithPolicies(StandardPolicy(), StandardPolicy()))
		if !errors.Is(err, ErrInvalidPolicy) {
			t.Errorf("expected ErrInvalidPolicy, got %v", err)
		}
	})

	t.Run("dangling route reference", func(t *testing.T) {
		_, err := New(NewLocalStore(),
			WithPolicies(StandardPolicy()),
			WithRoute("/api/**", "missing"),
		)
		if !errors.Is(err, ErrUnknownPolicy) {
			t.Errorf("expected ErrUnknownPolicy, got %v", err)
		}
	})

	t.Run("dangling default reference", func(t *testing.T) {
		_, err := New(NewLocalStore(), WithDefaultPolicy("missing"))
		if !errors.Is(err, ErrUnknownPolicy) {
			t.Errorf("expected ErrUnknownPolicy, got %v", err)
		}
	})

	t.Run("bad custom expression fails construction", func(t *testing.T) {
		_, err := New(NewLocalStore(), WithPolicies(Policy{
			Name: "custom", Capacity: 1, RefillAmount: 1, RefillPeriod: time.Minute,
			KeyStrategy: StrategyCustom, KeyExpr: "${nope}",
		}))
		if !errors.Is(err, ErrBadKeyExpr) {
			t.Errorf("expected ErrBadKeyExpr, got %v", err)
		}
	})
}

func TestAdmitter_PolicyResolutionPrecedence(t *testing.T) {
	adm := newTestAdmitter(t,
		WithPolicies(StrictPolicy(), StandardPolicy(), RelaxedPolicy(), UnlimitedPolicy()),
		WithHandlerPolicy("/api/v1/upload", "strict"),
		WithGroupPolicy("/admin/", "unlimited"),
		WithRoute("/api/v1/queries/**", "standard"),
		WithDefaultPolicy("relaxed"),
	)

	tests := []struct {
		path string
		want string
	}{
		// 精确绑定优先于一切
		{"/api/v1/upload", "strict"},
		// 前缀分组优先于路由表
		{"/admin/metrics", "unlimited"},
		// 路由表
		{"/api/v1/queries/123", "standard"},
		// 默认策略兜底
		{"/anything/else", "relaxed"},
	}
	for _, tt := range tests {
		got, ok := adm.PolicyFor(tt.path)
		if !ok || got != tt.want {
			t.Errorf("PolicyFor(%q) = %q (%v), want %q", tt.path, got, ok, tt.want)
		}
	}
}

func TestAdmitter_NoBindingAdmitsUnconditionally(t *testing.T) {
	adm := newTestAdmitter(t, WithPolicies(Policy{
		Name: "tiny", Capacity: 1, RefillAmount: 1, RefillPeriod: time.Minute,
	}), WithRoute("/api/**", "tiny"))

	req := Request{Path: "/health", RemoteAddr: "192.0.2.1:1"}
	for i := 0; i < 10; i++ {
		d := adm.Check(context.Background(), req)
		if !d.Allowed {
			t.Fatalf("unbound path must always admit, denied at %d", i)
		}
		if d.Limit != 0 {
			t.Errorf("unbound decision should carry no limit, got %d", d.Limit)
		}
	}
}

func TestAdmitter_CheckConsumesTokens(t *testing.T) {
	adm := newTestAdmitter(t,
		WithPolicies(Policy{Name: "tiny", Capacity: 2, RefillAmount: 2, RefillPeriod: time.Minute}),
		WithDefaultPolicy("tiny"),
	)
	req := Request{Path: "/api", RemoteAddr: "192.0.2.1:1"}
	ctx := context.Background()

	d := adm.Check(ctx, req)
	if !d.Allowed || d.Remaining != 1 {
		t.Fatalf("first check: %+v", d)
	}
	d = adm.Check(ctx, req)
	if !d.Allowed || d.Remaining != 0 {
		t.Fatalf("second check: %+v", d)
	}

	d = adm.Check(ctx, req)
	if d.Allowed {
		t.Fatal("third check should be denied")
	}
	if d.RetryAfterSeconds() < 1 || d.RetryAfterSeconds() > 60 {
		t.Errorf("retry after out of range: %d", d.RetryAfterSeconds())
	}

	// 不同 IP 使用独立的桶
	other := Request{Path: "/api", RemoteAddr: "192.0.2.2:1"}
	if d := adm.Check(ctx, other); !d.Allowed {
		t.Error("distinct client should have its own bucket")
	}
}

func TestAdmitter_PoliciesKeepSeparateBuckets(t *testing.T) {
	adm := newTestAdmitter(t,
		WithPolicies(
			Policy{Name: "tight", Capacity: 2, RefillAmount: 2, RefillPeriod: time.Minute},
			Policy{Name: "wide", Capacity: 100, RefillAmount: 100, RefillPeriod: time.Minute},
		),
		WithRoute("/api/v1/upload/**", "tight"),
		WithRoute("/api/v1/queries/**", "wide"),
	)
	ctx := context.Background()
	upload := Request{Path: "/api/v1/upload/doc", RemoteAddr: "192.0.2.1:1"}
	query := Request{Path: "/api/v1/queries/q1", RemoteAddr: "192.0.2.1:1"}

	// 两个策略都按 IP 派生，耗尽一个策略的桶
	for i := 0; i < 2; i++ {
		if d := adm.Check(ctx, upload); !d.Allowed {
			t.Fatalf("upload check %d denied", i)
		}
	}
	if d := adm.Check(ctx, upload); d.Allowed {
		t.Fatal("tight bucket should be exhausted")
	}

	// 同一客户端在另一个策略下有独立的桶
	d := adm.Check(ctx, query)
	if !d.Allowed {
		t.Fatal("exhausting one policy must not reject another policy's route")
	}
	if d.Limit != 100 || d.Remaining != 99 {
		t.Errorf("query decision should use its own policy: %+v", d)
	}
}

func TestAdmitter_Enforce(t *testing.T) {
	adm := newTestAdmitter(t,
		WithPolicies(Policy{Name: "tiny", Capacity: 1, RefillAmount: 1, RefillPeriod: time.Minute}),
	)
	req := Request{Path: "/job", RemoteAddr: "192.0.2.1:1"}
	ctx := context.Background()

	if err := adm.Enforce(ctx, req, "tiny"); err != nil {
		t.Fatalf("first enforce: %v", err)
	}

	err := adm.Enforce(ctx, req, "tiny")
	if !IsQuotaExceeded(err) {
		t.Fatalf("expected quota exceeded, got %v", err)
	}
	var qe *QuotaError
	if !errors.As(err, &qe) {
		t.Fatalf("expected *QuotaError, got %T", err)
	}
	if qe.Policy != "tiny" || qe.Limit != 1 {
		t.Errorf("unexpected quota error: %+v", qe)
	}
	if qe.RetryAfterSeconds() < 1 {
		t.Errorf("retry after must be at least 1s, got %d", qe.RetryAfterSeconds())
	}

	if err := adm.Enforce(ctx, req, "missing"); !errors.Is(err, ErrUnknownPolicy) {
		t.Errorf("expected ErrUnknownPolicy, got %v", err)
	}
}

func TestAdmitter_Disabled(t *testing.T) {
	adm := newTestAdmitter(t,
		WithPolicies(Policy{Name: "tiny", Capacity: 1, RefillAmount: 1, RefillPeriod: time.Minute}),
		WithDefaultPolicy("tiny"),
		WithEnabled(false),
	)
	req := Request{Path: "/api", RemoteAddr: "192.0.2.1:1"}

	for i := 0; i < 10; i++ {
		if d := adm.Check(context.Background(), req); !d.Allowed {
			t.Fatal("disabled admitter must admit everything")
		}
	}
	if err := adm.Enforce(context.Background(), req, "tiny"); err != nil {
		t.Errorf("disabled enforce: %v", err)
	}
}

func TestAdmitter_StatusAndResetKey(t *testing.T) {
	adm := newTestAdmitter(t,
		WithPolicies(Policy{Name: "tiny", Capacity: 3, RefillAmount: 3, RefillPeriod: time.Minute}),
		WithDefaultPolicy("tiny"),
	)
	ctx := context.Background()
	req := Request{Path: "/api", RemoteAddr: "192.0.2.7:1"}

	adm.Check(ctx, req)
	adm.Check(ctx, req)

	st, err := adm.Status(ctx, "tiny:ip:192.0.2.7", "tiny")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Remaining != 1 {
		t.Errorf("expected remaining 1, got %d", st.Remaining)
	}

	if err := adm.ResetKey(ctx, "tiny:ip:192.0.2.7"); err != nil {
		t.Fatalf("ResetKey: %v", err)
	}
	st, err = adm.Status(ctx, "tiny:ip:192.0.2.7", "tiny")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Remaining != 3 {
		t.Errorf("expected full bucket after reset, got %d", st.Remaining)
	}

	if _, err := adm.Status(ctx, "tiny:ip:192.0.2.7", "missing"); !errors.Is(err, ErrUnknownPolicy) {
		t.Errorf("expected ErrUnknownPolicy, got %v", err)
	}
}
