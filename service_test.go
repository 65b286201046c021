package segcache

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	c "github.com/unkn0wn-root/segcache/codec"
	"github.com/unkn0wn-root/segcache/config"
	"github.com/unkn0wn-root/segcache/internal/storetest"
	"github.com/unkn0wn-root/segcache/internal/wire"
)

type account struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

type logLine struct {
	level, msg string
	f          Fields
}

type recLogger struct {
	mu    sync.Mutex
	lines []logLine
}

func (l *recLogger) add(level, msg string, f Fields) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, logLine{level, msg, f})
}
func (l *recLogger) Debug(m string, f Fields) { l.add("debug", m, f) }
func (l *recLogger) Info(m string, f Fields)  { l.add("info", m, f) }
func (l *recLogger) Warn(m string, f Fields)  { l.add("warn", m, f) }
func (l *recLogger) Error(m string, f Fields) { l.add("error", m, f) }

func (l *recLogger) count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, ln := range l.lines {
		if ln.level == level {
			n++
		}
	}
	return n
}

type recHooks struct {
	NopHooks
	mu          sync.Mutex
	storeErrs   []string
	disabled    []error
	corrupt     []string
	unsupported int
	rejected    int
}

func (h *recHooks) StoreError(_, op, _ string, _ error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.storeErrs = append(h.storeErrs, op)
}
func (h *recHooks) SegmentDisabled(_ string, err error) { h.disabled = append(h.disabled, err) }
func (h *recHooks) CorruptEntry(_, key string)          { h.corrupt = append(h.corrupt, key) }
func (h *recHooks) PatternUnsupported(string, string)   { h.unsupported++ }
func (h *recHooks) ProviderSetRejected(string, string)  { h.rejected++ }

func redisConfig() config.Cache {
	cfg := config.Default()
	cfg.Engine = config.EngineRedis
	cfg.TTLMs = 60_000
	return cfg
}

func newTestService(t *testing.T, mem *storetest.Mem, mut func(*Options)) *Service {
	t.Helper()
	opts := Options{
		Segment: "accounts",
		Config:  redisConfig(),
		Store:   storetest.Store("app", mem),
	}
	if mut != nil {
		mut(&opts)
	}
	s, err := New(context.Background(), opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestRoundTripAndIdempotentSet(t *testing.T) {
	ctx := context.Background()
	mem := storetest.New()
	svc := newTestService(t, mem, nil)
	accounts := NewTyped[account](svc, c.JSON[account]{})

	if !accounts.Enabled() {
		t.Fatalf("expected enabled for redis engine")
	}
	if _, ok := accounts.GetByKey(ctx, "entity:7"); ok {
		t.Fatalf("expected initial miss")
	}

	a := account{ID: 7, Name: "Ada", Status: "pending"}
	accounts.SetByKey(ctx, "entity:7", a, 0)
	accounts.SetByKey(ctx, "entity:7", a, 0)

	got, ok := accounts.GetByKey(ctx, "entity:7")
	if !ok || !reflect.DeepEqual(got, a) {
		t.Fatalf("round trip: ok=%v got=%+v", ok, got)
	}
	if !mem.Has("app:accounts:entity:7") {
		t.Fatalf("expected segment-prefixed key, have %v", mem.Keys())
	}
}

func TestTTLDefaultsAndOverrides(t *testing.T) {
	ctx := context.Background()
	mem := storetest.New()

	svc := newTestService(t, mem, nil)
	svc.SetByKey(ctx, "a", []byte("1"), 0)
	svc.SetByKey(ctx, "b", []byte("2"), 5*time.Second)
	if got := mem.TTL("app:accounts:a"); got != time.Minute {
		t.Fatalf("default ttl = %v, want config ttl 1m", got)
	}
	if got := mem.TTL("app:accounts:b"); got != 5*time.Second {
		t.Fatalf("per-write ttl = %v", got)
	}

	mem2 := storetest.New()
	svc2 := newTestService(t, mem2, func(o *Options) { o.TTL = 30 * time.Second })
	svc2.SetByKey(ctx, "a", []byte("1"), 0)
	if got := mem2.TTL("app:accounts:a"); got != 30*time.Second {
		t.Fatalf("instance ttl = %v", got)
	}
}

func TestDeadlineHonouredWithoutStoreTTL(t *testing.T) {
	ctx := context.Background()
	mem := storetest.New()
	now := time.UnixMilli(1_700_000_000_000)
	svc := newTestService(t, mem, func(o *Options) { o.Now = func() time.Time { return now } })

	svc.SetByKey(ctx, "default", []byte("1"), 0)
	svc.SetByKey(ctx, "short", []byte("2"), 5*time.Second)

	// the fake store keeps entries on wall-clock time; only the frame deadline moves
	now = now.Add(5 * time.Second)
	if _, ok := svc.GetByKey(ctx, "short"); ok {
		t.Fatalf("per-write ttl not honoured")
	}
	if mem.Has("app:accounts:short") {
		t.Fatalf("expired entry not dropped")
	}
	if _, ok := svc.GetByKey(ctx, "default"); !ok {
		t.Fatalf("default-ttl entry expired early")
	}

	now = now.Add(time.Minute)
	if _, ok := svc.GetByKey(ctx, "default"); ok {
		t.Fatalf("default ttl not honoured")
	}
}

func TestDefaultCostIsFramedSize(t *testing.T) {
	ctx := context.Background()
	mem := storetest.New()
	svc := newTestService(t, mem, nil)

	payload := make([]byte, 1000)
	svc.SetByKey(ctx, "big", payload, 0)
	if got := mem.Cost("app:accounts:big"); got <= int64(len(payload)) {
		t.Fatalf("cost = %d, want framed size above %d", got, len(payload))
	}

	custom := storetest.New()
	svc2 := newTestService(t, custom, func(o *Options) {
		o.ComputeSetCost = func(string, []byte) int64 { return 1 }
	})
	svc2.SetByKey(ctx, "big", payload, 0)
	if got := custom.Cost("app:accounts:big"); got != 1 {
		t.Fatalf("custom cost = %d", got)
	}
}

func TestDisabledNeverTouchesStore(t *testing.T) {
	ctx := context.Background()
	mem := storetest.New()
	store := &storetest.CountingStore{Inner: storetest.Store("app", mem)}

	svc, err := New(ctx, Options{Segment: "accounts", Config: config.Default(), Store: store})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if svc.Enabled() {
		t.Fatalf("memory engine must disable caching")
	}
	typed := NewTyped[account](svc, c.JSON[account]{})

	svc.SetByKey(ctx, "k", []byte("v"), 0)
	if _, ok := svc.GetByKey(ctx, "k"); ok {
		t.Fatalf("disabled cache returned a hit")
	}
	typed.SetByKey(ctx, "entity:1", account{ID: 1}, 0)
	typed.GetByKey(ctx, "entity:1")
	svc.DropByKey(ctx, "k")
	svc.Set(ctx, Params{"id": 1}, []byte("v"), 0)
	svc.Get(ctx, Params{"id": 1})
	svc.Drop(ctx, Params{"id": 1})
	svc.InvalidateAll(ctx)
	if _, ok := svc.DropPattern(ctx, "*"); ok {
		t.Fatalf("DropPattern must report not applied when disabled")
	}

	if store.Opens() != 0 || mem.Calls("") != 0 {
		t.Fatalf("disabled cache touched the store: opens=%d calls=%d", store.Opens(), mem.Calls(""))
	}
}

func TestDisabledWithoutStore(t *testing.T) {
	svc, err := New(context.Background(), Options{Segment: "accounts", Config: config.Default()})
	if err != nil {
		t.Fatalf("memory engine must not require a store: %v", err)
	}
	if svc.Enabled() || svc.DisabledReason() == nil {
		t.Fatalf("expected disabled with a reason")
	}
}

func TestFailSoftOnStoreErrors(t *testing.T) {
	ctx := context.Background()
	mem := storetest.New()
	log := &recLogger{}
	hooks := &recHooks{}
	svc := newTestService(t, mem, func(o *Options) {
		o.Logger = log
		o.Hooks = hooks
	})
	typed := NewTyped[account](svc, c.JSON[account]{})

	mem.Fail = storetest.ErrDown

	if _, ok := typed.GetByKey(ctx, "entity:1"); ok {
		t.Fatalf("failing store must read as miss")
	}
	typed.SetByKey(ctx, "entity:1", account{ID: 1}, 0)
	typed.DropByKey(ctx, "entity:1")
	typed.InvalidateAll(ctx)

	want := []string{"get", "set", "del", "del_pattern"}
	if !reflect.DeepEqual(hooks.storeErrs, want) {
		t.Fatalf("store error hooks = %v, want %v", hooks.storeErrs, want)
	}
	if log.count("warn") != len(want) {
		t.Fatalf("expected %d warn logs, got %d", len(want), log.count("warn"))
	}
	se, ok := log.lines[len(log.lines)-1].f["err"].(*StoreError)
	if !ok || !errors.Is(se, storetest.ErrDown) || se.Op != "del_pattern" {
		t.Fatalf("expected *StoreError wrapping ErrDown in log fields, got %#v", log.lines[len(log.lines)-1].f["err"])
	}

	// store recovers; cache works again without reconstruction
	mem.Fail = nil
	typed.SetByKey(ctx, "entity:1", account{ID: 1}, 0)
	if _, ok := typed.GetByKey(ctx, "entity:1"); !ok {
		t.Fatalf("expected hit after store recovered")
	}
}

func TestCancelledContextIsNotAStoreFault(t *testing.T) {
	mem := storetest.New()
	hooks := &recHooks{}
	svc := newTestService(t, mem, func(o *Options) { o.Hooks = hooks })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	mem.Fail = context.Canceled
	if _, ok := svc.GetByKey(ctx, "k"); ok {
		t.Fatalf("expected miss")
	}
	if len(hooks.storeErrs) != 0 {
		t.Fatalf("cancelled call reported as store error: %v", hooks.storeErrs)
	}
}

func TestSegmentAlreadyProvisioned(t *testing.T) {
	ctx := context.Background()
	mem := storetest.New()
	store := storetest.Store("app", mem)
	hooks := &recHooks{}
	log := &recLogger{}

	first, err := New(ctx, Options{Segment: "accounts", Config: redisConfig(), Store: store})
	if err != nil || !first.Enabled() {
		t.Fatalf("first New: enabled=%v err=%v", first != nil && first.Enabled(), err)
	}

	second, err := New(ctx, Options{Segment: "accounts", Config: redisConfig(), Store: store, Hooks: hooks, Logger: log})
	if err != nil {
		t.Fatalf("provisioned segment must not fail construction: %v", err)
	}
	if second.Enabled() {
		t.Fatalf("second instance must be disabled")
	}
	if !errors.Is(second.DisabledReason(), ErrSegmentProvisioned) {
		t.Fatalf("DisabledReason = %v", second.DisabledReason())
	}
	if len(hooks.disabled) != 1 || log.count("warn") != 1 {
		t.Fatalf("expected one SegmentDisabled hook and one warn, got %d/%d", len(hooks.disabled), log.count("warn"))
	}

	before := mem.Calls("")
	second.SetByKey(ctx, "k", []byte("v"), 0)
	second.GetByKey(ctx, "k")
	if mem.Calls("") != before {
		t.Fatalf("disabled segment touched the store")
	}

	// releasing the first handle lets a fresh instance provision again
	_ = first.Close(ctx)
	third, _ := New(ctx, Options{Segment: "accounts", Config: redisConfig(), Store: store})
	if !third.Enabled() {
		t.Fatalf("expected enabled after release: %v", third.DisabledReason())
	}
}

func TestMisconfigurationSurfaces(t *testing.T) {
	ctx := context.Background()
	store := storetest.Store("app", storetest.New())

	bad := redisConfig()
	bad.TTLMs = 0

	cases := map[string]struct {
		opts Options
		key  string
	}{
		"segment":   {Options{Config: redisConfig(), Store: store}, "segment"},
		"ttl":       {Options{Segment: "accounts", Config: bad, Store: store}, "cache.ttl_ms"},
		"store":     {Options{Segment: "accounts", Config: redisConfig()}, "store"},
		"neg ttl":   {Options{Segment: "accounts", Config: redisConfig(), Store: store, TTL: -time.Second}, "ttl"},
		"no engine": {Options{Segment: "accounts", Config: config.Cache{TTLMs: 1, StoreName: "app", DefaultPageSize: 1}}, "cache.engine"},
		"reserved":  {Options{Segment: "accounts:archive", Config: redisConfig(), Store: store}, "segment"},
	}
	for name, tc := range cases {
		_, err := New(ctx, tc.opts)
		var ce *config.Error
		if !errors.As(err, &ce) || ce.Key != tc.key {
			t.Fatalf("%s: expected config error for %q, got %v", name, tc.key, err)
		}
	}
}

func TestCorruptEntriesSelfHeal(t *testing.T) {
	ctx := context.Background()
	mem := storetest.New()
	hooks := &recHooks{}
	svc := newTestService(t, mem, func(o *Options) { o.Hooks = hooks })
	typed := NewTyped[account](svc, c.JSON[account]{})

	// foreign bytes fail framing
	mem.Put("app:accounts:entity:1", []byte("not-wire-format"))
	if _, ok := typed.GetByKey(ctx, "entity:1"); ok {
		t.Fatalf("corrupt frame must miss")
	}
	if mem.Has("app:accounts:entity:1") {
		t.Fatalf("corrupt frame not deleted")
	}

	// valid frame, undecodable payload
	mem.Put("app:accounts:entity:2", wire.Encode(wire.Meta{StoredAt: time.Now()}, []byte("{not json")))
	if _, ok := typed.GetByKey(ctx, "entity:2"); ok {
		t.Fatalf("undecodable payload must miss")
	}
	if mem.Has("app:accounts:entity:2") {
		t.Fatalf("undecodable entry not deleted")
	}

	if !reflect.DeepEqual(hooks.corrupt, []string{"entity:1", "entity:2"}) {
		t.Fatalf("corrupt hooks = %v", hooks.corrupt)
	}
}

func TestProviderRejectionIsSilent(t *testing.T) {
	ctx := context.Background()
	mem := storetest.New()
	hooks := &recHooks{}
	svc := newTestService(t, mem, func(o *Options) { o.Hooks = hooks })

	mem.Reject = true
	svc.SetByKey(ctx, "k", []byte("v"), 0)
	if hooks.rejected != 1 {
		t.Fatalf("expected ProviderSetRejected hook")
	}
	if _, ok := svc.GetByKey(ctx, "k"); ok {
		t.Fatalf("rejected write must not be readable")
	}
}

func TestGenerateKeyAndParamsOps(t *testing.T) {
	ctx := context.Background()
	mem := storetest.New()
	svc := newTestService(t, mem, nil)

	k1 := svc.GenerateKey(Params{"status": "pending", "page": 1})
	k2 := svc.GenerateKey(Params{"page": 1, "status": "pending", "area": nil})
	if k1 != k2 {
		t.Fatalf("GenerateKey not order independent: %q vs %q", k1, k2)
	}

	svc.Set(ctx, Params{"status": "pending", "page": 1}, []byte("ids"), 0)
	if b, ok := svc.Get(ctx, Params{"page": 1, "status": "pending"}); !ok || string(b) != "ids" {
		t.Fatalf("Get(params): ok=%v b=%q", ok, b)
	}
	svc.Drop(ctx, Params{"status": "pending", "page": 1})
	if _, ok := svc.Get(ctx, Params{"status": "pending", "page": 1}); ok {
		t.Fatalf("expected miss after Drop(params)")
	}

	custom := newTestService(t, storetest.New(), func(o *Options) {
		o.Segment = "orders"
		o.KeyFunc = func(p Params) string { return "order:" + p["id"].(string) }
	})
	if k := custom.GenerateKey(Params{"id": "9"}); k != "order:9" {
		t.Fatalf("custom KeyFunc not used: %q", k)
	}
}

func TestInvalidateAllIsSegmentScoped(t *testing.T) {
	ctx := context.Background()
	mem := storetest.New()
	store := storetest.Store("app", mem)

	accounts, _ := New(ctx, Options{Segment: "accounts", Config: redisConfig(), Store: store})
	orders, _ := New(ctx, Options{Segment: "orders", Config: redisConfig(), Store: store})

	accounts.SetByKey(ctx, "entity:1", []byte("a"), 0)
	accounts.SetByKey(ctx, "active:::1:20", []byte("l"), 0)
	orders.SetByKey(ctx, "entity:1", []byte("o"), 0)

	accounts.InvalidateAll(ctx)

	if _, ok := accounts.GetByKey(ctx, "entity:1"); ok {
		t.Fatalf("accounts entity survived InvalidateAll")
	}
	if _, ok := accounts.GetByKey(ctx, "active:::1:20"); ok {
		t.Fatalf("accounts list survived InvalidateAll")
	}
	if _, ok := orders.GetByKey(ctx, "entity:1"); !ok {
		t.Fatalf("orders segment affected by accounts InvalidateAll")
	}
}

func TestPatternUnsupported(t *testing.T) {
	ctx := context.Background()
	mem := storetest.New()
	mem.NoPattern = true
	hooks := &recHooks{}
	svc := newTestService(t, mem, func(o *Options) { o.Hooks = hooks })

	if _, ok := svc.DropPattern(ctx, "*"); ok {
		t.Fatalf("expected not applied")
	}
	if hooks.unsupported != 1 || len(hooks.storeErrs) != 0 {
		t.Fatalf("unsupported=%d storeErrs=%v", hooks.unsupported, hooks.storeErrs)
	}
}
