package strategy

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"marketsignal/internal/broker"
	"marketsignal/internal/domain"
)

// scriptedStrategy emits preset signals at preset bar indices.
type scriptedStrategy struct {
	name    string
	warmup  int
	signals map[int]domain.SignalType
	calls   []int
}

func (s *scriptedStrategy) Name() string                                   { return s.name }
func (s *scriptedStrategy) Init(_ context.Context, _ []domain.Bar) error   { return nil }
func (s *scriptedStrategy) Warmup() int                                    { return s.warmup }
func (s *scriptedStrategy) OnBar(_ context.Context, i int, bar domain.Bar) ([]domain.Signal, error) {
	s.calls = append(s.calls, i)
	typ, ok := s.signals[i]
	if !ok {
		return nil, nil
	}
	return []domain.Signal{NewSignal(s.name, bar, typ, nil)}, nil
}

// rampBars returns n bars opening at 10, 11, 12, ... and closing half a
// point above the open.
func rampBars(n int) []domain.Bar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.Bar, n)
	for i := range bars {
		open := 10 + float64(i)
		bars[i] = domain.Bar{
			Symbol:    "TEST",
			Timestamp: start.AddDate(0, 0, i),
			Open:      open,
			High:      open + 1,
			Low:       open - 1,
			Close:     open + 0.5,
		}
	}
	return bars
}

func testConfig(commission float64) BacktestConfig {
	cfg := DefaultBacktestConfig()
	cfg.Cash = 1000
	cfg.Commission = commission
	return cfg
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register(func() Strategy { return &scriptedStrategy{name: "test-strategy"} })

	got, ok := r.Get("test-strategy")
	if !ok {
		t.Fatal("Get returned false for registered strategy")
	}
	if got.Name() != "test-strategy" {
		t.Errorf("Get returned strategy with Name() = %q, want %q", got.Name(), "test-strategy")
	}

	again, _ := r.Get("test-strategy")
	if got == again {
		t.Error("Get returned the same instance twice, want a fresh strategy per call")
	}
}

func TestRegistryGet_NotFound(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Get("nonexistent")
	if ok {
		t.Error("Get returned true for unregistered strategy")
	}
}

func TestRegistryList(t *testing.T) {
	r := NewRegistry()
	r.Register(func() Strategy { return &scriptedStrategy{name: "beta"} })
	r.Register(func() Strategy { return &scriptedStrategy{name: "alpha"} })

	names := r.List()
	if len(names) != 2 {
		t.Fatalf("List returned %d names, want 2", len(names))
	}
	// List returns sorted names.
	if names[0] != "alpha" || names[1] != "beta" {
		t.Errorf("List returned %v, want [alpha beta]", names)
	}
}

func TestRunBarsFillsAtNextOpen(t *testing.T) {
	s := &scriptedStrategy{name: "buy", warmup: 1, signals: map[int]domain.SignalType{2: domain.SignalTypeBuy}}
	bt := NewBacktester(testConfig(0), nil)

	res, err := bt.RunBars(context.Background(), s, rampBars(6))
	if err != nil {
		t.Fatalf("RunBars: %v", err)
	}
	if len(res.Equity) != 6 {
		t.Fatalf("len(Equity) = %d, want 6", len(res.Equity))
	}
	if len(res.Trades) != 1 {
		t.Fatalf("len(Trades) = %d, want 1", len(res.Trades))
	}
	tr := res.Trades[0]
	if tr.EntryIndex != 3 || tr.EntryPrice != 13 {
		t.Errorf("entry = (%d, %v), want (3, 13)", tr.EntryIndex, tr.EntryPrice)
	}
	if tr.ExitIndex != 5 || tr.ExitPrice != 15 {
		t.Errorf("exit = (%d, %v), want (5, 15)", tr.ExitIndex, tr.ExitPrice)
	}
	if tr.Qty != 76 {
		t.Errorf("Qty = %d, want 76", tr.Qty)
	}

	want := []float64{1000, 1000, 1000, 1038, 1114, 1152}
	for i, w := range want {
		if math.Abs(res.Equity[i].Equity-w) > 1e-9 {
			t.Errorf("Equity[%d] = %v, want %v", i, res.Equity[i].Equity, w)
		}
	}
	if res.Stats.EquityFinal != res.Equity[5].Equity {
		t.Errorf("Stats.EquityFinal = %v, want %v", res.Stats.EquityFinal, res.Equity[5].Equity)
	}
	if res.Stats.NumTrades != 1 {
		t.Errorf("Stats.NumTrades = %d, want 1", res.Stats.NumTrades)
	}
}

func TestRunBarsSkipsWarmup(t *testing.T) {
	s := &scriptedStrategy{name: "early", warmup: 2, signals: map[int]domain.SignalType{1: domain.SignalTypeBuy}}
	bt := NewBacktester(testConfig(0), nil)

	res, err := bt.RunBars(context.Background(), s, rampBars(6))
	if err != nil {
		t.Fatalf("RunBars: %v", err)
	}
	if len(s.calls) == 0 || s.calls[0] != 3 {
		t.Errorf("first OnBar index = %v, want 3", s.calls)
	}
	if len(res.Trades) != 0 {
		t.Errorf("len(Trades) = %d, want 0", len(res.Trades))
	}
	for i, p := range res.Equity {
		if p.Equity != 1000 {
			t.Errorf("Equity[%d] = %v, want 1000", i, p.Equity)
		}
	}
}

func TestRunBarsExclusiveReversal(t *testing.T) {
	s := &scriptedStrategy{name: "flip", warmup: 1, signals: map[int]domain.SignalType{
		2: domain.SignalTypeBuy,
		3: domain.SignalTypeSell,
	}}
	bt := NewBacktester(testConfig(0), nil)

	res, err := bt.RunBars(context.Background(), s, rampBars(6))
	if err != nil {
		t.Fatalf("RunBars: %v", err)
	}
	if len(res.Trades) != 2 {
		t.Fatalf("len(Trades) = %d, want 2", len(res.Trades))
	}
	if res.Trades[0].Side != domain.PositionSideLong || res.Trades[0].ExitIndex != 4 {
		t.Errorf("first trade = %+v, want long closed on bar 4", res.Trades[0])
	}
	if res.Trades[1].Side != domain.PositionSideShort || res.Trades[1].EntryIndex != 4 {
		t.Errorf("second trade = %+v, want short opened on bar 4", res.Trades[1])
	}
	if len(res.Signals) != 2 {
		t.Errorf("len(Signals) = %d, want 2", len(res.Signals))
	}
}

func TestRunBarsCommissionReducesEquity(t *testing.T) {
	run := func(commission float64) float64 {
		s := &scriptedStrategy{name: "buy", warmup: 1, signals: map[int]domain.SignalType{2: domain.SignalTypeBuy}}
		res, err := NewBacktester(testConfig(commission), nil).RunBars(context.Background(), s, rampBars(6))
		if err != nil {
			t.Fatalf("RunBars: %v", err)
		}
		return res.Stats.EquityFinal
	}
	free, paid := run(0), run(0.01)
	if paid >= free {
		t.Errorf("final equity with commission = %v, want less than %v", paid, free)
	}
}

func TestRunBarsErrors(t *testing.T) {
	bt := NewBacktester(testConfig(0), nil)
	ctx := context.Background()

	if _, err := bt.RunBars(ctx, &scriptedStrategy{name: "x"}, nil); !errors.Is(err, ErrNoBars) {
		t.Errorf("RunBars(no bars) error = %v, want ErrNoBars", err)
	}
	if _, err := bt.RunBars(ctx, &scriptedStrategy{name: "x", warmup: 5}, rampBars(6)); !errors.Is(err, ErrNotEnoughBars) {
		t.Errorf("RunBars(short) error = %v, want ErrNotEnoughBars", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := bt.RunBars(cancelled, &scriptedStrategy{name: "x"}, rampBars(6)); !errors.Is(err, context.Canceled) {
		t.Errorf("RunBars(cancelled) error = %v, want context.Canceled", err)
	}
}

// recordingBroker counts the calls a backtest makes on the broker it is
// given.
type recordingBroker struct {
	broker.Replayer
	submitted int
	accounts  int
	finished  bool
}

func (r *recordingBroker) SubmitOrder(ctx context.Context, o *domain.Order) (*domain.Order, error) {
	r.submitted++
	return r.Replayer.SubmitOrder(ctx, o)
}

func (r *recordingBroker) GetAccount(ctx context.Context) (*domain.AccountInfo, error) {
	r.accounts++
	return r.Replayer.GetAccount(ctx)
}

func (r *recordingBroker) Finish(i int, bar domain.Bar) {
	r.finished = true
	r.Replayer.Finish(i, bar)
}

func TestRunBarsUsesBrokerFactory(t *testing.T) {
	var rec *recordingBroker
	var gotSymbol string
	factory := func(symbol string, cfg BacktestConfig) broker.Replayer {
		gotSymbol = symbol
		rec = &recordingBroker{Replayer: SimulatorFactory(symbol, cfg)}
		return rec
	}
	bt := NewBacktester(testConfig(0), factory)
	s := &scriptedStrategy{name: "buy", warmup: 1, signals: map[int]domain.SignalType{2: domain.SignalTypeBuy}}

	res, err := bt.RunBars(context.Background(), s, rampBars(6))
	if err != nil {
		t.Fatalf("RunBars: %v", err)
	}
	if gotSymbol != "TEST" {
		t.Errorf("factory symbol = %q, want TEST", gotSymbol)
	}
	if rec.submitted != 1 {
		t.Errorf("orders submitted = %d, want 1", rec.submitted)
	}
	// One account read per bar plus one after the final close.
	if rec.accounts != 7 {
		t.Errorf("account reads = %d, want 7", rec.accounts)
	}
	if !rec.finished {
		t.Error("Finish was not called")
	}
	if len(res.Trades) != 1 {
		t.Errorf("len(Trades) = %d, want 1", len(res.Trades))
	}
}
