package monotime_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/jensholdgaard/timedrun/internal/clock"
	"github.com/jensholdgaard/timedrun/internal/monotime"
)

func TestParseOverflowPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    monotime.OverflowPolicy
		wantErr bool
	}{
		{in: "", want: monotime.OverflowError},
		{in: "error", want: monotime.OverflowError},
		{in: " Saturate ", want: monotime.OverflowSaturate},
		{in: "wrap", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := monotime.ParseOverflowPolicy(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseOverflowPolicy(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseOverflowPolicy(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestReal_NowIsMonotonic(t *testing.T) {
	clk := monotime.NewReal()
	prev := clk.Now()
	for i := 0; i < 1000; i++ {
		next := clk.Now()
		if _, ok := next.CheckedDurationSince(prev); !ok {
			t.Fatalf("sample %d: %v is before %v", i, next, prev)
		}
		prev = next
	}
}

func TestReal_SleepWaitsAtLeastDuration(t *testing.T) {
	clk := monotime.NewReal()
	d := monotime.Milliseconds(20)

	start := clk.Now()
	if err := clk.Sleep(d); err != nil {
		t.Fatalf("Sleep() error = %v", err)
	}
	elapsed, ok := clk.Now().CheckedDurationSince(start)
	if !ok {
		t.Fatal("clock went backwards across Sleep")
	}
	if elapsed.Compare(d) < 0 {
		t.Errorf("elapsed %v, want at least %v", elapsed, d)
	}
}

func TestReal_SleepPanicIsContained(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	clk := monotime.NewReal(
		monotime.WithLogger(logger),
		monotime.WithSleepFunc(func(time.Duration) { panic("timer irregularity") }),
	)

	if err := clk.Sleep(monotime.Milliseconds(1)); err != nil {
		t.Fatalf("Sleep() error = %v, want nil", err)
	}
	out := buf.String()
	if !strings.Contains(out, "platform sleep panicked") || !strings.Contains(out, "timer irregularity") {
		t.Errorf("log output %q does not report the panic", out)
	}
}

func TestReal_SleepOverflow(t *testing.T) {
	var slept []time.Duration
	record := monotime.WithSleepFunc(func(d time.Duration) { slept = append(slept, d) })

	strict := monotime.NewReal(record)
	err := strict.Sleep(monotime.MaxDuration)
	if !errors.Is(err, clock.ErrOverflow) {
		t.Fatalf("Sleep(MaxDuration) error = %v, want ErrOverflow", err)
	}
	if len(slept) != 0 {
		t.Errorf("platform sleep called %d times under error policy, want 0", len(slept))
	}

	lenient := monotime.NewReal(record,
		monotime.WithOverflowPolicy(monotime.OverflowSaturate),
		monotime.WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))),
	)
	if err := lenient.Sleep(monotime.MaxDuration); err != nil {
		t.Fatalf("Sleep(MaxDuration) with saturate error = %v", err)
	}
	if len(slept) != 1 {
		t.Errorf("platform sleep called %d times under saturate policy, want 1", len(slept))
	}
}

func TestReal_SleepContext(t *testing.T) {
	clk := monotime.NewReal()

	begin := time.Now()
	if err := clk.SleepContext(context.Background(), monotime.Milliseconds(10)); err != nil {
		t.Fatalf("SleepContext() error = %v", err)
	}
	if took := time.Since(begin); took < 10*time.Millisecond {
		t.Errorf("SleepContext() returned after %v, want at least 10ms", took)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := clk.SleepContext(ctx, monotime.MustDuration(time.Hour)); !errors.Is(err, context.Canceled) {
		t.Errorf("SleepContext() on cancelled ctx = %v, want context.Canceled", err)
	}

	if err := clk.SleepContext(context.Background(), monotime.MaxDuration); !errors.Is(err, clock.ErrOverflow) {
		t.Errorf("SleepContext(MaxDuration) = %v, want ErrOverflow", err)
	}
}

func TestReal_Clone(t *testing.T) {
	clk := monotime.NewReal()
	cp := clk.Clone()
	if cp == nil {
		t.Fatal("Clone() returned nil")
	}
	if clock.IsSimulated(cp) {
		t.Error("real clock must not report Simulated")
	}
}

func TestVirtual_SleepAdvancesExactly(t *testing.T) {
	start := monotime.InstantAt(monotime.Milliseconds(1000))
	clk := monotime.NewVirtual(start)

	if got := clk.Now(); got != start {
		t.Fatalf("Now() = %v, want %v", got, start)
	}

	for _, step := range []int64{0, 1, 250, 1000} {
		before := clk.Now()
		if err := clk.Sleep(monotime.Milliseconds(step)); err != nil {
			t.Fatalf("Sleep(%dms) error = %v", step, err)
		}
		got, ok := clk.Now().CheckedDurationSince(before)
		if !ok || got != monotime.Milliseconds(step) {
			t.Errorf("Sleep(%dms) advanced by (%v, %v)", step, got, ok)
		}
	}
}

func TestVirtual_SleepDoesNotBlock(t *testing.T) {
	clk := monotime.NewVirtualNow()
	begin := time.Now()
	if err := clk.Sleep(monotime.MustDuration(24 * time.Hour)); err != nil {
		t.Fatalf("Sleep() error = %v", err)
	}
	if took := time.Since(begin); took > time.Second {
		t.Errorf("virtual Sleep took %v of real time", took)
	}
}

func TestVirtual_OverflowPolicies(t *testing.T) {
	near := monotime.InstantAt(monotime.MaxDuration)

	strict := monotime.NewVirtual(near)
	err := strict.Sleep(monotime.Milliseconds(1))
	if !errors.Is(err, clock.ErrOverflow) {
		t.Fatalf("Sleep() error = %v, want ErrOverflow", err)
	}
	var oe *clock.OverflowError
	if !errors.As(err, &oe) {
		t.Fatalf("Sleep() error %T is not *clock.OverflowError", err)
	}
	if strict.Now() != near {
		t.Errorf("Now() = %v after failed Sleep, want unchanged %v", strict.Now(), near)
	}

	var buf bytes.Buffer
	lenient := monotime.NewVirtual(monotime.InstantAt(monotime.Milliseconds(5)),
		monotime.WithOverflowPolicy(monotime.OverflowSaturate),
		monotime.WithLogger(slog.New(slog.NewTextHandler(&buf, nil))),
	)
	if err := lenient.Sleep(monotime.MaxDuration); err != nil {
		t.Fatalf("Sleep() with saturate error = %v", err)
	}
	if lenient.Now() != monotime.MaxInstant {
		t.Errorf("Now() = %v, want MaxInstant", lenient.Now())
	}
	if !strings.Contains(buf.String(), "virtual clock saturated") {
		t.Errorf("saturation was not logged: %q", buf.String())
	}
}

func TestVirtual_CloneIsIndependent(t *testing.T) {
	clk := monotime.NewVirtual(monotime.Epoch)
	cp := clk.Clone()

	if err := cp.Sleep(monotime.Milliseconds(500)); err != nil {
		t.Fatalf("Sleep() error = %v", err)
	}
	if clk.Now() != monotime.Epoch {
		t.Errorf("original moved to %v when the clone slept", clk.Now())
	}
	if cp.Now() != monotime.InstantAt(monotime.Milliseconds(500)) {
		t.Errorf("clone reads %v, want epoch+500ms", cp.Now())
	}
	if !clock.IsSimulated(cp) {
		t.Error("clone of a virtual clock must report Simulated")
	}
}
