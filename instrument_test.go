package composer_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/andriiyaremenko/composer"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// counting records how many times each step was wrapped and invoked.
type counting struct {
	mu      sync.Mutex
	wrapped map[string]int
	calls   map[string]int
}

func newCounting() *counting {
	return &counting{wrapped: map[string]int{}, calls: map[string]int{}}
}

func (c *counting) inc(m map[string]int, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m[name]++
}

func (c *counting) Wrapped(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.wrapped[name]
}

func (c *counting) Calls(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.calls[name]
}

func (c *counting) WrapHandler(name string, h handler) handler {
	c.inc(c.wrapped, name)

	return func(req *request, res *response, next composer.Next) {
		c.inc(c.calls, name)
		h(req, res, next)
	}
}

func (c *counting) WrapErrorTrap(name string, t trap) trap {
	c.inc(c.wrapped, name)

	return func(err error, req *request, res *response, next composer.Next) {
		c.inc(c.calls, name)
		t(err, req, res, next)
	}
}

var _ = Describe("Instrumenter", func() {
	It("wraps every entry once across runs", func() {
		stats := newCounting()
		p := composer.New[*request, *response](composer.WithInstrumenter[*request, *response](stats)).
			Compose(named("one"), named("two"))

		for i := 0; i < 3; i++ {
			_, err := run(p)

			Expect(err).ShouldNot(HaveOccurred())
		}

		Expect(stats.Wrapped("one")).To(Equal(1))
		Expect(stats.Wrapped("two")).To(Equal(1))
		Expect(stats.Calls("one")).To(Equal(3))
		Expect(stats.Calls("two")).To(Equal(3))

		for _, e := range p.Stack() {
			Expect(e.IsWrapped()).To(BeTrue())
		}
	})

	It("wraps only entries added after previous run", func() {
		stats := newCounting()
		p := composer.New[*request, *response](composer.WithInstrumenter[*request, *response](stats)).
			Compose(named("one"))

		_, _ = run(p)

		p.Push(named("two"))

		Expect(p.Stack()[1].IsWrapped()).To(BeFalse())

		log, err := run(p)

		Expect(err).ShouldNot(HaveOccurred())
		Expect(log).To(Equal([]string{"one", "two"}))
		Expect(stats.Wrapped("one")).To(Equal(1))
		Expect(stats.Wrapped("two")).To(Equal(1))
	})

	It("does not wrap cloned entries again", func() {
		stats := newCounting()
		p := composer.New[*request, *response](composer.WithInstrumenter[*request, *response](stats)).
			Compose(named("one"))

		_, _ = run(p)

		c := p.Clone().Push(named("two"))
		_, _ = run(c)

		Expect(stats.Wrapped("one")).To(Equal(1))
		Expect(stats.Wrapped("two")).To(Equal(1))
		Expect(stats.Calls("one")).To(Equal(2))
	})

	It("wraps error traps", func() {
		stats := newCounting()
		resolve := composer.NamedTrap("resolve", trap(func(_ error, _ *request, _ *response, next composer.Next) {
			next(nil)
		}))

		p := composer.New[*request, *response](composer.WithInstrumenter[*request, *response](stats)).
			Compose(failing("fail", errors.New("badly")), resolve)

		_, err := run(p)

		Expect(err).ShouldNot(HaveOccurred())
		Expect(stats.Wrapped("resolve")).To(Equal(1))
		Expect(stats.Calls("resolve")).To(Equal(1))
	})

	It("leaves unresolved entries alone", func() {
		stats := newCounting()
		p := composer.New[*request, *response](composer.WithInstrumenter[*request, *response](stats)).
			Compose(composer.NamedValue[*request, *response]("missing", 1))

		_, err := run(p)

		Expect(err).Should(MatchError(composer.ErrMissingMiddleware))
		Expect(stats.Wrapped("missing")).To(BeZero())
	})

	It("lets wrappers read the pipeline they instrument", func() {
		var p *composer.Pipeline[*request, *response]
		var labels [][]string

		p = composer.New[*request, *response](composer.WithInstrumenter[*request, *response](
			composer.InstrumenterFuncs[*request, *response]{
				Handler: func(_ string, h handler) handler {
					labels = append(labels, p.Names())

					return h
				},
			},
		)).Compose(named("one"), named("two"))

		errs := make(chan error, 1)
		go func() {
			_, err := run(p)
			errs <- err
		}()

		Eventually(errs).Should(Receive(BeNil()))
		Expect(labels).To(Equal([][]string{{"one", "two"}, {"one", "two"}}))
	})

	It("keeps step when wrapper returns nil", func() {
		p := composer.New[*request, *response](composer.WithInstrumenter[*request, *response](
			composer.InstrumenterFuncs[*request, *response]{
				Handler: func(string, handler) handler { return nil },
			},
		)).Compose(named("one"))

		log, err := run(p)

		Expect(err).ShouldNot(HaveOccurred())
		Expect(log).To(Equal([]string{"one"}))
	})

	It("chains instrumenters with the last one outermost", func() {
		order := []string{}
		var mu sync.Mutex

		layer := func(label string) composer.Instrumenter[*request, *response] {
			return composer.InstrumenterFuncs[*request, *response]{
				Handler: func(_ string, h handler) handler {
					return func(req *request, res *response, next composer.Next) {
						mu.Lock()
						order = append(order, label)
						mu.Unlock()

						h(req, res, next)
					}
				},
			}
		}

		p := composer.New[*request, *response](composer.WithInstrumenter(
			composer.Chain(layer("inner"), layer("outer")),
		)).Compose(named("one"))

		_, err := run(p)

		Expect(err).ShouldNot(HaveOccurred())
		Expect(order).To(Equal([]string{"outer", "inner"}))
	})

	It("logs steps", func() {
		buf := new(syncBuffer)
		logger := slog.New(slog.NewJSONHandler(buf, nil))

		p := composer.New[*request, *response](composer.WithInstrumenter(
			composer.Logging[*request, *response](logger),
		)).Compose(named("one"), composer.Named("fail", failing("fail", errors.New("badly"))))

		_, err := run(p)

		Expect(err).Should(MatchError("badly"))

		records := buf.Records()

		Expect(records).To(HaveLen(4))
		Expect(records[0]).To(HaveKeyWithValue("msg", "step started"))
		Expect(records[0]).To(HaveKeyWithValue("step", "one"))
		Expect(records[0]).To(HaveKeyWithValue("kind", "handler"))
		Expect(records[1]).To(HaveKeyWithValue("msg", "step completed"))
		Expect(records[1]).To(HaveKey("elapsed"))
		Expect(records[3]).To(HaveKeyWithValue("msg", "step failed"))
		Expect(records[3]).To(HaveKeyWithValue("level", "ERROR"))
		Expect(records[3]).To(HaveKeyWithValue("step", "fail"))
		Expect(records[3]).To(HaveKeyWithValue("error", "badly"))
	})

	It("ignores instrumenter of other pipeline types", func() {
		buf := new(syncBuffer)
		logger := slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

		p := composer.New[*request, *response](
			composer.WithLogger(logger),
			composer.WithInstrumenter(composer.Logging[string, string](logger)),
		).Compose(named("one"))

		log, err := run(p)

		Expect(err).ShouldNot(HaveOccurred())
		Expect(log).To(Equal([]string{"one"}))
		Expect(p.Stack()[0].IsWrapped()).To(BeFalse())
		Expect(buf.String()).To(ContainSubstring("instrumenter ignored"))
	})

	Describe("SetDefaults", func() {
		It("is captured when pipeline is composed", func() {
			stats := newCounting()
			restore := composer.SetDefaults(composer.WithInstrumenter[*request, *response](stats))

			before := composer.Compose[*request, *response](named("default"))

			restore()

			after := composer.Compose[*request, *response](named("plain"))

			_, _ = run(before)
			_, _ = run(after)

			Expect(stats.Calls("default")).To(Equal(1))
			Expect(stats.Calls("plain")).To(BeZero())
			Expect(composer.Defaults().Instrumenter).To(BeNil())
		})

		It("is overridden by options", func() {
			scheduler := new(manual)
			restore := composer.SetDefaults(composer.WithScheduler(scheduler))
			defer restore()

			Expect(composer.Defaults().Scheduler).To(BeIdenticalTo(scheduler))

			p := composer.New[*request, *response](composer.WithScheduler(composer.Goroutine)).Compose(named("one"))

			log, err := run(p)

			Expect(err).ShouldNot(HaveOccurred())
			Expect(log).To(Equal([]string{"one"}))
			Expect(scheduler.Pending()).To(BeZero())
		})
	})
})

// syncBuffer collects log output written from scheduler goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

func (b *syncBuffer) Records() []map[string]any {
	records := []map[string]any{}

	for _, line := range strings.Split(strings.TrimSpace(b.String()), "\n") {
		if line == "" {
			continue
		}

		record := map[string]any{}
		Expect(json.Unmarshal([]byte(line), &record)).To(Succeed())

		records = append(records, record)
	}

	return records
}
