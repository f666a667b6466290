package multipoint_test

import (
	"sync"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/concurrency"
	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/conn"
	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/multipoint"
	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/telemetry"
)

// countingHooks records every OnReceive call it gets, optionally failing.
type countingHooks struct {
	conn.DefaultHooks

	mu      sync.Mutex
	calls   int
	lastLen int
	fail    bool
}

func (h *countingHooks) OnEstablish(ctx *concurrency.Context) error { return nil }
func (h *countingHooks) OnReceive(ctx *concurrency.Context, data []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	h.lastLen = len(data)
	if h.fail {
		return 0, conn.ErrGeneralFailure
	}
	return len(data), nil
}

func (h *countingHooks) callCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

func newCountingOutput() (*conn.Base, *countingHooks) {
	h := &countingHooks{}
	b := conn.NewBase(conn.KindTransmitter, h)
	_ = b.Configure()
	_ = b.Establish(concurrency.Background())
	return b, h
}

func fieldUint64(m telemetry.Metric, name string) (uint64, bool) {
	for _, f := range m.Fields {
		if f.Name == name {
			return f.Uint64Value, true
		}
	}
	return 0, false
}

var _ = Describe("CopyGroup", func() {
	var (
		ctx *concurrency.Context
		cg  *multipoint.CopyGroup
	)

	BeforeEach(func() {
		ctx = concurrency.Background()
		cg = multipoint.NewCopyGroup("cg1")
		Expect(cg.Configure()).To(Succeed())
		Expect(cg.Establish(ctx)).To(Succeed())
	})

	It("rejects on_receive when no input is assigned", func() {
		_, err := cg.DoReceive(ctx, []byte("abc"))
		Expect(err).To(MatchError(conn.ErrNoLinkAssigned))
	})

	It("fans inbound data out to every output synchronously", func() {
		in := newActiveLeaf(conn.KindReceiver)
		Expect(cg.AssignInput(ctx, in)).To(Succeed())

		out1, h1 := newCountingOutput()
		out2, h2 := newCountingOutput()
		Expect(cg.AddOutput(ctx, out1)).To(Succeed())
		Expect(cg.AddOutput(ctx, out2)).To(Succeed())

		n, err := cg.DoReceive(ctx, []byte("hello"))
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(5))

		Expect(h1.callCount()).To(Equal(1))
		Expect(h2.callCount()).To(Equal(1))
		Expect(h1.lastLen).To(Equal(5))
	})

	It("reports overall success even when an individual output fails", func() {
		in := newActiveLeaf(conn.KindReceiver)
		Expect(cg.AssignInput(ctx, in)).To(Succeed())

		good, _ := newCountingOutput()
		bad := conn.NewBase(conn.KindTransmitter, &countingHooks{fail: true})
		_ = bad.Configure()
		_ = bad.Establish(ctx)

		Expect(cg.AddOutput(ctx, good)).To(Succeed())
		Expect(cg.AddOutput(ctx, bad)).To(Succeed())

		n, err := cg.DoReceive(ctx, []byte("xyz"))
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(3))

		var m telemetry.Metric
		cg.Collect(&m)
		errs, ok := fieldUint64(m, "group_errors")
		Expect(ok).To(BeTrue())
		Expect(errs).To(Equal(uint64(1)))
	})

	It("accumulates in/out byte counters across multiple deliveries, visible via Collect", func() {
		in := newActiveLeaf(conn.KindReceiver)
		Expect(cg.AssignInput(ctx, in)).To(Succeed())
		out, _ := newCountingOutput()
		Expect(cg.AddOutput(ctx, out)).To(Succeed())

		_, err := cg.DoReceive(ctx, []byte("aaaa"))
		Expect(err).NotTo(HaveOccurred())
		_, err = cg.DoReceive(ctx, []byte("bb"))
		Expect(err).NotTo(HaveOccurred())

		var m telemetry.Metric
		cg.Collect(&m)
		inBytes, _ := fieldUint64(m, "group_in_bytes")
		outBytes, _ := fieldUint64(m, "group_out_bytes")
		Expect(inBytes).To(Equal(uint64(6)))
		Expect(outBytes).To(Equal(uint64(6)))
	})

	It("republishes the hot-outputs snapshot when outputs change after outputs already flowed", func() {
		in := newActiveLeaf(conn.KindReceiver)
		Expect(cg.AssignInput(ctx, in)).To(Succeed())

		out1, h1 := newCountingOutput()
		Expect(cg.AddOutput(ctx, out1)).To(Succeed())
		_, err := cg.DoReceive(ctx, []byte("first"))
		Expect(err).NotTo(HaveOccurred())
		Expect(h1.callCount()).To(Equal(1))

		out2, h2 := newCountingOutput()
		Expect(cg.AddOutput(ctx, out2)).To(Succeed())

		_, err = cg.DoReceive(ctx, []byte("second"))
		Expect(err).NotTo(HaveOccurred())
		Expect(h1.callCount()).To(Equal(2))
		Expect(h2.callCount()).To(Equal(1))
	})
})
