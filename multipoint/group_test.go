package multipoint_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/concurrency"
	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/conn"
	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/multipoint"
)

// trivialHooks is a leaf test double used as a group's input or output.
type trivialHooks struct {
	conn.DefaultHooks
}

func (trivialHooks) OnEstablish(ctx *concurrency.Context) error { return nil }
func (trivialHooks) OnReceive(ctx *concurrency.Context, data []byte) (int, error) {
	return len(data), nil
}

func newActiveLeaf(kind conn.Kind) *conn.Base {
	b := conn.NewBase(kind, trivialHooks{})
	_ = b.Configure()
	_ = b.Establish(concurrency.Background())
	return b
}

var _ = Describe("Group", func() {
	var (
		ctx *concurrency.Context
		g   *multipoint.Group
	)

	BeforeEach(func() {
		ctx = concurrency.Background()
		g = multipoint.NewGroup("g1")
		Expect(g.Configure()).To(Succeed())
		Expect(g.Establish(ctx)).To(Succeed())
	})

	It("rejects an input whose kind is not receiver", func() {
		notReceiver := newActiveLeaf(conn.KindTransmitter)
		Expect(g.AssignInput(ctx, notReceiver)).To(MatchError(conn.ErrBadArgument))
	})

	It("rejects an output whose kind is not transmitter", func() {
		notTransmitter := newActiveLeaf(conn.KindReceiver)
		Expect(g.AddOutput(ctx, notTransmitter)).To(MatchError(conn.ErrBadArgument))
	})

	It("assigns an input and reports it via InputAssigned/Link", func() {
		in := newActiveLeaf(conn.KindReceiver)
		Expect(g.AssignInput(ctx, in)).To(Succeed())
		Expect(g.InputAssigned()).To(BeTrue())
		Expect(g.Link()).To(BeIdenticalTo(conn.Conn(in)))
	})

	It("adds outputs and reports OutputsNum", func() {
		out1 := newActiveLeaf(conn.KindTransmitter)
		out2 := newActiveLeaf(conn.KindTransmitter)
		Expect(g.AddOutput(ctx, out1)).To(Succeed())
		Expect(g.AddOutput(ctx, out2)).To(Succeed())
		Expect(g.OutputsNum()).To(Equal(2))
	})

	Describe("SetLink dual meaning", func() {
		It("detaches the input when requester equals the current input", func() {
			in := newActiveLeaf(conn.KindReceiver)
			Expect(g.AssignInput(ctx, in)).To(Succeed())

			Expect(g.SetLink(ctx, nil, in)).To(Succeed())
			Expect(g.InputAssigned()).To(BeFalse())
		})

		It("removes a requester found in the outputs list instead of touching the input", func() {
			in := newActiveLeaf(conn.KindReceiver)
			out1 := newActiveLeaf(conn.KindTransmitter)
			out2 := newActiveLeaf(conn.KindTransmitter)
			Expect(g.AssignInput(ctx, in)).To(Succeed())
			Expect(g.AddOutput(ctx, out1)).To(Succeed())
			Expect(g.AddOutput(ctx, out2)).To(Succeed())

			Expect(g.SetLink(ctx, nil, out1)).To(Succeed())
			Expect(g.OutputsNum()).To(Equal(1))
			Expect(g.InputAssigned()).To(BeTrue())
		})

		It("behaves like a normal set_link when requester is nil", func() {
			in1 := newActiveLeaf(conn.KindReceiver)
			in2 := newActiveLeaf(conn.KindReceiver)
			Expect(g.AssignInput(ctx, in1)).To(Succeed())
			Expect(g.SetLink(ctx, in2, nil)).To(Succeed())
			Expect(g.Link()).To(BeIdenticalTo(conn.Conn(in2)))
		})
	})

	It("on_shutdown clears input, empties outputs and fires the hook once more", func() {
		in := newActiveLeaf(conn.KindReceiver)
		out := newActiveLeaf(conn.KindTransmitter)
		Expect(g.AssignInput(ctx, in)).To(Succeed())
		Expect(g.AddOutput(ctx, out)).To(Succeed())

		fired := 0
		g.SetOnOutputsUpdated(func() { fired++ })

		Expect(g.Shutdown(ctx)).To(Succeed())
		Expect(g.InputAssigned()).To(BeFalse())
		Expect(g.OutputsNum()).To(Equal(0))
		Expect(fired).To(Equal(1))
		Expect(g.State()).To(Equal(conn.StateClosed))
	})
})
