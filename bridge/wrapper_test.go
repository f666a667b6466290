package bridge_test

import (
	"fmt"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/bridge"
	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/concurrency"
	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/config"
	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/conn"
	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/multipoint"
	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/telemetry"
	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/zerocopy"
)

// fakeBuilder stands in for manager.BridgesManager in these tests: it
// builds an already-established MockedBridge of the requested kind,
// matching the real BridgesManager.CreateBridge contract of returning a
// leaf bridge that has already been asked to establish.
type fakeBuilder struct {
	kind conn.Kind
}

func (fb fakeBuilder) CreateBridge(ctx *concurrency.Context, id string, cfg config.BridgeConfig) (conn.Conn, error) {
	mb := bridge.NewMockedBridge(fb.kind)
	if err := mb.Configure(); err != nil {
		return nil, err
	}
	if err := mb.Establish(ctx); err != nil {
		return nil, err
	}
	return mb, nil
}

func establishedZCGroup(id string, size uint32) (*multipoint.ZeroCopyGroup, error) {
	zg := multipoint.NewZeroCopyGroup(id, size)
	if err := zg.Configure(); err != nil {
		return nil, err
	}
	if err := zg.Establish(concurrency.Background()); err != nil {
		return nil, err
	}
	return zg, nil
}

var _ = Describe("WrapperRx", func() {
	It("forwards data received from the inner leaf bridge into the group's shared region", func() {
		ctx := concurrency.Background()

		zg, err := establishedZCGroup(fmt.Sprintf("wrap-rx-%p", ctx), 4096)
		if err != nil {
			Skip(fmt.Sprintf("SysV shared memory unavailable in this sandbox: %v", err))
		}
		defer zg.Shutdown(ctx)

		w := bridge.NewWrapperRx(fakeBuilder{kind: conn.KindReceiver})
		Expect(w.Configure(ctx, "rx1", config.BridgeConfig{})).To(Succeed())
		Expect(w.SetLink(ctx, zg, nil)).To(Succeed())
		Expect(w.Establish(ctx)).To(Succeed())
		defer w.Shutdown(ctx)

		inner := w.Inner()
		n, err := inner.Transmit(ctx, []byte("hello"))
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(5))
	})
})

var _ = Describe("WrapperTx", func() {
	It("drives shared-memory-ready frames into the inner leaf bridge and tracks its own counters", func() {
		ctx := concurrency.Background()

		zg, err := establishedZCGroup(fmt.Sprintf("wrap-tx-%p", ctx), 4096)
		if err != nil {
			Skip(fmt.Sprintf("SysV shared memory unavailable in this sandbox: %v", err))
		}
		defer zg.Shutdown(ctx)

		w := bridge.NewWrapperTx(fakeBuilder{kind: conn.KindTransmitter})
		Expect(w.Configure(ctx, "tx1", config.BridgeConfig{})).To(Succeed())
		Expect(w.SetLink(ctx, zg, nil)).To(Succeed())
		Expect(w.Establish(ctx)).To(Succeed())
		defer w.Shutdown(ctx)

		n, res := w.DeliverFromSharedMemory(ctx, []byte("world"))
		Expect(res).To(Equal(zerocopy.ResultSuccess))
		Expect(n).To(Equal(5))

		var m telemetry.Metric
		w.Collect(&m)
		var found bool
		for _, f := range m.Fields {
			if f.Name == "gateway_tx_succeeded" {
				found = true
				Expect(f.Uint64Value).To(Equal(uint64(1)))
			}
		}
		Expect(found).To(BeTrue())
	})
})
