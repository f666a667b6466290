package multipoint_test

import (
	"fmt"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/concurrency"
	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/conn"
	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/multipoint"
	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/zerocopy"
)

var _ = Describe("ZeroCopyGroup", func() {
	var ctx *concurrency.Context

	BeforeEach(func() {
		ctx = concurrency.Background()
	})

	It("establishes, exposes its {shm-key, shm-size} only while active, and tears the region down on shutdown", func() {
		id := fmt.Sprintf("zc-establish-%p", ctx)
		zg := multipoint.NewZeroCopyGroup(id, 4096)
		Expect(zg.Configure()).To(Succeed())

		_, err := zg.GetConfig()
		Expect(err).To(MatchError(conn.ErrWrongState))

		if err := zg.Establish(ctx); err != nil {
			Skip(fmt.Sprintf("SysV shared memory unavailable in this sandbox: %v", err))
		}

		cfg, err := zg.GetConfig()
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.RegionSZ).To(Equal(uint32(4096 + zerocopy.HeaderMargin)))

		Expect(zg.Shutdown(ctx)).To(Succeed())
		_, err = zg.GetConfig()
		Expect(err).To(MatchError(conn.ErrWrongState))
	})

	It("fails establish when the shm-key collides with a still-live region", func() {
		id := fmt.Sprintf("zc-collide-%p", ctx)
		first := multipoint.NewZeroCopyGroup(id, 4096)
		Expect(first.Configure()).To(Succeed())
		if err := first.Establish(ctx); err != nil {
			Skip(fmt.Sprintf("SysV shared memory unavailable in this sandbox: %v", err))
		}
		defer first.Shutdown(ctx)

		second := multipoint.NewZeroCopyGroup(id, 4096)
		Expect(second.Configure()).To(Succeed())
		Expect(second.Establish(ctx)).To(HaveOccurred())
		Expect(second.State()).To(Equal(conn.StateClosed))
	})

	It("rejects zc_init_gateway_from_group when the peer is not a ZeroCopyGroup", func() {
		plainGroup := multipoint.NewGroup("plain")
		var gw zerocopy.GatewayRx
		err := multipoint.ZCInitGatewayFromGroup(ctx, &gw, plainGroup)
		Expect(err).To(MatchError(conn.ErrBadArgument))
	})

	It("initialises an external gateway from an active ZeroCopyGroup's shared region", func() {
		id := fmt.Sprintf("zc-gateway-%p", ctx)
		zg := multipoint.NewZeroCopyGroup(id, 4096)
		Expect(zg.Configure()).To(Succeed())
		if err := zg.Establish(ctx); err != nil {
			Skip(fmt.Sprintf("SysV shared memory unavailable in this sandbox: %v", err))
		}
		defer zg.Shutdown(ctx)

		var gw zerocopy.GatewayRx
		Expect(multipoint.ZCInitGatewayFromGroup(ctx, &gw, zg)).To(Succeed())
		defer gw.Shutdown(ctx)

		n, res := gw.Transmit(ctx, []byte("frame"))
		Expect(res).To(Equal(zerocopy.ResultSuccess))
		Expect(n).To(Equal(len("frame")))
	})
})
