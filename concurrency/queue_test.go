package concurrency_test

import (
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/concurrency"
)

var _ = Describe("Queue", func() {
	It("delivers elements in FIFO order", func() {
		ctx := concurrency.Background()
		q := concurrency.NewQueue[int](4)

		Expect(q.Send(ctx, 1)).To(BeTrue())
		Expect(q.Send(ctx, 2)).To(BeTrue())
		Expect(q.Send(ctx, 3)).To(BeTrue())

		v, ok := q.Receive(ctx)
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal(1))

		v, ok = q.Receive(ctx)
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal(2))

		v, ok = q.Receive(ctx)
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal(3))
	})

	It("never blocks beyond one element in flight at capacity 1", func() {
		ctx := concurrency.Background()
		q := concurrency.NewQueue[int](1)

		for i := 0; i < 100; i++ {
			sent := make(chan bool, 1)
			go func(v int) { sent <- q.Send(ctx, v) }(i)

			Eventually(sent).Should(Receive(BeTrue()))

			v, ok := q.Receive(ctx)
			Expect(ok).To(BeTrue())
			Expect(v).To(Equal(i))
		}
	})

	It("TryReceive returns false without blocking when empty", func() {
		q := concurrency.NewQueue[int](2)
		_, ok := q.TryReceive()
		Expect(ok).To(BeFalse())
	})

	It("blocks Send once full until a slot frees", func() {
		ctx := concurrency.Background()
		q := concurrency.NewQueue[int](1)
		Expect(q.Send(ctx, 1)).To(BeTrue())

		sent := make(chan bool, 1)
		go func() { sent <- q.Send(ctx, 2) }()

		Consistently(sent, 50*time.Millisecond).ShouldNot(Receive())

		_, ok := q.Receive(ctx)
		Expect(ok).To(BeTrue())

		Eventually(sent).Should(Receive(BeTrue()))
	})

	It("unblocks a pending Receive with false when the context cancels", func() {
		ctx := concurrency.WithCancel(concurrency.Background())
		q := concurrency.NewQueue[int](1)

		result := make(chan bool, 1)
		go func() {
			_, ok := q.Receive(ctx)
			result <- ok
		}()

		Consistently(result, 50*time.Millisecond).ShouldNot(Receive())
		ctx.Cancel()
		Eventually(result).Should(Receive(BeFalse()))
	})

	It("unblocks a pending Send with false when the context cancels", func() {
		ctx := concurrency.WithCancel(concurrency.Background())
		q := concurrency.NewQueue[int](1)
		Expect(q.Send(ctx, 1)).To(BeTrue())

		result := make(chan bool, 1)
		go func() {
			result <- q.Send(ctx, 2)
		}()

		Consistently(result, 50*time.Millisecond).ShouldNot(Receive())
		ctx.Cancel()
		Eventually(result).Should(Receive(BeFalse()))
	})

	It("drains buffered items after Close, then reports closed", func() {
		ctx := concurrency.Background()
		q := concurrency.NewQueue[int](4)
		Expect(q.Send(ctx, 1)).To(BeTrue())
		Expect(q.Send(ctx, 2)).To(BeTrue())

		q.Close()
		Expect(q.Closed()).To(BeTrue())
		Expect(q.Send(ctx, 3)).To(BeFalse())

		v, ok := q.Receive(ctx)
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal(1))

		v, ok = q.Receive(ctx)
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal(2))

		_, ok = q.Receive(ctx)
		Expect(ok).To(BeFalse())
	})

	It("Close is idempotent", func() {
		q := concurrency.NewQueue[int](1)
		q.Close()
		q.Close()
		Expect(q.Closed()).To(BeTrue())
	})
})
