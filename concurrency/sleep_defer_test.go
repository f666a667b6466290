package concurrency_test

import (
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/concurrency"
)

var _ = Describe("Sleep", func() {
	It("returns true after the full duration elapses", func() {
		ctx := concurrency.Background()
		start := time.Now()
		Expect(concurrency.Sleep(ctx, 20*time.Millisecond)).To(BeTrue())
		Expect(time.Since(start)).To(BeNumerically(">=", 20*time.Millisecond))
	})

	It("returns false early when the context cancels mid-sleep", func() {
		ctx := concurrency.WithCancel(concurrency.Background())
		done := make(chan bool, 1)
		go func() { done <- concurrency.Sleep(ctx, time.Hour) }()

		time.Sleep(10 * time.Millisecond)
		ctx.Cancel()

		Eventually(done).Should(Receive(BeFalse()))
	})

	It("treats a zero or negative duration as a no-op unless already cancelled", func() {
		ctx := concurrency.Background()
		Expect(concurrency.Sleep(ctx, 0)).To(BeTrue())

		ctx.Cancel()
		Expect(concurrency.Sleep(ctx, 0)).To(BeFalse())
	})
})

var _ = Describe("Defer", func() {
	It("runs callbacks in LIFO order", func() {
		var order []int
		d := concurrency.NewDefer()
		d.Push(func() { order = append(order, 1) })
		d.Push(func() { order = append(order, 2) })
		d.Push(func() { order = append(order, 3) })

		d.Run()

		Expect(order).To(Equal([]int{3, 2, 1}))
	})

	It("runs each callback at most once even if Run is called twice", func() {
		count := 0
		d := concurrency.NewDefer()
		d.Push(func() { count++ })

		d.Run()
		d.Run()

		Expect(count).To(Equal(1))
	})

	It("Cancel discards pending callbacks without running them", func() {
		ran := false
		d := concurrency.NewDefer()
		d.Push(func() { ran = true })

		d.Cancel()
		d.Run()

		Expect(ran).To(BeFalse())
	})
})
