package concurrency_test

import (
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/concurrency"
)

var _ = Describe("Context", func() {
	It("starts uncancelled", func() {
		ctx := concurrency.Background()
		Expect(ctx.Cancelled()).To(BeFalse())
	})

	It("is cancelled after Cancel", func() {
		ctx := concurrency.Background()
		ctx.Cancel()
		Expect(ctx.Cancelled()).To(BeTrue())
		Eventually(ctx.Done()).Should(BeClosed())
	})

	It("propagates cancellation from parent to child (one-way, transitive)", func() {
		root := concurrency.Background()
		mid := concurrency.WithCancel(root)
		leaf := concurrency.WithCancel(mid)

		Expect(leaf.Cancelled()).To(BeFalse())

		root.Cancel()

		Eventually(mid.Done()).Should(BeClosed())
		Eventually(leaf.Done()).Should(BeClosed())
	})

	It("does not propagate cancellation upward from a child", func() {
		root := concurrency.Background()
		child := concurrency.WithCancel(root)

		child.Cancel()

		Expect(child.Cancelled()).To(BeTrue())
		Expect(root.Cancelled()).To(BeFalse())
	})

	It("cancels immediately when WithTimeout is given a zero duration", func() {
		root := concurrency.Background()
		ctx := concurrency.WithTimeout(root, 0)

		Eventually(ctx.Done(), 100*time.Millisecond).Should(BeClosed())
	})

	It("unblocks WaitDone once cancelled", func() {
		ctx := concurrency.Background()
		done := make(chan struct{})
		go func() {
			ctx.WaitDone()
			close(done)
		}()

		Consistently(done, 50*time.Millisecond).ShouldNot(BeClosed())
		ctx.Cancel()
		Eventually(done).Should(BeClosed())
	})
})
