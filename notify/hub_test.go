package notify_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/chrisboulton/rosbridge-go/notify"
)

var _ = Describe("notify / Hub", func() {
	var hub *notify.Hub

	BeforeEach(func() {
		hub = notify.New()
	})

	Describe("On()", func() {
		It("calls persistent listeners on every emit", func() {
			var got []any
			hub.On("tick", func(p any) { got = append(got, p) })

			Expect(hub.Emit("tick", 1)).To(Equal(1))
			Expect(hub.Emit("tick", 2)).To(Equal(1))
			Expect(got).To(Equal([]any{1, 2}))
		})

		It("calls listeners in registration order", func() {
			var order []string
			hub.On("tick", func(any) { order = append(order, "a") })
			hub.On("tick", func(any) { order = append(order, "b") })
			hub.On("tick", func(any) { order = append(order, "c") })

			hub.Emit("tick", nil)
			Expect(order).To(Equal([]string{"a", "b", "c"}))
		})

		It("hands out increasing listener ids", func() {
			a := hub.On("x", func(any) {})
			b := hub.On("y", func(any) {})
			Expect(b).To(BeNumerically(">", a))
		})
	})

	Describe("Once()", func() {
		It("fires a single time", func() {
			calls := 0
			hub.Once("ready", func(any) { calls++ })

			hub.Emit("ready", nil)
			hub.Emit("ready", nil)
			Expect(calls).To(Equal(1))
			Expect(hub.ListenerCount("ready")).To(Equal(0))
		})

		It("allows a one-shot listener to register another one-shot listener", func() {
			var order []int
			hub.Once("ready", func(any) {
				order = append(order, 1)
				hub.Once("ready", func(any) { order = append(order, 2) })
			})

			hub.Emit("ready", nil)
			Expect(order).To(Equal([]int{1}))
			hub.Emit("ready", nil)
			Expect(order).To(Equal([]int{1, 2}))
		})
	})

	Describe("Off() / Has()", func() {
		It("removes one listener and leaves the rest", func() {
			calls := map[string]int{}
			a := hub.On("evt", func(any) { calls["a"]++ })
			hub.On("evt", func(any) { calls["b"]++ })

			Expect(hub.Has("evt", a)).To(BeTrue())
			Expect(hub.Off("evt", a)).To(BeTrue())
			Expect(hub.Has("evt", a)).To(BeFalse())
			Expect(hub.Off("evt", a)).To(BeFalse())

			hub.Emit("evt", nil)
			Expect(calls).To(Equal(map[string]int{"b": 1}))
		})
	})

	Describe("RemoveAllListeners()", func() {
		It("only drops the named events", func() {
			hub.On("a", func(any) {})
			hub.On("a", func(any) {})
			hub.On("b", func(any) {})

			hub.RemoveAllListeners("a")
			Expect(hub.ListenerCount("a")).To(Equal(0))
			Expect(hub.ListenerCount("b")).To(Equal(1))
			Expect(hub.Emit("a", nil)).To(Equal(0))
		})

		It("drops everything when called without names", func() {
			hub.On("a", func(any) {})
			hub.On("b", func(any) {})

			hub.RemoveAllListeners()
			Expect(hub.ListenerCount("a")).To(Equal(0))
			Expect(hub.ListenerCount("b")).To(Equal(0))
		})
	})

	It("is usable as a zero value", func() {
		var zero notify.Hub
		called := false
		zero.On("x", func(any) { called = true })
		zero.Emit("x", nil)
		Expect(called).To(BeTrue())
	})
})
