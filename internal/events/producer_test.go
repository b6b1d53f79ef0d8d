package events

import (
	"bytes"
	"context"
	"sync"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("producer", Ordered, func() {
	Context("write", func() {
		It("delivers buffered messages to the writer", func() {
			w := newTestWriter()
			ep := NewEventProducer(w)

			msg := []byte(`{"job_id":"1"}`)
			err := ep.Write(context.TODO(), JobMessageKind, bytes.NewReader(msg))
			Expect(err).To(BeNil())

			Eventually(w.Len, 2*time.Second, 10*time.Millisecond).Should(Equal(1))
			events := w.Events()
			Expect(events[0].Context.GetType()).To(Equal(JobMessageKind))
			Expect(events[0].Source()).To(Equal(eventSource))
			Expect(events[0].Data()).To(Equal(msg))

			err = ep.Write(context.TODO(), JobMessageKind, bytes.NewReader([]byte(`{"job_id":"2"}`)))
			Expect(err).To(BeNil())

			Eventually(w.Len, 2*time.Second, 10*time.Millisecond).Should(Equal(2))

			ep.Close()
		})

		It("routes events to the configured topic", func() {
			w := newTestWriter()
			ep := NewEventProducer(w, WithOutputTopic("custom.topic"))

			err := ep.Write(context.TODO(), JobMessageKind, bytes.NewReader([]byte(`{}`)))
			Expect(err).To(BeNil())

			Eventually(w.Len, 2*time.Second, 10*time.Millisecond).Should(Equal(1))
			Expect(w.Topics()[0]).To(Equal("custom.topic"))

			ep.Close()
		})
	})
})

type testwriter struct {
	mu     sync.Mutex
	events []cloudevents.Event
	topics []string
}

func newTestWriter() *testwriter {
	return &testwriter{}
}

func (t *testwriter) Write(ctx context.Context, topic string, e cloudevents.Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, e)
	t.topics = append(t.topics, topic)
	return nil
}

func (t *testwriter) Close(_ context.Context) error {
	return nil
}

func (t *testwriter) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.events)
}

func (t *testwriter) Events() []cloudevents.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]cloudevents.Event(nil), t.events...)
}

func (t *testwriter) Topics() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.topics...)
}
