package registry_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/spaghetti-software-inc/ninjapivot/internal/registry"
)

func TestRegistry(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Registry Suite")
}

func stateRef(s registry.State) *registry.State { return &s }
func intRef(i int) *int                         { return &i }
func strRef(s string) *string                   { return &s }

var _ = Describe("registry", func() {
	var reg *registry.Registry

	BeforeEach(func() {
		reg = registry.New()
	})

	Context("create", func() {
		It("allocates a job in the created state holding the input", func() {
			snap := reg.Create("data.csv", []byte("a,b\n1,2\n"))

			Expect(snap.ID).NotTo(Equal(uuid.Nil))
			Expect(snap.State).To(Equal(registry.StateCreated))
			Expect(snap.Progress).To(Equal(0))
			Expect(snap.InputName).To(Equal("data.csv"))

			input, err := reg.Input(snap.ID)
			Expect(err).To(BeNil())
			Expect(input).To(Equal([]byte("a,b\n1,2\n")))
		})

		It("issues unique identifiers", func() {
			first := reg.Create("a.csv", nil)
			second := reg.Create("a.csv", nil)
			Expect(first.ID).NotTo(Equal(second.ID))
		})
	})

	Context("get", func() {
		It("returns ErrJobNotFound for unknown ids", func() {
			_, err := reg.Get(uuid.New())
			Expect(err).To(MatchError(registry.ErrJobNotFound))
		})
	})

	Context("update", func() {
		var id uuid.UUID

		BeforeEach(func() {
			snap := reg.Create("data.csv", []byte("x"))
			id = snap.ID
			_, err := reg.Update(id, registry.Mutation{State: stateRef(registry.StateValidating)})
			Expect(err).To(BeNil())
			_, err = reg.Update(id, registry.Mutation{State: stateRef(registry.StateProcessing)})
			Expect(err).To(BeNil())
		})

		It("never moves progress backwards", func() {
			snap, err := reg.Update(id, registry.Mutation{Progress: intRef(40)})
			Expect(err).To(BeNil())
			Expect(snap.Progress).To(Equal(40))

			snap, err = reg.Update(id, registry.Mutation{Progress: intRef(10)})
			Expect(err).To(BeNil())
			Expect(snap.Progress).To(Equal(40))
		})

		It("caps progress at 100", func() {
			snap, err := reg.Update(id, registry.Mutation{Progress: intRef(250)})
			Expect(err).To(BeNil())
			Expect(snap.Progress).To(Equal(100))
		})

		It("replaces the status message on every update", func() {
			snap, err := reg.Update(id, registry.Mutation{StatusMessage: strRef("parsing")})
			Expect(err).To(BeNil())
			Expect(snap.StatusMessage).To(Equal("parsing"))

			snap, err = reg.Update(id, registry.Mutation{StatusMessage: strRef("rendering")})
			Expect(err).To(BeNil())
			Expect(snap.StatusMessage).To(Equal("rendering"))
		})

		It("rejects transitions that skip a state", func() {
			fresh := reg.Create("skip.csv", nil)
			_, err := reg.Update(fresh.ID, registry.Mutation{State: stateRef(registry.StateProcessing)})
			Expect(err).To(MatchError(registry.ErrInvalidTransition))
		})

		It("allows failing from any non-terminal state", func() {
			fresh := reg.Create("doomed.csv", nil)
			snap, err := reg.Update(fresh.ID, registry.Mutation{
				State:   stateRef(registry.StateFailed),
				Failure: &registry.Failure{Kind: registry.FailureValidation, Message: "too big"},
			})
			Expect(err).To(BeNil())
			Expect(snap.State).To(Equal(registry.StateFailed))
			Expect(snap.Failure.Kind).To(Equal(registry.FailureValidation))
		})

		It("records the artifact only on the transition into complete", func() {
			ref := "artifact-ref"
			snap, err := reg.Update(id, registry.Mutation{
				State:       stateRef(registry.StateComplete),
				ArtifactRef: &ref,
			})
			Expect(err).To(BeNil())
			Expect(snap.ArtifactRef).To(Equal("artifact-ref"))
			Expect(snap.Progress).To(Equal(100))
		})

		It("makes terminal jobs immutable and drops the input", func() {
			_, err := reg.Update(id, registry.Mutation{State: stateRef(registry.StateComplete)})
			Expect(err).To(BeNil())

			_, err = reg.Update(id, registry.Mutation{Progress: intRef(99)})
			Expect(err).To(MatchError(registry.ErrJobTerminal))

			input, err := reg.Input(id)
			Expect(err).To(BeNil())
			Expect(input).To(BeNil())
		})
	})

	Context("watch", func() {
		var id uuid.UUID

		BeforeEach(func() {
			snap := reg.Create("data.csv", []byte("x"))
			id = snap.ID
			_, err := reg.Update(id, registry.Mutation{State: stateRef(registry.StateValidating)})
			Expect(err).To(BeNil())
			_, err = reg.Update(id, registry.Mutation{State: stateRef(registry.StateProcessing)})
			Expect(err).To(BeNil())
		})

		It("primes the channel with the current snapshot", func() {
			ch, cancel, err := reg.Watch(id)
			Expect(err).To(BeNil())
			defer cancel()

			var snap registry.Snapshot
			Eventually(ch).Should(Receive(&snap))
			Expect(snap.State).To(Equal(registry.StateProcessing))
		})

		It("coalesces frames keeping the latest", func() {
			ch, cancel, err := reg.Watch(id)
			Expect(err).To(BeNil())
			defer cancel()

			// nobody reads while three updates land on a capacity-one channel
			for _, p := range []int{10, 20, 30} {
				_, err := reg.Update(id, registry.Mutation{Progress: intRef(p)})
				Expect(err).To(BeNil())
			}

			var snap registry.Snapshot
			Eventually(ch).Should(Receive(&snap))
			Expect(snap.Progress).To(Equal(30))
		})

		It("delivers the terminal snapshot and closes the channel", func() {
			ch, cancel, err := reg.Watch(id)
			Expect(err).To(BeNil())
			defer cancel()

			_, err = reg.Update(id, registry.Mutation{State: stateRef(registry.StateComplete)})
			Expect(err).To(BeNil())

			var last registry.Snapshot
			for snap := range ch {
				last = snap
			}
			Expect(last.State).To(Equal(registry.StateComplete))
			Expect(last.Progress).To(Equal(100))
		})

		It("yields exactly the terminal snapshot for a finished job", func() {
			_, err := reg.Update(id, registry.Mutation{State: stateRef(registry.StateComplete)})
			Expect(err).To(BeNil())

			ch, _, err := reg.Watch(id)
			Expect(err).To(BeNil())

			frames := make([]registry.Snapshot, 0, 1)
			for snap := range ch {
				frames = append(frames, snap)
			}
			Expect(frames).To(HaveLen(1))
			Expect(frames[0].State).To(Equal(registry.StateComplete))
		})

		It("never closes without the terminal snapshot when subscribing mid-completion", func() {
			for i := 0; i < 5000; i++ {
				snap := reg.Create("race.csv", nil)
				_, err := reg.Update(snap.ID, registry.Mutation{State: stateRef(registry.StateValidating)})
				Expect(err).To(BeNil())
				_, err = reg.Update(snap.ID, registry.Mutation{State: stateRef(registry.StateProcessing)})
				Expect(err).To(BeNil())

				done := make(chan struct{})
				go func() {
					defer GinkgoRecover()
					defer close(done)
					_, err := reg.Update(snap.ID, registry.Mutation{State: stateRef(registry.StateComplete)})
					Expect(err).To(BeNil())
				}()

				ch, cancel, err := reg.Watch(snap.ID)
				Expect(err).To(BeNil())

				var last registry.Snapshot
				for frame := range ch {
					last = frame
				}
				Expect(last.State).To(Equal(registry.StateComplete))

				cancel()
				<-done
				Expect(reg.Delete(snap.ID)).To(Succeed())
			}
		})

		It("cancel releases the subscription without touching the job", func() {
			ch, cancel, err := reg.Watch(id)
			Expect(err).To(BeNil())

			cancel()
			Eventually(ch).Should(BeClosed())

			snap, err := reg.Get(id)
			Expect(err).To(BeNil())
			Expect(snap.State).To(Equal(registry.StateProcessing))
		})
	})

	Context("eviction", func() {
		It("removes only terminal jobs older than retention", func() {
			live := reg.Create("live.csv", nil)

			done := reg.Create("done.csv", nil)
			_, err := reg.Update(done.ID, registry.Mutation{
				State:   stateRef(registry.StateFailed),
				Failure: &registry.Failure{Kind: registry.FailureAnalysis, Message: "boom"},
			})
			Expect(err).To(BeNil())

			// retention of zero makes every terminal job immediately stale
			time.Sleep(5 * time.Millisecond)
			Expect(reg.EvictOnce(0)).To(Equal(1))

			_, err = reg.Get(done.ID)
			Expect(err).To(MatchError(registry.ErrJobNotFound))

			_, err = reg.Get(live.ID)
			Expect(err).To(BeNil())
		})
	})
})
