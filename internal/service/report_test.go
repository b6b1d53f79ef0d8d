package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/spaghetti-software-inc/ninjapivot/internal/analysis"
	"github.com/spaghetti-software-inc/ninjapivot/internal/artifacts"
	"github.com/spaghetti-software-inc/ninjapivot/internal/registry"
	"github.com/spaghetti-software-inc/ninjapivot/internal/runner"
	"github.com/spaghetti-software-inc/ninjapivot/internal/service"
	"github.com/spaghetti-software-inc/ninjapivot/internal/store"
	"github.com/spaghetti-software-inc/ninjapivot/internal/store/model"
)

func TestService(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Report Service Suite")
}

const maxUploadBytes = 1024

type engineFunc func(ctx context.Context, input analysis.Input, report analysis.ReportFunc) (*analysis.Artifact, error)

func (f engineFunc) Run(ctx context.Context, input analysis.Input, report analysis.ReportFunc) (*analysis.Artifact, error) {
	return f(ctx, input, report)
}

type memoryArchive struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]model.ArchivedJob
}

func newMemoryArchive() *memoryArchive {
	return &memoryArchive{jobs: make(map[uuid.UUID]model.ArchivedJob)}
}

func (a *memoryArchive) Job() store.Job          { return a }
func (a *memoryArchive) InitialMigration() error { return nil }
func (a *memoryArchive) Close() error            { return nil }

func (a *memoryArchive) Archive(_ context.Context, job model.ArchivedJob) (*model.ArchivedJob, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if existing, ok := a.jobs[job.ID]; ok {
		return &existing, nil
	}
	a.jobs[job.ID] = job
	return &job, nil
}

func (a *memoryArchive) Get(_ context.Context, id uuid.UUID) (*model.ArchivedJob, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	job, ok := a.jobs[id]
	if !ok {
		return nil, store.ErrRecordNotFound
	}
	return &job, nil
}

func (a *memoryArchive) List(_ context.Context, limit int) (model.ArchivedJobList, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(model.ArchivedJobList, 0, len(a.jobs))
	for _, job := range a.jobs {
		out = append(out, job)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var _ = Describe("report service", func() {
	var (
		reg           *registry.Registry
		archive       *memoryArchive
		artifactStore artifacts.Store
		srv           *service.ReportService
	)

	newService := func(engine analysis.Engine) *service.ReportService {
		jobRunner := runner.New(reg, engine, artifactStore, archive, nil, time.Minute)
		return service.NewReportService(reg, jobRunner, artifactStore, archive, nil, maxUploadBytes)
	}

	okEngine := engineFunc(func(_ context.Context, input analysis.Input, report analysis.ReportFunc) (*analysis.Artifact, error) {
		return &analysis.Artifact{Content: []byte("<html>ok</html>"), ContentType: "text/html"}, nil
	})

	waitTerminal := func(id uuid.UUID) registry.Snapshot {
		var snap registry.Snapshot
		Eventually(func() bool {
			var err error
			snap, err = srv.GetJobStatus(context.Background(), id)
			return err == nil && snap.State.Terminal()
		}, 5*time.Second, 10*time.Millisecond).Should(BeTrue())
		return snap
	}

	BeforeEach(func() {
		reg = registry.New()
		archive = newMemoryArchive()

		var err error
		artifactStore, err = artifacts.NewFilesystemStore(GinkgoT().TempDir())
		Expect(err).To(BeNil())

		srv = newService(okEngine)
	})

	Context("create", func() {
		It("returns before the job finishes", func() {
			release := make(chan struct{})
			srv = newService(engineFunc(func(_ context.Context, input analysis.Input, report analysis.ReportFunc) (*analysis.Artifact, error) {
				<-release
				return &analysis.Artifact{Content: []byte("late"), ContentType: "text/html"}, nil
			}))

			snap, err := srv.CreateReportJob(context.Background(), "data.csv", []byte("a\n1\n"))
			Expect(err).To(BeNil())
			Expect(snap.State).To(Equal(registry.StateValidating))
			Expect(snap.State.Terminal()).To(BeFalse())

			close(release)
			waitTerminal(snap.ID)
		})

		It("rejects an empty upload without creating a job", func() {
			_, err := srv.CreateReportJob(context.Background(), "data.csv", nil)

			invalid := &service.ErrInvalidUpload{}
			Expect(errors.As(err, &invalid)).To(BeTrue())
			Expect(reg.Snapshots()).To(BeEmpty())
		})

		It("rejects an oversized upload without creating a job", func() {
			_, err := srv.CreateReportJob(context.Background(), "data.csv", []byte(strings.Repeat("x", maxUploadBytes+1)))

			invalid := &service.ErrInvalidUpload{}
			Expect(errors.As(err, &invalid)).To(BeTrue())
			Expect(reg.Snapshots()).To(BeEmpty())
		})

		It("rejects unsupported file types without creating a job", func() {
			_, err := srv.CreateReportJob(context.Background(), "report.pdf", []byte("%PDF-1.4"))

			invalid := &service.ErrInvalidUpload{}
			Expect(errors.As(err, &invalid)).To(BeTrue())
			Expect(reg.Snapshots()).To(BeEmpty())
		})
	})

	Context("status", func() {
		It("returns ErrJobNotFound for unknown ids", func() {
			_, err := srv.GetJobStatus(context.Background(), uuid.New())

			notFound := &service.ErrJobNotFound{}
			Expect(errors.As(err, &notFound)).To(BeTrue())
		})

		It("falls back to the archive once the registry record is evicted", func() {
			snap, err := srv.CreateReportJob(context.Background(), "data.csv", []byte("a\n1\n"))
			Expect(err).To(BeNil())
			final := waitTerminal(snap.ID)

			Eventually(func() error {
				_, err := archive.Get(context.Background(), snap.ID)
				return err
			}, 5*time.Second, 10*time.Millisecond).Should(BeNil())

			Expect(reg.Delete(snap.ID)).To(Succeed())

			archived, err := srv.GetJobStatus(context.Background(), snap.ID)
			Expect(err).To(BeNil())
			Expect(archived.State).To(Equal(final.State))
			Expect(archived.ArtifactRef).To(Equal(final.ArtifactRef))
		})
	})

	Context("watch", func() {
		It("yields the archived terminal snapshot for an evicted job", func() {
			snap, err := srv.CreateReportJob(context.Background(), "data.csv", []byte("a\n1\n"))
			Expect(err).To(BeNil())
			waitTerminal(snap.ID)

			Eventually(func() error {
				_, err := archive.Get(context.Background(), snap.ID)
				return err
			}, 5*time.Second, 10*time.Millisecond).Should(BeNil())
			Expect(reg.Delete(snap.ID)).To(Succeed())

			ch, cancel, err := srv.WatchJob(context.Background(), snap.ID)
			Expect(err).To(BeNil())
			defer cancel()

			frames := make([]registry.Snapshot, 0, 1)
			for frame := range ch {
				frames = append(frames, frame)
			}
			Expect(frames).To(HaveLen(1))
			Expect(frames[0].State).To(Equal(registry.StateComplete))
		})
	})

	Context("artifact", func() {
		It("serves identical bytes on repeated fetches", func() {
			snap, err := srv.CreateReportJob(context.Background(), "data.csv", []byte("a\n1\n"))
			Expect(err).To(BeNil())
			waitTerminal(snap.ID)

			first, firstSnap, err := srv.GetArtifact(context.Background(), snap.ID)
			Expect(err).To(BeNil())
			Expect(firstSnap.ArtifactType).To(Equal("text/html"))

			second, _, err := srv.GetArtifact(context.Background(), snap.ID)
			Expect(err).To(BeNil())
			Expect(second).To(Equal(first))
		})

		It("refuses to serve the artifact of a failed job", func() {
			srv = newService(engineFunc(func(_ context.Context, input analysis.Input, report analysis.ReportFunc) (*analysis.Artifact, error) {
				return nil, analysis.NewBadInputError("nope")
			}))

			snap, err := srv.CreateReportJob(context.Background(), "data.csv", []byte("a\n1\n"))
			Expect(err).To(BeNil())
			final := waitTerminal(snap.ID)
			Expect(final.State).To(Equal(registry.StateFailed))

			_, _, err = srv.GetArtifact(context.Background(), snap.ID)
			notReady := &service.ErrJobNotReady{}
			Expect(errors.As(err, &notReady)).To(BeTrue())
		})

		It("refuses to serve an artifact while the job is running", func() {
			release := make(chan struct{})
			defer close(release)
			srv = newService(engineFunc(func(_ context.Context, input analysis.Input, report analysis.ReportFunc) (*analysis.Artifact, error) {
				<-release
				return &analysis.Artifact{Content: []byte("late"), ContentType: "text/html"}, nil
			}))

			snap, err := srv.CreateReportJob(context.Background(), "data.csv", []byte("a\n1\n"))
			Expect(err).To(BeNil())

			_, _, err = srv.GetArtifact(context.Background(), snap.ID)
			notReady := &service.ErrJobNotReady{}
			Expect(errors.As(err, &notReady)).To(BeTrue())
		})
	})

	Context("list", func() {
		It("merges live and archived jobs without duplicates", func() {
			first, err := srv.CreateReportJob(context.Background(), "first.csv", []byte("a\n1\n"))
			Expect(err).To(BeNil())
			waitTerminal(first.ID)

			second, err := srv.CreateReportJob(context.Background(), "second.csv", []byte("a\n1\n"))
			Expect(err).To(BeNil())
			waitTerminal(second.ID)

			Eventually(func() int {
				jobs, _ := archive.List(context.Background(), 0)
				return len(jobs)
			}, 5*time.Second, 10*time.Millisecond).Should(Equal(2))

			// evict one of them, it must still appear via the archive
			Expect(reg.Delete(first.ID)).To(Succeed())

			jobs, err := srv.ListJobs(context.Background(), 10)
			Expect(err).To(BeNil())

			ids := make(map[uuid.UUID]int)
			for _, job := range jobs {
				ids[job.ID]++
			}
			Expect(ids).To(HaveLen(2))
			Expect(ids[first.ID]).To(Equal(1))
			Expect(ids[second.ID]).To(Equal(1))
		})
	})
})
