package ingest_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/kbase/pkg/ingest"
	"github.com/papercomputeco/kbase/pkg/logger"
)

type recordingEnqueuer struct {
	mu   sync.Mutex
	jobs []ingest.Job
}

func (r *recordingEnqueuer) Enqueue(job ingest.Job) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, job)
	return true
}

func (r *recordingEnqueuer) Jobs() []ingest.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ingest.Job(nil), r.jobs...)
}

var _ = Describe("Watcher", func() {
	It("validates its inputs", func() {
		_, err := ingest.NewWatcher(nil, &recordingEnqueuer{}, 0, logger.Nop())
		Expect(err).To(HaveOccurred())
		_, err = ingest.NewWatcher(map[string]string{"a.txt": "file1"}, nil, 0, logger.Nop())
		Expect(err).To(HaveOccurred())
	})

	It("enqueues one job per burst of changes to a tracked file", func() {
		dir := GinkgoT().TempDir()
		tracked := filepath.Join(dir, "report.txt")
		untracked := filepath.Join(dir, "notes.txt")
		Expect(os.WriteFile(tracked, []byte("v1"), 0o644)).To(Succeed())

		enq := &recordingEnqueuer{}
		w, err := ingest.NewWatcher(map[string]string{tracked: "file1"}, enq, 50*time.Millisecond, logger.Nop())
		Expect(err).NotTo(HaveOccurred())

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- w.Run(ctx) }()
		DeferCleanup(func() {
			cancel()
			Eventually(done).Should(Receive(BeNil()))
		})

		// give the watcher a moment to register the directory
		time.Sleep(100 * time.Millisecond)

		for _, v := range []string{"v2", "v3", "v4"} {
			Expect(os.WriteFile(tracked, []byte(v), 0o644)).To(Succeed())
		}
		Expect(os.WriteFile(untracked, []byte("ignored"), 0o644)).To(Succeed())

		Eventually(enq.Jobs, 2*time.Second).Should(HaveLen(1))
		Consistently(enq.Jobs, 200*time.Millisecond).Should(HaveLen(1))

		job := enq.Jobs()[0]
		Expect(job.Collection).To(Equal("file1"))
		Expect(job.Path).To(Equal(tracked))
	})
})
