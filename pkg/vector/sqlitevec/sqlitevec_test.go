package sqlitevec_test

import (
	"context"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/kbase/pkg/logger"
	"github.com/papercomputeco/kbase/pkg/vector"
	"github.com/papercomputeco/kbase/pkg/vector/sqlitevec"
)

var _ = Describe("Persister", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("NewPersister", func() {
		It("should return an error when DBPath is empty", func() {
			_, err := sqlitevec.NewPersister(sqlitevec.Config{DBPath: ""}, logger.Nop())
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("database path is required"))
		})

		It("should open an in-memory database", func() {
			p, err := sqlitevec.NewPersister(sqlitevec.Config{DBPath: ":memory:"}, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Close()).To(Succeed())
		})
	})

	Describe("Save and Load", func() {
		var p *sqlitevec.Persister

		BeforeEach(func() {
			var err error
			p, err = sqlitevec.NewPersister(sqlitevec.Config{DBPath: ":memory:"}, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			Expect(p.Close()).To(Succeed())
		})

		It("round-trips texts and vectors in order", func() {
			c, err := vector.NewCollection("file1",
				[]string{"one", "two", "three"},
				[][]float32{{0.1, 0.2, 0.3, 0.4}, {0.5, 0.6, 0.7, 0.8}, {1, 0, 0, 0}},
			)
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Save(ctx, c)).To(Succeed())

			loaded, err := p.Load(ctx, "file1")
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.Texts()).To(Equal(c.Texts()))
			Expect(loaded.Vectors()).To(Equal(c.Vectors()))
		})

		It("replaces a collection with one of another dimension", func() {
			first, _ := vector.NewCollection("file1", []string{"a", "b"}, [][]float32{{1, 0}, {0, 1}})
			second, _ := vector.NewCollection("file1", []string{"c"}, [][]float32{{1, 2, 3}})
			Expect(p.Save(ctx, first)).To(Succeed())
			Expect(p.Save(ctx, second)).To(Succeed())

			loaded, err := p.Load(ctx, "file1")
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.Texts()).To(Equal([]string{"c"}))
			Expect(loaded.Dimension()).To(Equal(3))
		})

		It("keeps collections independent", func() {
			a, _ := vector.NewCollection("file1", []string{"a"}, [][]float32{{1, 0}})
			b, _ := vector.NewCollection("file2", []string{"b"}, [][]float32{{0, 1, 0}})
			Expect(p.Save(ctx, a)).To(Succeed())
			Expect(p.Save(ctx, b)).To(Succeed())

			names, err := p.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(names).To(Equal([]string{"file1", "file2"}))

			Expect(p.Delete(ctx, "file1")).To(Succeed())
			_, err = p.Load(ctx, "file1")
			Expect(err).To(MatchError(vector.ErrNotFound))

			loaded, err := p.Load(ctx, "file2")
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.Texts()).To(Equal([]string{"b"}))
		})

		It("treats deleting an absent collection as success", func() {
			Expect(p.Delete(ctx, "missing")).To(Succeed())
		})

		It("reports a missing collection as not found", func() {
			_, err := p.Load(ctx, "missing")
			Expect(err).To(MatchError(vector.ErrNotFound))
		})
	})

	It("survives a reopen of the database file", func() {
		dbPath := filepath.Join(GinkgoT().TempDir(), "kbase.sqlite")

		p, err := sqlitevec.NewPersister(sqlitevec.Config{DBPath: dbPath}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		c, _ := vector.NewCollection("file1", []string{"persisted"}, [][]float32{{0.25, 0.75}})
		Expect(p.Save(ctx, c)).To(Succeed())
		Expect(p.Close()).To(Succeed())

		reopened, err := sqlitevec.NewPersister(sqlitevec.Config{DBPath: dbPath}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		defer reopened.Close()

		loaded, err := reopened.Load(ctx, "file1")
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded.Vectors()).To(Equal([][]float32{{0.25, 0.75}}))
	})
})
