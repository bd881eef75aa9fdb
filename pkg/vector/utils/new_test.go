package vectorutils_test

import (
	"context"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/kbase/pkg/logger"
	"github.com/papercomputeco/kbase/pkg/vector/filestore"
	"github.com/papercomputeco/kbase/pkg/vector/sqlitevec"
	vectorutils "github.com/papercomputeco/kbase/pkg/vector/utils"
)

var _ = Describe("NewPersister", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("defaults to the file persister in the index dir", func() {
		dir := GinkgoT().TempDir()
		p, err := vectorutils.NewPersister(ctx, &vectorutils.NewPersisterOpts{IndexDir: dir, Logger: logger.Nop()})
		Expect(err).NotTo(HaveOccurred())
		Expect(p).To(BeAssignableToTypeOf(&filestore.Persister{}))
		Expect(p.(*filestore.Persister).Root()).To(Equal(dir))
	})

	It("prefers an explicit file target", func() {
		dir := filepath.Join(GinkgoT().TempDir(), "elsewhere")
		p, err := vectorutils.NewPersister(ctx, &vectorutils.NewPersisterOpts{
			ProviderType: "file",
			Target:       dir,
			IndexDir:     GinkgoT().TempDir(),
			Logger:       logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(p.(*filestore.Persister).Root()).To(Equal(dir))
	})

	It("opens sqlite inside the index dir", func() {
		p, err := vectorutils.NewPersister(ctx, &vectorutils.NewPersisterOpts{
			ProviderType: "sqlite",
			IndexDir:     GinkgoT().TempDir(),
			Logger:       logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(p).To(BeAssignableToTypeOf(&sqlitevec.Persister{}))
		Expect(p.Close()).To(Succeed())
	})

	It("returns no persister for memory storage", func() {
		p, err := vectorutils.NewPersister(ctx, &vectorutils.NewPersisterOpts{ProviderType: "memory", Logger: logger.Nop()})
		Expect(err).NotTo(HaveOccurred())
		Expect(p).To(BeNil())
	})

	It("requires a qdrant target", func() {
		_, err := vectorutils.NewPersister(ctx, &vectorutils.NewPersisterOpts{ProviderType: "qdrant", Logger: logger.Nop()})
		Expect(err).To(MatchError(ContainSubstring("target is required")))
	})

	It("rejects unknown providers", func() {
		_, err := vectorutils.NewPersister(ctx, &vectorutils.NewPersisterOpts{ProviderType: "pinecone", Logger: logger.Nop()})
		Expect(err).To(MatchError(ContainSubstring("unsupported storage provider")))
	})
})
