package utils_test

import (
	"runtime"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/kbase/pkg/utils"
)

var _ = Describe("Build", func() {
	var saved [3]string

	BeforeEach(func() {
		saved = [3]string{utils.Version, utils.Sha, utils.Buildtime}
		DeferCleanup(func() {
			utils.Version, utils.Sha, utils.Buildtime = saved[0], saved[1], saved[2]
		})
	})

	It("reports the link-time values and the toolchain", func() {
		utils.Version = "v1.2.0"
		utils.Sha = "4f2c9ab0d1e2"
		utils.Buildtime = "2026-01-02T03:04:05Z"

		b := utils.Build()
		Expect(b.Version).To(Equal("v1.2.0"))
		Expect(b.Buildtime).To(Equal("2026-01-02T03:04:05Z"))
		Expect(b.GoVersion).To(Equal(runtime.Version()))
		Expect(b.Platform).To(Equal(runtime.GOOS + "/" + runtime.GOARCH))
	})

	It("abbreviates long shas", func() {
		utils.Version = "v1.2.0"
		utils.Sha = "4f2c9ab0d1e2"
		Expect(utils.Build().Short()).To(Equal("v1.2.0 (4f2c9ab)"))
	})

	It("keeps short shas whole", func() {
		utils.Version = "dev"
		utils.Sha = "HEAD"
		Expect(utils.Build().Short()).To(Equal("dev (HEAD)"))
		Expect(utils.Build().UserAgent()).To(Equal("kbase/dev"))
	})
})
