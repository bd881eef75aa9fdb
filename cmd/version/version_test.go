package versioncmder_test

import (
	"bytes"
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	versioncmder "github.com/papercomputeco/kbase/cmd/version"
	"github.com/papercomputeco/kbase/pkg/utils"
)

var _ = Describe("Version Command", func() {
	var out *bytes.Buffer

	BeforeEach(func() {
		out = &bytes.Buffer{}
	})

	It("prints build metadata", func() {
		cmd := versioncmder.NewVersionCmd()
		cmd.SetOut(out)
		cmd.SetArgs([]string{})
		Expect(cmd.Execute()).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Version: " + utils.Version))
		Expect(out.String()).To(ContainSubstring("Go: "))
	})

	It("prints JSON with --json", func() {
		cmd := versioncmder.NewVersionCmd()
		cmd.SetOut(out)
		cmd.SetArgs([]string{"--json"})
		Expect(cmd.Execute()).To(Succeed())

		var b utils.BuildInfo
		Expect(json.Unmarshal(out.Bytes(), &b)).To(Succeed())
		Expect(b).To(Equal(utils.Build()))
	})
})
