package git_test

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/reels/pkg/git"
)

func TestGit(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Git Suite")
}

var _ = Describe("RepoName", func() {
	It("returns a non-empty name", func() {
		Expect(git.RepoName()).ToNot(BeEmpty())
	})

	It("falls back to the working directory name outside a git repo", func() {
		tmpDir, err := os.MkdirTemp("", "detect-test-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { os.RemoveAll(tmpDir) })

		origDir, err := os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(tmpDir)).To(Succeed())
		DeferCleanup(func() { os.Chdir(origDir) })

		name := git.RepoName()
		Expect(name).To(Equal(filepath.Base(tmpDir)))
	})
})
