package eventstreamutils_test

import (
	"context"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/reels/pkg/eventstream"
	eventstreamutils "github.com/papercomputeco/reels/pkg/eventstream/utils"
)

func TestEventstreamUtils(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "EventstreamUtils Suite")
}

var _ = Describe("NewPublisher", func() {
	It("yields the no-op publisher when streaming is disabled", func() {
		for _, provider := range []string{"", "none", "nop"} {
			p, err := eventstreamutils.NewPublisher(&eventstreamutils.NewPublisherOpts{
				ProviderType: provider,
				Logger:       zap.NewNop(),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(p).NotTo(BeNil())
			Expect(p.Publish(context.Background(), &eventstream.Event{})).To(Succeed())
		}
	})

	It("rejects an unknown provider", func() {
		_, err := eventstreamutils.NewPublisher(&eventstreamutils.NewPublisherOpts{
			ProviderType: "rabbitmq",
			Logger:       zap.NewNop(),
		})
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("unsupported eventstream provider"))
	})
})
