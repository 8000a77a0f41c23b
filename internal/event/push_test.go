package event_test

import (
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rancher/branch-merge-action/internal/event"
)

var _ = Describe("ParsePushEvent", func() {
	const sample = `{
		"ref": "refs/heads/release/v2.9",
		"before": "0000000",
		"after": "abc123",
		"deleted": false,
		"repository": {
			"name": "branch-merge-action",
			"owner": {"login": "rancher"}
		},
		"sender": {"login": "octocat"}
	}`

	It("parses the pushed branch and repository", func() {
		payload, err := event.ParsePushEvent(strings.NewReader(sample))
		Expect(err).NotTo(HaveOccurred())

		Expect(payload.Ref).To(Equal("refs/heads/release/v2.9"))
		Expect(payload.Branch).To(Equal("release/v2.9"))
		Expect(payload.IsBranch()).To(BeTrue())
		Expect(payload.After).To(Equal("abc123"))
		Expect(payload.Deleted).To(BeFalse())
		Expect(payload.Repository.Owner).To(Equal("rancher"))
		Expect(payload.Repository.Name).To(Equal("branch-merge-action"))
		Expect(payload.Sender).To(Equal("octocat"))
	})

	It("does not treat tag pushes as branches", func() {
		payload, err := event.ParsePushEvent(strings.NewReader(`{"ref":"refs/tags/v1.0.0"}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(payload.IsBranch()).To(BeFalse())
	})

	It("flags deleted branches", func() {
		payload, err := event.ParsePushEvent(strings.NewReader(`{"ref":"refs/heads/old","deleted":true}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(payload.Deleted).To(BeTrue())
		Expect(payload.Branch).To(Equal("old"))
	})

	It("rejects payloads without a ref", func() {
		_, err := event.ParsePushEvent(strings.NewReader(`{"after":"abc"}`))
		Expect(err).To(MatchError(ContainSubstring("no ref")))
	})

	It("rejects malformed JSON", func() {
		_, err := event.ParsePushEvent(strings.NewReader(`{`))
		Expect(err).To(MatchError(ContainSubstring("decode push event")))
	})

	It("reads the payload from disk", func() {
		path := filepath.Join(GinkgoT().TempDir(), "event.json")
		Expect(os.WriteFile(path, []byte(sample), 0o600)).To(Succeed())

		payload, err := event.ParsePushEventFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(payload.Branch).To(Equal("release/v2.9"))
	})
})
