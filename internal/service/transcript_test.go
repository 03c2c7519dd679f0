package service_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"echoform.app/echoform/internal/model"
	"echoform.app/echoform/internal/service"
)

var _ = Describe("transcript helpers", func() {
	Describe("CleanTranscript", func() {
		It("labels turns and strips progress fragments", func() {
			messages := []model.Message{
				{Role: model.MessageRoleAssistant, Content: "What do you build?\n```json\n{\"objectives\": {\"context\": {\"status\": \"current\"}}}\n```"},
				{Role: model.MessageRoleUser, Content: "Developer tools"},
			}

			transcript := service.CleanTranscript(messages)
			Expect(transcript).To(Equal("Interviewer: What do you build?\n\nRespondent: Developer tools"))
		})

		It("drops turns that were all fragment", func() {
			messages := []model.Message{
				{Role: model.MessageRoleAssistant, Content: "```json\n{\"objectives\": {\"context\": {\"status\": \"done\"}}}\n```"},
				{Role: model.MessageRoleUser, Content: "Hello"},
			}

			Expect(service.CleanTranscript(messages)).To(Equal("Respondent: Hello"))
		})

		It("returns empty for no messages", func() {
			Expect(service.CleanTranscript(nil)).To(Equal(""))
		})
	})

	Describe("UserWordCount", func() {
		It("counts only respondent words", func() {
			messages := []model.Message{
				{Role: model.MessageRoleAssistant, Content: "Tell me about your workflow"},
				{Role: model.MessageRoleUser, Content: "I mostly review  pull requests"},
				{Role: model.MessageRoleUser, Content: "and write design docs"},
			}

			Expect(service.UserWordCount(messages)).To(Equal(9))
		})
	})

	Describe("CompletionStatus", func() {
		It("renders the done percentage against the plan", func() {
			progress := model.ObjectiveProgress{
				"a": {Status: model.ObjectiveStatusDone},
				"b": {Status: model.ObjectiveStatusCurrent},
			}
			Expect(service.CompletionStatus(progress, 4)).To(Equal("25%"))
		})

		It("handles an empty plan", func() {
			Expect(service.CompletionStatus(nil, 0)).To(Equal("0%"))
		})
	})

	Describe("MatchPersona", func() {
		catalogue := []string{"Founder", "Product Manager"}

		It("matches with case and whitespace normalization", func() {
			Expect(service.MatchPersona("  product   manager ", catalogue)).To(Equal("Product Manager"))
		})

		It("returns the sentinel for labels outside the catalogue", func() {
			Expect(service.MatchPersona("Designer", catalogue)).To(Equal(model.Unclassified))
			Expect(service.MatchPersona("", catalogue)).To(Equal(model.Unclassified))
			Expect(service.MatchPersona("unclassified", catalogue)).To(Equal(model.Unclassified))
		})
	})
})
