package answer

import "strings"

// transcript serializes history oldest-first as alternating Human/Assistant
// lines, the shape both prompts embed.
func transcript(history []Turn) string {
	var b strings.Builder
	for i, t := range history {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("Human: ")
		b.WriteString(t.Human)
		b.WriteString("\nAssistant: ")
		b.WriteString(t.Assistant)
	}
	return b.String()
}

// rewritePrompt asks the model to restate a follow-up question so it stands
// alone, resolving pronouns and references against the conversation so far.
func rewritePrompt(question string, history []Turn) string {
	var b strings.Builder
	b.WriteString("Given the following conversation and a follow-up question, ")
	b.WriteString("rephrase the follow-up question to be a standalone question ")
	b.WriteString("that contains all the context it needs. ")
	b.WriteString("Reply with the standalone question only.\n\n")
	b.WriteString("Conversation:\n")
	b.WriteString(transcript(history))
	b.WriteString("\n\nFollow-up question: ")
	b.WriteString(question)
	b.WriteString("\n\nStandalone question:")
	return b.String()
}

// answerPrompt grounds the generation on the retrieved passages. The model is
// told to prefer the provided context, to fall back on general knowledge when
// the context does not cover the question, and never to disclaim missing
// information or name its sources.
func answerPrompt(question, contextText string) string {
	var b strings.Builder
	b.WriteString("You answer questions about an organization using excerpts ")
	b.WriteString("from its website and documents.\n\n")
	b.WriteString("Excerpts:\n")
	b.WriteString(contextText)
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\n\nAnswer the question using the excerpts above when they are relevant. ")
	b.WriteString("If they do not cover the question, answer from your general knowledge instead. ")
	b.WriteString("Never say you lack information, and never mention excerpts, context, ")
	b.WriteString("sources, or documents in your answer.")
	return b.String()
}
