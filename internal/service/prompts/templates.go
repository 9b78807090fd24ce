package prompts

// NoneAnswer is the sentinel the grounded template asks the model to return
// when the retrieved context does not contain the answer.
const NoneAnswer = "NONE"

const (
	FollowUpPrefix  = "Follow up questions: "
	OptimizedPrefix = "Optimized prompt: "
)

var (
	// Simple answers without retrieval; prior turns travel as chat messages.
	Simple = MustNew(Config{
		Name:               "simple",
		SystemInstructions: "You are a chatbot having a conversation with a human.",
		Template:           "{{.human_input}}",
		InputVariables:     []string{"human_input"},
	})

	// DocumentQA answers only from retrieved context and history.
	DocumentQA = MustNew(Config{
		Name: "document_qa",
		Template: `Use the following context (delimited by <ctx></ctx>) and the chat history (delimited by <hs></hs>) to answer the question:
If you don't know the answer, reply "NONE".
Always reply in the Markdown format.
=========
------
<ctx>
{{.context}}
</ctx>
------
<hs>
{{.history}}
</hs>
------
{{.question}}
Answer: `,
		InputVariables: []string{"context", "history", "question"},
	})

	// Refine rewrites a prompt that produced NONE into one closer to the document.
	Refine = MustNew(Config{
		Name: "refine",
		Template: "Give a revised and optimized prompt based on the original prompt, document summary, document " +
			"name and history of the conversation." +
			"The prompt should be related to the document and to original prompt." +
			"Answer only the optimized prompt. Don't try to make up an answer." +
			"<document summary>{{.summary}}</document summary>" +
			"<document name>{{.name}}</document name>" +
			"<history>{{.history}}</history>," +
			"<original prompt>{{.prompt}}</original prompt>" +
			OptimizedPrefix,
		InputVariables: []string{"summary", "name", "history", "prompt"},
	})

	// FollowUp asks for three follow-up questions, one per line.
	FollowUp = MustNew(Config{
		Name: "follow_up",
		Template: "Suggest 3 follow up questions based on the document summary, document name " +
			"and history of the conversation." +
			"Give more attention to the last question and answer in the history." +
			"Answer only the follow up questions. Don't try to make up an answer. Separate them with new line" +
			"<document summary>{{.summary}}</document summary>" +
			"<document name>{{.name}}</document name>" +
			"<history>{{.history}}</history>," +
			FollowUpPrefix,
		InputVariables: []string{"summary", "name", "history"},
	})

	// SummaryMap condenses one chunk; SummaryCombine condenses the chunk summaries.
	SummaryMap = MustNew(Config{
		Name:           "summary_map",
		Template:       "Write a concise and condensed summary of the following:\n\n{{.text}}\n\nCONCISE SUMMARY:",
		InputVariables: []string{"text"},
	})
	SummaryCombine = MustNew(Config{
		Name:           "summary_combine",
		Template:       "Write a concise and condensed summary of the following:\n\n{{.text}}\n\nCONCISE SUMMARY:",
		InputVariables: []string{"text"},
	})
)
