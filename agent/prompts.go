package agent

import "fmt"

// 各专家与综合角色的系统提示词.
const (
	readerSystemPrompt = "You are a Reader Agent specialized in understanding literary texts. " +
		"Your role is to carefully read and comprehend the uploaded document, " +
		"identifying key elements such as plot points, characters, settings, " +
		"and narrative structure. You provide factual information directly from the text."

	contextSystemPrompt = "You are a Context Agent specialized in providing historical, cultural, " +
		"and biographical context for literary works. You help readers understand " +
		"the time period, cultural influences, and author's background that shaped the text."

	analysisSystemPrompt = "You are an Analysis Agent specialized in literary criticism and analysis. " +
		"You identify and explain literary devices, symbolism, themes, character development, " +
		"and narrative techniques. You provide critical perspectives on the text."

	synthesisSystemPrompt = "You are a Synthesis Agent that combines insights from multiple sources " +
		"to provide comprehensive responses about literary texts. You integrate " +
		"textual evidence, historical context, and critical analysis into cohesive, " +
		"insightful answers that deepen the reader's understanding and appreciation of the text."
)

// readerInput 构造 Reader 专家的用户输入.
func readerInput(question, documentContext string) string {
	return fmt.Sprintf(
		"Based on the following document context, answer the question: %s\n\nContext: %s",
		question, documentContext,
	)
}

// contextInput 构造 Context 专家的用户输入.
func contextInput(question, externalKnowledge string) string {
	return fmt.Sprintf(
		"Provide historical, cultural, or biographical context relevant to this question: %s\n\nExternal Knowledge: %s",
		question, externalKnowledge,
	)
}

// analysisInput 构造 Analysis 专家的用户输入.
func analysisInput(question, documentContext, externalKnowledge string) string {
	return fmt.Sprintf(
		"Analyze the literary elements related to this question: %s\n\nDocument Context: %s\n\nExternal Knowledge: %s",
		question, documentContext, externalKnowledge,
	)
}

// synthesisInput 构造综合阶段的用户输入，三个专家结论按固定顺序与标签拼接.
func synthesisInput(question, readerOut, contextOut, analysisOut string) string {
	return fmt.Sprintf(
		"Question: %s\n\n"+
			"Reader Agent (Text Information): %s\n\n"+
			"Context Agent (Historical/Biographical Context): %s\n\n"+
			"Analysis Agent (Literary Analysis): %s\n\n"+
			"Please synthesize these insights into a comprehensive, cohesive response that addresses the question.",
		question, readerOut, contextOut, analysisOut,
	)
}
