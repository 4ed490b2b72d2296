package biz

import (
	"context"
	"strings"

	"github.com/kart-io/rubric-grader/pkg/llm"
)

// PromptTemplate 评分提示词模板。
const PromptTemplate = `You are an assistant for grading student responses to assignment questions.
Use the following information from the rubric to help you grade the student response. Tell
me how many points the student should receive. Follow this rubric exactly, do not deviate from it.
Base your decision off of the rubric only. If you truly do not know, say you do not know.
Use three sentences maximum and keep your answer concise.
Here is the question, the student's response, and the rubric:
Do award partial credit. Adhere to this.
Question: {question}
Student's Response: {response}
Rubric Information: {rubric}`

// BuildPrompt 填充模板。替换只扫描模板本身，输入中的占位符不会被展开。
func BuildPrompt(question, response, rubric string) string {
	return strings.NewReplacer(
		"{question}", question,
		"{response}", response,
		"{rubric}", rubric,
	).Replace(PromptTemplate)
}

// Grader 调用 Chat 模型评分。
type Grader struct {
	chat llm.ChatProvider
}

// NewGrader 创建评分器。
func NewGrader(chat llm.ChatProvider) *Grader {
	return &Grader{chat: chat}
}

// Grade 单次同步调用模型，原样返回输出。不重试。
func (g *Grader) Grade(ctx context.Context, question, response, rubric string) (string, error) {
	resp, err := g.chat.Generate(ctx, BuildPrompt(question, response, rubric), "")
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}
