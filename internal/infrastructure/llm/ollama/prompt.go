package ollama

import (
	"fmt"
	"strings"

	"github.com/qinyuanle/legal-qa-engine/internal/core/domain"
)

const (
	maxQuestionSnippet = 2000
	maxContextEntries  = 5
)

func buildClassificationPrompt(question string) string {
	snippet := question
	if runes := []rune(snippet); len(runes) > maxQuestionSnippet {
		snippet = string(runes[:maxQuestionSnippet])
	}

	return `你是一个刑事法律问题分析器。针对用户问题返回严格的 JSON 对象，键如下:
is_legal_domain (bool), confidence (0到1的数字),
identified_crimes (罪名字符串数组，无则为空数组),
query_variants (对象，含 query2doc: 改写为法律文书风格的查询; hyde: 假设性答案段落),
weighted_keywords (数组，元素为 {"term": 关键词, "weight": 0到1}).
不要输出 markdown，不要输出多余的键。

用户问题:
` + snippet
}

func buildAnswerPrompt(question string, articles, cases []domain.RankedResult) string {
	var b strings.Builder
	b.WriteString("你是刑事法律问答助手。仅根据下面检索到的法条和案例回答问题，")
	b.WriteString("引用具体条文编号，信息不足时直接说明。\n\n问题:\n")
	b.WriteString(question)
	b.WriteString("\n\n相关法条:\n")
	writeContext(&b, articles)
	b.WriteString("\n相关案例:\n")
	writeContext(&b, cases)
	return b.String()
}

func writeContext(b *strings.Builder, results []domain.RankedResult) {
	if len(results) == 0 {
		b.WriteString("(无)\n")
		return
	}
	limit := len(results)
	if limit > maxContextEntries {
		limit = maxContextEntries
	}
	for idx := 0; idx < limit; idx++ {
		r := results[idx]
		fmt.Fprintf(b, "[%d] %s (相关度 %.1f)\n%s\n\n", idx+1, r.Title, r.DisplayScore, r.Content)
	}
}
