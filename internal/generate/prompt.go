package generate

import (
	"fmt"
	"strings"

	"github.com/mkuo/paperrag/internal/paper"
)

// maxContextChars caps how much retrieved text goes into the answer prompt.
const maxContextChars = 3500

const answerSystemPrompt = `你是一個專業的「靈芝學術圖書館」研究助手。你的角色是客觀地提供文獻摘要，而不是推銷產品或提供醫療建議。

**嚴格遵守以下規則 (法律合規性要求)**：

1. **🚫 絕對禁止詞彙**：
   - 嚴禁使用「功效」、「療效」、「治療」、「改善」、「治癒」、「有效」等涉及醫療效能的詞彙。
   - **替代用語**：請使用「研究指出相關性」、「探討其潛力」、「文獻記載之生物活性」、「實驗結果顯示」、「具有...之特性」等學術中性用語。
   - 例如：不要說「靈芝可以治療癌症」，要說「文獻探討了靈芝在抗腫瘤研究中的生物活性」。

2. **📚 學術定位**：
   - 你是「學術圖書館員」，不是醫生或藥師。只陳述文獻內容，不給予建議。
   - 必須強調這是「實驗結果」或「文獻記載」。

3. **引用格式**：
   - 引用時，請直接在句子後面加上編號，例如：「...研究顯示其生物活性 [1]。」
   - **不要**使用原文的引用編號 (如 (15), [12])。只能使用我賦予的【文獻 x】編號。
   - **參考文獻列表規則 (重要)**：
     - **只列出你在回答中真正引用到的文獻**。

4. **語言策略**：
   - **主要敘述**必須使用通順的**繁體中文**。
   - **專有名詞**（如化學成分、特定蛋白質、菌種名）如果沒有通用的中文翻譯，**可以使用英文**，或採用「中文(英文)」的格式。

5. **產品關聯性檢核 (重要)**：
   - 請特別留意文獻標示的 [部位] (子實體/菌絲體) 與 [萃取法]。
   - 若文獻使用的是「注射」或「純化物」，請勿直接推論為「口服」的效果。

6. **免責聲明**：
   - 在回答的開頭或結尾，適當提醒「本內容僅為學術文獻摘要，不代表醫療建議」。`

// buildAnswerPrompt wraps the context and question in the librarian system
// prompt using the llama instruction format.
func buildAnswerPrompt(query, context string) string {
	return fmt.Sprintf(`[INST] <<SYS>>
%s
<</SYS>>

檢索到的文獻資料：
%s

使用者問題："%s"

請以「靈芝學術圖書館員」的身分，用繁體中文回答上述問題，嚴格遵守合規性用語，避免醫療宣稱，並附上來源引用：
[/INST]`, answerSystemPrompt, context, query)
}

// buildAnswerContext renders chunks as numbered reference blocks. Each
// distinct paper gets one 【文獻 n】 ID, assigned in retrieval order, so the
// model can cite sources the caller can map back. Chunks that would push
// the context past maxContextChars are dropped.
func buildAnswerContext(chunks []paper.ScoredChunk) string {
	var parts []string
	length := 0

	refIDs := make(map[string]int)
	for _, sc := range chunks {
		paperID := sc.PaperID()
		if paperID == "" {
			paperID = "Unknown"
		}
		refID, ok := refIDs[paperID]
		if !ok {
			refID = len(refIDs) + 1
			refIDs[paperID] = refID
		}

		header := fmt.Sprintf("【文獻 %d】(ID: %s)", refID, paperID)
		partUsed := extraString(sc.Extra, "ai_part_used")
		extraction := extraString(sc.Extra, "ai_extraction")
		if partUsed != "Unknown" || extraction != "Unknown" {
			header += fmt.Sprintf("\n[部位: %s] [萃取法: %s]", partUsed, extraction)
		}
		if sc.Section != "" {
			header += " - 節錄自: " + sc.Section
		}

		part := header + "\n" + sc.Content
		if length+len(part) > maxContextChars {
			break
		}
		parts = append(parts, part)
		length += len(part)
	}

	return strings.Join(parts, "\n\n---\n\n")
}

// fallbackAnswer summarizes the top retrieved chunks directly when the model
// is unreachable, so a query still returns the underlying passages.
func fallbackAnswer(chunks []paper.ScoredChunk, errMsg string) string {
	errInfo := ""
	if errMsg != "" {
		errInfo = fmt.Sprintf("（錯誤詳情: %s）", errMsg)
	}
	parts := []string{
		fmt.Sprintf("根據檢索到的 %d 個相關段落，以下是相關內容摘要：\n", len(chunks)),
		fmt.Sprintf("（註：Ollama 服務目前不可用，顯示原始檢索內容）%s\n", errInfo),
	}

	show := chunks
	if len(show) > 3 {
		show = show[:3]
	}
	for i, sc := range show {
		section := sc.Section
		if section == "" {
			section = "未知章節"
		}
		content := sc.Content
		if r := []rune(content); len(r) > 300 {
			content = string(r[:300]) + "..."
		}
		parts = append(parts, fmt.Sprintf("\n**段落 %d** (%s):\n%s\n", i+1, section, content))
	}

	return strings.Join(parts, "\n")
}

func extraString(extra map[string]any, key string) string {
	if s, ok := extra[key].(string); ok && s != "" {
		return s
	}
	return "Unknown"
}
