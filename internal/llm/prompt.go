package llm

import (
	"fmt"
	"strings"

	"github.com/sehatline/sehatline/internal/conversation"
)

var systemPrompts = map[conversation.Language]string{
	conversation.LanguageUrdu: `آپ ایک صحت کی معلومات کے معاون ہیں۔ مریضوں کو ڈاکٹروں، اوقات اور علاج کے طریقوں کے بارے میں معلومات دیں۔
صرف فراہم کردہ معلومات استعمال کریں؛ اپنی طرف سے کچھ نہ بنائیں۔
اگر معلومات دستیاب نہیں تو صاف کہیں کہ معلومات دستیاب نہیں ہے۔
طبی مشورہ نہ دیں، صرف معلومات فراہم کریں۔ جوابات مختصر رکھیں۔ ہمیشہ اردو میں جواب دیں۔`,

	conversation.LanguageEnglish: `You are a health information assistant. Help patients find doctors, timings,
and treatment procedure information.
Only use the provided information; never invent facts.
If the information is not available, say so plainly.
Do not give medical advice, only information. Keep replies concise. Always answer in English.`,

	conversation.LanguageRomanUrdu: `Aap aik sehat ki maloomat ke muawin hain. Mareezon ko doctoron, auqaat aur
ilaaj ke tareeqon ke baare mein maloomat dein.
Sirf di gayi maloomat istemal karein; apni taraf se kuch na banayein.
Agar maloomat mojood nahi to saaf kahein ke maloomat dastiyab nahi hai.
Tibbi mashwara na dein, sirf maloomat faraham karein. Jawabaat mukhtasir rakhein.
Hamesha Roman Urdu (Urdu likhi hui English huroof mein) mein jawab dein.`,
}

// buildPrompt assembles the full prompt, bounding history to the most recent
// maxHistory turns and passages to the first topK.
func buildPrompt(req Request, maxHistory, topK int) string {
	var sb strings.Builder

	system, ok := systemPrompts[req.Language]
	if !ok {
		system = systemPrompts[conversation.LanguageEnglish]
	}
	sb.WriteString(system)
	sb.WriteString("\n\n")

	passages := req.Passages
	if len(passages) > topK {
		passages = passages[:topK]
	}
	if len(passages) > 0 {
		sb.WriteString("Available information:\n")
		for i, p := range passages {
			fmt.Fprintf(&sb, "%d. %s: %s\n", i+1, p.Title, p.Content)
		}
		sb.WriteString("\n")
	} else {
		sb.WriteString("No matching records were found for this query.\n\n")
	}

	history := req.History
	if len(history) > maxHistory {
		history = history[len(history)-maxHistory:]
	}
	if len(history) > 0 {
		sb.WriteString("Conversation so far:\n")
		for _, turn := range history {
			fmt.Fprintf(&sb, "%s: %s\n", turn.Role, turn.Content)
		}
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "user: %s\nassistant:", req.Message)
	return sb.String()
}
