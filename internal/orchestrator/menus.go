package orchestrator

import (
	"fmt"
	"strings"

	"github.com/sehatline/sehatline/internal/conversation"
)

// welcomeMenu greets new users before a language is known, so it carries
// all three options in one message.
const welcomeMenu = `Assalam-o-Alaikum! Sehatline mein khush aamdeed.
Welcome to Sehatline, your health information assistant.

Please choose your language / اپنی زبان منتخب کریں:
1. اردو (Urdu)
2. English
3. Roman Urdu

Reply with 1, 2 or 3.`

const languageMenu = `Please choose your language / اپنی زبان منتخب کریں:
1. اردو (Urdu)
2. English
3. Roman Urdu

Reply with 1, 2 or 3.`

const invalidLanguageNotice = "Maaf kijiye, yeh intikhab samajh nahi aaya. / Sorry, that was not a valid choice.\n\n" + languageMenu

var modeMenus = map[conversation.Language]string{
	conversation.LanguageUrdu: `آپ جواب کیسے وصول کرنا چاہتے ہیں؟
1. آواز (وائس میسج)
2. تحریر (ٹیکسٹ)

1 یا 2 لکھ کر بھیجیں۔`,
	conversation.LanguageEnglish: `How would you like to receive replies?
1. Voice messages
2. Text messages

Reply with 1 or 2.`,
	conversation.LanguageRomanUrdu: `Aap jawab kaise hasil karna chahte hain?
1. Awaz (voice message)
2. Tehreer (text)

1 ya 2 likh kar bhejein.`,
}

var invalidModeNotices = map[conversation.Language]string{
	conversation.LanguageUrdu:      "معاف کیجیے، یہ درست انتخاب نہیں ہے۔",
	conversation.LanguageEnglish:   "Sorry, that was not a valid choice.",
	conversation.LanguageRomanUrdu: "Maaf kijiye, yeh durust intikhab nahi hai.",
}

var readyMessages = map[conversation.Language]string{
	conversation.LanguageUrdu:      "شکریہ! اب آپ صحت سے متعلق کوئی بھی سوال پوچھ سکتے ہیں۔ ترتیبات بدلنے کے لیے 'settings' لکھیں۔",
	conversation.LanguageEnglish:   "Thank you! You can now ask any health question. Send 'settings' at any time to change your preferences.",
	conversation.LanguageRomanUrdu: "Shukriya! Ab aap sehat se mutaliq koi bhi sawal pooch sakte hain. Tarteebat badalne ke liye 'settings' likhein.",
}

var rateLimitNotices = map[conversation.Language]string{
	conversation.LanguageUrdu:      "آپ بہت تیزی سے پیغامات بھیج رہے ہیں۔ براہ کرم تھوڑی دیر انتظار کریں۔",
	conversation.LanguageEnglish:   "You are sending messages too quickly. Please wait a moment and try again.",
	conversation.LanguageRomanUrdu: "Aap bohat tezi se paighamat bhej rahe hain. Barah-e-karam thori dair intezar karein.",
}

var tryAgainNotices = map[conversation.Language]string{
	conversation.LanguageUrdu:      "معذرت، اس وقت آپ کے پیغام پر کارروائی نہیں ہو سکی۔ براہ کرم دوبارہ کوشش کریں۔",
	conversation.LanguageEnglish:   "Sorry, your message could not be processed right now. Please try again.",
	conversation.LanguageRomanUrdu: "Mazrat, is waqt aap ke paigham par karwai nahi ho saki. Barah-e-karam dobara koshish karein.",
}

var delayNotices = map[conversation.Language]string{
	conversation.LanguageUrdu:      "معذرت، اس وقت جواب دینے میں تاخیر ہو رہی ہے۔ براہ کرم کچھ دیر بعد دوبارہ کوشش کریں۔",
	conversation.LanguageEnglish:   "Sorry, we are experiencing delays right now. Please try again in a little while.",
	conversation.LanguageRomanUrdu: "Mazrat, is waqt jawab dene mein takheer ho rahi hai. Barah-e-karam kuch dair baad dobara koshish karein.",
}

var transcriptionFailNotices = map[conversation.Language]string{
	conversation.LanguageUrdu:      "معذرت، آپ کا وائس میسج سمجھ نہیں آیا۔ براہ کرم دوبارہ بھیجیں یا لکھ کر پوچھیں۔",
	conversation.LanguageEnglish:   "Sorry, I could not understand your voice message. Please send it again or type your question.",
	conversation.LanguageRomanUrdu: "Mazrat, aap ka voice message samajh nahi aaya. Barah-e-karam dobara bhejein ya likh kar poochein.",
}

var unsupportedKindNotices = map[conversation.Language]string{
	conversation.LanguageUrdu:      "معذرت، میں صرف تحریری اور آواز والے پیغامات سمجھ سکتا ہوں۔",
	conversation.LanguageEnglish:   "Sorry, I can only understand text and voice messages.",
	conversation.LanguageRomanUrdu: "Mazrat, main sirf tehreeri aur awaz wale paighamat samajh sakta hoon.",
}

var voiceDuringOnboardingNotices = map[conversation.Language]string{
	conversation.LanguageUrdu:      "براہ کرم پہلے نمبر لکھ کر انتخاب مکمل کریں۔",
	conversation.LanguageEnglish:   "Please finish setup first by replying with a number.",
	conversation.LanguageRomanUrdu: "Barah-e-karam pehle number likh kar intikhab mukammal karein.",
}

var modeMismatchHints = map[conversation.Language]string{
	conversation.LanguageUrdu:      "(آواز میں جواب پانے کے لیے 'mode' لکھیں)",
	conversation.LanguageEnglish:   "(send 'mode' to switch to voice replies)",
	conversation.LanguageRomanUrdu: "(awaz mein jawab paane ke liye 'mode' likhein)",
}

var helpTexts = map[conversation.Language]string{
	conversation.LanguageUrdu: `آپ صحت سے متعلق سوالات لکھ کر یا وائس میسج بھیج کر پوچھ سکتے ہیں۔
دستیاب کمانڈز:
- language: زبان تبدیل کریں
- mode: جواب کا انداز تبدیل کریں
- settings: موجودہ ترتیبات دیکھیں
- help: یہ پیغام`,
	conversation.LanguageEnglish: `Ask any health question by text or voice message.
Available commands:
- language: change your language
- mode: change how replies are delivered
- settings: show your current preferences
- help: this message`,
	conversation.LanguageRomanUrdu: `Sehat se mutaliq sawal likh kar ya voice message bhej kar pooch sakte hain.
Commands:
- language: zaban tabdeel karein
- mode: jawab ka andaz tabdeel karein
- settings: maujooda tarteebat dekhein
- help: yeh paigham`,
}

var languageNames = map[conversation.Language]string{
	conversation.LanguageUrdu:      "اردو",
	conversation.LanguageEnglish:   "English",
	conversation.LanguageRomanUrdu: "Roman Urdu",
}

var modeNames = map[conversation.Language]map[conversation.Mode]string{
	conversation.LanguageUrdu:      {conversation.ModeVoice: "آواز", conversation.ModeText: "تحریر"},
	conversation.LanguageEnglish:   {conversation.ModeVoice: "voice", conversation.ModeText: "text"},
	conversation.LanguageRomanUrdu: {conversation.ModeVoice: "awaz", conversation.ModeText: "tehreer"},
}

func settingsText(convo *conversation.Context) string {
	switch convo.Language {
	case conversation.LanguageUrdu:
		return fmt.Sprintf("آپ کی ترتیبات:\nزبان: %s\nجواب: %s\n\nزبان بدلنے کے لیے 'language'، انداز بدلنے کے لیے 'mode' لکھیں۔",
			languageNames[convo.Language], modeNames[convo.Language][convo.Mode])
	case conversation.LanguageRomanUrdu:
		return fmt.Sprintf("Aap ki tarteebat:\nZaban: %s\nJawab: %s\n\nZaban badalne ke liye 'language', andaz badalne ke liye 'mode' likhein.",
			languageNames[convo.Language], modeNames[convo.Language][convo.Mode])
	default:
		return fmt.Sprintf("Your preferences:\nLanguage: %s\nReplies: %s\n\nSend 'language' or 'mode' to change them.",
			languageNames[convo.Language], modeNames[convo.Language][convo.Mode])
	}
}

// localized returns the message for the context's language, falling back to
// English when no language has been chosen yet.
func localized(m map[conversation.Language]string, lang conversation.Language) string {
	if s, ok := m[lang]; ok {
		return s
	}
	return m[conversation.LanguageEnglish]
}

// parseLanguageSelection maps a menu reply to a language. Only explicit
// selections count; free text never changes the language.
func parseLanguageSelection(text string) (conversation.Language, bool) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "1", "urdu", "اردو":
		return conversation.LanguageUrdu, true
	case "2", "english":
		return conversation.LanguageEnglish, true
	case "3", "roman", "roman urdu":
		return conversation.LanguageRomanUrdu, true
	}
	return conversation.LanguageUnset, false
}

func parseModeSelection(text string) (conversation.Mode, bool) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "1", "voice", "awaz", "آواز":
		return conversation.ModeVoice, true
	case "2", "text", "tehreer", "تحریر":
		return conversation.ModeText, true
	}
	return conversation.ModeUnset, false
}

type command int

const (
	cmdNone command = iota
	cmdLanguage
	cmdMode
	cmdSettings
	cmdHelp
)

// parseCommand recognizes the in-conversation commands available once
// onboarding is complete.
func parseCommand(text string) command {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "language", "zaban", "زبان":
		return cmdLanguage
	case "mode", "andaz":
		return cmdMode
	case "settings", "tarteebat":
		return cmdSettings
	case "help", "madad", "مدد":
		return cmdHelp
	}
	return cmdNone
}
