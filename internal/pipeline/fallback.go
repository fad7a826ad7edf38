package pipeline

import (
	"fmt"
	"math/rand"
	"regexp"
	"strings"

	"github.com/speechloop/speechd/internal/session"
)

// Static substitute content for when the generative backend is unavailable.
// The pipeline's resilience guarantee is that generation never hard-fails
// because of the backend: worst case the user gets this, clearly
// non-personalized, content.

// fallbackTopics is sampled without replacement (shuffled) to pad or
// replace generated topics.
var fallbackTopics = []string{
	"あなたにとっての人生",
	"学生時代のこと",
	"最近ハマっていること",
	"好きな動物",
	"理想の休日",
	"大切にしている言葉",
	"子供の頃の夢",
	"今年の目標",
	"感謝している人",
	"忘れられない思い出",
	"印象に残った本",
	"心に残る風景",
	"おすすめの場所",
	"影響を受けた人",
	"挑戦したいこと",
}

// fallbackKeywords maps curated topics to association terms.
var fallbackKeywords = map[string]string{
	"あなたにとっての人生": "挑戦、成長、家族、幸せ、目標",
	"学生時代のこと":    "友達、部活、勉強、青春、思い出",
	"最近ハマっていること": "趣味、楽しみ、発見、時間、充実",
	"好きな動物":      "癒し、可愛い、性格、ペット、自然",
	"理想の休日":      "リラックス、趣味、家族、旅行、充実",
	"大切にしている言葉":  "座右の銘、励まし、教訓、成長、人生",
	"子供の頃の夢":     "憧れ、将来、純粋、挑戦、成長",
	"今年の目標":      "成長、挑戦、計画、努力、達成",
	"感謝している人":    "恩師、家族、友人、支え、成長",
	"忘れられない思い出":  "感動、経験、成長、人生、宝物",
}

// genericKeywords covers topics without a curated entry.
const genericKeywords = "挑戦、成長、経験、学び、未来"

// fallbackAssociationChains maps curated topics to full association chains.
var fallbackAssociationChains = map[string]string{
	"時間": "時間 → 時計 → 針 → 方向 → 道 → 旅 → 冒険 → 勇気",
	"友情": "友情 → 絆 → 糸 → 結ぶ → 約束 → 信頼 → 宝物 → 光",
	"挑戦": "挑戦 → 山 → 頂上 → 景色 → 視野 → 広がり → 可能性 → 未来",
	"感謝": "感謝 → 心 → 温かさ → 太陽 → エネルギー → 活力 → 成長 → 実り",
	"成長": "成長 → 木 → 根 → 大地 → 恵み → 豊かさ → 幸せ → 笑顔",
	"夢":  "夢 → 星 → 夜空 → 無限 → 宇宙 → 探検 → 発見 → 驚き",
	"変化": "変化 → 蝶 → 羽ばたき → 自由 → 風 → 流れ → 川 → 海",
	"勇気": "勇気 → 炎 → 情熱 → 赤 → バラ → 美 → 芸術 → 創造",
	"希望": "希望 → 朝日 → 始まり → スタート → 一歩 → 前進 → 道のり → 到達",
	"笑顔": "笑顔 → 花 → 春 → 芽吹き → 生命 → 鼓動 → リズム → 音楽",
}

// fallbackAssociations returns a curated chain for the topic, or a
// templated generic one.
func fallbackAssociations(topic string) string {
	if chain, ok := fallbackAssociationChains[topic]; ok {
		return chain
	}
	return fmt.Sprintf("%s → 発想 → アイデア → 創造 → 革新 → 未来 → 希望 → 実現", topic)
}

// shuffledFallbackTopics returns n fallback topics, shuffled, reusing the
// list only when n exceeds its size.
func shuffledFallbackTopics(n int) []string {
	out := make([]string, 0, n)
	for len(out) < n {
		idx := rand.Perm(len(fallbackTopics))
		for _, i := range idx {
			if len(out) == n {
				break
			}
			out = append(out, fallbackTopics[i])
		}
	}
	return out
}

// keywordSplitRe tolerates both Japanese and ASCII comma delimiters.
var keywordSplitRe = regexp.MustCompile(`[、,]\s*`)

// keywordTokens splits a keywords string into individual terms.
func keywordTokens(keywords string) []string {
	parts := keywordSplitRe.Split(keywords, -1)
	out := parts[:0]
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// nthToken returns the i-th keyword token, or "" when fewer tokens exist
// than the fallback template references.
func nthToken(tokens []string, i int) string {
	if i < len(tokens) {
		return tokens[i]
	}
	return ""
}

// fallbackSpeech builds the static speech, parameterized by topic and the
// positional leading keyword tokens. Blank substitutions are tolerated.
func fallbackSpeech(topic, keywords string) *session.SpeechExample {
	tokens := keywordTokens(keywords)
	first := nthToken(tokens, 0)
	second := nthToken(tokens, 1)

	return &session.SpeechExample{
		Speech: session.SpeechBody{
			Opening: fmt.Sprintf("皆さん、今日は「%s」についてお話しさせていただきます。", topic),
			Body: []string{
				fmt.Sprintf("「%s」というテーマを聞いて、私はある思い出が鮮明に蘇ってきました。それは、私の人生観を変えた一つの出来事でした。%s", topic, sentenceFor(first)),
				fmt.Sprintf("誰もが「%s」について、それぞれの経験や想いを持っているはずです。私にとってそれは、日常の中で見過ごしていた大切なものに気づかせてくれる機会でした。%s", topic, sentenceFor(second)),
				fmt.Sprintf("今振り返ると、「%s」は私たちの生活のあちこちに存在しています。大切なのは、それに気づき、向き合う勇気を持つことかもしれません。", topic),
			},
			Closing: fmt.Sprintf("皆さんも、ご自身の「%s」について、もう一度考えてみませんか。きっと新しい発見があるはずです。", topic),
		},
		Tips: []string{
			"個人的な体験を具体的に語る",
			"聴衆が共感できるエピソードを選ぶ",
			"最後は行動への呼びかけで締める",
		},
	}
}

// sentenceFor weaves a keyword token into the template, or nothing when the
// token is blank.
func sentenceFor(token string) string {
	if token == "" {
		return ""
	}
	return fmt.Sprintf("特に「%s」という言葉が、その時の気持ちを思い出させてくれます。", token)
}
