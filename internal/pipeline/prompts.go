package pipeline

import (
	"fmt"
	"strings"

	"github.com/speechloop/speechd/internal/session"
)

// Sampling parameters per generation stage.
const (
	topicsTemperature       = 0.8
	topicsMaxTokens         = 1000
	keywordsTemperature     = 0.9
	keywordsMaxTokens       = 500
	speechTemperature       = 0.9
	speechMaxTokens         = 2000
	quickSpeechTemperature  = 0.85
	quickSpeechMaxTokens    = 2000
	associationsTemperature = 0.9
	associationsMaxTokens   = 500
)

// Static per-call token estimates used for the rate-limit check. Actual
// usage from the response metadata is what gets recorded.
const (
	estTopicsTokens       = 1000
	estKeywordsTokens     = 600
	estSpeechTokens       = 2000
	estQuickSpeechTokens  = 2000
	estAssociationsTokens = 600
)

// charsPerMinute is the soft speech-length target scaled by the requested
// duration. It is embedded in the prompt, never enforced on the response.
const charsPerMinute = 300

// topicStyleInstructions returns the style-specific block appended to the
// topic prompt.
func topicStyleInstructions(style session.SpeechStyle) string {
	switch style {
	case session.StyleFunny:
		return `
特に重要: 面白い話が作りやすいお題を選んでください。
- 日常の失敗談やハプニングが話しやすい話題
- ユーモラスな体験談を引き出しやすいお題
- 笑いを誘う要素がある話題`
	case session.StyleMoving:
		return `
特に重要: 感動的な話が作りやすいお題を選んでください。
- 人との絆や思い出に関連する話題
- 感謝や成長が語りやすいお題
- 心温まるエピソードを引き出しやすい話題`
	case session.StyleEducational:
		return `
特に重要: 勉強になる話が作りやすいお題を選んでください。
- 学びや発見に関連する話題
- 知識や経験を共有しやすいお題
- 教訓や気づきが語りやすい話題`
	case session.StyleSurprising:
		return `
特に重要: びっくりする話が作りやすいお題を選んでください。
- 意外な体験や発見に関連する話題
- 驚きのエピソードを引き出しやすいお題
- 予想外の展開が語りやすい話題`
	default:
		return ""
	}
}

// speechStyleInstructions returns the tone directive for the speech prompt.
func speechStyleInstructions(style session.SpeechStyle) string {
	switch style {
	case session.StyleFunny:
		return "面白い話やユーモラスなエピソードを中心に、聴衆を笑わせるスピーチにしてください。失敗談や意外な展開を含めると効果的です。"
	case session.StyleMoving:
		return "感動的なエピソードや心温まる話を中心に、聴衆の心に響くスピーチにしてください。人との絆や成長の物語を含めると効果的です。"
	case session.StyleEducational:
		return "学びや気づきのあるエピソードを中心に、聴衆にとって勉強になるスピーチにしてください。具体的な知識や教訓を含めると効果的です。"
	case session.StyleSurprising:
		return "驚きや意外性のあるエピソードを中心に、聴衆をびっくりさせるスピーチにしてください。予想外の展開や発見を含めると効果的です。"
	default:
		return "聴衆の興味を引く魅力的なスピーチにしてください。"
	}
}

func topicsPrompt(count int, style session.SpeechStyle) string {
	return fmt.Sprintf(`
チャップリン方式のスピーチ練習用のお題を%d個生成してください。
%s

要件:
- 1-4単語程度の名詞または概念
- スピーチしやすい適度な抽象度
- 重複しない内容
- 日本語で出力

良い例: ["あなたにとっての人生", "学生時代のこと", "最近ハマっていること", "好きな動物", "理想の休日", "大切にしている言葉"]

悪い例（避けてください）: ["愛", "夢", "希望", "時間", "友情"] ← 単語だけは連想が難しい
悪い例（避けてください）: ["政治について", "経済問題", "戦争と平和", "宗教"] ← 重すぎる話題
悪い例（避けてください）: ["量子力学", "相対性理論", "DNA"] ← 専門的すぎる
悪い例（避けてください）: ["未来への希望", "記憶の断片", "沈黙の力"] ← 抽象的すぎる

出力形式:
以下のJSON形式で出力してください:
{
  "topics": ["お題1", "お題2", "お題3", ...]
}
`, count, topicStyleInstructions(style))
}

func keywordsPrompt(topic string) string {
	return fmt.Sprintf(`
「%s」というお題から連想されるキーワードを5個生成してください。

要件:
- チャップリン方式のスピーチで使いやすい言葉
- 具体的で話を広げやすいキーワード
- お題との関連性が明確
- 1-2語の名詞または形容詞
- カンマ区切りで出力

良い例（「好きな動物」の場合）: 癒し、可愛い、性格、ペット、自然
悪い例: 動物、生き物、好き、嫌い、普通 ← 抽象的すぎる

出力形式:
以下のJSON形式で出力してください:
{
  "keywords": "キーワード1、キーワード2、キーワード3、キーワード4、キーワード5"
}
`, topic)
}

func speechPrompt(topic, keywords string, style session.SpeechStyle, durationMinutes int) string {
	chars := durationMinutes * charsPerMinute
	return fmt.Sprintf(`
お題「%s」と関連キーワード「%s」を使って、%d分間のスピーチ例を作成してください。

要件:
- 関連キーワードをできるだけ多く自然に組み込む
- %d分で話せる分量（%d-%d文字程度）
- 具体的なエピソードや例を含める
- %s

スピーチの構成:
1. 導入（1段落）: 聴衆の注意を引く始まり
2. 本文（3段落）: メインの内容を3つのポイントで展開
3. 結び（1段落）: 印象的な締めくくり

出力形式:
以下のJSON形式で出力してください:
{
  "speech": {
    "opening": "導入部分のテキスト",
    "body": [
      "本文の第1段落",
      "本文の第2段落",
      "本文の第3段落"
    ],
    "closing": "結びの部分のテキスト"
  },
  "tips": [
    "このスピーチのポイント1",
    "このスピーチのポイント2",
    "このスピーチのポイント3"
  ]
}
`, topic, keywords, durationMinutes, durationMinutes, chars, chars+100, speechStyleInstructions(style))
}

// quickSpeechPrompt builds the prompt for the stateless speech variant:
// no session, no keyword stage, an association chain as loose inspiration.
func quickSpeechPrompt(topic, associations string) string {
	return fmt.Sprintf(`
あなたは優秀なスピーチライターです。
与えられたお題について、1-2分程度の短いスピーチ原稿を作成してください。

与えられた情報:
- スピーチのお題: "%s"
- 連想ワード（ヒント）: %s

重要な注意事項:
- スピーチは「%s」についてのスピーチです
- 連想ワードは発想のヒントとして参考にしてください
- 連想ワードの中から特定の言葉を選んで話す必要はありません
- 「%s」から自由に発想を広げてスピーチを作成してください

以下の構成でスピーチを作成してください:

1. 導入（opening）:
   - 聴衆の注意を引く開始
   - 「%s」についての導入
   - 50-80文字程度

2. 本文（body）:
   - 3つの段落で構成
   - 各段落は80-120文字程度
   - 個人的な経験や具体例を含める
   - 連想ワードからインスピレーションを得た内容を含めても良い
   - 聴衆が共感できる内容

3. 締めくくり（closing）:
   - 印象的な結び
   - 聴衆への問いかけや行動の促し
   - 50-80文字程度

4. スピーチのポイント（tips）:
   - このスピーチを効果的にするための3つのアドバイス
   - 各20-40文字程度

以下のJSON形式で出力してください:
{
  "speech": {
    "opening": "導入文",
    "body": ["第1段落", "第2段落", "第3段落"],
    "closing": "締めくくり文"
  },
  "tips": ["ポイント1", "ポイント2", "ポイント3"]
}

注意事項:
- 自然で話しやすい日本語を使用
- 堅すぎず、親しみやすいトーン
- 「%s」を中心にスピーチを組み立てる
- 1-2分で話せる長さ（全体で300-500文字程度）
`, topic, associations, topic, topic, topic, topic)
}

func associationsPrompt(topic string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "「%s」という言葉から連想ゲームをしてください。\n", topic)
	fmt.Fprintf(&b, `以下のルールに従って8個の言葉を連想してください：

1. 最初の言葉は「%s」
2. 各ステップで前の言葉から自然に連想される言葉を選ぶ
3. できるだけ関連性がある連想をする
4. どの言葉もスピーチのテーマとして使えるようにする
5. ネガティブな言葉は避ける

良い例（「学生時代のこと」の場合）:
学生時代のこと → 友人 → 部活動 → 努力 → 成長 → 自信 → 挑戦 → 未来

良い例（「好きな動物」の場合）:
好きな動物 → ペット → 家族 → 愛情 → 絆 → 思い出 → 写真 → 宝物

悪い例（「学生時代のこと」の場合）:
学生時代のこと → 勉強 → 苦痛 → 絶望 → 闇 → 悪 → 破壊 → 終末
理由: ネガティブすぎて、スピーチに向かない

悪い例（「好きな動物」の場合）:
好きな動物 → 犬 → 猫 → うさぎ → ハムスター → インコ → 金魚 → カメ
理由: 単に動物を列挙しているだけで、連想になっていない

以下のJSON形式で出力してください:
{
  "associations": "%s → 連想1 → 連想2 → 連想3 → 連想4 → 連想5 → 連想6 → 連想7"
}
`, topic, topic)
	return b.String()
}
