package i18n

// Translator retrieves localized messages for Issue codes.
// data provides optional metadata to embed in the message (for example,
// "max" or "path").
type Translator interface {
	Message(code string, data map[string]string) string
}

// dictTranslator is the built-in dictionary-based Translator.
type dictTranslator struct{ lang string }

func (t dictTranslator) Message(code string, data map[string]string) string {
	switch t.lang {
	case "ja":
		switch code {
		case "unsupported_type":
			return "サポートされていない型です"
		case "missing_option":
			return "必須のフィールドオプションが不足しています"
		case "inherit_missing":
			return "継承元フィールドが見つかりません"
		case "bad_format":
			return "フォーマット文字列が不正です"
		case "length_lookup":
			return "長さフィールドを解決できません"
		case "length_overflow":
			return "宣言された最大長を超えています"
		case "truncated":
			return "データが不足しています"
		case "invalid_value":
			return "値が不正です"
		case "path_lookup":
			return "パスを解決できません"
		case "value_not_active":
			return "選択されていない共用体メンバーです"
		case "selector_map":
			return "セレクタ値に対応するメンバーがありません"
		}
	default: // "en"
		switch code {
		case "unsupported_type":
			return "unsupported declared type"
		case "missing_option":
			return "required field option missing"
		case "inherit_missing":
			return "no base field to inherit from"
		case "bad_format":
			return "malformed format string"
		case "length_lookup":
			return "length source cannot be resolved"
		case "length_overflow":
			return "value exceeds declared maximum length"
		case "truncated":
			return "input shorter than format requires"
		case "invalid_value":
			return "invalid value"
		case "path_lookup":
			return "path cannot be resolved"
		case "value_not_active":
			return "union member is not active"
		case "selector_map":
			return "no union member mapped for selector value"
		}
	}
	return code
}

var currentTranslator Translator = dictTranslator{lang: "en"}

// SetLanguage switches the built-in Translator language ("en"/"ja").
func SetLanguage(lang string) {
	if lang != "ja" {
		lang = "en"
	}
	currentTranslator = dictTranslator{lang: lang}
}

// SetTranslator replaces the Translator implementation (not limited to the
// dictionary version).
func SetTranslator(tr Translator) {
	if tr == nil {
		currentTranslator = dictTranslator{lang: "en"}
		return
	}
	currentTranslator = tr
}

// T fetches a message for the given code using the current Translator.
func T(code string, data map[string]string) string { return currentTranslator.Message(code, data) }
