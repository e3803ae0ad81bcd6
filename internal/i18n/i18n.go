// Package i18n is the translation table shared by every UI surface.
package i18n

// Language is a supported UI language.
type Language string

const (
	English Language = "en"
	Chinese Language = "zh"

	Default = English
)

// Valid reports whether l is one of the recognized languages.
func (l Language) Valid() bool { return l == English || l == Chinese }

// Other returns the language a toggle switches to.
func (l Language) Other() Language {
	if l == Chinese {
		return English
	}
	return Chinese
}

// Tag is the BCP 47 tag for l.
func (l Language) Tag() string {
	if l == Chinese {
		return "zh-CN"
	}
	return "en"
}

// Parse returns the language for s, or Default and false when s is not recognized.
func Parse(s string) (Language, bool) {
	l := Language(s)
	if l.Valid() {
		return l, true
	}
	return Default, false
}

var translations = map[string]map[Language]string{
	"appTitle":            {English: "iMoney Converter", Chinese: "iMoney Converter"},
	"subtitle":            {English: "Live Rate Conversion", Chinese: "实时汇率转换"},
	"loading":             {English: "Loading exchange rates...", Chinese: "正在加载汇率数据..."},
	"noData":              {English: "Exchange rates unavailable.", Chinese: "暂无汇率数据。"},
	"errorGeneric":        {English: "Failed to load exchange rates.", Chinese: "加载汇率数据失败。"},
	"errorRetry":          {English: "Failed to load exchange rates. Please try again later.", Chinese: "加载汇率数据失败，请稍后再试。"},
	"settingsAria":        {English: "Manage currency settings", Chinese: "管理货币设置"},
	"languageToggleAria":  {English: "Switch to Chinese", Chinese: "切换为英文"},
	"clearLabel":          {English: "Clear amount", Chinese: "清空金额"},
	"pageTitle":           {English: "Manage Currency List", Chinese: "管理货币列表"},
	"pageSubtitle":        {English: "Choose which currencies appear in the popup or add new ones.", Chinese: "选择在弹窗中显示的货币，或添加新的货币。"},
	"activeSection":       {English: "Displayed Currencies", Chinese: "当前显示列表"},
	"availableSection":    {English: "Available Currencies", Chinese: "可选货币"},
	"add":                 {English: "Add", Chinese: "添加"},
	"remove":              {English: "Remove", Chinese: "移除"},
	"fixed":               {English: "Pinned", Chinese: "固定"},
	"fixedTooltip":        {English: "USD cannot be removed", Chinese: "USD 无法移除"},
	"unsupportedCurrency": {English: "That currency is not supported.", Chinese: "不支持该货币。"},
	"invalidAmount":       {English: "Please enter a valid amount.", Chinese: "请输入有效金额。"},
	"languageChanged":     {English: "Language set to English.", Chinese: "语言已切换为中文。"},
	"invalidLanguage":     {English: "Supported languages are en and zh.", Chinese: "支持的语言为 en 和 zh。"},
}

// T returns the string id in lang, falling back to English, then "".
func T(lang Language, id string) string {
	entry, ok := translations[id]
	if !ok {
		return ""
	}
	if s := entry[lang]; s != "" {
		return s
	}
	return entry[Default]
}
