package processor

import (
	"regexp"
	"strconv"
	"strings"
)

// 关键词候选列表，匹配按列表顺序进行
var (
	elementOptions = []string{"Pyro", "Hydro", "Electro", "Cryo", "Anemo", "Geo", "Dendro"}
	weaponOptions  = []string{"Sword", "Claymore", "Polearm", "Bow", "Catalyst"}
	regionOptions  = []string{
		"Mondstadt", "Liyue", "Inazuma", "Sumeru", "Fontaine",
		"Natlan", "Snezhnaya", "Khaenri'ah", "Nod-Krai",
	}
	modelTypeOptions = []string{
		"Tall Male", "Tall Female",
		"Medium Male", "Medium Female",
		"Short Male", "Short Female",
	}
)

// 已知五星角色，用于稀有度判定的第一优先级
var fiveStarNames = map[string]struct{}{}

func init() {
	names := []string{
		"Albedo", "Alhaitham", "Tartaglia", "Lyney", "Baizhu", "Chasca", "Chiori",
		"Citlali", "Clorinde", "Cyno", "Dehya", "Diluc", "Eula", "Furina",
		"Ganyu", "Hu Tao", "Itto", "Jean", "Kazuha", "Keqing", "Kinich",
		"Klee", "Mavuika", "Mona", "Mualani", "Nahida", "Navia", "Neuvillette",
		"Nilou", "Qiqi", "Raiden Shogun", "Shenhe", "Sigewinne", "Tighnari",
		"Venti", "Wanderer", "Wriothesley", "Xiao", "Xianyun", "Xilonen",
		"Yae Miko", "Yelan", "Yoimiya", "Zhongli", "Arlecchino", "Emilie",
		"Kamisato Ayaka", "Kamisato Ayato", "Kaedehara Kazuha", "Arataki Itto",
		"Sangonomiya Kokomi", "Columbina",
		"Zibai", "Ineffa", "Nefer", "Lauma", "Flins", "Aloy", "Traveler",
		"Yumemizuki Mizuki", "Durin", "Escoffier", "Skirk", "Varesa",
	}
	for _, n := range names {
		fiveStarNames[n] = struct{}{}
	}
}

// 明确的五星文本标记（仅在名单未命中时检查）
// 注意归一化会在字母和数字间补空格，所以同时登记"quality5"和"quality 5"
var fiveStarMarkers = []string{"5★", "5-star", "5 star", "quality5", "quality 5", "★★★★★"}

// 已知组织名称，按列表顺序收集所有命中的组织
var affiliationOptions = []string{
	"Knights of Favonius", "Liyue Qixing", "Fatui", "Adventurers' Guild",
	"Wangsheng Funeral Parlor", "Yashiro Commission", "Tenryou Commission",
	"Kamisato Clan", "Arataki Gang", "Watatsumi Army", "Sumeru Akademiya",
	"Spina di Rosula", "Hotel Bouffes d'ete", "House of the Hearth",
	"Maison Gardiennage", "The Crux", "Church of Favonius",
	"Grand Narukami Shrine", "Sangonomiya Shrine", "Shuumatsuban",
	"Hexenzirkel", "Eleven Fatui Harbingers", "The Seven",
	"Bubu Pharmacy", "Adepti", "Forest Rangers", "Matra",
	"Temple of Silence", "The Steambird", "Zubayr Theater",
	"Lightkeepers", "Three Moons", "Frostmoon Scions",
}

// capturePattern 正则提取规则
// 按顺序尝试，第一个捕获组通过校验即返回
type capturePattern struct {
	re    *regexp.Regexp
	valid func(string) bool
}

// compilePatterns 编译正则列表，非法的模式直接跳过而不是让整个提取器失效
func compilePatterns(exprs []string, valid func(string) bool) []capturePattern {
	var patterns []capturePattern
	for _, expr := range exprs {
		re, err := regexp.Compile(expr)
		if err != nil {
			continue
		}
		patterns = append(patterns, capturePattern{re: re, valid: valid})
	}
	return patterns
}

// firstCapture 依次尝试各模式，返回第一个通过校验的捕获结果
func firstCapture(text string, patterns []capturePattern, clean func(string) string) string {
	for _, p := range patterns {
		m := p.re.FindStringSubmatch(text)
		if len(m) < 2 {
			continue
		}
		value := strings.TrimSpace(m[1])
		if clean != nil {
			value = clean(value)
		}
		if value == "" {
			continue
		}
		if p.valid != nil && !p.valid(value) {
			continue
		}
		return value
	}
	return ""
}

func lengthBetween(min, max int) func(string) bool {
	return func(s string) bool {
		return len(s) > min && len(s) < max
	}
}

var (
	titlePatterns = compilePatterns([]string{
		`"([^"]+)"`,
		`(?i)also known as\s+"?([^",.\[\]]+)"?`,
		`(?i)known as\s+"?([^",.\[\]]+)"?`,
		`(?i)titled\s+"?([^",.\[\]]+)"?`,
	}, lengthBetween(3, 50))

	constellationPatterns = compilePatterns([]string{
		`Constellation\s*([A-Z][a-z]+\s*[A-Z]?[a-z]*)`,
		`lation\s*([A-Z][a-z]+\s*[A-Z]?[a-z]*)`,
	}, func(s string) bool {
		return len(s) > 3 && !strings.HasPrefix(s, "Story")
	})

	releaseDatePatterns = compilePatterns([]string{
		`Release\s*Date\s*([A-Z][a-z]+\s+\d{1,2},?\s*\d{4})`,
		`Released?\s*(?:on\s*)?([A-Z][a-z]+\s+\d{1,2},?\s*\d{4})`,
	}, nil)

	birthdayPatterns = compilePatterns([]string{
		`Birthday\s*([A-Z][a-z]+\s+\d+)`,
	}, nil)

	realNamePatterns = compilePatterns([]string{
		`Real\s*Name\s*([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)`,
	}, func(s string) bool { return len(s) > 2 })

	specialDishPatterns = compilePatterns([]string{
		`Special\s*Dish\s*([A-Z][^N]+?)(?: Namecard|How)`,
		`Special\s*Dish([^N]+?)Namecard`,
	}, lengthBetween(2, 100))

	namecardPatterns = compilePatterns([]string{
		`Namecard\s*([A-Z][^H]+?)(?:How|Featured|Release)`,
		`Namecard([^H]+?)How`,
	}, func(s string) bool { return len(s) > 2 })

	eventWishPatterns = compilePatterns([]string{
		`(?i)promoted or featured with a drop-rate boost in\s*(\d+)\s*Event Wish`,
		`(?i)featured.*?(\d+)\s*Event Wish`,
	}, nil)

	// 各语言配音演员的提取模式，依赖信息框字段在文本中的相邻顺序
	voiceActorPatterns = map[string][]capturePattern{
		"english":  compilePatterns([]string{`English\s*([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)`}, nil),
		"chinese":  compilePatterns([]string{`Chinese\s*([^\[\]]+?)(?:\s*\([^)]+\))?\s*(?:\[|Japanese)`}, nil),
		"japanese": compilePatterns([]string{`Japanese\s*([^\[\]]+?)(?:\s*\([^)]+\))?\s*(?:\[|Korean)`}, nil),
		"korean":   compilePatterns([]string{`Korean\s*([^\[\]]+?)(?:\s*\([^)]+\))?\s*(?:\[|Additional)`}, nil),
	}

	parentheticalRe = regexp.MustCompile(`\s*\([^)]*\)\s*`)
	refDigitsRe     = regexp.MustCompile(`\[\d+\]`)
	eventNameRe     = regexp.MustCompile(`Event Wish\s*[—–-]\s*([^F]+?)(?: Featured|Release)`)
)

// ExtractKeyword 在文本中查找第一个命中的候选项（大小写不敏感的子串匹配）
func ExtractKeyword(text string, options []string) string {
	lower := strings.ToLower(text)
	for _, opt := range options {
		if strings.Contains(lower, strings.ToLower(opt)) {
			return opt
		}
	}
	return ""
}

// ExtractElement 提取元素属性
func ExtractElement(text string) string {
	return ExtractKeyword(text, elementOptions)
}

// ExtractWeapon 提取武器类型
func ExtractWeapon(text string) string {
	return ExtractKeyword(text, weaponOptions)
}

// ExtractRegion 提取所属地区
func ExtractRegion(text string) string {
	return ExtractKeyword(text, regionOptions)
}

// ExtractModelType 提取模型体型
// 信息框文本常把"Medium Female"粘连成"MediumFemale"，所以匹配时去掉空格比较
func ExtractModelType(text string) string {
	squashed := strings.ReplaceAll(strings.ToLower(text), " ", "")
	for _, opt := range modelTypeOptions {
		key := strings.ReplaceAll(strings.ToLower(opt), " ", "")
		if strings.Contains(squashed, key) {
			return opt
		}
	}
	return ""
}

// ExtractAffiliations 收集所有命中的组织，保持候选列表的顺序
func ExtractAffiliations(text string) []string {
	lower := strings.ToLower(text)
	var result []string
	for _, aff := range affiliationOptions {
		if strings.Contains(lower, strings.ToLower(aff)) {
			result = append(result, aff)
		}
	}
	return result
}

// ExtractRarity 判定稀有度，总是返回4或5
// 先查五星名单（全名或任意空格分词），再查明确的五星文本标记，否则默认4星
func ExtractRarity(name, text string) int {
	for _, part := range strings.Fields(name) {
		if _, ok := fiveStarNames[part]; ok {
			return 5
		}
	}
	if _, ok := fiveStarNames[name]; ok {
		return 5
	}

	lower := strings.ToLower(text)
	for _, marker := range fiveStarMarkers {
		if strings.Contains(lower, marker) {
			return 5
		}
	}

	return 4
}

// ExtractTitle 提取称号或别名
func ExtractTitle(text string) string {
	return firstCapture(text, titlePatterns, nil)
}

// ExtractConstellation 提取命之座名称
func ExtractConstellation(text string) string {
	return firstCapture(text, constellationPatterns, nil)
}

// ExtractReleaseDate 提取上线日期
func ExtractReleaseDate(text string) string {
	return firstCapture(text, releaseDatePatterns, nil)
}

// ExtractBirthday 提取生日
func ExtractBirthday(text string) string {
	return firstCapture(text, birthdayPatterns, nil)
}

// ExtractRealName 提取真实姓名
func ExtractRealName(text string) string {
	return firstCapture(text, realNamePatterns, nil)
}

// ExtractSpecialDish 提取特殊料理
// 料理名只去引用标记，括号是名称的一部分
func ExtractSpecialDish(text string) string {
	return firstCapture(text, specialDishPatterns, cleanRefs)
}

// ExtractNamecard 提取名片名称
func ExtractNamecard(text string) string {
	return firstCapture(text, namecardPatterns, cleanRefs)
}

// ExtractEventWishCount 提取限定祈愿次数，未找到返回nil
func ExtractEventWishCount(text string) *int {
	value := firstCapture(text, eventWishPatterns, nil)
	if value == "" {
		return nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return nil
	}
	return &n
}

// ExtractVoiceActors 提取各语言配音演员
// 演员名去掉括号内注释和引用标记后，长度需在2到50之间
func ExtractVoiceActors(text string) map[string]string {
	actors := make(map[string]string)
	for _, lang := range voiceActorLanguages {
		actor := firstCapture(text, voiceActorPatterns[lang], cleanCaptured)
		if actor != "" && len(actor) > 1 && len(actor) < 50 {
			actors[lang] = actor
		}
	}
	if len(actors) == 0 {
		return nil
	}
	return actors
}

// cleanCaptured 清除捕获结果中的括号注释和引用标记，仅用于配音演员名
func cleanCaptured(s string) string {
	s = parentheticalRe.ReplaceAllString(s, "")
	s = refDigitsRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// cleanRefs 只清除引用标记
func cleanRefs(s string) string {
	return strings.TrimSpace(refDigitsRe.ReplaceAllString(s, ""))
}

// ExtractRoles 提取角色定位标志
// 各标志独立判定，互不排斥
func ExtractRoles(text string) RoleFlags {
	lower := strings.ToLower(text)
	return RoleFlags{
		OnField:       strings.Contains(lower, "on-field") || strings.Contains(lower, "on field"),
		OffField:      strings.Contains(lower, "off-field") || strings.Contains(lower, "off field"),
		DPS:           strings.Contains(lower, "dps"),
		Support:       strings.Contains(lower, "support"),
		Survivability: strings.Contains(lower, "survivability") || strings.Contains(lower, "healing") || strings.Contains(lower, "healer"),
	}
}

// ExtractObtainMethods 提取获取方式
// 结果永远非空，没有任何关键词命中时默认为祈愿获取
func ExtractObtainMethods(text string) []string {
	lower := strings.ToLower(text)
	var methods []string

	if strings.Contains(lower, "wishes") || strings.Contains(lower, "wish") {
		methods = append(methods, "Wishes")
	}
	if strings.Contains(lower, "event wish") {
		if m := eventNameRe.FindStringSubmatch(text); len(m) > 1 {
			methods = append(methods, "Event Wish: "+strings.TrimSpace(m[1]))
		}
	}
	if strings.Contains(lower, "chronicled wishes") {
		methods = append(methods, "Chronicled Wishes")
	}
	if strings.Contains(lower, "paimon's bargains") {
		methods = append(methods, "Paimon's Bargains")
	}
	if strings.Contains(lower, "adventure rank") {
		methods = append(methods, "Adventure Rank Reward")
	}
	if strings.Contains(lower, "archon quest") || strings.Contains(lower, "complete") {
		methods = append(methods, "Quest Reward")
	}

	if len(methods) == 0 {
		return []string{"Wishes"}
	}
	return methods
}

// ExtractCharacterType 三分类的角色类型判定，总是返回一个标签
func ExtractCharacterType(text string) string {
	lower := strings.ToLower(text)

	if strings.Contains(lower, "synthetic") {
		if strings.Contains(lower, "creator") || strings.Contains(lower, "created by") {
			return "Synthetic (Created)"
		}
		if strings.Contains(lower, "derived from") {
			return "Synthetic (Derived)"
		}
		return "Synthetic"
	}
	if strings.Contains(lower, "adoptive") {
		return "Adoptive"
	}
	return "Biological"
}
