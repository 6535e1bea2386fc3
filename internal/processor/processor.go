package processor

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
)

// bracketNoteRe 章节名中的方括号注释
var bracketNoteRe = regexp.MustCompile(`\[.*?\]`)

// Processor 把原始wiki角色记录转换为结构化记录和检索切块
type Processor struct {
	logger *logrus.Logger
}

// ProcessorOption 处理器配置选项
type ProcessorOption func(*Processor)

// WithLogger 设置自定义日志记录器
func WithLogger(logger *logrus.Logger) ProcessorOption {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewProcessor 创建角色处理器
func NewProcessor(opts ...ProcessorOption) *Processor {
	p := &Processor{
		logger: logrus.New(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process 处理单个角色记录
// 提取器只作用于归一化后的介绍文本，缺失字段留空而不是报错
func (p *Processor) Process(raw *RawCharacter) (*CharacterInfo, error) {
	if raw == nil {
		return nil, fmt.Errorf("raw character is nil")
	}

	name := strings.TrimSpace(raw.Name)
	if name == "" {
		name = "Unknown"
	}

	text := Normalize(raw.Introduction)

	info := &CharacterInfo{
		Name:           name,
		URL:            raw.URL,
		Element:        ExtractElement(text),
		Weapon:         ExtractWeapon(text),
		Rarity:         ExtractRarity(name, text),
		Region:         ExtractRegion(text),
		ModelType:      ExtractModelType(text),
		Title:          ExtractTitle(text),
		RealName:       ExtractRealName(text),
		Constellation:  ExtractConstellation(text),
		CharacterType:  ExtractCharacterType(text),
		Affiliations:   ExtractAffiliations(text),
		Roles:          ExtractRoles(text),
		HowToObtain:    ExtractObtainMethods(text),
		EventWishCount: ExtractEventWishCount(text),
		ReleaseDate:    ExtractReleaseDate(text),
		Birthday:       ExtractBirthday(text),
		SpecialDish:    ExtractSpecialDish(text),
		Namecard:       ExtractNamecard(text),
		VoiceActors:    ExtractVoiceActors(text),
	}
	info.RoleSummary = info.Roles.Summary()
	info.Sections = cleanSections(raw.Sections)
	info.Description = SynthesizeDescription(name, raw.URL, raw.Introduction, info.Sections)
	info.FullText = info.RenderText()

	return info, nil
}

// cleanSections 清洗章节：去掉名称中的方括号注释、归一化正文、丢弃过短章节
func cleanSections(sections map[string]string) map[string]string {
	if len(sections) == 0 {
		return nil
	}
	cleaned := make(map[string]string, len(sections))
	for name, body := range sections {
		cleanName := strings.TrimSpace(bracketNoteRe.ReplaceAllString(name, ""))
		if cleanName == "" {
			continue
		}
		cleanBody := Normalize(body)
		if len(cleanBody) <= 20 {
			continue
		}
		cleaned[cleanName] = cleanBody
	}
	if len(cleaned) == 0 {
		return nil
	}
	return cleaned
}

// BatchResult 批量处理的汇总结果
type BatchResult struct {
	Characters []*CharacterInfo // 成功处理的角色，保持输入顺序
	Chunks     []Chunk          // 全部角色的切块，保持输入顺序
	Succeeded  int              // 成功数量
	Failed     int              // 失败数量
	FailedList []string         // 失败角色的名称
}

// ProcessAll 批量处理角色记录
// 单个角色失败只记录日志并跳过，不中断整个批次
func (p *Processor) ProcessAll(raws []*RawCharacter) *BatchResult {
	result := &BatchResult{}
	for i, raw := range raws {
		info, err := p.processSafely(raw)
		if err != nil {
			name := fmt.Sprintf("#%d", i)
			if raw != nil && raw.Name != "" {
				name = raw.Name
			}
			p.logger.WithError(err).WithField("character", name).Warn("Failed to process character, skipping")
			result.Failed++
			result.FailedList = append(result.FailedList, name)
			continue
		}
		result.Characters = append(result.Characters, info)
		result.Chunks = append(result.Chunks, ChunkCharacter(info)...)
		result.Succeeded++
	}

	p.logger.WithFields(logrus.Fields{
		"total":     len(raws),
		"succeeded": result.Succeeded,
		"failed":    result.Failed,
		"chunks":    len(result.Chunks),
	}).Info("Character batch processing completed")

	return result
}

// processSafely 包一层recover，防止个别脏数据把整批拖垮
func (p *Processor) processSafely(raw *RawCharacter) (info *CharacterInfo, err error) {
	defer func() {
		if r := recover(); r != nil {
			info = nil
			err = fmt.Errorf("panic while processing character: %v", r)
		}
	}()
	return p.Process(raw)
}
