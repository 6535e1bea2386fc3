package model

import (
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// 游戏中合法的元素和武器类型
var (
	validElements = []string{"Pyro", "Hydro", "Electro", "Cryo", "Anemo", "Geo", "Dendro"}
	validWeapons  = []string{"Sword", "Claymore", "Polearm", "Bow", "Catalyst"}
)

// RegisterValidators 在gin的绑定校验器上注册自定义校验规则
// 重复注册是安全的，validator会覆盖同名规则
func RegisterValidators() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}

	_ = v.RegisterValidation("genshinelement", func(fl validator.FieldLevel) bool {
		return matchOption(fl.Field().String(), validElements)
	})
	_ = v.RegisterValidation("genshinweapon", func(fl validator.FieldLevel) bool {
		return matchOption(fl.Field().String(), validWeapons)
	})
}

// matchOption 大小写不敏感地匹配候选项
func matchOption(value string, options []string) bool {
	for _, opt := range options {
		if strings.EqualFold(value, opt) {
			return true
		}
	}
	return false
}

// CanonicalOption 返回候选项的规范大小写形式，未命中时原样返回
func CanonicalOption(value string, options []string) string {
	for _, opt := range options {
		if strings.EqualFold(value, opt) {
			return opt
		}
	}
	return value
}
