package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// 补丁操作类型
var patchOps = map[string]struct{}{
	"create":           {},
	"reassign_teacher": {},
	"reassign_room":    {},
	"reassign_subject": {},
	"reassign_period":  {},
	"add_group":        {},
	"remove_group":     {},
	"cancel":           {},
}

var hhmmPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

var (
	once     sync.Once
	instance *validator.Validate
)

// Validator 返回共享的校验器（使用 `validate` 标签），已注册自定义规则：
//   - patchop：补丁操作类型
//   - hhmm：24 小时制 HH:MM
func Validator() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		mustRegister(v)
		instance = v
	})
	return instance
}

// Register 在已有校验器上注册自定义规则（gin binding 引擎使用）
func Register(v *validator.Validate) error {
	if err := v.RegisterValidation("patchop", func(fl validator.FieldLevel) bool {
		_, ok := patchOps[fl.Field().String()]
		return ok
	}); err != nil {
		return err
	}
	return v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		return hhmmPattern.MatchString(fl.Field().String())
	})
}

func mustRegister(v *validator.Validate) {
	if err := Register(v); err != nil {
		panic(err)
	}
}

// IsPatchOp 判断是否为已知补丁操作
func IsPatchOp(op string) bool {
	_, ok := patchOps[op]
	return ok
}

// Struct 校验结构体，错误信息汇总为一行 "field: tag"
func Struct(s any) error {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, describe(fe))
	}
	return errors.New(strings.Join(parts, "; "))
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + ": 必填"
	case "patchop":
		return fmt.Sprintf("%s: 未知操作 %q", field, fe.Value())
	case "hhmm":
		return field + ": 时间格式应为 HH:MM"
	case "uuid":
		return field + ": 应为 UUID"
	case "datetime":
		return field + ": 日期格式应为 " + fe.Param()
	case "min":
		return field + ": 不能小于 " + fe.Param()
	default:
		return field + ": " + fe.Tag()
	}
}
