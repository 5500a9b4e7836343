package gradeimport

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/contractgrading/core"
)

var (
	gradingTypeTag    = "gradingtype"
	gradingTypeText   = "must be one of points, percentage, letter or status"
	mappingTargetTag  = "mappingtarget"
	mappingTargetText = "must be one of assignment, absences or skip"
)

// InitValidators registers the import specific validation tags.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(gradingTypeTag, gradingTypeValidation)
	core.RegisterCustomTranslation(validate, translator, gradingTypeTag, gradingTypeText)

	_ = validate.RegisterValidation(mappingTargetTag, mappingTargetValidation)
	core.RegisterCustomTranslation(validate, translator, mappingTargetTag, mappingTargetText)
}

// gradingTypeValidation accepts an empty value, "required" tags take care of that.
func gradingTypeValidation(fl validator.FieldLevel) bool {
	val := GradingType(fl.Field().String())
	if val == "" {
		return true
	}
	for _, gt := range GradingTypes {
		if gt == val {
			return true
		}
	}
	return false
}

func mappingTargetValidation(fl validator.FieldLevel) bool {
	switch MappingTarget(fl.Field().String()) {
	case TargetAssignment, TargetAbsences, TargetSkip:
		return true
	}
	return false
}
