// Package intl localizes user-facing error summaries. English is the
// source language; Arabic translations are registered alongside it so the
// API can return both at the boundary.
package intl

import (
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

var bundle = i18n.NewBundle(language.English)

func init() {
	must(bundle.AddMessages(language.English,
		&i18n.Message{ID: "validation_error", Other: "The request is invalid."},
		&i18n.Message{ID: "not_found", Other: "The requested resource was not found."},
		&i18n.Message{ID: "permission_denied", Other: "You do not have access to this resource."},
		&i18n.Message{ID: "no_eligible_staff", Other: "No staff member is eligible for this work item."},
		&i18n.Message{ID: "conflict", Other: "The operation could not be completed due to a capacity conflict."},
		&i18n.Message{ID: "internal_error", Other: "An unexpected internal error occurred."},
	))
	must(bundle.AddMessages(language.Arabic,
		&i18n.Message{ID: "validation_error", Other: "الطلب غير صالح."},
		&i18n.Message{ID: "not_found", Other: "المورد المطلوب غير موجود."},
		&i18n.Message{ID: "permission_denied", Other: "ليس لديك صلاحية الوصول إلى هذا المورد."},
		&i18n.Message{ID: "no_eligible_staff", Other: "لا يوجد موظف مؤهل لهذه المهمة."},
		&i18n.Message{ID: "conflict", Other: "تعذر إكمال العملية بسبب تعارض في السعة."},
		&i18n.Message{ID: "internal_error", Other: "حدث خطأ داخلي غير متوقع."},
	))
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// Message returns the localized summary for an error code, falling back
// to the code itself when no translation exists.
func Message(lang, code string) string {
	msg, err := i18n.NewLocalizer(bundle, lang).Localize(&i18n.LocalizeConfig{MessageID: code})
	if err != nil {
		return code
	}
	return msg
}
