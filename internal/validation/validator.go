package validation

import (
	"reflect"
	"regexp"
	"strings"
	"sync"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	hexRGB = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

	defaultOnce sync.Once
	defaultV    *validatorv10.Validate
)

// New returns a configured validator with the storefront's custom tags and
// struct-level validation registered.
//
// Custom tags:
//   - hexrgb: "#RRGGBB"
//   - mobilephone: digits only (spaces, dashes and a leading + are ignored), 10 or 12 of them
//
// decimal.Decimal fields are validated as float64, so gt=0 and friends work on prices.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})

	_ = v.RegisterValidation("hexrgb", func(fl validatorv10.FieldLevel) bool {
		return hexRGB.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("mobilephone", func(fl validatorv10.FieldLevel) bool {
		return ValidMobilePhone(fl.Field().String())
	})

	v.RegisterStructValidation(recommendStructValidation, RecommendRequest{})
	v.RegisterStructValidation(settingsStructValidation, SettingsRequest{})

	return v
}

// Default returns a process-wide validator built by New.
func Default() *validatorv10.Validate {
	defaultOnce.Do(func() { defaultV = New() })
	return defaultV
}

// Check validates v with the default validator and reports failures as an
// apperr validation error carrying per-field messages.
func Check(v any) error {
	return fieldErrors(Default().Struct(v))
}

// PhoneDigits strips spaces, dashes and a leading + from a phone number.
func PhoneDigits(phone string) string {
	phone = strings.TrimPrefix(strings.TrimSpace(phone), "+")
	return strings.NewReplacer(" ", "", "-", "").Replace(phone)
}

// ValidMobilePhone reports whether phone is 10 (07XXXXXXXX) or 12 (2547XXXXXXXX) digits.
func ValidMobilePhone(phone string) bool {
	d := PhoneDigits(phone)
	if len(d) != 10 && len(d) != 12 {
		return false
	}
	for _, r := range d {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func decimalValue(field reflect.Value) interface{} {
	if d, ok := field.Interface().(decimal.Decimal); ok {
		f, _ := d.Float64()
		return f
	}
	return nil
}

// recommendStructValidation requires a text description, an image, or both.
func recommendStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(RecommendRequest)
	if strings.TrimSpace(req.Text) == "" && req.ImageBase64 == "" {
		sl.ReportError(req.Text, "text", "Text", "text_or_image", "")
	}
	if req.ImageBase64 != "" && req.MimeType == "" {
		sl.ReportError(req.MimeType, "mime_type", "MimeType", "required_with_image", "")
	}
}

// settingsStructValidation requires a payment type whenever a business number is set.
func settingsStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(SettingsRequest)
	if req.MpesaBusinessNumber != nil && *req.MpesaBusinessNumber != "" {
		if req.MpesaType == nil || (*req.MpesaType != "paybill" && *req.MpesaType != "till") {
			sl.ReportError(req.MpesaType, "mpesa_type", "MpesaType", "paybill_or_till", "")
		}
	}
}
