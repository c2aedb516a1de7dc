package message

import (
	"errors"
	"net/mail"
	"net/textproto"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"

	"github.com/shineum/anymail-lite/internal/mailerr"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
	translator   ut.Translator
	validateErr  error
)

func structValidator() (*validator.Validate, ut.Translator, error) {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			return snake(f.Name)
		})

		enLang := en.New()
		uni := ut.New(enLang, enLang)
		trans, ok := uni.GetTranslator("en")
		if !ok {
			validateErr = errors.New("validator: english translator not found")
			return
		}
		if err := enTranslations.RegisterDefaultTranslations(v, trans); err != nil {
			validateErr = err
			return
		}
		if err := registerAddressTag(v, trans); err != nil {
			validateErr = err
			return
		}
		validate, translator = v, trans
	})
	return validate, translator, validateErr
}

// addressTag accepts any bare RFC 5322 addr-spec, including single-label
// domains such as "user@localhost" that the stock email tag rejects.
const addressTag = "rfc5322"

func registerAddressTag(v *validator.Validate, trans ut.Translator) error {
	err := v.RegisterValidation(addressTag, func(fl validator.FieldLevel) bool {
		return validAddrSpec(fl.Field().String())
	})
	if err != nil {
		return err
	}
	return v.RegisterTranslation(addressTag, trans,
		func(ut ut.Translator) error {
			return ut.Add(addressTag, "{0} must be a valid email address", true)
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			t, _ := ut.T(addressTag, fe.Field())
			return t
		},
	)
}

// validAddrSpec reports whether s parses as exactly one bare address with a
// non-empty local part and domain.
func validAddrSpec(s string) bool {
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Name != "" || addr.Address != s {
		return false
	}
	at := strings.LastIndex(s, "@")
	return at > 0 && at < len(s)-1
}

// Validate checks the message before anything is sent. It returns a
// *mailerr.ValidationError naming the first offending field.
func (m *Message) Validate() error {
	if m == nil {
		return &mailerr.ValidationError{Field: "message", Reason: "is nil"}
	}

	v, trans, err := structValidator()
	if err != nil {
		return err
	}
	if err := v.Struct(m); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
			return err
		}
		fe := fieldErrs[0]
		return &mailerr.ValidationError{
			Field:  strings.TrimPrefix(fe.Namespace(), "Message."),
			Reason: fe.Translate(trans),
		}
	}

	if len(m.To) == 0 && len(m.Cc) == 0 && len(m.Bcc) == 0 {
		return &mailerr.ValidationError{Field: "to", Reason: "at least one of to, cc or bcc is required"}
	}
	if m.SendAt != nil && m.SendAt.IsZero() {
		return &mailerr.ValidationError{Field: "send_at", Reason: "must be a timestamp"}
	}
	if err := m.validateHeaders(); err != nil {
		return err
	}
	if err := m.validateAttachments(); err != nil {
		return err
	}
	return m.validateMergeData()
}

func (m *Message) validateHeaders() error {
	seen := make(map[string]string, len(m.Headers))
	for name := range m.Headers {
		if strings.TrimSpace(name) == "" {
			return &mailerr.ValidationError{Field: "headers", Reason: "header name is empty"}
		}
		key := textproto.CanonicalMIMEHeaderKey(name)
		if other, ok := seen[key]; ok {
			return &mailerr.ValidationError{
				Field:  "headers[" + name + "]",
				Reason: "duplicates header " + other,
			}
		}
		seen[key] = name
	}
	return nil
}

func (m *Message) validateAttachments() error {
	ids := make(map[string]struct{})
	for i, att := range m.Attachments {
		if att.Filename == "" && !att.Inline() {
			return &mailerr.ValidationError{
				Field:  "attachments[" + strconv.Itoa(i) + "].filename",
				Reason: "is required for non-inline attachments",
			}
		}
		if !att.Inline() {
			continue
		}
		if _, ok := ids[att.ContentID]; ok {
			return &mailerr.ValidationError{
				Field:  "attachments[" + strconv.Itoa(i) + "].content_id",
				Reason: "duplicates content id " + att.ContentID,
			}
		}
		ids[att.ContentID] = struct{}{}
	}
	return nil
}

// validateMergeData enforces that every merge_data address is a "to"
// recipient.
func (m *Message) validateMergeData() error {
	if len(m.MergeData) == 0 {
		return nil
	}
	to := make(map[string]struct{}, len(m.To))
	for _, a := range m.To {
		to[strings.ToLower(a.Email)] = struct{}{}
	}
	for addr := range m.MergeData {
		if _, ok := to[strings.ToLower(addr)]; !ok {
			return &mailerr.ValidationError{
				Field:  "merge_data[" + addr + "]",
				Reason: "address is not a to recipient",
			}
		}
	}
	return nil
}

// snake converts a Go field name to lower snake case ("ReplyTo" -> "reply_to",
// "ContentID" -> "content_id").
func snake(name string) string {
	runes := []rune(name)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			prevLower := i > 0 && unicode.IsLower(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if i > 0 && (prevLower || (nextLower && unicode.IsUpper(runes[i-1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
