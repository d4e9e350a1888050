// Package extract maps labelled attribute cells of the portal's property
// pages onto document fields.
package extract

import (
	"regexp"
	"strings"
	"time"

	"github.com/HaHongDo/vbpl-web-crawl/internal/doctree"
)

// DateLayout is the portal's date format.
const DateLayout = "02/01/2006"

// Field is a document attribute that an attribute cell can populate.
type Field int

const (
	FieldNone Field = iota
	FieldSerialNumber
	FieldIssuanceDate
	FieldEffectiveDate
	FieldExpirationDate
	FieldGazetteDate
	FieldIssuingAuthority
	FieldApplicableInfo
	FieldDocType
	FieldState
)

// String returns the column name the field is persisted under.
func (f Field) String() string {
	switch f {
	case FieldSerialNumber:
		return "serial_number"
	case FieldIssuanceDate:
		return "issuance_date"
	case FieldEffectiveDate:
		return "effective_date"
	case FieldExpirationDate:
		return "expiration_date"
	case FieldGazetteDate:
		return "gazette_date"
	case FieldIssuingAuthority:
		return "issuing_authority"
	case FieldApplicableInfo:
		return "applicable_information"
	case FieldDocType:
		return "doc_type"
	case FieldState:
		return "state"
	}
	return "none"
}

// Value is the typed result of an extractor. At most one member is set; a
// zero Value clears nothing and sets nothing.
type Value struct {
	Text *string
	Date *time.Time
}

// IsZero reports whether the extractor produced nothing.
func (v Value) IsZero() bool { return v.Text == nil && v.Date == nil }

// Rule binds a label pattern to the field it fills and the extractor that
// converts the value cell.
type Rule struct {
	Label   *regexp.Regexp
	Field   Field
	Extract func(cell string) Value
}

// Text is the extractor for free-text cells.
func Text(cell string) Value {
	return Value{Text: doctree.NonEmpty(cell)}
}

// Date is the extractor for date cells. An unparsable date yields a zero
// Value so one bad cell never aborts a document.
func Date(cell string) Value {
	return Value{Date: ParseDate(cell)}
}

// ParseDate parses a dd/mm/yyyy date, returning nil on failure.
func ParseDate(s string) *time.Time {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return &t
}

func rule(label string, f Field, x func(string) Value) Rule {
	return Rule{Label: regexp.MustCompile(regexp.QuoteMeta(label)), Field: f, Extract: x}
}

// PhapQuyRules is the property table of a regulatory document.
var PhapQuyRules = []Rule{
	rule("Số ký hiệu", FieldSerialNumber, Text),
	rule("Ngày ban hành", FieldIssuanceDate, Date),
	rule("Ngày có hiệu lực", FieldEffectiveDate, Date),
	rule("Ngày đăng công báo", FieldGazetteDate, Date),
	rule("Cơ quan ban hành", FieldIssuingAuthority, Text),
	rule("Thông tin áp dụng", FieldApplicableInfo, Text),
	rule("Loại văn bản", FieldDocType, Text),
}

// HopNhatRules is the property table of a consolidated document.
var HopNhatRules = []Rule{
	rule("Số ký hiệu", FieldSerialNumber, Text),
	rule("Ngày xác thực", FieldEffectiveDate, Date),
	rule("Ngày đăng công báo", FieldGazetteDate, Date),
	rule("Cơ quan ban hành", FieldIssuingAuthority, Text),
	rule("Loại VB được sửa đổi bổ sung", FieldDocType, Text),
}

// InfoRules is the "Hiệu lực" summary list shown next to regulatory
// documents. The label is a line prefix and the value is the remainder.
var InfoRules = []Rule{
	{Label: regexp.MustCompile(`^Hiệu lực:`), Field: FieldState, Extract: Text},
	{Label: regexp.MustCompile(`^Ngày hết hiệu lực:`), Field: FieldExpirationDate, Extract: Date},
}

// RulesFor returns the property table rules for kind.
func RulesFor(kind doctree.Kind) []Rule {
	if kind == doctree.KindHopNhat {
		return HopNhatRules
	}
	return PhapQuyRules
}

// Apply stores v into the field f of doc. It reports whether anything was
// assigned.
func Apply(doc *doctree.Document, f Field, v Value) bool {
	if v.IsZero() {
		return false
	}
	switch f {
	case FieldSerialNumber:
		doc.SerialNumber = v.Text
	case FieldIssuanceDate:
		doc.IssuanceDate = v.Date
	case FieldEffectiveDate:
		doc.EffectiveDate = v.Date
	case FieldExpirationDate:
		doc.ExpirationDate = v.Date
	case FieldGazetteDate:
		doc.GazetteDate = v.Date
	case FieldIssuingAuthority:
		doc.IssuingAuthority = v.Text
	case FieldApplicableInfo:
		doc.ApplicableInfo = v.Text
	case FieldDocType:
		doc.DocType = v.Text
	case FieldState:
		doc.State = v.Text
	case FieldNone:
		return false
	default:
		return false
	}
	return true
}
