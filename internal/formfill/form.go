package formfill

import (
	"encoding/json"
	"errors"
	"fmt"

	"agri_inspection/internal/domain"
)

// Input is one writable form control.
type Input interface {
	Value() string
	SetValue(string)
}

// Binding ties a recognized field to its input. Dependent inputs notify change
// listeners after every overwrite.
type Binding struct {
	Field     domain.OCRField
	Input     Input
	Dependent bool
}

// Listener recomputes dependent state after field changed.
type Listener func(field domain.OCRField, value string)

// Form is the set of inputs a recognition result is written into.
// It is not safe for concurrent use.
type Form struct {
	bindings  map[domain.OCRField]Binding
	raw       Input
	listeners map[domain.OCRField][]Listener
}

var (
	ErrUnknownField   = errors.New("unknown OCR field")
	ErrNilInput       = errors.New("nil input")
	ErrDuplicateField = errors.New("field bound twice")
	ErrUnboundField   = errors.New("field has no input")
)

// NewForm validates the bindings up front. rawInput receives the serialized
// ocr_raw_data and may be nil. Fields without a binding are skipped by Fill.
func NewForm(bindings []Binding, rawInput Input) (*Form, error) {
	f := &Form{
		bindings:  make(map[domain.OCRField]Binding, len(bindings)),
		raw:       rawInput,
		listeners: make(map[domain.OCRField][]Listener),
	}
	for _, b := range bindings {
		if !b.Field.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownField, b.Field)
		}
		if b.Input == nil {
			return nil, fmt.Errorf("%w for %q", ErrNilInput, b.Field)
		}
		if _, dup := f.bindings[b.Field]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateField, b.Field)
		}
		f.bindings[b.Field] = b
	}
	return f, nil
}

func (f *Form) OnChange(field domain.OCRField, l Listener) error {
	if _, ok := f.bindings[field]; !ok {
		return fmt.Errorf("%w: %q", ErrUnboundField, field)
	}
	f.listeners[field] = append(f.listeners[field], l)
	return nil
}

// Fill writes every truthy value of r into the bound input and returns the
// fields it wrote, in domain.OCRFormFields order.
func (f *Form) Fill(r Result) []domain.OCRField {
	var applied []domain.OCRField
	for _, field := range domain.OCRFormFields {
		v, ok := r.Value(field)
		if !ok {
			continue
		}
		b, bound := f.bindings[field]
		if !bound {
			continue
		}
		b.Input.SetValue(v)
		applied = append(applied, field)
		if b.Dependent {
			for _, l := range f.listeners[field] {
				l(field, v)
			}
		}
	}
	if raw := r.RawData(); raw != nil && f.raw != nil {
		f.raw.SetValue(string(raw))
	}
	return applied
}

// Values snapshots the current content of every bound input.
func (f *Form) Values() map[domain.OCRField]string {
	out := make(map[domain.OCRField]string, len(f.bindings))
	for field, b := range f.bindings {
		out[field] = b.Input.Value()
	}
	return out
}

// MapInput keeps its value in a shared map under Key.
type MapInput struct {
	Values map[string]string
	Key    string
}

func (m MapInput) Value() string     { return m.Values[m.Key] }
func (m MapInput) SetValue(v string) { m.Values[m.Key] = v }

// MapBindings binds every recognized field to values, keyed by field name.
// Fields listed in dependent emit change notifications.
func MapBindings(values map[string]string, dependent ...domain.OCRField) []Binding {
	dep := make(map[domain.OCRField]bool, len(dependent))
	for _, d := range dependent {
		dep[d] = true
	}
	bindings := make([]Binding, 0, len(domain.OCRFormFields))
	for _, field := range domain.OCRFormFields {
		bindings = append(bindings, Binding{
			Field:     field,
			Input:     MapInput{Values: values, Key: string(field)},
			Dependent: dep[field],
		})
	}
	return bindings
}

type stringInput struct{ p *string }

func (s stringInput) Value() string     { return *s.p }
func (s stringInput) SetValue(v string) { *s.p = v }

// dateInput leaves the date unchanged when the value is not YYYY-MM-DD.
type dateInput struct{ p *domain.Date }

func (d dateInput) Value() string { return d.p.String() }
func (d dateInput) SetValue(v string) {
	if parsed, err := domain.ParseDate(v); err == nil {
		*d.p = parsed
	}
}

type rawDataInput struct{ p *json.RawMessage }

func (r rawDataInput) Value() string { return string(*r.p) }
func (r rawDataInput) SetValue(v string) {
	*r.p = json.RawMessage(v)
}

// RecordInputs binds the recognized fields to the columns of rec. The second
// return value writes rec.OCRRawData.
func RecordInputs(rec *domain.InspectionRecord) ([]Binding, Input) {
	str := func(f domain.OCRField, p *string) Binding { return Binding{Field: f, Input: stringInput{p}} }
	date := func(f domain.OCRField, p *domain.Date) Binding { return Binding{Field: f, Input: dateInput{p}} }
	return []Binding{
		str(domain.FieldLicensePlateNumber, &rec.LicensePlateNumber),
		str(domain.FieldVehicleType, &rec.VehicleType),
		str(domain.FieldOwner, &rec.Owner),
		str(domain.FieldAddress, &rec.Address),
		str(domain.FieldChassisNumber, &rec.ChassisNumber),
		str(domain.FieldTrailerFrameNumber, &rec.TrailerFrameNumber),
		str(domain.FieldEngineNumber, &rec.EngineNumber),
		str(domain.FieldBrand, &rec.Brand),
		str(domain.FieldModelName, &rec.ModelName),
		date(domain.FieldRegistrationDate, &rec.RegistrationDate),
		date(domain.FieldIssueDate, &rec.IssueDate),
		str(domain.FieldIssueAuthority, &rec.IssueAuthority),
		str(domain.FieldTractorMinWeight, &rec.TractorMinWeight),
		str(domain.FieldHarvesterWeight, &rec.HarvesterWeight),
		str(domain.FieldTractorMaxLoad, &rec.TractorMaxLoad),
		str(domain.FieldPassengerCapacity, &rec.PassengerCapacity),
		str(domain.FieldOverallDimension, &rec.OverallDimension),
		str(domain.FieldInspectionRecord, &rec.InspectionRecord),
		str(domain.FieldPlateOCRResult, &rec.PlateOCRResult),
	}, rawDataInput{&rec.OCRRawData}
}
