package formfill

import (
	"testing"

	"agri_inspection/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingInput struct {
	value string
	sets  int
}

func (r *recordingInput) Value() string     { return r.value }
func (r *recordingInput) SetValue(v string) { r.value = v; r.sets++ }

func mustResult(t *testing.T, data string) Result {
	t.Helper()
	r, err := ParseResult([]byte(data))
	require.NoError(t, err)
	return r
}

func TestResultValue_Truthiness(t *testing.T) {
	r := mustResult(t, `{
		"owner": "",
		"brand": "东方红",
		"passenger_capacity": 2,
		"tractor_min_weight": 0,
		"tractor_max_load": 1500.5,
		"inspection_record": true,
		"overall_dimension": false,
		"address": null,
		"vehicle_type": {"nested": 1}
	}`)

	tests := []struct {
		field domain.OCRField
		want  string
		ok    bool
	}{
		{domain.FieldOwner, "", false},
		{domain.FieldBrand, "东方红", true},
		{domain.FieldPassengerCapacity, "2", true},
		{domain.FieldTractorMinWeight, "", false},
		{domain.FieldTractorMaxLoad, "1500.5", true},
		{domain.FieldInspectionRecord, "true", true},
		{domain.FieldOverallDimension, "", false},
		{domain.FieldAddress, "", false},
		{domain.FieldVehicleType, "", false},
		{domain.FieldEngineNumber, "", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.field), func(t *testing.T) {
			got, ok := r.Value(tt.field)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResultRawData(t *testing.T) {
	r := mustResult(t, `{"ocr_raw_data": { "front" : [ {"text": "号牌号码"} ] }}`)
	assert.JSONEq(t, `{"front":[{"text":"号牌号码"}]}`, string(r.RawData()))
	assert.Equal(t, `{"front":[{"text":"号牌号码"}]}`, string(r.RawData()))

	assert.Nil(t, mustResult(t, `{"ocr_raw_data": null}`).RawData())
	assert.Nil(t, mustResult(t, `{}`).RawData())
	assert.Nil(t, mustResult(t, `null`).RawData())
}

func TestFormFill_FalsyRawDataKeepsStoredValue(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty string", `""`},
		{"false", `false`},
		{"zero", `0`},
		{"null", `null`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stored := map[string]string{"raw": "previous"}
			form, err := NewForm(nil, MapInput{Values: stored, Key: "raw"})
			require.NoError(t, err)

			r := mustResult(t, `{"owner":"张三","ocr_raw_data":`+tt.raw+`}`)
			assert.Nil(t, r.RawData())

			form.Fill(r)
			assert.Equal(t, "previous", stored["raw"])
		})
	}
}

func TestParseResult_RejectsNonObject(t *testing.T) {
	_, err := ParseResult([]byte(`["a"]`))
	assert.Error(t, err)
}

func TestNewForm_Validation(t *testing.T) {
	in := &recordingInput{}
	tests := []struct {
		name     string
		bindings []Binding
		wantErr  error
	}{
		{"unknown field", []Binding{{Field: "colour", Input: in}}, ErrUnknownField},
		{"raw data key is not a field", []Binding{{Field: domain.OCRRawDataKey, Input: in}}, ErrUnknownField},
		{"nil input", []Binding{{Field: domain.FieldOwner}}, ErrNilInput},
		{"duplicate", []Binding{{Field: domain.FieldOwner, Input: in}, {Field: domain.FieldOwner, Input: in}}, ErrDuplicateField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewForm(tt.bindings, nil)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	f, err := NewForm(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, f.Fill(mustResult(t, `{"owner":"张三"}`)))
}

func TestFormFill_TruthyValueOverwritesAndNotifies(t *testing.T) {
	plate := &recordingInput{value: "旧值"}
	form, err := NewForm([]Binding{{Field: domain.FieldLicensePlateNumber, Input: plate, Dependent: true}}, nil)
	require.NoError(t, err)

	var changes []string
	require.NoError(t, form.OnChange(domain.FieldLicensePlateNumber, func(f domain.OCRField, v string) {
		assert.Equal(t, "京A12345", plate.value, "listener runs after the overwrite")
		changes = append(changes, string(f)+"="+v)
	}))

	applied := form.Fill(mustResult(t, `{"license_plate_number":"京A12345"}`))

	assert.Equal(t, "京A12345", plate.value)
	assert.Equal(t, []domain.OCRField{domain.FieldLicensePlateNumber}, applied)
	assert.Equal(t, []string{"license_plate_number=京A12345"}, changes)
}

func TestFormFill_FalsyValueLeavesInputAlone(t *testing.T) {
	owner := &recordingInput{value: "李四"}
	form, err := NewForm([]Binding{{Field: domain.FieldOwner, Input: owner, Dependent: true}}, nil)
	require.NoError(t, err)
	fired := false
	require.NoError(t, form.OnChange(domain.FieldOwner, func(domain.OCRField, string) { fired = true }))

	applied := form.Fill(mustResult(t, `{"owner":""}`))

	assert.Empty(t, applied)
	assert.Equal(t, "李四", owner.value)
	assert.Zero(t, owner.sets)
	assert.False(t, fired)
}

func TestFormFill_NonDependentDoesNotNotify(t *testing.T) {
	brand := &recordingInput{}
	form, err := NewForm([]Binding{{Field: domain.FieldBrand, Input: brand}}, nil)
	require.NoError(t, err)
	fired := false
	require.NoError(t, form.OnChange(domain.FieldBrand, func(domain.OCRField, string) { fired = true }))

	form.Fill(mustResult(t, `{"brand":"东方红"}`))

	assert.Equal(t, "东方红", brand.value)
	assert.False(t, fired)
}

func TestFormFill_IgnoresUnknownKeysAndStoresRawData(t *testing.T) {
	values := map[string]string{}
	raw := &recordingInput{}
	form, err := NewForm(MapBindings(values), raw)
	require.NoError(t, err)

	applied := form.Fill(mustResult(t, `{
		"owner": "张三",
		"body_color": "红",
		"ocr_raw_data": {"plate": {"text": "京A12345"}}
	}`))

	assert.Equal(t, []domain.OCRField{domain.FieldOwner}, applied)
	assert.Equal(t, map[string]string{"owner": "张三"}, values)
	assert.Equal(t, `{"plate":{"text":"京A12345"}}`, raw.value)
}

func TestFormFill_RawDataWithoutInputIsSkipped(t *testing.T) {
	values := map[string]string{}
	form, err := NewForm(MapBindings(values), nil)
	require.NoError(t, err)
	assert.NotPanics(t, func() {
		form.Fill(mustResult(t, `{"ocr_raw_data": {"a": 1}}`))
	})
	assert.Empty(t, values)
}

func TestFormOnChange_UnboundField(t *testing.T) {
	form, err := NewForm(nil, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, form.OnChange(domain.FieldOwner, func(domain.OCRField, string) {}), ErrUnboundField)
}

func TestMapBindings_Dependent(t *testing.T) {
	bindings := MapBindings(map[string]string{}, domain.FieldRegistrationDate)
	require.Len(t, bindings, len(domain.OCRFormFields))
	for _, b := range bindings {
		assert.Equal(t, b.Field == domain.FieldRegistrationDate, b.Dependent, b.Field)
	}
}

func TestRecordInputs(t *testing.T) {
	rec := &domain.InspectionRecord{Owner: "李四", Brand: "东方红"}
	bindings, raw := RecordInputs(rec)
	form, err := NewForm(bindings, raw)
	require.NoError(t, err)

	applied := form.Fill(mustResult(t, `{
		"license_plate_number": "鲁·13-12345",
		"owner": "张三",
		"brand": "",
		"registration_date": "2019-05-12",
		"issue_date": "2019年",
		"plate_ocr_result": "鲁·13-12345",
		"ocr_raw_data": {"front": []}
	}`))

	assert.Equal(t, "鲁·13-12345", rec.LicensePlateNumber)
	assert.Equal(t, "张三", rec.Owner)
	assert.Equal(t, "东方红", rec.Brand)
	assert.Equal(t, "2019-05-12", rec.RegistrationDate.String())
	assert.False(t, rec.IssueDate.Valid, "unparseable dates are not stored")
	assert.Equal(t, "鲁·13-12345", rec.PlateOCRResult)
	assert.JSONEq(t, `{"front":[]}`, string(rec.OCRRawData))
	assert.Contains(t, applied, domain.FieldIssueDate)
	assert.Len(t, bindings, len(domain.OCRFormFields))
}

func TestNewResult(t *testing.T) {
	r, err := NewResult(map[string]any{
		"owner":              "张三",
		"passenger_capacity": 2,
		domain.OCRRawDataKey: map[string]any{"k": "v"},
	})
	require.NoError(t, err)

	v, ok := r.Value(domain.FieldPassengerCapacity)
	assert.True(t, ok)
	assert.Equal(t, "2", v)
	assert.Equal(t, `{"k":"v"}`, string(r.RawData()))

	for _, raw := range []any{nil, "", false, 0, 0.0} {
		r, err := NewResult(map[string]any{domain.OCRRawDataKey: raw})
		require.NoError(t, err)
		assert.Nil(t, r.RawData(), "%#v", raw)
	}
}
