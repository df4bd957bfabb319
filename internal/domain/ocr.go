package domain

// OCRField names one recognizable value of a farm-machinery driving license or plate photo.
// The same identifiers are the form input names of the inspection record editor.
type OCRField string

const (
	// front page
	FieldLicensePlateNumber OCRField = "license_plate_number"
	FieldVehicleType        OCRField = "vehicle_type"
	FieldOwner              OCRField = "owner"
	FieldAddress            OCRField = "address"
	FieldChassisNumber      OCRField = "chassis_number"
	FieldTrailerFrameNumber OCRField = "trailer_frame_number"
	FieldEngineNumber       OCRField = "engine_number"
	FieldBrand              OCRField = "brand"
	FieldModelName          OCRField = "model_name"
	FieldRegistrationDate   OCRField = "registration_date"
	FieldIssueDate          OCRField = "issue_date"
	FieldIssueAuthority     OCRField = "issue_authority"

	// back page
	FieldTractorMinWeight  OCRField = "tractor_min_weight"
	FieldHarvesterWeight   OCRField = "harvester_weight"
	FieldTractorMaxLoad    OCRField = "tractor_max_load"
	FieldPassengerCapacity OCRField = "passenger_capacity"
	FieldOverallDimension  OCRField = "overall_dimension"
	FieldInspectionRecord  OCRField = "inspection_record"

	// plate photo
	FieldPlateOCRResult OCRField = "plate_ocr_result"
)

// OCRRawDataKey carries the unprocessed engine output for audit.
const OCRRawDataKey = "ocr_raw_data"

// OCRFormFields is the ordered list of fields the recognize endpoint may return.
var OCRFormFields = []OCRField{
	FieldLicensePlateNumber, FieldVehicleType, FieldOwner, FieldAddress,
	FieldChassisNumber, FieldTrailerFrameNumber, FieldEngineNumber,
	FieldBrand, FieldModelName, FieldRegistrationDate, FieldIssueDate, FieldIssueAuthority,
	FieldTractorMinWeight, FieldHarvesterWeight, FieldTractorMaxLoad,
	FieldPassengerCapacity, FieldOverallDimension, FieldInspectionRecord,
	FieldPlateOCRResult,
}

// LicenseBackFields are the only values taken from a back-page image.
var LicenseBackFields = []OCRField{
	FieldTractorMinWeight, FieldHarvesterWeight, FieldTractorMaxLoad,
	FieldPassengerCapacity, FieldOverallDimension, FieldInspectionRecord,
}

var knownOCRFields = func() map[OCRField]struct{} {
	m := make(map[OCRField]struct{}, len(OCRFormFields))
	for _, f := range OCRFormFields {
		m[f] = struct{}{}
	}
	return m
}()

func (f OCRField) Valid() bool {
	_, ok := knownOCRFields[f]
	return ok
}

// VehicleLicense holds the values parsed from one license image.
type VehicleLicense struct {
	LicensePlateNumber string `json:"license_plate_number"`
	VehicleType        string `json:"vehicle_type"`
	Owner              string `json:"owner"`
	Address            string `json:"address"`
	ChassisNumber      string `json:"chassis_number"`
	TrailerFrameNumber string `json:"trailer_frame_number"`
	EngineNumber       string `json:"engine_number"`
	Brand              string `json:"brand"`
	ModelName          string `json:"model_name"`
	RegistrationDate   string `json:"registration_date"`
	IssueDate          string `json:"issue_date"`
	IssueAuthority     string `json:"issue_authority"`

	TractorMinWeight  string `json:"tractor_min_weight"`
	HarvesterWeight   string `json:"harvester_weight"`
	TractorMaxLoad    string `json:"tractor_max_load"`
	PassengerCapacity string `json:"passenger_capacity"`
	OverallDimension  string `json:"overall_dimension"`
	InspectionRecord  string `json:"inspection_record"`
}

// Fields flattens the license into field/value pairs, empty values included.
func (v *VehicleLicense) Fields() map[OCRField]string {
	return map[OCRField]string{
		FieldLicensePlateNumber: v.LicensePlateNumber,
		FieldVehicleType:        v.VehicleType,
		FieldOwner:              v.Owner,
		FieldAddress:            v.Address,
		FieldChassisNumber:      v.ChassisNumber,
		FieldTrailerFrameNumber: v.TrailerFrameNumber,
		FieldEngineNumber:       v.EngineNumber,
		FieldBrand:              v.Brand,
		FieldModelName:          v.ModelName,
		FieldRegistrationDate:   v.RegistrationDate,
		FieldIssueDate:          v.IssueDate,
		FieldIssueAuthority:     v.IssueAuthority,
		FieldTractorMinWeight:   v.TractorMinWeight,
		FieldHarvesterWeight:    v.HarvesterWeight,
		FieldTractorMaxLoad:     v.TractorMaxLoad,
		FieldPassengerCapacity:  v.PassengerCapacity,
		FieldOverallDimension:   v.OverallDimension,
		FieldInspectionRecord:   v.InspectionRecord,
	}
}

// TextLine is one line of text reported by an OCR engine, confidence in [0,1].
type TextLine struct {
	Text       string  `json:"text"`
	Confidence float32 `json:"confidence"`
}

type PlateResult struct {
	Plate      string  `json:"plate_number"`
	Confidence float32 `json:"confidence"`
}

// LicenseRecognition is the outcome of recognizing a single license image.
type LicenseRecognition struct {
	License VehicleLicense `json:"license"`
	Lines   []TextLine     `json:"lines"`
}

type PlateRecognition struct {
	Plate PlateResult `json:"plate"`
	Found bool        `json:"found"`
	Lines []TextLine  `json:"lines"`
}

// FormRecognition is the merged result handed to the record editor.
// Fields holds non-empty values only.
type FormRecognition struct {
	Fields  map[OCRField]string
	RawData map[string]any
}

// MarshalData renders the flat data object of the admin endpoint.
func (r *FormRecognition) MarshalData() map[string]any {
	out := make(map[string]any, len(r.Fields)+1)
	for k, v := range r.Fields {
		out[string(k)] = v
	}
	if len(r.RawData) > 0 {
		out[OCRRawDataKey] = r.RawData
	}
	return out
}
